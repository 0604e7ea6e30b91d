// Package persona loads the character profile that every post is written as,
// and tracks where that character is in its story arc.
package persona

import (
	"fmt"
	"os"
	"path/filepath"

	"rileybot/pkg/config"

	"gopkg.in/yaml.v3"
)

// Phase is one stage of the persona's story arc.
type Phase struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Examples    []string `yaml:"examples,omitempty"`
}

type Profile struct {
	Name                string   `yaml:"name"`
	Description         string   `yaml:"description"`
	Traits              []string `yaml:"traits"`
	StoryArcNotes       string   `yaml:"story_arc_notes,omitempty"`
	ExampleInteractions []string `yaml:"example_interactions,omitempty"`
	Phases              []Phase  `yaml:"phases,omitempty"`
	CurrentPhase        string   `yaml:"current_phase,omitempty"`
	PostsInPhase        int      `yaml:"posts_in_phase,omitempty"`
}

// State is the part of the profile a cycle reads and may advance. It is
// handed into each cycle and handed back, never mutated in place.
type State struct {
	Phase        string
	PostsInPhase int
}

// Load reads and validates a profile. A missing or unreadable file is a
// configuration problem.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &config.ConfigurationError{Field: "persona.path", Reason: "failed to load persona", Err: err}
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, &config.ConfigurationError{Field: "persona.path", Reason: "failed to parse persona", Err: err}
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Save writes the profile to path via a temp file and rename so a crash
// never leaves a truncated profile behind.
func Save(path string, p *Profile) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal persona: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".persona-*.yml")
	if err != nil {
		return fmt.Errorf("create temp persona: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write persona: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close persona: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace persona: %w", err)
	}
	return nil
}

func (p *Profile) Validate() error {
	if p.Name == "" {
		return &config.ConfigurationError{Field: "persona.name", Reason: "must not be empty"}
	}
	seen := make(map[string]bool, len(p.Phases))
	for i, ph := range p.Phases {
		if ph.Name == "" {
			return &config.ConfigurationError{Field: "persona.phases", Reason: fmt.Sprintf("phase %d has no name", i)}
		}
		if seen[ph.Name] {
			return &config.ConfigurationError{Field: "persona.phases", Reason: fmt.Sprintf("duplicate phase %q", ph.Name)}
		}
		seen[ph.Name] = true
	}
	if p.CurrentPhase != "" && len(p.Phases) > 0 && !seen[p.CurrentPhase] {
		return &config.ConfigurationError{Field: "persona.current_phase", Reason: fmt.Sprintf("unknown phase %q", p.CurrentPhase)}
	}
	if p.PostsInPhase < 0 {
		return &config.ConfigurationError{Field: "persona.posts_in_phase", Reason: "must not be negative"}
	}
	return nil
}

func (p *Profile) State() State {
	return State{Phase: p.CurrentPhase, PostsInPhase: p.PostsInPhase}
}

// WithState returns a copy of the profile carrying s.
func (p *Profile) WithState(s State) *Profile {
	cp := *p
	cp.CurrentPhase = s.Phase
	cp.PostsInPhase = s.PostsInPhase
	return &cp
}

func (p *Profile) Phase(name string) (Phase, bool) {
	for _, ph := range p.Phases {
		if ph.Name == name {
			return ph, true
		}
	}
	return Phase{}, false
}

// Examples returns tone examples for phase, falling back to the general
// example interactions when the phase is empty, unknown or has none.
func (p *Profile) Examples(phase string) []string {
	if ph, ok := p.Phase(phase); ok && len(ph.Examples) > 0 {
		return ph.Examples
	}
	return p.ExampleInteractions
}

// NextPhase returns the arc phase after current, or "" when current is the
// last one or unknown. An empty current starts the arc.
func (p *Profile) NextPhase(current string) string {
	if current == "" {
		if len(p.Phases) > 0 {
			return p.Phases[0].Name
		}
		return ""
	}
	for i, ph := range p.Phases {
		if ph.Name == current && i+1 < len(p.Phases) {
			return p.Phases[i+1].Name
		}
	}
	return ""
}

// Advance counts one more stored post in the current phase and moves to the
// next phase once postsPerPhase is reached. postsPerPhase <= 0 never advances.
// The final phase is sticky.
func (p *Profile) Advance(s State, postsPerPhase int) State {
	s.PostsInPhase++
	if postsPerPhase <= 0 || s.PostsInPhase < postsPerPhase {
		return s
	}
	next := p.NextPhase(s.Phase)
	if next == "" {
		return s
	}
	return State{Phase: next}
}
