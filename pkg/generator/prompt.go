// Package generator turns a persona and a topic into prompts, and raw model
// output into a post candidate.
package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"rileybot/pkg/persona"
)

var ErrEmptyCandidate = errors.New("generated text is empty")

// Prompt is a system instruction plus the user turn sent to a text model.
type Prompt struct {
	System string
	User   string
}

// TextGenerator is the boundary to an AI provider.
type TextGenerator interface {
	Generate(ctx context.Context, p Prompt) (string, error)
}

func systemPrompt(p *persona.Profile, phase string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are %s, %s.", p.Name, p.Description)
	if len(p.Traits) > 0 {
		fmt.Fprintf(&sb, "\nPersonality: %s.", strings.Join(p.Traits, ", "))
	}
	if p.StoryArcNotes != "" {
		fmt.Fprintf(&sb, "\nYour story so far: %s", p.StoryArcNotes)
	}
	if ph, ok := p.Phase(phase); ok && ph.Description != "" {
		fmt.Fprintf(&sb, "\nRight now you are %s.", ph.Description)
	}
	sb.WriteString("\nYou only ever answer with the text of a single post. No hashtags unless they feel natural, no quotes around it.")
	return sb.String()
}

// BuildIntroPrompt asks for the persona's first post.
func BuildIntroPrompt(p *persona.Profile, maxLen int) Prompt {
	user := fmt.Sprintf(
		"Write a friendly introduction tweet as %s, based on this description: %s. "+
			"Keep it warm and approachable. Keep it under %d characters. Write in first person.",
		p.Name, p.Description, maxLen,
	)
	return Prompt{System: systemPrompt(p, ""), User: user}
}

// BuildPostPrompt asks for a regular post about topic, in the voice of the
// given phase.
func BuildPostPrompt(p *persona.Profile, topic string, games []string, phase string, maxLen int) Prompt {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Write a casual, personal tweet about %s.", topic)
	if len(games) > 0 {
		fmt.Fprintf(&sb, " You can reference these specific ones: %s.", strings.Join(games, ", "))
	}
	fmt.Fprintf(&sb, " Avoid sounding promotional or bot-like. Keep it under %d characters. "+
		"Write in first person. A bit of self-deprecating humor is welcome.", maxLen)

	if examples := p.Examples(phase); len(examples) > 0 {
		sb.WriteString("\n\nHere are some example tweets for tone (but be original):")
		for _, ex := range examples {
			sb.WriteString("\n- ")
			sb.WriteString(ex)
		}
	}
	return Prompt{System: systemPrompt(p, phase), User: sb.String()}
}

// Avoiding returns a copy of the prompt that also lists texts the model
// should not repeat. Used when a candidate was rejected as a duplicate.
func (p Prompt) Avoiding(texts ...string) Prompt {
	if len(texts) == 0 {
		return p
	}
	var sb strings.Builder
	sb.WriteString(p.User)
	sb.WriteString("\n\nDo not repeat or paraphrase any of these:")
	for _, t := range texts {
		sb.WriteString("\n- ")
		sb.WriteString(t)
	}
	p.User = sb.String()
	return p
}

var quotePairs = map[rune]rune{'"': '"', '\'': '\'', '“': '”', '‘': '’', '`': '`'}

// PostProcess cleans raw model output into a candidate: surrounding space and
// quotes are removed and the text is cut to at most maxLen runes, on a word
// boundary when one is close enough.
func PostProcess(raw string, maxLen int) (string, error) {
	text := strings.TrimSpace(raw)
	text = stripQuotes(text)
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyCandidate
	}
	if maxLen > 0 && utf8.RuneCountInString(text) > maxLen {
		text = truncate(text, maxLen)
	}
	return text, nil
}

func stripQuotes(s string) string {
	first, size := utf8.DecodeRuneInString(s)
	closing, ok := quotePairs[first]
	if !ok {
		return s
	}
	last, lastSize := utf8.DecodeLastRuneInString(s)
	if last != closing || len(s) < size+lastSize {
		return s
	}
	return s[size : len(s)-lastSize]
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	cut := runes[:maxLen]
	// next rune is a space: the cut already falls between words
	if unicode.IsSpace(runes[maxLen]) {
		return strings.TrimRightFunc(string(cut), unicode.IsSpace)
	}
	for i := len(cut) - 1; i >= maxLen/2; i-- {
		if unicode.IsSpace(cut[i]) {
			return strings.TrimRightFunc(string(cut[:i]), unicode.IsSpace)
		}
	}
	return string(cut)
}
