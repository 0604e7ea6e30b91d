// Package selector picks the gaming topic a post is written about.
package selector

import (
	"errors"
	"fmt"
	"math/rand"
	"slices"

	"rileybot/pkg/config"
	"rileybot/pkg/persona"
)

var ErrNoTopics = errors.New("topic universe is empty")

type Policy string

const (
	PolicyRotate Policy = "rotate"
	PolicyRandom Policy = "random"
)

// DefaultTopics is the topic universe used when the config names none.
var DefaultTopics = map[string][]string{
	"indie games":        {"Stardew Valley", "Hollow Knight", "Undertale", "Hades", "Celeste"},
	"game development":   {"Unity", "Unreal Engine", "Godot"},
	"gaming culture":     {"Minecraft", "Fortnite", "Among Us", "The Legend of Zelda", "Dark Souls"},
	"open world":         {"The Witcher 3", "Red Dead Redemption 2", "Breath of the Wild", "Skyrim", "Elden Ring"},
	"sandbox":            {"Minecraft", "Terraria", "No Man's Sky", "Space Engineers", "Garry's Mod"},
	"action adventure":   {"God of War", "Horizon Zero Dawn", "Spider-Man", "Tomb Raider", "Uncharted", "God of War: Ragnarok"},
	"narrative games":    {"Life is Strange", "The Walking Dead", "Detroit: Become Human", "Firewatch", "What Remains of Edith Finch"},
	"survival":           {"Valheim", "The Forest", "Subnautica", "Don't Starve", "Rust"},
	"roguelike":          {"Hades", "Dead Cells", "Enter the Gungeon", "Risk of Rain 2", "Slay the Spire"},
	"puzzle platformer":  {"Portal", "Braid", "Inside", "Limbo", "Fez"},
	"simulation":         {"Rimworld", "Cities: Skylines", "Planet Coaster", "Two Point Hospital", "Factorio"},
	"retro":              {"Shovel Knight", "Hyper Light Drifter", "CrossCode", "Axiom Verge", "Octopath Traveler"},
	"farming sim":        {"Stardew Valley", "My Time at Portia", "Story of Seasons", "Farm Together", "Sun Haven"},
	"time loop":          {"Outer Wilds", "Deathloop", "12 Minutes", "Loop Hero", "Minit"},
	"social deduction":   {"Among Us", "Project Winter", "Town of Salem", "Secret Neighbor", "Goose Goose Duck"},
	"soulslike":          {"Dark Souls", "Bloodborne", "Nioh", "Mortal Shell", "Salt and Sanctuary"},
	"post apocalyptic":   {"Fallout", "Metro Exodus", "The Last of Us", "Days Gone", "Mad Max"},
	"cooking":            {"Overcooked", "Cooking Simulator", "Chef Life", "Cooking Mama", "Battle Chef Brigade"},
	"walking sim":        {"Gone Home", "Dear Esther", "The Stanley Parable", "Everybody's Gone to the Rapture", "The Vanishing of Ethan Carter"},
	"cyberpunk":          {"Cyberpunk 2077", "Ghostrunner", "The Ascent", "Cloudpunk", "Observer"},
	"space sandbox":      {"Kerbal Space Program", "Elite Dangerous", "Star Citizen", "Astroneer", "Space Engineers"},
	"visual novel":       {"Doki Doki Literature Club", "VA-11 Hall-A", "Phoenix Wright", "Steins;Gate", "Zero Escape"},
	"party games":        {"Jackbox Party Pack", "Fall Guys", "Ultimate Chicken Horse", "Moving Out", "Overcooked"},
	"episodic":           {"Life is Strange", "The Wolf Among Us", "Tales from the Borderlands", "Kentucky Route Zero", "Batman: The Telltale Series"},
	"physics sandbox":    {"Totally Accurate Battle Simulator", "Human: Fall Flat", "Gang Beasts", "Goat Simulator", "BeamNG.drive"},
	"point and click":    {"Monkey Island", "Grim Fandango", "Day of the Tentacle", "Sam & Max", "Thimbleweed Park"},
}

// Selection is what a cycle writes about.
type Selection struct {
	Topic string
	Games []string
	Phase string
}

type Selector struct {
	universe map[string][]string
	topics   []string // sorted, so rotation order is stable
	policy   Policy
	seed     int64
}

func New(universe map[string][]string, policy Policy, seed int64) (*Selector, error) {
	if len(universe) == 0 {
		return nil, &config.ConfigurationError{Field: "selector.topics", Reason: ErrNoTopics.Error(), Err: ErrNoTopics}
	}
	switch policy {
	case PolicyRotate, PolicyRandom:
	default:
		return nil, &config.ConfigurationError{Field: "selector.policy", Reason: fmt.Sprintf("unknown policy %q", policy)}
	}

	topics := make([]string, 0, len(universe))
	for t := range universe {
		topics = append(topics, t)
	}
	slices.Sort(topics)

	return &Selector{universe: universe, topics: topics, policy: policy, seed: seed}, nil
}

// Select picks a topic for the given cycle number. The phase is read from
// state and never advanced here. The same (state, cycle) always yields the
// same selection.
func (s *Selector) Select(state persona.State, cycle int) (Selection, error) {
	if len(s.topics) == 0 {
		return Selection{}, &config.ConfigurationError{Field: "selector.topics", Reason: ErrNoTopics.Error(), Err: ErrNoTopics}
	}
	if cycle < 0 {
		cycle = 0
	}

	var idx int
	switch s.policy {
	case PolicyRandom:
		r := rand.New(rand.NewSource(s.seed + int64(cycle)))
		idx = r.Intn(len(s.topics))
	default:
		idx = cycle % len(s.topics)
	}

	topic := s.topics[idx]
	return Selection{
		Topic: topic,
		Games: slices.Clone(s.universe[topic]),
		Phase: state.Phase,
	}, nil
}

func (s *Selector) Topics() []string {
	return slices.Clone(s.topics)
}
