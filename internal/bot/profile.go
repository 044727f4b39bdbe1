package bot

import (
	"fmt"
	"strings"
	"time"
)

// Difficulty is the strategy tier of an opponent.
type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Expert Difficulty = "expert"
)

// ParseDifficulty accepts the tier names plus "hard" as an alias of expert.
func ParseDifficulty(s string) (Difficulty, error) {
	switch strings.ToLower(s) {
	case "easy":
		return Easy, nil
	case "medium":
		return Medium, nil
	case "expert", "hard":
		return Expert, nil
	}
	return "", fmt.Errorf("unknown difficulty %q", s)
}

// Profile is a named opponent: a difficulty tier, how long it pretends to
// think and how often it throws away its computed move.
type Profile struct {
	Name       string        `json:"name"`
	Difficulty Difficulty    `json:"difficulty"`
	ThinkMin   time.Duration `json:"think_min"`
	ThinkMax   time.Duration `json:"think_max"`
	ErrorRate  float64       `json:"error_rate"`
}

// Validate checks ranges that the policy and controller rely on.
func (p Profile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("profile name is required")
	}
	if _, err := ParseDifficulty(string(p.Difficulty)); err != nil {
		return fmt.Errorf("profile %s: %w", p.Name, err)
	}
	if p.ThinkMin < 0 || p.ThinkMax < p.ThinkMin {
		return fmt.Errorf("profile %s: invalid thinking range [%s, %s]", p.Name, p.ThinkMin, p.ThinkMax)
	}
	if p.ErrorRate < 0 || p.ErrorRate > 1 {
		return fmt.Errorf("profile %s: error rate %v outside [0,1]", p.Name, p.ErrorRate)
	}
	return nil
}

// ThinkingTime draws a delay uniformly from the profile's thinking range.
func (p Profile) ThinkingTime(rng Rand) time.Duration {
	span := p.ThinkMax - p.ThinkMin
	if span <= 0 {
		return p.ThinkMin
	}
	return p.ThinkMin + time.Duration(rng.Float64()*float64(span))
}

var (
	Rookie = Profile{
		Name:       "Rookie",
		Difficulty: Easy,
		ThinkMin:   400 * time.Millisecond,
		ThinkMax:   900 * time.Millisecond,
		ErrorRate:  0.25,
	}
	Tactician = Profile{
		Name:       "Tactician",
		Difficulty: Medium,
		ThinkMin:   500 * time.Millisecond,
		ThinkMax:   1100 * time.Millisecond,
		ErrorRate:  0.10,
	}
	Grandmaster = Profile{
		Name:       "Grandmaster",
		Difficulty: Expert,
		ThinkMin:   700 * time.Millisecond,
		ThinkMax:   1500 * time.Millisecond,
		ErrorRate:  0,
	}
)

// Profiles is an ordered set of opponent tiers addressable by name.
type Profiles struct {
	list []Profile
}

// DefaultProfiles returns the built-in tiers.
func DefaultProfiles() *Profiles {
	return &Profiles{list: []Profile{Rookie, Tactician, Grandmaster}}
}

// NewProfiles validates the given tiers. Names must be unique.
func NewProfiles(list ...Profile) (*Profiles, error) {
	if len(list) == 0 {
		return nil, fmt.Errorf("at least one profile is required")
	}
	seen := make(map[string]bool, len(list))
	for _, p := range list {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		key := strings.ToLower(p.Name)
		if seen[key] {
			return nil, fmt.Errorf("duplicate profile %q", p.Name)
		}
		seen[key] = true
	}
	return &Profiles{list: append([]Profile(nil), list...)}, nil
}

// List returns the tiers in their configured order.
func (ps *Profiles) List() []Profile {
	return append([]Profile(nil), ps.list...)
}

// Default is the first tier.
func (ps *Profiles) Default() Profile {
	return ps.list[0]
}

// Lookup finds a tier by name (case-insensitive) or, failing that, by
// difficulty, so that older clients sending "easy"/"hard" still resolve.
func (ps *Profiles) Lookup(name string) (Profile, bool) {
	for _, p := range ps.list {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	if d, err := ParseDifficulty(name); err == nil {
		for _, p := range ps.list {
			if p.Difficulty == d {
				return p, true
			}
		}
	}
	return Profile{}, false
}
