package safety

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"github.com/xiaot623/dailymission/internal/domain"
	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRules []byte

// Tier is one crisis level with its keywords.
type Tier struct {
	Level    domain.CrisisLevel  `yaml:"level"`
	Action   domain.CrisisAction `yaml:"action"`
	Keywords []string            `yaml:"keywords"`
}

// Rules is the classifier's policy data.
type Rules struct {
	Tiers     []Tier            `yaml:"tiers"`
	Helplines []domain.Helpline `yaml:"helplines"`
}

// DefaultRules returns the built-in rule set.
func DefaultRules() (*Rules, error) {
	return ParseRules(defaultRules)
}

// LoadRules reads rules from a YAML file. An empty path yields the defaults.
func LoadRules(path string) (*Rules, error) {
	if path == "" {
		return DefaultRules()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read safety rules: %w", err)
	}
	return ParseRules(data)
}

// ParseRules decodes and validates a YAML rule set.
func ParseRules(data []byte) (*Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse safety rules: %w", err)
	}
	if err := r.validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *Rules) validate() error {
	seen := make(map[domain.CrisisLevel]bool, 3)
	for _, t := range r.Tiers {
		if t.Level < domain.CrisisLevelBaseline || t.Level > domain.CrisisLevelCritical {
			return fmt.Errorf("safety rules: level %d out of range", t.Level)
		}
		if seen[t.Level] {
			return fmt.Errorf("safety rules: level %d defined twice", t.Level)
		}
		seen[t.Level] = true
		if t.Action == "" {
			return fmt.Errorf("safety rules: level %d has no action", t.Level)
		}
	}
	for _, l := range []domain.CrisisLevel{domain.CrisisLevelBaseline, domain.CrisisLevelElevated, domain.CrisisLevelCritical} {
		if !seen[l] {
			return fmt.Errorf("safety rules: level %d missing", l)
		}
	}
	if len(r.Helplines) == 0 {
		return fmt.Errorf("safety rules: critical level needs at least one helpline")
	}
	return nil
}

// sortedTiers returns the tiers from most to least severe.
func (r *Rules) sortedTiers() []Tier {
	out := make([]Tier, len(r.Tiers))
	copy(out, r.Tiers)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Level > out[j].Level })
	return out
}
