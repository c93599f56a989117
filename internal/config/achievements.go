package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"wehabit/internal/model"
)

//go:embed achievements.yaml
var defaultAchievements []byte

// Threshold is one {type, tier, goal} row of the achievement table.
type Threshold struct {
	Type  string
	Title string
	Tier  int
	Goal  int
}

// AchievementTable is the flattened, validated achievement table.
type AchievementTable struct {
	Thresholds []Threshold
	titles     map[string]string
}

type achievementFile struct {
	Achievements []struct {
		Type  string `yaml:"type"`
		Title string `yaml:"title"`
		Tiers []int  `yaml:"tiers"`
	} `yaml:"achievements"`
}

// LoadAchievements reads the table from path, or the embedded default when path is empty.
func LoadAchievements(path string) (AchievementTable, error) {
	data := defaultAchievements
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return AchievementTable{}, fmt.Errorf("read achievements: %w", err)
		}
		data = raw
	}
	return ParseAchievements(data)
}

// ParseAchievements decodes a YAML table. Types must be ones the engine can
// measure; tier goals must be positive and strictly increasing.
func ParseAchievements(data []byte) (AchievementTable, error) {
	var file achievementFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return AchievementTable{}, fmt.Errorf("decode achievements: %w", err)
	}

	table := AchievementTable{titles: make(map[string]string)}
	for _, a := range file.Achievements {
		if a.Type == "" {
			return AchievementTable{}, fmt.Errorf("achievement without type")
		}
		if !model.KnownAchievementType(a.Type) {
			return AchievementTable{}, fmt.Errorf("achievement %q has no metric", a.Type)
		}
		if _, dup := table.titles[a.Type]; dup {
			return AchievementTable{}, fmt.Errorf("achievement %q declared twice", a.Type)
		}
		prev := 0
		for i, goal := range a.Tiers {
			if goal <= prev {
				return AchievementTable{}, fmt.Errorf("achievement %q: tier %d goal %d must exceed %d", a.Type, i+1, goal, prev)
			}
			prev = goal
			table.Thresholds = append(table.Thresholds, Threshold{Type: a.Type, Title: a.Title, Tier: i + 1, Goal: goal})
		}
		table.titles[a.Type] = a.Title
	}
	return table, nil
}

// Title returns the human-readable name of an achievement type.
func (t AchievementTable) Title(kind string) string {
	if title, ok := t.titles[kind]; ok && title != "" {
		return title
	}
	return kind
}

// ForType returns the thresholds of one type in tier order.
func (t AchievementTable) ForType(kind string) []Threshold {
	var out []Threshold
	for _, th := range t.Thresholds {
		if th.Type == kind {
			out = append(out, th)
		}
	}
	return out
}

// Types lists declared achievement types in table order.
func (t AchievementTable) Types() []string {
	var out []string
	seen := make(map[string]bool)
	for _, th := range t.Thresholds {
		if !seen[th.Type] {
			seen[th.Type] = true
			out = append(out, th.Type)
		}
	}
	return out
}
