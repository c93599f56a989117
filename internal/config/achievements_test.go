package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultAchievementTable(t *testing.T) {
	table, err := LoadAchievements("")
	require.NoError(t, err)

	assert.Equal(t, []string{"total_days", "friends_count", "streak", "habit_invites"}, table.Types())
	assert.Len(t, table.Thresholds, 12)

	goals := func(kind string) []int {
		var out []int
		for _, th := range table.ForType(kind) {
			out = append(out, th.Goal)
		}
		return out
	}
	assert.Equal(t, []int{7, 14, 21}, goals("total_days"))
	assert.Equal(t, []int{3, 7, 10}, goals("friends_count"))
	assert.Equal(t, []int{5, 15, 30}, goals("streak"))
	assert.Equal(t, []int{1, 3, 5}, goals("habit_invites"))

	streak := table.ForType("streak")
	assert.Equal(t, 1, streak[0].Tier)
	assert.Equal(t, 3, streak[2].Tier)
	assert.Equal(t, "Держи серию в привычке", table.Title("streak"))
	assert.Equal(t, "unknown", table.Title("unknown"))
}

func TestLoadAchievementsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "achievements.yaml")
	data := "achievements:\n  - type: streak\n    title: Серия\n    tiers: [2, 4]\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	table, err := LoadAchievements(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"streak"}, table.Types())
	assert.Empty(t, table.ForType("total_days"))

	_, err = LoadAchievements(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParseAchievementsRejects(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"non monotonic tiers", "achievements:\n  - type: streak\n    tiers: [5, 5, 30]\n"},
		{"decreasing tiers", "achievements:\n  - type: streak\n    tiers: [15, 5]\n"},
		{"zero goal", "achievements:\n  - type: streak\n    tiers: [0, 5]\n"},
		{"missing type", "achievements:\n  - title: x\n    tiers: [1]\n"},
		{"duplicate type", "achievements:\n  - type: streak\n    tiers: [1]\n  - type: streak\n    tiers: [2]\n"},
		{"type without metric", "achievements:\n  - type: marathons\n    tiers: [1, 2]\n"},
		{"unknown field", "achievements:\n  - type: streak\n    goals: [1]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseAchievements([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}
