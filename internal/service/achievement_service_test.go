package service

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wehabit/internal/model"
	"wehabit/internal/repository"
)

func achievementEvents(e *testEnv, recipient, actor *model.User) []model.FeedEvent {
	var out []model.FeedEvent
	for _, ev := range e.events(recipient, model.EventAchievement) {
		if ev.ActorID == actor.ID {
			out = append(out, ev)
		}
	}
	return out
}

func TestFriendsAchievementUnlocksOnce(t *testing.T) {
	e := newTestEnv(t)
	ann := e.user("Аня")
	friends := []*model.User{e.user("Бен"), e.user("Сид"), e.user("Дина")}
	for _, f := range friends {
		e.befriend(ann, f)
	}

	list, err := e.achievements.List(e.ctx, ann.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, model.AchievementFriendsCount, list[0].Type)
	assert.Equal(t, 1, list[0].Tier)

	var meta map[string]int
	require.NoError(t, json.Unmarshal([]byte(list[0].Metadata), &meta))
	assert.Equal(t, 3, meta["goal"])
	assert.Equal(t, 3, meta["value"])

	// One event for Аня herself and one per friend.
	assert.Len(t, achievementEvents(e, ann, ann), 1)
	for _, f := range friends {
		assert.Len(t, achievementEvents(e, f, ann), 1, f.FirstName)
	}

	unlocked, err := e.achievements.EvaluateAll(e.ctx, ann.ID)
	require.NoError(t, err)
	assert.Empty(t, unlocked)
	list, err = e.achievements.List(e.ctx, ann.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Len(t, achievementEvents(e, ann, ann), 1)
}

func TestCompletionAchievements(t *testing.T) {
	e := newTestEnv(t)
	ann := e.user("Аня")
	h := e.habit(ann, "Бег")

	e.complete(h, ann, "2025-03-04", "2025-03-05", "2025-03-06", "2025-03-07")
	list, err := e.achievements.List(e.ctx, ann.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	e.complete(h, ann, "2025-03-08")
	list, err = e.achievements.List(e.ctx, ann.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, model.AchievementStreak, list[0].Type)

	e.complete(h, ann, "2025-03-09", "2025-03-10")
	list, err = e.achievements.List(e.ctx, ann.ID)
	require.NoError(t, err)
	types := map[string]int{}
	for _, a := range list {
		types[a.Type] = a.Tier
	}
	assert.Equal(t, map[string]int{model.AchievementStreak: 1, model.AchievementTotalDays: 1}, types)
}

func TestTotalDaysCountsDistinctDaysAcrossHabits(t *testing.T) {
	e := newTestEnv(t)
	ann := e.user("Аня")
	run, read := e.habit(ann, "Бег"), e.habit(ann, "Чтение")

	e.complete(run, ann, "2025-03-01", "2025-03-03")
	e.complete(read, ann, "2025-03-01", "2025-03-03", "2025-03-05")

	err := e.store.Transaction(e.ctx, func(tx *repository.Store) error {
		n, err := e.achievements.Metric(e.ctx, tx, ann.ID, model.AchievementTotalDays)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		n, err = e.achievements.Metric(e.ctx, tx, ann.ID, model.AchievementStreak)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		_, err = e.achievements.Metric(e.ctx, tx, ann.ID, "unknown")
		assert.ErrorIs(t, err, ErrValidation)
		return nil
	})
	require.NoError(t, err)
}

func TestHabitInvitesAchievement(t *testing.T) {
	e := newTestEnv(t)
	ann, ben := e.user("Аня"), e.user("Бен")
	h := e.habit(ann, "Бег", ben)

	list, err := e.achievements.List(e.ctx, ann.ID)
	require.NoError(t, err)
	assert.Empty(t, list, "a pending invite does not count")

	_, err = e.participants.Accept(e.ctx, h.ID, ben.ID, "")
	require.NoError(t, err)

	list, err = e.achievements.List(e.ctx, ann.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, model.AchievementHabitInvites, list[0].Type)
	assert.Equal(t, 1, list[0].Tier)
}
