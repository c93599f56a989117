package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wehabit/internal/model"
)

func TestHabitStats(t *testing.T) {
	e := newTestEnv(t)
	ann, ben := e.user("Аня"), e.user("Бен")
	h, err := e.habits.Create(e.ctx, ann.ID, HabitInput{Name: "Бег", Weekdays: []int{1, 3, 5}})
	require.NoError(t, err)
	e.join(h, ben)

	e.complete(h, ann, "2025-02-01", "2025-03-05", "2025-03-06", "2025-03-07", "2025-03-08", "2025-03-10")
	e.complete(h, ben, "2025-03-06", "2025-03-07", "2025-03-08")

	st, err := e.stats.HabitStats(e.ctx, h.ID, ann.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultStatsDays, st.PeriodDays)
	assert.Equal(t, 5, st.TotalCompletions)
	assert.Equal(t, 4, st.CurrentStreak)
	assert.Equal(t, 3, st.JointStreak)
	assert.Equal(t, 2, st.AboveNormCount, "thursday and saturday")
	require.Len(t, st.DailyCompletion, 5)
	assert.Equal(t, "2025-03-05", st.DailyCompletion[0].Date)

	st, err = e.stats.HabitStats(e.ctx, h.ID, ann.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, st.TotalCompletions)
	assert.Equal(t, 2, st.CurrentStreak)
	assert.Equal(t, 2, st.JointStreak)
	assert.Equal(t, 1, st.AboveNormCount)

	st, err = e.stats.HabitStats(e.ctx, h.ID, ben.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, st.TotalCompletions)
	assert.Equal(t, 3, st.CurrentStreak)
}

func TestHabitStatsWeeklyGoal(t *testing.T) {
	e := newTestEnv(t)
	ann := e.user("Аня")
	h, err := e.habits.Create(e.ctx, ann.ID, HabitInput{Name: "Бассейн", WeeklyGoal: 2})
	require.NoError(t, err)
	// Three days in the week of March 3, one in the week of March 10.
	e.complete(h, ann, "2025-03-03", "2025-03-04", "2025-03-06", "2025-03-10")

	st, err := e.stats.HabitStats(e.ctx, h.ID, ann.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, st.TotalCompletions)
	assert.Equal(t, 1, st.AboveNormCount)
	assert.Equal(t, 2, st.CurrentStreak)
	assert.Equal(t, 2, st.JointStreak, "a single participant has no partners to wait for")
}

func TestHabitStatsAccess(t *testing.T) {
	e := newTestEnv(t)
	ann, ben, eve := e.user("Аня"), e.user("Бен"), e.user("Ева")
	h := e.habit(ann, "Бег", ben)

	_, err := e.stats.HabitStats(e.ctx, h.ID, ben.ID, 0)
	assert.NoError(t, err, "pending invitees may look")

	_, err = e.stats.HabitStats(e.ctx, h.ID, eve.ID, 0)
	assert.ErrorIs(t, err, ErrPermission)

	_, err = e.stats.HabitStats(e.ctx, uuid.New(), ann.ID, 0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestParticipantRoster(t *testing.T) {
	e := newTestEnv(t)
	ann, ben, eve := e.user("Аня"), e.user("Бен"), e.user("Ева")
	h := e.habit(ann, "Бег")
	e.join(h, ben)
	_, err := e.participants.Invite(e.ctx, h.ID, ann.ID, []uuid.UUID{eve.ID})
	require.NoError(t, err)

	e.complete(h, ann, "2025-01-01", "2025-01-02", "2025-01-03")
	e.complete(h, ben, "2025-03-10")

	roster, err := e.stats.Participants(e.ctx, h.ID)
	require.NoError(t, err)
	require.Len(t, roster, 3)

	assert.Equal(t, ann.ID, roster[0].UserID)
	assert.True(t, roster[0].IsOwner)
	assert.Equal(t, ann.DisplayName(), roster[0].DisplayName)
	assert.Equal(t, 3, roster[0].Streak, "roster streaks are not windowed")

	byUser := map[uuid.UUID]ParticipantView{}
	for _, v := range roster[1:] {
		assert.False(t, v.IsOwner)
		byUser[v.UserID] = v
	}
	assert.Equal(t, model.StatusAccepted, byUser[ben.ID].Status)
	assert.Equal(t, 1, byUser[ben.ID].Streak)
	assert.Equal(t, model.StatusPending, byUser[eve.ID].Status)
	assert.Zero(t, byUser[eve.ID].Streak)
	assert.Empty(t, byUser[eve.ID].Color)

	_, err = e.stats.Participants(e.ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}
