package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wehabit/internal/model"
)

func (e *testEnv) remindAt(h *model.Habit, u *model.User, at, tz string) {
	e.t.Helper()
	on := true
	_, err := e.participants.Configure(e.ctx, h.ID, u.ID, ParticipantSettings{ReminderEnabled: &on, ReminderTime: &at, ReminderTZ: &tz})
	require.NoError(e.t, err)
}

func (e *testEnv) pass() int {
	e.t.Helper()
	n, err := e.reminders.Pass(e.ctx)
	require.NoError(e.t, err)
	return n
}

func TestReminderOncePerDay(t *testing.T) {
	e := newTestEnv(t)
	ann := e.user("Аня")
	h, err := e.habits.Create(e.ctx, ann.ID, HabitInput{Name: "Бег", Description: "5 км", Weekdays: []int{1, 3, 5}})
	require.NoError(t, err)
	e.complete(h, ann, "2025-03-08", "2025-03-09")
	e.remindAt(h, ann, "12:00", "")

	assert.Equal(t, 1, e.pass())
	sent := e.deliverer.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, ann.TelegramID, sent[0].ChatID)
	assert.Equal(t, "🔔 Пора выполнить привычку: <b>Бег</b>\n📝 5 км\n📅 Пн, Ср, Пт\n🔥 Серия: 2 дн.", sent[0].Text)
	assert.Equal(t, "2025-03-10", e.participant(h, ann).ReminderSentOn)

	assert.Equal(t, 0, e.pass(), "already sent today")

	e.now = e.now.Add(time.Minute)
	assert.Equal(t, 0, e.pass(), "minute has passed")

	e.now = testStart.Add(24 * time.Hour)
	assert.Equal(t, 1, e.pass(), "next day")
}

func TestReminderUsesParticipantTimezone(t *testing.T) {
	e := newTestEnv(t)
	ann, ben := e.user("Аня"), e.user("Бен")
	h := e.habit(ann, "Бег")
	e.join(h, ben)

	// 09:00 UTC is 10:00 in Berlin and 12:00 at the default UTC+3.
	e.remindAt(h, ben, "10:00", "Europe/Berlin")
	e.remindAt(h, ann, "10:00", "")

	assert.Equal(t, 1, e.pass())
	sent := e.deliverer.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, ben.TelegramID, sent[0].ChatID)
}

func TestReminderSkipsCompletedDay(t *testing.T) {
	e := newTestEnv(t)
	ann := e.user("Аня")
	h := e.habit(ann, "Бег")
	e.remindAt(h, ann, "12:00", "")
	e.complete(h, ann, "2025-03-10")

	assert.Equal(t, 0, e.pass())
	assert.Empty(t, e.deliverer.messages())
	assert.Empty(t, e.participant(h, ann).ReminderSentOn)
}

func TestReminderSkipsMetWeeklyGoal(t *testing.T) {
	e := newTestEnv(t)
	ann := e.user("Аня")
	once, err := e.habits.Create(e.ctx, ann.ID, HabitInput{Name: "Бассейн", WeeklyGoal: 1})
	require.NoError(t, err)
	twice, err := e.habits.Create(e.ctx, ann.ID, HabitInput{Name: "Йога", WeeklyGoal: 2})
	require.NoError(t, err)

	e.complete(once, ann, "2025-03-10")
	e.complete(twice, ann, "2025-03-10")
	e.remindAt(once, ann, "12:00", "")
	e.remindAt(twice, ann, "12:00", "")

	// Wednesday of the same ISO week.
	e.now = time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, 1, e.pass())
	sent := e.deliverer.messages()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Text, "<b>Йога</b>")
	assert.Contains(t, sent[0].Text, "2 из 7 дней в неделю")
}

func TestReminderRespectsUserPreference(t *testing.T) {
	e := newTestEnv(t)
	ann := e.user("Аня")
	h := e.habit(ann, "Бег")
	e.remindAt(h, ann, "12:00", "")
	require.NoError(t, e.users.SetPreferences(e.ctx, ann.ID, false, true))

	assert.Equal(t, 0, e.pass())

	assert.ErrorIs(t, e.users.SetPreferences(e.ctx, uuid.New(), true, true), ErrNotFound)
}

func TestReminderDeliveryFailureIsIsolated(t *testing.T) {
	e := newTestEnv(t)
	ann, ben := e.user("Аня"), e.user("Бен")
	h := e.habit(ann, "Бег")
	e.join(h, ben)
	e.remindAt(h, ann, "12:00", "")
	e.remindAt(h, ben, "12:00", "")
	e.deliverer.fail = []error{ErrDelivery}

	assert.Equal(t, 1, e.pass())
	assert.Len(t, e.deliverer.messages(), 1)
}
