package service

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wehabit/internal/model"
)

func TestEventTemplatesGolden(t *testing.T) {
	g := goldie.New(t)
	habit := &model.Habit{Name: "Зарядка", Description: "10 минут <утром>", DaysOfWeek: "1,3,5"}
	msg := EventMessage{
		Actor:            model.User{FirstName: "Аня"},
		Habit:            habit,
		AchievementTitle: "Держи серию в привычке",
		Tier:             2,
	}
	for _, kind := range model.EventKinds {
		t.Run(string(kind), func(t *testing.T) {
			m := msg
			if kind == model.EventAchievement {
				m.Habit = nil
			}
			text, err := RenderEvent(kind, m)
			require.NoError(t, err)
			g.Assert(t, "event_"+string(kind), []byte(text))
		})
	}
}

func TestReminderGolden(t *testing.T) {
	goal := 3
	habit := model.Habit{Name: "Чтение & заметки", WeeklyGoalDays: &goal}
	goldie.New(t).Assert(t, "reminder", []byte(RenderReminder(habit, 4)))
}

func TestRenderEventUnknownKind(t *testing.T) {
	_, err := RenderEvent("poked", EventMessage{})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestScheduleText(t *testing.T) {
	assert.Equal(t, "каждый день", ScheduleText(model.Schedule{Weekdays: []int{1, 2, 3, 4, 5, 6, 7}}))
	assert.Equal(t, "Сб, Вс", ScheduleText(model.Schedule{Weekdays: []int{6, 7}}))
	assert.Equal(t, "2 из 7 дней в неделю", ScheduleText(model.Schedule{WeeklyGoal: 2}))
	assert.Equal(t, "без расписания", ScheduleText(model.Schedule{}))
}

func TestBadge(t *testing.T) {
	assert.Equal(t, "🥉", Badge(1))
	assert.Equal(t, "🥈", Badge(2))
	assert.Equal(t, "💎", Badge(3))
	assert.Equal(t, "🏅", Badge(4))
}

func TestAchievementWithoutTitle(t *testing.T) {
	text, err := RenderEvent(model.EventAchievement, EventMessage{Actor: model.User{Username: "ben_k"}, Tier: 1})
	require.NoError(t, err)
	assert.Equal(t, "🏆 <b>ben_k</b> получил(а) новое достижение! 🥉", text)
}
