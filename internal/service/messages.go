package service

import (
	"fmt"
	"html"
	"strings"

	"wehabit/internal/model"
)

// LinkButton is an optional button attached to an outgoing message.
type LinkButton struct {
	Text string
	URL  string
}

const openAppText = "Открыть приложение"

var weekdayNames = [...]string{"", "Пн", "Вт", "Ср", "Чт", "Пт", "Сб", "Вс"}

// EventMessage holds what a feed event template needs.
type EventMessage struct {
	Actor model.User
	Habit *model.Habit
	// AchievementTitle and Tier are set for achievement events.
	AchievementTitle string
	Tier             int
}

type eventTemplate func(m EventMessage) string

// eventTemplates must cover every model.EventKind.
var eventTemplates = map[model.EventKind]eventTemplate{
	model.EventCompleted: func(m EventMessage) string {
		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("🎉 <b>%s</b> выполнил(а) привычку%s!", actorName(m), habitTitle(m.Habit)))
		if m.Habit != nil {
			writeHabitDetails(&sb, *m.Habit)
		}
		return sb.String()
	},
	model.EventJoined: func(m EventMessage) string {
		return fmt.Sprintf("👋 <b>%s</b> присоединился(лась) к вашей привычке%s.", actorName(m), habitTitle(m.Habit))
	},
	model.EventDeclined: func(m EventMessage) string {
		return fmt.Sprintf("🙅 <b>%s</b> отказался(лась) участвовать в вашей привычке%s.", actorName(m), habitTitle(m.Habit))
	},
	model.EventLeft: func(m EventMessage) string {
		return fmt.Sprintf("🚪 <b>%s</b> вышел(ла) из вашей привычки%s.", actorName(m), habitTitle(m.Habit))
	},
	model.EventRemoved: func(m EventMessage) string {
		return fmt.Sprintf("❌ <b>%s</b> удалил(а) вас из своей привычки%s.", actorName(m), habitTitle(m.Habit))
	},
	model.EventInvited: func(m EventMessage) string {
		return fmt.Sprintf("📨 <b>%s</b> пригласил(а) вас в привычку%s.", actorName(m), habitTitle(m.Habit))
	},
	model.EventAchievement: func(m EventMessage) string {
		title := strings.TrimSpace(m.AchievementTitle)
		if title == "" {
			return fmt.Sprintf("🏆 <b>%s</b> получил(а) новое достижение! %s", actorName(m), Badge(m.Tier))
		}
		return fmt.Sprintf("🏆 <b>%s</b> получил(а) достижение «%s» %s", actorName(m), html.EscapeString(title), Badge(m.Tier))
	},
}

// RenderEvent formats the notification text of a feed event.
func RenderEvent(kind model.EventKind, m EventMessage) (string, error) {
	tpl, ok := eventTemplates[kind]
	if !ok {
		return "", fmt.Errorf("%w: no template for event kind %q", ErrValidation, kind)
	}
	return tpl(m), nil
}

// RenderReminder formats the reminder for habit with the participant's current streak.
func RenderReminder(habit model.Habit, streak int) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🔔 Пора выполнить привычку: <b>%s</b>", html.EscapeString(strings.TrimSpace(habit.Name))))
	writeHabitDetails(&sb, habit)
	if streak > 0 {
		sb.WriteString(fmt.Sprintf("\n🔥 Серия: %d дн.", streak))
	}
	return sb.String()
}

// ScheduleText describes a schedule in words.
func ScheduleText(s model.Schedule) string {
	switch {
	case len(s.Weekdays) == 7:
		return "каждый день"
	case len(s.Weekdays) > 0:
		names := make([]string, 0, len(s.Weekdays))
		for _, d := range s.Weekdays {
			if d >= 1 && d <= 7 {
				names = append(names, weekdayNames[d])
			}
		}
		return strings.Join(names, ", ")
	case s.WeeklyGoal > 0:
		return fmt.Sprintf("%d из 7 дней в неделю", s.WeeklyGoal)
	default:
		return "без расписания"
	}
}

// Badge is the medal shown for an achievement tier.
func Badge(tier int) string {
	switch tier {
	case 1:
		return "🥉"
	case 2:
		return "🥈"
	case 3:
		return "💎"
	default:
		return "🏅"
	}
}

func writeHabitDetails(sb *strings.Builder, habit model.Habit) {
	if d := strings.TrimSpace(habit.Description); d != "" {
		sb.WriteString(fmt.Sprintf("\n📝 %s", html.EscapeString(d)))
	}
	sb.WriteString(fmt.Sprintf("\n📅 %s", ScheduleText(habit.Schedule())))
}

func actorName(m EventMessage) string {
	return html.EscapeString(strings.TrimSpace(m.Actor.DisplayName()))
}

func habitTitle(h *model.Habit) string {
	if h == nil {
		return ""
	}
	return fmt.Sprintf(" «<b>%s</b>»", html.EscapeString(strings.TrimSpace(h.Name)))
}
