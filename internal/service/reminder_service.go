package service

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"wehabit/internal/metrics"
	"wehabit/internal/model"
	"wehabit/internal/repository"
	"wehabit/internal/stats"
)

// ReminderService sends the per-participant habit reminders.
type ReminderService struct {
	store     *repository.Store
	deliverer Deliverer
	button    *LinkButton
	loc       *time.Location
	clock     Clock
	metrics   *metrics.Metrics
	log       *log.Logger
}

// NewReminderService builds the reminder pass. loc is used for participants without a timezone.
func NewReminderService(store *repository.Store, deliverer Deliverer, button *LinkButton, loc *time.Location, clock Clock, m *metrics.Metrics, l *log.Logger) *ReminderService {
	return &ReminderService{store: store, deliverer: deliverer, button: button, loc: loc, clock: clock, metrics: m, log: l}
}

// Pass sends every reminder due at the current minute and reports how many were sent.
// A failing participant is logged and skipped.
func (s *ReminderService) Pass(ctx context.Context) (int, error) {
	candidates, err := s.store.Participants.ListReminderCandidates(ctx)
	if err != nil {
		return 0, fmt.Errorf("list reminder candidates: %w", err)
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	userIDs := make([]uuid.UUID, 0, len(candidates))
	habitIDs := make([]uuid.UUID, 0, len(candidates))
	for _, p := range candidates {
		userIDs = append(userIDs, p.UserID)
		habitIDs = append(habitIDs, p.HabitID)
	}
	users, err := s.store.Users.FindByIDs(ctx, userIDs)
	if err != nil {
		return 0, fmt.Errorf("load users: %w", err)
	}
	habits, err := s.store.Habits.FindByIDs(ctx, habitIDs)
	if err != nil {
		return 0, fmt.Errorf("load habits: %w", err)
	}

	now := s.clock()
	sent := 0
	for _, p := range candidates {
		if ctx.Err() != nil {
			return sent, ctx.Err()
		}
		user, ok := users[p.UserID]
		if !ok || !user.HabitRemindersEnabled {
			continue
		}
		habit, ok := habits[p.HabitID]
		if !ok {
			continue
		}
		ok, err := s.remind(ctx, p, user, habit, now)
		if err != nil {
			s.count("failed")
			s.log.Warn("reminder failed", "habit", p.HabitID, "user", p.UserID, "err", err)
			continue
		}
		if ok {
			sent++
		}
	}
	return sent, nil
}

func (s *ReminderService) remind(ctx context.Context, p model.Participant, user model.User, habit model.Habit, now time.Time) (bool, error) {
	local := now.In(s.location(p))
	hour, minute, err := ParseClock(p.ReminderTime)
	if err != nil {
		return false, err
	}
	if local.Hour() != hour || local.Minute() != minute {
		return false, nil
	}
	day := model.DateOf(local)
	if p.ReminderSentOn == day {
		return false, nil
	}

	raw, err := s.store.Completions.Dates(ctx, p.HabitID, p.UserID)
	if err != nil {
		return false, fmt.Errorf("load completions: %w", err)
	}
	for _, d := range raw {
		if d == day {
			s.count("skipped")
			return false, nil
		}
	}
	dates, err := stats.ParseDates(raw)
	if err != nil {
		return false, err
	}
	if goal := habit.Schedule().WeeklyGoal; goal > 0 && stats.WeekCount(dates, stats.Civil(local)) >= goal {
		s.count("skipped")
		return false, nil
	}

	text := RenderReminder(habit, stats.IndividualStreak(dates, stats.Window{}))
	if err := s.deliverer.Deliver(ctx, user.TelegramID, text, s.button); err != nil {
		return false, err
	}
	if err := s.store.Participants.MarkReminderSent(ctx, p.ID, day); err != nil {
		return true, err
	}
	s.count("sent")
	s.log.Debug("reminder sent", "habit", p.HabitID, "user", p.UserID, "date", day)
	return true, nil
}

func (s *ReminderService) location(p model.Participant) *time.Location {
	if p.ReminderTZ == "" {
		return s.loc
	}
	loc, err := time.LoadLocation(p.ReminderTZ)
	if err != nil {
		s.log.Warn("unknown reminder timezone, using default", "tz", p.ReminderTZ, "user", p.UserID)
		return s.loc
	}
	return loc
}

func (s *ReminderService) count(outcome string) {
	if s.metrics != nil {
		s.metrics.Reminders.WithLabelValues(outcome).Inc()
	}
}
