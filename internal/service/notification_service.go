package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"wehabit/internal/config"
	"wehabit/internal/metrics"
	"wehabit/internal/model"
	"wehabit/internal/repository"
)

// Deliverer pushes a message to a chat. Transient failures wrap ErrDelivery;
// any other error is treated as permanent.
type Deliverer interface {
	Deliver(ctx context.Context, chatID int64, text string, button *LinkButton) error
}

// DeliveryConfig tunes the feed-delivery pass.
type DeliveryConfig struct {
	AppURL      string
	Batch       int
	MaxAttempts int
	RetryBase   time.Duration
	RetryMax    time.Duration
	// Retention is how long feed events are kept by the cleanup sweep.
	Retention time.Duration
}

func (c DeliveryConfig) withDefaults() DeliveryConfig {
	if c.Batch <= 0 {
		c.Batch = 200
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.RetryBase <= 0 {
		c.RetryBase = time.Minute
	}
	if c.RetryMax < c.RetryBase {
		c.RetryMax = time.Hour
	}
	if c.Retention <= 0 {
		c.Retention = 14 * 24 * time.Hour
	}
	return c
}

// Button returns the "open app" button, or nil without an app URL.
func (c DeliveryConfig) Button() *LinkButton {
	if c.AppURL == "" {
		return nil
	}
	return &LinkButton{Text: openAppText, URL: c.AppURL}
}

// NotificationService runs the poll cycle: reminders first, then pending feed deliveries.
type NotificationService struct {
	store     *repository.Store
	deliverer Deliverer
	reminders *ReminderService
	table     config.AchievementTable
	cfg       DeliveryConfig
	loc       *time.Location
	clock     Clock
	metrics   *metrics.Metrics
	log       *log.Logger
}

func NewNotificationService(
	store *repository.Store,
	deliverer Deliverer,
	reminders *ReminderService,
	table config.AchievementTable,
	cfg DeliveryConfig,
	loc *time.Location,
	clock Clock,
	m *metrics.Metrics,
	l *log.Logger,
) *NotificationService {
	return &NotificationService{
		store:     store,
		deliverer: deliverer,
		reminders: reminders,
		table:     table,
		cfg:       cfg.withDefaults(),
		loc:       loc,
		clock:     clock,
		metrics:   m,
		log:       l,
	}
}

// RunCycle performs one poll cycle. Errors of one pass do not prevent the other.
func (s *NotificationService) RunCycle(ctx context.Context) {
	start := time.Now()
	if n, err := s.reminders.Pass(ctx); err != nil {
		s.log.Error("reminder pass failed", "err", err)
	} else if n > 0 {
		s.log.Info("reminders sent", "count", n)
	}
	if n, err := s.DeliveryPass(ctx); err != nil {
		s.log.Error("delivery pass failed", "err", err)
	} else if n > 0 {
		s.log.Info("feed events processed", "count", n)
	}
	if s.metrics != nil {
		s.metrics.CycleDuration.Observe(time.Since(start).Seconds())
	}
}

type deliveryLookup struct {
	users        map[uuid.UUID]model.User
	habits       map[uuid.UUID]model.Habit
	achievements map[uuid.UUID]model.Achievement
}

// DeliveryPass attempts every due feed event once and reports how many were processed.
func (s *NotificationService) DeliveryPass(ctx context.Context) (int, error) {
	now := s.clock().UTC()
	events, err := s.store.Feed.ListDue(ctx, now, s.cfg.Batch)
	if err != nil {
		return 0, fmt.Errorf("list due events: %w", err)
	}
	if len(events) == 0 {
		return 0, nil
	}
	lookup, err := s.load(ctx, events)
	if err != nil {
		return 0, err
	}

	processed := 0
	for i := range events {
		if ctx.Err() != nil {
			return processed, ctx.Err()
		}
		ev := &events[i]
		s.attempt(ctx, ev, lookup, now)
		if err := s.store.Feed.UpdateDelivery(ctx, ev); err != nil {
			s.log.Error("update delivery state", "event", ev.ID, "err", err)
			continue
		}
		if s.metrics != nil {
			s.metrics.Deliveries.WithLabelValues(string(ev.State)).Inc()
		}
		processed++
	}
	return processed, nil
}

func (s *NotificationService) load(ctx context.Context, events []model.FeedEvent) (deliveryLookup, error) {
	var userIDs, habitIDs, achievementIDs []uuid.UUID
	for _, ev := range events {
		userIDs = append(userIDs, ev.RecipientID, ev.ActorID)
		if ev.HabitID != nil {
			habitIDs = append(habitIDs, *ev.HabitID)
		}
		if ev.AchievementID != nil {
			achievementIDs = append(achievementIDs, *ev.AchievementID)
		}
	}
	var (
		l   deliveryLookup
		err error
	)
	if l.users, err = s.store.Users.FindByIDs(ctx, userIDs); err != nil {
		return l, fmt.Errorf("load users: %w", err)
	}
	if l.habits, err = s.store.Habits.FindByIDs(ctx, habitIDs); err != nil {
		return l, fmt.Errorf("load habits: %w", err)
	}
	if l.achievements, err = s.store.Achievements.FindByIDs(ctx, achievementIDs); err != nil {
		return l, fmt.Errorf("load achievements: %w", err)
	}
	return l, nil
}

// attempt advances ev through the delivery state machine.
func (s *NotificationService) attempt(ctx context.Context, ev *model.FeedEvent, l deliveryLookup, now time.Time) {
	recipient, ok := l.users[ev.RecipientID]
	if !ok {
		s.abandon(ev, "recipient not found")
		return
	}
	actor, ok := l.users[ev.ActorID]
	if !ok {
		s.abandon(ev, "actor not found")
		return
	}
	if ev.ActorID == ev.RecipientID {
		s.abandon(ev, "recipient is the actor")
		return
	}
	if !recipient.FeedNotificationsEnabled {
		s.abandon(ev, "feed notifications disabled")
		return
	}

	msg := EventMessage{Actor: actor}
	if ev.HabitID != nil {
		h, ok := l.habits[*ev.HabitID]
		if !ok {
			s.abandon(ev, "habit not found")
			return
		}
		msg.Habit = &h
	}
	if ev.AchievementID != nil {
		if a, ok := l.achievements[*ev.AchievementID]; ok {
			msg.AchievementTitle = s.table.Title(a.Type)
			msg.Tier = a.Tier
		}
	}
	text, err := RenderEvent(ev.Kind, msg)
	if err != nil {
		s.abandon(ev, err.Error())
		return
	}

	ev.Attempts++
	err = s.deliverer.Deliver(ctx, recipient.TelegramID, text, s.cfg.Button())
	switch {
	case err == nil:
		delivered := now
		ev.State = model.DeliveryDelivered
		ev.DeliveredAt = &delivered
		ev.LastError = ""
	case errors.Is(err, ErrDelivery) && ev.Attempts < s.cfg.MaxAttempts:
		ev.State = model.DeliveryFailedRetryable
		ev.NextAttemptAt = now.Add(Backoff(ev.Attempts, s.cfg.RetryBase, s.cfg.RetryMax))
		ev.LastError = err.Error()
		s.log.Warn("feed delivery failed, will retry", "event", ev.ID, "attempt", ev.Attempts, "next", ev.NextAttemptAt, "err", err)
	default:
		s.abandon(ev, err.Error())
		s.log.Warn("feed delivery abandoned", "event", ev.ID, "attempt", ev.Attempts, "err", err)
	}
}

func (s *NotificationService) abandon(ev *model.FeedEvent, reason string) {
	ev.State = model.DeliveryAbandoned
	ev.LastError = reason
	s.log.Debug("feed event abandoned", "event", ev.ID, "kind", ev.Kind, "reason", reason)
}

// Backoff is the delay before retry number attempt+1: base doubled per attempt, capped at max.
func Backoff(attempt int, base, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}

// CleanupOldEvents deletes feed events created on or before the retention day, counted in the reference location.
func (s *NotificationService) CleanupOldEvents(ctx context.Context) (int64, error) {
	now := s.clock().In(s.loc)
	days := int(s.cfg.Retention / (24 * time.Hour))
	if days < 1 {
		days = 1
	}
	y, m, d := now.Date()
	cutoff := time.Date(y, m, d, 0, 0, 0, 0, s.loc).AddDate(0, 0, -days+1)
	n, err := s.store.Feed.DeleteCreatedBefore(ctx, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	if s.metrics != nil {
		s.metrics.EventsPurged.Add(float64(n))
	}
	s.log.Info("old feed events removed", "count", n, "cutoff", cutoff.Format(time.RFC3339))
	return n, nil
}
