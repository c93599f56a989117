package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"wehabit/internal/model"
	"wehabit/internal/repository"
)

// CompletionService is the ledger of per-day completion records.
type CompletionService struct {
	store        *repository.Store
	feed         *FeedService
	achievements *AchievementService
	clock        Clock
	loc          *time.Location
	log          *log.Logger
}

// NewCompletionService builds the ledger. loc defines "today" for records without an explicit date.
func NewCompletionService(store *repository.Store, feed *FeedService, achievements *AchievementService, clock Clock, loc *time.Location, l *log.Logger) *CompletionService {
	return &CompletionService{store: store, feed: feed, achievements: achievements, clock: clock, loc: loc, log: l}
}

// Record marks habitID as done by userID on date (YYYY-MM-DD, empty for today).
// At most one record exists per (habit, user, date).
func (s *CompletionService) Record(ctx context.Context, habitID, userID uuid.UUID, date, notes string) (*model.Completion, error) {
	day, err := s.resolveDate(date)
	if err != nil {
		return nil, err
	}

	c := &model.Completion{HabitID: habitID, UserID: userID, Date: day, Notes: strings.TrimSpace(notes)}
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		habit, err := tx.Habits.FindByID(ctx, habitID)
		if err != nil {
			return translate(err, "habit")
		}
		p, err := tx.Participants.Find(ctx, habitID, userID)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return fmt.Errorf("%w: user is not a participant", ErrPermission)
		case err != nil:
			return fmt.Errorf("find participant: %w", err)
		case p.Status != model.StatusAccepted:
			return fmt.Errorf("%w: user is not an accepted participant", ErrPermission)
		}
		exists, err := tx.Completions.Exists(ctx, habitID, userID, day)
		if err != nil {
			return fmt.Errorf("check completion: %w", err)
		}
		if exists {
			return fmt.Errorf("%w: already completed on %s", ErrConflict, day)
		}
		if err := tx.Completions.Create(ctx, c); err != nil {
			return translate(err, "completion")
		}

		if habit.IsShared {
			members, err := tx.Participants.ListAccepted(ctx, habitID)
			if err != nil {
				return fmt.Errorf("list participants: %w", err)
			}
			if _, err := s.feed.Dispatch(ctx, tx, Action{Kind: model.EventCompleted, ActorID: userID, Habit: habit, Participants: members}); err != nil {
				return err
			}
		}
		_, err = s.achievements.Evaluate(ctx, tx, userID, model.AchievementTotalDays, model.AchievementStreak)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("completion recorded", "habit", habitID, "user", userID, "date", day)
	return c, nil
}

// Remove deletes the record of userID in habitID on date.
func (s *CompletionService) Remove(ctx context.Context, habitID, userID uuid.UUID, date string) error {
	if _, err := model.ParseDate(date); err != nil {
		return fmt.Errorf("%w: invalid date %q", ErrValidation, date)
	}
	n, err := s.store.Completions.Delete(ctx, habitID, userID, date)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: no completion on %s", ErrNotFound, date)
	}
	return nil
}

// Dates returns the sorted completion dates of userID in habitID.
func (s *CompletionService) Dates(ctx context.Context, habitID, userID uuid.UUID) ([]string, error) {
	dates, err := s.store.Completions.Dates(ctx, habitID, userID)
	if err != nil {
		return nil, translate(err, "completions")
	}
	return dates, nil
}

// DatesByParticipant returns the completion dates of every accepted participant of habitID.
func (s *CompletionService) DatesByParticipant(ctx context.Context, habitID uuid.UUID) (map[uuid.UUID][]string, error) {
	members, err := s.store.Participants.ListAccepted(ctx, habitID)
	if err != nil {
		return nil, translate(err, "participants")
	}
	ids := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.UserID)
	}
	return s.store.Completions.DatesByUser(ctx, habitID, ids)
}

// DailyCounts aggregates records per date since the given day. A nil userID aggregates every participant.
func (s *CompletionService) DailyCounts(ctx context.Context, habitID, userID uuid.UUID, since string) ([]repository.DayCount, error) {
	if since != "" {
		if _, err := model.ParseDate(since); err != nil {
			return nil, fmt.Errorf("%w: invalid date %q", ErrValidation, since)
		}
	}
	return s.store.Completions.DailyCounts(ctx, habitID, userID, since)
}

func (s *CompletionService) resolveDate(date string) (string, error) {
	now := today(s.clock, s.loc)
	date = strings.TrimSpace(date)
	if date == "" {
		return now, nil
	}
	if _, err := model.ParseDate(date); err != nil {
		return "", fmt.Errorf("%w: invalid date %q, expected YYYY-MM-DD", ErrValidation, date)
	}
	if date > now {
		return "", fmt.Errorf("%w: date %s is in the future", ErrValidation, date)
	}
	return date, nil
}
