package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"wehabit/internal/config"
	"wehabit/internal/model"
	"wehabit/internal/repository"
	"wehabit/internal/stats"
)

// AchievementService detects crossed thresholds and unlocks tiers exactly once.
type AchievementService struct {
	store *repository.Store
	table config.AchievementTable
	feed  *FeedService
	log   *log.Logger
}

func NewAchievementService(store *repository.Store, table config.AchievementTable, feed *FeedService, l *log.Logger) *AchievementService {
	return &AchievementService{store: store, table: table, feed: feed, log: l}
}

// Table exposes the loaded achievement table.
func (s *AchievementService) Table() config.AchievementTable {
	return s.table
}

// Metric computes the current value of an achievement metric for userID.
func (s *AchievementService) Metric(ctx context.Context, tx *repository.Store, userID uuid.UUID, kind string) (int, error) {
	switch kind {
	case model.AchievementTotalDays:
		n, err := tx.Completions.CountDistinctDays(ctx, userID)
		return int(n), err
	case model.AchievementFriendsCount:
		ids, err := tx.Friendships.FriendIDs(ctx, userID)
		return len(ids), err
	case model.AchievementStreak:
		byHabit, err := tx.Completions.DatesByHabit(ctx, userID)
		if err != nil {
			return 0, err
		}
		best := 0
		for _, raw := range byHabit {
			dates, err := stats.ParseDates(raw)
			if err != nil {
				return 0, err
			}
			if n := stats.IndividualStreak(dates, stats.Window{}); n > best {
				best = n
			}
		}
		return best, nil
	case model.AchievementHabitInvites:
		n, err := tx.Participants.CountAcceptedInOwnedHabits(ctx, userID)
		return int(n), err
	default:
		return 0, fmt.Errorf("%w: unknown achievement type %q", ErrValidation, kind)
	}
}

// Evaluate recomputes the given metrics (all table types when none are given)
// inside tx and unlocks every reached tier that has no row yet. Each unlock
// fans out one achievement event to the user and each accepted friend.
// Repeated evaluation is a no-op once tiers are unlocked.
func (s *AchievementService) Evaluate(ctx context.Context, tx *repository.Store, userID uuid.UUID, kinds ...string) ([]model.Achievement, error) {
	if len(kinds) == 0 {
		kinds = s.table.Types()
	}
	var unlocked []model.Achievement
	for _, kind := range kinds {
		thresholds := s.table.ForType(kind)
		if len(thresholds) == 0 {
			continue
		}
		value, err := s.Metric(ctx, tx, userID, kind)
		if err != nil {
			return nil, fmt.Errorf("achievement metric %s: %w", kind, err)
		}
		for _, th := range thresholds {
			if value < th.Goal {
				break
			}
			exists, err := tx.Achievements.Exists(ctx, userID, th.Type, th.Tier)
			if err != nil {
				return nil, fmt.Errorf("check achievement: %w", err)
			}
			if exists {
				continue
			}
			a, err := s.unlock(ctx, tx, userID, th, value)
			if err != nil {
				return nil, err
			}
			unlocked = append(unlocked, *a)
		}
	}
	return unlocked, nil
}

func (s *AchievementService) unlock(ctx context.Context, tx *repository.Store, userID uuid.UUID, th config.Threshold, value int) (*model.Achievement, error) {
	meta, err := json.Marshal(map[string]int{"goal": th.Goal, "value": value})
	if err != nil {
		return nil, err
	}
	a := &model.Achievement{UserID: userID, Type: th.Type, Tier: th.Tier, Metadata: string(meta)}
	if err := tx.Achievements.Create(ctx, a); err != nil {
		return nil, translate(err, "achievement")
	}

	friends, err := tx.Friendships.FriendIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load friends: %w", err)
	}
	id := a.ID
	if _, err := s.feed.Dispatch(ctx, tx, Action{
		Kind:          model.EventAchievement,
		ActorID:       userID,
		Friends:       friends,
		AchievementID: &id,
	}); err != nil {
		return nil, err
	}
	s.log.Info("achievement unlocked", "user", userID, "type", th.Type, "tier", th.Tier, "value", value)
	return a, nil
}

// List returns the unlocked achievements of userID, newest first.
func (s *AchievementService) List(ctx context.Context, userID uuid.UUID) ([]model.Achievement, error) {
	rows, err := s.store.Achievements.ListForUser(ctx, userID)
	if err != nil {
		return nil, translate(err, "achievements")
	}
	return rows, nil
}

// EvaluateAll re-runs every metric for userID in its own transaction.
func (s *AchievementService) EvaluateAll(ctx context.Context, userID uuid.UUID) ([]model.Achievement, error) {
	var unlocked []model.Achievement
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		var err error
		unlocked, err = s.Evaluate(ctx, tx, userID)
		return err
	})
	return unlocked, err
}
