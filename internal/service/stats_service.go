package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"wehabit/internal/model"
	"wehabit/internal/repository"
	"wehabit/internal/stats"
)

// DefaultStatsDays is the lookback period of HabitStats when none is given.
const DefaultStatsDays = 30

// HabitStats is the per-user view of a habit over a lookback period.
type HabitStats struct {
	HabitID          uuid.UUID
	PeriodDays       int
	TotalCompletions int
	// CurrentStreak is the longest run inside the period, not necessarily ending today.
	CurrentStreak int
	// JointStreak is the longest run of days on which every accepted participant completed.
	JointStreak     int
	AboveNormCount  int
	DailyCompletion []repository.DayCount
}

// ParticipantView is one member line of a habit roster.
type ParticipantView struct {
	UserID      uuid.UUID
	DisplayName string
	Status      model.ParticipantStatus
	Color       string
	IsOwner     bool
	// Streak is the unrestricted individual streak of accepted participants.
	Streak int
}

// StatsService answers the read queries over the registry and the ledger.
type StatsService struct {
	store        *repository.Store
	participants *ParticipationService
	clock        Clock
	loc          *time.Location
}

func NewStatsService(store *repository.Store, participants *ParticipationService, clock Clock, loc *time.Location) *StatsService {
	return &StatsService{store: store, participants: participants, clock: clock, loc: loc}
}

// Participants returns the roster of habitID, owner first.
func (s *StatsService) Participants(ctx context.Context, habitID uuid.UUID) ([]ParticipantView, error) {
	habit, err := s.store.Habits.FindByID(ctx, habitID)
	if err != nil {
		return nil, translate(err, "habit")
	}
	ps, err := s.participants.Participants(ctx, habitID)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(ps))
	for _, p := range ps {
		ids = append(ids, p.UserID)
	}
	users, err := s.store.Users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, translate(err, "users")
	}
	dates, err := s.store.Completions.DatesByUser(ctx, habitID, ids)
	if err != nil {
		return nil, translate(err, "completions")
	}

	out := make([]ParticipantView, 0, len(ps))
	for _, p := range ps {
		v := ParticipantView{
			UserID:  p.UserID,
			Status:  p.Status,
			Color:   p.Color,
			IsOwner: p.UserID == habit.OwnerID,
		}
		if u, ok := users[p.UserID]; ok {
			v.DisplayName = u.DisplayName()
		}
		if p.Status == model.StatusAccepted {
			ds, err := stats.ParseDates(dates[p.UserID])
			if err != nil {
				return nil, err
			}
			v.Streak = stats.IndividualStreak(ds, stats.Window{})
		}
		out = append(out, v)
	}
	return out, nil
}

// HabitStats computes the caller's statistics for habitID over the last days days.
// Only the owner and invited users may read them.
func (s *StatsService) HabitStats(ctx context.Context, habitID, userID uuid.UUID, days int) (*HabitStats, error) {
	if days <= 0 {
		days = DefaultStatsDays
	}
	habit, err := s.store.Habits.FindByID(ctx, habitID)
	if err != nil {
		return nil, translate(err, "habit")
	}
	if habit.OwnerID != userID {
		if _, err := s.store.Participants.Find(ctx, habitID, userID); err != nil {
			return nil, fmt.Errorf("%w: no access to habit", ErrPermission)
		}
	}

	now := s.clock().In(s.loc)
	window := stats.Lookback(now, days)
	since := model.DateOf(window.Since)

	rows, err := s.store.Completions.DailyCounts(ctx, habitID, userID, since)
	if err != nil {
		return nil, translate(err, "completions")
	}
	counts := make([]stats.DayCount, 0, len(rows))
	mine := make([]time.Time, 0, len(rows))
	total := 0
	for _, r := range rows {
		d, err := model.ParseDate(r.Date)
		if err != nil {
			return nil, fmt.Errorf("parse date %q: %w", r.Date, err)
		}
		counts = append(counts, stats.DayCount{Date: d, Count: r.Count})
		mine = append(mine, d)
		total += r.Count
	}

	joint, err := s.jointStreak(ctx, habitID, window)
	if err != nil {
		return nil, err
	}
	return &HabitStats{
		HabitID:          habitID,
		PeriodDays:       days,
		TotalCompletions: total,
		CurrentStreak:    stats.IndividualStreak(mine, window),
		JointStreak:      joint,
		AboveNormCount:   stats.AboveNorm(habit.Schedule(), counts),
		DailyCompletion:  rows,
	}, nil
}

func (s *StatsService) jointStreak(ctx context.Context, habitID uuid.UUID, w stats.Window) (int, error) {
	members, err := s.store.Participants.ListAccepted(ctx, habitID)
	if err != nil {
		return 0, translate(err, "participants")
	}
	ids := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.UserID)
	}
	byUser, err := s.store.Completions.DatesByUser(ctx, habitID, ids)
	if err != nil {
		return 0, translate(err, "completions")
	}
	sets := make([][]time.Time, 0, len(ids))
	for _, id := range ids {
		ds, err := stats.ParseDates(byUser[id])
		if err != nil {
			return 0, err
		}
		sets = append(sets, ds)
	}
	return stats.JointStreak(sets, w), nil
}
