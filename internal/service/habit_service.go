package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"wehabit/internal/model"
	"wehabit/internal/repository"
)

// HabitInput represents data required to create a habit.
type HabitInput struct {
	Name        string
	Description string
	Color       string
	// Weekdays (1=Mon..7=Sun) and WeeklyGoal are mutually exclusive.
	Weekdays   []int
	WeeklyGoal int
	Invitees   []uuid.UUID
}

// HabitService creates habits together with the owner's membership.
type HabitService struct {
	store        *repository.Store
	participants *ParticipationService
	clock        Clock
	log          *log.Logger
}

func NewHabitService(store *repository.Store, participants *ParticipationService, clock Clock, l *log.Logger) *HabitService {
	return &HabitService{store: store, participants: participants, clock: clock, log: l}
}

// Create stores a new habit owned by ownerID and invites input.Invitees in the same transaction.
func (s *HabitService) Create(ctx context.Context, ownerID uuid.UUID, input HabitInput) (*model.Habit, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	sched := model.Schedule{Weekdays: input.Weekdays, WeeklyGoal: input.WeeklyGoal}
	if err := sched.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	color := input.Color
	if color == "" {
		color = model.DefaultColor
	}
	if !model.InPalette(color) {
		return nil, fmt.Errorf("%w: unknown color %q", ErrValidation, color)
	}

	habit := &model.Habit{
		OwnerID:     ownerID,
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		Color:       color,
	}
	habit.SetSchedule(sched)

	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		if _, err := tx.Users.FindByID(ctx, ownerID); err != nil {
			return translate(err, "owner")
		}
		if err := tx.Habits.Create(ctx, habit); err != nil {
			return translate(err, "habit")
		}
		joined := s.clock().UTC()
		owner := model.Participant{
			HabitID:  habit.ID,
			UserID:   ownerID,
			Status:   model.StatusAccepted,
			Color:    color,
			JoinedAt: &joined,
		}
		if err := tx.Participants.Create(ctx, &owner); err != nil {
			return translate(err, "participant")
		}
		if len(input.Invitees) == 0 {
			return nil
		}
		if _, err := s.participants.invite(ctx, tx, habit.ID, ownerID, input.Invitees); err != nil {
			return err
		}
		habit.IsShared = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("habit created", "habit", habit.ID, "owner", ownerID, "invitees", len(input.Invitees))
	return habit, nil
}

// Get returns the habit with id.
func (s *HabitService) Get(ctx context.Context, id uuid.UUID) (*model.Habit, error) {
	h, err := s.store.Habits.FindByID(ctx, id)
	if err != nil {
		return nil, translate(err, "habit")
	}
	return h, nil
}
