package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"wehabit/internal/model"
	"wehabit/internal/repository"
)

// ParticipantSettings carries optional per-participant changes. Nil fields are left untouched.
type ParticipantSettings struct {
	Color           *string
	ReminderEnabled *bool
	ReminderTime    *string
	ReminderTZ      *string
}

// ParticipationService owns the membership lifecycle of habits.
type ParticipationService struct {
	store        *repository.Store
	feed         *FeedService
	achievements *AchievementService
	clock        Clock
	log          *log.Logger
}

func NewParticipationService(store *repository.Store, feed *FeedService, achievements *AchievementService, clock Clock, l *log.Logger) *ParticipationService {
	return &ParticipationService{store: store, feed: feed, achievements: achievements, clock: clock, log: l}
}

// Invite creates pending memberships for userIDs. Only the owner may invite;
// ids already pending or accepted are skipped. The capacity check happens
// before any write, so a rejected invite changes nothing.
func (s *ParticipationService) Invite(ctx context.Context, habitID, inviterID uuid.UUID, userIDs []uuid.UUID) ([]model.Participant, error) {
	var created []model.Participant
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		var err error
		created, err = s.invite(ctx, tx, habitID, inviterID, userIDs)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("participants invited", "habit", habitID, "inviter", inviterID, "count", len(created))
	return created, nil
}

func (s *ParticipationService) invite(ctx context.Context, tx *repository.Store, habitID, inviterID uuid.UUID, userIDs []uuid.UUID) ([]model.Participant, error) {
	if len(userIDs) == 0 {
		return nil, fmt.Errorf("%w: no users to invite", ErrValidation)
	}
	habit, err := tx.Habits.FindByIDForUpdate(ctx, habitID)
	if err != nil {
		return nil, translate(err, "habit")
	}
	if habit.OwnerID != inviterID {
		return nil, fmt.Errorf("%w: only the owner can invite", ErrPermission)
	}

	active, err := tx.Participants.ListActive(ctx, habitID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	present := make(map[uuid.UUID]bool, len(active))
	for _, p := range active {
		present[p.UserID] = true
	}
	var fresh []uuid.UUID
	for _, id := range userIDs {
		if present[id] {
			continue
		}
		present[id] = true
		fresh = append(fresh, id)
	}
	if len(fresh) == 0 {
		return nil, nil
	}

	users, err := tx.Users.FindByIDs(ctx, fresh)
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	for _, id := range fresh {
		if _, ok := users[id]; !ok {
			return nil, fmt.Errorf("%w: user %s", ErrNotFound, id)
		}
	}
	if len(active)+len(fresh) > model.MaxParticipants {
		return nil, fmt.Errorf("%w: habit allows at most %d participants", ErrCapacity, model.MaxParticipants)
	}

	if !habit.IsShared {
		if err := tx.Habits.MarkShared(ctx, habitID); err != nil {
			return nil, err
		}
		habit.IsShared = true
	}

	created := make([]model.Participant, 0, len(fresh))
	for _, id := range fresh {
		// A declined/left/removed row stays as history until the user is invited again.
		old, err := tx.Participants.Find(ctx, habitID, id)
		switch {
		case err == nil:
			if err := tx.Participants.Delete(ctx, old.ID); err != nil {
				return nil, err
			}
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, fmt.Errorf("find participant: %w", err)
		}

		inviter := inviterID
		p := model.Participant{HabitID: habitID, UserID: id, InvitedBy: &inviter, Status: model.StatusPending}
		if err := tx.Participants.Create(ctx, &p); err != nil {
			return nil, translate(err, "participant")
		}
		if _, err := s.feed.Dispatch(ctx, tx, Action{Kind: model.EventInvited, ActorID: inviterID, Habit: habit, Subject: id}); err != nil {
			return nil, err
		}
		created = append(created, p)
	}
	return created, nil
}

// Accept turns a pending invitation into membership and assigns a color.
func (s *ParticipationService) Accept(ctx context.Context, habitID, userID uuid.UUID, requestedColor string) (*model.Participant, error) {
	var accepted *model.Participant
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		habit, err := tx.Habits.FindByIDForUpdate(ctx, habitID)
		if err != nil {
			return translate(err, "habit")
		}
		p, err := s.pending(ctx, tx, habitID, userID)
		if err != nil {
			return err
		}
		members, err := tx.Participants.ListAccepted(ctx, habitID)
		if err != nil {
			return fmt.Errorf("list participants: %w", err)
		}
		if len(members) >= model.MaxParticipants {
			return fmt.Errorf("%w: habit already has %d participants", ErrCapacity, model.MaxParticipants)
		}
		color, err := AssignColor(requestedColor, usedColors(members, uuid.Nil))
		if err != nil {
			return err
		}

		now := s.clock().UTC()
		p.Status = model.StatusAccepted
		p.Color = color
		p.JoinedAt = &now
		if err := tx.Participants.Save(ctx, p); err != nil {
			return err
		}

		members = append(members, *p)
		if _, err := s.feed.Dispatch(ctx, tx, Action{Kind: model.EventJoined, ActorID: userID, Habit: habit, Participants: members}); err != nil {
			return err
		}
		if _, err := s.achievements.Evaluate(ctx, tx, habit.OwnerID, model.AchievementHabitInvites); err != nil {
			return err
		}
		accepted = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("invitation accepted", "habit", habitID, "user", userID, "color", accepted.Color)
	return accepted, nil
}

// Decline rejects a pending invitation.
func (s *ParticipationService) Decline(ctx context.Context, habitID, userID uuid.UUID) error {
	return s.store.Transaction(ctx, func(tx *repository.Store) error {
		habit, err := tx.Habits.FindByIDForUpdate(ctx, habitID)
		if err != nil {
			return translate(err, "habit")
		}
		p, err := s.pending(ctx, tx, habitID, userID)
		if err != nil {
			return err
		}
		p.Status = model.StatusDeclined
		if err := tx.Participants.Save(ctx, p); err != nil {
			return err
		}
		_, err = s.feed.Dispatch(ctx, tx, Action{Kind: model.EventDeclined, ActorID: userID, Habit: habit})
		return err
	})
}

// Leave ends the caller's membership and deletes their completions for the habit.
func (s *ParticipationService) Leave(ctx context.Context, habitID, userID uuid.UUID) error {
	return s.store.Transaction(ctx, func(tx *repository.Store) error {
		habit, err := tx.Habits.FindByIDForUpdate(ctx, habitID)
		if err != nil {
			return translate(err, "habit")
		}
		if habit.OwnerID == userID {
			return fmt.Errorf("%w: the owner cannot leave the habit", ErrPermission)
		}
		p, err := tx.Participants.Find(ctx, habitID, userID)
		if err != nil {
			return translate(err, "participant")
		}
		if p.Status != model.StatusAccepted {
			return fmt.Errorf("%w: user is not an accepted participant", ErrNotFound)
		}
		return s.end(ctx, tx, habit, p, userID, model.StatusLeft, model.EventLeft)
	})
}

// Remove lets the owner end another participant's membership, with the same cascade as Leave.
func (s *ParticipationService) Remove(ctx context.Context, habitID, ownerID, userID uuid.UUID) error {
	return s.store.Transaction(ctx, func(tx *repository.Store) error {
		habit, err := tx.Habits.FindByIDForUpdate(ctx, habitID)
		if err != nil {
			return translate(err, "habit")
		}
		if habit.OwnerID != ownerID {
			return fmt.Errorf("%w: only the owner can remove participants", ErrPermission)
		}
		if userID == ownerID {
			return fmt.Errorf("%w: the owner cannot be removed", ErrPermission)
		}
		p, err := tx.Participants.Find(ctx, habitID, userID)
		if err != nil {
			return translate(err, "participant")
		}
		if !p.Status.Active() {
			return fmt.Errorf("%w: user is not a participant", ErrNotFound)
		}
		return s.end(ctx, tx, habit, p, ownerID, model.StatusRemoved, model.EventRemoved)
	})
}

// end moves p to a terminal status and drops its completions for the habit.
func (s *ParticipationService) end(ctx context.Context, tx *repository.Store, habit *model.Habit, p *model.Participant, actorID uuid.UUID, status model.ParticipantStatus, kind model.EventKind) error {
	userID := p.UserID
	p.Status = status
	if err := tx.Participants.Save(ctx, p); err != nil {
		return err
	}
	deleted, err := tx.Completions.DeleteForParticipant(ctx, habit.ID, userID)
	if err != nil {
		return err
	}
	members, err := tx.Participants.ListAccepted(ctx, habit.ID)
	if err != nil {
		return fmt.Errorf("list participants: %w", err)
	}
	if _, err := s.feed.Dispatch(ctx, tx, Action{Kind: kind, ActorID: actorID, Habit: habit, Participants: members, Subject: userID}); err != nil {
		return err
	}
	s.log.Info("participant left habit", "habit", habit.ID, "user", userID, "status", status, "completions_deleted", deleted)
	return nil
}

func (s *ParticipationService) pending(ctx context.Context, tx *repository.Store, habitID, userID uuid.UUID) (*model.Participant, error) {
	p, err := tx.Participants.Find(ctx, habitID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: no pending invitation", ErrConflict)
		}
		return nil, fmt.Errorf("find participant: %w", err)
	}
	if p.Status != model.StatusPending {
		return nil, fmt.Errorf("%w: invitation is %s", ErrConflict, p.Status)
	}
	return p, nil
}

// Configure updates color and reminder settings of an accepted participant.
func (s *ParticipationService) Configure(ctx context.Context, habitID, userID uuid.UUID, in ParticipantSettings) (*model.Participant, error) {
	var out *model.Participant
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		if _, err := tx.Habits.FindByIDForUpdate(ctx, habitID); err != nil {
			return translate(err, "habit")
		}
		p, err := tx.Participants.Find(ctx, habitID, userID)
		if err != nil {
			return translate(err, "participant")
		}
		if p.Status != model.StatusAccepted {
			return fmt.Errorf("%w: user is not an accepted participant", ErrNotFound)
		}

		if in.Color != nil && *in.Color != p.Color {
			if !model.InPalette(*in.Color) {
				return fmt.Errorf("%w: unknown color %q", ErrValidation, *in.Color)
			}
			members, err := tx.Participants.ListAccepted(ctx, habitID)
			if err != nil {
				return fmt.Errorf("list participants: %w", err)
			}
			for _, c := range usedColors(members, userID) {
				if c == *in.Color {
					return fmt.Errorf("%w: color %q is taken", ErrConflict, *in.Color)
				}
			}
			p.Color = *in.Color
		}
		if in.ReminderTime != nil {
			value := strings.TrimSpace(*in.ReminderTime)
			if value != "" {
				if _, _, err := ParseClock(value); err != nil {
					return err
				}
			}
			p.ReminderTime = value
		}
		if in.ReminderTZ != nil {
			tz := strings.TrimSpace(*in.ReminderTZ)
			if tz != "" {
				if _, err := time.LoadLocation(tz); err != nil {
					return fmt.Errorf("%w: unknown timezone %q", ErrValidation, tz)
				}
			}
			p.ReminderTZ = tz
		}
		if in.ReminderEnabled != nil {
			p.ReminderEnabled = *in.ReminderEnabled
		}
		if p.ReminderEnabled && p.ReminderTime == "" {
			return fmt.Errorf("%w: reminder time is required", ErrValidation)
		}
		if err := tx.Participants.Save(ctx, p); err != nil {
			return err
		}
		out = p
		return nil
	})
	return out, err
}

// Participants lists pending and accepted members of a habit, owner first.
func (s *ParticipationService) Participants(ctx context.Context, habitID uuid.UUID) ([]model.Participant, error) {
	habit, err := s.store.Habits.FindByID(ctx, habitID)
	if err != nil {
		return nil, translate(err, "habit")
	}
	ps, err := s.store.Participants.ListActive(ctx, habitID)
	if err != nil {
		return nil, translate(err, "participants")
	}
	sort.SliceStable(ps, func(i, j int) bool {
		return ps[i].UserID == habit.OwnerID && ps[j].UserID != habit.OwnerID
	})
	return ps, nil
}

// AssignColor picks requested when it is a free palette color, else the first free palette color.
func AssignColor(requested string, used []string) (string, error) {
	taken := make(map[string]bool, len(used))
	for _, c := range used {
		taken[c] = true
	}
	if model.InPalette(requested) && !taken[requested] {
		return requested, nil
	}
	for _, c := range model.Palette {
		if !taken[c] {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: color palette exhausted", ErrCapacity)
}

func usedColors(members []model.Participant, except uuid.UUID) []string {
	out := make([]string, 0, len(members))
	for _, m := range members {
		if m.UserID == except || m.Color == "" {
			continue
		}
		out = append(out, m.Color)
	}
	return out
}

// ParseClock parses a "HH:MM" time of day.
func ParseClock(value string) (int, int, error) {
	hh, mm, ok := strings.Cut(value, ":")
	if !ok || len(hh) != 2 || len(mm) != 2 {
		return 0, 0, fmt.Errorf("%w: invalid time %q, expected HH:MM", ErrValidation, value)
	}
	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("%w: invalid hour in %q", ErrValidation, value)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: invalid minute in %q", ErrValidation, value)
	}
	return hour, minute, nil
}
