package service

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"wehabit/internal/model"
	"wehabit/internal/repository"
)

// DefaultFeedLimit caps the events returned by Feed.
const DefaultFeedLimit = 500

// Action is a social action to be fanned out as feed events.
type Action struct {
	Kind    model.EventKind
	ActorID uuid.UUID
	Habit   *model.Habit
	// Participants are the accepted participants of Habit at the time of the action.
	Participants []model.Participant
	// Subject is the invitee of "invited" and the removed user of "removed".
	Subject uuid.UUID
	// Friends are the accepted friends of the actor, used by "achievement".
	Friends       []uuid.UUID
	AchievementID *uuid.UUID
	At            time.Time
}

type recipientRule func(a Action) []uuid.UUID

// recipientRules must cover every model.EventKind.
var recipientRules = map[model.EventKind]recipientRule{
	model.EventCompleted: func(a Action) []uuid.UUID {
		if a.Habit == nil || !a.Habit.IsShared {
			return nil
		}
		out := make([]uuid.UUID, 0, len(a.Participants)+1)
		for _, p := range a.Participants {
			if p.Status == model.StatusAccepted {
				out = append(out, p.UserID)
			}
		}
		out = append(out, a.Habit.OwnerID)
		return out
	},
	model.EventJoined:   ownerRecipient,
	model.EventDeclined: ownerRecipient,
	model.EventLeft:     ownerRecipient,
	model.EventRemoved: func(a Action) []uuid.UUID {
		return append(ownerRecipient(a), a.Subject)
	},
	model.EventInvited: func(a Action) []uuid.UUID {
		return []uuid.UUID{a.Subject}
	},
	model.EventAchievement: func(a Action) []uuid.UUID {
		return append([]uuid.UUID{a.ActorID}, a.Friends...)
	},
}

func ownerRecipient(a Action) []uuid.UUID {
	if a.Habit == nil {
		return nil
	}
	return []uuid.UUID{a.Habit.OwnerID}
}

// Recipients maps an action to the users who receive a feed event for it.
// The actor never receives its own action, except the achievement self-notification.
func Recipients(a Action) ([]uuid.UUID, error) {
	if !a.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown event kind %q", ErrValidation, a.Kind)
	}
	rule, ok := recipientRules[a.Kind]
	if !ok {
		return nil, fmt.Errorf("no recipient rule for event kind %q", a.Kind)
	}
	seen := make(map[uuid.UUID]bool)
	var out []uuid.UUID
	for _, id := range rule(a) {
		if id == uuid.Nil || seen[id] {
			continue
		}
		if id == a.ActorID && a.Kind != model.EventAchievement {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out, nil
}

// FeedService turns actions into addressed feed events and serves the feed.
type FeedService struct {
	store *repository.Store
	clock Clock
	log   *log.Logger
}

func NewFeedService(store *repository.Store, clock Clock, l *log.Logger) *FeedService {
	return &FeedService{store: store, clock: clock, log: l}
}

// Dispatch persists one event per recipient of a within tx. It never touches registry or ledger rows.
func (s *FeedService) Dispatch(ctx context.Context, tx *repository.Store, a Action) ([]model.FeedEvent, error) {
	recipients, err := Recipients(a)
	if err != nil {
		return nil, err
	}
	at := a.At
	if at.IsZero() {
		at = s.clock().UTC()
	}
	var habitID *uuid.UUID
	if a.Habit != nil {
		id := a.Habit.ID
		habitID = &id
	}
	events := make([]model.FeedEvent, 0, len(recipients))
	for _, r := range recipients {
		events = append(events, model.FeedEvent{
			RecipientID:   r,
			ActorID:       a.ActorID,
			HabitID:       habitID,
			AchievementID: a.AchievementID,
			Kind:          a.Kind,
			State:         model.DeliveryPending,
			NextAttemptAt: at,
			CreatedAt:     at,
		})
	}
	if err := tx.Feed.CreateBatch(ctx, events); err != nil {
		return nil, err
	}
	s.log.Debug("feed fan-out", "kind", a.Kind, "actor", a.ActorID, "recipients", len(events))
	return events, nil
}

// Feed returns the events addressed to userID, newest first.
func (s *FeedService) Feed(ctx context.Context, userID uuid.UUID, limit int) ([]model.FeedEvent, error) {
	if limit <= 0 || limit > DefaultFeedLimit {
		limit = DefaultFeedLimit
	}
	events, err := s.store.Feed.ListForRecipient(ctx, userID, limit)
	if err != nil {
		return nil, translate(err, "feed")
	}
	return events, nil
}
