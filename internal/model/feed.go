package model

import (
	"crypto/rand"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
)

// EventKind is the closed set of feed event kinds.
type EventKind string

const (
	EventCompleted   EventKind = "completed"
	EventJoined      EventKind = "joined"
	EventDeclined    EventKind = "declined"
	EventInvited     EventKind = "invited"
	EventLeft        EventKind = "left"
	EventRemoved     EventKind = "removed"
	EventAchievement EventKind = "achievement"
)

// EventKinds lists every kind. Tables keyed by EventKind are checked against it.
var EventKinds = []EventKind{
	EventCompleted,
	EventJoined,
	EventDeclined,
	EventInvited,
	EventLeft,
	EventRemoved,
	EventAchievement,
}

// Valid reports whether k is one of EventKinds.
func (k EventKind) Valid() bool {
	for _, kind := range EventKinds {
		if kind == k {
			return true
		}
	}
	return false
}

// DeliveryState tracks a feed event through the notification poller.
type DeliveryState string

const (
	DeliveryPending         DeliveryState = "pending"
	DeliveryDelivered       DeliveryState = "delivered"
	DeliveryFailedRetryable DeliveryState = "failed_retryable"
	DeliveryAbandoned       DeliveryState = "abandoned"
)

// Final reports whether no further delivery attempt will be made.
func (s DeliveryState) Final() bool {
	return s == DeliveryDelivered || s == DeliveryAbandoned
}

// FeedEvent is an addressed record of a social action.
type FeedEvent struct {
	ID            string        `gorm:"size:26;primaryKey"`
	RecipientID   uuid.UUID     `gorm:"type:uuid;not null;index"`
	ActorID       uuid.UUID     `gorm:"type:uuid;not null"`
	HabitID       *uuid.UUID    `gorm:"type:uuid"`
	AchievementID *uuid.UUID    `gorm:"type:uuid"`
	Kind          EventKind     `gorm:"size:20;not null"`
	State         DeliveryState `gorm:"size:20;not null;default:pending;index:idx_feed_delivery"`
	Attempts      int
	NextAttemptAt time.Time `gorm:"index:idx_feed_delivery"`
	LastError     string
	DeliveredAt   *time.Time
	CreatedAt     time.Time `gorm:"index"`
}

func (e *FeedEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		now := e.CreatedAt
		if now.IsZero() {
			now = time.Now().UTC()
		}
		id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
		if err != nil {
			return err
		}
		e.ID = id.String()
	}
	if e.State == "" {
		e.State = DeliveryPending
	}
	return nil
}

// Delivered reports whether the event reached the recipient.
func (e FeedEvent) Delivered() bool {
	return e.State == DeliveryDelivered
}
