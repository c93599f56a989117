package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ParticipantStatus is the lifecycle state of a habit membership.
type ParticipantStatus string

const (
	StatusPending  ParticipantStatus = "pending"
	StatusAccepted ParticipantStatus = "accepted"
	StatusDeclined ParticipantStatus = "declined"
	StatusLeft     ParticipantStatus = "left"
	StatusRemoved  ParticipantStatus = "removed"
)

// Active reports whether the status counts towards the habit population.
func (s ParticipantStatus) Active() bool {
	return s == StatusPending || s == StatusAccepted
}

// Participant is a user's membership record in a habit.
type Participant struct {
	ID              uuid.UUID         `gorm:"type:uuid;primaryKey"`
	HabitID         uuid.UUID         `gorm:"type:uuid;not null;uniqueIndex:idx_participant_habit_user"`
	UserID          uuid.UUID         `gorm:"type:uuid;not null;uniqueIndex:idx_participant_habit_user;index"`
	InvitedBy       *uuid.UUID        `gorm:"type:uuid"`
	Status          ParticipantStatus `gorm:"size:16;not null;index"`
	Color           string            `gorm:"size:20"`
	ReminderEnabled bool              `gorm:"default:false"`
	ReminderTime    string            `gorm:"size:5"` // HH:MM
	ReminderTZ      string            `gorm:"size:64"`
	ReminderSentOn  string            `gorm:"size:10"`
	JoinedAt        *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (p *Participant) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
