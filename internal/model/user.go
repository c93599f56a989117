package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User stores Telegram user metadata and notification preferences.
type User struct {
	ID                       uuid.UUID `gorm:"type:uuid;primaryKey"`
	TelegramID               int64     `gorm:"uniqueIndex"`
	FirstName                string
	LastName                 string
	Username                 string
	HabitRemindersEnabled    bool `gorm:"not null;default:true"`
	FeedNotificationsEnabled bool `gorm:"not null;default:true"`
	CreatedAt                time.Time
	UpdatedAt                time.Time
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// DisplayName is the name used in notification texts.
func (u User) DisplayName() string {
	if u.FirstName != "" {
		return u.FirstName
	}
	if u.Username != "" {
		return u.Username
	}
	return "Пользователь"
}
