package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DateLayout is the storage format of calendar dates.
const DateLayout = "2006-01-02"

// Completion records that a user performed a habit on a calendar date.
type Completion struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	HabitID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_completion_habit_user_date"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_completion_habit_user_date;index"`
	Date      string    `gorm:"size:10;not null;uniqueIndex:idx_completion_habit_user_date"`
	Notes     string
	CreatedAt time.Time
}

func (c *Completion) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// ParseDate parses a YYYY-MM-DD calendar date into UTC midnight.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// DateOf returns the calendar date of t in its own location.
func DateOf(t time.Time) string {
	return t.Format(DateLayout)
}
