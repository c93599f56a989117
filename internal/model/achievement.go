package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Achievement types known to the product.
const (
	AchievementTotalDays    = "total_days"
	AchievementFriendsCount = "friends_count"
	AchievementStreak       = "streak"
	AchievementHabitInvites = "habit_invites"
)

// AchievementTypes lists every type with a metric behind it.
var AchievementTypes = []string{
	AchievementTotalDays,
	AchievementFriendsCount,
	AchievementStreak,
	AchievementHabitInvites,
}

// KnownAchievementType reports whether kind is one of AchievementTypes.
func KnownAchievementType(kind string) bool {
	for _, k := range AchievementTypes {
		if k == kind {
			return true
		}
	}
	return false
}

// Achievement is an unlocked tier of an achievement type. Rows are never revoked.
type Achievement struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_achievement_user_type_tier"`
	Type      string    `gorm:"size:50;not null;uniqueIndex:idx_achievement_user_type_tier"`
	Tier      int       `gorm:"not null;uniqueIndex:idx_achievement_user_type_tier"`
	Metadata  string    // JSON: goal and metric value at unlock time
	CreatedAt time.Time
}

func (a *Achievement) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
