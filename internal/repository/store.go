package repository

import (
	"context"

	"gorm.io/gorm"
)

// Store bundles the repositories over one database handle. A Store created
// inside Transaction shares the transaction across every repository.
type Store struct {
	db *gorm.DB

	Users        *UserRepository
	Habits       *HabitRepository
	Participants *ParticipantRepository
	Completions  *CompletionRepository
	Feed         *FeedRepository
	Achievements *AchievementRepository
	Friendships  *FriendshipRepository
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:           db,
		Users:        NewUserRepository(db),
		Habits:       NewHabitRepository(db),
		Participants: NewParticipantRepository(db),
		Completions:  NewCompletionRepository(db),
		Feed:         NewFeedRepository(db),
		Achievements: NewAchievementRepository(db),
		Friendships:  NewFriendshipRepository(db),
	}
}

// Transaction runs fn with a transaction-scoped Store. Returning an error rolls back.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
