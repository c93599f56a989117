package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"wehabit/internal/model"
	"wehabit/internal/repository"
)

// UserService registers chat users and their notification preferences.
type UserService struct {
	store *repository.Store
}

func NewUserService(store *repository.Store) *UserService {
	return &UserService{store: store}
}

// Register finds or creates the user behind a Telegram account.
func (s *UserService) Register(ctx context.Context, telegramID int64, firstName, lastName, username string) (*model.User, error) {
	if telegramID == 0 {
		return nil, fmt.Errorf("%w: telegram id is required", ErrValidation)
	}
	return s.store.Users.UpsertFromTelegram(ctx, telegramID, firstName, lastName, username)
}

// SetPreferences toggles habit reminders and feed notifications for userID.
func (s *UserService) SetPreferences(ctx context.Context, userID uuid.UUID, reminders, feed bool) error {
	if err := s.store.Users.SetPreferences(ctx, userID, reminders, feed); err != nil {
		return translate(err, "user")
	}
	return nil
}
