package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"wehabit/internal/model"
	"wehabit/internal/repository"
)

// FriendService manages friend requests. Accepted friends receive each other's achievements.
type FriendService struct {
	store        *repository.Store
	achievements *AchievementService
	log          *log.Logger
}

func NewFriendService(store *repository.Store, achievements *AchievementService, l *log.Logger) *FriendService {
	return &FriendService{store: store, achievements: achievements, log: l}
}

// Request sends a friend request from userID to friendID. A pending request in
// the opposite direction is accepted instead.
func (s *FriendService) Request(ctx context.Context, userID, friendID uuid.UUID) (*model.Friendship, error) {
	if userID == friendID {
		return nil, fmt.Errorf("%w: cannot add yourself as a friend", ErrValidation)
	}
	var out *model.Friendship
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		users, err := tx.Users.LockByIDs(ctx, []uuid.UUID{userID, friendID})
		if err != nil {
			return fmt.Errorf("lock users: %w", err)
		}
		if _, ok := users[friendID]; !ok {
			return fmt.Errorf("%w: user", ErrNotFound)
		}
		f, err := tx.Friendships.FindPair(ctx, userID, friendID)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			f = &model.Friendship{UserID: userID, FriendID: friendID, Status: model.FriendshipPending}
			if err := tx.Friendships.Create(ctx, f); err != nil {
				return translate(err, "friendship")
			}
			out = f
			return nil
		case err != nil:
			return fmt.Errorf("find friendship: %w", err)
		case f.Status == model.FriendshipAccepted:
			return fmt.Errorf("%w: already friends", ErrConflict)
		case f.UserID == userID:
			return fmt.Errorf("%w: request already sent", ErrConflict)
		}
		if err := s.accept(ctx, tx, f); err != nil {
			return err
		}
		out = f
		return nil
	})
	return out, err
}

// Accept confirms the pending request sent by requesterID to userID.
func (s *FriendService) Accept(ctx context.Context, userID, requesterID uuid.UUID) (*model.Friendship, error) {
	var out *model.Friendship
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		if _, err := tx.Users.LockByIDs(ctx, []uuid.UUID{userID, requesterID}); err != nil {
			return fmt.Errorf("lock users: %w", err)
		}
		f, err := tx.Friendships.FindPair(ctx, userID, requesterID)
		if err != nil {
			return translate(err, "friend request")
		}
		if f.Status != model.FriendshipPending || f.FriendID != userID {
			return fmt.Errorf("%w: friend request", ErrNotFound)
		}
		if err := s.accept(ctx, tx, f); err != nil {
			return err
		}
		out = f
		return nil
	})
	return out, err
}

func (s *FriendService) accept(ctx context.Context, tx *repository.Store, f *model.Friendship) error {
	f.Status = model.FriendshipAccepted
	if err := tx.Friendships.Save(ctx, f); err != nil {
		return err
	}
	for _, id := range []uuid.UUID{f.UserID, f.FriendID} {
		if _, err := s.achievements.Evaluate(ctx, tx, id, model.AchievementFriendsCount); err != nil {
			return err
		}
	}
	s.log.Info("friendship accepted", "user", f.UserID, "friend", f.FriendID)
	return nil
}

// Remove deletes the friendship or pending request between userID and friendID.
func (s *FriendService) Remove(ctx context.Context, userID, friendID uuid.UUID) error {
	return s.store.Transaction(ctx, func(tx *repository.Store) error {
		f, err := tx.Friendships.FindPair(ctx, userID, friendID)
		if err != nil {
			return translate(err, "friendship")
		}
		return tx.Friendships.Delete(ctx, f.ID)
	})
}

// Friends returns the accepted friends of userID.
func (s *FriendService) Friends(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	ids, err := s.store.Friendships.FriendIDs(ctx, userID)
	if err != nil {
		return nil, translate(err, "friends")
	}
	return ids, nil
}
