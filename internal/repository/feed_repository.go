package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"wehabit/internal/model"
)

// FeedRepository stores feed events and their delivery state.
type FeedRepository struct {
	db *gorm.DB
}

func NewFeedRepository(db *gorm.DB) *FeedRepository {
	return &FeedRepository{db: db}
}

func (r *FeedRepository) CreateBatch(ctx context.Context, events []model.FeedEvent) error {
	if len(events) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&events).Error; err != nil {
		return fmt.Errorf("create feed events: %w", err)
	}
	return nil
}

// ListForRecipient returns the newest events addressed to userID.
func (r *FeedRepository) ListForRecipient(ctx context.Context, userID uuid.UUID, limit int) ([]model.FeedEvent, error) {
	var events []model.FeedEvent
	if err := r.db.WithContext(ctx).Where("recipient_id = ?", userID).
		Order("created_at DESC, id DESC").Limit(limit).Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// ListDue returns undelivered events whose next attempt is due, oldest first.
func (r *FeedRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]model.FeedEvent, error) {
	var events []model.FeedEvent
	if err := r.db.WithContext(ctx).
		Where("state IN ? AND next_attempt_at <= ?", []model.DeliveryState{model.DeliveryPending, model.DeliveryFailedRetryable}, now).
		Order("id ASC").Limit(limit).Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

func (r *FeedRepository) FindByID(ctx context.Context, id string) (*model.FeedEvent, error) {
	var ev model.FeedEvent
	if err := r.db.WithContext(ctx).First(&ev, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &ev, nil
}

// UpdateDelivery persists the delivery fields of ev. Final states are never overwritten.
func (r *FeedRepository) UpdateDelivery(ctx context.Context, ev *model.FeedEvent) error {
	res := r.db.WithContext(ctx).Model(&model.FeedEvent{}).
		Where("id = ? AND state NOT IN ?", ev.ID, []model.DeliveryState{model.DeliveryDelivered, model.DeliveryAbandoned}).
		Updates(map[string]interface{}{
			"state":           ev.State,
			"attempts":        ev.Attempts,
			"next_attempt_at": ev.NextAttemptAt,
			"last_error":      ev.LastError,
			"delivered_at":    ev.DeliveredAt,
		})
	if res.Error != nil {
		return fmt.Errorf("update feed event %s: %w", ev.ID, res.Error)
	}
	return nil
}

// DeleteCreatedBefore removes events created before cutoff.
func (r *FeedRepository) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&model.FeedEvent{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete old feed events: %w", res.Error)
	}
	return res.RowsAffected, nil
}
