package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"wehabit/internal/model"
)

// AchievementRepository stores unlocked achievement tiers.
type AchievementRepository struct {
	db *gorm.DB
}

func NewAchievementRepository(db *gorm.DB) *AchievementRepository {
	return &AchievementRepository{db: db}
}

func (r *AchievementRepository) Create(ctx context.Context, a *model.Achievement) error {
	if err := r.db.WithContext(ctx).Create(a).Error; err != nil {
		return fmt.Errorf("create achievement: %w", err)
	}
	return nil
}

func (r *AchievementRepository) Exists(ctx context.Context, userID uuid.UUID, kind string, tier int) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Achievement{}).
		Where("user_id = ? AND type = ? AND tier = ?", userID, kind, tier).
		Count(&count).Error
	return count > 0, err
}

func (r *AchievementRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]model.Achievement, error) {
	var rows []model.Achievement
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("created_at DESC, tier DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// FindByIDs returns the achievements that exist among ids, keyed by id.
func (r *AchievementRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]model.Achievement, error) {
	out := make(map[uuid.UUID]model.Achievement, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []model.Achievement
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, a := range rows {
		out[a.ID] = a
	}
	return out, nil
}
