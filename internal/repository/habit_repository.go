package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"wehabit/internal/model"
)

// HabitRepository handles CRUD for habits.
type HabitRepository struct {
	db *gorm.DB
}

func NewHabitRepository(db *gorm.DB) *HabitRepository {
	return &HabitRepository{db: db}
}

func (r *HabitRepository) Create(ctx context.Context, habit *model.Habit) error {
	if err := r.db.WithContext(ctx).Create(habit).Error; err != nil {
		return fmt.Errorf("create habit: %w", err)
	}
	return nil
}

func (r *HabitRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Habit, error) {
	var habit model.Habit
	if err := r.db.WithContext(ctx).First(&habit, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &habit, nil
}

// FindByIDForUpdate loads the habit and holds its row lock until the transaction ends.
// Membership changes take it first so capacity and color checks see committed state.
// SQLite ignores the clause; its writers are already serialised.
func (r *HabitRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Habit, error) {
	var habit model.Habit
	if err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&habit, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &habit, nil
}

// FindByIDs returns the habits that exist among ids, keyed by id.
func (r *HabitRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]model.Habit, error) {
	out := make(map[uuid.UUID]model.Habit, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var habits []model.Habit
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&habits).Error; err != nil {
		return nil, err
	}
	for _, h := range habits {
		out[h.ID] = h
	}
	return out, nil
}

func (r *HabitRepository) MarkShared(ctx context.Context, id uuid.UUID) error {
	if err := r.db.WithContext(ctx).Model(&model.Habit{}).Where("id = ?", id).Update("is_shared", true).Error; err != nil {
		return fmt.Errorf("mark habit shared: %w", err)
	}
	return nil
}
