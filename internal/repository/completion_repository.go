package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"wehabit/internal/model"
)

// DayCount is the number of completion records on one date.
type DayCount struct {
	Date  string
	Count int
}

// CompletionRepository stores completion records.
type CompletionRepository struct {
	db *gorm.DB
}

func NewCompletionRepository(db *gorm.DB) *CompletionRepository {
	return &CompletionRepository{db: db}
}

func (r *CompletionRepository) Create(ctx context.Context, c *model.Completion) error {
	if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("create completion: %w", err)
	}
	return nil
}

func (r *CompletionRepository) Exists(ctx context.Context, habitID, userID uuid.UUID, date string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Completion{}).
		Where("habit_id = ? AND user_id = ? AND date = ?", habitID, userID, date).
		Count(&count).Error
	return count > 0, err
}

// Delete removes one record and reports how many rows were affected.
func (r *CompletionRepository) Delete(ctx context.Context, habitID, userID uuid.UUID, date string) (int64, error) {
	res := r.db.WithContext(ctx).Where("habit_id = ? AND user_id = ? AND date = ?", habitID, userID, date).
		Delete(&model.Completion{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete completion: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// DeleteForParticipant removes every record of user in habit.
func (r *CompletionRepository) DeleteForParticipant(ctx context.Context, habitID, userID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Where("habit_id = ? AND user_id = ?", habitID, userID).
		Delete(&model.Completion{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete participant completions: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Dates returns the sorted completion dates of user in habit.
func (r *CompletionRepository) Dates(ctx context.Context, habitID, userID uuid.UUID) ([]string, error) {
	var dates []string
	err := r.db.WithContext(ctx).Model(&model.Completion{}).
		Where("habit_id = ? AND user_id = ?", habitID, userID).
		Order("date ASC").Pluck("date", &dates).Error
	return dates, err
}

// DatesByUser returns sorted completion dates of habit per user, restricted to userIDs.
func (r *CompletionRepository) DatesByUser(ctx context.Context, habitID uuid.UUID, userIDs []uuid.UUID) (map[uuid.UUID][]string, error) {
	out := make(map[uuid.UUID][]string, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	var rows []model.Completion
	if err := r.db.WithContext(ctx).Select("user_id", "date").
		Where("habit_id = ? AND user_id IN ?", habitID, userIDs).
		Order("date ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, id := range userIDs {
		out[id] = nil
	}
	for _, c := range rows {
		out[c.UserID] = append(out[c.UserID], c.Date)
	}
	return out, nil
}

// DatesByHabit returns the sorted completion dates of a user grouped by habit.
func (r *CompletionRepository) DatesByHabit(ctx context.Context, userID uuid.UUID) (map[uuid.UUID][]string, error) {
	var rows []model.Completion
	if err := r.db.WithContext(ctx).Select("habit_id", "date").
		Where("user_id = ?", userID).Order("date ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID][]string)
	for _, c := range rows {
		out[c.HabitID] = append(out[c.HabitID], c.Date)
	}
	return out, nil
}

// CountDistinctDays counts the distinct dates on which a user completed any habit.
func (r *CompletionRepository) CountDistinctDays(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Completion{}).
		Where("user_id = ?", userID).Distinct("date").Count(&count).Error
	return count, err
}

// DailyCounts aggregates records per date on or after since (YYYY-MM-DD, empty for all).
// A zero userID aggregates over every user of the habit.
func (r *CompletionRepository) DailyCounts(ctx context.Context, habitID, userID uuid.UUID, since string) ([]DayCount, error) {
	q := r.db.WithContext(ctx).Model(&model.Completion{}).
		Select("date, COUNT(*) AS count").
		Where("habit_id = ?", habitID)
	if userID != uuid.Nil {
		q = q.Where("user_id = ?", userID)
	}
	if since != "" {
		q = q.Where("date >= ?", since)
	}
	var rows []DayCount
	if err := q.Group("date").Order("date ASC").Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
