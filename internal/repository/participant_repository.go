package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"wehabit/internal/model"
)

var activeStatuses = []model.ParticipantStatus{model.StatusPending, model.StatusAccepted}

// ParticipantRepository handles habit membership rows.
type ParticipantRepository struct {
	db *gorm.DB
}

func NewParticipantRepository(db *gorm.DB) *ParticipantRepository {
	return &ParticipantRepository{db: db}
}

func (r *ParticipantRepository) Create(ctx context.Context, p *model.Participant) error {
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("create participant: %w", err)
	}
	return nil
}

func (r *ParticipantRepository) Save(ctx context.Context, p *model.Participant) error {
	if err := r.db.WithContext(ctx).Save(p).Error; err != nil {
		return fmt.Errorf("save participant: %w", err)
	}
	return nil
}

func (r *ParticipantRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Participant{}).Error; err != nil {
		return fmt.Errorf("delete participant: %w", err)
	}
	return nil
}

// Find returns the membership row of user in habit, whatever its status.
func (r *ParticipantRepository) Find(ctx context.Context, habitID, userID uuid.UUID) (*model.Participant, error) {
	var p model.Participant
	if err := r.db.WithContext(ctx).Where("habit_id = ? AND user_id = ?", habitID, userID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// ListActive returns pending and accepted participants in join order.
func (r *ParticipantRepository) ListActive(ctx context.Context, habitID uuid.UUID) ([]model.Participant, error) {
	var ps []model.Participant
	if err := r.db.WithContext(ctx).Where("habit_id = ? AND status IN ?", habitID, activeStatuses).
		Order("created_at ASC").Find(&ps).Error; err != nil {
		return nil, err
	}
	return ps, nil
}

func (r *ParticipantRepository) ListAccepted(ctx context.Context, habitID uuid.UUID) ([]model.Participant, error) {
	var ps []model.Participant
	if err := r.db.WithContext(ctx).Where("habit_id = ? AND status = ?", habitID, model.StatusAccepted).
		Order("created_at ASC").Find(&ps).Error; err != nil {
		return nil, err
	}
	return ps, nil
}

// ListReminderCandidates returns accepted participants with a configured, enabled reminder.
func (r *ParticipantRepository) ListReminderCandidates(ctx context.Context) ([]model.Participant, error) {
	var ps []model.Participant
	if err := r.db.WithContext(ctx).
		Where("status = ? AND reminder_enabled = ? AND reminder_time <> ''", model.StatusAccepted, true).
		Find(&ps).Error; err != nil {
		return nil, err
	}
	return ps, nil
}

// CountAcceptedInOwnedHabits counts distinct users accepted into habits owned by ownerID, the owner excluded.
func (r *ParticipantRepository) CountAcceptedInOwnedHabits(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Participant{}).
		Joins("JOIN habits ON habits.id = participants.habit_id").
		Where("habits.owner_id = ? AND participants.status = ? AND participants.user_id <> ?", ownerID, model.StatusAccepted, ownerID).
		Distinct("participants.user_id").
		Count(&count).Error
	return count, err
}

func (r *ParticipantRepository) MarkReminderSent(ctx context.Context, id uuid.UUID, date string) error {
	if err := r.db.WithContext(ctx).Model(&model.Participant{}).Where("id = ?", id).
		Update("reminder_sent_on", date).Error; err != nil {
		return fmt.Errorf("mark reminder sent: %w", err)
	}
	return nil
}
