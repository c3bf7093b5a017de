package repository

import (
	"context"
	"proctor_backend/internal/model"

	"gorm.io/gorm"
)

type CredentialRepository struct {
	DB *gorm.DB
}

func NewCredentialRepository(db *gorm.DB) *CredentialRepository {
	return &CredentialRepository{DB: db}
}

func (r *CredentialRepository) ListByEvent(ctx context.Context, eventID uint) ([]model.EventCredential, error) {
	var creds []model.EventCredential
	err := r.DB.WithContext(ctx).Where("event_id = ?", eventID).Find(&creds).Error
	return creds, err
}

func (r *CredentialRepository) FindByEventAndUser(ctx context.Context, eventID, userID uint) (*model.EventCredential, error) {
	var cred model.EventCredential
	err := r.DB.WithContext(ctx).Where("event_id = ? AND user_id = ?", eventID, userID).First(&cred).Error
	if err != nil {
		return nil, notFound(err, "credential for user %d in event %d", userID, eventID)
	}
	return &cred, nil
}

func (r *CredentialRepository) SetTestEnabled(ctx context.Context, id uint, enabled bool) error {
	return r.DB.WithContext(ctx).Model(&model.EventCredential{}).Where("id = ?", id).Update("test_enabled", enabled).Error
}

// ParticipantIDs 持有该赛事凭证的参赛者
func (r *CredentialRepository) ParticipantIDs(ctx context.Context, eventID uint) ([]uint, error) {
	var ids []uint
	err := r.DB.WithContext(ctx).Model(&model.EventCredential{}).Where("event_id = ?", eventID).Distinct().Pluck("user_id", &ids).Error
	return ids, err
}
