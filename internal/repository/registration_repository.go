package repository

import (
	"context"
	"proctor_backend/internal/model"
	"time"

	"gorm.io/gorm"
)

type RegistrationRepository struct {
	DB *gorm.DB
}

func NewRegistrationRepository(db *gorm.DB) *RegistrationRepository {
	return &RegistrationRepository{DB: db}
}

func (r *RegistrationRepository) FindByID(ctx context.Context, id uint) (*model.Registration, error) {
	var reg model.Registration
	if err := r.DB.WithContext(ctx).First(&reg, id).Error; err != nil {
		return nil, notFound(err, "registration %d", id)
	}
	return &reg, nil
}

func (r *RegistrationRepository) FindByEventAndUser(ctx context.Context, eventID, userID uint) (*model.Registration, error) {
	var reg model.Registration
	err := r.DB.WithContext(ctx).Where("event_id = ? AND user_id = ?", eventID, userID).First(&reg).Error
	if err != nil {
		return nil, notFound(err, "registration for user %d in event %d", userID, eventID)
	}
	return &reg, nil
}

func (r *RegistrationRepository) UpdateStatus(ctx context.Context, id uint, status model.RegistrationStatus) (*model.Registration, error) {
	res := r.DB.WithContext(ctx).Model(&model.Registration{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return nil, res.Error
	}
	return r.FindByID(ctx, id)
}

// Disqualify 标记取消资格，重复调用不改变首次时间
func (r *RegistrationRepository) Disqualify(ctx context.Context, eventID, userID uint, now time.Time) error {
	res := r.DB.WithContext(ctx).Model(&model.Registration{}).
		Where("event_id = ? AND user_id = ? AND disqualified = ?", eventID, userID, false).
		Updates(map[string]interface{}{
			"disqualified":    true,
			"disqualified_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		_, err := r.FindByEventAndUser(ctx, eventID, userID)
		return err
	}
	return nil
}
