package repository

import (
	"context"
	"proctor_backend/internal/model"

	"gorm.io/gorm"
)

type EventRepository struct {
	DB *gorm.DB
}

func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{DB: db}
}

func (r *EventRepository) FindByID(ctx context.Context, id uint) (*model.Event, error) {
	var e model.Event
	if err := r.DB.WithContext(ctx).First(&e, id).Error; err != nil {
		return nil, notFound(err, "event %d", id)
	}
	return &e, nil
}

func (r *EventRepository) AdministeredEventIDs(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	err := r.DB.WithContext(ctx).Model(&model.EventAdmin{}).Where("user_id = ?", userID).Pluck("event_id", &ids).Error
	return ids, err
}

func (r *EventRepository) IsEventAdmin(ctx context.Context, userID, eventID uint) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.EventAdmin{}).Where("user_id = ? AND event_id = ?", userID, eventID).Count(&count).Error
	return count > 0, err
}
