package repository

import (
	"context"
	"proctor_backend/internal/model"

	"gorm.io/gorm"
)

type QuestionRepository struct {
	DB *gorm.DB
}

func NewQuestionRepository(db *gorm.DB) *QuestionRepository {
	return &QuestionRepository{DB: db}
}

func (r *QuestionRepository) ListByRound(ctx context.Context, roundID uint) ([]model.Question, error) {
	var qs []model.Question
	err := r.DB.WithContext(ctx).Where("round_id = ?", roundID).Order("`order` asc, id asc").Find(&qs).Error
	return qs, err
}
