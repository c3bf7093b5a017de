package repository

import (
	"context"
	"fmt"
	"proctor_backend/internal/model"
	"proctor_backend/internal/util"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RoundRepository struct {
	DB *gorm.DB
}

func NewRoundRepository(db *gorm.DB) *RoundRepository {
	return &RoundRepository{DB: db}
}

func (r *RoundRepository) FindByID(ctx context.Context, id uint) (*model.Round, error) {
	var round model.Round
	if err := r.DB.WithContext(ctx).First(&round, id).Error; err != nil {
		return nil, notFound(err, "round %d", id)
	}
	return &round, nil
}

func (r *RoundRepository) ListByEvent(ctx context.Context, eventID uint) ([]model.Round, error) {
	var rounds []model.Round
	err := r.DB.WithContext(ctx).Where("event_id = ?", eventID).Order("round_number asc, id asc").Find(&rounds).Error
	return rounds, err
}

// transition 条件更新：只有当前状态为 from 时才生效，并发下只有一个调用者成功
func (r *RoundRepository) transition(ctx context.Context, id uint, from model.RoundStatus, updates map[string]interface{}) error {
	res := r.DB.WithContext(ctx).Model(&model.Round{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	round, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("round %d is %s, expected %s: %w", id, round.Status, from, util.ErrInvalidState)
}

func (r *RoundRepository) Start(ctx context.Context, id uint, now time.Time) error {
	return r.transition(ctx, id, model.RoundNotStarted, map[string]interface{}{
		"status":     model.RoundInProgress,
		"started_at": now,
		"ended_at":   nil,
	})
}

func (r *RoundRepository) End(ctx context.Context, id uint, now time.Time) error {
	return r.transition(ctx, id, model.RoundInProgress, map[string]interface{}{
		"status":   model.RoundCompleted,
		"ended_at": now,
	})
}

func (r *RoundRepository) MarkResultsPublished(ctx context.Context, id uint) error {
	return r.transition(ctx, id, model.RoundCompleted, map[string]interface{}{
		"results_published": true,
	})
}

// Reset 删除轮次下全部作答及答案并恢复为未开始，返回删除的作答数
func (r *RoundRepository) Reset(ctx context.Context, id uint) (int64, error) {
	var deleted int64
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var round model.Round
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&round, id).Error; err != nil {
			return notFound(err, "round %d", id)
		}

		// 硬删除，否则软删除的行仍占用 (user_id, round_id) 唯一索引
		attemptIDs := tx.Unscoped().Model(&model.TestAttempt{}).Select("id").Where("round_id = ?", id)
		if err := tx.Unscoped().Where("attempt_id IN (?)", attemptIDs).Delete(&model.Answer{}).Error; err != nil {
			return err
		}

		res := tx.Unscoped().Where("round_id = ?", id).Delete(&model.TestAttempt{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected

		return tx.Model(&model.Round{}).Where("id = ?", id).Updates(map[string]interface{}{
			"status":            model.RoundNotStarted,
			"started_at":        nil,
			"ended_at":          nil,
			"results_published": false,
		}).Error
	})
	return deleted, err
}
