package repository

import (
	"context"
	"errors"
	"fmt"
	"proctor_backend/internal/model"
	"proctor_backend/internal/util"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AttemptRepository struct {
	DB *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) *AttemptRepository {
	return &AttemptRepository{DB: db}
}

func (r *AttemptRepository) Create(ctx context.Context, attempt *model.TestAttempt) error {
	err := r.DB.WithContext(ctx).Create(attempt).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("attempt for user %d in round %d: %w", attempt.UserID, attempt.RoundID, util.ErrConflict)
	}
	return err
}

func (r *AttemptRepository) FindByID(ctx context.Context, id string) (*model.TestAttempt, error) {
	var a model.TestAttempt
	if err := r.DB.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "attempt %s", id)
	}
	return &a, nil
}

func (r *AttemptRepository) FindByUserAndRound(ctx context.Context, userID, roundID uint) (*model.TestAttempt, error) {
	var a model.TestAttempt
	err := r.DB.WithContext(ctx).Where("user_id = ? AND round_id = ?", userID, roundID).First(&a).Error
	if err != nil {
		return nil, notFound(err, "attempt for user %d in round %d", userID, roundID)
	}
	return &a, nil
}

func (r *AttemptRepository) ListInProgress(ctx context.Context) ([]model.TestAttempt, error) {
	var attempts []model.TestAttempt
	err := r.DB.WithContext(ctx).Where("status = ?", model.AttemptInProgress).Find(&attempts).Error
	return attempts, err
}

func (r *AttemptRepository) ListInProgressByRound(ctx context.Context, roundID uint) ([]model.TestAttempt, error) {
	var attempts []model.TestAttempt
	err := r.DB.WithContext(ctx).Where("round_id = ? AND status = ?", roundID, model.AttemptInProgress).Find(&attempts).Error
	return attempts, err
}

func (r *AttemptRepository) ListCompletedByRounds(ctx context.Context, roundIDs []uint) ([]model.TestAttempt, error) {
	if len(roundIDs) == 0 {
		return nil, nil
	}
	var attempts []model.TestAttempt
	err := r.DB.WithContext(ctx).
		Where("round_id IN ? AND status = ?", roundIDs, model.AttemptCompleted).
		Order("submitted_at asc").
		Find(&attempts).Error
	return attempts, err
}

func (r *AttemptRepository) Answers(ctx context.Context, attemptID string) ([]model.Answer, error) {
	var answers []model.Answer
	err := r.DB.WithContext(ctx).Where("attempt_id = ?", attemptID).Order("question_id asc").Find(&answers).Error
	return answers, err
}

// lockInProgress 行锁读取作答，非作答中状态返回 ErrInvalidState
func lockInProgress(tx *gorm.DB, id string) (*model.TestAttempt, error) {
	var a model.TestAttempt
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&a, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "attempt %s", id)
	}
	if a.Status != model.AttemptInProgress {
		return nil, fmt.Errorf("attempt %s is %s: %w", id, a.Status, util.ErrInvalidState)
	}
	return &a, nil
}

// UpsertAnswer 按 (attempt_id, question_id) 写入答案并清空评分结果
func (r *AttemptRepository) UpsertAnswer(ctx context.Context, attemptID string, questionID uint, value string) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockInProgress(tx, attemptID); err != nil {
			return err
		}

		answer := model.Answer{AttemptID: attemptID, QuestionID: questionID, Answer: value}
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "attempt_id"}, {Name: "question_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"answer":         value,
				"is_correct":     nil,
				"points_awarded": 0,
				"updated_at":     time.Now(),
			}),
		}).Create(&answer).Error
	})
}

// AppendViolation 追加违规记录，行锁保证每次上报得到唯一的计数
func (r *AttemptRepository) AppendViolation(ctx context.Context, attemptID string, entry model.ViolationLog, tabSwitch, refresh bool) (*model.TestAttempt, error) {
	var updated *model.TestAttempt
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		a, err := lockInProgress(tx, attemptID)
		if err != nil {
			return err
		}

		a.ViolationLogs = append(a.ViolationLogs, entry)
		if tabSwitch {
			a.TabSwitchCount++
		}
		if refresh {
			a.RefreshAttemptCount++
		}

		if err := tx.Model(a).Select("violation_logs", "tab_switch_count", "refresh_attempt_count").Updates(a).Error; err != nil {
			return err
		}
		updated = a
		return nil
	})
	return updated, err
}

// Complete 交卷：评分与状态切换在同一事务内，条件更新保证只执行一次
func (r *AttemptRepository) Complete(ctx context.Context, attemptID string, now time.Time, grade func([]model.Answer) ([]model.Answer, int)) (*model.TestAttempt, error) {
	var completed *model.TestAttempt
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var a model.TestAttempt
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&a, "id = ?", attemptID).Error; err != nil {
			return notFound(err, "attempt %s", attemptID)
		}
		if a.Status != model.AttemptInProgress {
			return fmt.Errorf("attempt %s already submitted: %w", attemptID, util.ErrConflict)
		}

		var answers []model.Answer
		if err := tx.Where("attempt_id = ?", attemptID).Find(&answers).Error; err != nil {
			return err
		}
		graded, total := grade(answers)

		res := tx.Model(&model.TestAttempt{}).
			Where("id = ? AND status = ?", attemptID, model.AttemptInProgress).
			Updates(map[string]interface{}{
				"status":       model.AttemptCompleted,
				"submitted_at": now,
				"total_score":  total,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("attempt %s already submitted: %w", attemptID, util.ErrConflict)
		}

		for _, g := range graded {
			if err := tx.Model(&model.Answer{}).Where("id = ?", g.ID).Updates(map[string]interface{}{
				"is_correct":     g.IsCorrect,
				"points_awarded": g.PointsAwarded,
			}).Error; err != nil {
				return err
			}
		}

		a.Status = model.AttemptCompleted
		a.SubmittedAt = &now
		a.TotalScore = total
		completed = &a
		return nil
	})
	return completed, err
}
