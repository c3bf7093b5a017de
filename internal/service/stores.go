package service

import (
	"context"
	"proctor_backend/internal/model"
	"time"
)

// 服务层依赖的存储接口，由 internal/repository 的 gorm 实现满足

type RoundStore interface {
	FindByID(ctx context.Context, id uint) (*model.Round, error)
	ListByEvent(ctx context.Context, eventID uint) ([]model.Round, error)
	Start(ctx context.Context, id uint, now time.Time) error
	End(ctx context.Context, id uint, now time.Time) error
	MarkResultsPublished(ctx context.Context, id uint) error
	Reset(ctx context.Context, id uint) (int64, error)
}

type AttemptStore interface {
	Create(ctx context.Context, attempt *model.TestAttempt) error
	FindByID(ctx context.Context, id string) (*model.TestAttempt, error)
	FindByUserAndRound(ctx context.Context, userID, roundID uint) (*model.TestAttempt, error)
	ListInProgress(ctx context.Context) ([]model.TestAttempt, error)
	ListInProgressByRound(ctx context.Context, roundID uint) ([]model.TestAttempt, error)
	ListCompletedByRounds(ctx context.Context, roundIDs []uint) ([]model.TestAttempt, error)
	Answers(ctx context.Context, attemptID string) ([]model.Answer, error)
	UpsertAnswer(ctx context.Context, attemptID string, questionID uint, value string) error
	AppendViolation(ctx context.Context, attemptID string, entry model.ViolationLog, tabSwitch, refresh bool) (*model.TestAttempt, error)
	// Complete 仅当作答仍为 in_progress 时评分并提交，否则返回 ErrConflict
	Complete(ctx context.Context, attemptID string, now time.Time, grade func([]model.Answer) ([]model.Answer, int)) (*model.TestAttempt, error)
}

type QuestionStore interface {
	ListByRound(ctx context.Context, roundID uint) ([]model.Question, error)
}

type CredentialStore interface {
	ListByEvent(ctx context.Context, eventID uint) ([]model.EventCredential, error)
	FindByEventAndUser(ctx context.Context, eventID, userID uint) (*model.EventCredential, error)
	SetTestEnabled(ctx context.Context, id uint, enabled bool) error
}

type EventStore interface {
	FindByID(ctx context.Context, id uint) (*model.Event, error)
	IsEventAdmin(ctx context.Context, userID, eventID uint) (bool, error)
}

type UserStore interface {
	Names(ctx context.Context, ids []uint) (map[uint]string, error)
}

type RegistrationStore interface {
	FindByID(ctx context.Context, id uint) (*model.Registration, error)
	FindByEventAndUser(ctx context.Context, eventID, userID uint) (*model.Registration, error)
	UpdateStatus(ctx context.Context, id uint, status model.RegistrationStatus) (*model.Registration, error)
	Disqualify(ctx context.Context, eventID, userID uint, now time.Time) error
}

// Actor 发起操作的已认证用户
type Actor struct {
	UserID uint
	Role   model.UserRole
}
