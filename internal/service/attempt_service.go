package service

import (
	"context"
	"errors"
	"fmt"
	"proctor_backend/internal/model"
	"proctor_backend/internal/proctor"
	"proctor_backend/internal/realtime"
	"proctor_backend/internal/scoring"
	"proctor_backend/internal/util"
	"proctor_backend/pkg/logger"
	"proctor_backend/pkg/monitoring"
	"proctor_backend/pkg/tracing"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Disqualifier 取消参赛资格的外部协作方
type Disqualifier interface {
	Disqualify(ctx context.Context, eventID, userID uint) error
}

// EventAuthorizer 校验管理员是否有权管理某赛事
type EventAuthorizer interface {
	RequireEventAdmin(ctx context.Context, actor Actor, eventID uint) error
}

// ViolationResult 违规上报的处理结果
type ViolationResult struct {
	Decision       proctor.Decision    `json:"decision"`
	Warning        string              `json:"warning,omitempty"`
	ViolationCount int                 `json:"violationCount"`
	Status         model.AttemptStatus `json:"status"`
	Submitted      bool                `json:"submitted"`
}

type AttemptService struct {
	Attempts     AttemptStore
	Rounds       RoundStore
	Questions    QuestionStore
	Events       EventStore
	Access       EventAuthorizer
	Disqualifier Disqualifier
	Publisher    realtime.Publisher
	Notifier     ReportNotifier

	// 轮次结束时并发交卷的上限
	Concurrency int
	now         func() time.Time
}

func NewAttemptService(attempts AttemptStore, rounds RoundStore, questions QuestionStore, events EventStore, access EventAuthorizer, disqualifier Disqualifier, publisher realtime.Publisher, notifier ReportNotifier, concurrency int) *AttemptService {
	if concurrency <= 0 {
		concurrency = 16
	}
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &AttemptService{
		Attempts:     attempts,
		Rounds:       rounds,
		Questions:    questions,
		Events:       events,
		Access:       access,
		Disqualifier: disqualifier,
		Publisher:    publisher,
		Notifier:     notifier,
		Concurrency:  concurrency,
		now:          time.Now,
	}
}

// Begin 创建作答。轮次须进行中，凭证开关由调用方校验
func (s *AttemptService) Begin(ctx context.Context, userID, roundID uint) (*model.TestAttempt, error) {
	ctx, span := tracing.Start(ctx, "AttemptService.Begin")
	defer span.End()
	span.SetAttributes(attribute.Int64("round.id", int64(roundID)), attribute.Int64("user.id", int64(userID)))

	round, err := s.Rounds.FindByID(ctx, roundID)
	if err != nil {
		return nil, err
	}
	if round.Status != model.RoundInProgress {
		return nil, fmt.Errorf("round %d is %s: %w", roundID, round.Status, util.ErrInvalidState)
	}

	if _, err := s.Attempts.FindByUserAndRound(ctx, userID, roundID); err == nil {
		return nil, fmt.Errorf("attempt for user %d in round %d already exists: %w", userID, roundID, util.ErrConflict)
	} else if !errors.Is(err, util.ErrNotFound) {
		return nil, err
	}

	questions, err := s.Questions.ListByRound(ctx, roundID)
	if err != nil {
		return nil, err
	}

	attempt := &model.TestAttempt{
		RoundID:       roundID,
		UserID:        userID,
		StartedAt:     s.now(),
		Status:        model.AttemptInProgress,
		ViolationLogs: []model.ViolationLog{},
		MaxScore:      scoring.MaxScore(questions),
	}
	if err := s.Attempts.Create(ctx, attempt); err != nil {
		return nil, err
	}

	logger.Log.Info("Attempt started",
		zap.String("attemptId", attempt.ID),
		zap.Uint("roundId", roundID),
		zap.Uint("userId", userID),
		zap.Int("maxScore", attempt.MaxScore),
	)
	return attempt, nil
}

// RecordAnswer 保存答案，不评分，交卷前可反复修改
func (s *AttemptService) RecordAnswer(ctx context.Context, userID uint, attemptID string, questionID uint, value string) error {
	a, round, err := s.loadActive(ctx, userID, attemptID)
	if err != nil {
		return err
	}

	questions, err := s.Questions.ListByRound(ctx, round.ID)
	if err != nil {
		return err
	}
	found := false
	for _, q := range questions {
		if q.ID == questionID {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("question %d in round %d: %w", questionID, round.ID, util.ErrNotFound)
	}

	return s.Attempts.UpsertAnswer(ctx, a.ID, questionID, value)
}

// ReportViolation 记录违规并按累计次数升级，达到阈值时取消资格并自动交卷
func (s *AttemptService) ReportViolation(ctx context.Context, userID uint, attemptID string, violation string) (*ViolationResult, error) {
	ctx, span := tracing.Start(ctx, "AttemptService.ReportViolation")
	defer span.End()

	vt, err := proctor.ParseViolationType(violation)
	if err != nil {
		return nil, err
	}
	_, round, err := s.loadActive(ctx, userID, attemptID)
	if err != nil {
		return nil, err
	}

	// 时间戳取服务端时间
	entry := model.ViolationLog{Type: string(vt), Timestamp: s.now()}
	updated, err := s.Attempts.AppendViolation(ctx, attemptID, entry, vt.CountsAsTabSwitch(), vt.CountsAsRefresh())
	if err != nil {
		return nil, err
	}
	monitoring.ProctorViolations.WithLabelValues(string(vt)).Inc()

	count := updated.ViolationCount()
	decision := proctor.Decide(count)
	result := &ViolationResult{
		Decision:       decision,
		Warning:        proctor.Warning(decision),
		ViolationCount: count,
		Status:         updated.Status,
	}
	span.SetAttributes(attribute.String("proctor.decision", string(decision)), attribute.Int("proctor.count", count))

	logger.Log.Info("Violation reported",
		zap.String("attemptId", attemptID),
		zap.Uint("userId", userID),
		zap.String("type", string(vt)),
		zap.Int("count", count),
		zap.String("decision", string(decision)),
	)

	if decision != proctor.DecisionDisqualify {
		return result, nil
	}

	ctx = context.WithoutCancel(ctx)
	// 行锁保证计数唯一，只有恰好达到阈值的那次上报触发取消资格
	if count == proctor.DisqualifyThreshold && s.Disqualifier != nil {
		if err := s.Disqualifier.Disqualify(ctx, round.EventID, userID); err != nil {
			logger.Log.Error("Disqualify participant failed",
				zap.Uint("eventId", round.EventID),
				zap.Uint("userId", userID),
				zap.Error(err),
			)
		}
	}
	if _, err := s.finalize(ctx, updated, util.SubmitReasonViolation); err != nil && !errors.Is(err, util.ErrConflict) {
		return nil, err
	}
	result.Submitted = true
	result.Status = model.AttemptCompleted
	return result, nil
}

// Submit 参赛者主动交卷，已交卷返回 ErrConflict
func (s *AttemptService) Submit(ctx context.Context, userID uint, attemptID string) (*model.TestAttempt, error) {
	ctx, span := tracing.Start(ctx, "AttemptService.Submit")
	defer span.End()

	a, err := s.loadOwned(ctx, userID, attemptID)
	if err != nil {
		return nil, err
	}
	if a.Status != model.AttemptInProgress {
		return nil, fmt.Errorf("attempt %s already submitted: %w", attemptID, util.ErrConflict)
	}
	round, err := s.Rounds.FindByID(ctx, a.RoundID)
	if err != nil {
		return nil, err
	}

	reason := util.SubmitReasonManual
	if due := s.dueReason(a, round); due != "" {
		reason = due
	}
	return s.finalize(ctx, a, reason)
}

// ForceSubmit 超级管理员强制交卷
func (s *AttemptService) ForceSubmit(ctx context.Context, actor Actor, attemptID string) (*model.TestAttempt, error) {
	a, err := s.Attempts.FindByID(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if a.Status != model.AttemptInProgress {
		return nil, fmt.Errorf("attempt %s already submitted: %w", attemptID, util.ErrConflict)
	}
	round, err := s.Rounds.FindByID(ctx, a.RoundID)
	if err != nil {
		return nil, err
	}

	completed, err := s.finalize(ctx, a, util.SubmitReasonOverride)
	if err != nil {
		return nil, err
	}

	logger.Log.Warn("Attempt force submitted",
		zap.String("attemptId", attemptID),
		zap.Uint("actorId", actor.UserID),
	)
	s.publish(context.WithoutCancel(ctx), realtime.Event{
		Kind:    realtime.EventOverrideAction,
		EventID: round.EventID,
		Data: realtime.OverrideActionPayload{
			Action:    "force_submit",
			EventID:   round.EventID,
			RoundID:   round.ID,
			AttemptID: attemptID,
			UserID:    a.UserID,
			ActorID:   actor.UserID,
		},
	})
	return completed, nil
}

// View 返回作答详情。参赛者只能查看自己的作答，成绩按可见性规则隐藏
func (s *AttemptService) View(ctx context.Context, actor Actor, attemptID string) (*AttemptView, error) {
	a, err := s.Attempts.FindByID(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, actor, a)
}

// MyAttempt 参赛者查看自己在某轮次的作答
func (s *AttemptService) MyAttempt(ctx context.Context, userID, roundID uint) (*AttemptView, error) {
	a, err := s.Attempts.FindByUserAndRound(ctx, userID, roundID)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, Actor{UserID: userID, Role: model.RoleParticipant}, a)
}

func (s *AttemptService) view(ctx context.Context, actor Actor, a *model.TestAttempt) (*AttemptView, error) {
	round, err := s.Rounds.FindByID(ctx, a.RoundID)
	if err != nil {
		return nil, err
	}

	full := actor.Role.IsAdmin()
	if full {
		if s.Access != nil {
			if err := s.Access.RequireEventAdmin(ctx, actor, round.EventID); err != nil {
				return nil, err
			}
		}
	} else if a.UserID != actor.UserID {
		return nil, fmt.Errorf("attempt %s belongs to another user: %w", a.ID, util.ErrForbidden)
	}

	// 读路径同样检查超时，不依赖定时任务
	if reason := s.dueReason(a, round); reason != "" {
		completed, err := s.finalize(ctx, a, reason)
		switch {
		case err == nil:
			a = completed
		case errors.Is(err, util.ErrConflict):
			if a, err = s.Attempts.FindByID(ctx, a.ID); err != nil {
				return nil, err
			}
		default:
			return nil, err
		}
	}

	event, err := s.Events.FindByID(ctx, round.EventID)
	if err != nil {
		return nil, err
	}
	questions, err := s.Questions.ListByRound(ctx, round.ID)
	if err != nil {
		return nil, err
	}
	answers, err := s.Attempts.Answers(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	return buildAttemptView(s.now(), full, a, round, event, questions, answers)
}

// SubmitExpired 提交所有已超时的作答，由后台定时任务调用
func (s *AttemptService) SubmitExpired(ctx context.Context) (int, error) {
	attempts, err := s.Attempts.ListInProgress(ctx)
	if err != nil {
		return 0, err
	}

	rounds := make(map[uint]*model.Round)
	submitted := 0
	for i := range attempts {
		a := &attempts[i]
		round, ok := rounds[a.RoundID]
		if !ok {
			if round, err = s.Rounds.FindByID(ctx, a.RoundID); err != nil {
				logger.Log.Error("Load round for expiry check failed", zap.Uint("roundId", a.RoundID), zap.Error(err))
				continue
			}
			rounds[a.RoundID] = round
		}

		reason := s.dueReason(a, round)
		if reason == "" {
			continue
		}
		if _, err := s.finalize(ctx, a, reason); err != nil {
			if !errors.Is(err, util.ErrConflict) {
				logger.Log.Error("Auto submit failed", zap.String("attemptId", a.ID), zap.Error(err))
			}
			continue
		}
		submitted++
	}
	return submitted, nil
}

// OnRoundCompleted 轮次结束时强制提交该轮次全部进行中的作答
func (s *AttemptService) OnRoundCompleted(ctx context.Context, round *model.Round) (int, error) {
	attempts, err := s.Attempts.ListInProgressByRound(ctx, round.ID)
	if err != nil {
		return 0, err
	}

	var submitted atomic.Int64
	var g errgroup.Group
	g.SetLimit(s.Concurrency)
	for i := range attempts {
		a := &attempts[i]
		g.Go(func() error {
			_, err := s.finalize(ctx, a, util.SubmitReasonRoundEnded)
			switch {
			case err == nil:
				submitted.Add(1)
			case errors.Is(err, util.ErrConflict):
			default:
				logger.Log.Error("Force submit on round end failed", zap.String("attemptId", a.ID), zap.Error(err))
				return err
			}
			return nil
		})
	}
	err = g.Wait()
	return int(submitted.Load()), err
}

// loadOwned 读取作答并校验归属
func (s *AttemptService) loadOwned(ctx context.Context, userID uint, attemptID string) (*model.TestAttempt, error) {
	a, err := s.Attempts.FindByID(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if a.UserID != userID {
		return nil, fmt.Errorf("attempt %s belongs to another user: %w", attemptID, util.ErrForbidden)
	}
	return a, nil
}

// loadActive 读取仍可作答的作答；已超时或轮次已结束的先自动交卷再拒绝
func (s *AttemptService) loadActive(ctx context.Context, userID uint, attemptID string) (*model.TestAttempt, *model.Round, error) {
	a, err := s.loadOwned(ctx, userID, attemptID)
	if err != nil {
		return nil, nil, err
	}
	if a.Status != model.AttemptInProgress {
		return nil, nil, fmt.Errorf("attempt %s is %s: %w", attemptID, a.Status, util.ErrInvalidState)
	}
	round, err := s.Rounds.FindByID(ctx, a.RoundID)
	if err != nil {
		return nil, nil, err
	}

	if reason := s.dueReason(a, round); reason != "" {
		if _, err := s.finalize(ctx, a, reason); err != nil && !errors.Is(err, util.ErrConflict) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("attempt %s closed (%s): %w", attemptID, reason, util.ErrInvalidState)
	}
	return a, round, nil
}

// dueReason 按服务端时钟判断是否应自动交卷，不信任客户端剩余时间
func (s *AttemptService) dueReason(a *model.TestAttempt, round *model.Round) string {
	if a.Status != model.AttemptInProgress {
		return ""
	}
	if a.Expired(s.now(), round.Window()) {
		return util.SubmitReasonTimeExpiry
	}
	if round.Status == model.RoundCompleted {
		return util.SubmitReasonRoundEnded
	}
	return ""
}

// finalize 评分并提交。唯一的提交入口，并发触发时只有一个成功，其余得到 ErrConflict
func (s *AttemptService) finalize(ctx context.Context, a *model.TestAttempt, reason string) (*model.TestAttempt, error) {
	// 交卷一经开始不随请求取消
	ctx = context.WithoutCancel(ctx)

	questions, err := s.Questions.ListByRound(ctx, a.RoundID)
	if err != nil {
		return nil, err
	}
	completed, err := s.Attempts.Complete(ctx, a.ID, s.now(), func(answers []model.Answer) ([]model.Answer, int) {
		return scoring.GradeAttempt(questions, answers)
	})
	if err != nil {
		return nil, err
	}

	monitoring.AttemptSubmissions.WithLabelValues(reason).Inc()
	logger.Log.Info("Attempt submitted",
		zap.String("attemptId", completed.ID),
		zap.Uint("userId", completed.UserID),
		zap.Int("totalScore", completed.TotalScore),
		zap.String("reason", reason),
	)
	s.Notifier.AttemptScored(ctx, completed, reason)
	// 只通知交卷，成绩由客户端按可见性规则重新拉取
	s.publish(ctx, realtime.Event{
		Kind:         realtime.EventResultPublished,
		TargetUserID: completed.UserID,
		Data:         realtime.ResultPublishedPayload{RoundID: completed.RoundID, AttemptID: completed.ID, Reason: reason},
	})
	return completed, nil
}

func (s *AttemptService) publish(ctx context.Context, ev realtime.Event) {
	if s.Publisher == nil {
		return
	}
	if err := s.Publisher.Publish(ctx, ev); err != nil {
		logger.Log.Warn("Realtime publish failed", zap.String("event", string(ev.Kind)), zap.Error(err))
	}
}
