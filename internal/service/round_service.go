package service

import (
	"context"
	"fmt"
	"proctor_backend/internal/model"
	"proctor_backend/internal/realtime"
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

const (
	RoundActionStart   = "start"
	RoundActionEnd     = "end"
	RoundActionRestart = "restart"
	RoundActionPublish = "publish"
)

// CredentialSummary 凭证批量开关的结果
type CredentialSummary struct {
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
}

// RoundTransition 轮次状态变更结果
type RoundTransition struct {
	Round       *model.Round      `json:"round"`
	Credentials CredentialSummary `json:"credentials"`
}

// RoundEndHook 轮次结束后的回调，由作答服务实现强制交卷
type RoundEndHook interface {
	OnRoundCompleted(ctx context.Context, round *model.Round) (int, error)
}

type RoundService struct {
	Rounds      RoundStore
	Attempts    AttemptStore
	Credentials CredentialStore
	Publisher   realtime.Publisher
	Notifier    ReportNotifier
	OnEnd       RoundEndHook

	// 凭证并发更新上限
	Concurrency int
	now         func() time.Time
}

func NewRoundService(rounds RoundStore, attempts AttemptStore, credentials CredentialStore, publisher realtime.Publisher, notifier ReportNotifier, onEnd RoundEndHook, concurrency int) *RoundService {
	if concurrency <= 0 {
		concurrency = 16
	}
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &RoundService{
		Rounds:      rounds,
		Attempts:    attempts,
		Credentials: credentials,
		Publisher:   publisher,
		Notifier:    notifier,
		OnEnd:       onEnd,
		Concurrency: concurrency,
		now:         time.Now,
	}
}

func (s *RoundService) Get(ctx context.Context, roundID uint) (*model.Round, error) {
	return s.Rounds.FindByID(ctx, roundID)
}

func (s *RoundService) ListByEvent(ctx context.Context, eventID uint) ([]model.Round, error) {
	return s.Rounds.ListByEvent(ctx, eventID)
}

// Start not_started -> in_progress，并开放该赛事全部凭证的答题权限
func (s *RoundService) Start(ctx context.Context, roundID uint) (*RoundTransition, error) {
	ctx, span := tracing.Start(ctx, "RoundService.Start")
	defer span.End()
	span.SetAttributes(attribute.Int64("round.id", int64(roundID)))

	if err := s.Rounds.Start(ctx, roundID, s.now()); err != nil {
		return nil, err
	}
	round, err := s.Rounds.FindByID(ctx, roundID)
	if err != nil {
		return nil, err
	}

	// 状态已提交，后续步骤不随请求取消
	ctx = context.WithoutCancel(ctx)
	summary := s.setTestEnabled(ctx, round.EventID, true)
	s.announce(ctx, round, RoundActionStart)
	return &RoundTransition{Round: round, Credentials: summary}, nil
}

// End in_progress -> completed，并强制提交该轮次所有未交卷的作答
func (s *RoundService) End(ctx context.Context, roundID uint) (*model.Round, error) {
	ctx, span := tracing.Start(ctx, "RoundService.End")
	defer span.End()
	span.SetAttributes(attribute.Int64("round.id", int64(roundID)))

	if err := s.Rounds.End(ctx, roundID, s.now()); err != nil {
		return nil, err
	}
	round, err := s.Rounds.FindByID(ctx, roundID)
	if err != nil {
		return nil, err
	}

	ctx = context.WithoutCancel(ctx)
	if s.OnEnd != nil {
		submitted, err := s.OnEnd.OnRoundCompleted(ctx, round)
		if err != nil {
			logger.Log.Error("Force submit on round end failed", zap.Uint("roundId", roundID), zap.Error(err))
		} else {
			logger.Log.Info("Round ended", zap.Uint("roundId", roundID), zap.Int("forceSubmitted", submitted))
		}
	}
	s.announce(ctx, round, RoundActionEnd)
	return round, nil
}

// Restart 任意状态 -> not_started，删除全部作答并关闭凭证答题权限，不可撤销，须显式确认
func (s *RoundService) Restart(ctx context.Context, actor Actor, roundID uint, confirm bool) (*RoundTransition, error) {
	if !confirm {
		return nil, fmt.Errorf("restart of round %d deletes all attempts and must be confirmed: %w", roundID, util.ErrInvalidArgument)
	}

	ctx, span := tracing.Start(ctx, "RoundService.Restart")
	defer span.End()
	span.SetAttributes(attribute.Int64("round.id", int64(roundID)))

	deleted, err := s.Rounds.Reset(ctx, roundID)
	if err != nil {
		return nil, err
	}
	round, err := s.Rounds.FindByID(ctx, roundID)
	if err != nil {
		return nil, err
	}
	logger.Log.Warn("Round restarted",
		zap.Uint("roundId", roundID),
		zap.Uint("actorId", actor.UserID),
		zap.Int64("deletedAttempts", deleted),
	)

	ctx = context.WithoutCancel(ctx)
	summary := s.setTestEnabled(ctx, round.EventID, false)
	s.announce(ctx, round, RoundActionRestart)
	s.publish(ctx, realtime.Event{
		Kind:    realtime.EventOverrideAction,
		EventID: round.EventID,
		Data: realtime.OverrideActionPayload{
			Action:  "round_restart",
			EventID: round.EventID,
			RoundID: round.ID,
			ActorID: actor.UserID,
		},
	})
	return &RoundTransition{Round: round, Credentials: summary}, nil
}

// PublishResults 仅已结束的轮次可发布，重复调用无副作用
func (s *RoundService) PublishResults(ctx context.Context, roundID uint) (*model.Round, error) {
	round, err := s.Rounds.FindByID(ctx, roundID)
	if err != nil {
		return nil, err
	}
	if round.Status != model.RoundCompleted {
		return nil, fmt.Errorf("round %d is %s: %w", roundID, round.Status, util.ErrInvalidState)
	}
	if round.ResultsPublished {
		return round, nil
	}

	if err := s.Rounds.MarkResultsPublished(ctx, roundID); err != nil {
		return nil, err
	}
	round.ResultsPublished = true

	ctx = context.WithoutCancel(ctx)
	attempts, err := s.Attempts.ListCompletedByRounds(ctx, []uint{roundID})
	if err != nil {
		logger.Log.Error("List attempts for result notification failed", zap.Uint("roundId", roundID), zap.Error(err))
		return round, nil
	}
	for _, a := range attempts {
		s.publish(ctx, realtime.Event{
			Kind:         realtime.EventResultPublished,
			EventID:      round.EventID,
			TargetUserID: a.UserID,
			Data:         realtime.ResultPublishedPayload{RoundID: round.ID, AttemptID: a.ID, Reason: RoundActionPublish},
		})
	}
	s.Notifier.RoundChanged(ctx, round, RoundActionPublish)
	return round, nil
}

// setTestEnabled 各凭证独立更新，单个失败只记录不阻塞其他
func (s *RoundService) setTestEnabled(ctx context.Context, eventID uint, enabled bool) CredentialSummary {
	creds, err := s.Credentials.ListByEvent(ctx, eventID)
	if err != nil {
		monitoring.CredentialUpdateFailures.Inc()
		logger.Log.Error("List event credentials failed", zap.Uint("eventId", eventID), zap.Error(err))
		return CredentialSummary{}
	}

	var failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(s.Concurrency)
	for _, cred := range creds {
		cred := cred
		g.Go(func() error {
			if err := s.Credentials.SetTestEnabled(ctx, cred.ID, enabled); err != nil {
				failed.Add(1)
				monitoring.CredentialUpdateFailures.Inc()
				logger.Log.Error("Update credential testEnabled failed",
					zap.Uint("credentialId", cred.ID),
					zap.Uint("userId", cred.UserID),
					zap.Bool("enabled", enabled),
					zap.Error(err),
				)
			}
			return nil
		})
	}
	g.Wait()

	summary := CredentialSummary{Failed: int(failed.Load())}
	summary.Updated = len(creds) - summary.Failed
	return summary
}

func (s *RoundService) announce(ctx context.Context, round *model.Round, action string) {
	s.publish(ctx, realtime.Event{
		Kind:    realtime.EventRoundStatus,
		EventID: round.EventID,
		Data: realtime.RoundStatusPayload{
			RoundID:     round.ID,
			EventID:     round.EventID,
			RoundNumber: round.RoundNumber,
			Status:      string(round.Status),
			Action:      action,
		},
	})
	s.Notifier.RoundChanged(ctx, round, action)
}

// publish 推送失败不回滚已提交的状态，客户端可重新拉取
func (s *RoundService) publish(ctx context.Context, ev realtime.Event) {
	if s.Publisher == nil {
		return
	}
	if err := s.Publisher.Publish(ctx, ev); err != nil {
		logger.Log.Warn("Realtime publish failed", zap.String("event", string(ev.Kind)), zap.Uint("eventId", ev.EventID), zap.Error(err))
	}
}
