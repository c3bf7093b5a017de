package service

import (
	"context"
	"proctor_backend/internal/model"
	"proctor_backend/pkg/logger"

	"go.uber.org/zap"
)

// ReportNotifier 报表与邮件协作方，只接收通知，返回值不影响核心状态
type ReportNotifier interface {
	RoundChanged(ctx context.Context, round *model.Round, action string)
	AttemptScored(ctx context.Context, attempt *model.TestAttempt, reason string)
}

// LogNotifier 默认实现：只写日志，报表渲染与邮件投递由外部服务订阅日志完成
type LogNotifier struct{}

func (LogNotifier) RoundChanged(ctx context.Context, round *model.Round, action string) {
	logger.Log.Info("Round changed",
		zap.Uint("roundId", round.ID),
		zap.Uint("eventId", round.EventID),
		zap.String("action", action),
		zap.String("status", string(round.Status)),
	)
}

func (LogNotifier) AttemptScored(ctx context.Context, attempt *model.TestAttempt, reason string) {
	logger.Log.Info("Attempt scored",
		zap.String("attemptId", attempt.ID),
		zap.Uint("roundId", attempt.RoundID),
		zap.Uint("userId", attempt.UserID),
		zap.Int("totalScore", attempt.TotalScore),
		zap.Int("maxScore", attempt.MaxScore),
		zap.String("reason", reason),
	)
}
