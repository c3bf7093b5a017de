package service

import (
	"context"
	"fmt"
	"proctor_backend/internal/model"
	"proctor_backend/internal/realtime"
	"proctor_backend/internal/util"
	"proctor_backend/pkg/logger"
	"time"

	"go.uber.org/zap"
)

// RegistrationService 报名审核与取消资格，变更通过 registrationUpdate / overrideAction 推送
type RegistrationService struct {
	Registrations RegistrationStore
	Publisher     realtime.Publisher
	now           func() time.Time
}

func NewRegistrationService(registrations RegistrationStore, publisher realtime.Publisher) *RegistrationService {
	return &RegistrationService{Registrations: registrations, Publisher: publisher, now: time.Now}
}

func (s *RegistrationService) Review(ctx context.Context, actor Actor, registrationID uint, status model.RegistrationStatus) (*model.Registration, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("registration status %q: %w", status, util.ErrInvalidArgument)
	}
	if _, err := s.Registrations.FindByID(ctx, registrationID); err != nil {
		return nil, err
	}
	reg, err := s.Registrations.UpdateStatus(ctx, registrationID, status)
	if err != nil {
		return nil, err
	}

	logger.Log.Info("Registration reviewed",
		zap.Uint("registrationId", reg.ID),
		zap.Uint("actorId", actor.UserID),
		zap.String("status", string(status)),
	)
	s.publish(context.WithoutCancel(ctx), realtime.Event{
		Kind:    realtime.EventRegistrationUpdate,
		EventID: reg.EventID,
		Data: realtime.RegistrationUpdatePayload{
			RegistrationID: reg.ID,
			EventID:        reg.EventID,
			UserID:         reg.UserID,
			Status:         string(reg.Status),
		},
	})
	return reg, nil
}

// Disqualify 由监考策略调用，同时通知超级管理员
func (s *RegistrationService) Disqualify(ctx context.Context, eventID, userID uint) error {
	if err := s.Registrations.Disqualify(ctx, eventID, userID, s.now()); err != nil {
		return err
	}

	logger.Log.Warn("Participant disqualified", zap.Uint("eventId", eventID), zap.Uint("userId", userID))
	s.publish(ctx, realtime.Event{
		Kind:    realtime.EventOverrideAction,
		EventID: eventID,
		Data: realtime.OverrideActionPayload{
			Action:  "disqualify",
			EventID: eventID,
			UserID:  userID,
		},
	})
	return nil
}

func (s *RegistrationService) publish(ctx context.Context, ev realtime.Event) {
	if s.Publisher == nil {
		return
	}
	if err := s.Publisher.Publish(ctx, ev); err != nil {
		logger.Log.Warn("Realtime publish failed", zap.String("event", string(ev.Kind)), zap.Error(err))
	}
}
