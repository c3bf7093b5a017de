package service

import (
	"context"
	"errors"
	"fmt"
	"proctor_backend/internal/model"
	"proctor_backend/internal/util"
)

// AccessService 赛事级别的授权检查
type AccessService struct {
	Events        EventStore
	Registrations RegistrationStore
	Credentials   CredentialStore
}

func NewAccessService(events EventStore, registrations RegistrationStore, credentials CredentialStore) *AccessService {
	return &AccessService{Events: events, Registrations: registrations, Credentials: credentials}
}

// RequireEventAdmin 超级管理员可管理全部赛事，赛事管理员仅限自己负责的赛事
func (s *AccessService) RequireEventAdmin(ctx context.Context, actor Actor, eventID uint) error {
	switch actor.Role {
	case model.RoleSuperAdmin:
		return nil
	case model.RoleEventAdmin:
		ok, err := s.Events.IsEventAdmin(ctx, actor.UserID, eventID)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return fmt.Errorf("user %d is not an admin of event %d: %w", actor.UserID, eventID, util.ErrForbidden)
}

// RequireParticipant 报名已通过且未被取消资格
func (s *AccessService) RequireParticipant(ctx context.Context, actor Actor, eventID uint) error {
	if actor.Role != model.RoleParticipant {
		return fmt.Errorf("role %s cannot take tests: %w", actor.Role, util.ErrForbidden)
	}
	reg, err := s.Registrations.FindByEventAndUser(ctx, eventID, actor.UserID)
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			return fmt.Errorf("user %d is not registered for event %d: %w", actor.UserID, eventID, util.ErrForbidden)
		}
		return err
	}
	if reg.Status != model.RegistrationApproved {
		return fmt.Errorf("registration %d is %s: %w", reg.ID, reg.Status, util.ErrForbidden)
	}
	if reg.Disqualified {
		return fmt.Errorf("user %d is disqualified from event %d: %w", actor.UserID, eventID, util.ErrForbidden)
	}
	return nil
}

// RequireTestEnabled 开始作答前检查凭证的答题开关
func (s *AccessService) RequireTestEnabled(ctx context.Context, actor Actor, eventID uint) error {
	if err := s.RequireParticipant(ctx, actor, eventID); err != nil {
		return err
	}
	cred, err := s.Credentials.FindByEventAndUser(ctx, eventID, actor.UserID)
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			return fmt.Errorf("no credential for user %d in event %d: %w", actor.UserID, eventID, util.ErrForbidden)
		}
		return err
	}
	if !cred.TestEnabled {
		return fmt.Errorf("test not enabled for user %d in event %d: %w", actor.UserID, eventID, util.ErrForbidden)
	}
	return nil
}
