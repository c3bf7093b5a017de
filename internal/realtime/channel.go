package realtime

import (
	"context"
	"fmt"
	"proctor_backend/internal/model"
	"proctor_backend/internal/util"
)

// Channel 订阅频道，连接握手时按角色分配
type Channel string

const (
	AdminChannel     Channel = "admin:global"
	CommitteeChannel Channel = "committee:global"
)

func EventAdminChannel(eventID uint) Channel {
	return Channel(fmt.Sprintf("event:%d:admin", eventID))
}

func ParticipantChannel(userID uint) Channel {
	return Channel(fmt.Sprintf("participant:%d", userID))
}

// Identity 握手时从 JWT 中取得的身份
type Identity struct {
	UserID uint
	Role   model.UserRole
}

// EventAdminLookup 查询用户管理的赛事
type EventAdminLookup interface {
	AdministeredEventIDs(ctx context.Context, userID uint) ([]uint, error)
}

// ParticipantDirectory 查询赛事的全部参赛者
type ParticipantDirectory interface {
	ParticipantIDs(ctx context.Context, eventID uint) ([]uint, error)
}

// Membership 根据角色计算连接应加入的频道
func Membership(ctx context.Context, id Identity, admins EventAdminLookup) ([]Channel, error) {
	switch id.Role {
	case model.RoleSuperAdmin:
		return []Channel{AdminChannel}, nil
	case model.RoleRegistrationCommittee:
		return []Channel{CommitteeChannel}, nil
	case model.RoleParticipant:
		return []Channel{ParticipantChannel(id.UserID)}, nil
	case model.RoleEventAdmin:
		eventIDs, err := admins.AdministeredEventIDs(ctx, id.UserID)
		if err != nil {
			return nil, err
		}
		channels := make([]Channel, 0, len(eventIDs))
		for _, eventID := range eventIDs {
			channels = append(channels, EventAdminChannel(eventID))
		}
		return channels, nil
	}
	return nil, fmt.Errorf("role %q has no realtime access: %w", id.Role, util.ErrForbidden)
}
