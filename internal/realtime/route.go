package realtime

import (
	"context"
	"fmt"
	"proctor_backend/internal/util"
)

type audienceFunc func(ctx context.Context, ev Event) ([]Channel, error)

// Router 事件类型到受众频道的唯一映射表
type Router struct {
	routes map[EventKind]audienceFunc
}

func NewRouter(participants ParticipantDirectory) *Router {
	r := &Router{}
	r.routes = map[EventKind]audienceFunc{
		EventRegistrationUpdate: func(ctx context.Context, ev Event) ([]Channel, error) {
			return []Channel{AdminChannel, CommitteeChannel, EventAdminChannel(ev.EventID)}, nil
		},
		EventRoundStatus: func(ctx context.Context, ev Event) ([]Channel, error) {
			ids, err := participants.ParticipantIDs(ctx, ev.EventID)
			if err != nil {
				return nil, err
			}
			channels := make([]Channel, 0, len(ids)+2)
			channels = append(channels, AdminChannel, EventAdminChannel(ev.EventID))
			for _, id := range ids {
				channels = append(channels, ParticipantChannel(id))
			}
			return channels, nil
		},
		EventOverrideAction: func(ctx context.Context, ev Event) ([]Channel, error) {
			return []Channel{AdminChannel}, nil
		},
		EventResultPublished: func(ctx context.Context, ev Event) ([]Channel, error) {
			if ev.TargetUserID == 0 {
				return nil, fmt.Errorf("resultPublished without target user: %w", util.ErrInvalidArgument)
			}
			return []Channel{ParticipantChannel(ev.TargetUserID)}, nil
		},
	}
	return r
}

// Resolve 返回事件的受众频道
func (r *Router) Resolve(ctx context.Context, ev Event) ([]Channel, error) {
	route, ok := r.routes[ev.Kind]
	if !ok {
		return nil, fmt.Errorf("unknown event kind %q: %w", ev.Kind, util.ErrInvalidArgument)
	}
	return route(ctx, ev)
}
