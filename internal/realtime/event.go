package realtime

import "context"

// EventKind 推送事件类型，即下行消息的 type 字段
type EventKind string

const (
	EventRegistrationUpdate EventKind = "registrationUpdate"
	EventRoundStatus        EventKind = "roundStatus"
	EventOverrideAction     EventKind = "overrideAction"
	EventResultPublished    EventKind = "resultPublished"
)

// Event 一次状态变更通知。EventID 用于按赛事路由，TargetUserID 仅 resultPublished 使用
type Event struct {
	Kind         EventKind
	EventID      uint
	TargetUserID uint
	Data         interface{}
}

// Message 下行消息格式
type Message struct {
	Type EventKind   `json:"type"`
	Data interface{} `json:"data"`
}

// Publisher 由 Hub 实现，注入到轮次与作答服务。推送失败不影响已提交的状态
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// RoundStatusPayload roundStatus 事件数据
type RoundStatusPayload struct {
	RoundID     uint   `json:"roundId"`
	EventID     uint   `json:"eventId"`
	RoundNumber int    `json:"roundNumber"`
	Status      string `json:"status"`
	Action      string `json:"action"`
}

// ResultPublishedPayload 仅携带 ID，成绩需由客户端重新拉取（受可见性规则约束）
type ResultPublishedPayload struct {
	RoundID   uint   `json:"roundId"`
	AttemptID string `json:"attemptId"`
	Reason    string `json:"reason"`
}

// OverrideActionPayload 管理员干预或系统强制处理的记录
type OverrideActionPayload struct {
	Action    string `json:"action"`
	EventID   uint   `json:"eventId"`
	RoundID   uint   `json:"roundId,omitempty"`
	AttemptID string `json:"attemptId,omitempty"`
	UserID    uint   `json:"userId,omitempty"`
	ActorID   uint   `json:"actorId,omitempty"`
}

// RegistrationUpdatePayload 报名状态变更
type RegistrationUpdatePayload struct {
	RegistrationID uint   `json:"registrationId"`
	EventID        uint   `json:"eventId"`
	UserID         uint   `json:"userId"`
	Status         string `json:"status"`
}
