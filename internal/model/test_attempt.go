package model

import "time"

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptCompleted  AttemptStatus = "completed"
)

// ViolationLog 单次违规记录，时间戳取服务端时间
type ViolationLog struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// swagger:model TestAttempt
type TestAttempt struct {
	UUIDBase
	RoundID             uint           `gorm:"uniqueIndex:idx_attempt_user_round;index;type:bigint unsigned" json:"roundId"`
	UserID              uint           `gorm:"uniqueIndex:idx_attempt_user_round;type:bigint unsigned" json:"userId"`
	StartedAt           time.Time      `json:"startedAt"`
	SubmittedAt         *time.Time     `json:"submittedAt"`
	Status              AttemptStatus  `gorm:"size:20;default:'in_progress';index" json:"status"`
	TabSwitchCount      int            `gorm:"default:0" json:"tabSwitchCount"`
	RefreshAttemptCount int            `gorm:"default:0" json:"refreshAttemptCount"`
	ViolationLogs       []ViolationLog `gorm:"serializer:json;type:json" json:"violationLogs"`
	TotalScore          int            `gorm:"default:0" json:"totalScore"`
	MaxScore            int            `gorm:"default:0" json:"maxScore"`
}

func (TestAttempt) TableName() string {
	return "test_attempts"
}

func (a *TestAttempt) ViolationCount() int {
	return len(a.ViolationLogs)
}

// Deadline 以本次作答自身的开始时间计算截止时间
func (a *TestAttempt) Deadline(window time.Duration) time.Time {
	return a.StartedAt.Add(window)
}

func (a *TestAttempt) Expired(now time.Time, window time.Duration) bool {
	return !now.Before(a.Deadline(window))
}
