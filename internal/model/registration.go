package model

import "time"

type RegistrationStatus string

const (
	RegistrationPending  RegistrationStatus = "pending"
	RegistrationApproved RegistrationStatus = "approved"
	RegistrationRejected RegistrationStatus = "rejected"
)

func (s RegistrationStatus) Valid() bool {
	switch s {
	case RegistrationPending, RegistrationApproved, RegistrationRejected:
		return true
	}
	return false
}

// Registration 参赛报名，Disqualified 由监考策略写入
type Registration struct {
	BaseModel
	EventID        uint               `gorm:"uniqueIndex:idx_registration_event_user;type:bigint unsigned" json:"eventId"`
	UserID         uint               `gorm:"uniqueIndex:idx_registration_event_user;index;type:bigint unsigned" json:"userId"`
	Status         RegistrationStatus `gorm:"size:20;default:'pending'" json:"status"`
	Disqualified   bool               `gorm:"default:false" json:"disqualified"`
	DisqualifiedAt *time.Time         `json:"disqualifiedAt,omitempty"`
}

func (Registration) TableName() string {
	return "registrations"
}
