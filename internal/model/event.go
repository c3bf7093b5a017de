package model

import "time"

// swagger:model Event
type Event struct {
	BaseModel
	Name      string    `gorm:"size:255;not null" json:"name"`
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
}

func (Event) TableName() string {
	return "events"
}

// HasEnded 赛事结束后参赛者可查看成绩
func (e *Event) HasEnded(now time.Time) bool {
	return !e.EndDate.IsZero() && !now.Before(e.EndDate)
}

// EventAdmin 赛事管理员关系
type EventAdmin struct {
	BaseModel
	EventID uint `gorm:"uniqueIndex:idx_event_admin_event_user;type:bigint unsigned" json:"eventId"`
	UserID  uint `gorm:"uniqueIndex:idx_event_admin_event_user;index;type:bigint unsigned" json:"userId"`
}

func (EventAdmin) TableName() string {
	return "event_admins"
}
