package model

import "time"

type RoundStatus string

const (
	RoundNotStarted RoundStatus = "not_started"
	RoundInProgress RoundStatus = "in_progress"
	RoundCompleted  RoundStatus = "completed"
)

// swagger:model Round
type Round struct {
	BaseModel
	EventID          uint        `gorm:"index;type:bigint unsigned" json:"eventId"`
	RoundNumber      int         `json:"roundNumber"`
	Duration         int         `gorm:"not null" json:"duration"` // Minutes
	Status           RoundStatus `gorm:"size:20;default:'not_started'" json:"status"`
	StartedAt        *time.Time  `json:"startedAt"`
	EndedAt          *time.Time  `json:"endedAt"`
	ResultsPublished bool        `gorm:"default:false" json:"resultsPublished"`
}

func (Round) TableName() string {
	return "rounds"
}

func (r *Round) Window() time.Duration {
	return time.Duration(r.Duration) * time.Minute
}
