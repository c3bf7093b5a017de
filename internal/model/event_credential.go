package model

// EventCredential 参赛者在某赛事下的登录凭证，TestEnabled 控制能否开始答题
type EventCredential struct {
	BaseModel
	EventID     uint   `gorm:"uniqueIndex:idx_credential_event_user;type:bigint unsigned" json:"eventId"`
	UserID      uint   `gorm:"uniqueIndex:idx_credential_event_user;index;type:bigint unsigned" json:"userId"`
	Login       string `gorm:"size:100;uniqueIndex" json:"login"`
	TestEnabled bool   `gorm:"default:false" json:"testEnabled"`
}

func (EventCredential) TableName() string {
	return "event_credentials"
}
