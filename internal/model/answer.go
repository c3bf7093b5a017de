package model

// Answer 作答记录，按 (AttemptID, QuestionID) 唯一，交卷后不可修改
type Answer struct {
	UUIDBase
	AttemptID     string `gorm:"uniqueIndex:idx_answer_attempt_question;type:varchar(36)" json:"attemptId"`
	QuestionID    uint   `gorm:"uniqueIndex:idx_answer_attempt_question;type:bigint unsigned" json:"questionId"`
	Answer        string `gorm:"type:text" json:"answer"`
	IsCorrect     *bool  `json:"isCorrect"`
	PointsAwarded int    `gorm:"default:0" json:"pointsAwarded"`
}

func (Answer) TableName() string {
	return "answers"
}
