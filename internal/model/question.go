package model

import (
	"encoding/json"
	"strings"
)

type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionTrueFalse      QuestionType = "true_false"
	QuestionShortAnswer    QuestionType = "short_answer"
	QuestionCoding         QuestionType = "coding"
)

// AutoGraded 仅选择题与判断题在交卷时自动评分
func (t QuestionType) AutoGraded() bool {
	return t == QuestionMultipleChoice || t == QuestionTrueFalse
}

// swagger:model Question
type Question struct {
	BaseModel
	RoundID       uint            `gorm:"index;type:bigint unsigned" json:"roundId"`
	QuestionType  QuestionType    `gorm:"size:50;not null" json:"questionType"`
	Content       string          `gorm:"type:text;not null" json:"content"`
	Options       json.RawMessage `gorm:"type:json" json:"options,omitempty"`
	CorrectAnswer string          `gorm:"type:text" json:"correctAnswer"`
	Points        int             `gorm:"default:0" json:"points"`
	Order         int             `gorm:"default:0" json:"order"`
}

func (Question) TableName() string {
	return "questions"
}

// MatchesAnswer 忽略大小写的精确比对
func (q *Question) MatchesAnswer(answer string) bool {
	return strings.EqualFold(answer, q.CorrectAnswer)
}
