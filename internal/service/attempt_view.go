package service

import (
	"encoding/json"
	"proctor_backend/internal/model"
	"time"

	"github.com/jinzhu/copier"
)

// AttemptView 作答详情。成绩未公开时分数、正确答案与判分结果均为 null
type AttemptView struct {
	ID                  string               `json:"id"`
	RoundID             uint                 `json:"roundId"`
	UserID              uint                 `json:"userId"`
	StartedAt           time.Time            `json:"startedAt"`
	SubmittedAt         *time.Time           `json:"submittedAt"`
	Status              model.AttemptStatus  `json:"status"`
	TabSwitchCount      int                  `json:"tabSwitchCount"`
	RefreshAttemptCount int                  `json:"refreshAttemptCount"`
	ViolationLogs       []model.ViolationLog `json:"violationLogs"`
	TotalScore          *int                 `json:"totalScore" copier:"-"`
	MaxScore            *int                 `json:"maxScore" copier:"-"`
	RemainingSeconds    int                  `json:"remainingSeconds"`
	ResultsVisible      bool                 `json:"resultsVisible"`
	Questions           []QuestionView       `json:"questions"`
	Answers             []AnswerView         `json:"answers"`
}

type QuestionView struct {
	ID            uint               `json:"id"`
	QuestionType  model.QuestionType `json:"questionType"`
	Content       string             `json:"content"`
	Options       json.RawMessage    `json:"options,omitempty"`
	Points        int                `json:"points"`
	Order         int                `json:"order"`
	CorrectAnswer *string            `json:"correctAnswer" copier:"-"`
}

type AnswerView struct {
	QuestionID    uint   `json:"questionId"`
	Answer        string `json:"answer"`
	IsCorrect     *bool  `json:"isCorrect" copier:"-"`
	PointsAwarded *int   `json:"pointsAwarded" copier:"-"`
}

// resultsVisible 赛事已结束或本次作答时长已满即可查看，每次读取时重新计算
func resultsVisible(now time.Time, event *model.Event, round *model.Round, a *model.TestAttempt) bool {
	return event.HasEnded(now) || a.Expired(now, round.Window())
}

func remainingSeconds(now time.Time, round *model.Round, a *model.TestAttempt) int {
	if a.Status != model.AttemptInProgress {
		return 0
	}
	left := a.Deadline(round.Window()).Sub(now)
	if left <= 0 {
		return 0
	}
	return int(left / time.Second)
}

func buildAttemptView(now time.Time, full bool, a *model.TestAttempt, round *model.Round, event *model.Event, questions []model.Question, answers []model.Answer) (*AttemptView, error) {
	visible := full || resultsVisible(now, event, round, a)

	view := &AttemptView{}
	if err := copier.Copy(view, a); err != nil {
		return nil, err
	}
	view.ResultsVisible = visible
	view.RemainingSeconds = remainingSeconds(now, round, a)
	if view.ViolationLogs == nil {
		view.ViolationLogs = []model.ViolationLog{}
	}

	view.Questions = make([]QuestionView, 0, len(questions))
	if err := copier.Copy(&view.Questions, &questions); err != nil {
		return nil, err
	}
	view.Answers = make([]AnswerView, 0, len(answers))
	if err := copier.Copy(&view.Answers, &answers); err != nil {
		return nil, err
	}

	if !visible {
		return view, nil
	}

	total, max := a.TotalScore, a.MaxScore
	view.TotalScore = &total
	view.MaxScore = &max
	for i := range questions {
		correct := questions[i].CorrectAnswer
		view.Questions[i].CorrectAnswer = &correct
	}
	for i := range answers {
		points := answers[i].PointsAwarded
		view.Answers[i].IsCorrect = answers[i].IsCorrect
		view.Answers[i].PointsAwarded = &points
	}
	return view, nil
}
