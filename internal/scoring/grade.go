// Package scoring 交卷评分与排行榜排序，不依赖存储
package scoring

import "proctor_backend/internal/model"

// MaxScore 轮次内全部题目分值之和，作答开始时固化到 TestAttempt
func MaxScore(questions []model.Question) int {
	total := 0
	for _, q := range questions {
		total += q.Points
	}
	return total
}

// Grade 评判单题。选择题/判断题忽略大小写精确比对；简答题与编程题留待人工评分，IsCorrect 保持 nil
func Grade(q *model.Question, a *model.Answer) {
	if !q.QuestionType.AutoGraded() {
		a.IsCorrect = nil
		a.PointsAwarded = 0
		return
	}

	correct := q.MatchesAnswer(a.Answer)
	a.IsCorrect = &correct
	if correct {
		a.PointsAwarded = q.Points
	} else {
		a.PointsAwarded = 0
	}
}

// GradeAttempt 评判一次作答的全部答案并返回总分。未作答的题目不出现在 answers 中，计 0 分；
// 不属于本轮的答案不得分
func GradeAttempt(questions []model.Question, answers []model.Answer) ([]model.Answer, int) {
	byID := make(map[uint]*model.Question, len(questions))
	for i := range questions {
		byID[questions[i].ID] = &questions[i]
	}

	graded := make([]model.Answer, len(answers))
	total := 0
	for i, a := range answers {
		q, ok := byID[a.QuestionID]
		if !ok {
			a.IsCorrect = nil
			a.PointsAwarded = 0
			graded[i] = a
			continue
		}
		Grade(q, &a)
		total += a.PointsAwarded
		graded[i] = a
	}
	return graded, total
}
