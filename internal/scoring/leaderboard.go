package scoring

import (
	"proctor_backend/internal/model"
	"sort"
	"time"
)

type standing struct {
	userID      uint
	totalScore  int
	submittedAt time.Time
}

// less 总分降序，同分按提交时间升序（先交者优先），再按用户 ID 保证确定性
func less(a, b standing) bool {
	if a.totalScore != b.totalScore {
		return a.totalScore > b.totalScore
	}
	if !a.submittedAt.Equal(b.submittedAt) {
		return a.submittedAt.Before(b.submittedAt)
	}
	return a.userID < b.userID
}

func rank(standings []standing, names map[uint]string) []model.LeaderboardEntry {
	sort.SliceStable(standings, func(i, j int) bool {
		return less(standings[i], standings[j])
	})

	entries := make([]model.LeaderboardEntry, len(standings))
	for i, s := range standings {
		entries[i] = model.LeaderboardEntry{
			UserID:      s.userID,
			UserName:    names[s.userID],
			TotalScore:  s.totalScore,
			Rank:        i + 1,
			SubmittedAt: s.submittedAt,
		}
	}
	return entries
}

func completed(a *model.TestAttempt) bool {
	return a.Status == model.AttemptCompleted && a.SubmittedAt != nil
}

// RankRound 单轮排行榜，只统计已完成的作答
func RankRound(attempts []model.TestAttempt, names map[uint]string) []model.LeaderboardEntry {
	standings := make([]standing, 0, len(attempts))
	for i := range attempts {
		a := &attempts[i]
		if !completed(a) {
			continue
		}
		standings = append(standings, standing{
			userID:      a.UserID,
			totalScore:  a.TotalScore,
			submittedAt: *a.SubmittedAt,
		})
	}
	return rank(standings, names)
}

// RankEvent 赛事总榜：按用户累加各轮已完成作答的总分，同分时比较各自最后一次提交时间
func RankEvent(attempts []model.TestAttempt, names map[uint]string) []model.LeaderboardEntry {
	byUser := make(map[uint]*standing)
	order := make([]uint, 0)
	for i := range attempts {
		a := &attempts[i]
		if !completed(a) {
			continue
		}
		s, ok := byUser[a.UserID]
		if !ok {
			s = &standing{userID: a.UserID}
			byUser[a.UserID] = s
			order = append(order, a.UserID)
		}
		s.totalScore += a.TotalScore
		if a.SubmittedAt.After(s.submittedAt) {
			s.submittedAt = *a.SubmittedAt
		}
	}

	standings := make([]standing, 0, len(order))
	for _, id := range order {
		standings = append(standings, *byUser[id])
	}
	return rank(standings, names)
}
