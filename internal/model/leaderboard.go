package model

import "time"

// LeaderboardEntry 排行榜条目，按需计算，不落库
type LeaderboardEntry struct {
	UserID      uint      `json:"userId"`
	UserName    string    `json:"userName"`
	TotalScore  int       `json:"totalScore"`
	Rank        int       `json:"rank"`
	SubmittedAt time.Time `json:"submittedAt"`
}
