package service

import (
	"context"
	"proctor_backend/internal/model"
	"proctor_backend/internal/scoring"
)

// LeaderboardService 排行榜按需从已完成的作答计算，不缓存
type LeaderboardService struct {
	Rounds   RoundStore
	Attempts AttemptStore
	Users    UserStore
}

func NewLeaderboardService(rounds RoundStore, attempts AttemptStore, users UserStore) *LeaderboardService {
	return &LeaderboardService{Rounds: rounds, Attempts: attempts, Users: users}
}

func (s *LeaderboardService) Round(ctx context.Context, roundID uint) ([]model.LeaderboardEntry, error) {
	if _, err := s.Rounds.FindByID(ctx, roundID); err != nil {
		return nil, err
	}
	attempts, err := s.Attempts.ListCompletedByRounds(ctx, []uint{roundID})
	if err != nil {
		return nil, err
	}
	names, err := s.Users.Names(ctx, userIDs(attempts))
	if err != nil {
		return nil, err
	}
	return scoring.RankRound(attempts, names), nil
}

// Event 赛事总榜：各轮次得分求和
func (s *LeaderboardService) Event(ctx context.Context, eventID uint) ([]model.LeaderboardEntry, error) {
	rounds, err := s.Rounds.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	roundIDs := make([]uint, 0, len(rounds))
	for _, r := range rounds {
		roundIDs = append(roundIDs, r.ID)
	}

	attempts, err := s.Attempts.ListCompletedByRounds(ctx, roundIDs)
	if err != nil {
		return nil, err
	}
	names, err := s.Users.Names(ctx, userIDs(attempts))
	if err != nil {
		return nil, err
	}
	return scoring.RankEvent(attempts, names), nil
}

func userIDs(attempts []model.TestAttempt) []uint {
	seen := make(map[uint]struct{}, len(attempts))
	ids := make([]uint, 0, len(attempts))
	for _, a := range attempts {
		if _, ok := seen[a.UserID]; ok {
			continue
		}
		seen[a.UserID] = struct{}{}
		ids = append(ids, a.UserID)
	}
	return ids
}
