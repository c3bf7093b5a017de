package controller

import (
	"proctor_backend/internal/service"
	"proctor_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type LeaderboardController struct {
	LeaderboardService *service.LeaderboardService
	RoundService       *service.RoundService
	AccessService      *service.AccessService
}

func NewLeaderboardController(leaderboardService *service.LeaderboardService, roundService *service.RoundService, accessService *service.AccessService) *LeaderboardController {
	return &LeaderboardController{LeaderboardService: leaderboardService, RoundService: roundService, AccessService: accessService}
}

// @Summary 轮次排行榜
// @Description 仅统计已交卷的作答，同分按交卷时间先后排序
// @Tags 排行榜
// @Security ApiKeyAuth
// @Produce json
// @Param id path int true "轮次ID"
// @Success 200 {object} util.Response
// @Router /api/admin/rounds/{id}/leaderboard [get]
func (c *LeaderboardController) RoundLeaderboard(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	roundID, ok := paramID(ctx, "id")
	if !ok {
		return
	}

	round, err := c.RoundService.Get(ctx.Request.Context(), roundID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	if err := c.AccessService.RequireEventAdmin(ctx.Request.Context(), actor, round.EventID); err != nil {
		util.RespondError(ctx, err)
		return
	}

	entries, err := c.LeaderboardService.Round(ctx.Request.Context(), roundID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, entries)
}

// @Summary 赛事总排行榜
// @Tags 排行榜
// @Security ApiKeyAuth
// @Produce json
// @Param eventId path int true "赛事ID"
// @Success 200 {object} util.Response
// @Router /api/admin/events/{eventId}/leaderboard [get]
func (c *LeaderboardController) EventLeaderboard(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	eventID, ok := paramID(ctx, "eventId")
	if !ok {
		return
	}
	if err := c.AccessService.RequireEventAdmin(ctx.Request.Context(), actor, eventID); err != nil {
		util.RespondError(ctx, err)
		return
	}

	entries, err := c.LeaderboardService.Event(ctx.Request.Context(), eventID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, entries)
}
