package controller

import (
	"proctor_backend/internal/model"
	"proctor_backend/internal/service"
	"proctor_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type RoundController struct {
	RoundService  *service.RoundService
	AccessService *service.AccessService
}

func NewRoundController(roundService *service.RoundService, accessService *service.AccessService) *RoundController {
	return &RoundController{RoundService: roundService, AccessService: accessService}
}

type RestartRoundRequest struct {
	Confirm bool `json:"confirm"`
}

// authorizedRound 读取轮次并校验当前用户是否为该赛事管理员
func (c *RoundController) authorizedRound(ctx *gin.Context) (*model.Round, service.Actor, bool) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return nil, actor, false
	}
	id, ok := paramID(ctx, "id")
	if !ok {
		return nil, actor, false
	}
	round, err := c.RoundService.Get(ctx.Request.Context(), id)
	if err != nil {
		util.RespondError(ctx, err)
		return nil, actor, false
	}
	if err := c.AccessService.RequireEventAdmin(ctx.Request.Context(), actor, round.EventID); err != nil {
		util.RespondError(ctx, err)
		return nil, actor, false
	}
	return round, actor, true
}

// @Summary 赛事轮次列表
// @Tags 轮次管理
// @Security ApiKeyAuth
// @Produce json
// @Param eventId path int true "赛事ID"
// @Success 200 {object} util.Response
// @Router /api/admin/events/{eventId}/rounds [get]
func (c *RoundController) ListRounds(ctx *gin.Context) {
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

	rounds, err := c.RoundService.ListByEvent(ctx.Request.Context(), eventID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, rounds)
}

// @Summary 轮次详情
// @Tags 轮次管理
// @Security ApiKeyAuth
// @Produce json
// @Param id path int true "轮次ID"
// @Success 200 {object} util.Response
// @Router /api/admin/rounds/{id} [get]
func (c *RoundController) GetRound(ctx *gin.Context) {
	round, _, ok := c.authorizedRound(ctx)
	if !ok {
		return
	}
	util.Success(ctx, round)
}

// @Summary 开始轮次
// @Description 开放该赛事全部凭证的答题权限并推送 roundStatus
// @Tags 轮次管理
// @Security ApiKeyAuth
// @Produce json
// @Param id path int true "轮次ID"
// @Success 200 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /api/admin/rounds/{id}/start [post]
func (c *RoundController) StartRound(ctx *gin.Context) {
	round, _, ok := c.authorizedRound(ctx)
	if !ok {
		return
	}
	result, err := c.RoundService.Start(ctx.Request.Context(), round.ID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// @Summary 结束轮次
// @Description 强制提交该轮次全部未交卷的作答
// @Tags 轮次管理
// @Security ApiKeyAuth
// @Produce json
// @Param id path int true "轮次ID"
// @Success 200 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /api/admin/rounds/{id}/end [post]
func (c *RoundController) EndRound(ctx *gin.Context) {
	round, _, ok := c.authorizedRound(ctx)
	if !ok {
		return
	}
	round, err := c.RoundService.End(ctx.Request.Context(), round.ID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, round)
}

// @Summary 重置轮次
// @Description 删除该轮次全部作答，不可恢复，请求体须携带 confirm=true
// @Tags 轮次管理
// @Security ApiKeyAuth
// @Accept json
// @Produce json
// @Param id path int true "轮次ID"
// @Param body body RestartRoundRequest true "确认"
// @Success 200 {object} util.Response
// @Router /api/admin/rounds/{id}/restart [post]
func (c *RoundController) RestartRound(ctx *gin.Context) {
	round, actor, ok := c.authorizedRound(ctx)
	if !ok {
		return
	}

	// 请求体缺失或无法解析时视为未确认
	var req RestartRoundRequest
	_ = ctx.ShouldBindJSON(&req)

	result, err := c.RoundService.Restart(ctx.Request.Context(), actor, round.ID, req.Confirm)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// @Summary 发布成绩
// @Tags 轮次管理
// @Security ApiKeyAuth
// @Produce json
// @Param id path int true "轮次ID"
// @Success 200 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /api/admin/rounds/{id}/publish [post]
func (c *RoundController) PublishResults(ctx *gin.Context) {
	round, _, ok := c.authorizedRound(ctx)
	if !ok {
		return
	}
	round, err := c.RoundService.PublishResults(ctx.Request.Context(), round.ID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, round)
}
