package controller

import (
	"proctor_backend/internal/service"
	"proctor_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AttemptController struct {
	AttemptService *service.AttemptService
	RoundService   *service.RoundService
	AccessService  *service.AccessService
}

func NewAttemptController(attemptService *service.AttemptService, roundService *service.RoundService, accessService *service.AccessService) *AttemptController {
	return &AttemptController{AttemptService: attemptService, RoundService: roundService, AccessService: accessService}
}

type SaveAnswerRequest struct {
	Answer string `json:"answer"`
}

type ReportViolationRequest struct {
	Type string `json:"type" binding:"required"`
}

// @Summary 开始作答
// @Description 轮次须进行中且凭证已开放答题，每人每轮仅一次
// @Tags 作答
// @Security ApiKeyAuth
// @Produce json
// @Param id path int true "轮次ID"
// @Success 201 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /api/rounds/{id}/attempts [post]
func (c *AttemptController) BeginAttempt(ctx *gin.Context) {
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
	if err := c.AccessService.RequireTestEnabled(ctx.Request.Context(), actor, round.EventID); err != nil {
		util.RespondError(ctx, err)
		return
	}

	attempt, err := c.AttemptService.Begin(ctx.Request.Context(), actor.UserID, roundID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}

	view, err := c.AttemptService.View(ctx.Request.Context(), actor, attempt.ID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Created(ctx, view)
}

// @Summary 我在该轮次的作答
// @Tags 作答
// @Security ApiKeyAuth
// @Produce json
// @Param id path int true "轮次ID"
// @Success 200 {object} util.Response
// @Router /api/rounds/{id}/attempt [get]
func (c *AttemptController) MyAttempt(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	roundID, ok := paramID(ctx, "id")
	if !ok {
		return
	}

	view, err := c.AttemptService.MyAttempt(ctx.Request.Context(), actor.UserID, roundID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

// @Summary 作答详情
// @Description 参赛者在成绩可见前看不到分数与正确答案；管理员始终可见
// @Tags 作答
// @Security ApiKeyAuth
// @Produce json
// @Param id path string true "作答ID"
// @Success 200 {object} util.Response
// @Router /api/attempts/{id} [get]
func (c *AttemptController) GetAttempt(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}

	view, err := c.AttemptService.View(ctx.Request.Context(), actor, ctx.Param("id"))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

// @Summary 保存答案
// @Tags 作答
// @Security ApiKeyAuth
// @Accept json
// @Produce json
// @Param id path string true "作答ID"
// @Param questionId path int true "题目ID"
// @Param body body SaveAnswerRequest true "答案"
// @Success 200 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /api/attempts/{id}/answers/{questionId} [put]
func (c *AttemptController) SaveAnswer(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	questionID, ok := paramID(ctx, "questionId")
	if !ok {
		return
	}

	var req SaveAnswerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.AttemptService.RecordAnswer(ctx.Request.Context(), actor.UserID, ctx.Param("id"), questionID, req.Answer); err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"questionId": questionID})
}

// @Summary 上报违规
// @Description 第 1、2 次警告，第 3 次取消资格并自动交卷
// @Tags 作答
// @Security ApiKeyAuth
// @Accept json
// @Produce json
// @Param id path string true "作答ID"
// @Param body body ReportViolationRequest true "违规类型"
// @Success 200 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /api/attempts/{id}/violations [post]
func (c *AttemptController) ReportViolation(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}

	var req ReportViolationRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.AttemptService.ReportViolation(ctx.Request.Context(), actor.UserID, ctx.Param("id"), req.Type)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// @Summary 交卷
// @Tags 作答
// @Security ApiKeyAuth
// @Produce json
// @Param id path string true "作答ID"
// @Success 200 {object} util.Response
// @Failure 409 {object} util.Response "已交卷"
// @Router /api/attempts/{id}/submit [post]
func (c *AttemptController) SubmitAttempt(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}

	attempt, err := c.AttemptService.Submit(ctx.Request.Context(), actor.UserID, ctx.Param("id"))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}

	view, err := c.AttemptService.View(ctx.Request.Context(), actor, attempt.ID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

// @Summary 强制交卷
// @Tags 作答管理
// @Security ApiKeyAuth
// @Produce json
// @Param id path string true "作答ID"
// @Success 200 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /api/admin/attempts/{id}/force-submit [post]
func (c *AttemptController) ForceSubmit(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}

	attempt, err := c.AttemptService.ForceSubmit(ctx.Request.Context(), actor, ctx.Param("id"))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, attempt)
}
