package controller

import (
	"proctor_backend/internal/model"
	"proctor_backend/internal/service"
	"proctor_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type RegistrationController struct {
	RegistrationService *service.RegistrationService
}

func NewRegistrationController(registrationService *service.RegistrationService) *RegistrationController {
	return &RegistrationController{RegistrationService: registrationService}
}

type ReviewRegistrationRequest struct {
	Status model.RegistrationStatus `json:"status" binding:"required"`
}

// @Summary 审核报名
// @Tags 报名审核
// @Security ApiKeyAuth
// @Accept json
// @Produce json
// @Param id path int true "报名ID"
// @Param body body ReviewRegistrationRequest true "审核结果 pending/approved/rejected"
// @Success 200 {object} util.Response
// @Router /api/committee/registrations/{id} [patch]
func (c *RegistrationController) ReviewRegistration(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}

	var req ReviewRegistrationRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	reg, err := c.RegistrationService.Review(ctx.Request.Context(), actor, id, req.Status)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, reg)
}
