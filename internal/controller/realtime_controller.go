package controller

import (
	"proctor_backend/internal/realtime"
	"proctor_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type RealtimeController struct {
	Hub *realtime.Hub
}

func NewRealtimeController(hub *realtime.Hub) *RealtimeController {
	return &RealtimeController{Hub: hub}
}

// @Summary 实时推送连接
// @Description WebSocket 握手，按角色加入频道。令牌通过 token 查询参数传入
// @Tags 实时推送
// @Param token query string true "JWT"
// @Success 101
// @Router /api/realtime/ws [get]
func (c *RealtimeController) Connect(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	id := realtime.Identity{UserID: user.UserID, Role: user.Role}
	if err := c.Hub.ServeWS(ctx.Writer, ctx.Request, id); err != nil {
		util.RespondError(ctx, err)
	}
}
