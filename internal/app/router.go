package app

import (
	"proctor_backend/docs"
	"proctor_backend/internal/config"
	"proctor_backend/internal/middleware"
	"proctor_backend/internal/model"
	"proctor_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())
	router.GET("/api/health", c.health.HealthCheck)

	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg.JWT.Secret))
	{
		// 实时推送，按角色分配频道
		authGroup.GET("/realtime/ws", c.realtime.Connect)

		a.registerParticipantRoutes(authGroup, c)
		a.registerAdminRoutes(authGroup, c)
		a.registerCommitteeRoutes(authGroup, c)
	}
}

func (a *App) registerParticipantRoutes(group *gin.RouterGroup, c *controllers) {
	participant := group.Group("")
	participant.Use(middleware.RoleMiddleware(model.RoleParticipant))
	{
		participant.POST("/rounds/:id/attempts", c.attempt.BeginAttempt)
		participant.GET("/rounds/:id/attempt", c.attempt.MyAttempt)
		participant.GET("/attempts/:id", c.attempt.GetAttempt)
		participant.PUT("/attempts/:id/answers/:questionId", c.attempt.SaveAnswer)
		participant.POST("/attempts/:id/violations", c.attempt.ReportViolation)
		participant.POST("/attempts/:id/submit", c.attempt.SubmitAttempt)
	}
}

func (a *App) registerAdminRoutes(group *gin.RouterGroup, c *controllers) {
	admin := group.Group("/admin")
	admin.Use(middleware.RoleMiddleware(model.RoleEventAdmin))
	{
		admin.GET("/events/:eventId/rounds", c.round.ListRounds)
		admin.GET("/events/:eventId/leaderboard", c.leaderboard.EventLeaderboard)

		admin.GET("/rounds/:id", c.round.GetRound)
		admin.POST("/rounds/:id/start", c.round.StartRound)
		admin.POST("/rounds/:id/end", c.round.EndRound)
		admin.POST("/rounds/:id/restart", c.round.RestartRound)
		admin.POST("/rounds/:id/publish", c.round.PublishResults)
		admin.GET("/rounds/:id/leaderboard", c.leaderboard.RoundLeaderboard)

		admin.GET("/attempts/:id", c.attempt.GetAttempt)
		admin.POST("/attempts/:id/force-submit", middleware.RoleMiddleware(model.RoleSuperAdmin), c.attempt.ForceSubmit)
	}
}

func (a *App) registerCommitteeRoutes(group *gin.RouterGroup, c *controllers) {
	committee := group.Group("/committee")
	committee.Use(middleware.RoleMiddleware(model.RoleRegistrationCommittee))
	{
		committee.PATCH("/registrations/:id", c.registration.ReviewRegistration)
	}
}
