package router

import (
	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"

	"github.com/ignatzorin/wastewatch-backend/internal/config"
	"github.com/ignatzorin/wastewatch-backend/internal/http/handlers"
	"github.com/ignatzorin/wastewatch-backend/internal/http/middleware"
	"github.com/ignatzorin/wastewatch-backend/internal/models"
	"github.com/ignatzorin/wastewatch-backend/internal/service"
)

// Handlers все HTTP хэндлеры приложения.
type Handlers struct {
	Reports    *handlers.ReportHandler
	Facilities *handlers.FacilityHandler
	Images     *handlers.ImageHandler
	Rewards    *handlers.RewardHandler
	Health     *handlers.HealthHandler
	WS         *handlers.WSHandler
}

func SetupRouter(cfg *config.Config, h Handlers, tokens *service.TokenManager, limiterStore limiter.Store) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.Recovery())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))
	r.MaxMultipartMemory = cfg.MaxUploadSizeMB << 20

	r.GET("/health", h.Health.Health)

	api := r.Group("/api")

	// токен в ?token=, проверка внутри хэндлеров
	api.GET("/ws", h.WS.Handle)
	api.GET("/image/:blobId", h.Images.Get)

	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware(tokens))

	submitLimit := middleware.RateLimitMiddleware(limiterStore, "submit", cfg.RateLimitLimit, cfg.RateLimitPeriod)
	claimLimit := middleware.RateLimitMiddleware(limiterStore, "claim", cfg.ClaimRateLimit, cfg.RateLimitPeriod)

	reports := protected.Group("/reports")
	{
		reports.POST("", middleware.RequireRoles(models.RoleCitizen, models.RoleAdmin), submitLimit, h.Reports.Create)
		reports.GET("", h.Reports.List)
		reports.GET("/available", middleware.WorkerOrAdmin(), h.Reports.Available)
		reports.GET("/nearby", middleware.WorkerOrAdmin(), h.Reports.Nearby)
		reports.GET("/:id", middleware.UUIDValidator("id"), h.Reports.Get)
		reports.PUT("/:id/claim", middleware.UUIDValidator("id"), middleware.RequireRoles(models.RoleWorker), claimLimit, h.Reports.Claim)
		reports.PUT("/:id/status", middleware.UUIDValidator("id"), middleware.WorkerOrAdmin(), h.Reports.UpdateStatus)
		reports.PUT("/:id/assign", middleware.UUIDValidator("id"), middleware.RequireRoles(models.RoleAdmin), h.Reports.Assign)
		reports.PATCH("/:id", middleware.UUIDValidator("id"), middleware.RequireRoles(models.RoleAdmin), h.Reports.Update)
		reports.POST("/:id/reward/retry", middleware.UUIDValidator("id"), middleware.RequireRoles(models.RoleAdmin), h.Reports.RetryReward)
	}

	facilities := protected.Group("/facilities")
	{
		facilities.GET("/nearby", h.Facilities.Nearby)
		facilities.GET("/:id", middleware.UUIDValidator("id"), h.Facilities.Get)
		facilities.POST("", middleware.RequireRoles(models.RoleAdmin), h.Facilities.Create)
	}

	protected.GET("/rewards/me", h.Rewards.Me)

	return r
}
