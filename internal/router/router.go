package router

import (
	"context"
	"net/http"
	"time"

	"github.com/blues/agrofund/internal/handler"
	"github.com/blues/agrofund/internal/metrics"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Handlers 路由用到的处理器
type Handlers struct {
	Projects      *handler.ProjectHandler
	Contributions *handler.ContributionHandler
	Stats         *handler.StatsHandler
	Users         *handler.UserHandler
}

// HealthCheck 依赖健康检查, 返回 nil 表示可用
type HealthCheck func(ctx context.Context) error

func Setup(h Handlers, checks map[string]HealthCheck) *gin.Engine {
	r := gin.New()

	// 中间件
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Content-Length", "Accept-Encoding", "Authorization",
			handler.HeaderUserId, handler.HeaderUserRole, handler.HeaderUserDepartment},
		MaxAge: 12 * time.Hour,
	}))
	r.Use(handler.MetricsMiddleware())

	// 健康检查
	r.GET("/health", health(checks))
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	// API版本组
	v1 := r.Group("/api/v1", handler.ActorMiddleware())
	{
		projects := v1.Group("/projects")
		{
			projects.POST("", h.Projects.CreateProject)
			projects.GET("", h.Projects.GetProjects)
			projects.GET("/slug/:slug", h.Projects.GetProjectBySlug)
			projects.GET("/:id", h.Projects.GetProject)
			projects.PUT("/:id", h.Projects.UpdateProject)
			projects.DELETE("/:id", h.Projects.DeleteProject)

			projects.POST("/:id/due-diligence/start", h.Projects.StartDueDiligence)
			projects.PUT("/:id/due-diligence", h.Projects.UpdateDueDiligence)
			projects.POST("/:id/due-diligence/complete", h.Projects.CompleteDueDiligence)
			projects.POST("/:id/verify", h.Projects.VerifyProject)
			projects.POST("/:id/reject", h.Projects.RejectProject)
			projects.POST("/:id/retry-deployment", h.Projects.RetryDeployment)
			projects.POST("/:id/complete", h.Projects.CompleteProject)
			projects.PUT("/:id/chain-active", h.Projects.SetChainActive)

			projects.GET("/:id/funding", h.Contributions.GetFundingView)
			projects.POST("/:id/contributions", h.Contributions.CreateContribution)
			projects.GET("/:id/contributions", h.Contributions.GetProjectContributions)
			projects.POST("/:id/reconcile", h.Contributions.ReconcileProject)
			projects.GET("/:id/stats", h.Stats.GetProjectStats)
		}

		contributions := v1.Group("/contributions")
		{
			contributions.GET("/tx/:tx_hash", h.Contributions.GetContributionByTxHash)
			contributions.GET("/:id", h.Contributions.GetContribution)
			contributions.POST("/:id/confirm", h.Contributions.ConfirmContribution)
		}

		users := v1.Group("/users")
		{
			users.GET("/:id", h.Users.GetUser)
			users.PUT("/:id/wallet", h.Users.UpdateWallet)
			users.GET("/:id/contributions", h.Contributions.GetUserContributions)
			users.GET("/:id/stats", h.Stats.GetContributorStats)
		}

		departments := v1.Group("/departments")
		{
			departments.GET("/categorize", h.Users.Categorize)
			departments.GET("/:department/workload", h.Users.GetDepartmentWorkload)
		}

		v1.GET("/stats", h.Stats.GetPlatformStats)
	}

	return r
}

func health(checks map[string]HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		status := http.StatusOK
		deps := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				deps[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			deps[name] = "ok"
		}

		state := "ok"
		if status != http.StatusOK {
			state = "degraded"
		}
		c.JSON(status, gin.H{
			"status":       state,
			"service":      "agrofund",
			"dependencies": deps,
		})
	}
}
