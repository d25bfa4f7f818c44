// Package router mounts the management API on a gin engine.
package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pandeptwidyaop/deploy-manager/internal/config"
	"github.com/pandeptwidyaop/deploy-manager/internal/handlers"
	"github.com/pandeptwidyaop/deploy-manager/internal/metrics"
	"github.com/pandeptwidyaop/deploy-manager/internal/middleware"
	"github.com/pandeptwidyaop/deploy-manager/internal/services"
)

// Services holds everything the handlers call into.
type Services struct {
	Instances *services.InstanceService
	Rest      *services.RestService
	Deploy    *services.DeployService
	Executor  *services.ExecutorService
	Audit     *services.AuditService
	Metrics   *metrics.Metrics
}

// Router is the configured engine plus the resources that need stopping.
type Router struct {
	*gin.Engine
	limiter *middleware.RateLimiter
}

// Close stops background work started by New.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Stop()
	}
}

func New(cfg *config.Config, svc Services) *Router {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.Metrics(svc.Metrics))
	r.Use(middleware.DefaultBodyLimit())

	var limiter *middleware.RateLimiter
	if cfg.Server.RateLimit > 0 {
		limiter = middleware.NewRateLimiter(cfg.Server.RateLimit, time.Minute)
		r.Use(limiter.Middleware())
	}

	if cfg.Metrics.IsEnabled() && svc.Metrics != nil {
		r.GET(cfg.Metrics.Path, gin.WrapH(svc.Metrics.Handler()))
	}

	instanceHandler := handlers.NewInstanceHandler(svc.Instances, svc.Audit)
	restHandler := handlers.NewRestHandler(svc.Rest, svc.Audit)
	deployHandler := handlers.NewDeployHandler(svc.Deploy, svc.Audit)
	jobHandler := handlers.NewJobHandler(svc.Executor)
	streamHandler := handlers.NewStreamHandler(svc.Executor)
	auditHandler := handlers.NewAuditHandler(svc.Audit)
	versionHandler := handlers.NewVersionHandler()

	prefix := r.Group(cfg.Server.PathPrefix)

	api := prefix.Group("/api")
	{
		// Public version endpoint
		api.GET("/version", versionHandler.Get)

		protected := api.Group("")
		protected.Use(middleware.TokenAuth(cfg.Auth.Token))
		{
			protected.GET("/instances", instanceHandler.List)
			protected.POST("/instances", instanceHandler.Create)
			protected.GET("/instances/:name", instanceHandler.Get)
			protected.PUT("/instances/:name", instanceHandler.Update)
			protected.DELETE("/instances/:name", instanceHandler.Delete)

			protected.GET("/instances/:name/build", deployHandler.Status)
			protected.POST("/instances/:name/build", deployHandler.Build)
			protected.GET("/instances/:name/backups", deployHandler.Backups)
			protected.POST("/instances/:name/restore", deployHandler.Restore)

			protected.GET("/rest", restHandler.List)
			protected.POST("/rest", restHandler.Create)
			protected.GET("/rest/:name", restHandler.Get)
			protected.PUT("/rest/:name", restHandler.Update)
			protected.DELETE("/rest/:name", restHandler.Delete)
			protected.GET("/rest/:name/build", restHandler.Status)

			protected.GET("/jobs", jobHandler.List)
			protected.GET("/jobs/:id", jobHandler.Get)
			protected.GET("/jobs/:id/stream", streamHandler.Stream)

			protected.GET("/audit", auditHandler.List)
		}
	}

	// Redirect root to path prefix (only if prefix is not empty)
	if cfg.Server.PathPrefix != "" && cfg.Server.PathPrefix != "/" {
		r.GET("/", func(c *gin.Context) {
			c.Redirect(http.StatusFound, cfg.Server.PathPrefix+"/api/version")
		})
	}

	return &Router{Engine: r, limiter: limiter}
}
