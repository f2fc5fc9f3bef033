package main

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/deployguide/internal/handlers"
	"github.com/huangang/deployguide/internal/middleware"
	"github.com/huangang/deployguide/pkg/logger"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, svc *appServices) {
	// Middleware
	r.Use(logger.GinLogger(), logger.GinRecovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.Use(middleware.CORS())

	healthHandler := handlers.NewHealthHandler(svc.cfg.Output.Dir, svc.cfg.Prompt.Path, svc.hub)
	r.GET("/health", healthHandler.CheckHealth)
	r.GET("/metrics", handlers.Metrics())

	// Generation holds an upstream call per request, so it is rate limited
	deploymentHandler := handlers.NewDeploymentHandler(svc.generation)
	r.POST("/generate_deployment", svc.rateLimiter.Middleware(), deploymentHandler.Generate)
	r.GET("/platforms", handlers.Platforms)

	artifactHandler := handlers.NewArtifactHandler(svc.artifacts)
	r.GET("/output_files", artifactHandler.List)
	r.GET("/output_files/:filename", artifactHandler.Get)
	r.DELETE("/output_files/:filename", artifactHandler.Delete)
	r.DELETE("/output_files", artifactHandler.DeleteAll)

	sseHandler := handlers.NewSSEHandler(svc.hub)
	r.GET("/events/artifacts", sseHandler.StreamArtifactEvents)

	// Generated guides as static files
	r.Static(svc.cfg.Output.FilesPrefix, svc.cfg.Output.Dir)
}
