package handlers

import (
	"os"

	"github.com/gin-gonic/gin"
	"github.com/huangang/deployguide/internal/services"
)

// HealthHandler reports on the local resources a generation depends on.
type HealthHandler struct {
	outputDir  string
	promptPath string
	hub        *services.ArtifactHub
}

func NewHealthHandler(outputDir, promptPath string, hub *services.ArtifactHub) *HealthHandler {
	return &HealthHandler{outputDir: outputDir, promptPath: promptPath, hub: hub}
}

// CheckHealth returns the health status of all subsystems.
func (h *HealthHandler) CheckHealth(c *gin.Context) {
	overall := "healthy"

	outputStatus := "ok"
	if info, err := os.Stat(h.outputDir); err != nil {
		outputStatus = "error: " + err.Error()
		overall = "unhealthy"
	} else if !info.IsDir() {
		outputStatus = "error: not a directory"
		overall = "unhealthy"
	}

	// A missing template only fails generation, not the inventory endpoints.
	promptStatus := "ok"
	if _, err := os.Stat(h.promptPath); err != nil {
		promptStatus = "error: " + err.Error()
		if overall == "healthy" {
			overall = "degraded"
		}
	}

	sseClients := 0
	if h.hub != nil {
		sseClients = h.hub.ClientCount()
	}

	status := 200
	if overall == "unhealthy" {
		status = 503
	}
	c.JSON(status, gin.H{
		"status":  overall,
		"service": "deployguide",
		"components": gin.H{
			"output_dir":      outputStatus,
			"prompt_template": promptStatus,
			"sse_clients":     sseClients,
		},
	})
}
