package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/huangang/deployguide/internal/services"
	"github.com/huangang/deployguide/pkg/response"
)

// Generator produces a deployment guide. *services.GenerationService
// satisfies it.
type Generator interface {
	Generate(ctx context.Context, req services.GenerationRequest) (*services.GeneratedArtifact, error)
}

type GenerateDeploymentRequest struct {
	GitLink  string `json:"git_link" binding:"required"`
	Platform string `json:"platform" binding:"required"`
}

type GenerateDeploymentResponse struct {
	Content  string `json:"content"`
	Filename string `json:"filename"`
	FilePath string `json:"file_path"`
}

type DeploymentHandler struct {
	generator Generator
}

func NewDeploymentHandler(generator Generator) *DeploymentHandler {
	return &DeploymentHandler{generator: generator}
}

// Generate handles POST /generate_deployment. The request is held for the
// whole upstream round trip; a client disconnect does not abort it.
func (h *DeploymentHandler) Generate(c *gin.Context) {
	var req GenerateDeploymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	ctx := context.WithoutCancel(c.Request.Context())
	artifact, err := h.generator.Generate(ctx, services.GenerationRequest{
		RepositoryReference: req.GitLink,
		Platform:            req.Platform,
	})
	if err != nil {
		fail(c, err)
		return
	}

	response.OK(c, GenerateDeploymentResponse{
		Content:  artifact.Content,
		Filename: artifact.Filename,
		FilePath: artifact.FilePath,
	})
}

type PlatformsResponse struct {
	Platforms []string `json:"platforms"`
}

// Platforms handles GET /platforms.
func Platforms(c *gin.Context) {
	response.OK(c, PlatformsResponse{Platforms: services.SupportedPlatforms})
}
