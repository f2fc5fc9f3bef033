package main

import (
	"github.com/huangang/deployguide/internal/config"
	"github.com/huangang/deployguide/internal/middleware"
	"github.com/huangang/deployguide/internal/services"
	"github.com/huangang/deployguide/pkg/logger"
)

// appServices holds all initialized services needed by the application.
type appServices struct {
	cfg         *config.Config
	hub         *services.ArtifactHub
	generation  *services.GenerationService
	artifacts   *services.ArtifactRepository
	retention   *services.RetentionService
	rateLimiter *middleware.RateLimiter
}

// bootstrap prepares the output directory and wires the services together.
func bootstrap(cfg *config.Config) (*appServices, error) {
	if err := services.EnsureOutputDir(cfg.Output.Dir); err != nil {
		return nil, err
	}

	if _, err := services.LoadPromptTemplate(cfg.Prompt.Path); err != nil {
		// generation reports this per request; the inventory still works
		logger.Warn().Err(err).Msg("Prompt template unavailable")
	}
	if _, err := services.EncodeCredentials(cfg.Upstream); err != nil {
		logger.Warn().Err(err).Msg("Upstream credentials incomplete")
	}

	hub := services.NewArtifactHub()
	artifacts := services.NewArtifactRepository(cfg.Output.Dir, cfg.Output.FilesPrefix, hub)

	retention := services.NewRetentionService(artifacts, cfg.Retention)
	if err := retention.Start(); err != nil {
		return nil, err
	}

	logger.Info().
		Str("provider", cfg.Upstream.Provider).
		Str("model", cfg.Upstream.Model).
		Str("output_dir", cfg.Output.Dir).
		Msg("Services initialized")

	return &appServices{
		cfg:         cfg,
		hub:         hub,
		generation:  services.NewGenerationService(cfg, hub),
		artifacts:   artifacts,
		retention:   retention,
		rateLimiter: middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
	}, nil
}

// shutdown gracefully stops all services.
func (s *appServices) shutdown() {
	s.retention.Stop()
	s.rateLimiter.Close()
	logger.Info().Msg("All schedulers stopped")
}
