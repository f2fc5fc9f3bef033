package services

import (
	"fmt"
	"time"

	"github.com/huangang/deployguide/internal/config"
	"github.com/huangang/deployguide/pkg/logger"
	"github.com/robfig/cron/v3"
)

// RetentionService periodically prunes artifacts older than the configured
// number of days. Zero days disables it.
type RetentionService struct {
	repo          *ArtifactRepository
	maxAge        time.Duration
	schedule      string
	cronScheduler *cron.Cron
	entryID       cron.EntryID
}

func NewRetentionService(repo *ArtifactRepository, cfg config.RetentionConfig) *RetentionService {
	return &RetentionService{
		repo:     repo,
		maxAge:   time.Duration(cfg.Days) * 24 * time.Hour,
		schedule: cfg.Schedule,
	}
}

func (s *RetentionService) Enabled() bool {
	return s.maxAge > 0
}

// Start registers the prune job. It is a no-op when retention is disabled.
func (s *RetentionService) Start() error {
	if !s.Enabled() {
		logger.Info().Msg("[Retention] Disabled")
		return nil
	}

	s.cronScheduler = cron.New()
	entryID, err := s.cronScheduler.AddFunc(s.schedule, func() {
		s.RunOnce()
	})
	if err != nil {
		return fmt.Errorf("invalid retention schedule %q: %w", s.schedule, err)
	}
	s.entryID = entryID

	s.cronScheduler.Start()
	logger.Info().Str("schedule", s.schedule).Dur("max_age", s.maxAge).Msg("[Retention] Scheduler started")
	return nil
}

// Stop waits for a running prune to finish.
func (s *RetentionService) Stop() {
	if s.cronScheduler != nil {
		<-s.cronScheduler.Stop().Done()
	}
}

// RunOnce prunes immediately and returns how many artifacts were removed.
func (s *RetentionService) RunOnce() int {
	if !s.Enabled() {
		return 0
	}
	deleted, err := s.repo.Prune(s.maxAge)
	if err != nil {
		logger.Error().Err(err).Int("deleted", deleted).Msg("[Retention] Prune finished with errors")
		return deleted
	}
	if deleted > 0 {
		logger.Info().Int("deleted", deleted).Msg("[Retention] Pruned old artifacts")
	}
	return deleted
}
