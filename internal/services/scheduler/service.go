// Package scheduler runs periodic document re-ingestion on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/respondeo/internal/common"
	"github.com/ternarybob/respondeo/internal/interfaces"
)

// Service implements the SchedulerService interface
type Service struct {
	config       *common.SchedulerConfig
	documentsDir string
	ingest       interfaces.IngestService
	status       interfaces.StatusService
	cron         *cron.Cron
	logger       arbor.ILogger

	mu        sync.Mutex
	running   bool
	jobActive bool
	jobDone   sync.WaitGroup
}

// NewService creates a scheduler that re-ingests the documents directory
func NewService(config *common.SchedulerConfig, documentsDir string, ingest interfaces.IngestService, status interfaces.StatusService, logger arbor.ILogger) *Service {
	return &Service{
		config:       config,
		documentsDir: documentsDir,
		ingest:       ingest,
		status:       status,
		// Six-field specs with a seconds column, matching the config format
		cron:   cron.New(cron.WithSeconds()),
		logger: logger,
	}
}

// Start begins the cron loop; no-op when scheduling is disabled
func (s *Service) Start() error {
	if !s.config.Enabled {
		s.logger.Info().Msg("Scheduled re-ingestion disabled")
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	schedule := s.config.Schedule
	if schedule == "" {
		schedule = "0 0 */6 * * *"
	}
	if err := common.ValidateSchedule(schedule); err != nil {
		return fmt.Errorf("invalid re-ingestion schedule '%s': %w", schedule, err)
	}

	if _, err := s.cron.AddFunc(schedule, s.runIngestion); err != nil {
		return fmt.Errorf("failed to register re-ingestion job: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info().
		Str("schedule", schedule).
		Str("documents_dir", s.documentsDir).
		Msg("Scheduled re-ingestion started")

	return nil
}

// Stop halts the cron loop and waits for a running job to finish
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.jobDone.Wait()

	s.logger.Info().Msg("Scheduled re-ingestion stopped")
}

// runIngestion executes one scheduled pass; overlapping fires are skipped
func (s *Service) runIngestion() {
	s.mu.Lock()
	if s.jobActive {
		s.mu.Unlock()
		s.logger.Warn().Msg("Previous re-ingestion still running, skipping this fire")
		return
	}
	s.jobActive = true
	s.jobDone.Add(1)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.jobActive = false
		s.mu.Unlock()
		s.jobDone.Done()
	}()

	s.logger.Info().Str("dir", s.documentsDir).Msg("Scheduled re-ingestion starting")

	result, err := s.ingest.ProcessDirectory(context.Background(), s.documentsDir, false)
	if err != nil {
		s.logger.Error().Err(err).Msg("Scheduled re-ingestion failed")
		if s.status != nil {
			s.status.SetState(interfaces.StateDegraded, map[string]interface{}{"error": err.Error()})
		}
		return
	}

	s.logger.Info().
		Int("processed", result.Processed).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Msg("Scheduled re-ingestion completed")
}

// Ensure Service implements the interface
var _ interfaces.SchedulerService = (*Service)(nil)
