package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/observastack/aiops-engine/internal/config"
	"github.com/observastack/aiops-engine/internal/models"
	"github.com/observastack/aiops-engine/internal/service"
	"github.com/observastack/aiops-engine/internal/utils"
)

// DataSource supplies training windows for scheduled retraining. It is
// typically backed by the platform's metrics API.
type DataSource interface {
	AnomalyTrainingData(ctx context.Context) (map[string]models.Series, error)
	ScalingTrainingData(ctx context.Context) (models.Series, error)
	RootCauseTrainingData(ctx context.Context) (models.Series, error)
}

// Trainer is the training surface of the engine facade.
type Trainer interface {
	TrainAnomalyModels(ctx context.Context, data map[string]models.Series) (models.TrainReport, error)
	TrainScalingModels(ctx context.Context, series models.Series) (models.TrainReport, error)
	TrainRootCauseModels(ctx context.Context, series models.Series) (models.TrainReport, error)
}

// JobStatus tracks one component's scheduled retraining.
type JobStatus struct {
	LastRun   time.Time
	NextRun   time.Time
	LastError string
	Runs      int
}

// Scheduler retrains configured components on a cron schedule.
type Scheduler struct {
	cfg     config.SchedulerConfig
	source  DataSource
	trainer Trainer
	logger  *slog.Logger

	cron  *cron.Cron
	entry cron.EntryID

	mu     sync.Mutex
	status map[string]JobStatus
}

// New assembles a scheduler. Call Start to begin ticking.
func New(cfg config.SchedulerConfig, source DataSource, trainer Trainer, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	status := make(map[string]JobStatus, len(cfg.Components))
	for _, component := range cfg.Components {
		status[component] = JobStatus{}
	}
	return &Scheduler{
		cfg:     cfg,
		source:  source,
		trainer: trainer,
		logger:  logger,
		cron:    cron.New(),
		status:  status,
	}
}

// Start registers the retraining job and starts the cron loop.
func (s *Scheduler) Start(ctx context.Context) error {
	entry, err := s.cron.AddFunc(s.cfg.Schedule, func() {
		s.RunNow(ctx)
	})
	if err != nil {
		return utils.NewAppError("scheduler.Start", fmt.Sprintf("invalid schedule %q", s.cfg.Schedule), err)
	}
	s.entry = entry
	s.cron.Start()
	s.logger.Info("retraining scheduler started",
		slog.String("schedule", s.cfg.Schedule),
		slog.Any("components", s.cfg.Components))
	return nil
}

// Stop halts the cron loop and waits for a running job to finish.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out with a job still running")
	}
}

// RunNow retrains every configured component immediately.
func (s *Scheduler) RunNow(ctx context.Context) {
	for _, component := range s.cfg.Components {
		err := s.runComponent(ctx, component)
		s.record(component, err)
		if err != nil {
			s.logger.Error("scheduled retraining failed",
				slog.String("component", component),
				slog.String("error", err.Error()))
		}
	}
}

func (s *Scheduler) runComponent(ctx context.Context, component string) error {
	switch component {
	case service.ComponentAnomaly:
		var data map[string]models.Series
		err := utils.Retry(ctx, s.cfg.Retry, func() error {
			var fetchErr error
			data, fetchErr = s.source.AnomalyTrainingData(ctx)
			return fetchErr
		})
		if err != nil {
			return fmt.Errorf("fetch anomaly training data: %w", err)
		}
		_, err = s.trainer.TrainAnomalyModels(ctx, data)
		return err
	case service.ComponentScaling:
		var series models.Series
		err := utils.Retry(ctx, s.cfg.Retry, func() error {
			var fetchErr error
			series, fetchErr = s.source.ScalingTrainingData(ctx)
			return fetchErr
		})
		if err != nil {
			return fmt.Errorf("fetch scaling training data: %w", err)
		}
		_, err = s.trainer.TrainScalingModels(ctx, series)
		return err
	case service.ComponentRootCause:
		var series models.Series
		err := utils.Retry(ctx, s.cfg.Retry, func() error {
			var fetchErr error
			series, fetchErr = s.source.RootCauseTrainingData(ctx)
			return fetchErr
		})
		if err != nil {
			return fmt.Errorf("fetch root cause training data: %w", err)
		}
		_, err = s.trainer.TrainRootCauseModels(ctx, series)
		return err
	default:
		return utils.NewAppError("scheduler.runComponent", fmt.Sprintf("unknown component %q", component), utils.ErrInvalidConfig)
	}
}

func (s *Scheduler) record(component string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := s.status[component]
	status.LastRun = time.Now()
	status.Runs++
	if err != nil {
		status.LastError = err.Error()
	} else {
		status.LastError = ""
	}
	s.status[component] = status
}

// Status reports per-component job state including the next scheduled run.
func (s *Scheduler) Status() map[string]JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cron.Entry(s.entry).Next
	out := make(map[string]JobStatus, len(s.status))
	for component, status := range s.status {
		status.NextRun = next
		out[component] = status
	}
	return out
}
