package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/observastack/aiops-engine/internal/anomaly"
	"github.com/observastack/aiops-engine/internal/dataset"
	"github.com/observastack/aiops-engine/internal/metrics"
	"github.com/observastack/aiops-engine/internal/models"
	"github.com/observastack/aiops-engine/internal/preprocess"
	"github.com/observastack/aiops-engine/internal/rootcause"
	"github.com/observastack/aiops-engine/internal/scaling"
	"github.com/observastack/aiops-engine/internal/storage"
	"github.com/observastack/aiops-engine/internal/utils"
)

// Component names used for metrics labels, bundle files and training jobs.
const (
	ComponentAnomaly   = "anomaly_detection"
	ComponentScaling   = "predictive_scaling"
	ComponentRootCause = "root_cause_analysis"
)

// Components lists every trainable component.
var Components = []string{ComponentAnomaly, ComponentScaling, ComponentRootCause}

const latencySampleSize = 256

// Log a latency summary once per this many observations.
const latencyLogEvery = 20

var bundleNames = map[string]string{
	ComponentAnomaly:   "anomaly",
	ComponentScaling:   "scaling",
	ComponentRootCause: "rootcause",
}

// Engine is the facade over the three analysis components. It owns data
// cleaning ahead of training, model persistence, background training jobs and
// per-operation telemetry.
type Engine struct {
	detector  *anomaly.Detector
	predictor *scaling.Predictor
	analyzer  *rootcause.Analyzer
	pipeline  *preprocess.Pipeline
	store     *storage.Store
	logger    *slog.Logger

	latency map[string]*utils.LatencyTracker

	mu       sync.Mutex
	training map[string]*models.TrainingStatus
}

// New assembles an engine. The pipeline and store may be nil, which disables
// training-time cleaning and persistence respectively.
func New(detector *anomaly.Detector, predictor *scaling.Predictor, analyzer *rootcause.Analyzer, pipeline *preprocess.Pipeline, store *storage.Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		detector:  detector,
		predictor: predictor,
		analyzer:  analyzer,
		pipeline:  pipeline,
		store:     store,
		logger:    logger,
		latency:   make(map[string]*utils.LatencyTracker, len(Components)),
		training:  make(map[string]*models.TrainingStatus, len(Components)),
	}
	for _, component := range Components {
		e.latency[component] = utils.NewLatencyTracker(latencySampleSize)
		e.training[component] = &models.TrainingStatus{}
	}
	return e
}

// TrainAnomalyModels cleans the raw series and fits per-metric anomaly models.
func (e *Engine) TrainAnomalyModels(ctx context.Context, data map[string]models.Series) (models.TrainReport, error) {
	start := time.Now()
	tables := make(map[string]*dataset.Table, len(data))
	for metric, series := range data {
		tbl, err := e.clean(dataset.FromSeries(series))
		if err != nil {
			e.observe(ComponentAnomaly, "train", start, err)
			return models.TrainReport{Component: ComponentAnomaly}, err
		}
		tables[metric] = tbl
	}
	report, err := e.detector.Train(ctx, tables)
	e.observe(ComponentAnomaly, "train", start, err)
	if err == nil {
		metrics.MarkTrained(ComponentAnomaly, time.Now())
	}
	return report, err
}

// DetectAnomalies scores a metric window against its trained model.
func (e *Engine) DetectAnomalies(ctx context.Context, metric string, series models.Series) (models.AnomalyResult, error) {
	start := time.Now()
	result, err := e.detector.Detect(ctx, metric, dataset.FromSeries(series))
	e.observe(ComponentAnomaly, "detect", start, err)
	return result, err
}

// TrainScalingModels cleans the series and fits the forecasting ensemble.
func (e *Engine) TrainScalingModels(ctx context.Context, series models.Series) (models.TrainReport, error) {
	start := time.Now()
	tbl, err := e.clean(dataset.FromSeries(series))
	if err != nil {
		e.observe(ComponentScaling, "train", start, err)
		return models.TrainReport{Component: ComponentScaling}, err
	}
	report, err := e.predictor.Train(ctx, tbl)
	e.observe(ComponentScaling, "train", start, err)
	if err == nil {
		metrics.MarkTrained(ComponentScaling, time.Now())
	}
	return report, err
}

// PredictScalingNeeds forecasts resource usage and recommends scaling actions.
func (e *Engine) PredictScalingNeeds(ctx context.Context, series models.Series, horizonHours int) (models.ScalingResult, error) {
	start := time.Now()
	result, err := e.predictor.Predict(ctx, dataset.FromSeries(series), horizonHours)
	e.observe(ComponentScaling, "predict", start, err)
	return result, err
}

// TrainRootCauseModels cleans the series and fits the graph and pattern models.
func (e *Engine) TrainRootCauseModels(ctx context.Context, series models.Series) (models.TrainReport, error) {
	start := time.Now()
	tbl, err := e.clean(dataset.FromSeries(series))
	if err != nil {
		e.observe(ComponentRootCause, "train", start, err)
		return models.TrainReport{Component: ComponentRootCause}, err
	}
	report, err := e.analyzer.Train(ctx, tbl)
	e.observe(ComponentRootCause, "train", start, err)
	if err == nil {
		metrics.MarkTrained(ComponentRootCause, time.Now())
	}
	return report, err
}

// AnalyzeRootCause ranks root cause hypotheses for an incident window.
func (e *Engine) AnalyzeRootCause(ctx context.Context, series models.Series, incident models.IncidentContext) (models.RCAResult, error) {
	start := time.Now()
	result, err := e.analyzer.Analyze(ctx, dataset.FromSeries(series), incident)
	e.observe(ComponentRootCause, "analyze", start, err)
	return result, err
}

// clean runs the configured preprocessing pipeline over a training table.
// Detection and analysis windows stay raw; the components align those against
// the trained columns themselves.
func (e *Engine) clean(tbl *dataset.Table) (*dataset.Table, error) {
	if e.pipeline == nil {
		return tbl, nil
	}
	out, _, err := e.pipeline.Run(tbl)
	return out, err
}

// ModelStatus reports the trained state of every component.
func (e *Engine) ModelStatus() models.StatusReport {
	return models.StatusReport{
		Anomaly:   e.detector.Status(),
		Scaling:   e.predictor.Status(),
		RootCause: e.analyzer.Status(),
	}
}

// SaveModels persists every trained component to the store. Untrained
// components are skipped.
func (e *Engine) SaveModels() error {
	if e.store == nil {
		return nil
	}
	var errs []error
	if e.detector.Status().Trained {
		if err := e.store.Save(bundleNames[ComponentAnomaly], e.detector.Snapshot()); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ComponentAnomaly, err))
		}
	}
	if e.predictor.Status().Trained {
		if err := e.store.Save(bundleNames[ComponentScaling], e.predictor.Snapshot()); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ComponentScaling, err))
		}
	}
	if e.analyzer.Status().Trained {
		if err := e.store.Save(bundleNames[ComponentRootCause], e.analyzer.Snapshot()); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ComponentRootCause, err))
		}
	}
	return errors.Join(errs...)
}

// LoadModels restores persisted bundles. A missing or unreadable bundle
// leaves that component untrained and is logged rather than returned.
func (e *Engine) LoadModels() {
	if e.store == nil {
		return
	}

	var anomalySnap anomaly.Snapshot
	if ok := e.loadBundle(ComponentAnomaly, &anomalySnap); ok {
		e.detector.Restore(anomalySnap)
	}
	var scalingState scaling.State
	if ok := e.loadBundle(ComponentScaling, &scalingState); ok {
		e.predictor.Restore(&scalingState)
	}
	var rcaState rootcause.State
	if ok := e.loadBundle(ComponentRootCause, &rcaState); ok {
		e.analyzer.Restore(&rcaState)
	}
}

func (e *Engine) loadBundle(component string, payload any) bool {
	err := e.store.Load(bundleNames[component], payload)
	switch {
	case err == nil:
		e.logger.Info("model bundle restored", slog.String("component", component))
		return true
	case errors.Is(err, storage.ErrNotFound):
		e.logger.Debug("no model bundle on disk", slog.String("component", component))
	default:
		e.logger.Warn("model bundle unusable, starting untrained",
			slog.String("component", component),
			slog.String("error", err.Error()))
	}
	return false
}

// StartTraining runs a training job for the component in the background. At
// most one job per component runs at a time.
func (e *Engine) StartTraining(ctx context.Context, component string, job func(context.Context) error) error {
	e.mu.Lock()
	status, ok := e.training[component]
	if !ok {
		e.mu.Unlock()
		return utils.NewAppError("service.StartTraining", fmt.Sprintf("unknown component %q", component), utils.ErrInvalidConfig)
	}
	if status.Running {
		e.mu.Unlock()
		return utils.NewAppError("service.StartTraining", fmt.Sprintf("training already running for %s", component), nil)
	}
	status.Running = true
	status.LastStarted = time.Now()
	e.mu.Unlock()

	go func() {
		err := job(ctx)

		e.mu.Lock()
		status.Running = false
		status.LastCompleted = time.Now()
		status.Runs++
		if err != nil {
			status.LastError = err.Error()
		} else {
			status.LastError = ""
		}
		e.mu.Unlock()

		if err != nil {
			e.logger.Error("background training failed",
				slog.String("component", component),
				slog.String("error", err.Error()))
			return
		}
		e.logger.Info("background training finished", slog.String("component", component))
	}()
	return nil
}

// TrainingStatus reports the background job state for one component.
func (e *Engine) TrainingStatus(component string) (models.TrainingStatus, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	status, ok := e.training[component]
	if !ok {
		return models.TrainingStatus{}, false
	}
	return *status, true
}

func (e *Engine) observe(component, operation string, start time.Time, err error) {
	duration := time.Since(start)

	outcome := metrics.OutcomeSuccess
	switch {
	case errors.Is(err, utils.ErrInsufficientData):
		outcome = metrics.OutcomeSkipped
	case err != nil:
		outcome = metrics.OutcomeError
	}
	metrics.ObserveOperation(component, operation, duration, outcome)

	tracker := e.latency[component]
	tracker.Observe(duration)
	if tracker.Count()%latencyLogEvery == 0 {
		e.logger.Debug("operation latency",
			slog.String("component", component),
			slog.Duration("p95", tracker.Percentile(95)),
			slog.Duration("avg", tracker.Average()))
	}
}
