package service

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/observastack/aiops-engine/internal/anomaly"
	"github.com/observastack/aiops-engine/internal/models"
	"github.com/observastack/aiops-engine/internal/preprocess"
	"github.com/observastack/aiops-engine/internal/rootcause"
	"github.com/observastack/aiops-engine/internal/scaling"
	"github.com/observastack/aiops-engine/internal/storage"
	"github.com/observastack/aiops-engine/internal/utils"
)

func newTestEngine(t *testing.T, withStore bool) *Engine {
	t.Helper()
	logger := utils.NewNopLogger()
	var store *storage.Store
	if withStore {
		store = storage.NewStore(t.TempDir(), logger)
	}
	return New(
		anomaly.New(anomaly.DefaultConfig(), logger),
		scaling.New(scaling.DefaultConfig(), logger),
		rootcause.New(rootcause.DefaultConfig(), logger),
		preprocess.NewPipeline(preprocess.DefaultConfig(), logger),
		store,
		logger,
	)
}

func metricSeries(n int, base float64) models.Series {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	s := make(models.Series, 0, n)
	for i := 0; i < n; i++ {
		s = append(s, models.MetricPoint{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Values: map[string]float64{
				models.MetricCPUUsage: base + 5*math.Sin(float64(i)/12),
			},
			ServiceName: "api",
			Environment: "prod",
		})
	}
	return s
}

func TestTrainAndDetectThroughFacade(t *testing.T) {
	e := newTestEngine(t, false)

	report, err := e.TrainAnomalyModels(context.Background(), map[string]models.Series{
		models.MetricCPUUsage: metricSeries(64, 50),
	})
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if len(report.Trained) != 1 {
		t.Fatalf("expected one trained metric, got %+v", report)
	}

	result, err := e.DetectAnomalies(context.Background(), models.MetricCPUUsage, metricSeries(32, 50))
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if result.Metric != models.MetricCPUUsage {
		t.Fatalf("unexpected result metric %q", result.Metric)
	}

	status := e.ModelStatus()
	if !status.Anomaly.Trained {
		t.Fatal("anomaly component should report trained")
	}
	if status.Scaling.Trained || status.RootCause.Trained {
		t.Fatal("untouched components should stay untrained")
	}
}

func TestSaveAndLoadModels(t *testing.T) {
	e := newTestEngine(t, true)

	if _, err := e.TrainAnomalyModels(context.Background(), map[string]models.Series{
		models.MetricCPUUsage: metricSeries(64, 50),
	}); err != nil {
		t.Fatalf("train: %v", err)
	}
	if _, err := e.TrainRootCauseModels(context.Background(), rcaSeries(120)); err != nil {
		t.Fatalf("train rca: %v", err)
	}
	if err := e.SaveModels(); err != nil {
		t.Fatalf("save: %v", err)
	}

	restored := New(
		anomaly.New(anomaly.DefaultConfig(), utils.NewNopLogger()),
		scaling.New(scaling.DefaultConfig(), utils.NewNopLogger()),
		rootcause.New(rootcause.DefaultConfig(), utils.NewNopLogger()),
		nil,
		e.store,
		utils.NewNopLogger(),
	)
	restored.LoadModels()

	status := restored.ModelStatus()
	if !status.Anomaly.Trained {
		t.Fatal("anomaly bundle should restore")
	}
	if !status.RootCause.Trained {
		t.Fatal("root cause bundle should restore")
	}
	if status.Scaling.Trained {
		t.Fatal("scaling was never trained and must stay untrained")
	}

	if _, err := restored.DetectAnomalies(context.Background(), models.MetricCPUUsage, metricSeries(32, 50)); err != nil {
		t.Fatalf("detect after restore: %v", err)
	}
}

func rcaSeries(n int) models.Series {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	s := make(models.Series, 0, n)
	for i := 0; i < n; i++ {
		s = append(s, models.MetricPoint{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Values: map[string]float64{
				models.MetricCPUUsage:    float64(i),
				models.MetricMemoryUsage: 2 * float64(i),
			},
			ServiceName: "api",
			Environment: "prod",
		})
	}
	return s
}

func TestTrainScalingSkippedOnShortSeries(t *testing.T) {
	e := newTestEngine(t, false)

	_, err := e.TrainScalingModels(context.Background(), metricSeries(20, 50))
	if !errors.Is(err, utils.ErrInsufficientData) {
		t.Fatalf("expected insufficient data error, got %v", err)
	}
}

func TestTrainingHonorsPipelineConfig(t *testing.T) {
	logger := utils.NewNopLogger()
	e := New(
		anomaly.New(anomaly.DefaultConfig(), logger),
		scaling.New(scaling.DefaultConfig(), logger),
		rootcause.New(rootcause.DefaultConfig(), logger),
		preprocess.NewPipeline(preprocess.Config{ImputeStrategy: "nearest"}, logger),
		nil,
		logger,
	)

	if _, err := e.TrainAnomalyModels(context.Background(), map[string]models.Series{
		models.MetricCPUUsage: metricSeries(64, 50),
	}); err == nil {
		t.Fatal("misconfigured pipeline must surface from anomaly training")
	}
	if _, err := e.TrainScalingModels(context.Background(), metricSeries(200, 50)); err == nil {
		t.Fatal("misconfigured pipeline must surface from scaling training")
	}
	if _, err := e.TrainRootCauseModels(context.Background(), rcaSeries(120)); err == nil {
		t.Fatal("misconfigured pipeline must surface from root cause training")
	}
}

func TestStartTrainingGuardsConcurrentRuns(t *testing.T) {
	e := newTestEngine(t, false)

	release := make(chan struct{})
	started := make(chan struct{})
	err := e.StartTraining(context.Background(), ComponentAnomaly, func(context.Context) error {
		close(started)
		<-release
		return nil
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	<-started

	if err := e.StartTraining(context.Background(), ComponentAnomaly, func(context.Context) error { return nil }); err == nil {
		t.Fatal("second concurrent job should be rejected")
	}
	status, ok := e.TrainingStatus(ComponentAnomaly)
	if !ok || !status.Running {
		t.Fatalf("job should report running, got %+v", status)
	}

	close(release)
	waitForIdle(t, e, ComponentAnomaly)

	status, _ = e.TrainingStatus(ComponentAnomaly)
	if status.Runs != 1 || status.LastError != "" {
		t.Fatalf("unexpected final status %+v", status)
	}
}

func TestStartTrainingRecordsFailure(t *testing.T) {
	e := newTestEngine(t, false)

	if err := e.StartTraining(context.Background(), ComponentScaling, func(context.Context) error {
		return errors.New("fetch failed")
	}); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitForIdle(t, e, ComponentScaling)

	status, _ := e.TrainingStatus(ComponentScaling)
	if status.LastError != "fetch failed" {
		t.Fatalf("expected recorded failure, got %+v", status)
	}
}

func TestStartTrainingUnknownComponent(t *testing.T) {
	e := newTestEngine(t, false)
	if err := e.StartTraining(context.Background(), "nope", func(context.Context) error { return nil }); err == nil {
		t.Fatal("unknown component must be rejected")
	}
	if _, ok := e.TrainingStatus("nope"); ok {
		t.Fatal("unknown component must have no status")
	}
}

func waitForIdle(t *testing.T, e *Engine, component string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		status, _ := e.TrainingStatus(component)
		if !status.Running && status.Runs > 0 {
			return
		}
		select {
		case <-deadline:
			t.Fatal("training job never finished")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
