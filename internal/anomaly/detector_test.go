package anomaly

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/observastack/aiops-engine/internal/dataset"
	"github.com/observastack/aiops-engine/internal/models"
	"github.com/observastack/aiops-engine/internal/utils"
)

func tableOf(values []float64) *dataset.Table {
	tbl := dataset.New()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	times := make([]time.Time, len(values))
	for i := range values {
		times[i] = base.Add(time.Duration(i) * time.Minute)
	}
	tbl.Times = times
	_ = tbl.AddColumn(models.MetricCPUUsage, values)
	return tbl
}

func noisyConstant(n int, level float64) []float64 {
	rng := rand.New(rand.NewSource(9))
	out := make([]float64, n)
	for i := range out {
		out[i] = level + rng.NormFloat64()*0.5
	}
	return out
}

func TestTrainSkipsSmallMetrics(t *testing.T) {
	d := New(DefaultConfig(), utils.NewNopLogger())

	report, err := d.Train(context.Background(), map[string]*dataset.Table{
		"cpu_usage": tableOf(noisyConstant(100, 50)),
		"tiny":      tableOf([]float64{1, 2, 3}),
	})
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if len(report.Trained) != 1 || report.Trained[0] != "cpu_usage" {
		t.Fatalf("expected cpu_usage trained, got %v", report.Trained)
	}
	if len(report.Skipped) != 1 || report.Skipped[0] != "tiny" {
		t.Fatalf("expected tiny skipped, got %v", report.Skipped)
	}

	status := d.Status()
	if !status.Trained || len(status.Metrics) != 1 {
		t.Fatalf("status should list one trained metric, got %+v", status)
	}
}

func TestDetectUntrainedMetric(t *testing.T) {
	d := New(DefaultConfig(), utils.NewNopLogger())

	result, err := d.Detect(context.Background(), "memory_usage", tableOf(noisyConstant(30, 40)))
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if result.Method != models.NoneMethod {
		t.Fatalf("expected method none, got %q", result.Method)
	}
	if result.Message != "models not trained" {
		t.Fatalf("unexpected message %q", result.Message)
	}
	if len(result.Anomalies) != 0 {
		t.Fatal("untrained metric must report no anomalies")
	}
}

func TestDetectMissingColumnReportsError(t *testing.T) {
	d := New(DefaultConfig(), utils.NewNopLogger())
	if _, err := d.Train(context.Background(), map[string]*dataset.Table{
		"cpu_usage": tableOf(noisyConstant(100, 50)),
	}); err != nil {
		t.Fatalf("train: %v", err)
	}

	window := dataset.New()
	_ = window.AddColumn(models.MetricMemoryUsage, noisyConstant(30, 40))

	result, err := d.Detect(context.Background(), "cpu_usage", window)
	if err == nil {
		t.Fatal("window without the trained column must fail")
	}
	if result.Method != models.ErrorMethod {
		t.Fatalf("expected method error, got %q", result.Method)
	}
}

func TestDetectFlagsSpikeWithZScore(t *testing.T) {
	d := New(DefaultConfig(), utils.NewNopLogger())

	train := make([]float64, 200)
	for i := range train {
		train[i] = 50
	}
	if _, err := d.Train(context.Background(), map[string]*dataset.Table{"cpu_usage": tableOf(train)}); err != nil {
		t.Fatalf("train: %v", err)
	}

	window := make([]float64, 25)
	for i := range window {
		window[i] = 50
	}
	window[12] = 150

	result, err := d.Detect(context.Background(), "cpu_usage", tableOf(window))
	if err != nil {
		t.Fatalf("detect: %v", err)
	}

	var spike *models.Anomaly
	for i := range result.Anomalies {
		if result.Anomalies[i].Index == 12 {
			spike = &result.Anomalies[i]
			break
		}
	}
	if spike == nil {
		t.Fatalf("spike at index 12 not flagged: %+v", result.Anomalies)
	}
	if spike.Method != models.MethodZScore {
		t.Fatalf("expected z-score method for spike, got %q", spike.Method)
	}
	if spike.Confidence < 0.9 {
		t.Fatalf("expected confidence >= 0.9, got %v", spike.Confidence)
	}
	if result.Method != models.EnsembleMethod {
		t.Fatalf("expected ensemble method, got %q", result.Method)
	}
}

func TestHigherThresholdNeverAddsAnomalies(t *testing.T) {
	train := noisyConstant(200, 50)
	window := noisyConstant(40, 50)
	window[5] = 80
	window[20] = 120

	counts := map[float64]int{}
	for _, threshold := range []float64{0.6, 0.75, 0.9} {
		cfg := DefaultConfig()
		cfg.ConfidenceThreshold = threshold
		d := New(cfg, utils.NewNopLogger())
		if _, err := d.Train(context.Background(), map[string]*dataset.Table{"cpu_usage": tableOf(train)}); err != nil {
			t.Fatalf("train: %v", err)
		}
		result, err := d.Detect(context.Background(), "cpu_usage", tableOf(window))
		if err != nil {
			t.Fatalf("detect: %v", err)
		}
		counts[threshold] = len(result.Anomalies)
	}

	if counts[0.75] > counts[0.6] || counts[0.9] > counts[0.75] {
		t.Fatalf("raising the threshold must not add anomalies: %v", counts)
	}
}

func TestDetectDeterministicForSeed(t *testing.T) {
	train := noisyConstant(150, 50)
	window := noisyConstant(30, 50)
	window[7] = 95

	run := func() models.AnomalyResult {
		d := New(DefaultConfig(), utils.NewNopLogger())
		if _, err := d.Train(context.Background(), map[string]*dataset.Table{"cpu_usage": tableOf(train)}); err != nil {
			t.Fatalf("train: %v", err)
		}
		result, err := d.Detect(context.Background(), "cpu_usage", tableOf(window))
		if err != nil {
			t.Fatalf("detect: %v", err)
		}
		return result
	}

	a := run()
	b := run()
	if len(a.Anomalies) != len(b.Anomalies) || a.Confidence != b.Confidence {
		t.Fatalf("detection must be deterministic: %d/%v vs %d/%v",
			len(a.Anomalies), a.Confidence, len(b.Anomalies), b.Confidence)
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	d := New(DefaultConfig(), utils.NewNopLogger())
	if _, err := d.Train(context.Background(), map[string]*dataset.Table{"cpu_usage": tableOf(noisyConstant(100, 50))}); err != nil {
		t.Fatalf("train: %v", err)
	}

	restored := New(DefaultConfig(), utils.NewNopLogger())
	restored.Restore(d.Snapshot())

	if got, want := restored.Trained(), d.Trained(); len(got) != len(want) || got[0] != want[0] {
		t.Fatalf("restored keys %v != %v", got, want)
	}
}
