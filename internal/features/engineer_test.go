package features

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/observastack/aiops-engine/internal/dataset"
	"github.com/observastack/aiops-engine/internal/models"
	"github.com/observastack/aiops-engine/internal/utils"
)

func hourlySeries(n int) models.Series {
	base := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC) // a Monday
	series := make(models.Series, 0, n)
	for i := 0; i < n; i++ {
		series = append(series, models.MetricPoint{
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Values: map[string]float64{
				models.MetricCPUUsage: float64(i),
			},
		})
	}
	return series
}

func TestTransformRequiresTimestamps(t *testing.T) {
	tbl := dataset.New()
	_ = tbl.AddColumn(models.MetricCPUUsage, []float64{1, 2, 3})

	_, err := New(1).Transform(tbl)
	if !errors.Is(err, utils.ErrInvalidConfig) {
		t.Fatalf("expected invalid config error, got %v", err)
	}
}

func TestTransformTemporalFeatures(t *testing.T) {
	tbl := dataset.FromSeries(hourlySeries(200))
	out, err := New(1).Transform(tbl)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}

	hour, ok := out.Column("hour")
	if !ok {
		t.Fatal("hour column missing")
	}
	dow, _ := out.Column("day_of_week")
	weekend, _ := out.Column("is_weekend")
	business, _ := out.Column("is_business_hour")

	// Warm-up drops the first 24 hourly rows, so row 0 is Tuesday 00:00.
	if hour[0] != 0 {
		t.Fatalf("expected hour 0, got %v", hour[0])
	}
	if dow[0] != 1 {
		t.Fatalf("expected Tuesday (1), got %v", dow[0])
	}
	if weekend[0] != 0 {
		t.Fatalf("Tuesday is not a weekend, got %v", weekend[0])
	}
	if business[0] != 0 {
		t.Fatalf("midnight is not business hours, got %v", business[0])
	}

	// Saturday starts 96 hours after the Tuesday at row 0.
	if weekend[96] != 1 {
		t.Fatalf("Saturday should be weekend, got %v", weekend[96])
	}
}

func TestTransformLagAndTrend(t *testing.T) {
	tbl := dataset.FromSeries(hourlySeries(200))
	out, err := New(1).Transform(tbl)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}

	cpu, _ := out.Column(models.MetricCPUUsage)
	lag1, ok := out.Column("cpu_usage_lag_1")
	if !ok {
		t.Fatal("lag column missing")
	}
	for i := range cpu {
		if lag1[i] != cpu[i]-1 {
			t.Fatalf("row %d: lag should trail by one step, cpu=%v lag=%v", i, cpu[i], lag1[i])
		}
	}

	trend, ok := out.Column("cpu_usage_trend_24h")
	if !ok {
		t.Fatal("trend column missing")
	}
	// The source ramps by one per hour, so every 24h trend is exactly 24.
	for i, v := range trend {
		if v != 24 {
			t.Fatalf("row %d: expected trend 24, got %v", i, v)
		}
	}
}

func TestTransformRollingWindow(t *testing.T) {
	tbl := dataset.FromSeries(hourlySeries(200))
	out, err := New(1).Transform(tbl)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}

	cpu, _ := out.Column(models.MetricCPUUsage)
	mean6, ok := out.Column("cpu_usage_rolling_mean_6h")
	if !ok {
		t.Fatal("rolling mean column missing")
	}
	// Mean of a linear ramp over six samples trails the value by 2.5.
	if math.Abs(mean6[0]-(cpu[0]-2.5)) > 1e-9 {
		t.Fatalf("expected %v, got %v", cpu[0]-2.5, mean6[0])
	}

	max24, _ := out.Column("cpu_usage_rolling_max_24h")
	if max24[0] != cpu[0] {
		t.Fatalf("rolling max of a ramp is the current value, got %v want %v", max24[0], cpu[0])
	}

	// At one sample per hour the 1h window holds a single value, so its
	// deviation must be zero, not NaN, or every row would be dropped.
	std1, ok := out.Column("cpu_usage_rolling_std_1h")
	if !ok {
		t.Fatal("rolling std column missing")
	}
	for i, v := range std1 {
		if v != 0 {
			t.Fatalf("row %d: one-sample window should have zero deviation, got %v", i, v)
		}
	}
}

func TestTransformDropsWarmupRows(t *testing.T) {
	tbl := dataset.FromSeries(hourlySeries(200))
	out, err := New(1).Transform(tbl)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	// The 24-step lag needs 24 predecessors.
	if out.NumRows() != 200-24 {
		t.Fatalf("expected %d rows after warm-up, got %d", 200-24, out.NumRows())
	}
}
