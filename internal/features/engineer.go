package features

import (
	"fmt"
	"math"

	"github.com/observastack/aiops-engine/internal/dataset"
	"github.com/observastack/aiops-engine/internal/ml"
	"github.com/observastack/aiops-engine/internal/models"
	"github.com/observastack/aiops-engine/internal/utils"
)

// Engineer derives temporal, cyclical, lag, rolling and trend features from a
// timestamped metric table. Lag distances are expressed in samples, window
// and trend distances in hours converted via SamplesPerHour.
type Engineer struct {
	SamplesPerHour int
	LagSteps       []int
	RollingHours   []int
	TrendHours     []int
	LagMetrics     []string
}

// New returns an engineer with the standard feature set.
func New(samplesPerHour int) *Engineer {
	if samplesPerHour <= 0 {
		samplesPerHour = 1
	}
	return &Engineer{
		SamplesPerHour: samplesPerHour,
		LagSteps:       []int{1, 2, 3, 6, 12, 24},
		RollingHours:   []int{1, 6, 24},
		TrendHours:     []int{6, 24},
		LagMetrics: []string{
			models.MetricCPUUsage,
			models.MetricMemoryUsage,
			models.MetricResponseTime,
			models.MetricThroughput,
		},
	}
}

// Transform augments the table and drops warm-up rows left incomplete by
// lagging. The input table is not modified.
func (e *Engineer) Transform(t *dataset.Table) (*dataset.Table, error) {
	if len(t.Times) == 0 {
		return nil, utils.NewAppError("features.Transform", "timestamped input required", utils.ErrInvalidConfig)
	}

	out := t.Clone()
	rows := out.NumRows()

	e.addTemporal(out)
	e.addCyclical(out)

	for _, metric := range e.LagMetrics {
		src, ok := out.Column(metric)
		if !ok {
			continue
		}

		for _, step := range e.LagSteps {
			lag := make([]float64, rows)
			for i := 0; i < rows; i++ {
				if i < step {
					lag[i] = dataset.Missing()
				} else {
					lag[i] = src[i-step]
				}
			}
			if err := out.AddColumn(fmt.Sprintf("%s_lag_%d", metric, step), lag); err != nil {
				return nil, err
			}
		}

		for _, hours := range e.RollingHours {
			window := hours * e.SamplesPerHour
			if window < 1 {
				window = 1
			}
			means := make([]float64, rows)
			stds := make([]float64, rows)
			mins := make([]float64, rows)
			maxs := make([]float64, rows)
			for i := 0; i < rows; i++ {
				if i+1 < window {
					means[i] = dataset.Missing()
					stds[i] = dataset.Missing()
					mins[i] = dataset.Missing()
					maxs[i] = dataset.Missing()
					continue
				}
				win := src[i+1-window : i+1]
				means[i] = ml.Mean(win)
				stds[i] = ml.StdDev(win)
				mins[i] = minOf(win)
				maxs[i] = maxOf(win)
			}
			prefix := fmt.Sprintf("%s_rolling", metric)
			if err := out.AddColumn(fmt.Sprintf("%s_mean_%dh", prefix, hours), means); err != nil {
				return nil, err
			}
			if err := out.AddColumn(fmt.Sprintf("%s_std_%dh", prefix, hours), stds); err != nil {
				return nil, err
			}
			if err := out.AddColumn(fmt.Sprintf("%s_min_%dh", prefix, hours), mins); err != nil {
				return nil, err
			}
			if err := out.AddColumn(fmt.Sprintf("%s_max_%dh", prefix, hours), maxs); err != nil {
				return nil, err
			}
		}

		for _, hours := range e.TrendHours {
			step := hours * e.SamplesPerHour
			trend := make([]float64, rows)
			for i := 0; i < rows; i++ {
				if i < step {
					trend[i] = dataset.Missing()
				} else {
					trend[i] = src[i] - src[i-step]
				}
			}
			if err := out.AddColumn(fmt.Sprintf("%s_trend_%dh", metric, hours), trend); err != nil {
				return nil, err
			}
		}
	}

	return out.FilterRows(out.CompleteRows()), nil
}

func (e *Engineer) addTemporal(t *dataset.Table) {
	rows := t.NumRows()
	hour := make([]float64, rows)
	dow := make([]float64, rows)
	dom := make([]float64, rows)
	month := make([]float64, rows)
	weekend := make([]float64, rows)
	business := make([]float64, rows)

	for i, ts := range t.Times {
		hour[i] = float64(ts.Hour())
		// Monday=0 .. Sunday=6.
		dow[i] = float64((int(ts.Weekday()) + 6) % 7)
		dom[i] = float64(ts.Day())
		month[i] = float64(int(ts.Month()))
		if dow[i] >= 5 {
			weekend[i] = 1
		}
		if ts.Hour() >= 9 && ts.Hour() <= 17 {
			business[i] = 1
		}
	}

	_ = t.AddColumn("hour", hour)
	_ = t.AddColumn("day_of_week", dow)
	_ = t.AddColumn("day_of_month", dom)
	_ = t.AddColumn("month", month)
	_ = t.AddColumn("is_weekend", weekend)
	_ = t.AddColumn("is_business_hour", business)
}

func (e *Engineer) addCyclical(t *dataset.Table) {
	rows := t.NumRows()
	cycles := []struct {
		src    string
		period float64
	}{
		{"hour", 24},
		{"day_of_week", 7},
		{"month", 12},
	}

	for _, c := range cycles {
		src, ok := t.Column(c.src)
		if !ok {
			continue
		}
		sin := make([]float64, rows)
		cos := make([]float64, rows)
		for i, v := range src {
			angle := 2 * math.Pi * v / c.period
			sin[i] = math.Sin(angle)
			cos[i] = math.Cos(angle)
		}
		_ = t.AddColumn(c.src+"_sin", sin)
		_ = t.AddColumn(c.src+"_cos", cos)
	}
}

func minOf(xs []float64) float64 {
	m := xs[0]
	for _, v := range xs[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf(xs []float64) float64 {
	m := xs[0]
	for _, v := range xs[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
