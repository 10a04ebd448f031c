package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels operations that completed.
	OutcomeSuccess = "success"
	// OutcomeError labels operations that failed.
	OutcomeError = "error"
	// OutcomeSkipped labels operations rejected before doing any work, for
	// example training on too little data.
	OutcomeSkipped = "skipped"
)

var (
	operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aiops_engine",
			Name:      "operations_total",
			Help:      "Total operations handled, partitioned by component, operation and outcome.",
		},
		[]string{"component", "operation", "outcome"},
	)

	operationDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "aiops_engine",
			Name:      "operation_seconds",
			Help:      "Operation latency in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"component", "operation"},
	)

	modelTrainedTimestamp = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "aiops_engine",
			Name:      "model_trained_timestamp_seconds",
			Help:      "Unix time of the last successful training per component.",
		},
		[]string{"component"},
	)
)

// Register attaches engine collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		operationsTotal,
		operationDurationSeconds,
		modelTrainedTimestamp,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveOperation records one operation's duration and outcome.
func ObserveOperation(component, operation string, duration time.Duration, outcome string) {
	switch outcome {
	case OutcomeError, OutcomeSkipped:
	default:
		outcome = OutcomeSuccess
	}
	operationsTotal.WithLabelValues(component, operation, outcome).Inc()
	if duration < 0 {
		duration = 0
	}
	operationDurationSeconds.WithLabelValues(component, operation).Observe(duration.Seconds())
}

// MarkTrained records a successful training run for the component.
func MarkTrained(component string, at time.Time) {
	modelTrainedTimestamp.WithLabelValues(component).Set(float64(at.Unix()))
}
