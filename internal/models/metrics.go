package models

import (
	"sort"
	"time"
)

// Metric field names emitted by the platform collectors.
const (
	MetricCPUUsage     = "cpu_usage"
	MetricMemoryUsage  = "memory_usage"
	MetricDiskUsage    = "disk_usage"
	MetricNetworkIn    = "network_in"
	MetricNetworkOut   = "network_out"
	MetricResponseTime = "response_time"
	MetricThroughput   = "throughput"
	MetricErrorRate    = "error_rate"
)

// KnownMetrics lists every metric field a collector may report.
var KnownMetrics = []string{
	MetricCPUUsage,
	MetricMemoryUsage,
	MetricDiskUsage,
	MetricNetworkIn,
	MetricNetworkOut,
	MetricResponseTime,
	MetricThroughput,
	MetricErrorRate,
}

// MetricPoint is one observation of a service at a point in time.
type MetricPoint struct {
	Timestamp   time.Time
	Values      map[string]float64
	ServiceName string
	Environment string
}

// Series is an ordered sequence of metric points for one source.
type Series []MetricPoint

// SortByTime orders the series by ascending timestamp in place.
func (s Series) SortByTime() {
	sort.SliceStable(s, func(i, j int) bool {
		return s[i].Timestamp.Before(s[j].Timestamp)
	})
}

// Metrics returns the sorted union of metric names present in the series.
func (s Series) Metrics() []string {
	seen := map[string]struct{}{}
	for _, p := range s {
		for name := range p.Values {
			seen[name] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
