package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.MetricsAddress != ":2112" {
		t.Fatalf("unexpected metrics address %q", cfg.Server.MetricsAddress)
	}
	if cfg.Anomaly.ConfidenceThreshold != 0.7 {
		t.Fatalf("unexpected anomaly threshold %v", cfg.Anomaly.ConfidenceThreshold)
	}
	if cfg.Scaling.MinTrainingSamples != 100 {
		t.Fatalf("unexpected scaling minimum %d", cfg.Scaling.MinTrainingSamples)
	}
	if cfg.RootCause.MaxRootCauses != 5 {
		t.Fatalf("unexpected root cause cap %d", cfg.RootCause.MaxRootCauses)
	}
	if cfg.Scheduler.Enabled {
		t.Fatal("scheduler should default to disabled")
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
server:
  metricsAddress: ":9102"
  gracefulTimeout: 30s
logging:
  level: debug
  json: true
storage:
  dir: /var/lib/aiops/models
scheduler:
  enabled: true
  schedule: "@hourly"
  components: [anomaly_detection]
  source:
    type: http
    baseURL: http://platform:8080
    window: 48h
anomaly:
  contamination: 0.05
scaling:
  thresholds:
    cpuHigh: 90
rootCause:
  depth: 2
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.MetricsAddress != ":9102" || cfg.Server.GracefulTimeout != 30*time.Second {
		t.Fatalf("server overrides not applied: %+v", cfg.Server)
	}
	if !cfg.Logging.JSON || cfg.Logging.Level != "debug" {
		t.Fatalf("logging overrides not applied: %+v", cfg.Logging)
	}
	if cfg.Storage.Dir != "/var/lib/aiops/models" {
		t.Fatalf("storage override not applied: %+v", cfg.Storage)
	}
	if !cfg.Scheduler.Enabled || cfg.Scheduler.Schedule != "@hourly" {
		t.Fatalf("scheduler overrides not applied: %+v", cfg.Scheduler)
	}
	if len(cfg.Scheduler.Components) != 1 || cfg.Scheduler.Components[0] != "anomaly_detection" {
		t.Fatalf("component list not applied: %v", cfg.Scheduler.Components)
	}
	if cfg.Scheduler.Source.Type != "http" || cfg.Scheduler.Source.BaseURL != "http://platform:8080" {
		t.Fatalf("source overrides not applied: %+v", cfg.Scheduler.Source)
	}
	if cfg.Scheduler.Source.Window != 48*time.Hour {
		t.Fatalf("source window not applied: %v", cfg.Scheduler.Source.Window)
	}
	// Untouched source keys keep their defaults.
	if cfg.Scheduler.Source.AnomalyPath != "/api/v1/ai/training/anomaly" {
		t.Fatalf("default source path lost: %q", cfg.Scheduler.Source.AnomalyPath)
	}
	if cfg.Anomaly.Contamination != 0.05 {
		t.Fatalf("anomaly override not applied: %v", cfg.Anomaly.Contamination)
	}
	if cfg.Scaling.Thresholds.CPUHigh != 90 {
		t.Fatalf("scaling threshold override not applied: %v", cfg.Scaling.Thresholds.CPUHigh)
	}
	// Untouched keys keep their defaults.
	if cfg.Scaling.Thresholds.CPULow != 20 {
		t.Fatalf("default threshold lost: %v", cfg.Scaling.Thresholds.CPULow)
	}
	if cfg.RootCause.Depth != 2 {
		t.Fatalf("root cause override not applied: %d", cfg.RootCause.Depth)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected an error for a missing explicit path")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("AIOPS_LOG_LEVEL", "warn")
	t.Setenv("AIOPS_LOG_FORMAT", "json")
	t.Setenv("AIOPS_MODEL_DIR", "/tmp/models")
	t.Setenv("AIOPS_SCHEDULER_ENABLED", "true")
	t.Setenv("AIOPS_SCHEDULER_COMPONENTS", "predictive_scaling, root_cause_analysis")
	t.Setenv("AIOPS_ANOMALY_CONTAMINATION", "0.2")
	t.Setenv("AIOPS_RCA_DEPTH", "1")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Logging.Level != "warn" || !cfg.Logging.JSON {
		t.Fatalf("logging env overrides not applied: %+v", cfg.Logging)
	}
	if cfg.Storage.Dir != "/tmp/models" {
		t.Fatalf("storage env override not applied: %q", cfg.Storage.Dir)
	}
	if !cfg.Scheduler.Enabled {
		t.Fatal("scheduler env override not applied")
	}
	if len(cfg.Scheduler.Components) != 2 || cfg.Scheduler.Components[1] != "root_cause_analysis" {
		t.Fatalf("component env override not applied: %v", cfg.Scheduler.Components)
	}
	if cfg.Anomaly.Contamination != 0.2 {
		t.Fatalf("anomaly env override not applied: %v", cfg.Anomaly.Contamination)
	}
	if cfg.RootCause.Depth != 1 {
		t.Fatalf("depth env override not applied: %d", cfg.RootCause.Depth)
	}
}
