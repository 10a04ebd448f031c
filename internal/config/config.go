package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/observastack/aiops-engine/internal/anomaly"
	"github.com/observastack/aiops-engine/internal/preprocess"
	"github.com/observastack/aiops-engine/internal/rootcause"
	"github.com/observastack/aiops-engine/internal/scaling"
	"github.com/observastack/aiops-engine/internal/utils"
)

// Config captures the settings required to boot the engine.
type Config struct {
	Server     ServerConfig      `yaml:"server"`
	Logging    LoggingConfig     `yaml:"logging"`
	Storage    StorageConfig     `yaml:"storage"`
	Scheduler  SchedulerConfig   `yaml:"scheduler"`
	Preprocess preprocess.Config `yaml:"preprocess"`
	Anomaly    anomaly.Config    `yaml:"anomaly"`
	Scaling    scaling.Config    `yaml:"scaling"`
	RootCause  rootcause.Config  `yaml:"rootCause"`
}

// ServerConfig controls the metrics listener and shutdown behaviour.
type ServerConfig struct {
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// StorageConfig controls model bundle persistence.
type StorageConfig struct {
	Dir string `yaml:"dir"`
}

// SchedulerConfig controls periodic retraining.
type SchedulerConfig struct {
	Enabled    bool              `yaml:"enabled"`
	Schedule   string            `yaml:"schedule"`
	Components []string          `yaml:"components"`
	Source     SourceConfig      `yaml:"source"`
	Retry      utils.RetryConfig `yaml:"retry"`
}

// SourceConfig selects where scheduled retraining pulls series from: JSON
// snapshots in a directory, or the platform's training data API.
type SourceConfig struct {
	Type          string        `yaml:"type"`
	Dir           string        `yaml:"dir"`
	BaseURL       string        `yaml:"baseURL"`
	AnomalyPath   string        `yaml:"anomalyPath"`
	ScalingPath   string        `yaml:"scalingPath"`
	RootCausePath string        `yaml:"rootCausePath"`
	Window        time.Duration `yaml:"window"`
	Timeout       time.Duration `yaml:"timeout"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("AIOPS_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
		Storage: StorageConfig{Dir: "models"},
		Scheduler: SchedulerConfig{
			Enabled:    false,
			Schedule:   "0 */6 * * *",
			Components: []string{"anomaly_detection", "predictive_scaling", "root_cause_analysis"},
			Source: SourceConfig{
				Type:          "file",
				Dir:           "data",
				AnomalyPath:   "/api/v1/ai/training/anomaly",
				ScalingPath:   "/api/v1/ai/training/scaling",
				RootCausePath: "/api/v1/ai/training/rootcause",
				Window:        7 * 24 * time.Hour,
				Timeout:       30 * time.Second,
			},
			Retry: utils.DefaultRetryConfig(),
		},
		Preprocess: preprocess.DefaultConfig(),
		Anomaly:    anomaly.DefaultConfig(),
		Scaling:    scaling.DefaultConfig(),
		RootCause:  rootcause.DefaultConfig(),
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("AIOPS_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("AIOPS_GRACEFUL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.GracefulTimeout = d
		}
	}
	if v := os.Getenv("AIOPS_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("AIOPS_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("AIOPS_MODEL_DIR"); v != "" {
		cfg.Storage.Dir = v
	}
	if v := os.Getenv("AIOPS_SCHEDULER_ENABLED"); v != "" {
		cfg.Scheduler.Enabled = strings.EqualFold(v, "true") || strings.EqualFold(v, "1")
	}
	if v := os.Getenv("AIOPS_SCHEDULER_SCHEDULE"); v != "" {
		cfg.Scheduler.Schedule = v
	}
	if v := os.Getenv("AIOPS_SOURCE_TYPE"); v != "" {
		cfg.Scheduler.Source.Type = v
	}
	if v := os.Getenv("AIOPS_SOURCE_DIR"); v != "" {
		cfg.Scheduler.Source.Dir = v
	}
	if v := os.Getenv("AIOPS_SOURCE_BASE_URL"); v != "" {
		cfg.Scheduler.Source.BaseURL = v
	}
	if v := os.Getenv("AIOPS_SOURCE_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Scheduler.Source.Window = d
		}
	}
	if v := os.Getenv("AIOPS_SCHEDULER_COMPONENTS"); v != "" {
		var components []string
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				components = append(components, part)
			}
		}
		cfg.Scheduler.Components = components
	}
	if v := os.Getenv("AIOPS_SCHEDULER_MAX_RETRIES"); v != "" {
		if retries, err := strconv.Atoi(v); err == nil {
			cfg.Scheduler.Retry.MaxRetries = retries
		}
	}
	if v := os.Getenv("AIOPS_ANOMALY_CONTAMINATION"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Anomaly.Contamination = f
		}
	}
	if v := os.Getenv("AIOPS_ANOMALY_CONFIDENCE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Anomaly.ConfidenceThreshold = f
		}
	}
	if v := os.Getenv("AIOPS_SCALING_MIN_SAMPLES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Scaling.MinTrainingSamples = n
		}
	}
	if v := os.Getenv("AIOPS_SCALING_SAMPLES_PER_HOUR"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Scaling.SamplesPerHour = n
		}
	}
	if v := os.Getenv("AIOPS_RCA_CORRELATION_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RootCause.CorrelationThreshold = f
		}
	}
	if v := os.Getenv("AIOPS_RCA_DEPTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RootCause.Depth = n
		}
	}
}
