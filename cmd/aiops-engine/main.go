package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/observastack/aiops-engine/internal/anomaly"
	"github.com/observastack/aiops-engine/internal/config"
	"github.com/observastack/aiops-engine/internal/metrics"
	"github.com/observastack/aiops-engine/internal/preprocess"
	"github.com/observastack/aiops-engine/internal/repo"
	"github.com/observastack/aiops-engine/internal/rootcause"
	"github.com/observastack/aiops-engine/internal/scaling"
	"github.com/observastack/aiops-engine/internal/scheduler"
	"github.com/observastack/aiops-engine/internal/service"
	"github.com/observastack/aiops-engine/internal/storage"
	"github.com/observastack/aiops-engine/internal/utils"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting aiops-engine", slog.String("metricsAddress", cfg.Server.MetricsAddress))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	store := storage.NewStore(cfg.Storage.Dir, logger)
	engine := service.New(
		anomaly.New(cfg.Anomaly, logger),
		scaling.New(cfg.Scaling, logger),
		rootcause.New(cfg.RootCause, logger),
		preprocess.NewPipeline(cfg.Preprocess, logger),
		store,
		logger,
	)
	engine.LoadModels()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		var source scheduler.DataSource
		if cfg.Scheduler.Source.Type == "http" {
			source = repo.NewTrainingClient(
				cfg.Scheduler.Source.BaseURL,
				cfg.Scheduler.Source.AnomalyPath,
				cfg.Scheduler.Source.ScalingPath,
				cfg.Scheduler.Source.RootCausePath,
				cfg.Scheduler.Source.Window,
				cfg.Scheduler.Source.Timeout,
			)
		} else {
			source = scheduler.NewFileSource(cfg.Scheduler.Source.Dir)
		}
		sched = scheduler.New(cfg.Scheduler, source, engine, logger)
		if err := sched.Start(ctx); err != nil {
			logger.Error("failed to start scheduler", slog.Any("error", err))
			os.Exit(1)
		}
	}

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()

	if sched != nil {
		sched.Stop(shutdownCtx)
	}

	if err := engine.SaveModels(); err != nil {
		logger.Warn("saving models on shutdown", slog.Any("error", err))
	}

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
	}

	// Give remaining goroutines time to finish logging
	time.Sleep(100 * time.Millisecond)
	logger.Info("aiops-engine stopped")
}
