package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/jittakal/audiomemlog/internal/config"
	"github.com/jittakal/audiomemlog/internal/memlog"
	"github.com/jittakal/audiomemlog/internal/observability"
	"github.com/jittakal/audiomemlog/internal/scheduler"
	"github.com/jittakal/audiomemlog/internal/server"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("application error: %v", err)
	}
}

func run() error {
	// Parse command-line flags
	configPath := flag.String("config", "", "path to configuration file")
	flag.Parse()

	// Priority: CLI flag > CONFIG_PATH env var > default path
	var cfgPath string
	if *configPath != "" {
		cfgPath = *configPath
	} else if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		cfgPath = envPath
	} else {
		cfgPath = "config/application.yaml"
	}

	loader := config.NewLoader()
	cfg, err := loader.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := observability.NewLogger(observability.LoggingConfig{
		Level:  cfg.Observability.Logging.Level,
		Format: cfg.Observability.Logging.Format,
		Output: cfg.Observability.Logging.Output,
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("starting audio memory logger",
		zap.String("version", cfg.Application.Version),
		zap.String("environment", cfg.Application.Environment),
		zap.String("config", cfgPath),
	)

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	// Track cleanup functions, run in reverse order
	var cleanupFuncs []func() error
	addCleanup := func(name string, fn func() error) {
		cleanupFuncs = append(cleanupFuncs, func() error {
			logger.Debug("running cleanup", zap.String("component", name))
			return fn()
		})
	}
	defer func() {
		for i := len(cleanupFuncs) - 1; i >= 0; i-- {
			if err := cleanupFuncs[i](); err != nil {
				logger.Error("cleanup failed", zap.Error(err))
			}
		}
	}()

	fs := afero.NewOsFs()

	recCfg, err := config.RecorderConfig(fs, cfg)
	if err != nil {
		return fmt.Errorf("failed to load type configuration: %w", err)
	}

	recorder, err := memlog.New(recCfg,
		memlog.WithFs(fs),
		memlog.WithLogger(logger.Named("memlog")),
		memlog.WithMetrics(metrics),
		memlog.WithMaxArenaBytes(cfg.MemLogger.MaxArenaMB*1024*1024),
		memlog.WithTimestampFormat(cfg.Dump.TimestampFormat),
		memlog.WithSkipEmpty(cfg.Dump.SkipEmpty),
	)
	if err != nil {
		return fmt.Errorf("failed to create recorder: %w", err)
	}

	// A type that fails to initialize stays unavailable; the rest keep working.
	if err := recorder.InitAll(); err != nil {
		logger.Error("some recorder types failed to initialize", zap.Error(err))
	}
	addCleanup("recorder", recorder.DeinitAll)

	interval := time.Duration(cfg.Dump.IntervalSeconds) * time.Second
	sched := scheduler.New(recorder, interval, scheduler.WithLogger(logger.Named("scheduler")))

	httpServer := server.NewServer(
		server.Config{
			HealthPort:    cfg.Observability.Health.Port,
			MetricsPort:   cfg.Observability.Metrics.Port,
			LivenessPath:  cfg.Observability.Health.LivenessPath,
			ReadinessPath: cfg.Observability.Health.ReadinessPath,
			DumpPath:      cfg.Observability.Health.DumpPath,
			MetricsPath:   cfg.Observability.Metrics.Path,
		},
		sched,
		sched,
		registry,
		logger.Named("server"),
	)
	if err := httpServer.Start(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	addCleanup("http-server", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(ctx)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sched.Start(ctx)

	logger.Info("application started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1)
	defer signal.Stop(sigChan)

	for sig := range sigChan {
		if sig == syscall.SIGUSR1 {
			if !sched.Trigger("signal") {
				logger.Info("dump already pending, signal coalesced")
			}
			continue
		}
		logger.Info("received termination signal", zap.String("signal", sig.String()))
		break
	}

	// Graceful shutdown
	logger.Info("initiating graceful shutdown")
	cancel()

	grace := time.Duration(cfg.Shutdown.GracePeriodSeconds) * time.Second
	select {
	case <-sched.Done():
	case <-time.After(grace):
		return fmt.Errorf("dump scheduler did not stop within %s", grace)
	}

	if cfg.Dump.DumpOnShutdown {
		if err := sched.DumpNow("shutdown"); err != nil {
			logger.Error("final dump failed", zap.Error(err))
		}
	}

	logger.Info("application stopped successfully", zap.Uint64("dump_cycles", sched.Cycles()))
	return nil
}
