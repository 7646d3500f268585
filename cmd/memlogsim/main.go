package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/zoobzio/clockz"
	"go.uber.org/zap"

	"github.com/jittakal/audiomemlog/internal/config"
	"github.com/jittakal/audiomemlog/internal/config/dto"
	"github.com/jittakal/audiomemlog/internal/generator"
	"github.com/jittakal/audiomemlog/internal/memlog"
	"github.com/jittakal/audiomemlog/internal/observability"
	"github.com/jittakal/audiomemlog/internal/scheduler"
)

var (
	// Version information (set during build)
	version = "dev"

	// Command-line flags
	configFile = flag.String("config", getEnv("CONFIG_PATH", "config/application.yaml"), "Path to configuration file")
	producers  = flag.Int("producers", 0, "Number of producer goroutines (overrides config)")
	duration   = flag.Duration("duration", 0, "How long to produce (overrides config)")
	seed       = flag.Int64("seed", 0, "Generator seed (overrides config; 0 uses the clock)")
	failures   = flag.Float64("failure-rate", generator.DefaultConfig().FailureRate, "Probability of a failed transition")
)

func main() {
	flag.Parse()

	cfg, err := config.NewLoader().Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	applyFlags(&cfg.Simulator)

	logger, err := observability.NewLogger(observability.LoggingConfig{
		Level:  cfg.Observability.Logging.Level,
		Format: cfg.Observability.Logging.Format,
		Output: cfg.Observability.Logging.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting memlogsim",
		zap.String("version", version),
		zap.Int("producers", cfg.Simulator.Producers),
		zap.Int("ratePerSecond", cfg.Simulator.RatePerSecond),
		zap.Int("durationSeconds", cfg.Simulator.DurationSeconds),
		zap.Int64("seed", cfg.Simulator.Seed),
	)

	fs := afero.NewOsFs()
	recCfg, err := config.RecorderConfig(fs, cfg)
	if err != nil {
		logger.Fatal("Failed to load type configuration", zap.Error(err))
	}

	recorder, err := memlog.New(recCfg,
		memlog.WithFs(fs),
		memlog.WithLogger(logger.Named("memlog")),
		memlog.WithMaxArenaBytes(cfg.MemLogger.MaxArenaMB*1024*1024),
		memlog.WithTimestampFormat(cfg.Dump.TimestampFormat),
		memlog.WithSkipEmpty(cfg.Dump.SkipEmpty),
	)
	if err != nil {
		logger.Fatal("Failed to create recorder", zap.Error(err))
	}
	if err := recorder.InitAll(); err != nil {
		logger.Error("Some recorder types failed to initialize", zap.Error(err))
	}
	defer func() {
		if err := recorder.DeinitAll(); err != nil {
			logger.Error("Failed to release recorder", zap.Error(err))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Simulator.DurationSeconds)*time.Second)
	defer cancel()

	sched := scheduler.New(recorder,
		time.Duration(cfg.Dump.IntervalSeconds)*time.Second,
		scheduler.WithLogger(logger.Named("scheduler")),
	)
	sched.Start(ctx)

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
	}()

	var produced, failed atomic.Uint64
	var wg sync.WaitGroup
	genCfg := generator.Config{MaxStreams: generator.DefaultConfig().MaxStreams, FailureRate: *failures}

	for i := 0; i < cfg.Simulator.Producers; i++ {
		wg.Add(1)
		gen := generator.New(genCfg, cfg.Simulator.Seed+int64(i), recorder, logger.Named("generator"))
		go func(id int) {
			defer wg.Done()
			n, errs := produceRecords(ctx, gen, cfg.Simulator.RatePerSecond, logger.With(zap.Int("producer", id)))
			produced.Add(n)
			failed.Add(errs)
		}(i)
	}

	wg.Wait()
	<-sched.Done()

	if err := sched.DumpNow("shutdown"); err != nil {
		logger.Error("Final dump failed", zap.Error(err))
	}

	logger.Info("Simulation complete",
		zap.Uint64("recordsProduced", produced.Load()),
		zap.Uint64("enqueueErrors", failed.Load()),
		zap.Uint64("dumpCycles", sched.Cycles()),
	)
}

// produceRecords steps the generator at the configured rate until ctx ends.
func produceRecords(ctx context.Context, gen *generator.Generator, rate int, logger *zap.Logger) (uint64, uint64) {
	ticker := clockz.RealClock.NewTicker(time.Second / time.Duration(rate))
	defer ticker.Stop()

	var produced, failed uint64
	for {
		select {
		case <-ctx.Done():
			logger.Debug("Stopping record production", zap.Uint64("produced", produced))
			return produced, failed
		case <-ticker.C():
			n, err := gen.Step()
			produced += uint64(n)
			if err != nil {
				failed++
				logger.Warn("Failed to record event", zap.Error(err))
			}
		}
	}
}

func applyFlags(sim *dto.SimulatorConfig) {
	if *producers > 0 {
		sim.Producers = *producers
	}
	if *duration > 0 {
		sim.DurationSeconds = int(duration.Seconds())
	}
	if *seed != 0 {
		sim.Seed = *seed
	}
	if sim.Seed == 0 {
		sim.Seed = time.Now().UnixNano()
	}
	if sim.RatePerSecond <= 0 {
		sim.RatePerSecond = 1
	}
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
