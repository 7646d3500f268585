package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/jittakal/audiomemlog/internal/config/dto"
	"github.com/jittakal/audiomemlog/internal/dump"
)

// Loader reads the application config from YAML and APP_* environment
// variables.
type Loader struct {
	v *viper.Viper
}

// NewLoader returns a Loader with environment overrides enabled.
func NewLoader() *Loader {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return &Loader{v: v}
}

// Load reads path, which may be empty or missing, then applies defaults,
// expands ${VAR} references and validates the result.
func (l *Loader) Load(path string) (*dto.ApplicationConfig, error) {
	l.setDefaults()

	if err := l.readFile(path); err != nil {
		return nil, err
	}
	l.expandEnv()

	var cfg dto.ApplicationConfig
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := l.Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func (l *Loader) readFile(path string) error {
	if path == "" {
		return nil
	}
	l.v.SetConfigFile(path)
	err := l.v.ReadInConfig()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

func (l *Loader) expandEnv() {
	for _, key := range l.v.AllKeys() {
		if value := l.v.GetString(key); strings.Contains(value, "${") {
			l.v.Set(key, os.ExpandEnv(value))
		}
	}
}

func (l *Loader) setDefaults() {
	l.v.SetDefault("application.name", "audiomemlog")
	l.v.SetDefault("application.version", "1.0.0")
	l.v.SetDefault("application.environment", "development")

	l.v.SetDefault("memlogger.print_time", false)
	l.v.SetDefault("memlogger.max_arena_mb", 64)

	l.v.SetDefault("dump.interval_seconds", 60)
	l.v.SetDefault("dump.timestamp_format", dump.DefaultTimestampFormat)
	l.v.SetDefault("dump.skip_empty", false)
	l.v.SetDefault("dump.dump_on_shutdown", true)

	l.v.SetDefault("simulator.producers", 4)
	l.v.SetDefault("simulator.rate_per_second", 200)
	l.v.SetDefault("simulator.duration_seconds", 30)
	l.v.SetDefault("simulator.seed", 0)

	l.v.SetDefault("observability.logging.level", "info")
	l.v.SetDefault("observability.logging.format", "json")
	l.v.SetDefault("observability.logging.output", "stdout")
	l.v.SetDefault("observability.metrics.enabled", true)
	l.v.SetDefault("observability.metrics.port", 9090)
	l.v.SetDefault("observability.metrics.path", "/metrics")
	l.v.SetDefault("observability.health.port", 8080)
	l.v.SetDefault("observability.health.liveness_path", "/health/live")
	l.v.SetDefault("observability.health.readiness_path", "/health/ready")
	l.v.SetDefault("observability.health.dump_path", "/dump")

	l.v.SetDefault("shutdown.grace_period_seconds", 30)
}

// Validate checks cross-field constraints that defaults cannot guarantee.
func (l *Loader) Validate(config *dto.ApplicationConfig) error {
	if err := config.Validate(); err != nil {
		return err
	}

	for _, q := range config.MemLogger.Queues {
		if err := q.Validate(); err != nil {
			return fmt.Errorf("memlogger.queues: %w", err)
		}
	}
	for _, s := range config.MemLogger.Statbufs {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("memlogger.statbufs: %w", err)
		}
	}
	if config.MemLogger.MaxArenaMB < 0 {
		return fmt.Errorf("invalid memlogger.max_arena_mb: %d", config.MemLogger.MaxArenaMB)
	}

	if config.Dump.IntervalSeconds < 0 {
		return fmt.Errorf("invalid dump.interval_seconds: %d", config.Dump.IntervalSeconds)
	}
	if config.Dump.TimestampFormat == "" {
		return errors.New("dump.timestamp_format is required")
	}

	if config.Observability.Metrics.Port < 1 || config.Observability.Metrics.Port > 65535 {
		return fmt.Errorf("invalid metrics port: %d", config.Observability.Metrics.Port)
	}
	if config.Observability.Health.Port < 1 || config.Observability.Health.Port > 65535 {
		return fmt.Errorf("invalid health port: %d", config.Observability.Health.Port)
	}

	return nil
}
