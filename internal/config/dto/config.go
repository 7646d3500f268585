package dto

import (
	"fmt"
)

// ApplicationConfig is the root configuration structure
type ApplicationConfig struct {
	Application   ApplicationInfo     `mapstructure:"application"`
	MemLogger     MemLoggerConfig     `mapstructure:"memlogger"`
	Dump          DumpConfig          `mapstructure:"dump"`
	Simulator     SimulatorConfig     `mapstructure:"simulator"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Shutdown      ShutdownConfig      `mapstructure:"shutdown"`
}

// ApplicationInfo contains application metadata
type ApplicationInfo struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// MemLoggerConfig contains recorder settings. When ConfigFile is set the
// per-type settings are read from that XML file and Queues/Statbufs are
// ignored.
type MemLoggerConfig struct {
	ConfigFile string       `mapstructure:"config_file"`
	PrintTime  bool         `mapstructure:"print_time"`
	MaxArenaMB int64        `mapstructure:"max_arena_mb"`
	Queues     []TypeConfig `mapstructure:"queues"`
	Statbufs   []TypeConfig `mapstructure:"statbufs"`
}

// TypeConfig contains the settings of one queue or statbuf.
type TypeConfig struct {
	Name        string `mapstructure:"name"`
	Enable      bool   `mapstructure:"enable"`
	Size        int64  `mapstructure:"size"`
	OutputFile  string `mapstructure:"output_file"`
	MaxBinFiles int    `mapstructure:"max_bin_files"`
}

// DumpConfig contains flush scheduling settings
type DumpConfig struct {
	IntervalSeconds int    `mapstructure:"interval_seconds"`
	TimestampFormat string `mapstructure:"timestamp_format"`
	SkipEmpty       bool   `mapstructure:"skip_empty"`
	DumpOnShutdown  bool   `mapstructure:"dump_on_shutdown"`
}

// SimulatorConfig contains synthetic producer settings
type SimulatorConfig struct {
	Producers       int   `mapstructure:"producers"`
	RatePerSecond   int   `mapstructure:"rate_per_second"`
	DurationSeconds int   `mapstructure:"duration_seconds"`
	Seed            int64 `mapstructure:"seed"`
}

// ObservabilityConfig contains observability settings
type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Health  HealthConfig  `mapstructure:"health"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// MetricsConfig contains metrics settings
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// HealthConfig contains health check and control endpoint settings
type HealthConfig struct {
	Port          int    `mapstructure:"port"`
	LivenessPath  string `mapstructure:"liveness_path"`
	ReadinessPath string `mapstructure:"readiness_path"`
	DumpPath      string `mapstructure:"dump_path"`
}

// ShutdownConfig contains shutdown settings
type ShutdownConfig struct {
	GracePeriodSeconds int `mapstructure:"grace_period_seconds"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if c.Application.Name == "" {
		return fmt.Errorf("application name is required")
	}
	if c.MemLogger.ConfigFile == "" && len(c.MemLogger.Queues) == 0 && len(c.MemLogger.Statbufs) == 0 {
		return fmt.Errorf("memlogger config_file or inline queues/statbufs are required")
	}
	return nil
}

// Validate validates one type entry.
func (c *TypeConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("type name is required")
	}
	if c.Enable && c.OutputFile == "" {
		return fmt.Errorf("%s: output_file is required when enabled", c.Name)
	}
	if c.MaxBinFiles < 0 {
		return fmt.Errorf("%s: max_bin_files must not be negative", c.Name)
	}
	return nil
}
