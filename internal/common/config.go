package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// Config represents the service configuration. The pipeline configuration
// (filestore root, dictionaries, models, engine conventions) lives in its own
// YAML file referenced by Pipeline.Path.
type Config struct {
	Environment string        `toml:"environment" validate:"omitempty,oneof=development production prod"`
	Server      ServerConfig  `toml:"server"`
	Queue       QueueConfig   `toml:"queue"`
	Storage     StorageConfig `toml:"storage"`
	Pipeline    PipelineRef   `toml:"pipeline"`
	Logging     LoggingConfig `toml:"logging"`
	Cleanup     CleanupConfig `toml:"cleanup"`
	Engines     EnginesConfig `toml:"engines"`
}

type ServerConfig struct {
	Port int    `toml:"port" validate:"gte=0,lte=65535"`
	Host string `toml:"host"`
}

type QueueConfig struct {
	PollInterval      string `toml:"poll_interval"`                // e.g. "1s" - how often workers poll for tasks
	Concurrency       int    `toml:"concurrency" validate:"gte=1"` // Number of concurrent workers
	VisibilityTimeout string `toml:"visibility_timeout"`           // e.g. "5m" - task redelivery timeout
	MaxReceive        int    `toml:"max_receive" validate:"gte=1"` // Max receives before dead-letter
	QueueName         string `toml:"queue_name"`                   // Queue name prefix in Badger
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

// PipelineRef points at the YAML pipeline configuration file.
type PipelineRef struct {
	Path string `toml:"path"`
}

type LoggingConfig struct {
	Level  string   `toml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string   `toml:"format" validate:"omitempty,oneof=text json"`
	Output []string `toml:"output"` // "stdout", "file"
}

// CleanupConfig controls scheduled expiry of stale batches.
type CleanupConfig struct {
	Enabled   bool   `toml:"enabled"`
	Schedule  string `toml:"schedule"`  // Cron schedule format
	Retention string `toml:"retention"` // e.g. "168h" - terminal batches older than this are removed
}

// EnginesConfig bounds external OCR process spawning.
type EnginesConfig struct {
	Timeout   string  `toml:"timeout"`    // Per-invocation timeout, e.g. "10m"
	SpawnRate float64 `toml:"spawn_rate"` // External process spawns per second (0 = unlimited)
}

// NewDefaultConfig creates a configuration with default values.
// Only user-facing settings are exposed in lectio.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Queue: QueueConfig{
			PollInterval:      "1s",
			Concurrency:       4, // OCR tasks are CPU and subprocess heavy, keep this small
			VisibilityTimeout: "10m",
			MaxReceive:        3,
			QueueName:         "lectio_tasks",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Pipeline: PipelineRef{
			Path: "lectio.yaml",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: []string{"stdout", "file"},
		},
		Cleanup: CleanupConfig{
			Enabled:   false, // user must opt in, expiry deletes batch state
			Schedule:  "0 0 * * *",
			Retention: "168h",
		},
		Engines: EnginesConfig{
			Timeout:   "10m",
			SpawnRate: 2,
		},
	}
}

// LoadFromFile loads configuration with priority: defaults -> file -> env.
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files, later files
// overriding earlier ones. Priority: env > last file > ... > first file >
// defaults.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks field constraints plus the duration and cron fields the
// struct tags cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	for name, value := range map[string]string{
		"queue.poll_interval":      c.Queue.PollInterval,
		"queue.visibility_timeout": c.Queue.VisibilityTimeout,
		"cleanup.retention":        c.Cleanup.Retention,
		"engines.timeout":          c.Engines.Timeout,
	} {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid duration for %s: %w", name, err)
		}
	}

	if c.Cleanup.Enabled {
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
		if _, err := parser.Parse(c.Cleanup.Schedule); err != nil {
			return fmt.Errorf("invalid cleanup schedule: %w", err)
		}
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	// Environment configuration (highest priority: LECTIO_ENV, fallback: GO_ENV)
	if env := os.Getenv("LECTIO_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("LECTIO_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("LECTIO_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Queue configuration
	if pollInterval := os.Getenv("LECTIO_QUEUE_POLL_INTERVAL"); pollInterval != "" {
		config.Queue.PollInterval = pollInterval
	}
	if concurrency := os.Getenv("LECTIO_QUEUE_CONCURRENCY"); concurrency != "" {
		if c, err := strconv.Atoi(concurrency); err == nil {
			config.Queue.Concurrency = c
		}
	}
	if visibilityTimeout := os.Getenv("LECTIO_QUEUE_VISIBILITY_TIMEOUT"); visibilityTimeout != "" {
		config.Queue.VisibilityTimeout = visibilityTimeout
	}
	if maxReceive := os.Getenv("LECTIO_QUEUE_MAX_RECEIVE"); maxReceive != "" {
		if mr, err := strconv.Atoi(maxReceive); err == nil {
			config.Queue.MaxReceive = mr
		}
	}
	if queueName := os.Getenv("LECTIO_QUEUE_NAME"); queueName != "" {
		config.Queue.QueueName = queueName
	}

	// Storage configuration
	if badgerPath := os.Getenv("LECTIO_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}
	if pipelinePath := os.Getenv("LECTIO_PIPELINE_CONFIG"); pipelinePath != "" {
		config.Pipeline.Path = pipelinePath
	}

	// Logging configuration
	if level := os.Getenv("LECTIO_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("LECTIO_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
	if output := os.Getenv("LECTIO_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Engine configuration
	if timeout := os.Getenv("LECTIO_ENGINES_TIMEOUT"); timeout != "" {
		config.Engines.Timeout = timeout
	}
	if rate := os.Getenv("LECTIO_ENGINES_SPAWN_RATE"); rate != "" {
		if r, err := strconv.ParseFloat(rate, 64); err == nil {
			config.Engines.SpawnRate = r
		}
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	// Command-line flags have highest priority
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// PollInterval returns the parsed queue poll interval.
func (c *Config) PollInterval() time.Duration {
	d, err := time.ParseDuration(c.Queue.PollInterval)
	if err != nil || d <= 0 {
		return time.Second
	}
	return d
}

// VisibilityTimeout returns the parsed queue visibility timeout.
func (c *Config) VisibilityTimeout() time.Duration {
	d, err := time.ParseDuration(c.Queue.VisibilityTimeout)
	if err != nil || d <= 0 {
		return 10 * time.Minute
	}
	return d
}

// EngineTimeout returns the parsed per-invocation engine timeout.
func (c *Config) EngineTimeout() time.Duration {
	d, err := time.ParseDuration(c.Engines.Timeout)
	if err != nil || d <= 0 {
		return 10 * time.Minute
	}
	return d
}

// CleanupRetention returns the parsed batch retention duration.
func (c *Config) CleanupRetention() time.Duration {
	d, err := time.ParseDuration(c.Cleanup.Retention)
	if err != nil || d <= 0 {
		return 7 * 24 * time.Hour
	}
	return d
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// DeepCloneConfig creates a deep copy of the Config struct to prevent
// mutations of the original config.
func DeepCloneConfig(c *Config) *Config {
	if c == nil {
		return nil
	}

	clone := *c

	if len(c.Logging.Output) > 0 {
		clone.Logging.Output = make([]string, len(c.Logging.Output))
		copy(clone.Logging.Output, c.Logging.Output)
	}

	return &clone
}
