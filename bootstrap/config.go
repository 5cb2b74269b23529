package bootstrap

import (
	"fmt"
	"time"

	"github.com/kbukum/datapipe/checkpoint"
	"github.com/kbukum/datapipe/config"
	"github.com/kbukum/datapipe/database"
	"github.com/kbukum/datapipe/kafka"
	"github.com/kbukum/datapipe/observability"
	"github.com/kbukum/datapipe/pipeline"
	"github.com/kbukum/datapipe/redis"
	"github.com/kbukum/datapipe/source"
	"github.com/kbukum/datapipe/storage"
	"github.com/kbukum/datapipe/validation"
)

// DefaultShutdownTimeout bounds stop hooks and backend shutdown.
const DefaultShutdownTimeout = 15 * time.Second

// Config is the configuration of a data-loading job. Each section maps to
// the package that consumes it.
//
// Example:
//
//	name: trainer
//	environment: production
//	pipeline:
//	  error_policy: skip
//	checkpoint:
//	  prefix: trainer/epoch
//	  keep: 5
//	  storage:
//	    provider: s3
//	    bucket: training-state
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Pipeline      pipeline.Config      `yaml:"pipeline" mapstructure:"pipeline"`
	Checkpoint    CheckpointConfig     `yaml:"checkpoint" mapstructure:"checkpoint"`
	Source        source.Config        `yaml:"source" mapstructure:"source"`
	Kafka         kafka.Config         `yaml:"kafka" mapstructure:"kafka"`
	Observability observability.Config `yaml:"observability" mapstructure:"observability"`

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// CheckpointConfig selects where checkpoints are kept. Redis and Database
// are read only when the storage provider names them.
type CheckpointConfig struct {
	checkpoint.Config `yaml:",inline" mapstructure:",squash"`

	Storage  storage.Config  `yaml:"storage" mapstructure:"storage"`
	Redis    redis.Config    `yaml:"redis" mapstructure:"redis"`
	Database database.Config `yaml:"database" mapstructure:"database"`
}

// providerConfig returns the backend-specific settings for storage.New.
func (c *CheckpointConfig) providerConfig() any {
	switch c.Storage.Provider {
	case storage.ProviderRedis:
		return &c.Redis
	case storage.ProviderSQL:
		return &c.Database
	default:
		return nil
	}
}

// ApplyDefaults fills zero-valued fields of every section.
func (c *Config) ApplyDefaults() {
	c.ServiceConfig.ApplyDefaults()
	c.Pipeline.ApplyDefaults()
	c.Checkpoint.Config.ApplyDefaults()
	c.Checkpoint.Storage.ApplyDefaults()
	switch c.Checkpoint.Storage.Provider {
	case storage.ProviderRedis:
		c.Checkpoint.Redis.ApplyDefaults()
	case storage.ProviderSQL:
		c.Checkpoint.Database.ApplyDefaults()
	}
	c.Source.ApplyDefaults()
	if c.Kafka.Topic != "" {
		c.Kafka.ApplyDefaults()
	}
	c.Observability.ApplyDefaults()
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
}

// Validate checks every section that is in use.
func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := c.Pipeline.Validate(); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	if err := c.Checkpoint.Config.Validate(); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	if err := c.Checkpoint.Storage.Validate(); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	switch c.Checkpoint.Storage.Provider {
	case storage.ProviderRedis:
		if err := c.Checkpoint.Redis.Validate(); err != nil {
			return fmt.Errorf("checkpoint.redis: %w", err)
		}
	case storage.ProviderSQL:
		if err := c.Checkpoint.Database.Validate(); err != nil {
			return fmt.Errorf("checkpoint.database: %w", err)
		}
	}
	if err := c.Source.Validate(); err != nil {
		return fmt.Errorf("source: %w", err)
	}
	if c.Kafka.Topic != "" {
		if err := c.Kafka.Validate(); err != nil {
			return fmt.Errorf("kafka: %w", err)
		}
	}
	if err := validation.Validate(&c.Observability); err != nil {
		return fmt.Errorf("observability: %w", err)
	}
	return nil
}

// LoadConfig reads the job configuration for name from its YAML file, .env
// file and NAME_* environment variables, then applies defaults and
// validates it.
func LoadConfig(name string, opts ...config.LoaderOption) (*Config, error) {
	cfg := &Config{}
	if err := config.LoadConfig(name, cfg, opts...); err != nil {
		return nil, err
	}
	if cfg.Name == "" {
		cfg.Name = name
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}
