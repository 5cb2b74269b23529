package source

import (
	"github.com/kbukum/datapipe/resilience"
	"github.com/kbukum/datapipe/validation"
)

const (
	// DefaultMaxLineBytes bounds a single line read by ReadText.
	DefaultMaxLineBytes = 1 << 20
)

// Config holds settings shared by the sources of this package.
type Config struct {
	// Retry governs re-opening sources wrapped with WithRetry.
	Retry resilience.RetryConfig `yaml:"retry" mapstructure:"retry"`
	// MaxLineBytes bounds one line of a text source.
	MaxLineBytes int `yaml:"max_line_bytes" mapstructure:"max_line_bytes" validate:"gte=0"`
}

// ApplyDefaults fills zero-valued fields.
func (c *Config) ApplyDefaults() {
	c.Retry.ApplyDefaults()
	if c.MaxLineBytes <= 0 {
		c.MaxLineBytes = DefaultMaxLineBytes
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	return validation.Validate(c)
}
