package pipeline

import (
	"fmt"
	"strings"

	"github.com/kbukum/datapipe/errors"
	"github.com/kbukum/datapipe/logger"
	"github.com/kbukum/datapipe/observability"
	"github.com/kbukum/datapipe/validation"
)

// ErrorPolicy selects how an iterator treats record errors.
type ErrorPolicy int

const (
	// RaisePolicy returns record errors from Next; the iterator stays usable.
	RaisePolicy ErrorPolicy = iota
	// SkipPolicy logs record errors and continues with the next record.
	SkipPolicy
)

// String returns the configuration name of the policy.
func (p ErrorPolicy) String() string {
	switch p {
	case RaisePolicy:
		return "raise"
	case SkipPolicy:
		return "skip"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParseErrorPolicy parses "raise" or "skip".
func ParseErrorPolicy(s string) (ErrorPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "raise":
		return RaisePolicy, nil
	case "skip":
		return SkipPolicy, nil
	default:
		return RaisePolicy, errors.Configuration("pipeline.error_policy", fmt.Sprintf("unknown error policy %q", s))
	}
}

// Config holds the pipeline section of the engine configuration.
type Config struct {
	// ErrorPolicy is "raise" (default) or "skip".
	ErrorPolicy string `yaml:"error_policy" mapstructure:"error_policy" validate:"omitempty,oneof=raise skip"`
	// LogComponent names the logger iterators write to.
	LogComponent string `yaml:"log_component" mapstructure:"log_component"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.ErrorPolicy == "" {
		c.ErrorPolicy = "raise"
	}
	if c.LogComponent == "" {
		c.LogComponent = "pipeline"
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	return validation.Validate(c)
}

// iterOptions configures one iterator.
type iterOptions struct {
	policy  ErrorPolicy
	log     *logger.Logger
	metrics *observability.PipelineMetrics
}

// Option configures an iterator created by Iter or Restore.
type Option func(*iterOptions)

// WithErrorPolicy selects how record errors are handled.
func WithErrorPolicy(p ErrorPolicy) Option {
	return func(o *iterOptions) { o.policy = p }
}

// WithLogger sets the logger for lifecycle and skipped-record messages.
func WithLogger(l *logger.Logger) Option {
	return func(o *iterOptions) { o.log = l }
}

// WithMetrics reports iteration counters to m.
func WithMetrics(m *observability.PipelineMetrics) Option {
	return func(o *iterOptions) { o.metrics = m }
}

func newIterOptions(opts []Option) iterOptions {
	o := iterOptions{policy: RaisePolicy}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.Get("pipeline")
	}
	return o
}

// OptionsFromConfig converts a loaded configuration into iterator options.
func OptionsFromConfig(cfg Config) ([]Option, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	policy, err := ParseErrorPolicy(cfg.ErrorPolicy)
	if err != nil {
		return nil, err
	}
	return []Option{
		WithErrorPolicy(policy),
		WithLogger(logger.Get(cfg.LogComponent)),
	}, nil
}
