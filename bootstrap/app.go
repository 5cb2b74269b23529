package bootstrap

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"syscall"
	"time"

	"github.com/kbukum/datapipe/checkpoint"
	"github.com/kbukum/datapipe/errors"
	"github.com/kbukum/datapipe/kafka"
	"github.com/kbukum/datapipe/logger"
	"github.com/kbukum/datapipe/observability"
	"github.com/kbukum/datapipe/pipeline"
	"github.com/kbukum/datapipe/source"
	"github.com/kbukum/datapipe/storage"
	"github.com/kbukum/datapipe/version"

	_ "github.com/kbukum/datapipe/storage/local"
	_ "github.com/kbukum/datapipe/storage/s3"
)

// App runs a finite data-loading task with its checkpoint backend,
// telemetry and lifecycle hooks set up from one Config.
//
// Example:
//
//	cfg, _ := bootstrap.LoadConfig("trainer")
//	app, _ := bootstrap.NewApp(cfg)
//	app.RunTask(ctx, func(ctx context.Context) error {
//	    it, err := app.Resume(ctx, p)
//	    ...
//	})
type App struct {
	Name    string
	Version string
	Cfg     *Config
	Logger  *logger.Logger
	Summary *Summary

	// Set during startup.
	Storage     storage.Storage
	Checkpoints *checkpoint.Store
	Metrics     *observability.PipelineMetrics

	options         []pipeline.Option
	ownsStorage     bool
	shutdowns       []func(context.Context) error
	summaryOut      io.Writer
	gracefulTimeout time.Duration
	onConfigure     []func(ctx context.Context, app *App) error
	stopped         bool

	onStart []Hook
	onStop  []Hook
}

// NewApp creates an application from cfg. It applies defaults, validates
// the config and initializes the logger. Backends are opened by RunTask.
func NewApp(cfg *Config, opts ...Option) (*App, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	iterOpts, err := pipeline.OptionsFromConfig(cfg.Pipeline)
	if err != nil {
		return nil, err
	}

	ver := cfg.Version
	if ver == "" {
		ver = version.GetShortVersion()
	}
	app := &App{
		Name:            cfg.Name,
		Version:         ver,
		Cfg:             cfg,
		options:         iterOpts,
		summaryOut:      os.Stdout,
		gracefulTimeout: cfg.ShutdownTimeout,
	}

	o := resolveOptions(opts)
	if o.gracefulTimeout != nil {
		app.gracefulTimeout = *o.gracefulTimeout
	}
	if o.summary != nil {
		app.summaryOut = o.summary
	}
	app.Storage = o.storage

	if o.logger != nil {
		app.Logger = o.logger
	} else {
		logger.Init(&cfg.Logging)
		app.Logger = logger.GetGlobalLogger()
	}

	app.Summary = NewSummary(app.Name, app.Version)
	return app, nil
}

// OnConfigure registers a callback that runs after the backends are open
// and the start hooks have run.
func (a *App) OnConfigure(fn func(ctx context.Context, app *App) error) {
	a.onConfigure = append(a.onConfigure, fn)
}

// RunTask opens the backends, runs the start hooks and configure
// callbacks, executes task and shuts down. The task context is canceled on
// SIGINT or SIGTERM. A task error takes precedence over a shutdown error.
func (a *App) RunTask(ctx context.Context, task func(ctx context.Context) error) error {
	if err := a.startup(ctx); err != nil {
		_ = a.stop()
		return err
	}

	taskCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			a.Logger.Info("Received signal, canceling task", logger.Fields("signal", sig.String()))
			cancel()
		case <-taskCtx.Done():
		}
	}()

	taskErr := task(taskCtx)

	if stopErr := a.stop(); stopErr != nil {
		if taskErr != nil {
			return taskErr
		}
		return stopErr
	}
	return taskErr
}

// startup performs the initialization sequence of RunTask.
func (a *App) startup(ctx context.Context) error {
	start := time.Now()

	a.Logger.Info("Starting application", logger.Fields(
		"name", a.Name,
		"version", a.Version,
	))

	if err := a.initialize(ctx); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	if err := runHooks(ctx, a.onStart); err != nil {
		return fmt.Errorf("onStart hook failed: %w", err)
	}
	if err := a.configure(ctx); err != nil {
		return fmt.Errorf("configuration failed: %w", err)
	}

	a.Summary.SetStartupDuration(time.Since(start))
	a.Summary.DisplaySummary(a.summaryOut)
	return nil
}

// initialize opens the checkpoint backend and starts telemetry.
func (a *App) initialize(ctx context.Context) error {
	cp := &a.Cfg.Checkpoint

	if a.Storage == nil {
		s, err := storage.New(cp.Storage, cp.providerConfig(), a.Logger)
		if err != nil {
			a.Summary.TrackInfrastructure("checkpoints", "storage", "failed", cp.Storage.Provider, false)
			return err
		}
		a.Storage = s
		a.ownsStorage = true
		a.Summary.TrackInfrastructure("checkpoints", "storage", "connected", describeStorage(cp), true)
	} else {
		a.Summary.TrackInfrastructure("checkpoints", "storage", "connected", "provided", true)
	}
	sealer, err := cp.Config.Sealer()
	if err != nil {
		return err
	}
	var storeOpts []checkpoint.StoreOption
	encrypted := "off"
	if sealer != nil {
		storeOpts = append(storeOpts, checkpoint.WithSealer(sealer))
		encrypted = cp.Cipher
	}
	a.Checkpoints = checkpoint.NewStore(a.Storage, cp.Config, storeOpts...)

	if err := a.startTelemetry(ctx); err != nil {
		a.Summary.TrackInfrastructure("telemetry", "otlp", "failed", a.Cfg.Observability.Endpoint, false)
		return err
	}

	if k := a.Cfg.Kafka; k.Topic != "" {
		a.Summary.TrackInfrastructure("kafka", "kafka",
			"lazy", fmt.Sprintf("%s/%d via %v", k.Topic, k.Partition, k.Brokers), true)
	}

	a.Summary.TrackSetting("error_policy", a.Cfg.Pipeline.ErrorPolicy)
	a.Summary.TrackSetting("checkpoint_prefix", cp.Prefix)
	keep := "all"
	if cp.Keep > 0 {
		keep = strconv.Itoa(cp.Keep)
	}
	a.Summary.TrackSetting("checkpoint_keep", keep)
	a.Summary.TrackSetting("checkpoint_encryption", encrypted)
	a.Summary.TrackSetting("source_retry_attempts", strconv.Itoa(a.Cfg.Source.Retry.MaxAttempts))

	a.Logger.Info("Backends ready", logger.Fields(
		"provider", cp.Storage.Provider,
		"prefix", cp.Prefix,
		"telemetry", a.Cfg.Observability.Enabled,
	))
	return nil
}

func (a *App) startTelemetry(ctx context.Context) error {
	obs := &a.Cfg.Observability
	if !obs.Enabled {
		a.Summary.TrackInfrastructure("telemetry", "otlp", "disabled", "off", true)
		return nil
	}

	mp, err := observability.InitMeter(ctx, obs.MeterConfig(a.Name, a.Version, a.Cfg.Environment))
	if err != nil {
		return err
	}
	a.shutdowns = append(a.shutdowns, mp.Shutdown)

	tp, err := observability.InitTracer(ctx, obs.TracerConfig(a.Name, a.Version, a.Cfg.Environment))
	if err != nil {
		return err
	}
	a.shutdowns = append(a.shutdowns, tp.Shutdown)

	metrics, err := observability.NewPipelineMetrics(mp.Meter(observability.MeterName))
	if err != nil {
		return err
	}
	a.Metrics = metrics
	a.options = append(a.options, pipeline.WithMetrics(metrics))
	a.Summary.TrackInfrastructure("telemetry", "otlp", "active", obs.Endpoint, true)
	return nil
}

// configure runs registered configuration callbacks.
func (a *App) configure(ctx context.Context) error {
	if len(a.onConfigure) == 0 {
		return nil
	}
	for _, fn := range a.onConfigure {
		if err := fn(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// IterOptions returns the configured iterator options followed by extra.
func (a *App) IterOptions(extra ...pipeline.Option) []pipeline.Option {
	return append(slices.Clone(a.options), extra...)
}

// Iter starts a fresh iterator of p with the configured options.
func (a *App) Iter(ctx context.Context, p *pipeline.Pipeline) *pipeline.Iterator {
	return p.Iter(ctx, a.options...)
}

// Resume restores p from the latest stored checkpoint, or starts it from
// the beginning when none is stored.
func (a *App) Resume(ctx context.Context, p *pipeline.Pipeline) (*pipeline.Iterator, error) {
	if a.Checkpoints == nil {
		return nil, errors.Configuration("checkpoint", "backends are not open")
	}
	return a.Checkpoints.Resume(ctx, p, a.options...)
}

// Save captures the state of it and stores it.
func (a *App) Save(ctx context.Context, p *pipeline.Pipeline, it *pipeline.Iterator) (*pipeline.Checkpoint, error) {
	if a.Checkpoints == nil {
		return nil, errors.Configuration("checkpoint", "backends are not open")
	}
	cp, err := p.StateOf(ctx, it)
	if err != nil {
		return nil, err
	}
	if err := a.Checkpoints.Save(ctx, cp); err != nil {
		return nil, err
	}
	return cp, nil
}

// WithRetry wraps src so that opening and reading it are retried with the
// configured source retry settings.
func (a *App) WithRetry(src pipeline.RecordSource) pipeline.RecordSource {
	return source.WithRetry(src, a.Cfg.Source.Retry)
}

// KafkaSource returns a retrying source for the configured partition.
func (a *App) KafkaSource() (pipeline.RecordSource, error) {
	if a.Cfg.Kafka.Topic == "" {
		return nil, errors.Configuration("kafka.topic", "no topic configured")
	}
	return kafka.NewPartition(a.Cfg.Kafka).Retrying(a.Cfg.Source.Retry), nil
}

// Shutdown performs graceful shutdown. Use when managing your own lifecycle.
func (a *App) Shutdown(ctx context.Context) error {
	return a.stop()
}

// stop runs the stop hooks, flushes telemetry and closes the checkpoint
// backend within the graceful timeout. It runs once.
func (a *App) stop() error {
	if a.stopped {
		return nil
	}
	a.stopped = true

	a.Logger.Info("Shutting down application", logger.Fields("timeout", a.gracefulTimeout.String()))

	ctx, cancel := context.WithTimeout(context.Background(), a.gracefulTimeout)
	defer cancel()

	var shutdownErr error

	if err := runHooks(ctx, a.onStop); err != nil {
		a.Logger.Error("OnStop hook error", logger.Fields(logger.FieldError, err.Error()))
		shutdownErr = err
	}

	for i := len(a.shutdowns) - 1; i >= 0; i-- {
		if err := a.shutdowns[i](ctx); err != nil {
			a.Logger.Error("Telemetry shutdown error", logger.Fields(logger.FieldError, err.Error()))
			if shutdownErr == nil {
				shutdownErr = err
			}
		}
	}

	if c, ok := a.Storage.(io.Closer); ok && a.ownsStorage {
		if err := c.Close(); err != nil {
			a.Logger.Error("Storage close error", logger.Fields(logger.FieldError, err.Error()))
			if shutdownErr == nil {
				shutdownErr = err
			}
		}
	}

	a.Logger.Info("Application shutdown complete")
	return shutdownErr
}

func describeStorage(c *CheckpointConfig) string {
	switch c.Storage.Provider {
	case storage.ProviderLocal:
		return "local " + c.Storage.BasePath
	case storage.ProviderS3:
		return "s3://" + c.Storage.Bucket
	case storage.ProviderRedis:
		return "redis " + c.Redis.Addr
	case storage.ProviderSQL:
		return "sql " + c.Database.DSN
	default:
		return c.Storage.Provider
	}
}
