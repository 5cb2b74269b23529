// Package bootstrap sets up and runs a data-loading job.
//
// It loads a typed Config, opens the checkpoint backend named by the
// storage provider, starts OTLP telemetry when enabled and runs a finite
// task between start and stop hooks.
//
// # Quick Start
//
//	cfg, err := bootstrap.LoadConfig("trainer")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	app, err := bootstrap.NewApp(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = app.RunTask(ctx, func(ctx context.Context) error {
//	    it, err := app.Resume(ctx, p)
//	    if err != nil {
//	        return err
//	    }
//	    defer it.Close()
//	    ...
//	    _, err = app.Save(ctx, p, it)
//	    return err
//	})
//
// SIGINT and SIGTERM cancel the task context; stop hooks still run so a
// final checkpoint can be written.
package bootstrap
