// Package app assembles a running sdiscuss instance from configuration:
// drivers, extensions, the hook dispatcher, the comment pipeline and the
// HTTP gateway, in that order.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/flemzord/sdiscuss/internal/config"
	"github.com/flemzord/sdiscuss/internal/core"
	"github.com/flemzord/sdiscuss/internal/cron"
	"github.com/flemzord/sdiscuss/internal/gateway"
	"github.com/flemzord/sdiscuss/internal/hook"
	"github.com/flemzord/sdiscuss/internal/identity"
	"github.com/flemzord/sdiscuss/internal/logging"
	"github.com/flemzord/sdiscuss/internal/pipeline"
	"github.com/flemzord/sdiscuss/internal/render"
	"github.com/flemzord/sdiscuss/internal/store"
	"github.com/flemzord/sdiscuss/internal/telemetry"
)

const gatewayID = "gateway.http"

// Options tunes Build.
type Options struct {
	// Version labels traces.
	Version string

	// LogOutput receives log lines. Defaults to stderr.
	LogOutput io.Writer

	// Headless skips the HTTP gateway. Used by commands that drive the
	// pipeline in-process.
	Headless bool
}

// Instance is an assembled, not yet started, application.
type Instance struct {
	App      *core.App
	Context  *core.AppContext
	Pipeline *pipeline.Service
	Config   *config.Config
	Logger   *slog.Logger
	Metrics  *prometheus.Registry

	shutdownTelemetry telemetry.Shutdown
}

// NewLogger returns the process logger for level. Records pass through r.
func NewLogger(w io.Writer, level string, r *logging.Redactor) (*slog.Logger, error) {
	lvl, err := config.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	if w == nil {
		w = os.Stderr
	}
	return logging.New(w, lvl, r), nil
}

// Build wires cfg into an Instance. cfg must already be validated. On
// error every module loaded so far is stopped.
func Build(ctx context.Context, cfg *config.Config, opts Options) (*Instance, error) {
	redactor := logging.NewRedactor()
	logger, err := NewLogger(opts.LogOutput, cfg.Log.Level, redactor)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	shutdown, err := telemetry.Setup(ctx, telemetry.Config{
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		Insecure:    cfg.Telemetry.Insecure,
		SampleRatio: cfg.Telemetry.SampleRatio,
		Version:     opts.Version,
	}, logger)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	appCtx := core.NewAppContext(logger, cfg.DataDir, reg).WithModuleConfigs(cfg.Modules)
	inst := &Instance{
		App:               core.NewApp(appCtx),
		Context:           appCtx,
		Config:            cfg,
		Logger:            logger,
		Metrics:           reg,
		shutdownTelemetry: shutdown,
	}
	if err := appCtx.RegisterService(logging.ServiceName, redactor); err != nil {
		return nil, err
	}
	if err := inst.wire(opts); err != nil {
		inst.App.Close()
		_ = shutdown(ctx)
		return nil, err
	}
	return inst, nil
}

// wire loads modules in dependency order. Stop runs in reverse, so the
// gateway stops taking requests before anything it calls goes away.
func (inst *Instance) wire(opts Options) error {
	appCtx, cfg := inst.Context, inst.Config

	sched := cron.NewScheduler(appCtx.Logger.With("component", "scheduler"))
	if err := appCtx.RegisterService(cron.ServiceName, sched); err != nil {
		return err
	}

	ids := slices.DeleteFunc(config.Resolve(cfg), func(id string) bool { return id == gatewayID })
	if err := inst.App.LoadModules(ids); err != nil {
		return err
	}

	loaded, err := inst.App.LoadExtensions(cfg.Extensions.Enabled, cfg.Extensions.Order)
	if err != nil {
		return err
	}
	set, err := hook.NewLoadedSet(loaded)
	if err != nil {
		return err
	}
	dispatcher, err := hook.NewDispatcher(set, hook.WithRegisterer(inst.Metrics))
	if err != nil {
		return err
	}

	st, err := core.ServiceAs[store.Store](appCtx, store.ServiceName)
	if err != nil {
		return fmt.Errorf("store driver: %w", err)
	}
	var renderer render.Renderer
	if _, ok := appCtx.Service(render.ServiceName); ok {
		if renderer, err = core.ServiceAs[render.Renderer](appCtx, render.ServiceName); err != nil {
			return fmt.Errorf("renderer driver: %w", err)
		}
	}
	inst.Pipeline = pipeline.New(st, dispatcher, renderer, appCtx.Logger.With("component", "pipeline"))
	if err := appCtx.RegisterService(pipeline.ServiceName, inst.Pipeline); err != nil {
		return err
	}

	policy, err := core.ServiceAs[identity.Policy](appCtx, identity.ServiceName)
	if err != nil {
		return fmt.Errorf("identity driver: %w", err)
	}
	mw := identity.NewMiddleware(policy, cfg.Identity.Exempt, appCtx.Logger.With("component", "identity"))
	if err := appCtx.RegisterService(gateway.MiddlewareService, mw); err != nil {
		return err
	}

	inst.App.AppendModule("scheduler", schedulerModule{sched})

	if !opts.Headless {
		if err := inst.App.LoadModules([]string{gatewayID}); err != nil {
			return err
		}
	}

	inst.Logger.Info("application wired",
		"modules", len(ids),
		"extensions", set.Names(),
		"jobs", sched.Jobs(),
	)
	return nil
}

// Start starts every module.
func (inst *Instance) Start() error {
	return inst.App.Start()
}

// Stop stops every module and flushes traces.
func (inst *Instance) Stop(ctx context.Context) {
	inst.App.Stop()
	if err := inst.shutdownTelemetry(ctx); err != nil {
		inst.Logger.Warn("telemetry shutdown failed", "error", err)
	}
}

// Close releases an Instance that was never started.
func (inst *Instance) Close(ctx context.Context) {
	inst.App.Close()
	_ = inst.shutdownTelemetry(ctx)
}

// schedulerModule puts the cron scheduler in the App lifecycle. It is
// appended after every module that may register jobs.
type schedulerModule struct {
	*cron.Scheduler
}

func (schedulerModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{ID: "scheduler"}
}
