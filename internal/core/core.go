package core

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const shutdownTimeout = 30 * time.Second

// App manages the lifecycle of a set of modules.
type App struct {
	ctx     *AppContext
	modules []moduleInstance
	logger  *slog.Logger
}

type moduleInstance struct {
	id      ModuleID
	module  Module
	started bool
}

// Loaded is one instantiated extension, in load order.
type Loaded struct {
	Name   string
	Info   ModuleInfo
	Module Module
}

// NewApp creates a new App with the given context.
func NewApp(ctx *AppContext) *App {
	return &App{
		ctx:    ctx,
		logger: ctx.Logger.With("component", "core"),
	}
}

// Context returns the AppContext modules are provisioned with.
func (a *App) Context() *AppContext { return a.ctx }

// LoadModules instantiates, provisions, and validates all modules for the
// given IDs in order. If any step fails, already-loaded modules are cleaned up.
func (a *App) LoadModules(ids []string) error {
	for _, id := range ids {
		mod, err := a.ctx.LoadModule(id)
		if err != nil {
			a.cleanup()
			return fmt.Errorf("loading module %s: %w", id, err)
		}
		info := mod.ModuleInfo()
		a.modules = append(a.modules, moduleInstance{
			id:     info.ID,
			module: mod,
		})
		a.logger.Info("module loaded", "module", string(info.ID))
	}
	return nil
}

// LoadExtensions orders the enabled extensions (see Order) and instantiates
// each one in that order. Loading is atomic: on the first failure every
// extension instantiated by this call is stopped, nothing is added to the
// App, and the returned error is a *PluginLoadError naming the culprit.
// On success the extensions join the App's lifecycle after any modules
// loaded before them.
func (a *App) LoadExtensions(enabled, order []string) ([]Loaded, error) {
	names, err := Order(enabled, order)
	if err != nil {
		return nil, err
	}

	loaded := make([]Loaded, 0, len(names))
	for _, name := range names {
		mod, err := a.ctx.loadExtension(name)
		if err != nil {
			a.discard(loaded)
			return nil, err
		}
		loaded = append(loaded, Loaded{
			Name:   name,
			Info:   mod.ModuleInfo(),
			Module: mod,
		})
	}

	for _, l := range loaded {
		a.modules = append(a.modules, moduleInstance{id: l.Info.ID, module: l.Module})
		a.logger.Info("extension loaded", "extension", l.Name)
	}
	return loaded, nil
}

// AppendModule adds an already-built module to the lifecycle. It starts
// after everything loaded so far and stops before it.
func (a *App) AppendModule(id ModuleID, mod Module) {
	a.modules = append(a.modules, moduleInstance{id: id, module: mod})
}

// Module returns the loaded module with the given ID.
func (a *App) Module(id ModuleID) (Module, bool) {
	for _, mi := range a.modules {
		if mi.id == id {
			return mi.module, true
		}
	}
	return nil, false
}

func (a *App) discard(loaded []Loaded) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	for i := len(loaded) - 1; i >= 0; i-- {
		if s, ok := loaded[i].Module.(Stopper); ok {
			_ = s.Stop(ctx)
		}
	}
}

// Start starts all loaded modules that implement Starter, in order.
// If any Start() fails, already-started modules are stopped in reverse order.
func (a *App) Start() error {
	for i := range a.modules {
		mi := &a.modules[i]
		s, ok := mi.module.(Starter)
		if !ok {
			mi.started = true
			continue
		}
		a.logger.Info("starting module", "module", string(mi.id))
		if err := s.Start(); err != nil {
			a.logger.Error("module start failed", "module", string(mi.id), "error", err)
			a.stopModules(i - 1)
			return fmt.Errorf("starting module %s: %w", mi.id, err)
		}
		mi.started = true
	}
	a.logger.Info("all modules started")
	return nil
}

// Stop stops all started modules in reverse order with a timeout.
func (a *App) Stop() {
	a.stopModules(len(a.modules) - 1)
}

func (a *App) stopModules(fromIndex int) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	for i := fromIndex; i >= 0; i-- {
		mi := &a.modules[i]
		if !mi.started {
			continue
		}
		if s, ok := mi.module.(Stopper); ok {
			a.logger.Info("stopping module", "module", string(mi.id))
			if err := s.Stop(ctx); err != nil {
				a.logger.Error("module stop error", "module", string(mi.id), "error", err)
			}
		}
		mi.started = false
	}
}

// Close releases every loaded module, started or not. It is what callers
// use when they never reach Start (for example a failed wiring step).
func (a *App) Close() {
	a.cleanup()
}

func (a *App) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	for i := len(a.modules) - 1; i >= 0; i-- {
		mi := &a.modules[i]
		if s, ok := mi.module.(Stopper); ok {
			_ = s.Stop(ctx)
		}
	}
	a.modules = nil
}

// Run starts all modules and blocks until a shutdown signal is received.
func (a *App) Run() error {
	if err := a.Start(); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	a.logger.Info("shutdown signal received", "signal", sig.String())

	a.Stop()
	a.logger.Info("shutdown complete")
	return nil
}
