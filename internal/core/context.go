package core

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"
)

// AppContext carries shared resources available to modules during provisioning
// and at runtime.
type AppContext struct {
	// Logger for the current module scope.
	Logger *slog.Logger

	// DataDir is the root directory for persistent module data.
	DataDir string

	// Metrics is where modules register their collectors.
	Metrics prometheus.Registerer

	parentLogger  *slog.Logger
	moduleConfigs map[string]yaml.Node
	services      *serviceTable
}

type serviceTable struct {
	mu   sync.RWMutex
	byID map[string]any
}

// NewAppContext creates a new AppContext with the given base logger and data directory.
// A nil registerer gets a private registry so tests never collide on the
// global one.
func NewAppContext(logger *slog.Logger, dataDir string, reg prometheus.Registerer) *AppContext {
	if logger == nil {
		logger = slog.Default()
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	return &AppContext{
		Logger:       logger,
		DataDir:      dataDir,
		Metrics:      reg,
		parentLogger: logger,
		services:     &serviceTable{byID: make(map[string]any)},
	}
}

// WithModuleConfigs returns a copy of the AppContext with module configurations set.
// Each key is a module ID mapping to its raw YAML configuration node.
func (ctx *AppContext) WithModuleConfigs(configs map[string]yaml.Node) *AppContext {
	cp := *ctx
	cp.moduleConfigs = configs
	return &cp
}

// ForModule returns a new AppContext scoped to the given module ID,
// with a child logger that includes the module ID. Services are shared
// with the parent.
func (ctx *AppContext) ForModule(id ModuleID) *AppContext {
	return &AppContext{
		Logger:        ctx.parentLogger.With("module", string(id)),
		DataDir:       ctx.DataDir,
		Metrics:       ctx.Metrics,
		parentLogger:  ctx.parentLogger,
		moduleConfigs: ctx.moduleConfigs,
		services:      ctx.services,
	}
}

// RegisterService publishes a value other modules can look up by name.
// Drivers publish their collaborator ("store", "identity", "renderer") here.
func (ctx *AppContext) RegisterService(name string, svc any) error {
	ctx.services.mu.Lock()
	defer ctx.services.mu.Unlock()
	if _, exists := ctx.services.byID[name]; exists {
		return fmt.Errorf("%w: %s", ErrServiceExists, name)
	}
	ctx.services.byID[name] = svc
	return nil
}

// Service returns the value registered under name.
func (ctx *AppContext) Service(name string) (any, bool) {
	ctx.services.mu.RLock()
	defer ctx.services.mu.RUnlock()
	svc, ok := ctx.services.byID[name]
	return svc, ok
}

// ServiceAs looks up name and asserts it to T.
func ServiceAs[T any](ctx *AppContext, name string) (T, error) {
	var zero T
	svc, ok := ctx.Service(name)
	if !ok {
		return zero, fmt.Errorf("service %s not registered", name)
	}
	typed, ok := svc.(T)
	if !ok {
		return zero, fmt.Errorf("service %s has type %T, want %T", name, svc, zero)
	}
	return typed, nil
}

// LoadModule instantiates and provisions a module by its ID.
// It calls Configure, Provision and Validate if the module implements
// those interfaces. The lifecycle order is:
//
//	New() → Configure() → Provision() → Validate()
//
// Returns the provisioned module instance ready for use.
func (ctx *AppContext) LoadModule(id string) (Module, error) {
	info, ok := GetModule(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModule, id)
	}

	mod := info.New()

	if c, ok := mod.(Configurable); ok {
		if node, exists := ctx.moduleConfigs[id]; exists {
			if err := c.Configure(&node); err != nil {
				return nil, fmt.Errorf("configuring module %s: %w", id, err)
			}
		}
	}

	if p, ok := mod.(Provisioner); ok {
		moduleCtx := ctx.ForModule(info.ID)
		if err := p.Provision(moduleCtx); err != nil {
			return nil, fmt.Errorf("provisioning module %s: %w", id, err)
		}
	}

	if v, ok := mod.(Validator); ok {
		if err := v.Validate(); err != nil {
			return nil, fmt.Errorf("validating module %s: %w", id, err)
		}
	}

	return mod, nil
}

// loadExtension runs LoadModule for an extension, turning both errors and
// panics into a PluginLoadError.
func (ctx *AppContext) loadExtension(name string) (mod Module, err error) {
	defer func() {
		if r := recover(); r != nil {
			mod = nil
			err = &PluginLoadError{
				Name:  name,
				Err:   fmt.Errorf("panic: %v", r),
				Stack: debug.Stack(),
			}
		}
	}()

	mod, err = ctx.LoadModule(string(ExtensionID(name)))
	if err != nil {
		return nil, &PluginLoadError{Name: name, Err: err}
	}
	return mod, nil
}
