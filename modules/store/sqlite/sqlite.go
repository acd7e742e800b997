// Package sqlite implements the store.sqlite driver: the storage
// collaborator backed by modernc.org/sqlite (pure Go, no CGO) in WAL mode.
package sqlite

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/sdiscuss/internal/core"
	"github.com/flemzord/sdiscuss/internal/store"
)

// ServiceName is the AppContext service the driver publishes.
const ServiceName = store.ServiceName

func init() {
	core.RegisterModule(&Module{})
}

// Compile-time interface guards.
var (
	_ store.Store       = (*DB)(nil)
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
	_ core.Stopper      = (*Module)(nil)
)

// Module is the store.sqlite driver.
type Module struct {
	config Config
	db     *DB
	logger *slog.Logger
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:          "store.sqlite",
		New:         func() core.Module { return &Module{} },
		Description: "SQLite storage for threads, comments and identities",
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("sqlite: decode config: %w", err)
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger

	if m.config.Path == "" {
		m.config.Path = filepath.Join(ctx.DataDir, defaultDBFile)
	}

	db, err := Open(context.Background(), m.config)
	if err != nil {
		return err
	}
	m.db = db

	if err := ctx.RegisterService(ServiceName, store.Store(db)); err != nil {
		_ = db.Close()
		return err
	}

	m.logger.Info("sqlite store provisioned",
		"path", m.config.Path,
		"wal", m.config.walEnabled(),
	)
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	if err := m.config.validate(); err != nil {
		return err
	}
	if err := m.db.Ping(context.Background()); err != nil {
		return fmt.Errorf("sqlite: ping failed: %w", err)
	}
	return nil
}

// Stop implements core.Stopper.
func (m *Module) Stop(_ context.Context) error {
	if m.logger != nil {
		m.logger.Info("sqlite store stopping")
	}
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}

// Store returns the provisioned store.
func (m *Module) Store() *DB {
	return m.db
}
