// Package gateway is the HTTP surface of sdiscuss: the comment operations,
// extension routes, health and metrics, and the admin API. It binds to
// loopback by default and is itself a module.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"

	"github.com/flemzord/sdiscuss/internal/core"
	"github.com/flemzord/sdiscuss/internal/identity"
	"github.com/flemzord/sdiscuss/internal/logging"
	"github.com/flemzord/sdiscuss/internal/pipeline"
)

func init() {
	core.RegisterModule(&Gateway{})
}

// MiddlewareService is the AppContext service holding the configured
// *identity.Middleware. Without it the gateway wraps every operation with
// the identity policy and no exemptions.
const MiddlewareService = "identity.middleware"

// Gateway is the HTTP gateway module. It is a leaf module: nothing
// imports it.
type Gateway struct {
	config    Config
	appCtx    *core.AppContext
	logger    *slog.Logger
	server    *http.Server
	metrics   *Metrics
	startedAt time.Time

	// Resolved lazily at Start() via the service registry.
	pipeline *pipeline.Service
	auth     *identity.Middleware
}

// ModuleInfo implements core.Module.
func (g *Gateway) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:          "gateway.http",
		New:         func() core.Module { return &Gateway{} },
		Description: "HTTP API for comments, extensions and administration",
	}
}

// Configure implements core.Configurable.
func (g *Gateway) Configure(node *yaml.Node) error {
	if err := node.Decode(&g.config); err != nil {
		return err
	}
	return nil
}

// Provision implements core.Provisioner.
func (g *Gateway) Provision(ctx *core.AppContext) error {
	g.config.defaults()
	g.appCtx = ctx
	g.logger = ctx.Logger

	m, err := NewMetrics(ctx.Metrics)
	if err != nil {
		return fmt.Errorf("gateway: %w", err)
	}
	g.metrics = m

	if r, err := core.ServiceAs[*logging.Redactor](ctx, logging.ServiceName); err == nil {
		r.AddLiteral(g.config.Auth.BearerToken)
		r.AddLiteral(g.config.Auth.BasicPass)
	}
	return nil
}

// Validate implements core.Validator.
func (g *Gateway) Validate() error {
	if _, err := net.ResolveTCPAddr("tcp", g.config.Bind); err != nil {
		return errors.New("gateway: invalid bind address: " + g.config.Bind)
	}
	return nil
}

// resolve binds the services the router needs. The pipeline service is
// required; the identity middleware falls back to the bare policy.
func (g *Gateway) resolve() error {
	svc, err := core.ServiceAs[*pipeline.Service](g.appCtx, pipeline.ServiceName)
	if err != nil {
		return fmt.Errorf("gateway: %w", err)
	}
	g.pipeline = svc

	if mw, err := core.ServiceAs[*identity.Middleware](g.appCtx, MiddlewareService); err == nil {
		g.auth = mw
		return nil
	}
	policy, err := core.ServiceAs[identity.Policy](g.appCtx, identity.ServiceName)
	if err != nil {
		g.logger.Warn("no identity policy, every caller is anonymous")
	}
	g.auth = identity.NewMiddleware(policy, nil, g.logger)
	return nil
}

// Handler resolves services and returns the complete router.
func (g *Gateway) Handler() (http.Handler, error) {
	if err := g.resolve(); err != nil {
		return nil, err
	}
	return g.buildRouter()
}

// Start implements core.Starter. It resolves dependencies from the service
// registry (lazy binding) and starts the HTTP server.
func (g *Gateway) Start() error {
	handler, err := g.Handler()
	if err != nil {
		return err
	}
	g.startedAt = time.Now()

	g.server = &http.Server{
		Addr:         g.config.Bind,
		Handler:      handler,
		ReadTimeout:  g.config.ReadTimeout,
		WriteTimeout: g.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		return errors.New("gateway: listen failed: " + err.Error())
	}

	go func() {
		g.logger.Info("gateway listening", "addr", g.config.Bind)
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()

	return nil
}

// Stop implements core.Stopper. Graceful shutdown with configured timeout.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway shutting down")
	return g.server.Shutdown(shutdownCtx)
}

// gatherer returns the registry metrics are served from.
func (g *Gateway) gatherer() prometheus.Gatherer {
	if gath, ok := g.appCtx.Metrics.(prometheus.Gatherer); ok {
		return gath
	}
	return prometheus.DefaultGatherer
}
