package gateway

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/flemzord/sdiscuss/internal/core"
	"github.com/flemzord/sdiscuss/internal/hook/hooktest"
	"github.com/flemzord/sdiscuss/internal/identity"
	"github.com/flemzord/sdiscuss/internal/pipeline"
	"github.com/flemzord/sdiscuss/modules/identity/session"
	"github.com/flemzord/sdiscuss/modules/store/sqlite"
	"github.com/flemzord/sdiscuss/pkg/comment"
)

type harness struct {
	gw      *Gateway
	app     *core.AppContext
	db      *sqlite.DB
	handler http.Handler
}

func openDB(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.Open(context.Background(), sqlite.Config{Path: filepath.Join(t.TempDir(), "gw.db")})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// newHarness wires a gateway over a real SQLite store, the session identity
// driver and the given extensions.
func newHarness(t *testing.T, cfg Config, exts ...core.Module) *harness {
	t.Helper()
	return newHarnessOn(t, openDB(t), cfg, nil, exts...)
}

// newHarnessOn is newHarness over db. services are registered before the
// router is built.
func newHarnessOn(t *testing.T, db *sqlite.DB, cfg Config, services map[string]any, exts ...core.Module) *harness {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	app := core.NewAppContext(logger, t.TempDir(), nil)

	svc := pipeline.New(db, hooktest.NewDispatcher(t, exts...), nil, logger)
	mustRegister(t, app, pipeline.ServiceName, svc)
	policy := session.New(db, session.Config{}, logger)
	mustRegister(t, app, MiddlewareService,
		identity.NewMiddleware(policy, []string{identity.OpFetch, identity.OpView}, logger))

	for name, svc := range services {
		mustRegister(t, app, name, svc)
	}

	gw := &Gateway{config: cfg}
	if err := gw.Provision(app); err != nil {
		t.Fatal(err)
	}
	h, err := gw.Handler()
	if err != nil {
		t.Fatal(err)
	}
	return &harness{gw: gw, app: app, db: db, handler: h}
}

func mustRegister(t *testing.T, app *core.AppContext, name string, svc any) {
	t.Helper()
	if err := app.RegisterService(name, svc); err != nil {
		t.Fatal(err)
	}
}

// do sends a request, optionally carrying cookies from an earlier response.
func (h *harness) do(method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return h.serve(req)
}

func (h *harness) serve(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func decodeDoc(t *testing.T, rec *httptest.ResponseRecorder) comment.Document {
	t.Helper()
	var doc comment.Document
	dec := json.NewDecoder(rec.Body)
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return doc
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == "sdiscuss_session" {
			return c
		}
	}
	return nil
}
