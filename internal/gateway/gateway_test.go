package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/flemzord/sdiscuss/internal/core"
	"github.com/flemzord/sdiscuss/internal/hook/hooktest"
	"github.com/flemzord/sdiscuss/internal/identity"
	"github.com/flemzord/sdiscuss/pkg/comment"
)

func TestCommentLifecycle(t *testing.T) {
	t.Parallel()

	h := newHarness(t, Config{})

	rec := h.do(http.MethodPost, "/threads/post-1/comments", `{"text":"hello <b>world</b>"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status = %d body = %s", rec.Code, rec.Body)
	}
	owner := sessionCookie(rec)
	if owner == nil {
		t.Fatal("create did not set a session cookie")
	}
	id := decodeDoc(t, rec)["id"].(json.Number).String()

	rec = h.do(http.MethodGet, "/threads/post-1/comments", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("fetch: status = %d", rec.Code)
	}
	if sessionCookie(rec) != nil {
		t.Error("exempt fetch resolved an identity")
	}
	doc := decodeDoc(t, rec)
	if doc["client_id"] != "post-1" || len(doc["comments"].([]any)) != 1 {
		t.Fatalf("fetch doc = %v", doc)
	}

	rec = h.do(http.MethodPut, "/comments/"+id, `{"text":"edited"}`, owner)
	if rec.Code != http.StatusOK {
		t.Fatalf("edit: status = %d body = %s", rec.Code, rec.Body)
	}
	if got := decodeDoc(t, rec)["text"]; got != "edited" {
		t.Errorf("edited text = %v", got)
	}

	// A caller without the owner's cookie gets a fresh identity.
	if rec := h.do(http.MethodPut, "/comments/"+id, `{"text":"hijack"}`); rec.Code != http.StatusForbidden {
		t.Errorf("stranger edit: status = %d", rec.Code)
	}

	if rec := h.do(http.MethodDelete, "/comments/"+id, "", owner); rec.Code != http.StatusOK {
		t.Fatalf("delete: status = %d", rec.Code)
	}
	if rec := h.do(http.MethodGet, "/comments/"+id, ""); rec.Code != http.StatusNotFound {
		t.Errorf("view deleted: status = %d", rec.Code)
	}
}

func TestErrorMapping(t *testing.T) {
	t.Parallel()

	faulty := &hooktest.InsertObserver{Base: hooktest.Base{Name: "faulty"}, Err: errors.New("boom")}
	h := newHarness(t, Config{MaxBodyBytes: 64}, faulty)

	tests := []struct {
		name, method, path, body string
		want                     int
	}{
		{"empty text", http.MethodPost, "/threads/t/comments", `{"text":""}`, http.StatusBadRequest},
		{"not json", http.MethodPost, "/threads/t/comments", `text=hi`, http.StatusBadRequest},
		{"too large", http.MethodPost, "/threads/t/comments", `{"text":"` + strings.Repeat("x", 100) + `"}`, http.StatusBadRequest},
		{"bad id", http.MethodGet, "/comments/abc", "", http.StatusNotFound},
		{"missing", http.MethodGet, "/comments/999", "", http.StatusNotFound},
		{"extension fault", http.MethodPost, "/threads/t/comments", `{"text":"fine"}`, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		rec := h.do(tt.method, tt.path, tt.body)
		if rec.Code != tt.want {
			t.Errorf("%s: status = %d, want %d (%s)", tt.name, rec.Code, tt.want, rec.Body)
		}
		if rec.Code == http.StatusInternalServerError {
			if msg := decodeDoc(t, rec)["error"]; msg != http.StatusText(http.StatusInternalServerError) {
				t.Errorf("%s: fault details leaked: %v", tt.name, msg)
			}
		}
	}
}

func TestCreateResponseHeaders(t *testing.T) {
	t.Parallel()

	hook := &hooktest.ResponseHook{
		Base: hooktest.Base{Name: "header"},
		Fn: func(_ context.Context, resp *comment.Response, _ comment.Comment, _ comment.Document) (*comment.Response, error) {
			resp.Header.Set("X-Comment", "yes")
			return resp, nil
		},
	}
	h := newHarness(t, Config{}, hook)

	rec := h.do(http.MethodPost, "/threads/t/comments", `{"text":"hi"}`)
	if rec.Code != http.StatusCreated || rec.Header().Get("X-Comment") != "yes" {
		t.Errorf("status = %d header = %q", rec.Code, rec.Header().Get("X-Comment"))
	}
}

func TestExtensionRoutesCarryIdentity(t *testing.T) {
	t.Parallel()

	mounter := &hooktest.RouteMounter{
		Base: hooktest.Base{Name: "whoami"},
		Fn: func(r chi.Router) {
			r.Get("/whoami", func(w http.ResponseWriter, r *http.Request) {
				if identity.FromContext(r.Context()) == nil {
					w.WriteHeader(http.StatusUnauthorized)
					return
				}
				w.WriteHeader(http.StatusNoContent)
			})
		},
	}
	h := newHarness(t, Config{}, mounter)

	if rec := h.do(http.MethodGet, "/whoami", ""); rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want identity attached", rec.Code)
	}
}

func TestHandler_RequiresPipeline(t *testing.T) {
	t.Parallel()

	gw := &Gateway{}
	if err := gw.Provision(core.NewAppContext(nil, t.TempDir(), nil)); err != nil {
		t.Fatal(err)
	}
	if _, err := gw.Handler(); err == nil {
		t.Fatal("expected error without a pipeline service")
	}
}

func TestValidate_BindAddress(t *testing.T) {
	t.Parallel()

	gw := &Gateway{config: Config{Bind: "not an address"}}
	if err := gw.Validate(); err == nil {
		t.Error("invalid bind accepted")
	}
	gw.config.Bind = "127.0.0.1:0"
	if err := gw.Validate(); err != nil {
		t.Error(err)
	}
}
