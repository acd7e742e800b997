package gateway

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddleware(t *testing.T) {
	t.Parallel()

	both := AuthConfig{BearerToken: "secret-token", BasicUser: "admin", BasicPass: "pass123"}
	tests := []struct {
		name  string
		cfg   AuthConfig
		setup func(*http.Request)
		want  int
	}{
		{"valid bearer", both, func(r *http.Request) { r.Header.Set("Authorization", "Bearer secret-token") }, http.StatusOK},
		{"wrong bearer", both, func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, http.StatusUnauthorized},
		{"valid basic", both, func(r *http.Request) { r.SetBasicAuth("admin", "pass123") }, http.StatusOK},
		{"wrong basic", both, func(r *http.Request) { r.SetBasicAuth("admin", "nope") }, http.StatusUnauthorized},
		{"missing header", both, func(*http.Request) {}, http.StatusUnauthorized},
		{"basic when only bearer", AuthConfig{BearerToken: "t"}, func(r *http.Request) { r.SetBasicAuth("admin", "t") }, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodGet, "/api/extensions", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()
			authMiddleware(tt.cfg, nil)(okHandler()).ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestAuthConfig_IsConfigured(t *testing.T) {
	t.Parallel()

	if (AuthConfig{}).IsConfigured() {
		t.Error("empty config reported configured")
	}
	if (AuthConfig{BasicUser: "admin"}).IsConfigured() {
		t.Error("user without password reported configured")
	}
	if !(AuthConfig{BearerToken: "x"}).IsConfigured() {
		t.Error("bearer token not recognized")
	}
}
