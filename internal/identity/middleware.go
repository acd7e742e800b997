package identity

import (
	"log/slog"
	"net/http"
	"slices"
)

// Middleware runs the active policy before every non-exempt operation.
type Middleware struct {
	Policy Policy

	// ExemptOps names operations that bypass identity resolution.
	ExemptOps []string

	// ExemptMethods lists HTTP methods that always bypass it.
	// Defaults to OPTIONS when nil.
	ExemptMethods []string

	Logger *slog.Logger
}

// NewMiddleware returns a middleware for policy with the given exemptions.
func NewMiddleware(policy Policy, exemptOps []string, logger *slog.Logger) *Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &Middleware{
		Policy:    policy,
		ExemptOps: exemptOps,
		Logger:    logger,
	}
}

// Exempt reports whether op (or method) skips identity resolution.
func (m *Middleware) Exempt(op, method string) bool {
	methods := m.ExemptMethods
	if methods == nil {
		methods = []string{http.MethodOptions}
	}
	return slices.Contains(m.ExemptOps, op) || slices.Contains(methods, method)
}

// Wrap returns next behind identity resolution for the named operation.
//
// A resolved identity is attached to the request context and remembered.
// No identity leaves the request anonymous. A resolution error fails the
// request with 500: a broken identity store is never treated as anonymous.
func (m *Middleware) Wrap(op string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Policy == nil || m.Exempt(op, r.Method) {
			next.ServeHTTP(w, r)
			return
		}

		id, err := m.Policy.Identity(r)
		if err != nil {
			m.Logger.Error("identity resolution failed", "op", op, "error", err)
			http.Error(w, "identity resolution failed", http.StatusInternalServerError)
			return
		}
		if id != nil {
			r = r.WithContext(WithIdentity(r.Context(), id))
			if err := m.Policy.Remember(w, r, id.ID); err != nil {
				m.Logger.Error("identity remember failed", "op", op, "identity", id.ID, "error", err)
				http.Error(w, "identity resolution failed", http.StatusInternalServerError)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
