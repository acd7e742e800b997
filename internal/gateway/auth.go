package gateway

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

var (
	errNoCredentials  = errors.New("missing authorization header")
	errBadCredentials = errors.New("invalid credentials")
)

// check accepts r when it carries the configured bearer token or basic
// credentials. Comparisons are constant time.
func (a AuthConfig) check(r *http.Request) error {
	header := r.Header.Get("Authorization")
	if header == "" {
		return errNoCredentials
	}
	if a.BearerToken != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok && equal(token, a.BearerToken) {
			return nil
		}
	}
	if a.BasicUser != "" && a.BasicPass != "" {
		if user, pass, ok := r.BasicAuth(); ok && equal(user, a.BasicUser) && equal(pass, a.BasicPass) {
			return nil
		}
	}
	return errBadCredentials
}

// authMiddleware guards the admin routes with cfg. Rejections are logged
// at warn with the caller address; the credentials never are.
func authMiddleware(cfg AuthConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := cfg.check(r); err != nil {
				if logger != nil {
					logger.Warn("admin auth failed",
						"detail", err.Error(),
						"remote_addr", r.RemoteAddr,
						"method", r.Method,
						"path", r.URL.Path,
					)
				}
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
