// Package logging holds the process log handler. Every record passes
// through a Redactor so bearer tokens, session cookies and commenter
// email addresses never reach the log sink.
package logging

import (
	"regexp"
	"strings"
	"sync"
)

// ServiceName is the AppContext key of the process Redactor.
const ServiceName = "redactor"

// Placeholder replaces every redacted value.
const Placeholder = "[redacted]"

// Redactor masks sensitive substrings. Modules add what they know to be
// secret while they provision. All methods are safe for concurrent use.
type Redactor struct {
	mu       sync.RWMutex
	patterns []pattern
	literals []string
}

// pattern replaces its match with repl, which may keep a prefix group.
type pattern struct {
	re   *regexp.Regexp
	repl string
}

// NewRedactor returns a redactor masking bearer credentials and email
// addresses.
func NewRedactor() *Redactor {
	return &Redactor{patterns: []pattern{
		{regexp.MustCompile(`(?i)(bearer\s+)[A-Za-z0-9\-._~+/]+=*`), "${1}" + Placeholder},
		{regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`), Placeholder},
	}}
}

// AddCookie masks the value of the named cookie in header dumps.
func (r *Redactor) AddCookie(name string) {
	if name == "" {
		return
	}
	p := pattern{
		re:   regexp.MustCompile(`(` + regexp.QuoteMeta(name) + `=)[^;\s"]+`),
		repl: "${1}" + Placeholder,
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patterns = append(r.patterns, p)
}

// AddLiteral masks secret wherever it appears. Empty strings are ignored.
func (r *Redactor) AddLiteral(secret string) {
	if secret == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.literals = append(r.literals, secret)
}

// Redact returns s with every known secret masked.
func (r *Redactor) Redact(s string) string {
	if s == "" {
		return s
	}

	r.mu.RLock()
	patterns := r.patterns
	literals := r.literals
	r.mu.RUnlock()

	for _, p := range patterns {
		s = p.re.ReplaceAllString(s, p.repl)
	}
	for _, lit := range literals {
		s = strings.ReplaceAll(s, lit, Placeholder)
	}
	return s
}
