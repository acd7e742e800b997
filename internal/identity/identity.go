// Package identity resolves the caller of each request through a single
// configured policy and makes the result available to the request pipeline.
package identity

import (
	"context"
	"net/http"

	"github.com/flemzord/sdiscuss/pkg/comment"
)

// ServiceName is the AppContext service an identity driver publishes.
const ServiceName = "identity"

// Policy is the identity store collaborator. Exactly one is active.
type Policy interface {
	// Identity resolves the caller. A nil identity with a nil error means
	// the caller is anonymous; an error means resolution itself failed.
	Identity(r *http.Request) (*comment.Identity, error)

	// Remember persists continuity for the identity (cookie, session...).
	Remember(w http.ResponseWriter, r *http.Request, id int64) error

	// Forget drops any continuity for the caller.
	Forget(w http.ResponseWriter, r *http.Request) error
}

type ctxKey struct{}

// WithIdentity returns ctx carrying id.
func WithIdentity(ctx context.Context, id *comment.Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity resolved for the request, or nil.
func FromContext(ctx context.Context) *comment.Identity {
	id, _ := ctx.Value(ctxKey{}).(*comment.Identity)
	return id
}

// Require returns the request identity or comment.ErrIdentityRequired.
func Require(ctx context.Context) (*comment.Identity, error) {
	if id := FromContext(ctx); id != nil {
		return id, nil
	}
	return nil, comment.ErrIdentityRequired
}

// Operation names passed to Middleware.Wrap and listed in exemptions.
const (
	OpFetch     = "fetch"
	OpView      = "view"
	OpCreate    = "create"
	OpEdit      = "edit"
	OpDelete    = "delete"
	OpExtension = "extension"
)

// Operations returns every operation name the gateway wraps.
func Operations() []string {
	return []string{OpFetch, OpView, OpCreate, OpEdit, OpDelete, OpExtension}
}
