// Package comment defines the records shared between the request pipeline,
// the storage layer, and extensions: threads, comments, identities, and the
// client-visible documents built from them.
package comment

import (
	"net/http"
	"time"
)

// TimeLayout is the timestamp format used both for storage and for
// serialized documents. It sorts lexically in chronological order.
const TimeLayout = "2006-01-02T15:04:05.000000Z"

// Action tags the kind of write a validator is asked to check.
type Action string

const (
	// ActionCreate is a brand new comment.
	ActionCreate Action = "create"
	// ActionEdit is an author edit of an existing comment.
	ActionEdit Action = "edit"
	// ActionDelete is a soft delete. Validators usually let it through.
	ActionDelete Action = "delete"
)

// Thread groups comments under an immutable client-defined identifier.
type Thread struct {
	ID       int64
	ClientID string
	Attrs    Attrs
}

// Comment is the raw stored comment. Required columns are typed; anything an
// extension wants to persist goes into Attrs.
type Comment struct {
	ID          int64
	ThreadID    int64
	ParentID    *int64
	VersionOfID *int64
	IdentityID  *int64
	Active      bool
	Created     time.Time
	Modified    time.Time
	Text        string
	Attrs       Attrs
}

// Deleted reports whether the comment carries the soft-delete marker.
func (c Comment) Deleted() bool {
	v, ok := c.Attrs["deleted"].(bool)
	return ok && v
}

// OwnedBy reports whether the comment was written by the given identity.
func (c Comment) OwnedBy(id *Identity) bool {
	return id != nil && c.IdentityID != nil && *c.IdentityID == id.ID
}

// Identity is the caller record resolved once per request.
type Identity struct {
	ID      int64
	Token   string
	Created time.Time
	Attrs   Attrs
}

// Request carries request-scoped facts that hooks may consult. It replaces
// any ambient "current request" lookup: everything a hook needs is passed in.
type Request struct {
	// Fields is the decoded JSON body. Extensions may read keys the core
	// ignores (author, email, website, ...).
	Fields map[string]any

	// RemoteAddr is the client address as seen by the HTTP layer.
	RemoteAddr string

	// Identity is nil for anonymous callers.
	Identity *Identity
}

// String returns the named field when it is a non-empty string.
func (r *Request) String(key string) (string, bool) {
	if r == nil || r.Fields == nil {
		return "", false
	}
	s, ok := r.Fields[key].(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// Entry pairs a raw comment with its serialized document.
type Entry struct {
	Raw Comment
	Doc Document
}

// Response is the create operation's reply before it is written to the wire.
// Post-response hooks may replace it or adjust its headers.
type Response struct {
	Status int
	Header http.Header
	Body   Document
}

// NewResponse returns a response with an initialized header map.
func NewResponse(status int, body Document) *Response {
	return &Response{
		Status: status,
		Header: make(http.Header),
		Body:   body,
	}
}
