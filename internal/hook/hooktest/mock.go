// Package hooktest provides test doubles for the hook package: one small
// fake per hook kind, so each fake implements exactly the capability it
// stands for.
package hooktest

import (
	"context"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/flemzord/sdiscuss/internal/core"
	"github.com/flemzord/sdiscuss/internal/hook"
	"github.com/flemzord/sdiscuss/internal/store"
	"github.com/flemzord/sdiscuss/pkg/comment"
)

// Base gives a fake its extension name.
type Base struct {
	Name string
}

// ModuleInfo implements core.Module.
func (b Base) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  core.ExtensionID(b.Name),
		New: func() core.Module { return b },
	}
}

// Validator is a validate_comment fake.
type Validator struct {
	Base
	Fn func(ctx context.Context, c comment.Comment, req *comment.Request, action comment.Action) (comment.Comment, error)
}

// ValidateComment implements hook.CommentValidator.
func (v *Validator) ValidateComment(ctx context.Context, c comment.Comment, req *comment.Request, action comment.Action) (comment.Comment, error) {
	if v.Fn == nil {
		return c, nil
	}
	return v.Fn(ctx, c, req, action)
}

// InsertRewriter is a rewrite_insert fake.
type InsertRewriter struct {
	Base
	Fn func(ctx context.Context, ref *hook.Ref[store.Statement], c comment.Comment) error
}

// RewriteInsert implements hook.InsertRewriter.
func (r *InsertRewriter) RewriteInsert(ctx context.Context, ref *hook.Ref[store.Statement], c comment.Comment) error {
	if r.Fn == nil {
		return nil
	}
	return r.Fn(ctx, ref, c)
}

// UpdateRewriter is a rewrite_update fake.
type UpdateRewriter struct {
	Base
	Fn func(ctx context.Context, ref *hook.Ref[store.Statement], old, edit comment.Comment) error
}

// RewriteUpdate implements hook.UpdateRewriter.
func (r *UpdateRewriter) RewriteUpdate(ctx context.Context, ref *hook.Ref[store.Statement], old, edit comment.Comment) error {
	if r.Fn == nil {
		return nil
	}
	return r.Fn(ctx, ref, old, edit)
}

// InsertObserver is an after_insert fake that records what it saw.
type InsertObserver struct {
	Base
	Err error

	mu   sync.Mutex
	Seen []comment.Comment
}

// AfterInsert implements hook.InsertObserver.
func (o *InsertObserver) AfterInsert(_ context.Context, c comment.Comment) error {
	o.mu.Lock()
	o.Seen = append(o.Seen, c)
	o.mu.Unlock()
	return o.Err
}

// Calls returns the number of AfterInsert calls.
func (o *InsertObserver) Calls() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.Seen)
}

// UpdateObserver is an after_update fake that records what it saw.
type UpdateObserver struct {
	Base
	Err error

	mu   sync.Mutex
	Seen [][2]comment.Comment
}

// AfterUpdate implements hook.UpdateObserver.
func (o *UpdateObserver) AfterUpdate(_ context.Context, old, updated comment.Comment) error {
	o.mu.Lock()
	o.Seen = append(o.Seen, [2]comment.Comment{old, updated})
	o.mu.Unlock()
	return o.Err
}

// Filter is a comment_filter fake returning a fixed predicate.
type Filter struct {
	Base
	Pred store.Predicate
	Err  error
}

// CommentFilter implements hook.FetchFilter.
func (f *Filter) CommentFilter(context.Context) (store.Predicate, error) {
	return f.Pred, f.Err
}

// CommentEnricher is an enrich_comment fake.
type CommentEnricher struct {
	Base
	Fn func(ctx context.Context, raw comment.Comment, out comment.Document) error
}

// EnrichComment implements hook.CommentEnricher.
func (e *CommentEnricher) EnrichComment(ctx context.Context, raw comment.Comment, out comment.Document) error {
	if e.Fn == nil {
		return nil
	}
	return e.Fn(ctx, raw, out)
}

// ThreadEnricher is an enrich_thread fake.
type ThreadEnricher struct {
	Base
	Fn func(ctx context.Context, raw comment.Thread, entries []comment.Entry, out comment.Document) error
}

// EnrichThread implements hook.ThreadEnricher.
func (e *ThreadEnricher) EnrichThread(ctx context.Context, raw comment.Thread, entries []comment.Entry, out comment.Document) error {
	if e.Fn == nil {
		return nil
	}
	return e.Fn(ctx, raw, entries, out)
}

// ResponseHook is a new_comment_response fake.
type ResponseHook struct {
	Base
	Fn func(ctx context.Context, resp *comment.Response, raw comment.Comment, out comment.Document) (*comment.Response, error)
}

// OnNewCommentResponse implements hook.ResponseHook.
func (h *ResponseHook) OnNewCommentResponse(ctx context.Context, resp *comment.Response, raw comment.Comment, out comment.Document) (*comment.Response, error) {
	if h.Fn == nil {
		return resp, nil
	}
	return h.Fn(ctx, resp, raw, out)
}

// RouteMounter is a mount_routes fake.
type RouteMounter struct {
	Base
	Fn func(r chi.Router)
}

// MountRoutes implements hook.RouteMounter.
func (m *RouteMounter) MountRoutes(r chi.Router) {
	if m.Fn != nil {
		m.Fn(r)
	}
}

// Loaded wraps fakes as core.Loaded entries, in the given order.
func Loaded(exts ...core.Module) []core.Loaded {
	out := make([]core.Loaded, len(exts))
	for i, m := range exts {
		info := m.ModuleInfo()
		out[i] = core.Loaded{Name: info.ID.Name(), Info: info, Module: m}
	}
	return out
}

// NewDispatcher builds a dispatcher over the fakes, failing the test on
// capability errors.
func NewDispatcher(t testing.TB, exts ...core.Module) *hook.Dispatcher {
	t.Helper()
	set, err := hook.NewLoadedSet(Loaded(exts...))
	if err != nil {
		t.Fatalf("NewLoadedSet: %v", err)
	}
	d, err := hook.NewDispatcher(set)
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}
	return d
}
