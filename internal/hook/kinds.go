// Package hook implements the capability system extensions plug into:
// the fixed catalog of hook kinds, the loaded set that indexes extensions
// by kind, and the dispatcher that runs them and combines their results.
package hook

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/flemzord/sdiscuss/internal/store"
	"github.com/flemzord/sdiscuss/pkg/comment"
)

// Kind names an extension point.
type Kind string

// The hook kinds. The string values are what ModuleInfo.Capabilities lists.
const (
	KindValidateComment    Kind = "validate_comment"
	KindRewriteInsert      Kind = "rewrite_insert"
	KindRewriteUpdate      Kind = "rewrite_update"
	KindAfterInsert        Kind = "after_insert"
	KindAfterUpdate        Kind = "after_update"
	KindCommentFilter      Kind = "comment_filter"
	KindEnrichComment      Kind = "enrich_comment"
	KindEnrichThread       Kind = "enrich_thread"
	KindNewCommentResponse Kind = "new_comment_response"
	KindMountRoutes        Kind = "mount_routes"
)

// Rule is how the results of several implementations of a kind combine.
type Rule int

const (
	// RuleCollect calls every implementation with the same arguments.
	RuleCollect Rule = iota
	// RuleChain feeds each implementation the previous one's output.
	RuleChain
	// RuleAnd conjoins the predicates every implementation returns.
	RuleAnd
	// RuleFold lets each implementation replace a shared statement.
	RuleFold
)

func (r Rule) String() string {
	switch r {
	case RuleCollect:
		return "collect"
	case RuleChain:
		return "chain"
	case RuleAnd:
		return "and"
	case RuleFold:
		return "fold"
	default:
		return "unknown"
	}
}

// CommentValidator validates and normalizes a record before it is written.
// Returning an error rejects the record; the error reaches the client.
type CommentValidator interface {
	ValidateComment(ctx context.Context, c comment.Comment, req *comment.Request, action comment.Action) (comment.Comment, error)
}

// InsertRewriter may replace the pending insert statement.
type InsertRewriter interface {
	RewriteInsert(ctx context.Context, ref *Ref[store.Statement], c comment.Comment) error
}

// UpdateRewriter may replace the pending update statement. edit is the
// validated record about to be written; old is what is stored now.
type UpdateRewriter interface {
	RewriteUpdate(ctx context.Context, ref *Ref[store.Statement], old, edit comment.Comment) error
}

// InsertObserver runs after a comment has been inserted.
type InsertObserver interface {
	AfterInsert(ctx context.Context, c comment.Comment) error
}

// UpdateObserver runs after a comment has been updated.
type UpdateObserver interface {
	AfterUpdate(ctx context.Context, old, updated comment.Comment) error
}

// FetchFilter contributes a visibility predicate to every comment read.
// A zero predicate means "no restriction".
type FetchFilter interface {
	CommentFilter(ctx context.Context) (store.Predicate, error)
}

// CommentEnricher adds or transforms client-visible comment fields.
type CommentEnricher interface {
	EnrichComment(ctx context.Context, raw comment.Comment, out comment.Document) error
}

// ThreadEnricher adds or transforms fields of a serialized thread.
type ThreadEnricher interface {
	EnrichThread(ctx context.Context, raw comment.Thread, entries []comment.Entry, out comment.Document) error
}

// ResponseHook may adjust or replace the response to a newly created comment.
type ResponseHook interface {
	OnNewCommentResponse(ctx context.Context, resp *comment.Response, raw comment.Comment, out comment.Document) (*comment.Response, error)
}

// RouteMounter adds HTTP routes. It runs once, when the gateway starts.
type RouteMounter interface {
	MountRoutes(r chi.Router)
}

// ThreadKey returns the {thread} route parameter unescaped. Keys are
// usually paths, so clients percent-encode them into a single segment.
func ThreadKey(r *http.Request) (string, error) {
	key, err := url.PathUnescape(chi.URLParam(r, "thread"))
	if err != nil {
		return "", comment.Invalid("thread key: %v", err)
	}
	return key, nil
}

type kindSpec struct {
	rule       Rule
	implements func(any) bool
}

func is[T any](v any) bool {
	_, ok := v.(T)
	return ok
}

// kindOrder is the catalog in declaration order.
var kindOrder = []Kind{
	KindValidateComment,
	KindRewriteInsert,
	KindRewriteUpdate,
	KindAfterInsert,
	KindAfterUpdate,
	KindCommentFilter,
	KindEnrichComment,
	KindEnrichThread,
	KindNewCommentResponse,
	KindMountRoutes,
}

var kinds = map[Kind]kindSpec{
	KindValidateComment:    {RuleChain, is[CommentValidator]},
	KindRewriteInsert:      {RuleFold, is[InsertRewriter]},
	KindRewriteUpdate:      {RuleFold, is[UpdateRewriter]},
	KindAfterInsert:        {RuleCollect, is[InsertObserver]},
	KindAfterUpdate:        {RuleCollect, is[UpdateObserver]},
	KindCommentFilter:      {RuleAnd, is[FetchFilter]},
	KindEnrichComment:      {RuleCollect, is[CommentEnricher]},
	KindEnrichThread:       {RuleCollect, is[ThreadEnricher]},
	KindNewCommentResponse: {RuleChain, is[ResponseHook]},
	KindMountRoutes:        {RuleCollect, is[RouteMounter]},
}

// Kinds returns every hook kind in catalog order.
func Kinds() []Kind {
	out := make([]Kind, len(kindOrder))
	copy(out, kindOrder)
	return out
}

// Valid reports whether k is in the catalog.
func (k Kind) Valid() bool {
	_, ok := kinds[k]
	return ok
}

// Rule returns the combination rule of k.
func (k Kind) Rule() Rule {
	return kinds[k].rule
}

// Implements reports whether v has the method set k requires.
func Implements(v any, k Kind) bool {
	spec, ok := kinds[k]
	return ok && spec.implements(v)
}

// ImplementedKinds returns the kinds v implements, in catalog order.
func ImplementedKinds(v any) []Kind {
	var out []Kind
	for _, k := range kindOrder {
		if kinds[k].implements(v) {
			out = append(out, k)
		}
	}
	return out
}

// Capabilities returns kinds as the string list ModuleInfo.Capabilities
// expects.
func Capabilities(kinds ...Kind) []string {
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return out
}
