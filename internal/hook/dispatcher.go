package hook

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/flemzord/sdiscuss/internal/store"
	"github.com/flemzord/sdiscuss/pkg/comment"
)

const tracerName = "github.com/flemzord/sdiscuss/internal/hook"

// Dispatcher runs the extensions of a loaded set. Every dispatch is
// synchronous, runs extensions in load order, and stops at the first
// error: there are no retries and no partial continuation.
type Dispatcher struct {
	set     *LoadedSet
	metrics *metrics
	tracer  trace.Tracer
}

// Option configures a Dispatcher.
type Option func(*dispatcherOptions)

type dispatcherOptions struct {
	reg    prometheus.Registerer
	tracer trace.Tracer
}

// WithRegisterer records per-hook metrics on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *dispatcherOptions) { o.reg = reg }
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(o *dispatcherOptions) { o.tracer = t }
}

// NewDispatcher returns a dispatcher over set. A nil set dispatches to
// nobody.
func NewDispatcher(set *LoadedSet, opts ...Option) (*Dispatcher, error) {
	var o dispatcherOptions
	for _, opt := range opts {
		opt(&o)
	}
	if set == nil {
		set = &LoadedSet{byKind: map[Kind][]Extension{}}
	}
	d := &Dispatcher{set: set, tracer: o.tracer}
	if d.tracer == nil {
		d.tracer = otel.Tracer(tracerName)
	}
	if o.reg != nil {
		m, err := newMetrics(o.reg)
		if err != nil {
			return nil, fmt.Errorf("registering hook metrics: %w", err)
		}
		d.metrics = m
	}
	return d, nil
}

// Set returns the loaded set the dispatcher runs.
func (d *Dispatcher) Set() *LoadedSet { return d.set }

// invoke runs one extension for one kind, converting panics and errors
// into the kind's error contract.
func (d *Dispatcher) invoke(ctx context.Context, kind Kind, ext Extension, call func(context.Context) error) (err error) {
	ctx, span := d.tracer.Start(ctx, "hook."+string(kind),
		trace.WithAttributes(attribute.String("extension", ext.Name)))
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err = &ExtensionFault{
				Extension: ext.Name,
				Kind:      kind,
				Err:       fmt.Errorf("panic: %v", r),
				Stack:     debug.Stack(),
			}
		}
		var fault *ExtensionFault
		isFault := errors.As(err, &fault)
		d.metrics.observe(kind, ext.Name, time.Since(start), isFault)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err := call(ctx); err != nil {
		return classify(kind, ext, err)
	}
	return nil
}

// classify maps an extension error onto the error taxonomy: validators
// reject records, every other kind faults. A validator error that already
// carries a client sentinel keeps it.
func classify(kind Kind, ext Extension, err error) error {
	if kind == KindValidateComment {
		if comment.IsClientError(err) {
			return err
		}
		return fmt.Errorf("%w: %w", comment.ErrRecordInvalid, err)
	}
	var fault *ExtensionFault
	if errors.As(err, &fault) {
		return err
	}
	return &ExtensionFault{Extension: ext.Name, Kind: kind, Err: err}
}

// Collect calls every extension implementing kind with the same arguments
// and returns their results in load order.
func Collect[R any](ctx context.Context, d *Dispatcher, kind Kind, call func(context.Context, Extension) (R, error)) ([]R, error) {
	exts := d.set.For(kind)
	out := make([]R, 0, len(exts))
	for _, ext := range exts {
		var r R
		err := d.invoke(ctx, kind, ext, func(ctx context.Context) error {
			var err error
			r, err = call(ctx, ext)
			return err
		})
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// Chain feeds in to the first extension implementing kind, then each
// output to the next one, and returns the last output. With no
// extensions, in is returned unchanged.
func Chain[T any](ctx context.Context, d *Dispatcher, kind Kind, in T, call func(context.Context, Extension, T) (T, error)) (T, error) {
	cur := in
	for _, ext := range d.set.For(kind) {
		err := d.invoke(ctx, kind, ext, func(ctx context.Context) error {
			next, err := call(ctx, ext, cur)
			if err != nil {
				return err
			}
			cur = next
			return nil
		})
		if err != nil {
			var zero T
			return zero, err
		}
	}
	return cur, nil
}

// And conjoins the predicates of every extension implementing kind. With
// no extensions the result is the always-true predicate.
func And(ctx context.Context, d *Dispatcher, kind Kind, call func(context.Context, Extension) (store.Predicate, error)) (store.Predicate, error) {
	preds, err := Collect(ctx, d, kind, call)
	if err != nil {
		return store.Predicate{}, err
	}
	return store.And(preds...), nil
}

// Fold wraps init in a Ref, lets every extension implementing kind replace
// the held value in turn, and returns the final value.
func Fold[T any](ctx context.Context, d *Dispatcher, kind Kind, init T, call func(context.Context, Extension, *Ref[T]) error) (T, error) {
	ref := NewRef(init)
	for _, ext := range d.set.For(kind) {
		if err := d.invoke(ctx, kind, ext, func(ctx context.Context) error {
			return call(ctx, ext, ref)
		}); err != nil {
			var zero T
			return zero, err
		}
	}
	return ref.Get(), nil
}

// ValidateComment runs the validator chain for action.
func (d *Dispatcher) ValidateComment(ctx context.Context, c comment.Comment, req *comment.Request, action comment.Action) (comment.Comment, error) {
	return Chain(ctx, d, KindValidateComment, c, func(ctx context.Context, ext Extension, cur comment.Comment) (comment.Comment, error) {
		return ext.Impl.(CommentValidator).ValidateComment(ctx, cur, req, action)
	})
}

// RewriteInsert folds the insert statement through every rewriter.
func (d *Dispatcher) RewriteInsert(ctx context.Context, stmt store.Statement, c comment.Comment) (store.Statement, error) {
	return Fold(ctx, d, KindRewriteInsert, stmt, func(ctx context.Context, ext Extension, ref *Ref[store.Statement]) error {
		return ext.Impl.(InsertRewriter).RewriteInsert(ctx, ref, c)
	})
}

// RewriteUpdate folds the update statement through every rewriter.
func (d *Dispatcher) RewriteUpdate(ctx context.Context, stmt store.Statement, old, edit comment.Comment) (store.Statement, error) {
	return Fold(ctx, d, KindRewriteUpdate, stmt, func(ctx context.Context, ext Extension, ref *Ref[store.Statement]) error {
		return ext.Impl.(UpdateRewriter).RewriteUpdate(ctx, ref, old, edit)
	})
}

// AfterInsert notifies every insert observer.
func (d *Dispatcher) AfterInsert(ctx context.Context, c comment.Comment) error {
	_, err := Collect(ctx, d, KindAfterInsert, func(ctx context.Context, ext Extension) (struct{}, error) {
		return struct{}{}, ext.Impl.(InsertObserver).AfterInsert(ctx, c)
	})
	return err
}

// AfterUpdate notifies every update observer.
func (d *Dispatcher) AfterUpdate(ctx context.Context, old, updated comment.Comment) error {
	_, err := Collect(ctx, d, KindAfterUpdate, func(ctx context.Context, ext Extension) (struct{}, error) {
		return struct{}{}, ext.Impl.(UpdateObserver).AfterUpdate(ctx, old, updated)
	})
	return err
}

// CommentFilter returns the conjunction of every visibility predicate.
func (d *Dispatcher) CommentFilter(ctx context.Context) (store.Predicate, error) {
	return And(ctx, d, KindCommentFilter, func(ctx context.Context, ext Extension) (store.Predicate, error) {
		return ext.Impl.(FetchFilter).CommentFilter(ctx)
	})
}

// EnrichComment lets every comment enricher edit out.
func (d *Dispatcher) EnrichComment(ctx context.Context, raw comment.Comment, out comment.Document) error {
	_, err := Collect(ctx, d, KindEnrichComment, func(ctx context.Context, ext Extension) (struct{}, error) {
		return struct{}{}, ext.Impl.(CommentEnricher).EnrichComment(ctx, raw, out)
	})
	return err
}

// EnrichThread lets every thread enricher edit out.
func (d *Dispatcher) EnrichThread(ctx context.Context, raw comment.Thread, entries []comment.Entry, out comment.Document) error {
	_, err := Collect(ctx, d, KindEnrichThread, func(ctx context.Context, ext Extension) (struct{}, error) {
		return struct{}{}, ext.Impl.(ThreadEnricher).EnrichThread(ctx, raw, entries, out)
	})
	return err
}

// NewCommentResponse chains the create response through every response
// hook. A hook returning nil keeps the current response.
func (d *Dispatcher) NewCommentResponse(ctx context.Context, resp *comment.Response, raw comment.Comment, out comment.Document) (*comment.Response, error) {
	return Chain(ctx, d, KindNewCommentResponse, resp, func(ctx context.Context, ext Extension, cur *comment.Response) (*comment.Response, error) {
		next, err := ext.Impl.(ResponseHook).OnNewCommentResponse(ctx, cur, raw, out)
		if err != nil {
			return nil, err
		}
		if next == nil {
			return cur, nil
		}
		return next, nil
	})
}

// MountRoutes lets every route mounter register its handlers on r.
func (d *Dispatcher) MountRoutes(r chi.Router) error {
	_, err := Collect(context.Background(), d, KindMountRoutes, func(_ context.Context, ext Extension) (struct{}, error) {
		ext.Impl.(RouteMounter).MountRoutes(r)
		return struct{}{}, nil
	})
	return err
}
