// Package pipeline implements the comment operations (create, fetch, view,
// edit, delete). Each operation is a fixed sequence of phases; every point
// where behavior varies is a hook dispatch, never a special case.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/flemzord/sdiscuss/internal/hook"
	"github.com/flemzord/sdiscuss/internal/render"
	"github.com/flemzord/sdiscuss/internal/store"
	"github.com/flemzord/sdiscuss/pkg/comment"
)

// ServiceName is the AppContext service holding the *Service.
const ServiceName = "pipeline"

const tracerName = "github.com/flemzord/sdiscuss/internal/pipeline"

// Service runs comment operations against a store through the loaded
// extensions.
type Service struct {
	Store      store.Store
	Dispatcher *hook.Dispatcher
	Renderer   render.Renderer
	Clock      func() time.Time
	Logger     *slog.Logger

	tracer trace.Tracer
}

// New returns a service. A nil renderer escapes text; a nil dispatcher
// runs no extensions.
func New(st store.Store, d *hook.Dispatcher, r render.Renderer, logger *slog.Logger) *Service {
	if r == nil {
		r = render.Escaping{}
	}
	if d == nil {
		d, _ = hook.NewDispatcher(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		Store:      st,
		Dispatcher: d,
		Renderer:   r,
		Clock:      time.Now,
		Logger:     logger,
		tracer:     otel.Tracer(tracerName),
	}
}

func (s *Service) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock().UTC()
}

// span starts an operation span and returns a func ending it with err.
func (s *Service) span(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(*error)) {
	tracer := s.tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	ctx, span := tracer.Start(ctx, "pipeline."+op, trace.WithAttributes(attrs...))
	return ctx, func(errp *error) {
		if err := *errp; err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

// visible is the base predicate every comment read applies, AND-combined
// with the extensions' filters.
func (s *Service) visible(ctx context.Context, base store.Predicate) (store.Predicate, error) {
	filter, err := s.Dispatcher.CommentFilter(ctx)
	if err != nil {
		return store.Predicate{}, err
	}
	return store.And(base, store.Eq("active", true), filter), nil
}

// existing loads a comment by id through the visibility filters. A row
// hidden by any filter is indistinguishable from a missing one.
func (s *Service) existing(ctx context.Context, id int64) (comment.Comment, error) {
	where, err := s.visible(ctx, store.Eq("id", id))
	if err != nil {
		return comment.Comment{}, err
	}
	rows, err := s.Store.Select(ctx, store.Query{Table: store.TableComment, Where: where, Limit: 1})
	if err != nil {
		return comment.Comment{}, fmt.Errorf("loading comment %d: %w", id, err)
	}
	if len(rows) == 0 {
		return comment.Comment{}, comment.NotFound("comment", id)
	}
	return comment.CommentFromRow(rows[0])
}

// findThread returns the thread for key, or ok=false when none exists.
func (s *Service) findThread(ctx context.Context, key string) (comment.Thread, bool, error) {
	rows, err := s.Store.Select(ctx, store.Query{
		Table: store.TableThread,
		Where: store.Eq("client_id", key),
		Limit: 1,
	})
	if err != nil {
		return comment.Thread{}, false, fmt.Errorf("loading thread %q: %w", key, err)
	}
	if len(rows) == 0 {
		return comment.Thread{}, false, nil
	}
	t, err := comment.ThreadFromRow(rows[0])
	return t, err == nil, err
}

// resolveThread returns the thread for key, creating it on first use. A
// concurrent creator winning the unique constraint is not an error.
func (s *Service) resolveThread(ctx context.Context, key string) (comment.Thread, error) {
	if t, ok, err := s.findThread(ctx, key); err != nil || ok {
		return t, err
	}

	row, err := s.Store.Insert(ctx, store.NewStatement(store.TableThread, map[string]any{"client_id": key}))
	switch {
	case err == nil:
		return comment.ThreadFromRow(row)
	case errors.Is(err, store.ErrConflict):
		t, ok, err := s.findThread(ctx, key)
		if err == nil && !ok {
			err = fmt.Errorf("thread %q vanished after conflict", key)
		}
		return t, err
	default:
		return comment.Thread{}, fmt.Errorf("creating thread %q: %w", key, err)
	}
}
