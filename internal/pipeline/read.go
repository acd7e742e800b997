package pipeline

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/flemzord/sdiscuss/internal/store"
	"github.com/flemzord/sdiscuss/pkg/comment"
)

// Fetch returns the thread document for threadKey with every visible
// comment, oldest first. An unknown thread yields an empty document.
func (s *Service) Fetch(ctx context.Context, threadKey string) (doc comment.Document, err error) {
	ctx, end := s.span(ctx, "fetch", attribute.String("thread", threadKey))
	defer end(&err)

	thread, known, err := s.findThread(ctx, threadKey)
	if err != nil {
		return nil, err
	}
	if !known {
		thread = comment.Thread{ClientID: threadKey, Attrs: comment.Attrs{}}
	}

	var entries []comment.Entry
	if known {
		entries, err = s.entries(ctx, thread)
		if err != nil {
			return nil, err
		}
	}

	docs := make([]comment.Document, len(entries))
	for i, e := range entries {
		docs[i] = e.Doc
	}
	doc = threadDocument(thread, docs)

	if err := s.Dispatcher.EnrichThread(ctx, thread, entries, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *Service) entries(ctx context.Context, thread comment.Thread) ([]comment.Entry, error) {
	where, err := s.visible(ctx, store.Eq("thread_id", thread.ID))
	if err != nil {
		return nil, err
	}
	rows, err := s.Store.Select(ctx, store.Query{
		Table:   store.TableComment,
		Where:   where,
		OrderBy: []string{"created", "id"},
	})
	if err != nil {
		return nil, fmt.Errorf("loading comments of thread %d: %w", thread.ID, err)
	}

	entries := make([]comment.Entry, 0, len(rows))
	for _, row := range rows {
		raw, err := comment.CommentFromRow(row)
		if err != nil {
			return nil, err
		}
		doc, err := s.Serialize(ctx, raw)
		if err != nil {
			return nil, err
		}
		entries = append(entries, comment.Entry{Raw: raw, Doc: doc})
	}
	return entries, nil
}

// View returns one visible comment.
func (s *Service) View(ctx context.Context, id int64) (doc comment.Document, err error) {
	ctx, end := s.span(ctx, "view", attribute.Int64("comment", id))
	defer end(&err)

	raw, err := s.existing(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.Serialize(ctx, raw)
}

// Comment returns the raw comment id when it is active and every filter
// lets it through.
func (s *Service) Comment(ctx context.Context, id int64) (comment.Comment, error) {
	return s.existing(ctx, id)
}
