package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/flemzord/sdiscuss/internal/store"
	"github.com/flemzord/sdiscuss/pkg/comment"
)

// Create adds a comment to the thread keyed by threadKey.
//
// Phases: base checks, validate_comment, resolve-or-create thread,
// rewrite_insert, insert, after_insert, serialize, new_comment_response.
// Nothing is written when validation fails. An after_insert failure fails
// the operation but leaves the committed row in place.
func (s *Service) Create(ctx context.Context, threadKey string, req *comment.Request) (resp *comment.Response, err error) {
	ctx, end := s.span(ctx, "create", attribute.String("thread", threadKey))
	defer end(&err)

	threadKey = strings.TrimSpace(threadKey)
	if threadKey == "" {
		return nil, comment.Invalid("thread is required")
	}

	draft, thread, known, err := s.draft(ctx, threadKey, req)
	if err != nil {
		return nil, err
	}

	draft, err = s.Dispatcher.ValidateComment(ctx, draft, req, comment.ActionCreate)
	if err != nil {
		return nil, err
	}

	if !known {
		if thread, err = s.resolveThread(ctx, threadKey); err != nil {
			return nil, err
		}
	}
	draft.ThreadID = thread.ID

	now := s.now()
	stmt := store.NewStatement(store.TableComment, map[string]any{
		"thread_id":   thread.ID,
		"parent_id":   draft.ParentID,
		"identity_id": draft.IdentityID,
		"text":        draft.Text,
		"created":     now,
		"modified":    now,
		"custom_json": draft.Attrs,
	})
	stmt, err = s.Dispatcher.RewriteInsert(ctx, stmt, draft)
	if err != nil {
		return nil, err
	}

	row, err := s.Store.Insert(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("inserting comment: %w", err)
	}
	raw, err := comment.CommentFromRow(row)
	if err != nil {
		return nil, err
	}

	if err := s.Dispatcher.AfterInsert(ctx, raw); err != nil {
		s.Logger.Error("after_insert failed on committed comment", "comment", raw.ID, "error", err)
		return nil, err
	}

	doc, err := s.Serialize(ctx, raw)
	if err != nil {
		return nil, err
	}

	return s.Dispatcher.NewCommentResponse(ctx, comment.NewResponse(http.StatusCreated, doc), raw, doc)
}

// draft applies the base checks and returns the unvalidated comment. When
// the thread already exists it is returned with known=true.
func (s *Service) draft(ctx context.Context, threadKey string, req *comment.Request) (comment.Comment, comment.Thread, bool, error) {
	body, err := text(req)
	if err != nil {
		return comment.Comment{}, comment.Thread{}, false, err
	}
	parent, err := parentID(req)
	if err != nil {
		return comment.Comment{}, comment.Thread{}, false, err
	}

	thread, known, err := s.findThread(ctx, threadKey)
	if err != nil {
		return comment.Comment{}, comment.Thread{}, false, err
	}

	if parent != nil {
		p, err := s.existing(ctx, *parent)
		if errors.Is(err, comment.ErrRecordNotFound) {
			return comment.Comment{}, comment.Thread{}, false, comment.Invalid("parent %d does not exist", *parent)
		}
		if err != nil {
			return comment.Comment{}, comment.Thread{}, false, err
		}
		if !known || p.ThreadID != thread.ID {
			return comment.Comment{}, comment.Thread{}, false, comment.Invalid("parent %d belongs to another thread", *parent)
		}
	}

	return comment.Comment{
		ThreadID:   thread.ID,
		ParentID:   parent,
		IdentityID: identityID(req),
		Active:     true,
		Text:       body,
		Attrs:      comment.Attrs{},
	}, thread, known, nil
}
