package pipeline

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/flemzord/sdiscuss/internal/store"
	"github.com/flemzord/sdiscuss/pkg/comment"
)

// Update replaces the text of a comment owned by the caller.
func (s *Service) Update(ctx context.Context, id int64, req *comment.Request) (doc comment.Document, err error) {
	ctx, end := s.span(ctx, "edit", attribute.Int64("comment", id))
	defer end(&err)

	body, err := text(req)
	if err != nil {
		return nil, err
	}
	return s.modify(ctx, id, req, comment.ActionEdit, func(c *comment.Comment) {
		c.Text = body
	})
}

// Delete soft-deletes a comment owned by the caller: the row stays, with
// empty text, the deleted marker, and active=false.
func (s *Service) Delete(ctx context.Context, id int64, req *comment.Request) (doc comment.Document, err error) {
	ctx, end := s.span(ctx, "delete", attribute.Int64("comment", id))
	defer end(&err)

	return s.modify(ctx, id, req, comment.ActionDelete, func(c *comment.Comment) {
		c.Text = ""
		c.Active = false
		c.Attrs["deleted"] = true
	})
}

// modify is the shared edit sequence: load through the filters, check
// ownership, validate_comment, rewrite_update, update with a modified bump,
// after_update, serialize.
func (s *Service) modify(ctx context.Context, id int64, req *comment.Request, action comment.Action, apply func(*comment.Comment)) (comment.Document, error) {
	if req == nil || req.Identity == nil {
		return nil, comment.ErrIdentityRequired
	}

	old, err := s.existing(ctx, id)
	if err != nil {
		return nil, err
	}
	if !old.OwnedBy(req.Identity) {
		return nil, fmt.Errorf("%w: comment %d belongs to another identity", comment.ErrForbidden, id)
	}

	edit := old
	edit.Attrs = comment.Attrs{}
	apply(&edit)

	edit, err = s.Dispatcher.ValidateComment(ctx, edit, req, action)
	if err != nil {
		return nil, err
	}

	values := map[string]any{
		"text":        edit.Text,
		"custom_json": old.Attrs.Merge(edit.Attrs),
		"modified":    s.now(),
		"active":      edit.Active,
	}
	stmt := store.Statement{
		Table:  store.TableComment,
		Where:  store.Eq("id", old.ID),
		Values: values,
	}
	stmt, err = s.Dispatcher.RewriteUpdate(ctx, stmt, old, edit)
	if err != nil {
		return nil, err
	}

	row, ok, err := s.Store.Update(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("updating comment %d: %w", id, err)
	}
	if !ok {
		return nil, comment.NotFound("comment", id)
	}
	updated, err := comment.CommentFromRow(row)
	if err != nil {
		return nil, err
	}

	if err := s.Dispatcher.AfterUpdate(ctx, old, updated); err != nil {
		s.Logger.Error("after_update failed on committed comment", "comment", id, "error", err)
		return nil, err
	}

	return s.Serialize(ctx, updated)
}
