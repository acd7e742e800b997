package pipeline

import (
	"context"
	"fmt"
	"html"

	"github.com/flemzord/sdiscuss/pkg/comment"
)

// Serialize builds the client document for raw: whitelisted columns, the
// soft-delete marker, then enrich_comment, then escaping and rendering.
// The same raw comment with the same extensions always yields the same
// document.
func (s *Service) Serialize(ctx context.Context, raw comment.Comment) (comment.Document, error) {
	doc := comment.Document{
		"id":        raw.ID,
		"thread_id": raw.ThreadID,
		"parent_id": nil,
		"created":   comment.FormatTime(raw.Created),
		"modified":  comment.FormatTime(raw.Modified),
		"text":      raw.Text,
	}
	if raw.ParentID != nil {
		doc["parent_id"] = *raw.ParentID
	}
	if v, ok := raw.Attrs["deleted"]; ok {
		doc["deleted"] = v
	}

	if err := s.Dispatcher.EnrichComment(ctx, raw, doc); err != nil {
		return nil, err
	}

	for k, v := range doc {
		if str, ok := v.(string); ok && k != "text" {
			doc[k] = html.EscapeString(str)
		}
	}

	if text, ok := doc["text"].(string); ok {
		rendered, err := s.Renderer.Render(text)
		if err != nil {
			return nil, fmt.Errorf("rendering comment %d: %w", raw.ID, err)
		}
		doc["text"] = rendered
	}
	return doc, nil
}

// threadDocument is the whitelisted thread shape before enrich_thread.
func threadDocument(t comment.Thread, docs []comment.Document) comment.Document {
	var id any
	if t.ID != 0 {
		id = t.ID
	}
	return comment.Document{
		"id":        id,
		"client_id": html.EscapeString(t.ClientID),
		"comments":  docs,
	}
}
