// Package capturewebsite implements the capture_website extension: the
// optional "website" field is validated, normalized to an absolute http(s)
// URL, stored, and shown to clients.
package capturewebsite

import (
	"context"
	"net/url"
	"strings"

	"github.com/flemzord/sdiscuss/internal/core"
	"github.com/flemzord/sdiscuss/internal/hook"
	"github.com/flemzord/sdiscuss/pkg/comment"
)

func init() {
	core.RegisterModule(&Extension{})
}

var (
	_ hook.CommentValidator = (*Extension)(nil)
	_ hook.CommentEnricher  = (*Extension)(nil)
)

// Extension is the capture_website extension.
type Extension struct{}

// ModuleInfo implements core.Module.
func (*Extension) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:           core.ExtensionID("capture_website"),
		New:          func() core.Module { return &Extension{} },
		Capabilities: hook.Capabilities(hook.KindValidateComment, hook.KindEnrichComment),
		Description:  "Store and display the commenter's website",
	}
}

// ValidateComment implements hook.CommentValidator.
func (*Extension) ValidateComment(_ context.Context, c comment.Comment, req *comment.Request, action comment.Action) (comment.Comment, error) {
	if action == comment.ActionDelete || req == nil || req.Fields["website"] == nil {
		return c, nil
	}
	raw, ok := req.Fields["website"].(string)
	if !ok {
		return c, comment.Invalid("website must be a string")
	}
	if raw == "" {
		return c, nil
	}
	website, err := Normalize(raw)
	if err != nil {
		return c, err
	}
	c.Attrs["website"] = website
	return c, nil
}

// EnrichComment implements hook.CommentEnricher.
func (*Extension) EnrichComment(_ context.Context, raw comment.Comment, out comment.Document) error {
	if website, ok := raw.Attrs.String("website"); ok {
		out["website"] = website
	}
	return nil
}

// Normalize returns raw as an absolute http(s) URL, adding "http://" when
// no scheme is given.
func Normalize(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		if strings.Contains(raw, "://") {
			return "", comment.Invalid("website must use http or https")
		}
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || strings.ContainsAny(u.Host, " <>\"") {
		return "", comment.Invalid("website is not a valid URL")
	}
	return u.String(), nil
}
