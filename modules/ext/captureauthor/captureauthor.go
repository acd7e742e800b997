// Package captureauthor implements the capture_author extension: the
// optional "author" field is stored with the comment, shown to clients,
// and remembered in a cookie to prefill the next form.
package captureauthor

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"gopkg.in/yaml.v3"

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
	_ hook.ResponseHook     = (*Extension)(nil)
	_ core.Configurable     = (*Extension)(nil)
)

// CookieName is the cookie carrying the last author name used.
const CookieName = "comment_author"

// Config controls capture_author.
type Config struct {
	// AllowEdit lets edits change the author.
	AllowEdit bool `yaml:"allow_edit"`
	// Cookie toggles the comment_author cookie. Defaults to on.
	Cookie *bool `yaml:"cookie"`
}

// Extension is the capture_author extension.
type Extension struct {
	config Config
}

// ModuleInfo implements core.Module.
func (*Extension) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  core.ExtensionID("capture_author"),
		New: func() core.Module { return &Extension{} },
		Capabilities: hook.Capabilities(
			hook.KindValidateComment,
			hook.KindEnrichComment,
			hook.KindNewCommentResponse,
		),
		Description: "Store and display an optional author name",
	}
}

// Configure implements core.Configurable.
func (e *Extension) Configure(node *yaml.Node) error {
	if err := node.Decode(&e.config); err != nil {
		return fmt.Errorf("capture_author: decode config: %w", err)
	}
	return nil
}

// ValidateComment implements hook.CommentValidator.
func (e *Extension) ValidateComment(_ context.Context, c comment.Comment, req *comment.Request, action comment.Action) (comment.Comment, error) {
	if action != comment.ActionCreate && (action != comment.ActionEdit || !e.config.AllowEdit) {
		return c, nil
	}
	if req == nil || req.Fields["author"] == nil {
		return c, nil
	}
	author, ok := req.Fields["author"].(string)
	if !ok {
		return c, comment.Invalid("author must be a string")
	}
	if author != "" {
		c.Attrs["author"] = author
	}
	return c, nil
}

// EnrichComment implements hook.CommentEnricher.
func (e *Extension) EnrichComment(_ context.Context, raw comment.Comment, out comment.Document) error {
	if author, ok := raw.Attrs.String("author"); ok {
		out["author"] = author
	}
	return nil
}

// OnNewCommentResponse implements hook.ResponseHook.
func (e *Extension) OnNewCommentResponse(_ context.Context, resp *comment.Response, raw comment.Comment, _ comment.Document) (*comment.Response, error) {
	if e.config.Cookie != nil && !*e.config.Cookie {
		return resp, nil
	}
	author, ok := raw.Attrs.String("author")
	if !ok {
		return resp, nil
	}
	c := &http.Cookie{
		Name:     CookieName,
		Value:    url.QueryEscape(author),
		Path:     "/",
		MaxAge:   int((365 * 24 * time.Hour).Seconds()),
		SameSite: http.SameSiteLaxMode,
	}
	resp.Header.Add("Set-Cookie", c.String())
	return resp, nil
}
