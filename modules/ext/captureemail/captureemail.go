// Package captureemail implements the capture_email extension: the
// optional "email" field is format-checked and stored, never serialized.
package captureemail

import (
	"context"
	"regexp"

	"github.com/flemzord/sdiscuss/internal/core"
	"github.com/flemzord/sdiscuss/internal/hook"
	"github.com/flemzord/sdiscuss/pkg/comment"
)

func init() {
	core.RegisterModule(&Extension{})
}

var _ hook.CommentValidator = (*Extension)(nil)

var emailPattern = regexp.MustCompile(`^[\w.\-+]*@[\w.\-]*\.\w+$`)

// Extension is the capture_email extension.
type Extension struct{}

// ModuleInfo implements core.Module.
func (*Extension) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:           core.ExtensionID("capture_email"),
		New:          func() core.Module { return &Extension{} },
		Capabilities: hook.Capabilities(hook.KindValidateComment),
		Description:  "Store the commenter's email address (private)",
	}
}

// ValidateComment implements hook.CommentValidator.
func (*Extension) ValidateComment(_ context.Context, c comment.Comment, req *comment.Request, action comment.Action) (comment.Comment, error) {
	if action == comment.ActionDelete || req == nil || req.Fields["email"] == nil {
		return c, nil
	}
	email, ok := req.Fields["email"].(string)
	if !ok {
		return c, comment.Invalid("email must be a string")
	}
	if email == "" {
		return c, nil
	}
	if !emailPattern.MatchString(email) {
		return c, comment.Invalid("email is not in recognized format: %s", email)
	}
	c.Attrs["email"] = email
	return c, nil
}
