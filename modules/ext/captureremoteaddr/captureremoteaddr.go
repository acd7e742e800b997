// Package captureremoteaddr implements the capture_remote_addr extension:
// the client address is stored with every new or edited comment.
package captureremoteaddr

import (
	"context"
	"net"

	"github.com/flemzord/sdiscuss/internal/core"
	"github.com/flemzord/sdiscuss/internal/hook"
	"github.com/flemzord/sdiscuss/pkg/comment"
)

func init() {
	core.RegisterModule(&Extension{})
}

var _ hook.CommentValidator = (*Extension)(nil)

// Extension is the capture_remote_addr extension.
type Extension struct{}

// ModuleInfo implements core.Module.
func (*Extension) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:           core.ExtensionID("capture_remote_addr"),
		New:          func() core.Module { return &Extension{} },
		Capabilities: hook.Capabilities(hook.KindValidateComment),
		Description:  "Store the client address with each comment (private)",
	}
}

// ValidateComment implements hook.CommentValidator.
func (*Extension) ValidateComment(_ context.Context, c comment.Comment, req *comment.Request, action comment.Action) (comment.Comment, error) {
	if action == comment.ActionDelete || req == nil || req.RemoteAddr == "" {
		return c, nil
	}
	addr := req.RemoteAddr
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	c.Attrs["remote_addr"] = addr
	return c, nil
}
