// Package threadstats implements the thread_stats extension.
package threadstats

import (
	"context"
	"time"

	"github.com/flemzord/sdiscuss/internal/core"
	"github.com/flemzord/sdiscuss/internal/hook"
	"github.com/flemzord/sdiscuss/pkg/comment"
)

func init() {
	core.RegisterModule(&Extension{})
}

var _ hook.ThreadEnricher = (*Extension)(nil)

// Document keys added by thread_stats.
const (
	KeyTotal        = "total_comments"
	KeyParticipants = "participants"
	KeyLastActivity = "last_activity"
)

// Extension is the thread_stats extension.
type Extension struct{}

// ModuleInfo implements core.Module.
func (*Extension) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:           core.ExtensionID("thread_stats"),
		New:          func() core.Module { return &Extension{} },
		Capabilities: hook.Capabilities(hook.KindEnrichThread),
		Description:  "Comment and participant counts on fetched threads",
	}
}

// EnrichThread implements hook.ThreadEnricher. Counts cover the comments
// visible to this fetch only.
func (*Extension) EnrichThread(_ context.Context, _ comment.Thread, entries []comment.Entry, out comment.Document) error {
	people := make(map[int64]struct{})
	var last time.Time
	for _, e := range entries {
		if e.Raw.IdentityID != nil {
			people[*e.Raw.IdentityID] = struct{}{}
		}
		if e.Raw.Modified.After(last) {
			last = e.Raw.Modified
		}
	}

	out[KeyTotal] = len(entries)
	out[KeyParticipants] = len(people)
	if last.IsZero() {
		out[KeyLastActivity] = nil
	} else {
		out[KeyLastActivity] = comment.FormatTime(last)
	}
	return nil
}
