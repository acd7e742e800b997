// Package archiveversions implements the archive_versions extension: every
// edit keeps the previous text as a hidden archived row pointing at the
// live comment through version_of_id.
package archiveversions

import (
	"context"
	"fmt"

	"github.com/flemzord/sdiscuss/internal/core"
	"github.com/flemzord/sdiscuss/internal/hook"
	"github.com/flemzord/sdiscuss/internal/store"
	"github.com/flemzord/sdiscuss/pkg/comment"
)

func init() {
	core.RegisterModule(&Extension{})
}

var (
	_ hook.UpdateObserver = (*Extension)(nil)
	_ hook.FetchFilter    = (*Extension)(nil)
	_ core.Provisioner    = (*Extension)(nil)
)

// AttrKey marks archived versions in custom_json.
const AttrKey = "archived"

// Extension is the archive_versions extension.
type Extension struct {
	store store.Store
}

// New returns the extension writing to st.
func New(st store.Store) *Extension {
	return &Extension{store: st}
}

// ModuleInfo implements core.Module.
func (*Extension) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:           core.ExtensionID("archive_versions"),
		New:          func() core.Module { return &Extension{} },
		Capabilities: hook.Capabilities(hook.KindAfterUpdate, hook.KindCommentFilter),
		Description:  "Keep every previous version of edited comments",
	}
}

// Provision implements core.Provisioner.
func (e *Extension) Provision(ctx *core.AppContext) error {
	st, err := core.ServiceAs[store.Store](ctx, store.ServiceName)
	if err != nil {
		return fmt.Errorf("archive_versions: %w", err)
	}
	e.store = st
	return nil
}

// AfterUpdate implements hook.UpdateObserver.
func (e *Extension) AfterUpdate(ctx context.Context, old, _ comment.Comment) error {
	attrs := old.Attrs.Merge(comment.Attrs{AttrKey: true})
	_, err := e.store.Insert(ctx, store.NewStatement(store.TableComment, map[string]any{
		"thread_id":     old.ThreadID,
		"parent_id":     old.ParentID,
		"version_of_id": old.ID,
		"identity_id":   old.IdentityID,
		"active":        old.Active,
		"created":       old.Created,
		"modified":      old.Modified,
		"text":          old.Text,
		"custom_json":   attrs,
	}))
	if err != nil {
		return fmt.Errorf("archiving version of comment %d: %w", old.ID, err)
	}
	return nil
}

// CommentFilter implements hook.FetchFilter.
func (e *Extension) CommentFilter(context.Context) (store.Predicate, error) {
	return store.AttrIsNotTrue(AttrKey), nil
}

// Versions returns the archived versions of comment id, oldest first.
func (e *Extension) Versions(ctx context.Context, id int64) ([]comment.Comment, error) {
	rows, err := e.store.Select(ctx, store.Query{
		Table:   store.TableComment,
		Where:   store.And(store.Eq("version_of_id", id), store.AttrEq(AttrKey, true)),
		OrderBy: []string{"id"},
	})
	if err != nil {
		return nil, fmt.Errorf("listing versions of %d: %w", id, err)
	}
	out := make([]comment.Comment, 0, len(rows))
	for _, row := range rows {
		c, err := comment.CommentFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
