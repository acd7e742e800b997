// Package moderation implements the moderation extension: new comments
// start pending, and only approved (or never moderated) comments are
// visible. Moderators approve or reject through the Moderator API, and
// stale pending comments can be rejected on a schedule.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/sdiscuss/internal/core"
	"github.com/flemzord/sdiscuss/internal/cron"
	"github.com/flemzord/sdiscuss/internal/hook"
	"github.com/flemzord/sdiscuss/internal/store"
	"github.com/flemzord/sdiscuss/pkg/comment"
)

func init() {
	core.RegisterModule(&Extension{})
}

var (
	_ hook.InsertRewriter = (*Extension)(nil)
	_ hook.FetchFilter    = (*Extension)(nil)
	_ cron.PendingExpirer = (*Extension)(nil)
	_ core.Configurable   = (*Extension)(nil)
	_ core.Provisioner    = (*Extension)(nil)
	_ core.Validator      = (*Extension)(nil)
)

// ServiceName is the AppContext service exposing the Moderator API.
const ServiceName = "moderation"

// AttrKey is the custom_json key holding the moderation state.
const AttrKey = "mod_mode"

// Mode is a moderation state.
type Mode string

// Moderation states.
const (
	Pending  Mode = "pending"
	Approved Mode = "approved"
	Rejected Mode = "rejected"
)

// ErrBadMode is returned by SetMode for anything but approved or rejected.
var ErrBadMode = fmt.Errorf("%w: moderation mode must be approved or rejected", comment.ErrRecordInvalid)

// Config controls moderation.
type Config struct {
	// Active marks new comments pending. Defaults to on. Turning it off
	// keeps hiding comments already pending or rejected.
	Active *bool `yaml:"active"`

	// ExpireAfter rejects comments pending longer than this. Zero keeps
	// them pending forever.
	ExpireAfter time.Duration `yaml:"expire_after"`

	// ExpireSchedule is the cron expression for the expiry job.
	ExpireSchedule string `yaml:"expire_schedule"`
}

// Extension is the moderation extension.
type Extension struct {
	config Config
	store  store.Store
	logger *slog.Logger
	now    func() time.Time
}

// New returns the extension over st.
func New(st store.Store, cfg Config) *Extension {
	return &Extension{config: cfg, store: st, logger: slog.Default(), now: time.Now}
}

// ModuleInfo implements core.Module.
func (*Extension) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:           core.ExtensionID("moderation"),
		New:          func() core.Module { return New(nil, Config{}) },
		Capabilities: hook.Capabilities(hook.KindRewriteInsert, hook.KindCommentFilter),
		Description:  "Hold new comments for approval",
	}
}

// Configure implements core.Configurable.
func (e *Extension) Configure(node *yaml.Node) error {
	if err := node.Decode(&e.config); err != nil {
		return fmt.Errorf("moderation: decode config: %w", err)
	}
	return nil
}

// Provision implements core.Provisioner.
func (e *Extension) Provision(ctx *core.AppContext) error {
	st, err := core.ServiceAs[store.Store](ctx, store.ServiceName)
	if err != nil {
		return fmt.Errorf("moderation: %w", err)
	}
	e.store = st
	e.logger = ctx.Logger

	if e.config.ExpireAfter > 0 {
		sched, err := core.ServiceAs[*cron.Scheduler](ctx, cron.ServiceName)
		if err != nil {
			return fmt.Errorf("moderation: expire_after needs the scheduler: %w", err)
		}
		if err := sched.RegisterJob(&cron.PendingExpiryJob{
			Expirer:      e,
			MaxAge:       e.config.ExpireAfter,
			Logger:       e.logger,
			ScheduleExpr: e.config.ExpireSchedule,
		}); err != nil {
			return fmt.Errorf("moderation: %w", err)
		}
	}

	return ctx.RegisterService(ServiceName, e)
}

// Validate implements core.Validator.
func (e *Extension) Validate() error {
	if e.config.ExpireAfter < 0 {
		return errors.New("moderation: expire_after must be positive")
	}
	if e.config.ExpireSchedule != "" {
		return cron.ParseSchedule(e.config.ExpireSchedule)
	}
	return nil
}

func (e *Extension) active() bool {
	return e.config.Active == nil || *e.config.Active
}

// RewriteInsert implements hook.InsertRewriter.
func (e *Extension) RewriteInsert(_ context.Context, ref *hook.Ref[store.Statement], _ comment.Comment) error {
	if e.active() {
		ref.Set(ref.Get().WithAttr(AttrKey, string(Pending)))
	}
	return nil
}

// CommentFilter implements hook.FetchFilter.
func (e *Extension) CommentFilter(context.Context) (store.Predicate, error) {
	return store.AttrNotIn(AttrKey, string(Pending), string(Rejected)), nil
}

// Pending returns up to limit pending comments, oldest first. Zero means
// no limit.
func (e *Extension) Pending(ctx context.Context, limit int) ([]comment.Comment, error) {
	return e.pending(ctx, store.True(), limit)
}

func (e *Extension) pending(ctx context.Context, extra store.Predicate, limit int) ([]comment.Comment, error) {
	rows, err := e.store.Select(ctx, store.Query{
		Table:   store.TableComment,
		Where:   store.And(store.Eq("active", true), store.AttrEq(AttrKey, string(Pending)), extra),
		OrderBy: []string{"created", "id"},
		Limit:   limit,
	})
	if err != nil {
		return nil, fmt.Errorf("moderation: list pending: %w", err)
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

// SetMode approves or rejects a comment. Only comments still pending
// change; the returned bool reports whether one did.
func (e *Extension) SetMode(ctx context.Context, c comment.Comment, mode Mode) (bool, error) {
	if mode != Approved && mode != Rejected {
		return false, ErrBadMode
	}
	_, ok, err := e.store.Update(ctx, store.Statement{
		Table: store.TableComment,
		Where: store.And(store.Eq("id", c.ID), store.AttrEq(AttrKey, string(Pending))),
		Values: map[string]any{
			store.AttrsColumn: c.Attrs.Merge(comment.Attrs{AttrKey: string(mode)}),
		},
	})
	if err != nil {
		return false, fmt.Errorf("moderation: set mode of %d: %w", c.ID, err)
	}
	if ok {
		e.logger.Info("comment moderated", "comment", c.ID, "mode", mode)
	}
	return ok, nil
}

// Moderate looks a comment up by id and sets its mode.
func (e *Extension) Moderate(ctx context.Context, id int64, mode Mode) (bool, error) {
	list, err := e.pending(ctx, store.Eq("id", id), 1)
	if err != nil {
		return false, err
	}
	if len(list) == 0 {
		return false, comment.NotFound("pending comment", id)
	}
	return e.SetMode(ctx, list[0], mode)
}

// ExpirePending rejects comments pending for longer than olderThan.
// Implements cron.PendingExpirer.
func (e *Extension) ExpirePending(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := e.now().Add(-olderThan)
	stale, err := e.pending(ctx, store.Where("created < ?", cutoff), 0)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, c := range stale {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		ok, err := e.SetMode(ctx, c, Rejected)
		if err != nil {
			return n, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}
