// Package session implements the identity.session driver: every caller
// carries an opaque uuid token cookie mapped to an identity row.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/flemzord/sdiscuss/internal/core"
	"github.com/flemzord/sdiscuss/internal/cron"
	"github.com/flemzord/sdiscuss/internal/identity"
	"github.com/flemzord/sdiscuss/internal/logging"
	"github.com/flemzord/sdiscuss/internal/store"
	"github.com/flemzord/sdiscuss/pkg/comment"
)

func init() {
	core.RegisterModule(&Driver{})
}

var (
	_ identity.Policy     = (*Driver)(nil)
	_ cron.SessionCache   = (*Driver)(nil)
	_ cron.IdentityPruner = (*Driver)(nil)
	_ core.Configurable   = (*Driver)(nil)
	_ core.Provisioner    = (*Driver)(nil)
	_ core.Validator      = (*Driver)(nil)
)

// Driver resolves identities from the session cookie.
type Driver struct {
	config Config
	store  store.Store
	logger *slog.Logger
	now    func() time.Time

	mu    sync.Mutex
	cache map[string]*cached // by token
	byID  map[int64]string   // identity id -> token
}

type cached struct {
	id       comment.Identity
	lastSeen time.Time
}

// New returns a driver bound to st. Used by tests and by Provision.
func New(st store.Store, cfg Config, logger *slog.Logger) *Driver {
	d := &Driver{config: cfg}
	d.bind(st, logger)
	return d
}

func (d *Driver) bind(st store.Store, logger *slog.Logger) {
	d.config.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	d.store = st
	d.logger = logger
	d.now = time.Now
	d.cache = make(map[string]*cached)
	d.byID = make(map[int64]string)
}

// ModuleInfo implements core.Module.
func (d *Driver) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:          "identity.session",
		New:         func() core.Module { return &Driver{} },
		Description: "Anonymous identities tracked by a uuid session cookie",
	}
}

// Configure implements core.Configurable.
func (d *Driver) Configure(node *yaml.Node) error {
	if err := node.Decode(&d.config); err != nil {
		return fmt.Errorf("session: decode config: %w", err)
	}
	return nil
}

// Provision implements core.Provisioner.
func (d *Driver) Provision(ctx *core.AppContext) error {
	st, err := core.ServiceAs[store.Store](ctx, store.ServiceName)
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}
	d.bind(st, ctx.Logger)

	if r, err := core.ServiceAs[*logging.Redactor](ctx, logging.ServiceName); err == nil {
		r.AddCookie(d.config.CookieName)
	}

	if sched, err := core.ServiceAs[*cron.Scheduler](ctx, cron.ServiceName); err == nil {
		job := &cron.IdentityCacheJob{
			Cache:        d,
			MaxIdle:      d.config.CacheIdle,
			Logger:       d.logger,
			ScheduleExpr: d.config.PruneSchedule,
		}
		if err := sched.RegisterJob(job); err != nil {
			return fmt.Errorf("session: %w", err)
		}
		if _, ok := st.(store.Deleter); ok && d.config.OrphanAge > 0 {
			err := sched.RegisterJob(&cron.IdentityPruneJob{
				Pruner:       d,
				MaxAge:       d.config.OrphanAge,
				Logger:       d.logger,
				ScheduleExpr: d.config.OrphanSchedule,
			})
			if err != nil {
				return fmt.Errorf("session: %w", err)
			}
		}
	}

	return ctx.RegisterService(identity.ServiceName, identity.Policy(d))
}

// Validate implements core.Validator.
func (d *Driver) Validate() error {
	return d.config.validate()
}

// Identity implements identity.Policy. A missing or unknown token yields a
// freshly created identity, so every caller is identified.
func (d *Driver) Identity(r *http.Request) (*comment.Identity, error) {
	if c, err := r.Cookie(d.config.CookieName); err == nil && c.Value != "" {
		if _, perr := uuid.Parse(c.Value); perr == nil {
			id, err := d.lookup(r.Context(), c.Value)
			if err != nil {
				return nil, err
			}
			if id != nil {
				return id, nil
			}
		}
	}
	return d.create(r.Context())
}

// Remember implements identity.Policy.
func (d *Driver) Remember(w http.ResponseWriter, r *http.Request, id int64) error {
	token, err := d.tokenFor(r.Context(), id)
	if err != nil {
		return err
	}
	if c, err := r.Cookie(d.config.CookieName); err == nil && c.Value == token {
		return nil
	}
	http.SetCookie(w, d.cookie(token, int(d.config.MaxAge/time.Second)))
	return nil
}

// Forget implements identity.Policy.
func (d *Driver) Forget(w http.ResponseWriter, _ *http.Request) error {
	http.SetCookie(w, d.cookie("", -1))
	return nil
}

// Prune drops cache entries idle longer than maxIdle. Implements
// cron.SessionCache.
func (d *Driver) Prune(maxIdle time.Duration) int {
	cutoff := d.now().Add(-maxIdle)

	d.mu.Lock()
	defer d.mu.Unlock()

	n := 0
	for token, e := range d.cache {
		if e.lastSeen.Before(cutoff) {
			delete(d.cache, token)
			delete(d.byID, e.id.ID)
			n++
		}
	}
	return n
}

// orphaned matches identities that neither authored a comment nor hold an
// identity_comment relation.
var orphaned = store.And(
	store.Where("id NOT IN (SELECT identity_id FROM comment WHERE identity_id IS NOT NULL)"),
	store.Where("id NOT IN (SELECT identity_id FROM identity_comment)"),
)

// PruneIdentities deletes orphaned identity rows created more than
// olderThan ago and evicts them from the cache. Implements
// cron.IdentityPruner.
func (d *Driver) PruneIdentities(ctx context.Context, olderThan time.Duration) (int, error) {
	del, ok := d.store.(store.Deleter)
	if !ok {
		return 0, errors.New("session: store cannot delete identities")
	}
	where := store.And(store.Where("created < ?", d.now().Add(-olderThan)), orphaned)

	rows, err := d.store.Select(ctx, store.Query{Table: store.TableIdentity, Where: where})
	if err != nil {
		return 0, fmt.Errorf("session: select orphaned identities: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	ids := make([]any, len(rows))
	for i, row := range rows {
		ids[i] = row["id"]
	}

	// Re-checking the orphan predicate keeps rows that gained a reference
	// since the select.
	n, err := del.Delete(ctx, store.TableIdentity, store.And(store.In("id", ids...), where))
	if err != nil {
		return 0, fmt.Errorf("session: delete orphaned identities: %w", err)
	}

	d.mu.Lock()
	for _, v := range ids {
		id, _ := v.(int64)
		if token, ok := d.byID[id]; ok {
			delete(d.cache, token)
			delete(d.byID, id)
		}
	}
	d.mu.Unlock()

	return int(n), nil
}

// Cached returns the number of cached sessions.
func (d *Driver) Cached() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.cache)
}

func (d *Driver) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     d.config.CookieName,
		Value:    value,
		Path:     d.config.CookiePath,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   d.config.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (d *Driver) lookup(ctx context.Context, token string) (*comment.Identity, error) {
	if id, ok := d.fromCache(token); ok {
		return &id, nil
	}

	rows, err := d.store.Select(ctx, store.Query{
		Table: store.TableIdentity,
		Where: store.Eq("token", token),
		Limit: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("session: lookup identity: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	id, err := comment.IdentityFromRow(rows[0])
	if err != nil {
		return nil, fmt.Errorf("session: decode identity: %w", err)
	}
	d.remember(id)
	return &id, nil
}

func (d *Driver) create(ctx context.Context) (*comment.Identity, error) {
	row, err := d.store.Insert(ctx, store.NewStatement(store.TableIdentity, map[string]any{
		"token":   uuid.NewString(),
		"created": d.now(),
	}))
	if err != nil {
		return nil, fmt.Errorf("session: create identity: %w", err)
	}
	id, err := comment.IdentityFromRow(row)
	if err != nil {
		return nil, fmt.Errorf("session: decode identity: %w", err)
	}
	d.remember(id)
	d.logger.Debug("identity created", "identity", id.ID)
	return &id, nil
}

func (d *Driver) tokenFor(ctx context.Context, id int64) (string, error) {
	d.mu.Lock()
	token, ok := d.byID[id]
	if ok {
		d.cache[token].lastSeen = d.now()
	}
	d.mu.Unlock()
	if ok {
		return token, nil
	}

	rows, err := d.store.Select(ctx, store.Query{
		Table: store.TableIdentity,
		Where: store.Eq("id", id),
		Limit: 1,
	})
	if err != nil {
		return "", fmt.Errorf("session: lookup identity %d: %w", id, err)
	}
	if len(rows) == 0 {
		return "", fmt.Errorf("session: identity %d: %w", id, comment.ErrRecordNotFound)
	}
	ident, err := comment.IdentityFromRow(rows[0])
	if err != nil {
		return "", fmt.Errorf("session: decode identity: %w", err)
	}
	d.remember(ident)
	return ident.Token, nil
}

func (d *Driver) fromCache(token string) (comment.Identity, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.cache[token]
	if !ok {
		return comment.Identity{}, false
	}
	e.lastSeen = d.now()
	return e.id, true
}

func (d *Driver) remember(id comment.Identity) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cache[id.Token] = &cached{id: id, lastSeen: d.now()}
	d.byID[id.ID] = id.Token
}
