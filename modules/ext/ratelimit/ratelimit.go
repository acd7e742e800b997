// Package ratelimit implements the rate_limit extension: each poster may
// create a bounded number of comments per sliding window. Posters are told
// apart by identity, or by client address when anonymous.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/sdiscuss/internal/core"
	"github.com/flemzord/sdiscuss/internal/cron"
	"github.com/flemzord/sdiscuss/internal/hook"
	"github.com/flemzord/sdiscuss/pkg/comment"
)

func init() {
	core.RegisterModule(&Extension{})
}

var (
	_ hook.CommentValidator = (*Extension)(nil)
	_ core.Configurable     = (*Extension)(nil)
	_ core.Provisioner      = (*Extension)(nil)
	_ core.Validator        = (*Extension)(nil)
)

const (
	defaultPerMinute = 5
	defaultSchedule  = "*/10 * * * *"
)

// Config holds the limits. A zero limit disables that window.
type Config struct {
	PerMinute int `yaml:"per_minute"`
	PerHour   int `yaml:"per_hour"`
	// SweepSchedule is when idle posters are forgotten.
	SweepSchedule string `yaml:"sweep_schedule"`
}

type window struct {
	span  time.Duration
	limit int
}

// Extension is the rate_limit extension.
type Extension struct {
	config  Config
	windows []window
	logger  *slog.Logger
	now     func() time.Time

	mu      sync.Mutex
	posters map[string][]time.Time
}

// New returns an extension with cfg. A config with no limits gets the
// default per-minute limit.
func New(cfg Config) *Extension {
	e := &Extension{config: cfg, logger: slog.Default(), now: time.Now}
	e.init()
	return e
}

func (e *Extension) init() {
	if e.config.PerMinute == 0 && e.config.PerHour == 0 {
		e.config.PerMinute = defaultPerMinute
	}
	e.windows = e.windows[:0]
	if e.config.PerMinute > 0 {
		e.windows = append(e.windows, window{span: time.Minute, limit: e.config.PerMinute})
	}
	if e.config.PerHour > 0 {
		e.windows = append(e.windows, window{span: time.Hour, limit: e.config.PerHour})
	}
	e.posters = make(map[string][]time.Time)
	if e.now == nil {
		e.now = time.Now
	}
}

// ModuleInfo implements core.Module.
func (*Extension) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:           core.ExtensionID("rate_limit"),
		New:          func() core.Module { return New(Config{}) },
		Capabilities: hook.Capabilities(hook.KindValidateComment),
		Description:  "Limit how often one poster may comment",
	}
}

// Configure implements core.Configurable.
func (e *Extension) Configure(node *yaml.Node) error {
	e.config = Config{}
	if err := node.Decode(&e.config); err != nil {
		return fmt.Errorf("rate_limit: decode config: %w", err)
	}
	e.init()
	return nil
}

// Provision implements core.Provisioner. The sweep job is registered when
// a scheduler is available.
func (e *Extension) Provision(ctx *core.AppContext) error {
	e.logger = ctx.Logger
	sched, err := core.ServiceAs[*cron.Scheduler](ctx, cron.ServiceName)
	if err != nil {
		return nil
	}
	if err := sched.RegisterJob(&sweepJob{ext: e}); err != nil {
		return fmt.Errorf("rate_limit: %w", err)
	}
	return nil
}

// Validate implements core.Validator.
func (e *Extension) Validate() error {
	if e.config.PerMinute < 0 || e.config.PerHour < 0 {
		return errors.New("rate_limit: limits must not be negative")
	}
	if e.config.SweepSchedule != "" {
		return cron.ParseSchedule(e.config.SweepSchedule)
	}
	return nil
}

// ValidateComment implements hook.CommentValidator. Only creates count.
func (e *Extension) ValidateComment(_ context.Context, c comment.Comment, req *comment.Request, action comment.Action) (comment.Comment, error) {
	if action != comment.ActionCreate {
		return c, nil
	}
	key := posterKey(req)
	if key == "" {
		return c, nil
	}
	if err := e.allow(key); err != nil {
		e.logger.Info("comment rate limited", "poster", key)
		return c, err
	}
	return c, nil
}

// posterKey names the poster of req, or "" when nothing identifies it.
func posterKey(req *comment.Request) string {
	if req == nil {
		return ""
	}
	if req.Identity != nil {
		return "id:" + strconv.FormatInt(req.Identity.ID, 10)
	}
	if req.RemoteAddr == "" {
		return ""
	}
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		host = req.RemoteAddr
	}
	return "addr:" + host
}

// allow records one event for key unless a window is full.
func (e *Extension) allow(key string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	events := e.evict(e.posters[key], now)
	for _, w := range e.windows {
		if count(events, now.Add(-w.span)) >= w.limit {
			e.posters[key] = events
			return fmt.Errorf("%w: at most %d comments per %s", comment.ErrRateLimited, w.limit, w.span)
		}
	}
	e.posters[key] = append(events, now)
	return nil
}

// longest returns the widest window span.
func (e *Extension) longest() time.Duration {
	var d time.Duration
	for _, w := range e.windows {
		d = max(d, w.span)
	}
	return d
}

// evict drops events older than the widest window. Events are
// chronologically ordered.
func (e *Extension) evict(events []time.Time, now time.Time) []time.Time {
	cutoff := now.Add(-e.longest())
	i := 0
	for i < len(events) && events[i].Before(cutoff) {
		i++
	}
	return events[i:]
}

func count(events []time.Time, since time.Time) int {
	n := 0
	for i := len(events) - 1; i >= 0 && !events[i].Before(since); i-- {
		n++
	}
	return n
}

// Sweep forgets posters with no event inside any window and returns how
// many were dropped.
func (e *Extension) Sweep() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	dropped := 0
	for key, events := range e.posters {
		if events = e.evict(events, now); len(events) == 0 {
			delete(e.posters, key)
			dropped++
			continue
		}
		e.posters[key] = events
	}
	return dropped
}

// Tracked returns the number of posters currently remembered.
func (e *Extension) Tracked() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.posters)
}

// sweepJob runs Sweep on the scheduler.
type sweepJob struct {
	ext *Extension
}

func (j *sweepJob) Name() string { return "rate_limit_sweep" }

func (j *sweepJob) Schedule() string {
	if j.ext.config.SweepSchedule != "" {
		return j.ext.config.SweepSchedule
	}
	return defaultSchedule
}

func (j *sweepJob) Run(context.Context) error {
	if n := j.ext.Sweep(); n > 0 {
		j.ext.logger.Debug("rate_limit: forgot idle posters", "count", n)
	}
	return nil
}
