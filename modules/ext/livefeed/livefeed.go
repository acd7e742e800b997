// Package livefeed implements the live_feed extension: clients subscribe
// to a thread over a WebSocket and are told about every new comment.
//
// Fan-out never blocks the request that created the comment. Each
// subscriber has a bounded queue; events for a full queue are dropped.
package livefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"gopkg.in/yaml.v3"

	"github.com/flemzord/sdiscuss/internal/core"
	"github.com/flemzord/sdiscuss/internal/hook"
	"github.com/flemzord/sdiscuss/internal/pipeline"
	"github.com/flemzord/sdiscuss/internal/store"
	"github.com/flemzord/sdiscuss/pkg/comment"
)

func init() {
	core.RegisterModule(&Extension{})
}

var (
	_ hook.InsertObserver = (*Extension)(nil)
	_ hook.RouteMounter   = (*Extension)(nil)
	_ core.Configurable   = (*Extension)(nil)
	_ core.Provisioner    = (*Extension)(nil)
	_ core.Stopper        = (*Extension)(nil)
)

const (
	defaultQueue          = 16
	defaultWriteTimeout   = 5 * time.Second
	defaultMaxSubscribers = 256
)

// ErrTooManySubscribers is returned when a thread is at its subscriber cap.
var ErrTooManySubscribers = errors.New("live_feed: too many subscribers")

// Config controls live_feed.
type Config struct {
	// Queue is the per-subscriber event buffer.
	Queue int `yaml:"queue"`
	// WriteTimeout bounds one event write to a client.
	WriteTimeout time.Duration `yaml:"write_timeout"`
	// MaxSubscribers caps concurrent subscribers per thread.
	MaxSubscribers int `yaml:"max_subscribers"`
	// OriginPatterns are passed to the WebSocket handshake for
	// cross-origin clients.
	OriginPatterns []string `yaml:"origin_patterns"`
}

func (c *Config) defaults() {
	if c.Queue <= 0 {
		c.Queue = defaultQueue
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = defaultWriteTimeout
	}
	if c.MaxSubscribers <= 0 {
		c.MaxSubscribers = defaultMaxSubscribers
	}
}

// Comments resolves a comment through the active visibility filters.
type Comments interface {
	Comment(ctx context.Context, id int64) (comment.Comment, error)
}

// Event is what subscribers receive for a new comment.
type Event struct {
	Type     string `json:"type"`
	Thread   string `json:"thread"`
	ID       int64  `json:"id"`
	ParentID *int64 `json:"parent_id"`
	Created  string `json:"created"`
}

type subscriber struct {
	events  chan []byte
	dropped int
}

// Extension is the live_feed extension.
type Extension struct {
	config   Config
	store    store.Store
	comments Comments
	app      *core.AppContext
	logger   *slog.Logger

	mu      sync.Mutex
	threads map[string]map[*subscriber]struct{}
	closed  bool
	done    chan struct{}
}

// New returns an extension bound to st. Only comments c lets through are
// published.
func New(st store.Store, c Comments, cfg Config, logger *slog.Logger) *Extension {
	e := &Extension{config: cfg, comments: c}
	e.bind(st, logger)
	return e
}

func (e *Extension) bind(st store.Store, logger *slog.Logger) {
	e.config.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	e.store = st
	e.logger = logger
	e.threads = make(map[string]map[*subscriber]struct{})
	e.done = make(chan struct{})
}

// ModuleInfo implements core.Module.
func (*Extension) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:           core.ExtensionID("live_feed"),
		New:          func() core.Module { return &Extension{} },
		Capabilities: hook.Capabilities(hook.KindAfterInsert, hook.KindMountRoutes),
		Description:  "WebSocket notifications of new comments",
	}
}

// Configure implements core.Configurable.
func (e *Extension) Configure(node *yaml.Node) error {
	if err := node.Decode(&e.config); err != nil {
		return fmt.Errorf("live_feed: decode config: %w", err)
	}
	return nil
}

// Provision implements core.Provisioner. The pipeline service is created
// after extensions load, so it is looked up on first use.
func (e *Extension) Provision(ctx *core.AppContext) error {
	st, err := core.ServiceAs[store.Store](ctx, store.ServiceName)
	if err != nil {
		return fmt.Errorf("live_feed: %w", err)
	}
	e.bind(st, ctx.Logger)
	e.app = ctx
	return nil
}

func (e *Extension) lookup() (Comments, error) {
	if e.comments != nil {
		return e.comments, nil
	}
	if e.app == nil {
		return nil, errors.New("live_feed: not provisioned")
	}
	svc, err := core.ServiceAs[*pipeline.Service](e.app, pipeline.ServiceName)
	if err != nil {
		return nil, fmt.Errorf("live_feed: %w", err)
	}
	e.comments = svc
	return svc, nil
}

// Stop implements core.Stopper. Open subscriptions are closed.
func (e *Extension) Stop(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed && e.done != nil {
		e.closed = true
		close(e.done)
	}
	return nil
}

// AfterInsert implements hook.InsertObserver. Comments the visibility
// filters hide, such as ones held for moderation, are not announced.
func (e *Extension) AfterInsert(ctx context.Context, c comment.Comment) error {
	key, err := e.threadKey(ctx, c.ThreadID)
	if err != nil {
		return err
	}
	if e.Subscribers(key) == 0 {
		return nil
	}
	comments, err := e.lookup()
	if err != nil {
		return err
	}
	if _, err := comments.Comment(ctx, c.ID); err != nil {
		if errors.Is(err, comment.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("live_feed: check visibility of %d: %w", c.ID, err)
	}
	data, err := json.Marshal(Event{
		Type:     "comment",
		Thread:   key,
		ID:       c.ID,
		ParentID: c.ParentID,
		Created:  comment.FormatTime(c.Created),
	})
	if err != nil {
		return fmt.Errorf("live_feed: encode event: %w", err)
	}
	e.publish(key, data)
	return nil
}

func (e *Extension) threadKey(ctx context.Context, id int64) (string, error) {
	rows, err := e.store.Select(ctx, store.Query{
		Table: store.TableThread,
		Where: store.Eq("id", id),
		Limit: 1,
	})
	if err != nil {
		return "", fmt.Errorf("live_feed: load thread %d: %w", id, err)
	}
	if len(rows) == 0 {
		return "", comment.NotFound("thread", id)
	}
	t, err := comment.ThreadFromRow(rows[0])
	if err != nil {
		return "", err
	}
	return t.ClientID, nil
}

// publish queues data for every subscriber of key without blocking.
func (e *Extension) publish(key string, data []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for sub := range e.threads[key] {
		select {
		case sub.events <- data:
		default:
			sub.dropped++
		}
	}
}

// Subscribers returns the number of live subscriptions to key.
func (e *Extension) Subscribers(key string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.threads[key])
}

func (e *Extension) subscribe(key string) (*subscriber, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, errors.New("live_feed: stopped")
	}
	subs := e.threads[key]
	if len(subs) >= e.config.MaxSubscribers {
		return nil, ErrTooManySubscribers
	}
	if subs == nil {
		subs = make(map[*subscriber]struct{})
		e.threads[key] = subs
	}
	sub := &subscriber{events: make(chan []byte, e.config.Queue)}
	subs[sub] = struct{}{}
	return sub, nil
}

func (e *Extension) unsubscribe(key string, sub *subscriber) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.threads[key], sub)
	if len(e.threads[key]) == 0 {
		delete(e.threads, key)
	}
	return sub.dropped
}

// MountRoutes implements hook.RouteMounter.
func (e *Extension) MountRoutes(r chi.Router) {
	r.Get("/threads/{thread}/live", e.handleSubscribe)
}

func (e *Extension) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	key, err := hook.ThreadKey(r)
	if err != nil {
		http.Error(w, err.Error(), comment.Status(err))
		return
	}
	sub, err := e.subscribe(key)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	defer func() {
		if n := e.unsubscribe(key, sub); n > 0 {
			e.logger.Warn("live feed dropped events", "thread", key, "dropped", n)
		}
	}()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: e.config.OriginPatterns})
	if err != nil {
		e.logger.Error("websocket accept failed", "error", err)
		return
	}
	defer func() {
		_ = conn.Close(websocket.StatusInternalError, "unexpected close")
	}()

	// Clients never send; CloseRead handles pings and notices disconnects.
	ctx := conn.CloseRead(r.Context())

	for {
		select {
		case data := <-sub.events:
			wctx, cancel := context.WithTimeout(ctx, e.config.WriteTimeout)
			err := conn.Write(wctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				e.logger.Debug("live feed write failed", "thread", key, "error", err)
				return
			}
		case <-e.done:
			_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		case <-ctx.Done():
			return
		}
	}
}
