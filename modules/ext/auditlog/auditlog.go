// Package auditlog implements the audit_log extension, which appends one
// JSON Lines record for every comment write.
package auditlog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
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
	_ hook.InsertObserver = (*Extension)(nil)
	_ hook.UpdateObserver = (*Extension)(nil)
	_ core.Configurable   = (*Extension)(nil)
	_ core.Provisioner    = (*Extension)(nil)
	_ core.Stopper        = (*Extension)(nil)
)

const defaultFile = "audit.jsonl"

// Record is one JSON Lines entry.
type Record struct {
	Timestamp  time.Time      `json:"timestamp"`
	Action     comment.Action `json:"action"`
	CommentID  int64          `json:"comment_id"`
	ThreadID   int64          `json:"thread_id"`
	ParentID   *int64         `json:"parent_id,omitempty"`
	IdentityID *int64         `json:"identity_id,omitempty"`
	Text       string         `json:"text"`
	OldText    string         `json:"old_text,omitempty"`
}

// Config controls audit_log.
type Config struct {
	// Path is the log file. Relative paths live under the data directory.
	Path string `yaml:"path"`
}

// Extension is the audit_log extension.
type Extension struct {
	config Config
	writer io.Writer
	file   *os.File
	mu     sync.Mutex
	now    func() time.Time
}

// New returns an extension writing JSON Lines to w.
func New(w io.Writer) *Extension {
	return &Extension{writer: w, now: time.Now}
}

// ModuleInfo implements core.Module.
func (*Extension) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:           core.ExtensionID("audit_log"),
		New:          func() core.Module { return &Extension{} },
		Capabilities: hook.Capabilities(hook.KindAfterInsert, hook.KindAfterUpdate),
		Description:  "Append every comment write to a JSON Lines file",
	}
}

// Configure implements core.Configurable.
func (e *Extension) Configure(node *yaml.Node) error {
	if err := node.Decode(&e.config); err != nil {
		return fmt.Errorf("audit_log: decode config: %w", err)
	}
	return nil
}

// Provision implements core.Provisioner.
func (e *Extension) Provision(ctx *core.AppContext) error {
	path := e.config.Path
	if path == "" {
		path = defaultFile
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(ctx.DataDir, path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("audit_log: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("audit_log: open %s: %w", path, err)
	}
	e.file = f
	e.writer = f
	e.now = time.Now
	return nil
}

// Stop implements core.Stopper.
func (e *Extension) Stop(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.file == nil {
		return nil
	}
	err := e.file.Close()
	e.file = nil
	e.writer = io.Discard
	return err
}

// AfterInsert implements hook.InsertObserver.
func (e *Extension) AfterInsert(_ context.Context, c comment.Comment) error {
	return e.write(record(comment.ActionCreate, c))
}

// AfterUpdate implements hook.UpdateObserver.
func (e *Extension) AfterUpdate(_ context.Context, old, updated comment.Comment) error {
	action := comment.ActionEdit
	if updated.Deleted() {
		action = comment.ActionDelete
	}
	r := record(action, updated)
	r.OldText = old.Text
	return e.write(r)
}

func record(action comment.Action, c comment.Comment) Record {
	return Record{
		Action:     action,
		CommentID:  c.ID,
		ThreadID:   c.ThreadID,
		ParentID:   c.ParentID,
		IdentityID: c.IdentityID,
		Text:       c.Text,
	}
}

func (e *Extension) write(r Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.now == nil {
		e.now = time.Now
	}
	r.Timestamp = e.now().UTC()
	if err := json.NewEncoder(e.writer).Encode(r); err != nil {
		return fmt.Errorf("audit_log: write: %w", err)
	}
	return nil
}
