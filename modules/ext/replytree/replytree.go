// Package replytree implements the reply_tree extension, which turns the
// flat comment list of a fetched thread into nested replies.
package replytree

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/sdiscuss/internal/core"
	"github.com/flemzord/sdiscuss/internal/hook"
	"github.com/flemzord/sdiscuss/internal/tree"
	"github.com/flemzord/sdiscuss/pkg/comment"
)

func init() {
	core.RegisterModule(&Extension{})
}

var (
	_ hook.ThreadEnricher = (*Extension)(nil)
	_ core.Configurable   = (*Extension)(nil)
	_ core.Validator      = (*Extension)(nil)
)

// Document keys added by reply_tree.
const (
	KeyReplies       = "replies"
	KeyTotalReplies  = "total_replies"
	KeyHiddenReplies = "hidden_replies"
)

// Config bounds the nested output. Zero means unlimited.
type Config struct {
	MaxDepth   int `yaml:"max_depth"`
	MaxReplies int `yaml:"max_replies"`
	MaxRoots   int `yaml:"max_roots"`
}

// Extension is the reply_tree extension.
type Extension struct {
	config Config
}

// New returns an extension with cfg.
func New(cfg Config) *Extension {
	return &Extension{config: cfg}
}

// ModuleInfo implements core.Module.
func (*Extension) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:           core.ExtensionID("reply_tree"),
		New:          func() core.Module { return &Extension{} },
		Capabilities: hook.Capabilities(hook.KindEnrichThread),
		Description:  "Nest thread comments into reply trees",
	}
}

// Configure implements core.Configurable.
func (e *Extension) Configure(node *yaml.Node) error {
	if err := node.Decode(&e.config); err != nil {
		return fmt.Errorf("reply_tree: decode config: %w", err)
	}
	return nil
}

// Validate implements core.Validator.
func (e *Extension) Validate() error {
	c := e.config
	if c.MaxDepth < 0 || c.MaxReplies < 0 || c.MaxRoots < 0 {
		return errors.New("reply_tree: limits must not be negative")
	}
	return nil
}

// EnrichThread implements hook.ThreadEnricher. The documents in entries
// are copied before replies are attached to them.
func (e *Extension) EnrichThread(_ context.Context, _ comment.Thread, entries []comment.Entry, out comment.Document) error {
	items := make([]tree.Item, len(entries))
	for i, en := range entries {
		items[i] = tree.Item{
			ID:       en.Raw.ID,
			ParentID: en.Raw.ParentID,
			Created:  en.Raw.Created,
			Value:    en.Doc,
		}
	}

	forest := tree.Build(items, tree.Limits{
		MaxDepth:   e.config.MaxDepth,
		MaxReplies: e.config.MaxReplies,
		MaxRoots:   e.config.MaxRoots,
	})

	out["comments"] = nest(forest.Roots)
	out[KeyTotalReplies] = forest.Total
	out[KeyHiddenReplies] = forest.HiddenRoots
	return nil
}

func nest(nodes []*tree.Node) []comment.Document {
	docs := make([]comment.Document, len(nodes))
	for i, n := range nodes {
		doc := maps.Clone(n.Value.(comment.Document))
		doc[KeyReplies] = nest(n.Children)
		doc[KeyTotalReplies] = n.Replies
		doc[KeyHiddenReplies] = n.Hidden
		docs[i] = doc
	}
	return docs
}
