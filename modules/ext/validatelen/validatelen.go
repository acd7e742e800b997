// Package validatelen implements the validate_len extension: comment text
// must fall within a configured length once trailing whitespace is removed.
package validatelen

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/sdiscuss/internal/core"
	"github.com/flemzord/sdiscuss/internal/hook"
	"github.com/flemzord/sdiscuss/pkg/comment"
)

func init() {
	core.RegisterModule(&Extension{})
}

var (
	_ hook.CommentValidator = (*Extension)(nil)
	_ core.Configurable     = (*Extension)(nil)
	_ core.Validator        = (*Extension)(nil)
)

const (
	defaultMin = 3
	defaultMax = 65535
)

// Config bounds comment length in runes.
type Config struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

// Extension is the validate_len extension.
type Extension struct {
	config Config
}

// New returns the extension with the given bounds. A zero Max takes the
// default; a zero Min accepts empty text.
func New(cfg Config) *Extension {
	e := &Extension{config: cfg}
	e.defaults()
	return e
}

// ModuleInfo implements core.Module.
func (*Extension) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:           core.ExtensionID("validate_len"),
		New:          func() core.Module { return New(Config{Min: defaultMin}) },
		Capabilities: hook.Capabilities(hook.KindValidateComment),
		Description:  "Reject comments shorter or longer than the configured bounds",
	}
}

// Configure implements core.Configurable. Keys left out keep their
// defaults; an explicit "min: 0" is honoured.
func (e *Extension) Configure(node *yaml.Node) error {
	cfg := Config{Min: defaultMin, Max: defaultMax}
	if err := node.Decode(&cfg); err != nil {
		return fmt.Errorf("validate_len: decode config: %w", err)
	}
	e.config = cfg
	e.defaults()
	return nil
}

func (e *Extension) defaults() {
	if e.config.Max == 0 {
		e.config.Max = defaultMax
	}
}

// Validate implements core.Validator.
func (e *Extension) Validate() error {
	if e.config.Min < 0 || e.config.Max < e.config.Min {
		return errors.New("validate_len: need 0 <= min <= max")
	}
	return nil
}

// ValidateComment implements hook.CommentValidator. Deletes are not
// checked: they blank the text on purpose.
func (e *Extension) ValidateComment(_ context.Context, c comment.Comment, _ *comment.Request, action comment.Action) (comment.Comment, error) {
	if action == comment.ActionDelete {
		return c, nil
	}
	n := utf8.RuneCountInString(strings.TrimRightFunc(c.Text, unicode.IsSpace))
	switch {
	case n < e.config.Min:
		return c, comment.Invalid("text must be at least %d characters", e.config.Min)
	case n > e.config.Max:
		return c, comment.Invalid("text must be at most %d characters", e.config.Max)
	}
	return c, nil
}
