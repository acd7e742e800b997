// Package markdown implements the render.markdown driver on goldmark with
// GitHub Flavored Markdown. Raw HTML in comments is never rendered.
package markdown

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
	"gopkg.in/yaml.v3"

	"github.com/flemzord/sdiscuss/internal/core"
	"github.com/flemzord/sdiscuss/internal/render"
)

func init() {
	core.RegisterModule(&Renderer{})
}

var (
	_ render.Renderer   = (*Renderer)(nil)
	_ core.Configurable = (*Renderer)(nil)
	_ core.Provisioner  = (*Renderer)(nil)
)

// Config holds render.markdown settings.
type Config struct {
	// HardWraps renders single newlines as <br>.
	HardWraps *bool `yaml:"hard_wraps"`
	// Linkify turns bare URLs into links.
	Linkify *bool `yaml:"linkify"`
}

// Renderer renders comment text as Markdown.
type Renderer struct {
	config Config
	md     goldmark.Markdown
}

// New returns a renderer with the given settings.
func New(cfg Config) *Renderer {
	r := &Renderer{config: cfg}
	r.build()
	return r
}

// ModuleInfo implements core.Module.
func (*Renderer) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:          "render.markdown",
		New:         func() core.Module { return &Renderer{} },
		Description: "GitHub Flavored Markdown renderer (raw HTML escaped)",
	}
}

// Configure implements core.Configurable.
func (r *Renderer) Configure(node *yaml.Node) error {
	if err := node.Decode(&r.config); err != nil {
		return fmt.Errorf("markdown: decode config: %w", err)
	}
	return nil
}

// Provision implements core.Provisioner.
func (r *Renderer) Provision(ctx *core.AppContext) error {
	r.build()
	return ctx.RegisterService(render.ServiceName, render.Renderer(r))
}

func (r *Renderer) build() {
	exts := []goldmark.Extender{extension.Table, extension.Strikethrough, extension.TaskList}
	if enabled(r.config.Linkify) {
		exts = append(exts, extension.Linkify)
	}

	// Never html.WithUnsafe: raw HTML and dangerous link schemes must
	// stay dropped.
	opts := []goldmark.Option{goldmark.WithExtensions(exts...)}
	if enabled(r.config.HardWraps) {
		opts = append(opts, goldmark.WithRendererOptions(html.WithHardWraps()))
	}
	r.md = goldmark.New(opts...)
}

// Render implements render.Renderer.
func (r *Renderer) Render(text string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(text), &buf); err != nil {
		return "", fmt.Errorf("markdown: %w", err)
	}
	return buf.String(), nil
}

func enabled(b *bool) bool {
	return b == nil || *b
}
