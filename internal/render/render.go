// Package render turns stored comment text into the HTML clients display.
package render

import (
	"html"
	"strings"
)

// ServiceName is the AppContext service a renderer driver publishes.
const ServiceName = "renderer"

// Renderer converts raw comment text to safe HTML. Implementations must
// never pass caller-supplied markup through unescaped.
type Renderer interface {
	Render(text string) (string, error)
}

// Escaping is the default renderer: HTML entity encoding with line breaks
// preserved.
type Escaping struct{}

// Render implements Renderer.
func (Escaping) Render(text string) (string, error) {
	return strings.ReplaceAll(html.EscapeString(text), "\n", "<br>"), nil
}

// Func adapts a plain function to Renderer.
type Func func(string) (string, error)

// Render implements Renderer.
func (f Func) Render(text string) (string, error) { return f(text) }
