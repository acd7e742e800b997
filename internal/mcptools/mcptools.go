// Package mcptools exposes read-only views of a running comment pipeline
// as MCP tools, so an assistant can help moderators triage threads.
package mcptools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/flemzord/sdiscuss/internal/pipeline"
	"github.com/flemzord/sdiscuss/modules/ext/moderation"
	"github.com/flemzord/sdiscuss/pkg/comment"
)

const (
	defaultPending = 20
	maxPending     = 100
)

// Tool is one MCP tool.
type Tool interface {
	Definition() mcp.Tool
	Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

// NewServer returns an MCP server with every tool the pipeline supports.
// Pending-comment tools need mod; pass nil when moderation is off.
func NewServer(version string, svc *pipeline.Service, mod *moderation.Extension) *server.MCPServer {
	s := server.NewMCPServer(
		"sdiscuss",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)
	for _, t := range Tools(svc, mod) {
		s.AddTool(t.Definition(), t.Handle)
	}
	return s
}

// Tools lists the tools for svc and mod.
func Tools(svc *pipeline.Service, mod *moderation.Extension) []Tool {
	tools := []Tool{
		&ExtensionsTool{svc: svc},
		&ThreadTool{svc: svc},
		&CommentTool{svc: svc},
	}
	if mod != nil {
		tools = append(tools, &PendingTool{svc: svc, mod: mod})
	}
	return tools
}

// ExtensionsTool handles list_extensions.
type ExtensionsTool struct {
	svc *pipeline.Service
}

// Definition returns the MCP tool definition for list_extensions.
func (t *ExtensionsTool) Definition() mcp.Tool {
	return mcp.NewTool("list_extensions",
		mcp.WithDescription("List the loaded comment extensions in precedence order with their hook capabilities."),
	)
}

// Handle processes the list_extensions tool call.
func (t *ExtensionsTool) Handle(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	exts := t.svc.Dispatcher.Set().Extensions()
	if len(exts) == 0 {
		return mcp.NewToolResultText("No extensions loaded."), nil
	}
	var b strings.Builder
	for i, e := range exts {
		kinds := make([]string, len(e.Kinds))
		for j, k := range e.Kinds {
			kinds[j] = string(k)
		}
		fmt.Fprintf(&b, "%d. %s [%s]", i+1, e.Name, strings.Join(kinds, ", "))
		if e.Description != "" {
			fmt.Fprintf(&b, " - %s", e.Description)
		}
		b.WriteByte('\n')
	}
	return mcp.NewToolResultText(b.String()), nil
}

// ThreadTool handles fetch_thread.
type ThreadTool struct {
	svc *pipeline.Service
}

// Definition returns the MCP tool definition for fetch_thread.
func (t *ThreadTool) Definition() mcp.Tool {
	return mcp.NewTool("fetch_thread",
		mcp.WithDescription("Fetch a thread and its visible comments as the public API would return them."),
		mcp.WithString("thread",
			mcp.Required(),
			mcp.Description("Thread key, usually the page path"),
		),
	)
}

// Handle processes the fetch_thread tool call.
func (t *ThreadTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key := req.GetString("thread", "")
	if key == "" {
		return mcp.NewToolResultError("'thread' is required"), nil
	}
	doc, err := t.svc.Fetch(ctx, key)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("fetch failed: %v", err)), nil
	}
	return documentResult(doc)
}

// CommentTool handles view_comment.
type CommentTool struct {
	svc *pipeline.Service
}

// Definition returns the MCP tool definition for view_comment.
func (t *CommentTool) Definition() mcp.Tool {
	return mcp.NewTool("view_comment",
		mcp.WithDescription("Show one visible comment by id."),
		mcp.WithNumber("id",
			mcp.Required(),
			mcp.Description("Comment id"),
		),
	)
}

// Handle processes the view_comment tool call.
func (t *CommentTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := intArg(req, "id", 0)
	if id <= 0 {
		return mcp.NewToolResultError("'id' must be a positive number"), nil
	}
	doc, err := t.svc.View(ctx, int64(id))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("view failed: %v", err)), nil
	}
	return documentResult(doc)
}

// PendingTool handles list_pending.
type PendingTool struct {
	svc *pipeline.Service
	mod *moderation.Extension
}

// Definition returns the MCP tool definition for list_pending.
func (t *PendingTool) Definition() mcp.Tool {
	return mcp.NewTool("list_pending",
		mcp.WithDescription("List comments waiting for moderation, oldest first."),
		mcp.WithNumber("limit",
			mcp.Description(fmt.Sprintf("Max results (default: %d, max: %d)", defaultPending, maxPending)),
		),
	)
}

// Handle processes the list_pending tool call.
func (t *PendingTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := min(max(intArg(req, "limit", defaultPending), 1), maxPending)
	pending, err := t.mod.Pending(ctx, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("listing pending comments failed: %v", err)), nil
	}
	if len(pending) == 0 {
		return mcp.NewToolResultText("No comments are waiting for moderation."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d pending comments:\n\n", len(pending))
	for _, c := range pending {
		fmt.Fprintf(&b, "#%d (thread %d, %s)\n    %s\n\n",
			c.ID, c.ThreadID, comment.FormatTime(c.Created), truncate(c.Text, 300))
	}
	return mcp.NewToolResultText(b.String()), nil
}

func documentResult(doc comment.Document) (*mcp.CallToolResult, error) {
	body, err := doc.Encode()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding failed: %v", err)), nil
	}
	return mcp.NewToolResultText(string(body)), nil
}

// intArg extracts an integer argument from a tool request.
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
