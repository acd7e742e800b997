package mcptools

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/flemzord/sdiscuss/internal/hook/hooktest"
	"github.com/flemzord/sdiscuss/internal/pipeline"
	"github.com/flemzord/sdiscuss/modules/ext/moderation"
	"github.com/flemzord/sdiscuss/modules/store/sqlite"
	"github.com/flemzord/sdiscuss/pkg/comment"
)

func setup(t *testing.T, moderated bool) (*pipeline.Service, *moderation.Extension) {
	t.Helper()
	db, err := sqlite.Open(context.Background(), sqlite.Config{Path: filepath.Join(t.TempDir(), "mcp.db")})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if !moderated {
		return pipeline.New(db, hooktest.NewDispatcher(t), nil, nil), nil
	}
	mod := moderation.New(db, moderation.Config{})
	return pipeline.New(db, hooktest.NewDispatcher(t, mod), nil, nil), mod
}

// makeReq builds a mcp.CallToolRequest with the given arguments.
func makeReq(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

// resultText extracts the text content from a tool result.
func resultText(r *mcp.CallToolResult) string {
	if r == nil {
		return ""
	}
	for _, c := range r.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func post(t *testing.T, svc *pipeline.Service, text string) int64 {
	t.Helper()
	resp, err := svc.Create(context.Background(), "/page", &comment.Request{Fields: map[string]any{"text": text}})
	if err != nil {
		t.Fatal(err)
	}
	return resp.Body["id"].(int64)
}

func TestTools_PendingOnlyWithModeration(t *testing.T) {
	t.Parallel()

	svc, _ := setup(t, false)
	if n := len(Tools(svc, nil)); n != 3 {
		t.Errorf("tools without moderation = %d, want 3", n)
	}
	svc, mod := setup(t, true)
	names := map[string]bool{}
	for _, tool := range Tools(svc, mod) {
		names[tool.Definition().Name] = true
	}
	for _, want := range []string{"list_extensions", "fetch_thread", "view_comment", "list_pending"} {
		if !names[want] {
			t.Errorf("missing tool %s", want)
		}
	}
}

func TestThreadAndCommentTools(t *testing.T) {
	t.Parallel()

	svc, _ := setup(t, false)
	id := post(t, svc, "first!")

	res, err := (&ThreadTool{svc: svc}).Handle(context.Background(), makeReq(map[string]any{"thread": "/page"}))
	if err != nil || res.IsError {
		t.Fatalf("fetch_thread: %v %s", err, resultText(res))
	}
	if !strings.Contains(resultText(res), "first!") {
		t.Errorf("thread output = %s", resultText(res))
	}

	res, _ = (&ThreadTool{svc: svc}).Handle(context.Background(), makeReq(nil))
	if !res.IsError {
		t.Error("missing thread accepted")
	}

	res, _ = (&CommentTool{svc: svc}).Handle(context.Background(), makeReq(map[string]any{"id": float64(id)}))
	if res.IsError || !strings.Contains(resultText(res), `"id":`) {
		t.Errorf("view_comment = %s", resultText(res))
	}
	res, _ = (&CommentTool{svc: svc}).Handle(context.Background(), makeReq(map[string]any{"id": float64(id + 50)}))
	if !res.IsError {
		t.Error("missing comment not reported")
	}
}

func TestPendingTool(t *testing.T) {
	t.Parallel()

	svc, mod := setup(t, true)
	tool := &PendingTool{svc: svc, mod: mod}

	res, _ := tool.Handle(context.Background(), makeReq(nil))
	if !strings.Contains(resultText(res), "No comments") {
		t.Errorf("empty queue = %s", resultText(res))
	}

	post(t, svc, "please approve")
	post(t, svc, strings.Repeat("long ", 100))
	res, _ = tool.Handle(context.Background(), makeReq(map[string]any{"limit": float64(1)}))
	text := resultText(res)
	if !strings.Contains(text, "1 pending") || !strings.Contains(text, "please approve") {
		t.Errorf("pending output = %s", text)
	}
}

func TestExtensionsTool(t *testing.T) {
	t.Parallel()

	svc, _ := setup(t, true)
	res, _ := (&ExtensionsTool{svc: svc}).Handle(context.Background(), makeReq(nil))
	if !strings.Contains(resultText(res), "1. moderation [rewrite_insert, comment_filter]") {
		t.Errorf("extensions output = %s", resultText(res))
	}
}

func TestNewServer(t *testing.T) {
	t.Parallel()

	svc, mod := setup(t, true)
	if NewServer("test", svc, mod) == nil {
		t.Fatal("nil server")
	}
}
