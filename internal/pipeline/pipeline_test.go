package pipeline_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/flemzord/sdiscuss/internal/core"
	"github.com/flemzord/sdiscuss/internal/hook"
	"github.com/flemzord/sdiscuss/internal/hook/hooktest"
	"github.com/flemzord/sdiscuss/internal/pipeline"
	"github.com/flemzord/sdiscuss/internal/store"
	"github.com/flemzord/sdiscuss/modules/store/sqlite"
	"github.com/flemzord/sdiscuss/pkg/comment"
)

type env struct {
	db  *sqlite.DB
	svc *pipeline.Service
	now time.Time
}

func newEnv(t *testing.T, exts ...core.Module) *env {
	t.Helper()

	db, err := sqlite.Open(context.Background(), sqlite.Config{Path: filepath.Join(t.TempDir(), "p.db")})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	e := &env{db: db, now: time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)}
	e.svc = pipeline.New(db, hooktest.NewDispatcher(t, exts...), nil, nil)
	e.svc.Clock = func() time.Time {
		e.now = e.now.Add(time.Second)
		return e.now
	}
	return e
}

func request(text string, identity int64) *comment.Request {
	req := &comment.Request{Fields: map[string]any{"text": text}}
	if identity != 0 {
		req.Identity = &comment.Identity{ID: identity}
	}
	return req
}

func (e *env) create(t *testing.T, thread, text string, identity int64) int64 {
	t.Helper()
	resp, err := e.svc.Create(context.Background(), thread, request(text, identity))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return resp.Body["id"].(int64)
}

func (e *env) identity(t *testing.T, token string) int64 {
	t.Helper()
	row, err := e.db.Insert(context.Background(), store.NewStatement(store.TableIdentity, map[string]any{"token": token}))
	if err != nil {
		t.Fatal(err)
	}
	return row["id"].(int64)
}

func (e *env) count(t *testing.T, table string) int {
	t.Helper()
	rows, err := e.db.Select(context.Background(), store.Query{Table: table})
	if err != nil {
		t.Fatal(err)
	}
	return len(rows)
}

func commentIDs(t *testing.T, doc comment.Document) []int64 {
	t.Helper()
	docs, ok := doc["comments"].([]comment.Document)
	if !ok {
		t.Fatalf("comments = %T", doc["comments"])
	}
	out := make([]int64, len(docs))
	for i, d := range docs {
		out[i] = d["id"].(int64)
	}
	return out
}

func TestCreate_ChainsValidators(t *testing.T) {
	t.Parallel()

	var sawA bool
	a := &hooktest.Validator{Base: hooktest.Base{Name: "a"}, Fn: func(_ context.Context, c comment.Comment, _ *comment.Request, _ comment.Action) (comment.Comment, error) {
		c.Attrs["marker_a"] = true
		return c, nil
	}}
	b := &hooktest.Validator{Base: hooktest.Base{Name: "b"}, Fn: func(_ context.Context, c comment.Comment, _ *comment.Request, _ comment.Action) (comment.Comment, error) {
		sawA = c.Attrs.Bool("marker_a")
		c.Attrs["marker_b"] = true
		return c, nil
	}}
	e := newEnv(t, a, b)

	id := e.create(t, "/chain", "hello", 0)

	if !sawA {
		t.Error("b did not observe a's marker")
	}
	rows, _ := e.db.Select(context.Background(), store.Query{Table: store.TableComment, Where: store.Eq("id", id)})
	c, _ := comment.CommentFromRow(rows[0])
	if !c.Attrs.Bool("marker_a") || !c.Attrs.Bool("marker_b") {
		t.Errorf("attrs = %v, want both markers", c.Attrs)
	}
}

func TestCreate_FoldsInsertRewrites(t *testing.T) {
	t.Parallel()

	first := &hooktest.InsertRewriter{Base: hooktest.Base{Name: "first"}, Fn: func(_ context.Context, ref *hook.Ref[store.Statement], _ comment.Comment) error {
		ref.Set(ref.Get().WithAttr("col_one", "1"))
		return nil
	}}
	second := &hooktest.InsertRewriter{Base: hooktest.Base{Name: "second"}, Fn: func(_ context.Context, ref *hook.Ref[store.Statement], _ comment.Comment) error {
		if _, ok := ref.Get().Attrs()["col_one"]; !ok {
			t.Error("second rewriter did not see first's column")
		}
		ref.Set(ref.Get().WithAttr("col_two", "2"))
		return nil
	}}
	e := newEnv(t, first, second)

	id := e.create(t, "/fold", "hello", 0)

	rows, _ := e.db.Select(context.Background(), store.Query{Table: store.TableComment, Where: store.Eq("id", id)})
	c, _ := comment.CommentFromRow(rows[0])
	if c.Attrs["col_one"] != "1" || c.Attrs["col_two"] != "2" {
		t.Errorf("attrs = %v", c.Attrs)
	}
}

func TestCreate_InvalidAbortsBeforeAnyWrite(t *testing.T) {
	t.Parallel()

	reject := &hooktest.Validator{Base: hooktest.Base{Name: "reject"}, Fn: func(context.Context, comment.Comment, *comment.Request, comment.Action) (comment.Comment, error) {
		return comment.Comment{}, errors.New("too short")
	}}
	rewrite := &hooktest.InsertRewriter{Base: hooktest.Base{Name: "rewrite"}, Fn: func(context.Context, *hook.Ref[store.Statement], comment.Comment) error {
		t.Error("rewrite ran after a failed validation")
		return nil
	}}
	e := newEnv(t, reject, rewrite)

	_, err := e.svc.Create(context.Background(), "/nope", request("hi", 0))
	if !errors.Is(err, comment.ErrRecordInvalid) {
		t.Fatalf("err = %v, want ErrRecordInvalid", err)
	}
	if n := e.count(t, store.TableComment); n != 0 {
		t.Errorf("%d comments inserted", n)
	}
	if n := e.count(t, store.TableThread); n != 0 {
		t.Errorf("%d threads inserted", n)
	}
}

func TestCreate_AfterInsertFailureKeepsRow(t *testing.T) {
	t.Parallel()

	obs := &hooktest.InsertObserver{Base: hooktest.Base{Name: "obs"}, Err: errors.New("mail down")}
	e := newEnv(t, obs)

	_, err := e.svc.Create(context.Background(), "/after", request("hello", 0))
	var fault *hook.ExtensionFault
	if !errors.As(err, &fault) || fault.Extension != "obs" {
		t.Fatalf("err = %v, want fault from obs", err)
	}
	if n := e.count(t, store.TableComment); n != 1 {
		t.Errorf("comments = %d, want the committed row", n)
	}
	if obs.Calls() != 1 || obs.Seen[0].ID == 0 {
		t.Errorf("observer saw %+v", obs.Seen)
	}
}

func TestCreate_ResponseHook(t *testing.T) {
	t.Parallel()

	h := &hooktest.ResponseHook{Base: hooktest.Base{Name: "cookie"}, Fn: func(_ context.Context, resp *comment.Response, raw comment.Comment, out comment.Document) (*comment.Response, error) {
		if out["id"] != raw.ID {
			t.Errorf("document id %v != raw id %d", out["id"], raw.ID)
		}
		resp.Header.Set("X-Comment", "yes")
		return resp, nil
	}}
	e := newEnv(t, h)

	resp, err := e.svc.Create(context.Background(), "/resp", request("hello", 0))
	if err != nil {
		t.Fatal(err)
	}
	if resp.Status != http.StatusCreated || resp.Header.Get("X-Comment") != "yes" {
		t.Errorf("resp = %d %v", resp.Status, resp.Header)
	}
}

func TestCreate_BaseChecks(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	other := e.create(t, "/other", "elsewhere", 0)

	tests := []struct {
		name   string
		thread string
		fields map[string]any
	}{
		{"missing text", "/t", map[string]any{}},
		{"text not string", "/t", map[string]any{"text": 3.0}},
		{"empty thread", " ", map[string]any{"text": "x"}},
		{"unknown parent", "/t", map[string]any{"text": "x", "parent_id": 999.0}},
		{"fractional parent", "/t", map[string]any{"text": "x", "parent_id": 1.5}},
		{"parent in other thread", "/t", map[string]any{"text": "x", "parent_id": float64(other)}},
	}
	for _, tt := range tests {
		_, err := e.svc.Create(context.Background(), tt.thread, &comment.Request{Fields: tt.fields})
		if !errors.Is(err, comment.ErrRecordInvalid) {
			t.Errorf("%s: err = %v, want ErrRecordInvalid", tt.name, err)
		}
	}

	parent := e.create(t, "/t2", "root", 0)
	resp, err := e.svc.Create(context.Background(), "/t2", &comment.Request{Fields: map[string]any{"text": "reply", "parent_id": float64(parent)}})
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	if resp.Body["parent_id"] != parent {
		t.Errorf("parent_id = %v, want %d", resp.Body["parent_id"], parent)
	}
}

func TestFetch_ANDsFilters(t *testing.T) {
	t.Parallel()

	p1 := &hooktest.Filter{Base: hooktest.Base{Name: "p1"}, Pred: store.Where(`text <> 'one'`)}
	p2 := &hooktest.Filter{Base: hooktest.Base{Name: "p2"}, Pred: store.Where(`text <> 'two'`)}
	e := newEnv(t, p1, p2)

	e.create(t, "/f", "one", 0)
	e.create(t, "/f", "two", 0)
	three := e.create(t, "/f", "three", 0)

	doc, err := e.svc.Fetch(context.Background(), "/f")
	if err != nil {
		t.Fatal(err)
	}
	if got := commentIDs(t, doc); len(got) != 1 || got[0] != three {
		t.Errorf("ids = %v, want [%d]", got, three)
	}
}

func TestFetch_NoFiltersReturnsAllButDeleted(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	owner := e.identity(t, "tok")
	a := e.create(t, "/all", "a", owner)
	b := e.create(t, "/all", "b", owner)
	c := e.create(t, "/all", "c", owner)

	if _, err := e.svc.Delete(context.Background(), b, request("", owner)); err != nil {
		t.Fatalf("delete: %v", err)
	}

	doc, err := e.svc.Fetch(context.Background(), "/all")
	if err != nil {
		t.Fatal(err)
	}
	got := commentIDs(t, doc)
	if len(got) != 2 || got[0] != a || got[1] != c {
		t.Errorf("ids = %v, want [%d %d]", got, a, c)
	}
	if doc["client_id"] != "/all" {
		t.Errorf("client_id = %v", doc["client_id"])
	}
}

func TestFetch_UnknownThread(t *testing.T) {
	t.Parallel()

	enriched := false
	th := &hooktest.ThreadEnricher{Base: hooktest.Base{Name: "stats"}, Fn: func(_ context.Context, raw comment.Thread, entries []comment.Entry, out comment.Document) error {
		enriched = true
		out["total"] = len(entries)
		return nil
	}}
	e := newEnv(t, th)

	doc, err := e.svc.Fetch(context.Background(), "/ghost")
	if err != nil {
		t.Fatal(err)
	}
	if got := commentIDs(t, doc); len(got) != 0 {
		t.Errorf("comments = %v", got)
	}
	if !enriched || doc["total"] != 0 {
		t.Errorf("thread enricher not applied: %v", doc)
	}
	if n := e.count(t, store.TableThread); n != 0 {
		t.Error("fetch created a thread")
	}
}

func TestSerialize_EscapesAndIsStable(t *testing.T) {
	t.Parallel()

	enr := &hooktest.CommentEnricher{Base: hooktest.Base{Name: "author"}, Fn: func(_ context.Context, _ comment.Comment, out comment.Document) error {
		out["author"] = "<b>Alice</b>"
		return nil
	}}
	e := newEnv(t, enr)
	id := e.create(t, "/esc", "<i>hi</i>", 0)

	first, err := e.svc.View(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if first["author"] != "&lt;b&gt;Alice&lt;/b&gt;" {
		t.Errorf("author = %v", first["author"])
	}
	if first["text"] != "&lt;i&gt;hi&lt;/i&gt;" {
		t.Errorf("text = %v", first["text"])
	}

	second, err := e.svc.View(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	b1, _ := first.Encode()
	b2, _ := second.Encode()
	if !bytes.Equal(b1, b2) {
		t.Errorf("serialization not stable:\n%s\n%s", b1, b2)
	}
}

func TestView_HiddenByFilterIsNotFound(t *testing.T) {
	t.Parallel()

	hide := &hooktest.Filter{Base: hooktest.Base{Name: "hide"}, Pred: store.Where("0")}
	e := newEnv(t, hide)
	id := e.create(t, "/hidden", "x", 0)

	if _, err := e.svc.View(context.Background(), id); !errors.Is(err, comment.ErrRecordNotFound) {
		t.Errorf("err = %v, want ErrRecordNotFound", err)
	}
}

func TestUpdateAndDelete_HiddenByFilterIsNotFound(t *testing.T) {
	t.Parallel()

	hide := &hooktest.Filter{Base: hooktest.Base{Name: "hide"}, Pred: store.Where("text <> ?", "held")}
	obs := &hooktest.UpdateObserver{Base: hooktest.Base{Name: "obs"}}
	e := newEnv(t, hide, obs)
	owner := e.identity(t, "owner")
	id := e.create(t, "/held", "held", owner)

	ctx := context.Background()
	if _, err := e.svc.Update(ctx, id, request("changed", owner)); !errors.Is(err, comment.ErrRecordNotFound) {
		t.Errorf("update: err = %v, want ErrRecordNotFound", err)
	}
	if _, err := e.svc.Delete(ctx, id, request("", owner)); !errors.Is(err, comment.ErrRecordNotFound) {
		t.Errorf("delete: err = %v, want ErrRecordNotFound", err)
	}

	rows, err := e.db.Select(ctx, store.Query{Table: store.TableComment, Where: store.Eq("id", id)})
	if err != nil {
		t.Fatal(err)
	}
	c, _ := comment.CommentFromRow(rows[0])
	if c.Text != "held" || !c.Active {
		t.Errorf("hidden row changed: %+v", c)
	}
	if len(obs.Seen) != 0 {
		t.Errorf("observer saw %d updates, want 0", len(obs.Seen))
	}
}

func TestUpdate(t *testing.T) {
	t.Parallel()

	var seenAction comment.Action
	v := &hooktest.Validator{Base: hooktest.Base{Name: "tag"}, Fn: func(_ context.Context, c comment.Comment, _ *comment.Request, action comment.Action) (comment.Comment, error) {
		seenAction = action
		if action == comment.ActionEdit {
			c.Attrs["edited"] = true
		}
		return c, nil
	}}
	obs := &hooktest.UpdateObserver{Base: hooktest.Base{Name: "obs"}}
	e := newEnv(t, v, obs)

	owner := e.identity(t, "owner")
	stranger := e.identity(t, "stranger")

	resp, err := e.svc.Create(context.Background(), "/edit", request("before", owner))
	if err != nil {
		t.Fatal(err)
	}
	id := resp.Body["id"].(int64)
	created := resp.Body["modified"]

	if _, err := e.svc.Update(context.Background(), id, request("x", 0)); !errors.Is(err, comment.ErrIdentityRequired) {
		t.Errorf("anonymous: err = %v", err)
	}
	if _, err := e.svc.Update(context.Background(), id, request("x", stranger)); !errors.Is(err, comment.ErrForbidden) {
		t.Errorf("stranger: err = %v", err)
	}
	if _, err := e.svc.Update(context.Background(), 4242, request("x", owner)); !errors.Is(err, comment.ErrRecordNotFound) {
		t.Errorf("missing: err = %v", err)
	}

	doc, err := e.svc.Update(context.Background(), id, request("after", owner))
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if doc["text"] != "after" || doc["modified"] == created {
		t.Errorf("doc = %v", doc)
	}
	if seenAction != comment.ActionEdit {
		t.Errorf("action = %q", seenAction)
	}
	if len(obs.Seen) != 1 || obs.Seen[0][0].Text != "before" || obs.Seen[0][1].Text != "after" {
		t.Fatalf("observer saw %+v", obs.Seen)
	}
	if !obs.Seen[0][1].Attrs.Bool("edited") {
		t.Errorf("edit attrs not merged: %v", obs.Seen[0][1].Attrs)
	}
}

func TestUpdate_RewriteSeesOldAndEdit(t *testing.T) {
	t.Parallel()

	rw := &hooktest.UpdateRewriter{Base: hooktest.Base{Name: "rw"}, Fn: func(_ context.Context, ref *hook.Ref[store.Statement], old, edit comment.Comment) error {
		ref.Set(ref.Get().WithAttr("previous", old.Text).WithAttr("next", edit.Text))
		return nil
	}}
	e := newEnv(t, rw)
	owner := e.identity(t, "o")
	id := e.create(t, "/rw", "v1", owner)

	if _, err := e.svc.Update(context.Background(), id, request("v2", owner)); err != nil {
		t.Fatal(err)
	}
	rows, _ := e.db.Select(context.Background(), store.Query{Table: store.TableComment, Where: store.Eq("id", id)})
	c, _ := comment.CommentFromRow(rows[0])
	if c.Attrs["previous"] != "v1" || c.Attrs["next"] != "v2" {
		t.Errorf("attrs = %v", c.Attrs)
	}
}

func TestDelete(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	owner := e.identity(t, "owner")
	id := e.create(t, "/del", "bye", owner)

	doc, err := e.svc.Delete(context.Background(), id, request("", owner))
	if err != nil {
		t.Fatal(err)
	}
	if doc["deleted"] != true || doc["text"] != "" {
		t.Errorf("doc = %v", doc)
	}

	rows, _ := e.db.Select(context.Background(), store.Query{Table: store.TableComment, Where: store.Eq("id", id)})
	c, _ := comment.CommentFromRow(rows[0])
	if c.Active || !c.Deleted() {
		t.Errorf("row = %+v, want inactive and deleted", c)
	}

	if _, err := e.svc.Delete(context.Background(), id, request("", owner)); !errors.Is(err, comment.ErrRecordNotFound) {
		t.Errorf("second delete: err = %v", err)
	}
}
