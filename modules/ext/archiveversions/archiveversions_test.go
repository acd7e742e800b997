package archiveversions

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/flemzord/sdiscuss/internal/hook/hooktest"
	"github.com/flemzord/sdiscuss/internal/pipeline"
	"github.com/flemzord/sdiscuss/internal/store"
	"github.com/flemzord/sdiscuss/modules/store/sqlite"
	"github.com/flemzord/sdiscuss/pkg/comment"
)

func TestEditsAreArchivedAndHidden(t *testing.T) {
	t.Parallel()

	db, err := sqlite.Open(context.Background(), sqlite.Config{Path: filepath.Join(t.TempDir(), "a.db")})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	row, err := db.Insert(ctx, store.NewStatement(store.TableIdentity, map[string]any{"token": "t"}))
	if err != nil {
		t.Fatal(err)
	}
	who := &comment.Identity{ID: row["id"].(int64)}

	e := New(db)
	svc := pipeline.New(db, hooktest.NewDispatcher(t, e), nil, nil)

	resp, err := svc.Create(ctx, "/a", &comment.Request{Fields: map[string]any{"text": "v1"}, Identity: who})
	if err != nil {
		t.Fatal(err)
	}
	id := resp.Body["id"].(int64)

	for _, text := range []string{"v2", "v3"} {
		if _, err := svc.Update(ctx, id, &comment.Request{Fields: map[string]any{"text": text}, Identity: who}); err != nil {
			t.Fatalf("update %s: %v", text, err)
		}
	}

	versions, err := e.Versions(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if len(versions) != 2 || versions[0].Text != "v1" || versions[1].Text != "v2" {
		t.Fatalf("versions = %+v", versions)
	}
	if versions[0].VersionOfID == nil || *versions[0].VersionOfID != id {
		t.Errorf("version_of_id = %v", versions[0].VersionOfID)
	}

	doc, err := svc.Fetch(ctx, "/a")
	if err != nil {
		t.Fatal(err)
	}
	comments := doc["comments"].([]comment.Document)
	if len(comments) != 1 || comments[0]["text"] != "v3" {
		t.Errorf("fetch = %v, want only the live v3", comments)
	}

	if _, err := svc.View(ctx, versions[0].ID); err == nil {
		t.Error("archived version is viewable")
	}
}
