package store

import (
	"errors"
	"testing"

	"github.com/flemzord/sdiscuss/pkg/comment"
)

func TestPredicate_ZeroIsTrue(t *testing.T) {
	t.Parallel()

	var p Predicate
	if !p.IsTrue() {
		t.Fatal("zero predicate should be always-true")
	}
	sql, args := p.SQL()
	if sql != "1" || args != nil {
		t.Errorf("SQL() = %q, %v", sql, args)
	}
}

func TestPredicate_Combinators(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		p        Predicate
		wantSQL  string
		wantArgs int
	}{
		{"eq", Eq("thread_id", 3), `"thread_id" = ?`, 1},
		{"eq nil", Eq("parent_id", nil), `"parent_id" IS NULL`, 0},
		{"and drops true", And(True(), Eq("a", 1), Predicate{}), `"a" = ?`, 1},
		{"and empty", And(), "1", 0},
		{"and two", And(Eq("a", 1), Eq("b", 2)), `("a" = ?) AND ("b" = ?)`, 2},
		{"or with true", Or(Eq("a", 1), True()), "1", 0},
		{"or two", Or(Eq("a", 1), Eq("b", 2)), `("a" = ?) OR ("b" = ?)`, 2},
		{"not", Not(Eq("a", 1)), `NOT ("a" = ?)`, 1},
		{"not true", Not(True()), "0", 0},
		{"in", In("id", 1, 2, 3), `"id" IN (?, ?, ?)`, 3},
		{"in empty", In("id"), "0", 0},
		{"attr not in", AttrNotIn("mod_mode", "pending"),
			`(json_extract(custom_json, '$.mod_mode') IS NULL OR json_extract(custom_json, '$.mod_mode') NOT IN (?))`, 1},
		{"attr eq", AttrEq("mod_mode", "pending"),
			`json_extract(custom_json, '$.mod_mode') = ?`, 1},
		{"attr not true", AttrIsNotTrue("archived"),
			`(json_extract(custom_json, '$.archived') IS NULL OR json_extract(custom_json, '$.archived') = 0)`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sql, args := tt.p.SQL()
			if sql != tt.wantSQL {
				t.Errorf("sql = %s, want %s", sql, tt.wantSQL)
			}
			if len(args) != tt.wantArgs {
				t.Errorf("args = %v, want %d", args, tt.wantArgs)
			}
		})
	}
}

func TestStatement_CopyOnWrite(t *testing.T) {
	t.Parallel()

	base := NewStatement(TableComment, map[string]any{"text": "hi"})
	withCol := base.With("active", false)
	withAttr := withCol.WithAttr("mod_mode", "pending")

	if _, ok := base.Values["active"]; ok {
		t.Error("With mutated the receiver")
	}
	if withCol.Attrs() != nil {
		t.Error("WithAttr mutated the receiver")
	}
	if withAttr.Values["active"] != false || withAttr.Values["text"] != "hi" {
		t.Errorf("values lost: %v", withAttr.Values)
	}
	if got, _ := withAttr.Attrs().String("mod_mode"); got != "pending" {
		t.Errorf("mod_mode = %q", got)
	}
}

func TestStatement_WithAttrKeepsExisting(t *testing.T) {
	t.Parallel()

	s := NewStatement(TableComment, map[string]any{AttrsColumn: comment.Attrs{"author": "Alice"}})
	s2 := s.WithAttr("archived", true)

	attrs := s2.Attrs()
	if attrs["author"] != "Alice" || attrs["archived"] != true {
		t.Errorf("attrs = %v", attrs)
	}
	if _, ok := s.Attrs()["archived"]; ok {
		t.Error("original attrs were mutated")
	}
}

func TestCheckIdentifier(t *testing.T) {
	t.Parallel()

	for _, ok := range []string{"comment", "custom_json", "_x1"} {
		if err := CheckIdentifier(ok); err != nil {
			t.Errorf("CheckIdentifier(%q) = %v", ok, err)
		}
	}
	for _, bad := range []string{"", "1abc", "a b", `a";drop`, "a-b"} {
		if err := CheckIdentifier(bad); !errors.Is(err, ErrInvalidIdentifier) {
			t.Errorf("CheckIdentifier(%q) = %v, want ErrInvalidIdentifier", bad, err)
		}
	}
}
