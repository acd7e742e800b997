package tree

import (
	"testing"
	"time"
)

var t0 = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func item(id int64, parent int64, minute int) Item {
	it := Item{ID: id, Created: t0.Add(time.Duration(minute) * time.Minute)}
	if parent != 0 {
		it.ParentID = &parent
	}
	return it
}

func ids(nodes []*Node) []int64 {
	out := make([]int64, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID
	}
	return out
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// 1
// ├── 2
// │   └── 4
// │       └── 6
// └── 3
// 5
func sample() []Item {
	return []Item{
		item(6, 4, 6),
		item(1, 0, 1),
		item(3, 1, 3),
		item(2, 1, 2),
		item(5, 0, 5),
		item(4, 2, 4),
	}
}

func TestBuild_Unlimited(t *testing.T) {
	t.Parallel()

	f := Build(sample(), Limits{})
	if got := ids(f.Roots); !equalIDs(got, []int64{1, 5}) {
		t.Fatalf("roots = %v", got)
	}
	root := f.Roots[0]
	if root.Replies != 4 || root.Hidden != 0 {
		t.Errorf("root replies=%d hidden=%d, want 4 0", root.Replies, root.Hidden)
	}
	if got := ids(root.Children); !equalIDs(got, []int64{2, 3}) {
		t.Errorf("children = %v", got)
	}

	var order []int64
	Walk(f.Roots, func(n *Node) { order = append(order, n.ID) })
	if !equalIDs(order, []int64{1, 2, 4, 6, 3, 5}) {
		t.Errorf("walk = %v", order)
	}
}

func TestBuild_Limits(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		limits     Limits
		walk       []int64
		rootHidden int
		hiddenRoot int
	}{
		{"depth 2", Limits{MaxDepth: 2}, []int64{1, 2, 3, 5}, 2, 0},
		{"depth 1", Limits{MaxDepth: 1}, []int64{1, 5}, 4, 0},
		{"one reply", Limits{MaxReplies: 1}, []int64{1, 2, 4, 6, 5}, 1, 0},
		{"one root", Limits{MaxRoots: 1}, []int64{1, 2, 4, 6, 3}, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := Build(sample(), tt.limits)

			var order []int64
			Walk(f.Roots, func(n *Node) { order = append(order, n.ID) })
			if !equalIDs(order, tt.walk) {
				t.Errorf("walk = %v, want %v", order, tt.walk)
			}
			if f.Roots[0].Replies != 4 {
				t.Errorf("replies = %d, want 4 regardless of limits", f.Roots[0].Replies)
			}
			if f.Roots[0].Hidden != tt.rootHidden {
				t.Errorf("hidden = %d, want %d", f.Roots[0].Hidden, tt.rootHidden)
			}
			if f.HiddenRoots != tt.hiddenRoot || f.Total != 2 {
				t.Errorf("hidden roots = %d total = %d", f.HiddenRoots, f.Total)
			}
		})
	}
}

func TestBuild_OrphansBecomeRoots(t *testing.T) {
	t.Parallel()

	f := Build([]Item{item(2, 99, 2), item(1, 0, 1), item(3, 3, 3)}, Limits{})
	if got := ids(f.Roots); !equalIDs(got, []int64{1, 2, 3}) {
		t.Errorf("roots = %v", got)
	}
}

func TestBuild_StableOnEqualTimestamps(t *testing.T) {
	t.Parallel()

	items := []Item{item(9, 0, 0), item(3, 0, 0), item(7, 0, 0)}
	for range 5 {
		f := Build(items, Limits{})
		if got := ids(f.Roots); !equalIDs(got, []int64{3, 7, 9}) {
			t.Fatalf("roots = %v, want id order on ties", got)
		}
	}
}

func TestBuild_DoesNotMutateInput(t *testing.T) {
	t.Parallel()

	items := sample()
	Build(items, Limits{})
	if items[0].ID != 6 {
		t.Error("input slice reordered")
	}
}
