// Package tree nests a flat comment list into reply trees with depth and
// count limits.
package tree

import (
	"cmp"
	"slices"
	"time"
)

// Item is one flat entry handed to Build.
type Item struct {
	ID       int64
	ParentID *int64
	Created  time.Time
	Value    any
}

// Limits bounds the produced forest. Zero means unlimited.
type Limits struct {
	// MaxDepth is the deepest level kept; roots are depth 1.
	MaxDepth int
	// MaxReplies caps the children kept under any node.
	MaxReplies int
	// MaxRoots caps the top-level nodes kept.
	MaxRoots int
}

// Node is an item with its kept children.
type Node struct {
	Item
	Depth    int
	Children []*Node

	// Replies counts every descendant, kept or not.
	Replies int
	// Hidden counts the descendants omitted by the limits.
	Hidden int
}

// Forest is the result of Build.
type Forest struct {
	Roots []*Node
	// Total is the number of root-level items before MaxRoots applied.
	Total int
	// HiddenRoots is Total minus the kept roots.
	HiddenRoots int
}

// Build nests items in (created, id) order. Items whose parent is absent
// become roots. Items caught in a parent cycle are unreachable from any
// root and dropped.
func Build(items []Item, limits Limits) Forest {
	sorted := slices.Clone(items)
	slices.SortStableFunc(sorted, func(a, b Item) int {
		if c := a.Created.Compare(b.Created); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	present := make(map[int64]bool, len(sorted))
	for _, it := range sorted {
		present[it.ID] = true
	}

	var roots []Item
	children := make(map[int64][]Item)
	for _, it := range sorted {
		if it.ParentID == nil || !present[*it.ParentID] || *it.ParentID == it.ID {
			roots = append(roots, it)
			continue
		}
		children[*it.ParentID] = append(children[*it.ParentID], it)
	}

	b := &builder{children: children, limits: limits, counts: make(map[int64]int)}

	f := Forest{Total: len(roots)}
	for i, it := range roots {
		if limits.MaxRoots > 0 && i >= limits.MaxRoots {
			f.HiddenRoots++
			continue
		}
		f.Roots = append(f.Roots, b.node(it, 1))
	}
	return f
}

type builder struct {
	children map[int64][]Item
	limits   Limits
	counts   map[int64]int
}

func (b *builder) node(it Item, depth int) *Node {
	n := &Node{Item: it, Depth: depth}

	kids := b.children[it.ID]
	n.Replies = b.descendants(it.ID)

	shown := 0
	if b.limits.MaxDepth == 0 || depth < b.limits.MaxDepth {
		for i, kid := range kids {
			if b.limits.MaxReplies > 0 && i >= b.limits.MaxReplies {
				break
			}
			child := b.node(kid, depth+1)
			n.Children = append(n.Children, child)
			shown += 1 + child.Replies - child.Hidden
		}
	}
	n.Hidden = n.Replies - shown
	return n
}

// descendants counts every item below id.
func (b *builder) descendants(id int64) int {
	if n, ok := b.counts[id]; ok {
		return n
	}
	total := 0
	for _, kid := range b.children[id] {
		total += 1 + b.descendants(kid.ID)
	}
	b.counts[id] = total
	return total
}

// Walk visits every kept node depth-first in order.
func Walk(roots []*Node, fn func(*Node)) {
	for _, n := range roots {
		fn(n)
		Walk(n.Children, fn)
	}
}
