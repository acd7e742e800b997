package core

import (
	"fmt"
	"math"
	"slices"
)

// Order resolves the load order of the enabled extensions against the
// catalog. See orderNames for the rules.
func Order(enabled, order []string) ([]string, error) {
	return orderNames(enabled, order, ExtensionNames())
}

// orderNames sorts the enabled set:
//
//   - names present in order come first, in that list's order;
//   - every other enabled name follows in discovery order.
//
// Names in order that are not enabled are ignored: the ordering list is not
// an enable list. An enabled name missing from discovery is an error.
// Duplicates collapse to their first occurrence.
func orderNames(enabled, order, discovery []string) ([]string, error) {
	discoveryIdx := make(map[string]int, len(discovery))
	for i, name := range discovery {
		if _, seen := discoveryIdx[name]; !seen {
			discoveryIdx[name] = i
		}
	}

	explicitIdx := make(map[string]int, len(order))
	for i, name := range order {
		if _, seen := explicitIdx[name]; !seen {
			explicitIdx[name] = i
		}
	}

	names := make([]string, 0, len(enabled))
	seen := make(map[string]struct{}, len(enabled))
	for _, name := range enabled {
		if _, dup := seen[name]; dup {
			continue
		}
		if _, ok := discoveryIdx[name]; !ok {
			return nil, fmt.Errorf("%w: extension %q", ErrUnknownModule, name)
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}

	key := func(name string) int {
		if i, ok := explicitIdx[name]; ok {
			return i
		}
		return math.MaxInt
	}

	// Pre-sorting by discovery index makes ties on the +inf key resolve in
	// discovery order regardless of how the enabled set was spelled.
	slices.SortFunc(names, func(a, b string) int {
		return discoveryIdx[a] - discoveryIdx[b]
	})
	slices.SortStableFunc(names, func(a, b string) int {
		ka, kb := key(a), key(b)
		switch {
		case ka < kb:
			return -1
		case ka > kb:
			return 1
		default:
			return 0
		}
	})
	return names, nil
}
