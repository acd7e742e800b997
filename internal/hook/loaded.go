package hook

import (
	"fmt"
	"slices"

	"github.com/flemzord/sdiscuss/internal/core"
)

// Extension is one member of the loaded set.
type Extension struct {
	Name        string
	Description string
	Kinds       []Kind
	Impl        any
}

// LoadedSet is the ordered, instantiated extension set plus a per-kind
// index. It is built once before serving and never mutated, so readers
// need no locking.
type LoadedSet struct {
	exts   []Extension
	byKind map[Kind][]Extension
}

// NewLoadedSet checks every extension's declared capabilities against what
// it implements and indexes the set by kind, preserving load order.
//
// A nil Capabilities list is derived from the implemented interfaces. An
// explicit list must name only known kinds and must match the implemented
// interfaces exactly; any disagreement is a load error.
func NewLoadedSet(loaded []core.Loaded) (*LoadedSet, error) {
	s := &LoadedSet{byKind: make(map[Kind][]Extension)}

	for _, l := range loaded {
		kinds, err := resolveKinds(l)
		if err != nil {
			return nil, &core.PluginLoadError{Name: l.Name, Err: err}
		}
		ext := Extension{
			Name:        l.Name,
			Description: l.Info.Description,
			Kinds:       kinds,
			Impl:        l.Module,
		}
		s.exts = append(s.exts, ext)
		for _, k := range kinds {
			s.byKind[k] = append(s.byKind[k], ext)
		}
	}
	return s, nil
}

func resolveKinds(l core.Loaded) ([]Kind, error) {
	implemented := ImplementedKinds(l.Module)
	if l.Info.Capabilities == nil {
		return implemented, nil
	}

	declared := make([]Kind, 0, len(l.Info.Capabilities))
	for _, name := range l.Info.Capabilities {
		k := Kind(name)
		if !k.Valid() {
			return nil, fmt.Errorf("%w: unknown capability %q", ErrCapabilityMismatch, name)
		}
		if !Implements(l.Module, k) {
			return nil, fmt.Errorf("%w: declares %s but does not implement it", ErrCapabilityMismatch, k)
		}
		if !slices.Contains(declared, k) {
			declared = append(declared, k)
		}
	}
	for _, k := range implemented {
		if !slices.Contains(declared, k) {
			return nil, fmt.Errorf("%w: implements %s but does not declare it", ErrCapabilityMismatch, k)
		}
	}

	// Index in catalog order regardless of how the declaration was spelled.
	slices.SortFunc(declared, func(a, b Kind) int {
		return slices.Index(kindOrder, a) - slices.Index(kindOrder, b)
	})
	return declared, nil
}

// Extensions returns the loaded set in load order.
func (s *LoadedSet) Extensions() []Extension {
	return slices.Clone(s.exts)
}

// Names returns extension names in load order.
func (s *LoadedSet) Names() []string {
	names := make([]string, len(s.exts))
	for i, e := range s.exts {
		names[i] = e.Name
	}
	return names
}

// For returns the extensions implementing k, in load order.
func (s *LoadedSet) For(k Kind) []Extension {
	if s == nil {
		return nil
	}
	return s.byKind[k]
}

// Available returns the cataloged extensions that are not loaded, in
// discovery order.
func (s *LoadedSet) Available() []core.ModuleInfo {
	var out []core.ModuleInfo
	for _, info := range core.GetModulesByNamespace(core.ExtensionNamespace) {
		if !slices.Contains(s.Names(), info.ID.Name()) {
			out = append(out, info)
		}
	}
	return out
}
