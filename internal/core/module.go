// Package core provides the module system foundation for sdiscuss: a
// compiled-in catalog of modules, the shared AppContext handed to them, and
// the App that loads, starts and stops them in a deterministic order.
package core

import "strings"

// ExtensionNamespace is the catalog namespace holding request-pipeline
// extensions. Everything else in the catalog (store, identity, render,
// gateway) is a driver or infrastructure module.
const ExtensionNamespace = "ext"

// ModuleID is a dotted, namespaced module identifier such as
// "store.sqlite" or "ext.validate_len".
type ModuleID string

// Namespace returns everything before the last dot.
func (id ModuleID) Namespace() string {
	s := string(id)
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		return s[:i]
	}
	return ""
}

// Name returns the last dot-separated segment.
func (id ModuleID) Name() string {
	s := string(id)
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// ExtensionID returns the catalog ID of the extension with the given
// configuration name.
func ExtensionID(name string) ModuleID {
	return ModuleID(ExtensionNamespace + "." + name)
}

// Module is implemented by everything that can be registered in the catalog.
type Module interface {
	ModuleInfo() ModuleInfo
}

// ModuleInfo describes a registered module.
type ModuleInfo struct {
	// ID is unique across the catalog.
	ID ModuleID

	// New returns a fresh, unconfigured instance.
	New func() Module

	// Capabilities lists the hook kinds an extension claims to implement.
	// Nil means "derive from the implemented interfaces"; an empty,
	// non-nil slice claims nothing.
	Capabilities []string

	// Description is a one-line summary shown by diagnostics.
	Description string
}
