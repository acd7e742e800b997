package config

import (
	"slices"
	"strings"
)

const (
	defaultDataDir  = "./data"
	defaultIdentity = "identity.null"
	extNamespace    = "ext."
)

// Defaults fills optional settings.
func (c *Config) Defaults() {
	if c.DataDir == "" {
		c.DataDir = defaultDataDir
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Drivers.Identity == "" {
		c.Drivers.Identity = defaultIdentity
	}
}

// Resolve returns the non-extension modules to load, in load order: the
// store, identity and renderer drivers first, then every other configured
// module sorted by ID. Extensions are loaded separately.
func Resolve(cfg *Config) []string {
	var ids []string
	for _, id := range []string{cfg.Drivers.Store, cfg.Drivers.Identity, cfg.Drivers.Renderer} {
		if id != "" && !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}

	var rest []string
	for id := range cfg.Modules {
		if strings.HasPrefix(id, extNamespace) || slices.Contains(ids, id) {
			continue
		}
		rest = append(rest, id)
	}
	slices.Sort(rest)
	return append(ids, rest...)
}
