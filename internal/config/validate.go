package config

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/flemzord/sdiscuss/internal/core"
	"github.com/flemzord/sdiscuss/internal/identity"
)

// Validate checks the structural validity of a Config and reports every
// problem at once. It verifies the version, that each driver names a
// registered module of the right namespace, that every enabled extension
// and configured module exists, and that exemptions name real operations.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	if _, err := ParseLevel(cfg.Log.Level); err != nil {
		errs = append(errs, err)
	}

	errs = append(errs, validateDriver("store", cfg.Drivers.Store, true)...)
	errs = append(errs, validateDriver("identity", cfg.Drivers.Identity, false)...)
	errs = append(errs, validateDriver("render", cfg.Drivers.Renderer, false)...)

	for _, name := range cfg.Extensions.Enabled {
		if _, ok := core.GetModule(string(core.ExtensionID(name))); !ok {
			errs = append(errs, fmt.Errorf("config: extensions.enabled: unknown extension %q", name))
		}
	}
	for _, name := range cfg.Extensions.Order {
		if !slices.Contains(cfg.Extensions.Enabled, name) {
			errs = append(errs, fmt.Errorf("config: extensions.order: %q is not enabled", name))
		}
	}

	for id := range cfg.Modules {
		if _, ok := core.GetModule(id); !ok {
			errs = append(errs, fmt.Errorf("config: unknown module %q", id))
			continue
		}
		if name, ok := strings.CutPrefix(id, extNamespace); ok && !slices.Contains(cfg.Extensions.Enabled, name) {
			errs = append(errs, fmt.Errorf("config: module %q is configured but not enabled", id))
		}
	}

	ops := identity.Operations()
	for _, op := range cfg.Identity.Exempt {
		if !slices.Contains(ops, op) {
			errs = append(errs, fmt.Errorf("config: identity.exempt: unknown operation %q (known: %s)", op, strings.Join(ops, ", ")))
		}
	}

	if r := cfg.Telemetry.SampleRatio; r != nil && (*r < 0 || *r > 1) {
		errs = append(errs, fmt.Errorf("config: telemetry.sample_ratio must be within [0, 1], got %v", *r))
	}

	return errors.Join(errs...)
}

func validateDriver(namespace, id string, required bool) []error {
	if id == "" {
		if required {
			return []error{fmt.Errorf("config: drivers.%s is required", namespace)}
		}
		return nil
	}
	info, ok := core.GetModule(id)
	if !ok {
		return []error{fmt.Errorf("config: drivers: unknown module %q", id)}
	}
	if info.ID.Namespace() != namespace {
		return []error{fmt.Errorf("config: drivers: %q is not a %s driver", id, namespace)}
	}
	return nil
}

// ParseLevel maps a configured level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("config: log.level: unknown level %q", s)
	}
	return l, nil
}
