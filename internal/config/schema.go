// Package config handles YAML configuration loading, environment variable
// expansion, and structural validation for sdiscuss.
package config

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// DataDir holds the database and other module files. Defaults to
	// "./data".
	DataDir string `yaml:"data_dir,omitempty"`

	// Log controls the process logger.
	Log LogConfig `yaml:"log,omitempty"`

	// Drivers picks the single module serving each collaborator slot.
	Drivers Drivers `yaml:"drivers"`

	// Extensions is the enable-set and its precedence list.
	Extensions Extensions `yaml:"extensions"`

	// Identity configures the identity middleware.
	Identity IdentityConfig `yaml:"identity,omitempty"`

	// Telemetry configures trace export.
	Telemetry Telemetry `yaml:"telemetry,omitempty"`

	// Modules maps module IDs to their raw YAML configuration.
	// Keys must match registered module IDs (e.g. "ext.validate_len").
	Modules map[string]yaml.Node `yaml:"modules"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	// Level is debug, info, warn or error. Defaults to info.
	Level string `yaml:"level,omitempty"`
}

// Drivers names the module ID serving each collaborator.
type Drivers struct {
	Store    string `yaml:"store"`
	Identity string `yaml:"identity,omitempty"`
	Renderer string `yaml:"renderer,omitempty"`
}

// Extensions lists enabled extension names and their load precedence.
type Extensions struct {
	Enabled []string  `yaml:"enabled"`
	Order   OrderList `yaml:"order,omitempty"`
}

// IdentityConfig configures the identity middleware.
type IdentityConfig struct {
	// Exempt lists operations that skip identity resolution.
	Exempt []string `yaml:"exempt,omitempty"`
}

// Telemetry configures OpenTelemetry export.
type Telemetry struct {
	// OTLPEndpoint is the OTLP/HTTP collector (host:port). Empty disables
	// export.
	OTLPEndpoint string `yaml:"otlp_endpoint,omitempty"`
	// Insecure sends traces over plain HTTP.
	Insecure bool `yaml:"insecure,omitempty"`
	// SampleRatio is the fraction of traces kept. Defaults to 1.
	SampleRatio *float64 `yaml:"sample_ratio,omitempty"`
}

// OrderList is the precedence list. It decodes from either a YAML
// sequence or a comma-separated string.
type OrderList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (o *OrderList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*o = ParseOrder(node.Value)
		return nil
	case yaml.SequenceNode:
		var names []string
		if err := node.Decode(&names); err != nil {
			return err
		}
		out := make(OrderList, 0, len(names))
		for _, n := range names {
			if n = strings.TrimSpace(n); n != "" {
				out = append(out, n)
			}
		}
		*o = out
		return nil
	default:
		return fmt.Errorf("config: line %d: order must be a string or a list", node.Line)
	}
}

// ParseOrder splits a comma-separated precedence string, dropping blanks.
func ParseOrder(s string) OrderList {
	var out OrderList
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
