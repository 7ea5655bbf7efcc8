// Package config loads the framework settings: defaults, then YAML and TOML
// files, then MODCORE_ environment variables, validated and with per field
// provenance.
package config

import (
	"context"
	"time"
)

// ConfigLoader defines the interface for loading configuration from various sources
type ConfigLoader interface {
	// Load fills config from every source in precedence order and validates it
	Load(ctx context.Context, config any) error

	// Reload repeats Load against fresh defaults
	Reload(ctx context.Context, config any) error

	// Validate validates the given configuration against its struct tags
	Validate(ctx context.Context, config any) error

	// GetProvenance returns which source last set fieldPath
	GetProvenance(ctx context.Context, fieldPath string) (*FieldProvenance, error)

	// GetSources returns information about all configured configuration sources
	GetSources(ctx context.Context) ([]*ConfigSource, error)
}

// FieldProvenance represents provenance information for a configuration field
type FieldProvenance struct {
	FieldPath    string    `json:"field_path"`
	Source       string    `json:"source"`        // "default", "yaml", "toml", "env"
	SourceDetail string    `json:"source_detail"` // file path or variable name
	Value        any       `json:"value"`
	Timestamp    time.Time `json:"timestamp"`
}

// ConfigSource represents a configuration source
type ConfigSource struct {
	Name       string     `json:"name"`
	Type       string     `json:"type"`     // "yaml", "toml", "env"
	Location   string     `json:"location"` // file path or env prefix
	Priority   int        `json:"priority"` // higher priority overrides lower
	Optional   bool       `json:"optional"` // missing files are skipped
	Loaded     bool       `json:"loaded"`
	LastLoaded *time.Time `json:"last_loaded,omitempty"`
	Error      string     `json:"error,omitempty"`
}
