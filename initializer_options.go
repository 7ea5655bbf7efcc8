package modcore

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/GoCodeAlone/modcore/config"
	"github.com/GoCodeAlone/modcore/permission"
	"github.com/GoCodeAlone/modcore/registry"
)

// Option configures an Initializer.
type Option func(*Initializer) error

// WithRegistry uses r instead of building a registry from the config.
func WithRegistry(r *registry.Registry) Option {
	return func(i *Initializer) error {
		if r == nil {
			return fmt.Errorf("%w: registry", ErrNilOption)
		}
		i.registry = r
		return nil
	}
}

// WithDiscoverer sets where component definitions come from. The default
// is DefaultCatalog.
func WithDiscoverer(d Discoverer) Option {
	return func(i *Initializer) error {
		if d == nil {
			return fmt.Errorf("%w: discoverer", ErrNilOption)
		}
		i.discoverer = d
		return nil
	}
}

// WithLogger sets the framework logger. It is filtered by the configured
// log level.
func WithLogger(l Logger) Option {
	return func(i *Initializer) error {
		i.logger = l
		return nil
	}
}

// WithConfig sets the framework settings. The default is config.Defaults().
func WithConfig(c *config.Config) Option {
	return func(i *Initializer) error {
		if c == nil {
			return fmt.Errorf("%w: config", ErrNilOption)
		}
		i.config = c
		return nil
	}
}

// WithConfigFiles loads the framework settings from the YAML and TOML files
// (either may be empty) over the defaults, then MODCORE_ environment
// variables, and validates the result.
func WithConfigFiles(yamlPath, tomlPath string) Option {
	return func(i *Initializer) error {
		c, _, err := config.Load(context.Background(), yamlPath, tomlPath)
		if err != nil {
			return err
		}
		i.config = c
		return nil
	}
}

// WithPermissionManager registers m as permission manager at startup. If m
// also implements permission.RoleManager it is registered as such.
func WithPermissionManager(m permission.Manager) Option {
	return func(i *Initializer) error {
		i.permissionManager = m
		return nil
	}
}

// WithRestAPIRegistry hands components marked MarkerRestAPI to rest.
func WithRestAPIRegistry(rest RestAPIRegistry) Option {
	return func(i *Initializer) error {
		i.rest = rest
		return nil
	}
}

// WithPrometheusRegisterer registers the metrics collector with reg.
func WithPrometheusRegisterer(reg prometheus.Registerer) Option {
	return func(i *Initializer) error {
		i.registerer = reg
		return nil
	}
}
