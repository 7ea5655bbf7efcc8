package config

import (
	"github.com/GoCodeAlone/modcore/filter"
	"github.com/GoCodeAlone/modcore/interceptor"
	"github.com/GoCodeAlone/modcore/logging"
)

// EnvPrefix prefixes every environment variable read by the loader.
const EnvPrefix = "MODCORE"

// Config holds the framework settings.
type Config struct {
	// DefaultPriority is used for registrations without a configuration.
	DefaultPriority int `yaml:"defaultPriority" toml:"default_priority" env:"DEFAULT_PRIORITY" validate:"gte=0"`

	// InterceptorPolicy picks among several eligible interceptors.
	InterceptorPolicy string `yaml:"interceptorPolicy" toml:"interceptor_policy" env:"INTERCEPTOR_POLICY" validate:"oneof=first priority strict"`

	// FilterDialect selects the rendering of the default filter builder.
	FilterDialect string `yaml:"filterDialect" toml:"filter_dialect" env:"FILTER_DIALECT" validate:"oneof=token ldap"`

	// PropertiesFiles are loaded into the application properties component.
	PropertiesFiles []string `yaml:"propertiesFiles" toml:"properties_files" env:"PROPERTIES_FILES" validate:"dive,required"`

	// WatchProperties reloads properties files when they change.
	WatchProperties bool `yaml:"watchProperties" toml:"watch_properties" env:"WATCH_PROPERTIES"`

	LogLevel string `yaml:"logLevel" toml:"log_level" env:"LOG_LEVEL" validate:"oneof=debug info warn error"`

	// MetricsNamespace prefixes the Prometheus metric names.
	MetricsNamespace string `yaml:"metricsNamespace" toml:"metrics_namespace" env:"METRICS_NAMESPACE" validate:"required"`
}

// Defaults returns the built-in settings.
func Defaults() *Config {
	return &Config{
		DefaultPriority:   1,
		InterceptorPolicy: "first",
		FilterDialect:     "token",
		LogLevel:          "info",
		MetricsNamespace:  "modcore",
	}
}

// Policy converts InterceptorPolicy.
func (c *Config) Policy() interceptor.Policy {
	p, err := interceptor.ParsePolicy(c.InterceptorPolicy)
	if err != nil {
		return interceptor.FirstRegistered
	}
	return p
}

// Dialect converts FilterDialect.
func (c *Config) Dialect() filter.Dialect {
	d, err := filter.DialectByName(c.FilterDialect)
	if err != nil {
		return filter.Token
	}
	return d
}

// Level converts LogLevel.
func (c *Config) Level() logging.Level {
	return logging.ParseLevel(c.LogLevel)
}
