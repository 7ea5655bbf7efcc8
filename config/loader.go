package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"reflect"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/GoCodeAlone/modcore/feeders"
)

// Static errors for configuration package
var (
	ErrInvalidTarget      = errors.New("config target must be a non-nil pointer to struct")
	ErrValidation         = errors.New("configuration validation failed")
	ErrProvenanceNotFound = errors.New("no provenance recorded for field")
)

// Loader implements ConfigLoader. Sources apply in priority order, lowest
// first: defaults, YAML files, TOML files, environment.
type Loader struct {
	mu         sync.RWMutex
	sources    []*ConfigSource
	provenance map[string]*FieldProvenance
	validate   *validator.Validate
	defaults   func() any
}

// NewLoader creates a loader with the environment source for EnvPrefix.
func NewLoader() *Loader {
	l := &Loader{
		provenance: make(map[string]*FieldProvenance),
		validate:   validator.New(validator.WithRequiredStructEnabled()),
	}
	l.AddSource(&ConfigSource{Name: "environment", Type: feeders.SourceEnv, Location: EnvPrefix, Priority: 300})
	return l
}

// WithDefaults sets the factory used by Reload to reset the target.
func (l *Loader) WithDefaults(factory func() any) *Loader {
	l.defaults = factory
	return l
}

// AddYAMLFile adds a YAML file source.
func (l *Loader) AddYAMLFile(path string, optional bool) *Loader {
	l.AddSource(&ConfigSource{Name: "yaml-file", Type: feeders.SourceYAML, Location: path, Priority: 100, Optional: optional})
	return l
}

// AddTOMLFile adds a TOML file source.
func (l *Loader) AddTOMLFile(path string, optional bool) *Loader {
	l.AddSource(&ConfigSource{Name: "toml-file", Type: feeders.SourceTOML, Location: path, Priority: 200, Optional: optional})
	return l
}

// AddSource adds a configuration source to the loader
func (l *Loader) AddSource(source *ConfigSource) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sources = append(l.sources, source)
	// insertion sort keeps equal priorities in insertion order
	for i := len(l.sources) - 1; i > 0 && l.sources[i].Priority < l.sources[i-1].Priority; i-- {
		l.sources[i], l.sources[i-1] = l.sources[i-1], l.sources[i]
	}
}

// Load applies every source to config, then validates it. config should
// already hold defaults; their values are recorded as "default" provenance.
func (l *Loader) Load(ctx context.Context, config any) error {
	rv := reflect.ValueOf(config)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("%w, got %T", ErrInvalidTarget, config)
	}

	l.mu.Lock()
	l.provenance = make(map[string]*FieldProvenance)
	l.recordDefaults(rv.Elem(), "")
	sources := append([]*ConfigSource(nil), l.sources...)
	l.mu.Unlock()

	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := l.apply(src, config); err != nil {
			return err
		}
	}
	return l.Validate(ctx, config)
}

// Reload resets config to defaults, when a factory is set, and loads again.
func (l *Loader) Reload(ctx context.Context, config any) error {
	if l.defaults != nil {
		fresh := reflect.ValueOf(l.defaults())
		target := reflect.ValueOf(config)
		if fresh.Kind() == reflect.Pointer && target.Kind() == reflect.Pointer && fresh.Type() == target.Type() {
			target.Elem().Set(fresh.Elem())
		}
	}
	return l.Load(ctx, config)
}

func (l *Loader) apply(src *ConfigSource, config any) error {
	var feeder feeders.TrackingFeeder
	switch src.Type {
	case feeders.SourceYAML:
		feeder = feeders.NewYamlFeeder(src.Location)
	case feeders.SourceTOML:
		feeder = feeders.NewTomlFeeder(src.Location)
	case feeders.SourceEnv:
		feeder = feeders.NewEnvFeeder(src.Location)
	default:
		return fmt.Errorf("unsupported config source type %q", src.Type)
	}
	feeder.SetFieldTracker(&tracker{loader: l, source: src})

	err := feeder.Feed(config)
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()
	src.LastLoaded = &now
	if err != nil {
		src.Loaded = false
		src.Error = err.Error()
		if src.Optional && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config source %s (%s): %w", src.Name, src.Location, err)
	}
	src.Loaded = true
	src.Error = ""
	return nil
}

func (l *Loader) recordDefaults(rv reflect.Value, prefix string) {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if !sf.IsExported() {
			continue
		}
		path := sf.Name
		if prefix != "" {
			path = prefix + "." + sf.Name
		}
		fv := rv.Field(i)
		if fv.Kind() == reflect.Struct {
			l.recordDefaults(fv, path)
			continue
		}
		if fv.IsZero() {
			continue
		}
		l.provenance[path] = &FieldProvenance{
			FieldPath: path,
			Source:    "default",
			Value:     fv.Interface(),
			Timestamp: time.Now(),
		}
	}
}

// Validate validates the given configuration against its validate tags
func (l *Loader) Validate(_ context.Context, config any) error {
	if err := l.validate.Struct(config); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]error, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Errorf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("%w: %w", ErrValidation, errors.Join(msgs...))
		}
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return nil
}

// GetProvenance returns which source last set fieldPath
func (l *Loader) GetProvenance(_ context.Context, fieldPath string) (*FieldProvenance, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.provenance[fieldPath]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProvenanceNotFound, fieldPath)
	}
	cp := *p
	return &cp, nil
}

// GetSources returns the configured sources in application order
func (l *Loader) GetSources(_ context.Context) ([]*ConfigSource, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*ConfigSource, len(l.sources))
	for i, s := range l.sources {
		cp := *s
		out[i] = &cp
	}
	return out, nil
}

type tracker struct {
	loader *Loader
	source *ConfigSource
}

func (t *tracker) RecordFieldPopulation(fp feeders.FieldPopulation) {
	detail := fp.SourceKey
	if t.source.Type != feeders.SourceEnv {
		detail = t.source.Location + ":" + fp.SourceKey
	}
	t.loader.mu.Lock()
	t.loader.provenance[fp.FieldPath] = &FieldProvenance{
		FieldPath:    fp.FieldPath,
		Source:       fp.SourceType,
		SourceDetail: detail,
		Value:        fp.Value,
		Timestamp:    time.Now(),
	}
	t.loader.mu.Unlock()
}

// Load is the one call setup: defaults, the given YAML and TOML files by
// extension order (missing files are errors), then the environment.
func Load(ctx context.Context, yamlPath, tomlPath string) (*Config, *Loader, error) {
	l := NewLoader().WithDefaults(func() any { return Defaults() })
	if yamlPath != "" {
		l.AddYAMLFile(yamlPath, false)
	}
	if tomlPath != "" {
		l.AddTOMLFile(tomlPath, false)
	}
	cfg := Defaults()
	if err := l.Load(ctx, cfg); err != nil {
		return nil, l, err
	}
	return cfg, l, nil
}
