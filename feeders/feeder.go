// Package feeders provides configuration feeders reading YAML files, TOML
// files and environment variables into configuration structs. Every feeder
// can report which fields it populated to a FieldTracker, which is how the
// config loader builds field provenance.
package feeders

import (
	"reflect"
	"strings"
	"sync"
)

// Feeder populates a pointer to a struct from one source.
type Feeder interface {
	Feed(structure any) error
}

// Source types reported in FieldPopulation.
const (
	SourceYAML = "yaml"
	SourceTOML = "toml"
	SourceEnv  = "env"
)

// FieldPopulation records a single field population.
type FieldPopulation struct {
	FieldPath  string // dotted Go field path, e.g. "Interceptors.Policy"
	FieldName  string
	FieldType  string
	FeederType string
	SourceType string
	SourceKey  string // key in the source, e.g. "MODCORE_LOG_LEVEL"
	Value      any
}

// FieldTracker receives field populations from feeders.
type FieldTracker interface {
	RecordFieldPopulation(fp FieldPopulation)
}

// TrackingFeeder is a Feeder that reports populations.
type TrackingFeeder interface {
	Feeder
	SetFieldTracker(tracker FieldTracker)
}

// DefaultFieldTracker keeps populations in memory.
type DefaultFieldTracker struct {
	mu          sync.Mutex
	populations []FieldPopulation
}

// NewDefaultFieldTracker creates an empty tracker.
func NewDefaultFieldTracker() *DefaultFieldTracker {
	return &DefaultFieldTracker{}
}

func (t *DefaultFieldTracker) RecordFieldPopulation(fp FieldPopulation) {
	t.mu.Lock()
	t.populations = append(t.populations, fp)
	t.mu.Unlock()
}

// FieldPopulations returns every recorded population in order.
func (t *DefaultFieldTracker) FieldPopulations() []FieldPopulation {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]FieldPopulation, len(t.populations))
	copy(out, t.populations)
	return out
}

// trackMap walks the struct type alongside decoded file data and records a
// population for every field whose key is present.
func trackMap(tracker FieldTracker, feederType, source string, rv reflect.Value, data map[string]any, tagKey, pathPrefix, keyPrefix string) {
	if tracker == nil {
		return
	}
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if !sf.IsExported() {
			continue
		}
		key := tagName(sf, tagKey)
		if key == "-" {
			continue
		}
		raw, ok := lookupKey(data, key)
		if !ok {
			continue
		}
		path := joinPath(pathPrefix, sf.Name)
		sourceKey := joinPath(keyPrefix, key)
		fv := rv.Field(i)
		if nested, isMap := raw.(map[string]any); isMap && fv.Kind() == reflect.Struct {
			trackMap(tracker, feederType, source, fv, nested, tagKey, path, sourceKey)
			continue
		}
		tracker.RecordFieldPopulation(FieldPopulation{
			FieldPath:  path,
			FieldName:  sf.Name,
			FieldType:  sf.Type.String(),
			FeederType: feederType,
			SourceType: source,
			SourceKey:  sourceKey,
			Value:      fv.Interface(),
		})
	}
}

// tagName returns the key of sf under tagKey, defaulting to the field name.
func tagName(sf reflect.StructField, tagKey string) string {
	tag := sf.Tag.Get(tagKey)
	if tag == "" {
		return sf.Name
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		return sf.Name
	}
	return name
}

// lookupKey finds key in data, falling back to a case-insensitive match as
// the YAML and TOML decoders do for untagged fields.
func lookupKey(data map[string]any, key string) (any, bool) {
	if v, ok := data[key]; ok {
		return v, true
	}
	for k, v := range data {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

func structPointer(structure any) (reflect.Value, bool) {
	rv := reflect.ValueOf(structure)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return reflect.Value{}, false
	}
	return rv.Elem(), true
}
