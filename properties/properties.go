// Package properties implements application properties: flat string keys
// loaded from key=value, YAML or TOML files, with ${env:NAME:-default} and
// ${key} substitution resolved at read time.
package properties

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/golobby/cast"
)

// maxDepth bounds nested substitution.
const maxDepth = 10

// Static errors for the properties package.
var (
	ErrNotFound          = errors.New("property not found")
	ErrSubstitutionDepth = errors.New("property substitution too deep")
	ErrUnterminated      = errors.New("unterminated ${ in property value")
	ErrUnsupportedFormat = errors.New("unsupported properties file format")
	ErrSyntax            = errors.New("invalid properties line")
)

// ApplicationProperties is a concurrent safe property store. Files loaded
// later override keys of files loaded earlier; Set overrides both.
type ApplicationProperties struct {
	mu        sync.RWMutex
	files     []string
	fromFiles map[string]string
	overrides map[string]string
	getenv    func(string) (string, bool)
}

// New creates an empty store reading the process environment.
func New() *ApplicationProperties {
	return &ApplicationProperties{
		fromFiles: make(map[string]string),
		overrides: make(map[string]string),
		getenv:    os.LookupEnv,
	}
}

// WithEnv replaces the environment lookup, mainly for tests.
func (p *ApplicationProperties) WithEnv(lookup func(string) (string, bool)) *ApplicationProperties {
	p.mu.Lock()
	p.getenv = lookup
	p.mu.Unlock()
	return p
}

// LoadFile parses path by extension (.yaml, .yml, .toml, anything else as
// key=value) and merges it over the current file values.
func (p *ApplicationProperties) LoadFile(path string) error {
	values, err := parseFile(path)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	maps.Copy(p.fromFiles, values)
	abs, _ := filepath.Abs(path)
	if !slices.Contains(p.files, abs) {
		p.files = append(p.files, abs)
	}
	return nil
}

// Reload re-reads every loaded file in load order and returns the keys whose
// raw value changed.
func (p *ApplicationProperties) Reload() ([]string, error) {
	p.mu.RLock()
	files := slices.Clone(p.files)
	p.mu.RUnlock()

	next := make(map[string]string)
	for _, f := range files {
		values, err := parseFile(f)
		if err != nil {
			return nil, err
		}
		maps.Copy(next, values)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	var changed []string
	for k, v := range next {
		if old, ok := p.fromFiles[k]; !ok || old != v {
			changed = append(changed, k)
		}
	}
	for k := range p.fromFiles {
		if _, ok := next[k]; !ok {
			changed = append(changed, k)
		}
	}
	p.fromFiles = next
	slices.Sort(changed)
	return changed, nil
}

// Files returns the absolute paths of loaded files.
func (p *ApplicationProperties) Files() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.files)
}

// Set overrides key.
func (p *ApplicationProperties) Set(key, value string) {
	p.mu.Lock()
	p.overrides[key] = value
	p.mu.Unlock()
}

// Keys returns every key, sorted.
func (p *ApplicationProperties) Keys() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	seen := maps.Clone(p.fromFiles)
	maps.Copy(seen, p.overrides)
	return slices.Sorted(maps.Keys(seen))
}

func (p *ApplicationProperties) raw(key string) (string, bool) {
	if v, ok := p.overrides[key]; ok {
		return v, true
	}
	v, ok := p.fromFiles[key]
	return v, ok
}

// Get returns the substituted value of key.
func (p *ApplicationProperties) Get(key string) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.raw(key)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return p.resolve(v, 0)
}

// GetOr returns the value of key, or def when it is missing or fails to
// resolve.
func (p *ApplicationProperties) GetOr(key, def string) string {
	v, err := p.Get(key)
	if err != nil {
		return def
	}
	return v
}

// Resolve substitutes placeholders in an arbitrary string.
func (p *ApplicationProperties) Resolve(s string) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.resolve(s, 0)
}

// resolve expands ${env:NAME}, ${env:NAME:-default}, ${key} and
// ${key:-default}. Defaults are resolved too.
func (p *ApplicationProperties) resolve(s string, depth int) (string, error) {
	if depth > maxDepth {
		return "", ErrSubstitutionDepth
	}
	if !strings.Contains(s, "${") {
		return s, nil
	}
	var b strings.Builder
	for {
		start := strings.Index(s, "${")
		if start < 0 {
			b.WriteString(s)
			break
		}
		b.WriteString(s[:start])
		end := matchingBrace(s, start+2)
		if end < 0 {
			return "", fmt.Errorf("%w: %q", ErrUnterminated, s)
		}
		expr := s[start+2 : end]
		value, err := p.expand(expr, depth)
		if err != nil {
			return "", err
		}
		b.WriteString(value)
		s = s[end+1:]
	}
	return b.String(), nil
}

func (p *ApplicationProperties) expand(expr string, depth int) (string, error) {
	name, def, hasDefault := strings.Cut(expr, ":-")

	if envName, isEnv := strings.CutPrefix(name, "env:"); isEnv {
		if v, ok := p.getenv(envName); ok {
			return v, nil
		}
	} else if v, ok := p.raw(name); ok {
		return p.resolve(v, depth+1)
	}

	if hasDefault {
		return p.resolve(def, depth+1)
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, name)
}

// matchingBrace returns the index of the '}' closing a placeholder opened
// before from, honouring nested placeholders in defaults.
func matchingBrace(s string, from int) int {
	level := 1
	for i := from; i < len(s); i++ {
		switch {
		case strings.HasPrefix(s[i:], "${"):
			level++
			i++
		case s[i] == '}':
			level--
			if level == 0 {
				return i
			}
		}
	}
	return -1
}

// Get returns key converted to T with golobby/cast.
func Get[T any](p *ApplicationProperties, key string) (T, error) {
	var zero T
	s, err := p.Get(key)
	if err != nil {
		return zero, err
	}
	t := reflect.TypeFor[T]()
	v, err := cast.FromType(s, t)
	if err != nil {
		return zero, fmt.Errorf("property %s: %w", key, err)
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || !rv.Type().ConvertibleTo(t) {
		return zero, fmt.Errorf("property %s: cannot convert %q to %s", key, s, t)
	}
	return rv.Convert(t).Interface().(T), nil
}

// GetOr is Get with a fallback for missing or unconvertible values.
func GetOr[T any](p *ApplicationProperties, key string, def T) T {
	v, err := Get[T](p, key)
	if err != nil {
		return def
	}
	return v
}
