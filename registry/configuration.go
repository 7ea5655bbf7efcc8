package registry

import (
	"maps"
	"sync"

	"github.com/GoCodeAlone/modcore/filter"
)

// DefaultPriority is the priority of components registered without an
// explicit configuration. Framework defaults use it so that applications
// override them with any higher value.
const DefaultPriority = 1

// Configuration is the priority and property bag attached to a registration.
// It is safe for concurrent use.
type Configuration struct {
	mu       sync.RWMutex
	priority int
	primary  bool
	props    map[string]any
}

// NewConfiguration returns a configuration with DefaultPriority and no
// properties.
func NewConfiguration() *Configuration {
	return &Configuration{priority: DefaultPriority, props: make(map[string]any)}
}

// WithPriority sets the priority and returns c for chaining.
func (c *Configuration) WithPriority(p int) *Configuration {
	c.SetPriority(p)
	return c
}

// WithPrimary marks c as primary and returns it for chaining.
func (c *Configuration) WithPrimary(primary bool) *Configuration {
	c.SetPrimary(primary)
	return c
}

// WithProperty adds a property and returns c for chaining.
func (c *Configuration) WithProperty(name string, value any) *Configuration {
	c.AddProperty(name, value)
	return c
}

func (c *Configuration) Priority() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.priority
}

func (c *Configuration) SetPriority(p int) {
	c.mu.Lock()
	c.priority = p
	c.mu.Unlock()
}

func (c *Configuration) Primary() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.primary
}

func (c *Configuration) SetPrimary(primary bool) {
	c.mu.Lock()
	c.primary = primary
	c.mu.Unlock()
}

// AddProperty sets name to value, replacing any previous value.
func (c *Configuration) AddProperty(name string, value any) {
	c.mu.Lock()
	if c.props == nil {
		c.props = make(map[string]any)
	}
	c.props[name] = value
	c.mu.Unlock()
}

// RemoveProperty deletes name and reports whether it was present.
func (c *Configuration) RemoveProperty(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.props[name]
	delete(c.props, name)
	return ok
}

func (c *Configuration) HasProperty(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.props[name]
	return ok
}

// Property returns the value of name.
func (c *Configuration) Property(name string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.props[name]
	return v, ok
}

// Properties returns a copy of the property bag.
func (c *Configuration) Properties() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.propsOrEmpty())
}

// Clone returns an independent copy.
func (c *Configuration) Clone() *Configuration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return &Configuration{priority: c.priority, primary: c.primary, props: maps.Clone(c.propsOrEmpty())}
}

// Matches evaluates f against the live properties. A nil filter matches.
func (c *Configuration) Matches(f filter.Filter) bool {
	if f == nil {
		return true
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return f.Matches(c.props)
}

func (c *Configuration) propsOrEmpty() map[string]any {
	if c.props == nil {
		return map[string]any{}
	}
	return c.props
}
