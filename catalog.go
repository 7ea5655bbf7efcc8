package modcore

import (
	"reflect"
	"slices"
	"sync"
)

// Marker tags a component definition for a discovery pass.
type Marker string

const (
	// MarkerFrameworkComponent selects components the initializer
	// instantiates and registers.
	MarkerFrameworkComponent Marker = "framework-component"
	// MarkerAccessControl selects resource types whose action lists and
	// default role access are registered at startup.
	MarkerAccessControl Marker = "access-control"
	// MarkerRestAPI selects components handed to the RestAPIRegistry. It
	// implies MarkerFrameworkComponent.
	MarkerRestAPI Marker = "rest-api"
)

// ComponentDefinition describes a component to the initializer.
type ComponentDefinition struct {
	// Name identifies the component in logs and errors.
	Name string
	// Type is the component type. For access-control resources it is the
	// resource type; New may then be nil.
	Type reflect.Type
	// New constructs the component.
	New func() (any, error)
	// Services lists the service types to register under. Empty means
	// every known service interface the component implements.
	Services []reflect.Type
	Priority int
	Primary  bool
	// Properties are copied into the registration configuration.
	Properties map[string]any
	// Markers defaults to MarkerFrameworkComponent. MarkerRestAPI implies it.
	Markers []Marker
}

// HasMarker reports whether d carries m.
func (d ComponentDefinition) HasMarker(m Marker) bool {
	if len(d.Markers) == 0 {
		return m == MarkerFrameworkComponent
	}
	if m == MarkerFrameworkComponent && slices.Contains(d.Markers, MarkerRestAPI) {
		return true
	}
	return slices.Contains(d.Markers, m)
}

// Discoverer lists the component definitions carrying a marker.
type Discoverer interface {
	Discover(marker Marker) ([]ComponentDefinition, error)
}

// ServiceSet is implemented by discoverers that know the service interfaces
// used for inference.
type ServiceSet interface {
	ServiceInterfaces() []reflect.Type
}

// Catalog is an index of component definitions filled at init time by
// Define calls.
type Catalog struct {
	mu          sync.RWMutex
	definitions []ComponentDefinition
	services    []reflect.Type
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog { return &Catalog{} }

// DefaultCatalog is the catalog used by Define and by initializers without
// a discoverer.
var DefaultCatalog = NewCatalog()

// Add appends d.
func (c *Catalog) Add(d ComponentDefinition) {
	c.mu.Lock()
	c.definitions = append(c.definitions, d)
	c.mu.Unlock()
}

// AddService makes t available to service inference.
func (c *Catalog) AddService(t reflect.Type) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !slices.Contains(c.services, t) {
		c.services = append(c.services, t)
	}
}

// Discover returns the definitions carrying marker in definition order.
func (c *Catalog) Discover(marker Marker) ([]ComponentDefinition, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []ComponentDefinition
	for _, d := range c.definitions {
		if d.HasMarker(marker) {
			out = append(out, d)
		}
	}
	return out, nil
}

// ServiceInterfaces returns the registered service interfaces.
func (c *Catalog) ServiceInterfaces() []reflect.Type {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.services)
}

// Define adds d to DefaultCatalog. Intended for package init functions.
func Define(d ComponentDefinition) { DefaultCatalog.Add(d) }

// DefineComponent is Define with Type and New derived from a constructor.
func DefineComponent[T any](name string, newFn func() (T, error), services ...reflect.Type) {
	Define(ComponentDefinition{
		Name:     name,
		Type:     reflect.TypeFor[T](),
		New:      func() (any, error) { return newFn() },
		Services: services,
	})
}

// RegisterServiceInterface makes the interface I available to service
// inference in DefaultCatalog.
func RegisterServiceInterface[I any]() {
	DefaultCatalog.AddService(reflect.TypeFor[I]())
}

// Service returns the reflect.Type of I for ComponentDefinition.Services.
func Service[I any]() reflect.Type { return reflect.TypeFor[I]() }

// StaticDiscoverer serves a fixed definition list, mainly in tests.
type StaticDiscoverer struct {
	Definitions []ComponentDefinition
	Services    []reflect.Type
}

func (s *StaticDiscoverer) Discover(marker Marker) ([]ComponentDefinition, error) {
	var out []ComponentDefinition
	for _, d := range s.Definitions {
		if d.HasMarker(marker) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *StaticDiscoverer) ServiceInterfaces() []reflect.Type { return s.Services }

// inferServices returns the known interfaces implemented by t, or t itself.
func inferServices(t reflect.Type, known []reflect.Type) []reflect.Type {
	var out []reflect.Type
	for _, iface := range known {
		if iface.Kind() == reflect.Interface && t.Implements(iface) {
			out = append(out, iface)
		}
	}
	if len(out) == 0 {
		out = append(out, t)
	}
	return out
}
