package action

import (
	"fmt"
	"reflect"
	"slices"
	"sync"

	"github.com/GoCodeAlone/modcore/filter"
	"github.com/GoCodeAlone/modcore/logging"
	"github.com/GoCodeAlone/modcore/registry"
)

// Registration property names set on every ResourceAction component.
const (
	PropResourceName = "resourceName"
	PropActionName   = "actionName"
)

// Manager keeps the action list of every resource and publishes each
// resource action as a component so it can be looked up by filter.
type Manager struct {
	registry *registry.Registry
	logger   logging.Logger

	mu    sync.RWMutex
	lists map[string]*ActionList
	regs  map[string][]*registry.Registration
}

// NewManager creates a manager publishing into r.
func NewManager(r *registry.Registry, logger logging.Logger) *Manager {
	return &Manager{
		registry: r,
		logger:   logging.OrNop(logger),
		lists:    make(map[string]*ActionList),
		regs:     make(map[string][]*registry.Registration),
	}
}

// RegisterActions stores list under resourceName and registers each of its
// actions in the component registry. Registering a resource again replaces
// its previous actions.
func (m *Manager) RegisterActions(resourceName string, list *ActionList) error {
	if list == nil {
		return ErrNilAction
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, reg := range m.regs[resourceName] {
		reg.Unregister()
	}
	delete(m.regs, resourceName)

	var regs []*registry.Registration
	for _, ra := range list.Actions() {
		cfg := registry.NewConfiguration().
			WithProperty(PropResourceName, resourceName).
			WithProperty(PropActionName, ra.Name())
		reg, err := registry.Register(m.registry, ra, cfg)
		if err != nil {
			for _, r := range regs {
				r.Unregister()
			}
			return fmt.Errorf("register action %s on %s: %w", ra.Name(), resourceName, err)
		}
		regs = append(regs, reg)
	}
	m.lists[resourceName] = list
	m.regs[resourceName] = regs
	m.logger.Debug("actions registered", "resource", resourceName, "actions", list.Names())
	return nil
}

// RegisterResource registers list under the list's own resource name.
func (m *Manager) RegisterResource(list *ActionList) error {
	return m.RegisterActions(list.ResourceName(), list)
}

// ActionList returns the list registered for resourceName.
func (m *Manager) ActionList(resourceName string) (*ActionList, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.lists[resourceName]
	return l, ok
}

// ActionListFor returns the list registered for the type of resource.
func (m *Manager) ActionListFor(resourceType reflect.Type) (*ActionList, bool) {
	return m.ActionList(TypeName(resourceType))
}

// Resources returns every registered resource name, sorted.
func (m *Manager) Resources() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.lists))
	for n := range m.lists {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Find resolves an action through the component registry.
func Find(r *registry.Registry, resourceName, actionName string) (*ResourceAction, error) {
	f := ActionFilter(r, resourceName, actionName)
	return registry.Find[*ResourceAction](r, f)
}

// ActionFilter returns the filter selecting one resource action.
func ActionFilter(r *registry.Registry, resourceName, actionName string) filter.Filter {
	return r.CreateFilter(PropResourceName, resourceName).AndProperty(PropActionName, actionName)
}
