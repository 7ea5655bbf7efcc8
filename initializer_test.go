package modcore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoCodeAlone/modcore/action"
	"github.com/GoCodeAlone/modcore/config"
	"github.com/GoCodeAlone/modcore/internal/testutil"
	"github.com/GoCodeAlone/modcore/lifecycle"
	"github.com/GoCodeAlone/modcore/metrics"
	"github.com/GoCodeAlone/modcore/permission"
	"github.com/GoCodeAlone/modcore/permission/memory"
	"github.com/GoCodeAlone/modcore/registry"
)

type Clock interface {
	Now() string
}

type fixedClock struct{ at string }

func (c *fixedClock) Now() string { return c.at }

type Reporter interface {
	Report() string
}

type reporter struct {
	Clock Clock `inject:"startup"`

	mu          sync.Mutex
	activated   bool
	deactivated bool
}

func (r *reporter) Report() string {
	if r.Clock == nil {
		return "no clock"
	}
	return "report at " + r.Clock.Now()
}

func (r *reporter) OnActivate(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activated = true
	return nil
}

func (r *reporter) OnDeactivate(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deactivated = true
	return nil
}

type Document struct {
	Owner string
}

func (Document) AccessControl() action.AccessControl {
	return action.AccessControl{
		AvailableActions: []string{"read", "write", "publish"},
		RoleAccess: []action.RoleAccess{
			{Role: "editor", Actions: []string{"read", "write"}},
			{Role: "viewer", Actions: []string{"read"}},
		},
	}
}

type Invoice struct{}

func clockDefinition() ComponentDefinition {
	return ComponentDefinition{
		Name:     "clock",
		Type:     reflect.TypeFor[*fixedClock](),
		New:      func() (any, error) { return &fixedClock{at: "noon"}, nil },
		Services: []reflect.Type{Service[Clock]()},
	}
}

func reporterDefinition(r *reporter) ComponentDefinition {
	return ComponentDefinition{
		Name:     "reporter",
		Type:     reflect.TypeFor[*reporter](),
		New:      func() (any, error) { return r, nil },
		Services: []reflect.Type{Service[Reporter]()},
		Priority: 5,
		Markers:  []Marker{MarkerFrameworkComponent, MarkerRestAPI},
	}
}

func accessControlDefinitions() []ComponentDefinition {
	return []ComponentDefinition{
		{Name: "document", Type: reflect.TypeFor[*Document](), Markers: []Marker{MarkerAccessControl}},
		{Name: "invoice", Type: reflect.TypeFor[Invoice](), Markers: []Marker{MarkerAccessControl}},
	}
}

type recordingRest struct {
	mu           sync.Mutex
	registered   []string
	unregistered []string
	fail         error
}

func (r *recordingRest) RegisterRestAPI(_ context.Context, def ComponentDefinition, _ any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.registered = append(r.registered, def.Name)
	return nil
}

func (r *recordingRest) UnregisterRestAPI(_ context.Context, def ComponentDefinition, _ any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unregistered = append(r.unregistered, def.Name)
	return nil
}

func newTestInitializer(t *testing.T, defs []ComponentDefinition, opts ...Option) *Initializer {
	t.Helper()
	base := []Option{
		WithLogger(testutil.NewLogger(t)),
		WithDiscoverer(&StaticDiscoverer{Definitions: defs}),
	}
	boot, err := NewInitializer(append(base, opts...)...)
	require.NoError(t, err)
	return boot
}

func TestInitializer_StartRegistersAndInjects(t *testing.T) {
	rep := &reporter{}
	boot := newTestInitializer(t, []ComponentDefinition{clockDefinition(), reporterDefinition(rep)})
	ctx := context.Background()

	require.NoError(t, boot.Start(ctx))
	t.Cleanup(func() { _ = boot.Stop(ctx) })

	got, err := registry.Find[Reporter](boot.Registry(), nil)
	require.NoError(t, err)
	assert.Equal(t, "report at noon", got.Report())
	assert.True(t, rep.activated)

	regs, err := boot.Registry().Registrations(Service[Reporter](), nil)
	require.NoError(t, err)
	require.Len(t, regs, 1)
	assert.Equal(t, 5, regs[0].Priority())
}

func TestInitializer_FrameworkServices(t *testing.T) {
	boot := newTestInitializer(t, nil)
	ctx := context.Background()
	require.NoError(t, boot.Start(ctx))
	t.Cleanup(func() { _ = boot.Stop(ctx) })

	r := boot.Registry()
	m, ok := registry.Lookup[*action.Manager](r, nil)
	require.True(t, ok)
	assert.Same(t, boot.Actions(), m)

	_, ok = registry.Lookup[*permission.Util](r, nil)
	assert.True(t, ok)

	events, ok := registry.Lookup[*lifecycle.Dispatcher](r, nil)
	assert.True(t, ok)
	assert.Same(t, boot.Events(), events)

	collector, ok := registry.Lookup[*metrics.Collector](r, nil)
	assert.True(t, ok)
	assert.Same(t, boot.Metrics(), collector)
}

func TestInitializer_InferredServices(t *testing.T) {
	def := ComponentDefinition{
		Name: "clock",
		Type: reflect.TypeFor[*fixedClock](),
		New:  func() (any, error) { return &fixedClock{at: "dawn"}, nil },
	}
	boot := newTestInitializer(t, nil, WithDiscoverer(&StaticDiscoverer{
		Definitions: []ComponentDefinition{def},
		Services:    []reflect.Type{Service[Clock](), Service[Reporter]()},
	}))
	ctx := context.Background()
	require.NoError(t, boot.Start(ctx))
	t.Cleanup(func() { _ = boot.Stop(ctx) })

	c, err := registry.Find[Clock](boot.Registry(), nil)
	require.NoError(t, err)
	assert.Equal(t, "dawn", c.Now())

	_, ok := registry.Lookup[Reporter](boot.Registry(), nil)
	assert.False(t, ok)
}

func TestInitializer_StartupFailures(t *testing.T) {
	tests := []struct {
		name    string
		def     ComponentDefinition
		wantErr error
	}{
		{
			name:    "no constructor",
			def:     ComponentDefinition{Name: "broken", Type: reflect.TypeFor[*fixedClock]()},
			wantErr: ErrNoConstructor,
		},
		{
			name: "constructor error",
			def: ComponentDefinition{Name: "broken", New: func() (any, error) {
				return nil, errors.New("boom")
			}},
			wantErr: ErrConstructorFailed,
		},
		{
			name: "constructor returned nil",
			def: ComponentDefinition{Name: "broken", New: func() (any, error) {
				var c *fixedClock
				return c, nil
			}},
			wantErr: ErrConstructorReturnedNil,
		},
		{
			name: "service not implemented",
			def: ComponentDefinition{
				Name:     "broken",
				New:      func() (any, error) { return &fixedClock{}, nil },
				Services: []reflect.Type{Service[Reporter]()},
			},
			wantErr: ErrServiceNotImplemented,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep := &reporter{}
			boot := newTestInitializer(t, []ComponentDefinition{clockDefinition(), reporterDefinition(rep), tt.def})
			ctx := context.Background()

			err := boot.Start(ctx)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			var se *StartupError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, "broken", se.Component)

			_, ok := registry.Lookup[Reporter](boot.Registry(), nil)
			assert.False(t, ok, "started components are rolled back")
			_, ok = registry.Lookup[*action.Manager](boot.Registry(), nil)
			assert.False(t, ok, "framework services are rolled back")
			assert.True(t, rep.deactivated)
			assert.ErrorIs(t, boot.Stop(ctx), ErrNotStarted)
		})
	}
}

func TestInitializer_StartStopState(t *testing.T) {
	rep := &reporter{}
	rest := &recordingRest{}
	boot := newTestInitializer(t, []ComponentDefinition{clockDefinition(), reporterDefinition(rep)}, WithRestAPIRegistry(rest))
	ctx := context.Background()

	assert.ErrorIs(t, boot.Stop(ctx), ErrNotStarted)
	require.NoError(t, boot.Start(ctx))
	assert.ErrorIs(t, boot.Start(ctx), ErrAlreadyStarted)
	assert.Equal(t, []string{"reporter"}, rest.registered)

	require.NoError(t, boot.Stop(ctx))
	assert.True(t, rep.deactivated)
	assert.Equal(t, []string{"reporter"}, rest.unregistered)

	_, ok := registry.Lookup[Reporter](boot.Registry(), nil)
	assert.False(t, ok)
	_, ok = registry.Lookup[Clock](boot.Registry(), nil)
	assert.False(t, ok)

	require.NoError(t, boot.Start(ctx), "an initializer can be restarted")
	require.NoError(t, boot.Stop(ctx))
}

func TestInitializer_RestAPIFailureRollsBack(t *testing.T) {
	rep := &reporter{}
	rest := &recordingRest{fail: errors.New("port in use")}
	boot := newTestInitializer(t, []ComponentDefinition{clockDefinition(), reporterDefinition(rep)}, WithRestAPIRegistry(rest))

	err := boot.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port in use")
	assert.True(t, rep.deactivated)
}

func TestInitializer_AccessControl(t *testing.T) {
	store := memory.New(nil)
	boot := newTestInitializer(t, accessControlDefinitions(), WithPermissionManager(store))
	ctx := context.Background()
	require.NoError(t, boot.Start(ctx))
	t.Cleanup(func() { _ = boot.Stop(ctx) })

	docs, ok := boot.Actions().ActionListFor(reflect.TypeFor[Document]())
	require.True(t, ok)
	assert.Equal(t, []string{"read", "write", "publish"}, docs.Names())

	invoices, ok := boot.Actions().ActionListFor(reflect.TypeFor[Invoice]())
	require.True(t, ok)
	assert.Equal(t, len(action.CrudActions), invoices.Len())

	docName := action.ResourceName[Document]()
	assert.Equal(t, docs.MaskOf("read", "write"), store.Mask("editor", docName))
	assert.Equal(t, docs.MaskOf("read"), store.Mask("viewer", docName))

	ra, err := action.Find(boot.Registry(), docName, "publish")
	require.NoError(t, err)
	assert.Equal(t, int64(4), ra.ID())

	_, ok = registry.Lookup[permission.RoleManager](boot.Registry(), nil)
	assert.True(t, ok)
}

func TestInitializer_AccessControlWithoutPermissionManager(t *testing.T) {
	boot := newTestInitializer(t, accessControlDefinitions())
	ctx := context.Background()
	require.NoError(t, boot.Start(ctx))
	t.Cleanup(func() { _ = boot.Stop(ctx) })

	assert.ElementsMatch(t, []string{action.ResourceName[Document](), action.ResourceName[Invoice]()}, boot.Actions().Resources())
}

func TestInitializer_PropertiesAndMetrics(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.properties")
	require.NoError(t, os.WriteFile(path, []byte("app.name=reports\napp.title=${app.name} service\n"), 0o600))

	cfg := config.Defaults()
	cfg.PropertiesFiles = []string{path}
	cfg.MetricsNamespace = "test"
	reg := prometheus.NewPedanticRegistry()

	boot := newTestInitializer(t, []ComponentDefinition{clockDefinition()}, WithConfig(cfg), WithPrometheusRegisterer(reg))
	ctx := context.Background()
	require.NoError(t, boot.Start(ctx))
	t.Cleanup(func() { _ = boot.Stop(ctx) })

	title, err := boot.Properties().Get("app.title")
	require.NoError(t, err)
	assert.Equal(t, "reports service", title)

	families, err := reg.Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "test_registry_registrations_total")
	assert.Contains(t, names, "test_registry_components")
}

func TestInitializer_MissingPropertiesFile(t *testing.T) {
	cfg := config.Defaults()
	cfg.PropertiesFiles = []string{filepath.Join(t.TempDir(), "missing.properties")}
	boot := newTestInitializer(t, nil, WithConfig(cfg))

	err := boot.Start(context.Background())
	var se *StartupError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "properties", se.Component)
}

func TestInitializer_LifecycleEvents(t *testing.T) {
	rep := &reporter{}
	boot := newTestInitializer(t, []ComponentDefinition{clockDefinition(), reporterDefinition(rep)})

	var mu sync.Mutex
	var seen []lifecycle.EventType
	require.NoError(t, boot.Events().RegisterObserver(lifecycle.NewBasicObserver("test", nil, 0,
		func(_ context.Context, ev *lifecycle.Event) error {
			mu.Lock()
			seen = append(seen, ev.Type)
			mu.Unlock()
			return nil
		})))

	ctx := context.Background()
	require.NoError(t, boot.Start(ctx))
	require.NoError(t, boot.Stop(ctx))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, lifecycle.EventTypeInitializerStarting, seen[0])
	assert.Contains(t, seen, lifecycle.EventTypeComponentRegistered)
	assert.Contains(t, seen, lifecycle.EventTypeComponentActivated)
	assert.Contains(t, seen, lifecycle.EventTypeInitializerStarted)
	assert.Contains(t, seen, lifecycle.EventTypeComponentDeactivated)
	assert.Equal(t, lifecycle.EventTypeInitializerStopped, seen[len(seen)-1])
}

func TestNewInitializer_NilOptions(t *testing.T) {
	for name, opt := range map[string]Option{
		"registry":   WithRegistry(nil),
		"discoverer": WithDiscoverer(nil),
		"config":     WithConfig(nil),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := NewInitializer(opt)
			assert.ErrorIs(t, err, ErrNilOption)
		})
	}
}

func TestNewInitializer_WithConfigFiles(t *testing.T) {
	testutil.Isolate(t)
	path := filepath.Join(t.TempDir(), "modcore.yaml")
	require.NoError(t, os.WriteFile(path, []byte("defaultPriority: 7\ninterceptorPolicy: priority\n"), 0o600))
	t.Setenv("MODCORE_LOG_LEVEL", "debug")

	boot, err := NewInitializer(WithConfigFiles(path, ""), WithLogger(testutil.NewLogger(t)))
	require.NoError(t, err)
	assert.Equal(t, 7, boot.Registry().DefaultPriority())
	assert.Equal(t, "priority", boot.config.InterceptorPolicy)
	assert.Equal(t, "debug", boot.config.LogLevel)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("interceptorPolicy: random\n"), 0o600))
	_, err = NewInitializer(WithConfigFiles(bad, ""))
	assert.Error(t, err)
}
