package modcore

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/GoCodeAlone/modcore/action"
	"github.com/GoCodeAlone/modcore/config"
	"github.com/GoCodeAlone/modcore/filter"
	"github.com/GoCodeAlone/modcore/interceptor"
	"github.com/GoCodeAlone/modcore/lifecycle"
	"github.com/GoCodeAlone/modcore/logging"
	"github.com/GoCodeAlone/modcore/metrics"
	"github.com/GoCodeAlone/modcore/permission"
	"github.com/GoCodeAlone/modcore/properties"
	"github.com/GoCodeAlone/modcore/registry"
)

const eventSource = "modcore/initializer"

// startedComponent is what Stop needs to undo a component's startup.
type startedComponent struct {
	def       ComponentDefinition
	instance  any
	regs      []*registry.Registration
	activated bool
}

// Initializer bootstraps the framework: it registers the framework
// services, then discovers, builds, injects, registers and activates every
// component, and finally registers resource actions and REST APIs.
type Initializer struct {
	registry          *registry.Registry
	discoverer        Discoverer
	logger            Logger
	config            *config.Config
	permissionManager permission.Manager
	rest              RestAPIRegistry
	registerer        prometheus.Registerer

	events     *lifecycle.Dispatcher
	actions    *action.Manager
	properties *properties.ApplicationProperties
	watcher    *properties.Watcher
	collector  *metrics.Collector

	mu        sync.Mutex
	started   bool
	hooked    bool
	framework []*registry.Registration
	running   []*startedComponent
	restAPIs  []*startedComponent
}

// NewInitializer applies opts and builds the registry from the config
// unless WithRegistry was given.
func NewInitializer(opts ...Option) (*Initializer, error) {
	i := &Initializer{
		discoverer: DefaultCatalog,
		config:     config.Defaults(),
		events:     lifecycle.NewDispatcher(),
	}
	for _, opt := range opts {
		if err := opt(i); err != nil {
			return nil, err
		}
	}
	i.logger = logging.NewMinLevel(logging.OrNop(i.logger), i.config.Level())

	if i.registry == nil {
		i.registry = registry.New(
			registry.WithLogger(i.logger),
			registry.WithDefaultPriority(i.config.DefaultPriority),
			registry.WithInterceptorPolicy(i.config.Policy()),
			registry.WithFilterBuilder(filter.NewBuilder(i.config.Dialect())),
		)
	}
	i.actions = action.NewManager(i.registry, i.logger)
	i.properties = properties.New()
	i.collector = metrics.NewCollector(i.config.MetricsNamespace)
	return i, nil
}

// Registry returns the component registry.
func (i *Initializer) Registry() *registry.Registry { return i.registry }

// Events returns the lifecycle event dispatcher, for observers.
func (i *Initializer) Events() *lifecycle.Dispatcher { return i.events }

// Actions returns the action manager.
func (i *Initializer) Actions() *action.Manager { return i.actions }

// Properties returns the application properties.
func (i *Initializer) Properties() *properties.ApplicationProperties { return i.properties }

// Metrics returns the metrics collector.
func (i *Initializer) Metrics() *metrics.Collector { return i.collector }

// Start runs the bootstrap sequence. Startup failures of individual
// components are collected; if any occurred, everything registered so far
// is rolled back and the joined errors are returned.
func (i *Initializer) Start(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.started {
		return ErrAlreadyStarted
	}
	begin := time.Now()
	i.emit(ctx, lifecycle.EventTypeInitializerStarting, lifecycle.EventStatusStarted, "", nil)

	if err := i.registerFramework(ctx); err != nil {
		i.rollback(ctx)
		i.emit(ctx, lifecycle.EventTypeInitializerStarted, lifecycle.EventStatusFailed, "", err)
		return err
	}

	var errs []error
	defs, err := i.discoverer.Discover(MarkerFrameworkComponent)
	if err != nil {
		errs = append(errs, fmt.Errorf("discover components: %w", err))
	}
	for _, def := range defs {
		if err := i.startComponent(ctx, def); err != nil {
			errs = append(errs, err)
			i.emit(ctx, lifecycle.EventTypeComponentFailed, lifecycle.EventStatusFailed, def.Name, err)
		}
	}

	if err := i.registerAccessControl(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := i.registerRestAPIs(ctx); err != nil {
		errs = append(errs, err)
	}

	if err := errors.Join(errs...); err != nil {
		i.rollback(ctx)
		i.emit(ctx, lifecycle.EventTypeInitializerStarted, lifecycle.EventStatusFailed, "", err)
		return err
	}

	if i.config.WatchProperties && len(i.properties.Files()) > 0 {
		if err := i.startWatcher(ctx); err != nil {
			i.logger.Warn("properties watcher not started", "error", err)
		}
	}

	i.started = true
	d := time.Since(begin)
	i.emitDuration(ctx, lifecycle.EventTypeInitializerStarted, d)
	i.logger.Info("initializer started", "components", len(i.running), "duration", d)
	return nil
}

// registerFramework files the framework services: metrics, properties,
// action manager, permission support, injection and call logging.
func (i *Initializer) registerFramework(ctx context.Context) error {
	r := i.registry

	r.AddObserver(i.collector)
	if !i.hooked {
		r.Dispatcher().AddHook(i.collector)
		i.hooked = true
	}
	if i.registerer != nil {
		if err := i.collector.Register(i.registerer); err != nil {
			i.logger.Warn("metrics collector not registered with prometheus", "error", err)
		}
	}

	for _, path := range i.config.PropertiesFiles {
		if err := i.properties.LoadFile(path); err != nil {
			return &StartupError{Component: "properties", Err: err}
		}
	}

	track := func(reg *registry.Registration, err error) error {
		if err != nil {
			return err
		}
		i.framework = append(i.framework, reg)
		return nil
	}

	var errs []error
	errs = append(errs,
		track(registry.Register(r, i.collector, nil)),
		track(registry.Register(r, i.properties, nil)),
		track(registry.Register(r, i.actions, nil)),
		track(registry.Register(r, i.events, nil)),
	)

	if i.permissionManager != nil {
		errs = append(errs, track(registry.Register(r, i.permissionManager, nil)))
		if rm, ok := i.permissionManager.(permission.RoleManager); ok {
			errs = append(errs, track(registry.Register(r, rm, nil)))
		}
	}
	util := permission.NewUtil(r, permission.WithLogger(i.logger))
	errs = append(errs, track(registry.Register(r, util, nil)))
	regs, err := permission.RegisterInterceptors(r, util)
	i.framework = append(i.framework, regs...)
	errs = append(errs, err)

	errs = append(errs, track(EnableInjection(r)))

	logged := &interceptor.LoggingInterceptor{Logger: i.logger}
	errs = append(errs,
		track(registry.RegisterBefore[interceptor.Logged](r, logged, nil)),
		track(registry.RegisterAfter[interceptor.Logged](r, logged, nil)),
	)

	if err := errors.Join(errs...); err != nil {
		return &StartupError{Component: "framework", Err: err}
	}
	i.logger.Debug("framework services registered", "count", len(i.framework))
	return nil
}

// startComponent runs VALIDATE, INSTANTIATE, INJECT, REGISTER and ACTIVATE
// for one definition.
func (i *Initializer) startComponent(ctx context.Context, def ComponentDefinition) error {
	name := def.Name
	if name == "" && def.Type != nil {
		name = def.Type.String()
	}
	if def.New == nil {
		return &StartupError{Component: name, Err: ErrNoConstructor}
	}

	instance, err := def.New()
	if err != nil {
		return &StartupError{Component: name, Err: fmt.Errorf("%w: %w", ErrConstructorFailed, err)}
	}
	if instance == nil || isNilValue(instance) {
		return &StartupError{Component: name, Err: ErrConstructorReturnedNil}
	}

	i.injectStartupFields(name, instance)

	services := def.Services
	if len(services) == 0 {
		var known []reflect.Type
		if set, ok := i.discoverer.(ServiceSet); ok {
			known = set.ServiceInterfaces()
		}
		services = inferServices(reflect.TypeOf(instance), known)
	}

	sc := &startedComponent{def: def, instance: instance}
	sc.def.Name = name
	for _, st := range services {
		if !reflect.TypeOf(instance).AssignableTo(st) {
			i.unregisterAll(sc.regs)
			return &StartupError{Component: name, Err: fmt.Errorf("%w: %s", ErrServiceNotImplemented, st)}
		}
		reg, err := i.registry.RegisterComponent(st, instance, i.configurationFor(def))
		if err != nil {
			i.unregisterAll(sc.regs)
			return &StartupError{Component: name, Err: err}
		}
		sc.regs = append(sc.regs, reg)
	}
	i.running = append(i.running, sc)
	i.emit(ctx, lifecycle.EventTypeComponentRegistered, lifecycle.EventStatusCompleted, name, nil)

	if i.registry.InvokeLifecycle(ctx, lifecycle.PhaseActivate, instance) {
		sc.activated = true
		i.emit(ctx, lifecycle.EventTypeComponentActivated, lifecycle.EventStatusCompleted, name, nil)
	}
	i.logger.Info("component started", "component", name, "services", len(sc.regs))
	return nil
}

func (i *Initializer) configurationFor(def ComponentDefinition) *registry.Configuration {
	cfg := registry.NewConfiguration().WithPrimary(def.Primary)
	if def.Priority != 0 {
		cfg.SetPriority(def.Priority)
	} else {
		cfg.SetPriority(i.registry.DefaultPriority())
	}
	for k, v := range def.Properties {
		cfg.AddProperty(k, v)
	}
	return cfg
}

// registerAccessControl builds the action list of every access-control
// resource and grants default role access. Missing permission managers are
// tolerated.
func (i *Initializer) registerAccessControl(ctx context.Context) error {
	defs, err := i.discoverer.Discover(MarkerAccessControl)
	if err != nil {
		return fmt.Errorf("discover access control: %w", err)
	}
	var errs []error
	for _, def := range defs {
		if def.Type == nil {
			errs = append(errs, &StartupError{Component: def.Name, Err: errors.New("access-control definition has no type")})
			continue
		}
		var ac action.AccessControl
		var list *action.ActionList
		if declared, ok := zeroInstance(def.Type).(action.AccessControlled); ok {
			ac = declared.AccessControl()
			list, err = action.ListFromAccessControl(def.Type, ac)
			if err != nil {
				errs = append(errs, &StartupError{Component: def.Name, Err: err})
				continue
			}
		} else {
			list = action.CreateBaseCrudActionList(def.Type)
		}
		if err := i.actions.RegisterResource(list); err != nil {
			errs = append(errs, &StartupError{Component: def.Name, Err: err})
			continue
		}
		if err := permission.RegisterDefaultRoleAccess(ctx, i.registry, list.ResourceName(), list, ac); err != nil {
			i.logger.Warn("default role access incomplete", "resource", list.ResourceName(), "error", err)
		}
		i.emit(ctx, lifecycle.EventTypeActionsRegistered, lifecycle.EventStatusCompleted, list.ResourceName(), nil)
	}
	return errors.Join(errs...)
}

// registerRestAPIs hands started components marked MarkerRestAPI to the
// RestAPIRegistry, if one is configured.
func (i *Initializer) registerRestAPIs(ctx context.Context) error {
	if i.rest == nil {
		return nil
	}
	var errs []error
	for _, sc := range i.running {
		if !sc.def.HasMarker(MarkerRestAPI) {
			continue
		}
		component := sc.instance
		if len(sc.regs) > 0 {
			component = sc.regs[0].Component()
		}
		if err := i.rest.RegisterRestAPI(ctx, sc.def, component); err != nil {
			errs = append(errs, &StartupError{Component: sc.def.Name, Err: err})
			continue
		}
		i.restAPIs = append(i.restAPIs, sc)
	}
	return errors.Join(errs...)
}

func (i *Initializer) startWatcher(ctx context.Context) error {
	w, err := properties.NewWatcher(i.properties, i.logger)
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		_ = w.Close()
		return err
	}
	i.watcher = w
	return nil
}

// Stop undoes Start in reverse order: REST APIs, components (deactivation
// then unregistration), the properties watcher and the framework services.
func (i *Initializer) Stop(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if !i.started {
		return ErrNotStarted
	}
	i.emit(ctx, lifecycle.EventTypeInitializerStopping, lifecycle.EventStatusStarted, "", nil)
	err := i.teardown(ctx)
	i.started = false
	i.emit(ctx, lifecycle.EventTypeInitializerStopped, lifecycle.EventStatusCompleted, "", err)
	i.logger.Info("initializer stopped")
	return err
}

func (i *Initializer) rollback(ctx context.Context) {
	if err := i.teardown(ctx); err != nil {
		i.logger.Error("rollback incomplete", "error", err)
	}
}

func (i *Initializer) teardown(ctx context.Context) error {
	var errs []error
	if i.rest != nil {
		for _, sc := range slices.Backward(i.restAPIs) {
			component := sc.instance
			if len(sc.regs) > 0 {
				component = sc.regs[0].Component()
			}
			if err := i.rest.UnregisterRestAPI(ctx, sc.def, component); err != nil {
				errs = append(errs, fmt.Errorf("unregister rest api %s: %w", sc.def.Name, err))
			}
		}
	}
	i.restAPIs = nil

	for _, sc := range slices.Backward(i.running) {
		if sc.activated && i.registry.InvokeLifecycle(ctx, lifecycle.PhaseDeactivate, sc.instance) {
			i.emit(ctx, lifecycle.EventTypeComponentDeactivated, lifecycle.EventStatusCompleted, sc.def.Name, nil)
		}
		i.unregisterAll(sc.regs)
	}
	i.running = nil

	if i.watcher != nil {
		if err := i.watcher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close properties watcher: %w", err))
		}
		i.watcher = nil
	}

	i.unregisterAll(i.framework)
	i.framework = nil
	i.registry.RemoveObserver(metrics.ObserverID)
	return errors.Join(errs...)
}

func (i *Initializer) unregisterAll(regs []*registry.Registration) {
	for _, reg := range slices.Backward(regs) {
		reg.Unregister()
	}
}

func (i *Initializer) emit(ctx context.Context, t lifecycle.EventType, status lifecycle.EventStatus, component string, err error) {
	ev := &lifecycle.Event{Type: t, Source: eventSource, Status: status}
	if component != "" {
		ev.Data = map[string]any{"component": component}
	}
	if err != nil {
		ev.Error = err.Error()
	}
	if dErr := i.events.Dispatch(ctx, ev); dErr != nil {
		i.logger.Warn("lifecycle observer failed", "event", string(t), "error", dErr)
	}
}

func (i *Initializer) emitDuration(ctx context.Context, t lifecycle.EventType, d time.Duration) {
	ev := &lifecycle.Event{Type: t, Source: eventSource, Status: lifecycle.EventStatusCompleted, Duration: &d}
	if err := i.events.Dispatch(ctx, ev); err != nil {
		i.logger.Warn("lifecycle observer failed", "event", string(t), "error", err)
	}
}

// zeroInstance returns a usable zero value of t: a pointer to a new value
// for pointer types, the zero value otherwise.
func zeroInstance(t reflect.Type) any {
	if t.Kind() == reflect.Pointer {
		return reflect.New(t.Elem()).Interface()
	}
	return reflect.Zero(t).Interface()
}

func isNilValue(v any) bool {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
