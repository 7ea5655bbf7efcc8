package interceptor

import (
	"reflect"
	"sync"

	"github.com/GoCodeAlone/modcore/logging"
)

// Source provides the interceptor table of a reachable component registry.
type Source interface {
	Interceptors() *Table
}

// Locator finds the component registry for a call. Returning nil means no
// registry is reachable and calls proceed without interception.
type Locator func() Source

// Outcome classifies a dispatch decision reported to hooks.
type Outcome int

const (
	// OutcomeNoRegistry: no registry was reachable, interception skipped.
	OutcomeNoRegistry Outcome = iota
	// OutcomeMissing: registry present, no interceptor for the annotation.
	OutcomeMissing
	// OutcomeInvoked: an interceptor ran and let the call continue.
	OutcomeInvoked
	// OutcomeVetoed: an interceptor returned an error.
	OutcomeVetoed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNoRegistry:
		return "no_registry"
	case OutcomeMissing:
		return "missing"
	case OutcomeInvoked:
		return "invoked"
	case OutcomeVetoed:
		return "vetoed"
	}
	return "unknown"
}

// DispatchEvent is reported to hooks for every dispatch decision.
type DispatchEvent struct {
	Outcome    Outcome
	Method     string
	Annotation string
	Phase      Phase
	Err        error
}

// DispatchHook observes dispatch decisions, e.g. for metrics.
type DispatchHook interface {
	OnDispatch(ev DispatchEvent)
}

// DispatchHookFunc adapts a function to DispatchHook.
type DispatchHookFunc func(ev DispatchEvent)

func (f DispatchHookFunc) OnDispatch(ev DispatchEvent) { f(ev) }

// Dispatcher creates Handlers and holds what they share: the registry
// locator, the tag and method annotation tables and the per type field scan
// cache.
type Dispatcher struct {
	locator     Locator
	tags        *Tags
	annotations *Annotations
	logger      logging.Logger

	hooksMu sync.RWMutex
	hooks   []DispatchHook

	descriptors sync.Map // reflect.Type -> *descriptor
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithTags sets the struct tag table.
func WithTags(t *Tags) DispatcherOption {
	return func(d *Dispatcher) { d.tags = t }
}

// WithAnnotations sets the method annotation table.
func WithAnnotations(a *Annotations) DispatcherOption {
	return func(d *Dispatcher) { d.annotations = a }
}

// WithLogger sets the logger used for scan errors and resolution failures.
func WithLogger(l logging.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = logging.OrNop(l) }
}

// WithHook adds a dispatch hook.
func WithHook(h DispatchHook) DispatcherOption {
	return func(d *Dispatcher) { d.hooks = append(d.hooks, h) }
}

// NewDispatcher creates a dispatcher. A nil locator behaves as if no
// registry were ever reachable.
func NewDispatcher(locator Locator, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		locator:     locator,
		tags:        NewTags(),
		annotations: NewAnnotations(),
		logger:      logging.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Tags returns the struct tag table. Register parsers before the first
// call on a given type; scan results are cached per type.
func (d *Dispatcher) Tags() *Tags { return d.tags }

// Annotations returns the method annotation table.
func (d *Dispatcher) Annotations() *Annotations { return d.annotations }

// AddHook registers a dispatch hook.
func (d *Dispatcher) AddHook(h DispatchHook) {
	d.hooksMu.Lock()
	d.hooks = append(d.hooks, h)
	d.hooksMu.Unlock()
}

// SetLocator replaces the registry locator.
func (d *Dispatcher) SetLocator(l Locator) {
	d.hooksMu.Lock()
	d.locator = l
	d.hooksMu.Unlock()
}

func (d *Dispatcher) source() Source {
	d.hooksMu.RLock()
	l := d.locator
	d.hooksMu.RUnlock()
	if l == nil {
		return nil
	}
	src := l()
	if src == nil || isNilPointer(src) {
		return nil
	}
	return src
}

func (d *Dispatcher) emit(ev DispatchEvent) {
	d.hooksMu.RLock()
	hooks := d.hooks
	d.hooksMu.RUnlock()
	for _, h := range hooks {
		h.OnDispatch(ev)
	}
}

// Wrap returns the handler routing calls to target.
func (d *Dispatcher) Wrap(target any) *Handler {
	return &Handler{dispatcher: d, target: target}
}

// InvalidateCache drops cached field scans, e.g. after registering a new
// tag parser.
func (d *Dispatcher) InvalidateCache() {
	d.descriptors.Range(func(k, _ any) bool {
		d.descriptors.Delete(k)
		return true
	})
}

func (d *Dispatcher) describe(target any) *descriptor {
	t := reflect.TypeOf(target)
	if t == nil {
		return &descriptor{}
	}
	if cached, ok := d.descriptors.Load(t); ok {
		return cached.(*descriptor)
	}
	desc := describe(t, d.tags.snapshot())
	for _, err := range desc.errs {
		d.logger.Warn("ignoring field annotation", "type", t.String(), "error", err)
	}
	actual, _ := d.descriptors.LoadOrStore(t, desc)
	return actual.(*descriptor)
}

// FieldGroups returns the annotated field groups of target in discovery order.
func (d *Dispatcher) FieldGroups(target any) []FieldGroup {
	return d.describe(target).bind(target)
}

// MethodAnnotations returns the annotations of method on target: those the
// target declares itself followed by those in the annotation table.
func (d *Dispatcher) MethodAnnotations(target any, method string) []Annotation {
	var out []Annotation
	if a, ok := target.(Annotated); ok {
		out = append(out, a.MethodAnnotations()[method]...)
	}
	if t := reflect.TypeOf(target); t != nil {
		out = append(out, d.annotations.Lookup(t, method)...)
	}
	return out
}

func isNilPointer(v any) bool {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
