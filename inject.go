package modcore

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/GoCodeAlone/modcore/filter"
	"github.com/GoCodeAlone/modcore/interceptor"
	"github.com/GoCodeAlone/modcore/registry"
)

// InjectTag is the struct tag key driving injection:
//
//	type Service struct {
//		Repo  Repository `inject:"startup"`            // once, at Start
//		Cache Cache      `inject:""`                   // on first intercepted call
//		Store Store      `inject:"startup,tier=fast"`  // filtered by property
//	}
const InjectTag = "inject"

const injectStartup = "startup"

// Inject is the annotation produced by non-startup inject tags. Fields are
// resolved lazily by InjectInterceptor before each intercepted call.
type Inject struct {
	Property string
	Value    string
}

func (Inject) AnnotationName() string { return "Inject" }

type injectSpec struct {
	startup  bool
	property string
	value    string
}

func parseInjectTag(tag string) injectSpec {
	var spec injectSpec
	for _, part := range strings.Split(tag, ",") {
		part = strings.TrimSpace(part)
		switch {
		case part == "":
		case part == injectStartup:
			spec.startup = true
		default:
			spec.property, spec.value, _ = strings.Cut(part, "=")
		}
	}
	return spec
}

// injectTagParser feeds the dispatcher's tag table. Startup tags are not
// annotations and yield nil.
func injectTagParser(tag string, _ reflect.StructField) (interceptor.Annotation, error) {
	spec := parseInjectTag(tag)
	if spec.startup {
		return nil, nil
	}
	return Inject{Property: spec.property, Value: spec.value}, nil
}

// resolveComponent finds the component to inject into a field of type t.
// Slice fields receive every match.
func resolveComponent(r *registry.Registry, t reflect.Type, property, value string) (any, error) {
	var f filter.Filter
	if property != "" {
		f = r.CreateFilter(property, value)
	}

	if t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Interface {
		components, err := r.FindComponents(t.Elem(), f)
		if err != nil {
			return nil, err
		}
		out := reflect.MakeSlice(t, 0, len(components))
		for _, c := range components {
			out = reflect.Append(out, reflect.ValueOf(c))
		}
		return out.Interface(), nil
	}

	c, err := r.FindComponent(t, f)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("%w: %s", ErrInjectionTargetMissing, t)
	}
	return c, nil
}

// injectStartupFields resolves every `inject:"startup"` field of component.
// Failures are logged and leave the field untouched.
func (i *Initializer) injectStartupFields(name string, component any) {
	ptr := reflect.ValueOf(component)
	if ptr.Kind() != reflect.Pointer || ptr.IsNil() || ptr.Elem().Kind() != reflect.Struct {
		return
	}
	elem := ptr.Elem()
	t := elem.Type()
	for idx := 0; idx < t.NumField(); idx++ {
		sf := t.Field(idx)
		tag, ok := sf.Tag.Lookup(InjectTag)
		if !ok {
			continue
		}
		spec := parseInjectTag(tag)
		if !spec.startup {
			continue
		}
		value, err := resolveComponent(i.registry, sf.Type, spec.property, spec.value)
		if err != nil {
			i.logger.Warn("startup field not injected", "component", name, "field", sf.Name, "error", err)
			continue
		}
		if err := assignField(ptr, elem.Field(idx), sf, value); err != nil {
			i.logger.Warn("startup field not injected", "component", name, "field", sf.Name, "error", err)
			continue
		}
		i.logger.Debug("startup field injected", "component", name, "field", sf.Name)
	}
}

// assignField prefers a SetX method on the pointer over direct assignment.
func assignField(ptr, field reflect.Value, sf reflect.StructField, value any) error {
	rv := reflect.ValueOf(value)
	if setter := ptr.MethodByName("Set" + sf.Name); setter.IsValid() {
		mt := setter.Type()
		if mt.NumIn() != 1 {
			return fmt.Errorf("%w: Set%s", ErrSetterSignature, sf.Name)
		}
		if !rv.Type().AssignableTo(mt.In(0)) {
			return fmt.Errorf("%w: Set%s takes %s, got %s", interceptor.ErrIncompatibleValue, sf.Name, mt.In(0), rv.Type())
		}
		out := setter.Call([]reflect.Value{rv})
		if n := len(out); n > 0 {
			if err, ok := out[n-1].Interface().(error); ok && err != nil {
				return err
			}
		}
		return nil
	}
	if !field.CanSet() {
		return fmt.Errorf("%w: %s", interceptor.ErrFieldNotSettable, sf.Name)
	}
	if !rv.Type().AssignableTo(field.Type()) {
		return fmt.Errorf("%w: %s is %s, got %s", interceptor.ErrIncompatibleValue, sf.Name, field.Type(), rv.Type())
	}
	field.Set(rv)
	return nil
}

// InjectInterceptor fills empty `inject:""` fields before intercepted calls.
// Check-and-set of a field is serialized so concurrent calls through one
// proxy fill it once.
type InjectInterceptor struct {
	Registry *registry.Registry

	mu sync.Mutex
}

func (ii *InjectInterceptor) BeforeFields(_ context.Context, a Inject, fields []interceptor.Field, inv *interceptor.Invocation) error {
	logger := ii.Registry.Logger()
	ii.mu.Lock()
	defer ii.mu.Unlock()
	for _, f := range fields {
		if v := f.Value(); v.IsValid() && !v.IsZero() {
			continue
		}
		value, err := resolveComponent(ii.Registry, f.Struct.Type, a.Property, a.Value)
		if err != nil {
			logger.Debug("field not injected", "method", inv.Method, "field", f.Name, "error", err)
			continue
		}
		if err := f.Set(value); err != nil {
			logger.Warn("field not injected", "method", inv.Method, "field", f.Name, "error", err)
		}
	}
	return nil
}

// EnableInjection registers the inject tag parser and InjectInterceptor on r.
func EnableInjection(r *registry.Registry) (*registry.Registration, error) {
	d := r.Dispatcher()
	d.Tags().Register(InjectTag, injectTagParser)
	d.InvalidateCache()
	return registry.RegisterBeforeFields[Inject](r, &InjectInterceptor{Registry: r}, nil)
}
