package interceptor

import (
	"fmt"
	"reflect"
	"sync"
)

// Field is a struct field of an intercepted target that carries an
// annotation.
type Field struct {
	Name   string
	Index  []int
	Struct reflect.StructField

	owner reflect.Value
}

// Value returns the current field value. The zero Value is returned when the
// target is not an addressable struct.
func (f Field) Value() reflect.Value {
	if !f.owner.IsValid() {
		return reflect.Value{}
	}
	return f.owner.FieldByIndex(f.Index)
}

// Set assigns v to the field. Only exported fields of pointer targets can be
// set.
func (f Field) Set(v any) error {
	fv := f.Value()
	if !fv.IsValid() || !fv.CanSet() {
		return fmt.Errorf("%w: %s", ErrFieldNotSettable, f.Name)
	}
	if v == nil {
		fv.Set(reflect.Zero(fv.Type()))
		return nil
	}
	rv := reflect.ValueOf(v)
	if !rv.Type().AssignableTo(fv.Type()) {
		return fmt.Errorf("%w: %s is %s, got %s", ErrIncompatibleValue, f.Name, fv.Type(), rv.Type())
	}
	fv.Set(rv)
	return nil
}

// Owner returns the struct value holding the field.
func (f Field) Owner() reflect.Value { return f.owner }

// TagParser turns a struct tag value into an annotation. A nil annotation
// means the tag does not trigger interception.
type TagParser func(tag string, field reflect.StructField) (Annotation, error)

// Tags maps struct tag keys to parsers. Keys are scanned in registration order.
type Tags struct {
	mu      sync.RWMutex
	keys    []string
	parsers map[string]TagParser
}

// NewTags creates an empty tag table.
func NewTags() *Tags {
	return &Tags{parsers: make(map[string]TagParser)}
}

// Register installs parser for key, replacing any previous parser.
func (t *Tags) Register(key string, parser TagParser) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.parsers[key]; !ok {
		t.keys = append(t.keys, key)
	}
	t.parsers[key] = parser
}

type tagParser struct {
	key    string
	parser TagParser
}

func (t *Tags) snapshot() []tagParser {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]tagParser, 0, len(t.keys))
	for _, k := range t.keys {
		out = append(out, tagParser{k, t.parsers[k]})
	}
	return out
}

// FieldGroup is one annotation instance with every field it was found on.
type FieldGroup struct {
	Annotation Annotation
	Fields     []Field
}

type fieldSpec struct {
	annotation Annotation
	name       string
	index      []int
	field      reflect.StructField
}

type groupSpec struct {
	annotation Annotation
	fields     []fieldSpec
}

// descriptor is the per-type scan result cached by the dispatcher.
type descriptor struct {
	groups []groupSpec
	errs   []error
}

// describe scans the struct behind t, recursing into embedded structs.
func describe(t reflect.Type, tags []tagParser) *descriptor {
	d := &descriptor{}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct || len(tags) == 0 {
		return d
	}
	var specs []fieldSpec
	collectFields(t, nil, tags, &specs, &d.errs)

	for _, s := range specs {
		placed := false
		for i := range d.groups {
			if sameAnnotation(d.groups[i].annotation, s.annotation) {
				d.groups[i].fields = append(d.groups[i].fields, s)
				placed = true
				break
			}
		}
		if !placed {
			d.groups = append(d.groups, groupSpec{annotation: s.annotation, fields: []fieldSpec{s}})
		}
	}
	return d
}

func collectFields(t reflect.Type, prefix []int, tags []tagParser, out *[]fieldSpec, errs *[]error) {
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		index := append(append([]int(nil), prefix...), i)

		for _, tp := range tags {
			value, ok := sf.Tag.Lookup(tp.key)
			if !ok {
				continue
			}
			a, err := tp.parser(value, sf)
			if err != nil {
				*errs = append(*errs, fmt.Errorf("field %s.%s tag %q: %w", t.Name(), sf.Name, tp.key, err))
				continue
			}
			if a == nil {
				continue
			}
			*out = append(*out, fieldSpec{annotation: a, name: sf.Name, index: index, field: sf})
		}

		if sf.Anonymous {
			ft := sf.Type
			if ft.Kind() == reflect.Struct {
				collectFields(ft, index, tags, out, errs)
			}
		}
	}
}

// sameAnnotation reports whether two annotation values are the same instance
// for grouping purposes.
func sameAnnotation(a, b Annotation) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta.Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}

// bind resolves the cached groups against a concrete target value.
func (d *descriptor) bind(target any) []FieldGroup {
	if len(d.groups) == 0 {
		return nil
	}
	owner := reflect.ValueOf(target)
	for owner.Kind() == reflect.Pointer {
		if owner.IsNil() {
			owner = reflect.Value{}
			break
		}
		owner = owner.Elem()
	}
	if owner.IsValid() && owner.Kind() != reflect.Struct {
		owner = reflect.Value{}
	}

	out := make([]FieldGroup, 0, len(d.groups))
	for _, g := range d.groups {
		fg := FieldGroup{Annotation: g.annotation, Fields: make([]Field, 0, len(g.fields))}
		for _, f := range g.fields {
			fg.Fields = append(fg.Fields, Field{Name: f.name, Index: f.index, Struct: f.field, owner: owner})
		}
		out = append(out, fg)
	}
	return out
}

// Annotations is an explicit method annotation table keyed by the target's
// concrete type and method name.
type Annotations struct {
	mu    sync.RWMutex
	table map[reflect.Type]map[string][]Annotation
}

// NewAnnotations creates an empty method annotation table.
func NewAnnotations() *Annotations {
	return &Annotations{table: make(map[reflect.Type]map[string][]Annotation)}
}

// Annotate appends annotations to method of targetType.
func (a *Annotations) Annotate(targetType reflect.Type, method string, anns ...Annotation) {
	a.mu.Lock()
	defer a.mu.Unlock()
	methods, ok := a.table[targetType]
	if !ok {
		methods = make(map[string][]Annotation)
		a.table[targetType] = methods
	}
	methods[method] = append(methods[method], anns...)
}

// Lookup returns the annotations declared for method of targetType.
func (a *Annotations) Lookup(targetType reflect.Type, method string) []Annotation {
	a.mu.RLock()
	defer a.mu.RUnlock()
	list := a.table[targetType][method]
	out := make([]Annotation, len(list))
	copy(out, list)
	return out
}

// AnnotateMethod is Annotate keyed by the type parameter.
func AnnotateMethod[T any](a *Annotations, method string, anns ...Annotation) {
	a.Annotate(reflect.TypeFor[T](), method, anns...)
}
