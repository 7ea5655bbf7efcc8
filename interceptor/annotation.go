// Package interceptor implements annotation driven before/after interception
// around component method calls.
//
// Go has no runtime annotations, so they are modelled as plain values:
//
//   - an annotation is any value implementing Annotation;
//   - method annotations are declared by the component (Annotated) or
//     through an explicit Annotations table;
//   - field annotations are struct tags turned into annotation values by a
//     TagParser registered in a Tags table.
//
// Interceptors implement the generic SPI (Before, After, BeforeFields,
// AfterFields) and are filed in a Table keyed by annotation type and phase
// when they are registered. A Dispatcher wraps components in Handlers; typed
// wrappers route every method through Handler.Invoke.
package interceptor

import (
	"context"
	"reflect"
)

// Annotation marks a value that can trigger interception.
type Annotation interface {
	AnnotationName() string
}

// ExecutorDeclarer is implemented by annotations that name the interceptor
// type handling them. Resolution then looks for that exact type only.
type ExecutorDeclarer interface {
	Annotation
	Executor() reflect.Type
}

// Phase is the point of the call at which an interceptor runs.
type Phase int

const (
	PhaseBefore Phase = iota
	PhaseAfter
)

func (p Phase) String() string {
	if p == PhaseAfter {
		return "after"
	}
	return "before"
}

// Invocation describes one intercepted call. After interceptors see Result
// and may replace it.
type Invocation struct {
	Method string
	Args   []any
	Result any
	Target any
}

// Before runs ahead of the call. A non-nil error vetoes the call.
type Before[A Annotation] interface {
	Before(ctx context.Context, annotation A, inv *Invocation) error
}

// After runs once the call returned without error. A non-nil error replaces
// the result.
type After[A Annotation] interface {
	After(ctx context.Context, annotation A, inv *Invocation) error
}

// BeforeFields is the field-aware variant of Before. It receives every field
// of the target carrying the annotation.
type BeforeFields[A Annotation] interface {
	BeforeFields(ctx context.Context, annotation A, fields []Field, inv *Invocation) error
}

// AfterFields is the field-aware variant of After.
type AfterFields[A Annotation] interface {
	AfterFields(ctx context.Context, annotation A, fields []Field, inv *Invocation) error
}

// Annotated is implemented by components declaring their own method
// annotations, keyed by method name.
type Annotated interface {
	MethodAnnotations() map[string][]Annotation
}

// AnnotationType returns the table key for an annotation value.
func AnnotationType(a Annotation) reflect.Type {
	return reflect.TypeOf(a)
}
