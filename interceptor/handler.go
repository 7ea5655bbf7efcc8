package interceptor

import (
	"context"
)

// Handler routes the calls of one wrapped component through the
// interceptor pipeline.
type Handler struct {
	dispatcher *Dispatcher
	target     any
}

// Target returns the wrapped component.
func (h *Handler) Target() any { return h.target }

// Dispatcher returns the dispatcher that created the handler.
func (h *Handler) Dispatcher() *Dispatcher { return h.dispatcher }

type step struct {
	annotation Annotation
	fields     []Field
}

// Invoke runs method on the target through the pipeline: field annotations
// first, then method annotations, before interceptors, the call, then after
// interceptors in the same order.
//
// When no registry is reachable call runs directly. A before interceptor
// error prevents call from running. An error from call is returned as is and
// skips the after phase. An after interceptor error discards the result.
func (h *Handler) Invoke(ctx context.Context, method string, args []any, call func(ctx context.Context) (any, error)) (any, error) {
	d := h.dispatcher
	src := d.source()
	if src == nil || src.Interceptors() == nil {
		d.emit(DispatchEvent{Outcome: OutcomeNoRegistry, Method: method})
		return call(ctx)
	}
	table := src.Interceptors()

	var steps []step
	for _, g := range d.FieldGroups(h.target) {
		steps = append(steps, step{annotation: g.Annotation, fields: g.Fields})
	}
	for _, a := range d.MethodAnnotations(h.target, method) {
		if a != nil {
			steps = append(steps, step{annotation: a})
		}
	}

	inv := &Invocation{Method: method, Args: args, Target: h.target}
	if len(steps) == 0 {
		return call(ctx)
	}

	if err := h.run(ctx, table, PhaseBefore, steps, inv); err != nil {
		return nil, err
	}

	result, err := call(ctx)
	if err != nil {
		return result, err
	}
	inv.Result = result

	if err := h.run(ctx, table, PhaseAfter, steps, inv); err != nil {
		return nil, err
	}
	return inv.Result, nil
}

func (h *Handler) run(ctx context.Context, table *Table, phase Phase, steps []step, inv *Invocation) error {
	d := h.dispatcher
	for _, s := range steps {
		name := s.annotation.AnnotationName()
		entry, err := table.Resolve(s.annotation, phase)
		if err != nil {
			d.logger.Error("interceptor resolution failed", "method", inv.Method, "annotation", name, "phase", phase.String(), "error", err)
			d.emit(DispatchEvent{Outcome: OutcomeVetoed, Method: inv.Method, Annotation: name, Phase: phase, Err: err})
			return err
		}
		if entry == nil {
			d.emit(DispatchEvent{Outcome: OutcomeMissing, Method: inv.Method, Annotation: name, Phase: phase})
			continue
		}
		if err := entry.invoke(ctx, s.annotation, s.fields, inv); err != nil {
			d.logger.Debug("interceptor vetoed call", "method", inv.Method, "annotation", name, "phase", phase.String(), "interceptor", entry.ID, "error", err)
			d.emit(DispatchEvent{Outcome: OutcomeVetoed, Method: inv.Method, Annotation: name, Phase: phase, Err: err})
			return err
		}
		d.emit(DispatchEvent{Outcome: OutcomeInvoked, Method: inv.Method, Annotation: name, Phase: phase})
	}
	return nil
}

// Call is Invoke for typed wrappers.
func Call[R any](ctx context.Context, h *Handler, method string, args []any, fn func(ctx context.Context) (R, error)) (R, error) {
	res, err := h.Invoke(ctx, method, args, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	if err != nil {
		var zero R
		return zero, err
	}
	r, _ := res.(R)
	return r, nil
}

// Exec is Invoke for methods returning only an error.
func Exec(ctx context.Context, h *Handler, method string, args []any, fn func(ctx context.Context) error) error {
	_, err := h.Invoke(ctx, method, args, func(ctx context.Context) (any, error) {
		return nil, fn(ctx)
	})
	return err
}
