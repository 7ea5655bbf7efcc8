package interceptor

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoCodeAlone/modcore/internal/testutil"
)

var errDenied = errors.New("denied")

type guarded struct{ Role string }

func (guarded) AnnotationName() string { return "guarded" }

type audited struct{}

func (audited) AnnotationName() string { return "audited" }

type tableSource struct{ table *Table }

func (s tableSource) Interceptors() *Table { return s.table }

type greeter interface {
	Greet(ctx context.Context, name string) (string, error)
}

type plainGreeter struct {
	called bool
}

func (g *plainGreeter) Greet(_ context.Context, name string) (string, error) {
	g.called = true
	return "hello " + name, nil
}

func (g *plainGreeter) MethodAnnotations() map[string][]Annotation {
	return map[string][]Annotation{"Greet": {guarded{Role: "admin"}}}
}

type greeterProxy struct {
	h      *Handler
	target greeter
}

func newGreeterProxy(h *Handler) any {
	return &greeterProxy{h: h, target: h.Target().(greeter)}
}

func (p *greeterProxy) InvocationHandler() *Handler { return p.h }

func (p *greeterProxy) Greet(ctx context.Context, name string) (string, error) {
	return Call(ctx, p.h, "Greet", []any{name}, func(ctx context.Context) (string, error) {
		return p.target.Greet(ctx, name)
	})
}

type recordingBefore struct {
	calls []string
	err   error
}

func (r *recordingBefore) Before(_ context.Context, a guarded, inv *Invocation) error {
	r.calls = append(r.calls, inv.Method+":"+a.Role)
	return r.err
}

type recordingAfter struct {
	seen []any
	err  error
}

func (r *recordingAfter) After(_ context.Context, _ guarded, inv *Invocation) error {
	r.seen = append(r.seen, inv.Result)
	return r.err
}

type fieldsBefore struct {
	fields [][]string
}

func (f *fieldsBefore) BeforeFields(_ context.Context, _ guarded, fields []Field, _ *Invocation) error {
	names := make([]string, 0, len(fields))
	for _, fl := range fields {
		names = append(names, fl.Name)
	}
	f.fields = append(f.fields, names)
	return nil
}

func newPipeline(t *testing.T, opts ...DispatcherOption) (*Table, *Dispatcher, *[]DispatchEvent) {
	t.Helper()
	table := NewTable(FirstRegistered)
	var events []DispatchEvent
	opts = append(opts, WithHook(DispatchHookFunc(func(ev DispatchEvent) { events = append(events, ev) })))
	d := NewDispatcher(func() Source { return tableSource{table} }, opts...)
	return table, d, &events
}

func TestHandler_BeforeVetoStopsCall(t *testing.T) {
	table, d, events := newPipeline(t)
	before := &recordingBefore{err: errDenied}
	RegisterBefore[guarded](table, "deny", 1, before)

	target := &plainGreeter{}
	proxy := newGreeterProxy(d.Wrap(target)).(greeter)

	out, err := proxy.Greet(context.Background(), "bob")

	require.ErrorIs(t, err, errDenied)
	assert.Empty(t, out)
	assert.False(t, target.called, "method body must not run after a veto")
	assert.Equal(t, []string{"Greet:admin"}, before.calls)
	require.Len(t, *events, 1)
	assert.Equal(t, OutcomeVetoed, (*events)[0].Outcome)
}

func TestHandler_BeforeAndAfterRun(t *testing.T) {
	table, d, events := newPipeline(t)
	before := &recordingBefore{}
	after := &recordingAfter{}
	RegisterBefore[guarded](table, "b", 1, before)
	RegisterAfter[guarded](table, "a", 1, after)

	target := &plainGreeter{}
	out, err := newGreeterProxy(d.Wrap(target)).(greeter).Greet(context.Background(), "ann")

	require.NoError(t, err)
	assert.Equal(t, "hello ann", out)
	assert.True(t, target.called)
	assert.Equal(t, []any{"hello ann"}, after.seen)
	require.Len(t, *events, 2)
	assert.Equal(t, PhaseBefore, (*events)[0].Phase)
	assert.Equal(t, PhaseAfter, (*events)[1].Phase)
}

func TestHandler_AfterVetoDiscardsResult(t *testing.T) {
	table, d, _ := newPipeline(t)
	RegisterAfter[guarded](table, "a", 1, &recordingAfter{err: errDenied})

	target := &plainGreeter{}
	out, err := newGreeterProxy(d.Wrap(target)).(greeter).Greet(context.Background(), "ann")

	require.ErrorIs(t, err, errDenied)
	assert.Empty(t, out)
	assert.True(t, target.called, "after interceptors run once the body returned")
}

func TestHandler_CallErrorSkipsAfter(t *testing.T) {
	table, d, _ := newPipeline(t)
	after := &recordingAfter{}
	RegisterAfter[guarded](table, "a", 1, after)
	boom := errors.New("boom")

	h := d.Wrap(&plainGreeter{})
	_, err := h.Invoke(context.Background(), "Greet", nil, func(context.Context) (any, error) { return nil, boom })

	assert.ErrorIs(t, err, boom)
	assert.Empty(t, after.seen)
}

func TestHandler_NoRegistryIsDistinguishable(t *testing.T) {
	var noRegistry, missing []DispatchEvent
	hook := DispatchHookFunc(func(ev DispatchEvent) {
		switch ev.Outcome {
		case OutcomeNoRegistry:
			noRegistry = append(noRegistry, ev)
		case OutcomeMissing:
			missing = append(missing, ev)
		}
	})

	detached := NewDispatcher(func() Source { return nil }, WithHook(hook))
	target := &plainGreeter{}
	out, err := newGreeterProxy(detached.Wrap(target)).(greeter).Greet(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "hello x", out)
	assert.Len(t, noRegistry, 1)
	assert.Empty(t, missing)

	var nilTable *Table
	empty := NewDispatcher(func() Source { return tableSource{NewTable(FirstRegistered)} }, WithHook(hook))
	_, err = newGreeterProxy(empty.Wrap(&plainGreeter{})).(greeter).Greet(context.Background(), "y")
	require.NoError(t, err)
	assert.Len(t, noRegistry, 1)
	assert.Len(t, missing, 2, "one miss per phase")

	nilSource := NewDispatcher(func() Source { return tableSource{nilTable} }, WithHook(hook))
	_, err = nilSource.Wrap(&plainGreeter{}).Invoke(context.Background(), "Greet", nil, func(context.Context) (any, error) { return nil, nil })
	require.NoError(t, err)
	assert.Len(t, noRegistry, 2)
}

type account struct {
	Owner   string `guard:"admin"`
	Balance int    `guard:"admin"`
	Notes   string `guard:"auditor"`
	Ignored string `guard:"-"`
	Plain   string
	Audit   `guard:"admin"`
}

type Audit struct {
	Trail string `guard:"auditor"`
}

func guardTags() *Tags {
	tags := NewTags()
	tags.Register("guard", func(tag string, _ reflect.StructField) (Annotation, error) {
		if tag == "-" {
			return nil, nil
		}
		return guarded{Role: tag}, nil
	})
	return tags
}

func TestFieldGroups_GroupedByAnnotationInDiscoveryOrder(t *testing.T) {
	d := NewDispatcher(nil, WithTags(guardTags()))

	groups := d.FieldGroups(&account{})

	require.Len(t, groups, 2)
	assert.Equal(t, guarded{Role: "admin"}, groups[0].Annotation)
	assert.Equal(t, []string{"Owner", "Balance", "Audit"}, fieldNames(groups[0].Fields))
	assert.Equal(t, guarded{Role: "auditor"}, groups[1].Annotation)
	assert.Equal(t, []string{"Notes", "Trail"}, fieldNames(groups[1].Fields))
}

func TestField_SetAndValue(t *testing.T) {
	d := NewDispatcher(nil, WithTags(guardTags()))
	acct := &account{Owner: "ann"}

	groups := d.FieldGroups(acct)
	owner := groups[0].Fields[0]
	assert.Equal(t, "ann", owner.Value().String())

	require.NoError(t, owner.Set("bob"))
	assert.Equal(t, "bob", acct.Owner)
	assert.ErrorIs(t, owner.Set(42), ErrIncompatibleValue)

	byValue := d.FieldGroups(account{})
	assert.ErrorIs(t, byValue[0].Fields[0].Set("x"), ErrFieldNotSettable)
}

func TestHandler_FieldAwareRunsBeforeMethodAndWinsOverPlain(t *testing.T) {
	table, d, _ := newPipeline(t, WithTags(guardTags()))
	plain := &recordingBefore{}
	aware := &fieldsBefore{}
	RegisterBefore[guarded](table, "plain", 10, plain)
	RegisterBeforeFields[guarded](table, "aware", 1, aware)

	h := d.Wrap(&account{})
	d.Annotations().Annotate(reflect.TypeOf(&account{}), "Close", guarded{Role: "owner"})
	_, err := h.Invoke(context.Background(), "Close", nil, func(context.Context) (any, error) { return nil, nil })

	require.NoError(t, err)
	assert.Empty(t, plain.calls)
	assert.Equal(t, [][]string{{"Owner", "Balance", "Audit"}, {"Notes", "Trail"}, {}}, aware.fields)
}

func TestTable_Policies(t *testing.T) {
	first := &recordingBefore{}
	second := &recordingBefore{}

	tests := []struct {
		name     string
		policy   Policy
		wantID   string
		wantErr  error
		priority [2]int
	}{
		{"first registered", FirstRegistered, "first", nil, [2]int{1, 5}},
		{"highest priority", HighestPriority, "second", nil, [2]int{1, 5}},
		{"highest priority tie", HighestPriority, "first", nil, [2]int{3, 3}},
		{"strict", Strict, "", ErrAmbiguousInterceptor, [2]int{1, 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := NewTable(tt.policy)
			RegisterBefore[guarded](table, "first", tt.priority[0], first)
			RegisterBefore[guarded](table, "second", tt.priority[1], second)

			e, err := table.Resolve(guarded{}, PhaseBefore)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, e.ID)
		})
	}
}

func TestTable_RemoveAndReplace(t *testing.T) {
	table := NewTable(FirstRegistered)
	RegisterBefore[guarded](table, "x", 1, &recordingBefore{})
	RegisterBefore[guarded](table, "x", 1, &recordingBefore{})
	assert.Equal(t, 1, table.Len())

	assert.True(t, table.Remove("x"))
	assert.False(t, table.Remove("x"))
	e, err := table.Resolve(guarded{}, PhaseBefore)
	require.NoError(t, err)
	assert.Nil(t, e)
}

type declared struct{}

func (declared) AnnotationName() string { return "declared" }
func (declared) Executor() reflect.Type  { return reflect.TypeOf(&secondDeclaredInterceptor{}) }

type firstDeclaredInterceptor struct{ hits int }

func (f *firstDeclaredInterceptor) Before(context.Context, declared, *Invocation) error {
	f.hits++
	return nil
}

type secondDeclaredInterceptor struct{ hits int }

func (s *secondDeclaredInterceptor) Before(context.Context, declared, *Invocation) error {
	s.hits++
	return nil
}

func TestTable_ExecutorDeclaredAnnotation(t *testing.T) {
	table := NewTable(FirstRegistered)
	first := &firstDeclaredInterceptor{}
	second := &secondDeclaredInterceptor{}
	RegisterBefore[declared](table, "first", 1, first)
	RegisterBefore[declared](table, "second", 1, second)

	e, err := table.Resolve(declared{}, PhaseBefore)
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, "second", e.ID)

	e, err = table.Resolve(declared{}, PhaseAfter)
	require.NoError(t, err)
	assert.Nil(t, e, "declared executor without an after phase resolves to nothing")
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("Strict")
	require.NoError(t, err)
	assert.Equal(t, Strict, p)
	assert.Equal(t, "strict", p.String())

	_, err = ParsePolicy("random")
	assert.ErrorIs(t, err, ErrUnknownPolicy)
}

func TestProxyIdentity(t *testing.T) {
	d := NewDispatcher(nil)
	target := &plainGreeter{}
	p1 := newGreeterProxy(d.Wrap(target))
	p2 := newGreeterProxy(d.Wrap(target))

	assert.Same(t, target, Unwrap(p1))
	assert.Same(t, target, Identity(newGreeterProxy(d.Wrap(p1))))
	assert.True(t, SameInstance(p1, p2))
	assert.True(t, SameInstance(p1, target))
	assert.False(t, SameInstance(p1, &plainGreeter{}))
	assert.True(t, SameInstance(nil, nil))
	assert.False(t, SameInstance([]int{1}, []int{1}))
}

func TestLoggingInterceptor(t *testing.T) {
	log := testutil.NewLogger(t)
	table, d, _ := newPipeline(t)
	li := &LoggingInterceptor{Logger: log}
	RegisterBefore[Logged](table, "log-before", 1, li)
	RegisterAfter[Logged](table, "log-after", 1, li)
	AnnotateMethod[*plainGreeter](d.Annotations(), "Greet", Logged{Message: "greeting", Args: true})

	_, err := newGreeterProxy(d.Wrap(&plainGreeter{})).(greeter).Greet(context.Background(), "z")

	require.NoError(t, err)
	assert.True(t, log.Contains("info", "greeting"))
	assert.True(t, log.Contains("debug", "component method returned"))
}

func fieldNames(fields []Field) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, f.Name)
	}
	return out
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "before", PhaseBefore.String())
	assert.True(t, strings.EqualFold("AFTER", PhaseAfter.String()))
}
