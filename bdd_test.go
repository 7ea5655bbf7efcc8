package modcore

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/cucumber/godog"

	"github.com/GoCodeAlone/modcore/action"
	"github.com/GoCodeAlone/modcore/interceptor"
	"github.com/GoCodeAlone/modcore/logging"
	"github.com/GoCodeAlone/modcore/permission"
	"github.com/GoCodeAlone/modcore/permission/memory"
	"github.com/GoCodeAlone/modcore/registry"
	"github.com/GoCodeAlone/modcore/security"
)

var (
	errStartShouldFail       = errors.New("expected start to fail")
	errUnexpectedReport      = errors.New("unexpected report")
	errNotActivated          = errors.New("reporter was not activated")
	errNotDeactivated        = errors.New("reporter was not deactivated")
	errReporterRegistered    = errors.New("reporter is still registered")
	errUnknownAction         = errors.New("unknown action")
	errPermissionMismatch    = errors.New("permission does not match")
	errCallShouldFail        = errors.New("expected the call to be denied")
	errNoPermissionStoreStep = errors.New("no permission store configured")
)

// bddAccess is what bddResource declares; scenarios run sequentially.
var bddAccess action.AccessControl

type bddResource struct{}

func (bddResource) AccessControl() action.AccessControl { return bddAccess }

type initializerContext struct {
	defs     []ComponentDefinition
	rep      *reporter
	store    *memory.Store
	boot     *Initializer
	startErr error
}

func (c *initializerContext) reset() {
	c.rep = &reporter{}
	c.defs = nil
	c.store = nil
	c.boot = nil
	c.startErr = nil
	bddAccess = action.AccessControl{}
}

func (c *initializerContext) aCatalogWithAClockAndAReporter() error {
	c.defs = append(c.defs, clockDefinition(), reporterDefinition(c.rep))
	return nil
}

func (c *initializerContext) aComponentWithoutAConstructor(name string) error {
	c.defs = append(c.defs, ComponentDefinition{Name: name})
	return nil
}

func (c *initializerContext) aPermissionStore() error {
	c.store = memory.New(nil)
	return nil
}

func (c *initializerContext) aDocumentResourceGranting(firstActions, firstRole, secondActions, secondRole string) error {
	bddAccess = action.AccessControl{
		AvailableActions: []string{"read", "write"},
		RoleAccess: []action.RoleAccess{
			{Role: firstRole, Actions: strings.Split(firstActions, ",")},
			{Role: secondRole, Actions: strings.Split(secondActions, ",")},
		},
	}
	c.defs = append(c.defs, ComponentDefinition{
		Name:    "bdd-document",
		Type:    reflect.TypeFor[bddResource](),
		Markers: []Marker{MarkerAccessControl},
	})
	return nil
}

func (c *initializerContext) iStartTheInitializer() error {
	opts := []Option{
		WithLogger(logging.Nop()),
		WithDiscoverer(&StaticDiscoverer{Definitions: c.defs}),
	}
	if c.store != nil {
		opts = append(opts, WithPermissionManager(c.store))
	}
	boot, err := NewInitializer(opts...)
	if err != nil {
		return err
	}
	c.boot = boot
	c.startErr = boot.Start(context.Background())
	return nil
}

func (c *initializerContext) iStopTheInitializer() error {
	return c.boot.Stop(context.Background())
}

func (c *initializerContext) theStartShouldSucceed() error {
	return c.startErr
}

func (c *initializerContext) theStartShouldFailMentioning(text string) error {
	if c.startErr == nil {
		return errStartShouldFail
	}
	if !strings.Contains(c.startErr.Error(), text) {
		return fmt.Errorf("%w: %q does not mention %q", errStartShouldFail, c.startErr, text)
	}
	return nil
}

func (c *initializerContext) theReporterShouldReport(want string) error {
	rep, err := registry.Find[Reporter](c.boot.Registry(), nil)
	if err != nil {
		return err
	}
	if got := rep.Report(); got != want {
		return fmt.Errorf("%w: %q", errUnexpectedReport, got)
	}
	return nil
}

func (c *initializerContext) theReporterShouldBeActivated() error {
	if !c.rep.activated {
		return errNotActivated
	}
	return nil
}

func (c *initializerContext) theReporterShouldBeDeactivated() error {
	if !c.rep.deactivated {
		return errNotDeactivated
	}
	return nil
}

func (c *initializerContext) noReporterShouldBeRegistered() error {
	if _, ok := registry.Lookup[Reporter](c.boot.Registry(), nil); ok {
		return errReporterRegistered
	}
	return nil
}

func (c *initializerContext) roleAllowed(role, actionName string, want bool) error {
	if c.store == nil {
		return errNoPermissionStoreStep
	}
	list, ok := c.boot.Actions().ActionListFor(reflect.TypeFor[bddResource]())
	if !ok {
		return fmt.Errorf("%w: no action list", errUnknownAction)
	}
	ra, ok := list.Action(actionName)
	if !ok {
		return fmt.Errorf("%w: %s", errUnknownAction, actionName)
	}
	user := &security.User{Username: "bdd-" + role, Roles: []string{role}}
	got := c.store.HasPermission(context.Background(), user, list.ResourceName(), ra.Action)
	if got != want {
		return fmt.Errorf("%w: %s %s = %v", errPermissionMismatch, role, actionName, got)
	}
	return nil
}

func (c *initializerContext) theRoleShouldBeAllowedTo(role, actionName string) error {
	return c.roleAllowed(role, actionName, true)
}

func (c *initializerContext) theRoleShouldNotBeAllowedTo(role, actionName string) error {
	return c.roleAllowed(role, actionName, false)
}

func initializeInitializerScenario(ctx *godog.ScenarioContext) {
	c := &initializerContext{}

	ctx.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		c.reset()
		return ctx, nil
	})
	ctx.After(func(ctx context.Context, _ *godog.Scenario, _ error) (context.Context, error) {
		if c.boot != nil {
			_ = c.boot.Stop(ctx)
		}
		return ctx, nil
	})

	ctx.Step(`^a catalog with a clock and a reporter that needs the clock$`, c.aCatalogWithAClockAndAReporter)
	ctx.Step(`^a component named "([^"]*)" without a constructor$`, c.aComponentWithoutAConstructor)
	ctx.Step(`^a permission store$`, c.aPermissionStore)
	ctx.Step(`^a document resource granting "([^"]*)" to "([^"]*)" and "([^"]*)" to "([^"]*)"$`, c.aDocumentResourceGranting)
	ctx.Step(`^I start the initializer$`, c.iStartTheInitializer)
	ctx.Step(`^I stop the initializer$`, c.iStopTheInitializer)
	ctx.Step(`^the start should succeed$`, c.theStartShouldSucceed)
	ctx.Step(`^the start should fail mentioning "([^"]*)"$`, c.theStartShouldFailMentioning)
	ctx.Step(`^the reporter should report "([^"]*)"$`, c.theReporterShouldReport)
	ctx.Step(`^the reporter should be activated$`, c.theReporterShouldBeActivated)
	ctx.Step(`^the reporter should be deactivated$`, c.theReporterShouldBeDeactivated)
	ctx.Step(`^no reporter should be registered$`, c.noReporterShouldBeRegistered)
	ctx.Step(`^the role "([^"]*)" should be allowed to "([^"]*)" documents$`, c.theRoleShouldBeAllowedTo)
	ctx.Step(`^the role "([^"]*)" should not be allowed to "([^"]*)" documents$`, c.theRoleShouldNotBeAllowedTo)
}

// TestInitializerFeatures runs the initializer scenarios.
func TestInitializerFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: initializeInitializerScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features/initializer.feature"},
			TestingT: t,
			Strict:   true,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}

type Library interface {
	Read(ctx context.Context, id int) (string, error)
	Write(ctx context.Context, id int, text string) error
	Catalog(ctx context.Context) ([]string, error)
}

type library struct {
	texts map[int]string
}

func (l *library) ResourceName() string { return action.ResourceName[Document]() }

func (l *library) Read(_ context.Context, id int) (string, error) { return l.texts[id], nil }

func (l *library) Write(_ context.Context, id int, text string) error {
	l.texts[id] = text
	return nil
}

func (l *library) Catalog(context.Context) ([]string, error) {
	out := make([]string, 0, len(l.texts))
	for _, t := range l.texts {
		out = append(out, t)
	}
	return out, nil
}

func (l *library) MethodAnnotations() map[string][]interceptor.Annotation {
	return map[string][]interceptor.Annotation{
		"Read":    {permission.AllowPermissions{Actions: []string{"read"}}, interceptor.Logged{}},
		"Write":   {permission.AllowPermissions{Actions: []string{"write"}}},
		"Catalog": {permission.AllowLoggedUser{}},
	}
}

type libraryProxy struct {
	h      *interceptor.Handler
	target Library
}

func newLibraryProxy(h *interceptor.Handler) Library {
	return &libraryProxy{h: h, target: h.Target().(Library)}
}

func (p *libraryProxy) InvocationHandler() *interceptor.Handler { return p.h }

func (p *libraryProxy) Read(ctx context.Context, id int) (string, error) {
	return interceptor.Call(ctx, p.h, "Read", []any{id}, func(ctx context.Context) (string, error) {
		return p.target.Read(ctx, id)
	})
}

func (p *libraryProxy) Write(ctx context.Context, id int, text string) error {
	return interceptor.Exec(ctx, p.h, "Write", []any{id, text}, func(ctx context.Context) error {
		return p.target.Write(ctx, id, text)
	})
}

func (p *libraryProxy) Catalog(ctx context.Context) ([]string, error) {
	return interceptor.Call(ctx, p.h, "Catalog", nil, p.target.Catalog)
}

type interceptorContext struct {
	boot    *Initializer
	callErr error
}

func (c *interceptorContext) aDocumentLibraryProtectedByPermissions() error {
	r := registry.New(registry.WithLogger(logging.Nop()))
	registry.RegisterProxyFactory[Library](r, newLibraryProxy)

	defs := append(accessControlDefinitions(), ComponentDefinition{
		Name:     "library",
		Type:     reflect.TypeFor[*library](),
		New:      func() (any, error) { return &library{texts: map[int]string{1: "draft"}}, nil },
		Services: []reflect.Type{Service[Library]()},
	})
	boot, err := NewInitializer(
		WithRegistry(r),
		WithLogger(logging.Nop()),
		WithDiscoverer(&StaticDiscoverer{Definitions: defs}),
		WithPermissionManager(memory.New(nil)),
	)
	if err != nil {
		return err
	}
	c.boot = boot
	return nil
}

func (c *interceptorContext) theLibraryInitializerIsStarted() error {
	return c.boot.Start(context.Background())
}

func (c *interceptorContext) call(user *security.User, fn func(ctx context.Context, lib Library) error) error {
	lib, err := registry.Find[Library](c.boot.Registry(), nil)
	if err != nil {
		return err
	}
	ctx := context.Background()
	if user != nil {
		ctx = security.WithPrincipal(ctx, user)
	}
	c.callErr = fn(ctx, lib)
	return nil
}

func read(ctx context.Context, lib Library) error {
	_, err := lib.Read(ctx, 1)
	return err
}

func write(ctx context.Context, lib Library) error {
	return lib.Write(ctx, 1, "final")
}

func listCatalog(ctx context.Context, lib Library) error {
	_, err := lib.Catalog(ctx)
	return err
}

func (c *interceptorContext) userWithRoleReads(name, role string) error {
	return c.call(&security.User{Username: name, Roles: []string{role}}, read)
}

func (c *interceptorContext) userWithRoleWrites(name, role string) error {
	return c.call(&security.User{Username: name, Roles: []string{role}}, write)
}

func (c *interceptorContext) theAdministratorWrites(name string) error {
	return c.call(&security.User{Username: name, Admin: true}, write)
}

func (c *interceptorContext) anAnonymousCallerListsTheCatalog() error {
	return c.call(nil, listCatalog)
}

func (c *interceptorContext) anAnonymousCallerReads() error {
	return c.call(nil, read)
}

func (c *interceptorContext) theCallShouldSucceed() error {
	return c.callErr
}

func (c *interceptorContext) theCallShouldBeDenied() error {
	if !errors.Is(c.callErr, permission.ErrUnauthorized) {
		return fmt.Errorf("%w: got %v", errCallShouldFail, c.callErr)
	}
	return nil
}

func initializeInterceptorScenario(ctx *godog.ScenarioContext) {
	c := &interceptorContext{}

	ctx.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		c.boot = nil
		c.callErr = nil
		return ctx, nil
	})
	ctx.After(func(ctx context.Context, _ *godog.Scenario, _ error) (context.Context, error) {
		if c.boot != nil {
			_ = c.boot.Stop(ctx)
		}
		return ctx, nil
	})

	ctx.Step(`^a document library protected by permissions$`, c.aDocumentLibraryProtectedByPermissions)
	ctx.Step(`^the library initializer is started$`, c.theLibraryInitializerIsStarted)
	ctx.Step(`^"([^"]*)" with role "([^"]*)" reads a document$`, c.userWithRoleReads)
	ctx.Step(`^"([^"]*)" with role "([^"]*)" writes a document$`, c.userWithRoleWrites)
	ctx.Step(`^the administrator "([^"]*)" writes a document$`, c.theAdministratorWrites)
	ctx.Step(`^an anonymous caller lists the catalog$`, c.anAnonymousCallerListsTheCatalog)
	ctx.Step(`^an anonymous caller reads a document$`, c.anAnonymousCallerReads)
	ctx.Step(`^the call should succeed$`, c.theCallShouldSucceed)
	ctx.Step(`^the call should be denied$`, c.theCallShouldBeDenied)
}

// TestInterceptorFeatures runs the permission interception scenarios.
func TestInterceptorFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: initializeInterceptorScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features/interceptor.feature"},
			TestingT: t,
			Strict:   true,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
