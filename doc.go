// Package modcore is a component registry and lifecycle framework.
//
// Components are described by ComponentDefinition values, usually added to
// DefaultCatalog from package init functions with Define or DefineComponent.
// An Initializer discovers them, builds them, injects `inject:"startup"`
// fields, registers them in a registry.Registry under their service types
// and activates them. Resource types marked MarkerAccessControl get their
// action lists and default role grants registered; components marked
// MarkerRestAPI are handed to a RestAPIRegistry.
//
//	boot, err := modcore.NewInitializer(
//		modcore.WithLogger(modcore.NewSlogLogger(slog.Default())),
//		modcore.WithPermissionManager(memory.New(nil)),
//	)
//	if err != nil {
//		return err
//	}
//	if err := boot.Start(ctx); err != nil {
//		return err
//	}
//	defer boot.Stop(ctx)
//
//	svc, err := registry.Find[OrderService](boot.Registry(), nil)
//
// The sub-packages hold the pieces: registry (components, filters and
// observers), interceptor (annotations and proxies), filter (property
// filters), action and permission (resource actions and access checks),
// properties (application properties), config, metrics and query.
package modcore
