package modcore

import "context"

// RestAPIRegistry publishes components as REST endpoints. modcore ships no
// implementation; transports plug one in with WithRestAPIRegistry.
type RestAPIRegistry interface {
	RegisterRestAPI(ctx context.Context, def ComponentDefinition, component any) error
	UnregisterRestAPI(ctx context.Context, def ComponentDefinition, component any) error
}
