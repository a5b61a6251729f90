package goBlog

import "context"

type routeContextKey struct{}

// WithRoute attaches the path of the view being guarded to ctx. Guard
// decisions evaluated under ctx carry it in their audit metadata.
func WithRoute(ctx context.Context, route string) context.Context {
	return context.WithValue(ctx, routeContextKey{}, route)
}

func routeFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	route, _ := ctx.Value(routeContextKey{}).(string)
	return route
}
