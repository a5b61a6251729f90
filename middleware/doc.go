// Package middleware puts the portal's session guard in front of net/http
// handlers.
//
// # Guards
//
//   - [RequireSession]: evaluates the portal session; redirects to login.
//   - [RequireBearer]: evaluates the request's bearer token alone; answers 401.
//
// Both attach the admitting [goBlog.Decision] to the request context, read it
// back with [DecisionFromContext].
//
// # What this package must NOT do
//
//   - Decode tokens itself; decisions come from goBlog.
//   - Touch persisted storage directly.
package middleware
