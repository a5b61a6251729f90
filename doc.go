// Package goBlog is a blog portal client: it keeps one viewer's session,
// guards protected views behind that session's token, and talks to the
// remote blog API for posts, comments, ratings and categories.
//
// A [Portal] is built with [Builder] and is safe to use from multiple
// goroutines.
//
// # Session guard
//
// Every protected view goes through the guard before it renders. The guard
// looks at the token in the session store and, when that is empty, at the
// token left in persisted storage. It decides one of:
//
//   - [Allow]: the store token decodes and has not expired.
//   - [ReconcileAndAllow]: the store was empty and the persisted token is
//     good; it is copied into the store first.
//   - [RedirectToLogin]: no token, an undecodable token, or an expired one.
//
// Tokens are decoded without signature verification; the API verifies them
// on every call that needs identity. Expired tokens redirect unless
// GuardConfig.Expired is [ExpiredAllow].
//
// # Architecture boundaries
//
// goBlog is the public surface. The session store and persisters live in
// session/, the token codec in jwt/, the HTTP client in api/. Audit dispatch
// lives under internal/ and is re-exported through type aliases.
//
// # What this package must NOT do
//
//   - Render protected content before the guard has decided.
//   - Verify token signatures or refresh tokens.
//   - Import any sub-package that re-imports goBlog.
package goBlog
