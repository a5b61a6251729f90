// Package api is the HTTP client for the remote blog and viewer API.
//
// The remote API is a black box with a fixed contract: blogs, comments,
// ratings, categories and viewer authentication under one base URL. [Client]
// adds a bearer token from a [TokenSource] on calls that need identity,
// rate limits outgoing requests, and reports per-endpoint latency through an
// optional observer hook.
//
// # Response envelopes
//
// Some endpoints wrap their payload as {"data": ...} and some return it bare.
// The client accepts both shapes on every read so callers see plain values.
//
// # What this package must NOT do
//
//   - Import goBlog or session (no upward imports).
//   - Decide redirects or mutate session state.
package api
