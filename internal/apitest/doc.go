// Package apitest is an in-memory implementation of the remote blog API.
//
// It serves the same routes, envelopes and status codes the portal expects
// from the production backend, so the portal, the CLI and the examples can
// run end to end without network access. Tokens are real signed JWTs issued
// with [jwt.Signer]; passwords are stored as Argon2id hashes.
//
// Tests can inject failures ([Server.FailNext]) and latency ([Server.Delay])
// per route, and count requests ([Server.Hits]).
//
// # What this package must NOT do
//
//   - Be imported by goBlog library packages; only tests, the CLI tests and
//     examples/devapi use it.
//   - Persist anything beyond the process lifetime.
package apitest
