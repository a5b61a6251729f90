// Package jwt decodes bearer tokens into claims for client-side session checks and
// issues signed tokens for the stand-in API used in tests and local runs.
//
// # Trust boundary
//
// [Decode] never verifies a signature. Its result is advisory: the portal uses the
// expiry only to avoid showing a protected view with a dead token. Signature
// verification remains the remote API's job on every call.
//
// # What this package must NOT do
//
//   - Import goBlog, session, or api (no upward imports).
//   - Make redirect or allow decisions; the guard owns those.
package jwt
