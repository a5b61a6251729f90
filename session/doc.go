// Package session holds the portal's process-wide session state and the narrow
// persisted key-value storage it is mirrored into.
//
// # Two copies, no enforced consistency
//
// [Store] is the in-memory copy: {token, user, viewer, isAuthenticated,
// categories, filteredBlogs}, mutated only through named operations. A
// [Persister] is the durable copy of token, user and viewer, keyed by
// [KeyToken], [KeyUser] and [KeyViewer]. Either may be stale relative to the
// other; the guard reconciles them opportunistically.
//
// # Architecture boundaries
//
// The Store performs no I/O. Callers (the Portal) mirror writes into the
// Persister. Persister implementations: [MemoryPersister], [FilePersister]
// (a JSON document on disk) and [RedisPersister].
//
// # What this package must NOT do
//
//   - Import goBlog, api, or jwt (no upward imports).
//   - Decode tokens or make guard decisions.
package session
