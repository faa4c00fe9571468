// Package store provides the host account-store abstraction the engine
// depends on: arbitrary address-keyed records mutated in place, with an
// atomic multi-key write transaction primitive.
//
// The engine never talks to a concrete database directly. Everything goes
// through the Store interface so the engine is testable against the
// in-memory backend and deployable against the SQLite backend.
//
// # Transaction Model
//
// An Update is the host-side realization of an atomic batch: every record
// write staged inside the transactional function is applied on commit, or
// none are. Conflicting concurrent writers to the same record are
// serialized by the backend; the second writer observes the first writer's
// committed state or fails with ErrConflict.
//
// # Backends
//
//   - MemoryStore: map-backed, for tests and single-process use
//   - SQLiteStore: durable, WAL-mode SQLite for single-instance deployments
package store
