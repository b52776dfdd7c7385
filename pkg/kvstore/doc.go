// Package kvstore defines the key/value persistence boundary the scheduling
// core sequences calls against, with three interchangeable backends.
//
// The Store interface is intentionally minimal (Get, Set, Delete, Keys)
// because the core treats the backend as an opaque, externally-synchronized
// dependency: it sequences and retries calls, it does not add transactions
// or locking of its own. Callers are responsible for operations being
// idempotent enough to retry safely.
//
// Backends:
//
//   - Memory — mutex-guarded map for tests and local development.
//   - Redis — go-redis client with a configurable key prefix; ConnectRedis
//     retries the initial connection.
//   - Postgres — pgx pool over a two-column key/value table; ConnectPostgres
//     retries the initial connection.
//
// Both remote backends load their settings from the environment via struct
// tags (see RedisConfig and PostgresConfig) with the config package.
package kvstore
