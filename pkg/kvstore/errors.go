package kvstore

import "errors"

// Common errors
var (
	// ErrKeyNotFound is returned by Get for keys that do not exist
	ErrKeyNotFound = errors.New("key not found")

	// ErrEmptyKey is returned when an empty key is used
	ErrEmptyKey = errors.New("key cannot be empty")

	// ErrFailedToParseRedisConnString is returned when the Redis connection URL is invalid
	ErrFailedToParseRedisConnString = errors.New("failed to parse redis connection string")

	// ErrRedisNotReady is returned when all Redis connection attempts fail
	ErrRedisNotReady = errors.New("redis is not ready")

	// ErrFailedToParsePostgresConfig is returned when the Postgres connection string is invalid
	ErrFailedToParsePostgresConfig = errors.New("failed to parse postgres connection string")

	// ErrPostgresNotReady is returned when all Postgres connection attempts fail
	ErrPostgresNotReady = errors.New("postgres is not ready")
)
