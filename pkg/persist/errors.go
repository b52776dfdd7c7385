package persist

import "errors"

// Common errors
var (
	// ErrStoreNil is returned when a nil backing store is provided
	ErrStoreNil = errors.New("backing store cannot be nil")

	// ErrRecordNotFound is returned by Load for records that do not exist
	ErrRecordNotFound = errors.New("record not found")

	// ErrEmptyID is returned when a record identifier is empty
	ErrEmptyID = errors.New("record id cannot be empty")

	// ErrNoQueue is returned by the Queue* helpers when no operation queue is configured
	ErrNoQueue = errors.New("no operation queue configured")

	// ErrMarshal is returned when a record cannot be encoded to JSON
	ErrMarshal = errors.New("failed to marshal record to JSON")

	// ErrUnmarshal is returned when a stored value cannot be decoded
	ErrUnmarshal = errors.New("failed to unmarshal stored record")
)
