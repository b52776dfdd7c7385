package atomicsave

import "errors"

// Common errors
var (
	// ErrInvalidOperation is returned in the result when an operation has no name or no execute function
	ErrInvalidOperation = errors.New("save operation requires a name and an execute function")
)
