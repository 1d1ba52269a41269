package errors

import "errors"

// CLI-level errors.
var (
	// ErrUsage indicates bad arguments or flags.
	ErrUsage = errors.New("usage error")

	// ErrConnectionFailed indicates an external service is unreachable.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrNotAuthenticated indicates missing or rejected credentials.
	ErrNotAuthenticated = errors.New("not authenticated")
)

// Exit codes.
const (
	ExitOK       = 0
	ExitFailure  = 1
	ExitUsage    = 2
	ExitNotFound = 3
	ExitConflict = 4
	ExitAuth     = 5
)
