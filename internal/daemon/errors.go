package daemon

import "errors"

// Common daemon errors.
var (
	ErrNotRunning      = errors.New("not running")
	ErrAlreadyRunning  = errors.New("already running")
	ErrShutdownTimeout = errors.New("shutdown timeout")
)
