// Package process provides the types and interfaces shared by the locator,
// the injector and the wait set, independent of the OS backend.
package process

import "errors"

var (
	// ErrProcessNotOpen is returned when an operation requiring an open process is attempted
	// before the process has been successfully opened or after it has been closed.
	ErrProcessNotOpen = errors.New("process not open")

	// ErrNoMoreProcesses marks the end of a snapshot walk.
	ErrNoMoreProcesses = errors.New("no more processes")

	// ErrUnsupported is returned by backends that are not available on this platform.
	ErrUnsupported = errors.New("not supported on this platform")
)
