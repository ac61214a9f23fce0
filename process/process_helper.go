package process

// ProcessHelper provides utility functions for working with processes
type ProcessHelper interface {
	// NewWithPID creates a new Process instance and opens it with the given PID
	NewWithPID(pid ProcessID) (Process, error)
}
