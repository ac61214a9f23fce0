package process

// ProcessFinder takes point-in-time enumerations of the processes in the system
type ProcessFinder interface {
	// CurrentPID returns the identifier of the calling process
	CurrentPID() ProcessID

	// Snapshot enumerates all live processes at one instant
	Snapshot() (ProcessSnapshot, error)
}

// ProcessSnapshot is a forward-only walk over one enumeration.
// First restarts the walk; Next returns ErrNoMoreProcesses once exhausted.
type ProcessSnapshot interface {
	First() (ProcessRecord, error)
	Next() (ProcessRecord, error)
	Close() error
}
