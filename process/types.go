package process

import "fmt"

// ProcessID represents a unique identifier for a process
type ProcessID int

// ProcessRecord is one entry of a process snapshot. It is only meaningful for
// the duration of the walk that produced it; the process may have exited or
// its pid may have been reused since.
type ProcessRecord struct {
	PID  ProcessID // Process ID
	PPID ProcessID // Parent Process ID as recorded at snapshot time
	Name string    // Executable name, best effort
}

func (r ProcessRecord) String() string {
	return fmt.Sprintf("%s (pid %d, ppid %d)", r.Name, r.PID, r.PPID)
}

// ExitStatus is the normalized result of waiting on a process.
//
// PID carries the numeric value of the handle that fired, not the kernel pid:
// callers identify their children by handle value. The zero ExitStatus is the
// synthetic record returned by Wait for a process that has not exited yet.
type ExitStatus struct {
	PID  ProcessID
	Code uint32
}

// IsZero reports whether s is the synthetic "still running" record.
func (s ExitStatus) IsZero() bool {
	return s.PID == 0 && s.Code == 0
}

// Handle is an opaque reference to a live process. It is owned by whoever
// resolved it; the raw value is deliberately unexported.
type Handle struct {
	value uintptr
}

// NewHandle wraps a raw OS handle value.
func NewHandle(value uintptr) Handle {
	return Handle{value: value}
}

// Value returns the raw OS handle value. Only OS backends should need this.
func (h Handle) Value() uintptr {
	return h.value
}

func (h Handle) String() string {
	return fmt.Sprintf("handle(0x%X)", h.value)
}
