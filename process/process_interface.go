package process

// Process is the interface that defines operations for interacting with a foreign process
type Process interface {
	// Close closes the process and releases resources
	Close() error

	// UpdateMemoryMap refreshes the memory map for the process
	UpdateMemoryMap() error

	// IsValidAddress checks if the given address lies in a committed region of the last memory map
	IsValidAddress(addr ProcessMemoryAddress) bool

	// ReadMemory reads memory from the process at the specified address
	ReadMemory(addr ProcessMemoryAddress, size ProcessMemorySize) ([]byte, error)

	// WriteMemory writes data to the process memory at the specified address
	WriteMemory(addr ProcessMemoryAddress, data []byte) error

	RemoteMemory
	RemoteExecution
}

// RemoteMemory manages allocations that live in the foreign address space
type RemoteMemory interface {
	// AllocMemory commits a new region of at least size bytes
	AllocMemory(size ProcessMemorySize, prot Protection) (ProcessMemoryAddress, error)

	// FreeMemory releases a region returned by AllocMemory
	FreeMemory(addr ProcessMemoryAddress) error

	// FlushCode makes freshly written instructions visible to the target's threads
	FlushCode(addr ProcessMemoryAddress, size ProcessMemorySize) error
}

// RemoteExecution starts threads inside the foreign process
type RemoteExecution interface {
	// StartThread creates a thread in the process at entry, passing param as its only argument
	StartThread(entry, param ProcessMemoryAddress) (RemoteThread, error)
}

// RemoteThread is a thread running inside another process
type RemoteThread interface {
	// Wait blocks until the thread terminates. There is no timeout.
	Wait() error

	// Close releases the local reference to the thread
	Close() error
}
