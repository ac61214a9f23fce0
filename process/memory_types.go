package process

import (
	"fmt"
)

// ProcessMemoryAddress represents a memory address within a process
type ProcessMemoryAddress uint64

func (pma ProcessMemoryAddress) ToString() string {
	return fmt.Sprintf("0x%X", uint64(pma))
}

// ProcessMemorySize represents a size of memory region
type ProcessMemorySize uint

func (pms ProcessMemorySize) ToString() string {
	return fmt.Sprintf("%d bytes", uint(pms))
}

// Protection selects the page protection of a remote allocation
type Protection int

const (
	ProtectReadWrite        Protection = iota // data, never executable
	ProtectExecuteReadWrite                   // code, written then executed
)

func (p Protection) String() string {
	switch p {
	case ProtectReadWrite:
		return "rw-"
	case ProtectExecuteReadWrite:
		return "rwx"
	default:
		return fmt.Sprintf("Protection(%d)", int(p))
	}
}
