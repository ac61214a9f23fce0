//go:build windows

package process_windows

import (
	"fmt"

	"parentenv/process"

	"golang.org/x/sys/windows"
)

// SymbolResolver looks up exports in modules loaded by the current process.
// System DLLs such as kernel32 are mapped at the same base in every process
// of a boot session, so the address is also valid in a target of the same
// architecture.
type SymbolResolver struct{}

func NewSymbolResolver() *SymbolResolver {
	return &SymbolResolver{}
}

func (r *SymbolResolver) ProcAddress(module, name string) (process.ProcessMemoryAddress, error) {
	proc := windows.NewLazySystemDLL(module).NewProc(name)
	if err := proc.Find(); err != nil {
		return 0, fmt.Errorf("resolve %s!%s: %w", module, name, err)
	}
	return process.ProcessMemoryAddress(proc.Addr()), nil
}
