//go:build !windows

package inject

import (
	"parentenv/process"
)

type unsupportedBackend struct{}

func (unsupportedBackend) NewWithPID(pid process.ProcessID) (process.Process, error) {
	return nil, process.ErrUnsupported
}

func (unsupportedBackend) ProcAddress(module, name string) (process.ProcessMemoryAddress, error) {
	return 0, process.ErrUnsupported
}

func defaultHelper() process.ProcessHelper {
	return unsupportedBackend{}
}

func defaultResolver() SymbolResolver {
	return unsupportedBackend{}
}
