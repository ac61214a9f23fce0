//go:build windows

package inject

import (
	"parentenv/process"
	"parentenv/process_windows"
)

func defaultHelper() process.ProcessHelper {
	return process_windows.NewHelper()
}

func defaultResolver() SymbolResolver {
	return process_windows.NewSymbolResolver()
}
