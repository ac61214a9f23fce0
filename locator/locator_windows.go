//go:build windows

package locator

import (
	"parentenv/process"
	"parentenv/process_windows"
)

func defaultFinder() process.ProcessFinder {
	return process_windows.NewProcessFinder()
}
