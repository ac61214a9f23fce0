//go:build linux

package locator

import (
	"parentenv/process"
	"parentenv/process_linux"
)

func defaultFinder() process.ProcessFinder {
	return process_linux.NewProcessFinder()
}
