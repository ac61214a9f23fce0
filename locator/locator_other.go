//go:build !windows && !linux

package locator

import (
	"os"

	"parentenv/process"
)

type unsupportedFinder struct{}

func (unsupportedFinder) CurrentPID() process.ProcessID {
	return process.ProcessID(os.Getpid())
}

func (unsupportedFinder) Snapshot() (process.ProcessSnapshot, error) {
	return nil, process.ErrUnsupported
}

func defaultFinder() process.ProcessFinder {
	return unsupportedFinder{}
}
