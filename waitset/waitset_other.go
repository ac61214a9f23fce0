//go:build !windows

package waitset

import "parentenv/process"

type unsupportedWaiter struct{}

func (unsupportedWaiter) OpenHandle(pid process.ProcessID) (process.Handle, error) {
	return process.Handle{}, process.ErrUnsupported
}

func (unsupportedWaiter) WaitAny(handles []process.Handle) (int, error) {
	return -1, process.ErrUnsupported
}

func (unsupportedWaiter) Poll(h process.Handle, block bool) (bool, error) {
	return false, process.ErrUnsupported
}

func (unsupportedWaiter) ExitCode(h process.Handle) (uint32, error) {
	return 0, process.ErrUnsupported
}

func (unsupportedWaiter) CloseHandle(h process.Handle) error {
	return process.ErrUnsupported
}

func defaultWaiter() Waiter {
	return unsupportedWaiter{}
}
