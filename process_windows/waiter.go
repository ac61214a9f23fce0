//go:build windows

package process_windows

import (
	"fmt"

	"parentenv/process"

	"golang.org/x/sys/windows"
)

// WAIT_ACCESS is enough to wait on a process and read its exit code
const WAIT_ACCESS = windows.SYNCHRONIZE | windows.PROCESS_QUERY_LIMITED_INFORMATION

// Waiter exposes the process wait primitives over process.Handle values
type Waiter struct{}

func NewWaiter() *Waiter {
	return &Waiter{}
}

// OpenHandle resolves a waitable handle for a live pid
func (w *Waiter) OpenHandle(pid process.ProcessID) (process.Handle, error) {
	handle, err := windows.OpenProcess(WAIT_ACCESS, false, uint32(pid))
	if err != nil {
		return process.Handle{}, fmt.Errorf("OpenProcess(%d) failed: %w", pid, err)
	}
	return process.NewHandle(uintptr(handle)), nil
}

// WaitAny blocks until one of handles is signaled and returns its index
func (w *Waiter) WaitAny(handles []process.Handle) (int, error) {
	raw := make([]windows.Handle, len(handles))
	for i, h := range handles {
		raw[i] = windows.Handle(h.Value())
	}

	event, err := windows.WaitForMultipleObjects(raw, false, windows.INFINITE)
	if event == windows.WAIT_FAILED {
		return -1, err
	}

	index := int(event - windows.WAIT_OBJECT_0)
	if index < 0 || index >= len(handles) {
		return -1, fmt.Errorf("unexpected wait result 0x%X", event)
	}
	return index, nil
}

// Poll reports whether h is signaled. block waits without a timeout.
func (w *Waiter) Poll(h process.Handle, block bool) (bool, error) {
	timeout := uint32(0)
	if block {
		timeout = windows.INFINITE
	}

	event, err := windows.WaitForSingleObject(windows.Handle(h.Value()), timeout)
	switch event {
	case windows.WAIT_OBJECT_0:
		return true, nil
	case uint32(windows.WAIT_TIMEOUT):
		return false, nil
	default:
		return false, err
	}
}

func (w *Waiter) ExitCode(h process.Handle) (uint32, error) {
	var code uint32
	if err := windows.GetExitCodeProcess(windows.Handle(h.Value()), &code); err != nil {
		return 0, err
	}
	return code, nil
}

func (w *Waiter) CloseHandle(h process.Handle) error {
	return windows.CloseHandle(windows.Handle(h.Value()))
}
