//go:build windows

package process_windows

import (
	"errors"
	"fmt"
	"unsafe"

	"parentenv/process"

	"golang.org/x/sys/windows"
)

// WindowsProcessFinder implements process.ProcessFinder with Toolhelp32 snapshots
type WindowsProcessFinder struct{}

// NewProcessFinder creates a new WindowsProcessFinder
func NewProcessFinder() process.ProcessFinder {
	return &WindowsProcessFinder{}
}

func (f *WindowsProcessFinder) CurrentPID() process.ProcessID {
	return process.ProcessID(windows.GetCurrentProcessId())
}

func (f *WindowsProcessFinder) Snapshot() (process.ProcessSnapshot, error) {
	handle, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return nil, fmt.Errorf("CreateToolhelp32Snapshot failed: %w", err)
	}
	return &toolhelpSnapshot{handle: handle}, nil
}

type toolhelpSnapshot struct {
	handle windows.Handle
	entry  windows.ProcessEntry32
}

func (s *toolhelpSnapshot) First() (process.ProcessRecord, error) {
	s.entry.Size = uint32(unsafe.Sizeof(s.entry))
	if err := windows.Process32First(s.handle, &s.entry); err != nil {
		return process.ProcessRecord{}, walkError("Process32First", err)
	}
	return s.record(), nil
}

func (s *toolhelpSnapshot) Next() (process.ProcessRecord, error) {
	if err := windows.Process32Next(s.handle, &s.entry); err != nil {
		return process.ProcessRecord{}, walkError("Process32Next", err)
	}
	return s.record(), nil
}

func (s *toolhelpSnapshot) Close() error {
	if s.handle == 0 {
		return nil
	}
	err := windows.CloseHandle(s.handle)
	s.handle = 0
	return err
}

func (s *toolhelpSnapshot) record() process.ProcessRecord {
	return process.ProcessRecord{
		PID:  process.ProcessID(s.entry.ProcessID),
		PPID: process.ProcessID(s.entry.ParentProcessID),
		Name: windows.UTF16ToString(s.entry.ExeFile[:]),
	}
}

func walkError(op string, err error) error {
	if errors.Is(err, windows.ERROR_NO_MORE_FILES) {
		return process.ErrNoMoreProcesses
	}
	return fmt.Errorf("%s failed: %w", op, err)
}
