//go:build windows

package process_windows

import (
	"fmt"
	"sync"
	"unsafe"

	"parentenv/process"
	"parentenv/process/memory_map"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	"golang.org/x/sys/windows"
)

var (
	modkernel32               = windows.NewLazySystemDLL("kernel32.dll")
	procVirtualAllocEx        = modkernel32.NewProc("VirtualAllocEx")
	procVirtualFreeEx         = modkernel32.NewProc("VirtualFreeEx")
	procCreateRemoteThread    = modkernel32.NewProc("CreateRemoteThread")
	procFlushInstructionCache = modkernel32.NewProc("FlushInstructionCache")
)

// PROCESS_INJECT_ACCESS is the minimum set of rights needed to stage memory
// and start a thread in another process
const PROCESS_INJECT_ACCESS = windows.PROCESS_CREATE_THREAD |
	windows.PROCESS_QUERY_INFORMATION |
	windows.PROCESS_VM_OPERATION |
	windows.PROCESS_VM_WRITE |
	windows.PROCESS_VM_READ

// WindowsProcess implements the process.Process interface for Windows systems
type WindowsProcess struct {
	pid    process.ProcessID
	handle windows.Handle
	log    *logger.Logger
	mm     []memory_map.MemoryMapItem
	mu     sync.Mutex
}

var _ process.Process = (*WindowsProcess)(nil)

// NewWithPID creates a new WindowsProcess instance and opens it with the given PID
func NewWithPID(pid process.ProcessID) (process.Process, error) {
	p := &WindowsProcess{}
	err := p.open(pid)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (p *WindowsProcess) open(pid process.ProcessID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	handle, err := windows.OpenProcess(PROCESS_INJECT_ACCESS, false, uint32(pid))
	if err != nil {
		return fmt.Errorf("OpenProcess failed: %w", err)
	}

	p.pid = pid
	p.handle = handle
	p.mm = nil
	p.log = logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, fmt.Sprintf("process-%d", pid)))

	p.log.Debugln("Process opened")
	return nil
}

func (p *WindowsProcess) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.handle != 0 {
		if err := windows.CloseHandle(p.handle); err != nil {
			return fmt.Errorf("CloseHandle failed: %w", err)
		}
		p.handle = 0
	}

	p.pid = 0
	p.mm = nil
	p.log = logger.NewLogger(coloransi.Color(coloransi.Red, coloransi.ColorOrange, "process-not-open"))
	p.log.Debugln("Process closed")

	return nil
}

func (p *WindowsProcess) UpdateMemoryMap() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.handle == 0 {
		return process.ErrProcessNotOpen
	}

	mm, err := memory_map.NewWindowsMemoryMap().ReadMemoryMapHandle(p.handle)
	if err != nil {
		return fmt.Errorf("failed to read memory map: %w", err)
	}

	p.mm = mm
	return nil
}

func (p *WindowsProcess) IsValidAddress(addr process.ProcessMemoryAddress) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return memory_map.Contains(uint64(addr), p.mm)
}

func (p *WindowsProcess) currentHandle() (windows.Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handle == 0 {
		return 0, process.ErrProcessNotOpen
	}
	return p.handle, nil
}

func (p *WindowsProcess) ReadMemory(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	if size == 0 {
		return []byte{}, nil
	}

	handle, err := p.currentHandle()
	if err != nil {
		return nil, err
	}

	buf := make([]byte, size)
	var bytesRead uintptr
	if err := windows.ReadProcessMemory(handle, uintptr(addr), &buf[0], uintptr(size), &bytesRead); err != nil {
		return nil, fmt.Errorf("ReadProcessMemory failed: %w", err)
	}

	if bytesRead != uintptr(size) {
		return nil, fmt.Errorf("read incomplete: expected %d, got %d", size, bytesRead)
	}

	return buf, nil
}

func (p *WindowsProcess) WriteMemory(addr process.ProcessMemoryAddress, data []byte) error {
	if len(data) == 0 {
		return nil
	}

	handle, err := p.currentHandle()
	if err != nil {
		return err
	}

	var bytesWritten uintptr
	if err := windows.WriteProcessMemory(handle, uintptr(addr), &data[0], uintptr(len(data)), &bytesWritten); err != nil {
		return fmt.Errorf("WriteProcessMemory failed: %w", err)
	}

	if bytesWritten != uintptr(len(data)) {
		return fmt.Errorf("write incomplete: expected %d, got %d", len(data), bytesWritten)
	}

	return nil
}

func (p *WindowsProcess) AllocMemory(size process.ProcessMemorySize, prot process.Protection) (process.ProcessMemoryAddress, error) {
	handle, err := p.currentHandle()
	if err != nil {
		return 0, err
	}

	var protect uint32
	switch prot {
	case process.ProtectReadWrite:
		protect = windows.PAGE_READWRITE
	case process.ProtectExecuteReadWrite:
		protect = windows.PAGE_EXECUTE_READWRITE
	default:
		return 0, fmt.Errorf("unknown protection %v", prot)
	}

	addr, _, callErr := procVirtualAllocEx.Call(
		uintptr(handle),
		0,
		uintptr(size),
		uintptr(windows.MEM_COMMIT|windows.MEM_RESERVE),
		uintptr(protect),
	)
	if addr == 0 {
		return 0, fmt.Errorf("VirtualAllocEx failed: %w", callErr)
	}

	p.log.Debugln("allocated", size, "bytes", prot.String(), "at", process.ProcessMemoryAddress(addr).ToString())
	return process.ProcessMemoryAddress(addr), nil
}

func (p *WindowsProcess) FreeMemory(addr process.ProcessMemoryAddress) error {
	handle, err := p.currentHandle()
	if err != nil {
		return err
	}

	ret, _, callErr := procVirtualFreeEx.Call(
		uintptr(handle),
		uintptr(addr),
		0,
		uintptr(windows.MEM_RELEASE),
	)
	if ret == 0 {
		return fmt.Errorf("VirtualFreeEx failed at %s: %w", addr.ToString(), callErr)
	}

	return nil
}

func (p *WindowsProcess) FlushCode(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) error {
	handle, err := p.currentHandle()
	if err != nil {
		return err
	}

	ret, _, callErr := procFlushInstructionCache.Call(uintptr(handle), uintptr(addr), uintptr(size))
	if ret == 0 {
		return fmt.Errorf("FlushInstructionCache failed: %w", callErr)
	}
	return nil
}

func (p *WindowsProcess) StartThread(entry, param process.ProcessMemoryAddress) (process.RemoteThread, error) {
	handle, err := p.currentHandle()
	if err != nil {
		return nil, err
	}

	var threadID uint32
	hThread, _, callErr := procCreateRemoteThread.Call(
		uintptr(handle),
		0,
		0,
		uintptr(entry),
		uintptr(param),
		0,
		uintptr(unsafe.Pointer(&threadID)),
	)
	if hThread == 0 {
		return nil, fmt.Errorf("CreateRemoteThread failed: %w", callErr)
	}

	p.log.Debugln("remote thread", threadID, "started at", entry.ToString())
	return &remoteThread{handle: windows.Handle(hThread)}, nil
}

type remoteThread struct {
	handle windows.Handle
}

func (t *remoteThread) Wait() error {
	event, err := windows.WaitForSingleObject(t.handle, windows.INFINITE)
	if event == windows.WAIT_FAILED {
		return fmt.Errorf("WaitForSingleObject failed: %w", err)
	}
	return nil
}

func (t *remoteThread) Close() error {
	if t.handle == 0 {
		return nil
	}
	err := windows.CloseHandle(t.handle)
	t.handle = 0
	return err
}

// WindowsProcessHelper implements the process.ProcessHelper interface
type WindowsProcessHelper struct{}

// NewHelper creates a new WindowsProcessHelper
func NewHelper() process.ProcessHelper {
	return &WindowsProcessHelper{}
}

func (h *WindowsProcessHelper) NewWithPID(pid process.ProcessID) (process.Process, error) {
	return NewWithPID(pid)
}
