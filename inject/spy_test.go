package inject

import (
	"errors"
	"fmt"

	"parentenv/process"
	"parentenv/process/memory_map"
)

var errUnmapped = errors.New("address not mapped")

// spyProcess simulates a target address space and records every call made
// against it, so tests can check ordering and cleanup.
type spyProcess struct {
	calls   []string
	pid     process.ProcessID
	open    bool
	next    process.ProcessMemoryAddress
	regions map[process.ProcessMemoryAddress][]byte
	mm      []memory_map.MemoryMapItem

	// environment of the simulated target
	env map[string]string

	failAlloc  map[process.Protection]error
	failWrite  map[process.ProcessMemoryAddress]error
	failFree   error
	failFlush  error
	failStart  error
	failWait   error
	failRead   error
	leakOnFree bool
}

func newSpyProcess() *spyProcess {
	return &spyProcess{
		next:      0x10000,
		regions:   map[process.ProcessMemoryAddress][]byte{},
		env:       map[string]string{},
		failAlloc: map[process.Protection]error{},
		failWrite: map[process.ProcessMemoryAddress]error{},
	}
}

func (s *spyProcess) record(format string, args ...any) {
	s.calls = append(s.calls, fmt.Sprintf(format, args...))
}

func (s *spyProcess) attach(pid process.ProcessID) {
	s.record("open %d", pid)
	s.pid = pid
	s.open = true
}

func (s *spyProcess) Close() error {
	s.record("close")
	s.open = false
	return nil
}

func (s *spyProcess) UpdateMemoryMap() error {
	s.record("memory map")
	s.mm = nil
	for addr, data := range s.regions {
		s.mm = append(s.mm, memory_map.MemoryMapItem{Address: uint64(addr), Size: uint(len(data)), Perms: "rw-p"})
	}
	memory_map.Sort(s.mm)
	return nil
}

func (s *spyProcess) IsValidAddress(addr process.ProcessMemoryAddress) bool {
	return memory_map.Contains(uint64(addr), s.mm)
}

func (s *spyProcess) ReadMemory(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	s.record("read %d", size)
	if s.failRead != nil {
		return nil, s.failRead
	}
	region, ok := s.regions[addr]
	if !ok || len(region) < int(size) {
		return nil, errUnmapped
	}
	return append([]byte(nil), region[:size]...), nil
}

func (s *spyProcess) WriteMemory(addr process.ProcessMemoryAddress, data []byte) error {
	s.record("write %d", len(data))
	if err := s.failWrite[addr]; err != nil {
		return err
	}
	region, ok := s.regions[addr]
	if !ok || len(region) < len(data) {
		return errUnmapped
	}
	copy(region, data)
	return nil
}

func (s *spyProcess) AllocMemory(size process.ProcessMemorySize, prot process.Protection) (process.ProcessMemoryAddress, error) {
	s.record("alloc %s", prot)
	if err := s.failAlloc[prot]; err != nil {
		return 0, err
	}
	addr := s.next
	s.next += 0x10000
	s.regions[addr] = make([]byte, size)
	return addr, nil
}

func (s *spyProcess) FreeMemory(addr process.ProcessMemoryAddress) error {
	s.record("free 0x%X", uint64(addr))
	if s.failFree != nil {
		return s.failFree
	}
	if !s.leakOnFree {
		delete(s.regions, addr)
	}
	return nil
}

func (s *spyProcess) FlushCode(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) error {
	s.record("flush %d", size)
	return s.failFlush
}

func (s *spyProcess) StartThread(entry, param process.ProcessMemoryAddress) (process.RemoteThread, error) {
	s.record("start")
	if s.failStart != nil {
		return nil, s.failStart
	}
	return &spyThread{proc: s, entry: entry, param: param}, nil
}

// allocated reports the regions still committed in the simulated target
func (s *spyProcess) allocated() int {
	return len(s.regions)
}

type spyThread struct {
	proc  *spyProcess
	entry process.ProcessMemoryAddress
	param process.ProcessMemoryAddress
}

// Wait "runs" the routine: it decodes the staged payload the way the machine
// code would and applies SetEnvironmentVariableA semantics.
func (t *spyThread) Wait() error {
	s := t.proc
	s.record("wait")
	if s.failWait != nil {
		return s.failWait
	}

	if _, ok := s.regions[t.entry]; !ok {
		return errors.New("entry point not mapped")
	}
	data, ok := s.regions[t.param]
	if !ok {
		return errors.New("parameter not mapped")
	}

	maxLength := (len(data)-HeaderSize)/2 - 1
	payload, err := Unpack(data, t.param, maxLength)
	if err != nil {
		return err
	}
	if payload.Proc != spyProcAddress {
		return errors.New("wrong procedure address")
	}

	// An empty value deletes the variable; deleting an unset one fails.
	ok = true
	if payload.Value == "" {
		_, ok = s.env[payload.Name]
		delete(s.env, payload.Name)
	} else {
		s.env[payload.Name] = payload.Value
	}
	if ok {
		data[OffsetResult] = 1
	}
	return nil
}

func (t *spyThread) Close() error {
	t.proc.record("close thread")
	return nil
}

const spyProcAddress = process.ProcessMemoryAddress(0x7FF800001234)

type spyHelper struct {
	proc    *spyProcess
	opened  int
	openErr error
}

func (h *spyHelper) NewWithPID(pid process.ProcessID) (process.Process, error) {
	h.opened++
	if h.openErr != nil {
		return nil, h.openErr
	}
	h.proc.attach(pid)
	return h.proc, nil
}

type spyResolver struct {
	err error
}

func (r spyResolver) ProcAddress(module, name string) (process.ProcessMemoryAddress, error) {
	if r.err != nil {
		return 0, r.err
	}
	if module != SetEnvironmentModule || name != SetEnvironmentProcedure {
		return 0, fmt.Errorf("unexpected symbol %s!%s", module, name)
	}
	return spyProcAddress, nil
}
