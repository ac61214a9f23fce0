// Package inject sets an environment variable inside another, already
// running process. A process cannot call into a foreign address space, so
// both the arguments and a tiny thread procedure are copied into the target
// and run there on a thread created for the purpose.
package inject

import (
	"errors"
	"fmt"
	"strings"

	"parentenv/hexdump"
	"parentenv/process"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	"go.uber.org/multierr"
)

const (
	// MaxPathCeiling is the length limit used by the embedded frontend (MAX_PATH)
	MaxPathCeiling = 260

	// StandaloneCeiling is the length limit used by the standalone executable
	StandaloneCeiling = 4095

	SetEnvironmentModule    = "kernel32.dll"
	SetEnvironmentProcedure = "SetEnvironmentVariableA"
)

var (
	ErrArgumentTooLong   = errors.New("argument too long")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrOpenTargetFailed  = errors.New("could not open target process")
	ErrStageDataFailed   = errors.New("could not stage data in target process")
	ErrStageCodeFailed   = errors.New("could not stage code in target process")
	ErrStartThreadFailed = errors.New("could not run remote thread in target process")
	ErrCleanupFailed     = errors.New("could not release target process resources")
)

// Result is the outcome of an injection that ran to completion
type Result int

const (
	// NoOp means the target's SetEnvironmentVariable returned FALSE
	NoOp Result = iota
	// Success means the variable was set in the target
	Success
)

func (r Result) String() string {
	switch r {
	case Success:
		return "success"
	case NoOp:
		return "no-op"
	default:
		return fmt.Sprintf("Result(%d)", int(r))
	}
}

// SymbolResolver finds the address of an exported procedure in the current process
type SymbolResolver interface {
	ProcAddress(module, name string) (process.ProcessMemoryAddress, error)
}

// Options configures an Injector
type Options struct {
	// MaxLength is the byte ceiling for names and values; MaxPathCeiling when zero
	MaxLength int

	// VerifyCleanup re-reads the target's memory map after releasing the
	// staged regions and fails if either is still committed
	VerifyCleanup bool

	// TracePayload logs a hexdump of the staged payload
	TracePayload bool

	// Routine overrides the thread procedure; the native one when nil
	Routine *Routine
}

// Injector performs one environment mutation per Inject call. Concurrent
// calls against the same target are not serialized.
type Injector struct {
	helper   process.ProcessHelper
	resolver SymbolResolver
	opts     Options
	log      *logger.Logger
}

// New creates an Injector backed by the platform's process implementation
func New(opts Options) *Injector {
	return NewWithBackend(defaultHelper(), defaultResolver(), opts)
}

// NewWithBackend creates an Injector over explicit process and symbol backends
func NewWithBackend(helper process.ProcessHelper, resolver SymbolResolver, opts Options) *Injector {
	if opts.MaxLength <= 0 {
		opts.MaxLength = MaxPathCeiling
	}
	return &Injector{
		helper:   helper,
		resolver: resolver,
		opts:     opts,
		log:      logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "inject")),
	}
}

// MaxLength returns the configured ceiling
func (i *Injector) MaxLength() int {
	return i.opts.MaxLength
}

// Inject sets name=value in the environment of pid.
//
// A non-nil error wrapping ErrCleanupFailed may accompany either Result: the
// mutation itself completed but a staged region or handle could not be
// released.
func (i *Injector) Inject(pid process.ProcessID, name, value string) (result Result, err error) {
	if err := i.validate(name, value); err != nil {
		return NoOp, err
	}

	routine, err := i.routine()
	if err != nil {
		return NoOp, fmt.Errorf("%w: %v", ErrStageCodeFailed, err)
	}

	target, err := i.helper.NewWithPID(pid)
	if err != nil {
		return NoOp, fmt.Errorf("%w: pid %d: %v", ErrOpenTargetFailed, pid, err)
	}

	staged := &staging{target: target}
	defer func() {
		if cleanupErr := staged.release(i.opts.VerifyCleanup); cleanupErr != nil {
			i.log.Warn("cleanup in pid ", pid, " failed: ", cleanupErr)
			err = multierr.Append(err, fmt.Errorf("%w: %v", ErrCleanupFailed, cleanupErr))
		}
	}()

	if err := i.stageData(staged, name, value); err != nil {
		return NoOp, err
	}

	if err := i.stageCode(staged, routine); err != nil {
		return NoOp, err
	}

	if err := i.run(staged); err != nil {
		return NoOp, err
	}

	header, err := target.ReadMemory(staged.data, HeaderSize)
	if err != nil {
		return NoOp, fmt.Errorf("could not read result from pid %d: %w", pid, err)
	}

	ok, err := UnpackResult(header)
	if err != nil {
		return NoOp, err
	}

	if !ok {
		i.log.Debugln("pid", pid, "reported no change for", name)
		return NoOp, nil
	}

	i.log.Debugln("set", name, "in pid", pid)
	return Success, nil
}

func (i *Injector) validate(name, value string) error {
	if len(name) > i.opts.MaxLength || len(value) > i.opts.MaxLength {
		return fmt.Errorf("%w: name is %d bytes, value is %d bytes, ceiling is %d",
			ErrArgumentTooLong, len(name), len(value), i.opts.MaxLength)
	}
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidArgument)
	}
	if strings.IndexByte(name, 0) >= 0 || strings.IndexByte(value, 0) >= 0 {
		return fmt.Errorf("%w: embedded NUL", ErrInvalidArgument)
	}
	return nil
}

func (i *Injector) routine() (Routine, error) {
	if i.opts.Routine != nil {
		return *i.opts.Routine, nil
	}
	return NativeRoutine()
}

// stageData resolves the procedure, then allocates and fills the payload region
func (i *Injector) stageData(s *staging, name, value string) error {
	proc, err := i.resolver.ProcAddress(SetEnvironmentModule, SetEnvironmentProcedure)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStageDataFailed, err)
	}

	size := PayloadSize(i.opts.MaxLength)
	addr, err := s.target.AllocMemory(size, process.ProtectReadWrite)
	if err != nil {
		return fmt.Errorf("%w: allocate %s: %v", ErrStageDataFailed, size.ToString(), err)
	}
	s.data = addr

	packed, err := Payload{Proc: proc, Name: name, Value: value}.Pack(addr, i.opts.MaxLength)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStageDataFailed, err)
	}

	if i.opts.TracePayload {
		i.log.Debugln("payload at", addr.ToString(), "\n"+hexdump.DumpWithOffset(packed, uint64(addr)))
	}

	if err := s.target.WriteMemory(addr, packed); err != nil {
		return fmt.Errorf("%w: write: %v", ErrStageDataFailed, err)
	}
	return nil
}

// stageCode copies the routine into a fresh executable region
func (i *Injector) stageCode(s *staging, routine Routine) error {
	size := process.ProcessMemorySize(routine.Size())
	addr, err := s.target.AllocMemory(size, process.ProtectExecuteReadWrite)
	if err != nil {
		return fmt.Errorf("%w: allocate %s: %v", ErrStageCodeFailed, size.ToString(), err)
	}
	s.code = addr

	if err := s.target.WriteMemory(addr, routine.Code); err != nil {
		return fmt.Errorf("%w: write: %v", ErrStageCodeFailed, err)
	}

	if err := s.target.FlushCode(addr, size); err != nil {
		return fmt.Errorf("%w: %v", ErrStageCodeFailed, err)
	}
	return nil
}

// run starts the routine and blocks until it returns. There is no timeout:
// the routine makes a single call and exits.
func (i *Injector) run(s *staging) error {
	thread, err := s.target.StartThread(s.code, s.data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStartThreadFailed, err)
	}

	waitErr := thread.Wait()
	closeErr := thread.Close()
	if waitErr != nil {
		return fmt.Errorf("%w: wait: %v", ErrStartThreadFailed, waitErr)
	}
	if closeErr != nil {
		i.log.Warn("closing remote thread handle: ", closeErr)
	}
	return nil
}

// staging tracks what one Inject call owns in the target
type staging struct {
	target process.Process
	data   process.ProcessMemoryAddress
	code   process.ProcessMemoryAddress
}

// release frees the code region, then the data region, then closes the
// target. Every step is attempted regardless of earlier failures.
func (s *staging) release(verify bool) error {
	var err error

	if s.code != 0 {
		err = multierr.Append(err, s.target.FreeMemory(s.code))
	}
	if s.data != 0 {
		err = multierr.Append(err, s.target.FreeMemory(s.data))
	}

	if verify && err == nil && (s.code != 0 || s.data != 0) {
		err = multierr.Append(err, s.verify())
	}

	err = multierr.Append(err, s.target.Close())
	return err
}

func (s *staging) verify() error {
	if err := s.target.UpdateMemoryMap(); err != nil {
		return fmt.Errorf("memory map: %w", err)
	}

	var err error
	for _, addr := range []process.ProcessMemoryAddress{s.code, s.data} {
		if addr != 0 && s.target.IsValidAddress(addr) {
			err = multierr.Append(err, fmt.Errorf("region at %s still committed", addr.ToString()))
		}
	}
	return err
}
