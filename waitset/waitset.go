// Package waitset blocks on a set of process handles until the first one
// exits and reports a normalized exit record for it.
package waitset

import (
	"errors"
	"fmt"

	"parentenv/process"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

// StillActive is the exit code the OS reports for a process that is running
const StillActive = 259

var (
	ErrInvalidCount        = errors.New("invalid handle count")
	ErrWaitFailed          = errors.New("wait failed")
	ErrExitCodeUnavailable = errors.New("exit code unavailable")
)

// Waiter is the OS wait layer
type Waiter interface {
	OpenHandle(pid process.ProcessID) (process.Handle, error)
	// WaitAny blocks without a timeout and returns the index of a signaled handle
	WaitAny(handles []process.Handle) (int, error)
	// Poll reports whether h is signaled; block waits without a timeout
	Poll(h process.Handle, block bool) (bool, error)
	ExitCode(h process.Handle) (uint32, error)
	CloseHandle(h process.Handle) error
}

type WaitSet struct {
	waiter Waiter
	log    *logger.Logger
}

// New creates a WaitSet over the platform wait primitives
func New() *WaitSet {
	return NewWithWaiter(defaultWaiter())
}

func NewWithWaiter(waiter Waiter) *WaitSet {
	return &WaitSet{
		waiter: waiter,
		log:    logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "waitset")),
	}
}

// Open resolves a waitable handle for pid. The caller owns the handle until
// it is consumed by WaitAny or Wait, or released with Close.
func (w *WaitSet) Open(pid process.ProcessID) (process.Handle, error) {
	return w.waiter.OpenHandle(pid)
}

// Close releases a handle that was never consumed
func (w *WaitSet) Close(h process.Handle) error {
	return w.waiter.CloseHandle(h)
}

// WaitAny blocks until one of the first count handles is signaled. The fired
// handle is closed and its value is returned as the record's PID; every other
// handle stays open and owned by the caller. On error no handle is closed.
//
// The exit code is returned as reported, including StillActive.
func (w *WaitSet) WaitAny(handles []process.Handle, count int) (process.ExitStatus, error) {
	if count < 1 || count > len(handles) {
		return process.ExitStatus{}, fmt.Errorf("%w: %d of %d handles", ErrInvalidCount, count, len(handles))
	}

	set := make([]process.Handle, count)
	copy(set, handles[:count])

	index, err := w.waiter.WaitAny(set)
	if err != nil {
		return process.ExitStatus{}, fmt.Errorf("%w: %v", ErrWaitFailed, err)
	}

	fired := set[index]
	w.log.Debugln("handle", fired, "signaled at index", index)
	return w.consume(fired)
}

// Wait is the single-handle primitive. With noHang it returns the zero record
// when the process has not exited. A process whose exit code reads as
// StillActive also yields the zero record and its handle stays open.
func (w *WaitSet) Wait(h process.Handle, noHang bool) (process.ExitStatus, error) {
	signaled, err := w.waiter.Poll(h, !noHang)
	if err != nil {
		return process.ExitStatus{}, fmt.Errorf("%w: %v", ErrWaitFailed, err)
	}
	if !signaled {
		return process.ExitStatus{}, nil
	}

	code, err := w.waiter.ExitCode(h)
	if err != nil {
		return process.ExitStatus{}, fmt.Errorf("%w: %v", ErrExitCodeUnavailable, err)
	}
	if code == StillActive {
		return process.ExitStatus{}, nil
	}

	if err := w.waiter.CloseHandle(h); err != nil {
		w.log.Warn("closing ", h, " failed: ", err)
	}
	return process.ExitStatus{PID: process.ProcessID(h.Value()), Code: code}, nil
}

// consume turns a signaled handle into its record. The handle is closed only
// once a record exists; on error it stays with the caller.
func (w *WaitSet) consume(h process.Handle) (process.ExitStatus, error) {
	code, err := w.waiter.ExitCode(h)
	if err != nil {
		return process.ExitStatus{}, fmt.Errorf("%w: %v", ErrExitCodeUnavailable, err)
	}
	if err := w.waiter.CloseHandle(h); err != nil {
		w.log.Warn("closing ", h, " failed: ", err)
	}
	return process.ExitStatus{PID: process.ProcessID(h.Value()), Code: code}, nil
}

// Outcome is delivered by WaitAnyAsync
type Outcome struct {
	Status process.ExitStatus
	Err    error
}

// WaitAnyAsync runs WaitAny on its own goroutine. The channel receives exactly
// one Outcome. The wait cannot be cancelled.
func (w *WaitSet) WaitAnyAsync(handles []process.Handle, count int) <-chan Outcome {
	set := make([]process.Handle, len(handles))
	copy(set, handles)

	ch := make(chan Outcome, 1)
	go func() {
		status, err := w.WaitAny(set, count)
		ch <- Outcome{Status: status, Err: err}
	}()
	return ch
}
