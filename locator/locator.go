// Package locator finds ancestors of the current process by walking a
// system-wide process snapshot. There is no direct "parent of pid" query:
// the only way to learn a parent is to find the process's own record.
package locator

import (
	"errors"
	"fmt"

	"parentenv/process"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

var (
	// ErrProcessNotFound is returned when a full walk did not find the pid.
	ErrProcessNotFound = errors.New("process not found")

	// ErrSnapshotWalkFailed is returned when the snapshot cannot be taken or read, or is empty.
	ErrSnapshotWalkFailed = errors.New("snapshot walk failed")

	// ErrInvalidSteps is returned for an ancestor depth below one.
	ErrInvalidSteps = errors.New("ancestor steps must be at least 1")
)

// Locator resolves process records from snapshots taken by a ProcessFinder
type Locator struct {
	finder process.ProcessFinder
	log    *logger.Logger
}

// New creates a Locator over the platform's process finder
func New() *Locator {
	return NewWithFinder(defaultFinder())
}

// NewWithFinder creates a Locator over an explicit finder
func NewWithFinder(finder process.ProcessFinder) *Locator {
	return &Locator{
		finder: finder,
		log:    logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "locator")),
	}
}

// FindProcess returns the snapshot record of pid
func (l *Locator) FindProcess(pid process.ProcessID) (process.ProcessRecord, error) {
	snap, err := l.snapshot()
	if err != nil {
		return process.ProcessRecord{}, err
	}
	defer snap.Close()

	return scan(snap, pid)
}

// FindAncestor walks steps generations up from the current process within a
// single snapshot. The returned pid is the one recorded in the snapshot; the
// process may since have exited and the number been reused.
func (l *Locator) FindAncestor(steps int) (process.ProcessID, error) {
	if steps < 1 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidSteps, steps)
	}

	snap, err := l.snapshot()
	if err != nil {
		return 0, err
	}
	defer snap.Close()

	target := l.finder.CurrentPID()
	for i := 0; i < steps; i++ {
		record, err := scan(snap, target)
		if err != nil {
			return 0, err
		}
		l.log.Debugln("generation", i+1, "of", steps, ":", record.String())
		target = record.PPID
	}

	return target, nil
}

// GetParent returns the parent pid, or the grandparent's when includeGrandparent is set
func (l *Locator) GetParent(includeGrandparent bool) (int32, error) {
	steps := 1
	if includeGrandparent {
		steps = 2
	}

	pid, err := l.FindAncestor(steps)
	if err != nil {
		return 0, err
	}
	return int32(pid), nil
}

func (l *Locator) snapshot() (process.ProcessSnapshot, error) {
	snap, err := l.finder.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSnapshotWalkFailed, err)
	}
	return snap, nil
}

// scan restarts the walk and reads until the record for pid shows up
func scan(snap process.ProcessSnapshot, pid process.ProcessID) (process.ProcessRecord, error) {
	record, err := snap.First()
	if err != nil {
		// An empty snapshot is as unusable as an unreadable one
		return process.ProcessRecord{}, fmt.Errorf("%w: %v", ErrSnapshotWalkFailed, err)
	}

	for record.PID != pid {
		record, err = snap.Next()
		if errors.Is(err, process.ErrNoMoreProcesses) {
			return process.ProcessRecord{}, fmt.Errorf("%w: pid %d", ErrProcessNotFound, pid)
		}
		if err != nil {
			return process.ProcessRecord{}, fmt.Errorf("%w: %v", ErrSnapshotWalkFailed, err)
		}
	}

	return record, nil
}
