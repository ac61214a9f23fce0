//go:build linux

package process_linux

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"parentenv/process"
)

// LinuxProcessFinder implements the process.ProcessFinder interface on top of /proc
type LinuxProcessFinder struct {
	// Root is the procfs mount point, "/proc" unless overridden in tests
	Root string
}

// NewProcessFinder creates a new LinuxProcessFinder
func NewProcessFinder() process.ProcessFinder {
	return &LinuxProcessFinder{Root: "/proc"}
}

func (f *LinuxProcessFinder) CurrentPID() process.ProcessID {
	return process.ProcessID(os.Getpid())
}

// Snapshot reads every /proc/<pid>/stat once. Processes that exit while the
// directory is being read are skipped.
func (f *LinuxProcessFinder) Snapshot() (process.ProcessSnapshot, error) {
	entries, err := os.ReadDir(f.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.Root, err)
	}

	var records []process.ProcessRecord
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		pid, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue // Skip non-numeric directories
		}

		statData, err := os.ReadFile(filepath.Join(f.Root, entry.Name(), "stat"))
		if err != nil {
			continue
		}

		record, err := parseStatFile(string(statData))
		if err != nil {
			continue
		}
		record.PID = process.ProcessID(pid)

		records = append(records, record)
	}

	return &procSnapshot{records: records}, nil
}

// parseStatFile parses /proc/[pid]/stat. The command name is the text between
// the first '(' and the last ')', and may itself contain spaces or parentheses.
func parseStatFile(data string) (process.ProcessRecord, error) {
	open := strings.IndexByte(data, '(')
	closing := strings.LastIndexByte(data, ')')
	if open < 0 || closing < open {
		return process.ProcessRecord{}, fmt.Errorf("invalid stat file format")
	}

	// Fields after the name: state, ppid, ...
	fields := strings.Fields(data[closing+1:])
	if len(fields) < 2 {
		return process.ProcessRecord{}, fmt.Errorf("invalid stat file format")
	}

	ppid, err := strconv.Atoi(fields[1])
	if err != nil {
		return process.ProcessRecord{}, fmt.Errorf("invalid ppid %q: %w", fields[1], err)
	}

	return process.ProcessRecord{
		PPID: process.ProcessID(ppid),
		Name: data[open+1 : closing],
	}, nil
}

type procSnapshot struct {
	records []process.ProcessRecord
	pos     int
	closed  bool
}

func (s *procSnapshot) First() (process.ProcessRecord, error) {
	s.pos = 0
	return s.Next()
}

func (s *procSnapshot) Next() (process.ProcessRecord, error) {
	if s.closed {
		return process.ProcessRecord{}, process.ErrProcessNotOpen
	}
	if s.pos >= len(s.records) {
		return process.ProcessRecord{}, process.ErrNoMoreProcesses
	}
	record := s.records[s.pos]
	s.pos++
	return record, nil
}

func (s *procSnapshot) Close() error {
	s.closed = true
	s.records = nil
	return nil
}
