package putenv

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

const (
	// QuitCommand in place of a name ends an interactive session
	QuitCommand = "::QUIT"

	// LineBufferSize bounds a single protocol line, terminator included
	LineBufferSize = 8192
)

var ErrLineTooLong = errors.New("protocol line too long")

// Record is one name/value assignment read from the interactive protocol
type Record struct {
	Name  string
	Value string
}

// RecordReader decodes the interactive stdin protocol: a name line followed
// by a value line whose first character is a marker that is discarded. Lines
// end in LF or CRLF. The session ends at QuitCommand or at end of input.
// Blank lines between lines are skipped; input that starts with a blank line
// is an empty session.
type RecordReader struct {
	scanner *bufio.Scanner
	started bool
}

func NewRecordReader(r io.Reader) *RecordReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, LineBufferSize), LineBufferSize)
	return &RecordReader{scanner: scanner}
}

// Next returns the next record. ok is false once the session has ended.
func (rr *RecordReader) Next() (rec Record, ok bool, err error) {
	name, ok, err := rr.line()
	if !ok || err != nil || name == QuitCommand {
		return Record{}, false, err
	}

	value, ok, err := rr.line()
	if !ok || err != nil {
		return Record{}, false, err
	}

	return Record{Name: name, Value: value[1:]}, true, nil
}

// line returns the next non-blank line; ok is false at end of input or when
// the very first line is blank
func (rr *RecordReader) line() (string, bool, error) {
	for rr.scanner.Scan() {
		text := rr.scanner.Text()
		first := !rr.started
		rr.started = true
		if text != "" {
			return text, true, nil
		}
		if first {
			return "", false, nil
		}
	}

	err := rr.scanner.Err()
	if errors.Is(err, bufio.ErrTooLong) {
		return "", false, fmt.Errorf("%w: limit is %d bytes", ErrLineTooLong, LineBufferSize)
	}
	return "", false, err
}
