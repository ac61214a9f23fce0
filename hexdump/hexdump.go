package hexdump

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// HexDumpOptions defines options for customizing the hexdump output
type HexDumpOptions struct {
	// BytesPerLine defines the number of bytes to display per line
	BytesPerLine int

	// ShowASCII determines whether to show the ASCII representation
	ShowASCII bool

	// StartOffset is the address printed for the first byte
	StartOffset uint64

	// OffsetWidth is the width of the offset column in hex digits
	OffsetWidth int

	// MaxLines is the maximum number of lines to show (0 for no limit)
	MaxLines int

	// SkipZeroLines collapses runs of all-zero lines into a single "*" line
	SkipZeroLines bool
}

// DefaultOptions returns the default hexdump options
func DefaultOptions() HexDumpOptions {
	return HexDumpOptions{
		BytesPerLine:  16,
		ShowASCII:     true,
		OffsetWidth:   8,
		SkipZeroLines: true,
	}
}

// Dump creates a hex dump of the given data with specified options
func Dump(data []byte, options HexDumpOptions) string {
	var buffer bytes.Buffer
	DumpToWriter(&buffer, data, options)
	return buffer.String()
}

// DumpToWriter writes a hex dump of the given data to the specified writer
func DumpToWriter(writer io.Writer, data []byte, options HexDumpOptions) {
	if options.BytesPerLine <= 0 {
		options.BytesPerLine = 16
	}
	if options.OffsetWidth <= 0 {
		options.OffsetWidth = 8
	}

	lineCount := 0
	skipping := false
	for offset := 0; offset < len(data); offset += options.BytesPerLine {
		if options.MaxLines > 0 && lineCount >= options.MaxLines {
			fmt.Fprintf(writer, "... %d more bytes\n", len(data)-offset)
			break
		}

		end := offset + options.BytesPerLine
		if end > len(data) {
			end = len(data)
		}
		lineData := data[offset:end]

		// Keep the first and last lines so the extent stays visible
		if options.SkipZeroLines && offset > 0 && end < len(data) && isZero(lineData) {
			if !skipping {
				fmt.Fprintln(writer, "*")
				skipping = true
			}
			continue
		}
		skipping = false

		formatLine(writer, lineData, uint64(offset)+options.StartOffset, options)
		lineCount++
	}
}

// formatLine formats a single line of the hex dump
func formatLine(writer io.Writer, data []byte, offset uint64, options HexDumpOptions) {
	fmt.Fprintf(writer, "%0"+strconv.Itoa(options.OffsetWidth)+"x  ", offset)

	var hex strings.Builder
	for i := 0; i < options.BytesPerLine; i++ {
		if i > 0 {
			hex.WriteByte(' ')
			if i%8 == 0 {
				hex.WriteByte(' ')
			}
		}
		if i < len(data) {
			fmt.Fprintf(&hex, "%02x", data[i])
		} else {
			hex.WriteString("  ")
		}
	}
	fmt.Fprint(writer, hex.String())

	if options.ShowASCII {
		fmt.Fprint(writer, "  |")
		for _, b := range data {
			if b >= 0x20 && b < 0x7f {
				fmt.Fprintf(writer, "%c", b)
			} else {
				fmt.Fprint(writer, ".")
			}
		}
		fmt.Fprint(writer, "|")
	}

	fmt.Fprintln(writer)
}

func isZero(data []byte) bool {
	for _, b := range data {
		if b != 0 {
			return false
		}
	}
	return true
}

// DumpBytes is a convenience function for dumping bytes with default options
func DumpBytes(data []byte) string {
	return Dump(data, DefaultOptions())
}

// DumpWithOffset dumps bytes with addresses starting at startOffset
func DumpWithOffset(data []byte, startOffset uint64) string {
	options := DefaultOptions()
	options.StartOffset = startOffset
	options.OffsetWidth = 16
	return Dump(data, options)
}
