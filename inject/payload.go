package inject

import (
	"encoding/binary"
	"fmt"

	"parentenv/process"
)

// Payload layout. The routine running in the target reads these offsets
// directly, so they are part of its machine code: change both together.
//
//	0x00  procedure address            8 bytes
//	0x08  target address of name       8 bytes
//	0x10  target address of value      8 bytes
//	0x18  result BOOL                  4 bytes, written by the routine
//	0x1C  reserved                     4 bytes, zero
//	0x20  name, NUL terminated         maxLength+1 bytes
//	....  value, NUL terminated        maxLength+1 bytes
//
// All fields are little-endian. 32-bit routines use the low dword of the
// address slots.
const (
	OffsetProc     = 0x00
	OffsetName     = 0x08
	OffsetValue    = 0x10
	OffsetResult   = 0x18
	OffsetReserved = 0x1C
	HeaderSize     = 0x20
)

// Payload is the decoded form of the block staged in the target
type Payload struct {
	Proc   process.ProcessMemoryAddress
	Name   string
	Value  string
	Result bool
}

// PayloadSize is the exact size of a packed payload for a given ceiling
func PayloadSize(maxLength int) process.ProcessMemorySize {
	return process.ProcessMemorySize(HeaderSize + 2*(maxLength+1))
}

func nameOffset() int {
	return HeaderSize
}

func valueOffset(maxLength int) int {
	return HeaderSize + maxLength + 1
}

// Pack lays the payload out for a data region starting at base in the target
func (p Payload) Pack(base process.ProcessMemoryAddress, maxLength int) ([]byte, error) {
	if len(p.Name) > maxLength || len(p.Value) > maxLength {
		return nil, fmt.Errorf("%w: ceiling is %d bytes", ErrArgumentTooLong, maxLength)
	}

	buf := make([]byte, PayloadSize(maxLength))
	binary.LittleEndian.PutUint64(buf[OffsetProc:], uint64(p.Proc))
	binary.LittleEndian.PutUint64(buf[OffsetName:], uint64(base)+uint64(nameOffset()))
	binary.LittleEndian.PutUint64(buf[OffsetValue:], uint64(base)+uint64(valueOffset(maxLength)))
	if p.Result {
		binary.LittleEndian.PutUint32(buf[OffsetResult:], 1)
	}

	// The zeroed tail of each buffer is the terminator
	copy(buf[nameOffset():], p.Name)
	copy(buf[valueOffset(maxLength):], p.Value)

	return buf, nil
}

// Unpack decodes a payload read back from a data region at base
func Unpack(data []byte, base process.ProcessMemoryAddress, maxLength int) (Payload, error) {
	if len(data) != int(PayloadSize(maxLength)) {
		return Payload{}, fmt.Errorf("payload is %d bytes, expected %d", len(data), PayloadSize(maxLength))
	}

	namePtr := binary.LittleEndian.Uint64(data[OffsetName:])
	valuePtr := binary.LittleEndian.Uint64(data[OffsetValue:])
	if namePtr != uint64(base)+uint64(nameOffset()) || valuePtr != uint64(base)+uint64(valueOffset(maxLength)) {
		return Payload{}, fmt.Errorf("payload string addresses do not match base %s", base.ToString())
	}

	result, err := UnpackResult(data)
	if err != nil {
		return Payload{}, err
	}

	return Payload{
		Proc:   process.ProcessMemoryAddress(binary.LittleEndian.Uint64(data[OffsetProc:])),
		Name:   cString(data[nameOffset():valueOffset(maxLength)]),
		Value:  cString(data[valueOffset(maxLength):]),
		Result: result,
	}, nil
}

// UnpackResult reads the BOOL the routine stored; any non-zero value is true
func UnpackResult(data []byte) (bool, error) {
	if len(data) < OffsetResult+4 {
		return false, fmt.Errorf("payload header truncated: %d bytes", len(data))
	}
	return binary.LittleEndian.Uint32(data[OffsetResult:]) != 0, nil
}

func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
