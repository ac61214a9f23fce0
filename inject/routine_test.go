package inject

import (
	"encoding/binary"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoutineAMD64(t *testing.T) {
	r, err := RoutineFor("amd64")
	require.NoError(t, err)

	require.Equal(t, 29, r.Size())
	// mov rcx, [rbx+disp8]; mov rdx, [rbx+disp8]; mov [rbx+disp8], eax
	assert.Equal(t, []byte{0x48, 0x8B, 0x4B, OffsetName}, r.Code[8:12])
	assert.Equal(t, []byte{0x48, 0x8B, 0x53, OffsetValue}, r.Code[12:16])
	assert.Equal(t, []byte{0xFF, 0x13}, r.Code[16:18], "call through the procedure slot at offset 0")
	assert.Equal(t, []byte{0x89, 0x43, OffsetResult}, r.Code[18:21])
	// the stack adjustment is balanced
	assert.Equal(t, r.Code[4], r.Code[26])
	assert.Equal(t, byte(0xC3), r.Code[r.Size()-1])
}

func TestRoutine386(t *testing.T) {
	r, err := RoutineFor("386")
	require.NoError(t, err)

	require.Equal(t, 22, r.Size())
	// arguments pushed right to left: value then name
	assert.Equal(t, []byte{0xFF, 0x73, OffsetValue}, r.Code[5:8])
	assert.Equal(t, []byte{0xFF, 0x73, OffsetName}, r.Code[8:11])
	assert.Equal(t, []byte{0x89, 0x43, OffsetResult}, r.Code[13:16])
	// stdcall: ret 4 pops the single parameter
	assert.Equal(t, []byte{0xC2, 0x04, 0x00}, r.Code[19:])
}

func TestRoutineARM64(t *testing.T) {
	r, err := RoutineFor("arm64")
	require.NoError(t, err)
	require.Equal(t, 0, r.Size()%4)
	require.Equal(t, 13, r.Size()/4)

	word := func(i int) uint32 { return binary.LittleEndian.Uint32(r.Code[i*4:]) }
	// unsigned-offset loads/stores scale imm12 by the access size
	imm12 := func(w uint32) uint32 { return (w >> 10) & 0xFFF }

	assert.Equal(t, uint32(0xF9400270), word(4), "ldr x16, [x19]")
	assert.Equal(t, uint32(OffsetName/8), imm12(word(5)))
	assert.Equal(t, uint32(OffsetValue/8), imm12(word(6)))
	assert.Equal(t, uint32(0xD63F0200), word(7), "blr x16")
	assert.Equal(t, uint32(OffsetResult/4), imm12(word(8)))
	assert.Equal(t, uint32(0xD65F03C0), word(12), "ret")
}

func TestRoutineForUnknownArch(t *testing.T) {
	_, err := RoutineFor("mips")
	assert.Error(t, err)
}

func TestRoutineForReturnsCopy(t *testing.T) {
	r, err := RoutineFor("amd64")
	require.NoError(t, err)
	r.Code[0] = 0xCC

	again, err := RoutineFor("amd64")
	require.NoError(t, err)
	assert.Equal(t, byte(0x53), again.Code[0])
}

func TestNativeRoutine(t *testing.T) {
	r, err := NativeRoutine()
	switch runtime.GOARCH {
	case "amd64", "386", "arm64":
		require.NoError(t, err)
		assert.Equal(t, runtime.GOARCH, r.Arch)
	default:
		assert.Error(t, err)
	}
}
