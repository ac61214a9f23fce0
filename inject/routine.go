package inject

import (
	"fmt"
	"runtime"
)

// Routine is the position-independent thread procedure copied into the
// target. It takes the payload address as its only argument, calls
// Proc(Name, Value), stores the returned BOOL at OffsetResult and returns 0.
// The target must run the same architecture as the routine.
type Routine struct {
	Arch string
	Code []byte
}

func (r Routine) Size() int {
	return len(r.Code)
}

// Microsoft x64 calling convention: payload in rcx, 32 bytes of shadow space.
var routineAMD64 = Routine{
	Arch: "amd64",
	Code: []byte{
		0x53,                          // push rbx
		0x48, 0x83, 0xEC, 0x20,        // sub  rsp, 0x20
		0x48, 0x89, 0xCB,              // mov  rbx, rcx
		0x48, 0x8B, 0x4B, OffsetName,  // mov  rcx, [rbx+0x08]
		0x48, 0x8B, 0x53, OffsetValue, // mov  rdx, [rbx+0x10]
		0xFF, 0x13,                    // call [rbx]
		0x89, 0x43, OffsetResult,      // mov  [rbx+0x18], eax
		0x31, 0xC0,                    // xor  eax, eax
		0x48, 0x83, 0xC4, 0x20,        // add  rsp, 0x20
		0x5B,                          // pop  rbx
		0xC3,                          // ret
	},
}

// stdcall: payload at [esp+4] on entry, callee pops its arguments.
var routine386 = Routine{
	Arch: "386",
	Code: []byte{
		0x53,                     // push ebx
		0x8B, 0x5C, 0x24, 0x08,   // mov  ebx, [esp+8]
		0xFF, 0x73, OffsetValue,  // push dword [ebx+0x10]
		0xFF, 0x73, OffsetName,   // push dword [ebx+0x08]
		0xFF, 0x13,               // call [ebx]
		0x89, 0x43, OffsetResult, // mov  [ebx+0x18], eax
		0x31, 0xC0,               // xor  eax, eax
		0x5B,                     // pop  ebx
		0xC2, 0x04, 0x00,         // ret  4
	},
}

// AAPCS64: payload in x0. Words are little-endian.
var routineARM64 = Routine{
	Arch: "arm64",
	Code: []byte{
		0xFD, 0x7B, 0xBE, 0xA9, // stp x29, x30, [sp, #-32]!
		0xFD, 0x03, 0x00, 0x91, // mov x29, sp
		0xF3, 0x0B, 0x00, 0xF9, // str x19, [sp, #16]
		0xF3, 0x03, 0x00, 0xAA, // mov x19, x0
		0x70, 0x02, 0x40, 0xF9, // ldr x16, [x19]
		0x60, 0x06, 0x40, 0xF9, // ldr x0, [x19, #8]
		0x61, 0x0A, 0x40, 0xF9, // ldr x1, [x19, #16]
		0x00, 0x02, 0x3F, 0xD6, // blr x16
		0x60, 0x1A, 0x00, 0xB9, // str w0, [x19, #24]
		0x00, 0x00, 0x80, 0x52, // mov w0, #0
		0xF3, 0x0B, 0x40, 0xF9, // ldr x19, [sp, #16]
		0xFD, 0x7B, 0xC2, 0xA8, // ldp x29, x30, [sp], #32
		0xC0, 0x03, 0x5F, 0xD6, // ret
	},
}

var routines = map[string]Routine{
	routineAMD64.Arch: routineAMD64,
	routine386.Arch:   routine386,
	routineARM64.Arch: routineARM64,
}

// RoutineFor returns a copy of the routine for a GOARCH value
func RoutineFor(arch string) (Routine, error) {
	r, ok := routines[arch]
	if !ok {
		return Routine{}, fmt.Errorf("no injection routine for %s", arch)
	}
	return Routine{Arch: r.Arch, Code: append([]byte(nil), r.Code...)}, nil
}

// NativeRoutine returns the routine matching the running binary
func NativeRoutine() (Routine, error) {
	return RoutineFor(runtime.GOARCH)
}
