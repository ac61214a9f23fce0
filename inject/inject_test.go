package inject

import (
	"errors"
	"strings"
	"testing"

	"parentenv/process"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestInjector(opts Options) (*Injector, *spyProcess, *spyHelper) {
	proc := newSpyProcess()
	helper := &spyHelper{proc: proc}
	amd64, _ := RoutineFor("amd64")
	if opts.Routine == nil {
		opts.Routine = &amd64
	}
	return NewWithBackend(helper, spyResolver{}, opts), proc, helper
}

func TestInjectSetsVariable(t *testing.T) {
	inj, proc, _ := newTestInjector(Options{})

	result, err := inj.Inject(1234, "OPAM_TEST", "1")
	require.NoError(t, err)
	assert.Equal(t, Success, result)
	assert.Equal(t, "1", proc.env["OPAM_TEST"])

	assert.Equal(t, []string{
		"open 1234",
		"alloc rw-",
		"write 554",
		"alloc rwx",
		"write 29",
		"flush 29",
		"start",
		"wait",
		"close thread",
		"read 32",
		"free 0x20000",
		"free 0x10000",
		"close",
	}, proc.calls)
	assert.Zero(t, proc.allocated())
	assert.False(t, proc.open)
}

func TestInjectEmptyValueIsNoOp(t *testing.T) {
	inj, proc, _ := newTestInjector(Options{})

	result, err := inj.Inject(1, "OPAM_TEST", "")
	require.NoError(t, err)
	assert.Equal(t, NoOp, result)

	_, err = inj.Inject(1, "OPAM_TEST", "1")
	require.NoError(t, err)
	assert.Equal(t, "1", proc.env["OPAM_TEST"])

	// Deleting an existing variable reports success from the target
	result, err = inj.Inject(1, "OPAM_TEST", "")
	require.NoError(t, err)
	assert.Equal(t, Success, result)
	assert.NotContains(t, proc.env, "OPAM_TEST")
}

func TestInjectArgumentTooLong(t *testing.T) {
	for _, ceiling := range []int{MaxPathCeiling, StandaloneCeiling} {
		inj, proc, helper := newTestInjector(Options{MaxLength: ceiling})
		tooLong := strings.Repeat("x", ceiling+1)

		_, err := inj.Inject(1, tooLong, "v")
		assert.ErrorIs(t, err, ErrArgumentTooLong)

		_, err = inj.Inject(1, "NAME", tooLong)
		assert.ErrorIs(t, err, ErrArgumentTooLong)

		assert.Zero(t, helper.opened, "target must not be opened")
		assert.Empty(t, proc.calls)

		// Exactly at the ceiling is accepted
		result, err := inj.Inject(1, "NAME", strings.Repeat("y", ceiling))
		require.NoError(t, err)
		assert.Equal(t, Success, result)
		assert.Len(t, proc.env["NAME"], ceiling)
	}
}

func TestInjectInvalidArgument(t *testing.T) {
	inj, _, helper := newTestInjector(Options{})

	_, err := inj.Inject(1, "", "v")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = inj.Inject(1, "A\x00B", "v")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	assert.Zero(t, helper.opened)
}

func TestInjectOpenFailure(t *testing.T) {
	inj, proc, helper := newTestInjector(Options{})
	helper.openErr = errors.New("access denied")

	_, err := inj.Inject(4, "A", "B")
	assert.ErrorIs(t, err, ErrOpenTargetFailed)
	assert.Empty(t, proc.calls)
}

func TestInjectFailureCleanup(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name  string
		setup func(p *spyProcess)
		want  error
		calls []string
	}{
		{
			name:  "allocate data",
			setup: func(p *spyProcess) { p.failAlloc[process.ProtectReadWrite] = boom },
			want:  ErrStageDataFailed,
			calls: []string{"open 1", "alloc rw-", "close"},
		},
		{
			name:  "write data",
			setup: func(p *spyProcess) { p.failWrite[0x10000] = boom },
			want:  ErrStageDataFailed,
			calls: []string{"open 1", "alloc rw-", "write 554", "free 0x10000", "close"},
		},
		{
			name:  "allocate code",
			setup: func(p *spyProcess) { p.failAlloc[process.ProtectExecuteReadWrite] = boom },
			want:  ErrStageCodeFailed,
			calls: []string{"open 1", "alloc rw-", "write 554", "alloc rwx", "free 0x10000", "close"},
		},
		{
			name:  "write code",
			setup: func(p *spyProcess) { p.failWrite[0x20000] = boom },
			want:  ErrStageCodeFailed,
			calls: []string{"open 1", "alloc rw-", "write 554", "alloc rwx", "write 29", "free 0x20000", "free 0x10000", "close"},
		},
		{
			name:  "flush code",
			setup: func(p *spyProcess) { p.failFlush = boom },
			want:  ErrStageCodeFailed,
			calls: []string{"open 1", "alloc rw-", "write 554", "alloc rwx", "write 29", "flush 29", "free 0x20000", "free 0x10000", "close"},
		},
		{
			name:  "start thread",
			setup: func(p *spyProcess) { p.failStart = boom },
			want:  ErrStartThreadFailed,
			calls: []string{"open 1", "alloc rw-", "write 554", "alloc rwx", "write 29", "flush 29", "start", "free 0x20000", "free 0x10000", "close"},
		},
		{
			name:  "wait thread",
			setup: func(p *spyProcess) { p.failWait = boom },
			want:  ErrStartThreadFailed,
			calls: []string{"open 1", "alloc rw-", "write 554", "alloc rwx", "write 29", "flush 29", "start", "wait", "close thread", "free 0x20000", "free 0x10000", "close"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inj, proc, _ := newTestInjector(Options{})
			tt.setup(proc)

			result, err := inj.Inject(1, "A", "B")
			assert.ErrorIs(t, err, tt.want)
			assert.NotErrorIs(t, err, ErrCleanupFailed)
			assert.Equal(t, NoOp, result)
			assert.Equal(t, tt.calls, proc.calls)
			assert.Zero(t, proc.allocated(), "no region may outlive the call")
			assert.False(t, proc.open)
			assert.NotContains(t, proc.env, "A")
		})
	}
}

func TestInjectResolveFailure(t *testing.T) {
	proc := newSpyProcess()
	amd64, _ := RoutineFor("amd64")
	inj := NewWithBackend(&spyHelper{proc: proc}, spyResolver{err: errors.New("no kernel32")}, Options{Routine: &amd64})

	_, err := inj.Inject(1, "A", "B")
	assert.ErrorIs(t, err, ErrStageDataFailed)
	assert.Equal(t, []string{"open 1", "close"}, proc.calls)
}

func TestInjectReadBackFailure(t *testing.T) {
	inj, proc, _ := newTestInjector(Options{})
	proc.failRead = errors.New("partial copy")

	result, err := inj.Inject(1, "A", "B")
	assert.Error(t, err)
	assert.Equal(t, NoOp, result)
	assert.Zero(t, proc.allocated())
}

func TestInjectCleanupFailureIsReported(t *testing.T) {
	inj, proc, _ := newTestInjector(Options{})
	proc.failFree = errors.New("invalid address")

	result, err := inj.Inject(1, "A", "B")
	assert.Equal(t, Success, result, "the mutation itself went through")
	assert.ErrorIs(t, err, ErrCleanupFailed)
	assert.Contains(t, proc.calls, "free 0x20000")
	assert.Contains(t, proc.calls, "free 0x10000")
	assert.Equal(t, "close", proc.calls[len(proc.calls)-1], "the target is closed even when freeing fails")
}

func TestInjectVerifyCleanup(t *testing.T) {
	inj, proc, _ := newTestInjector(Options{VerifyCleanup: true})

	result, err := inj.Inject(1, "A", "B")
	require.NoError(t, err)
	assert.Equal(t, Success, result)
	assert.Contains(t, proc.calls, "memory map")

	leaky, leakyProc, _ := newTestInjector(Options{VerifyCleanup: true})
	leakyProc.leakOnFree = true

	_, err = leaky.Inject(1, "A", "B")
	assert.ErrorIs(t, err, ErrCleanupFailed)
	assert.Contains(t, err.Error(), "still committed")
}

func TestInjectTracePayload(t *testing.T) {
	inj, proc, _ := newTestInjector(Options{TracePayload: true})

	_, err := inj.Inject(1, "A", "B")
	require.NoError(t, err)
	assert.Equal(t, "B", proc.env["A"])
}

func TestDefaultMaxLength(t *testing.T) {
	inj, _, _ := newTestInjector(Options{})
	assert.Equal(t, MaxPathCeiling, inj.MaxLength())
}

func TestResultString(t *testing.T) {
	assert.Equal(t, "success", Success.String())
	assert.Equal(t, "no-op", NoOp.String())
}
