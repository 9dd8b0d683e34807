package vm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kristofer/wisp/pkg/heap"
)

// A closure-heavy program forces upvalues open and closed across function
// boundaries; afterwards the open-upvalue list must be empty, no
// call frame may remain, and the stack must be fully unwound.
func TestInterpret_UnwindsCompletely(t *testing.T) {
	h := heap.New()
	machine := New(h)
	machine.Stdout = func(string) {}

	result, err := machine.Interpret(`
		fun mk() {
			var i = 0;
			fun f() { i = i + 1; return i; }
			return f;
		}
		var a = mk();
		var b = mk();
		print a();
		print b();
		print a();
	`)
	require.NoError(t, err)
	require.Equal(t, ResultOK, result)

	require.Nil(t, machine.openUpvalues, "open upvalue list must be empty after Interpret")
	require.Empty(t, machine.frames, "no call frame may survive Interpret")
	require.Zero(t, machine.stackTop, "value stack must be fully unwound")
}

func TestInterpret_UnwindsCompletelyAfterRuntimeError(t *testing.T) {
	h := heap.New()
	machine := New(h)
	machine.Stdout = func(string) {}

	result, err := machine.Interpret(`
		fun boom() { return 1 + nil; }
		fun outer() { return boom(); }
		outer();
	`)
	require.Error(t, err)
	require.Equal(t, ResultRuntimeError, result)

	require.Nil(t, machine.openUpvalues)
	require.Empty(t, machine.frames)
	require.Zero(t, machine.stackTop)
}
