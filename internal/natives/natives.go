// Package natives is the driver's native-function registry. Which
// natives exist is the embedding host's choice, not part of the language
// itself; clock, type and str are enough timing and reflection support
// for the CLI and REPL to be useful without growing pkg/vm's own scope.
package natives

import (
	"fmt"
	"time"

	"github.com/kristofer/wisp/pkg/bytecode"
	"github.com/kristofer/wisp/pkg/heap"
)

// Register installs every native this driver provides onto define, which
// is ordinarily (*vm.VM).DefineNative, kept as a function value here so
// this package never has to import pkg/vm. h is needed so type/str can
// intern the strings they build, keeping them in the same
// identity-comparable pool as every string literal (string equality is
// pointer identity on interned strings).
func Register(h *heap.Heap, define func(name string, fn bytecode.NativeFn)) {
	define("clock", clock)
	define("type", typeOf(h))
	define("str", str(h))
}

// clock returns the number of seconds since the Unix epoch as a float,
// for scripts timing themselves.
func clock(args []bytecode.Value) (bytecode.Value, error) {
	if len(args) != 0 {
		return bytecode.NilValue, fmt.Errorf("clock() expects 0 arguments but got %d.", len(args))
	}
	return bytecode.NumberValue(float64(time.Now().UnixNano()) / 1e9), nil
}

// typeOf returns the argument's type name as a string, e.g. "number",
// "string", "boolean", "nil", "class", "instance".
func typeOf(h *heap.Heap) bytecode.NativeFn {
	return func(args []bytecode.Value) (bytecode.Value, error) {
		if len(args) != 1 {
			return bytecode.NilValue, fmt.Errorf("type() expects 1 argument but got %d.", len(args))
		}
		return bytecode.ObjectValue(h.InternString(args[0].TypeName())), nil
	}
}

// str renders any value the same way the `print` statement would, as a
// string, useful for string concatenation with non-string values, since
// OpAdd itself only concatenates two strings.
func str(h *heap.Heap) bytecode.NativeFn {
	return func(args []bytecode.Value) (bytecode.Value, error) {
		if len(args) != 1 {
			return bytecode.NilValue, fmt.Errorf("str() expects 1 argument but got %d.", len(args))
		}
		return bytecode.ObjectValue(h.InternString(bytecode.Print(args[0]))), nil
	}
}
