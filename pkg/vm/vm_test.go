package vm_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kristofer/wisp/pkg/bytecode"
	"github.com/kristofer/wisp/pkg/heap"
	"github.com/kristofer/wisp/pkg/vm"
)

// run interprets source against a fresh VM and returns everything printed,
// one line per `print` statement, joined by newlines (no trailing one),
// captured for assertions instead of going to os.Stdout.
func run(t *testing.T, source string) (string, vm.Result, error) {
	t.Helper()
	h := heap.New()
	machine := vm.New(h)

	var lines []string
	machine.Stdout = func(line string) { lines = append(lines, line) }

	result, err := machine.Interpret(source)
	return strings.Join(lines, "\n"), result, err
}

func TestEndToEnd_ArithmeticPrecedence(t *testing.T) {
	out, result, err := run(t, `print 1 + 2 * 3;`)
	require.NoError(t, err)
	require.Equal(t, vm.ResultOK, result)
	require.Equal(t, "7", out)
}

func TestEndToEnd_StringConcatenation(t *testing.T) {
	out, result, err := run(t, `var a = "foo"; var b = "bar"; print a + b;`)
	require.NoError(t, err)
	require.Equal(t, vm.ResultOK, result)
	require.Equal(t, "foobar", out)
}

func TestEndToEnd_ForLoop(t *testing.T) {
	out, result, err := run(t, `for (var i = 1; i <= 3; i = i + 1) print i;`)
	require.NoError(t, err)
	require.Equal(t, vm.ResultOK, result)
	require.Equal(t, "1\n2\n3", out)
}

func TestEndToEnd_RecursiveFibonacci(t *testing.T) {
	out, result, err := run(t, `
		fun fib(n) { if (n < 2) return n; return fib(n-1) + fib(n-2); }
		print fib(10);
	`)
	require.NoError(t, err)
	require.Equal(t, vm.ResultOK, result)
	require.Equal(t, "55", out)
}

func TestEndToEnd_SuperclassDispatch(t *testing.T) {
	out, result, err := run(t, `
		class A { greet() { print "hi"; } }
		class B < A { greet() { super.greet(); print "there"; } }
		B().greet();
	`)
	require.NoError(t, err)
	require.Equal(t, vm.ResultOK, result)
	require.Equal(t, "hi\nthere", out)
}

func TestEndToEnd_ClosureCounter(t *testing.T) {
	out, result, err := run(t, `
		var c = (fun() {
			var x = 0;
			fun inc() { x = x + 1; return x; }
			return inc;
		})();
		print c();
		print c();
		print c();
	`)
	require.NoError(t, err)
	require.Equal(t, vm.ResultOK, result)
	require.Equal(t, "1\n2\n3", out)
}

func TestClosures_IndependentCounters(t *testing.T) {
	out, result, err := run(t, `
		fun mk() {
			var i = 0;
			fun f() { i = i + 1; return i; }
			return f;
		}
		var a = mk();
		var b = mk();
		print a();
		print a();
		print b();
		print a();
	`)
	require.NoError(t, err)
	require.Equal(t, vm.ResultOK, result)
	require.Equal(t, "1\n2\n1\n3", out)
}

func TestLexicalScope_CapturesByReference(t *testing.T) {
	out, result, err := run(t, `
		var shared;
		var captured;
		{
			var x = "before";
			fun capture() { return x; }
			captured = capture;
			x = "after";
		}
		print captured();
	`)
	require.NoError(t, err)
	require.Equal(t, vm.ResultOK, result)
	require.Equal(t, "after", out)
}

func TestMethodBinding_ReceiverCapturedOnBind(t *testing.T) {
	out, result, err := run(t, `
		class Greeter {
			init(name) { this.name = name; }
			greet() { print this.name; }
		}
		var g = Greeter("Ada");
		var m = g.greet;
		m();
	`)
	require.NoError(t, err)
	require.Equal(t, vm.ResultOK, result)
	require.Equal(t, "Ada", out)
}

func TestInitializer_BareReturnYieldsThis(t *testing.T) {
	out, result, err := run(t, `
		class Box {
			init(v) {
				this.v = v;
				return;
			}
		}
		var b = Box(42);
		print b.v;
	`)
	require.NoError(t, err)
	require.Equal(t, vm.ResultOK, result)
	require.Equal(t, "42", out)
}

func TestInitializer_ReturnValueIsCompileError(t *testing.T) {
	h := heap.New()
	machine := vm.New(h)
	result, _ := machine.Interpret(`
		class Box {
			init(v) { return v; }
		}
	`)
	require.Equal(t, vm.ResultCompileError, result)
}

func TestRuntimeError_UndefinedVariable(t *testing.T) {
	_, result, err := run(t, `print undefined_name;`)
	require.Equal(t, vm.ResultRuntimeError, result)
	require.Error(t, err)
}

func TestRuntimeError_TypeMismatchInArithmetic(t *testing.T) {
	_, result, err := run(t, `print 1 + "a";`)
	require.Equal(t, vm.ResultRuntimeError, result)
	require.Error(t, err)
}

func TestRuntimeError_ArityMismatch(t *testing.T) {
	_, result, err := run(t, `
		fun add(a, b) { return a + b; }
		add(1);
	`)
	require.Equal(t, vm.ResultRuntimeError, result)
	require.Error(t, err)
}

func TestVMRecoversAfterRuntimeError(t *testing.T) {
	h := heap.New()
	machine := vm.New(h)

	result, err := machine.Interpret(`print nonexistent;`)
	require.Equal(t, vm.ResultRuntimeError, result)
	require.Error(t, err)

	var lines []string
	machine.Stdout = func(line string) { lines = append(lines, line) }
	result, err = machine.Interpret(`print 1 + 1;`)
	require.NoError(t, err)
	require.Equal(t, vm.ResultOK, result)
	require.Equal(t, []string{"2"}, lines)
}

func TestFalsey(t *testing.T) {
	out, result, err := run(t, `
		if (!nil) print "nil is falsey";
		if (!false) print "false is falsey";
		if (0) print "0 is truthy";
		if ("") print "empty string is truthy";
	`)
	require.NoError(t, err)
	require.Equal(t, vm.ResultOK, result)
	require.Equal(t, "nil is falsey\nfalse is falsey\n0 is truthy\nempty string is truthy", out)
}

// String equality is pointer identity on interned *String objects, so this
// only prints "true" if the runtime concatenation re-interned into the same
// canonical object the "foobar" literal produced at compile time.
func TestStringInterning_ConcatenationSharesIdentity(t *testing.T) {
	out, result, err := run(t, `print "foo" + "bar" == "foobar";`)
	require.NoError(t, err)
	require.Equal(t, vm.ResultOK, result)
	require.Equal(t, "true", out)
}

// Stress mode collects before every single allocation, so any object that is
// reachable only through a value the VM hasn't rooted yet gets swept mid-run
// and the program misbehaves. Running a program that exercises every
// allocating path (functions, closures, upvalues, classes, instances, bound
// methods, string concatenation) under stress is the cheapest way to catch a
// missing stack-protection.
func TestStressGC_EndToEnd(t *testing.T) {
	h := heap.New()
	h.StressGC = true
	machine := vm.New(h)

	var lines []string
	machine.Stdout = func(line string) { lines = append(lines, line) }

	result, err := machine.Interpret(`
		class Counter {
			init(label) { this.label = label; this.n = 0; }
			bump() { this.n = this.n + 1; return this.n; }
		}
		fun describe(c) {
			var bump = c.bump;
			fun call() { return bump(); }
			return call();
		}
		var c = Counter("hit" + "s");
		print c.label;
		print describe(c);
		print describe(c);
	`)
	require.NoError(t, err)
	require.Equal(t, vm.ResultOK, result)
	require.Equal(t, []string{"hits", "1", "2"}, lines)
}

func TestDefineNative(t *testing.T) {
	h := heap.New()
	machine := vm.New(h)
	machine.DefineNative("double", func(args []bytecode.Value) (bytecode.Value, error) {
		return bytecode.NumberValue(args[0].AsNumber() * 2), nil
	})

	var lines []string
	machine.Stdout = func(line string) { lines = append(lines, line) }
	result, err := machine.Interpret(`print double(21);`)
	require.NoError(t, err)
	require.Equal(t, vm.ResultOK, result)
	require.Equal(t, []string{"42"}, lines)
}
