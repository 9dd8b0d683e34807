// Package vm implements the stack-based bytecode virtual machine: call
// frames, a single contiguous value stack shared by every frame, closures,
// classes, bound methods and superclass dispatch. It is the final stage of
// the pipeline pkg/compiler feeds into; there is no separate AST-walking
// stage, so the VM is the only place compiled bytecode ever actually runs.
//
//	Source -> pkg/lexer -> pkg/compiler (single pass, no AST) -> bytecode.Chunk -> VM -> effects
//
// Execution model
//
// Each call frame tracks a Closure, an instruction pointer into that
// closure's Function.Chunk, and a base index ("slots") into the shared
// value stack where its locals live. A function call pushes a new frame
// without copying arguments: they're already sitting on the stack exactly
// where the callee's slot 0.. expects them, left there by the caller's
// OpCall operand evaluation. Returning pops the frame and leaves the
// result value where the whole call (arguments included) used to be.
//
//	stack: [ ... | recv | arg0 | arg1 | <locals...> ]
//	                ^slots (frame base)
//
// A worked trace for `fun add(a, b) { return a + b; } print add(1, 2);`
// (slot 0 of the stack holds the top-level script's own closure):
//
//	OP_GET_GLOBAL add     stack=[<script>, <fn add>]
//	OP_CONSTANT 1         stack=[<script>, <fn add>, 1]
//	OP_CONSTANT 2         stack=[<script>, <fn add>, 1, 2]
//	OP_CALL 2             push frame, slots@1; ip jumps into add's chunk
//	  OP_GET_LOCAL 1      stack=[<script>, <fn add>, 1, 2, 1]
//	  OP_GET_LOCAL 2      stack=[<script>, <fn add>, 1, 2, 1, 2]
//	  OP_ADD              stack=[<script>, <fn add>, 1, 2, 3]
//	  OP_RETURN           pop frame, stack=[<script>, 3]
//	OP_PRINT              prints "3", stack=[<script>]
//
// Errors. Runtime failures (type errors, undefined variables, arity
// mismatches, stack overflow) become a *RuntimeError carrying a captured
// call-stack snapshot: one StackFrame per active frame, outermost first.
package vm

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/kristofer/wisp/pkg/bytecode"
	"github.com/kristofer/wisp/pkg/compiler"
	"github.com/kristofer/wisp/pkg/heap"
)

const (
	framesMax = 64
	stackMax  = framesMax * 256
)

// Result is the three-way outcome of one Interpret call.
type Result int

const (
	ResultOK Result = iota
	ResultCompileError
	ResultRuntimeError
)

// CallFrame is one activation record: which closure is running, where its
// instruction pointer is, and where its locals begin on the shared stack.
type CallFrame struct {
	closure *bytecode.Closure
	ip      int
	slots   int
}

// VM owns the value stack, call frames, the globals table and the open
// upvalue list for one running program, plus a handle on the heap that
// allocates everything it touches.
type VM struct {
	heap   *heap.Heap
	frames []CallFrame

	stack    []bytecode.Value
	stackTop int

	globals      *bytecode.Table
	openUpvalues *bytecode.Upvalue
	initString   *bytecode.String

	natives map[string]*bytecode.Native

	lastError error

	// Stdout receives every `print` statement's rendered line (without a
	// trailing newline already added); defaults to writing os.Stdout plus
	// "\n" if left nil. The driver can redirect this for tests.
	Stdout func(line string)

	// Logger, when non-nil, receives one Debug entry per executed
	// instruction when Trace is set, wired up by the driver's --trace flag.
	Logger *zap.Logger
	Trace  bool
}

// New returns a VM bound to h, with its root-marking callback registered
// so h.Collect() can trace the stack, frames, globals and open upvalues
// this package owns.
func New(h *heap.Heap) *VM {
	vm := &VM{
		heap:    h,
		globals: bytecode.NewTable(),
		natives: make(map[string]*bytecode.Native),
	}
	vm.stack = make([]bytecode.Value, stackMax)
	h.SetRootMarker(vm.markRoots)
	vm.initString = h.InternString("init")
	return vm
}

// DefineNative installs fn as a global callable named name, ready to be
// called like any user-defined function.
func (vm *VM) DefineNative(name string, fn bytecode.NativeFn) {
	n := vm.heap.NewNative(name, fn)
	vm.natives[name] = n
	vm.globals.Set(vm.heap.InternString(name), bytecode.ObjectValue(n))
}

// Interpret compiles source and, if compilation succeeds, runs it to
// completion (or to the first uncaught runtime error).
func (vm *VM) Interpret(source string) (Result, error) {
	fn, ok := compiler.Compile(source, vm.heap)
	if !ok {
		return ResultCompileError, nil
	}

	vm.resetStack()
	vm.push(bytecode.ObjectValue(fn))
	closure := vm.heap.NewClosure(fn)
	vm.pop()
	vm.push(bytecode.ObjectValue(closure))
	if !vm.call(closure, 0) {
		return ResultRuntimeError, vm.lastError
	}

	return vm.run()
}

func (vm *VM) resetStack() {
	vm.stackTop = 0
	vm.frames = vm.frames[:0]
	vm.openUpvalues = nil
}

func (vm *VM) push(v bytecode.Value) {
	vm.stack[vm.stackTop] = v
	vm.stackTop++
}

func (vm *VM) pop() bytecode.Value {
	vm.stackTop--
	return vm.stack[vm.stackTop]
}

func (vm *VM) peek(distance int) bytecode.Value {
	return vm.stack[vm.stackTop-1-distance]
}

func (vm *VM) frame() *CallFrame {
	return &vm.frames[len(vm.frames)-1]
}

func (vm *VM) readByte() byte {
	f := vm.frame()
	b := f.closure.Function.Chunk.Code[f.ip]
	f.ip++
	return b
}

func (vm *VM) readShort() int {
	f := vm.frame()
	hi := f.closure.Function.Chunk.Code[f.ip]
	lo := f.closure.Function.Chunk.Code[f.ip+1]
	f.ip += 2
	return int(hi)<<8 | int(lo)
}

func (vm *VM) readConstant() bytecode.Value {
	f := vm.frame()
	return f.closure.Function.Chunk.Constants[vm.readByte()]
}

func (vm *VM) readString() *bytecode.String {
	return vm.readConstant().AsObject().(*bytecode.String)
}

func (vm *VM) print(s string) {
	if vm.Stdout != nil {
		vm.Stdout(s)
		return
	}
	fmt.Println(s)
}

// run is the fetch-decode-execute loop, one switch arm per opcode.
func (vm *VM) run() (Result, error) {
	for {
		if vm.Trace && vm.Logger != nil {
			f := vm.frame()
			vm.Logger.Debug("trace",
				zap.Int("ip", f.ip),
				zap.String("op", bytecode.OpCode(f.closure.Function.Chunk.Code[f.ip]).String()),
			)
		}

		op := bytecode.OpCode(vm.readByte())
		switch op {
		case bytecode.OpConstant:
			vm.push(vm.readConstant())

		case bytecode.OpNil:
			vm.push(bytecode.NilValue)
		case bytecode.OpTrue:
			vm.push(bytecode.BoolValue(true))
		case bytecode.OpFalse:
			vm.push(bytecode.BoolValue(false))

		case bytecode.OpPop:
			vm.pop()

		case bytecode.OpGetLocal:
			slot := int(vm.readByte())
			vm.push(vm.stack[vm.frame().slots+slot])
		case bytecode.OpSetLocal:
			slot := int(vm.readByte())
			vm.stack[vm.frame().slots+slot] = vm.peek(0)

		case bytecode.OpGetGlobal:
			name := vm.readString()
			v, ok := vm.globals.Get(name)
			if !ok {
				return vm.runtimeError("Undefined variable '%s'.", name.Chars)
			}
			vm.push(v)
		case bytecode.OpDefineGlobal:
			name := vm.readString()
			vm.globals.Set(name, vm.peek(0))
			vm.pop()
		case bytecode.OpSetGlobal:
			name := vm.readString()
			if vm.globals.Set(name, vm.peek(0)) {
				vm.globals.Delete(name)
				return vm.runtimeError("Undefined variable '%s'.", name.Chars)
			}

		case bytecode.OpGetUpvalue:
			slot := int(vm.readByte())
			vm.push(vm.frame().closure.Upvalues[slot].Get())
		case bytecode.OpSetUpvalue:
			slot := int(vm.readByte())
			vm.frame().closure.Upvalues[slot].Set(vm.peek(0))

		case bytecode.OpGetProperty:
			if !vm.getProperty() {
				return ResultRuntimeError, vm.lastError
			}
		case bytecode.OpSetProperty:
			if !vm.setProperty() {
				return ResultRuntimeError, vm.lastError
			}
		case bytecode.OpGetSuper:
			name := vm.readString()
			superclass := vm.pop().AsObject().(*bytecode.Class)
			if !vm.bindMethod(superclass, name) {
				return ResultRuntimeError, vm.lastError
			}

		case bytecode.OpEqual:
			b, a := vm.pop(), vm.pop()
			vm.push(bytecode.BoolValue(a.Equal(b)))
		case bytecode.OpGreater:
			if !vm.numericBinary(func(a, b float64) bytecode.Value { return bytecode.BoolValue(a > b) }) {
				return ResultRuntimeError, vm.lastError
			}
		case bytecode.OpLess:
			if !vm.numericBinary(func(a, b float64) bytecode.Value { return bytecode.BoolValue(a < b) }) {
				return ResultRuntimeError, vm.lastError
			}
		case bytecode.OpAdd:
			if !vm.add() {
				return ResultRuntimeError, vm.lastError
			}
		case bytecode.OpSubtract:
			if !vm.numericBinary(func(a, b float64) bytecode.Value { return bytecode.NumberValue(a - b) }) {
				return ResultRuntimeError, vm.lastError
			}
		case bytecode.OpMultiply:
			if !vm.numericBinary(func(a, b float64) bytecode.Value { return bytecode.NumberValue(a * b) }) {
				return ResultRuntimeError, vm.lastError
			}
		case bytecode.OpDivide:
			if !vm.numericBinary(func(a, b float64) bytecode.Value { return bytecode.NumberValue(a / b) }) {
				return ResultRuntimeError, vm.lastError
			}
		case bytecode.OpNot:
			vm.push(bytecode.BoolValue(vm.pop().IsFalsey()))
		case bytecode.OpNegate:
			if !vm.peek(0).IsNumber() {
				return vm.runtimeError("Operand must be a number.")
			}
			vm.push(bytecode.NumberValue(-vm.pop().AsNumber()))

		case bytecode.OpPrint:
			vm.print(bytecode.Print(vm.pop()))

		case bytecode.OpJump:
			offset := vm.readShort()
			vm.frame().ip += offset
		case bytecode.OpJumpIfFalse:
			offset := vm.readShort()
			if vm.peek(0).IsFalsey() {
				vm.frame().ip += offset
			}
		case bytecode.OpLoop:
			offset := vm.readShort()
			vm.frame().ip -= offset

		case bytecode.OpCall:
			argc := int(vm.readByte())
			if !vm.callValue(vm.peek(argc), argc) {
				return ResultRuntimeError, vm.lastError
			}
		case bytecode.OpInvoke:
			method := vm.readString()
			argc := int(vm.readByte())
			if !vm.invoke(method, argc) {
				return ResultRuntimeError, vm.lastError
			}
		case bytecode.OpSuperInvoke:
			method := vm.readString()
			argc := int(vm.readByte())
			superclass := vm.pop().AsObject().(*bytecode.Class)
			if !vm.invokeFromClass(superclass, method, argc) {
				return ResultRuntimeError, vm.lastError
			}

		case bytecode.OpClosure:
			fn := vm.readConstant().AsObject().(*bytecode.Function)
			closure := vm.heap.NewClosure(fn)
			vm.push(bytecode.ObjectValue(closure))
			for i := 0; i < fn.UpvalueCount; i++ {
				isLocal := vm.readByte()
				index := vm.readByte()
				if isLocal != 0 {
					closure.Upvalues[i] = vm.captureUpvalue(&vm.stack[vm.frame().slots+int(index)])
				} else {
					closure.Upvalues[i] = vm.frame().closure.Upvalues[index]
				}
			}
		case bytecode.OpCloseUpvalue:
			vm.closeUpvalues(&vm.stack[vm.stackTop-1])
			vm.pop()

		case bytecode.OpReturn:
			result := vm.pop()
			f := vm.frame()
			vm.closeUpvalues(&vm.stack[f.slots])
			vm.frames = vm.frames[:len(vm.frames)-1]
			if len(vm.frames) == 0 {
				vm.pop()
				return ResultOK, nil
			}
			vm.stackTop = f.slots
			vm.push(result)

		case bytecode.OpClass:
			name := vm.readString()
			vm.push(bytecode.ObjectValue(vm.heap.NewClass(name)))
		case bytecode.OpInherit:
			superVal := vm.peek(1)
			if !superVal.IsObjType(bytecode.ObjClassType) {
				return vm.runtimeError("Superclass must be a class.")
			}
			superclass := superVal.AsObject().(*bytecode.Class)
			subclass := vm.peek(0).AsObject().(*bytecode.Class)
			subclass.Methods.AddAll(superclass.Methods)
			vm.pop() // subclass; the superclass stays behind as the 'super' local

		case bytecode.OpMethod:
			vm.defineMethod(vm.readString())

		default:
			return vm.runtimeError("Unknown opcode %d.", byte(op))
		}
	}
}
