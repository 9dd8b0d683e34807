package vm

import (
	"fmt"
	"strings"
)

// StackFrame captures one call frame's identity at the moment a runtime
// error was raised: which function was running and at what source line.
// IP is carried along for --trace sessions correlating an error against
// the instruction dump.
type StackFrame struct {
	Name string
	Line int
	IP   int
}

// RuntimeError is a VM failure with the call stack captured at the point
// it was raised, outermost frame first (source order).
type RuntimeError struct {
	Message    string
	StackTrace []StackFrame
}

func (e *RuntimeError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	for _, frame := range e.StackTrace {
		b.WriteString(fmt.Sprintf("\n[line %d] in %s", frame.Line, frame.Name))
	}
	return b.String()
}

// runtimeError builds a *RuntimeError from the current call stack,
// records it as vm.lastError for callers using the bool-returning call
// protocol, resets the stack (a runtime error unwinds the whole VM, not
// just the offending frame) and reports ResultRuntimeError.
func (vm *VM) runtimeError(format string, args ...interface{}) (Result, error) {
	message := fmt.Sprintf(format, args...)
	err := &RuntimeError{Message: message, StackTrace: vm.captureStackTrace()}
	vm.lastError = err
	vm.resetStack()
	return ResultRuntimeError, err
}

// fail is runtimeError's boolean-returning twin, for the call-protocol
// helpers (callValue, invoke, bindMethod, ...) that report failure by
// returning false rather than by returning (Result, error) directly.
func (vm *VM) fail(format string, args ...interface{}) bool {
	vm.runtimeError(format, args...)
	return false
}

func (vm *VM) captureStackTrace() []StackFrame {
	trace := make([]StackFrame, 0, len(vm.frames))
	for i := 0; i < len(vm.frames); i++ {
		f := &vm.frames[i]
		fn := f.closure.Function
		name := "<script>"
		if fn.Name != nil {
			name = fn.Name.Chars + "()"
		}
		line := 0
		if f.ip-1 >= 0 && f.ip-1 < len(fn.Chunk.Lines) {
			line = fn.Chunk.Lines[f.ip-1]
		}
		trace = append(trace, StackFrame{Name: name, Line: line, IP: f.ip})
	}
	return trace
}
