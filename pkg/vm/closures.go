package vm

import (
	"unsafe"

	"github.com/kristofer/wisp/pkg/bytecode"
)

// slotIndex recovers p's position within vm.stack via pointer arithmetic.
// Go forbids ordering comparisons (< / >) between pointers directly, but
// every *Value this package ever captures as an upvalue points into
// vm.stack, so converting back to an index is both safe and exact.
func (vm *VM) slotIndex(p *bytecode.Value) int {
	base := unsafe.Pointer(&vm.stack[0])
	return int((uintptr(unsafe.Pointer(p)) - uintptr(base)) / unsafe.Sizeof(bytecode.Value{}))
}

// captureUpvalue returns an open upvalue aliasing local, reusing an
// already-open one at the same stack slot if one exists: two closures
// capturing the same local in the same scope must share one Upvalue so
// that a write through either is visible to the other. openUpvalues is
// kept sorted by descending stack index so the scan can stop as soon as
// it passes local's slot.
func (vm *VM) captureUpvalue(local *bytecode.Value) *bytecode.Upvalue {
	targetIdx := vm.slotIndex(local)

	var prev *bytecode.Upvalue
	upvalue := vm.openUpvalues
	for upvalue != nil && vm.slotIndex(upvalue.Location) > targetIdx {
		prev = upvalue
		upvalue = upvalue.NextOpen
	}
	if upvalue != nil && upvalue.Location == local {
		return upvalue
	}

	created := vm.heap.NewUpvalue(local)
	created.NextOpen = upvalue
	if prev == nil {
		vm.openUpvalues = created
	} else {
		prev.NextOpen = created
	}
	return created
}

// closeUpvalues closes every open upvalue whose slot is at or above last,
// migrating each one's value off the stack and into its own storage
// before the scope that owned the slot goes away (a block exit or a
// function return).
func (vm *VM) closeUpvalues(last *bytecode.Value) {
	lastIdx := vm.slotIndex(last)
	for vm.openUpvalues != nil && vm.slotIndex(vm.openUpvalues.Location) >= lastIdx {
		upvalue := vm.openUpvalues
		upvalue.Close()
		vm.openUpvalues = upvalue.NextOpen
		upvalue.NextOpen = nil
	}
}
