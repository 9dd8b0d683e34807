package vm

import "github.com/kristofer/wisp/pkg/heap"

// markRoots is registered with the heap (heap.SetRootMarker) and is the
// VM's half of the collector's root set: every value on the stack, every call
// frame's closure, every still-open upvalue, the globals table, and the
// pre-interned "init" string. The heap's own roots (Function objects
// still under construction by the compiler) are tracked separately via
// PushCompilerRoot/PopCompilerRoot and don't go through this callback.
func (vm *VM) markRoots(h *heap.Heap) {
	for i := 0; i < vm.stackTop; i++ {
		h.MarkValue(vm.stack[i])
	}
	for i := range vm.frames {
		h.MarkObject(vm.frames[i].closure)
	}
	for uv := vm.openUpvalues; uv != nil; uv = uv.NextOpen {
		h.MarkObject(uv)
	}
	h.MarkTable(vm.globals)
	for _, n := range vm.natives {
		h.MarkObject(n)
	}
	if vm.initString != nil {
		h.MarkObject(vm.initString)
	}
}
