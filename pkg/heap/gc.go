package heap

import (
	"go.uber.org/zap"

	"github.com/kristofer/wisp/pkg/bytecode"
)

// Collect runs one full tri-color mark-sweep cycle: mark every root (the
// VM's via markRoots, the compiler's via compilerRoots), trace through the
// gray worklist until it drains, evict unmarked strings from the intern
// table (tableRemoveWhite; the table is not itself a root), sweep unmarked
// objects out of the object list, then double nextGC off the surviving
// byte count.
func (h *Heap) Collect() {
	before := h.bytesAllocated

	if h.markRoots != nil {
		h.markRoots(h)
	}
	for _, fn := range h.compilerRoots {
		h.MarkObject(fn)
	}

	h.traceReferences()
	h.tableRemoveWhite(h.strings)
	h.sweep()

	h.nextGC = h.bytesAllocated * 2
	if h.nextGC < initialNextGC {
		h.nextGC = initialNextGC
	}

	if h.Logger != nil {
		h.Logger.Info("gc cycle",
			zap.Int("before", before),
			zap.Int("after", h.bytesAllocated),
			zap.Int("next_gc", h.nextGC),
		)
	}
}

// MarkObject grays o: sets its mark bit and pushes it onto the worklist for
// later tracing through blacken. A no-op on nil or an already-marked
// object, which is what keeps cyclic graphs (a closure capturing an
// upvalue that closes over an instance that holds the closure as a field,
// say) from looping forever.
func (h *Heap) MarkObject(o bytecode.Obj) {
	if o == nil || isNilObj(o) || o.Marked() {
		return
	}
	o.SetMarked(true)
	h.gray = append(h.gray, o)
}

// MarkValue marks v's underlying object, if it holds one; primitives
// (nil/bool/number) need no tracing.
func (h *Heap) MarkValue(v bytecode.Value) {
	if v.IsObject() {
		h.MarkObject(v.AsObject())
	}
}

// MarkTable marks every live key and value in t, used for the globals
// table, class method tables and instance field tables.
func (h *Heap) MarkTable(t *bytecode.Table) {
	t.Each(func(key *bytecode.String, value bytecode.Value) {
		h.MarkObject(key)
		h.MarkValue(value)
	})
}

func (h *Heap) traceReferences() {
	for len(h.gray) > 0 {
		o := h.gray[len(h.gray)-1]
		h.gray = h.gray[:len(h.gray)-1]
		h.blacken(o)
	}
}

// blacken marks every object o directly references. Strings and natives
// are leaves: a String owns only its byte content (not itself an Obj) and
// a Native closes over a Go function the collector cannot see into.
func (h *Heap) blacken(o bytecode.Obj) {
	switch v := o.(type) {
	case *bytecode.String, *bytecode.Native:
		// leaves

	case *bytecode.Function:
		if v.Name != nil {
			h.MarkObject(v.Name)
		}
		if v.Chunk != nil {
			for _, c := range v.Chunk.Constants {
				h.MarkValue(c)
			}
		}

	case *bytecode.Closure:
		h.MarkObject(v.Function)
		for _, uv := range v.Upvalues {
			if uv != nil {
				h.MarkObject(uv)
			}
		}

	case *bytecode.Upvalue:
		h.MarkValue(v.Get())

	case *bytecode.Class:
		if v.Name != nil {
			h.MarkObject(v.Name)
		}
		h.MarkTable(v.Methods)

	case *bytecode.Instance:
		h.MarkObject(v.Class)
		h.MarkTable(v.Fields)

	case *bytecode.BoundMethod:
		h.MarkValue(v.Receiver)
		h.MarkObject(v.Method)
	}
}

// tableRemoveWhite deletes every intern-table entry whose key object
// survived tracing unmarked, i.e. strings nothing reached this cycle.
// This must run after tracing and before sweep, or sweep would free a
// String object that the intern table still points at.
func (h *Heap) tableRemoveWhite(t *bytecode.Table) {
	t.DeleteIf(func(key *bytecode.String) bool {
		return !key.Marked()
	})
}

// sweep walks the object list once, unlinking and discarding every
// still-unmarked object and clearing the mark bit on every survivor so the
// next cycle starts white again.
func (h *Heap) sweep() {
	var previous bytecode.Obj
	object := h.objects

	for object != nil {
		if object.Marked() {
			object.SetMarked(false)
			previous = object
			object = object.Next()
			continue
		}

		unreached := object
		object = object.Next()
		if previous != nil {
			previous.SetNext(object)
		} else {
			h.objects = object
		}
		h.bytesAllocated -= sizeOf(unreached)
	}
}

func sizeOf(o bytecode.Obj) int {
	switch v := o.(type) {
	case *bytecode.String:
		return sizeString + len(v.Chars)
	case *bytecode.Function:
		return sizeFunction
	case *bytecode.Native:
		return sizeNative
	case *bytecode.Closure:
		return sizeClosure(len(v.Upvalues))
	case *bytecode.Upvalue:
		return sizeUpvalue
	case *bytecode.Class:
		return sizeClass
	case *bytecode.Instance:
		return sizeInstance
	case *bytecode.BoundMethod:
		return sizeBoundMethod
	default:
		return 16
	}
}

// isNilObj reports whether an Obj interface value wraps a typed nil
// pointer (e.g. (*bytecode.Upvalue)(nil) stored in a Closure.Upvalues
// slot before OpClosure fills it in), a case `o == nil` alone cannot
// catch because the interface's type word is still non-nil.
func isNilObj(o bytecode.Obj) bool {
	switch v := o.(type) {
	case *bytecode.String:
		return v == nil
	case *bytecode.Function:
		return v == nil
	case *bytecode.Native:
		return v == nil
	case *bytecode.Closure:
		return v == nil
	case *bytecode.Upvalue:
		return v == nil
	case *bytecode.Class:
		return v == nil
	case *bytecode.Instance:
		return v == nil
	case *bytecode.BoundMethod:
		return v == nil
	default:
		return false
	}
}
