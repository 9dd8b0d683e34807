// Package heap owns every live object's allocation: the intrusive object
// list that is the canonical ownership root (every live heap object is
// reachable from it), the interned-string table, and the tri-color
// mark-sweep collector built on top of both (gc.go).
//
// The compiler and the VM never construct a bytecode.Obj directly: both
// hold a *Heap and go through its New* methods, which is what lets a
// single Collect() see every allocation
// that has ever happened, whether it came from compiling a closure's
// constant pool or from running `"a" + "b"` at runtime. bytecode.ReadChunk
// is the exception: it builds the Function objects of a decoded file with
// bytecode.NewFunction, outside any heap's object list.
package heap

import (
	"go.uber.org/zap"

	"github.com/kristofer/wisp/pkg/bytecode"
)

// initial bytesAllocated ceiling before the first collection is considered.
// 1 MiB gives small scripts room to run without ever triggering a cycle.
const initialNextGC = 1 << 20

// RootMarker is supplied by the VM (heap.SetRootMarker) so Collect can walk
// roots it does not itself know about: the value stack, call frames, open
// upvalues, the globals table, and the pre-interned initString constant.
// The heap's own roots (objects still under construction by the compiler)
// are tracked internally via PushCompilerRoot/PopCompilerRoot.
type RootMarker func(h *Heap)

// Heap is the object list + intern table + GC bookkeeping for one running
// program. It is constructed once by the driver and threaded explicitly
// through the compiler and the VM; there is no package-level singleton.
type Heap struct {
	objects bytecode.Obj
	strings *bytecode.Table

	bytesAllocated int
	nextGC         int

	gray           []bytecode.Obj
	compilerRoots  []*bytecode.Function
	markRoots      RootMarker

	// StressGC, when true, runs a full collection before every single
	// allocation instead of only when bytesAllocated would exceed nextGC.
	// Exercised by GC invariant tests; never enabled by default.
	StressGC bool

	// Logger, when non-nil, receives one Info entry per collection cycle
	// (bytes reclaimed, new threshold). Wired up by the driver's --log-gc
	// flag; the language's own `print` output never goes through it.
	Logger *zap.Logger
}

// New returns an empty heap ready to allocate.
func New() *Heap {
	return &Heap{strings: bytecode.NewTable(), nextGC: initialNextGC}
}

// SetRootMarker installs the VM's root-marking callback. Called once, after
// both the heap and the VM exist, since the VM needs a *Heap to construct.
func (h *Heap) SetRootMarker(fn RootMarker) { h.markRoots = fn }

// BytesAllocated reports the live-allocation counter (approximate; see the
// per-object size constants at the end of this file).
func (h *Heap) BytesAllocated() int { return h.bytesAllocated }

// Objects returns the head of the intrusive object list, for tests that
// assert every reachable object is present in it post-collection.
func (h *Heap) Objects() bytecode.Obj { return h.objects }

func (h *Heap) link(o bytecode.Obj, size int) {
	h.bytesAllocated += size
	o.SetNext(h.objects)
	h.objects = o
}

// collectIfNeeded runs the collector immediately before an allocation that
// would push bytesAllocated above nextGC, or unconditionally under
// StressGC.
func (h *Heap) collectIfNeeded(incoming int) {
	if h.StressGC || h.bytesAllocated+incoming > h.nextGC {
		h.Collect()
	}
}

// InternString returns the canonical *String for s, allocating and linking
// a new one only on a miss against the intern table. Runtime concatenation
// and the compiler's string literals both funnel through here, which is
// what makes pointer identity a sound equality test for strings.
func (h *Heap) InternString(s string) *bytecode.String {
	hash := bytecode.HashString(s)
	if existing := h.strings.FindString(s, hash); existing != nil {
		return existing
	}
	h.collectIfNeeded(sizeString + len(s))
	str := bytecode.NewString(s)
	h.link(str, sizeString+len(s))
	h.strings.Set(str, bytecode.NilValue)
	return str
}

// NewFunction allocates a fresh, empty compile-time Function. The caller
// (the compiler) is responsible for protecting it from a concurrent
// collection, via PushCompilerRoot, until it is reachable some other way
// (e.g. embedded in the enclosing chunk's constant pool).
func (h *Heap) NewFunction() *bytecode.Function {
	h.collectIfNeeded(sizeFunction)
	fn := bytecode.NewFunction()
	h.link(fn, sizeFunction)
	return fn
}

// NewNative wraps a host-supplied Go function as a callable heap object.
func (h *Heap) NewNative(name string, fn bytecode.NativeFn) *bytecode.Native {
	h.collectIfNeeded(sizeNative)
	n := bytecode.NewNative(name, fn)
	h.link(n, sizeNative)
	return n
}

// NewClosure wraps fn with freshly allocated (nil) upvalue slots; the VM's
// OpClosure handler fills them in immediately afterward.
func (h *Heap) NewClosure(fn *bytecode.Function) *bytecode.Closure {
	h.collectIfNeeded(sizeClosure(fn.UpvalueCount))
	c := bytecode.NewClosure(fn)
	h.link(c, sizeClosure(fn.UpvalueCount))
	return c
}

// NewUpvalue allocates an OPEN upvalue pointing at slot.
func (h *Heap) NewUpvalue(slot *bytecode.Value) *bytecode.Upvalue {
	h.collectIfNeeded(sizeUpvalue)
	u := bytecode.NewUpvalue(slot)
	h.link(u, sizeUpvalue)
	return u
}

// NewClass allocates a class with an empty method table.
func (h *Heap) NewClass(name *bytecode.String) *bytecode.Class {
	h.collectIfNeeded(sizeClass)
	c := bytecode.NewClass(name)
	h.link(c, sizeClass)
	return c
}

// NewInstance allocates an instance of class with an empty field table.
func (h *Heap) NewInstance(class *bytecode.Class) *bytecode.Instance {
	h.collectIfNeeded(sizeInstance)
	i := bytecode.NewInstance(class)
	h.link(i, sizeInstance)
	return i
}

// NewBoundMethod allocates the (receiver, closure) pair produced by
// `var m = instance.method`.
func (h *Heap) NewBoundMethod(receiver bytecode.Value, method *bytecode.Closure) *bytecode.BoundMethod {
	h.collectIfNeeded(sizeBoundMethod)
	b := bytecode.NewBoundMethod(receiver, method)
	h.link(b, sizeBoundMethod)
	return b
}

// FindInterned reports the canonical *String for s if one is currently
// interned, without creating one on a miss, used by tests asserting that a
// string was (or wasn't) swept from the intern table by a collection cycle.
func (h *Heap) FindInterned(s string) *bytecode.String {
	return h.strings.FindString(s, bytecode.HashString(s))
}

// PushCompilerRoot protects a Function under construction from collection:
// the compiler calls this right after heap.NewFunction and pops it when the
// function body is complete, just before the enclosing chunk stores it in
// its constant pool (or, for the outermost script, before the VM pushes it
// on its stack); no allocation happens in between.
func (h *Heap) PushCompilerRoot(fn *bytecode.Function) {
	h.compilerRoots = append(h.compilerRoots, fn)
}

// PopCompilerRoot removes the most recently pushed compiler root.
func (h *Heap) PopCompilerRoot() {
	h.compilerRoots = h.compilerRoots[:len(h.compilerRoots)-1]
}

// approximate per-object byte costs used for bytesAllocated bookkeeping.
// These deliberately don't account for a Table's own backing array or a
// Chunk's code/constants slices growing independently after creation; the
// counter only needs to be good enough to pace collections.
const (
	sizeString      = 24
	sizeFunction    = 64
	sizeNative      = 32
	sizeUpvalue     = 32
	sizeClass       = 32
	sizeInstance    = 32
	sizeBoundMethod = 32
)

func sizeClosure(upvalueCount int) int {
	return 24 + 8*upvalueCount
}
