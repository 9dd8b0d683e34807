// The New* constructors below build bare object values with Header.Kind
// set and Header.Mark/Header.Link left zero; they do not touch the heap's
// object list or allocation counters. pkg/heap wraps each of them so that
// every allocation is linked into the GC's object list and accounted for
// in bytesAllocated before it escapes to the caller.
package bytecode

import (
	"fmt"
	"hash/fnv"
	"strconv"
)

// ObjType tags the concrete variant of a heap object.
type ObjType uint8

const (
	ObjStringType ObjType = iota
	ObjFunctionType
	ObjNativeType
	ObjClosureType
	ObjUpvalueType
	ObjClassType
	ObjInstanceType
	ObjBoundMethodType
)

// Obj is implemented by every heap object variant. All of them embed
// Header, which supplies the GC bookkeeping (mark bit, intrusive list
// link) promoted automatically to the concrete pointer type. The heap
// package (pkg/heap) uses exactly these five methods to walk and
// mark-sweep the object list; it reaches into a variant's own fields only
// in the type-specific tracing (blacken) and size accounting (sizeOf) of
// pkg/heap/gc.go.
type Obj interface {
	Type() ObjType

	Marked() bool
	SetMarked(bool)
	Next() Obj
	SetNext(Obj)
}

// Header is the common prefix every heap object carries: its type tag, a
// mark bit for the tracing collector, and the intrusive singly-linked-list
// link into the heap's object list (the canonical ownership root).
type Header struct {
	Kind ObjType
	Mark bool
	Link Obj
}

func (h *Header) Type() ObjType     { return h.Kind }
func (h *Header) Marked() bool      { return h.Mark }
func (h *Header) SetMarked(v bool) { h.Mark = v }
func (h *Header) Next() Obj        { return h.Link }
func (h *Header) SetNext(o Obj)    { h.Link = o }

// String is an immutable, interned byte sequence. Two live strings with
// equal content are always the same *String pointer (guaranteed by the
// heap's intern table), which is what lets Value.Equal use pointer
// identity for string comparison.
type String struct {
	Header
	Chars string
	Hash  uint32
}

// HashString computes the FNV-1a-32 hash a String caches at allocation
// time; the intern table compares hashes before comparing bytes.
func HashString(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}

func NewString(s string) *String {
	return &String{Header: Header{Kind: ObjStringType}, Chars: s, Hash: HashString(s)}
}

// Function is a compile-time artifact: a name, arity, upvalue count, and
// the bytecode chunk for its body. The top-level script is a Function with
// a nil Name.
type Function struct {
	Header
	Arity        int
	UpvalueCount int
	Chunk        *Chunk
	Name         *String
}

func NewFunction() *Function {
	return &Function{Header: Header{Kind: ObjFunctionType}, Chunk: &Chunk{}}
}

func (f *Function) String() string {
	if f.Name == nil {
		return "<script>"
	}
	return fmt.Sprintf("<fn %s>", f.Name.Chars)
}

// NativeFn is a host-supplied function: it receives the evaluated argument
// values and returns a result or a runtime error.
type NativeFn func(args []Value) (Value, error)

// Native wraps a host-supplied function so it can be stored as a Value and
// called through the same Call opcode as closures.
type Native struct {
	Header
	Name string
	Fn   NativeFn
}

func NewNative(name string, fn NativeFn) *Native {
	return &Native{Header: Header{Kind: ObjNativeType}, Name: name, Fn: fn}
}

// Upvalue is a heap cell referencing a captured variable. While OPEN, it
// points at a live stack slot; once the scope that owns that slot exits,
// the VM CLOSES the upvalue by copying the slot's value into Closed and
// nulling Location. NextOpen links it into the VM's list of currently open
// upvalues, kept sorted by descending stack address.
type Upvalue struct {
	Header
	Location *Value
	Closed   Value
	NextOpen *Upvalue
}

func NewUpvalue(slot *Value) *Upvalue {
	return &Upvalue{Header: Header{Kind: ObjUpvalueType}, Location: slot}
}

func (u *Upvalue) IsOpen() bool { return u.Location != nil }

func (u *Upvalue) Get() Value {
	if u.IsOpen() {
		return *u.Location
	}
	return u.Closed
}

func (u *Upvalue) Set(v Value) {
	if u.IsOpen() {
		*u.Location = v
		return
	}
	u.Closed = v
}

// Close migrates an open upvalue's value into its own storage and detaches
// it from the stack slot it used to alias.
func (u *Upvalue) Close() {
	u.Closed = *u.Location
	u.Location = nil
}

// Closure pairs a compiled Function with the array of upvalues it captured
// at creation time. This is the runtime-callable unit; a bare Function is
// only ever wrapped in a Closure before being called.
type Closure struct {
	Header
	Function *Function
	Upvalues []*Upvalue
}

func NewClosure(fn *Function) *Closure {
	return &Closure{
		Header:   Header{Kind: ObjClosureType},
		Function: fn,
		Upvalues: make([]*Upvalue, fn.UpvalueCount),
	}
}

// Class holds a name and a method table (interned-string name to Closure,
// stored as Values so the same Table implementation serves classes,
// instances and globals alike).
type Class struct {
	Header
	Name    *String
	Methods *Table
}

func NewClass(name *String) *Class {
	return &Class{Header: Header{Kind: ObjClassType}, Name: name, Methods: NewTable()}
}

func (c *Class) String() string { return c.Name.Chars }

// Instance is a live object of some Class: its field table starts empty
// and grows as SetProperty introduces new field names.
type Instance struct {
	Header
	Class  *Class
	Fields *Table
}

func NewInstance(class *Class) *Instance {
	return &Instance{Header: Header{Kind: ObjInstanceType}, Class: class, Fields: NewTable()}
}

func (i *Instance) String() string { return fmt.Sprintf("%s instance", i.Class.Name.Chars) }

// BoundMethod pairs a receiver with the closure that should run when the
// bound method is called. This is what `var m = instance.method` produces.
type BoundMethod struct {
	Header
	Receiver Value
	Method   *Closure
}

func NewBoundMethod(receiver Value, method *Closure) *BoundMethod {
	return &BoundMethod{Header: Header{Kind: ObjBoundMethodType}, Receiver: receiver, Method: method}
}

// Print renders a Value the way the language's `print` statement does:
// numbers without a redundant trailing ".0" when they're integral,
// booleans/nil as bare words, objects via their own String() rendering.
func Print(v Value) string {
	switch {
	case v.IsNil():
		return "nil"
	case v.IsBool():
		return strconv.FormatBool(v.AsBool())
	case v.IsNumber():
		return formatNumber(v.AsNumber())
	case v.IsObject():
		switch o := v.AsObject().(type) {
		case *String:
			return o.Chars
		case *Function:
			return o.String()
		case *Native:
			return fmt.Sprintf("<native fn %s>", o.Name)
		case *Closure:
			return o.Function.String()
		case *Class:
			return o.String()
		case *Instance:
			return o.String()
		case *BoundMethod:
			return o.Method.Function.String()
		default:
			return "<object>"
		}
	}
	return ""
}

func formatNumber(n float64) string {
	return strconv.FormatFloat(n, 'g', -1, 64)
}
