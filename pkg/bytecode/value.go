// Package bytecode defines the runtime value representation, the object
// heap's type variants, the chunk/opcode format the compiler emits into, and
// the open-addressed hash table used for globals, method tables, field
// tables and (by the heap package) string interning.
//
// Everything a compiled program touches at runtime (values, closures,
// classes, chunks) lives in this one package so that a Function can hold a
// *Chunk and a Chunk's constant pool can hold Values without the package
// graph folding back on itself; pkg/heap and pkg/vm build behavior
// (allocation, GC, dispatch) on top of these plain structures.
package bytecode

// ValueType tags the active field of a Value.
type ValueType uint8

const (
	ValNil ValueType = iota
	ValBool
	ValNumber
	ValObject
)

// Value is a uniform runtime value: nil, boolean, IEEE-754 double, or a
// pointer to a heap object. A tagged union rather than a NaN-boxed word:
// it costs a few extra bytes per value but needs no `unsafe`
// pointer-in-float packing and behaves the same on 32- and 64-bit targets.
type Value struct {
	typ    ValueType
	b      bool
	n      float64
	object Obj
}

// NilValue is the singleton nil value.
var NilValue = Value{typ: ValNil}

// BoolValue wraps a boolean.
func BoolValue(b bool) Value { return Value{typ: ValBool, b: b} }

// NumberValue wraps a float64.
func NumberValue(n float64) Value { return Value{typ: ValNumber, n: n} }

// ObjectValue wraps a heap object.
func ObjectValue(o Obj) Value { return Value{typ: ValObject, object: o} }

func (v Value) IsNil() bool    { return v.typ == ValNil }
func (v Value) IsBool() bool   { return v.typ == ValBool }
func (v Value) IsNumber() bool { return v.typ == ValNumber }
func (v Value) IsObject() bool { return v.typ == ValObject }

func (v Value) AsBool() bool      { return v.b }
func (v Value) AsNumber() float64 { return v.n }
func (v Value) AsObject() Obj     { return v.object }

// IsObjType reports whether v holds an object of the given type.
func (v Value) IsObjType(t ObjType) bool {
	return v.typ == ValObject && v.object.Type() == t
}

// IsFalsey implements the language's truthiness rule: nil and false are
// falsey, everything else (including 0 and "") is truthy.
func (v Value) IsFalsey() bool {
	return v.IsNil() || (v.IsBool() && !v.AsBool())
}

// Equal implements value equality: structural for primitives, reference
// identity for objects. Because strings are interned, reference identity
// on *String already implies content equality, so no special case is
// needed for strings beyond plain object identity.
func (v Value) Equal(o Value) bool {
	if v.typ != o.typ {
		return false
	}
	switch v.typ {
	case ValNil:
		return true
	case ValBool:
		return v.b == o.b
	case ValNumber:
		return v.n == o.n
	case ValObject:
		return v.object == o.object
	default:
		return false
	}
}

// TypeName returns a short human-readable type name, used by the chunk
// serializer's error message and the native `type` helper.
func (v Value) TypeName() string {
	switch v.typ {
	case ValNil:
		return "nil"
	case ValBool:
		return "boolean"
	case ValNumber:
		return "number"
	case ValObject:
		switch v.object.Type() {
		case ObjStringType:
			return "string"
		case ObjFunctionType:
			return "function"
		case ObjNativeType:
			return "native function"
		case ObjClosureType:
			return "function"
		case ObjClassType:
			return "class"
		case ObjInstanceType:
			return "instance"
		case ObjBoundMethodType:
			return "bound method"
		}
	}
	return "value"
}
