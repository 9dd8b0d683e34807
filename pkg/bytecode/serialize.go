package bytecode

// Binary chunk format ("wisp compile" / "wisp disassemble" support).
//
// The format covers the constant kinds the compiler emits into a pool:
// numbers, strings, and nested function constants for closures. Booleans
// and nil are pushed by dedicated opcodes and never reach a constant
// pool, but tags for them exist so a hand-built chunk still round-trips.
//
// Layout:
//
//	Header
//	  magic   [4]byte  "WISP"
//	  version uint32
//	Function (recursive: a function constant embeds another Function)
//	  name             uint32 len + bytes ("" for the top-level script)
//	  arity            uint32
//	  upvalue count    uint32
//	  Chunk
//	    constant count uint32
//	    constants      repeated tagged constant
//	    code length    uint32
//	    code bytes
//	    line table     one int32 per code byte
//
// Tagged constant:
//
//	tag byte: 0x01 number (float64) | 0x02 string (uint32 len + bytes)
//	        | 0x03 function (nested Function record)
//	        | 0x04 nil | 0x05 bool (1 byte)

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	magic         = "WISP"
	formatVersion = 1

	tagNumber   = 0x01
	tagString   = 0x02
	tagFunction = 0x03
	tagNil      = 0x04
	tagBool     = 0x05
)

// WriteChunk serializes the top-level function's chunk (and, recursively,
// every nested function constant) to w.
func WriteChunk(w io.Writer, fn *Function) error {
	if _, err := io.WriteString(w, magic); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, uint32(formatVersion)); err != nil {
		return err
	}
	return writeFunction(w, fn)
}

func writeFunction(w io.Writer, fn *Function) error {
	name := ""
	if fn.Name != nil {
		name = fn.Name.Chars
	}
	if err := writeString(w, name); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, uint32(fn.Arity)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, uint32(fn.UpvalueCount)); err != nil {
		return err
	}
	return writeChunk(w, fn.Chunk)
}

func writeChunk(w io.Writer, c *Chunk) error {
	if err := binary.Write(w, binary.BigEndian, uint32(len(c.Constants))); err != nil {
		return err
	}
	for _, v := range c.Constants {
		if err := writeConstant(w, v); err != nil {
			return err
		}
	}
	if err := binary.Write(w, binary.BigEndian, uint32(len(c.Code))); err != nil {
		return err
	}
	if _, err := w.Write(c.Code); err != nil {
		return err
	}
	for _, line := range c.Lines {
		if err := binary.Write(w, binary.BigEndian, int32(line)); err != nil {
			return err
		}
	}
	return nil
}

func writeConstant(w io.Writer, v Value) error {
	switch {
	case v.IsNil():
		_, err := w.Write([]byte{tagNil})
		return err
	case v.IsBool():
		b := byte(0)
		if v.AsBool() {
			b = 1
		}
		_, err := w.Write([]byte{tagBool, b})
		return err
	case v.IsNumber():
		if _, err := w.Write([]byte{tagNumber}); err != nil {
			return err
		}
		return binary.Write(w, binary.BigEndian, v.AsNumber())
	case v.IsObjType(ObjStringType):
		if _, err := w.Write([]byte{tagString}); err != nil {
			return err
		}
		return writeString(w, v.AsObject().(*String).Chars)
	case v.IsObjType(ObjFunctionType):
		if _, err := w.Write([]byte{tagFunction}); err != nil {
			return err
		}
		return writeFunction(w, v.AsObject().(*Function))
	default:
		return fmt.Errorf("bytecode: constant of type %s is not serializable", v.TypeName())
	}
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.BigEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

// Interner is the minimal string-allocation capability ReadChunk needs from
// the heap: look up or create the canonical *String for a byte sequence.
type Interner interface {
	InternString(s string) *String
}

// ReadChunk deserializes a chunk written by WriteChunk, interning every
// string constant through intern so the result shares the running heap's
// string identities.
func ReadChunk(r io.Reader, intern Interner) (*Function, error) {
	var gotMagic [4]byte
	if _, err := io.ReadFull(r, gotMagic[:]); err != nil {
		return nil, fmt.Errorf("bytecode: reading magic: %w", err)
	}
	if string(gotMagic[:]) != magic {
		return nil, fmt.Errorf("bytecode: bad magic %q, want %q", gotMagic, magic)
	}
	var version uint32
	if err := binary.Read(r, binary.BigEndian, &version); err != nil {
		return nil, err
	}
	if version != formatVersion {
		return nil, fmt.Errorf("bytecode: unsupported format version %d", version)
	}
	return readFunction(r, intern)
}

func readFunction(r io.Reader, intern Interner) (*Function, error) {
	name, err := readString(r)
	if err != nil {
		return nil, err
	}
	var arity, upvalueCount uint32
	if err := binary.Read(r, binary.BigEndian, &arity); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.BigEndian, &upvalueCount); err != nil {
		return nil, err
	}
	fn := NewFunction()
	fn.Arity = int(arity)
	fn.UpvalueCount = int(upvalueCount)
	if name != "" {
		fn.Name = intern.InternString(name)
	}
	if err := readChunk(r, intern, fn.Chunk); err != nil {
		return nil, err
	}
	return fn, nil
}

func readChunk(r io.Reader, intern Interner, c *Chunk) error {
	var constantCount uint32
	if err := binary.Read(r, binary.BigEndian, &constantCount); err != nil {
		return err
	}
	c.Constants = make([]Value, constantCount)
	for i := range c.Constants {
		v, err := readConstant(r, intern)
		if err != nil {
			return err
		}
		c.Constants[i] = v
	}

	var codeLen uint32
	if err := binary.Read(r, binary.BigEndian, &codeLen); err != nil {
		return err
	}
	c.Code = make([]byte, codeLen)
	if _, err := io.ReadFull(r, c.Code); err != nil {
		return err
	}
	c.Lines = make([]int, codeLen)
	for i := range c.Lines {
		var line int32
		if err := binary.Read(r, binary.BigEndian, &line); err != nil {
			return err
		}
		c.Lines[i] = int(line)
	}
	return nil
}

func readConstant(r io.Reader, intern Interner) (Value, error) {
	var tag [1]byte
	if _, err := io.ReadFull(r, tag[:]); err != nil {
		return NilValue, err
	}
	switch tag[0] {
	case tagNil:
		return NilValue, nil
	case tagBool:
		var b [1]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return NilValue, err
		}
		return BoolValue(b[0] != 0), nil
	case tagNumber:
		var n float64
		if err := binary.Read(r, binary.BigEndian, &n); err != nil {
			return NilValue, err
		}
		return NumberValue(n), nil
	case tagString:
		s, err := readString(r)
		if err != nil {
			return NilValue, err
		}
		return ObjectValue(intern.InternString(s)), nil
	case tagFunction:
		fn, err := readFunction(r, intern)
		if err != nil {
			return NilValue, err
		}
		return ObjectValue(fn), nil
	default:
		return NilValue, fmt.Errorf("bytecode: unknown constant tag 0x%02x", tag[0])
	}
}

func readString(r io.Reader) (string, error) {
	var length uint32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return "", err
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
