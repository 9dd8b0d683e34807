package bytecode

import "encoding/binary"

// Chunk is a growable bytecode sequence: the code bytes themselves, a
// parallel line-number table (one entry per code byte, used only for
// diagnostics), and the constant pool referenced by OpConstant and friends.
//
// At most 256 constants fit per chunk (a single byte indexes the pool) and
// at most 65535 bytes may separate a jump from its target (a 16-bit offset);
// the compiler enforces both limits at emit time.
type Chunk struct {
	Code      []byte
	Lines     []int
	Constants []Value
}

// Write appends a single byte, recording the source line it came from.
// Returns the offset the byte was written at.
func (c *Chunk) Write(b byte, line int) int {
	c.Code = append(c.Code, b)
	c.Lines = append(c.Lines, line)
	return len(c.Code) - 1
}

// WriteOp appends an opcode byte.
func (c *Chunk) WriteOp(op OpCode, line int) int {
	return c.Write(byte(op), line)
}

// AddConstant appends v to the constant pool and returns its index. The
// caller is responsible for enforcing the 256-constant ceiling; Chunk
// itself only stores them.
func (c *Chunk) AddConstant(v Value) int {
	c.Constants = append(c.Constants, v)
	return len(c.Constants) - 1
}

// PatchJump backfills the 16-bit big-endian operand for a jump instruction
// previously emitted at offset (offset points at the first of the two
// operand bytes), so that it lands at the current end of the chunk.
func (c *Chunk) PatchJump(offset int) {
	jump := len(c.Code) - offset - 2
	binary.BigEndian.PutUint16(c.Code[offset:offset+2], uint16(jump))
}
