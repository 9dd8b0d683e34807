package bytecode_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kristofer/wisp/pkg/bytecode"
	"github.com/kristofer/wisp/pkg/heap"
)

func TestWriteReadChunk_RoundTrip(t *testing.T) {
	h := heap.New()

	nested := bytecode.NewFunction()
	nested.Arity = 1
	nested.Name = h.InternString("inner")
	nested.Chunk.WriteOp(bytecode.OpGetLocal, 1)
	nested.Chunk.Write(0, 1)
	nested.Chunk.WriteOp(bytecode.OpReturn, 1)

	fn := bytecode.NewFunction()
	fn.Chunk.AddConstant(bytecode.NumberValue(3.5))
	fn.Chunk.AddConstant(bytecode.ObjectValue(h.InternString("hello")))
	fn.Chunk.AddConstant(bytecode.ObjectValue(nested))
	fn.Chunk.WriteOp(bytecode.OpConstant, 1)
	fn.Chunk.Write(0, 1)
	fn.Chunk.WriteOp(bytecode.OpReturn, 1)

	var buf bytes.Buffer
	require.NoError(t, bytecode.WriteChunk(&buf, fn))

	h2 := heap.New()
	got, err := bytecode.ReadChunk(&buf, h2)
	require.NoError(t, err)

	require.Equal(t, fn.Chunk.Code, got.Chunk.Code)
	require.Equal(t, fn.Chunk.Lines, got.Chunk.Lines)
	require.Len(t, got.Chunk.Constants, 3)
	require.Equal(t, 3.5, got.Chunk.Constants[0].AsNumber())
	require.Equal(t, "hello", got.Chunk.Constants[1].AsObject().(*bytecode.String).Chars)

	gotNested := got.Chunk.Constants[2].AsObject().(*bytecode.Function)
	require.Equal(t, "inner", gotNested.Name.Chars)
	require.Equal(t, 1, gotNested.Arity)
	require.Equal(t, nested.Chunk.Code, gotNested.Chunk.Code)
}

func TestReadChunk_RejectsBadMagic(t *testing.T) {
	h := heap.New()
	_, err := bytecode.ReadChunk(bytes.NewReader([]byte("NOPE")), h)
	require.Error(t, err)
}
