package bytecode_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kristofer/wisp/pkg/bytecode"
)

func TestValue_Falsiness(t *testing.T) {
	require.True(t, bytecode.NilValue.IsFalsey())
	require.True(t, bytecode.BoolValue(false).IsFalsey())
	require.False(t, bytecode.BoolValue(true).IsFalsey())
	require.False(t, bytecode.NumberValue(0).IsFalsey(), "0 is truthy")
	require.False(t, bytecode.ObjectValue(bytecode.NewString("")).IsFalsey(), "empty string is truthy")
}

func TestValue_EqualityIsStructuralForPrimitives(t *testing.T) {
	require.True(t, bytecode.NumberValue(1).Equal(bytecode.NumberValue(1)))
	require.False(t, bytecode.NumberValue(1).Equal(bytecode.NumberValue(2)))
	require.True(t, bytecode.BoolValue(true).Equal(bytecode.BoolValue(true)))
	require.True(t, bytecode.NilValue.Equal(bytecode.NilValue))
	require.False(t, bytecode.NumberValue(0).Equal(bytecode.BoolValue(false)), "different types never equal")
}

func TestValue_ObjectEqualityIsReferenceIdentity(t *testing.T) {
	a := bytecode.ObjectValue(bytecode.NewInstance(bytecode.NewClass(bytecode.NewString("C"))))
	b := bytecode.ObjectValue(bytecode.NewInstance(bytecode.NewClass(bytecode.NewString("C"))))
	require.False(t, a.Equal(b), "two distinct instances are never equal")
	require.True(t, a.Equal(a))
}

func TestPrint_NumberFormatting(t *testing.T) {
	require.Equal(t, "1", bytecode.Print(bytecode.NumberValue(1)))
	require.Equal(t, "1.5", bytecode.Print(bytecode.NumberValue(1.5)))
	require.Equal(t, "nil", bytecode.Print(bytecode.NilValue))
	require.Equal(t, "true", bytecode.Print(bytecode.BoolValue(true)))
}
