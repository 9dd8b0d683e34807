package compiler_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kristofer/wisp/pkg/compiler"
	"github.com/kristofer/wisp/pkg/heap"
)

func compiles(t *testing.T, source string) bool {
	t.Helper()
	h := heap.New()
	_, ok := compiler.Compile(source, h)
	return ok
}

func TestCompile_AcceptsWellFormedProgram(t *testing.T) {
	require.True(t, compiles(t, `
		class Animal {
			init(name) { this.name = name; }
			speak() { print this.name; }
		}
		class Dog < Animal {
			speak() { super.speak(); print "woof"; }
		}
		Dog("Rex").speak();
	`))
}

func TestCompile_ReadingLocalInOwnInitializerIsError(t *testing.T) {
	require.False(t, compiles(t, `{ var a = a; }`))
}

func TestCompile_InvalidAssignmentTargetIsError(t *testing.T) {
	require.False(t, compiles(t, `a + b = 3;`))
}

func TestCompile_ReturnValueFromInitializerIsError(t *testing.T) {
	require.False(t, compiles(t, `
		class C { init() { return 1; } }
	`))
}

func TestCompile_ReturnAtTopLevelIsError(t *testing.T) {
	require.False(t, compiles(t, `return 1;`))
}

func TestCompile_SuperOutsideClassIsError(t *testing.T) {
	require.False(t, compiles(t, `super.foo();`))
}

func TestCompile_ThisOutsideClassIsError(t *testing.T) {
	require.False(t, compiles(t, `print this;`))
}

func TestCompile_ClassInheritingFromItselfIsError(t *testing.T) {
	require.False(t, compiles(t, `class Oops < Oops {}`))
}

func TestCompile_RedeclaringLocalInSameScopeIsError(t *testing.T) {
	require.False(t, compiles(t, `{ var a = 1; var a = 2; }`))
}

func TestCompile_ShadowingInNestedScopeIsFine(t *testing.T) {
	require.True(t, compiles(t, `{ var a = 1; { var a = 2; print a; } }`))
}

func TestCompile_MultipleErrorsAreAllReported(t *testing.T) {
	// panicMode/synchronize must let compilation continue past the first
	// error to the end of the file rather than bailing out immediately.
	require.False(t, compiles(t, `
		var a = a;
		print this;
		return 1;
	`))
}

func TestCompile_UnterminatedStringIsError(t *testing.T) {
	require.False(t, compiles(t, `print "unterminated;`))
}
