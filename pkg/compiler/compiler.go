// Package compiler implements the single-pass Pratt-style compiler: it
// consumes tokens directly from pkg/lexer and emits pkg/bytecode chunks,
// with no intermediate AST. Lexical scope resolution, upvalue capture and
// class/method binding all happen as bytecode is emitted, not as a
// separate pass over a parsed tree.
package compiler

import (
	"fmt"
	"strconv"

	"github.com/kristofer/wisp/pkg/bytecode"
	"github.com/kristofer/wisp/pkg/heap"
	"github.com/kristofer/wisp/pkg/lexer"
)

// FunctionType distinguishes the four kinds of callable bodies the
// compiler can be compiling at any given moment; it governs what slot 0
// of the locals array means and what a bare `return;` emits.
type FunctionType int

const (
	TypeScript FunctionType = iota
	TypeFunction
	TypeMethod
	TypeInitializer
)

// Hard ceilings imposed by the operand encoding: 256 locals, 256
// upvalues and 256 constants per function (one-byte operands), 255
// arguments per call, and a 16-bit jump offset.
const (
	maxLocals    = 256
	maxUpvalues  = 256
	maxConstants = 256
	maxArgs      = 255
	maxJump      = 1 << 16
)

// parserState is the shared {previous, current, hadError, panicMode}
// record: one per compile, threaded through every nested function frame
// rather than duplicated per frame.
type parserState struct {
	previous  lexer.Token
	current   lexer.Token
	hadError  bool
	panicMode bool
}

// Compiler drives one call to Compile. It owns the token stream, the
// shared parser state, the stack of per-function frames (funcState,
// innermost = current), and an optional class-compiler stack for
// this/super resolution. It takes a narrow *heap.Heap handle: compile-time
// allocation (functions, interned strings) needs heap services plus root
// protection for the in-progress function chain, not the full VM.
type Compiler struct {
	lex    *lexer.Lexer
	parser parserState
	heap   *heap.Heap

	current      *funcState
	currentClass *classState
}

// Compile compiles source into a top-level script Function. The boolean
// is false if any compile-time error was reported; hadError is sticky, so
// one run surfaces every diagnostic it can before reporting failure.
func Compile(source string, h *heap.Heap) (*bytecode.Function, bool) {
	c := &Compiler{lex: lexer.New(source), heap: h}
	c.pushFunc(TypeScript, "")

	c.advance()
	for !c.match(lexer.TokenEOF) {
		c.declaration()
	}

	fn := c.popFunc()
	return fn, !c.parser.hadError
}

// --- token stream -----------------------------------------------------

func (c *Compiler) advance() {
	c.parser.previous = c.parser.current
	for {
		c.parser.current = c.lex.NextToken()
		if c.parser.current.Type != lexer.TokenError {
			break
		}
		c.errorAtCurrent(c.parser.current.Literal)
	}
}

func (c *Compiler) check(t lexer.TokenType) bool {
	return c.parser.current.Type == t
}

func (c *Compiler) match(t lexer.TokenType) bool {
	if !c.check(t) {
		return false
	}
	c.advance()
	return true
}

func (c *Compiler) consume(t lexer.TokenType, message string) {
	if c.parser.current.Type == t {
		c.advance()
		return
	}
	c.errorAtCurrent(message)
}

// --- diagnostics --------------------------------------------------------

func (c *Compiler) errorAtCurrent(message string) { c.errorAt(&c.parser.current, message) }
func (c *Compiler) error(message string)          { c.errorAt(&c.parser.previous, message) }

// errorAt reports a diagnostic at tok's line, then enters panic mode to
// suppress cascading errors until synchronize finds the next statement
// boundary.
func (c *Compiler) errorAt(tok *lexer.Token, message string) {
	if c.parser.panicMode {
		return
	}
	c.parser.panicMode = true

	where := ""
	switch tok.Type {
	case lexer.TokenEOF:
		where = " at end"
	case lexer.TokenError:
		// no location suffix: the lexer's own message is self-contained
	default:
		where = fmt.Sprintf(" at '%s'", tok.Literal)
	}
	fmt.Printf("[line %d] Error%s: %s\n", tok.Line, where, message)
	c.parser.hadError = true
}

// synchronize discards tokens until it reaches a likely statement
// boundary: a ';' just consumed, or one of the statement-starting keywords
// at the current token. This lets one compile report multiple diagnostics
// instead of bailing out at the first one.
func (c *Compiler) synchronize() {
	c.parser.panicMode = false

	for c.parser.current.Type != lexer.TokenEOF {
		if c.parser.previous.Type == lexer.TokenSemicolon {
			return
		}
		switch c.parser.current.Type {
		case lexer.TokenClass, lexer.TokenFun, lexer.TokenVar, lexer.TokenFor,
			lexer.TokenIf, lexer.TokenWhile, lexer.TokenPrint, lexer.TokenReturn:
			return
		}
		c.advance()
	}
}

// --- emission -----------------------------------------------------------

func (c *Compiler) chunk() *bytecode.Chunk { return c.current.function.Chunk }

func (c *Compiler) emitByte(b byte) {
	c.chunk().Write(b, c.parser.previous.Line)
}

func (c *Compiler) emitOp(op bytecode.OpCode) {
	c.chunk().WriteOp(op, c.parser.previous.Line)
}

func (c *Compiler) emitOpByte(op bytecode.OpCode, b byte) {
	c.emitOp(op)
	c.emitByte(b)
}

func (c *Compiler) emitLoop(loopStart int) {
	c.emitOp(bytecode.OpLoop)
	offset := len(c.chunk().Code) - loopStart + 2
	if offset > maxJump-1 {
		c.error("Loop body too large.")
	}
	c.emitByte(byte(offset >> 8))
	c.emitByte(byte(offset))
}

// emitJump writes op followed by a two-byte placeholder operand and
// returns the offset of the first placeholder byte, for a later patchJump.
func (c *Compiler) emitJump(op bytecode.OpCode) int {
	c.emitOp(op)
	c.emitByte(0xff)
	c.emitByte(0xff)
	return len(c.chunk().Code) - 2
}

func (c *Compiler) patchJump(offset int) {
	if len(c.chunk().Code)-offset-2 > maxJump-1 {
		c.error("Too much code to jump over.")
	}
	c.chunk().PatchJump(offset)
}

func (c *Compiler) emitReturn() {
	if c.current.typ == TypeInitializer {
		c.emitOpByte(bytecode.OpGetLocal, 0)
	} else {
		c.emitOp(bytecode.OpNil)
	}
	c.emitOp(bytecode.OpReturn)
}

// makeConstant appends v to the current chunk's constant pool, enforcing
// the 256-constant ceiling a single index byte can address.
func (c *Compiler) makeConstant(v bytecode.Value) byte {
	idx := c.chunk().AddConstant(v)
	if idx >= maxConstants {
		c.error("Too many constants in one function.")
		return 0
	}
	return byte(idx)
}

func (c *Compiler) emitConstant(v bytecode.Value) {
	c.emitOpByte(bytecode.OpConstant, c.makeConstant(v))
}

// identifierConstant interns name's lexeme and stores it as a chunk
// constant, returning its index. This is how global/property/method
// names travel from source text into the constant pool.
func (c *Compiler) identifierConstant(tok *lexer.Token) byte {
	return c.makeConstant(bytecode.ObjectValue(c.heap.InternString(tok.Literal)))
}

func (c *Compiler) number(canAssign bool) {
	value, err := strconv.ParseFloat(c.parser.previous.Literal, 64)
	if err != nil {
		c.error("Invalid number literal.")
		return
	}
	c.emitConstant(bytecode.NumberValue(value))
}

// stringLiteral strips the surrounding quotes and interns the remainder
// verbatim; there are no escape sequences to process.
func (c *Compiler) stringLiteral(canAssign bool) {
	lit := c.parser.previous.Literal
	raw := lit[1 : len(lit)-1]
	c.emitConstant(bytecode.ObjectValue(c.heap.InternString(raw)))
}

func (c *Compiler) literal(canAssign bool) {
	switch c.parser.previous.Type {
	case lexer.TokenFalse:
		c.emitOp(bytecode.OpFalse)
	case lexer.TokenNil:
		c.emitOp(bytecode.OpNil)
	case lexer.TokenTrue:
		c.emitOp(bytecode.OpTrue)
	}
}
