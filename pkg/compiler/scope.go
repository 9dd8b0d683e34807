package compiler

import (
	"github.com/kristofer/wisp/pkg/bytecode"
	"github.com/kristofer/wisp/pkg/lexer"
)

// local tracks one slot of a funcState's locals array. depth is -1 while
// the variable's initializer is still being compiled (a local is only
// safe to read once markInitialized fixes its depth).
// isCaptured records whether some nested function closes over this slot,
// which decides whether scope exit emits CloseUpvalue or a plain Pop.
type local struct {
	name       lexer.Token
	depth      int
	isCaptured bool
}

// upvalueDesc is one entry of a funcState's upvalue array: index either
// names a slot in the *enclosing* function's locals (isLocal) or an
// upvalue already captured by the enclosing function (propagated further
// out).
type upvalueDesc struct {
	index   byte
	isLocal bool
}

// funcState is one frame of the compiler's stack of per-function
// compilations; innermost is current. enclosing links outward so
// resolveUpvalue can walk the lexical chain when an identifier isn't a
// local of the function currently being compiled.
type funcState struct {
	enclosing *funcState
	function  *bytecode.Function
	typ       FunctionType

	locals     []local
	upvalues   []upvalueDesc
	scopeDepth int
}

// classState tracks whether the class body currently being compiled has a
// superclass, so super_ can report "Can't use 'super' in a class with no
// superclass." classState stacks (enclosing) so nested class declarations
// (a class body containing another `class` statement) resolve `this`/
// `super` against the innermost one.
type classState struct {
	enclosing     *classState
	hasSuperclass bool
}

// pushFunc opens a new compiler frame for a script, plain function, method
// or initializer body. Slot 0 of locals is reserved: named "this" for
// methods/initializers, an unnamed placeholder (holding the called
// function itself) for plain functions and the top-level script.
func (c *Compiler) pushFunc(typ FunctionType, name string) {
	fn := c.heap.NewFunction()
	c.heap.PushCompilerRoot(fn)
	if name != "" {
		fn.Name = c.heap.InternString(name)
	}

	fs := &funcState{enclosing: c.current, function: fn, typ: typ}
	slot0Name := ""
	if typ == TypeMethod || typ == TypeInitializer {
		slot0Name = "this"
	}
	fs.locals = append(fs.locals, local{name: lexer.Token{Literal: slot0Name}, depth: 0})

	c.current = fs
}

// popFunc closes the current compiler frame, emits the chunk's trailing
// implicit return, releases the function's compiler root
// (PopCompilerRoot), and hands back the completed Function. The caller is
// responsible for getting the function reachable (embedding it in a
// constant pool, or pushing it on the VM stack) before any further heap
// allocation.
func (c *Compiler) popFunc() *bytecode.Function {
	c.emitReturn()
	fn := c.current.function
	fn.UpvalueCount = len(c.current.upvalues)
	c.heap.PopCompilerRoot()
	c.current = c.current.enclosing
	return fn
}

func (c *Compiler) beginScope() { c.current.scopeDepth++ }

// endScope pops every local declared at or below the scope depth being
// exited, emitting CloseUpvalue for any the nested-function machinery
// captured and a plain Pop for the rest.
func (c *Compiler) endScope() {
	c.current.scopeDepth--
	fs := c.current
	for len(fs.locals) > 0 && fs.locals[len(fs.locals)-1].depth > fs.scopeDepth {
		if fs.locals[len(fs.locals)-1].isCaptured {
			c.emitOp(bytecode.OpCloseUpvalue)
		} else {
			c.emitOp(bytecode.OpPop)
		}
		fs.locals = fs.locals[:len(fs.locals)-1]
	}
}

// declareVariable registers parser.previous as a new local in the current
// scope (a no-op at global scope, where variables are late-bound by name).
// It rejects redeclaring a name already local to exactly this scope.
func (c *Compiler) declareVariable() {
	if c.current.scopeDepth == 0 {
		return
	}
	name := c.parser.previous
	fs := c.current
	for i := len(fs.locals) - 1; i >= 0; i-- {
		l := fs.locals[i]
		if l.depth != -1 && l.depth < fs.scopeDepth {
			break
		}
		if l.name.Literal == name.Literal {
			c.error("Already a variable with this name in this scope.")
		}
	}
	c.addLocal(name)
}

func (c *Compiler) addLocal(name lexer.Token) {
	if len(c.current.locals) >= maxLocals {
		c.error("Too many local variables in function.")
		return
	}
	c.current.locals = append(c.current.locals, local{name: name, depth: -1})
}

// markInitialized fixes the most recently declared local's depth to the
// current scope depth, making it legal to read. At global scope this is a
// no-op; defineVariable handles globals via OpDefineGlobal instead.
func (c *Compiler) markInitialized() {
	if c.current.scopeDepth == 0 {
		return
	}
	c.current.locals[len(c.current.locals)-1].depth = c.current.scopeDepth
}

// parseVariable consumes an identifier, declares it as a local if inside a
// scope, and returns the constant-pool index to use with OpDefineGlobal
// (0, unused, for locals).
func (c *Compiler) parseVariable(message string) byte {
	c.consume(lexer.TokenIdentifier, message)
	c.declareVariable()
	if c.current.scopeDepth > 0 {
		return 0
	}
	return c.identifierConstant(&c.parser.previous)
}

// defineVariable emits OpDefineGlobal for a global, or simply marks the
// local initialized (its value is already sitting in the right stack slot
// from compiling the initializer expression).
func (c *Compiler) defineVariable(global byte) {
	if c.current.scopeDepth > 0 {
		c.markInitialized()
		return
	}
	c.emitOpByte(bytecode.OpDefineGlobal, global)
}

// resolveLocal searches fs's locals last-defined-first for name, so a
// shadowing declaration wins. Reading a local whose depth is still -1
// (its own initializer referencing itself) is a compile error.
func resolveLocal(c *Compiler, fs *funcState, name *lexer.Token) int {
	for i := len(fs.locals) - 1; i >= 0; i-- {
		l := &fs.locals[i]
		if l.name.Literal == name.Literal {
			if l.depth == -1 {
				c.error("Can't read local variable in its own initializer.")
			}
			return i
		}
	}
	return -1
}

// addUpvalueOn records (or reuses, if already captured) an upvalue
// descriptor on fs for the given enclosing index, deduplicated per frame.
func (c *Compiler) addUpvalueOn(fs *funcState, index byte, isLocal bool) int {
	for i, uv := range fs.upvalues {
		if uv.index == index && uv.isLocal == isLocal {
			return i
		}
	}
	if len(fs.upvalues) >= maxUpvalues {
		c.error("Too many closure variables in function.")
		return 0
	}
	fs.upvalues = append(fs.upvalues, upvalueDesc{index: index, isLocal: isLocal})
	return len(fs.upvalues) - 1
}

// resolveUpvalue walks the lexical chain: if name is a local of some
// enclosing frame, mark it captured and thread an upvalue descriptor chain
// from that frame down to fs. Returns -1 if name isn't found as a local of
// any enclosing frame (it must then resolve as a global).
func resolveUpvalue(c *Compiler, fs *funcState, name *lexer.Token) int {
	if fs.enclosing == nil {
		return -1
	}
	if local := resolveLocal(c, fs.enclosing, name); local != -1 {
		fs.enclosing.locals[local].isCaptured = true
		return c.addUpvalueOn(fs, byte(local), true)
	}
	if up := resolveUpvalue(c, fs.enclosing, name); up != -1 {
		return c.addUpvalueOn(fs, byte(up), false)
	}
	return -1
}

// syntheticToken builds a Token carrying text with no corresponding source
// span, used for the compiler-generated "this"/"super" references that
// super-call compilation needs without the user having typed them.
func syntheticToken(text string) lexer.Token {
	return lexer.Token{Type: lexer.TokenIdentifier, Literal: text}
}
