package compiler

import (
	"github.com/kristofer/wisp/pkg/bytecode"
	"github.com/kristofer/wisp/pkg/lexer"
)

// Precedence levels, strictly ordered low to high.
type precedence int

const (
	precNone       precedence = iota
	precAssignment            // =
	precOr                    // or
	precAnd                   // and
	precEquality              // == !=
	precComparison            // < > <= >=
	precTerm                  // + -
	precFactor                // * /
	precUnary                 // ! -
	precCall                  // . ()
	precPrimary
)

type parseFn func(c *Compiler, canAssign bool)

// rule is one row of the Pratt dispatch table: a token type's prefix
// handler, infix handler, and the precedence to its left when it appears
// infix. Either handler may be nil.
type rule struct {
	prefix     parseFn
	infix      parseFn
	precedence precedence
}

// rules is indexed directly by lexer.TokenType. It is populated by init()
// below rather than a var literal: a literal referencing these methods
// would make the Go compiler see an initialization cycle (rules -> call ->
// ... -> getRule -> rules), even though no call actually happens until
// after package initialization completes.
var rules [lexer.TokenEOF + 1]rule

func init() {
	rules[lexer.TokenLeftParen] = rule{prefix: (*Compiler).grouping, infix: (*Compiler).call, precedence: precCall}
	rules[lexer.TokenRightParen] = rule{}
	rules[lexer.TokenLeftBrace] = rule{}
	rules[lexer.TokenRightBrace] = rule{}
	rules[lexer.TokenComma] = rule{}
	rules[lexer.TokenDot] = rule{infix: (*Compiler).dot, precedence: precCall}
	rules[lexer.TokenMinus] = rule{prefix: (*Compiler).unary, infix: (*Compiler).binary, precedence: precTerm}
	rules[lexer.TokenPlus] = rule{infix: (*Compiler).binary, precedence: precTerm}
	rules[lexer.TokenSemicolon] = rule{}
	rules[lexer.TokenSlash] = rule{infix: (*Compiler).binary, precedence: precFactor}
	rules[lexer.TokenStar] = rule{infix: (*Compiler).binary, precedence: precFactor}
	rules[lexer.TokenBang] = rule{prefix: (*Compiler).unary}
	rules[lexer.TokenBangEqual] = rule{infix: (*Compiler).binary, precedence: precEquality}
	rules[lexer.TokenEqual] = rule{}
	rules[lexer.TokenEqualEqual] = rule{infix: (*Compiler).binary, precedence: precEquality}
	rules[lexer.TokenGreater] = rule{infix: (*Compiler).binary, precedence: precComparison}
	rules[lexer.TokenGreaterEqual] = rule{infix: (*Compiler).binary, precedence: precComparison}
	rules[lexer.TokenLess] = rule{infix: (*Compiler).binary, precedence: precComparison}
	rules[lexer.TokenLessEqual] = rule{infix: (*Compiler).binary, precedence: precComparison}
	rules[lexer.TokenIdentifier] = rule{prefix: (*Compiler).variable}
	rules[lexer.TokenString] = rule{prefix: (*Compiler).stringLiteral}
	rules[lexer.TokenNumber] = rule{prefix: (*Compiler).number}
	rules[lexer.TokenAnd] = rule{infix: (*Compiler).and_, precedence: precAnd}
	rules[lexer.TokenClass] = rule{}
	rules[lexer.TokenElse] = rule{}
	rules[lexer.TokenFalse] = rule{prefix: (*Compiler).literal}
	rules[lexer.TokenFor] = rule{}
	rules[lexer.TokenFun] = rule{prefix: (*Compiler).funExpr}
	rules[lexer.TokenIf] = rule{}
	rules[lexer.TokenNil] = rule{prefix: (*Compiler).literal}
	rules[lexer.TokenOr] = rule{infix: (*Compiler).or_, precedence: precOr}
	rules[lexer.TokenPrint] = rule{}
	rules[lexer.TokenReturn] = rule{}
	rules[lexer.TokenSuper] = rule{prefix: (*Compiler).super_}
	rules[lexer.TokenThis] = rule{prefix: (*Compiler).this_}
	rules[lexer.TokenTrue] = rule{prefix: (*Compiler).literal}
	rules[lexer.TokenVar] = rule{}
	rules[lexer.TokenWhile] = rule{}
	rules[lexer.TokenError] = rule{}
	rules[lexer.TokenEOF] = rule{}
}

func getRule(t lexer.TokenType) *rule { return &rules[t] }

// expression parses at the lowest real precedence (above "no expression at
// all"), i.e. it accepts assignment and everything that binds tighter.
func (c *Compiler) expression() {
	c.parsePrecedence(precAssignment)
}

// parsePrecedence is the Pratt engine proper: consume one token, dispatch
// its prefix handler, then keep consuming and dispatching infix handlers
// as long as the next token binds at least as tightly as prec. canAssign
// is threaded through so identifier-like prefixes know whether a following
// '=' is a legal assignment target.
func (c *Compiler) parsePrecedence(prec precedence) {
	c.advance()
	prefix := getRule(c.parser.previous.Type).prefix
	if prefix == nil {
		c.error("Expect expression.")
		return
	}

	canAssign := prec <= precAssignment
	prefix(c, canAssign)

	for prec <= getRule(c.parser.current.Type).precedence {
		c.advance()
		infix := getRule(c.parser.previous.Type).infix
		infix(c, canAssign)
	}

	if canAssign && c.match(lexer.TokenEqual) {
		c.error("Invalid assignment target.")
	}
}

func (c *Compiler) grouping(canAssign bool) {
	c.expression()
	c.consume(lexer.TokenRightParen, "Expect ')' after expression.")
}

func (c *Compiler) unary(canAssign bool) {
	opType := c.parser.previous.Type
	c.parsePrecedence(precUnary)
	switch opType {
	case lexer.TokenBang:
		c.emitOp(bytecode.OpNot)
	case lexer.TokenMinus:
		c.emitOp(bytecode.OpNegate)
	}
}

func (c *Compiler) binary(canAssign bool) {
	opType := c.parser.previous.Type
	r := getRule(opType)
	c.parsePrecedence(r.precedence + 1)

	switch opType {
	case lexer.TokenBangEqual:
		c.emitOp(bytecode.OpEqual)
		c.emitOp(bytecode.OpNot)
	case lexer.TokenEqualEqual:
		c.emitOp(bytecode.OpEqual)
	case lexer.TokenGreater:
		c.emitOp(bytecode.OpGreater)
	case lexer.TokenGreaterEqual:
		c.emitOp(bytecode.OpLess)
		c.emitOp(bytecode.OpNot)
	case lexer.TokenLess:
		c.emitOp(bytecode.OpLess)
	case lexer.TokenLessEqual:
		c.emitOp(bytecode.OpGreater)
		c.emitOp(bytecode.OpNot)
	case lexer.TokenPlus:
		c.emitOp(bytecode.OpAdd)
	case lexer.TokenMinus:
		c.emitOp(bytecode.OpSubtract)
	case lexer.TokenStar:
		c.emitOp(bytecode.OpMultiply)
	case lexer.TokenSlash:
		c.emitOp(bytecode.OpDivide)
	}
}

func (c *Compiler) call(canAssign bool) {
	argc := c.argumentList()
	c.emitOpByte(bytecode.OpCall, argc)
}

// argumentList parses a parenthesized, comma-separated expression list
// already positioned just past the opening '(' and returns the argument
// count, reporting a compile error for more than 255 arguments.
func (c *Compiler) argumentList() byte {
	var argc int
	if !c.check(lexer.TokenRightParen) {
		for {
			c.expression()
			if argc == maxArgs {
				c.error("Can't have more than 255 arguments.")
			}
			argc++
			if !c.match(lexer.TokenComma) {
				break
			}
		}
	}
	c.consume(lexer.TokenRightParen, "Expect ')' after arguments.")
	return byte(argc)
}

func (c *Compiler) dot(canAssign bool) {
	c.consume(lexer.TokenIdentifier, "Expect property name after '.'.")
	name := c.identifierConstant(&c.parser.previous)

	switch {
	case canAssign && c.match(lexer.TokenEqual):
		c.expression()
		c.emitOpByte(bytecode.OpSetProperty, name)
	case c.match(lexer.TokenLeftParen):
		argc := c.argumentList()
		c.emitOpByte(bytecode.OpInvoke, name)
		c.emitByte(argc)
	default:
		c.emitOpByte(bytecode.OpGetProperty, name)
	}
}

func (c *Compiler) and_(canAssign bool) {
	endJump := c.emitJump(bytecode.OpJumpIfFalse)
	c.emitOp(bytecode.OpPop)
	c.parsePrecedence(precAnd)
	c.patchJump(endJump)
}

func (c *Compiler) or_(canAssign bool) {
	elseJump := c.emitJump(bytecode.OpJumpIfFalse)
	endJump := c.emitJump(bytecode.OpJump)
	c.patchJump(elseJump)
	c.emitOp(bytecode.OpPop)
	c.parsePrecedence(precOr)
	c.patchJump(endJump)
}

func (c *Compiler) variable(canAssign bool) {
	c.namedVariable(c.parser.previous, canAssign)
}

// namedVariable resolves name in order: current function's locals,
// enclosing functions' locals (as upvalues), then globals by name
// (late-bound at runtime).
func (c *Compiler) namedVariable(name lexer.Token, canAssign bool) {
	var getOp, setOp bytecode.OpCode
	var arg int

	if local := resolveLocal(c, c.current, &name); local != -1 {
		arg, getOp, setOp = local, bytecode.OpGetLocal, bytecode.OpSetLocal
	} else if up := resolveUpvalue(c, c.current, &name); up != -1 {
		arg, getOp, setOp = up, bytecode.OpGetUpvalue, bytecode.OpSetUpvalue
	} else {
		arg, getOp, setOp = int(c.identifierConstant(&name)), bytecode.OpGetGlobal, bytecode.OpSetGlobal
	}

	if canAssign && c.match(lexer.TokenEqual) {
		c.expression()
		c.emitOpByte(setOp, byte(arg))
	} else {
		c.emitOpByte(getOp, byte(arg))
	}
}

// funExpr compiles `fun (params) { body }` appearing in expression
// position: an anonymous function value, compiled exactly like a named
// declaration's body but never bound to a variable.
func (c *Compiler) funExpr(canAssign bool) {
	c.function(TypeFunction, "")
}

// this_ treats `this` as an ordinary local-variable read: slot 0 of every
// method/initializer frame is already named "this" by pushFunc, so
// resolution falls straight out of namedVariable.
func (c *Compiler) this_(canAssign bool) {
	if c.currentClass == nil {
		c.error("Can't use 'this' outside of a class.")
		return
	}
	c.variable(false)
}

// super_ compiles both `super.name` (a GetSuper bound-method load) and
// `super.name(args)` (the fused SuperInvoke fast path).
func (c *Compiler) super_(canAssign bool) {
	if c.currentClass == nil {
		c.error("Can't use 'super' outside of a class.")
	} else if !c.currentClass.hasSuperclass {
		c.error("Can't use 'super' in a class with no superclass.")
	}

	c.consume(lexer.TokenDot, "Expect '.' after 'super'.")
	c.consume(lexer.TokenIdentifier, "Expect superclass method name.")
	name := c.identifierConstant(&c.parser.previous)

	c.namedVariable(syntheticToken("this"), false)
	if c.match(lexer.TokenLeftParen) {
		argc := c.argumentList()
		c.namedVariable(syntheticToken("super"), false)
		c.emitOpByte(bytecode.OpSuperInvoke, name)
		c.emitByte(argc)
	} else {
		c.namedVariable(syntheticToken("super"), false)
		c.emitOpByte(bytecode.OpGetSuper, name)
	}
}
