package bytecode

// OpCode is a single-byte instruction tag. Multi-byte immediate operands
// that follow an opcode in Chunk.Code are packed big-endian.
type OpCode byte

const (
	// Constants and literals.
	OpConstant OpCode = iota // idx8: push constants[idx]
	OpNil                    // push nil
	OpTrue                   // push true
	OpFalse                  // push false

	// Stack bookkeeping.
	OpPop // pop one value

	// Variables.
	OpGetLocal     // s8: push locals[base+s]
	OpSetLocal     // s8: locals[base+s] = peek(0), does not pop
	OpGetGlobal    // k8: push globals[constants[k].Chars]
	OpSetGlobal    // k8: globals[constants[k].Chars] = peek(0), does not pop
	OpDefineGlobal // k8: globals[constants[k].Chars] = pop()
	OpGetUpvalue   // u8: push closure.Upvalues[u].Get()
	OpSetUpvalue   // u8: closure.Upvalues[u].Set(peek(0))

	// Properties.
	OpGetProperty // k8: field, else bound method, of instance on top
	OpSetProperty // k8: set field on instance, value stays on stack
	OpGetSuper    // k8: bound method looked up starting at the superclass

	// Comparison and arithmetic.
	OpEqual
	OpGreater
	OpLess
	OpAdd      // numbers add; two interned strings concatenate
	OpSubtract
	OpMultiply
	OpDivide
	OpNot
	OpNegate

	// I/O.
	OpPrint

	// Control flow. Jump/Loop operands are 16-bit, big-endian.
	OpJump        // o16: ip += o
	OpJumpIfFalse // o16: if peek(0) is falsey, ip += o (does not pop)
	OpLoop        // o16: ip -= o

	// Calls.
	OpCall        // argc8: invoke stack[-argc-1] with argc arguments
	OpInvoke      // k8 argc8: fused GetProperty+Call fast path
	OpSuperInvoke // k8 argc8: fused GetSuper+Call fast path

	// Closures.
	OpClosure      // k8 followed by UpvalueCount (isLocal,index) byte pairs
	OpCloseUpvalue // close and pop the top stack slot

	OpReturn // unwind one call frame

	// Classes.
	OpClass   // k8: push a new Class named constants[k]
	OpInherit // copy superclass(top-1) methods into subclass(top), pop subclass
	OpMethod  // k8: bind closure on top into class below as constants[k]
)

// String names an opcode for the disassembler.
func (op OpCode) String() string {
	switch op {
	case OpConstant:
		return "OP_CONSTANT"
	case OpNil:
		return "OP_NIL"
	case OpTrue:
		return "OP_TRUE"
	case OpFalse:
		return "OP_FALSE"
	case OpPop:
		return "OP_POP"
	case OpGetLocal:
		return "OP_GET_LOCAL"
	case OpSetLocal:
		return "OP_SET_LOCAL"
	case OpGetGlobal:
		return "OP_GET_GLOBAL"
	case OpSetGlobal:
		return "OP_SET_GLOBAL"
	case OpDefineGlobal:
		return "OP_DEFINE_GLOBAL"
	case OpGetUpvalue:
		return "OP_GET_UPVALUE"
	case OpSetUpvalue:
		return "OP_SET_UPVALUE"
	case OpGetProperty:
		return "OP_GET_PROPERTY"
	case OpSetProperty:
		return "OP_SET_PROPERTY"
	case OpGetSuper:
		return "OP_GET_SUPER"
	case OpEqual:
		return "OP_EQUAL"
	case OpGreater:
		return "OP_GREATER"
	case OpLess:
		return "OP_LESS"
	case OpAdd:
		return "OP_ADD"
	case OpSubtract:
		return "OP_SUBTRACT"
	case OpMultiply:
		return "OP_MULTIPLY"
	case OpDivide:
		return "OP_DIVIDE"
	case OpNot:
		return "OP_NOT"
	case OpNegate:
		return "OP_NEGATE"
	case OpPrint:
		return "OP_PRINT"
	case OpJump:
		return "OP_JUMP"
	case OpJumpIfFalse:
		return "OP_JUMP_IF_FALSE"
	case OpLoop:
		return "OP_LOOP"
	case OpCall:
		return "OP_CALL"
	case OpInvoke:
		return "OP_INVOKE"
	case OpSuperInvoke:
		return "OP_SUPER_INVOKE"
	case OpClosure:
		return "OP_CLOSURE"
	case OpCloseUpvalue:
		return "OP_CLOSE_UPVALUE"
	case OpReturn:
		return "OP_RETURN"
	case OpClass:
		return "OP_CLASS"
	case OpInherit:
		return "OP_INHERIT"
	case OpMethod:
		return "OP_METHOD"
	default:
		return "OP_UNKNOWN"
	}
}
