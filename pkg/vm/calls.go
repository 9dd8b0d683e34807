package vm

import "github.com/kristofer/wisp/pkg/bytecode"

// callValue dispatches a value being called with argc arguments already
// sitting on the stack above it (callee itself at stack[-argc-1]): a
// Closure pushes a new frame, a Native calls straight through to Go and
// replaces its arguments with the result, a Class constructs a fresh
// Instance and re-dispatches to its "init" method if one exists, and a
// BoundMethod rewrites its receiver into the call slot before dispatching
// to its underlying Closure.
func (vm *VM) callValue(callee bytecode.Value, argc int) bool {
	if !callee.IsObject() {
		return vm.fail("Can only call functions and classes.")
	}

	switch o := callee.AsObject().(type) {
	case *bytecode.Closure:
		return vm.call(o, argc)

	case *bytecode.Native:
		args := vm.stack[vm.stackTop-argc : vm.stackTop]
		result, err := o.Fn(args)
		if err != nil {
			return vm.fail("%s", err.Error())
		}
		vm.stackTop -= argc + 1
		vm.push(result)
		return true

	case *bytecode.Class:
		instance := vm.heap.NewInstance(o)
		vm.stack[vm.stackTop-argc-1] = bytecode.ObjectValue(instance)
		if initializer, ok := o.Methods.Get(vm.initString); ok {
			return vm.call(initializer.AsObject().(*bytecode.Closure), argc)
		}
		if argc != 0 {
			return vm.fail("Expected 0 arguments but got %d.", argc)
		}
		return true

	case *bytecode.BoundMethod:
		vm.stack[vm.stackTop-argc-1] = o.Receiver
		return vm.call(o.Method, argc)

	default:
		return vm.fail("Can only call functions and classes.")
	}
}

// call pushes a new CallFrame for closure, checking arity and the frame
// depth ceiling first.
func (vm *VM) call(closure *bytecode.Closure, argc int) bool {
	if argc != closure.Function.Arity {
		return vm.fail("Expected %d arguments but got %d.", closure.Function.Arity, argc)
	}
	if len(vm.frames) >= framesMax {
		return vm.fail("Stack overflow.")
	}

	vm.frames = append(vm.frames, CallFrame{
		closure: closure,
		ip:      0,
		slots:   vm.stackTop - argc - 1,
	})
	return true
}

// invoke is OpInvoke's fused GetProperty+Call fast path: if the receiver
// has a field by that name (a stored closure, say) it's called through
// callValue like any other value; otherwise the method is looked up on
// the receiver's class and invoked without materializing a BoundMethod.
func (vm *VM) invoke(name *bytecode.String, argc int) bool {
	receiver := vm.peek(argc)
	if !receiver.IsObjType(bytecode.ObjInstanceType) {
		return vm.fail("Only instances have methods.")
	}
	instance := receiver.AsObject().(*bytecode.Instance)

	if field, ok := instance.Fields.Get(name); ok {
		vm.stack[vm.stackTop-argc-1] = field
		return vm.callValue(field, argc)
	}
	return vm.invokeFromClass(instance.Class, name, argc)
}

func (vm *VM) invokeFromClass(class *bytecode.Class, name *bytecode.String, argc int) bool {
	method, ok := class.Methods.Get(name)
	if !ok {
		return vm.fail("Undefined property '%s'.", name.Chars)
	}
	return vm.call(method.AsObject().(*bytecode.Closure), argc)
}

// bindMethod looks up name on class, wraps it with the current receiver
// (still on top of the stack) into a BoundMethod, and replaces the
// receiver with it.
func (vm *VM) bindMethod(class *bytecode.Class, name *bytecode.String) bool {
	method, ok := class.Methods.Get(name)
	if !ok {
		return vm.fail("Undefined property '%s'.", name.Chars)
	}
	bound := vm.heap.NewBoundMethod(vm.peek(0), method.AsObject().(*bytecode.Closure))
	vm.pop()
	vm.push(bytecode.ObjectValue(bound))
	return true
}

// defineMethod pops the just-compiled closure on top of the stack and
// binds it into the class beneath it under name: OpMethod's handler,
// called once per method declaration in class-body order.
func (vm *VM) defineMethod(name *bytecode.String) {
	method := vm.peek(0)
	class := vm.peek(1).AsObject().(*bytecode.Class)
	class.Methods.Set(name, method)
	vm.pop()
}

// getProperty handles OpGetProperty: a field read wins over a method
// lookup, and a method lookup miss is a runtime error rather than nil,
// since this language has no notion of an absent property silently
// reading as nil.
func (vm *VM) getProperty() bool {
	if !vm.peek(0).IsObjType(bytecode.ObjInstanceType) {
		return vm.fail("Only instances have properties.")
	}
	instance := vm.peek(0).AsObject().(*bytecode.Instance)
	name := vm.readString()

	if value, ok := instance.Fields.Get(name); ok {
		vm.pop()
		vm.push(value)
		return true
	}
	return vm.bindMethod(instance.Class, name)
}

// setProperty handles OpSetProperty: assignment always creates or
// overwrites a field, even if a method of the same name exists: fields
// and methods share one namespace per instance, but a direct assignment
// always targets the field table.
func (vm *VM) setProperty() bool {
	if !vm.peek(1).IsObjType(bytecode.ObjInstanceType) {
		return vm.fail("Only instances have fields.")
	}
	instance := vm.peek(1).AsObject().(*bytecode.Instance)
	name := vm.readString()

	instance.Fields.Set(name, vm.peek(0))
	value := vm.pop()
	vm.pop()
	vm.push(value)
	return true
}

// add implements OpAdd's two overloads: numeric addition, or string
// concatenation when both operands are strings, interning the freshly
// built string so it joins the same identity-comparable pool every other
// string literal lives in.
func (vm *VM) add() bool {
	b, a := vm.peek(0), vm.peek(1)
	switch {
	case a.IsNumber() && b.IsNumber():
		vm.pop()
		vm.pop()
		vm.push(bytecode.NumberValue(a.AsNumber() + b.AsNumber()))
		return true
	case a.IsObjType(bytecode.ObjStringType) && b.IsObjType(bytecode.ObjStringType):
		vm.pop()
		vm.pop()
		as := a.AsObject().(*bytecode.String)
		bs := b.AsObject().(*bytecode.String)
		vm.push(bytecode.ObjectValue(vm.heap.InternString(as.Chars + bs.Chars)))
		return true
	default:
		return vm.fail("Operands must be two numbers or two strings.")
	}
}

func (vm *VM) numericBinary(op func(a, b float64) bytecode.Value) bool {
	if !vm.peek(0).IsNumber() || !vm.peek(1).IsNumber() {
		return vm.fail("Operands must be numbers.")
	}
	b := vm.pop()
	a := vm.pop()
	vm.push(op(a.AsNumber(), b.AsNumber()))
	return true
}
