package vm

import (
	"nilox/native"
	"nilox/value"
)

// readTriad are the natives whose sole argument is filled in by the
// host's asynchronous reader rather than by the caller.
var readTriad = map[string]bool{
	"ReadString": true,
	"ReadNumber": true,
	"ReadBool":   true,
}

// call implements CALL argc: the callee sits below its
// argc arguments on the stack. A script Function pushes a new frame;
// a NativeFunction is invoked directly and its result replaces the
// callee+arguments in place.
func (vm *VM) call(argCount int) error {
	callee := vm.peek(argCount)

	switch callee.Kind() {
	case value.KindFunction:
		fn := vm.functions[callee.AsFunctionIndex()]
		if fn.Arity != argCount {
			return vm.runtimeError("Expected %d arguments but got %d instead", fn.Arity, argCount)
		}
		vm.frames = append(vm.frames, frame{
			functionIndex:  callee.AsFunctionIndex(),
			stackBase:      len(vm.stack) - argCount,
			returnStackLen: len(vm.stack) - 1 - argCount,
		})
		return nil

	case value.KindNative:
		n := callee.AsNative().(native.Callable)
		if n.Arity() != argCount {
			return vm.runtimeError("Expected %d arguments but got %d instead", n.Arity(), argCount)
		}
		return vm.callNative(n, argCount)

	default:
		return vm.runtimeError("Can only call functions, got %s", kindName(callee))
	}
}

func (vm *VM) callNative(n native.Callable, argCount int) error {
	args := append([]value.Value(nil), vm.stack[len(vm.stack)-argCount:]...)

	if readTriad[n.Name()] {
		prompt := ""
		if len(args) > 0 && args[0].Kind() == value.KindStr {
			prompt = vm.in.Lookup(args[0].AsStrId())
		}
		input := vm.read(prompt)
		args = []value.Value{value.Str(vm.in.Intern(input))}
	}

	errID := vm.in.Intern(native.ErrStringName)
	vm.globals[errID] = value.Nil()

	env := &native.Env{Interner: vm.in, Globals: vm.globals, Print: vm.print, Println: vm.println}
	result := n.Call(env, args)

	vm.stack = vm.stack[:len(vm.stack)-1-argCount]
	vm.push(result)
	return nil
}
