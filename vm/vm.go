// Package vm implements the stack-based interpreter: call frames, a
// value stack, globals, and the opcode dispatch loop that executes a
// compiled function table.
package vm

import (
	"fmt"
	"math"
	"os"

	"nilox/compiler"
	"nilox/interner"
	"nilox/native"
	"nilox/value"
)

// Reader is the host's asynchronous `read(prompt) -> string` callback.
// Go has no cheap way to model "async" for a
// single-threaded interpreter that must block until the answer
// arrives, so this is a plain blocking function; the CLI's
// implementations (buffered stdin, or chzyer/readline) already block
// this way.
type Reader func(prompt string) string

// frame is a per-call record: which function is executing, its
// instruction pointer, and where its locals begin on the shared value
// stack.
type frame struct {
	functionIndex  int
	ip             int
	stackBase      int
	returnStackLen int
}

// VM owns every piece of mutable runtime state: the function table
// (immutable once compiled), the value stack, the frame stack,
// globals, and the interner shared with the compiler.
type VM struct {
	functions []*compiler.Function
	stack     []value.Value
	frames    []frame
	globals   map[interner.StrId]value.Value
	in        *interner.Interner
	read      Reader
	print     func(string)
	println   func(string)
	trace     bool
}

// New constructs a VM ready to execute functions, whose last entry is
// the top-level script. print/println are the host's synchronous
// output sinks and read is its asynchronous input callback; trace
// enables the instruction-by-instruction disassembler.
func New(functions []*compiler.Function, in *interner.Interner, print, println func(string), read Reader, trace bool) *VM {
	globals := native.Registry(in)
	globals[in.Intern(native.ErrStringName)] = value.Nil()

	return &VM{
		functions: functions,
		stack:     make([]value.Value, 0, 1<<15),
		frames:    make([]frame, 0, 1<<15),
		globals:   globals,
		in:        in,
		read:      read,
		print:     print,
		println:   println,
		trace:     trace,
	}
}

// Lookup satisfies value.Lookup / compiler.Lookup for disassembly and
// Display calls made from within this package.
func (vm *VM) Lookup(id interner.StrId) string { return vm.in.Lookup(id) }

func (vm *VM) curFrame() *frame { return &vm.frames[len(vm.frames)-1] }

func (vm *VM) curFunction() *compiler.Function {
	return vm.functions[vm.curFrame().functionIndex]
}

func (vm *VM) push(v value.Value) { vm.stack = append(vm.stack, v) }

func (vm *VM) pop() value.Value {
	v := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return v
}

func (vm *VM) peek(distance int) value.Value {
	return vm.stack[len(vm.stack)-1-distance]
}

func (vm *VM) readByte() byte {
	f := vm.curFrame()
	b := vm.curFunction().Chunk.Code[f.ip]
	f.ip++
	return b
}

func (vm *VM) readU16() uint16 {
	hi := vm.readByte()
	lo := vm.readByte()
	return uint16(hi)<<8 | uint16(lo)
}

func (vm *VM) readConstant() value.Value {
	return vm.curFunction().Chunk.Constants[vm.readByte()]
}

// readNameId reads a constant operand that must hold an interned
// identifier/string, as GET_GLOBAL/SET_GLOBAL/DEFINE_GLOBAL operands
// always do.
func (vm *VM) readNameId() interner.StrId {
	return vm.readConstant().AsStrId()
}

// Run executes the function table from the script's frame until the
// outermost RETURN, returning a *RuntimeError if execution hits a
// fatal error.
func (vm *VM) Run() error {
	vm.frames = append(vm.frames, frame{functionIndex: len(vm.functions) - 1})

	for {
		if vm.trace {
			compiler.DisassembleInstruction(os.Stderr, vm.curFunction().Chunk, vm.curFrame().ip, vm)
		}

		op := compiler.Opcode(vm.readByte())
		switch op {
		case compiler.OpConstant:
			vm.push(vm.readConstant())

		case compiler.OpNil:
			vm.push(value.Nil())
		case compiler.OpTrue:
			vm.push(value.Bool(true))
		case compiler.OpFalse:
			vm.push(value.Bool(false))

		case compiler.OpPop:
			vm.pop()

		case compiler.OpGetLocal:
			idx := vm.pop()
			slot := vm.readByte()
			base := vm.curFrame().stackBase
			result, err := vm.indexValue(vm.stack[base+int(slot)], idx)
			if err != nil {
				return vm.runtimeError(err.Error())
			}
			vm.push(result)

		case compiler.OpSetLocal:
			slot := vm.readByte()
			newVal := vm.pop()
			idx := vm.pop()
			vm.push(newVal)
			base := vm.curFrame().stackBase
			updated, err := vm.assignIndexed(vm.stack[base+int(slot)], idx, newVal)
			if err != nil {
				return vm.runtimeError(err.Error())
			}
			vm.stack[base+int(slot)] = updated

		case compiler.OpGetGlobal:
			name := vm.readNameId()
			idx := vm.pop()
			container, ok := vm.globals[name]
			if !ok {
				return vm.runtimeError("Undefined variable '%s'", vm.in.Lookup(name))
			}
			result, err := vm.indexValue(container, idx)
			if err != nil {
				return vm.runtimeError(err.Error())
			}
			vm.push(result)

		case compiler.OpSetGlobal:
			name := vm.readNameId()
			if _, ok := vm.globals[name]; !ok {
				return vm.runtimeError("Undefined variable '%s'", vm.in.Lookup(name))
			}
			newVal := vm.pop()
			idx := vm.pop()
			vm.push(newVal)
			updated, err := vm.assignIndexed(vm.globals[name], idx, newVal)
			if err != nil {
				return vm.runtimeError(err.Error())
			}
			vm.globals[name] = updated

		case compiler.OpDefineGlobal:
			name := vm.readNameId()
			vm.globals[name] = vm.pop()

		case compiler.OpDeclareArray:
			size := vm.pop()
			if size.Kind() != value.KindNumber {
				return vm.runtimeError("Array size must be a number, got %s", kindName(size))
			}
			n := size.AsNumber()
			if n < 0 || n != math.Trunc(n) {
				return vm.runtimeError("Array size must be a non-negative integer")
			}
			vm.push(value.FromArray(value.NewArray(int(n))))

		case compiler.OpEqual:
			b, a := vm.pop(), vm.pop()
			vm.push(value.Bool(a.Equal(b)))

		case compiler.OpGreater:
			b, a, err := vm.popNumbers()
			if err != nil {
				return vm.runtimeError(err.Error())
			}
			vm.push(value.Bool(a > b))

		case compiler.OpLess:
			b, a, err := vm.popNumbers()
			if err != nil {
				return vm.runtimeError(err.Error())
			}
			vm.push(value.Bool(a < b))

		case compiler.OpAdd:
			result, err := vm.add()
			if err != nil {
				return vm.runtimeError(err.Error())
			}
			vm.push(result)

		case compiler.OpSubtract:
			b, a, err := vm.popNumbers()
			if err != nil {
				return vm.runtimeError(err.Error())
			}
			vm.push(value.Number(a - b))

		case compiler.OpMultiply:
			b, a, err := vm.popNumbers()
			if err != nil {
				return vm.runtimeError(err.Error())
			}
			vm.push(value.Number(a * b))

		case compiler.OpDivide:
			b, a, err := vm.popNumbers()
			if err != nil {
				return vm.runtimeError(err.Error())
			}
			vm.push(value.Number(a / b))

		case compiler.OpModulo:
			b, a, err := vm.popNumbers()
			if err != nil {
				return vm.runtimeError(err.Error())
			}
			vm.push(value.Number(math.Mod(a, b)))

		case compiler.OpNegate:
			a := vm.pop()
			if a.Kind() != value.KindNumber {
				return vm.runtimeError("Operand must be a number")
			}
			vm.push(value.Number(-a.AsNumber()))

		case compiler.OpNot:
			a := vm.pop()
			vm.push(value.Bool(a.IsFalsey()))

		case compiler.OpPrint:
			vm.println(value.Display(vm.pop(), vm))

		case compiler.OpJump:
			offset := vm.readU16()
			vm.curFrame().ip += int(offset)

		case compiler.OpJumpIfFalse:
			offset := vm.readU16()
			if vm.peek(0).IsFalsey() {
				vm.curFrame().ip += int(offset)
			}

		case compiler.OpLoop:
			offset := vm.readU16()
			vm.curFrame().ip -= int(offset)

		case compiler.OpCall:
			argCount := int(vm.readByte())
			if err := vm.call(argCount); err != nil {
				return err
			}

		case compiler.OpReturn:
			result := vm.pop()
			returnLen := vm.curFrame().returnStackLen
			vm.frames = vm.frames[:len(vm.frames)-1]
			if len(vm.frames) == 0 {
				return nil
			}
			vm.stack = vm.stack[:returnLen]
			vm.push(result)

		default:
			return vm.runtimeError("unknown opcode %v", op)
		}
	}
}

// indexValue implements the Get half of the index-sentinel protocol:
// idx is Nil for a plain variable read, otherwise it must be a
// non-negative integer indexing container, which must be an Array.
func (vm *VM) indexValue(container, idx value.Value) (value.Value, error) {
	if idx.IsNil() {
		return container, nil
	}
	n, err := arrayIndex(idx)
	if err != nil {
		return value.Value{}, err
	}
	if container.Kind() != value.KindArray {
		return value.Value{}, fmt.Errorf("cannot index value of type %s", kindName(container))
	}
	return container.AsArray().Get(n)
}

// assignIndexed implements the Set half: if idx is Nil the slot's
// stored value is replaced outright; otherwise the existing array is
// mutated in place and the slot keeps its handle.
func (vm *VM) assignIndexed(container, idx, newVal value.Value) (value.Value, error) {
	if idx.IsNil() {
		return newVal, nil
	}
	n, err := arrayIndex(idx)
	if err != nil {
		return value.Value{}, err
	}
	if container.Kind() != value.KindArray {
		return value.Value{}, fmt.Errorf("cannot index value of type %s", kindName(container))
	}
	if err := container.AsArray().Set(n, newVal); err != nil {
		return value.Value{}, err
	}
	return container, nil
}

func arrayIndex(idx value.Value) (int, error) {
	if idx.Kind() != value.KindNumber {
		return 0, fmt.Errorf("array index must be a number, got %s", kindName(idx))
	}
	n := idx.AsNumber()
	if n < 0 || n != math.Trunc(n) {
		return 0, fmt.Errorf("array index must be a non-negative integer")
	}
	return int(n), nil
}

func (vm *VM) popNumbers() (b, a float64, err error) {
	bv, av := vm.pop(), vm.pop()
	if bv.Kind() != value.KindNumber || av.Kind() != value.KindNumber {
		return 0, 0, fmt.Errorf("operands must be numbers, but got %s and %s", kindName(av), kindName(bv))
	}
	return bv.AsNumber(), av.AsNumber(), nil
}

// add: numbers sum, strings concatenate, and a Number on either side
// of a Str concatenates using the number's default decimal form.
func (vm *VM) add() (value.Value, error) {
	b, a := vm.pop(), vm.pop()

	switch {
	case a.Kind() == value.KindNumber && b.Kind() == value.KindNumber:
		return value.Number(a.AsNumber() + b.AsNumber()), nil
	case isStringy(a) && isStringy(b):
		id := vm.in.Intern(value.Display(a, vm) + value.Display(b, vm))
		return value.Str(id), nil
	default:
		return value.Value{}, fmt.Errorf("operands must be numbers but got %s and %s", kindName(a), kindName(b))
	}
}

func isStringy(v value.Value) bool {
	return v.Kind() == value.KindStr || v.Kind() == value.KindNumber
}

func kindName(v value.Value) string {
	switch v.Kind() {
	case value.KindNil:
		return "nil"
	case value.KindBool:
		return "bool"
	case value.KindNumber:
		return "number"
	case value.KindStr, value.KindIdentifier:
		return "string"
	case value.KindArray:
		return "array"
	case value.KindFunction, value.KindNative:
		return "function"
	default:
		return "unknown"
	}
}

func (vm *VM) runtimeError(format string, args ...interface{}) *RuntimeError {
	msg := fmt.Sprintf(format, args...)
	traceback := make([]frameTrace, 0, len(vm.frames))
	for i := len(vm.frames) - 1; i >= 0; i-- {
		f := vm.frames[i]
		fn := vm.functions[f.functionIndex]
		name := "<script>"
		if fn.Name != nil {
			name = vm.in.Lookup(*fn.Name)
		}
		// ip has advanced past the failing instruction's operands;
		// ip-1 still lies inside it, so its line entry is the right one.
		traceback = append(traceback, frameTrace{Line: fn.Chunk.Line(f.ip - 1), Name: name})
	}
	return &RuntimeError{Message: msg, Traceback: traceback}
}
