// Package native implements the fixed set of callable built-ins
// (clock, sleep, print, read*, to*, typeof, string/array ops, math,
// rand) the VM exposes as pre-bound globals. Every native here
// follows the same error contract: bad arguments never halt the VM,
// they set the reserved errString global to a descriptive interned
// message and return Nil.
package native

import (
	"math"
	"math/rand"
	"sort"
	"strconv"
	"time"

	"nilox/interner"
	"nilox/value"
)

// ErrStringName is the reserved global natives report failures
// through. The VM resets it to Nil before every native invocation.
const ErrStringName = "errString"

// Env bundles the state a native body needs beyond its arguments: the
// interner (to read/intern strings), the VM's globals (to set
// errString), and the host's synchronous output sinks — the Print
// native is the one built-in that writes output directly rather than
// through the PRINT opcode.
type Env struct {
	Interner *interner.Interner
	Globals  map[interner.StrId]value.Value
	Print    func(string)
	Println  func(string)
}

// Fail sets errString to message (interned) and returns Nil, the
// uniform native failure return.
func (e *Env) Fail(message string) value.Value {
	id := e.Interner.Intern(ErrStringName)
	e.Globals[id] = value.Str(e.Interner.Intern(message))
	return value.Nil()
}

// Callable is implemented by every native function. It satisfies
// value.Native (Name/Arity) plus the Call method the VM actually
// dispatches through.
type Callable interface {
	Name() string
	Arity() int
	Call(env *Env, args []value.Value) value.Value
}

// Registry returns every required native, keyed by its interned name,
// ready to be installed directly into the VM's globals map.
func Registry(in *interner.Interner) map[interner.StrId]value.Value {
	all := []Callable{
		clockNative{}, sleepNative{}, printNative{},
		readStringNative{}, readNumberNative{}, readBoolNative{},
		typeOfNative{}, toStringNative{}, toNumberNative{},
		stringAtNative{}, strLenNative{}, arrLenNative{},
		ceilNative{}, floorNative{}, absNative{},
		sortNative{}, indexOfNative{}, randNative{},
	}

	globals := make(map[interner.StrId]value.Value, len(all))
	for _, n := range all {
		id := in.Intern(n.Name())
		globals[id] = value.FromNative(n)
	}
	return globals
}

// --- Clock / Sleep / Print ------------------------------------------

type clockNative struct{}

func (clockNative) Name() string  { return "Clock" }
func (clockNative) Arity() int    { return 0 }
func (clockNative) Call(_ *Env, _ []value.Value) value.Value {
	return value.Number(float64(time.Now().UnixMilli()))
}

type sleepNative struct{}

func (sleepNative) Name() string { return "Sleep" }
func (sleepNative) Arity() int   { return 1 }
func (sleepNative) Call(env *Env, args []value.Value) value.Value {
	if args[0].Kind() != value.KindNumber {
		return env.Fail("Expected number as argument to Sleep")
	}
	time.Sleep(time.Duration(args[0].AsNumber()) * time.Millisecond)
	return value.Nil()
}

type printNative struct{}

func (printNative) Name() string { return "Print" }
func (printNative) Arity() int   { return 1 }
func (printNative) Call(env *Env, args []value.Value) value.Value {
	env.Println(value.Display(args[0], env.Interner))
	return value.Nil()
}

// --- Read* -------------------------------------------------------------
//
// The VM, not these bodies, performs the host's async read: it awaits
// the response and substitutes it as this native's sole argument
// before Call runs. These bodies only parse it.

type readStringNative struct{}

func (readStringNative) Name() string { return "ReadString" }
func (readStringNative) Arity() int   { return 1 }
func (readStringNative) Call(_ *Env, args []value.Value) value.Value {
	return args[0]
}

type readNumberNative struct{}

func (readNumberNative) Name() string { return "ReadNumber" }
func (readNumberNative) Arity() int   { return 1 }
func (readNumberNative) Call(env *Env, args []value.Value) value.Value {
	text := env.Interner.Lookup(args[0].AsStrId())
	n, err := parseFloat(text)
	if err != nil {
		return env.Fail("Failed to parse number")
	}
	return value.Number(n)
}

type readBoolNative struct{}

func (readBoolNative) Name() string { return "ReadBool" }
func (readBoolNative) Arity() int   { return 0 }
func (readBoolNative) Call(env *Env, args []value.Value) value.Value {
	switch env.Interner.Lookup(args[0].AsStrId()) {
	case "true":
		return value.Bool(true)
	case "false":
		return value.Bool(false)
	default:
		return env.Fail("Failed to parse boolean")
	}
}

// --- Conversions / introspection ----------------------------------------

type typeOfNative struct{}

func (typeOfNative) Name() string { return "TypeOf" }
func (typeOfNative) Arity() int   { return 1 }
func (typeOfNative) Call(env *Env, args []value.Value) value.Value {
	return value.Str(env.Interner.Intern(kindName(args[0].Kind())))
}

func kindName(k value.Kind) string {
	switch k {
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

type toStringNative struct{}

func (toStringNative) Name() string { return "ToString" }
func (toStringNative) Arity() int   { return 1 }
func (toStringNative) Call(env *Env, args []value.Value) value.Value {
	return value.Str(env.Interner.Intern(value.Display(args[0], env.Interner)))
}

type toNumberNative struct{}

func (toNumberNative) Name() string { return "ToNumber" }
func (toNumberNative) Arity() int   { return 1 }
func (toNumberNative) Call(env *Env, args []value.Value) value.Value {
	switch args[0].Kind() {
	case value.KindNumber:
		return args[0]
	case value.KindBool:
		if args[0].AsBool() {
			return value.Number(1)
		}
		return value.Number(0)
	case value.KindStr:
		n, err := parseFloat(env.Interner.Lookup(args[0].AsStrId()))
		if err != nil {
			return env.Fail("Failed to parse number")
		}
		return value.Number(n)
	default:
		return env.Fail("Failed to convert value to number")
	}
}

// --- String / array ops --------------------------------------------------

type stringAtNative struct{}

func (stringAtNative) Name() string { return "StringAt" }
func (stringAtNative) Arity() int   { return 2 }
func (stringAtNative) Call(env *Env, args []value.Value) value.Value {
	if args[0].Kind() != value.KindStr || args[1].Kind() != value.KindNumber {
		return env.Fail("Expected string and number as arguments to StringAt")
	}
	runes := []rune(env.Interner.Lookup(args[0].AsStrId()))
	index := int(args[1].AsNumber())
	if index < 0 || index >= len(runes) {
		return env.Fail("Index out of bounds")
	}
	return value.Str(env.Interner.Intern(string(runes[index])))
}

type strLenNative struct{}

func (strLenNative) Name() string { return "StrLen" }
func (strLenNative) Arity() int   { return 1 }
func (strLenNative) Call(env *Env, args []value.Value) value.Value {
	if args[0].Kind() != value.KindStr {
		return env.Fail("Expected string as argument to StrLen")
	}
	return value.Number(float64(len([]rune(env.Interner.Lookup(args[0].AsStrId())))))
}

type arrLenNative struct{}

func (arrLenNative) Name() string { return "ArrLen" }
func (arrLenNative) Arity() int   { return 1 }
func (arrLenNative) Call(env *Env, args []value.Value) value.Value {
	if args[0].Kind() != value.KindArray {
		return env.Fail("Expected array as argument to ArrLen")
	}
	return value.Number(float64(args[0].AsArray().Len()))
}

// --- Math ---------------------------------------------------------------

type ceilNative struct{}

func (ceilNative) Name() string { return "Ceil" }
func (ceilNative) Arity() int   { return 1 }
func (ceilNative) Call(env *Env, args []value.Value) value.Value {
	if args[0].Kind() != value.KindNumber {
		return env.Fail("Expected number as argument to Ceil")
	}
	return value.Number(math.Ceil(args[0].AsNumber()))
}

type floorNative struct{}

func (floorNative) Name() string { return "Floor" }
func (floorNative) Arity() int   { return 1 }
func (floorNative) Call(env *Env, args []value.Value) value.Value {
	if args[0].Kind() != value.KindNumber {
		return env.Fail("Expected number as argument to Floor")
	}
	return value.Number(math.Floor(args[0].AsNumber()))
}

type absNative struct{}

func (absNative) Name() string { return "Abs" }
func (absNative) Arity() int   { return 1 }
func (absNative) Call(env *Env, args []value.Value) value.Value {
	if args[0].Kind() != value.KindNumber {
		return env.Fail("Expected number as argument to Abs")
	}
	return value.Number(math.Abs(args[0].AsNumber()))
}

type sortNative struct{}

func (sortNative) Name() string { return "Sort" }
func (sortNative) Arity() int   { return 1 }
func (sortNative) Call(env *Env, args []value.Value) value.Value {
	if args[0].Kind() != value.KindArray {
		return env.Fail("Expected array as argument to Sort")
	}
	arr := args[0].AsArray()
	items := make([]float64, arr.Len())
	for i := range items {
		v, _ := arr.Get(i)
		if v.Kind() != value.KindNumber {
			return env.Fail("Sort requires every element to be a number")
		}
		items[i] = v.AsNumber()
	}
	sort.Float64s(items)
	for i, n := range items {
		_ = arr.Set(i, value.Number(n))
	}
	return value.Nil()
}

type indexOfNative struct{}

func (indexOfNative) Name() string { return "IndexOf" }
func (indexOfNative) Arity() int   { return 2 }
func (indexOfNative) Call(env *Env, args []value.Value) value.Value {
	if args[0].Kind() != value.KindArray {
		return env.Fail("Expected array as first argument to IndexOf")
	}
	arr := args[0].AsArray()
	for i := 0; i < arr.Len(); i++ {
		v, _ := arr.Get(i)
		if v.Equal(args[1]) {
			return value.Number(float64(i))
		}
	}
	return value.Number(float64(arr.Len()))
}

type randNative struct{}

func (randNative) Name() string { return "Rand" }
func (randNative) Arity() int   { return 0 }
func (randNative) Call(_ *Env, _ []value.Value) value.Value {
	return value.Number(rand.Float64())
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}
