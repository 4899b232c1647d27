package native

import (
	"testing"

	"github.com/stretchr/testify/require"

	"nilox/interner"
	"nilox/value"
)

func newEnv(in *interner.Interner) *Env {
	return &Env{
		Interner: in,
		Globals:  make(map[interner.StrId]value.Value),
		Print:    func(string) {},
		Println:  func(string) {},
	}
}

func TestRegistryInstallsEveryNative(t *testing.T) {
	in := interner.New()
	globals := Registry(in)

	names := []string{
		"Clock", "Sleep", "Print", "ReadString", "ReadNumber", "ReadBool",
		"TypeOf", "ToString", "ToNumber", "StringAt", "StrLen", "ArrLen",
		"Ceil", "Floor", "Abs", "Sort", "IndexOf", "Rand",
	}
	for _, name := range names {
		id := in.Intern(name)
		v, ok := globals[id]
		require.True(t, ok, "expected native %q to be registered", name)
		require.Equal(t, value.KindNative, v.Kind())
	}
}

func TestClockReturnsNumber(t *testing.T) {
	env := newEnv(interner.New())
	result := clockNative{}.Call(env, nil)
	require.Equal(t, value.KindNumber, result.Kind())
}

func TestSleepRejectsNonNumber(t *testing.T) {
	in := interner.New()
	env := newEnv(in)
	result := sleepNative{}.Call(env, []value.Value{value.Str(in.Intern("x"))})
	require.True(t, result.IsNil())
	errID := in.Intern(ErrStringName)
	require.False(t, env.Globals[errID].IsNil())
}

func TestToNumberConversions(t *testing.T) {
	in := interner.New()
	env := newEnv(in)

	n := toNumberNative{}.Call(env, []value.Value{value.Number(4)})
	require.True(t, n.Equal(value.Number(4)))

	b := toNumberNative{}.Call(env, []value.Value{value.Bool(true)})
	require.True(t, b.Equal(value.Number(1)))

	s := toNumberNative{}.Call(env, []value.Value{value.Str(in.Intern("3.5"))})
	require.True(t, s.Equal(value.Number(3.5)))

	bad := toNumberNative{}.Call(env, []value.Value{value.Str(in.Intern("nope"))})
	require.True(t, bad.IsNil())
	errID := in.Intern(ErrStringName)
	require.False(t, env.Globals[errID].IsNil())
}

func TestStringAtBoundsChecked(t *testing.T) {
	in := interner.New()
	env := newEnv(in)
	s := value.Str(in.Intern("abc"))

	ok := stringAtNative{}.Call(env, []value.Value{s, value.Number(1)})
	require.Equal(t, "b", in.Lookup(ok.AsStrId()))

	bad := stringAtNative{}.Call(env, []value.Value{s, value.Number(10)})
	require.True(t, bad.IsNil())
}

func TestArrLenAndIndexOf(t *testing.T) {
	in := interner.New()
	env := newEnv(in)

	arr := value.NewArray(3)
	_ = arr.Set(0, value.Number(10))
	_ = arr.Set(1, value.Number(20))
	_ = arr.Set(2, value.Number(30))
	av := value.FromArray(arr)

	length := arrLenNative{}.Call(env, []value.Value{av})
	require.True(t, length.Equal(value.Number(3)))

	found := indexOfNative{}.Call(env, []value.Value{av, value.Number(20)})
	require.True(t, found.Equal(value.Number(1)))

	notFound := indexOfNative{}.Call(env, []value.Value{av, value.Number(99)})
	require.True(t, notFound.Equal(value.Number(3)))
}

func TestSortMutatesInPlaceAscending(t *testing.T) {
	in := interner.New()
	env := newEnv(in)

	arr := value.NewArray(3)
	_ = arr.Set(0, value.Number(3))
	_ = arr.Set(1, value.Number(1))
	_ = arr.Set(2, value.Number(2))

	result := sortNative{}.Call(env, []value.Value{value.FromArray(arr)})
	require.True(t, result.IsNil())

	for i, want := range []float64{1, 2, 3} {
		got, err := arr.Get(i)
		require.NoError(t, err)
		require.True(t, got.Equal(value.Number(want)))
	}
}

func TestSortRejectsNonNumericElements(t *testing.T) {
	in := interner.New()
	env := newEnv(in)

	arr := value.NewArray(1)
	_ = arr.Set(0, value.Str(in.Intern("x")))

	result := sortNative{}.Call(env, []value.Value{value.FromArray(arr)})
	require.True(t, result.IsNil())
	errID := in.Intern(ErrStringName)
	require.False(t, env.Globals[errID].IsNil())
}

func TestReadBoolParsesHostResponse(t *testing.T) {
	in := interner.New()
	env := newEnv(in)

	ok := readBoolNative{}.Call(env, []value.Value{value.Str(in.Intern("true"))})
	require.True(t, ok.Equal(value.Bool(true)))

	bad := readBoolNative{}.Call(env, []value.Value{value.Str(in.Intern("maybe"))})
	require.True(t, bad.IsNil())
}
