// Package interner deduplicates identifier and string-literal bytes
// into compact, stable handles so the compiler and VM can compare
// strings by integer equality instead of byte comparison.
package interner

// StrId is an opaque handle into an Interner. Two StrIds compare equal
// if and only if they were interned from byte-identical strings.
type StrId uint32

// Interner is an append-only string arena plus a lookup map from
// string content to the StrId that was assigned to it. Once a string
// is interned its bytes are never moved or freed for the lifetime of
// the Interner, so a StrId and the string returned by Lookup remain
// valid for as long as the Interner itself is alive.
//
// Go's garbage collector already keeps the arena's backing strings
// alive for as long as anything references them (the map and the
// Interner itself), so there is no manual lifetime bookkeeping to do.
type Interner struct {
	ids     map[string]StrId
	strings []string
}

// New creates an empty Interner.
func New() *Interner {
	return &Interner{
		ids: make(map[string]StrId),
	}
}

// Intern returns the StrId for s, assigning a new one the first time s
// is seen. Intern(s1) == Intern(s2) iff s1 == s2 byte-for-byte, and the
// result is stable for the life of the Interner.
func (in *Interner) Intern(s string) StrId {
	if id, ok := in.ids[s]; ok {
		return id
	}
	id := StrId(len(in.strings))
	in.strings = append(in.strings, s)
	in.ids[s] = id
	return id
}

// Lookup returns the bytes originally interned under id. id must have
// been returned by a prior call to Intern on this Interner.
func (in *Interner) Lookup(id StrId) string {
	return in.strings[id]
}
