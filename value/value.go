// Package value implements the s-expression-like recursive value algebra
// that grammars generate and transcripts record: Nil, Pair, Sym, Bool,
// Int64, Blob, and Str, each comparable, orderable, and round-trippable
// through a canonical textual form.
package value

import (
	"fmt"
	"strings"

	"photesthesis/symbol"
)

// Kind identifies the dynamic type carried by a Value.
type Kind int

const (
	KindNil Kind = iota
	KindPair
	KindSym
	KindBool
	KindInt64
	KindBlob
	KindStr
)

func (k Kind) String() string {
	switch k {
	case KindNil:
		return "Nil"
	case KindPair:
		return "Pair"
	case KindSym:
		return "Sym"
	case KindBool:
		return "Bool"
	case KindInt64:
		return "Int64"
	case KindBlob:
		return "Blob"
	case KindStr:
		return "Str"
	default:
		return "Unknown"
	}
}

// Value is an immutable, dynamically-typed node. The zero Value is Nil.
type Value struct {
	kind  Kind
	sym   symbol.Symbol
	b     bool
	i     int64
	blob  []byte
	str   string
	head  *Value
	tail  *Value // nil means Nil tail; non-nil is always a Pair
	plen  int    // pair chain length, only meaningful when kind == KindPair
}

// Nil is the empty list / unit value.
var Nil = Value{kind: KindNil}

// Sym constructs a Sym-valued Value.
func Sym(s symbol.Symbol) Value { return Value{kind: KindSym, sym: s} }

// Bool constructs a Bool-valued Value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int64 constructs an Int64-valued Value.
func Int64(i int64) Value { return Value{kind: KindInt64, i: i} }

// Blob constructs a Blob-valued Value. The byte slice is copied.
func Blob(b []byte) Value {
	cp := make([]byte, len(b))
	copy(cp, b)
	return Value{kind: KindBlob, blob: cp}
}

// Str constructs a Str-valued Value.
func Str(s string) Value { return Value{kind: KindStr, str: s} }

// Cons builds a Pair with the given head and tail. tail must be Nil or a
// Pair; any other kind panics, matching the original library's invariant
// that list tails are always PairValue-or-null.
func Cons(head, tail Value) Value {
	if tail.kind != KindNil && tail.kind != KindPair {
		panic("value: Cons tail must be Nil or Pair")
	}
	v := Value{kind: KindPair, head: &head}
	if tail.kind == KindPair {
		t := tail
		v.tail = &t
		v.plen = 1 + tail.plen
	} else {
		v.plen = 1
	}
	return v
}

// List builds a proper list from vs, equivalent to repeated Cons from the
// back, mirroring the original's std::vector<Value> constructor.
func List(vs ...Value) Value {
	result := Nil
	for i := len(vs) - 1; i >= 0; i-- {
		result = Cons(vs[i], result)
	}
	return result
}

// Kind reports the dynamic type.
func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNil() bool   { return v.kind == KindNil }
func (v Value) IsPair() bool  { return v.kind == KindPair }
func (v Value) IsSym() bool   { return v.kind == KindSym }
func (v Value) IsBool() bool  { return v.kind == KindBool }
func (v Value) IsInt64() bool { return v.kind == KindInt64 }
func (v Value) IsBlob() bool  { return v.kind == KindBlob }
func (v Value) IsStr() bool   { return v.kind == KindStr }

// Head returns the head of a Pair. Panics if v is not a Pair.
func (v Value) Head() Value {
	if v.kind != KindPair {
		panic("value: Head of non-Pair")
	}
	return *v.head
}

// Tail returns the tail of a Pair (Nil or a Pair). Panics if v is not a Pair.
func (v Value) Tail() Value {
	if v.kind != KindPair {
		panic("value: Tail of non-Pair")
	}
	if v.tail == nil {
		return Nil
	}
	return *v.tail
}

// Len returns the number of elements in a Pair chain, or 0 for Nil.
// Panics for any other kind.
func (v Value) Len() int {
	switch v.kind {
	case KindNil:
		return 0
	case KindPair:
		return v.plen
	default:
		panic("value: Len of non-list")
	}
}

// Elements returns the proper-list elements of v as a slice. Panics if v
// is not Nil or a Pair.
func (v Value) Elements() []Value {
	out := make([]Value, 0, v.Len())
	for cur := v; cur.kind == KindPair; cur = cur.Tail() {
		out = append(out, cur.Head())
	}
	return out
}

// AsSym, AsBool, AsInt64, AsBlob, AsStr return the wrapped value and true
// if v has the matching kind.
func (v Value) AsSym() (symbol.Symbol, bool) {
	if v.kind != KindSym {
		return symbol.Symbol{}, false
	}
	return v.sym, true
}
func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}
func (v Value) AsInt64() (int64, bool) {
	if v.kind != KindInt64 {
		return 0, false
	}
	return v.i, true
}
func (v Value) AsBlob() ([]byte, bool) {
	if v.kind != KindBlob {
		return nil, false
	}
	return v.blob, true
}
func (v Value) AsStr() (string, bool) {
	if v.kind != KindStr {
		return "", false
	}
	return v.str, true
}

// Equal implements structural equality.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNil:
		return true
	case KindPair:
		a, b := v, other
		for a.kind == KindPair && b.kind == KindPair {
			if !a.Head().Equal(b.Head()) {
				return false
			}
			a, b = a.Tail(), b.Tail()
		}
		return a.kind == KindNil && b.kind == KindNil
	case KindSym:
		return v.sym.Equal(other.sym)
	case KindBool:
		return v.b == other.b
	case KindInt64:
		return v.i == other.i
	case KindBlob:
		return string(v.blob) == string(other.blob)
	case KindStr:
		return v.str == other.str
	default:
		return false
	}
}

// Less implements a strict total order across all kinds: values of
// different kinds order by Kind first, matching values of the same kind
// order by structure/content.
func (v Value) Less(other Value) bool {
	if v.kind != other.kind {
		return v.kind < other.kind
	}
	switch v.kind {
	case KindNil:
		return false
	case KindPair:
		if v.plen != other.plen {
			return v.plen < other.plen
		}
		a, b := v, other
		for a.kind == KindPair && b.kind == KindPair {
			if a.Head().Less(b.Head()) {
				return true
			}
			if b.Head().Less(a.Head()) {
				return false
			}
			a, b = a.Tail(), b.Tail()
		}
		return a.kind == KindNil && b.kind == KindPair
	case KindSym:
		return v.sym.Less(other.sym)
	case KindBool:
		return !v.b && other.b
	case KindInt64:
		return v.i < other.i
	case KindBlob:
		return string(v.blob) < string(other.blob)
	case KindStr:
		return v.str < other.str
	default:
		return false
	}
}

// Format renders v in the canonical textual form (§4.1): #nil, #t/#f,
// decimal Int64, bare Sym text, "quoted" Str with \" and \\ escapes,
// [0xHH 0xHH ...] Blob, and (v1 v2 ...) Pair chains.
func (v Value) Format() string {
	var sb strings.Builder
	v.format(&sb)
	return sb.String()
}

func (v Value) String() string { return v.Format() }

func (v Value) format(sb *strings.Builder) {
	switch v.kind {
	case KindNil:
		sb.WriteString("#nil")
	case KindBool:
		if v.b {
			sb.WriteString("#t")
		} else {
			sb.WriteString("#f")
		}
	case KindInt64:
		fmt.Fprintf(sb, "%d", v.i)
	case KindSym:
		sb.WriteString(v.sym.String())
	case KindStr:
		sb.WriteByte('"')
		for i := 0; i < len(v.str); i++ {
			c := v.str[i]
			if c == '"' || c == '\\' {
				sb.WriteByte('\\')
			}
			sb.WriteByte(c)
		}
		sb.WriteByte('"')
	case KindBlob:
		sb.WriteByte('[')
		for i, by := range v.blob {
			if i > 0 {
				sb.WriteByte(' ')
			}
			fmt.Fprintf(sb, "0x%02x", by)
		}
		sb.WriteByte(']')
	case KindPair:
		sb.WriteByte('(')
		sb.WriteString(v.Head().Format())
		for cur := v.Tail(); cur.kind == KindPair; cur = cur.Tail() {
			sb.WriteByte(' ')
			sb.WriteString(cur.Head().Format())
		}
		sb.WriteByte(')')
	}
}
