package value

import "photesthesis/symbol"

// Target is one element of a Match call: either an assign-on-match slot
// (IntoX) or an assign-then-require-equal slot (WantX), generalizing the
// two match() overload shapes the C++ matcher provides per argument.
type Target struct {
	apply func(v Value) bool
}

// IntoValue assigns the matched Value itself, always succeeding.
func IntoValue(out *Value) Target {
	return Target{apply: func(v Value) bool { *out = v; return true }}
}

// IntoSym assigns the Sym payload if v is a Sym.
func IntoSym(out *symbol.Symbol) Target {
	return Target{apply: func(v Value) bool {
		s, ok := v.AsSym()
		if !ok {
			return false
		}
		*out = s
		return true
	}}
}

// IntoBool assigns the Bool payload if v is a Bool.
func IntoBool(out *bool) Target {
	return Target{apply: func(v Value) bool {
		b, ok := v.AsBool()
		if !ok {
			return false
		}
		*out = b
		return true
	}}
}

// IntoInt64 assigns the Int64 payload if v is an Int64.
func IntoInt64(out *int64) Target {
	return Target{apply: func(v Value) bool {
		i, ok := v.AsInt64()
		if !ok {
			return false
		}
		*out = i
		return true
	}}
}

// IntoBlob assigns the Blob payload if v is a Blob.
func IntoBlob(out *[]byte) Target {
	return Target{apply: func(v Value) bool {
		b, ok := v.AsBlob()
		if !ok {
			return false
		}
		*out = b
		return true
	}}
}

// IntoStr assigns the Str payload if v is a Str.
func IntoStr(out *string) Target {
	return Target{apply: func(v Value) bool {
		s, ok := v.AsStr()
		if !ok {
			return false
		}
		*out = s
		return true
	}}
}

// Any matches a value unconditionally without capturing it.
func Any() Target {
	return Target{apply: func(Value) bool { return true }}
}

// WantSym requires the matched value to be a Sym equal to want.
func WantSym(want symbol.Symbol) Target {
	return Target{apply: func(v Value) bool {
		s, ok := v.AsSym()
		return ok && s.Equal(want)
	}}
}

// WantBool requires the matched value to be a Bool equal to want.
func WantBool(want bool) Target {
	return Target{apply: func(v Value) bool {
		b, ok := v.AsBool()
		return ok && b == want
	}}
}

// WantInt64 requires the matched value to be an Int64 equal to want.
func WantInt64(want int64) Target {
	return Target{apply: func(v Value) bool {
		i, ok := v.AsInt64()
		return ok && i == want
	}}
}

// WantBlob requires the matched value to be a Blob equal to want.
func WantBlob(want []byte) Target {
	return Target{apply: func(v Value) bool {
		b, ok := v.AsBlob()
		return ok && string(b) == string(want)
	}}
}

// WantStr requires the matched value to be a Str equal to want.
func WantStr(want string) Target {
	return Target{apply: func(v Value) bool {
		s, ok := v.AsStr()
		return ok && s == want
	}}
}

// WantValue requires the matched value to be structurally equal to want.
func WantValue(want Value) Target {
	return Target{apply: func(v Value) bool { return v.Equal(want) }}
}

// Match generalizes the variadic C++ matcher: zero targets always
// succeed; one target matches v itself; two or more targets require v to
// be a Pair and match positionally down the chain. Two permissive rules
// carry over from the original matcher: a list shorter than the target
// count vacuously satisfies the remaining targets, and a list longer
// than the target count has its excess trailing elements ignored.
func (v Value) Match(targets ...Target) bool {
	switch len(targets) {
	case 0:
		return true
	case 1:
		return targets[0].apply(v)
	default:
		if v.kind != KindPair {
			return false
		}
		return matchPairChain(v, targets)
	}
}

// matchPairChain matches targets against successive elements of the pair
// chain v, which the caller guarantees is a Pair.
func matchPairChain(v Value, targets []Target) bool {
	if !targets[0].apply(v.Head()) {
		return false
	}
	if len(targets) == 1 {
		return true
	}
	tail := v.Tail()
	if tail.kind != KindPair {
		return true
	}
	return matchPairChain(tail, targets[1:])
}
