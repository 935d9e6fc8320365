// Package hashkit provides the stable 64-bit hashing primitives used to
// fingerprint Plans, Values, and Symbols: a fixed-seed accumulator over the
// canonical textual form of whatever is hashed, so that the same logical
// content always hashes the same way across runs and processes.
package hashkit

import (
	"github.com/cespare/xxhash/v2"

	"photesthesis/symbol"
	"photesthesis/value"
)

// Hasher accumulates bytes into a single 64-bit digest. It is not safe
// for concurrent use by multiple goroutines.
type Hasher struct {
	d *xxhash.Digest
}

// New returns a Hasher seeded deterministically; distinct Hashers built
// with New always start from the same state, so order of addition is the
// only thing that affects the final Sum.
func New() *Hasher {
	return &Hasher{d: xxhash.New()}
}

// AddBytes folds raw bytes into the digest.
func (h *Hasher) AddBytes(b []byte) {
	_, _ = h.d.Write(b)
}

// AddString folds a string into the digest.
func (h *Hasher) AddString(s string) {
	_, _ = h.d.WriteString(s)
}

// AddValue folds a Value's canonical textual form into the digest.
func (h *Hasher) AddValue(v value.Value) {
	h.AddString(v.Format())
}

// AddSymbol folds a Symbol's text into the digest.
func (h *Hasher) AddSymbol(s symbol.Symbol) {
	h.AddString(s.String())
}

// AddKeyValue folds a "name=value" pair into the digest, the shape every
// recorded Param and tracked/checked observation takes.
func (h *Hasher) AddKeyValue(k symbol.Symbol, v value.Value) {
	h.AddSymbol(k)
	h.AddString("=")
	h.AddValue(v)
}

// Sum returns the current 64-bit digest without resetting the Hasher.
func (h *Hasher) Sum() uint64 {
	return h.d.Sum64()
}

// SumString returns Sum64 of s directly, for one-shot hashing where an
// accumulator isn't needed.
func SumString(s string) uint64 {
	return xxhash.Sum64String(s)
}
