package phtest

import (
	"encoding/binary"

	"photesthesis/corpus"
	"photesthesis/hashkit"
	"photesthesis/value"
)

// hashSink is a thin wrapper over hashkit.Hasher adding the raw
// fixed-width integer folding the trajectory combiner needs (the
// original folds raw uint64 trajectory values by their in-memory
// bytes, not their textual form).
type hashSink struct {
	h *hashkit.Hasher
}

func newHashSink() *hashSink { return &hashSink{h: hashkit.New()} }

func (s *hashSink) addKeyValue(k corpus.VarName, v value.Value) { s.h.AddKeyValue(k, v) }

func (s *hashSink) addUint64(n uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], n)
	s.h.AddBytes(buf[:])
}

func (s *hashSink) sum() uint64 { return s.h.Sum() }
