package phtest

import "photesthesis/hashkit"

// counterBufSize is the width of the global edge-counter buffer. Go has
// no compiler hook equivalent to __sanitizer_cov_8bit_counters_init, so
// instead of instrumenting every branch automatically, a system under
// test opts into path-trajectory tracking by calling BumpEdge at the
// control-flow points it wants distinguished. A Test that never calls
// BumpEdge gets path trajectory 0 on every run, the same "not compiled
// with coverage" behavior the original library falls back to.
const counterBufSize = 1 << 16

var (
	pathCounters       [counterBufSize]byte
	pathCountersActive bool
)

// counterClasses is AFL's counter-simplification map: it buckets a raw
// per-edge hit count into a small number of classes so that "hit 47
// times" and "hit 61 times" land in the same bucket instead of
// spuriously producing distinct trajectories.
var counterClasses = func() [256]byte {
	var t [256]byte
	t[0], t[1], t[2], t[3] = 0, 1, 2, 4
	fill := func(lo, hi int, v byte) {
		for i := lo; i <= hi; i++ {
			t[i] = v
		}
	}
	fill(4, 7, 8)
	fill(8, 15, 16)
	fill(16, 31, 32)
	fill(32, 127, 64)
	fill(128, 255, 128)
	return t
}()

// BumpEdge increments the saturating counter for edgeID, folding
// edgeID into the fixed-size counter buffer. Call it from instrumented
// points in the system under test; the Administrator reads and resets
// the buffer around every plan it runs.
func BumpEdge(edgeID uint32) {
	idx := edgeID % counterBufSize
	if pathCounters[idx] != 0xff {
		pathCounters[idx]++
	}
	pathCountersActive = true
}

func resetPathCounters() {
	for i := range pathCounters {
		pathCounters[i] = 0
	}
	pathCountersActive = false
}

// finalizePathTrajectory buckets the counter buffer through
// counterClasses (masking out any edge mask marks as unstable) and
// hashes the result. If the buffer has not been touched since the last
// reset it returns 0 without hashing. mask is either nil (no masking yet)
// or counterBufSize bytes of 0xff/0x00 flags.
func finalizePathTrajectory(mask []byte) uint64 {
	if !pathCountersActive {
		return 0
	}
	if len(mask) == 0 {
		for i := range pathCounters {
			pathCounters[i] = counterClasses[pathCounters[i]]
		}
	} else {
		for i := range pathCounters {
			pathCounters[i] = counterClasses[pathCounters[i]] & mask[i]
		}
	}
	h := hashkit.New()
	h.AddBytes(pathCounters[:])
	return h.Sum()
}
