package phtest

import (
	"os"
	"strconv"
)

// getEnvUint64 reads name as an unsigned integer, accepting the same
// "0x"/"0"/decimal forms as C's strtoull with base 0. A missing or
// unparsable variable reports ok == false and leaves the caller's
// default untouched.
func getEnvUint64(name string) (uint64, bool) {
	s, ok := os.LookupEnv(name)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envExpansionSteps() (uint64, bool)   { return getEnvUint64("PHOTESTHESIS_EXPANSION_STEPS") }
func envKPathLength() (uint64, bool)      { return getEnvUint64("PHOTESTHESIS_KPATH_LENGTH") }
func envRandomDepth() (uint64, bool)      { return getEnvUint64("PHOTESTHESIS_RANDOM_DEPTH") }
func envVerbose() (uint64, bool)          { return getEnvUint64("PHOTESTHESIS_VERBOSE") }
func envTestHash() (uint64, bool)         { return getEnvUint64("PHOTESTHESIS_TEST_HASH") }
func envRandomSeed() (uint64, bool)       { return getEnvUint64("PHOTESTHESIS_RANDOM_SEED") }
func envStabilityRetries() (uint64, bool) { return getEnvUint64("PHOTESTHESIS_STABILITY_RETRIES") }
