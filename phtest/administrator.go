// Package phtest implements the test administrator: the loop that
// drives a grammar-generated corpus of Plans through a system under
// test, observes what it does via a small trace/check/track API, and
// grows or re-checks the corpus accordingly.
package phtest

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"math/rand"
	"os"
	"sort"

	"photesthesis/corpus"
	"photesthesis/grammar"
	"photesthesis/value"
)

// Test is implemented by whatever a caller wants administered: Run is
// invoked once per Plan, and observes the system under test through the
// Administrator passed to it (GetParam, Invariant, Trace, Check, Track).
type Test interface {
	Run(a *Administrator)
}

// InvariantFailureHandler lets a Test override the default printed
// report of a failed Invariant call.
type InvariantFailureHandler interface {
	HandleInvariantFailure(plan corpus.Plan, varname corpus.VarName, expected, got value.Value)
}

// TranscriptMismatchHandler lets a Test override the default printed
// report of a transcript that no longer matches what was recorded.
type TranscriptMismatchHandler interface {
	HandleTranscriptMismatch(expected, got corpus.Transcript)
}

// Failures is the set of plan hashes whose run failed an Invariant or
// produced a mismatched transcript during one Administer call.
type Failures []corpus.PlanHash

// trajectoryMap maps each trajectory seen to a transcript that produced
// it. Random selection among them goes through sortedTrajectoryKeys, so it
// is reproducible given a seeded PRNG.
type trajectoryMap map[corpus.Trajectory]corpus.Transcript

// Administrator drives one named test's corpus against a grammar: it is
// the stateful engine a Test observes itself through while running.
type Administrator struct {
	gram      *grammar.Grammar
	corp      *corpus.Corpus
	testName  corpus.TestName
	seedSpecs []corpus.ParamSpecs
	test      Test

	rnd          *rand.Rand
	failed       bool
	verboseLevel uint64
	out          io.Writer

	userTrajHasher *hashSink
	userTrajectory corpus.Trajectory
	pathTrajectory corpus.Trajectory
	trajectory     corpus.Trajectory
	transcript     corpus.Transcript

	stabilityMask []byte
}

// New builds an Administrator for testName, backed by gram and corp,
// with seedSpecs as the parameter environments used for initial k-path
// corpus generation and as fallback seeds for random corpus expansion.
// It is seeded with 0 and prints to os.Stdout until told otherwise.
func New(gram *grammar.Grammar, corp *corpus.Corpus, testName corpus.TestName, seedSpecs []corpus.ParamSpecs, test Test) *Administrator {
	a := &Administrator{
		gram:      gram,
		corp:      corp,
		testName:  testName,
		seedSpecs: seedSpecs,
		test:      test,
		rnd:       rand.New(rand.NewSource(0)),
		out:       os.Stdout,
	}
	if v, ok := envVerbose(); ok {
		a.verboseLevel = v
	}
	return a
}

// SetOutput redirects diagnostic printing, which is otherwise written
// to os.Stdout.
func (a *Administrator) SetOutput(w io.Writer) { a.out = w }

// SeedFromRandomDevice seeds the PRNG used for random plan generation
// from the operating system's randomness source.
func (a *Administrator) SeedFromRandomDevice() {
	var buf [8]byte
	if _, err := cryptorand.Read(buf[:]); err != nil {
		return
	}
	a.rnd = rand.New(rand.NewSource(int64(binary.LittleEndian.Uint64(buf[:]))))
}

// SeedWithValue seeds the PRNG used for random plan generation with a
// specific value, for reproducible runs.
func (a *Administrator) SeedWithValue(seed uint64) {
	a.rnd = rand.New(rand.NewSource(int64(seed)))
}

// GetParam returns the value bound to p in the plan currently running.
// Calling it for a name the plan doesn't bind is a programming error.
func (a *Administrator) GetParam(p corpus.ParamName) value.Value {
	v, ok := a.transcript.Plan.Params.Get(p)
	if !ok {
		panic(fmt.Sprintf("phtest: plan for %s has no param %q", a.testName.String(), p.String()))
	}
	return v
}

// Invariant records that got was expected to equal expected. A mismatch
// fails the current plan and calls HandleInvariantFailure (the Test's
// own, if it implements InvariantFailureHandler, otherwise the default
// printer). Invariant values are neither traced nor checked: they play
// no role in trajectories or transcripts.
func (a *Administrator) Invariant(vn corpus.VarName, expected, got value.Value) {
	if expected.Equal(got) {
		return
	}
	a.failed = true
	if h, ok := a.test.(InvariantFailureHandler); ok {
		h.HandleInvariantFailure(a.transcript.Plan, vn, expected, got)
	} else {
		a.defaultHandleInvariantFailure(a.transcript.Plan, vn, expected, got)
	}
}

// Trace folds seen into the current plan's user trajectory, without
// recording it to the transcript. Mnemonic: TRAced values contribute to
// TRAjectories.
func (a *Administrator) Trace(vn corpus.VarName, seen value.Value) {
	a.userTrajHasher.addKeyValue(vn, seen)
}

// Check records seen to the transcript (to later verify it stays the
// same across runs of this plan) without tracing it. Mnemonic: checks
// can fail, and failures are reported.
func (a *Administrator) Check(vn corpus.VarName, seen value.Value) {
	a.transcript.AddChecked(vn, seen)
}

// Track both traces and records seen to the transcript. Mnemonic: TRACK
// = TRAce + cheCK.
func (a *Administrator) Track(vn corpus.VarName, seen value.Value) {
	a.Trace(vn, seen)
	a.transcript.AddTracked(vn, seen)
}

func (a *Administrator) initTrajectory() {
	resetPathCounters()
	a.userTrajHasher = newHashSink()
	a.userTrajectory = 0
	a.pathTrajectory = 0
}

func (a *Administrator) finiTrajectory() {
	a.pathTrajectory = finalizePathTrajectory(a.stabilityMask)
	a.userTrajectory = a.userTrajHasher.sum()
	h := newHashSink()
	h.addUint64(a.pathTrajectory)
	h.addUint64(a.userTrajectory)
	a.trajectory = h.sum()
}

func (a *Administrator) runPlan(plan corpus.Plan) {
	a.failed = false
	a.transcript = corpus.NewTranscript(plan)
	a.initTrajectory()
	a.test.Run(a)
	a.finiTrajectory()
	if a.verboseLevel > 1 {
		fmt.Fprintln(a.out, "ran plan:")
		fmt.Fprint(a.out, plan.Format())
		fmt.Fprintf(a.out, "with trajectory: %d\n", a.trajectory)
	}
}

// runPlanAndStabilize runs plan twice and requires the two runs to agree
// on trajectory. A differing user trajectory is always a hard error (it
// means the test's own trace/track calls are nondeterministic). A
// differing path trajectory is tolerated only by actively masking out
// the unstable edges, an opt-in behavior gated by
// PHOTESTHESIS_STABILITY_RETRIES (0, the default, disables it and any
// path instability is immediately an error).
func (a *Administrator) runPlanAndStabilize(plan corpus.Plan) error {
	a.runPlan(plan)
	savedUser := a.userTrajectory
	savedPath := a.pathTrajectory
	a.runPlan(plan)
	if a.userTrajectory != savedUser {
		return &InstabilityError{Msg: "user-provided (trace/track) trajectory is unstable"}
	}
	if a.pathTrajectory == savedPath {
		return nil
	}

	if a.verboseLevel > 0 {
		fmt.Fprintf(a.out, "path trajectory is unstable on plan 0x%x, attempting to stabilize\n", plan.HashCode())
	}
	if len(a.stabilityMask) == 0 {
		a.stabilityMask = make([]byte, counterBufSize)
		for i := range a.stabilityMask {
			a.stabilityMask[i] = 0xff
		}
	}

	retries, _ := envStabilityRetries()
	for attempts := uint64(0); attempts < retries; attempts++ {
		for {
			savedBuf := append([]byte(nil), pathCounters[:]...)
			a.runPlan(plan)
			nNewMasked, nMasked := 0, 0
			for i := range pathCounters {
				if a.stabilityMask[i] != 0 {
					if savedBuf[i] != pathCounters[i] {
						nNewMasked++
						a.stabilityMask[i] = 0
					}
				} else {
					nMasked++
				}
			}
			if a.verboseLevel > 0 {
				fmt.Fprintf(a.out, "masked %d path-edges as unstable, total unstable edges: %d/%d\n", nNewMasked, nMasked, counterBufSize)
			}
			if nNewMasked == 0 {
				break
			}
		}
		savedPath = a.pathTrajectory
		a.runPlan(plan)
		if savedPath == a.pathTrajectory {
			return nil
		}
	}
	return &InstabilityError{Msg: "unable to stabilize path trajectory, try raising PHOTESTHESIS_STABILITY_RETRIES"}
}

func (a *Administrator) runPlanAndMaybeExpandCorpus(plan corpus.Plan, trajectories trajectoryMap) (bool, error) {
	tname := plan.TestName
	if err := a.runPlanAndStabilize(plan); err != nil {
		return false, err
	}
	if _, seen := trajectories[a.trajectory]; seen {
		return false, nil
	}
	novel := true
	for _, existing := range a.corp.Transcripts(tname) {
		if existing.Equal(a.transcript) {
			novel = false
			break
		}
	}
	if !novel {
		return false, nil
	}
	if a.verboseLevel > 1 {
		fmt.Fprintln(a.out, "novel trajectory found:")
		fmt.Fprint(a.out, a.transcript.Format())
	}
	trajectories[a.trajectory] = a.transcript
	a.corp.UpdateTranscript(a.transcript)
	return true, nil
}

func (a *Administrator) reportFailures(failures Failures) {
	if a.verboseLevel == 0 || len(failures) == 0 {
		return
	}
	fmt.Fprint(a.out, "failing test hashes: ")
	for i, f := range failures {
		if i > 0 {
			fmt.Fprint(a.out, ", ")
		}
		fmt.Fprintf(a.out, "%x", f)
	}
	fmt.Fprintln(a.out)
}

func (a *Administrator) initializeCorpusFromKPaths(kPathLength uint64) (Failures, error) {
	tname := a.testName
	trajectories := trajectoryMap{}
	var failures Failures
	if a.verboseLevel > 0 {
		fmt.Fprintf(a.out, "generating initial %d-paths for test: %s\n", kPathLength, tname.String())
	}
	nPlans := 0
	for _, spec := range a.seedSpecs {
		for k := 2; uint64(k) < kPathLength; k++ {
			plans, err := a.gram.PopulatePlansFromKPathCoverings(tname, spec, k)
			if err != nil {
				return nil, err
			}
			if a.verboseLevel > 0 {
				fmt.Fprintf(a.out, "running %d test-plans for spec with %d parameters\n", len(plans), len(spec))
			}
			for _, plan := range plans {
				nPlans++
				if _, err := a.runPlanAndMaybeExpandCorpus(plan, trajectories); err != nil {
					return nil, err
				}
				if a.failed {
					failures = append(failures, plan.HashCode())
				}
			}
		}
	}
	if a.verboseLevel > 0 {
		fmt.Fprintf(a.out, "generated %d initial plans with %d trajectories for test: %s\n", nPlans, len(trajectories), tname.String())
		a.reportFailures(failures)
	}
	return failures, nil
}

func (a *Administrator) checkCorpus(trajectories trajectoryMap) (Failures, error) {
	tname := a.testName
	transcripts := append([]corpus.Transcript(nil), a.corp.Transcripts(tname)...)
	if len(transcripts) == 0 {
		return nil, nil
	}
	var failures Failures
	if a.verboseLevel > 0 {
		fmt.Fprintf(a.out, "checking %d transcripts for test %s\n", len(transcripts), tname.String())
	}
	specificHash, limitToHash := envTestHash()
	for _, ts := range transcripts {
		if limitToHash && ts.Plan.HashCode() != specificHash {
			continue
		}
		if err := a.checkTranscript(ts); err != nil {
			return nil, err
		}
		if a.failed || !a.transcript.Equal(ts) {
			failures = append(failures, ts.Plan.HashCode())
		}
		trajectories[a.trajectory] = a.transcript
	}
	if a.verboseLevel > 0 {
		fmt.Fprintf(a.out, "found %d trajectories from %d transcripts for test %s\n", len(trajectories), len(transcripts), tname.String())
		a.reportFailures(failures)
	}
	return failures, nil
}

func (a *Administrator) checkTranscript(ts corpus.Transcript) error {
	if err := a.runPlanAndStabilize(ts.Plan); err != nil {
		return err
	}
	if ts.Equal(a.transcript) {
		return nil
	}
	if h, ok := a.test.(TranscriptMismatchHandler); ok {
		h.HandleTranscriptMismatch(ts, a.transcript)
	} else {
		a.defaultHandleTranscriptMismatch(ts, a.transcript)
	}
	a.corp.UpdateTranscript(a.transcript)
	return nil
}

func (a *Administrator) sortedTrajectoryKeys(trajectories trajectoryMap) []corpus.Trajectory {
	keys := make([]corpus.Trajectory, 0, len(trajectories))
	for k := range trajectories {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func (a *Administrator) randomlyExpandCorpus(trajectories trajectoryMap, steps, depth uint64) (Failures, error) {
	if steps == 0 {
		return nil, nil
	}
	tname := a.testName
	var failures Failures
	newTrajs := 0
	if a.verboseLevel > 0 {
		fmt.Fprintf(a.out, "expanding corpus for test: %s\n", tname.String())
	}
	for i := uint64(0); i < steps; i++ {
		var spec corpus.ParamSpecs
		if len(trajectories) == 0 {
			if len(a.seedSpecs) == 0 {
				return nil, fmt.Errorf("phtest: no seed specs available to expand test %s", tname.String())
			}
			spec = a.seedSpecs[a.rnd.Intn(len(a.seedSpecs))]
		} else {
			keys := a.sortedTrajectoryKeys(trajectories)
			picked := trajectories[keys[a.rnd.Intn(len(keys))]]
			derived, err := picked.Plan.Params.ParamSpecs()
			if err != nil {
				return nil, err
			}
			spec = derived
		}
		plan, err := a.gram.RandomlyPopulatePlan(tname, spec, a.rnd, int(depth))
		if err != nil {
			return nil, err
		}
		expanded, err := a.runPlanAndMaybeExpandCorpus(plan, trajectories)
		if err != nil {
			return nil, err
		}
		if expanded {
			newTrajs++
		}
		if a.failed {
			failures = append(failures, plan.HashCode())
		}
	}
	if a.verboseLevel > 0 {
		fmt.Fprintf(a.out, "explored %d random inputs at depth %d, expanded corpus by %d to %d distinct trajectories\n",
			steps, depth, newTrajs, len(a.corp.Transcripts(tname)))
		a.reportFailures(failures)
	}
	return failures, nil
}

// Administer is the test entrypoint: it checks and/or grows the corpus
// for this Administrator's test. If the corpus has no transcripts yet,
// it seeds one via k-path coverage (up to kPathLength). Otherwise it
// re-checks every existing transcript, and -- if every check passed and
// expansionSteps is nonzero -- explores expansionSteps further random
// plans at randomDepth looking for novel trajectories. Every argument
// can be overridden by its matching PHOTESTHESIS_* environment variable.
// Callers that want a failed run to be a hard test failure should assert
// the returned Failures is empty.
func (a *Administrator) Administer(expansionSteps, kPathLength, randomDepth uint64) (Failures, error) {
	if v, ok := envExpansionSteps(); ok {
		expansionSteps = v
	}
	if v, ok := envKPathLength(); ok {
		kPathLength = v
	}
	if v, ok := envRandomDepth(); ok {
		randomDepth = v
	}
	if seed, ok := envRandomSeed(); ok {
		a.SeedWithValue(seed)
	}

	tname := a.testName
	if len(a.corp.Transcripts(tname)) == 0 {
		return a.initializeCorpusFromKPaths(kPathLength)
	}
	trajectories := trajectoryMap{}
	failures, err := a.checkCorpus(trajectories)
	if err != nil {
		return nil, err
	}
	if len(failures) > 0 {
		return failures, nil
	}
	return a.randomlyExpandCorpus(trajectories, expansionSteps, randomDepth)
}

// AdministerDefault calls Administer with the library's own defaults
// (no random expansion, 3-length k-paths, depth-3 random generation).
func (a *Administrator) AdministerDefault() (Failures, error) {
	return a.Administer(0, 3, 3)
}

func (a *Administrator) defaultHandleInvariantFailure(plan corpus.Plan, varname corpus.VarName, expected, got value.Value) {
	if a.verboseLevel == 0 {
		return
	}
	fmt.Fprintf(a.out, "invariant failed in test %s %x\n", plan.TestName.String(), plan.HashCode())
	fmt.Fprintln(a.out, "  parameters:")
	fmt.Fprint(a.out, plan.Format())
	fmt.Fprintf(a.out, "  invariant: %s\n", varname.String())
	fmt.Fprintf(a.out, "  expected: %s\n", expected.Format())
	fmt.Fprintf(a.out, "  got: %s\n", got.Format())
}

func (a *Administrator) defaultHandleTranscriptMismatch(expected, got corpus.Transcript) {
	if a.verboseLevel == 0 {
		return
	}
	fmt.Fprintln(a.out, "transcript mismatch!")
	fmt.Fprintln(a.out, "  expected:")
	fmt.Fprint(a.out, expected.Format())
	fmt.Fprintln(a.out, "  got:")
	fmt.Fprint(a.out, got.Format())
	if diff, err := corpus.Diff(expected, got); err == nil && diff != "" {
		fmt.Fprint(a.out, diff)
	}
}
