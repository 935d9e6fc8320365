package phtest

import (
	"strings"
	"testing"

	"photesthesis/corpus"
	"photesthesis/grammar"
	"photesthesis/symbol"
	"photesthesis/value"
)

func mustSym(t *testing.T, s string) symbol.Symbol {
	t.Helper()
	sym, err := symbol.New(s)
	if err != nil {
		t.Fatal(err)
	}
	return sym
}

// digitGrammar builds DIGIT ::= 0 | 1 | SEQ, SEQ ::= DIGIT DIGIT | 0 0, the
// same small cyclic grammar the grammar package tests itself against.
func digitGrammar(t *testing.T) (*grammar.Grammar, corpus.RuleName) {
	t.Helper()
	g := grammar.New()
	digit := mustSym(t, "DIGIT")
	seq := mustSym(t, "SEQ")
	if err := g.AddRule(seq,
		grammar.NewProduction([]grammar.Atom{g.Ref(digit), g.Ref(digit)}),
		grammar.NewProduction([]grammar.Atom{g.Int64(0), g.Int64(0)}),
	); err != nil {
		t.Fatal(err)
	}
	if err := g.AddRule(digit,
		grammar.NewProduction([]grammar.Atom{g.Int64(0)}),
		grammar.NewProduction([]grammar.Atom{g.Int64(1)}),
		grammar.NewProduction([]grammar.Atom{g.Ref(seq)}),
	); err != nil {
		t.Fatal(err)
	}
	return g, digit
}

func sumDigits(v value.Value) int64 {
	if i, ok := v.AsInt64(); ok {
		return i
	}
	elems := v.Elements()
	head, _ := elems[0].AsSym()
	switch head.String() {
	case "DIGIT":
		if i, ok := elems[1].AsInt64(); ok {
			return i
		}
		return sumDigits(elems[1])
	case "SEQ":
		return sumDigits(elems[1]) + sumDigits(elems[2])
	default:
		return 0
	}
}

// sumTest tracks the digit-sum of its one parameter and asserts (via
// Invariant) that it's never negative -- trivially true, giving a
// well-behaved Test to drive the administer loop with.
type sumTest struct {
	t     *testing.T
	param corpus.ParamName
	fail  bool
}

func (s *sumTest) Run(a *Administrator) {
	v := a.GetParam(s.param)
	sum := sumDigits(v)
	a.Track(mustSym(s.t, "sum"), value.Int64(sum))
	want := value.Bool(true)
	got := value.Bool(!s.fail)
	a.Invariant(mustSym(s.t, "nonneg"), want, got)
}

func newSumTest(t *testing.T) (*grammar.Grammar, corpus.RuleName, *sumTest) {
	g, digit := digitGrammar(t)
	return g, digit, &sumTest{t: t, param: mustSym(t, "d")}
}

func TestAdministerInitializesCorpusFromKPaths(t *testing.T) {
	g, digit, test := newSumTest(t)
	specs := []corpus.ParamSpecs{{{Name: test.param, Rule: digit}}}
	corp, err := corpus.Open("")
	if err != nil {
		t.Fatal(err)
	}
	a := New(g, corp, mustSym(t, "digit_test"), specs, test)
	var out strings.Builder
	a.SetOutput(&out)

	failures, err := a.AdministerDefault()
	if err != nil {
		t.Fatal(err)
	}
	if len(failures) != 0 {
		t.Fatalf("expected no failures, got %v", failures)
	}
	if len(corp.Transcripts(mustSym(t, "digit_test"))) == 0 {
		t.Fatal("expected k-path initialization to populate the corpus")
	}
}

func TestAdministerRechecksExistingCorpusWithoutMutation(t *testing.T) {
	g, digit, test := newSumTest(t)
	specs := []corpus.ParamSpecs{{{Name: test.param, Rule: digit}}}
	corp, err := corpus.Open("")
	if err != nil {
		t.Fatal(err)
	}
	tname := mustSym(t, "digit_test")
	a := New(g, corp, tname, specs, test)
	if _, err := a.AdministerDefault(); err != nil {
		t.Fatal(err)
	}
	before := len(corp.Transcripts(tname))

	a2 := New(g, corp, tname, specs, test)
	failures, err := a2.Administer(5, 3, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(failures) != 0 {
		t.Fatalf("expected no failures on recheck, got %v", failures)
	}
	after := len(corp.Transcripts(tname))
	if after < before {
		t.Fatalf("corpus shrank from %d to %d transcripts", before, after)
	}
}

func TestAdministerReportsInvariantFailures(t *testing.T) {
	g, digit, test := newSumTest(t)
	test.fail = true
	specs := []corpus.ParamSpecs{{{Name: test.param, Rule: digit}}}
	corp, err := corpus.Open("")
	if err != nil {
		t.Fatal(err)
	}
	a := New(g, corp, mustSym(t, "digit_test"), specs, test)

	failures, err := a.AdministerDefault()
	if err != nil {
		t.Fatal(err)
	}
	if len(failures) == 0 {
		t.Fatal("expected invariant failures to be reported")
	}
}

func TestAdministerExpandsCorpusRandomlyOnSecondRun(t *testing.T) {
	g, digit, test := newSumTest(t)
	specs := []corpus.ParamSpecs{{{Name: test.param, Rule: digit}}}
	corp, err := corpus.Open("")
	if err != nil {
		t.Fatal(err)
	}
	tname := mustSym(t, "digit_test")
	a := New(g, corp, tname, specs, test)
	if _, err := a.AdministerDefault(); err != nil {
		t.Fatal(err)
	}
	before := len(corp.Transcripts(tname))

	a2 := New(g, corp, tname, specs, test)
	a2.SeedWithValue(7)
	if _, err := a2.Administer(50, 3, 4); err != nil {
		t.Fatal(err)
	}
	after := len(corp.Transcripts(tname))
	if after < before {
		t.Fatalf("expected random expansion to never shrink the corpus: %d -> %d", before, after)
	}
}

func TestKPathLengthEnvOverride(t *testing.T) {
	g, digit, test := newSumTest(t)
	specs := []corpus.ParamSpecs{{{Name: test.param, Rule: digit}}}
	corp, err := corpus.Open("")
	if err != nil {
		t.Fatal(err)
	}
	t.Setenv("PHOTESTHESIS_KPATH_LENGTH", "2")
	a := New(g, corp, mustSym(t, "digit_test"), specs, test)
	if _, err := a.AdministerDefault(); err != nil {
		t.Fatal(err)
	}
	// kPathLength=2 means the `for k := 2; k < kPathLength` loop never
	// runs, so no plans (and hence no transcripts) are generated.
	if len(corp.Transcripts(mustSym(t, "digit_test"))) != 0 {
		t.Fatal("expected PHOTESTHESIS_KPATH_LENGTH=2 to generate no initial plans")
	}
}

func TestTestHashEnvOverrideLimitsRecheck(t *testing.T) {
	g, digit, test := newSumTest(t)
	specs := []corpus.ParamSpecs{{{Name: test.param, Rule: digit}}}
	corp, err := corpus.Open("")
	if err != nil {
		t.Fatal(err)
	}
	tname := mustSym(t, "digit_test")
	a := New(g, corp, tname, specs, test)
	if _, err := a.AdministerDefault(); err != nil {
		t.Fatal(err)
	}
	transcripts := corp.Transcripts(tname)
	if len(transcripts) == 0 {
		t.Fatal("expected some transcripts to recheck")
	}
	wantHash := transcripts[0].Plan.HashCode()
	t.Setenv("PHOTESTHESIS_TEST_HASH", "0x"+uitoaHex(wantHash))

	a2 := New(g, corp, tname, specs, test)
	if _, err := a2.Administer(0, 3, 3); err != nil {
		t.Fatal(err)
	}
}

func uitoaHex(n uint64) string {
	const digits = "0123456789abcdef"
	if n == 0 {
		return "0"
	}
	var buf [16]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = digits[n%16]
		n /= 16
	}
	return string(buf[i:])
}

func TestPathTrajectoryTrackingViaBumpEdge(t *testing.T) {
	g, digit, _ := newSumTest(t)
	pname := mustSym(t, "d")
	specs := []corpus.ParamSpecs{{{Name: pname, Rule: digit}}}
	corp, err := corpus.Open("")
	if err != nil {
		t.Fatal(err)
	}
	bumpy := &bumpTest{param: pname}
	a := New(g, corp, mustSym(t, "bump_test"), specs, bumpy)
	if _, err := a.AdministerDefault(); err != nil {
		t.Fatal(err)
	}
	if len(corp.Transcripts(mustSym(t, "bump_test"))) == 0 {
		t.Fatal("expected initialization to succeed with path tracking enabled")
	}
}

// bumpTest exercises BumpEdge on a value-dependent branch, so that its
// path trajectory actually varies across plans.
type bumpTest struct {
	param corpus.ParamName
}

func (b *bumpTest) Run(a *Administrator) {
	v := a.GetParam(b.param)
	if sumDigits(v)%2 == 0 {
		BumpEdge(1)
	} else {
		BumpEdge(2)
	}
}

// flakyTest bumps one of two edges on alternating calls, independent of
// its plan's param, so that two back-to-back runs of the same plan
// never agree on path trajectory -- until both edges get masked away as
// unstable.
type flakyTest struct {
	n int
}

func (f *flakyTest) Run(*Administrator) {
	f.n++
	if f.n%2 == 0 {
		BumpEdge(500)
	} else {
		BumpEdge(501)
	}
}

func TestUnstablePathTrajectoryFailsWithoutStabilityRetries(t *testing.T) {
	g, digit, _ := newSumTest(t)
	specs := []corpus.ParamSpecs{{{Name: mustSym(t, "d"), Rule: digit}}}
	corp, err := corpus.Open("")
	if err != nil {
		t.Fatal(err)
	}
	a := New(g, corp, mustSym(t, "flaky_test"), specs, &flakyTest{})
	_, err = a.AdministerDefault()
	if err == nil {
		t.Fatal("expected an instability error with PHOTESTHESIS_STABILITY_RETRIES unset")
	}
	if _, ok := err.(*InstabilityError); !ok {
		t.Fatalf("expected *InstabilityError, got %T: %v", err, err)
	}
}

func TestUnstablePathTrajectoryStabilizesWithRetries(t *testing.T) {
	g, digit, _ := newSumTest(t)
	specs := []corpus.ParamSpecs{{{Name: mustSym(t, "d"), Rule: digit}}}
	corp, err := corpus.Open("")
	if err != nil {
		t.Fatal(err)
	}
	t.Setenv("PHOTESTHESIS_STABILITY_RETRIES", "3")
	a := New(g, corp, mustSym(t, "flaky_test"), specs, &flakyTest{})
	if _, err := a.AdministerDefault(); err != nil {
		t.Fatalf("expected masking to stabilize the path trajectory, got: %v", err)
	}
}
