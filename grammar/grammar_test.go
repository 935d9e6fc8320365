package grammar

import (
	"math/rand"
	"testing"

	"photesthesis/corpus"
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

// digitGrammar builds DIGIT ::= 0 | 1 | SEQ, SEQ ::= DIGIT DIGIT | 0 0, a
// small grammar with exactly one nonterminal cycle, cheap enough to fully
// explore in tests. Both rules have a Ref-free alternative, so either can
// still be expanded when the depth limit reaches 1.
func digitGrammar(t *testing.T) (*Grammar, corpus.RuleName) {
	t.Helper()
	g := New()
	digit := mustSym(t, "DIGIT")
	seq := mustSym(t, "SEQ")
	if err := g.AddRule(seq,
		NewProduction([]Atom{g.Ref(digit), g.Ref(digit)}),
		NewProduction([]Atom{g.Int64(0), g.Int64(0)}),
	); err != nil {
		t.Fatal(err)
	}
	if err := g.AddRule(digit,
		NewProduction([]Atom{g.Int64(0)}),
		NewProduction([]Atom{g.Int64(1)}),
		NewProduction([]Atom{g.Ref(seq)}),
	); err != nil {
		t.Fatal(err)
	}
	return g, digit
}

func TestDuplicateRuleIsAnError(t *testing.T) {
	g, digit := digitGrammar(t)
	if err := g.AddRule(digit, NewProduction([]Atom{g.Int64(9)})); err == nil {
		t.Fatal("expected duplicate rule registration to fail")
	}
}

func TestRandomlyPopulatePlanTerminates(t *testing.T) {
	g, digit := digitGrammar(t)
	specs := corpus.ParamSpecs{{Name: mustSym(t, "d"), Rule: digit}}
	rnd := rand.New(rand.NewSource(1))
	for i := 0; i < 50; i++ {
		plan, err := g.RandomlyPopulatePlan(mustSym(t, "digit_test"), specs, rnd, 6)
		if err != nil {
			t.Fatalf("iteration %d: %v", i, err)
		}
		v, ok := plan.Params.Get(mustSym(t, "d"))
		if !ok {
			t.Fatal("expected param d to be populated")
		}
		if !v.IsPair() {
			t.Fatalf("expected a list value, got %s", v)
		}
	}
}

func TestRandomGenerationRespectsDepthLimitOne(t *testing.T) {
	g, digit := digitGrammar(t)
	rnd := rand.New(rand.NewSource(2))
	ctx := NewContext(nil)
	v, err := g.randomValueFromRule(digit, rnd, 1, ctx)
	if err != nil {
		t.Fatal(err)
	}
	// At depth limit 1 the SEQ-producing (recursive) production must be
	// excluded, so the result is always a 2-element list: (DIGIT 0) or (DIGIT 1).
	if v.Len() != 2 {
		t.Fatalf("expected a terminal-only expansion at depth 1, got %s", v)
	}
}

func TestKPathSetIsNonEmptyAndTerminates(t *testing.T) {
	g, digit := digitGrammar(t)
	specs := corpus.ParamSpecs{{Name: mustSym(t, "d"), Rule: digit}}
	paths, err := g.generateKPathSet(2, digit, specs)
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) == 0 {
		t.Fatal("expected at least one 2-path")
	}
}

func TestKPathCoveringProducesNonEmptySet(t *testing.T) {
	g, digit := digitGrammar(t)
	specs := corpus.ParamSpecs{{Name: mustSym(t, "d"), Rule: digit}}
	vals, err := g.kPathCovering(digit, 2, specs)
	if err != nil {
		t.Fatal(err)
	}
	if len(vals) == 0 {
		t.Fatal("expected a nonempty covering set")
	}
	for _, v := range vals {
		var head symbol.Symbol
		if !v.Match(value.IntoSym(&head), value.Any()) {
			t.Fatalf("expected every covering value to start with a rule-name symbol: %s", v)
		}
	}
}

func TestPopulatePlansFromKPathCoveringsIsDeterministic(t *testing.T) {
	g, digit := digitGrammar(t)
	specs := corpus.ParamSpecs{{Name: mustSym(t, "d"), Rule: digit}}
	a, err := g.PopulatePlansFromKPathCoverings(mustSym(t, "digit_test"), specs, 2)
	if err != nil {
		t.Fatal(err)
	}
	b, err := g.PopulatePlansFromKPathCoverings(mustSym(t, "digit_test"), specs, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(a) == 0 {
		t.Fatal("expected at least one covering plan")
	}
	if len(a) != len(b) {
		t.Fatalf("expected deterministic plan count, got %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].HashCode() != b[i].HashCode() {
			t.Fatalf("plan %d hash differs between runs", i)
		}
	}
}
