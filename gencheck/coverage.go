package gencheck

import (
	"testing"

	"photesthesis/corpus"
	"photesthesis/value"
)

// CoverageGate observes which grammar rules a batch of generated Values
// actually exercised, mirroring internal/testsupport's axis-coverage
// gate but keyed on rule names instead of parser value-contexts.
type CoverageGate struct {
	seen map[string]bool
}

// NewCoverageGate returns an empty gate.
func NewCoverageGate() *CoverageGate {
	return &CoverageGate{seen: make(map[string]bool)}
}

// Observe walks v (and, recursively, every sub-value reachable from it)
// and records the rule name at the head of every list-shaped value.
func (g *CoverageGate) Observe(v value.Value) {
	if !v.IsPair() {
		return
	}
	if head, ok := v.Head().AsSym(); ok {
		g.seen[head.String()] = true
	}
	for _, elem := range v.Elements() {
		g.Observe(elem)
	}
}

// ObservePlans observes every param value bound in each plan.
func (g *CoverageGate) ObservePlans(plans []corpus.Plan) {
	for _, p := range plans {
		for _, param := range p.Params {
			g.Observe(param.Value)
		}
	}
}

// Missing returns the subset of want that was never observed.
func (g *CoverageGate) Missing(want []corpus.RuleName) []corpus.RuleName {
	var missing []corpus.RuleName
	for _, rule := range want {
		if !g.seen[rule.String()] {
			missing = append(missing, rule)
		}
	}
	return missing
}

// AssertAtLeast fails t unless every rule name in want was observed.
func (g *CoverageGate) AssertAtLeast(t testing.TB, want []corpus.RuleName) {
	t.Helper()
	if missing := g.Missing(want); len(missing) > 0 {
		t.Fatalf("gencheck: rule coverage incomplete: %v never generated", missing)
	}
}
