// Package gencheck adapts the administer loop to Go's testing package:
// RunPlans drives a phtest.Administrator against a corpus file at a
// caller-given path and fails the test on any reported failure, the same
// shape internal/testgen.RunIterations gives to profile-driven
// generative tests, applied to a grammar-backed corpus instead of an
// ad-hoc Profile.
package gencheck

import (
	"testing"

	"photesthesis/corpus"
	"photesthesis/grammar"
	"photesthesis/phtest"
)

// Params bundles the fixed inputs RunPlans needs beyond the *testing.T:
// the grammar, where its corpus lives on disk, which test it is, the
// seed parameter environments used to bootstrap that corpus, and the
// Test implementation to administer.
type Params struct {
	Grammar        *grammar.Grammar
	CorpusPath     string
	TestName       corpus.TestName
	SeedSpecs      []corpus.ParamSpecs
	Test           phtest.Test
	Seed           uint64
	ExpansionSteps uint64
	KPathLength    uint64
	RandomDepth    uint64
}

// RunPlans opens p.CorpusPath (creating it fresh if absent), administers
// p.Test against it, fails t if any plan failed, and saves the corpus
// back to disk if it grew or changed. It is meant to be called from a
// normal *_test.go TestXxx function.
func RunPlans(t *testing.T, p Params) {
	t.Helper()
	corp, err := corpus.Open(p.CorpusPath)
	if err != nil {
		t.Fatalf("gencheck: opening corpus %s: %v", p.CorpusPath, err)
	}
	a := phtest.New(p.Grammar, corp, p.TestName, p.SeedSpecs, p.Test)
	a.SeedWithValue(p.Seed)

	failures, err := a.Administer(p.ExpansionSteps, p.KPathLength, p.RandomDepth)
	if err != nil {
		t.Fatalf("gencheck: administering %s: %v", p.TestName.String(), err)
	}
	if len(failures) != 0 {
		t.Errorf("gencheck: %s reported %d failing plan(s): %v", p.TestName.String(), len(failures), failures)
	}
	if err := corp.Save(); err != nil {
		t.Fatalf("gencheck: saving corpus %s: %v", p.CorpusPath, err)
	}
}
