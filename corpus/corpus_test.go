package corpus

import (
	"path/filepath"
	"testing"

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

func examplePlan(t *testing.T) Plan {
	p := NewPlan(mustSym(t, "add_test"))
	p.AddParam(mustSym(t, "expr"), value.List(value.Sym(mustSym(t, "ADD")), value.Int64(1), value.Int64(2)))
	return p
}

func TestPlanHashDeterministic(t *testing.T) {
	a := examplePlan(t)
	b := examplePlan(t)
	if a.HashCode() != b.HashCode() {
		t.Fatal("identical plans must hash identically")
	}
}

func TestTranscriptFormatParseRoundTrip(t *testing.T) {
	plan := examplePlan(t)
	plan.AddComment("regression for overflow bug")
	tr := NewTranscript(plan)
	tr.AddTracked(mustSym(t, "result"), value.Int64(3))
	tr.AddChecked(mustSym(t, "note"), value.Str("ok"))

	text := tr.Format()
	got, n, err := ParseTranscript(text)
	if err != nil {
		t.Fatalf("ParseTranscript: %v\n%s", err, text)
	}
	if n != len(text) {
		t.Errorf("consumed %d of %d bytes", n, len(text))
	}
	if !got.Equal(tr) {
		t.Errorf("round trip mismatch:\nwant %s\ngot  %s", tr.Format(), got.Format())
	}
}

func TestManualTranscriptRoundTrip(t *testing.T) {
	plan := NewManualPlan(mustSym(t, "regress_1"))
	plan.AddParam(mustSym(t, "expr"), value.List(value.Sym(mustSym(t, "MUL")), value.Int64(6), value.Int64(7)))
	tr := NewTranscript(plan)
	tr.AddChecked(mustSym(t, "result"), value.Int64(42))

	text := tr.Format()
	got, _, err := ParseTranscript(text)
	if err != nil {
		t.Fatalf("ParseTranscript: %v", err)
	}
	if !got.Plan.IsManual {
		t.Fatal("expected manual flag to round-trip")
	}
	if !got.Equal(tr) {
		t.Fatal("manual transcript round trip mismatch")
	}
}

func TestPlanOrderingByTestNameThenManual(t *testing.T) {
	a := NewPlan(mustSym(t, "a_test"))
	b := NewPlan(mustSym(t, "b_test"))
	if !a.Less(b) {
		t.Fatal("a_test should sort before b_test")
	}
	gen := NewPlan(mustSym(t, "same"))
	man := NewManualPlan(mustSym(t, "same"))
	if !gen.Less(man) {
		t.Fatal("a generated plan should sort before a manual one with the same test name")
	}
}

func TestCorpusSaveAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corpus.txt")

	c, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	plan := examplePlan(t)
	tr := NewTranscript(plan)
	tr.AddTracked(mustSym(t, "result"), value.Int64(3))
	if err := c.AddTranscript(tr); err != nil {
		t.Fatal(err)
	}
	if err := c.Save(); err != nil {
		t.Fatal(err)
	}

	reloaded, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	got := reloaded.Transcripts(plan.TestName)
	if len(got) != 1 || !got[0].Equal(tr) {
		t.Fatalf("reloaded corpus did not round-trip: %+v", got)
	}
}

func TestUpdateTranscriptReplacesExisting(t *testing.T) {
	c, err := Open("")
	if err != nil {
		t.Fatal(err)
	}
	plan := examplePlan(t)
	tr1 := NewTranscript(plan)
	tr1.AddTracked(mustSym(t, "result"), value.Int64(3))
	if err := c.AddTranscript(tr1); err != nil {
		t.Fatal(err)
	}
	tr2 := NewTranscript(plan)
	tr2.AddTracked(mustSym(t, "result"), value.Int64(99))
	c.UpdateTranscript(tr2)

	got := c.Transcripts(plan.TestName)
	if len(got) != 1 {
		t.Fatalf("expected exactly one transcript for the plan, got %d", len(got))
	}
	if !got[0].Equal(tr2) {
		t.Fatal("UpdateTranscript should have replaced the old transcript")
	}
}

func TestDiffShowsMismatch(t *testing.T) {
	plan := examplePlan(t)
	a := NewTranscript(plan)
	a.AddTracked(mustSym(t, "result"), value.Int64(3))
	b := NewTranscript(plan)
	b.AddTracked(mustSym(t, "result"), value.Int64(4))

	diff, err := Diff(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if diff == "" {
		t.Fatal("expected a non-empty diff for mismatched transcripts")
	}
}
