package symbol

import "testing"

func TestInterningIdentity(t *testing.T) {
	a, err := New("foo_Bar9")
	if err != nil {
		t.Fatal(err)
	}
	b, err := New("foo_Bar9")
	if err != nil {
		t.Fatal(err)
	}
	if !a.Equal(b) {
		t.Fatal("two interns of the same text must be Equal")
	}
	if a.p != b.p {
		t.Fatal("two interns of the same text must share a backing pointer")
	}
}

func TestRejectsInvalidNames(t *testing.T) {
	for _, s := range []string{"", "has space", "has-dash", "has.dot"} {
		if _, err := New(s); err == nil {
			t.Fatalf("expected New(%q) to fail", s)
		}
	}
}

func TestLessOrdersLexicographically(t *testing.T) {
	a := MustNew("aaa")
	b := MustNew("bbb")
	if !a.Less(b) || b.Less(a) {
		t.Fatal("expected aaa < bbb")
	}
}

func TestSortSymbols(t *testing.T) {
	syms := []Symbol{MustNew("c"), MustNew("a"), MustNew("b")}
	SortSymbols(syms)
	want := []string{"a", "b", "c"}
	for i, s := range syms {
		if s.String() != want[i] {
			t.Fatalf("index %d: got %s, want %s", i, s, want[i])
		}
	}
}
