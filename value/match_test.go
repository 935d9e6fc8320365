package value

import "testing"

func TestMatchExactArity(t *testing.T) {
	v := List(Int64(1), Int64(2), Int64(3))
	var a, b, c int64
	if !v.Match(IntoInt64(&a), IntoInt64(&b), IntoInt64(&c)) {
		t.Fatal("expected exact-arity match to succeed")
	}
	if a != 1 || b != 2 || c != 3 {
		t.Fatalf("got a=%d b=%d c=%d", a, b, c)
	}
}

func TestMatchShortListIsVacuouslySatisfied(t *testing.T) {
	v := List(Int64(1))
	var a, b int64
	if !v.Match(IntoInt64(&a), IntoInt64(&b)) {
		t.Fatal("a list shorter than the target count should vacuously satisfy the rest")
	}
	if a != 1 {
		t.Fatalf("got a=%d", a)
	}
}

func TestMatchExcessElementsIgnored(t *testing.T) {
	v := List(Int64(1), Int64(2), Int64(3))
	var a int64
	if !v.Match(IntoInt64(&a), Any()) {
		t.Fatal("a two-target match with a trailing Any should ignore elements past the first")
	}
	if a != 1 {
		t.Fatalf("got a=%d", a)
	}
}

func TestMatchWantRequiresEquality(t *testing.T) {
	v := List(Int64(1), Int64(2))
	if v.Match(WantInt64(1), WantInt64(99)) {
		t.Fatal("Want target must reject a mismatched value")
	}
	if !v.Match(WantInt64(1), WantInt64(2)) {
		t.Fatal("Want target must accept a matching value")
	}
}

func TestMatchEmptyTargetsAlwaysSucceeds(t *testing.T) {
	if !Int64(7).Match() {
		t.Fatal("matching zero targets must always succeed")
	}
}

func TestMatchRejectsWrongKind(t *testing.T) {
	var s string
	if Int64(1).Match(IntoStr(&s)) {
		t.Fatal("IntoStr must reject a non-Str value")
	}
}
