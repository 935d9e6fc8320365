package value

import "testing"

func FuzzFormatParseRoundTrip(f *testing.F) {
	f.Add(int64(0))
	f.Add(int64(-1))
	f.Add(int64(1 << 40))
	f.Fuzz(func(t *testing.T, i int64) {
		v := Int64(i)
		text := v.Format()
		got, n, err := Parse(text)
		if err != nil {
			t.Fatalf("Parse(%q): %v", text, err)
		}
		if n != len(text) {
			t.Fatalf("consumed %d of %d bytes", n, len(text))
		}
		if !got.Equal(v) {
			t.Fatalf("round trip mismatch: %s -> %q -> %s", v, text, got)
		}
	})
}

func FuzzParseNeverPanics(f *testing.F) {
	f.Add("(1 2 3)")
	f.Add(`"unterminated`)
	f.Add("[0xff 0x0]")
	f.Add("#nosuch")
	f.Fuzz(func(t *testing.T, s string) {
		defer func() {
			if r := recover(); r != nil {
				t.Fatalf("Parse panicked on %q: %v", s, r)
			}
		}()
		_, _, _ = Parse(s)
	})
}
