package corpus

import (
	"os"
	"sort"

	"github.com/pmezard/go-difflib/difflib"
)

// Corpus is the persisted, file-backed state of every recorded
// transcript, grouped by test name and kept in sorted order.
type Corpus struct {
	path  string
	dirty bool
	tests map[string][]Transcript
}

// Open loads a Corpus from path, or returns an empty Corpus if path is
// empty or does not yet exist. A non-empty path that exists but fails to
// parse is a fatal I/O/parse error.
func Open(path string) (*Corpus, error) {
	c := &Corpus{path: path, tests: make(map[string][]Transcript)}
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, &IOError{Path: path, Err: err}
	}
	transcripts, err := ParseTranscripts(string(data))
	if err != nil {
		if pe, ok := err.(*ParseError); ok {
			pe.Path = path
		}
		return nil, err
	}
	for _, t := range transcripts {
		c.addTranscriptLocked(t)
	}
	c.dirty = false
	return c, nil
}

// Path returns the backing file path, or "" for an in-memory Corpus.
func (c *Corpus) Path() string { return c.path }

// Dirty reports whether the Corpus has unsaved changes.
func (c *Corpus) Dirty() bool { return c.dirty }

func (c *Corpus) markDirty() { c.dirty = true }

// Transcripts returns the sorted transcripts recorded for tname.
func (c *Corpus) Transcripts(tname TestName) []Transcript {
	return c.tests[tname.String()]
}

// TestNames returns every test name with at least one recorded
// transcript, sorted.
func (c *Corpus) TestNames() []string {
	names := make([]string, 0, len(c.tests))
	for name := range c.tests {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *Corpus) addTranscriptLocked(t Transcript) {
	key := t.Plan.TestName.String()
	ts := c.tests[key]
	idx := sort.Search(len(ts), func(i int) bool { return !ts[i].Less(t) })
	ts = append(ts, Transcript{})
	copy(ts[idx+1:], ts[idx:])
	ts[idx] = t
	c.tests[key] = ts
}

// AddTranscript inserts a brand new transcript. It is an error to add a
// transcript for a Plan that already has one recorded; use
// UpdateTranscript to replace an existing entry.
func (c *Corpus) AddTranscript(t Transcript) error {
	for _, existing := range c.Transcripts(t.Plan.TestName) {
		if existing.Plan.Equal(t.Plan) {
			return newParseError(c.path, 0, "transcript already recorded for plan hash 0x%x", t.Plan.HashCode())
		}
	}
	c.addTranscriptLocked(t)
	c.markDirty()
	return nil
}

// UpdateTranscript replaces the transcript whose Plan equals t.Plan, or
// appends t if none was found (the corpus-expansion loop calls this
// unconditionally since it doesn't track whether it already has an entry
// for a rediscovered plan).
func (c *Corpus) UpdateTranscript(t Transcript) {
	key := t.Plan.TestName.String()
	ts := c.tests[key]
	for i, existing := range ts {
		if existing.Plan.Equal(t.Plan) {
			ts = append(ts[:i], ts[i+1:]...)
			c.tests[key] = ts
			break
		}
	}
	c.addTranscriptLocked(t)
	c.markDirty()
}

// Save rewrites the backing file in canonical sorted form if the Corpus
// has unsaved changes. Saving an in-memory (path == "") Corpus is a
// no-op.
func (c *Corpus) Save() error {
	if !c.dirty || c.path == "" {
		return nil
	}
	var buf []byte
	for _, name := range c.TestNames() {
		for _, t := range c.tests[name] {
			buf = append(buf, t.Format()...)
		}
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, buf, 0o644); err != nil {
		return &IOError{Path: tmp, Err: err}
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return &IOError{Path: c.path, Err: err}
	}
	c.dirty = false
	return nil
}

// Diff renders a unified diff between the canonical text of two
// transcripts for the same plan, used to show a human what changed when
// a stored transcript no longer matches a fresh run.
func Diff(expected, got Transcript) (string, error) {
	ud := difflib.UnifiedDiff{
		A:        difflib.SplitLines(expected.Format()),
		B:        difflib.SplitLines(got.Format()),
		FromFile: "expected",
		ToFile:   "got",
		Context:  3,
	}
	return difflib.GetUnifiedDiffString(ud)
}
