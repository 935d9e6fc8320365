// Package corpus implements Plans, Transcripts, and the file-backed
// Corpus that stores them: the persisted record of which parameterized
// test cases exist and what they last observed.
package corpus

import (
	"fmt"
	"strings"

	"photesthesis/hashkit"
	"photesthesis/symbol"
	"photesthesis/value"
)

// ParamName, RuleName, TestName, and VarName are all just interned
// symbols distinguished by role, matching the original library's use of
// Symbol as the common currency for every kind of name.
type (
	ParamName = symbol.Symbol
	RuleName  = symbol.Symbol
	TestName  = symbol.Symbol
	VarName   = symbol.Symbol
)

// PlanHash is the 64-bit fingerprint of a Plan's test name and params.
type PlanHash = uint64

// Trajectory is the 64-bit fingerprint of a test run's observed
// behavior, computed by package phtest.
type Trajectory = uint64

// ParamSpec names a single parameter and the grammar rule used to
// generate values for it.
type ParamSpec struct {
	Name ParamName
	Rule RuleName
}

// ParamSpecs is an ordered mapping ParamName -> RuleName: order-preserving,
// not merely incidentally ordered, since it determines iteration order
// for both random/k-path population and Plan hashing.
type ParamSpecs []ParamSpec

// Rule looks up the RuleName bound to name, if any.
func (ps ParamSpecs) Rule(name ParamName) (RuleName, bool) {
	for _, spec := range ps {
		if spec.Name.Equal(name) {
			return spec.Rule, true
		}
	}
	return symbol.Symbol{}, false
}

// Param is one name/value binding within a Plan.
type Param struct {
	Name  ParamName
	Value value.Value
}

// Params is an ordered sequence of Param bindings, preserving insertion
// order like the original's vector-of-pairs representation (vecMapAdd).
type Params []Param

// Get returns the value bound to name, if present.
func (ps Params) Get(name ParamName) (value.Value, bool) {
	for _, p := range ps {
		if p.Name.Equal(name) {
			return p.Value, true
		}
	}
	return value.Value{}, false
}

// Has reports whether name is bound.
func (ps Params) Has(name ParamName) bool {
	_, ok := ps.Get(name)
	return ok
}

// Add appends a new binding for name, or overwrites the existing one in
// place if name is already bound, matching vecMapAdd's overwrite-in-place
// semantics.
func (ps *Params) Add(name ParamName, v value.Value) {
	for i, p := range *ps {
		if p.Name.Equal(name) {
			(*ps)[i].Value = v
			return
		}
	}
	*ps = append(*ps, Param{Name: name, Value: v})
}

// ParamSpecs derives the ParamSpecs a Params was generated from, reading
// the head symbol of each value (every generated value is a list headed
// by the RuleName that produced it).
func (ps Params) ParamSpecs() (ParamSpecs, error) {
	specs := make(ParamSpecs, 0, len(ps))
	for _, p := range ps {
		rule, err := headRuleName(p.Value)
		if err != nil {
			return nil, err
		}
		specs = append(specs, ParamSpec{Name: p.Name, Rule: rule})
	}
	return specs, nil
}

func headRuleName(v value.Value) (RuleName, error) {
	var head symbol.Symbol
	if !v.Match(value.IntoSym(&head), value.Any()) {
		return symbol.Symbol{}, &ParseError{Msg: "expected head symbol in list value"}
	}
	return head, nil
}

// Comment is a single line of free-form commentary attached to a Plan.
type Comment = string

// Plan names a test and the parameter bindings to run it with. A Plan
// may be manual: hand-authored and perpetually re-checked, never touched
// by k-path initialization or random corpus expansion.
type Plan struct {
	TestName TestName
	IsManual bool
	Comments []Comment
	Params   Params
}

// NewPlan builds a non-manual Plan with no params yet bound.
func NewPlan(tname TestName) Plan {
	return Plan{TestName: tname}
}

// NewManualPlan builds a manual Plan.
func NewManualPlan(tname TestName) Plan {
	return Plan{TestName: tname, IsManual: true}
}

// AddParam binds or rebinds name to v.
func (p *Plan) AddParam(name ParamName, v value.Value) {
	p.Params.Add(name, v)
}

// AddComment appends a free-form comment line.
func (p *Plan) AddComment(c Comment) {
	p.Comments = append(p.Comments, c)
}

// HashCode computes the Plan's 64-bit fingerprint by folding the test
// name, manual flag, and every bound param (in order) through a Hasher.
// Two Plans with the same test name, manual flag, and params hash
// identically regardless of process or run.
func (p Plan) HashCode() PlanHash {
	h := hashkit.New()
	h.AddSymbol(p.TestName)
	h.AddValue(value.Bool(p.IsManual))
	h.AddString(":")
	for _, pp := range p.Params {
		h.AddKeyValue(pp.Name, pp.Value)
	}
	return h.Sum()
}

// Equal implements structural equality over test name, manual flag,
// comments, and params.
func (p Plan) Equal(other Plan) bool {
	if !p.TestName.Equal(other.TestName) || p.IsManual != other.IsManual {
		return false
	}
	if len(p.Comments) != len(other.Comments) {
		return false
	}
	for i := range p.Comments {
		if p.Comments[i] != other.Comments[i] {
			return false
		}
	}
	if len(p.Params) != len(other.Params) {
		return false
	}
	for i := range p.Params {
		if !p.Params[i].Name.Equal(other.Params[i].Name) || !p.Params[i].Value.Equal(other.Params[i].Value) {
			return false
		}
	}
	return true
}

// Less orders Plans the way the original determines both "comfortable
// reading order" of a corpus file and preference among equal-trajectory
// transcripts: by test name, then manual flag (generated before manual),
// then param count, then per-param name and value size, falling back to
// full param/comment comparison.
func (p Plan) Less(other Plan) bool {
	if p.TestName.Less(other.TestName) {
		return true
	}
	if other.TestName.Less(p.TestName) {
		return false
	}
	if !p.IsManual && other.IsManual {
		return true
	}
	if p.IsManual && !other.IsManual {
		return false
	}
	if len(p.Params) != len(other.Params) {
		return len(p.Params) < len(other.Params)
	}
	for i := range p.Params {
		a, b := p.Params[i], other.Params[i]
		if a.Name.Less(b.Name) {
			return true
		}
		if b.Name.Less(a.Name) {
			return false
		}
		asz, bsz := paramValueSize(a.Value), paramValueSize(b.Value)
		if asz != bsz {
			return asz < bsz
		}
	}
	for i := range p.Params {
		a, b := p.Params[i], other.Params[i]
		if a.Value.Less(b.Value) {
			return true
		}
		if b.Value.Less(a.Value) {
			return false
		}
	}
	for i := range p.Comments {
		if i >= len(other.Comments) {
			return false
		}
		if p.Comments[i] != other.Comments[i] {
			return p.Comments[i] < other.Comments[i]
		}
	}
	return len(p.Comments) < len(other.Comments)
}

// Format renders the plan's header line (test name plus its hash or
// "(manual)"), comments, and params, the common prefix shared by a bare
// plan listing and a full Transcript.Format().
func (p Plan) Format() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "#### transcript: %s", p.TestName.String())
	if p.IsManual {
		sb.WriteString(" (manual)\n")
	} else {
		fmt.Fprintf(&sb, " 0x%x\n", p.HashCode())
	}
	for _, c := range p.Comments {
		fmt.Fprintf(&sb, "# %s\n", c)
	}
	for _, pp := range p.Params {
		fmt.Fprintf(&sb, "param: %s = %s\n", pp.Name.String(), pp.Value.Format())
	}
	return sb.String()
}

// paramValueSize approximates the original's Value::getSize() tiebreaker
// as the value's pair-chain length (0 for any non-list value), since the
// helper's exact definition was not present in the retrieved source.
func paramValueSize(v value.Value) int {
	if v.IsPair() || v.IsNil() {
		return v.Len()
	}
	return 0
}
