// Package grammar implements Rules, Productions, and Atoms, and the two
// generation strategies built on top of them: uniform random generation
// and k-path covering generation (Havrikov & Zeller, ASE 2019).
package grammar

import (
	"fmt"

	"photesthesis/corpus"
	"photesthesis/symbol"
	"photesthesis/value"
)

// Atom is a component of a Production: either a Lit (terminal) or a Ref
// (nonterminal). Every occurrence of an Atom in a Grammar has pointer
// identity: two structurally-identical Lits created from two separate
// calls are distinct nodes for k-path purposes, matching the original
// library's use of shared_ptr identity as the node identity for KPaths.
type Atom interface {
	atomKey() string
}

// Lit is a terminal Atom: a single literal Value.
type Lit struct {
	Value value.Value
}

func (l *Lit) atomKey() string { return fmt.Sprintf("L%p", l) }

// Ref is a nonterminal Atom: a reference to a named Rule, tagged with a
// monotonically increasing diagnostic number. Ref identity for k-path
// purposes is the pointer itself; Tag exists purely for human-readable
// diagnostics.
type Ref struct {
	Tag      uint64
	RuleName corpus.RuleName
	CtxExt   []symbol.Symbol
}

func (r *Ref) atomKey() string { return fmt.Sprintf("R%p", r) }

var refTagCounter uint64

func newRef(rule corpus.RuleName, ctxExt []symbol.Symbol) *Ref {
	tag := refTagCounter
	refTagCounter++
	return &Ref{Tag: tag, RuleName: rule, CtxExt: ctxExt}
}

// Production is one alternative of a Rule: an ordered sequence of Atoms
// plus the set of context parameters required for this alternative to
// be active.
type Production struct {
	Atoms   []Atom
	CtxReq  []symbol.Symbol
	hasRefs bool
}

// NewProduction builds a Production, precomputing whether it contains
// any Ref (nonterminal) atoms.
func NewProduction(atoms []Atom, ctxReq ...symbol.Symbol) Production {
	p := Production{Atoms: atoms, CtxReq: ctxReq}
	for _, a := range atoms {
		if _, ok := a.(*Ref); ok {
			p.hasRefs = true
			break
		}
	}
	return p
}

// Rule is a named set of Productions.
type Rule struct {
	Productions []Production
}

// Context gates context-sensitive productions: a pair of a global
// ParamSpecs key-set and a local push/pop stack of param names extended
// during expansion.
type Context struct {
	global corpus.ParamSpecs
	local  []symbol.Symbol
}

// NewContext builds a Context whose global part is specs's key-set.
func NewContext(specs corpus.ParamSpecs) *Context {
	return &Context{global: specs}
}

// Push extends the local context with name.
func (c *Context) Push(name symbol.Symbol) {
	c.local = append(c.local, name)
}

// PushSet extends the local context with every name in names.
func (c *Context) PushSet(names []symbol.Symbol) {
	for _, n := range names {
		c.Push(n)
	}
}

// Pop removes the n most recently pushed local names.
func (c *Context) Pop(n int) {
	c.local = c.local[:len(c.local)-n]
}

// Has reports whether name is present in the global ParamSpecs key-set
// or the local stack.
func (c *Context) Has(name symbol.Symbol) bool {
	if _, ok := c.global.Rule(name); ok {
		return true
	}
	for i := len(c.local) - 1; i >= 0; i-- {
		if c.local[i].Equal(name) {
			return true
		}
	}
	return false
}

// HasAll reports whether every name in names is present.
func (c *Context) HasAll(names []symbol.Symbol) bool {
	for _, n := range names {
		if !c.Has(n) {
			return false
		}
	}
	return true
}

// StructureError reports a malformed grammar: a duplicate rule, an
// unknown rule, or a rule with no active productions under some depth
// limit/context.
type StructureError struct {
	RuleName string
	Msg      string
}

func (e *StructureError) Error() string {
	return fmt.Sprintf("grammar: rule %q: %s", e.RuleName, e.Msg)
}

// Grammar is a set of named Rules plus a factory for the Atoms that
// populate their Productions.
type Grammar struct {
	rules    map[string]*Rule
	rootRefs map[string]*Ref
}

// New returns an empty Grammar.
func New() *Grammar {
	return &Grammar{rules: make(map[string]*Rule), rootRefs: make(map[string]*Ref)}
}

// Sym, Bool, Int64, Blob, and Str are factories for literal Atoms.
func (g *Grammar) Sym(s symbol.Symbol) *Lit    { return &Lit{Value: value.Sym(s)} }
func (g *Grammar) Bool(b bool) *Lit            { return &Lit{Value: value.Bool(b)} }
func (g *Grammar) Int64(i int64) *Lit          { return &Lit{Value: value.Int64(i)} }
func (g *Grammar) Blob(b []byte) *Lit          { return &Lit{Value: value.Blob(b)} }
func (g *Grammar) Str(s string) *Lit           { return &Lit{Value: value.Str(s)} }

// Ref is a factory for nonterminal Atoms referencing rule, optionally
// extending the local context with ctxExt while the reference's subtree
// is expanded.
func (g *Grammar) Ref(rule corpus.RuleName, ctxExt ...symbol.Symbol) *Ref {
	return newRef(rule, ctxExt)
}

// AddRule registers a named Rule. It is an error to register the same
// name twice.
func (g *Grammar) AddRule(name corpus.RuleName, productions ...Production) error {
	key := name.String()
	if _, exists := g.rules[key]; exists {
		return &StructureError{RuleName: key, Msg: "duplicate rule addition"}
	}
	g.rules[key] = &Rule{Productions: productions}
	g.rootRefs[key] = newRef(name, nil)
	return nil
}

func (g *Grammar) getRootRef(rule corpus.RuleName) (*Ref, error) {
	r, ok := g.rootRefs[rule.String()]
	if !ok {
		return nil, &StructureError{RuleName: rule.String(), Msg: "unknown rule name"}
	}
	return r, nil
}

func (g *Grammar) getProductions(rule corpus.RuleName) ([]Production, error) {
	r, ok := g.rules[rule.String()]
	if !ok {
		return nil, &StructureError{RuleName: rule.String(), Msg: "rule not found"}
	}
	if len(r.Productions) == 0 {
		return nil, &StructureError{RuleName: rule.String(), Msg: "rule has no productions"}
	}
	return r.Productions, nil
}

// getActiveProductions returns every Production of rule that is active
// under the given depth limit and Context: at depthLimit == 1,
// Productions containing a Ref are excluded (to force termination);
// among the rest, only Productions whose CtxReq is fully satisfied by
// ctx are returned.
func (g *Grammar) getActiveProductions(rule corpus.RuleName, depthLimit int, ctx *Context) ([]*Production, error) {
	prods, err := g.getProductions(rule)
	if err != nil {
		return nil, err
	}
	var active []*Production
	skippedDueToRefs := false
	for i := range prods {
		p := &prods[i]
		if depthLimit == 1 && p.hasRefs {
			skippedDueToRefs = true
			continue
		}
		if ctx.HasAll(p.CtxReq) {
			active = append(active, p)
		}
	}
	if len(active) == 0 {
		if skippedDueToRefs {
			return nil, &StructureError{RuleName: rule.String(), Msg: "needs at least one nonterminal production"}
		}
		return nil, &StructureError{RuleName: rule.String(), Msg: "no active productions found"}
	}
	return active, nil
}
