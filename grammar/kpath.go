package grammar

import (
	"strings"

	"photesthesis/corpus"
)

// KPath is a path of exactly k Atoms through the grammar, used to
// generate grammar coverage as in Havrikov & Zeller (ASE 2019,
// https://doi.org/10.1109/ASE.2019.00027).
type KPath []Atom

func pathKey(path KPath) string {
	keys := make([]string, len(path))
	for i, a := range path {
		keys[i] = a.atomKey()
	}
	return strings.Join(keys, "\x1f")
}

// kpathSet emulates std::set<KPath>: a set of Atom sequences, keyed by
// pointer-identity of their elements (Go slices aren't comparable, so a
// plain map can't be keyed on them directly).
type kpathSet map[string]KPath

func (s kpathSet) add(p KPath)            { s[pathKey(p)] = p }
func (s kpathSet) has(p KPath) bool       { _, ok := s[pathKey(p)]; return ok }
func (s kpathSet) remove(p KPath)         { delete(s, pathKey(p)) }
func (s kpathSet) union(other kpathSet) {
	for k, v := range other {
		s[k] = v
	}
}

// expandKPathPrefix returns the set of k-paths starting from prefix. An
// anchor-less prefix must end in a Ref; earlier steps of a path must
// extend through Refs, but the final step may end on a literal.
// pathRoots tracks which Refs have already had a k-path started from
// them, a monotone set that guarantees termination on cyclic grammars.
func (g *Grammar) expandKPathPrefix(k int, prefix KPath, ctx *Context, pathRoots map[*Ref]bool) (kpathSet, error) {
	if len(prefix) == k {
		res := kpathSet{}
		res.add(prefix)
		return res, nil
	}
	anchor, ok := prefix[len(prefix)-1].(*Ref)
	if !ok {
		panic("grammar: k-path prefix must end in a Ref unless already complete")
	}
	prods, err := g.getActiveProductions(anchor.RuleName, k, ctx)
	if err != nil {
		return nil, err
	}
	res := kpathSet{}
	for _, prod := range prods {
		for _, ext := range prod.Atoms {
			ref, isRef := ext.(*Ref)
			if isRef {
				ctx.PushSet(ref.CtxExt)
			}
			// Non-ref (literal) extensions are only accepted at the last
			// step of a k-path; earlier steps require a Ref.
			if isRef || len(prefix) == k-1 {
				extended := make(KPath, len(prefix), len(prefix)+1)
				copy(extended, prefix)
				extended = append(extended, ext)
				expanded, err := g.expandKPathPrefix(k, extended, ctx, pathRoots)
				if err != nil {
					if isRef {
						ctx.Pop(len(ref.CtxExt))
					}
					return nil, err
				}
				res.union(expanded)
			}
			// If this Ref hasn't been the start of its own k-path exploration
			// yet, also explore a fresh path rooted at it.
			if isRef && !pathRoots[ref] {
				pathRoots[ref] = true
				restarted := KPath{ext}
				expanded, err := g.expandKPathPrefix(k, restarted, ctx, pathRoots)
				if err != nil {
					ctx.Pop(len(ref.CtxExt))
					return nil, err
				}
				res.union(expanded)
			}
			if isRef {
				ctx.Pop(len(ref.CtxExt))
			}
		}
	}
	return res, nil
}

// generateKPathSet returns every k-path rooted at root's grammar, in the
// parameter environment specs.
func (g *Grammar) generateKPathSet(k int, root corpus.RuleName, specs corpus.ParamSpecs) (kpathSet, error) {
	rootRef, err := g.getRootRef(root)
	if err != nil {
		return nil, err
	}
	pathRoots := map[*Ref]bool{rootRef: true}
	ctx := NewContext(specs)
	return g.expandKPathPrefix(k, KPath{rootRef}, ctx, pathRoots)
}
