package grammar

import (
	"sort"

	"photesthesis/corpus"
	"photesthesis/value"
)

// valueSet is an ordered, deduplicated set of Values, emulating
// std::set<Value>'s combination of dedup-on-insert and a stable
// iteration order (by Value.Less) that later code relies on to pick a
// deterministic "smallest" element.
type valueSet []value.Value

func (s *valueSet) add(v value.Value) {
	idx := sort.Search(len(*s), func(i int) bool { return !(*s)[i].Less(v) })
	if idx < len(*s) && (*s)[idx].Equal(v) {
		return
	}
	*s = append(*s, value.Value{})
	copy((*s)[idx+1:], (*s)[idx:])
	(*s)[idx] = v
}

func (s *valueSet) addAll(other valueSet) {
	for _, v := range other {
		s.add(v)
	}
}

// prefixLess orders Value slices lexicographically, used to keep
// prefixSet deterministic.
func prefixLess(a, b []value.Value) bool {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i].Less(b[i]) {
			return true
		}
		if b[i].Less(a[i]) {
			return false
		}
	}
	return len(a) < len(b)
}

func prefixEqual(a, b []value.Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// prefixSet is an ordered, deduplicated set of Value prefixes.
type prefixSet [][]value.Value

func (s *prefixSet) add(p []value.Value) {
	idx := sort.Search(len(*s), func(i int) bool { return !prefixLess((*s)[i], p) })
	if idx < len(*s) && prefixEqual((*s)[idx], p) {
		return
	}
	*s = append(*s, nil)
	copy((*s)[idx+1:], (*s)[idx:])
	(*s)[idx] = p
}

// cyclicZip calls combine(i, j) for every pair needed to "cyclically
// zip" a collection of size n against one of size m: it walks both
// indices in lockstep, wrapping each back to 0 independently, until both
// have wrapped at least once. This is the combining primitive the
// original library uses both to combine atom-expansions within a
// production and to combine per-param coverings across a ParamSpecs,
// growing the result set without forming a full cartesian product.
func cyclicZip(n, m int, combine func(i, j int)) {
	if n == 0 || m == 0 {
		panic("grammar: cyclicZip requires both inputs nonempty")
	}
	i, j := 0, 0
	cycledI, cycledJ := false, false
	for !(cycledI && cycledJ) {
		combine(i, j)
		i++
		j++
		if i == n {
			cycledI = true
			i = 0
		}
		if j == m {
			cycledJ = true
			j = 0
		}
	}
}

func extendPrefixesByCycling(vecs prefixSet, ext valueSet) prefixSet {
	var res prefixSet
	cyclicZip(len(vecs), len(ext), func(i, j int) {
		tmp := make([]value.Value, len(vecs[i]), len(vecs[i])+1)
		copy(tmp, vecs[i])
		tmp = append(tmp, ext[j])
		res.add(tmp)
	})
	return res
}

// paramsLess orders Params lexicographically by (name, value) pairs in
// their existing order, which is consistent across every Params built
// from the same ParamSpecs.
func paramsLess(a, b corpus.Params) bool {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i].Name.Less(b[i].Name) {
			return true
		}
		if b[i].Name.Less(a[i].Name) {
			return false
		}
		if a[i].Value.Less(b[i].Value) {
			return true
		}
		if b[i].Value.Less(a[i].Value) {
			return false
		}
	}
	return len(a) < len(b)
}

func paramsEqual(a, b corpus.Params) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Name.Equal(b[i].Name) || !a[i].Value.Equal(b[i].Value) {
			return false
		}
	}
	return true
}

// paramsSet is an ordered, deduplicated set of Params.
type paramsSet []corpus.Params

func (s *paramsSet) add(p corpus.Params) {
	idx := sort.Search(len(*s), func(i int) bool { return !paramsLess((*s)[i], p) })
	if idx < len(*s) && paramsEqual((*s)[idx], p) {
		return
	}
	*s = append(*s, nil)
	copy((*s)[idx+1:], (*s)[idx:])
	(*s)[idx] = p
}

func extendParamsByCycling(params paramsSet, param corpus.ParamName, ext valueSet) paramsSet {
	var res paramsSet
	cyclicZip(len(params), len(ext), func(i, j int) {
		tmp := make(corpus.Params, len(params[i]), len(params[i])+1)
		copy(tmp, params[i])
		tmp.Add(param, ext[j])
		res.add(tmp)
	})
	return res
}

// refPath is the chain of Refs expanded so far, from the grammar's root
// down to the rule currently being expanded.
type refPath []*Ref

// kPathCoveringOrMinimalExpansion returns a pair of Value sets -- at
// least one of which is nonempty -- that are expansions of the rule
// named by path's last element. The first set holds expansions that are
// k-path-covering; the second (of size 0 or 1) holds the smallest
// possible non-covering expansion, used only when no covering expansion
// exists. paths is drained of any k-path it manages to cover.
func (g *Grammar) kPathCoveringOrMinimalExpansion(path refPath, depthLimit int, ctx *Context, k int, paths kpathSet) (valueSet, valueSet, error) {
	if depthLimit == 0 {
		return nil, nil, &StructureError{Msg: "depth limit reached zero"}
	}

	var kpathPrefix []Atom
	if len(path) >= k-1 {
		start := len(path) - (k - 1)
		kpathPrefix = make([]Atom, k-1)
		for i := 0; i < k-1; i++ {
			kpathPrefix[i] = path[start+i]
		}
	}

	rule := path[len(path)-1].RuleName
	prods, err := g.getActiveProductions(rule, depthLimit, ctx)
	if err != nil {
		return nil, nil, err
	}

	var covering, nonCovering valueSet
	for _, prod := range prods {
		var prefixes prefixSet
		prefixes.add([]value.Value{value.Sym(rule)})
		productionCoversSomeKPath := false

		candidate := make([]Atom, len(kpathPrefix)+1)
		copy(candidate, kpathPrefix)
		for _, atom := range prod.Atoms {
			candidate[len(kpathPrefix)] = atom
			if paths.has(KPath(candidate)) {
				paths.remove(KPath(candidate))
				productionCoversSomeKPath = true
			}
		}

		for _, atom := range prod.Atoms {
			var atomExpansion valueSet
			switch a := atom.(type) {
			case *Lit:
				atomExpansion.add(a.Value)
			case *Ref:
				ctx.PushSet(a.CtxExt)
				subPath := make(refPath, len(path)+1)
				copy(subPath, path)
				subPath[len(path)] = a
				subCovering, subNonCovering, err := g.kPathCoveringOrMinimalExpansion(subPath, depthLimit-1, ctx, k, paths)
				ctx.Pop(len(a.CtxExt))
				if err != nil {
					return nil, nil, err
				}
				if len(subCovering) > 0 {
					atomExpansion = subCovering
					productionCoversSomeKPath = true
				} else {
					atomExpansion = subNonCovering
				}
			default:
				panic("grammar: unknown Atom subtype")
			}
			prefixes = extendPrefixesByCycling(prefixes, atomExpansion)
		}

		if productionCoversSomeKPath {
			for _, pfx := range prefixes {
				covering.add(value.List(pfx...))
			}
		} else {
			for _, pfx := range prefixes {
				nonCovering.add(value.List(pfx...))
			}
		}
	}

	if len(covering) > 0 {
		nonCovering = nil
	} else if len(nonCovering) > 1 {
		nonCovering = nonCovering[:1]
	}
	return covering, nonCovering, nil
}

// kPathCovering returns a minimal-ish set of Values for rule that
// together cover every k-path reachable from it, growing the depth
// limit whenever the current one can't produce any covering expansion.
func (g *Grammar) kPathCovering(rule corpus.RuleName, k int, specs corpus.ParamSpecs) (valueSet, error) {
	ctx := NewContext(specs)
	paths, err := g.generateKPathSet(k, rule, specs)
	if err != nil {
		return nil, err
	}
	rootRef, err := g.getRootRef(rule)
	if err != nil {
		return nil, err
	}
	var res valueSet
	depthLimit := k
	for len(paths) > 0 {
		covering, _, err := g.kPathCoveringOrMinimalExpansion(refPath{rootRef}, depthLimit, ctx, k, paths)
		if err != nil {
			return nil, err
		}
		if len(covering) == 0 {
			depthLimit++
			continue
		}
		res.addAll(covering)
	}
	return res, nil
}

// kPathCoverings generates a covering Params set for every parameter in
// specs, combined by cyclical zip rather than a full cartesian product.
func (g *Grammar) kPathCoverings(k int, specs corpus.ParamSpecs) (paramsSet, error) {
	var res paramsSet
	for _, spec := range specs {
		vals, err := g.kPathCovering(spec.Rule, k, specs)
		if err != nil {
			return nil, err
		}
		if len(res) == 0 {
			for _, v := range vals {
				p := corpus.Params{}
				p.Add(spec.Name, v)
				res.add(p)
			}
		} else {
			res = extendParamsByCycling(res, spec.Name, vals)
		}
	}
	return res, nil
}

// PopulatePlansFromKPathCoverings builds the set of Plans that together
// cover every k-path reachable from every parameter rule in specs.
func (g *Grammar) PopulatePlansFromKPathCoverings(tname corpus.TestName, specs corpus.ParamSpecs, k int) ([]corpus.Plan, error) {
	pset, err := g.kPathCoverings(k, specs)
	if err != nil {
		return nil, err
	}
	plans := make([]corpus.Plan, 0, len(pset))
	for _, p := range pset {
		plans = append(plans, corpus.Plan{TestName: tname, Params: p})
	}
	sort.Slice(plans, func(i, j int) bool { return plans[i].Less(plans[j]) })
	return plans, nil
}
