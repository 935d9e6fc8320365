package grammar

import (
	"math/rand"

	"photesthesis/corpus"
	"photesthesis/value"
)

// randomValueFromRule returns a fully-expanded random Value produced by
// rule: a list headed by the rule's own name, followed by the expansion
// of one uniformly-chosen active production's atoms.
func (g *Grammar) randomValueFromRule(rule corpus.RuleName, rnd *rand.Rand, depthLimit int, ctx *Context) (value.Value, error) {
	if depthLimit == 0 {
		return value.Value{}, &StructureError{RuleName: rule.String(), Msg: "depth limit reached zero"}
	}
	prods, err := g.getActiveProductions(rule, depthLimit, ctx)
	if err != nil {
		return value.Value{}, err
	}
	prod := prods[rnd.Intn(len(prods))]

	vals := []value.Value{value.Sym(rule)}
	for _, atom := range prod.Atoms {
		switch a := atom.(type) {
		case *Lit:
			vals = append(vals, a.Value)
		case *Ref:
			ctx.PushSet(a.CtxExt)
			v, err := g.randomValueFromRule(a.RuleName, rnd, depthLimit-1, ctx)
			ctx.Pop(len(a.CtxExt))
			if err != nil {
				return value.Value{}, err
			}
			vals = append(vals, v)
		default:
			panic("grammar: unknown Atom subtype")
		}
	}
	return value.List(vals...), nil
}

// RandomlyPopulatePlan builds a Plan for tname by generating a random
// Value for every parameter in params, each bounded by depthLimit.
func (g *Grammar) RandomlyPopulatePlan(tname corpus.TestName, params corpus.ParamSpecs, rnd *rand.Rand, depthLimit int) (corpus.Plan, error) {
	p := corpus.NewPlan(tname)
	for _, spec := range params {
		ctx := NewContext(params)
		v, err := g.randomValueFromRule(spec.Rule, rnd, depthLimit, ctx)
		if err != nil {
			return corpus.Plan{}, err
		}
		p.AddParam(spec.Name, v)
	}
	return p, nil
}
