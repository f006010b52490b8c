// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package propagate

import (
	"time"

	"golang.org/x/exp/slices"

	"github.com/marcogario/boolector/bv"
	"github.com/marcogario/boolector/expr"
)

// updateCone is spec.md §4.2.7: given a single (input, new value) move,
// discover the cone of ancestors by walking up the parent lists, install the
// new input assignment, recompute every cone node bottom-up, maintain the
// roots set, and rescore every boolean cone node.
func (e *Engine) updateCone(input *expr.Node, newVal bv.Value) {
	start := time.Now()
	defer func() { e.stats.ResetTime += time.Since(start) }()

	cone := e.discoverCone(input)

	e.mo.set(input, newVal)

	slices.SortFunc(cone, func(a, b *expr.Node) int {
		switch {
		case a.ID() < b.ID():
			return -1
		case a.ID() > b.ID():
			return 1
		default:
			return 0
		}
	})

	modelStart := time.Now()
	for _, n := range cone {
		if n.ID() == input.ID() {
			continue
		}
		delete(e.mo.bv, n.ID())
		delete(e.mo.bv, -n.ID())
		e.mo.set(n, e.modelGetBV(expr.RefOf(n)))
	}
	e.stats.ModelGenTime += time.Since(modelStart)

	scoreStart := time.Now()
	delete(e.mo.score, input.ID())
	delete(e.mo.score, -input.ID())
	if input.Sort().BitWidth() == 1 {
		e.score(expr.RefOf(input))
	}
	for _, n := range cone {
		if n.Sort().BitWidth() != 1 {
			continue
		}
		delete(e.mo.score, n.ID())
		delete(e.mo.score, -n.ID())
		e.score(expr.RefOf(n)) // spec.md §4.2.7 step 6: rescore every visited boolean node
	}
	e.refreshRoots(input)
	for _, n := range cone {
		if n.Sort().BitWidth() == 1 {
			e.refreshRoots(n)
		}
	}
	e.stats.ScoreTime += time.Since(scoreStart)
}

// discoverCone runs an explicit-stack (depth-first) walk up input's parent lists,
// collecting every reachable ancestor (spec.md §4.2.7 step 1).
func (e *Engine) discoverCone(input *expr.Node) []*expr.Node {
	visited := map[int64]bool{input.ID(): true}
	var cone []*expr.Node
	stack := []*expr.Node{input}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, p := range cur.Parents() {
			if visited[p.ID()] {
				continue
			}
			visited[p.ID()] = true
			cone = append(cone, p)
			stack = append(stack, p)
		}
	}
	return cone
}

// modelGetBV is spec.md §6.3's model_get_bv: returns n's value, computing
// and caching it recursively if absent.
func (e *Engine) modelGetBV(r expr.Ref) bv.Value {
	n := r.Node()
	if n.IsBvConst() {
		return r.ConstValue()
	}
	if v, ok := e.mo.get(r); ok {
		return v
	}
	if n.IsBvVar() || n.IsParam() {
		v := e.rng.Random(n.Sort().BitWidth())
		e.mo.set(n, v)
		if r.Inverted() {
			return bv.Not(v)
		}
		return v
	}
	arity := int(n.Arity())
	vals := make([]bv.Value, arity)
	for i := 0; i < arity; i++ {
		vals[i] = e.modelGetBV(n.Child(i))
	}
	upper, lower := n.SliceBounds()
	v := expr.Eval(n.Kind(), vals, upper, lower)
	e.mo.set(n, v)
	if r.Inverted() {
		return bv.Not(v)
	}
	return v
}

// refreshRoots applies spec.md §4.2.7 step 2's (a)/(b) rules for a single
// node n that may be a root or under an assumption. The asserted reference
// (not just the node) is looked up so a negated constraint is judged on its
// own polarity rather than the underlying node's.
func (e *Engine) refreshRoots(n *expr.Node) {
	r, ok := e.rootReference(n)
	if !ok {
		return
	}
	v := e.modelGetBV(r)
	falsified := !v.GetBit(0)
	if falsified {
		e.mo.addRoot(n.ID())
	} else {
		e.mo.removeRoot(n.ID())
	}
}

func (e *Engine) rootReference(n *expr.Node) (expr.Ref, bool) {
	if r, ok := e.m.UnsynthesizedConstraints()[n.ID()]; ok {
		return r, true
	}
	if r, ok := e.m.Assumptions()[n.ID()]; ok {
		return r, true
	}
	return expr.Ref{}, false
}
