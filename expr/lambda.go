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

package expr

// paramSentinelKey stands in for a bound parameter's own id while hashing a
// lambda body, so two lambdas differing only in the formal parameter's id
// still hash identically (spec.md §4.1.3).
const paramSentinelKey = ^uint64(0)

// Lambda builds lambda(param, body). Its hash is computed once, eagerly, by
// a DAG traversal of body with param's id replaced by a sentinel (spec.md
// §4.1.3); unique-table lookup then also runs alphaEqual against candidates
// sharing that hash, so two lambdas that are alpha-equivalent but use
// distinct formal parameters are shared as one node.
func (m *Manager) Lambda(param, body Ref) Ref {
	pn := param.Node()
	if pn.kind != KindParam {
		fatalf("lambda requires a param as its first operand, got %s", pn.kind)
	}
	bodyHash := m.lambdaBodyHash(pn.id, body, make(map[int64]uint64))
	h := m.hashLambda(bodyHash)
	sort := FunSort([]Sort{pn.sort}, body.Node().sort)

	if n := m.unique.find(h, func(n *Node) bool {
		return n.kind == KindLambda && n.lambdaHash == bodyHash &&
			m.alphaEqual(n.children[0].Node(), n.children[1], pn, body)
	}); n != nil {
		m.Stats.UniqueHits++
		n.refCount++
		return Ref{node: n}
	}
	m.Stats.UniqueMisses++
	n := &Node{
		kind:           KindLambda,
		sort:           sort,
		arity:          2,
		lambdaHash:     bodyHash,
		lambdaBoolBody: body.Node().sort.Kind == SortBool,
	}
	n.lambdaBelow = true
	m.register(n)
	n.refCount = 1
	m.connectChild(n, 0, param)
	m.connectChild(n, 1, body)
	m.unique.insert(h, n)
	m.lambdas = append(m.lambdas, n)
	return Ref{node: n}
}

// lambdaBodyHash walks body, memoized by node id (it is a DAG, not a tree),
// reusing hashConst for constants and otherwise combining child hashes with
// the same fixed primes and siphash as hashChildren/hashSlice (by its own
// formula, so body hashes are only comparable with each other). A reference
// to paramID contributes paramSentinelKey instead of its real id, and a
// nested lambda's own cached hash is reused directly rather than
// re-traversed.
func (m *Manager) lambdaBodyHash(paramID int64, r Ref, memo map[int64]uint64) uint64 {
	n := r.Node()
	key := n.id
	if r.Inverted() {
		key = -key - 1 // distinguish polarity in the memo key space
	}
	if h, ok := memo[key]; ok {
		return h
	}
	var h uint64
	switch {
	case n.kind == KindParam && n.id == paramID:
		h = paramSentinelKey
	case n.kind == KindBvConst:
		h = m.hashConst(n.constant)
	case n.kind == KindLambda:
		h = m.hashLambda(n.lambdaHash)
	case n.kind == KindSlice:
		childHash := m.lambdaBodyHash(paramID, n.Child(0), memo)
		h = m.siphash(childHash) ^ uint64(n.sliceUpper)*hashPrime1 ^ uint64(n.sliceLower)*hashPrime2
	default:
		acc := uint64(n.kind) * hashPrime3
		for i := 0; i < int(n.arity); i++ {
			c := n.Child(i)
			ch := m.lambdaBodyHash(paramID, c, memo)
			if c.Inverted() {
				ch = ^ch
			}
			acc = acc*hashPrime1 + ch
		}
		h = m.siphash(acc)
	}
	if r.Inverted() {
		h = ^h
	}
	memo[key] = h
	return h
}

// alphaEqual compares two lambda bodies for structural equality under a
// renaming of p1's id to p2's id, curried nested lambdas zipping their
// parameter lists (spec.md §4.1.3).
func (m *Manager) alphaEqual(p1 *Node, body1 Ref, p2 *Node, body2 Ref) bool {
	env := map[int64]int64{p1.id: p2.id}
	return alphaEqualRef(body1, body2, env)
}

func alphaEqualRef(a, b Ref, env map[int64]int64) bool {
	an, bn := a.Node(), b.Node()
	if a.Inverted() != b.Inverted() {
		return false
	}
	if an.kind == KindParam && bn.kind == KindParam {
		if mapped, ok := env[an.id]; ok {
			return mapped == bn.id
		}
		return an.id == bn.id
	}
	if an.kind != bn.kind || an.arity != bn.arity || !an.sort.Equal(bn.sort) {
		return false
	}
	switch an.kind {
	case KindBvConst:
		return an.constant.Equal(bn.constant)
	case KindSlice:
		au, al := an.sliceUpper, an.sliceLower
		bu, bl := bn.sliceUpper, bn.sliceLower
		if au != bu || al != bl {
			return false
		}
	case KindBvVar, KindUF:
		return an == bn
	case KindLambda:
		ap, bp := an.children[0].Node(), bn.children[0].Node()
		nested := make(map[int64]int64, len(env)+1)
		for k, v := range env {
			nested[k] = v
		}
		nested[ap.id] = bp.id
		return alphaEqualRef(an.children[1], bn.children[1], nested)
	}
	for i := 0; i < int(an.arity); i++ {
		if !alphaEqualRef(an.Child(i), bn.Child(i), env) {
			return false
		}
	}
	return true
}

// Apply builds apply(fun, args); fun must carry a function sort, and the
// result sort is fun's codomain (spec.md §3.1's operator table).
func (m *Manager) Apply(fun, args Ref) Ref {
	fs := fun.Node().sort
	if fs.Kind != SortFun || fs.Codomain == nil {
		fatalf("apply requires a function operand, got %v", fs)
	}
	r, _ := m.internNode(KindApply, *fs.Codomain, []Ref{fun, args}, 0, 0)
	return r
}

// BindingLambda returns the lambda that introduces param, if param is a
// bound formal parameter reachable through a parent edge to a lambda's slot
// 0 (spec.md §4.4's "binding lambda of a param" accessor).
func BindingLambda(param Ref) (Ref, bool) {
	n := param.Node()
	for _, e := range n.parents {
		if e.parent.kind == KindLambda && e.slot == 0 {
			return Ref{node: e.parent}, true
		}
	}
	return Ref{}, false
}
