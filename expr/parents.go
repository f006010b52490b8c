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

// Parents returns every node that directly uses n as a child, each paired
// with the slot it occupies there (spec.md §4.1.6). This replaces the
// source's per-child doubly-linked list with a direct slice walk; callers
// doing cone-of-influence discovery (propagate) use this as their one-hop
// primitive and BFS outward themselves.
func (n *Node) Parents() []*Node {
	n = realAddr(n)
	out := make([]*Node, len(n.parents))
	for i, e := range n.parents {
		out[i] = e.parent
	}
	return out
}

// ApplyParents returns n's parents that are apply nodes, filtering the full
// parent list (spec.md §4.1.6's apply_parent_iterator).
func (n *Node) ApplyParents() []*Node {
	return filterParents(n, func(p *Node) bool { return p.kind == KindApply })
}

// LambdaParents returns n's parents that are lambda nodes (the
// lambda_parent_iterator of spec.md §4.1.6).
func (n *Node) LambdaParents() []*Node {
	return filterParents(n, func(p *Node) bool { return p.kind == KindLambda })
}

func filterParents(n *Node, keep func(*Node) bool) []*Node {
	n = realAddr(n)
	var out []*Node
	for _, e := range n.parents {
		if keep(e.parent) {
			out = append(out, e.parent)
		}
	}
	return out
}

// Kind predicates (spec.md §4.4), mirroring the source's is_and/is_bv_const/
// is_lambda/is_apply family.
func (n *Node) IsAnd() bool     { n = realAddr(n); return n.kind == KindAnd }
func (n *Node) IsBvConst() bool { n = realAddr(n); return n.kind == KindBvConst }
func (n *Node) IsBvVar() bool   { n = realAddr(n); return n.kind == KindBvVar }
func (n *Node) IsParam() bool   { n = realAddr(n); return n.kind == KindParam }
func (n *Node) IsUF() bool      { n = realAddr(n); return n.kind == KindUF }
func (n *Node) IsLambda() bool  { n = realAddr(n); return n.kind == KindLambda }
func (n *Node) IsApply() bool   { n = realAddr(n); return n.kind == KindApply }
func (n *Node) IsArgs() bool    { n = realAddr(n); return n.kind == KindArgs }
func (n *Node) IsSlice() bool   { n = realAddr(n); return n.kind == KindSlice }
func (n *Node) IsBool() bool    { n = realAddr(n); return n.sort.Kind == SortBool }

// LambdaBoolBody reports whether a lambda's body sort is Bool, cached at
// construction time (spec.md §4.3.3's apply-boolean rule; see smtdump).
func (n *Node) LambdaBoolBody() bool {
	n = realAddr(n)
	if n.kind != KindLambda {
		fatalf("LambdaBoolBody called on non-lambda node %d (%s)", n.id, n.kind)
	}
	return n.lambdaBoolBody
}

// LambdaBody returns a lambda node's body child (spec.md §4.4's lambda
// accessors).
func (n *Node) LambdaBody() Ref {
	n = realAddr(n)
	if n.kind != KindLambda {
		fatalf("LambdaBody called on non-lambda node %d (%s)", n.id, n.kind)
	}
	return n.Child(1)
}

// LambdaParam returns a lambda node's formal parameter child.
func (n *Node) LambdaParam() Ref {
	n = realAddr(n)
	if n.kind != KindLambda {
		fatalf("LambdaParam called on non-lambda node %d (%s)", n.id, n.kind)
	}
	return n.Child(0)
}
