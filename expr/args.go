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

// Args folds k >= 1 leaf arguments into a right-leaning chain of args nodes
// of arity <= 3, each node's third slot (when present) itself an args node
// (spec.md §4.1.4). This bounds child-slot storage to the same three-slot
// layout every other kind uses.
func (m *Manager) Args(leaves []Ref) Ref {
	if len(leaves) == 0 {
		fatalf("args requires at least one leaf")
	}
	return m.argsChain(leaves)
}

// argsChain builds the tuple chain right-to-left: the tail is folded first
// so the deepest args node is the one holding the last leaves, matching the
// "third slot may itself be an args node" shape.
func (m *Manager) argsChain(leaves []Ref) Ref {
	if len(leaves) <= 3 {
		return m.argsNode(leaves)
	}
	// Two leaves go in this node's first two slots; the rest recurse into
	// the third slot, yielding ceil((k-1)/2) nodes total for k >= 2 leaves
	// (a single leaf still gets one node).
	rest := m.argsChain(leaves[2:])
	return m.argsNode([]Ref{leaves[0], leaves[1], rest})
}

func (m *Manager) argsNode(children []Ref) Ref {
	r, _ := m.internNode(KindArgs, argsSort(children), children, 0, 0)
	return r
}

// argsSort gives an args node a function sort over its children's sorts,
// with no codomain (it is a pure grouping node, never applied directly).
func argsSort(children []Ref) Sort {
	domain := make([]Sort, len(children))
	for i, c := range children {
		domain[i] = c.Node().sort
	}
	return Sort{Kind: SortFun, Domain: domain}
}

// ArgValues flattens an args node (or a bare non-args leaf) back into its
// leaf references, in original left-to-right order.
func ArgValues(r Ref) []Ref {
	n := r.Node()
	if n.kind != KindArgs {
		return []Ref{r}
	}
	out := make([]Ref, 0, int(n.arity))
	for i := 0; i < int(n.arity); i++ {
		c := n.Child(i)
		if i == int(n.arity)-1 && c.Node().kind == KindArgs {
			out = append(out, ArgValues(c)...)
		} else {
			out = append(out, c)
		}
	}
	return out
}
