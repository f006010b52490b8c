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

// connectChild wires parent.children[slot] to child, bumping child's
// refcount and splicing a parent-list entry (spec.md §3.2, §3.3).
func (m *Manager) connectChild(parent *Node, slot uint8, child Ref) {
	parent.children[slot] = child
	cn := child.Node()
	cn.refCount++
	cn.parents = append(cn.parents, parentEdge{parent: parent, slot: slot})
}

// Copy bumps r's refcount and returns r, modeling an external handle taking
// ownership (spec.md §3.3, §6.1).
func (m *Manager) Copy(r Ref) Ref {
	n := r.Node()
	if n.refCount >= (1 << 62) {
		fatalf("refcount overflow on node %d", n.id)
	}
	n.refCount++
	return r
}

// Release decrements r's refcount; reaching zero recursively releases r's
// children via an explicit work-stack (never host-stack recursion, so a
// long DAG spine cannot overflow the goroutine stack, spec.md §4.1.5, §9).
func (m *Manager) Release(r Ref) {
	n := r.Node()
	stack := []*Node{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		cur.refCount--
		if cur.refCount > 0 {
			continue
		}
		m.destroy(cur, &stack)
	}
}

// destroy tears down a node whose refcount has reached zero: it leaves the
// unique table, unlinks itself from each child's parent list (pushing any
// child whose refcount consequently reaches zero back onto stack), releases
// its symbol binding, and removes it from the id table (spec.md §3.3,
// §4.1.5). UNIQUE/ERASED/DISCONNECTED/INVALID are not modeled as distinct
// states since Go's GC reclaims the struct once unreachable; this function
// performs the ERASED+DISCONNECTED work synchronously and the node is then
// simply unreferenced.
func (m *Manager) destroy(n *Node, stack *[]*Node) {
	if n.kind != KindBvVar && n.kind != KindParam && n.kind != KindUF {
		m.unique.remove(n)
	}
	for i := 0; i < int(n.arity); i++ {
		c := n.children[i]
		cn := c.Node()
		m.unlinkParent(cn, n, uint8(i), stack)
	}
	n.children = [3]Ref{}
	if n.symbol != "" {
		delete(m.symbols, n.symbol)
		delete(m.node2symbol, n.id)
	}
	if int(n.id) < len(m.byID) {
		m.byID[n.id] = nil
	}
	m.Stats.NodesReleased++
}

// unlinkParent removes the (parent, slot) edge from child's parent list and
// decrements child's refcount, pushing child onto stack if it reaches zero.
func (m *Manager) unlinkParent(child, parent *Node, slot uint8, stack *[]*Node) {
	for i, e := range child.parents {
		if e.parent == parent && e.slot == slot {
			child.parents = append(child.parents[:i], child.parents[i+1:]...)
			break
		}
	}
	child.refCount--
	if child.refCount <= 0 {
		*stack = append(*stack, child)
	}
}
