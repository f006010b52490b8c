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

import (
	"fmt"

	"github.com/marcogario/boolector/bv"
)

func fatalf(format string, args ...any) {
	panic(fmt.Sprintf("expr: "+format, args...))
}

// parentEdge records that node.children[slot] == the node this edge is
// attached to; it is the per-child replacement for the source's intrusive
// doubly-linked parent list (spec.md §9, "cyclic parent lists").
type parentEdge struct {
	parent *Node
	slot   uint8
}

// Node is one node of the hash-consed expression DAG. Nodes are never
// mutated except through the manager's builders, refcounting, and rewrite
// (proxy conversion) operations.
type Node struct {
	id       int64
	kind     Kind
	sort     Sort
	children [3]Ref
	arity    uint8
	refCount int64
	hashVal  uint64 // cached unique-table key, set by uniqueTable.insert

	parameterized bool
	lambdaBelow   bool
	applyBelow    bool
	isArray       bool

	// simplified, when non-nil, forwards reads to another (possibly
	// inverted) node: spec.md §3.3's proxy state. Every accessor in this
	// package chases it first, resolving the "open question: proxy
	// forwarding discipline" of spec.md §9 by normalizing at every read
	// boundary rather than only in some readers.
	simplified Ref

	symbol string

	constant bv.Value // valid iff kind == KindBvConst; always the even-normalized bit pattern

	sliceUpper, sliceLower uint32 // valid iff kind == KindSlice

	lambdaHash     uint64         // cached at creation, valid iff kind == KindLambda
	lambdaBoolBody bool           // true iff a lambda's body sort is Bool (spec.md §9 apply-boolean open question)
	paramIDs       map[int64]bool // set of parameter ids this node's subtree depends on, valid iff parameterized

	parents []parentEdge
}

func (n *Node) isProxy() bool { return n.simplified.node != nil }

// resolve follows a node's proxy chain, accumulating the net inversion.
func resolve(n *Node, inverted bool) (*Node, bool) {
	for n != nil && n.isProxy() {
		inverted = inverted != n.simplified.inverted
		n = n.simplified.node
	}
	return n, inverted
}

// realAddr strips proxy forwarding, returning the node ultimately backing n
// (spec.md §3.2's real_addr accessor).
func realAddr(n *Node) *Node {
	r, _ := resolve(n, false)
	return r
}

// Ref is a tagged reference to a Node: a boolean negation flag plus the
// node pointer, replacing the source's tagged-pointer / slot encoding with
// a small struct (spec.md §9).
type Ref struct {
	node     *Node
	inverted bool
}

// Nil reports whether r has no underlying node.
func (r Ref) Nil() bool { return r.node == nil }

// Node returns r's real (proxy-resolved) target node.
func (r Ref) Node() *Node {
	n, _ := resolve(r.node, r.inverted)
	return n
}

// Inverted reports whether r carries the negation tag, after following any
// proxy chain and composing with proxy-introduced polarity.
func (r Ref) Inverted() bool {
	_, inv := resolve(r.node, r.inverted)
	return inv
}

// Not returns the logical/bitwise negation of r. Because negation is a tag
// on the reference rather than a node, Not never allocates.
func Not(r Ref) Ref { return Ref{node: r.node, inverted: !r.inverted} }

// RefOf wraps a bare node in a non-inverted reference, for callers (outside
// this package) that hold a *Node directly rather than a Ref — e.g. the
// propagation engine's cone walk, which discovers nodes via parent lists.
func RefOf(n *Node) Ref { return Ref{node: n} }

func (n *Node) ID() int64           { n = realAddr(n); return n.id }
func (n *Node) Kind() Kind          { n = realAddr(n); return n.kind }
func (n *Node) Sort() Sort          { n = realAddr(n); return n.sort }
func (n *Node) Arity() uint8        { n = realAddr(n); return n.arity }
func (n *Node) Symbol() string      { n = realAddr(n); return n.symbol }
func (n *Node) RefCount() int64     { n = realAddr(n); return n.refCount }
func (n *Node) Parameterized() bool { n = realAddr(n); return n.parameterized }
func (n *Node) LambdaBelow() bool   { n = realAddr(n); return n.lambdaBelow }
func (n *Node) ApplyBelow() bool    { n = realAddr(n); return n.applyBelow }
func (n *Node) IsArray() bool       { n = realAddr(n); return n.isArray }

// Child returns the i'th child reference, chasing proxies on n.
func (n *Node) Child(i int) Ref {
	n = realAddr(n)
	c := n.children[i]
	node, inv := resolve(c.node, c.inverted)
	return Ref{node: node, inverted: inv}
}

// SliceBounds returns the [upper:lower] bounds of a KindSlice node.
func (n *Node) SliceBounds() (upper, lower uint32) {
	n = realAddr(n)
	return n.sliceUpper, n.sliceLower
}

// ConstValue returns the effective (de-inverted) constant carried by r,
// which must refer to a KindBvConst node.
func (r Ref) ConstValue() bv.Value {
	n := r.Node()
	if n.kind != KindBvConst {
		fatalf("ConstValue called on non-constant node %d (%s)", n.id, n.kind)
	}
	v := n.constant
	if r.Inverted() {
		v = bv.Not(v)
	}
	return v
}

func (r Ref) String() string {
	n := r.Node()
	prefix := ""
	if r.Inverted() {
		prefix = "~"
	}
	return fmt.Sprintf("%s%s#%d", prefix, n.kind, n.id)
}
