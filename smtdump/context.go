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

// Package smtdump implements the SMT-LIB v2 printer of spec.md §4.3: a
// read-only, single-pass dump of a Solver Context's asserted constraints and
// assumptions to SMT-LIB v2 text, sharing repeated sub-terms through
// top-level define-funs the way vm/selector.go renders a projection list
// through a single buffered pass rather than building an intermediate tree.
package smtdump

import (
	"golang.org/x/exp/slices"

	"github.com/marcogario/boolector/expr"
)

// NumberFormat selects how bit-vector constants are rendered (spec.md
// §4.3.4's OUTPUT_NUMBER_FORMAT option).
type NumberFormat int

const (
	FormatBinary NumberFormat = iota
	FormatHex
	FormatDecimal
)

// context is the per-dump state of spec.md §4.3.1: which nodes are destined
// for output, which have already been emitted, which are bool-marked, the
// root set, the pretty-print id table, and the reference-count map derived
// from the single preparatory sweep. There is no constant-text cache: the
// printer formats each constant occurrence afresh.
type context struct {
	m      *expr.Manager
	format NumberFormat

	roots []expr.Ref // sorted by node id, the asserted constraints+assumptions

	refcount map[int64]int  // dump_refcount, spec.md §4.3.2
	boolean  map[int64]bool // spec.md §4.3.3
	shared   map[int64]bool // refcount > 1 and not a leaf/apply/args/parameterized term
	order    []*expr.Node   // post-order (children before parents) over the reachable set

	dumped   map[int64]string // node id -> the name it was define-fun'd/declare-fun'd under
	openLets int
}

// collectRoots gathers every currently-asserted constraint and assumption,
// sorted by node id for deterministic output (spec.md §4.3.6).
func collectRoots(m *expr.Manager) []expr.Ref {
	var roots []expr.Ref
	for _, r := range m.UnsynthesizedConstraints() {
		roots = append(roots, r)
	}
	for _, r := range m.SynthesizedConstraints() {
		roots = append(roots, r)
	}
	for _, r := range m.Assumptions() {
		roots = append(roots, r)
	}
	slices.SortFunc(roots, func(a, b expr.Ref) int {
		ai, bi := a.Node().ID(), b.Node().ID()
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		default:
			return 0
		}
	})
	return roots
}

// newContext builds the dump context for m: computes dump_refcount over
// every node reachable from the root set, then bool-marks that same
// reachable set bottom-up (spec.md §4.3.2/§4.3.3 run as two passes over one
// discovered node set, rather than interleaving discovery and marking).
func newContext(m *expr.Manager, format NumberFormat) *context {
	c := &context{
		m:        m,
		format:   format,
		roots:    collectRoots(m),
		refcount: make(map[int64]int),
		boolean:  make(map[int64]bool),
		shared:   make(map[int64]bool),
		dumped:   make(map[int64]string),
	}
	c.order = c.computeRefcounts()
	c.markBool(c.order)
	c.computeShared()
	return c
}

// computeRefcounts is spec.md §4.3.2's walk: an explicit-stack DAG traversal
// from the root set computing, per node, direct-parent uses plus root uses
// plus the extra uses an args-node's leaves accumulate by being referenced
// through it. It returns the visited nodes in post-order (children before
// parents), the order markBool and emission both rely on.
func (c *context) computeRefcounts() []*expr.Node {
	visited := make(map[int64]bool)
	var postOrder []*expr.Node

	type frame struct {
		n   *expr.Node
		idx int
	}
	var stack []frame

	for _, r := range c.roots {
		root := r.Node()
		c.refcount[root.ID()]++ // root use
		if visited[root.ID()] {
			continue
		}
		visited[root.ID()] = true
		stack = append(stack, frame{n: root})

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			if top.idx < int(top.n.Arity()) {
				child := top.n.Child(top.idx).Node()
				top.idx++
				c.refcount[child.ID()]++
				if !visited[child.ID()] {
					visited[child.ID()] = true
					stack = append(stack, frame{n: child})
				}
				continue
			}
			if top.n.IsArgs() {
				for _, leaf := range expr.ArgValues(expr.RefOf(top.n)) {
					c.refcount[leaf.Node().ID()]++
				}
			}
			postOrder = append(postOrder, top.n)
			stack = stack[:len(stack)-1]
		}
	}
	return postOrder
}

// markBool implements spec.md §4.3.3 over order (children-before-parents,
// so an and/cond's children are already marked by the time it is visited).
func (c *context) markBool(order []*expr.Node) {
	trueID := c.m.True().Node().ID()
	for _, n := range order {
		switch {
		case n.Kind() == expr.KindBvEq, n.Kind() == expr.KindFunEq, n.Kind() == expr.KindUlt:
			c.boolean[n.ID()] = true
		case n.ID() == trueID:
			c.boolean[n.ID()] = true
		case n.IsApply():
			c.boolean[n.ID()] = c.applyIsBool(n)
		case n.Kind() == expr.KindAnd, n.Kind() == expr.KindCond:
			c.boolean[n.ID()] = n.Sort().BitWidth() == 1 && c.allChildrenBool(n)
		}
	}
}

func (c *context) applyIsBool(n *expr.Node) bool {
	fun := n.Child(0).Node()
	if fun.IsLambda() {
		return fun.LambdaBoolBody()
	}
	if fun.IsUF() {
		return fun.Sort().Codomain != nil && fun.Sort().Codomain.Kind == expr.SortBool
	}
	return false
}

func (c *context) allChildrenBool(n *expr.Node) bool {
	for i := 0; i < int(n.Arity()); i++ {
		if !c.boolean[n.Child(i).Node().ID()] {
			return false
		}
	}
	return true
}

// computeShared applies spec.md §4.3.2's sharing predicate: dump_refcount
// > 1, and not a constant/variable/UF/parameter/apply/args-node/
// parameterized term (parameterized terms are let-bound only inside their
// owning function body — see the smtdump "Simplification" note in DESIGN.md
// for the scope of that narrower case in this implementation).
func (c *context) computeShared() {
	for id, rc := range c.refcount {
		if rc <= 1 {
			continue
		}
		n := c.m.NodeByID(id)
		if n == nil {
			continue
		}
		if n.IsBvConst() || n.IsBvVar() || n.IsUF() || n.IsParam() ||
			n.IsApply() || n.IsArgs() || n.Parameterized() {
			continue
		}
		c.shared[id] = true
	}
}
