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
	"golang.org/x/exp/slices"

	"github.com/marcogario/boolector/bv"
)

func isConst(r Ref) bool { return r.Node().kind == KindBvConst }

// canonicalize sorts a commutative kind's children by id (spec.md §4.1.1),
// when SortExp is enabled; non-commutative kinds and arities below 2 are
// returned unchanged.
func (m *Manager) canonicalize(kind Kind, children []Ref) []Ref {
	if !kind.IsCommutative() || !m.opts.SortExp || len(children) < 2 {
		return children
	}
	out := append([]Ref(nil), children...)
	slices.SortFunc(out, func(a, b Ref) int {
		ak, bk := childKey(a), childKey(b)
		switch {
		case ak < bk:
			return -1
		case ak > bk:
			return 1
		default:
			return 0
		}
	})
	return out
}

func (m *Manager) sameNode(n *Node, kind Kind, sort Sort, children []Ref, upper, lower uint32) bool {
	if n.kind != kind || int(n.arity) != len(children) {
		return false
	}
	if kind == KindSlice && (n.sliceUpper != upper || n.sliceLower != lower) {
		return false
	}
	if !n.sort.Equal(sort) {
		return false
	}
	for i, c := range children {
		nc := n.Child(i)
		if nc.Node() != c.Node() || nc.Inverted() != c.Inverted() {
			return false
		}
	}
	return true
}

// internNode looks up a structurally-equal node in the unique table,
// bumping its refcount and returning it on a hit (spec.md §3.3), or builds
// and registers a fresh one on a miss. created reports which happened.
func (m *Manager) internNode(kind Kind, sort Sort, children []Ref, upper, lower uint32) (ref Ref, created bool) {
	children = m.canonicalize(kind, children)
	var h uint64
	if kind == KindSlice {
		h = m.hashSlice(children[0], upper, lower)
	} else {
		h = m.hashChildren(kind, children)
	}
	if n := m.unique.find(h, func(n *Node) bool {
		return m.sameNode(n, kind, sort, children, upper, lower)
	}); n != nil {
		m.Stats.UniqueHits++
		n.refCount++
		return Ref{node: n}, false
	}
	m.Stats.UniqueMisses++
	n := &Node{
		kind:       kind,
		sort:       sort,
		arity:      uint8(len(children)),
		sliceUpper: upper,
		sliceLower: lower,
	}
	n.paramIDs = unionParamIDs(children)
	n.parameterized = len(n.paramIDs) > 0
	n.lambdaBelow = anyLambdaBelow(children)
	n.applyBelow = anyApplyBelow(children)
	m.register(n)
	n.refCount = 1
	for i, c := range children {
		m.connectChild(n, uint8(i), c)
	}
	m.unique.insert(h, n)
	return Ref{node: n}, true
}

func unionParamIDs(children []Ref) map[int64]bool {
	var out map[int64]bool
	for _, c := range children {
		cn := c.Node()
		if len(cn.paramIDs) == 0 {
			continue
		}
		if out == nil {
			out = make(map[int64]bool)
		}
		for id := range cn.paramIDs {
			out[id] = true
		}
	}
	return out
}

func anyLambdaBelow(children []Ref) bool {
	for _, c := range children {
		cn := c.Node()
		if cn.kind == KindLambda || cn.lambdaBelow {
			return true
		}
	}
	return false
}

func anyApplyBelow(children []Ref) bool {
	for _, c := range children {
		cn := c.Node()
		if cn.kind == KindApply || cn.applyBelow {
			return true
		}
	}
	return false
}

func requireBitVec(r Ref, what string) Sort {
	s := r.Node().sort
	if s.Kind != SortBitVec {
		fatalf("%s requires a bit-vector operand, got %v", what, s)
	}
	return s
}

func sameBitVecWidth(a, b Ref, what string) uint32 {
	as := requireBitVec(a, what)
	bs := requireBitVec(b, what)
	if as.Width != bs.Width {
		fatalf("%s operand width mismatch: %d vs %d", what, as.Width, bs.Width)
	}
	return as.Width
}

func log2Exact(w uint32) (uint32, bool) {
	if w == 0 || w&(w-1) != 0 {
		return 0, false
	}
	n := uint32(0)
	for (uint32(1) << n) != w {
		n++
	}
	return n, true
}

func (m *Manager) boolConst(b bool) Ref {
	if b {
		return m.trueConst
	}
	return m.falseConst
}

// NewConst interns a constant by its bit pattern. Odd bit patterns are
// normalized to the negation of their (even) complement before storage,
// so the unique table only ever holds even constants (spec.md §3.2).
func (m *Manager) NewConst(v bv.Value) Ref {
	inverted := v.GetBit(0)
	stored := v
	if inverted {
		stored = bv.Not(v)
	}
	h := m.hashConst(stored)
	if n := m.unique.find(h, func(n *Node) bool {
		return n.kind == KindBvConst && n.sort.Width == stored.Width() && n.constant.Equal(stored)
	}); n != nil {
		m.Stats.UniqueHits++
		n.refCount++
		return Ref{node: n, inverted: inverted}
	}
	m.Stats.UniqueMisses++
	n := &Node{kind: KindBvConst, sort: BitVecSort(stored.Width()), constant: stored}
	m.register(n)
	n.refCount = 1
	m.unique.insert(h, n)
	return Ref{node: n, inverted: inverted}
}

// NewVar creates a fresh bit-vector variable. Variables are identity-based,
// never hash-consed: two calls always produce distinct nodes even with
// identical width (spec.md §3.2's unique-table invariant only governs
// nodes whose content determines their identity).
func (m *Manager) NewVar(width uint32, symbol string) Ref {
	n := &Node{kind: KindBvVar, sort: BitVecSort(width)}
	m.register(n)
	n.refCount = 1
	m.bvVars = append(m.bvVars, n)
	if symbol != "" {
		m.SetSymbol(Ref{node: n}, symbol)
	}
	return Ref{node: n}
}

// NewParam creates a fresh formal parameter, identity-based like NewVar.
func (m *Manager) NewParam(width uint32, symbol string) Ref {
	n := &Node{kind: KindParam, sort: BitVecSort(width), parameterized: true}
	m.register(n)
	n.refCount = 1
	n.paramIDs = map[int64]bool{n.id: true}
	if symbol != "" {
		m.SetSymbol(Ref{node: n}, symbol)
	}
	return Ref{node: n}
}

// NewUF creates a fresh uninterpreted function of the given signature.
func (m *Manager) NewUF(sig Sort, symbol string) Ref {
	if sig.Kind != SortFun {
		fatalf("uf requires a function sort, got %v", sig)
	}
	n := &Node{kind: KindUF, sort: sig}
	m.register(n)
	n.refCount = 1
	m.ufs = append(m.ufs, n)
	if symbol != "" {
		m.SetSymbol(Ref{node: n}, symbol)
	}
	return Ref{node: n}
}

func (m *Manager) tryFoldBinary(kind Kind, a, b Ref, boolOut bool) (Ref, bool) {
	if m.opts.RewriteLevel <= 0 || !isConst(a) || !isConst(b) {
		return Ref{}, false
	}
	v := Eval(kind, []bv.Value{a.ConstValue(), b.ConstValue()}, 0, 0)
	if boolOut {
		return m.boolConst(v.GetBit(0)), true
	}
	return m.NewConst(v), true
}

// Slice builds a slice(e, upper, lower) node (spec.md §4.1.1).
func (m *Manager) Slice(e Ref, upper, lower uint32) Ref {
	s := requireBitVec(e, "slice")
	if lower > upper || upper >= s.Width {
		fatalf("invalid slice bounds [%d:%d] of width %d", upper, lower, s.Width)
	}
	width := upper - lower + 1
	if width == s.Width {
		return e // degenerate full slice, spec.md §8.3
	}
	if m.opts.RewriteLevel > 0 && isConst(e) {
		return m.NewConst(bv.Slice(e.ConstValue(), upper, lower))
	}
	r, _ := m.internNode(KindSlice, BitVecSort(width), []Ref{e}, upper, lower)
	return r
}

// And builds the only primitive bitwise connective; Or, Xor, and Not are
// derived from it (spec.md §4.1.1's operator table has no kind for them).
func (m *Manager) And(a, b Ref) Ref {
	w := sameBitVecWidth(a, b, "and")
	if r, ok := m.tryFoldBinary(KindAnd, a, b, false); ok {
		return r
	}
	r, _ := m.internNode(KindAnd, BitVecSort(w), []Ref{a, b}, 0, 0)
	return r
}

// Or returns a | b as ~(~a & ~b).
func (m *Manager) Or(a, b Ref) Ref { return Not(m.And(Not(a), Not(b))) }

// Xor returns a ^ b as (a & ~b) | (~a & b).
func (m *Manager) Xor(a, b Ref) Ref {
	return m.Or(m.And(a, Not(b)), m.And(Not(a), b))
}

// Add builds a+b, wrapping modulo 2^width.
func (m *Manager) Add(a, b Ref) Ref {
	w := sameBitVecWidth(a, b, "add")
	if r, ok := m.tryFoldBinary(KindAdd, a, b, false); ok {
		return r
	}
	r, _ := m.internNode(KindAdd, BitVecSort(w), []Ref{a, b}, 0, 0)
	return r
}

// Neg returns the two's-complement negation of a, as ~a + 1. There is no
// dedicated kind for it, matching the add-only arithmetic primitive.
func (m *Manager) Neg(a Ref) Ref {
	w := requireBitVec(a, "neg").Width
	return m.Add(Not(a), m.NewConst(bv.One(w)))
}

// Sub returns a-b, derived as a + (-b).
func (m *Manager) Sub(a, b Ref) Ref {
	sameBitVecWidth(a, b, "sub")
	return m.Add(a, m.Neg(b))
}

// Mul builds a*b, wrapping modulo 2^width.
func (m *Manager) Mul(a, b Ref) Ref {
	w := sameBitVecWidth(a, b, "mul")
	if r, ok := m.tryFoldBinary(KindMul, a, b, false); ok {
		return r
	}
	r, _ := m.internNode(KindMul, BitVecSort(w), []Ref{a, b}, 0, 0)
	return r
}

// Udiv builds a/b with udiv(x,0) = all-ones (spec.md §8.3).
func (m *Manager) Udiv(a, b Ref) Ref {
	w := sameBitVecWidth(a, b, "udiv")
	if r, ok := m.tryFoldBinary(KindUdiv, a, b, false); ok {
		return r
	}
	r, _ := m.internNode(KindUdiv, BitVecSort(w), []Ref{a, b}, 0, 0)
	return r
}

// Urem builds a%b with urem(x,0) = x (spec.md §8.3).
func (m *Manager) Urem(a, b Ref) Ref {
	w := sameBitVecWidth(a, b, "urem")
	if r, ok := m.tryFoldBinary(KindUrem, a, b, false); ok {
		return r
	}
	r, _ := m.internNode(KindUrem, BitVecSort(w), []Ref{a, b}, 0, 0)
	return r
}

// Concat builds hi ++ lo, with hi in the upper bits of the result.
func (m *Manager) Concat(hi, lo Ref) Ref {
	hs := requireBitVec(hi, "concat")
	ls := requireBitVec(lo, "concat")
	w := hs.Width + ls.Width
	if m.opts.RewriteLevel > 0 && isConst(hi) && isConst(lo) {
		return m.NewConst(bv.Concat(hi.ConstValue(), lo.ConstValue()))
	}
	r, _ := m.internNode(KindConcat, BitVecSort(w), []Ref{hi, lo}, 0, 0)
	return r
}

func (m *Manager) shift(kind Kind, a, shiftAmt Ref) Ref {
	s := requireBitVec(a, kind.String())
	logw, ok := log2Exact(s.Width)
	if !ok {
		fatalf("%s requires a power-of-two width, got %d", kind, s.Width)
	}
	ss := requireBitVec(shiftAmt, kind.String())
	if ss.Width != logw {
		fatalf("%s shift-amount width must be log2(width)=%d, got %d", kind, logw, ss.Width)
	}
	if m.opts.RewriteLevel > 0 && isConst(a) && isConst(shiftAmt) {
		return m.NewConst(Eval(kind, []bv.Value{a.ConstValue(), shiftAmt.ConstValue()}, 0, 0))
	}
	r, _ := m.internNode(kind, BitVecSort(s.Width), []Ref{a, shiftAmt}, 0, 0)
	return r
}

// Sll builds a logical left shift; the shift-amount operand's width must be
// log2(a's width), and a's width must be a power of two (spec.md §4.1.1).
func (m *Manager) Sll(a, shiftAmt Ref) Ref { return m.shift(KindSll, a, shiftAmt) }

// Srl builds a logical right shift, symmetric to Sll.
func (m *Manager) Srl(a, shiftAmt Ref) Ref { return m.shift(KindSrl, a, shiftAmt) }

// Ult builds the unsigned less-than predicate; ult(x,0) is always false
// (spec.md §8.3).
func (m *Manager) Ult(a, b Ref) Ref {
	sameBitVecWidth(a, b, "ult")
	if r, ok := m.tryFoldBinary(KindUlt, a, b, true); ok {
		return r
	}
	r, _ := m.internNode(KindUlt, BoolSort(), []Ref{a, b}, 0, 0)
	return r
}

// BvEq builds bit-vector equality.
func (m *Manager) BvEq(a, b Ref) Ref {
	sameBitVecWidth(a, b, "bv_eq")
	if r, ok := m.tryFoldBinary(KindBvEq, a, b, true); ok {
		return r
	}
	r, _ := m.internNode(KindBvEq, BoolSort(), []Ref{a, b}, 0, 0)
	return r
}

// FunEq builds function equality between two equally-sorted function
// terms, tracked in the manager's feqs index for extensionality reasoning
// (spec.md §3.4).
func (m *Manager) FunEq(a, b Ref) Ref {
	as, bs := a.Node().sort, b.Node().sort
	if as.Kind != SortFun || !as.Equal(bs) {
		fatalf("fun_eq requires equal function sorts, got %v and %v", as, bs)
	}
	r, created := m.internNode(KindFunEq, BoolSort(), []Ref{a, b}, 0, 0)
	if created {
		m.feqs = append(m.feqs, r.Node())
	}
	return r
}

// Cond builds if-then-else: cond must be Bool (or width-1 bit-vector), and
// the two branches must share a sort.
func (m *Manager) Cond(cond, then, els Ref) Ref {
	cs := cond.Node().sort
	if cs.Kind != SortBool && cs.BitWidth() != 1 {
		fatalf("cond requires a boolean condition, got %v", cs)
	}
	ts, es := then.Node().sort, els.Node().sort
	if !ts.Equal(es) {
		fatalf("cond branches must share a sort, got %v and %v", ts, es)
	}
	if m.opts.RewriteLevel > 0 && isConst(cond) {
		if cond.ConstValue().GetBit(0) {
			return then
		}
		return els
	}
	r, _ := m.internNode(KindCond, ts, []Ref{cond, then, els}, 0, 0)
	return r
}
