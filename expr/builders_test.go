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
	"testing"

	"github.com/marcogario/boolector/bv"
)

// TestHashConsIdempotence is spec.md §8.4.1.
func TestHashConsIdempotence(t *testing.T) {
	m := NewManager(DefaultOptions())
	v1 := m.NewVar(8, "a")
	v2 := m.NewVar(8, "b")
	e1 := m.Add(v1, v2)
	e2 := m.Add(v2, v1)
	if e1.Node().ID() != e2.Node().ID() {
		t.Fatalf("add(a,b).id=%d != add(b,a).id=%d", e1.Node().ID(), e2.Node().ID())
	}
}

func TestHashConsBuildTwiceSameID(t *testing.T) {
	m := NewManager(DefaultOptions())
	a := m.NewVar(8, "a")
	b := m.NewVar(8, "b")
	e1 := m.And(a, b)
	hitsBefore := m.Stats.UniqueHits
	e2 := m.And(a, b)
	if e1.Node().ID() != e2.Node().ID() {
		t.Fatalf("building and(a,b) twice gave different ids: %d vs %d", e1.Node().ID(), e2.Node().ID())
	}
	if m.Stats.UniqueHits == hitsBefore {
		t.Fatalf("expected the second build to hit the unique table")
	}
}

func TestCommutativeOrderingDisabled(t *testing.T) {
	opts := DefaultOptions()
	opts.SortExp = false
	m := NewManager(opts)
	a := m.NewVar(4, "a")
	b := m.NewVar(4, "b")
	e1 := m.Add(a, b)
	e2 := m.Add(b, a)
	if e1.Node().ID() == e2.Node().ID() {
		t.Fatalf("with SortExp off, add(a,b) and add(b,a) should not share an id")
	}
}

// TestConstantParityNormalization is spec.md §3.2 / §8.1.
func TestConstantParityNormalization(t *testing.T) {
	m := NewManager(DefaultOptions())
	odd := bv.FromUint64(4, 0b0101)
	r := m.NewConst(odd)
	n := r.Node()
	if n.constant.GetBit(0) {
		t.Fatalf("stored constant must be even (bit 0 clear), got %s", n.constant)
	}
	if !r.Inverted() {
		t.Fatalf("reference to an odd constant must carry the inversion tag")
	}
	if !r.ConstValue().Equal(odd) {
		t.Fatalf("ConstValue() = %s, want %s", r.ConstValue(), odd)
	}

	even := bv.FromUint64(4, 0b0100)
	r2 := m.NewConst(even)
	if r2.Inverted() {
		t.Fatalf("reference to an even constant must not carry the inversion tag")
	}
}

func TestConstantSharedAcrossParity(t *testing.T) {
	m := NewManager(DefaultOptions())
	odd := bv.FromUint64(4, 0b0101)
	complement := bv.Not(odd)
	r1 := m.NewConst(odd)
	r2 := m.NewConst(complement)
	if r1.Node().ID() != r2.Node().ID() {
		t.Fatalf("odd constant and its complement should share the same stored node")
	}
	if r1.Inverted() == r2.Inverted() {
		t.Fatalf("odd constant and its complement should carry opposite inversion tags")
	}
}

// TestSliceDegenerateFullWidth is spec.md §8.3.
func TestSliceDegenerateFullWidth(t *testing.T) {
	m := NewManager(DefaultOptions())
	a := m.NewVar(8, "a")
	s := m.Slice(a, 7, 0)
	if s.Node().ID() != a.Node().ID() {
		t.Fatalf("slice(e, w-1, 0) must equal e")
	}
}

func TestOrXorDerivedFromAnd(t *testing.T) {
	m := NewManager(DefaultOptions())
	a := m.NewVar(4, "a")
	b := m.NewVar(4, "b")
	or := m.Or(a, b)
	if or.Node().Kind() != KindAnd {
		t.Fatalf("Or must be De Morgan over And, got top kind %s", or.Node().Kind())
	}
	xor := m.Xor(a, b)
	if xor.Node().Kind() != KindAnd {
		t.Fatalf("Xor must bottom out on And, got top kind %s", xor.Node().Kind())
	}
}

func TestSubNegDerivedFromAdd(t *testing.T) {
	m := NewManager(DefaultOptions())
	a := m.NewVar(8, "a")
	b := m.NewVar(8, "b")
	sub := m.Sub(a, b)
	if sub.Node().Kind() != KindAdd {
		t.Fatalf("Sub must bottom out on Add, got top kind %s", sub.Node().Kind())
	}
}

func TestUdivUremByZeroConstantFold(t *testing.T) {
	m := NewManager(DefaultOptions())
	x := m.NewConst(bv.FromUint64(8, 5))
	zero := m.NewConst(bv.Zero(8))
	if !m.Udiv(x, zero).ConstValue().Equal(bv.Ones(8)) {
		t.Fatalf("udiv(x,0) must fold to all-ones")
	}
	if !m.Urem(x, zero).ConstValue().Equal(bv.FromUint64(8, 5)) {
		t.Fatalf("urem(x,0) must fold to x")
	}
}

func TestUltAgainstZeroConstantFold(t *testing.T) {
	m := NewManager(DefaultOptions())
	x := m.NewConst(bv.FromUint64(8, 5))
	zero := m.NewConst(bv.Zero(8))
	if !m.Ult(x, zero).ConstValue().Equal(bv.Zero(1)) {
		t.Fatalf("ult(x,0) must fold to false")
	}
}

func TestArgsFoldAndUnfold(t *testing.T) {
	m := NewManager(DefaultOptions())
	leaves := make([]Ref, 7)
	for i := range leaves {
		leaves[i] = m.NewVar(4, "")
	}
	a := m.Args(leaves)
	if a.Node().Kind() != KindArgs {
		t.Fatalf("Args must build an args node")
	}
	got := ArgValues(a)
	if len(got) != len(leaves) {
		t.Fatalf("ArgValues returned %d leaves, want %d", len(got), len(leaves))
	}
	for i := range leaves {
		if got[i].Node().ID() != leaves[i].Node().ID() {
			t.Fatalf("ArgValues[%d] = %v, want %v", i, got[i], leaves[i])
		}
	}
}

func TestLambdaAlphaEquivalenceShares(t *testing.T) {
	m := NewManager(DefaultOptions())
	p1 := m.NewParam(8, "p1")
	p2 := m.NewParam(8, "p2")
	l1 := m.Lambda(p1, m.Add(p1, m.NewConst(bv.One(8))))
	l2 := m.Lambda(p2, m.Add(p2, m.NewConst(bv.One(8))))
	if l1.Node().ID() != l2.Node().ID() {
		t.Fatalf("alpha-equivalent lambdas must share a single node")
	}
}

func TestLambdaDistinctBodiesNotShared(t *testing.T) {
	m := NewManager(DefaultOptions())
	p1 := m.NewParam(8, "p1")
	p2 := m.NewParam(8, "p2")
	l1 := m.Lambda(p1, m.Add(p1, m.NewConst(bv.One(8))))
	l2 := m.Lambda(p2, m.Add(p2, m.NewConst(bv.FromUint64(8, 2))))
	if l1.Node().ID() == l2.Node().ID() {
		t.Fatalf("lambdas with different bodies must not be shared")
	}
}

func TestApplyCodomainSort(t *testing.T) {
	m := NewManager(DefaultOptions())
	p := m.NewParam(8, "p")
	body := m.Add(p, m.NewConst(bv.One(8)))
	l := m.Lambda(p, body)
	arg := m.NewVar(8, "x")
	app := m.Apply(l, arg)
	if app.Node().Sort().Kind != SortBitVec || app.Node().Sort().Width != 8 {
		t.Fatalf("apply's sort must be the lambda's codomain, got %v", app.Node().Sort())
	}
}

func TestRefcountReleaseFreesChildren(t *testing.T) {
	m := NewManager(DefaultOptions())
	a := m.NewVar(8, "a")
	b := m.NewVar(8, "b")
	e := m.Add(a, b)
	before := m.Stats.NodesReleased
	m.Release(e)
	if m.Stats.NodesReleased != before+1 {
		t.Fatalf("releasing add(a,b)'s only handle must destroy exactly that node")
	}
	// a and b are still held by the test's own handles, so each keeps the
	// refcount of 1 it had before add(a,b) bumped it to 2 via connectChild.
	if a.Node().RefCount() != 1 || b.Node().RefCount() != 1 {
		t.Fatalf("a and b must fall back to their own external handle's refcount, got %d and %d",
			a.Node().RefCount(), b.Node().RefCount())
	}
	m.Release(a)
	m.Release(b)
	if a.Node().RefCount() != 0 {
		t.Fatalf("releasing a's last handle must bring its refcount to 0")
	}
}
