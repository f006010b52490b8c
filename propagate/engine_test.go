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
	"context"
	"testing"

	"github.com/marcogario/boolector/bv"
	"github.com/marcogario/boolector/expr"
)

// TestInvMulRoundTrip checks spec.md's inv_mul sampler: for an odd
// multiplier o, the sampled operand must multiply back to exactly target
// (the odd case has a unique solution, unlike the even case's don't-care
// top bits).
func TestInvMulRoundTrip(t *testing.T) {
	rng := bv.NewRNG(1)
	w := uint32(8)
	o := bv.FromUint64(w, 5) // odd
	target := bv.FromUint64(w, 37)

	r := invMul(rng, o, target, w)
	if r.conflict {
		t.Fatalf("invMul(odd) reported a conflict, want a unique solution")
	}
	if got := bv.Mul(r.value, o); !got.Equal(target) {
		t.Fatalf("invMul(odd): %v * %v = %v, want %v", r.value, o, got, target)
	}
}

// TestInvMulEvenConflict checks that an even multiplier whose trailing-zero
// count exceeds the target's is correctly reported as a conflict rather
// than silently producing a wrong value.
func TestInvMulEvenConflict(t *testing.T) {
	rng := bv.NewRNG(2)
	w := uint32(8)
	o := bv.FromUint64(w, 4)   // 2^2 * 1
	target := bv.FromUint64(w, 2) // only one trailing zero: unreachable

	r := invMul(rng, o, target, w)
	if !r.conflict {
		t.Fatalf("invMul(even): expected conflict for target with fewer trailing zeros than o, got %v", r.value)
	}
}

// TestInvAddRoundTrip checks spec.md's inv_add sampler: target - o always
// reconstructs target when added back to o.
func TestInvAddRoundTrip(t *testing.T) {
	w := uint32(6)
	o := bv.FromUint64(w, 9)
	target := bv.FromUint64(w, 20)

	r := invAdd(o, target)
	if r.conflict {
		t.Fatalf("invAdd reported a conflict; add never conflicts")
	}
	if got := bv.Add(r.value, o); !got.Equal(target) {
		t.Fatalf("invAdd: %v + %v = %v, want %v", r.value, o, got, target)
	}
}

// TestInvShiftDataSllConflictsOnNonzeroVacatedBits is the regression test
// for invShiftData: sll(e0, 2) always zero-fills the low 2 bits of its
// result, so a target whose low bits aren't already zero is unreachable by
// any e0 and must be reported as a conflict rather than a bogus "solution".
func TestInvShiftDataSllConflictsOnNonzeroVacatedBits(t *testing.T) {
	rng := bv.NewRNG(3)
	w := uint32(8)
	shiftAmt := bv.FromUint64(3, 2) // log2(8) = 3-bit shift-amount sort
	target := bv.FromUint64(w, 0b00000101)

	r := invShiftData(rng, true, shiftAmt, target, w)
	if !r.conflict {
		t.Fatalf("invShiftData(sll): expected a conflict for target %v with nonzero low 2 bits, got %v", target, r.value)
	}
}

// TestInvShiftDataSllRoundTrip checks that a reachable target (whose vacated
// low bits are already zero) round-trips: forward-shifting the sampled e0
// by the same amount must reproduce target exactly, regardless of which
// random don't-care bits were filled into e0's vacated high bits.
func TestInvShiftDataSllRoundTrip(t *testing.T) {
	rng := bv.NewRNG(4)
	w := uint32(8)
	shiftAmt := bv.FromUint64(3, 2)
	target := bv.FromUint64(w, 0b00010100) // low 2 bits already zero

	r := invShiftData(rng, true, shiftAmt, target, w)
	if r.conflict {
		t.Fatalf("invShiftData(sll): expected a solution for target %v, got a conflict", target)
	}
	if got := bv.Sll(r.value, 2); !got.Equal(target) {
		t.Fatalf("invShiftData(sll): sll(%v, 2) = %v, want %v", r.value, got, target)
	}
}

// TestInvShiftAmountAcceptsShiftBeyondAmountWidth is the regression test for
// invShiftAmount's width bug: for a data width of 8 (a 3-bit shift-amount
// sort), a shift of 5 is perfectly valid (5 <= 7, representable in 3 bits)
// and must not be rejected by comparing it against the shift-amount sort's
// own 3-bit width instead of the 8-bit data width.
func TestInvShiftAmountAcceptsShiftBeyondAmountWidth(t *testing.T) {
	amtWidth := uint32(3)
	data := bv.FromUint64(8, 0b00000111) // 0 trailing zeros
	target := bv.Sll(data, 5)            // reachable via shift=5 (5 trailing zeros in target)

	r := invShiftAmount(true, data, target, amtWidth)
	if r.conflict {
		t.Fatalf("invShiftAmount: expected shift=5 to be accepted for an 8-bit data width, got a conflict")
	}
	if got := r.value.Uint64(); got != 5 {
		t.Fatalf("invShiftAmount: recovered shift %d, want 5", got)
	}
}

// newAddEngine builds a two-variable "x + y == #b1010" DAG (spec.md
// §8.4.6's toy scenario), seeding the model so x=0, y=0 as a falsified
// starting point.
func newAddEngine(t *testing.T) (*Engine, *expr.Manager, *expr.Node, *expr.Node) {
	t.Helper()
	m := expr.NewManager(expr.DefaultOptions())
	x := m.NewVar(4, "x")
	y := m.NewVar(4, "y")
	sum := m.Add(x, y)
	target := m.NewConst(bv.FromUint64(4, 10)) // #b1010
	eq := m.BvEq(sum, target)
	m.AddConstraint(eq)

	e := NewEngine(m, DefaultOptions())
	e.mo = newModel()
	e.mo.set(x.Node(), bv.Zero(4))
	e.mo.set(y.Node(), bv.Zero(4))
	e.refreshRoots(eq.Node())

	return e, m, x.Node(), y.Node()
}

// TestConeUpdateMaintainsRoots is spec.md §8.4.4: after updateCone installs
// a new value for x that (together with the current y) satisfies the sole
// root, the roots set must become empty.
func TestConeUpdateMaintainsRoots(t *testing.T) {
	e, _, x, y := newAddEngine(t)
	if len(e.mo.roots) != 1 {
		t.Fatalf("expected exactly one falsified root before the move, got %d", len(e.mo.roots))
	}

	yVal, _ := e.mo.get(expr.RefOf(y))
	newX := bv.Sub(bv.FromUint64(4, 10), yVal) // x := 10 - y, satisfies x+y=10
	e.updateCone(x, newX)

	if len(e.mo.roots) != 0 {
		t.Fatalf("expected roots to clear after a satisfying move, got %d still falsified", len(e.mo.roots))
	}
}

// TestUpdateConeRescoresRoot is spec.md §8.1's score(r) = 1 iff model(r) = 1:
// updateCone must recompute (not merely invalidate) the root's score, so a
// freshly-satisfied root reads back as score 1 without a separate Score call
// recomputing it from scratch first.
func TestUpdateConeRescoresRoot(t *testing.T) {
	e, m, x, y := newAddEngine(t)
	eq := sortedRefsByID(m.UnsynthesizedConstraints())[0]

	if s := e.Score(eq); s == 1 {
		t.Fatalf("expected the initial falsified root to score < 1, got %v", s)
	}

	yVal, _ := e.mo.get(expr.RefOf(y))
	newX := bv.Sub(bv.FromUint64(4, 10), yVal)
	e.updateCone(x, newX)

	if _, ok := e.mo.score[modelKey(eq)]; !ok {
		t.Fatalf("expected updateCone to leave the root's score cached, found nothing")
	}
	if s := e.Score(eq); s != 1 {
		t.Fatalf("expected the now-satisfied root to score 1, got %v", s)
	}
}

// TestSatConvergesOnAddScenario is spec.md §8.4.6: a two-variable add
// equation must converge to SAT within a small move budget regardless of
// the initial (falsified) assignment.
func TestSatConvergesOnAddScenario(t *testing.T) {
	m := expr.NewManager(expr.DefaultOptions())
	x := m.NewVar(4, "x")
	y := m.NewVar(4, "y")
	sum := m.Add(x, y)
	target := m.NewConst(bv.FromUint64(4, 10))
	eq := m.BvEq(sum, target)
	m.AddConstraint(eq)

	e := NewEngine(m, DefaultOptions())
	status, err := e.Sat(context.Background())
	if err != nil {
		t.Fatalf("Sat returned an error: %v", err)
	}
	if status != StatusSat {
		t.Fatalf("Sat returned %v, want sat", status)
	}

	xv := e.Model(x)
	yv := e.Model(y)
	if got := bv.Add(xv, yv); !got.Equal(bv.FromUint64(4, 10)) {
		t.Fatalf("model x=%v y=%v sums to %v, want #b1010", xv, yv, got)
	}

	if e.Stats().Moves > 10 {
		t.Fatalf("converged in %d moves, want <= 10 for this toy scenario", e.Stats().Moves)
	}
}

// TestSatHonorsCancellation checks that a pre-cancelled context causes Sat
// to return unknown wrapping ErrTerminated rather than looping forever on a
// problem it would otherwise easily solve.
func TestSatHonorsCancellation(t *testing.T) {
	m := expr.NewManager(expr.DefaultOptions())
	x := m.NewVar(4, "x")
	y := m.NewVar(4, "y")
	eq := m.BvEq(m.Add(x, y), m.NewConst(bv.FromUint64(4, 10)))
	m.AddConstraint(eq)

	e := NewEngine(m, DefaultOptions())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	status, err := e.Sat(ctx)
	if status != StatusUnknown {
		t.Fatalf("Sat on a cancelled context returned %v, want unknown", status)
	}
	if err == nil {
		t.Fatalf("Sat on a cancelled context returned a nil error")
	}
}

// TestRefreshRootsTracksAssertedPolarity is the regression test for the
// constraint-polarity fix: asserting (not p) must be judged falsified when
// p itself currently holds, not when p is false.
func TestRefreshRootsTracksAssertedPolarity(t *testing.T) {
	m := expr.NewManager(expr.DefaultOptions())
	x := m.NewVar(1, "x")
	notX := expr.Not(x)
	m.AddConstraint(notX)

	e := NewEngine(m, DefaultOptions())
	e.mo = newModel()
	e.mo.set(x.Node(), bv.One(1)) // x currently true, so (not x) is falsified

	e.refreshRoots(x.Node())
	if _, ok := e.mo.roots[x.Node().ID()]; !ok {
		t.Fatalf("expected (not x) to be tracked as a falsified root when x=1")
	}

	e.mo.set(x.Node(), bv.Zero(1)) // x now false, so (not x) holds
	e.refreshRoots(x.Node())
	if _, ok := e.mo.roots[x.Node().ID()]; ok {
		t.Fatalf("expected (not x) to no longer be a root once x=0 satisfies it")
	}
}

// newMultiRootManager builds a scenario with two simultaneously-falsifiable
// roots sharing a variable, so Sat's first few iterations must actually
// choose among more than one root (spec.md §4.2.3's "random element of
// roots" pick).
func newMultiRootManager() (*expr.Manager, *expr.Node, *expr.Node, *expr.Node) {
	m := expr.NewManager(expr.DefaultOptions())
	x := m.NewVar(4, "x")
	y := m.NewVar(4, "y")
	z := m.NewVar(4, "z")
	eq1 := m.BvEq(m.Add(x, y), m.NewConst(bv.FromUint64(4, 10)))
	eq2 := m.BvEq(m.Add(y, z), m.NewConst(bv.FromUint64(4, 7)))
	m.AddConstraint(eq1)
	m.AddConstraint(eq2)
	return m, x.Node(), y.Node(), z.Node()
}

// TestSatIsDeterministicGivenSeed is the regression test for pickRoot's
// determinism fix: two engines built from identical scenarios with the same
// seed must draw the same root-pick sequence and so reach identical
// move/conflict/restart counters and models, since Go's map range order
// (unlike a seeded RNG draw over an indexed slice) is not itself
// reproducible (spec.md §5). The wall-clock timer fields of Stats are
// cleared before comparing, as elapsed time is never seed-determined.
func TestSatIsDeterministicGivenSeed(t *testing.T) {
	opts := DefaultOptions()
	opts.Seed = 42

	run := func() (Status, Stats, bv.Value, bv.Value, bv.Value) {
		m, x, y, z := newMultiRootManager()
		e := NewEngine(m, opts)
		status, err := e.Sat(context.Background())
		if err != nil {
			t.Fatalf("Sat returned an error: %v", err)
		}
		st := e.Stats()
		st.ResetTime, st.ModelGenTime, st.ScoreTime = 0, 0, 0
		return status, st, e.Model(expr.RefOf(x)), e.Model(expr.RefOf(y)), e.Model(expr.RefOf(z))
	}

	status1, stats1, x1, y1, z1 := run()
	status2, stats2, x2, y2, z2 := run()

	if status1 != StatusSat || status2 != StatusSat {
		t.Fatalf("expected both runs to reach sat, got %v and %v", status1, status2)
	}
	if stats1 != stats2 {
		t.Fatalf("same-seed runs diverged in stats: %+v vs %+v", stats1, stats2)
	}
	if !x1.Equal(x2) || !y1.Equal(y2) || !z1.Equal(z2) {
		t.Fatalf("same-seed runs diverged in model: (%v,%v,%v) vs (%v,%v,%v)", x1, y1, z1, x2, y2, z2)
	}
}
