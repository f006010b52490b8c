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
	"github.com/marcogario/boolector/bv"
	"github.com/marcogario/boolector/expr"
)

// propagateDown is spec.md §4.2.4: starting at root with target value 1 (a
// falsified root must become true), descend toward a variable, sampling a
// new value for exactly one child at each step. It returns the variable
// found and the value it must take, or found=false on a non-recoverable
// conflict (all operands along the chosen path were constants).
func (e *Engine) propagateDown(root expr.Ref) (target *expr.Node, value bv.Value, found bool) {
	cur := root
	bvCur := bv.One(1)
	for {
		if cur.Inverted() {
			bvCur = bv.Not(bvCur)
		}
		n := cur.Node()
		if n.IsBvVar() || n.IsParam() {
			return n, bvCur, true
		}
		if n.IsBvConst() {
			// A constant can never be assigned a new value: whether or not it
			// already agrees with bvCur, there is no input to propagate to.
			e.stats.NonRecoverableConf++
			return nil, bv.Value{}, false
		}
		if !e.kindSupported(n.Kind()) {
			e.stats.NonRecoverableConf++
			return nil, bv.Value{}, false
		}

		arity := int(n.Arity())
		consts := make([]bool, arity)
		allConst := true
		for i := 0; i < arity; i++ {
			consts[i] = n.Child(i).Node().IsBvConst()
			if !consts[i] {
				allConst = false
			}
		}
		if allConst {
			// A fully-constant subtree admits no input to propagate to,
			// whether or not it happens to already agree with bvCur
			// (spec.md §4.2.4 step 2).
			e.stats.NonRecoverableConf++
			return nil, bv.Value{}, false
		}

		eidx := e.selectPath(n, consts, bvCur)
		if eidx < 0 {
			e.stats.NonRecoverableConf++
			return nil, bv.Value{}, false
		}
		newVal, ok := e.sampleChild(n, eidx, bvCur)
		if !ok {
			e.stats.NonRecoverableConf++
			return nil, bv.Value{}, false
		}
		cur = n.Child(eidx)
		bvCur = newVal
	}
}

func (e *Engine) kindSupported(k expr.Kind) bool {
	switch k {
	case expr.KindAnd, expr.KindAdd, expr.KindMul, expr.KindUdiv, expr.KindUrem,
		expr.KindConcat, expr.KindSll, expr.KindSrl, expr.KindUlt, expr.KindBvEq,
		expr.KindCond, expr.KindSlice:
		return true
	default:
		return false
	}
}

// selectPath implements spec.md §4.2.5: pick a non-constant child, biased by
// the essential heuristic when PathSelEssential is set, otherwise uniformly
// at random among non-constant children. Returns -1 if every child is
// constant (the caller has already excluded that case for most kinds, but
// cond's condition-only-constant shape reaches here too).
func (e *Engine) selectPath(n *expr.Node, consts []bool, target bv.Value) int {
	if n.Kind() == expr.KindCond {
		return e.selectCondPath(n, consts, target)
	}
	nonConst := nonConstIndices(consts)
	if len(nonConst) == 0 {
		return -1
	}
	if len(nonConst) == 1 || e.opts.PathSel != PathSelEssential {
		return nonConst[e.rng.Intn(len(nonConst))]
	}
	if essential, ok := e.essentialPath(n, target); ok {
		return essential
	}
	return nonConst[e.rng.Intn(len(nonConst))]
}

func nonConstIndices(consts []bool) []int {
	var out []int
	for i, c := range consts {
		if !c {
			out = append(out, i)
		}
	}
	return out
}

func (e *Engine) selectCondPath(n *expr.Node, consts []bool, target bv.Value) int {
	if consts[0] {
		condVal := n.Child(0).ConstValue()
		if condVal.GetBit(0) {
			return 1
		}
		return 2
	}
	if e.rng.Chance(e.opts.ProbFlipCond) {
		return 0
	}
	then, els := consts[1], consts[2]
	if then && !els {
		return 2
	}
	if els && !then {
		return 1
	}
	nonConst := nonConstIndices(consts)
	return nonConst[e.rng.Intn(len(nonConst))]
}

// essentialPath implements the per-kind table of spec.md §4.2.5.
func (e *Engine) essentialPath(n *expr.Node, target bv.Value) (int, bool) {
	w := n.Child(0).Node().Sort().BitWidth()
	bve := func(i int) bv.Value { v, _ := e.mo.get(n.Child(i)); return v }
	switch n.Kind() {
	case expr.KindAnd:
		if w == 1 {
			if !bve(0).GetBit(0) && bve(1).GetBit(0) {
				return 0, true
			}
			if !bve(1).GetBit(0) && bve(0).GetBit(0) {
				return 1, true
			}
			return 0, false
		}
		if !bv.And(bve(0), target).Equal(target) {
			return 0, true
		}
		if !bv.And(bve(1), target).Equal(target) {
			return 1, true
		}
		return 0, false
	case expr.KindUlt:
		if target.GetBit(0) {
			if bve(0).Equal(bv.Ones(w)) {
				return 0, true
			}
			if bve(1).IsZero() {
				return 1, true
			}
		}
		return 0, false
	case expr.KindConcat:
		wLo := n.Child(1).Node().Sort().BitWidth()
		lo := bv.Slice(target, wLo-1, 0)
		if !lo.Equal(bve(1)) {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// sampleChild samples a new value for n.children[eidx] so that n's result
// equals target, conditioned on the other child(ren)'s current values,
// preferring the inverse sampler and falling back to the consistent sampler
// on a recoverable conflict (spec.md §4.2.6).
func (e *Engine) sampleChild(n *expr.Node, eidx int, target bv.Value) (bv.Value, bool) {
	w := n.Child(eidx).Node().Sort().BitWidth()
	useInv := e.rng.Chance(e.opts.ProbUseInvValue)

	if n.Kind() == expr.KindSlice {
		upper, lower := n.SliceBounds()
		cur, _ := e.mo.get(n.Child(0))
		if useInv {
			return invSlice(e.rng, cur, target, upper, lower, w, e.opts.ProbSliceKeepDC, e.opts.ProbSliceFlip), true
		}
		return e.consistentSlice(cur, target, upper, lower, w), true
	}
	if n.Kind() == expr.KindCond {
		switch eidx {
		case 0:
			return invEq(e.rng, bv.Zero(1), !target.GetBit(0), 1, e.opts.ProbEqFlip).value, true
		case 1, 2:
			return target, true
		}
	}

	other := 1 - eidx
	if n.Kind() == expr.KindConcat {
		wHi := n.Child(0).Node().Sort().BitWidth()
		wLo := n.Child(1).Node().Sort().BitWidth()
		o, _ := e.mo.get(n.Child(other))
		if useInv {
			if r := invConcat(o, target, wHi, wLo, eidx == 0); !r.conflict {
				return r.value, true
			}
			e.stats.RecoverableConf++
		}
		return e.rng.Random(w), true
	}
	if n.Kind() == expr.KindSll || n.Kind() == expr.KindSrl {
		left := n.Kind() == expr.KindSll
		data, _ := e.mo.get(n.Child(0))
		shiftAmt, _ := e.mo.get(n.Child(1))
		if eidx == 0 {
			if r := invShiftData(e.rng, left, shiftAmt, target, w); !r.conflict {
				return r.value, true
			}
			e.stats.RecoverableConf++
			return e.rng.Random(w), true
		}
		if r := invShiftAmount(left, data, target, w); !r.conflict {
			return r.value, true
		}
		e.stats.RecoverableConf++
		return e.rng.Random(w), true
	}

	o := bve1(e, n, other)
	if useInv {
		if r, consistent := e.inverseFor(n.Kind(), o, target, eidx, w); consistent {
			return r, true
		}
		e.stats.RecoverableConf++
	}
	return e.consistentValue(n.Kind(), target, o, eidx, w), true
}

func bve1(e *Engine, n *expr.Node, i int) bv.Value {
	v, _ := e.mo.get(n.Child(i))
	return v
}

// inverseFor dispatches to the per-operator inverse sampler for the simple
// binary kinds (and, add, mul, udiv, urem, ult, bv_eq); returns
// (value, true) on success or (_, false) on a recoverable conflict.
func (e *Engine) inverseFor(kind expr.Kind, o, target bv.Value, eidx int, w uint32) (bv.Value, bool) {
	switch kind {
	case expr.KindAnd:
		r := invAnd(e.rng, o, target, w, e.opts.ProbAndFlip)
		return r.value, !r.conflict
	case expr.KindAdd:
		r := invAdd(o, target)
		return r.value, !r.conflict
	case expr.KindMul:
		r := invMul(e.rng, o, target, w)
		return r.value, !r.conflict
	case expr.KindUdiv:
		r := invUdiv(e.rng, o, target, eidx, w)
		return r.value, !r.conflict
	case expr.KindUrem:
		if eidx != 0 { // invUrem only solves for the dividend e0
			return bv.Value{}, false
		}
		r := invUrem(e.rng, o, target, w)
		return r.value, !r.conflict
	case expr.KindUlt:
		r := invUlt(e.rng, o, target.GetBit(0), eidx, w)
		return r.value, !r.conflict
	case expr.KindBvEq:
		r := invEq(e.rng, o, target.GetBit(0), w, e.opts.ProbEqFlip)
		return r.value, !r.conflict
	default:
		return bv.Value{}, false
	}
}
