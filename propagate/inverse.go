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

import "github.com/marcogario/boolector/bv"

// invResult is the outcome of an inverse-value sampler: either a value that
// makes the parent's equation hold, or a recoverable conflict (spec.md
// §4.2.6) the caller falls back from to a consistent-sampled value.
type invResult struct {
	value    bv.Value
	conflict bool
}

func ok(v bv.Value) invResult { return invResult{value: v} }
func conflict() invResult     { return invResult{conflict: true} }

// invAdd is spec.md §4.2.6's inv_add: target - o, identical for either
// operand index since add is commutative.
func invAdd(o, target bv.Value) invResult {
	return ok(bv.Sub(target, o))
}

// invAnd computes a value for the unfixed and-operand such that
// result & o == target, requiring target & o == target (spec.md §4.2.6).
// Bits set in target are forced 1; bits set in o but not target are forced
// 0; remaining don't-care bits are sampled randomly, with a low-probability
// flip controlled by rng/flipProb.
func invAnd(rng *bv.RNG, o, target bv.Value, w uint32, flipProb float64) invResult {
	if !bv.And(target, o).Equal(target) {
		return conflict()
	}
	result := target
	for i := uint32(0); i < w; i++ {
		if o.GetBit(i) {
			continue // o's bit dictates result's bit via target already
		}
		bit := rng.Chance(0.5)
		if rng.Chance(flipProb) {
			bit = !bit
		}
		result = result.SetBit(i, bit)
	}
	return ok(result)
}

// invEq is spec.md §4.2.6's inv_eq: target=1 forces the operand to equal o;
// target=0 samples any value different from o, biased toward a single-bit
// flip of o with probability flipProb.
func invEq(rng *bv.RNG, o bv.Value, targetTrue bool, w uint32, flipProb float64) invResult {
	if targetTrue {
		return ok(o)
	}
	if rng.Chance(flipProb) {
		return ok(o.FlipBit(uint32(rng.Intn(int(w)))))
	}
	for {
		v := rng.Random(w)
		if !v.Equal(o) {
			return ok(v)
		}
		if w == 0 {
			return conflict()
		}
	}
}

// invUlt implements the four side/target cases of spec.md §4.2.6 for the unfixed
// operand at eidx (0 = left, 1 = right) of ult(e0, e1) given the other
// operand's fixed value o and the desired truth value target.
func invUlt(rng *bv.RNG, o bv.Value, target bool, eidx int, w uint32) invResult {
	ones := bv.Ones(w)
	zero := bv.Zero(w)
	if eidx == 0 { // solve e0 `ult` o == target, for e0
		if target {
			if o.Equal(zero) {
				return conflict()
			}
			return ok(rng.RandomRange(zero, bv.Sub(o, bv.One(w))))
		}
		return ok(rng.RandomRange(o, ones))
	}
	// solve o `ult` e1 == target, for e1
	if target {
		if o.Equal(ones) {
			return conflict()
		}
		return ok(rng.RandomRange(bv.Add(o, bv.One(w)), ones))
	}
	return ok(rng.RandomRange(zero, o))
}

// invShiftData is shared by inv_sll/inv_srl (spec.md §4.2.6): when solving for
// the data operand e0, the shift amount s is known and target = e0 << s (or
// >> s). Forward sll zero-fills the s vacated low bits of its result, and
// forward srl zero-fills the s vacated high bits, so a target whose vacated
// bits aren't already zero admits no e0 at all (original_source's
// inv_sll_bv/inv_srl_bv, btorslvpropsls.c: "BVSLL_CONF"/"BVSRL_CONF" test
// trailing/leading zeros of the target before accepting it). On success,
// e0's own bits that forward-shifted out of the result are unconstrained
// don't-cares and are randomized rather than left at the zero-fill the
// reverse shift produces.
func invShiftData(rng *bv.RNG, left bool, shiftAmt, target bv.Value, w uint32) invResult {
	s := shiftAmt.Uint64()
	if s >= uint64(w) {
		if target.IsZero() {
			return ok(rng.Random(w)) // every e0 shifts fully out; any value works
		}
		return conflict()
	}
	shift := uint32(s)
	if left {
		if bv.TrailingZeros(target) < shift {
			return conflict()
		}
		result := bv.Srl(target, s)
		for i := w - shift; i < w; i++ {
			result = result.SetBit(i, rng.Bool())
		}
		return ok(result)
	}
	if bv.LeadingZeros(target) < shift {
		return conflict()
	}
	result := bv.Sll(target, s)
	for i := uint32(0); i < shift; i++ {
		result = result.SetBit(i, rng.Bool())
	}
	return ok(result)
}

// invShiftAmount solves sll/srl for the shift-amount operand e1, comparing
// ctz/clz(target) against ctz/clz(data) to recover the shift distance. w is
// the shift-amount sort's own width (log2(data's width), per
// expr/builders.go's shift() constructor) — used only to size the returned
// candidate, never as a bound on the shift distance itself, which is always
// checked against data's own width instead (spec.md §4.1.1's
// log2(dataWidth)-bit shift-amount sort guarantees any valid shift < data's
// width fits in w bits).
func invShiftAmount(left bool, data, target bv.Value, w uint32) invResult {
	dataWidth := data.Width()
	var dataZeros, targetZeros uint32
	if left {
		dataZeros = bv.TrailingZeros(data)
		targetZeros = bv.TrailingZeros(target)
	} else {
		dataZeros = bv.LeadingZeros(data)
		targetZeros = bv.LeadingZeros(target)
	}
	if targetZeros < dataZeros {
		return conflict()
	}
	shift := targetZeros - dataZeros
	if shift >= dataWidth {
		return conflict()
	}
	candidate := bv.FromUint64(w, uint64(shift))
	var reconstructed bv.Value
	if left {
		reconstructed = bv.Sll(data, uint64(shift))
	} else {
		reconstructed = bv.Srl(data, uint64(shift))
	}
	if !reconstructed.Equal(target) {
		return conflict()
	}
	return ok(candidate)
}

// invMul is spec.md §4.2.6's inv_mul: an odd o has a modular inverse and the
// result is unique; an even o = 2^n*m requires ctz(target) >= n, after which
// the low bits are determined and the top n bits are randomized.
func invMul(rng *bv.RNG, o, target bv.Value, w uint32) invResult {
	if o.IsZero() {
		if target.IsZero() {
			return ok(rng.Random(w))
		}
		return conflict()
	}
	if inv, isOdd := bv.ModInverse(o); isOdd {
		return ok(bv.Mul(target, inv))
	}
	n := bv.TrailingZeros(o)
	if bv.TrailingZeros(target) < n {
		return conflict()
	}
	m := bv.Srl(o, uint64(n))
	mInv, _ := bv.ModInverse(oddPart(m, w))
	shifted := bv.Srl(target, uint64(n))
	low := bv.Mul(shifted, mInv)
	// clear the top n bits, then fill them with fresh random bits.
	for i := w - n; i < w; i++ {
		low = low.SetBit(i, rng.Bool())
	}
	return ok(low)
}

// oddPart strips trailing zero bits already accounted for by n, returning
// an odd value suitable for ModInverse.
func oddPart(v bv.Value, w uint32) bv.Value {
	if v.IsZero() {
		return bv.One(w)
	}
	for !v.GetBit(0) {
		v = bv.Srl(v, 1)
	}
	return v
}

// invUdiv is spec.md §4.2.6's inv_udiv, solving e0 / o = target for e0 (the
// dividend) given the fixed divisor o, or o / e1 = target for e1 (the
// divisor) given the fixed dividend o.
func invUdiv(rng *bv.RNG, o, target bv.Value, eidx int, w uint32) invResult {
	ones := bv.Ones(w)
	if eidx == 0 { // e0 / o = target
		if o.IsZero() {
			if target.Equal(ones) {
				return ok(rng.Random(w))
			}
			return conflict()
		}
		lo := bv.Mul(target, o)
		if bv.IsUmulo(target, o) {
			return conflict()
		}
		hi := bv.Add(lo, bv.Sub(o, bv.One(w)))
		if bv.Ult(hi, lo) {
			hi = ones
		}
		return ok(rng.RandomRange(lo, hi))
	}
	// o / e1 = target
	if target.Equal(ones) {
		return ok(bv.Zero(w)) // udiv(x, 0) = all ones for every x
	}
	if target.IsZero() {
		if o.Equal(ones) { // no e1 exceeds o
			return conflict()
		}
		return ok(rng.RandomRange(bv.Add(o, bv.One(w)), ones))
	}
	div := bv.Udiv(o, target)
	if div.IsZero() || !bv.Udiv(o, div).Equal(target) {
		return conflict()
	}
	return ok(div)
}

// invUrem is spec.md §4.2.6's inv_urem, solving e0 % o = target for e0.
func invUrem(rng *bv.RNG, o, target bv.Value, w uint32) invResult {
	ones := bv.Ones(w)
	if target.Equal(ones) {
		if !o.IsZero() {
			return conflict()
		}
		return ok(ones)
	}
	if o.IsZero() {
		return ok(target)
	}
	if bv.Ult(o, target) {
		return conflict()
	}
	if o.Equal(target) { // a remainder is always below a nonzero divisor
		return conflict()
	}
	if bv.Ult(bv.Sub(ones, target), o) {
		return ok(target) // o + target overflows, so quotient 0 is the only choice
	}
	// general case: pick quotient n>=1 with n*o + target <= ones, width-safe.
	maxN := 1
	for {
		next := uint64(maxN + 1)
		prod := bv.Mul(bv.FromUint64(w, next), o)
		if bv.IsUmulo(bv.FromUint64(w, next), o) || bv.Ult(bv.Sub(ones, target), prod) {
			break
		}
		maxN++
		if maxN > 1<<20 {
			break
		}
	}
	n := rng.Intn(maxN) + 1
	return ok(bv.Add(bv.Mul(bv.FromUint64(w, uint64(n)), o), target))
}

// invConcat is spec.md §4.2.6's inv_concat: the slice of target matching
// the fixed operand must equal it; the result is the complementary slice.
func invConcat(o, target bv.Value, wHi, wLo uint32, solveHi bool) invResult {
	if solveHi {
		lo := bv.Slice(target, wLo-1, 0)
		if !lo.Equal(o) {
			return conflict()
		}
		return ok(bv.Slice(target, wHi+wLo-1, wLo))
	}
	hi := bv.Slice(target, wHi+wLo-1, wLo)
	if !hi.Equal(o) {
		return conflict()
	}
	return ok(bv.Slice(target, wLo-1, 0))
}

// invSlice is spec.md §4.2.6's inv_slice: the sliced range is forced to
// target; each out-of-range bit keeps its current value with probability
// keepDC and is randomized otherwise, then one don't-care bit is flipped
// with probability flipProb.
func invSlice(rng *bv.RNG, current, target bv.Value, upper, lower uint32, w uint32, keepDC, flipProb float64) bv.Value {
	result := current
	for i := lower; i <= upper; i++ {
		result = result.SetBit(i, target.GetBit(i-lower))
	}
	for i := uint32(0); i < w; i++ {
		if i >= lower && i <= upper {
			continue
		}
		if !rng.Chance(keepDC) {
			result = result.SetBit(i, rng.Bool())
		}
	}
	if rng.Chance(flipProb) && w > (upper-lower+1) {
		// flip one of the don't-care bits, if any exist.
		for tries := 0; tries < int(w); tries++ {
			i := uint32(rng.Intn(int(w)))
			if i < lower || i > upper {
				result = result.FlipBit(i)
				break
			}
		}
	}
	return result
}
