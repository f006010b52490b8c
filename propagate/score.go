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
	"math/bits"

	"github.com/marcogario/boolector/bv"
	"github.com/marcogario/boolector/expr"
)

const scoreC1 = 0.5

// hammingDistance counts the positions at which a and b differ.
func hammingDistance(a, b bv.Value) int {
	x := bv.Xor(a, b)
	n := 0
	for _, w := range x.BigInt().Bits() {
		n += bits.OnesCount(uint(w))
	}
	return n
}

// minFlipBelow returns the minimal number of bit flips, zeroing
// most-significant set bits of x first, needed to make x < y (spec.md
// §4.2.2's min_flip).
func minFlipBelow(x, y bv.Value, w uint32) int {
	cur := x
	if bv.Ult(cur, y) {
		return 0
	}
	flips := 0
	for i := int(w) - 1; i >= 0; i-- {
		if cur.GetBit(uint32(i)) {
			cur = cur.FlipBit(uint32(i))
			flips++
			if bv.Ult(cur, y) {
				return flips
			}
		}
	}
	return flips
}

// score computes the soft-satisfaction score of boolean node r under mo
// (spec.md §4.2.2), caching the result keyed by the reference's signed id.
func (e *Engine) score(r expr.Ref) float64 {
	key := modelKey(r)
	if v, ok := e.mo.score[key]; ok {
		return v
	}
	s := e.computeScore(r)
	e.mo.score[key] = s
	return s
}

func (e *Engine) computeScore(r expr.Ref) float64 {
	n := r.Node()
	if n.IsBvConst() {
		if r.ConstValue().GetBit(0) {
			return 1
		}
		return 0
	}
	if n.IsBvVar() || n.IsParam() {
		v, _ := e.mo.get(r)
		if v.GetBit(0) {
			return 1
		}
		return 0
	}

	switch n.Kind() {
	case expr.KindAnd:
		if !r.Inverted() {
			return scoreAnd(e.score(n.Child(0)), e.score(n.Child(1)))
		}
		return max(e.score(expr.Not(n.Child(0))), e.score(expr.Not(n.Child(1))))
	case expr.KindBvEq:
		a, _ := e.mo.get(n.Child(0))
		b, _ := e.mo.get(n.Child(1))
		eqScore := 1.0
		if !a.Equal(b) {
			w := n.Child(0).Node().Sort().BitWidth()
			eqScore = scoreC1 * (1 - float64(hammingDistance(a, b))/float64(w))
		}
		if r.Inverted() {
			return 1 - eqScore
		}
		return eqScore
	case expr.KindUlt:
		a, _ := e.mo.get(n.Child(0))
		b, _ := e.mo.get(n.Child(1))
		ltScore := 1.0
		if !bv.Ult(a, b) {
			w := n.Child(0).Node().Sort().BitWidth()
			ltScore = scoreC1 * (1 - float64(minFlipBelow(a, b, w))/float64(w))
		}
		if r.Inverted() {
			return 1 - ltScore
		}
		return ltScore
	case expr.KindCond:
		if n.Sort().BitWidth() != 1 {
			return 1
		}
		v, _ := e.mo.get(r)
		if v.GetBit(0) {
			return 1
		}
		return 0
	default:
		v, ok := e.mo.get(r)
		if !ok {
			return 0
		}
		if v.GetBit(0) {
			return 1
		}
		return 0
	}
}

// scoreAnd implements spec.md §4.2.2's and-score with its rounding fix-up:
// a mean of 1.0 with an operand below 1.0 is clamped to that operand's
// score instead.
func scoreAnd(a, b float64) float64 {
	mean := (a + b) / 2
	if mean == 1.0 && (a < 1.0 || b < 1.0) {
		return min(a, b)
	}
	return mean
}

func max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
