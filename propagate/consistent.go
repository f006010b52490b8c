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

// consistentValue is the fallback sampler of spec.md §4.2.4/§4.2.6: unlike
// an inverse sampler it does not have to make the parent's equation hold
// exactly, only respect the easy unary constraints each operator admits, so
// it always succeeds (it is the engine's answer to a recoverable conflict).
func (e *Engine) consistentValue(kind expr.Kind, target bv.Value, o bv.Value, eidx int, w uint32) bv.Value {
	switch kind {
	case expr.KindAnd:
		// any value that agrees with target wherever o forces a bit.
		v := target
		for i := uint32(0); i < w; i++ {
			if !o.GetBit(i) {
				v = v.SetBit(i, e.rng.Bool())
			}
		}
		return v
	case expr.KindUlt:
		targetTrue := target.GetBit(0)
		ones, zero := bv.Ones(w), bv.Zero(w)
		if eidx == 0 {
			if targetTrue {
				return e.rng.RandomRange(zero, ones)
			}
			return e.rng.RandomRange(zero, ones)
		}
		return e.rng.RandomRange(zero, ones)
	case expr.KindUdiv, expr.KindUrem:
		if target.IsZero() {
			return bv.Zero(w)
		}
		return e.rng.Random(w)
	case expr.KindBvEq:
		if target.GetBit(0) {
			return o
		}
		return e.rng.Random(w)
	case expr.KindSll, expr.KindSrl:
		return e.rng.Random(w)
	case expr.KindConcat:
		return e.rng.Random(w)
	default:
		return e.rng.Random(w)
	}
}

// consistentSlice is the consistent-sampler analogue of invSlice: any value
// whose [upper:lower] bits equal target, other bits random.
func (e *Engine) consistentSlice(current, target bv.Value, upper, lower, w uint32) bv.Value {
	v := current
	for i := lower; i <= upper; i++ {
		v = v.SetBit(i, target.GetBit(i-lower))
	}
	for i := uint32(0); i < w; i++ {
		if i < lower || i > upper {
			v = v.SetBit(i, e.rng.Bool())
		}
	}
	return v
}
