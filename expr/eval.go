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

import "github.com/marcogario/boolector/bv"

// Eval computes the result of a non-leaf, non-function node kind given its
// children's current values, representing Bool results as width-1 values
// (1 = true). It is shared by constant folding at build time and by the
// propagation engine's cone-of-influence recompute (spec.md §4.2.7), so the
// two layers can never disagree about operator semantics.
func Eval(kind Kind, children []bv.Value, upper, lower uint32) bv.Value {
	switch kind {
	case KindSlice:
		return bv.Slice(children[0], upper, lower)
	case KindAnd:
		return bv.And(children[0], children[1])
	case KindAdd:
		return bv.Add(children[0], children[1])
	case KindMul:
		return bv.Mul(children[0], children[1])
	case KindUdiv:
		return bv.Udiv(children[0], children[1])
	case KindUrem:
		return bv.Urem(children[0], children[1])
	case KindConcat:
		return bv.Concat(children[0], children[1])
	case KindSll:
		return bv.Sll(children[0], children[1].Uint64())
	case KindSrl:
		return bv.Srl(children[0], children[1].Uint64())
	case KindUlt:
		return BoolValue(bv.Ult(children[0], children[1]))
	case KindBvEq:
		return BoolValue(bv.Eq(children[0], children[1]))
	case KindCond:
		if children[0].GetBit(0) {
			return children[1]
		}
		return children[2]
	default:
		fatalf("Eval: unsupported kind %s", kind)
		return bv.Value{}
	}
}

// BoolValue encodes a Go bool as the width-1 bit-vector convention used for
// Bool-sorted nodes throughout this module.
func BoolValue(b bool) bv.Value {
	if b {
		return bv.One(1)
	}
	return bv.Zero(1)
}
