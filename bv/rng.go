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

package bv

import (
	"math/big"
	"math/rand"
)

// RNG is the process-local, seedable random source used throughout the
// solver. It never touches the global math/rand source, so two RNGs
// constructed from the same seed produce identical sequences regardless of
// what else is happening in the process.
type RNG struct {
	r *rand.Rand
}

// NewRNG returns an RNG seeded deterministically from seed.
func NewRNG(seed int64) *RNG {
	return &RNG{r: rand.New(rand.NewSource(seed))}
}

// Reseed resets the RNG to the sequence produced by seed.
func (g *RNG) Reseed(seed int64) { g.r.Seed(seed) }

// Bool returns a uniform random boolean.
func (g *RNG) Bool() bool { return g.r.Intn(2) == 1 }

// Chance reports true with probability p (0 <= p <= 1); used to gate the
// various PROP_PROB_* options.
func (g *RNG) Chance(p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	return g.r.Float64() < p
}

// Intn returns a uniform random int in [0, n).
func (g *RNG) Intn(n int) int { return g.r.Intn(n) }

// Random returns a uniform random value of the given width.
func (g *RNG) Random(width uint32) Value {
	if width == 0 {
		return Zero(0)
	}
	n := twoPow(width)
	x := new(big.Int).Rand(g.r, n)
	return Value{width, x}
}

// RandomRange returns a value uniformly distributed in [lo, hi], inclusive.
// lo and hi must share a width, and lo must not exceed hi.
func (g *RNG) RandomRange(lo, hi Value) Value {
	requireSameWidth(lo, hi)
	if lo.bits.Cmp(hi.bits) > 0 {
		fatalf("empty random range: lo=%s hi=%s", lo.Text(16), hi.Text(16))
	}
	span := new(big.Int).Sub(hi.bits, lo.bits)
	span.Add(span, big.NewInt(1))
	x := new(big.Int).Rand(g.r, span)
	x.Add(x, lo.bits)
	return Value{lo.width, x}
}
