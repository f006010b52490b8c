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

// Package bv implements a fixed-width unsigned bit-vector value type.
//
// A Value is immutable: every operation returns a new Value rather than
// mutating its receiver or arguments. All binary operations require their
// operands to share a width; mismatches are programming errors and panic
// rather than return an error, since there is no sensible recovery for a
// caller that got the arithmetic wrong at a type level.
package bv

import (
	"fmt"
	"math/big"
	"math/bits"
	"strings"
)

// Value is an unsigned integer of a fixed bit width. The zero Value is
// invalid; use New or Zero to construct one.
type Value struct {
	width uint32
	bits  *big.Int
}

func fatalf(format string, args ...any) {
	panic(fmt.Sprintf("bv: "+format, args...))
}

func requireSameWidth(a, b Value) {
	if a.width != b.width {
		fatalf("width mismatch: %d vs %d", a.width, b.width)
	}
}

func twoPow(width uint32) *big.Int {
	return new(big.Int).Lsh(big.NewInt(1), uint(width))
}

// maskTo reduces x modulo 2^width using Euclidean mod, which (unlike
// big.Int.Rem) always returns a value in [0, 2^width) even for negative x.
func maskTo(x *big.Int, width uint32) *big.Int {
	m := twoPow(width)
	r := new(big.Int)
	r.Mod(x, m)
	return r
}

// New returns the zero value of the given width.
func New(width uint32) Value { return Zero(width) }

// Zero returns the all-zero value of the given width.
func Zero(width uint32) Value { return Value{width, new(big.Int)} }

// One returns the value 1 at the given width.
func One(width uint32) Value {
	if width == 0 {
		fatalf("zero-width bit-vector")
	}
	return Value{width, big.NewInt(1)}
}

// Ones returns the all-one value (2^width - 1) at the given width.
func Ones(width uint32) Value {
	m := twoPow(width)
	m.Sub(m, big.NewInt(1))
	return Value{width, m}
}

// FromUint64 builds a Value of the given width from the low bits of x.
func FromUint64(width uint32, x uint64) Value {
	return Value{width, maskTo(new(big.Int).SetUint64(x), width)}
}

// FromBigInt builds a Value of the given width, reducing x modulo 2^width.
func FromBigInt(width uint32, x *big.Int) Value {
	return Value{width, maskTo(x, width)}
}

// Width returns the bit width of v.
func (v Value) Width() uint32 { return v.width }

// BigInt returns a copy of v's value as a non-negative big.Int.
func (v Value) BigInt() *big.Int { return new(big.Int).Set(v.bits) }

// Uint64 returns the low 64 bits of v.
func (v Value) Uint64() uint64 { return v.bits.Uint64() }

// Clone returns an independent copy of v.
func (v Value) Clone() Value { return Value{v.width, new(big.Int).Set(v.bits)} }

// Equal reports whether v and o have the same width and value.
func (v Value) Equal(o Value) bool {
	return v.width == o.width && v.bits.Cmp(o.bits) == 0
}

// IsZero reports whether v is the all-zero value.
func (v Value) IsZero() bool { return v.bits.Sign() == 0 }

// Text renders v in the given base (2, 10, or 16), zero-padded to its width
// when base is 2.
func (v Value) Text(base int) string {
	s := v.bits.Text(base)
	if base == 2 && uint32(len(s)) < v.width {
		s = strings.Repeat("0", int(v.width)-len(s)) + s
	}
	return s
}

func (v Value) String() string { return v.Text(2) }

// Not returns the bitwise complement of a.
func Not(a Value) Value {
	allOnes := Ones(a.width)
	return Value{a.width, new(big.Int).Xor(a.bits, allOnes.bits)}
}

// And returns the bitwise AND of a and b.
func And(a, b Value) Value {
	requireSameWidth(a, b)
	return Value{a.width, new(big.Int).And(a.bits, b.bits)}
}

// Or returns the bitwise OR of a and b.
func Or(a, b Value) Value {
	requireSameWidth(a, b)
	return Value{a.width, new(big.Int).Or(a.bits, b.bits)}
}

// Xor returns the bitwise XOR of a and b.
func Xor(a, b Value) Value {
	requireSameWidth(a, b)
	return Value{a.width, new(big.Int).Xor(a.bits, b.bits)}
}

// Add returns a + b, wrapping modulo 2^width.
func Add(a, b Value) Value {
	requireSameWidth(a, b)
	return Value{a.width, maskTo(new(big.Int).Add(a.bits, b.bits), a.width)}
}

// Sub returns a - b, wrapping modulo 2^width.
func Sub(a, b Value) Value {
	requireSameWidth(a, b)
	return Value{a.width, maskTo(new(big.Int).Sub(a.bits, b.bits), a.width)}
}

// Neg returns the two's-complement negation of a.
func Neg(a Value) Value { return Sub(Zero(a.width), a) }

// Mul returns a * b, wrapping modulo 2^width.
func Mul(a, b Value) Value {
	requireSameWidth(a, b)
	return Value{a.width, maskTo(new(big.Int).Mul(a.bits, b.bits), a.width)}
}

// Udiv returns a / b, with the boolector convention udiv(x, 0) = all ones.
func Udiv(a, b Value) Value {
	requireSameWidth(a, b)
	if b.IsZero() {
		return Ones(a.width)
	}
	return Value{a.width, new(big.Int).Div(a.bits, b.bits)}
}

// Urem returns a % b, with the boolector convention urem(x, 0) = x.
func Urem(a, b Value) Value {
	requireSameWidth(a, b)
	if b.IsZero() {
		return a.Clone()
	}
	return Value{a.width, new(big.Int).Mod(a.bits, b.bits)}
}

// Sll returns a shifted left by shift bits, zero-filled, shifting in zero
// (and producing zero) once shift reaches the width.
func Sll(a Value, shift uint64) Value {
	if shift >= uint64(a.width) {
		return Zero(a.width)
	}
	return Value{a.width, maskTo(new(big.Int).Lsh(a.bits, uint(shift)), a.width)}
}

// Srl returns a shifted right by shift bits, zero-filled.
func Srl(a Value, shift uint64) Value {
	if shift >= uint64(a.width) {
		return Zero(a.width)
	}
	return Value{a.width, new(big.Int).Rsh(a.bits, uint(shift))}
}

// Ult reports whether a < b as unsigned integers.
func Ult(a, b Value) bool {
	requireSameWidth(a, b)
	return a.bits.Cmp(b.bits) < 0
}

// Eq reports whether a == b.
func Eq(a, b Value) bool {
	requireSameWidth(a, b)
	return a.bits.Cmp(b.bits) == 0
}

// Concat returns hi concatenated above lo: the result has width
// hi.Width()+lo.Width(), with hi occupying the upper bits.
func Concat(hi, lo Value) Value {
	r := new(big.Int).Lsh(hi.bits, uint(lo.width))
	r.Or(r, lo.bits)
	return Value{hi.width + lo.width, r}
}

// Slice extracts bits [upper:lower] (inclusive, lower <= upper < a.Width())
// as a value of width upper-lower+1.
func Slice(a Value, upper, lower uint32) Value {
	if lower > upper || upper >= a.width {
		fatalf("invalid slice bounds [%d:%d] of width %d", upper, lower, a.width)
	}
	width := upper - lower + 1
	r := new(big.Int).Rsh(a.bits, uint(lower))
	return Value{width, maskTo(r, width)}
}

// Uext zero-extends a by extra bits.
func Uext(a Value, extra uint32) Value {
	return Value{a.width + extra, new(big.Int).Set(a.bits)}
}

// Sext sign-extends a by extra bits, replicating its most significant bit.
func Sext(a Value, extra uint32) Value {
	if extra == 0 || !a.GetBit(a.width-1) {
		return Uext(a, extra)
	}
	ext := new(big.Int).Lsh(Ones(extra).bits, uint(a.width))
	ext.Or(ext, a.bits)
	return Value{a.width + extra, ext}
}

// Inc returns a + 1, wrapping modulo 2^width.
func Inc(a Value) Value { return Add(a, One(a.width)) }

// Dec returns a - 1, wrapping modulo 2^width.
func Dec(a Value) Value { return Sub(a, One(a.width)) }

// ModInverse returns the multiplicative inverse of a modulo 2^width. It is
// defined only when a is odd; the second return value is false otherwise.
func ModInverse(a Value) (Value, bool) {
	if !a.GetBit(0) {
		return Value{}, false
	}
	n := twoPow(a.width)
	r := new(big.Int).ModInverse(a.bits, n)
	if r == nil {
		return Value{}, false
	}
	return Value{a.width, r}, true
}

// PowerOfTwo returns n such that a == 2^n, and true, if a has exactly one
// bit set; otherwise it returns (0, false).
func PowerOfTwo(a Value) (uint32, bool) {
	if a.bits.Sign() == 0 {
		return 0, false
	}
	n := uint32(a.bits.BitLen() - 1)
	if a.bits.TrailingZeroBits() != uint(n) {
		return 0, false
	}
	return n, true
}

// IsUmulo reports whether a*b overflows at the shared width of a and b.
func IsUmulo(a, b Value) bool {
	requireSameWidth(a, b)
	full := new(big.Int).Mul(a.bits, b.bits)
	return full.BitLen() > int(a.width)
}

// LeadingZeros returns the number of leading zero bits in a, counting from
// the most significant bit of a's width.
func LeadingZeros(a Value) uint32 {
	return a.width - uint32(a.bits.BitLen())
}

// TrailingZeros returns the number of trailing zero bits in a. The all-zero
// value reports its full width.
func TrailingZeros(a Value) uint32 {
	if a.IsZero() {
		return a.width
	}
	return uint32(a.bits.TrailingZeroBits())
}

// FlipBit returns a with bit i toggled.
func (v Value) FlipBit(i uint32) Value {
	r := new(big.Int).Set(v.bits)
	r.SetBit(r, int(i), 1-r.Bit(int(i)))
	return Value{v.width, r}
}

// SetBit returns a with bit i set to the given boolean value.
func (v Value) SetBit(i uint32, bit bool) Value {
	r := new(big.Int).Set(v.bits)
	b := uint(0)
	if bit {
		b = 1
	}
	r.SetBit(r, int(i), b)
	return Value{v.width, r}
}

// GetBit reports the value of bit i (0 = least significant).
func (v Value) GetBit(i uint32) bool { return v.bits.Bit(int(i)) == 1 }

// Redand reports whether every bit of a is set.
func Redand(a Value) bool { return a.bits.Cmp(Ones(a.width).bits) == 0 }

// Redor reports whether any bit of a is set.
func Redor(a Value) bool { return !a.IsZero() }

// Redxor reports the XOR-reduction (parity) of a's bits.
func Redxor(a Value) bool {
	count := 0
	for _, w := range a.bits.Bits() {
		count += bits.OnesCount(uint(w))
	}
	return count%2 == 1
}
