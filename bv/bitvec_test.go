// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// (at your option) any later version.

package bv

import "testing"

func assertEqual(t *testing.T, got, want Value) {
	t.Helper()
	if !got.Equal(want) {
		t.Errorf("got %s, want %s", got.Text(16), want.Text(16))
	}
}

func TestAddSubRoundTrip(t *testing.T) {
	// Scenario from spec.md §8.4.3: w=16, o=0x1234, target=0x0000.
	o := FromUint64(16, 0x1234)
	target := FromUint64(16, 0x0000)
	r := Sub(target, o) // inv_add(o, target) = target - o
	assertEqual(t, r, FromUint64(16, 0xEDCC))
	assertEqual(t, Add(r, o), target)
}

func TestMulInverseRoundTrip(t *testing.T) {
	// Scenario from spec.md §8.4.2.
	o := FromUint64(8, 0b00000011)
	target := FromUint64(8, 0b11001100)
	inv, ok := ModInverse(o)
	if !ok {
		t.Fatalf("expected odd value %s to have a modular inverse", o)
	}
	r := Mul(target, inv)
	assertEqual(t, Mul(r, o), target)
}

func TestConcatSlice(t *testing.T) {
	a := FromUint64(4, 0b1010)
	b := FromUint64(4, 0b0110)
	c := Concat(a, b)
	if c.Width() != 8 {
		t.Fatalf("expected width 8, got %d", c.Width())
	}
	assertEqual(t, Slice(c, 7, 4), a)
	assertEqual(t, Slice(c, 3, 0), b)
}

func TestSliceDegenerate(t *testing.T) {
	a := FromUint64(8, 0xAB)
	assertEqual(t, Slice(a, 7, 0), a)
}

func TestShiftBoundary(t *testing.T) {
	a := FromUint64(8, 0xFF)
	assertEqual(t, Sll(a, 0), a)
	assertEqual(t, Sll(a, 8), Zero(8))
	assertEqual(t, Srl(a, 8), Zero(8))
}

func TestUdivUremByZero(t *testing.T) {
	x := FromUint64(4, 0b0110)
	assertEqual(t, Udiv(x, Zero(4)), Ones(4))
	assertEqual(t, Urem(x, Zero(4)), x)
}

func TestUltAgainstZero(t *testing.T) {
	for _, x := range []uint64{0, 1, 7, 15} {
		v := FromUint64(4, x)
		if Ult(v, Zero(4)) {
			t.Errorf("ult(%d, 0) should always be false", x)
		}
	}
}

func TestIsUmulo(t *testing.T) {
	cases := []struct {
		a, b uint64
		w    uint32
		want bool
	}{
		{15, 15, 4, true},   // 225 overflows 4 bits
		{3, 5, 4, false},    // 15 fits
		{1, 0, 4, false},
	}
	for _, c := range cases {
		got := IsUmulo(FromUint64(c.w, c.a), FromUint64(c.w, c.b))
		if got != c.want {
			t.Errorf("IsUmulo(%d,%d,w=%d) = %v, want %v", c.a, c.b, c.w, got, c.want)
		}
	}
}

func TestPowerOfTwo(t *testing.T) {
	cases := []struct {
		x    uint64
		n    uint32
		ok   bool
	}{
		{1, 0, true},
		{2, 1, true},
		{8, 3, true},
		{6, 0, false},
		{0, 0, false},
	}
	for _, c := range cases {
		n, ok := PowerOfTwo(FromUint64(8, c.x))
		if ok != c.ok || (ok && n != c.n) {
			t.Errorf("PowerOfTwo(%d) = (%d,%v), want (%d,%v)", c.x, n, ok, c.n, c.ok)
		}
	}
}

func TestLeadingTrailingZeros(t *testing.T) {
	v := FromUint64(8, 0b00010100)
	if got := LeadingZeros(v); got != 3 {
		t.Errorf("LeadingZeros = %d, want 3", got)
	}
	if got := TrailingZeros(v); got != 2 {
		t.Errorf("TrailingZeros = %d, want 2", got)
	}
	if got := TrailingZeros(Zero(8)); got != 8 {
		t.Errorf("TrailingZeros(0) = %d, want 8", got)
	}
}

func TestFlipSetGetBit(t *testing.T) {
	v := Zero(8)
	v = v.SetBit(3, true)
	if !v.GetBit(3) {
		t.Fatalf("expected bit 3 set")
	}
	v = v.FlipBit(3)
	if v.GetBit(3) {
		t.Fatalf("expected bit 3 cleared after flip")
	}
}

func TestModInverseRequiresOdd(t *testing.T) {
	_, ok := ModInverse(FromUint64(8, 4))
	if ok {
		t.Fatalf("even value must not have a modular inverse")
	}
}

func TestRandomRangeBounds(t *testing.T) {
	rng := NewRNG(42)
	lo := FromUint64(8, 10)
	hi := FromUint64(8, 20)
	for i := 0; i < 200; i++ {
		v := rng.RandomRange(lo, hi)
		if Ult(v, lo) || Ult(hi, v) {
			t.Fatalf("RandomRange produced %s outside [%s,%s]", v, lo, hi)
		}
	}
}

func TestRedandRedorRedxor(t *testing.T) {
	if !Redand(Ones(4)) {
		t.Error("Redand(1111) should be true")
	}
	if Redand(FromUint64(4, 0b1110)) {
		t.Error("Redand(1110) should be false")
	}
	if Redor(Zero(4)) {
		t.Error("Redor(0000) should be false")
	}
	if !Redxor(FromUint64(4, 0b0001)) {
		t.Error("Redxor(0001) should be true")
	}
	if Redxor(FromUint64(4, 0b0011)) {
		t.Error("Redxor(0011) should be false")
	}
}
