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

package smtdump

import (
	"strings"
	"testing"

	"github.com/marcogario/boolector/bv"
	"github.com/marcogario/boolector/expr"
)

// TestDumpIsDeterministic is spec.md §8.4.5: (= (bvadd x y) (bvadd y x))
// hash-conses both additions to the same node (commutative sort), so the
// dump must contain exactly one "bvadd" subterm and be byte-identical
// across repeated runs.
func TestDumpIsDeterministic(t *testing.T) {
	m := expr.NewManager(expr.DefaultOptions())
	x := m.NewVar(8, "x")
	y := m.NewVar(8, "y")
	eq := m.BvEq(m.Add(x, y), m.Add(y, x))
	m.AddConstraint(eq)

	var b1, b2 strings.Builder
	if err := Dump(&b1, m, FormatBinary); err != nil {
		t.Fatalf("first Dump returned an error: %v", err)
	}
	if err := Dump(&b2, m, FormatBinary); err != nil {
		t.Fatalf("second Dump returned an error: %v", err)
	}
	if b1.String() != b2.String() {
		t.Fatalf("Dump is not deterministic:\n--- run 1 ---\n%s\n--- run 2 ---\n%s", b1.String(), b2.String())
	}

	out := b1.String()
	if n := strings.Count(out, "(assert "); n != 1 {
		t.Fatalf("expected exactly one (assert ...), got %d in:\n%s", n, out)
	}
	if n := strings.Count(out, "bvadd"); n != 1 {
		t.Fatalf("expected exactly one bvadd subterm (shared via commutative sort), got %d in:\n%s", n, out)
	}
}

// TestDumpOutputShape checks spec.md §4.3.4's top-level shape: set-logic,
// declare-fun per variable, assert, check-sat, exit, in that order.
func TestDumpOutputShape(t *testing.T) {
	m := expr.NewManager(expr.DefaultOptions())
	x := m.NewVar(4, "x")
	y := m.NewVar(4, "y")
	eq := m.BvEq(m.Add(x, y), m.NewConst(bv.FromUint64(4, 10)))
	m.AddConstraint(eq)

	var b strings.Builder
	if err := Dump(&b, m, FormatBinary); err != nil {
		t.Fatalf("Dump returned an error: %v", err)
	}
	out := b.String()

	logicIdx := strings.Index(out, "(set-logic QF_BV)")
	declXIdx := strings.Index(out, "(declare-fun x ()")
	declYIdx := strings.Index(out, "(declare-fun y ()")
	assertIdx := strings.Index(out, "(assert ")
	satIdx := strings.Index(out, "(check-sat)")
	exitIdx := strings.Index(out, "(exit)")

	if logicIdx < 0 || declXIdx < 0 || declYIdx < 0 || assertIdx < 0 || satIdx < 0 || exitIdx < 0 {
		t.Fatalf("missing an expected top-level form in:\n%s", out)
	}
	if !(logicIdx < declXIdx && declYIdx < assertIdx && assertIdx < satIdx && satIdx < exitIdx) {
		t.Fatalf("top-level forms out of spec.md §4.3.4 order in:\n%s", out)
	}
}

// TestDumpSharesRepeatedSubterm checks that a sub-term used by two distinct
// roots is define-fun'd once and referenced by name both places, rather
// than being inlined twice.
func TestDumpSharesRepeatedSubterm(t *testing.T) {
	m := expr.NewManager(expr.DefaultOptions())
	x := m.NewVar(4, "x")
	y := m.NewVar(4, "y")
	shared := m.Add(x, y)
	r1 := m.Ult(shared, m.NewConst(bv.FromUint64(4, 15)))
	r2 := m.BvEq(shared, m.NewConst(bv.FromUint64(4, 5)))
	m.AddConstraint(r1)
	m.AddConstraint(r2)

	var b strings.Builder
	if err := Dump(&b, m, FormatBinary); err != nil {
		t.Fatalf("Dump returned an error: %v", err)
	}
	out := b.String()
	if n := strings.Count(out, "(define-fun"); n != 1 {
		t.Fatalf("expected exactly one define-fun for the shared (bvadd x y), got %d in:\n%s", n, out)
	}
	if n := strings.Count(out, "bvadd x y"); n != 1 {
		t.Fatalf("expected the shared subterm's body to appear exactly once, got %d in:\n%s", n, out)
	}
}
