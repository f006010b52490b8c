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
	"fmt"
	"io"
	"strings"

	"golang.org/x/exp/slices"

	"github.com/marcogario/boolector/bv"
	"github.com/marcogario/boolector/expr"
)

// printer streams a Solver Context's asserted roots as SMT-LIB v2 text. It
// holds no exported state; callers go through Dump.
type printer struct {
	c      *context
	w      io.Writer
	err    error
	nextID int
}

// Dump writes the full SMT-LIB v2 rendering of spec.md §4.3.4 for every
// constraint and assumption currently asserted on m, to w. Wrap w in a
// bufio.Writer at the call site for repeated small writes (the CLI does
// this; the package itself performs no buffering, mirroring vm.Selection's
// io.Writer-through style).
func Dump(w io.Writer, m *expr.Manager, format NumberFormat) error {
	c := newContext(m, format)
	p := &printer{c: c, w: w}

	p.printf("(set-logic %s)\n", p.logic())

	p.declareLeaves()
	p.defineShared()

	for _, r := range c.roots {
		p.printf("(assert %s)\n", p.ref(r, true))
	}
	p.printf("(check-sat)\n")
	p.printf("(exit)\n")
	return p.err
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

// logic picks QF_UFBV over QF_BV the moment a single uninterpreted function
// is declared (spec.md §4.3.4).
func (p *printer) logic() string {
	if len(p.c.m.UFs()) > 0 {
		return "QF_UFBV"
	}
	return "QF_BV"
}

// declareLeaves emits a declare-fun for every variable and UF, sorted by id
// (spec.md §4.3.6), and registers each under its symbol (or a synthesized
// name if the node was never given one).
func (p *printer) declareLeaves() {
	leaves := append([]*expr.Node(nil), p.c.m.BvVars()...)
	leaves = append(leaves, p.c.m.UFs()...)
	slices.SortFunc(leaves, func(a, b *expr.Node) int {
		switch {
		case a.ID() < b.ID():
			return -1
		case a.ID() > b.ID():
			return 1
		default:
			return 0
		}
	})
	for _, n := range leaves {
		name := p.nameFor(n)
		p.c.dumped[n.ID()] = name
		if n.IsUF() {
			sort := n.Sort()
			domain := make([]string, len(sort.Domain))
			for i, d := range sort.Domain {
				domain[i] = d.String()
			}
			p.printf("(declare-fun %s (%s) %s)\n", name, strings.Join(domain, " "), sort.Codomain.String())
			continue
		}
		p.printf("(declare-fun %s () %s)\n", name, n.Sort().String())
	}
}

// defineShared emits a define-fun for every lambda and every shared
// non-parameterized term, in dependency (children-first) order, so a
// define-fun's body only ever references names already bound above it.
func (p *printer) defineShared() {
	for _, n := range p.c.order {
		if _, already := p.c.dumped[n.ID()]; already {
			continue
		}
		if n.IsLambda() {
			p.defineLambda(n)
			continue
		}
		if p.c.shared[n.ID()] {
			p.defineTerm(n)
		}
	}
}

func (p *printer) defineTerm(n *expr.Node) {
	name := p.nameFor(n)
	wantBool := p.c.boolean[n.ID()]
	body := p.ref(expr.RefOf(n), wantBool)
	sort := "Bool"
	if !wantBool {
		sort = n.Sort().String()
	}
	p.c.dumped[n.ID()] = name
	p.printf("(define-fun %s () %s %s)\n", name, sort, body)
}

// defineLambda prints a (possibly curried) lambda as one define-fun, zipping
// nested lambda parameters into a single signature (spec.md §4.3.4).
func (p *printer) defineLambda(n *expr.Node) {
	name := p.nameFor(n)
	p.c.dumped[n.ID()] = name // a lambda may reference itself recursively via apply

	var params []*expr.Node
	bodyRef := expr.RefOf(n)
	for bodyRef.Node().IsLambda() {
		bn := bodyRef.Node()
		param := bn.LambdaParam().Node()
		params = append(params, param)
		bodyRef = bn.LambdaBody() // composes any inversion on this hop correctly
	}

	sig := make([]string, len(params))
	for i, pn := range params {
		pname := p.nameFor(pn)
		p.c.dumped[pn.ID()] = pname
		sig[i] = fmt.Sprintf("(%s %s)", pname, pn.Sort().String())
	}

	wantBool := p.c.boolean[bodyRef.Node().ID()]
	retSort := "Bool"
	if !wantBool {
		retSort = bodyRef.Node().Sort().String()
	}
	bodyText := p.ref(bodyRef, wantBool)

	p.printf("(define-fun %s (%s) %s %s)\n", name, strings.Join(sig, " "), retSort, bodyText)

	for _, pn := range params {
		delete(p.c.dumped, pn.ID()) // params are only in scope for this one definition
	}
}

func (p *printer) nameFor(n *expr.Node) string {
	if sym := n.Symbol(); sym != "" {
		return sym
	}
	p.nextID++
	prefix := "d"
	if n.IsLambda() {
		prefix = "f"
	} else if n.IsParam() {
		prefix = "p"
	}
	return fmt.Sprintf("%s%d_%d", prefix, n.ID(), p.nextID)
}

// ref renders r in a context that expects a Bool (wantBool) or a bit-vector
// term, inserting the Bool/bitvec(1) coercions of spec.md §4.3.3.
func (p *printer) ref(r expr.Ref, wantBool bool) string {
	n := r.Node()
	if n.IsBvConst() {
		return p.constRef(r, wantBool)
	}
	if name, ok := p.c.dumped[n.ID()]; ok {
		natBool := p.c.boolean[n.ID()]
		text := name
		if r.Inverted() {
			text = negate(text, natBool)
		}
		return coerce(text, natBool, wantBool)
	}
	natBool := p.c.boolean[n.ID()]
	text := p.nodeExpr(n)
	if r.Inverted() {
		text = negate(text, natBool)
	}
	return coerce(text, natBool, wantBool)
}

func negate(text string, natBool bool) string {
	if natBool {
		return "(not " + text + ")"
	}
	return "(bvnot " + text + ")"
}

func coerce(text string, natBool, wantBool bool) string {
	switch {
	case natBool == wantBool:
		return text
	case natBool && !wantBool:
		return "(ite " + text + " #b1 #b0)"
	default:
		return "(= " + text + " #b1)"
	}
}

// constRef prints the designated true/false constant as "true"/"false"
// (spec.md §4.3.3) and every other constant as a numeral in the
// configured OUTPUT_NUMBER_FORMAT (spec.md §4.3.4), using the effective
// (inversion-resolved) value so odd constants never need a bvnot wrapper.
func (p *printer) constRef(r expr.Ref, wantBool bool) string {
	n := r.Node()
	if n.ID() == p.c.m.True().Node().ID() {
		if r.Inverted() {
			if wantBool {
				return "false"
			}
			return "#b0"
		}
		if wantBool {
			return "true"
		}
		return "#b1"
	}
	text := p.c.constText(r.ConstValue())
	if wantBool {
		return "(= " + text + " #b1)"
	}
	return text
}

// constText formats v per p.format, caching nothing beyond what the caller
// already does by only calling this once per printed occurrence (constants
// are cheap to format and never shared-term candidates per spec.md §4.3.2).
func (c *context) constText(v bv.Value) string {
	w := v.Width()
	switch c.format {
	case FormatHex:
		if w%4 == 0 {
			s := v.Text(16)
			for uint32(len(s)) < w/4 {
				s = "0" + s
			}
			return "#x" + s
		}
		return "#b" + v.Text(2)
	case FormatDecimal:
		return fmt.Sprintf("(_ bv%s %d)", v.Text(10), w)
	default:
		return "#b" + v.Text(2)
	}
}

// nodeExpr builds the un-inverted, un-coerced SMT-LIB text for a compound
// node by kind (spec.md §4.3.4).
func (p *printer) nodeExpr(n *expr.Node) string {
	switch n.Kind() {
	case expr.KindBvVar, expr.KindParam, expr.KindUF:
		if name, ok := p.c.dumped[n.ID()]; ok {
			return name
		}
		return p.nameFor(n)
	case expr.KindSlice:
		upper, lower := n.SliceBounds()
		return fmt.Sprintf("((_ extract %d %d) %s)", upper, lower, p.ref(n.Child(0), false))
	case expr.KindAnd:
		if n.Sort().BitWidth() == 1 && p.c.boolean[n.ID()] {
			leaves := p.collectAndChain(n)
			parts := make([]string, len(leaves))
			for i, l := range leaves {
				parts[i] = p.ref(l, true)
			}
			return "(and " + strings.Join(parts, " ") + ")"
		}
		return p.binop("bvand", n)
	case expr.KindAdd:
		return p.binop("bvadd", n)
	case expr.KindMul:
		return p.binop("bvmul", n)
	case expr.KindUdiv:
		return p.binop("bvudiv", n)
	case expr.KindUrem:
		return p.binop("bvurem", n)
	case expr.KindConcat:
		return p.binop("concat", n)
	case expr.KindSll:
		return p.shiftOp("bvshl", n)
	case expr.KindSrl:
		return p.shiftOp("bvlshr", n)
	case expr.KindUlt:
		return fmt.Sprintf("(bvult %s %s)", p.ref(n.Child(0), false), p.ref(n.Child(1), false))
	case expr.KindBvEq:
		return fmt.Sprintf("(= %s %s)", p.ref(n.Child(0), false), p.ref(n.Child(1), false))
	case expr.KindFunEq:
		return fmt.Sprintf("(= %s %s)", p.ref(n.Child(0), false), p.ref(n.Child(1), false))
	case expr.KindCond:
		want := p.c.boolean[n.ID()]
		return fmt.Sprintf("(ite %s %s %s)", p.ref(n.Child(0), true), p.ref(n.Child(1), want), p.ref(n.Child(2), want))
	case expr.KindApply:
		fun := n.Child(0).Node()
		name, ok := p.c.dumped[fun.ID()]
		if !ok {
			name = p.nameFor(fun)
		}
		var args []string
		for _, a := range expr.ArgValues(n.Child(1)) {
			args = append(args, p.ref(a, false))
		}
		return fmt.Sprintf("(%s %s)", name, strings.Join(args, " "))
	default:
		return "?" + n.Kind().String()
	}
}

func (p *printer) binop(op string, n *expr.Node) string {
	return fmt.Sprintf("(%s %s %s)", op, p.ref(n.Child(0), false), p.ref(n.Child(1), false))
}

// shiftOp zero-extends the shift-count argument when its width is smaller
// than the data argument's (spec.md §4.3.4); in this repository the count is
// always log2(data width) bits wide (shift's builder requires it), so it is
// always narrower and the extension is always emitted.
func (p *printer) shiftOp(op string, n *expr.Node) string {
	data := n.Child(0)
	amt := n.Child(1)
	dataW := data.Node().Sort().BitWidth()
	amtW := amt.Node().Sort().BitWidth()
	amtText := p.ref(amt, false)
	if amtW < dataW {
		amtText = fmt.Sprintf("((_ zero_extend %d) %s)", dataW-amtW, amtText)
	}
	return fmt.Sprintf("(%s %s %s)", op, p.ref(data, false), amtText)
}

// collectAndChain flattens a run of unshared, non-inverted, width-1,
// boolean-marked and nodes into its leaf operands (spec.md §4.3.4's
// "AND-chains of Booleans are flattened into n-ary and").
func (p *printer) collectAndChain(n *expr.Node) []expr.Ref {
	var leaves []expr.Ref
	var walk func(r expr.Ref)
	walk = func(r expr.Ref) {
		cn := r.Node()
		if !r.Inverted() && cn.Kind() == expr.KindAnd && cn.Sort().BitWidth() == 1 &&
			p.c.boolean[cn.ID()] && !p.c.shared[cn.ID()] {
			walk(cn.Child(0))
			walk(cn.Child(1))
			return
		}
		leaves = append(leaves, r)
	}
	walk(expr.RefOf(n))
	return leaves
}
