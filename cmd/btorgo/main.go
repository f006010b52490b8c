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

// Command btorgo is a thin demonstration driver wiring expr, propagate, and
// smtdump together: it builds a small bit-vector equation, runs the
// propagation engine over it, and on SAT dumps the asserted formula as
// SMT-LIB v2 (the model values themselves are not printed).
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/marcogario/boolector/bv"
	"github.com/marcogario/boolector/expr"
	"github.com/marcogario/boolector/propagate"
	"github.com/marcogario/boolector/smtdump"
)

func main() {
	cmd := flag.NewFlagSet("btorgo", flag.ExitOnError)
	seed := cmd.Int64("seed", 0, "RNG seed")
	width := cmd.Uint("width", 8, "bit-vector width of the demonstration variables")
	sum := cmd.Uint64("sum", 0, "target sum the demonstration equation must satisfy, mod 2^width")
	maxRestarts := cmd.Int("max-restarts", 100, "maximum number of propagation restarts before giving up")
	pathSel := cmd.String("path-sel", "essential", "path selection strategy: essential or random")
	format := cmd.String("number-format", "binary", "constant number format for the printed formula: binary, hex, or decimal")
	timeout := cmd.Duration("timeout", 5*time.Second, "search timeout")
	if err := cmd.Parse(os.Args[1:]); err != nil {
		os.Exit(1)
	}
	logger := log.New(os.Stderr, "btorgo: ", 0)

	m := expr.NewManager(expr.DefaultOptions())
	x := m.NewVar(uint32(*width), "x")
	y := m.NewVar(uint32(*width), "y")
	target := m.NewConst(bv.FromUint64(uint32(*width), *sum))
	eq := m.BvEq(m.Add(x, y), target)
	m.AddConstraint(eq)

	opts := propagate.DefaultOptions()
	opts.Seed = *seed
	opts.MaxRestarts = *maxRestarts
	switch *pathSel {
	case "essential":
		opts.PathSel = propagate.PathSelEssential
	case "random":
		opts.PathSel = propagate.PathSelRandom
	default:
		logger.Fatalf("unknown -path-sel %q (want essential or random)", *pathSel)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	engine := propagate.NewEngine(m, opts)
	status, err := engine.Sat(ctx)
	if err != nil {
		logger.Fatalf("search terminated: %v", err)
	}

	stats := engine.Stats()
	logger.Printf("status=%s moves=%d restarts=%d recoverable_conflicts=%d non_recoverable_conflicts=%d",
		status, stats.Moves, stats.Restarts, stats.RecoverableConf, stats.NonRecoverableConf)

	if status != propagate.StatusSat {
		os.Exit(1)
	}

	nf, err := parseNumberFormat(*format)
	if err != nil {
		logger.Fatal(err)
	}
	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()
	m.Synthesize(eq)
	if err := smtdump.Dump(out, m, nf); err != nil {
		logger.Fatalf("dump failed: %v", err)
	}
}

func parseNumberFormat(s string) (smtdump.NumberFormat, error) {
	switch s {
	case "binary":
		return smtdump.FormatBinary, nil
	case "hex":
		return smtdump.FormatHex, nil
	case "decimal":
		return smtdump.FormatDecimal, nil
	default:
		return 0, fmt.Errorf("unknown -number-format %q (want binary, hex, or decimal)", s)
	}
}
