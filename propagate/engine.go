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

// Package propagate implements the local-search propagation engine of
// spec.md §4.2: given an Expression Manager DAG with a set of unsynthesized
// boolean constraints and assumptions, it hunts for a total bit-vector model
// that satisfies all of them, falling back to UNKNOWN if it runs out of
// restarts.
package propagate

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/marcogario/boolector/bv"
	"github.com/marcogario/boolector/expr"
)

// ErrTerminated is returned (wrapped) when Sat's context is cancelled
// mid-search (spec.md §5, §7's "external cancellation" error class).
var ErrTerminated = errors.New("propagate: search terminated")

// Engine is the Propagation Engine of spec.md §4.2: it owns no nodes itself
// (the expr.Manager is the sole owner) but holds the candidate model, roots
// set, score cache, and move/restart counters alongside its RNG.
type Engine struct {
	m    *expr.Manager
	opts Options
	rng  *bv.RNG

	mo    *model
	stats Stats

	moveCounter    int
	restartCounter int
}

// NewEngine constructs a Propagation Engine over m using opts.
func NewEngine(m *expr.Manager, opts Options) *Engine {
	return &Engine{
		m:    m,
		opts: opts,
		rng:  bv.NewRNG(opts.Seed),
		mo:   newModel(),
	}
}

// Stats returns the engine's lifetime counters (spec.md §3.4, §4.2.7).
func (e *Engine) Stats() Stats { return e.stats }

// Model returns the current value assigned to r under the candidate model,
// computing and caching it on demand (spec.md §6.3's model_get_bv).
func (e *Engine) Model(r expr.Ref) bv.Value { return e.modelGetBV(r) }

// Score returns r's soft-satisfaction score under the candidate model
// (spec.md §4.2.2), computing and caching it on demand. Exposed for
// essential-path-selection diagnostics and for tests asserting spec.md
// §8.1's score(r) = 1 ⇔ model(r) = 1 invariant.
func (e *Engine) Score(r expr.Ref) float64 { return e.score(r) }

// stepBound is spec.md §4.2.3's per-restart move budget:
// 100 * (1 if i odd else 2^(i/2)).
func stepBound(i int) int {
	if i%2 != 0 {
		return 100
	}
	return 100 * (1 << uint(i/2))
}

// Sat runs the top-level loop of spec.md §4.2.3 until every root is
// satisfied (SAT), the restart budget is exhausted (UNKNOWN), or ctx is
// cancelled (UNKNOWN, wrapping ErrTerminated).
func (e *Engine) Sat(ctx context.Context) (Status, error) {
	e.initModel()
	moves := 0
	for {
		if ctx.Err() != nil {
			return StatusUnknown, fmt.Errorf("%w: %v", ErrTerminated, ctx.Err())
		}
		if len(e.mo.roots) == 0 {
			return StatusSat, nil
		}

		root := e.pickRoot()
		rootRef, _ := e.rootReference(root) // the asserted polarity, not the bare node
		target, newVal, found := e.propagateDown(rootRef)
		if !found {
			e.stats.NonRecoverableConf++
			if !e.restart() {
				return StatusUnknown, nil
			}
			moves = 0
			continue
		}
		e.updateCone(target, newVal)
		moves++
		e.stats.Moves++

		if moves >= stepBound(e.restartCounter) {
			if !e.restart() {
				return StatusUnknown, nil
			}
			moves = 0
		}
	}
}

// initModel seeds every bit-vector variable with a random assignment and
// populates the initial roots set from the falsified unsynthesized
// constraints and assumptions. Both constraint maps are visited in sorted-
// by-id order rather than map range order, so the roots set's rootOrder
// (and therefore every later pickRoot draw) is reproducible given a seed,
// rather than depending on Go's randomized map iteration (spec.md §5).
func (e *Engine) initModel() {
	e.mo = newModel()
	e.mo.randomize(e.rng, e.m.BvVars())
	for _, r := range sortedRefsByID(e.m.UnsynthesizedConstraints()) {
		e.refreshRoots(r.Node())
	}
	for _, r := range sortedRefsByID(e.m.Assumptions()) {
		e.refreshRoots(r.Node())
	}
}

// sortedRefsByID returns m's values sorted by node id for deterministic
// iteration over a map[int64]expr.Ref.
func sortedRefsByID(m map[int64]expr.Ref) []expr.Ref {
	out := make([]expr.Ref, 0, len(m))
	for _, r := range m {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b expr.Ref) int {
		ai, bi := a.Node().ID(), b.Node().ID()
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		default:
			return 0
		}
	})
	return out
}

// restart resamples every variable uniformly (spec.md §4.2.8), unless the
// restart budget is exhausted.
func (e *Engine) restart() bool {
	if e.restartCounter >= e.opts.MaxRestarts {
		return false
	}
	e.restartCounter++
	e.stats.Restarts++
	e.initModel()
	return true
}

// pickRoot returns a uniformly random element of the roots set (spec.md
// §4.2.3's "root <- random element of roots"), indexing into rootOrder
// rather than ranging over the roots map: map range order is randomized by
// Go independent of any seed, which would make the pick undeterminable from
// e.rng alone (spec.md §5's "RNG is process-local and deterministic given a
// seed option").
func (e *Engine) pickRoot() *expr.Node {
	idx := e.rng.Intn(len(e.mo.rootOrder))
	return e.m.NodeByID(e.mo.rootOrder[idx])
}
