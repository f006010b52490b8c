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

import "time"

// PathSel selects how propagate_down picks among non-constant children when
// more than one is available (spec.md §4.2.5).
type PathSel int

const (
	PathSelEssential PathSel = iota
	PathSelRandom
)

// Options are the PE-facing knobs of spec.md §6.4, populated from
// cmd/btorgo's flag.FlagSet the way the teacher's worker command populates
// its own run options from flags rather than a config file.
type Options struct {
	Seed int64

	PathSel PathSel

	ProbUseInvValue    float64 // PROP_PROB_USE_INV_VALUE
	ProbAndFlip        float64 // PROP_PROB_AND_FLIP
	ProbEqFlip         float64 // PROP_PROB_EQ_FLIP
	ProbFlipCond       float64 // PROP_PROB_FLIP_COND
	ProbFlipCondConst  float64 // PROP_PROB_FLIP_COND_CONST
	FlipCondConstEvery int     // PROP_FLIP_COND_CONST_NPATHSEL
	ProbConcatFlip     float64 // PROP_PROB_CONC_FLIP
	ProbSliceFlip      float64 // PROP_PROB_SLICE_FLIP
	ProbSliceKeepDC    float64 // PROP_PROB_SLICE_KEEP_DC

	NoMoveOnConflict bool // PROP_NO_MOVE_ON_CONFLICT

	MaxRestarts int
}

// DefaultOptions mirrors boolector's own propagation-engine defaults.
func DefaultOptions() Options {
	return Options{
		PathSel:            PathSelEssential,
		ProbUseInvValue:    0.9,
		ProbAndFlip:        0.0,
		ProbEqFlip:         0.1,
		ProbFlipCond:       0.1,
		ProbFlipCondConst:  0.1,
		FlipCondConstEvery: 100,
		ProbConcatFlip:     0.0,
		ProbSliceFlip:      0.0,
		ProbSliceKeepDC:    0.5,
		NoMoveOnConflict:   false,
		MaxRestarts:        10,
	}
}

// Status is the public SAT/UNSAT/UNKNOWN result of the engine's public
// boundary (spec.md §7): the engine never throws, only returns this enum.
type Status int

const (
	StatusUnknown Status = iota
	StatusSat
	StatusUnsat
)

func (s Status) String() string {
	switch s {
	case StatusSat:
		return "sat"
	case StatusUnsat:
		return "unsat"
	default:
		return "unknown"
	}
}

// Stats accumulates the engine's lifetime counters (spec.md §3.4, §4.2.7).
type Stats struct {
	Moves              int64
	RecoverableConf    int64
	NonRecoverableConf int64
	Restarts           int64

	ResetTime    time.Duration
	ModelGenTime time.Duration
	ScoreTime    time.Duration
}
