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

// model is the candidate model of spec.md §4.2.1: a total map from node id
// to its current BV assignment, plus a roots set and a score cache. Both an
// id and its negation's id carry an entry (spec.md §4.2.7 step 5), so a
// lookup on an inverted reference never has to re-negate on every read.
type model struct {
	bv    map[int64]bv.Value // id -> value; negative key -> complement of id's value
	score map[int64]float64

	// roots is the falsified-boolean-roots set of spec.md §4.2.3's "random
	// element of roots" pick. It is an indexed set (map id -> position in
	// rootOrder, alongside the order slice itself) rather than a bare map,
	// because Go deliberately randomizes map range order independent of any
	// seed: picking "element at RNG-drawn index i" requires a slice to index
	// into for the pick to be reproducible given e.rng's seed (spec.md §5).
	roots     map[int64]int
	rootOrder []int64
}

func newModel() *model {
	return &model{
		bv:    make(map[int64]bv.Value),
		score: make(map[int64]float64),
		roots: make(map[int64]int),
	}
}

// addRoot inserts id into the roots set if not already present.
func (mo *model) addRoot(id int64) {
	if _, ok := mo.roots[id]; ok {
		return
	}
	mo.roots[id] = len(mo.rootOrder)
	mo.rootOrder = append(mo.rootOrder, id)
}

// removeRoot deletes id from the roots set if present, swapping the last
// element into its slot so removal stays O(1).
func (mo *model) removeRoot(id int64) {
	idx, ok := mo.roots[id]
	if !ok {
		return
	}
	last := len(mo.rootOrder) - 1
	lastID := mo.rootOrder[last]
	mo.rootOrder[idx] = lastID
	mo.roots[lastID] = idx
	mo.rootOrder = mo.rootOrder[:last]
	delete(mo.roots, id)
}

func modelKey(r expr.Ref) int64 {
	id := r.Node().ID()
	if r.Inverted() {
		return -id
	}
	return id
}

// get returns r's current value under the model, respecting r's inversion
// tag and constant nodes without needing a prior assignment.
func (mo *model) get(r expr.Ref) (bv.Value, bool) {
	if r.Node().IsBvConst() {
		return r.ConstValue(), true
	}
	v, ok := mo.bv[modelKey(r)]
	return v, ok
}

// set installs a value for node n (un-inverted id) and its complement,
// satisfying the "+id and -id" invariant of spec.md §4.2.7 step 5.
func (mo *model) set(n *expr.Node, v bv.Value) {
	mo.bv[n.ID()] = v
	mo.bv[-n.ID()] = bv.Not(v)
}

// randomize assigns every bit-vector variable in vars a fresh random value,
// the restart behavior of spec.md §4.2.8.
func (mo *model) randomize(rng *bv.RNG, vars []*expr.Node) {
	for _, v := range vars {
		mo.set(v, rng.Random(v.Sort().Width))
	}
}
