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

import (
	"math"

	"github.com/marcogario/boolector/bv"
)

// Options are the EM-facing knobs of spec.md §6.4.
type Options struct {
	// Seed initializes the manager's RNG (used for the unique table's
	// siphash keys and any value sampling the manager itself performs).
	Seed int64
	// SortExp enables commutative-child sorting by id before unique-table
	// lookup (spec.md §4.1.1).
	SortExp bool
	// RewriteLevel, when > 0, triggers constant folding at build time for
	// operators whose children are all constants (spec.md §4.1.1).
	RewriteLevel int
}

// DefaultOptions returns the EM defaults: sorting and rewriting both on.
func DefaultOptions() Options {
	return Options{Seed: 0, SortExp: true, RewriteLevel: 1}
}

// Stats accumulates the manager's lifetime counters (spec.md §3.4).
type Stats struct {
	NodesCreated  int64
	NodesReleased int64
	UniqueHits    int64
	UniqueMisses  int64
}

// Manager is the Solver Context of spec.md §3.4: sole owner of the
// expression DAG, its unique table, id table, per-kind indices, symbol
// table, and model/constraint sets. A Manager has one lifetime; it is
// constructed with NewManager and discarded when no longer needed (there is
// no explicit Close, since Go's GC reclaims the node graph once the
// Manager itself becomes unreachable).
type Manager struct {
	opts Options
	rng  *bv.RNG

	hashKey0, hashKey1 uint64 // siphash key for this Manager's unique table

	unique *uniqueTable
	nextID int64
	byID   []*Node // dense, index 0 unused; byID[id] == node with that id

	bvVars []*Node
	ufs    []*Node
	lambdas []*Node
	feqs    []*Node // fun_eq nodes, tracked for extensionality (spec.md §3.4)

	symbols     map[string]*Node
	node2symbol map[int64]string

	assumptions              map[int64]Ref
	unsynthesizedConstraints map[int64]Ref
	synthesizedConstraints   map[int64]Ref
	embeddedConstraints      map[int64]Ref
	substitutions            map[int64]*Node

	trueConst  Ref
	falseConst Ref

	Stats Stats
}

// NewManager constructs an empty Solver Context.
func NewManager(opts Options) *Manager {
	rng := bv.NewRNG(opts.Seed)
	m := &Manager{
		opts:                     opts,
		rng:                      rng,
		hashKey0:                 rng.Random(64).Uint64(),
		hashKey1:                 rng.Random(64).Uint64(),
		unique:                   newUniqueTable(),
		byID:                     make([]*Node, 1, 1024),
		symbols:                  make(map[string]*Node),
		node2symbol:              make(map[int64]string),
		assumptions:              make(map[int64]Ref),
		unsynthesizedConstraints: make(map[int64]Ref),
		synthesizedConstraints:   make(map[int64]Ref),
		embeddedConstraints:      make(map[int64]Ref),
		substitutions:            make(map[int64]*Node),
	}
	m.trueConst = m.NewConst(bv.One(1))
	m.falseConst = m.NewConst(bv.Zero(1))
	return m
}

func (m *Manager) RNG() *bv.RNG { return m.rng }

// allocID assigns the next dense, monotonic node id (spec.md §4.1.7: a
// full id space is a fatal, unrecoverable condition).
func (m *Manager) allocID() int64 {
	if m.nextID >= math.MaxInt32 {
		fatalf("node id overflow")
	}
	m.nextID++
	return m.nextID
}

func (m *Manager) register(n *Node) {
	n.id = m.allocID()
	for int64(len(m.byID)) <= n.id {
		m.byID = append(m.byID, nil)
	}
	m.byID[n.id] = n
	m.Stats.NodesCreated++
}

// NodeByID looks up a node by its dense id.
func (m *Manager) NodeByID(id int64) *Node {
	if id <= 0 || int(id) >= len(m.byID) {
		return nil
	}
	return m.byID[id]
}

// NodeBySymbol looks up a variable, parameter, or UF by its declared name.
func (m *Manager) NodeBySymbol(sym string) (Ref, bool) {
	n, ok := m.symbols[sym]
	if !ok {
		return Ref{}, false
	}
	return Ref{node: n}, true
}

// SetSymbol attaches a name to a node; it is a programming error to reuse a
// name already bound to a different node.
func (m *Manager) SetSymbol(r Ref, sym string) {
	n := r.Node()
	if existing, ok := m.symbols[sym]; ok && existing != n {
		fatalf("symbol %q already bound to node %d", sym, existing.id)
	}
	if n.symbol != "" {
		delete(m.node2symbol, n.id)
	}
	n.symbol = sym
	m.symbols[sym] = n
	m.node2symbol[n.id] = sym
}

// BvVars returns every bit-vector variable created on m, in creation order.
// Released variables are not removed from this list.
func (m *Manager) BvVars() []*Node { return m.bvVars }

// UFs returns every uninterpreted function created on m, in creation order.
// Released UFs are not removed from this list.
func (m *Manager) UFs() []*Node { return m.ufs }

// Lambdas returns every lambda created on m, in creation order. Released
// lambdas are not removed from this list.
func (m *Manager) Lambdas() []*Node { return m.lambdas }

// FunEqs returns every function-equality node created on m, tracked for
// extensionality reasoning (spec.md §3.4). Released nodes are not removed
// from this list.
func (m *Manager) FunEqs() []*Node { return m.feqs }

// True and False return the canonical width-1 boolean constants.
func (m *Manager) True() Ref  { return m.trueConst }
func (m *Manager) False() Ref { return m.falseConst }

// AddAssumption, AddConstraint, and their Remove counterparts manage the
// constraint sets of spec.md §3.4. Constraints start out unsynthesized;
// Synthesize moves one into the synthesized set (this repository treats
// "synthesis" as a bookkeeping move only, since the AIG/SAT back end that
// would do the actual bit-blasting is out of scope, spec.md §1).
func (m *Manager) AddAssumption(r Ref)    { m.assumptions[r.Node().id] = r }
func (m *Manager) RemoveAssumption(r Ref) { delete(m.assumptions, r.Node().id) }
func (m *Manager) Assumptions() map[int64]Ref { return m.assumptions }

func (m *Manager) AddConstraint(r Ref) {
	m.unsynthesizedConstraints[r.Node().id] = r
}
func (m *Manager) Synthesize(r Ref) {
	n := r.Node()
	if existing, ok := m.unsynthesizedConstraints[n.id]; ok {
		delete(m.unsynthesizedConstraints, n.id)
		m.synthesizedConstraints[n.id] = existing
	}
}
func (m *Manager) UnsynthesizedConstraints() map[int64]Ref { return m.unsynthesizedConstraints }
func (m *Manager) SynthesizedConstraints() map[int64]Ref   { return m.synthesizedConstraints }

func (m *Manager) AddSubstitution(from, to Ref) {
	m.substitutions[from.Node().id] = to.Node()
}
func (m *Manager) Substitutions() map[int64]*Node { return m.substitutions }
