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
	"encoding/binary"

	"github.com/dchest/siphash"

	"github.com/marcogario/boolector/bv"
)

// Three fixed primes combine child ids into a structural hash key, the way
// spec.md §4.1.2 describes; the combined key is then run through siphash
// (keyed per Manager from its RNG seed) for avalanche, rather than used
// raw as a bucket index.
const (
	hashPrime1 uint64 = 0x9E3779B185EBCA87
	hashPrime2 uint64 = 0xC2B2AE3D27D4EB4F
	hashPrime3 uint64 = 0x165667B19E3779F9
)

func (m *Manager) siphash(raw uint64) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], raw)
	return siphash.Hash64(m.hashKey0, m.hashKey1, buf[:])
}

// childKey folds a child reference's id and inversion tag into one integer
// for hashing and equality comparison.
func childKey(r Ref) uint64 {
	n := r.Node()
	k := uint64(n.id) << 1
	if r.Inverted() {
		k |= 1
	}
	return k
}

func fnv1a(b []byte) uint64 {
	h := uint64(1469598103934665603)
	for _, c := range b {
		h ^= uint64(c)
		h *= 1099511628211
	}
	return h
}

// hashConst computes the unique-table hash of a constant from its bit
// pattern and width (spec.md §4.1.2: "bv_const uses the bit-pattern hash").
func (m *Manager) hashConst(v bv.Value) uint64 {
	raw := fnv1a(v.BigInt().Bytes()) ^ (uint64(v.Width()) * hashPrime1)
	return m.siphash(raw)
}

// hashSlice computes the unique-table hash of a slice node from its child
// and bounds (spec.md §4.1.2).
func (m *Manager) hashSlice(child Ref, upper, lower uint32) uint64 {
	raw := childKey(child)*hashPrime1 + uint64(upper)*hashPrime2 + uint64(lower)*hashPrime3
	return m.siphash(raw)
}

// hashChildren computes the unique-table hash of a general (non-slice,
// non-lambda, non-leaf) node from its kind and already-canonicalized
// children (spec.md §4.1.2).
func (m *Manager) hashChildren(kind Kind, children []Ref) uint64 {
	var raw uint64
	switch len(children) {
	case 1:
		raw = childKey(children[0]) * hashPrime1
	case 2:
		raw = childKey(children[0])*hashPrime1 + childKey(children[1])*hashPrime2
	case 3:
		raw = childKey(children[0])*hashPrime1 + childKey(children[1])*hashPrime2 + childKey(children[2])*hashPrime3
	}
	raw += uint64(kind) * hashPrime3
	return m.siphash(raw)
}

// hashLambda combines a lambda's alpha-invariant body hash (computed once
// at creation, spec.md §4.1.3) into a unique-table key.
func (m *Manager) hashLambda(bodyHash uint64) uint64 {
	return m.siphash(bodyHash ^ hashPrime2)
}

func log2(x int) int {
	n := 0
	for x > 1 {
		x >>= 1
		n++
	}
	return n
}

// uniqueTable is a power-of-two, chained hash table over the DAG's
// structurally-hash-consed nodes (bv_const and every non-leaf kind).
// Variables, parameters, and uninterpreted functions are identity-based and
// never stored here (spec.md §3.2's invariant only governs nodes whose
// children, or bit pattern, determine their identity).
type uniqueTable struct {
	buckets [][]*Node
	size    int
	count   int
}

func newUniqueTable() *uniqueTable {
	t := &uniqueTable{size: 64}
	t.buckets = make([][]*Node, t.size)
	return t
}

func (t *uniqueTable) index(h uint64) int { return int(h & uint64(t.size-1)) }

func (t *uniqueTable) find(h uint64, match func(*Node) bool) *Node {
	for _, n := range t.buckets[t.index(h)] {
		if match(n) {
			return n
		}
	}
	return nil
}

func (t *uniqueTable) insert(h uint64, n *Node) {
	n.hashVal = h
	idx := t.index(h)
	t.buckets[idx] = append(t.buckets[idx], n)
	t.count++
	// spec.md §4.1.2: double and rehash once load factor is crossed, up to
	// a 2^30-bucket ceiling.
	if t.count >= t.size && log2(t.size) < 30 {
		t.grow()
	}
}

func (t *uniqueTable) remove(n *Node) {
	idx := t.index(n.hashVal)
	b := t.buckets[idx]
	for i, m := range b {
		if m == n {
			t.buckets[idx] = append(b[:i], b[i+1:]...)
			t.count--
			return
		}
	}
}

func (t *uniqueTable) grow() {
	newSize := t.size * 2
	newBuckets := make([][]*Node, newSize)
	mask := uint64(newSize - 1)
	for _, bucket := range t.buckets {
		for _, n := range bucket {
			idx := int(n.hashVal & mask)
			newBuckets[idx] = append(newBuckets[idx], n)
		}
	}
	t.buckets = newBuckets
	t.size = newSize
}
