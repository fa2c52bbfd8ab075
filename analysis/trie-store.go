// Copyright 2026 The Cacheaudit Authors

// This file is part of Cacheaudit.
//
// Cacheaudit is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Cacheaudit is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Cacheaudit.  If not, see <https://www.gnu.org/licenses/>.

package analysis

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/go-errors/errors"
)

// Status is what a trie node observed: the outcome of one memory access, a
// step without access, or nothing at all for placeholders.
type Status uint8

const (
	// StatusNone marks a placeholder node recording an unresolved merge.
	StatusNone Status = iota
	Hit
	Miss
	HitOrMiss
	NoAccess
)

func (s Status) String() string {
	switch s {
	case StatusNone:
		return "None"
	case Hit:
		return "Hit"
	case Miss:
		return "Miss"
	case HitOrMiss:
		return "HitOrMiss"
	case NoAccess:
		return "NoAccess"
	default:
		return "Unknown"
	}
}

// NodeID is a handle of a trie node within its NodeStore. Ids are assigned in
// allocation order and double as the node's unique identifier.
type NodeID uint32

// RootID is the id of the node every trace starts from.
const RootID NodeID = 0

type ancestryKind uint8

const (
	rootAncestry ancestryKind = iota
	singleAncestry
	coupleAncestry
)

// ancestry lists the predecessors of a node: none, one, or the two sides of
// a merge.
type ancestry struct {
	kind   ancestryKind
	first  NodeID
	second NodeID
}

func rootOf() ancestry {
	return ancestry{kind: rootAncestry}
}

func singleOf(parent NodeID) ancestry {
	return ancestry{kind: singleAncestry, first: parent}
}

func coupleOf(first, second NodeID) ancestry {
	return ancestry{kind: coupleAncestry, first: first, second: second}
}

func (a ancestry) single() (NodeID, error) {
	if a.kind != singleAncestry {
		return 0, invariantf("expected a single parent, got ancestry kind %d", a.kind)
	}
	return a.first, nil
}

type trieNode struct {
	id        NodeID
	anc       ancestry
	ancestors []NodeID // sorted ids of the nearest real ancestors
	status    Status
	count     *absCount
}

func (n *trieNode) isPlaceholder() bool {
	return n.status == StatusNone
}

// nodeKey identifies a node by what it observed and where it came from.
// The ancestor ids are packed little endian so the key is comparable.
type nodeKey struct {
	status    Status
	ancestors string
}

func makeNodeKey(status Status, ancestors []NodeID) nodeKey {
	b := make([]byte, 4*len(ancestors))
	for i, id := range ancestors {
		binary.LittleEndian.PutUint32(b[4*i:], uint32(id))
	}
	return nodeKey{
		status:    status,
		ancestors: string(b),
	}
}

// NodeStore hash-conses trie nodes: for every status and ancestor set there
// is at most one node. A store belongs to a single analysis run and is not
// safe for concurrent use.
type NodeStore struct {
	nodes   []*trieNode
	index   map[nodeKey]NodeID
	metrics *Metrics
}

func NewNodeStore(metrics *Metrics) *NodeStore {
	s := &NodeStore{
		index:   map[nodeKey]NodeID{},
		metrics: metrics,
	}
	root := &trieNode{
		id:     RootID,
		anc:    rootOf(),
		status: NoAccess,
		count:  oneCount(),
	}
	s.nodes = append(s.nodes, root)
	s.index[makeNodeKey(root.status, nil)] = RootID
	return s
}

func (s *NodeStore) node(id NodeID) *trieNode {
	return s.nodes[id]
}

// Len returns the number of nodes allocated so far, the root included.
func (s *NodeStore) Len() int {
	return len(s.nodes)
}

func (s *NodeStore) Status(id NodeID) Status {
	return s.node(id).status
}

func (s *NodeStore) IsPlaceholder(id NodeID) bool {
	return s.node(id).isPlaceholder()
}

// Count returns a copy of the number of traces the node represents.
func (s *NodeStore) Count(id NodeID) *absCount {
	return (&absCount{}).Set(s.node(id).count)
}

// AncestorIDs returns a copy of the node's merge key.
func (s *NodeStore) AncestorIDs(id NodeID) []NodeID {
	return append([]NodeID(nil), s.node(id).ancestors...)
}

// Parent returns the only predecessor of a node created by extend.
func (s *NodeStore) Parent(id NodeID) (NodeID, error) {
	return s.node(id).anc.single()
}

// findOrCreate returns the node observing status after anc, allocating it
// only if no node with the same status and ancestor set exists yet.
func (s *NodeStore) findOrCreate(status Status, anc ancestry) (NodeID, error) {
	ancestors, err := s.ancestorsOf(anc)
	if err != nil {
		return 0, err
	}
	key := makeNodeKey(status, ancestors)
	if id, found := s.index[key]; found {
		s.metrics.hashConsHit()
		return id, nil
	}
	n := &trieNode{
		id:        NodeID(len(s.nodes)),
		anc:       anc,
		ancestors: ancestors,
		status:    status,
		count:     s.countOf(status, anc),
	}
	s.nodes = append(s.nodes, n)
	s.index[key] = n.id
	s.metrics.nodeCreated(n.isPlaceholder())
	return n.id, nil
}

// ancestorsOf computes the merge key of a node with the given ancestry.
// Placeholders are looked through so the key only holds real nodes.
func (s *NodeStore) ancestorsOf(anc ancestry) ([]NodeID, error) {
	switch anc.kind {
	case rootAncestry:
		return nil, nil
	case singleAncestry:
		return []NodeID{anc.first}, nil
	case coupleAncestry:
		n1, n2 := s.node(anc.first), s.node(anc.second)
		switch {
		case n1.isPlaceholder() && n2.isPlaceholder():
			return nil, errors.WrapPrefix(ErrPlaceholderMerge, fmt.Sprintf("nodes %d and %d", n1.id, n2.id), 0)
		case n1.isPlaceholder():
			return insertID(n1.ancestors, n2.id), nil
		case n2.isPlaceholder():
			return insertID(n2.ancestors, n1.id), nil
		}
		return insertID([]NodeID{n1.id}, n2.id), nil
	}
	return nil, invariantf("unknown ancestry kind %d", anc.kind)
}

func (s *NodeStore) countOf(status Status, anc ancestry) *absCount {
	var c *absCount
	switch anc.kind {
	case singleAncestry:
		c = (&absCount{}).Set(s.node(anc.first).count)
	case coupleAncestry:
		c = sumCounts(s.node(anc.first).count, s.node(anc.second).count)
	default:
		c = oneCount()
	}
	if status == HitOrMiss {
		doubleCount(c)
	}
	return c
}

// insertID returns a sorted copy of ids with id added.
func insertID(ids []NodeID, id NodeID) []NodeID {
	idx := sort.Search(len(ids), func(i int) bool { return id <= ids[i] })
	if idx < len(ids) && ids[idx] == id {
		return append([]NodeID(nil), ids...)
	}
	res := make([]NodeID, 0, len(ids)+1)
	res = append(res, ids[:idx]...)
	res = append(res, id)
	return append(res, ids[idx:]...)
}

func sameIDs(ids1 []NodeID, ids2 []NodeID) bool {
	if len(ids1) != len(ids2) {
		return false
	}
	for i := range ids1 {
		if ids1[i] != ids2[i] {
			return false
		}
	}
	return true
}

// strictSubsetIDs determines whether the sorted set ids1 is a proper subset of ids2.
func strictSubsetIDs(ids1 []NodeID, ids2 []NodeID) bool {
	if len(ids2) <= len(ids1) {
		return false
	}
	j := 0
	for _, id := range ids1 {
		for j < len(ids2) && ids2[j] < id {
			j++
		}
		if j == len(ids2) || ids2[j] != id {
			return false
		}
	}
	return true
}
