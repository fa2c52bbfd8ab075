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

// extend records a definite observation after n.
func (s *NodeStore) extend(n NodeID, status Status) (NodeID, error) {
	if status == StatusNone {
		return 0, invariantf("extend of node %d needs a status", n)
	}
	return s.findOrCreate(status, singleOf(n))
}

// extendPlaceholder records a merge that cannot be resolved to one status.
func (s *NodeStore) extendPlaceholder(anc ancestry) (NodeID, error) {
	return s.findOrCreate(StatusNone, anc)
}

// promoteAmbiguous returns the node with the ancestry of n1 and n2 that
// observed both a hit and a miss.
func (s *NodeStore) promoteAmbiguous(n1, n2 NodeID) (NodeID, error) {
	node1, node2 := s.node(n1), s.node(n2)
	if node1.anc != node2.anc {
		return 0, invariantf("cannot promote nodes %d and %d with different ancestry", n1, n2)
	}
	if node1.isPlaceholder() || node2.isPlaceholder() {
		return 0, invariantf("cannot promote placeholder among %d and %d", n1, n2)
	}
	return s.findOrCreate(HitOrMiss, node1.anc)
}

// joinTrace computes the join of two trie nodes.
func (s *NodeStore) joinTrace(n1, n2 NodeID) (NodeID, error) {
	if n1 == n2 {
		return n1, nil
	}
	node1, node2 := s.node(n1), s.node(n2)
	switch {
	case sameIDs(node1.ancestors, node2.ancestors):
		// Same history observed differently. Equal statuses would have
		// been the same node.
		if node1.status == node2.status {
			return 0, invariantf("distinct nodes %d and %d share status and ancestors", n1, n2)
		}
		if node1.status == NoAccess || node2.status == NoAccess {
			return 0, invariantf("cannot join access and non-access nodes %d and %d", n1, n2)
		}
		return s.promoteAmbiguous(n1, n2)
	case strictSubsetIDs(node1.ancestors, node2.ancestors):
		return s.subsumingNode(node2, node1)
	case strictSubsetIDs(node2.ancestors, node1.ancestors):
		return s.subsumingNode(node1, node2)
	}
	return s.extendPlaceholder(coupleOf(n1, n2))
}

// subsumingNode returns sup, whose ancestors include those of sub. Only a
// placeholder can subsume another node's history.
func (s *NodeStore) subsumingNode(sup, sub *trieNode) (NodeID, error) {
	if !sup.isPlaceholder() {
		return 0, invariantf("real node %d cannot subsume node %d", sup.id, sub.id)
	}
	return sup.id, nil
}

// widenTrace is joinTrace; the trie has no separate widening.
func (s *NodeStore) widenTrace(n1, n2 NodeID) (NodeID, error) {
	return s.joinTrace(n1, n2)
}

// subseteqTrace determines whether the traces of n1 are among those of n2.
// The parents of merges are compared in construction order.
func (s *NodeStore) subseteqTrace(n1, n2 NodeID) bool {
	return s.subseteqTraceMemo(n1, n2, map[[2]NodeID]bool{})
}

func (s *NodeStore) subseteqTraceMemo(n1, n2 NodeID, memo map[[2]NodeID]bool) bool {
	if n1 == n2 {
		return true
	}
	pair := [2]NodeID{n1, n2}
	if res, done := memo[pair]; done {
		return res
	}
	node1, node2 := s.node(n1), s.node(n2)
	res := false
	if statusSubseteq(node1.status, node2.status) && node1.anc.kind == node2.anc.kind {
		switch node1.anc.kind {
		case rootAncestry:
			res = true
		case singleAncestry:
			res = s.subseteqTraceMemo(node1.anc.first, node2.anc.first, memo)
		case coupleAncestry:
			res = s.subseteqTraceMemo(node1.anc.first, node2.anc.first, memo) &&
				s.subseteqTraceMemo(node1.anc.second, node2.anc.second, memo)
		}
	}
	memo[pair] = res
	return res
}

// statusSubseteq orders statuses: HitOrMiss covers Hit and Miss, everything
// else only covers itself.
func statusSubseteq(s1, s2 Status) bool {
	if s1 == s2 {
		return true
	}
	return s2 == HitOrMiss && (s1 == Hit || s1 == Miss)
}
