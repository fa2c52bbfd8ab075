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

// TraceState is one abstract state of the trace domain: the trie node that
// is the frontier of all traces so far, the abstract cache, and the possible
// elapsed times. States are values; operations return new ones.
type TraceState struct {
	trace NodeID
	cache CacheState
	times absTimes
}

func (s TraceState) Trace() NodeID {
	return s.trace
}

func (s TraceState) Cache() CacheState {
	return s.cache
}

// Times returns the possible elapsed times, or false if they are unknown.
func (s TraceState) Times() ([]uint64, bool) {
	return s.times.values()
}
