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
	"fmt"
	"io"

	"github.com/Ezekiel-1998/cacheaudit/vm"
)

// Domain is the contract the instruction semantics is written against. S is
// the abstract state; implementations never modify states in place.
type Domain[S any] interface {
	Init() S
	// Touch accounts for an access to addr. It fails with ErrBottom if the
	// access can neither hit nor miss.
	Touch(s S, addr uint64) (S, error)
	// Elapse accounts for d time units spent without accessing the cache.
	Elapse(s S, d uint64) (S, error)
	Join(s1 S, s2 S) (S, error)
	Widen(s1 S, s2 S) (S, error)
	Subseteq(s1 S, s2 S) bool
	Print(w io.Writer, s S)
	PrintDelta(w io.Writer, prev S, cur S)
}

// TraceDomain tracks, besides the cache, the hit/miss traces and the elapsed
// times of all paths.
type TraceDomain struct {
	store     *NodeStore
	newCache  func() CacheState
	durations vm.Durations
	maxTimes  int
}

var _ Domain[TraceState] = (*TraceDomain)(nil)

// NewTraceDomain builds a trace domain on top of store. newCache yields the
// initial abstract cache.
func NewTraceDomain(store *NodeStore, newCache func() CacheState, cfg Config) *TraceDomain {
	return &TraceDomain{
		store:     store,
		newCache:  newCache,
		durations: cfg.Durations,
		maxTimes:  cfg.MaxTimes,
	}
}

func (d *TraceDomain) Store() *NodeStore {
	return d.store
}

func (d *TraceDomain) Init() TraceState {
	return TraceState{
		trace: RootID,
		cache: d.newCache(),
		times: singletonTimes(0),
	}
}

func (d *TraceDomain) Touch(s TraceState, addr uint64) (TraceState, error) {
	hit, miss := s.cache.TouchHM(addr)
	var status Status
	var cache CacheState
	switch {
	case hit == nil && miss == nil:
		d.store.metrics.bottomPath()
		return TraceState{}, ErrBottom
	case miss == nil:
		status, cache = Hit, hit
	case hit == nil:
		status, cache = Miss, miss
	default:
		status, cache = HitOrMiss, hit.Join(miss)
	}
	return d.observe(TraceState{trace: s.trace, cache: cache, times: s.times}, status)
}

func (d *TraceDomain) Elapse(s TraceState, duration uint64) (TraceState, error) {
	ns := TraceState{
		trace: s.trace,
		cache: s.cache.Elapse(duration),
		times: d.collapsed(s.times, shiftTimes(s.times, duration)),
	}
	return d.observe(ns, NoAccess)
}

// observe extends the trace of s by status and adds its duration.
func (d *TraceDomain) observe(s TraceState, status Status) (TraceState, error) {
	trace, err := d.store.extend(s.trace, status)
	if err != nil {
		return TraceState{}, err
	}
	times, err := shiftTimesByStatus(s.times, status, d.durations, d.maxTimes)
	if err != nil {
		return TraceState{}, err
	}
	return TraceState{
		trace: trace,
		cache: s.cache,
		times: d.collapsed(s.times, times),
	}, nil
}

// collapsed records when precision of the times was lost and returns after.
func (d *TraceDomain) collapsed(before absTimes, after absTimes) absTimes {
	if !before.isTop && after.isTop {
		d.store.metrics.timeCollapse()
	}
	return after
}

func (d *TraceDomain) Join(s1 TraceState, s2 TraceState) (TraceState, error) {
	trace, err := d.store.joinTrace(s1.trace, s2.trace)
	if err != nil {
		return TraceState{}, err
	}
	return TraceState{
		trace: trace,
		cache: s1.cache.Join(s2.cache),
		times: d.collapsed(s1.times, unionTimes(s1.times, s2.times, d.maxTimes)),
	}, nil
}

func (d *TraceDomain) Widen(s1 TraceState, s2 TraceState) (TraceState, error) {
	trace, err := d.store.widenTrace(s1.trace, s2.trace)
	if err != nil {
		return TraceState{}, err
	}
	return TraceState{
		trace: trace,
		cache: s1.cache.Widen(s2.cache),
		times: d.collapsed(s1.times, unionTimes(s1.times, s2.times, d.maxTimes)),
	}, nil
}

func (d *TraceDomain) Subseteq(s1 TraceState, s2 TraceState) bool {
	return s1.cache.Subseteq(s2.cache) &&
		subseteqTimes(s1.times, s2.times) &&
		d.store.subseteqTrace(s1.trace, s2.trace)
}

func (d *TraceDomain) Print(w io.Writer, s TraceState) {
	count := d.store.Count(s.trace)
	fmt.Fprintf(w, "Number of traces: %v, %.1f bits\n", count, countBits(count))
	if n, known := s.times.card(); known {
		bits, _ := timesBits(s.times)
		fmt.Fprintf(w, "Number of possible times: %d, %.1f bits\n", n, bits)
	} else {
		fmt.Fprintf(w, "Number of possible times: too imprecise to tell\n")
	}
	s.cache.Print(w)
}

// PrintDelta reports what changed between prev and cur.
func (d *TraceDomain) PrintDelta(w io.Writer, prev TraceState, cur TraceState) {
	cur.cache.PrintDelta(w, prev.cache)
	prevCount, curCount := d.store.Count(prev.trace), d.store.Count(cur.trace)
	if prevCount.Cmp(curCount) != 0 {
		fmt.Fprintf(w, "Number of traces: %v -> %v\n", prevCount, curCount)
	}
	prevN, prevKnown := prev.times.card()
	curN, curKnown := cur.times.card()
	switch {
	case prevKnown && curKnown && prevN != curN:
		fmt.Fprintf(w, "Number of possible times: %d -> %d\n", prevN, curN)
	case prevKnown && !curKnown:
		fmt.Fprintf(w, "Number of possible times: %d -> too imprecise to tell\n", prevN)
	}
}
