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
	"sort"

	"github.com/Ezekiel-1998/cacheaudit/vm"
)

// CacheState is an abstract cache as consumed by the trace domain. Values are
// persistent: no method modifies its receiver.
type CacheState interface {
	// TouchHM returns the successor states assuming the access to addr hits
	// and misses respectively. An impossible outcome is returned as nil.
	TouchHM(addr uint64) (hit CacheState, miss CacheState)
	Join(other CacheState) CacheState
	Widen(other CacheState) CacheState
	Subseteq(other CacheState) bool
	// Elapse accounts for time passing without a cache access.
	Elapse(d uint64) CacheState
	Print(w io.Writer)
	PrintDelta(w io.Writer, prev CacheState)
}

// maxWays bounds the associativity so ages fit a byte.
const maxWays = 255

// ageRange bounds the LRU age of a block. An age equal to the number of
// ways means the block is not cached.
type ageRange struct {
	lo uint8
	hi uint8
}

func joinAges(r1 ageRange, r2 ageRange) ageRange {
	res := r1
	if r2.lo < res.lo {
		res.lo = r2.lo
	}
	if res.hi < r2.hi {
		res.hi = r2.hi
	}
	return res
}

func (r ageRange) within(other ageRange) bool {
	return other.lo <= r.lo && r.hi <= other.hi
}

// absCache is an age-based abstraction of a set-associative LRU cache: each
// block maps to an interval of possible ages. Blocks without an entry have
// the default range, which is "evicted" for an empty cache and "anything"
// for an unknown one.
type absCache struct {
	cfg  vm.CacheConfig
	dflt ageRange
	ages map[uint64]ageRange
}

// NewLRUCache returns the initial abstract cache for the given parameters.
func NewLRUCache(params CacheParams) CacheState {
	ways := uint8(params.Ways)
	dflt := ageRange{lo: 0, hi: ways}
	if params.InitiallyEmpty {
		dflt.lo = ways
	}
	return &absCache{
		cfg:  params.CacheConfig,
		dflt: dflt,
		ages: map[uint64]ageRange{},
	}
}

func (c *absCache) evicted() uint8 {
	return uint8(c.cfg.Ways)
}

func (c *absCache) clone() *absCache {
	nc := &absCache{
		cfg:  c.cfg,
		dflt: c.dflt,
		ages: make(map[uint64]ageRange, len(c.ages)),
	}
	for blk, r := range c.ages {
		nc.ages[blk] = r
	}
	return nc
}

func (c *absCache) age(blk uint64) ageRange {
	if r, exists := c.ages[blk]; exists {
		return r
	}
	return c.dflt
}

func (c *absCache) setAge(blk uint64, r ageRange) {
	if r == c.dflt {
		delete(c.ages, blk)
		return
	}
	c.ages[blk] = r
}

func (c *absCache) other(o CacheState) *absCache {
	oc, ok := o.(*absCache)
	if !ok {
		panic(fmt.Sprintf("cannot combine LRU cache with %T", o))
	}
	return oc
}

func (c *absCache) TouchHM(addr uint64) (CacheState, CacheState) {
	blk := c.cfg.Block(addr)
	r := c.age(blk)
	ev := c.evicted()
	var hit, miss CacheState
	if r.lo < ev {
		hc := c.clone()
		refined := r
		if refined.hi == ev {
			refined.hi = ev - 1
		}
		hc.access(blk, refined)
		hit = hc
	}
	if r.hi == ev {
		mc := c.clone()
		mc.access(blk, ageRange{lo: ev, hi: ev})
		miss = mc
	}
	return hit, miss
}

// access updates the clone c for an access to blk whose age before the
// access lies in r. Blocks of the same set that were younger age by one.
func (c *absCache) access(blk uint64, r ageRange) {
	ev := c.evicted()
	set := c.cfg.Set(blk)
	for b, br := range c.ages {
		if b == blk || c.cfg.Set(b) != set || br.lo == ev {
			continue
		}
		switch {
		case br.hi < r.lo:
			br = ageRange{lo: br.lo + 1, hi: br.hi + 1}
		case br.lo < r.hi:
			if br.hi < ev {
				br.hi++
			}
		}
		if ev < br.lo {
			br.lo = ev
		}
		if ev < br.hi {
			br.hi = ev
		}
		c.setAge(b, br)
	}
	c.setAge(blk, ageRange{})
}

func (c *absCache) Join(o CacheState) CacheState {
	oc := c.other(o)
	res := &absCache{
		cfg:  c.cfg,
		dflt: joinAges(c.dflt, oc.dflt),
		ages: map[uint64]ageRange{},
	}
	for blk := range c.ages {
		res.setAge(blk, joinAges(c.age(blk), oc.age(blk)))
	}
	for blk := range oc.ages {
		res.setAge(blk, joinAges(c.age(blk), oc.age(blk)))
	}
	return res
}

// Widen is Join: the age lattice has finite height.
func (c *absCache) Widen(o CacheState) CacheState {
	return c.Join(o)
}

func (c *absCache) Subseteq(o CacheState) bool {
	oc := c.other(o)
	if !c.dflt.within(oc.dflt) {
		return false
	}
	for blk := range c.ages {
		if !c.age(blk).within(oc.age(blk)) {
			return false
		}
	}
	for blk := range oc.ages {
		if !c.age(blk).within(oc.age(blk)) {
			return false
		}
	}
	return true
}

func (c *absCache) Elapse(d uint64) CacheState {
	return c
}

// classify counts the tracked blocks that are surely and possibly cached.
func (c *absCache) classify() (must int, may int) {
	ev := c.evicted()
	for _, r := range c.ages {
		if r.hi < ev {
			must++
		}
		if r.lo < ev {
			may++
		}
	}
	return must, may
}

func (c *absCache) Print(w io.Writer) {
	must, may := c.classify()
	fmt.Fprintf(w, "Cache: %d blocks surely cached, %d possibly cached", must, may)
	if c.dflt.lo < c.evicted() {
		fmt.Fprintf(w, ", untouched blocks unknown")
	}
	fmt.Fprintln(w)
	if len(c.ages) == 0 {
		return
	}
	blocks := make([]uint64, 0, len(c.ages))
	for blk := range c.ages {
		blocks = append(blocks, blk)
	}
	sort.Slice(blocks, func(i, j int) bool { return blocks[i] < blocks[j] })
	for _, blk := range blocks {
		r := c.ages[blk]
		fmt.Fprintf(w, "  block %#x (set %d): age %d..%d\n", blk, c.cfg.Set(blk), r.lo, r.hi)
	}
}

func (c *absCache) PrintDelta(w io.Writer, prev CacheState) {
	pc := c.other(prev)
	must, may := c.classify()
	pmust, pmay := pc.classify()
	fmt.Fprintf(w, "Cache: surely cached %d -> %d, possibly cached %d -> %d\n", pmust, must, pmay, may)
}
