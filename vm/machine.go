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

package vm

import (
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/go-errors/errors"
)

// CacheConfig describes the geometry of a set-associative cache.
type CacheConfig struct {
	LineSize uint64 `yaml:"line_size"`
	Sets     uint64 `yaml:"sets"`
	Ways     uint64 `yaml:"ways"`
}

// Durations are the per-outcome costs added to the clock.
type Durations struct {
	Hit      uint64 `yaml:"hit_time"`
	Miss     uint64 `yaml:"miss_time"`
	NoAccess uint64 `yaml:"no_access_time"`
}

// Block returns the memory block an address falls into.
func (c CacheConfig) Block(addr uint64) uint64 {
	return addr / c.LineSize
}

// Set returns the cache set a memory block maps to.
func (c CacheConfig) Set(block uint64) uint64 {
	return block % c.Sets
}

// lruCache is a concrete set-associative LRU cache. Each set lists its
// blocks from most to least recently used.
type lruCache struct {
	cfg  CacheConfig
	sets map[uint64][]uint64
}

func newLRUCache(cfg CacheConfig) *lruCache {
	return &lruCache{
		cfg:  cfg,
		sets: map[uint64][]uint64{},
	}
}

func (c *lruCache) clone() *lruCache {
	nc := newLRUCache(c.cfg)
	for s, blocks := range c.sets {
		nc.sets[s] = append([]uint64(nil), blocks...)
	}
	return nc
}

// access touches addr and reports whether it was a hit.
func (c *lruCache) access(addr uint64) bool {
	blk := c.cfg.Block(addr)
	s := c.cfg.Set(blk)
	blocks := c.sets[s]
	for i, b := range blocks {
		if b == blk {
			copy(blocks[1:i+1], blocks[:i])
			blocks[0] = blk
			return true
		}
	}
	blocks = append([]uint64{blk}, blocks...)
	if uint64(len(blocks)) > c.cfg.Ways {
		blocks = blocks[:c.cfg.Ways]
	}
	c.sets[s] = blocks
	return false
}

type Outcome byte

const (
	OutcomeHit  Outcome = 'H'
	OutcomeMiss Outcome = 'M'
	OutcomeNone Outcome = '.'
)

// Machine executes access programs concretely, recording the observable
// trace and the elapsed time.
type Machine struct {
	cache     *lruCache
	durations Durations
	clock     uint64
	overflow  bool
	trace     []Outcome
}

func NewMachine(cfg CacheConfig, durations Durations) *Machine {
	return &Machine{
		cache:     newLRUCache(cfg),
		durations: durations,
	}
}

func (m *Machine) clone() *Machine {
	return &Machine{
		cache:     m.cache.clone(),
		durations: m.durations,
		clock:     m.clock,
		overflow:  m.overflow,
		trace:     append([]Outcome(nil), m.trace...),
	}
}

func (m *Machine) observe(o Outcome, cost uint64) {
	m.trace = append(m.trace, o)
	var overflow bool
	m.clock, overflow = math.SafeAdd(m.clock, cost)
	m.overflow = m.overflow || overflow
}

// Run is one complete concrete execution.
type Run struct {
	Trace string
	Time  uint64
}

var ErrClockOverflow = errors.New("clock overflow")

// Enumerate executes every path of the program from an empty cache, choosing
// both directions at each branch. Paths taking more than maxBackJumps backward
// jumps are cut off and not reported.
func Enumerate(p *Program, cfg CacheConfig, durations Durations, maxBackJumps int) ([]Run, error) {
	type frame struct {
		pc    uint64
		jumps int
		m     *Machine
	}
	jt := accessInstructionSet
	var runs []Run
	stack := []frame{{m: NewMachine(cfg, durations)}}
	for 0 < len(stack) {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for {
			if f.jumps > maxBackJumps {
				break
			}
			op := p.GetOp(f.pc)
			if NumOpCodes <= op || !jt[op].Valid {
				return nil, errors.Errorf("invalid opcode %v at pc %d", op, f.pc)
			}
			operation := jt[op]
			if operation.Halts() {
				if f.m.overflow {
					return nil, ErrClockOverflow
				}
				runs = append(runs, Run{Trace: string(f.m.trace), Time: f.m.clock})
				break
			}
			ins := p.Code[f.pc]
			if operation.Branches() {
				taken := frame{pc: ins.Arg, jumps: f.jumps, m: f.m.clone()}
				if ins.Arg <= f.pc {
					taken.jumps++
				}
				stack = append(stack, taken)
				f.pc++
				continue
			}
			prev := f.pc
			if err := operation.Execute(&f.pc, f.m, ins); err != nil {
				return nil, err
			}
			if f.pc <= prev {
				f.jumps++
			}
		}
	}
	return runs, nil
}
