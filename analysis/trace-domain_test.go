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
	"bytes"
	"fmt"
	"io"
	"math/big"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubCache answers every access with fixed outcomes, except for dead which
// can neither hit nor miss. Joins are recorded in the tag.
type stubCache struct {
	tag     string
	canHit  bool
	canMiss bool
	hasDead bool
	dead    uint64
}

func (c stubCache) TouchHM(addr uint64) (CacheState, CacheState) {
	if c.hasDead && addr == c.dead {
		return nil, nil
	}
	var hit, miss CacheState
	if c.canHit {
		h := c
		h.tag += "H"
		hit = h
	}
	if c.canMiss {
		m := c
		m.tag += "M"
		miss = m
	}
	return hit, miss
}

func (c stubCache) Join(o CacheState) CacheState {
	oc := o.(stubCache)
	if c.tag == oc.tag {
		return c
	}
	res := c
	res.tag = fmt.Sprintf("(%s|%s)", c.tag, oc.tag)
	res.canHit = c.canHit || oc.canHit
	res.canMiss = c.canMiss || oc.canMiss
	return res
}

func (c stubCache) Widen(o CacheState) CacheState {
	return c.Join(o)
}

func (c stubCache) Subseteq(o CacheState) bool {
	return strings.Contains(o.(stubCache).tag, c.tag)
}

func (c stubCache) Elapse(d uint64) CacheState {
	return c
}

func (c stubCache) Print(w io.Writer) {
	fmt.Fprintf(w, "Cache: stub %s\n", c.tag)
}

func (c stubCache) PrintDelta(w io.Writer, prev CacheState) {
	fmt.Fprintf(w, "Cache: stub %s -> %s\n", prev.(stubCache).tag, c.tag)
}

func newStubDomain(cfg Config, cache stubCache) (*TraceDomain, *Metrics) {
	metrics := NewMetrics(prometheus.NewRegistry())
	return NewTraceDomain(NewNodeStore(metrics), func() CacheState { return cache }, cfg), metrics
}

func requireTimes(t *testing.T, s TraceState, want ...uint64) {
	t.Helper()
	vals, known := s.Times()
	require.True(t, known, "times must be known")
	assert.Equal(t, want, vals)
}

func TestTraceDomain_Init(t *testing.T) {
	d, _ := newStubDomain(DefaultConfig(), stubCache{tag: "c", canMiss: true})

	s := d.Init()
	assert.Equal(t, RootID, s.Trace())
	assert.Equal(t, big.NewInt(1), d.Store().Count(s.Trace()))
	requireTimes(t, s, 0)
}

func TestTraceDomain_TouchSingleOutcome(t *testing.T) {
	d, _ := newStubDomain(DefaultConfig(), stubCache{tag: "c", canHit: true})

	s, err := d.Touch(d.Init(), 0x0)
	require.NoError(t, err)
	assert.Equal(t, Hit, d.Store().Status(s.Trace()))
	assert.Equal(t, big.NewInt(1), d.Store().Count(s.Trace()))
	assert.Equal(t, stubCache{tag: "cH", canHit: true}, s.Cache())
	requireTimes(t, s, 3)
}

func TestTraceDomain_TouchBothOutcomes(t *testing.T) {
	d, _ := newStubDomain(DefaultConfig(), stubCache{tag: "c", canHit: true, canMiss: true})

	s, err := d.Touch(d.Init(), 0x0)
	require.NoError(t, err)
	assert.Equal(t, HitOrMiss, d.Store().Status(s.Trace()))
	assert.Equal(t, big.NewInt(2), d.Store().Count(s.Trace()))
	assert.Equal(t, "(cH|cM)", s.Cache().(stubCache).tag)
	requireTimes(t, s, 3, 20)

	parent, err := d.Store().Parent(s.Trace())
	require.NoError(t, err)
	assert.Equal(t, RootID, parent)
}

func TestTraceDomain_JoinOfBranches(t *testing.T) {
	cfg := DefaultConfig()
	hitDom, _ := newStubDomain(cfg, stubCache{tag: "c", canHit: true})
	store := hitDom.Store()
	missDom := NewTraceDomain(store, func() CacheState { return stubCache{tag: "c", canMiss: true} }, cfg)

	hit, err := hitDom.Touch(hitDom.Init(), 0x0)
	require.NoError(t, err)
	miss, err := missDom.Touch(missDom.Init(), 0x0)
	require.NoError(t, err)

	joined, err := hitDom.Join(hit, miss)
	require.NoError(t, err)
	assert.Equal(t, HitOrMiss, store.Status(joined.Trace()))
	assert.Equal(t, big.NewInt(2), store.Count(joined.Trace()))
	assert.Equal(t, []NodeID{RootID}, store.AncestorIDs(joined.Trace()))
	requireTimes(t, joined, 3, 20)

	assert.True(t, hitDom.Subseteq(hit, joined))
	assert.True(t, hitDom.Subseteq(miss, joined))
	assert.False(t, hitDom.Subseteq(joined, hit))

	widened, err := hitDom.Widen(hit, miss)
	require.NoError(t, err)
	assert.Equal(t, joined.Trace(), widened.Trace())
}

func TestTraceDomain_Elapse(t *testing.T) {
	d, _ := newStubDomain(DefaultConfig(), stubCache{tag: "c", canMiss: true})

	s1, err := d.Elapse(d.Init(), 1)
	require.NoError(t, err)
	s2, err := d.Elapse(s1, 1)
	require.NoError(t, err)

	// Each step costs its duration plus the time of a step without access.
	requireTimes(t, s2, 4)
	assert.NotEqual(t, s1.Trace(), s2.Trace())
	assert.Equal(t, NoAccess, d.Store().Status(s2.Trace()))
	parent, err := d.Store().Parent(s2.Trace())
	require.NoError(t, err)
	assert.Equal(t, s1.Trace(), parent)
	assert.Equal(t, big.NewInt(1), d.Store().Count(s2.Trace()))
}

func TestTraceDomain_ElapseWithoutIdleCost(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NoAccess = 0
	d, _ := newStubDomain(cfg, stubCache{tag: "c", canMiss: true})

	s, err := d.Elapse(d.Init(), 1)
	require.NoError(t, err)
	s, err = d.Elapse(s, 1)
	require.NoError(t, err)
	requireTimes(t, s, 2)
}

func TestTraceDomain_JoinIsIdempotent(t *testing.T) {
	d, _ := newStubDomain(DefaultConfig(), stubCache{tag: "c", canHit: true, canMiss: true})

	s, err := d.Touch(d.Init(), 0x0)
	require.NoError(t, err)
	s, err = d.Elapse(s, 7)
	require.NoError(t, err)

	joined, err := d.Join(s, s)
	require.NoError(t, err)
	assert.Equal(t, s.Trace(), joined.Trace())
	assert.Equal(t, s.Cache(), joined.Cache())
	vals, _ := s.Times()
	requireTimes(t, joined, vals...)
	assert.True(t, d.Subseteq(s, joined))
	assert.True(t, d.Subseteq(joined, s))
}

func TestTraceDomain_JoinAccessWithIdleFails(t *testing.T) {
	d, _ := newStubDomain(DefaultConfig(), stubCache{tag: "c", canHit: true})

	touched, err := d.Touch(d.Init(), 0x0)
	require.NoError(t, err)
	idle, err := d.Elapse(d.Init(), 0)
	require.NoError(t, err)

	_, err = d.Join(touched, idle)
	assert.True(t, IsInvariantViolation(err))
}

func TestTraceDomain_Bottom(t *testing.T) {
	d, metrics := newStubDomain(DefaultConfig(), stubCache{tag: "c", canMiss: true, hasDead: true, dead: 0x80})

	s, err := d.Touch(d.Init(), 0x0)
	require.NoError(t, err)
	nodes := d.Store().Len()

	_, err = d.Touch(s, 0x80)
	assert.True(t, IsBottom(err))
	assert.Equal(t, nodes, d.Store().Len())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.bottomPaths))
}

func TestTraceDomain_TimesCollapse(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxTimes = 4
	d, metrics := newStubDomain(cfg, stubCache{tag: "c", canHit: true, canMiss: true})

	s := d.Init()
	var err error
	for i := 0; i < 3; i++ {
		s, err = d.Touch(s, 0x0)
		require.NoError(t, err)
		_, known := s.Times()
		require.True(t, known, "touch %d", i)
	}
	assert.Equal(t, big.NewInt(8), d.Store().Count(s.Trace()))

	s, err = d.Touch(s, 0x0)
	require.NoError(t, err)
	_, known := s.Times()
	assert.False(t, known)

	s, err = d.Elapse(s, 1)
	require.NoError(t, err)
	_, known = s.Times()
	assert.False(t, known)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.timeCollapses))
	assert.Equal(t, big.NewInt(16), d.Store().Count(s.Trace()))
}

func TestTraceDomain_Print(t *testing.T) {
	d, _ := newStubDomain(DefaultConfig(), stubCache{tag: "c", canHit: true, canMiss: true})

	s, err := d.Touch(d.Init(), 0x0)
	require.NoError(t, err)

	var buf bytes.Buffer
	d.Print(&buf, s)
	assert.Equal(t, "Number of traces: 2, 1.0 bits\n"+
		"Number of possible times: 2, 1.0 bits\n"+
		"Cache: stub (cH|cM)\n", buf.String())

	buf.Reset()
	d.Print(&buf, TraceState{trace: s.Trace(), cache: s.Cache(), times: topTimes()})
	assert.Equal(t, "Number of traces: 2, 1.0 bits\n"+
		"Number of possible times: too imprecise to tell\n"+
		"Cache: stub (cH|cM)\n", buf.String())
}

func TestTraceDomain_PrintDelta(t *testing.T) {
	d, _ := newStubDomain(DefaultConfig(), stubCache{tag: "c", canHit: true, canMiss: true})

	start := d.Init()
	s, err := d.Touch(start, 0x0)
	require.NoError(t, err)

	var buf bytes.Buffer
	d.PrintDelta(&buf, start, s)
	assert.Equal(t, "Cache: stub c -> (cH|cM)\n"+
		"Number of traces: 1 -> 2\n"+
		"Number of possible times: 1 -> 2\n", buf.String())

	buf.Reset()
	d.PrintDelta(&buf, s, s)
	assert.Equal(t, "Cache: stub (cH|cM) -> (cH|cM)\n", buf.String())
}
