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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ezekiel-1998/cacheaudit/vm"
)

func smallCache(initiallyEmpty bool) CacheState {
	return NewLRUCache(CacheParams{
		CacheConfig:    vm.CacheConfig{LineSize: 64, Sets: 1, Ways: 2},
		InitiallyEmpty: initiallyEmpty,
	})
}

// touchOnly follows the single possible outcome of an access.
func touchOnly(t *testing.T, c CacheState, addr uint64, wantHit bool) CacheState {
	t.Helper()
	hit, miss := c.TouchHM(addr)
	if wantHit {
		require.NotNil(t, hit, "access to %#x must be able to hit", addr)
		require.Nil(t, miss, "access to %#x must not miss", addr)
		return hit
	}
	require.Nil(t, hit, "access to %#x must not hit", addr)
	require.NotNil(t, miss, "access to %#x must be able to miss", addr)
	return miss
}

func TestLRUCache_EmptyCache(t *testing.T) {
	c := smallCache(true)

	c = touchOnly(t, c, 0x0, false)
	c = touchOnly(t, c, 0x10, true) // same line
	touchOnly(t, c, 0x40, false)
}

func TestLRUCache_UnknownCache(t *testing.T) {
	c := smallCache(false)

	hit, miss := c.TouchHM(0x0)
	require.NotNil(t, hit)
	require.NotNil(t, miss)

	c = hit.Join(miss)
	hit, miss = c.TouchHM(0x40)
	require.NotNil(t, hit)
	require.NotNil(t, miss)
	c = hit.Join(miss)

	// Both blocks fit the two ways, whatever was cached before.
	c = touchOnly(t, c, 0x0, true)
	touchOnly(t, c, 0x40, true)
}

func TestLRUCache_Eviction(t *testing.T) {
	c := smallCache(true)
	for _, addr := range []uint64{0x0, 0x40, 0x80} {
		c = touchOnly(t, c, addr, false)
	}

	touchOnly(t, c, 0x40, true)
	touchOnly(t, c, 0x80, true)
	touchOnly(t, c, 0x0, false)
}

func TestLRUCache_HitRefreshesAge(t *testing.T) {
	c := smallCache(true)
	c = touchOnly(t, c, 0x0, false)
	c = touchOnly(t, c, 0x40, false)
	c = touchOnly(t, c, 0x0, true)
	c = touchOnly(t, c, 0x80, false)

	touchOnly(t, c, 0x0, true)
	touchOnly(t, c, 0x40, false)
}

func TestLRUCache_SetsAreIndependent(t *testing.T) {
	c := NewLRUCache(CacheParams{
		CacheConfig:    vm.CacheConfig{LineSize: 64, Sets: 2, Ways: 1},
		InitiallyEmpty: true,
	})
	c = touchOnly(t, c, 0x0, false)  // set 0
	c = touchOnly(t, c, 0x40, false) // set 1

	touchOnly(t, c, 0x0, true)
	touchOnly(t, c, 0x40, true)
}

func TestLRUCache_Join(t *testing.T) {
	base := smallCache(true)
	touched := touchOnly(t, base, 0x0, false)

	evicted := touched
	for _, addr := range []uint64{0x40, 0x80} {
		evicted = touchOnly(t, evicted, addr, false)
	}

	joined := touched.Join(evicted)
	hit, miss := joined.TouchHM(0x0)
	assert.NotNil(t, hit)
	assert.NotNil(t, miss)

	assert.True(t, touched.Subseteq(joined))
	assert.True(t, evicted.Subseteq(joined))
	assert.False(t, joined.Subseteq(touched))
	assert.True(t, joined.Subseteq(joined))
	assert.True(t, touched.Widen(evicted).Subseteq(joined))
	assert.True(t, joined.Subseteq(touched.Widen(evicted)))
}

func TestLRUCache_IsPersistent(t *testing.T) {
	c := smallCache(true)
	touchOnly(t, c, 0x0, false)

	// The receiver still has an empty cache.
	touchOnly(t, c, 0x0, false)
}

func TestLRUCache_ElapseKeepsState(t *testing.T) {
	c := touchOnly(t, smallCache(true), 0x0, false)
	assert.Same(t, c, c.Elapse(100))
}

func TestLRUCache_MixingImplementationsPanics(t *testing.T) {
	c := smallCache(true)
	assert.Panics(t, func() { c.Join(stubCache{tag: "x"}) })
}

func TestLRUCache_Print(t *testing.T) {
	c := smallCache(true)
	c = touchOnly(t, c, 0x0, false)
	c = touchOnly(t, c, 0x40, false)

	var buf bytes.Buffer
	c.Print(&buf)
	assert.Equal(t, "Cache: 2 blocks surely cached, 2 possibly cached\n"+
		"  block 0x0 (set 0): age 1..1\n"+
		"  block 0x1 (set 0): age 0..0\n", buf.String())

	buf.Reset()
	smallCache(false).Print(&buf)
	assert.Equal(t, "Cache: 0 blocks surely cached, 0 possibly cached, untouched blocks unknown\n", buf.String())
}

func TestLRUCache_PrintDelta(t *testing.T) {
	prev := smallCache(true)
	cur := touchOnly(t, prev, 0x0, false)

	var buf bytes.Buffer
	cur.PrintDelta(&buf, prev)
	assert.Equal(t, "Cache: surely cached 0 -> 1, possibly cached 0 -> 1\n", buf.String())
}
