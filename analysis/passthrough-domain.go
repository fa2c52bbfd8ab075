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

import "io"

// PassThroughDomain analyzes the cache alone. It offers the Domain contract
// of TraceDomain without the cost of maintaining traces and times.
type PassThroughDomain struct {
	newCache func() CacheState
	metrics  *Metrics
}

var _ Domain[CacheState] = (*PassThroughDomain)(nil)

func NewPassThroughDomain(newCache func() CacheState, metrics *Metrics) *PassThroughDomain {
	return &PassThroughDomain{
		newCache: newCache,
		metrics:  metrics,
	}
}

func (d *PassThroughDomain) Init() CacheState {
	return d.newCache()
}

func (d *PassThroughDomain) Touch(c CacheState, addr uint64) (CacheState, error) {
	hit, miss := c.TouchHM(addr)
	switch {
	case hit == nil && miss == nil:
		d.metrics.bottomPath()
		return nil, ErrBottom
	case miss == nil:
		return hit, nil
	case hit == nil:
		return miss, nil
	}
	return hit.Join(miss), nil
}

func (d *PassThroughDomain) Elapse(c CacheState, duration uint64) (CacheState, error) {
	return c.Elapse(duration), nil
}

func (d *PassThroughDomain) Join(c1 CacheState, c2 CacheState) (CacheState, error) {
	return c1.Join(c2), nil
}

func (d *PassThroughDomain) Widen(c1 CacheState, c2 CacheState) (CacheState, error) {
	return c1.Widen(c2), nil
}

func (d *PassThroughDomain) Subseteq(c1 CacheState, c2 CacheState) bool {
	return c1.Subseteq(c2)
}

func (d *PassThroughDomain) Print(w io.Writer, c CacheState) {
	c.Print(w)
}

func (d *PassThroughDomain) PrintDelta(w io.Writer, prev CacheState, cur CacheState) {
	cur.PrintDelta(w, prev)
}
