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
	"math/big"

	"github.com/ethereum/go-ethereum/common/math"

	"github.com/Ezekiel-1998/cacheaudit/vm"
)

// absTimes over-approximates the cumulative elapsed times of all paths.
// It is either a finite set or top (unknown). vals is sorted and free of
// duplicates and never modified after construction.
type absTimes struct {
	isTop bool
	vals  []uint64
}

func topTimes() absTimes {
	return absTimes{isTop: true}
}

func singletonTimes(v uint64) absTimes {
	return absTimes{vals: []uint64{v}}
}

// card returns the number of possible times and false if they are unknown.
func (t absTimes) card() (int, bool) {
	if t.isTop {
		return 0, false
	}
	return len(t.vals), true
}

// values returns a copy of the possible times and false if they are unknown.
func (t absTimes) values() ([]uint64, bool) {
	if t.isTop {
		return nil, false
	}
	return append([]uint64(nil), t.vals...), true
}

// shiftTimes adds delta to every possible time. A time that would overflow
// makes the whole set unknown.
func shiftTimes(t absTimes, delta uint64) absTimes {
	if t.isTop {
		return topTimes()
	}
	res := make([]uint64, len(t.vals))
	for i, v := range t.vals {
		nv, overflow := math.SafeAdd(v, delta)
		if overflow {
			return topTimes()
		}
		res[i] = nv
	}
	return absTimes{vals: res}
}

// shiftTimesByStatus adds the duration of an access with the given status.
// For HitOrMiss both durations are possible.
func shiftTimesByStatus(t absTimes, status Status, durations vm.Durations, maxTimes int) (absTimes, error) {
	switch status {
	case Hit:
		return shiftTimes(t, durations.Hit), nil
	case Miss:
		return shiftTimes(t, durations.Miss), nil
	case NoAccess:
		return shiftTimes(t, durations.NoAccess), nil
	case HitOrMiss:
		return unionTimes(shiftTimes(t, durations.Hit), shiftTimes(t, durations.Miss), maxTimes), nil
	}
	return absTimes{}, invariantf("no duration for status %v", status)
}

// unionTimes merges two time sets. The result is unknown if either side is
// or if it would hold more than maxTimes values.
func unionTimes(t1 absTimes, t2 absTimes, maxTimes int) absTimes {
	if t1.isTop || t2.isTop {
		return topTimes()
	}
	res := make([]uint64, 0, len(t1.vals)+len(t2.vals))
	i, j := 0, 0
	for i < len(t1.vals) || j < len(t2.vals) {
		var v uint64
		switch {
		case j == len(t2.vals) || (i < len(t1.vals) && t1.vals[i] < t2.vals[j]):
			v = t1.vals[i]
			i++
		case i == len(t1.vals) || t2.vals[j] < t1.vals[i]:
			v = t2.vals[j]
			j++
		default:
			v = t1.vals[i]
			i++
			j++
		}
		res = append(res, v)
		if maxTimes < len(res) {
			return topTimes()
		}
	}
	return absTimes{vals: res}
}

// subseteqTimes determines whether every time of t1 is a time of t2.
func subseteqTimes(t1 absTimes, t2 absTimes) bool {
	if t2.isTop {
		return true
	}
	if t1.isTop {
		return false
	}
	j := 0
	for _, v := range t1.vals {
		for j < len(t2.vals) && t2.vals[j] < v {
			j++
		}
		if j == len(t2.vals) || t2.vals[j] != v {
			return false
		}
	}
	return true
}

func equalTimes(t1 absTimes, t2 absTimes) bool {
	return subseteqTimes(t1, t2) && subseteqTimes(t2, t1)
}

// timesBits returns log2 of the number of possible times.
func timesBits(t absTimes) (float64, bool) {
	n, known := t.card()
	if !known {
		return 0, false
	}
	return countBits(big.NewInt(int64(n))), true
}
