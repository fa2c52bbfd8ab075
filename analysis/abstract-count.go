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
	"math"
	"math/big"
)

// absCount is the number of concrete traces a trie node stands for.
type absCount = big.Int

func oneCount() *absCount {
	return big.NewInt(1)
}

// sumCounts returns c1 + c2 as a fresh value.
func sumCounts(c1 *absCount, c2 *absCount) *absCount {
	return (&big.Int{}).Add(c1, c2)
}

// doubleCount doubles c in place and returns it.
func doubleCount(c *absCount) *absCount {
	return c.Lsh(c, 1)
}

// countBits returns log2(c), the number of bits an attacker learns when
// distinguishing c equally likely traces. It is 0 for c <= 1.
func countBits(c *absCount) float64 {
	if c.Cmp(oneCount()) <= 0 {
		return 0
	}
	// Keep the 53 most significant bits so the mantissa fits a float64.
	shift := c.BitLen() - 53
	if shift <= 0 {
		f, _ := new(big.Float).SetInt(c).Float64()
		return math.Log2(f)
	}
	top := (&big.Int{}).Rsh(c, uint(shift))
	f, _ := new(big.Float).SetInt(top).Float64()
	return math.Log2(f) + float64(shift)
}
