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

import "github.com/ethereum/go-ethereum/common/math"

func opHalt(pc *uint64, m *Machine, ins Instruction) error {
	return nil
}

func opTouch(pc *uint64, m *Machine, ins Instruction) error {
	if m.cache.access(ins.Arg) {
		m.observe(OutcomeHit, m.durations.Hit)
	} else {
		m.observe(OutcomeMiss, m.durations.Miss)
	}
	*pc++
	return nil
}

func opElapse(pc *uint64, m *Machine, ins Instruction) error {
	cost, overflow := math.SafeAdd(ins.Arg, m.durations.NoAccess)
	m.overflow = m.overflow || overflow
	m.observe(OutcomeNone, cost)
	*pc++
	return nil
}

func opJump(pc *uint64, m *Machine, ins Instruction) error {
	*pc = ins.Arg
	return nil
}
