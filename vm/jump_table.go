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

type (
	// ExecutionFunc runs one instruction on a concrete machine and advances pc.
	ExecutionFunc func(pc *uint64, m *Machine, ins Instruction) error
)

type Operation struct {
	// Execute is the concrete operation function, nil for branches whose
	// successor is chosen by the caller
	Execute ExecutionFunc
	// HasArg tells whether the instruction takes a numeric or label operand
	HasArg bool

	halts    bool // indicates whether the operation should halt further execution
	jumps    bool // indicates whether the program counter should not increment
	branches bool // indicates whether both the next instruction and the target are successors
	Valid    bool // indication whether the retrieved operation is valid and known
}

func (o Operation) Halts() bool {
	return o.halts
}

func (o Operation) Jumps() bool {
	return o.jumps
}

func (o Operation) Branches() bool {
	return o.branches
}

// TakesLabel reports whether the operand of the operation is a jump target.
func (o Operation) TakesLabel() bool {
	return o.jumps || o.branches
}

type JumpTable [NumOpCodes]Operation

var accessInstructionSet = NewAccessInstructionSet()

// NewAccessInstructionSet returns the instructions understood by access programs.
func NewAccessInstructionSet() JumpTable {
	return JumpTable{
		HALT: {
			Execute: opHalt,
			halts:   true,
			Valid:   true,
		},
		TOUCH: {
			Execute: opTouch,
			HasArg:  true,
			Valid:   true,
		},
		ELAPSE: {
			Execute: opElapse,
			HasArg:  true,
			Valid:   true,
		},
		BRANCH: {
			HasArg:   true,
			branches: true,
			Valid:    true,
		},
		JUMP: {
			Execute: opJump,
			HasArg:  true,
			jumps:   true,
			Valid:   true,
		},
	}
}
