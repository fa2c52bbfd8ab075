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

	log "github.com/sirupsen/logrus"

	"github.com/Ezekiel-1998/cacheaudit/vm"
)

var InternalFail = "internal-failure"
var InvalidOpcodeFail = "invalid-opcode"
var NoFixpointFail = "no-fixpoint"
var NoFeasiblePathFail = "no-feasible-path"

type pcType uint64

type result struct {
	mayFail      bool
	failureCause string
}

func noFail() result {
	return result{}
}

func mayFail(cause string) result {
	return result{
		mayFail:      true,
		failureCause: cause,
	}
}

// location is a program point together with the number of backward jumps
// taken to reach it, capped at maxUnroll.
type location struct {
	pc    pcType
	depth int
}

func (l location) String() string {
	return fmt.Sprintf("%x:%x", l.pc, l.depth)
}

func (l location) before(other location) bool {
	if l.depth != other.depth {
		return l.depth < other.depth
	}
	return l.pc < other.pc
}

type fixpointAnalyzer[S any] struct {
	domain        Domain[S]
	prog          *vm.Program
	concJt        vm.JumpTable
	absJt         absJumpTable[S]
	maxUnroll     int
	maxIterations int
	logger        *log.Entry
}

func newFixpointAnalyzer[S any](domain Domain[S], prog *vm.Program, cfg Config, logger *log.Entry) *fixpointAnalyzer[S] {
	return &fixpointAnalyzer[S]{
		domain:        domain,
		prog:          prog,
		concJt:        vm.NewAccessInstructionSet(),
		absJt:         newAbsJumpTable[S](),
		maxUnroll:     cfg.MaxUnroll,
		maxIterations: cfg.MaxIterations,
		logger:        logger,
	}
}

// analyze runs the domain over all paths of the program and returns the join
// of the states of every path that halts.
//
// Locations are processed in (depth, pc) order. Below the unroll bound every
// edge leads to a later location, so each location is executed once with
// the join of all its incoming states. At the bound, backward jumps stay on
// the same depth. Their targets are widened until the incoming state is
// already covered; other revisited locations take the recomputed state, as
// the old one has already been passed on to its successors.
func (a *fixpointAnalyzer[S]) analyze() (S, result, error) {
	states := map[location]S{}
	processed := map[location]bool{}
	rounds := map[location]int{}
	workset := map[location]bool{}
	loops := false

	var final S
	hasFinal := false

	// giveUp turns a merge the domain cannot represent into a failed
	// fixpoint once the program is known to loop.
	giveUp := func(loc location, err error) (result, error) {
		if loops && IsPlaceholderMerge(err) {
			a.logger.WithFields(log.Fields{"loc": loc, "error": err}).Warn("loop traces cannot be merged")
			return mayFail(NoFixpointFail), nil
		}
		return mayFail(InternalFail), err
	}

	addNewStates := func(from location, newStates []pcAndSt[S]) (result, error) {
		for _, st := range newStates {
			backEdge := st.pc <= from.pc
			loops = loops || backEdge
			loc := location{pc: st.pc, depth: from.depth}
			if backEdge && loc.depth < a.maxUnroll {
				loc.depth++
			}

			newState := st.st
			if oldState, exists := states[loc]; exists {
				var err error
				switch {
				case !processed[loc] || workset[loc]:
					newState, err = a.domain.Join(oldState, newState)
				case a.domain.Subseteq(newState, oldState):
					continue
				case backEdge:
					rounds[loc]++
					if a.maxIterations < rounds[loc] {
						a.logger.WithField("loc", loc).Warn("no fixpoint within iteration bound")
						return mayFail(NoFixpointFail), nil
					}
					newState, err = a.domain.Widen(oldState, newState)
				default:
					// Recomputed from a widened loop head.
				}
				if err != nil {
					return giveUp(loc, err)
				}
			}

			states[loc] = newState
			workset[loc] = true
		}
		return noFail(), nil
	}

	popState := func() (S, location) {
		first := true
		var next location
		for loc := range workset {
			if first || loc.before(next) {
				next = loc
				first = false
			}
		}
		delete(workset, next)
		processed[next] = true
		return states[next], next
	}

	start := location{}
	states[start] = a.domain.Init()
	workset[start] = true

	for 0 < len(workset) {
		st, loc := popState()
		op := a.prog.GetOp(uint64(loc.pc))
		a.logger.WithFields(log.Fields{"loc": loc, "op": op}).Debug("step")

		res, err := a.step(loc, st, op)
		if err != nil {
			return final, mayFail(InternalFail), err
		}
		if res.mayFail {
			return final, mayFail(res.failureCause), nil
		}
		for _, fs := range res.finalStates {
			if !hasFinal {
				final, hasFinal = fs, true
				continue
			}
			if final, err = a.domain.Join(final, fs); err != nil {
				failed, err := giveUp(loc, err)
				return final, failed, err
			}
		}
		addRes, err := addNewStates(loc, res.postStates)
		if addRes.mayFail {
			return final, addRes, err
		}
	}

	if !hasFinal {
		return final, mayFail(NoFeasiblePathFail), nil
	}
	a.logger.WithField("locations", len(states)).Debug("fixpoint reached")
	return final, noFail(), nil
}

func (a *fixpointAnalyzer[S]) step(loc location, st S, op vm.OpCode) (stepRes[S], error) {
	if vm.NumOpCodes <= op {
		return failRes[S](InvalidOpcodeFail), nil
	}
	abstractOp := a.absJt[op]
	conc := a.concJt[op]
	if abstractOp.valid != conc.Valid {
		return failRes[S](InternalFail), nil
	}
	if !abstractOp.valid {
		return failRes[S](InvalidOpcodeFail), nil
	}

	ins := vm.Instruction{Op: vm.HALT}
	if uint64(loc.pc) < uint64(len(a.prog.Code)) {
		ins = a.prog.Code[loc.pc]
	}
	env := execEnv[S]{
		pc:     loc.pc,
		ins:    ins,
		domain: a.domain,
		st:     st,
	}
	return abstractOp.exec(env)
}
