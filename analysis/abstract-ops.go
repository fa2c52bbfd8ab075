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
	"github.com/Ezekiel-1998/cacheaudit/vm"
)

type pcAndSt[S any] struct {
	pc pcType
	st S
}

type stepRes[S any] struct {
	mayFail      bool
	failureCause string
	postStates   []pcAndSt[S] // list of post states
	finalStates  []S          // states of paths that halted
}

func emptyRes[S any]() stepRes[S] {
	return stepRes[S]{}
}

func failRes[S any](cause string) stepRes[S] {
	return stepRes[S]{
		mayFail:      true,
		failureCause: cause,
	}
}

func nextPcRes[S any](env execEnv[S], st S) stepRes[S] {
	return stepRes[S]{
		postStates: []pcAndSt[S]{
			{
				pc: env.pc + 1,
				st: st,
			},
		},
	}
}

type absJumpTable[S any] [vm.NumOpCodes]absOp[S]

type execFn[S any] func(env execEnv[S]) (stepRes[S], error)

type absOp[S any] struct {
	// valid is true if the operation has been initialized.
	valid bool
	// exec executes an abstract operation on a feasible state.
	exec execFn[S]
}

func fromExec[S any](exec execFn[S]) absOp[S] {
	return absOp[S]{
		valid: true,
		exec:  exec,
	}
}

type execEnv[S any] struct {
	pc     pcType
	ins    vm.Instruction
	domain Domain[S]
	st     S
}

func newAbsJumpTable[S any]() absJumpTable[S] {
	var jt absJumpTable[S]
	jt[vm.HALT] = fromExec[S](opHalt[S])
	jt[vm.TOUCH] = fromExec[S](opTouch[S])
	jt[vm.ELAPSE] = fromExec[S](opElapse[S])
	jt[vm.BRANCH] = fromExec[S](opBranch[S])
	jt[vm.JUMP] = fromExec[S](opJump[S])
	return jt
}

func opHalt[S any](env execEnv[S]) (stepRes[S], error) {
	return stepRes[S]{
		finalStates: []S{env.st},
	}, nil
}

func opTouch[S any](env execEnv[S]) (stepRes[S], error) {
	st, err := env.domain.Touch(env.st, env.ins.Arg)
	if IsBottom(err) {
		// The access is infeasible, so is the rest of this path.
		return emptyRes[S](), nil
	}
	if err != nil {
		return emptyRes[S](), err
	}
	return nextPcRes(env, st), nil
}

func opElapse[S any](env execEnv[S]) (stepRes[S], error) {
	st, err := env.domain.Elapse(env.st, env.ins.Arg)
	if err != nil {
		return emptyRes[S](), err
	}
	return nextPcRes(env, st), nil
}

func opBranch[S any](env execEnv[S]) (stepRes[S], error) {
	return stepRes[S]{
		postStates: []pcAndSt[S]{
			{pc: env.pc + 1, st: env.st},
			{pc: pcType(env.ins.Arg), st: env.st},
		},
	}, nil
}

func opJump[S any](env execEnv[S]) (stepRes[S], error) {
	return stepRes[S]{
		postStates: []pcAndSt[S]{
			{pc: pcType(env.ins.Arg), st: env.st},
		},
	}, nil
}
