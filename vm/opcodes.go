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
	"fmt"
	"strings"
)

// OpCode is a single instruction of an access program.
type OpCode byte

const (
	HALT OpCode = iota
	TOUCH
	ELAPSE
	BRANCH
	JUMP

	NumOpCodes
)

var opCodeToString = map[OpCode]string{
	HALT:   "HALT",
	TOUCH:  "TOUCH",
	ELAPSE: "ELAPSE",
	BRANCH: "BRANCH",
	JUMP:   "JUMP",
}

func (op OpCode) String() string {
	str, ok := opCodeToString[op]
	if !ok {
		return fmt.Sprintf("opcode %#x not defined", int(op))
	}
	return str
}

var stringToOp = map[string]OpCode{
	"HALT":   HALT,
	"TOUCH":  TOUCH,
	"ELAPSE": ELAPSE,
	"BRANCH": BRANCH,
	"JUMP":   JUMP,
}

// StringToOp finds the opcode whose name is stored in str (case insensitive).
func StringToOp(str string) (OpCode, bool) {
	op, ok := stringToOp[strings.ToUpper(str)]
	return op, ok
}
