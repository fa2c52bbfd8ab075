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
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/go-errors/errors"
	"gopkg.in/yaml.v3"
)

// Instruction is one decoded line of an access program. For jumps and
// branches Arg holds the resolved target pc and Label the name as written.
type Instruction struct {
	Op    OpCode
	Arg   uint64
	Label string
}

func (ins Instruction) String() string {
	if NumOpCodes <= ins.Op {
		return ins.Op.String()
	}
	op := accessInstructionSet[ins.Op]
	switch {
	case !op.Valid:
		return ins.Op.String()
	case op.TakesLabel():
		return fmt.Sprintf("%v %v", ins.Op, ins.Label)
	case op.HasArg:
		return fmt.Sprintf("%v %#x", ins.Op, ins.Arg)
	}
	return ins.Op.String()
}

// Program is a straight-line list of instructions. Falling off the end halts.
type Program struct {
	Name   string
	Code   []Instruction
	Labels map[string]uint64
}

// GetOp returns the n'th opcode of the program, or HALT past the end.
func (p *Program) GetOp(n uint64) OpCode {
	if n < uint64(len(p.Code)) {
		return p.Code[n].Op
	}
	return HALT
}

// String renders the canonical text of the program, one instruction per line
// with labels on their own lines.
func (p *Program) String() string {
	byPc := map[uint64][]string{}
	for name, pc := range p.Labels {
		byPc[pc] = append(byPc[pc], name)
	}
	var sb strings.Builder
	for pc := uint64(0); pc <= uint64(len(p.Code)); pc++ {
		names := byPc[pc]
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&sb, "%v:\n", name)
		}
		if pc < uint64(len(p.Code)) {
			fmt.Fprintf(&sb, "%v\n", p.Code[pc])
		}
	}
	return sb.String()
}

// Fingerprint identifies the program by the Keccak-256 hash of its canonical text.
func (p *Program) Fingerprint() common.Hash {
	return crypto.Keccak256Hash([]byte(p.String()))
}

// Parse reads an access program. Each line holds one instruction
// ("touch 0x40", "elapse 3", "branch name", "jump name", "halt"),
// a label ("name:") or nothing. Everything after ';' is a comment.
func Parse(name string, r io.Reader) (*Program, error) {
	p := &Program{
		Name:   name,
		Labels: map[string]uint64{},
	}
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if idx := strings.IndexByte(line, ';'); 0 <= idx {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasSuffix(line, ":") {
			label := strings.TrimSpace(strings.TrimSuffix(line, ":"))
			if label == "" || strings.ContainsAny(label, " \t") {
				return nil, errors.Errorf("%v:%d: malformed label %q", name, lineNo, line)
			}
			if _, exists := p.Labels[label]; exists {
				return nil, errors.Errorf("%v:%d: duplicate label %q", name, lineNo, label)
			}
			p.Labels[label] = uint64(len(p.Code))
			continue
		}
		ins, err := parseInstruction(strings.Fields(line))
		if err != nil {
			return nil, errors.WrapPrefix(err, fmt.Sprintf("%v:%d", name, lineNo), 0)
		}
		p.Code = append(p.Code, ins)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, 0)
	}

	// Labels may be used before they are defined.
	for i := range p.Code {
		ins := &p.Code[i]
		if !accessInstructionSet[ins.Op].TakesLabel() {
			continue
		}
		target, exists := p.Labels[ins.Label]
		if !exists {
			return nil, errors.Errorf("%v: undefined label %q", name, ins.Label)
		}
		ins.Arg = target
	}
	return p, nil
}

// ParseString is Parse on an in-memory program text.
func ParseString(name, code string) (*Program, error) {
	return Parse(name, strings.NewReader(code))
}

func parseInstruction(fields []string) (Instruction, error) {
	op, ok := StringToOp(fields[0])
	if !ok {
		return Instruction{}, errors.Errorf("unknown instruction %q", fields[0])
	}
	operation := accessInstructionSet[op]
	if !operation.HasArg {
		if len(fields) != 1 {
			return Instruction{}, errors.Errorf("%v takes no operand", op)
		}
		return Instruction{Op: op}, nil
	}
	if len(fields) != 2 {
		return Instruction{}, errors.Errorf("%v takes exactly one operand", op)
	}
	if operation.TakesLabel() {
		return Instruction{Op: op, Label: fields[1]}, nil
	}
	arg, err := strconv.ParseUint(fields[1], 0, 64)
	if err != nil {
		return Instruction{}, errors.Errorf("bad operand %q for %v: %v", fields[1], op, err)
	}
	return Instruction{Op: op, Arg: arg}, nil
}

// Source is a named program text as found in program files.
type Source struct {
	Name string `yaml:"name"`
	Code string `yaml:"code"`
}

type sourceFile struct {
	Programs []Source `yaml:"programs"`
}

// LoadPrograms reads and parses all programs of a YAML program file.
func LoadPrograms(path string) ([]*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}
	var file sourceFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.WrapPrefix(err, path, 0)
	}
	progs := make([]*Program, 0, len(file.Programs))
	for i, src := range file.Programs {
		name := src.Name
		if name == "" {
			name = fmt.Sprintf("%v#%d", path, i)
		}
		p, err := ParseString(name, src.Code)
		if err != nil {
			return nil, err
		}
		progs = append(progs, p)
	}
	return progs, nil
}
