// Copyright 2024 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package isa describes the instruction set of the AVC stack machine and
// encodes mnemonics into opcode bytes.
package isa

import (
	"errors"
	"fmt"
)

// Errors returned by the encoder.
var (
	ErrBadInstruction = errors.New("bad instruction")
	ErrBadMode        = errors.New("bad mode")
)

// Mode flags OR'd onto a base opcode.
const (
	ModeKeep  byte = 0x80 // k: keep operands on the stack
	ModeRet   byte = 0x40 // r: operate on the return stack
	ModeShort byte = 0x20 // 2: operate on 16-bit values
)

// Opcode data for a single base mnemonic.
type opcodeData struct {
	name   string // three-letter mnemonic
	opcode byte   // base opcode value
	modes  bool   // whether mode suffixes are accepted
	keep   bool   // whether an explicit k suffix is accepted
}

// Stack, jump, memory and arithmetic operations. These accept all mode
// suffixes.
var data = []opcodeData{
	// stack
	{"POP", 0x03, true, true},
	{"SWP", 0x04, true, true},
	{"ROT", 0x05, true, true},
	{"DUP", 0x06, true, true},
	{"OVR", 0x07, true, true},

	// logic/jumps
	{"EQU", 0x08, true, true},
	{"GTH", 0x09, true, true},
	{"JMP", 0x0a, true, true},
	{"JNZ", 0x0b, true, true},
	{"JSR", 0x0c, true, true},
	{"STH", 0x0d, true, true},

	// memory
	{"LDZ", 0x10, true, true},
	{"STZ", 0x11, true, true},
	{"LDR", 0x12, true, true},
	{"STR", 0x13, true, true},
	{"LDA", 0x14, true, true},
	{"STA", 0x15, true, true},
	{"PIC", 0x16, true, true},
	{"PUT", 0x17, true, true},

	// arithmetic
	{"ADC", 0x18, true, true},
	{"SBC", 0x19, true, true},
	{"MUL", 0x1a, true, true},
	{"DVM", 0x1b, true, true},
	{"AND", 0x1c, true, true},
	{"IOR", 0x1d, true, true},
	{"XOR", 0x1e, true, true},
	{"SFT", 0x1f, true, true},
}

// Special operations. LIT already implies the keep flag; the others take
// no mode suffix at all.
var specialData = []opcodeData{
	{"LIT", 0x80, true, false},
	{"SEC", 0x20, false, false},
	{"CLC", 0x40, false, false},
	{"EXT", 0x60, false, false},
	{"RTI", 0x83, false, false},
	{"NOP", 0x00, false, false},
}

var byName = make(map[string]*opcodeData)

func init() {
	for i := range data {
		byName[data[i].name] = &data[i]
	}
	for i := range specialData {
		byName[specialData[i].name] = &specialData[i]
	}
}

// Encode converts a mnemonic with optional mode suffix characters (for
// example "ADC2k") into its opcode byte.
func Encode(op string) (byte, error) {
	if len(op) < 3 {
		return 0, fmt.Errorf("%w '%s'", ErrBadInstruction, op)
	}

	d, ok := byName[op[:3]]
	if !ok {
		return 0, fmt.Errorf("%w '%s'", ErrBadInstruction, op)
	}

	b := d.opcode
	for i := 3; i < len(op); i++ {
		c := op[i]
		if !d.modes {
			return 0, fmt.Errorf("%w '%c' in '%s': %s takes no modes", ErrBadMode, c, op, d.name)
		}
		switch c {
		case 'k':
			if !d.keep {
				return 0, fmt.Errorf("%w '%c' in '%s': keep is implied", ErrBadMode, c, op)
			}
			b |= ModeKeep
		case 'r':
			b |= ModeRet
		case '2':
			b |= ModeShort
		default:
			return 0, fmt.Errorf("%w '%c' in '%s'", ErrBadMode, c, op)
		}
	}
	return b, nil
}

// An Instruction describes the decoded form of a single opcode byte.
type Instruction struct {
	Name    string // full mnemonic including mode suffixes, e.g. "ADC2k"
	Base    string // three-letter base mnemonic
	Opcode  byte   // opcode byte
	Operand byte   // number of inline operand bytes following the opcode
	Valid   bool   // whether the byte corresponds to a defined instruction
}

const unusedName = "???"

var instructions [256]Instruction

func init() {
	for i := range instructions {
		instructions[i] = Instruction{Name: unusedName, Base: unusedName, Opcode: byte(i)}
	}

	// Special operations take priority, so RTI wins over POPk.
	for _, d := range specialData {
		switch {
		case d.name == "LIT":
			for _, m := range modeCombos(false) {
				b := d.opcode | m
				inst := newInstruction(d, b)
				inst.Operand = 1
				if m&ModeShort != 0 {
					inst.Operand = 2
				}
				instructions[b] = inst
			}
		default:
			instructions[d.opcode] = newInstruction(d, d.opcode)
		}
	}

	for _, d := range data {
		for _, m := range modeCombos(true) {
			b := d.opcode | m
			if instructions[b].Valid {
				continue
			}
			instructions[b] = newInstruction(d, b)
		}
	}
}

func newInstruction(d opcodeData, b byte) Instruction {
	name := d.name
	if d.modes {
		name += suffix(b, d.keep)
	}
	return Instruction{
		Name:   name,
		Base:   d.name,
		Opcode: b,
		Valid:  true,
	}
}

func modeCombos(keep bool) []byte {
	combos := []byte{0, ModeShort, ModeRet, ModeShort | ModeRet}
	if keep {
		for _, m := range combos[:4] {
			combos = append(combos, m|ModeKeep)
		}
	}
	return combos
}

// Render the mode suffix of an opcode byte in canonical "2kr" order.
func suffix(b byte, keep bool) string {
	s := ""
	if b&ModeShort != 0 {
		s += "2"
	}
	if keep && b&ModeKeep != 0 {
		s += "k"
	}
	if b&ModeRet != 0 {
		s += "r"
	}
	return s
}

// Decode returns the instruction description for an opcode byte. Bytes
// that do not correspond to any instruction return an Instruction whose
// Valid field is false.
func Decode(b byte) *Instruction {
	return &instructions[b]
}
