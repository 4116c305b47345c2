// Copyright 2014 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package disasm implements an AVC instruction set disassembler.
package disasm

import (
	"fmt"

	"github.com/beevik/avc/isa"
)

var hex = "0123456789ABCDEF"

// Return a hexadecimal string representation of the byte slice.
func hexString(b []byte) string {
	hexbuf := make([]byte, len(b)*2)
	for i, n := range b {
		hexbuf[i*2] = hex[n>>4]
		hexbuf[i*2+1] = hex[n&0xf]
	}
	return string(hexbuf)
}

// Disassemble the machine code in memory 'm' at address 'addr'. Return a
// 'line' string representing the disassembled instruction and a 'next'
// address that starts the following line of machine code. Literal pushes
// include their inline operand, written as a hex literal the assembler
// accepts.
func Disassemble(m isa.Memory, addr uint16) (line string, next uint16) {
	inst := isa.Decode(m.LoadByte(addr))
	if !inst.Valid {
		return fmt.Sprintf("%s $%02X", inst.Name, inst.Opcode), addr + 1
	}

	if inst.Operand == 0 {
		return inst.Name, addr + 1
	}

	operand := make([]byte, inst.Operand)
	m.LoadBytes(addr+1, operand)
	line = fmt.Sprintf("%s #%s", inst.Name, hexString(operand))
	next = addr + 1 + uint16(inst.Operand)
	return
}

// Bytes returns the encoded bytes of the instruction at 'addr'.
func Bytes(m isa.Memory, addr uint16) []byte {
	inst := isa.Decode(m.LoadByte(addr))
	b := make([]byte, 1+int(inst.Operand))
	m.LoadBytes(addr, b)
	return b
}
