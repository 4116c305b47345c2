// Copyright 2024 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asm

import "fmt"

// RefKind selects how a label reference is encoded.
type RefKind byte

// Label reference kinds.
const (
	Absolute RefKind = iota // 2-byte big-endian address
	Relative                // 1-byte signed offset from the reference
)

// A word is one unit of the intermediate program representation. Every
// word is one of the concrete types below.
type word interface {
	String() string
}

// A byteWord emits a single literal byte.
type byteWord struct {
	value byte
	line  int
}

// A labelWord declares a label at the current address.
type labelWord struct {
	name string
	line int
}

// A labelRef emits the address of a label, or the offset to it.
type labelRef struct {
	name string
	kind RefKind
	line int
}

// An absPad moves the address counter to an absolute address.
type absPad struct {
	addr int
	line int
}

// A relPad advances the address counter without emitting bytes.
type relPad struct {
	count int
	line  int
}

// An alignment advances the address counter to the next multiple.
type alignment struct {
	multiple int
	line     int
}

func (w *byteWord) String() string { return fmt.Sprintf("BYTE $%02X", w.value) }
func (w *labelWord) String() string { return fmt.Sprintf("LABEL %s", w.name) }
func (w *absPad) String() string    { return fmt.Sprintf("ABSPAD $%04X", w.addr) }
func (w *relPad) String() string    { return fmt.Sprintf("RELPAD $%04X", w.count) }
func (w *alignment) String() string { return fmt.Sprintf("ALIGN $%04X", w.multiple) }

func (w *labelRef) String() string {
	if w.kind == Relative {
		return fmt.Sprintf("REL %s", w.name)
	}
	return fmt.Sprintf("ABS %s", w.name)
}

// Return the address that follows the word when it is placed at addr.
// Both the label resolution pass and the emission pass advance their
// counters through this function.
func nextAddress(w word, addr int) int {
	switch ww := w.(type) {
	case *byteWord:
		return addr + 1
	case *labelWord:
		return addr
	case *labelRef:
		if ww.kind == Relative {
			return addr + 1
		}
		return addr + 2
	case *absPad:
		return ww.addr
	case *relPad:
		return addr + ww.count
	case *alignment:
		if r := addr % ww.multiple; r != 0 {
			return addr + ww.multiple - r
		}
		return addr
	default:
		panic("unknown word")
	}
}

// Report whether a word must lie within the code region.
func placed(w word) bool {
	switch w.(type) {
	case *labelWord, *absPad, *relPad:
		return false
	default:
		return true
	}
}

// Return the source line a word came from, or -1 if it has none.
func wordLine(w word) int {
	switch ww := w.(type) {
	case *byteWord:
		return ww.line
	case *labelWord:
		return ww.line
	case *labelRef:
		return ww.line
	case *absPad:
		return ww.line
	case *relPad:
		return ww.line
	case *alignment:
		return ww.line
	default:
		return -1
	}
}
