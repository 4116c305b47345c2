// Copyright 2024 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asm

import (
	"errors"
	"fmt"
)

// Errors reported by the assembler. Every error returned from Assemble
// wraps one of these (or one of the isa encoder errors) and can be tested
// with errors.Is.
var (
	ErrUnrecognisedDirective = errors.New("unrecognised directive")
	ErrMalformedDirective    = errors.New("malformed directive")
	ErrBadInteger            = errors.New("bad integer literal")
	ErrBadChar               = errors.New("bad character literal")
	ErrMultibyteChar         = errors.New("multibyte character literal")
	ErrUndefinedLabel        = errors.New("undefined label")
	ErrUndefinedMacro        = errors.New("undefined macro")
	ErrMalformedMacro        = errors.New("malformed macro call")
	ErrMacroArgCount         = errors.New("wrong number of macro arguments")
	ErrMacroRecursion        = errors.New("recursive macro expansion")
	ErrMacroDepth            = errors.New("macro expansion too deep")
	ErrOpNotInCodeSpace      = errors.New("op not in code space")
	ErrRelJumpTooLarge       = errors.New("relative jump too large")
	ErrAddressRange          = errors.New("address out of range")
	ErrUnbalancedBrackets    = errors.New("unbalanced brackets")
	ErrUnterminatedComment   = errors.New("unterminated block comment")
	ErrBadHeader             = errors.New("missing rom header")
)

// An Error describes a failure during assembly, along with the source
// location that caused it.
type Error struct {
	Filename string // name of the assembled file, if known
	Line     int    // 1-based source line, or 0 if unknown
	Text     string // offending source text
	Err      error  // underlying error
}

func (e *Error) Error() string {
	msg := e.Err.Error()
	if e.Text != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Text)
	}

	switch {
	case e.Filename != "" && e.Line > 0:
		return fmt.Sprintf("Syntax error in '%s' line %d: %s", e.Filename, e.Line, msg)
	case e.Line > 0:
		return fmt.Sprintf("Syntax error on line %d: %s", e.Line, msg)
	case e.Filename != "":
		return fmt.Sprintf("Error in '%s': %s", e.Filename, msg)
	default:
		return msg
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}
