// Copyright 2024 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asm

import (
	"fmt"
	"io"
)

// A Token is a whitespace-delimited run of source text. Its Text is a
// substring of the tokenized source, and Line is the 0-based line on which
// its first character appears.
type Token struct {
	Text string
	Line int
}

func (t Token) String() string {
	return t.Text
}

type commentState byte

const (
	noComment commentState = iota
	lineComment
	blockComment
)

// A Tokenizer splits source text into tokens. Whitespace inside a
// parenthesized group does not end a token, so directive and macro
// argument lists may contain spaces and span lines.
//
// Two comment forms are recognized. A backslash starts a line comment that
// runs to the end of the line or to the next backslash on the same line.
// The sequence \* starts a block comment that runs until *\ and may span
// multiple lines.
// A backslash inside a parenthesized group is ordinary token text.
type Tokenizer struct {
	src  string
	pos  int
	line int
	err  error
}

// NewTokenizer creates a tokenizer over the source text.
func NewTokenizer(src string) *Tokenizer {
	return &Tokenizer{src: src}
}

// Next returns the next token in the source. It returns io.EOF once the
// source is exhausted. After a tokenizing error, Next keeps returning the
// same error.
func (t *Tokenizer) Next() (Token, error) {
	if t.err != nil {
		return Token{}, t.err
	}

	var (
		comment   commentState
		inToken   bool
		start     int
		startLine int
		depth     int
	)

	for i := t.pos; i < len(t.src); i++ {
		c := t.src[i]

		switch comment {
		case lineComment:
			if c == '\\' || c == '\n' {
				comment = noComment
			}
			if c == '\n' {
				t.line++
			}
			continue

		case blockComment:
			if c == '*' && i+1 < len(t.src) && t.src[i+1] == '\\' {
				comment = noComment
				i++
			}
			if c == '\n' {
				t.line++
			}
			continue
		}

		if inToken && depth == 0 && (whitespace(c) || c == '\\') {
			t.pos = i
			return Token{Text: t.src[start:i], Line: startLine}, nil
		}

		switch {
		case c == '\\' && !inToken:
			if i+1 < len(t.src) && t.src[i+1] == '*' {
				comment = blockComment
				i++
			} else {
				comment = lineComment
			}

		case c == '(':
			depth++

		case c == ')':
			depth--
			if depth < 0 {
				return t.fail(ErrUnbalancedBrackets, t.line, "unexpected ')'")
			}
		}

		if !inToken && comment == noComment && !whitespace(c) {
			inToken, start, startLine = true, i, t.line
		}

		if c == '\n' {
			t.line++
		}
	}

	t.pos = len(t.src)

	switch {
	case comment == blockComment:
		return t.fail(ErrUnterminatedComment, t.line, "")
	case depth > 0:
		return t.fail(ErrUnbalancedBrackets, startLine, fmt.Sprintf("unclosed '(' in '%s'", excerpt(t.src[start:])))
	case inToken:
		return Token{Text: t.src[start:], Line: startLine}, nil
	default:
		return Token{}, io.EOF
	}
}

func (t *Tokenizer) fail(kind error, line int, detail string) (Token, error) {
	err := &Error{Line: line + 1, Err: kind}
	if detail != "" {
		err.Text = detail
	}
	t.err = err
	return Token{}, err
}

func whitespace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}

// Shorten text quoted in an error message to its first line.
func excerpt(s string) string {
	const limit = 32
	for i := 0; i < len(s) && i < limit; i++ {
		if s[i] == '\n' {
			return s[:i] + "..."
		}
	}
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
