// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asm

import "strings"

var hex = "0123456789ABCDEF"

// Split a list at separators that are not nested inside parentheses.
// Each element is trimmed of surrounding whitespace.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		case sep:
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	return append(parts, strings.TrimSpace(s[start:]))
}

// Return the text inside a pair of enclosing parentheses. The second
// return value is false if s is not fully parenthesized.
func unwrapParens(s string) (string, bool) {
	if len(s) < 2 || s[0] != '(' || s[len(s)-1] != ')' {
		return "", false
	}
	depth := 0
	for i := 0; i < len(s)-1; i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return "", false
			}
		}
	}
	return s[1 : len(s)-1], true
}

// Set the byte at index i of the buffer, growing it with zeroes as needed.
func setByte(b []byte, i int, v byte) []byte {
	if i >= len(b) {
		b = append(b, make([]byte, i+1-len(b))...)
	}
	b[i] = v
	return b
}

// Compute the relative offset of two addresses as a two's-complement
// byte value. If the offset can't fit into a signed byte, return false.
func relOffset(target, addr int) (byte, bool) {
	diff := target - addr - 1
	if diff < -128 || diff > 127 {
		return 0, false
	}
	return byte(int8(diff)), true
}

// Return a hexadecimal string representation of a byte slice.
func byteString(b []byte) string {
	if len(b) < 1 {
		return ""
	}

	s := make([]byte, len(b)*3-1)
	i, j := 0, 0
	for n := len(b) - 1; i < n; i, j = i+1, j+3 {
		s[j+0] = hex[(b[i] >> 4)]
		s[j+1] = hex[(b[i] & 0x0f)]
		s[j+2] = ' '
	}
	s[j+0] = hex[(b[i] >> 4)]
	s[j+1] = hex[(b[i] & 0x0f)]
	return string(s)
}
