// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package asm implements a macro assembler for the AVC stack machine.
package asm

import (
	"bytes"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/beevik/avc/isa"
	"github.com/sirupsen/logrus"
)

const (
	romSignature = "AVC\x00"

	// HeaderSize is the length of the signature that precedes the code
	// in a ROM image.
	HeaderSize = len(romSignature)

	// CodeStart is the lowest address at which code and data may be
	// placed. Addresses below it are reserved for zero-page variables.
	CodeStart = 0x0300

	// DefaultMaxMacroDepth limits how deeply macro expansions may nest
	// when Config.MaxMacroDepth is zero.
	DefaultMaxMacroDepth = 64

	addrLimit = 0x10000
)

type directiveData struct {
	fn    func(a *assembler, tok Token, args string, param any) error
	param any
}

// A numberFormat describes how a numeric directive parses its argument
// and how many bytes it emits.
type numberFormat struct {
	base   int
	bytes  int
	digits int // maximum digit count
}

var directives = map[string]directiveData{
	"label":   {fn: (*assembler).parseLabel},
	"lbl":     {fn: (*assembler).parseLabel},
	"absc":    {fn: (*assembler).parseLabelRef, param: Absolute},
	"abscall": {fn: (*assembler).parseLabelRef, param: Absolute},
	"relcall": {fn: (*assembler).parseLabelRef, param: Relative},
	"hex":     {fn: (*assembler).parseNumber, param: numberFormat{16, 1, 2}},
	"x":       {fn: (*assembler).parseNumber, param: numberFormat{16, 1, 2}},
	"x2":      {fn: (*assembler).parseNumber, param: numberFormat{16, 2, 4}},
	"b":       {fn: (*assembler).parseNumber, param: numberFormat{2, 1, 8}},
	"d":       {fn: (*assembler).parseNumber, param: numberFormat{10, 1, 3}},
	"s":       {fn: (*assembler).parseString},
	"abspad":  {fn: (*assembler).parseAbsPad},
	"relpad":  {fn: (*assembler).parseRelPad},
	"align":   {fn: (*assembler).parseAlign},
	"defmac":  {fn: (*assembler).parseDefmac},
}

// Config holds optional assembler settings.
type Config struct {
	Log           logrus.FieldLogger // debug trace, nil for the standard logger
	MaxMacroDepth int                // nested expansion limit, 0 for default
}

// The assembler is a state object used during the assembly of
// machine code from assembly code.
type assembler struct {
	src         string             // complete source text
	words       []word             // intermediate program representation
	labels      map[string]int     // label -> address
	macros      *macroTable        // defined macros
	expanding   []string           // names of macros being expanded
	maxDepth    int                // macro expansion depth limit
	code        []byte             // generated rom image
	sourceLines []SourceLine       // source code line mappings
	logger      logrus.FieldLogger // debug trace
}

// Assembly contains an assembled ROM image.
type Assembly struct {
	Code []byte // signature followed by the code image
}

// Image returns the code portion of the ROM, which is loaded at CodeStart.
func (a *Assembly) Image() []byte {
	return a.Code[HeaderSize:]
}

// ReadFrom reads a ROM image from a binary input source. The image must
// begin with the AVC signature.
func (a *Assembly) ReadFrom(r io.Reader) (n int64, err error) {
	b, err := io.ReadAll(r)
	n = int64(len(b))
	if err != nil {
		return n, err
	}
	if !bytes.HasPrefix(b, []byte(romSignature)) {
		return n, ErrBadHeader
	}
	if len(b)-HeaderSize > addrLimit-CodeStart {
		return n, fmt.Errorf("%w: rom image exceeds %d bytes", ErrAddressRange, addrLimit-CodeStart)
	}
	a.Code = b
	return n, nil
}

// WriteTo saves the ROM image into an output writer.
func (a *Assembly) WriteTo(w io.Writer) (n int64, err error) {
	nn, err := w.Write(a.Code)
	return int64(nn), err
}

// AssembleFile reads a file containing AVC assembly code, assembles it,
// and writes the ROM image to romPath. If mapPath is not empty, the
// source map is written there as well.
func AssembleFile(path, romPath, mapPath string, config Config) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	assembly, sourceMap, err := Assemble(string(src), path, config)
	if err != nil {
		return err
	}

	if err := writeFile(romPath, assembly); err != nil {
		return err
	}
	if mapPath != "" {
		return writeFile(mapPath, sourceMap)
	}
	return nil
}

func writeFile(path string, wt io.WriterTo) error {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = wt.WriteTo(file)
	return err
}

// Assemble assembles AVC source text into a ROM image. The filename is
// used only in error messages and may be empty. Assembly stops at the
// first error, which is returned as an *Error.
func Assemble(src, filename string, config Config) (*Assembly, *SourceMap, error) {
	a := &assembler{
		src:      src,
		labels:   make(map[string]int),
		macros:   newMacroTable(),
		maxDepth: config.MaxMacroDepth,
		logger:   config.Log,
	}
	if a.maxDepth <= 0 {
		a.maxDepth = DefaultMaxMacroDepth
	}
	if a.logger == nil {
		a.logger = logrus.StandardLogger()
	}

	// Assembly consists of the following steps
	steps := []func(a *assembler) error{
		(*assembler).parse,         // Convert tokens into words
		(*assembler).resolveLabels, // Assign addresses to labels
		(*assembler).generateCode,  // Emit the rom image
	}

	for _, step := range steps {
		if err := step(a); err != nil {
			var e *Error
			if !errors.As(err, &e) {
				e = &Error{Err: err}
			}
			if e.Filename == "" {
				e.Filename = filename
			}
			return nil, nil, e
		}
	}

	assembly := &Assembly{Code: a.code}

	sourceMap := &SourceMap{
		Origin: CodeStart,
		Size:   uint32(len(a.code) - HeaderSize),
		CRC:    crc32.ChecksumIEEE(a.code[HeaderSize:]),
		Labels: sortLabels(a.labels),
		Lines:  sortLines(a.sourceLines),
	}

	return assembly, sourceMap, nil
}

// Tokenize the source and convert each token into words. Code is placed
// at CodeStart unless the program moves the address counter itself.
func (a *assembler) parse() error {
	a.logSection("Parsing assembly code")
	a.words = append(a.words, &absPad{addr: CodeStart, line: -1})
	return a.parseSource(a.src, -1)
}

// Tokenize a block of source text. Text produced by a macro expansion is
// attributed to the line of the invoking token, given by line; top-level
// source passes a negative line.
func (a *assembler) parseSource(src string, line int) error {
	t := NewTokenizer(src)
	for {
		tok, err := t.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			var e *Error
			if line >= 0 && errors.As(err, &e) {
				e.Line = line + 1
			}
			return err
		}
		if line >= 0 {
			tok.Line = line
		}

		if err := a.parseToken(tok); err != nil {
			var e *Error
			if errors.As(err, &e) {
				return err
			}
			return &Error{Line: tok.Line + 1, Err: err}
		}
	}
}

// Convert a single token into words according to its first character.
func (a *assembler) parseToken(tok Token) error {
	text := tok.Text
	switch text[0] {
	case '.':
		return a.parseDirective(tok)
	case '#':
		return a.parseHexLiteral(tok)
	case '"':
		a.logLine(tok, "STRING")
		return a.emitText(text[1:], tok.Line)
	case '\'':
		return a.parseChar(tok)
	case '@':
		return a.addLabelRef(tok, text[1:], Absolute)
	case '^':
		return a.addLabelRef(tok, text[1:], Relative)
	case '%':
		return a.parseMacroCall(tok)
	default:
		op, err := isa.Encode(text)
		if err != nil {
			return err
		}
		a.logLine(tok, "OP $%02X", op)
		a.words = append(a.words, &byteWord{value: op, line: tok.Line})
		return nil
	}
}

// Emit one byte per character of s. Characters outside ASCII have no
// single-byte encoding.
func (a *assembler) emitText(s string, line int) error {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			r, _ := utf8.DecodeRuneInString(s[i:])
			return fmt.Errorf("%w '%c' in '%s'", ErrMultibyteChar, r, excerpt(s))
		}
	}
	a.emitBytes([]byte(s), line)
	return nil
}

func (a *assembler) emitBytes(b []byte, line int) {
	for _, v := range b {
		a.words = append(a.words, &byteWord{value: v, line: line})
	}
}

// Parse a directive of the form .name(args).
func (a *assembler) parseDirective(tok Token) error {
	body := tok.Text[1:]
	i := strings.IndexByte(body, '(')
	if i < 0 || !strings.HasSuffix(body, ")") {
		return fmt.Errorf("%w '%s'", ErrMalformedDirective, excerpt(tok.Text))
	}

	name, args := body[:i], body[i+1:len(body)-1]
	d, ok := directives[name]
	if !ok {
		return fmt.Errorf("%w '%s'", ErrUnrecognisedDirective, name)
	}

	a.logLine(tok, ".%s", strings.ToUpper(name))
	return d.fn(a, tok, args, d.param)
}

func (a *assembler) parseLabel(tok Token, args string, param any) error {
	name := strings.TrimSpace(args)
	if name == "" {
		return fmt.Errorf("%w: label has no name", ErrMalformedDirective)
	}
	a.words = append(a.words, &labelWord{name: name, line: tok.Line})
	return nil
}

func (a *assembler) parseLabelRef(tok Token, args string, param any) error {
	return a.addLabelRef(tok, strings.TrimSpace(args), param.(RefKind))
}

func (a *assembler) addLabelRef(tok Token, name string, kind RefKind) error {
	if name == "" {
		return fmt.Errorf("%w: missing label name in '%s'", ErrMalformedDirective, excerpt(tok.Text))
	}
	a.words = append(a.words, &labelRef{name: name, kind: kind, line: tok.Line})
	return nil
}

func (a *assembler) parseNumber(tok Token, args string, param any) error {
	f := param.(numberFormat)
	s := strings.TrimSpace(args)
	v, err := strconv.ParseUint(s, f.base, f.bytes*8)
	if err != nil || len(s) > f.digits {
		return fmt.Errorf("%w '%s'", ErrBadInteger, s)
	}
	if f.bytes == 2 {
		a.emitBytes([]byte{byte(v >> 8), byte(v)}, tok.Line)
	} else {
		a.emitBytes([]byte{byte(v)}, tok.Line)
	}
	return nil
}

func (a *assembler) parseString(tok Token, args string, param any) error {
	return a.emitText(args, tok.Line)
}

func (a *assembler) parseAbsPad(tok Token, args string, param any) error {
	v, err := parseHex(args)
	if err != nil {
		return err
	}
	a.words = append(a.words, &absPad{addr: v, line: tok.Line})
	return nil
}

func (a *assembler) parseRelPad(tok Token, args string, param any) error {
	v, err := parseHex(args)
	if err != nil {
		return err
	}
	a.words = append(a.words, &relPad{count: v, line: tok.Line})
	return nil
}

func (a *assembler) parseAlign(tok Token, args string, param any) error {
	v, err := parseHex(args)
	if err != nil {
		return err
	}
	if v == 0 {
		return fmt.Errorf("%w: alignment must be nonzero", ErrMalformedDirective)
	}
	a.words = append(a.words, &alignment{multiple: v, line: tok.Line})
	return nil
}

func (a *assembler) parseDefmac(tok Token, args string, param any) error {
	name, params, body, ok := parseMacroDef(args)
	if !ok {
		return fmt.Errorf("%w: defmac expects name, (params), (body)", ErrMalformedDirective)
	}
	m := a.macros.define(name, params, body)
	a.log("MACRO %s %v", m.Name, m.Params)
	return nil
}

// Parse a literal of the form #hh (one byte) or #hhhh (two bytes,
// high byte first).
func (a *assembler) parseHexLiteral(tok Token) error {
	digits := tok.Text[1:]
	if len(digits) < 1 || len(digits) > 4 {
		return fmt.Errorf("%w '%s'", ErrBadInteger, tok.Text)
	}
	v, err := strconv.ParseUint(digits, 16, 16)
	if err != nil {
		return fmt.Errorf("%w '%s'", ErrBadInteger, tok.Text)
	}
	if len(digits) > 2 {
		a.emitBytes([]byte{byte(v >> 8), byte(v)}, tok.Line)
	} else {
		a.emitBytes([]byte{byte(v)}, tok.Line)
	}
	return nil
}

// Parse a character literal of the form 'c.
func (a *assembler) parseChar(tok Token) error {
	s := tok.Text[1:]
	r, size := utf8.DecodeRuneInString(s)
	switch {
	case size == 0:
		return fmt.Errorf("%w: empty", ErrBadChar)
	case r >= utf8.RuneSelf:
		return fmt.Errorf("%w '%s'", ErrMultibyteChar, s)
	case size != len(s):
		return fmt.Errorf("%w '%s'", ErrBadChar, s)
	}
	a.words = append(a.words, &byteWord{value: byte(r), line: tok.Line})
	return nil
}

// Expand a macro invocation of the form %name or %name(arg, ...) and
// assemble the resulting text in place.
func (a *assembler) parseMacroCall(tok Token) error {
	name, argText := tok.Text[1:], ""
	hasArgs := false
	if i := strings.IndexByte(name, '('); i >= 0 {
		inner, ok := unwrapParens(name[i:])
		if !ok {
			return fmt.Errorf("%w '%s'", ErrMalformedMacro, excerpt(tok.Text))
		}
		name, argText, hasArgs = name[:i], inner, true
	}
	if name == "" {
		return fmt.Errorf("%w: missing macro name", ErrMalformedMacro)
	}

	var args []string
	if hasArgs && strings.TrimSpace(argText) != "" {
		args = splitTopLevel(argText, ',')
	}
	text, err := a.macros.expand(name, args)
	if err != nil {
		return err
	}

	for _, n := range a.expanding {
		if n == name {
			return fmt.Errorf("%w: %s -> %s", ErrMacroRecursion, strings.Join(a.expanding, " -> "), name)
		}
	}
	if len(a.expanding) >= a.maxDepth {
		return fmt.Errorf("%w: more than %d levels expanding '%s'", ErrMacroDepth, a.maxDepth, name)
	}

	a.logLine(tok, "EXPAND %s", text)

	a.expanding = append(a.expanding, name)
	defer func() { a.expanding = a.expanding[:len(a.expanding)-1] }()
	return a.parseSource(text, tok.Line)
}

// Walk the words with an address counter, recording the address of each
// label. Later definitions of a label replace earlier ones.
func (a *assembler) resolveLabels() error {
	a.logSection("Resolving labels")
	addr := 0
	for _, w := range a.words {
		if l, ok := w.(*labelWord); ok {
			if addr >= addrLimit {
				return a.wordError(w, fmt.Errorf("%w: label '%s' at $%X", ErrAddressRange, l.name, addr))
			}
			a.labels[l.name] = addr
			a.log("%-15s Addr:$%04X", l.name, addr)
		}

		if placed(w) && addr < CodeStart {
			return a.wordError(w, fmt.Errorf("%w: %s at $%04X", ErrOpNotInCodeSpace, w, addr))
		}

		addr = nextAddress(w, addr)
		if addr > addrLimit {
			return a.wordError(w, fmt.Errorf("%w: %s ends at $%X", ErrAddressRange, w, addr))
		}
	}
	return nil
}

// Generate the rom image. Each byte is written at the offset of its
// address from CodeStart, following the signature.
func (a *assembler) generateCode() error {
	a.logSection("Generating code")
	a.code = append(a.code[:0], romSignature...)

	addr := 0
	for _, w := range a.words {
		index := HeaderSize + addr - CodeStart

		switch ww := w.(type) {
		case *byteWord:
			a.code = setByte(a.code, index, ww.value)
			a.addSourceLine(addr, ww.line)
			a.logBytes(addr, a.code[index:index+1])

		case *labelRef:
			target, ok := a.labels[ww.name]
			if !ok {
				return a.wordError(w, fmt.Errorf("%w '%s'", ErrUndefinedLabel, ww.name))
			}
			switch ww.kind {
			case Absolute:
				a.code = setByte(a.code, index, byte(target>>8))
				a.code = setByte(a.code, index+1, byte(target))
				a.logBytes(addr, a.code[index:index+2])
			case Relative:
				offset, ok := relOffset(target, addr)
				if !ok {
					return a.wordError(w, fmt.Errorf("%w: '%s' is %d bytes away", ErrRelJumpTooLarge, ww.name, target-addr-1))
				}
				a.code = setByte(a.code, index, offset)
				a.logBytes(addr, a.code[index:index+1])
			}
			a.addSourceLine(addr, ww.line)
		}

		addr = nextAddress(w, addr)
	}
	return nil
}

// Record the source line of an emitted address. Consecutive addresses
// from the same line share one entry.
func (a *assembler) addSourceLine(addr, line int) {
	if line < 0 {
		return
	}
	if n := len(a.sourceLines); n > 0 && a.sourceLines[n-1].Line == line+1 && a.sourceLines[n-1].Address < addr {
		return
	}
	a.sourceLines = append(a.sourceLines, SourceLine{Address: addr, Line: line + 1})
}

func (a *assembler) wordError(w word, err error) error {
	return &Error{Line: wordLine(w) + 1, Err: err}
}

// Parse a hexadecimal directive argument as a 16-bit value.
func parseHex(s string) (int, error) {
	s = strings.TrimSpace(s)
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("%w '%s'", ErrBadInteger, s)
	}
	return int(v), nil
}

// Log a formatted debug message.
func (a *assembler) log(format string, args ...any) {
	a.logger.Debugf(format, args...)
}

// Log a message along with the token that produced it.
func (a *assembler) logLine(tok Token, format string, args ...any) {
	detail := fmt.Sprintf(format, args...)
	a.log("%-4d | %-20s | %s", tok.Line+1, excerpt(tok.Text), detail)
}

// Log a series of bytes with starting address.
func (a *assembler) logBytes(addr int, b []byte) {
	a.log("%04X-   %s", addr, byteString(b))
}

// Log a section header.
func (a *assembler) logSection(name string) {
	a.log("-- %s --", name)
}
