// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asm

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/beevik/avc/isa"
)

const header = "41564300"

func assemble(code string) ([]byte, error) {
	assembly, _, err := Assemble(code, "test", Config{})
	if err != nil {
		return []byte{}, err
	}
	return assembly.Code, nil
}

func checkASM(t *testing.T, asm string, expected string) {
	t.Helper()
	code, err := assemble(asm)
	if err != nil {
		t.Error(err)
		return
	}

	b := make([]byte, len(code)*2)
	for i, j := 0, 0; i < len(code); i, j = i+1, j+2 {
		v := code[i]
		b[j+0] = hex[v>>4]
		b[j+1] = hex[v&0x0f]
	}
	s := string(b)

	if s != expected {
		t.Error("code doesn't match expected")
		t.Errorf("got: %s\n", s)
		t.Errorf("exp: %s\n", expected)
	}
}

func checkASMError(t *testing.T, asm string, target error) {
	t.Helper()
	_, err := assemble(asm)
	if err == nil {
		t.Errorf("Expected error on %q, didn't get one\n", asm)
		return
	}
	if !errors.Is(err, target) {
		t.Errorf("Expected '%v', got '%v'\n", target, err)
	}
}

func TestEmpty(t *testing.T) {
	checkASM(t, "", header)
	checkASM(t, "  \n\t\n", header)
}

func TestCommentsOnly(t *testing.T) {
	asm := `
	\ a line comment
	\* a block comment
	   spanning lines *\
	\ one \ \ two \`
	checkASM(t, asm, header)
}

func TestInstructions(t *testing.T) {
	asm := `
	LIT #05 LIT #03 ADC
	POP2 JSRr DUPk`
	checkASM(t, asm, header+"8005800318234C86")
}

func TestCodeSpace(t *testing.T) {
	checkASMError(t, ".abspad(0000) LIT", ErrOpNotInCodeSpace)
	checkASMError(t, ".abspad(0200) #01", ErrOpNotInCodeSpace)
	checkASMError(t, ".abspad(02ff) .align(2)", ErrOpNotInCodeSpace)
	checkASM(t, ".abspad(0300) LIT", header+"80")
}

func TestAbsoluteLabel(t *testing.T) {
	asm := `
	LIT2 @end
	JMP2
	.label(end)
	NOP`
	checkASM(t, asm, header+"A003042A00")
}

func TestAbsoluteLabelDirective(t *testing.T) {
	asm := `
	.lbl(start)
	.absc(start) .abscall(start)`
	checkASM(t, asm, header+"03000300")
}

func TestRelativeLabel(t *testing.T) {
	asm := `
	.label(loop)
	LIT ^loop
	JMP`
	checkASM(t, asm, header+"80FE0A")

	asm = `
	LIT ^fwd JMP
	.relpad(10)
	.label(fwd)
	#ff`
	checkASM(t, asm, header+"80110A"+strings.Repeat("00", 16)+"FF")

	checkASM(t, ".relcall(here) .label(here)", header+"00")
}

func TestRelativeRange(t *testing.T) {
	checkASM(t, "^far .relpad(7f) .label(far)", header+"7F")
	checkASMError(t, "^far .relpad(80) .label(far)", ErrRelJumpTooLarge)

	checkASM(t, ".label(back) .relpad(7f) ^back", header+strings.Repeat("00", 0x7f)+"80")
	checkASMError(t, ".label(back) .relpad(80) ^back", ErrRelJumpTooLarge)
}

func TestZeroPageVariables(t *testing.T) {
	asm := `
	.abspad(0000)
	.label(counter) .relpad(2)
	.label(flag)    .relpad(1)
	.abspad(0300)
	LIT2 @flag LDA`
	checkASM(t, asm, header+"A0000214")
}

func TestDuplicateLabel(t *testing.T) {
	asm := `
	.label(x) #01
	.label(x) @x`
	checkASM(t, asm, header+"010301")
}

func TestAlign(t *testing.T) {
	checkASM(t, "#01 .align(4) #02", header+"0100000002")
	checkASM(t, "#01 #02 #03 #04 .align(4) #05", header+"0102030405")
	checkASMError(t, ".align(0)", ErrMalformedDirective)
}

func TestData(t *testing.T) {
	asm := `"hi 'A .s(a b) .x(ff) .hex(7) .x2(1234) .b(101) .d(200)`
	checkASM(t, asm, header+"686941612062FF07123405C8")
}

func TestStringBackslash(t *testing.T) {
	checkASM(t, `.s(a\b)`, header+"615C62")
	checkASM(t, `.s(C:\dir) NOP`, header+"433A5C64697200")
	checkASM(t, `.defmac(m, (), (#01 \ one)) %m`, header+"01")
}

func TestStringNonASCII(t *testing.T) {
	checkASMError(t, `"héllo`, ErrMultibyteChar)
	checkASMError(t, ".s(naïve)", ErrMultibyteChar)
	checkASM(t, `"~ .s(!)`, header+"7E21")
}

func TestHexLiteral(t *testing.T) {
	checkASM(t, "#1 #0a #abc #ABCD", header+"010A0ABCABCD")
	checkASMError(t, "#", ErrBadInteger)
	checkASMError(t, "#12345", ErrBadInteger)
	checkASMError(t, "#zz", ErrBadInteger)
}

func TestNumberDirectiveErrors(t *testing.T) {
	checkASMError(t, ".d(256)", ErrBadInteger)
	checkASMError(t, ".b(102)", ErrBadInteger)
	checkASMError(t, ".x(100)", ErrBadInteger)
	checkASMError(t, ".x2(10000)", ErrBadInteger)
	checkASMError(t, ".x(007)", ErrBadInteger)
	checkASMError(t, ".hex(0ff)", ErrBadInteger)
	checkASMError(t, ".x2(00012)", ErrBadInteger)
	checkASMError(t, ".b(000000001)", ErrBadInteger)
	checkASMError(t, ".d(0001)", ErrBadInteger)
	checkASM(t, ".x(7) .x2(12) .b(00000001) .d(001)", header+"0700120101")
	checkASMError(t, ".abspad(zz)", ErrBadInteger)
}

func TestCharLiteral(t *testing.T) {
	checkASM(t, "'a 'Z '!", header+"615A21")
	checkASMError(t, "'é", ErrMultibyteChar)
	checkASMError(t, "'ab", ErrBadChar)
	checkASMError(t, "'", ErrBadChar)
}

func TestUndefinedLabel(t *testing.T) {
	checkASMError(t, "@nowhere", ErrUndefinedLabel)
	checkASMError(t, "^nowhere", ErrUndefinedLabel)
	checkASMError(t, "@", ErrMalformedDirective)
}

func TestDirectiveErrors(t *testing.T) {
	checkASMError(t, ".foo(1)", ErrUnrecognisedDirective)
	checkASMError(t, ".label", ErrMalformedDirective)
	checkASMError(t, ".label()", ErrMalformedDirective)
	checkASMError(t, ".label(x)y", ErrMalformedDirective)
	checkASMError(t, ".defmac(m)", ErrMalformedDirective)
}

func TestInstructionErrors(t *testing.T) {
	checkASMError(t, "FOO", isa.ErrBadInstruction)
	checkASMError(t, "ADCz", isa.ErrBadMode)
	checkASMError(t, "LITk", isa.ErrBadMode)
	checkASMError(t, "NOPr", isa.ErrBadMode)
}

func TestTokenizerErrors(t *testing.T) {
	checkASMError(t, ".label(x", ErrUnbalancedBrackets)
	checkASMError(t, "LIT )", ErrUnbalancedBrackets)
	checkASMError(t, "LIT \\* open", ErrUnterminatedComment)
}

func TestMacro(t *testing.T) {
	asm := `
	.defmac(push, (v), (LIT #$v))
	%push(05) %push(06) ADC`
	checkASM(t, asm, header+"8005800618")

	asm = `
	.defmac(add, (a, b), (LIT #$a LIT #$b ADC))
	%add(01, 02)`
	checkASM(t, asm, header+"8001800218")

	asm = `
	.defmac(one, (), (#01))
	%one %one()`
	checkASM(t, asm, header+"0101")
}

func TestMacroNested(t *testing.T) {
	asm := `
	.defmac(two, (), (%one %one))
	.defmac(one, (), (#01))
	.defmac(call, (name), (LIT2 @$name JSR2))
	%two
	%call(sub)
	.label(sub)`
	checkASM(t, asm, header+"0101A003062C")
}

func TestMacroRedefine(t *testing.T) {
	asm := `
	.defmac(m, (), (#01))
	%m
	.defmac(m, (), (#02))
	%m`
	checkASM(t, asm, header+"0102")
}

func TestMacroErrors(t *testing.T) {
	checkASMError(t, "%nowhere", ErrUndefinedMacro)
	checkASMError(t, ".defmac(push, (v), (LIT #$v)) %push", ErrMacroArgCount)
	checkASMError(t, ".defmac(push, (v), (LIT #$v)) %push(1, 2)", ErrMacroArgCount)
	checkASMError(t, ".defmac(loop, (), (%loop)) %loop", ErrMacroRecursion)
	checkASMError(t, ".defmac(a, (), (%b)) .defmac(b, (), (%a)) %a", ErrMacroRecursion)
	checkASMError(t, ".defmac(m, (), (FOO)) %m", isa.ErrBadInstruction)
	checkASMError(t, "%m(1", ErrUnbalancedBrackets)
	checkASMError(t, "%", ErrMalformedMacro)
}

func TestMacroDepth(t *testing.T) {
	asm := `
	.defmac(c, (), (#01))
	.defmac(b, (), (%c))
	.defmac(a, (), (%b))
	%a`

	_, _, err := Assemble(asm, "test", Config{MaxMacroDepth: 2})
	if !errors.Is(err, ErrMacroDepth) {
		t.Errorf("Expected '%v', got '%v'", ErrMacroDepth, err)
	}

	checkASM(t, asm, header+"01")
}

func TestAddressRange(t *testing.T) {
	checkASMError(t, ".abspad(ffff) #01 #02", ErrAddressRange)
	checkASMError(t, ".abspad(ffff) .relpad(1) .label(x)", ErrAddressRange)
	checkASM(t, ".abspad(ffff) #01", header+strings.Repeat("00", 0xffff-0x300)+"01")
}

func TestErrorLine(t *testing.T) {
	cases := []struct {
		src  string
		line int
	}{
		{"NOP\nNOP\nFOO", 3},
		{"\n.defmac(bad, (), (FOO))\n\n%bad", 4},
		{"NOP\n.label(x\n", 2},
		{"NOP\n@nowhere", 2},
		{".defmac(m, (), (\n#01\n#zz))\nNOP %m", 4},
		{"NOP\n.abspad(ffff)\n.relpad(2)", 3},
		{"NOP\n\n.abspad(fff0) .relpad(20)", 3},
	}

	for _, c := range cases {
		_, _, err := Assemble(c.src, "test.avc", Config{})
		var e *Error
		if !errors.As(err, &e) {
			t.Errorf("%q: expected *Error, got %v", c.src, err)
			continue
		}
		if e.Line != c.line {
			t.Errorf("%q: expected line %d, got %d", c.src, c.line, e.Line)
		}
		if e.Filename != "test.avc" {
			t.Errorf("%q: expected filename 'test.avc', got '%s'", c.src, e.Filename)
		}
	}
}

func TestErrorMessage(t *testing.T) {
	_, _, err := Assemble("NOP\nFOO", "test.avc", Config{})
	exp := "Syntax error in 'test.avc' line 2: bad instruction 'FOO'"
	if err == nil || err.Error() != exp {
		t.Errorf("Expected '%s', got '%v'", exp, err)
	}
}

func TestSourceMap(t *testing.T) {
	asm := `.label(start)
LIT #01
"abc
.label(end) NOP`

	_, sm, err := Assemble(asm, "test", Config{})
	if err != nil {
		t.Fatal(err)
	}

	if sm.Origin != CodeStart || sm.Size != 6 {
		t.Errorf("bad map header: origin $%04X size %d", sm.Origin, sm.Size)
	}

	for addr, line := range map[int]int{0x2ff: -1, 0x300: 2, 0x301: 2, 0x302: 3, 0x304: 3, 0x305: 4} {
		if got := sm.Search(addr); got != line {
			t.Errorf("Search($%04X): expected line %d, got %d", addr, line, got)
		}
	}

	if addr, ok := sm.Find("end"); !ok || addr != 0x305 {
		t.Errorf("Find(end): got $%04X %v", addr, ok)
	}
	if len(sm.Labels) != 2 || sm.Labels[0].Label != "start" {
		t.Errorf("labels not sorted by address: %v", sm.Labels)
	}

	var buf bytes.Buffer
	if _, err := sm.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	var sm2 SourceMap
	if _, err := sm2.ReadFrom(&buf); err != nil {
		t.Fatal(err)
	}
	if sm2.CRC != sm.CRC || len(sm2.Lines) != len(sm.Lines) {
		t.Error("source map changed after reload")
	}
}

func TestAssemblyReadFrom(t *testing.T) {
	assembly, _, err := Assemble("LIT #2a", "test", Config{})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(assembly.Image(), []byte{0x80, 0x2a}) {
		t.Errorf("bad image: %s", byteString(assembly.Image()))
	}

	var buf bytes.Buffer
	if _, err := assembly.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}

	var loaded Assembly
	if _, err := loaded.ReadFrom(&buf); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(loaded.Code, assembly.Code) {
		t.Error("rom changed after reload")
	}

	_, err = loaded.ReadFrom(strings.NewReader("XYZ\x00\x80"))
	if !errors.Is(err, ErrBadHeader) {
		t.Errorf("Expected '%v', got '%v'", ErrBadHeader, err)
	}
}

func TestAssembleFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "prog.avc")
	rom := filepath.Join(dir, "prog.avcr")
	smap := filepath.Join(dir, "prog.map")

	if err := os.WriteFile(src, []byte("LIT #01 .label(x)"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := AssembleFile(src, rom, smap, Config{}); err != nil {
		t.Fatal(err)
	}

	b, err := os.ReadFile(rom)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(b, []byte{0x41, 0x56, 0x43, 0x00, 0x80, 0x01}) {
		t.Errorf("bad rom: %s", byteString(b))
	}
	if _, err := os.Stat(smap); err != nil {
		t.Error(err)
	}

	err = AssembleFile(filepath.Join(dir, "missing.avc"), rom, "", Config{})
	if err == nil {
		t.Error("Expected error for missing file")
	}
}
