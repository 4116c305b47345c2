// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package host

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runScript(t *testing.T, h *Host, lines ...string) string {
	t.Helper()
	var out strings.Builder
	h.RunCommands(strings.NewReader(strings.Join(lines, "\n")), &out, false)
	return out.String()
}

func checkOutput(t *testing.T, out string, expected ...string) {
	t.Helper()
	for _, e := range expected {
		if !strings.Contains(out, e) {
			t.Errorf("output missing %q:\n%s", e, out)
		}
	}
}

func writeSource(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prog.avc")
	if err := os.WriteFile(path, []byte(src), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestAssembleAndLoad(t *testing.T) {
	path := writeSource(t, "LIT2 @end JMP2\n.label(end) NOP\n")
	rom := strings.TrimSuffix(path, ".avc") + ".avcr"

	h := New()
	out := runScript(t, h,
		"assemble "+path,
		"load "+rom,
		"disassemble $0300 3",
		"memory dump $0300 5",
		"labels",
	)

	checkOutput(t, out,
		"Assembled 'prog.avc' to produce 'prog.avcr' and 'prog.map'.",
		"Loaded 'prog.avcr' to $0300..$0304",
		"Loaded 'prog.map' source map",
		"0300-   A0 03 04    LIT2 #0304",
		"0303-   2A          JMP2",
		"0304-   00          NOP             ; end",
		"0300- A0 03 04 2A 00",
		"end              $0304",
	)
}

func TestDisassembleContinues(t *testing.T) {
	path := writeSource(t, "#01 NOP SEC CLC")
	rom := strings.TrimSuffix(path, ".avc") + ".avcr"

	h := New()
	out := runScript(t, h,
		"assemble "+path,
		"load "+rom,
		"disassemble start 1",
		"disassemble $0300 1",
		"",
		"disassemble",
	)

	checkOutput(t, out, "invalid number 'start'", "0300-   01", "0301-   00", "0302-   20")
	if h.settings.NextDisasmAddr != 0x0302+10 {
		t.Errorf("unexpected next disassembly address $%04X", h.settings.NextDisasmAddr)
	}
}

func TestAssembleError(t *testing.T) {
	path := writeSource(t, "NOP\nFOO\n")

	h := New()
	out := runScript(t, h, "assemble "+path)
	checkOutput(t, out,
		"line 2: bad instruction 'FOO'",
		"Failed to assemble 'prog.avc'.",
	)
}

func TestVerboseAssemble(t *testing.T) {
	path := writeSource(t, "LIT #01")

	h := New()
	out := runScript(t, h, "set verbose true", "assemble "+path)
	checkOutput(t, out, "Setting updated.", "-- Resolving labels --", "0301-   01")
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.avcr")
	if err := os.WriteFile(bad, []byte("XXXX"), 0644); err != nil {
		t.Fatal(err)
	}

	h := New()
	out := runScript(t, h, "load "+bad, "load "+filepath.Join(dir, "missing.avcr"), "labels")
	checkOutput(t, out,
		"Failed to read 'bad.avcr': missing rom header",
		"Failed to open 'missing.avcr'",
		"No labels loaded.",
	)
}

func TestSettings(t *testing.T) {
	h := New()
	out := runScript(t, h,
		"set disasm 3",
		"set maxmacro 8",
		"set nextmem $1234",
		"set next 1",
		"set verbose maybe",
		"set",
	)

	checkOutput(t, out, "Setting updated.", "invalid bool value 'maybe'", "NextMemDumpAddr  $1234")
	if h.settings.DisasmLines != 3 || h.settings.MaxMacroDepth != 8 || h.settings.NextMemDumpAddr != 0x1234 {
		t.Errorf("settings not applied: %+v", *h.settings)
	}
}

func TestHelpAndUnknown(t *testing.T) {
	h := New()
	out := runScript(t, h, "help", "help memory dump", "help bogus", "bogus", "assemble", "quit", "help")

	checkOutput(t, out,
		"avc commands:",
		"disassemble",
		"memory",
		"Usage: memory dump [<address>] [<bytes>]",
		"Shortcut: m",
		"Command not found.",
		"Usage: assemble <filename> [<romfile>]",
	)
	if strings.Count(out, "avc commands:") != 1 {
		t.Error("commands ran after quit")
	}
}

func TestShortcutsAndRepeat(t *testing.T) {
	h := New()
	out := runScript(t, h,
		"m $0400 8",
		"",
		"me",
	)

	checkOutput(t, out, "0400- 00 00 00 00 00 00 00 00", "0408- 00 00 00 00 00 00 00 00", "Command not found.")
	if h.settings.NextMemDumpAddr != 0x0410 {
		t.Errorf("unexpected next memory dump address $%04X", h.settings.NextMemDumpAddr)
	}
}

func TestParseNumber(t *testing.T) {
	cases := []struct {
		s   string
		v   uint16
		err bool
	}{
		{"$0300", 0x0300, false},
		{"0x10", 0x10, false},
		{"0b101", 5, false},
		{"42", 42, false},
		{"$10000", 0, true},
		{"zz", 0, true},
		{"$", 0, true},
	}

	for _, c := range cases {
		v, err := parseNumber(c.s)
		if (err != nil) != c.err || v != c.v {
			t.Errorf("parseNumber(%q): got %d, %v", c.s, v, err)
		}
	}
}
