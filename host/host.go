// Copyright 2018 Brett Vickers.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package host allows you to create a "host" that models an AVC system
// with 64K of memory, a built-in assembler, and other useful tools.
//
// Within the host it is possible to assemble source files into rom images,
// load rom images into memory, dump the contents of memory, disassemble
// the contents of memory, and list the labels of a loaded program.
package host

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/beevik/avc/asm"
	"github.com/beevik/avc/disasm"
	"github.com/beevik/avc/isa"
	"github.com/beevik/cmd"
	"github.com/sirupsen/logrus"
)

// A Host represents an AVC system with 64K of memory, a built-in
// assembler, and other useful tools.
type Host struct {
	input       *bufio.Scanner
	output      *bufio.Writer
	interactive bool
	mem         *isa.FlatMemory
	lastCmd     *selection
	sourceMap   *asm.SourceMap
	settings    *settings
}

// New creates a new AVC host environment.
func New() *Host {
	return &Host{
		mem:      isa.NewFlatMemory(),
		settings: newSettings(),
	}
}

// RunCommands accepts host commands from a reader and outputs the results
// to a writer. If the commands are interactive, a prompt is displayed while
// the host waits for the the next command to be entered.
func (h *Host) RunCommands(r io.Reader, w io.Writer, interactive bool) {
	h.input = bufio.NewScanner(r)
	h.output = bufio.NewWriter(w)
	h.interactive = interactive
	defer h.flush()

	for {
		h.prompt()

		line, err := h.getLine()
		if err != nil {
			break
		}

		var c selection
		if line != "" {
			c.Command, c.Args, err = cmds.LookupCommand(line)
			switch {
			case err == cmd.ErrNotFound:
				h.println("Command not found.")
				continue
			case err == cmd.ErrAmbiguous:
				h.println("Command is ambiguous.")
				continue
			case err != nil:
				h.printf("ERROR: %v.\n", err)
				continue
			}
		} else if h.lastCmd != nil {
			c = *h.lastCmd
		}

		if c.Command == nil {
			continue
		}
		h.lastCmd = &c

		handler := c.Command.Data.(func(*Host, selection) error)
		err = handler(h, c)
		if err != nil {
			break
		}
	}
}

func (h *Host) printf(format string, args ...any) {
	fmt.Fprintf(h.output, format, args...)
	h.flush()
}

func (h *Host) println(args ...any) {
	fmt.Fprintln(h.output, args...)
	h.flush()
}

func (h *Host) flush() {
	h.output.Flush()
}

func (h *Host) getLine() (string, error) {
	if h.input.Scan() {
		return strings.TrimSpace(h.input.Text()), nil
	}
	if h.input.Err() != nil {
		return "", h.input.Err()
	}
	return "", io.EOF
}

func (h *Host) prompt() {
	if h.interactive {
		h.printf("* ")
	}
}

func (h *Host) cmdHelp(c selection) error {
	if err := cmds.GetHelp(h.output, c.Args); err != nil {
		h.printf("%v.\n", err)
	}
	h.flush()
	return nil
}

func (h *Host) cmdAssemble(c selection) error {
	if len(c.Args) < 1 {
		h.displayUsage(c)
		return nil
	}

	filename := c.Args[0]
	if filepath.Ext(filename) == "" {
		filename += ".avc"
	}

	ext := filepath.Ext(filename)
	prefix := filename[:len(filename)-len(ext)]
	romPath := prefix + ".avcr"
	if len(c.Args) >= 2 {
		romPath = c.Args[1]
	}
	mapPath := romPath[:len(romPath)-len(filepath.Ext(romPath))] + ".map"

	config := asm.Config{
		Log:           h.assemblerLog(),
		MaxMacroDepth: h.settings.MaxMacroDepth,
	}
	err := asm.AssembleFile(filename, romPath, mapPath, config)
	if err != nil {
		h.printf("%v\n", err)
		h.printf("Failed to assemble '%s'.\n", filepath.Base(filename))
		return nil
	}

	h.printf("Assembled '%s' to produce '%s' and '%s'.\n",
		filepath.Base(filename),
		filepath.Base(romPath),
		filepath.Base(mapPath))
	return nil
}

func (h *Host) cmdDisassemble(c selection) error {
	if len(c.Args) == 0 {
		c.Args = []string{"$"}
	}

	addr := h.settings.NextDisasmAddr
	if c.Args[0] != "$" {
		a, err := h.parseAddr(c.Args[0])
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		addr = a
	}

	lines := h.settings.DisasmLines
	if len(c.Args) > 1 {
		l, err := parseNumber(c.Args[1])
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		lines = int(l)
	}

	for i := 0; i < lines; i++ {
		d, next := h.disassemble(addr)
		h.println(d)
		if next < addr {
			break
		}
		addr = next
	}

	h.settings.NextDisasmAddr = addr
	h.lastCmd.Args = []string{"$", strconv.Itoa(lines)}
	return nil
}

func (h *Host) cmdLabels(c selection) error {
	if h.sourceMap == nil || len(h.sourceMap.Labels) == 0 {
		h.println("No labels loaded.")
		return nil
	}
	for _, l := range h.sourceMap.Labels {
		h.printf("%-16s $%04X\n", l.Label, l.Address)
	}
	return nil
}

func (h *Host) cmdLoad(c selection) error {
	if len(c.Args) < 1 {
		h.displayUsage(c)
		return nil
	}

	filename := c.Args[0]
	if filepath.Ext(filename) == "" {
		filename += ".avcr"
	}

	h.load(filename)
	return nil
}

func (h *Host) cmdMemoryDump(c selection) error {
	if len(c.Args) == 0 {
		c.Args = []string{"$"}
	}

	addr := h.settings.NextMemDumpAddr
	if c.Args[0] != "$" {
		a, err := h.parseAddr(c.Args[0])
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		addr = a
	}

	bytes := uint16(h.settings.MemDumpBytes)
	if len(c.Args) >= 2 {
		var err error
		bytes, err = parseNumber(c.Args[1])
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
	}

	h.dumpMemory(addr, bytes)

	h.settings.NextMemDumpAddr = addr + bytes
	h.lastCmd.Args = []string{"$", strconv.Itoa(int(bytes))}
	return nil
}

func (h *Host) cmdQuit(c selection) error {
	return errors.New("Exiting program")
}

func (h *Host) cmdSet(c selection) error {
	switch len(c.Args) {
	case 0:
		h.println("Variables:")
		h.settings.Display(h.output)
		h.flush()

	case 1:
		h.displayUsage(c)

	default:
		key, value := c.Args[0], strings.Join(c.Args[1:], " ")
		if err := h.settings.Set(key, value); err != nil {
			h.printf("%v\n", err)
		} else {
			h.println("Setting updated.")
		}
	}
	return nil
}

// Load a rom image into memory at asm.CodeStart, along with its source
// map if one exists.
func (h *Host) load(filename string) {
	file, err := os.Open(filename)
	if err != nil {
		h.printf("Failed to open '%s': %v\n", filepath.Base(filename), err)
		return
	}
	defer file.Close()

	a := &asm.Assembly{}
	_, err = a.ReadFrom(file)
	if err != nil {
		h.printf("Failed to read '%s': %v\n", filepath.Base(filename), err)
		return
	}

	image := a.Image()
	h.mem.StoreBytes(asm.CodeStart, image)
	h.printf("Loaded '%s' to $%04X..$%04X\n", filepath.Base(filename),
		asm.CodeStart, asm.CodeStart+len(image)-1)

	h.settings.NextDisasmAddr = asm.CodeStart
	h.settings.NextMemDumpAddr = asm.CodeStart

	ext := filepath.Ext(filename)
	mapName := filename[:len(filename)-len(ext)] + ".map"

	h.sourceMap = nil
	mapFile, err := os.Open(mapName)
	if err != nil {
		return
	}
	defer mapFile.Close()

	sm := &asm.SourceMap{}
	if _, err = sm.ReadFrom(mapFile); err != nil {
		h.printf("Failed to read '%s': %v\n", filepath.Base(mapName), err)
		return
	}
	h.sourceMap = sm
	h.printf("Loaded '%s' source map\n", filepath.Base(mapName))
}

// Resolve an address argument, which may be a label from the loaded
// source map or a number.
func (h *Host) parseAddr(s string) (uint16, error) {
	if h.sourceMap != nil {
		if addr, ok := h.sourceMap.Find(s); ok {
			return addr, nil
		}
	}
	return parseNumber(s)
}

func (h *Host) disassemble(addr uint16) (str string, next uint16) {
	var line string
	line, next = disasm.Disassemble(h.mem, addr)

	str = fmt.Sprintf("%04X-   %-8s    %-15s", addr, codeString(disasm.Bytes(h.mem, addr)), line)

	if h.sourceMap != nil {
		var labels []string
		for _, l := range h.sourceMap.Labels {
			if l.Address == addr {
				labels = append(labels, l.Label)
			}
		}
		if len(labels) > 0 {
			str += " ; " + strings.Join(labels, ", ")
		}
	}

	return strings.TrimRight(str, " "), next
}

func (h *Host) dumpMemory(addr0, bytes uint16) {
	if bytes == 0 {
		return
	}

	addr1 := addr0 + bytes - 1
	if addr1 < addr0 {
		addr1 = 0xffff
	}

	buf := []byte("    -" + strings.Repeat(" ", 35))

	// Don't align display for short dumps.
	if addr1-addr0 < 8 {
		addrToBuf(addr0, buf[0:4])
		for a, c1, c2 := addr0, 6, 32; a <= addr1; a, c1, c2 = a+1, c1+3, c2+1 {
			m := h.mem.LoadByte(a)
			byteToBuf(m, buf[c1:c1+2])
			buf[c2] = toPrintableChar(m)
			if a == 0xffff {
				break
			}
		}
		h.println(string(buf))
		return
	}

	// Align addr0 and addr1 to 8-byte boundaries.
	start := uint32(addr0) & 0xfff8
	stop := (uint32(addr1) + 8) & 0xffff8
	if stop > 0x10000 {
		stop = 0x10000
	}

	a := uint16(start)
	for r := start; r < stop; r += 8 {
		addrToBuf(a, buf[0:4])
		for c1, c2 := 6, 32; c1 < 29; c1, c2, a = c1+3, c2+1, a+1 {
			if a >= addr0 && a <= addr1 {
				m := h.mem.LoadByte(a)
				byteToBuf(m, buf[c1:c1+2])
				buf[c2] = toPrintableChar(m)
			} else {
				buf[c1] = ' '
				buf[c1+1] = ' '
				buf[c2] = ' '
			}
		}
		h.println(string(buf))
	}
}

// Return a logger that writes assembler traces to the host output when
// the Verbose setting is enabled.
func (h *Host) assemblerLog() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(h.output)
	l.SetFormatter(plainFormatter{})
	if h.settings.Verbose {
		l.SetLevel(logrus.DebugLevel)
	}
	return l
}

func (h *Host) displayUsage(c selection) {
	c.Command.DisplayUsage(h.output)
	h.flush()
}
