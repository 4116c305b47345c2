// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asm

import (
	"encoding/json"
	"io"
	"sort"
)

// A SourceMap describes the mapping between source code line numbers and
// assembled code addresses, along with the address of every label.
type SourceMap struct {
	Origin uint16
	Size   uint32
	CRC    uint32
	Labels []Label
	Lines  []SourceLine
}

// A Label associates a label name with its resolved address.
type Label struct {
	Label   string
	Address uint16
}

// A SourceLine represents a mapping between a code address and the
// 1-based source line that generated it. The mapping covers every
// address up to the next entry.
type SourceLine struct {
	Address int
	Line    int
}

// Search returns the source line that produced the code at addr, or -1
// if the address precedes all mapped code.
func (s *SourceMap) Search(addr int) (line int) {
	i := sort.Search(len(s.Lines), func(i int) bool {
		return s.Lines[i].Address > addr
	})
	if i == 0 {
		return -1
	}
	return s.Lines[i-1].Line
}

// Find returns the address of the named label.
func (s *SourceMap) Find(label string) (addr uint16, ok bool) {
	for _, l := range s.Labels {
		if l.Label == label {
			return l.Address, true
		}
	}
	return 0, false
}

// ReadFrom reads the contents of an exported source map file.
func (s *SourceMap) ReadFrom(r io.Reader) (n int64, err error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}

	err = json.Unmarshal(b, s)
	if err != nil {
		return 0, err
	}
	return int64(len(b)), nil
}

// WriteTo writes the contents of the source map to an output stream.
func (s *SourceMap) WriteTo(w io.Writer) (n int64, err error) {
	b, err := json.Marshal(*s)
	if err != nil {
		return 0, err
	}

	nn, err := w.Write(b)
	return int64(nn), err
}

func sortLabels(labels map[string]int) []Label {
	sorted := make([]Label, 0, len(labels))
	for name, addr := range labels {
		sorted = append(sorted, Label{Label: name, Address: uint16(addr)})
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Address != sorted[j].Address {
			return sorted[i].Address < sorted[j].Address
		}
		return sorted[i].Label < sorted[j].Label
	})
	return sorted
}

func sortLines(lines []SourceLine) []SourceLine {
	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].Address < lines[j].Address
	})
	return lines
}
