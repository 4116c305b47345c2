// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package isa

import (
	"bytes"
	"testing"
)

func TestFlatMemory(t *testing.T) {
	m := NewFlatMemory()
	m.StoreBytes(0x0300, []byte{0xa0, 0x12, 0x34})

	if v := m.LoadByte(0x0300); v != 0xa0 {
		t.Errorf("LoadByte: expected $A0, got $%02X", v)
	}
	if v := m.LoadAddress(0x0301); v != 0x1234 {
		t.Errorf("LoadAddress: expected $1234, got $%04X", v)
	}

	b := make([]byte, 4)
	m.LoadBytes(0x0300, b)
	if !bytes.Equal(b, []byte{0xa0, 0x12, 0x34, 0x00}) {
		t.Errorf("LoadBytes: unexpected % X", b)
	}
}

func TestFlatMemoryEdges(t *testing.T) {
	m := NewFlatMemory()
	m.StoreBytes(0xfffe, []byte{1, 2, 3})
	m.StoreByte(0x0000, 9)

	b := []byte{0xff, 0xff, 0xff}
	m.LoadBytes(0xfffe, b)
	if !bytes.Equal(b, []byte{1, 2, 0}) {
		t.Errorf("LoadBytes: unexpected % X", b)
	}
	if v := m.LoadAddress(0xffff); v != 0x0209 {
		t.Errorf("LoadAddress: expected $0209, got $%04X", v)
	}
}
