// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package host

import (
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"

	"github.com/beevik/avc/asm"
	"github.com/beevik/prefixtree/v2"
)

type settings struct {
	Verbose         bool   `doc:"trace assembler passes"`
	MaxMacroDepth   int    `doc:"maximum nested macro expansions"`
	MemDumpBytes    int    `doc:"default number of memory bytes to dump"`
	DisasmLines     int    `doc:"default number of lines to disassemble"`
	NextDisasmAddr  uint16 `doc:"address of next disassembly"`
	NextMemDumpAddr uint16 `doc:"address of next memory dump"`
}

func newSettings() *settings {
	return &settings{
		Verbose:         false,
		MaxMacroDepth:   asm.DefaultMaxMacroDepth,
		MemDumpBytes:    64,
		DisasmLines:     10,
		NextDisasmAddr:  asm.CodeStart,
		NextMemDumpAddr: asm.CodeStart,
	}
}

type settingsField struct {
	name  string
	index int
	kind  reflect.Kind
	doc   string
}

var (
	settingsTree   = prefixtree.New[*settingsField]()
	settingsFields []settingsField
)

func init() {
	settingsType := reflect.TypeOf(settings{})
	settingsFields = make([]settingsField, settingsType.NumField())
	for i := 0; i < len(settingsFields); i++ {
		f := settingsType.Field(i)
		doc, _ := f.Tag.Lookup("doc")
		settingsFields[i] = settingsField{
			name:  f.Name,
			index: i,
			kind:  f.Type.Kind(),
			doc:   doc,
		}
		settingsTree.Add(strings.ToLower(f.Name), &settingsFields[i])
	}
}

func (s *settings) Display(w io.Writer) {
	value := reflect.ValueOf(s).Elem()
	for i, f := range settingsFields {
		v := value.Field(i)
		var s string
		switch f.kind {
		case reflect.Uint16:
			s = fmt.Sprintf("    %-16s $%04X", f.name, uint16(v.Uint()))
		default:
			s = fmt.Sprintf("    %-16s %v", f.name, v)
		}
		fmt.Fprintf(w, "%-28s (%s)\n", s, f.doc)
	}
}

// Set parses value according to the type of the setting named by key,
// which may be abbreviated to any unambiguous prefix.
func (s *settings) Set(key, value string) error {
	f, err := settingsTree.FindValue(strings.ToLower(key))
	if err != nil {
		return fmt.Errorf("Setting '%s': %v", key, err)
	}

	field := reflect.ValueOf(s).Elem().Field(f.index)
	switch f.kind {
	case reflect.Bool:
		v, err := stringToBool(value)
		if err != nil {
			return err
		}
		field.SetBool(v)

	case reflect.Int:
		v, err := strconv.Atoi(value)
		if err != nil || v < 0 {
			return fmt.Errorf("invalid count '%s'", value)
		}
		field.SetInt(int64(v))

	case reflect.Uint16:
		v, err := parseNumber(value)
		if err != nil {
			return err
		}
		field.SetUint(uint64(v))

	default:
		return fmt.Errorf("Setting '%s' has unsupported type", f.name)
	}
	return nil
}
