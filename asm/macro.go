// Copyright 2024 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asm

import (
	"fmt"
	"strings"
)

// Parameter names are stored with this prefix so that ordinary body text
// is never mistaken for a parameter.
const paramMarker = "$"

// A Macro is a named text template with positional parameters.
type Macro struct {
	Name   string
	Params []string // parameter markers, e.g. "$addr"
	Body   string
}

// Expand substitutes each argument for its parameter marker in the macro
// body and returns the resulting text. The number of arguments must equal
// the number of parameters; Expand panics otherwise.
func (m *Macro) Expand(args []string) string {
	if len(args) != len(m.Params) {
		panic(fmt.Sprintf("macro %s expects %d arguments, got %d", m.Name, len(m.Params), len(args)))
	}
	if len(args) == 0 {
		return m.Body
	}

	// The replacer scans the body left to right, trying markers in
	// parameter order at each position.
	oldnew := make([]string, 0, len(args)*2)
	for i, p := range m.Params {
		oldnew = append(oldnew, p, args[i])
	}
	return strings.NewReplacer(oldnew...).Replace(m.Body)
}

// A macroTable stores macro definitions by name.
type macroTable struct {
	macros map[string]*Macro
}

func newMacroTable() *macroTable {
	return &macroTable{macros: make(map[string]*Macro)}
}

// Define stores a macro. A later definition with the same name replaces
// the earlier one.
func (t *macroTable) define(name string, params []string, body string) *Macro {
	m := &Macro{Name: name, Body: body}
	for _, p := range params {
		m.Params = append(m.Params, paramMarker+p)
	}
	t.macros[name] = m
	return m
}

func (t *macroTable) lookup(name string) (*Macro, error) {
	m, ok := t.macros[name]
	if !ok {
		return nil, fmt.Errorf("%w '%s'", ErrUndefinedMacro, name)
	}
	return m, nil
}

// Expand the named macro with the given arguments.
func (t *macroTable) expand(name string, args []string) (string, error) {
	m, err := t.lookup(name)
	if err != nil {
		return "", err
	}
	if len(args) != len(m.Params) {
		return "", fmt.Errorf("%w: '%s' expects %d, got %d", ErrMacroArgCount, name, len(m.Params), len(args))
	}
	return m.Expand(args), nil
}

// Parse the arguments of a defmac directive: a name, a parenthesized
// parameter list and a parenthesized body.
func parseMacroDef(args string) (name string, params []string, body string, ok bool) {
	parts := splitTopLevel(args, ',')
	if len(parts) != 3 || parts[0] == "" {
		return "", nil, "", false
	}

	plist, ok1 := unwrapParens(parts[1])
	body, ok2 := unwrapParens(parts[2])
	if !ok1 || !ok2 {
		return "", nil, "", false
	}

	if strings.TrimSpace(plist) != "" {
		for _, p := range strings.Split(plist, ",") {
			p = strings.TrimSpace(p)
			if p == "" {
				return "", nil, "", false
			}
			params = append(params, p)
		}
	}
	return parts[0], params, body, true
}
