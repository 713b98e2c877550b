// Copyright 2024 The Sparkle Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package driver

import (
	"errors"
	"fmt"

	"github.com/sparkle-vm/sparkle/vm"
)

var (
	ErrMissingHeader  = errors.New("driver: script must begin with %sparkle;")
	ErrDuplicateMeta  = errors.New("driver: metacommand given more than once")
	ErrMetaOutOfRange = errors.New("driver: metacommand value out of range [0,4096]")
	ErrExpectedSemi   = errors.New("driver: expected ';'")
	ErrExpectedInt    = errors.New("driver: expected an integer literal")
)

// ScriptError is a script-visible failure (spec.md §7 tier 1): a one-line
// diagnostic naming the module and source line, ready to print verbatim to
// standard error.
type ScriptError struct {
	Module string
	Line   int
	Err    error
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.Module, e.Line, e.Err)
}

func (e *ScriptError) Unwrap() error { return e.Err }

const maxMetaCount = 4096

// Run tokenizes and executes a complete script against a fresh VM sized by
// the script's own %bufcount/%matcount header, returning a *ScriptError on
// any script-visible failure.
func Run(module string, src []byte) error {
	s := newScanner(src)

	tok, ok, err := s.next()
	if err != nil {
		return &ScriptError{module, 1, err}
	}
	if !ok || tok.kind != tokWord || tok.s != "%sparkle" {
		return &ScriptError{module, 1, ErrMissingHeader}
	}
	if err := expectSemi(s, module); err != nil {
		return err
	}

	bufCount, matCount := 0, 0
	haveBufCount, haveMatCount := false, false

	for {
		start := s.pos
		startLine := s.line
		tok, ok, err = s.next()
		if err != nil {
			return &ScriptError{module, s.line, err}
		}
		if !ok {
			return &ScriptError{module, startLine, errors.New("driver: unexpected end of script")}
		}
		if tok.kind != tokWord || (tok.s != "%bufcount" && tok.s != "%matcount") {
			s.pos = start
			s.line = startLine
			break
		}
		isBuf := tok.s == "%bufcount"
		if isBuf && haveBufCount || !isBuf && haveMatCount {
			return &ScriptError{module, tok.line, ErrDuplicateMeta}
		}
		n, err := expectInt(s, module)
		if err != nil {
			return err
		}
		if n < 0 || n > maxMetaCount {
			return &ScriptError{module, tok.line, ErrMetaOutOfRange}
		}
		if err := expectSemi(s, module); err != nil {
			return err
		}
		if isBuf {
			bufCount, haveBufCount = n, true
		} else {
			matCount, haveMatCount = n, true
		}
	}

	machine := vm.New(bufCount, matCount)

	for {
		tok, ok, err := s.next()
		if err != nil {
			return &ScriptError{module, s.line, err}
		}
		if !ok {
			break
		}
		switch tok.kind {
		case tokInt:
			if err := machine.Stack.Push(vm.IntCell(tok.i)); err != nil {
				return &ScriptError{module, tok.line, err}
			}
		case tokFloat:
			if err := machine.Stack.Push(vm.FloatCell(tok.f)); err != nil {
				return &ScriptError{module, tok.line, err}
			}
		case tokString:
			if err := machine.Stack.Push(vm.StringCell(tok.s)); err != nil {
				return &ScriptError{module, tok.line, err}
			}
		case tokWord:
			if err := machine.Call(tok.s, module, tok.line); err != nil {
				return &ScriptError{module, tok.line, errors.New(machine.LastReason())}
			}
		case tokSemicolon:
			// Metacommand terminators only matter in the header; a stray
			// ';' in the body is harmless punctuation with no stack
			// effect.
		}
	}

	if !machine.Stack.Empty() {
		return &ScriptError{module, s.line, vm.ErrStackNotEmpty}
	}
	return nil
}

func expectSemi(s *scanner, module string) error {
	tok, ok, err := s.next()
	if err != nil {
		return &ScriptError{module, s.line, err}
	}
	if !ok || tok.kind != tokSemicolon {
		return &ScriptError{module, s.line, ErrExpectedSemi}
	}
	return nil
}

func expectInt(s *scanner, module string) (int, error) {
	tok, ok, err := s.next()
	if err != nil {
		return 0, &ScriptError{module, s.line, err}
	}
	if !ok || tok.kind != tokInt {
		return 0, &ScriptError{module, s.line, ErrExpectedInt}
	}
	return int(tok.i), nil
}
