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
	"testing"

	"github.com/sparkle-vm/sparkle/vm"
)

func TestRunRejectsMissingHeader(t *testing.T) {
	err := Run("t", []byte("0 4 4 3 reset;"))
	var se *ScriptError
	if !errors.As(err, &se) || se.Err != ErrMissingHeader {
		t.Fatalf("got %v", err)
	}
}

func TestRunExecutesResetAndFill(t *testing.T) {
	src := []byte("%sparkle;\n%bufcount 1;\n0 4 4 3 reset; 0 255 10 20 30 fill;")
	if err := Run("t", src); err != nil {
		t.Fatal(err)
	}
}

func TestRunRejectsDuplicateMeta(t *testing.T) {
	src := []byte("%sparkle;\n%bufcount 1;\n%bufcount 2;\n")
	err := Run("t", src)
	var se *ScriptError
	if !errors.As(err, &se) || se.Err != ErrDuplicateMeta {
		t.Fatalf("got %v", err)
	}
}

func TestRunRejectsMetaOutOfRange(t *testing.T) {
	src := []byte("%sparkle;\n%bufcount 99999;\n")
	err := Run("t", src)
	var se *ScriptError
	if !errors.As(err, &se) || se.Err != ErrMetaOutOfRange {
		t.Fatalf("got %v", err)
	}
}

func TestRunRejectsUnbalancedStack(t *testing.T) {
	src := []byte("%sparkle;\n%bufcount 1;\n42\n")
	err := Run("t", src)
	var se *ScriptError
	if !errors.As(err, &se) || se.Err != vm.ErrStackNotEmpty {
		t.Fatalf("got %v", err)
	}
}

func TestRunReportsUnknownOperator(t *testing.T) {
	src := []byte("%sparkle;\n%bufcount 1;\nfrobnicate\n")
	err := Run("t", src)
	if err == nil {
		t.Fatal("expected an error")
	}
	var se *ScriptError
	if !errors.As(err, &se) {
		t.Fatalf("got %v, want *ScriptError", err)
	}
}

func TestRunHeaderWithoutMetaDefaultsCountsToZero(t *testing.T) {
	src := []byte("%sparkle;\nprint\n")
	// No %bufcount/%matcount given, and no operators consuming buffers, so
	// this fails only for lack of a string on the stack for `print`.
	err := Run("t", src)
	if err == nil {
		t.Fatal("expected an error: print with nothing on the stack")
	}
}
