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

package vm

import "testing"

func TestUnknownOperatorFails(t *testing.T) {
	v := New(1, 1)
	if err := v.Call("frobnicate", "test", 1); err == nil {
		t.Fatal("expected an error for an unregistered operator")
	}
	if v.LastReason() == "" {
		t.Fatal("expected LastReason to be set")
	}
}

func TestResetFillRoundTripThroughStack(t *testing.T) {
	v := New(1, 1)
	v.Stack.Push(IntCell(0))
	v.Stack.Push(IntCell(4))
	v.Stack.Push(IntCell(1))
	v.Stack.Push(IntCell(3))
	if err := v.Call("reset", "test", 1); err != nil {
		t.Fatal(err)
	}

	v.Stack.Push(IntCell(0))
	v.Stack.Push(IntCell(255))
	v.Stack.Push(IntCell(10))
	v.Stack.Push(IntCell(20))
	v.Stack.Push(IntCell(30))
	if err := v.Call("fill", "test", 2); err != nil {
		t.Fatal(err)
	}

	reg, err := v.Buffers.Get(0)
	if err != nil {
		t.Fatal(err)
	}
	if !reg.Loaded() {
		t.Fatal("fill should load the register")
	}
	want := []byte{10, 20, 30, 10, 20, 30, 10, 20, 30, 10, 20, 30}
	for i := range want {
		if reg.Pix[i] != want[i] {
			t.Fatalf("byte %d: got %d want %d", i, reg.Pix[i], want[i])
		}
	}
	if !v.Stack.Empty() {
		t.Fatal("stack should be balanced after reset+fill")
	}
}

func TestFillRejectsByteOutOfRange(t *testing.T) {
	v := New(1, 1)
	v.Stack.Push(IntCell(0))
	v.Stack.Push(IntCell(4))
	v.Stack.Push(IntCell(1))
	v.Stack.Push(IntCell(3))
	if err := v.Call("reset", "test", 1); err != nil {
		t.Fatal(err)
	}

	v.Stack.Push(IntCell(0))
	v.Stack.Push(IntCell(256))
	v.Stack.Push(IntCell(0))
	v.Stack.Push(IntCell(0))
	v.Stack.Push(IntCell(0))
	if err := v.Call("fill", "test", 2); err != ErrByteRange {
		t.Fatalf("got %v, want ErrByteRange", err)
	}
}

// End-to-end scenario: reset + fill two buffers, configure an identity
// sample with no-op matrix, sample, then colour-invert the target.
func TestSampleThenColorInvertEndToEnd(t *testing.T) {
	v := New(2, 1)

	// Buffer 0: source, opaque white 2x2 RGB.
	push := func(vals ...int32) {
		for _, val := range vals {
			v.Stack.Push(IntCell(val))
		}
	}
	push(0, 2, 2, 3)
	if err := v.Call("reset", "t", 1); err != nil {
		t.Fatal(err)
	}
	push(0, 255, 255, 255, 255)
	if err := v.Call("fill", "t", 2); err != nil {
		t.Fatal(err)
	}

	// Buffer 1: target, black 2x2 RGB.
	push(1, 2, 2, 3)
	if err := v.Call("reset", "t", 3); err != nil {
		t.Fatal(err)
	}
	push(1, 255, 0, 0, 0)
	if err := v.Call("fill", "t", 4); err != nil {
		t.Fatal(err)
	}

	push(0)
	if err := v.Call("sample_source", "t", 5); err != nil {
		t.Fatal(err)
	}
	push(1)
	if err := v.Call("sample_target", "t", 6); err != nil {
		t.Fatal(err)
	}
	push(0)
	if err := v.Call("identity", "t", 7); err != nil {
		t.Fatal(err)
	}
	push(0)
	if err := v.Call("sample_matrix", "t", 8); err != nil {
		t.Fatal(err)
	}
	if err := v.Call("sample_nearest", "t", 9); err != nil {
		t.Fatal(err)
	}
	if err := v.Call("sample_mask_none", "t", 10); err != nil {
		t.Fatal(err)
	}
	if err := v.Call("sample", "t", 11); err != nil {
		t.Fatal(err)
	}

	reg, _ := v.Buffers.Get(1)
	for off := 0; off < len(reg.Pix); off += 3 {
		if reg.Pix[off] != 255 || reg.Pix[off+1] != 255 || reg.Pix[off+2] != 255 {
			t.Fatalf("pixel at %d: got %v, want opaque white", off/3, reg.Pix[off:off+3])
		}
	}

	push(1)
	if err := v.Call("color_invert", "t", 12); err != nil {
		t.Fatal(err)
	}
	for off := 0; off < len(reg.Pix); off += 3 {
		if reg.Pix[off] != 0 || reg.Pix[off+1] != 0 || reg.Pix[off+2] != 0 {
			t.Fatalf("pixel at %d after invert: got %v, want black", off/3, reg.Pix[off:off+3])
		}
	}

	if !v.Stack.Empty() {
		t.Fatal("stack should be balanced")
	}
}

func TestSampleFailsWhenUnconfigured(t *testing.T) {
	v := New(2, 1)
	if err := v.Call("sample", "t", 1); err != ErrSampleUnconfigured {
		t.Fatalf("got %v, want ErrSampleUnconfigured", err)
	}
}

func TestSampleMaskXRejectsOutOfRange(t *testing.T) {
	v := New(1, 1)
	v.Stack.Push(FloatCell(1.5))
	if err := v.Call("sample_mask_x", "t", 1); err == nil {
		t.Fatal("expected a boundary-range error")
	}
}
