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

package sample

import (
	"testing"

	"golang.org/x/image/math/f64"

	"github.com/sparkle-vm/sparkle/lib/affine"
	"github.com/sparkle-vm/sparkle/lib/resample"
)

func fillBuf(w, h, c int, px ...byte) Buffer {
	pix := make([]byte, w*h*c)
	for off := 0; off < len(pix); off += c {
		copy(pix[off:off+c], px)
	}
	return Buffer{W: w, H: h, C: c, Pix: pix}
}

// Scenario 1 (spec.md §8): no-op nearest-neighbour sampling reproduces the
// source bytewise.
func TestNoOpSamplingReproducesSource(t *testing.T) {
	src := fillBuf(4, 1, 3, 10, 20, 30)
	target := fillBuf(4, 1, 3, 0, 0, 0)

	p := Params{
		Src:       src,
		Target:    target,
		Matrix:    affine.Identity,
		Mask:      MaskNone,
		Algorithm: resample.Nearest,
	}
	if err := Run(p, 0, 1, -1); err != nil {
		t.Fatal(err)
	}
	want := []byte{10, 20, 30, 10, 20, 30, 10, 20, 30, 10, 20, 30}
	for i := range want {
		if target.Pix[i] != want[i] {
			t.Fatalf("byte %d: got %d want %d", i, target.Pix[i], want[i])
		}
	}
}

// Scenario 2: straight copy of a half-transparent source over a fully
// transparent target.
func TestStraightCopyOverTransparentTarget(t *testing.T) {
	src := fillBuf(2, 2, 4, 128, 255, 0, 0)
	target := fillBuf(2, 2, 4, 0, 0, 0, 0)

	p := Params{
		Src:       src,
		Target:    target,
		Matrix:    affine.Identity,
		Mask:      MaskNone,
		Algorithm: resample.Nearest,
	}
	if err := Run(p, 0, 1, -1); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < len(target.Pix); i += 4 {
		a, r, g, b := target.Pix[i], target.Pix[i+1], target.Pix[i+2], target.Pix[i+3]
		if a != 128 || r != 255 || g != 0 || b != 0 {
			t.Fatalf("pixel at %d: got %d %d %d %d", i/4, a, r, g, b)
		}
	}
}

// Scenario 3: translate(1, 0) moves the white source pixel 0 onto target
// pixel 1; target pixel 0 is not covered and stays black, giving
// [black, white].
func TestTranslateShiftsRowByOnePixel(t *testing.T) {
	src := Buffer{W: 2, H: 1, C: 3, Pix: []byte{255, 255, 255, 0, 0, 0}}
	target := Buffer{W: 2, H: 1, C: 3, Pix: []byte{0, 0, 0, 0, 0, 0}}

	a := affine.NewArena(1)
	a.Reset(0)
	if err := a.Translate(0, 1, 0); err != nil {
		t.Fatal(err)
	}
	fwd, _ := a.Forward(0)

	p := Params{
		Src:       src,
		Target:    target,
		Matrix:    fwd,
		Mask:      MaskNone,
		Algorithm: resample.Nearest,
	}
	if err := Run(p, 0, 1, -1); err != nil {
		t.Fatal(err)
	}
	want := []byte{0, 0, 0, 255, 255, 255}
	for i := range want {
		if target.Pix[i] != want[i] {
			t.Fatalf("byte %d: got %d want %d", i, target.Pix[i], want[i])
		}
	}
}

// Scenario: a translation that moves the source entirely off-target
// writes no pixels.
func TestEmptyIntersectionWritesNothing(t *testing.T) {
	src := fillBuf(4, 4, 3, 10, 20, 30)
	sentinel := byte(77)
	target := fillBuf(4, 4, 3, sentinel, sentinel, sentinel)

	a := affine.NewArena(1)
	a.Reset(0)
	a.Translate(0, 1000, 0)
	fwd, _ := a.Forward(0)

	p := Params{
		Src:       src,
		Target:    target,
		Matrix:    fwd,
		Mask:      MaskNone,
		Algorithm: resample.Nearest,
	}
	if err := Run(p, 0, 1, -1); err != nil {
		t.Fatal(err)
	}
	for i, v := range target.Pix {
		if v != sentinel {
			t.Fatalf("byte %d: got %d, want untouched sentinel %d", i, v, sentinel)
		}
	}
}

// Procedural mask boundary property: x_boundary=0.5, left mode, width 100.
func TestProceduralMaskBoundary(t *testing.T) {
	const w, h = 100, 10
	src := fillBuf(w, h, 3, 200, 150, 100)
	sentinel := byte(9)
	target := fillBuf(w, h, 3, sentinel, sentinel, sentinel)

	p := Params{
		Src:       src,
		Target:    target,
		Matrix:    affine.Identity,
		Mask:      MaskProcedural,
		XBoundary: 0.5,
		XMode:     XLeft,
		YBoundary: 0,
		YMode:     YAbove,
		Algorithm: resample.Nearest,
	}
	if err := Run(p, 0, 1, -1); err != nil {
		t.Fatal(err)
	}
	bx := proceduralPivot(0.5, w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			off := (y*w + x) * 3
			isSentinel := target.Pix[off] == sentinel && target.Pix[off+1] == sentinel && target.Pix[off+2] == sentinel
			if x < bx {
				if !isSentinel {
					t.Fatalf("pixel (%d,%d) left of boundary should be untouched", x, y)
				}
			} else {
				if isSentinel {
					t.Fatalf("pixel (%d,%d) at/right of boundary should be overwritten", x, y)
				}
			}
		}
	}
}

// Raster mask linearity: output equals source*mask/255 over a transparent
// black target.
func TestRasterMaskLinearity(t *testing.T) {
	const w, h = 4, 4
	src := fillBuf(w, h, 4, 255, 200, 100, 50)
	target := fillBuf(w, h, 4, 0, 0, 0, 0)
	mask := Buffer{W: w, H: h, C: 1, Pix: make([]byte, w*h)}
	for i := range mask.Pix {
		mask.Pix[i] = byte(i * 16 % 256)
	}

	p := Params{
		Src:        src,
		Target:     target,
		Matrix:     affine.Identity,
		Mask:       MaskRaster,
		MaskBuffer: mask,
		Algorithm:  resample.Nearest,
	}
	if err := Run(p, 0, 1, 2); err != nil {
		t.Fatal(err)
	}
	near := func(got, want byte) bool {
		d := int(got) - int(want)
		return d >= -1 && d <= 1
	}
	for i := 0; i < w*h; i++ {
		m := mask.Pix[i]
		off := i * 4
		a, r, g, b := target.Pix[off], target.Pix[off+1], target.Pix[off+2], target.Pix[off+3]
		// In straight alpha, source*mask/255 keeps the source colour and
		// scales alpha to m. floor quantization at write-back can lose
		// one step, so each byte may be one below the exact value.
		if m == 0 {
			if a != 0 || r != 0 || g != 0 || b != 0 {
				t.Fatalf("pixel %d: mask 0 should give transparent black, got %d %d %d %d", i, a, r, g, b)
			}
			continue
		}
		if a == 0 {
			t.Fatalf("pixel %d: mask %d but alpha is 0", i, m)
		}
		if !near(a, m) || !near(r, 200) || !near(g, 100) || !near(b, 50) {
			t.Fatalf("pixel %d: mask %d: got %d %d %d %d, want ~%d 200 100 50", i, m, a, r, g, b, m)
		}
	}
}

// All pixels of a uniform raster mask scale the composite identically.
func TestRasterMaskUniformScale(t *testing.T) {
	const w, h = 2, 2
	src := fillBuf(w, h, 4, 255, 255, 255, 255) // opaque white
	target := fillBuf(w, h, 4, 0, 0, 0, 0)
	mask := Buffer{W: w, H: h, C: 1, Pix: []byte{128, 128, 128, 128}}

	p := Params{
		Src:        src,
		Target:     target,
		Matrix:     affine.Identity,
		Mask:       MaskRaster,
		MaskBuffer: mask,
		Algorithm:  resample.Nearest,
	}
	if err := Run(p, 0, 1, 2); err != nil {
		t.Fatal(err)
	}
	a0 := target.Pix[0]
	for i := 0; i < w*h; i++ {
		off := i * 4
		if target.Pix[off] != a0 {
			t.Fatalf("pixel %d alpha %d differs from pixel 0 alpha %d", i, target.Pix[off], a0)
		}
	}
	if a0 == 0 || a0 == 255 {
		t.Fatalf("expected partial alpha from a 128/255 mask, got %d", a0)
	}
}

func TestValidateRejectsSameSourceAndTarget(t *testing.T) {
	p := Params{Src: fillBuf(1, 1, 1, 0), Target: fillBuf(1, 1, 1, 0)}
	if err := Validate(p, 0, 0, -1); err != ErrSameBuffer {
		t.Fatalf("got %v", err)
	}
}

func TestValidateRejectsOutOfRangeSubArea(t *testing.T) {
	p := Params{
		Src:         fillBuf(4, 4, 1, 0),
		Target:      fillBuf(4, 4, 1, 0),
		HasSubArea:  true,
		SrcX:        3,
		SrcY:        0,
		SrcW:        3,
		SrcH:        1,
	}
	if err := Validate(p, 0, 1, -1); err != ErrBadSubArea {
		t.Fatalf("got %v", err)
	}
}
