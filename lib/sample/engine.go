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

// Package sample implements the sample engine (spec §4.G): the per-pixel
// inverse-mapped compositor that projects a (sub)area of a source buffer
// into a target buffer through an affine transform, optional masking, a
// resampling kernel, and premultiplied-alpha OVER compositing.
//
// The engine itself is stateless between calls — it takes a fully
// assembled Params value and runs once. Any "sticky" configuration
// (current source/target/matrix/mask/algorithm) is the script layer's
// concern (vm package), not this package's.
package sample

import (
	"errors"
	"math"

	"golang.org/x/image/math/f64"

	"github.com/sparkle-vm/sparkle/lib/affine"
	"github.com/sparkle-vm/sparkle/lib/pixel"
	"github.com/sparkle-vm/sparkle/lib/resample"
)

// XMode and YMode select which side of a procedural mask boundary survives.
type XMode int

const (
	XLeft XMode = iota
	XRight
)

type YMode int

const (
	YAbove YMode = iota
	YBelow
)

// MaskKind selects the masking mode.
type MaskKind int

const (
	MaskNone MaskKind = iota
	MaskProcedural
	MaskRaster
)

// Buffer is the minimal view of a buffer register the engine needs: its
// geometry and pixel storage. The caller (vm package) is responsible for
// ensuring the register is loaded before passing it in.
type Buffer struct {
	W, H, C int
	Pix     []byte
}

// Params is everything one Run call needs, assembled fresh by the caller
// from its own sticky state.
type Params struct {
	Src, Target Buffer

	HasSubArea             bool
	SrcX, SrcY, SrcW, SrcH int

	Matrix f64.Aff3

	Mask       MaskKind
	XBoundary  float64
	YBoundary  float64
	XMode      XMode
	YMode      YMode
	MaskBuffer Buffer // only valid when Mask == MaskRaster

	Algorithm resample.Algorithm
}

var (
	ErrSameBuffer       = errors.New("sample: source and target must be distinct buffers")
	ErrBadSubArea       = errors.New("sample: source sub-area out of range")
	ErrMaskSameAsSrcTgt = errors.New("sample: raster mask must be distinct from source and target")
	ErrMaskDimMismatch  = errors.New("sample: raster mask dimensions must match target")
	ErrMaskNotGray      = errors.New("sample: raster mask must be a 1-channel buffer")
	ErrBoundaryRange    = errors.New("sample: procedural mask boundary must be in [0,1]")
	ErrNonFinite        = errors.New("sample: non-finite projection or composite")
)

// box is an inclusive-exclusive integer rectangle [MinX,MaxX) x [MinY,MaxY).
type box struct {
	MinX, MinY, MaxX, MaxY int
}

func (b box) empty() bool { return b.MinX >= b.MaxX || b.MinY >= b.MaxY }

func (b box) intersect(o box) box {
	return box{
		MinX: max(b.MinX, o.MinX),
		MinY: max(b.MinY, o.MinY),
		MaxX: min(b.MaxX, o.MaxX),
		MaxY: min(b.MaxY, o.MaxY),
	}
}

// Validate checks the invariants the engine boundary must enforce before
// running: distinctness, sub-area range, mask buffer shape, and boundary
// range. A violation is returned as an error (Run returns it unchanged);
// the vm package reports it as a failure of the `sample` operator.
func Validate(p Params, srcIdx, targetIdx, maskIdx int) error {
	if srcIdx == targetIdx {
		return ErrSameBuffer
	}
	if p.HasSubArea {
		if p.SrcX < 0 || p.SrcX >= p.Src.W || p.SrcY < 0 || p.SrcY >= p.Src.H {
			return ErrBadSubArea
		}
		if p.SrcW < 1 || p.SrcH < 1 {
			return ErrBadSubArea
		}
		if p.SrcX+p.SrcW > p.Src.W || p.SrcY+p.SrcH > p.Src.H {
			return ErrBadSubArea
		}
	}
	if p.Mask == MaskProcedural {
		if p.XBoundary < 0 || p.XBoundary > 1 || p.YBoundary < 0 || p.YBoundary > 1 {
			return ErrBoundaryRange
		}
	}
	if p.Mask == MaskRaster {
		if maskIdx == srcIdx || maskIdx == targetIdx {
			return ErrMaskSameAsSrcTgt
		}
		if p.MaskBuffer.C != 1 {
			return ErrMaskNotGray
		}
		if p.MaskBuffer.W != p.Target.W || p.MaskBuffer.H != p.Target.H {
			return ErrMaskDimMismatch
		}
	}
	return nil
}

// sourceRect resolves the effective source rectangle, defaulting to the
// whole source buffer when no sub-area was configured.
func sourceRect(p Params) (x, y, w, h int) {
	if !p.HasSubArea {
		return 0, 0, p.Src.W, p.Src.H
	}
	return p.SrcX, p.SrcY, p.SrcW, p.SrcH
}

// boundingBox projects the four corners of the source rectangle through
// the forward matrix and returns the floor/ceil bounding box in target
// space.
func boundingBox(m f64.Aff3, sx, sy, sw, sh int) box {
	corners := [4][2]float64{
		{float64(sx), float64(sy)},
		{float64(sx + sw), float64(sy)},
		{float64(sx), float64(sy + sh)},
		{float64(sx + sw), float64(sy + sh)},
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, c := range corners {
		xp, yp := affine.Apply(m, c[0], c[1])
		minX, maxX = math.Min(minX, xp), math.Max(maxX, xp)
		minY, maxY = math.Min(minY, yp), math.Max(maxY, yp)
	}
	return box{
		MinX: int(math.Floor(minX)),
		MinY: int(math.Floor(minY)),
		MaxX: int(math.Ceil(maxX)),
		MaxY: int(math.Ceil(maxY)),
	}
}

// proceduralPivot computes the integer boundary pivot for one axis, per
// spec §4.G step 3.
func proceduralPivot(boundary float64, size int) int {
	if boundary == 0 {
		return 0
	}
	if boundary == 1 {
		return size - 1
	}
	return int(math.Floor(boundary * float64(size-1)))
}

// proceduralBox computes the kept region for a procedural mask, within the
// target rectangle [0,tw) x [0,th).
func proceduralBox(p Params, tw, th int) box {
	bx := proceduralPivot(p.XBoundary, tw)
	by := proceduralPivot(p.YBoundary, th)
	b := box{MinX: 0, MinY: 0, MaxX: tw, MaxY: th}
	switch p.XMode {
	case XLeft:
		b.MinX = bx
	case XRight:
		b.MaxX = bx + 1
	}
	switch p.YMode {
	case YAbove:
		b.MinY = by
	case YBelow:
		b.MaxY = by + 1
	}
	return b
}

// Run executes one sample call. srcIdx/targetIdx/maskIdx are only used for
// the distinctness checks in Validate; pass maskIdx = -1 when not raster
// masking (Validate skips that check unless Mask == MaskRaster).
func Run(p Params, srcIdx, targetIdx, maskIdx int) error {
	if err := Validate(p, srcIdx, targetIdx, maskIdx); err != nil {
		return err
	}

	sx, sy, sw, sh := sourceRect(p)

	tb := box{MinX: 0, MinY: 0, MaxX: p.Target.W, MaxY: p.Target.H}
	bb := boundingBox(p.Matrix, sx, sy, sw, sh).intersect(tb)
	if bb.empty() {
		return nil
	}

	if p.Mask == MaskProcedural {
		bb = bb.intersect(proceduralBox(p, p.Target.W, p.Target.H))
		if bb.empty() {
			return nil
		}
	}

	inv, err := affine.Invert(p.Matrix)
	if err != nil {
		return err
	}

	srcView := resample.Source{W: p.Src.W, H: p.Src.H, C: p.Src.C, Pix: p.Src.Pix}

	for y := bb.MinY; y < bb.MaxY; y++ {
		targetRow := p.Target.Pix[y*p.Target.W*p.Target.C : (y+1)*p.Target.W*p.Target.C]
		var maskRow []byte
		if p.Mask == MaskRaster {
			maskRow = p.MaskBuffer.Pix[y*p.MaskBuffer.W : (y+1)*p.MaskBuffer.W]
		}
		for x := bb.MinX; x < bb.MaxX; x++ {
			if p.Mask == MaskRaster {
				if maskRow[x] == 0 {
					continue
				}
			}

			sxp, syp := affine.Apply(inv, float64(x), float64(y))
			if math.IsNaN(sxp) || math.IsInf(sxp, 0) || math.IsNaN(syp) || math.IsInf(syp, 0) {
				return ErrNonFinite
			}

			if sxp < float64(sx) || sxp > float64(sx+sw) || syp < float64(sy) || syp > float64(sy+sh) {
				continue
			}

			res := resample.Sample(srcView, sxp, syp, p.Algorithm)

			if p.Mask == MaskRaster && maskRow[x] != 255 {
				scale := pixel.ToUnit(maskRow[x])
				res.A *= scale
				res.R *= scale
				res.G *= scale
				res.B *= scale
			}

			dstOff := x * p.Target.C
			tgt := pixel.PromoteToARGB(p.Target.C, targetRow[dstOff:dstOff+p.Target.C])

			out := pixel.ARGB{
				A: res.A + tgt.A*(1-res.A),
				R: res.R + tgt.R*(1-res.A),
				G: res.G + tgt.G*(1-res.A),
				B: res.B + tgt.B*(1-res.A),
			}
			if math.IsNaN(out.A) || math.IsInf(out.A, 0) || math.IsNaN(out.R) || math.IsInf(out.R, 0) ||
				math.IsNaN(out.G) || math.IsInf(out.G, 0) || math.IsNaN(out.B) || math.IsInf(out.B, 0) {
				return ErrNonFinite
			}

			pixel.WriteFromARGB(p.Target.C, targetRow[dstOff:dstOff+p.Target.C], out)
		}
	}
	return nil
}
