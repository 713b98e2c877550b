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

// Package resample implements the three resampling kernels (nearest,
// bilinear, bicubic) used by the sample engine to read one premultiplied
// ARGB sample from a loaded source buffer at a real-valued point.
//
// The bicubic kernel's Catmull-Rom (b=0, c=0.5) coefficients are the ones
// golang.org/x/image/draw.CatmullRom uses internally (see
// script/draw-with-mask.go for the teacher's use of that scaler); here they
// are applied per-tap directly against premultiplied ARGB doubles rather
// than through x/image's image.Image-oriented Scale API, since the sample
// engine addresses a register-backed buffer, not an image.Image.
package resample

import (
	"math"

	"github.com/sparkle-vm/sparkle/lib/pixel"
)

// Algorithm selects a resampling kernel.
type Algorithm int

const (
	Nearest Algorithm = iota
	Bilinear
	Bicubic
)

// Source is the minimal view a kernel needs of a loaded buffer: its
// dimensions, channel count, and packed c-channel pixel bytes.
type Source struct {
	W, H, C int
	Pix     []byte
}

func (s Source) at(ix, iy int) pixel.ARGB {
	if ix < 0 {
		ix = 0
	}
	if ix > s.W-1 {
		ix = s.W - 1
	}
	if iy < 0 {
		iy = 0
	}
	if iy > s.H-1 {
		iy = s.H - 1
	}
	off := (iy*s.W + ix) * s.C
	return pixel.PromoteToARGB(s.C, s.Pix[off:off+s.C])
}

// Sample reads one premultiplied ARGB value from src at the real-valued
// point (px, py) using the given algorithm. The caller must have already
// validated that (px, py) lies within the externally-agreed source
// rectangle.
func Sample(src Source, px, py float64, alg Algorithm) pixel.ARGB {
	switch alg {
	case Nearest:
		return sampleNearest(src, px, py)
	case Bilinear:
		return sampleBilinear(src, px, py)
	case Bicubic:
		return sampleBicubic(src, px, py)
	}
	return sampleNearest(src, px, py)
}

func sampleNearest(src Source, px, py float64) pixel.ARGB {
	return src.at(int(math.Floor(px)), int(math.Floor(py)))
}

// centerPhase maps a real-valued coordinate to (i0, frac) such that pixel
// centres sit at half-integer positions: frac is the position of p within
// the half-open interval [i0+0.5, i0+1.5), in [0, 1).
func centerPhase(p float64) (i0 int, frac float64) {
	i0f := math.Floor(p)
	f := p - i0f - 0.5
	i0 = int(i0f)
	if f < 0 {
		f += 1
		i0--
	}
	return i0, f
}

func sampleBilinear(src Source, px, py float64) pixel.ARGB {
	ix0, fx := centerPhase(px)
	iy0, fy := centerPhase(py)
	c00 := src.at(ix0, iy0)
	c10 := src.at(ix0+1, iy0)
	c01 := src.at(ix0, iy0+1)
	c11 := src.at(ix0+1, iy0+1)

	w00 := (1 - fx) * (1 - fy)
	w10 := fx * (1 - fy)
	w01 := (1 - fx) * fy
	w11 := fx * fy

	return pixel.ARGB{
		A: c00.A*w00 + c10.A*w10 + c01.A*w01 + c11.A*w11,
		R: c00.R*w00 + c10.R*w10 + c01.R*w01 + c11.R*w11,
		G: c00.G*w00 + c10.G*w10 + c01.G*w01 + c11.G*w11,
		B: c00.B*w00 + c10.B*w10 + c01.B*w01 + c11.B*w11,
	}
}

// catmullRomWeights returns the four Catmull-Rom (b=0, c=0.5) tap weights
// for fractional offset t in [0,1) from the second of four consecutive
// samples.
func catmullRomWeights(t float64) [4]float64 {
	t2 := t * t
	t3 := t2 * t
	return [4]float64{
		-0.5*t3 + 1.0*t2 - 0.5*t,
		1.5*t3 - 2.5*t2 + 1.0,
		-1.5*t3 + 2.0*t2 + 0.5*t,
		0.5*t3 - 0.5*t2,
	}
}

func sampleBicubic(src Source, px, py float64) pixel.ARGB {
	ix0, fx := centerPhase(px)
	iy0, fy := centerPhase(py)

	wx := catmullRomWeights(fx)
	wy := catmullRomWeights(fy)

	var out pixel.ARGB
	for j := 0; j < 4; j++ {
		var rowA, rowR, rowG, rowB float64
		iy := iy0 - 1 + j
		for i := 0; i < 4; i++ {
			ix := ix0 - 1 + i
			c := src.at(ix, iy)
			rowA += c.A * wx[i]
			rowR += c.R * wx[i]
			rowG += c.G * wx[i]
			rowB += c.B * wx[i]
		}
		out.A += rowA * wy[j]
		out.R += rowR * wy[j]
		out.G += rowG * wy[j]
		out.B += rowB * wy[j]
	}
	return clamp01ARGB(out)
}

func clamp1(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clamp01ARGB(c pixel.ARGB) pixel.ARGB {
	return pixel.ARGB{A: clamp1(c.A), R: clamp1(c.R), G: clamp1(c.G), B: clamp1(c.B)}
}
