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

// Package pixel provides channel-count conversion and premultiplied-ARGB
// colour primitives shared by the buffer arena, the codec bridge, and the
// sampling engine.
//
// Channel orderings follow the buffer register convention: 1 channel is
// grey, 3 channels are R,G,B, and 4 channels are A,R,G,B with A
// non-premultiplied (0 means fully transparent).
package pixel

import "math"

// ARGB is a premultiplied alpha colour with components in [0, 1].
type ARGB struct {
	A, R, G, B float64
}

// Unpack splits a packed 0xAARRGGBB word into four bytes.
func Unpack(packed uint32) (a, r, g, b byte) {
	return byte(packed >> 24), byte(packed >> 16), byte(packed >> 8), byte(packed)
}

// Pack combines four bytes into a packed 0xAARRGGBB word.
func Pack(a, r, g, b byte) uint32 {
	return uint32(a)<<24 | uint32(r)<<16 | uint32(g)<<8 | uint32(b)
}

// clamp01 clamps a float64 to [0, 1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// ToByte quantizes a [0,1] double to a byte with floor(v*255) after
// saturating v to [0, 1].
func ToByte(v float64) byte {
	v = clamp01(v)
	return byte(math.Floor(v * 255))
}

// ToUnit converts a byte in [0,255] to a double in [0,1].
func ToUnit(b byte) float64 {
	return float64(b) / 255
}

// Premultiply converts straight-alpha ARGB bytes to premultiplied ARGB
// doubles in [0, 1].
func Premultiply(a, r, g, b byte) ARGB {
	fa := ToUnit(a)
	return ARGB{A: fa, R: ToUnit(r) * fa, G: ToUnit(g) * fa, B: ToUnit(b) * fa}
}

// Unpremultiply converts premultiplied ARGB doubles back to straight-alpha
// bytes. If alpha quantizes to 0 the colour channels are forced to 0,0,0
// rather than divided by a near-zero alpha.
func Unpremultiply(c ARGB) (a, r, g, b byte) {
	a = ToByte(c.A)
	if a == 0 {
		return 0, 0, 0, 0
	}
	fa := clamp01(c.A)
	r = ToByte(clamp01(c.R / fa))
	g = ToByte(clamp01(c.G / fa))
	b = ToByte(clamp01(c.B / fa))
	return a, r, g, b
}

// FlattenOverWhite alpha-composites straight-alpha ARGB bytes over an
// opaque white background, returning opaque R,G,B bytes.
func FlattenOverWhite(a, r, g, b byte) (rr, gg, bb byte) {
	fa := ToUnit(a)
	rr = ToByte(ToUnit(r)*fa + (1 - fa))
	gg = ToByte(ToUnit(g)*fa + (1 - fa))
	bb = ToByte(ToUnit(b)*fa + (1 - fa))
	return rr, gg, bb
}

// lumaWeights are the standard Rec. 709 luma coefficients.
const (
	lumaR = 0.2126
	lumaG = 0.7152
	lumaB = 0.0722
)

// DownGray reduces an arbitrary-channel pixel (read as up to 4 bytes,
// channel count c) to a single grey byte, flattening over white first if
// the source carries alpha.
func DownGray(c int, px []byte) byte {
	var r, g, b byte
	switch c {
	case 1:
		return px[0]
	case 3:
		r, g, b = px[0], px[1], px[2]
	case 4:
		r, g, b = FlattenOverWhite(px[0], px[1], px[2], px[3])
	}
	luma := lumaR*ToUnit(r) + lumaG*ToUnit(g) + lumaB*ToUnit(b)
	return ToByte(luma)
}

// DownRGB reduces a 4-channel A,R,G,B pixel to opaque 3-channel R,G,B by
// alpha-compositing over white.
func DownRGB(a, r, g, b byte) (rr, gg, bb byte) {
	return FlattenOverWhite(a, r, g, b)
}

// UpsampleGrayToRGB replicates a grey byte into R,G,B.
func UpsampleGrayToRGB(g byte) (r, gg, b byte) {
	return g, g, g
}

// UpsampleGrayToARGB replicates a grey byte into opaque A,R,G,B.
func UpsampleGrayToARGB(g byte) (a, r, gg, b byte) {
	return 255, g, g, g
}

// UpsampleRGBToARGB extends an opaque R,G,B pixel to A,R,G,B with A=255.
func UpsampleRGBToARGB(r, g, b byte) (a, rr, gg, bb byte) {
	return 255, r, g, b
}

// Convert reinterprets a pixel of srcC channels (src) as one of dstC
// channels, writing the result into dst (which must have room for dstC
// bytes). It handles all of {1,3,4} x {1,3,4}.
func Convert(srcC int, src []byte, dstC int, dst []byte) {
	if srcC == dstC {
		copy(dst[:dstC], src[:srcC])
		return
	}
	switch {
	case srcC == 1 && dstC == 3:
		dst[0], dst[1], dst[2] = UpsampleGrayToRGB(src[0])
	case srcC == 1 && dstC == 4:
		dst[0], dst[1], dst[2], dst[3] = UpsampleGrayToARGB(src[0])
	case srcC == 3 && dstC == 1:
		dst[0] = DownGray(3, src)
	case srcC == 3 && dstC == 4:
		dst[0], dst[1], dst[2], dst[3] = UpsampleRGBToARGB(src[0], src[1], src[2])
	case srcC == 4 && dstC == 1:
		dst[0] = DownGray(4, src)
	case srcC == 4 && dstC == 3:
		dst[0], dst[1], dst[2] = DownRGB(src[0], src[1], src[2], src[3])
	}
}

// PromoteToARGB reads a pixel of c channels from px (starting at offset 0)
// and promotes it to premultiplied ARGB. For 1- and 3-channel pixels alpha
// is treated as fully opaque.
func PromoteToARGB(c int, px []byte) ARGB {
	switch c {
	case 1:
		return Premultiply(255, px[0], px[0], px[0])
	case 3:
		return Premultiply(255, px[0], px[1], px[2])
	case 4:
		return Premultiply(px[0], px[1], px[2], px[3])
	}
	return ARGB{}
}

// WriteFromARGB writes a premultiplied ARGB colour back into a c-channel
// pixel at dst, following the channel-specific write-back rules: 1-channel
// flattens to grey, 3-channel drops alpha, 4-channel unpremultiplies (and
// forces full transparency to (0,0,0,0)).
func WriteFromARGB(c int, dst []byte, col ARGB) {
	switch c {
	case 1:
		a, r, g, b := Unpremultiply(col)
		dst[0] = DownGray(4, []byte{a, r, g, b})
	case 3:
		dst[0] = ToByte(col.R)
		dst[1] = ToByte(col.G)
		dst[2] = ToByte(col.B)
	case 4:
		a, r, g, b := Unpremultiply(col)
		dst[0], dst[1], dst[2], dst[3] = a, r, g, b
	}
}
