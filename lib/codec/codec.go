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

// Package codec bridges the buffer arena to PNG and JPEG byte streams. It
// owns only the (w, h, channels, scanline) <-> file conversion and the
// channel-count conversion policy (§4.A); byte-for-byte PNG/JPEG encoding
// is delegated to the standard library, the same division of labour
// lib/nie.go uses for its own (trivial) format around the standard
// image.Image interfaces.
package codec

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"

	"github.com/sparkle-vm/sparkle/lib/pixel"
)

// DownConvertMode selects the PNG colour model used on encode.
type DownConvertMode int

const (
	DownConvertNone DownConvertMode = iota
	DownConvertRGB
	DownConvertGray
)

var (
	ErrDimMismatch = errors.New("codec: decoded image dimensions do not match buffer descriptor")
)

// Decoded holds a decoded image's geometry and its pixels, already
// converted to the requested channel count (1, 3, or 4).
type Decoded struct {
	W, H, C int
	Pix     []byte
}

// decodeToImage reads and decodes a standard Go image from r.
func decodeToImage(r io.Reader) (image.Image, error) {
	m, _, err := image.Decode(r)
	return m, err
}

// imageToPix converts a decoded image.Image to dstC-channel packed bytes.
//
// image.Image's generic At(x,y).RGBA() accessor always returns 16-bit
// premultiplied components, so recovering straight-alpha bytes from it
// requires an unpremultiply division that is lossy for any 0 < A < 255
// (straightAlphaBytes below). *image.NRGBA and *image.Gray already store
// straight-alpha (respectively alpha-free) bytes directly, so those two
// cases copy .Pix verbatim instead of round-tripping through RGBA().
func imageToPix(m image.Image, dstC int) Decoded {
	switch src := m.(type) {
	case *image.NRGBA:
		return nrgbaToPix(src, dstC)
	case *image.Gray:
		return grayToPix(src, dstC)
	}

	b := m.Bounds()
	w, h := b.Dx(), b.Dy()
	pix := make([]byte, w*h*dstC)
	src := make([]byte, 4)
	dst := make([]byte, dstC)
	off := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, a := m.At(b.Min.X+x, b.Min.Y+y).RGBA()
			src[0], src[1], src[2], src[3] = straightAlphaBytes(r, g, bl, a)
			pixel.Convert(4, src, dstC, dst)
			copy(pix[off:off+dstC], dst)
			off += dstC
		}
	}
	return Decoded{W: w, H: h, C: dstC, Pix: pix}
}

// nrgbaToPix reads m's already-straight-alpha bytes directly, reordering
// its R,G,B,A layout to the buffer register's A,R,G,B convention.
func nrgbaToPix(m *image.NRGBA, dstC int) Decoded {
	b := m.Bounds()
	w, h := b.Dx(), b.Dy()
	pix := make([]byte, w*h*dstC)
	src := make([]byte, 4)
	dst := make([]byte, dstC)
	off := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := m.PixOffset(b.Min.X+x, b.Min.Y+y)
			r, g, bl, a := m.Pix[i], m.Pix[i+1], m.Pix[i+2], m.Pix[i+3]
			src[0], src[1], src[2], src[3] = a, r, g, bl
			pixel.Convert(4, src, dstC, dst)
			copy(pix[off:off+dstC], dst)
			off += dstC
		}
	}
	return Decoded{W: w, H: h, C: dstC, Pix: pix}
}

// grayToPix reads m's grey bytes directly; there is no alpha to lose
// precision on, but this still avoids a pointless RGBA()-and-back trip.
func grayToPix(m *image.Gray, dstC int) Decoded {
	b := m.Bounds()
	w, h := b.Dx(), b.Dy()
	pix := make([]byte, w*h*dstC)
	dst := make([]byte, dstC)
	off := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := m.PixOffset(b.Min.X+x, b.Min.Y+y)
			pixel.Convert(1, m.Pix[i:i+1], dstC, dst)
			copy(pix[off:off+dstC], dst)
			off += dstC
		}
	}
	return Decoded{W: w, H: h, C: dstC, Pix: pix}
}

// straightAlphaBytes converts color.Color's premultiplied 16-bit channels
// (as returned by RGBA()) to straight-alpha A,R,G,B bytes.
func straightAlphaBytes(r, g, b, a uint32) (ar, rr, gg, bb byte) {
	if a == 0 {
		return 0, 0, 0, 0
	}
	ar = byte(a >> 8)
	rr = byte(uint32(r) * 255 / a)
	gg = byte(uint32(g) * 255 / a)
	bb = byte(uint32(b) * 255 / a)
	return ar, rr, gg, bb
}

// DecodePNG decodes a PNG stream from r, converting it to dstC channels
// (1, 3, or 4).
func DecodePNG(r io.Reader, dstC int) (Decoded, error) {
	m, err := decodeToImage(r)
	if err != nil {
		return Decoded{}, err
	}
	return imageToPix(m, dstC), nil
}

// DecodeJPEG decodes a JPEG stream from r, converting it to dstC channels.
// JPEG carries no alpha; a dstC of 4 synthesizes an opaque alpha channel.
func DecodeJPEG(r io.Reader, dstC int) (Decoded, error) {
	m, err := jpeg.Decode(r)
	if err != nil {
		return Decoded{}, err
	}
	return imageToPix(m, dstC), nil
}

// pixToImage builds a standard image.Image over the given c-channel pixel
// buffer, for handing to the standard encoders.
func pixToImage(w, h, c int, pix []byte) image.Image {
	switch c {
	case 1:
		return &image.Gray{Pix: pix, Stride: w, Rect: image.Rect(0, 0, w, h)}
	case 3:
		rgba := image.NewRGBA(image.Rect(0, 0, w, h))
		for i, o := 0, 0; i < w*h; i, o = i+1, o+3 {
			rgba.Pix[4*i], rgba.Pix[4*i+1], rgba.Pix[4*i+2], rgba.Pix[4*i+3] =
				pix[o], pix[o+1], pix[o+2], 255
		}
		return rgba
	case 4:
		nrgba := image.NewNRGBA(image.Rect(0, 0, w, h))
		for i, o := 0, 0; i < w*h; i, o = i+1, o+4 {
			a, r, g, b := pix[o], pix[o+1], pix[o+2], pix[o+3]
			nrgba.Pix[4*i], nrgba.Pix[4*i+1], nrgba.Pix[4*i+2], nrgba.Pix[4*i+3] =
				r, g, b, a
		}
		return nrgba
	}
	return nil
}

// EncodePNG encodes a c-channel pixel buffer as PNG to w, applying mode's
// down-conversion (NONE keeps the buffer's own channel count; RGB/GRAY
// force a 3- or 1-channel encoding regardless of the buffer's channels).
func EncodePNG(w io.Writer, width, height, c int, pix []byte, mode DownConvertMode) error {
	switch mode {
	case DownConvertRGB:
		if c != 3 {
			converted := make([]byte, width*height*3)
			for i, o := 0, 0; i < width*height; i, o = i+1, o+c {
				pixel.Convert(c, pix[o:o+c], 3, converted[i*3:i*3+3])
			}
			pix, c = converted, 3
		}
	case DownConvertGray:
		if c != 1 {
			converted := make([]byte, width*height)
			for i, o := 0, 0; i < width*height; i, o = i+1, o+c {
				converted[i] = pixel.DownGray(c, pix[o:o+c])
			}
			pix, c = converted, 1
		}
	}
	return png.Encode(w, pixToImage(width, height, c, pix))
}

// EncodeJPEG encodes a c-channel pixel buffer as JPEG to w at the given
// quality (clamped to [0,100]). A 4-channel buffer is first flattened to
// opaque RGB via downRGB, since JPEG has no alpha channel.
func EncodeJPEG(w io.Writer, width, height, c int, pix []byte, quality int) error {
	if quality < 0 {
		quality = 0
	}
	if quality > 100 {
		quality = 100
	}
	if c == 4 {
		flat := make([]byte, width*height*3)
		for i, o := 0, 0; i < width*height; i, o = i+1, o+4 {
			flat[i*3], flat[i*3+1], flat[i*3+2] = pixel.DownRGB(pix[o], pix[o+1], pix[o+2], pix[o+3])
		}
		pix, c = flat, 3
	}
	return jpeg.Encode(w, pixToImage(width, height, c, pix), &jpeg.Options{Quality: quality})
}

// AppendJPEG concatenates a fresh JPEG stream to path, creating the file if
// absent, for building raw MJPEG sequences by successive appends.
func AppendJPEG(path string, width, height, c int, pix []byte, quality int) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	var buf bytes.Buffer
	if err := EncodeJPEG(&buf, width, height, c, pix, quality); err != nil {
		return err
	}
	_, err = f.Write(buf.Bytes())
	return err
}

// OverwriteJPEG replaces any existing file at path with a single encoded
// JPEG stream.
func OverwriteJPEG(path string, width, height, c int, pix []byte, quality int) error {
	f, err := os.OpenFile(path, os.O_TRUNC|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	return EncodeJPEG(f, width, height, c, pix, quality)
}

// ReadFrameAt decodes one JPEG frame at byte offset off within the file at
// streamPath.
func ReadFrameAt(streamPath string, off int64, dstC int) (Decoded, error) {
	f, err := os.Open(streamPath)
	if err != nil {
		return Decoded{}, err
	}
	defer f.Close()
	if _, err := f.Seek(off, io.SeekStart); err != nil {
		return Decoded{}, err
	}
	return DecodeJPEG(f, dstC)
}

// ReadPNGFile decodes the PNG file at path.
func ReadPNGFile(path string, dstC int) (Decoded, error) {
	f, err := os.Open(path)
	if err != nil {
		return Decoded{}, err
	}
	defer f.Close()
	return DecodePNG(f, dstC)
}

// ReadJPEGFile decodes the JPEG file at path.
func ReadJPEGFile(path string, dstC int) (Decoded, error) {
	f, err := os.Open(path)
	if err != nil {
		return Decoded{}, err
	}
	defer f.Close()
	return DecodeJPEG(f, dstC)
}

// WritePNGFile encodes a buffer to a PNG file at path.
func WritePNGFile(path string, width, height, c int, pix []byte, mode DownConvertMode) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return EncodePNG(f, width, height, c, pix, mode)
}
