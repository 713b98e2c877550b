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

// Package mjpeg reads and writes the MJPEG index file format: a flat
// sequence of big-endian signed 64-bit integers. The first is the frame
// count K (>= 0); the following K are strictly ascending, non-negative byte
// offsets of successive JPEG frames within a companion raw MJPEG stream.
//
// The binary layout mirrors lib/rac's fixed-width big/little-endian
// integer helpers (u48LE, u64LE in lib/rac/chunk_reader.go), but reuses
// encoding/binary directly since every field here is a full 64-bit word —
// rac hand-rolls its decode only for the 48-bit field that
// encoding/binary has no native width for.
package mjpeg

import (
	"encoding/binary"
	"errors"
	"io"
	"strings"
)

var (
	ErrNegative     = errors.New("mjpeg: index contains a negative value")
	ErrNotAscending = errors.New("mjpeg: frame offsets are not strictly ascending")
	ErrNoSuffix     = errors.New("mjpeg: index path has no file suffix")
	ErrLeadingDot   = errors.New("mjpeg: index path must not begin with '.'")
	ErrFrameIndex   = errors.New("Invalid frame index")
)

// Index is a parsed MJPEG index: Offsets[i] is the byte offset of frame i
// within the companion stream.
type Index struct {
	Offsets []int64
}

// Read parses an MJPEG index from r.
func Read(r io.Reader) (Index, error) {
	var kBuf [8]byte
	if _, err := io.ReadFull(r, kBuf[:]); err != nil {
		return Index{}, err
	}
	k := int64(binary.BigEndian.Uint64(kBuf[:]))
	if k < 0 {
		return Index{}, ErrNegative
	}
	offsets := make([]int64, k)
	var buf [8]byte
	prev := int64(-1)
	for i := int64(0); i < k; i++ {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return Index{}, err
		}
		v := int64(binary.BigEndian.Uint64(buf[:]))
		if v < 0 {
			return Index{}, ErrNegative
		}
		if v <= prev {
			return Index{}, ErrNotAscending
		}
		offsets[i] = v
		prev = v
	}
	return Index{Offsets: offsets}, nil
}

// Write serializes idx in the documented big-endian layout.
func Write(w io.Writer, idx Index) error {
	var kBuf [8]byte
	binary.BigEndian.PutUint64(kBuf[:], uint64(len(idx.Offsets)))
	if _, err := w.Write(kBuf[:]); err != nil {
		return err
	}
	prev := int64(-1)
	for _, v := range idx.Offsets {
		if v < 0 {
			return ErrNegative
		}
		if v <= prev {
			return ErrNotAscending
		}
		prev = v
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], uint64(v))
		if _, err := w.Write(buf[:]); err != nil {
			return err
		}
	}
	return nil
}

// FrameOffset returns the byte offset of frame f, or ErrFrameIndex if out
// of range.
func (idx Index) FrameOffset(f int) (int64, error) {
	if f < 0 || f >= len(idx.Offsets) {
		return 0, ErrFrameIndex
	}
	return idx.Offsets[f], nil
}

// StreamPath derives the companion MJPEG stream path from an index path by
// stripping the last '.'-suffix. The index path must contain a '.' (after
// any directory separator) and must not begin with '.'.
func StreamPath(indexPath string) (string, error) {
	slash := strings.LastIndexAny(indexPath, `/\`)
	base := indexPath[slash+1:]
	if strings.HasPrefix(base, ".") {
		return "", ErrLeadingDot
	}
	dot := strings.LastIndexByte(indexPath, '.')
	if dot < 0 || dot < slash {
		return "", ErrNoSuffix
	}
	return indexPath[:dot], nil
}
