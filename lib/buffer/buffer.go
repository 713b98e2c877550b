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

// Package buffer implements the pixel buffer register arena: a fixed-size
// table of buffer descriptors with lazily allocated pixel storage.
//
// Scanlines are top-to-bottom, left-to-right, unpadded: w*h*c bytes in
// total. Channel orderings are 1=grey, 3=R,G,B, 4=A,R,G,B (straight alpha).
package buffer

import (
	"errors"

	"github.com/sparkle-vm/sparkle/lib/pixel"
)

const (
	// MinDim and MaxDim bound buffer width and height.
	MinDim = 1
	MaxDim = 16384
)

var (
	ErrBadIndex    = errors.New("buffer: register index out of range")
	ErrBadDim      = errors.New("buffer: width/height out of range")
	ErrBadChannels = errors.New("buffer: channel count must be 1, 3, or 4")
	ErrNotLoaded   = errors.New("buffer: register has no pixel storage")
	ErrDimMismatch = errors.New("buffer: decoded image dimensions do not match descriptor")
)

// Reg is one buffer register: its declared geometry plus optional pixel
// storage. Storage is nil exactly when the register is not loaded.
type Reg struct {
	W, H, C int
	Pix     []byte
}

// Loaded reports whether the register currently owns pixel storage.
func (r *Reg) Loaded() bool { return r.Pix != nil }

// Arena is a fixed-size table of buffer registers.
type Arena struct {
	regs []Reg
}

// NewArena allocates an arena of n unloaded 1x1x1 registers.
func NewArena(n int) *Arena {
	a := &Arena{regs: make([]Reg, n)}
	for i := range a.regs {
		a.regs[i] = Reg{W: 1, H: 1, C: 1}
	}
	return a
}

// Count returns the number of buffer registers.
func (a *Arena) Count() int { return len(a.regs) }

func (a *Arena) get(i int) (*Reg, error) {
	if i < 0 || i >= len(a.regs) {
		return nil, ErrBadIndex
	}
	return &a.regs[i], nil
}

// Dim returns the width and height of register i.
func (a *Arena) Dim(i int) (w, h int, err error) {
	r, err := a.get(i)
	if err != nil {
		return 0, 0, err
	}
	return r.W, r.H, nil
}

// Channels returns the channel count of register i.
func (a *Arena) Channels(i int) (int, error) {
	r, err := a.get(i)
	if err != nil {
		return 0, err
	}
	return r.C, nil
}

// IsLoaded reports whether register i currently has pixel storage.
func (a *Arena) IsLoaded(i int) (bool, error) {
	r, err := a.get(i)
	if err != nil {
		return false, err
	}
	return r.Loaded(), nil
}

func validDims(w, h, c int) error {
	if w < MinDim || w > MaxDim || h < MinDim || h > MaxDim {
		return ErrBadDim
	}
	if c != 1 && c != 3 && c != 4 {
		return ErrBadChannels
	}
	return nil
}

// Reset resizes register i to w x h x c, discarding any existing pixel
// storage. The register is left unloaded.
func (a *Arena) Reset(i, w, h, c int) error {
	if err := validDims(w, h, c); err != nil {
		return err
	}
	r, err := a.get(i)
	if err != nil {
		return err
	}
	r.W, r.H, r.C = w, h, c
	r.Pix = nil
	return nil
}

// Fill allocates (if needed) register i's pixel storage at its current
// geometry and sets every pixel to the given straight-alpha ARGB colour
// (components read/written according to the register's channel count),
// leaving it loaded.
func (a *Arena) Fill(i int, alpha, r_, g, b byte) error {
	r, err := a.get(i)
	if err != nil {
		return err
	}
	if r.Pix == nil {
		r.Pix = make([]byte, r.W*r.H*r.C)
	}
	var px [4]byte
	switch r.C {
	case 1:
		px[0] = pixel.DownGray(4, []byte{alpha, r_, g, b})
	case 3:
		px[0], px[1], px[2] = pixel.DownRGB(alpha, r_, g, b)
	case 4:
		px[0], px[1], px[2], px[3] = alpha, r_, g, b
	}
	stride := r.C
	for off := 0; off < len(r.Pix); off += stride {
		copy(r.Pix[off:off+stride], px[:stride])
	}
	return nil
}

// Scanline returns a slice view of pixel row y of register i. Register i
// must be loaded.
func (a *Arena) Scanline(i, y int) ([]byte, error) {
	r, err := a.get(i)
	if err != nil {
		return nil, err
	}
	if !r.Loaded() {
		return nil, ErrNotLoaded
	}
	stride := r.W * r.C
	return r.Pix[y*stride : (y+1)*stride], nil
}

// Get returns a pointer to register i's descriptor, for collaborators
// (codec bridge, sample engine, vm operators) that need its geometry and
// pixel storage directly. Writes through the pointer change the register.
func (a *Arena) Get(i int) (*Reg, error) {
	return a.get(i)
}

// AllocFor gives register i (already sized via Reset to w,h,c) fresh
// storage, replacing any existing storage; used by load paths that will
// immediately overwrite every byte. The region is zero-filled by Go's
// allocator.
func (a *Arena) AllocFor(i int) (*Reg, error) {
	r, err := a.get(i)
	if err != nil {
		return nil, err
	}
	r.Pix = make([]byte, r.W*r.H*r.C)
	return r, nil
}

// Unload releases register i's pixel storage, leaving its geometry intact
// but the register unloaded. Used to roll back a failed load.
func (a *Arena) Unload(i int) error {
	r, err := a.get(i)
	if err != nil {
		return err
	}
	r.Pix = nil
	return nil
}
