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

// Package affine implements the matrix register arena: a fixed-size table
// of 2-D affine transforms with lazily cached inverses, plus the affine
// algebra (multiplication, elementary transform pre-multiplication,
// inversion) used to build and invert them.
//
// A register stores its forward transform as a golang.org/x/image/math/f64
// Aff3, the same [6]float64 layout golang.org/x/image/draw uses for affine
// transforms:
//
//	x' = m[0]*x + m[1]*y + m[2]
//	y' = m[3]*x + m[4]*y + m[5]
package affine

import (
	"errors"
	"math"

	"golang.org/x/image/math/f64"
)

// ErrBadIndex is returned when a register index is out of range.
var ErrBadIndex = errors.New("affine: register index out of range")

// ErrAliasedResult is returned by Multiply when the destination register is
// the same as one of its operands.
var ErrAliasedResult = errors.New("affine: multiply result must not alias an operand")

// ErrSingular is returned (and is a programming-error fault per spec.md
// §7 tier 2 at the VM boundary — the provided operators never produce one)
// when an inverse is requested of a matrix with zero determinant.
var ErrSingular = errors.New("affine: matrix has zero determinant")

// ErrNonFinite is returned when a scale factor is not finite or is zero.
var ErrNonFinite = errors.New("affine: scale factors must be finite and non-zero")

// reg is one matrix register: a forward transform plus an optional cached
// inverse.
type reg struct {
	fwd       f64.Aff3
	inv       f64.Aff3
	invCached bool
}

// Identity is the identity affine transform.
var Identity = f64.Aff3{1, 0, 0, 0, 1, 0}

// Arena is a fixed-size table of matrix registers, all initialised to the
// identity with a cached identity inverse.
type Arena struct {
	regs []reg
}

// NewArena allocates an arena of n registers, all set to identity.
func NewArena(n int) *Arena {
	a := &Arena{regs: make([]reg, n)}
	for i := range a.regs {
		a.regs[i] = reg{fwd: Identity, inv: Identity, invCached: true}
	}
	return a
}

// Count returns the number of matrix registers.
func (a *Arena) Count() int { return len(a.regs) }

func (a *Arena) get(m int) (*reg, error) {
	if m < 0 || m >= len(a.regs) {
		return nil, ErrBadIndex
	}
	return &a.regs[m], nil
}

// Forward returns the forward transform of register m.
func (a *Arena) Forward(m int) (f64.Aff3, error) {
	r, err := a.get(m)
	if err != nil {
		return f64.Aff3{}, err
	}
	return r.fwd, nil
}

// Reset sets register m to the identity transform with a cached identity
// inverse.
func (a *Arena) Reset(m int) error {
	r, err := a.get(m)
	if err != nil {
		return err
	}
	r.fwd = Identity
	r.inv = Identity
	r.invCached = true
	return nil
}

// Multiply computes m <- a · b. m must not be the same register as a or b.
func (a *Arena) Multiply(m, x, y int) error {
	if m == x || m == y {
		return ErrAliasedResult
	}
	rx, err := a.get(x)
	if err != nil {
		return err
	}
	ry, err := a.get(y)
	if err != nil {
		return err
	}
	rm, err := a.get(m)
	if err != nil {
		return err
	}
	rm.fwd = Mul(rx.fwd, ry.fwd)
	rm.invCached = false
	return nil
}

// Translate pre-multiplies a translation by (tx, ty) onto register m:
// m <- Translate(tx,ty) · m. A no-op (skipped entirely) when both tx and ty
// are zero.
func (a *Arena) Translate(m int, tx, ty float64) error {
	if tx == 0 && ty == 0 {
		return nil
	}
	r, err := a.get(m)
	if err != nil {
		return err
	}
	t := f64.Aff3{1, 0, tx, 0, 1, ty}
	r.fwd = Mul(t, r.fwd)
	r.invCached = false
	return nil
}

// Scale pre-multiplies a scale by (sx, sy) onto register m. Both factors
// must be finite and non-zero. A no-op when both equal 1.
func (a *Arena) Scale(m int, sx, sy float64) error {
	if !isFiniteNonZero(sx) || !isFiniteNonZero(sy) {
		return ErrNonFinite
	}
	if sx == 1 && sy == 1 {
		return nil
	}
	r, err := a.get(m)
	if err != nil {
		return err
	}
	s := f64.Aff3{sx, 0, 0, 0, sy, 0}
	r.fwd = Mul(s, r.fwd)
	r.invCached = false
	return nil
}

// Rotate pre-multiplies a clockwise rotation by deg degrees (Y axis down)
// onto register m. deg is reduced toward zero modulo 360 first. A no-op
// when the reduced angle is zero.
func (a *Arena) Rotate(m int, deg float64) error {
	deg = math.Mod(deg, 360)
	if deg == 0 {
		return nil
	}
	r, err := a.get(m)
	if err != nil {
		return err
	}
	rad := deg * math.Pi / 180
	sin, cos := math.Sin(rad), math.Cos(rad)
	rot := f64.Aff3{cos, -sin, 0, sin, cos, 0}
	r.fwd = Mul(rot, r.fwd)
	r.invCached = false
	return nil
}

// EnsureInverse computes and caches the inverse of register m if not
// already cached. Returns ErrSingular if the determinant is zero.
func (a *Arena) EnsureInverse(m int) error {
	r, err := a.get(m)
	if err != nil {
		return err
	}
	if r.invCached {
		return nil
	}
	inv, err := Invert(r.fwd)
	if err != nil {
		return err
	}
	r.inv = inv
	r.invCached = true
	return nil
}

// Inverse returns the cached inverse of register m, computing it first if
// necessary.
func (a *Arena) Inverse(m int) (f64.Aff3, error) {
	if err := a.EnsureInverse(m); err != nil {
		return f64.Aff3{}, err
	}
	r, err := a.get(m)
	if err != nil {
		return f64.Aff3{}, err
	}
	return r.inv, nil
}

func isFiniteNonZero(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v != 0
}

// Mul computes the 3x3 product of two affine transforms (with implied
// bottom row [0 0 1]), returning m = a·b.
func Mul(a, b f64.Aff3) f64.Aff3 {
	return f64.Aff3{
		a[0]*b[0] + a[1]*b[3], a[0]*b[1] + a[1]*b[4], a[0]*b[2] + a[1]*b[5] + a[2],
		a[3]*b[0] + a[4]*b[3], a[3]*b[1] + a[4]*b[4], a[3]*b[2] + a[4]*b[5] + a[5],
	}
}

// Apply forward-maps a point (x, y) through m.
func Apply(m f64.Aff3, x, y float64) (xp, yp float64) {
	return m[0]*x + m[1]*y + m[2], m[3]*x + m[4]*y + m[5]
}

// Invert computes the inverse of an affine transform. Returns ErrSingular
// if the determinant is zero.
func Invert(m f64.Aff3) (f64.Aff3, error) {
	a, b, c, d, e, f := m[0], m[1], m[2], m[3], m[4], m[5]
	det := a*e - b*d
	if det == 0 {
		return f64.Aff3{}, ErrSingular
	}
	return f64.Aff3{
		e / det, -b / det, (b*f - c*e) / det,
		-d / det, a / det, (c*d - a*f) / det,
	}, nil
}
