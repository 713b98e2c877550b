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

import (
	"errors"
	"fmt"
	"os"

	"github.com/sparkle-vm/sparkle/lib/buffer"
	"github.com/sparkle-vm/sparkle/lib/codec"
	"github.com/sparkle-vm/sparkle/lib/mjpeg"
	"github.com/sparkle-vm/sparkle/lib/resample"
	"github.com/sparkle-vm/sparkle/lib/sample"
)

// OpFunc is one operator: it reads its arguments off v.Stack, mutates the
// VM, and reports success or failure. moduleName and line identify the
// script location the driver is currently executing, for diagnostics.
//
// This mirrors cmd/wuffs/main.go's {name string; do func(...) error}
// command table — a name-to-function registry is the idiomatic Go shape
// for what the source represents as a parallel name/function-pointer
// array (spec.md design notes, §9).
type OpFunc func(v *VM, moduleName string, line int) error

// OpTable is the operator registry: name -> function. Keys are unique;
// populated once at VM construction.
type OpTable map[string]OpFunc

var (
	ErrUnknownOperator   = errors.New("vm: unknown operator")
	ErrByteRange         = errors.New("vm: value out of range [0,255]")
	ErrSampleUnconfigured = errors.New("vm: sample source, target, or matrix not configured")
	ErrSubAreaStale      = errors.New("vm: source dimensions changed since sample_source_area was set")
)

// sampleConfig is the script layer's sticky sample configuration (spec.md
// §4.G "State machine"): it is assembled into a fresh lib/sample.Params on
// every `sample` call, and the engine itself stays stateless between calls.
type sampleConfig struct {
	srcIdx, targetIdx, matrixIdx int

	hasSubArea                     bool
	subX, subY, subW, subH         int
	capturedSrcW, capturedSrcH     int

	mask      sample.MaskKind
	xBoundary float64
	yBoundary float64
	xMode     sample.XMode
	yMode     sample.YMode
	maskIdx   int

	algorithm resample.Algorithm
}

func newSampleConfig() sampleConfig {
	return sampleConfig{srcIdx: -1, targetIdx: -1, matrixIdx: -1, maskIdx: -1}
}

func toByte(v int32) (byte, error) {
	if v < 0 || v > 255 {
		return 0, ErrByteRange
	}
	return byte(v), nil
}

// --- basic I/O -------------------------------------------------------

func opPrint(v *VM, module string, line int) error {
	s, err := v.Stack.PopString()
	if err != nil {
		return v.fail(err)
	}
	fmt.Fprintln(os.Stdout, s)
	return nil
}

// --- buffer operators --------------------------------------------------

func opReset(v *VM, module string, line int) error {
	c, err := v.Stack.PopInt()
	if err != nil {
		return v.fail(err)
	}
	h, err := v.Stack.PopInt()
	if err != nil {
		return v.fail(err)
	}
	w, err := v.Stack.PopInt()
	if err != nil {
		return v.fail(err)
	}
	i, err := v.Stack.PopInt()
	if err != nil {
		return v.fail(err)
	}
	if err := v.Buffers.Reset(int(i), int(w), int(h), int(c)); err != nil {
		return v.fail(err)
	}
	return nil
}

func opFill(v *VM, module string, line int) error {
	bv, err := v.Stack.PopInt()
	if err != nil {
		return v.fail(err)
	}
	gv, err := v.Stack.PopInt()
	if err != nil {
		return v.fail(err)
	}
	rv, err := v.Stack.PopInt()
	if err != nil {
		return v.fail(err)
	}
	av, err := v.Stack.PopInt()
	if err != nil {
		return v.fail(err)
	}
	i, err := v.Stack.PopInt()
	if err != nil {
		return v.fail(err)
	}
	a, err := toByte(av)
	if err != nil {
		return v.fail(err)
	}
	r, err := toByte(rv)
	if err != nil {
		return v.fail(err)
	}
	g, err := toByte(gv)
	if err != nil {
		return v.fail(err)
	}
	b, err := toByte(bv)
	if err != nil {
		return v.fail(err)
	}
	if err := v.Buffers.Fill(int(i), a, r, g, b); err != nil {
		return v.fail(err)
	}
	return nil
}

// loadInto decodes bytes into buffer i via decode, requiring the decoded
// dimensions to match the register's declared geometry exactly. On any
// failure the register is left unloaded.
func (v *VM) loadInto(i int, decode func(dstC int) (codec.Decoded, error)) error {
	reg, err := v.Buffers.Get(i)
	if err != nil {
		return err
	}
	d, err := decode(reg.C)
	if err != nil {
		v.Buffers.Unload(i)
		return err
	}
	if d.W != reg.W || d.H != reg.H {
		v.Buffers.Unload(i)
		return buffer.ErrDimMismatch
	}
	reg.Pix = d.Pix
	return nil
}

func opLoadPNG(v *VM, module string, line int) error {
	path, err := v.Stack.PopString()
	if err != nil {
		return v.fail(err)
	}
	i, err := v.Stack.PopInt()
	if err != nil {
		return v.fail(err)
	}
	if err := v.loadInto(int(i), func(dstC int) (codec.Decoded, error) {
		return codec.ReadPNGFile(path, dstC)
	}); err != nil {
		return v.fail(err)
	}
	return nil
}

func opLoadJPEG(v *VM, module string, line int) error {
	path, err := v.Stack.PopString()
	if err != nil {
		return v.fail(err)
	}
	i, err := v.Stack.PopInt()
	if err != nil {
		return v.fail(err)
	}
	if err := v.loadInto(int(i), func(dstC int) (codec.Decoded, error) {
		return codec.ReadJPEGFile(path, dstC)
	}); err != nil {
		return v.fail(err)
	}
	return nil
}

// LoadFrame decodes frame f of the MJPEG sequence indexed by indexPath
// into buffer i. On any failure the register is left unloaded.
func (v *VM) LoadFrame(i, f int, indexPath string) error {
	unload := func(err error) error {
		v.Buffers.Unload(i)
		return err
	}
	idxFile, err := os.Open(indexPath)
	if err != nil {
		return unload(err)
	}
	defer idxFile.Close()
	idx, err := mjpeg.Read(idxFile)
	if err != nil {
		return unload(err)
	}
	off, err := idx.FrameOffset(f)
	if err != nil {
		return unload(err)
	}
	streamPath, err := mjpeg.StreamPath(indexPath)
	if err != nil {
		return unload(err)
	}
	return v.loadInto(i, func(dstC int) (codec.Decoded, error) {
		return codec.ReadFrameAt(streamPath, off, dstC)
	})
}

func opLoadFrame(v *VM, module string, line int) error {
	path, err := v.Stack.PopString()
	if err != nil {
		return v.fail(err)
	}
	f, err := v.Stack.PopInt()
	if err != nil {
		return v.fail(err)
	}
	i, err := v.Stack.PopInt()
	if err != nil {
		return v.fail(err)
	}
	if err := v.LoadFrame(int(i), int(f), path); err != nil {
		return v.fail(err)
	}
	return nil
}

func opStorePNG(v *VM, module string, line int) error {
	path, err := v.Stack.PopString()
	if err != nil {
		return v.fail(err)
	}
	i, err := v.Stack.PopInt()
	if err != nil {
		return v.fail(err)
	}
	reg, err := v.Buffers.Get(int(i))
	if err != nil {
		return v.fail(err)
	}
	if !reg.Loaded() {
		return v.fail(buffer.ErrNotLoaded)
	}
	if err := codec.WritePNGFile(path, reg.W, reg.H, reg.C, reg.Pix, codec.DownConvertNone); err != nil {
		return v.fail(err)
	}
	return nil
}

// StoreJPEG encodes buffer i as JPEG at path, either overwriting (append
// = false, the `store_jpeg` operator) or appending (append = true, the
// `store_mjpg` operator, used to build a raw MJPEG stream).
func (v *VM) StoreJPEG(i int, path string, append bool, quality int) error {
	reg, err := v.Buffers.Get(i)
	if err != nil {
		return err
	}
	if !reg.Loaded() {
		return buffer.ErrNotLoaded
	}
	if append {
		return codec.AppendJPEG(path, reg.W, reg.H, reg.C, reg.Pix, quality)
	}
	return codec.OverwriteJPEG(path, reg.W, reg.H, reg.C, reg.Pix, quality)
}

func popStoreJPEGArgs(v *VM) (i int, path string, q int, err error) {
	qv, err := v.Stack.PopInt()
	if err != nil {
		return 0, "", 0, err
	}
	p, err := v.Stack.PopString()
	if err != nil {
		return 0, "", 0, err
	}
	iv, err := v.Stack.PopInt()
	if err != nil {
		return 0, "", 0, err
	}
	return int(iv), p, int(qv), nil
}

func opStoreJPEG(v *VM, module string, line int) error {
	i, path, q, err := popStoreJPEGArgs(v)
	if err != nil {
		return v.fail(err)
	}
	if err := v.StoreJPEG(i, path, false, q); err != nil {
		return v.fail(err)
	}
	return nil
}

func opStoreMJPG(v *VM, module string, line int) error {
	i, path, q, err := popStoreJPEGArgs(v)
	if err != nil {
		return v.fail(err)
	}
	if err := v.StoreJPEG(i, path, true, q); err != nil {
		return v.fail(err)
	}
	return nil
}

// --- matrix operators ----------------------------------------------------

func opIdentity(v *VM, module string, line int) error {
	m, err := v.Stack.PopInt()
	if err != nil {
		return v.fail(err)
	}
	if err := v.Matrices.Reset(int(m)); err != nil {
		return v.fail(err)
	}
	return nil
}

func opMultiply(v *VM, module string, line int) error {
	b, err := v.Stack.PopInt()
	if err != nil {
		return v.fail(err)
	}
	a, err := v.Stack.PopInt()
	if err != nil {
		return v.fail(err)
	}
	m, err := v.Stack.PopInt()
	if err != nil {
		return v.fail(err)
	}
	if err := v.Matrices.Multiply(int(m), int(a), int(b)); err != nil {
		return v.fail(err)
	}
	return nil
}

func opTranslate(v *VM, module string, line int) error {
	fy, err := v.Stack.PopFloat()
	if err != nil {
		return v.fail(err)
	}
	fx, err := v.Stack.PopFloat()
	if err != nil {
		return v.fail(err)
	}
	m, err := v.Stack.PopInt()
	if err != nil {
		return v.fail(err)
	}
	if err := v.Matrices.Translate(int(m), fx, fy); err != nil {
		return v.fail(err)
	}
	return nil
}

func opScale(v *VM, module string, line int) error {
	fy, err := v.Stack.PopFloat()
	if err != nil {
		return v.fail(err)
	}
	fx, err := v.Stack.PopFloat()
	if err != nil {
		return v.fail(err)
	}
	m, err := v.Stack.PopInt()
	if err != nil {
		return v.fail(err)
	}
	if err := v.Matrices.Scale(int(m), fx, fy); err != nil {
		return v.fail(err)
	}
	return nil
}

func opRotate(v *VM, module string, line int) error {
	deg, err := v.Stack.PopFloat()
	if err != nil {
		return v.fail(err)
	}
	m, err := v.Stack.PopInt()
	if err != nil {
		return v.fail(err)
	}
	if err := v.Matrices.Rotate(int(m), deg); err != nil {
		return v.fail(err)
	}
	return nil
}

// --- sample configuration operators --------------------------------------

func opSampleSource(v *VM, module string, line int) error {
	i, err := v.Stack.PopInt()
	if err != nil {
		return v.fail(err)
	}
	v.sample.srcIdx = int(i)
	v.sample.hasSubArea = false
	return nil
}

func opSampleSourceArea(v *VM, module string, line int) error {
	h, err := v.Stack.PopInt()
	if err != nil {
		return v.fail(err)
	}
	w, err := v.Stack.PopInt()
	if err != nil {
		return v.fail(err)
	}
	y, err := v.Stack.PopInt()
	if err != nil {
		return v.fail(err)
	}
	x, err := v.Stack.PopInt()
	if err != nil {
		return v.fail(err)
	}
	i, err := v.Stack.PopInt()
	if err != nil {
		return v.fail(err)
	}
	reg, err := v.Buffers.Get(int(i))
	if err != nil {
		return v.fail(err)
	}
	v.sample.srcIdx = int(i)
	v.sample.hasSubArea = true
	v.sample.subX, v.sample.subY, v.sample.subW, v.sample.subH = int(x), int(y), int(w), int(h)
	v.sample.capturedSrcW, v.sample.capturedSrcH = reg.W, reg.H
	return nil
}

func opSampleTarget(v *VM, module string, line int) error {
	i, err := v.Stack.PopInt()
	if err != nil {
		return v.fail(err)
	}
	v.sample.targetIdx = int(i)
	return nil
}

func opSampleMatrix(v *VM, module string, line int) error {
	m, err := v.Stack.PopInt()
	if err != nil {
		return v.fail(err)
	}
	v.sample.matrixIdx = int(m)
	return nil
}

func opSampleMaskRaster(v *VM, module string, line int) error {
	i, err := v.Stack.PopInt()
	if err != nil {
		return v.fail(err)
	}
	v.sample.maskIdx = int(i)
	v.sample.mask = sample.MaskRaster
	return nil
}

func opSampleMaskX(v *VM, module string, line int) error {
	val, err := v.Stack.PopFloat()
	if err != nil {
		return v.fail(err)
	}
	if val < 0 || val > 1 {
		return v.fail(sample.ErrBoundaryRange)
	}
	v.sample.xBoundary = val
	return nil
}

func opSampleMaskY(v *VM, module string, line int) error {
	val, err := v.Stack.PopFloat()
	if err != nil {
		return v.fail(err)
	}
	if val < 0 || val > 1 {
		return v.fail(sample.ErrBoundaryRange)
	}
	v.sample.yBoundary = val
	return nil
}

func opSampleMaskNone(v *VM, module string, line int) error {
	v.sample.mask = sample.MaskNone
	return nil
}

func opSampleMaskLeft(v *VM, module string, line int) error {
	v.sample.mask = sample.MaskProcedural
	v.sample.xMode = sample.XLeft
	return nil
}

func opSampleMaskRight(v *VM, module string, line int) error {
	v.sample.mask = sample.MaskProcedural
	v.sample.xMode = sample.XRight
	return nil
}

func opSampleMaskAbove(v *VM, module string, line int) error {
	v.sample.mask = sample.MaskProcedural
	v.sample.yMode = sample.YAbove
	return nil
}

func opSampleMaskBelow(v *VM, module string, line int) error {
	v.sample.mask = sample.MaskProcedural
	v.sample.yMode = sample.YBelow
	return nil
}

func opSampleNearest(v *VM, module string, line int) error {
	v.sample.algorithm = resample.Nearest
	return nil
}

func opSampleBilinear(v *VM, module string, line int) error {
	v.sample.algorithm = resample.Bilinear
	return nil
}

func opSampleBicubic(v *VM, module string, line int) error {
	v.sample.algorithm = resample.Bicubic
	return nil
}

// --- the sample operator itself -------------------------------------

func (v *VM) assembleSampleParams() (sample.Params, int, int, int, error) {
	cfg := v.sample
	if cfg.srcIdx < 0 || cfg.targetIdx < 0 || cfg.matrixIdx < 0 {
		return sample.Params{}, 0, 0, 0, ErrSampleUnconfigured
	}
	srcReg, err := v.Buffers.Get(cfg.srcIdx)
	if err != nil {
		return sample.Params{}, 0, 0, 0, err
	}
	targetReg, err := v.Buffers.Get(cfg.targetIdx)
	if err != nil {
		return sample.Params{}, 0, 0, 0, err
	}
	if !srcReg.Loaded() || !targetReg.Loaded() {
		return sample.Params{}, 0, 0, 0, buffer.ErrNotLoaded
	}
	if cfg.hasSubArea && (srcReg.W != cfg.capturedSrcW || srcReg.H != cfg.capturedSrcH) {
		return sample.Params{}, 0, 0, 0, ErrSubAreaStale
	}

	fwd, err := v.Matrices.Forward(cfg.matrixIdx)
	if err != nil {
		return sample.Params{}, 0, 0, 0, err
	}

	p := sample.Params{
		Src:         sample.Buffer{W: srcReg.W, H: srcReg.H, C: srcReg.C, Pix: srcReg.Pix},
		Target:      sample.Buffer{W: targetReg.W, H: targetReg.H, C: targetReg.C, Pix: targetReg.Pix},
		HasSubArea:  cfg.hasSubArea,
		SrcX:        cfg.subX,
		SrcY:        cfg.subY,
		SrcW:        cfg.subW,
		SrcH:        cfg.subH,
		Matrix:      fwd,
		Mask:        cfg.mask,
		XBoundary:   cfg.xBoundary,
		YBoundary:   cfg.yBoundary,
		XMode:       cfg.xMode,
		YMode:       cfg.yMode,
		Algorithm:   cfg.algorithm,
	}
	maskIdx := -1
	if cfg.mask == sample.MaskRaster {
		maskIdx = cfg.maskIdx
		maskReg, err := v.Buffers.Get(cfg.maskIdx)
		if err != nil {
			return sample.Params{}, 0, 0, 0, err
		}
		if !maskReg.Loaded() {
			return sample.Params{}, 0, 0, 0, buffer.ErrNotLoaded
		}
		p.MaskBuffer = sample.Buffer{W: maskReg.W, H: maskReg.H, C: maskReg.C, Pix: maskReg.Pix}
	}
	return p, cfg.srcIdx, cfg.targetIdx, maskIdx, nil
}

func opSample(v *VM, module string, line int) error {
	p, srcIdx, targetIdx, maskIdx, err := v.assembleSampleParams()
	if err != nil {
		return v.fail(err)
	}
	if err := sample.Run(p, srcIdx, targetIdx, maskIdx); err != nil {
		return v.fail(err)
	}
	return nil
}

// --- misc operators -------------------------------------------------

func opColorInvert(v *VM, module string, line int) error {
	i, err := v.Stack.PopInt()
	if err != nil {
		return v.fail(err)
	}
	reg, err := v.Buffers.Get(int(i))
	if err != nil {
		return v.fail(err)
	}
	if !reg.Loaded() {
		return v.fail(buffer.ErrNotLoaded)
	}
	switch reg.C {
	case 1:
		for off := 0; off < len(reg.Pix); off++ {
			reg.Pix[off] = 255 - reg.Pix[off]
		}
	case 3:
		for off := 0; off < len(reg.Pix); off += 3 {
			reg.Pix[off] = 255 - reg.Pix[off]
			reg.Pix[off+1] = 255 - reg.Pix[off+1]
			reg.Pix[off+2] = 255 - reg.Pix[off+2]
		}
	case 4:
		for off := 0; off < len(reg.Pix); off += 4 {
			reg.Pix[off+1] = 255 - reg.Pix[off+1]
			reg.Pix[off+2] = 255 - reg.Pix[off+2]
			reg.Pix[off+3] = 255 - reg.Pix[off+3]
		}
	}
	return nil
}

// defaultOpTable builds the operator registry matching spec.md §6.2's
// operator table verbatim.
func defaultOpTable() OpTable {
	return OpTable{
		"print":              opPrint,
		"reset":              opReset,
		"load_png":           opLoadPNG,
		"load_jpeg":          opLoadJPEG,
		"store_png":          opStorePNG,
		"load_frame":         opLoadFrame,
		"fill":               opFill,
		"store_jpeg":         opStoreJPEG,
		"store_mjpg":         opStoreMJPG,
		"identity":           opIdentity,
		"multiply":           opMultiply,
		"translate":          opTranslate,
		"scale":              opScale,
		"rotate":             opRotate,
		"sample_source":      opSampleSource,
		"sample_source_area": opSampleSourceArea,
		"sample_target":      opSampleTarget,
		"sample_matrix":      opSampleMatrix,
		"sample_mask_raster": opSampleMaskRaster,
		"sample_mask_x":      opSampleMaskX,
		"sample_mask_y":      opSampleMaskY,
		"sample_mask_none":   opSampleMaskNone,
		"sample_mask_left":   opSampleMaskLeft,
		"sample_mask_right":  opSampleMaskRight,
		"sample_mask_above":  opSampleMaskAbove,
		"sample_mask_below":  opSampleMaskBelow,
		"sample_nearest":     opSampleNearest,
		"sample_bilinear":    opSampleBilinear,
		"sample_bicubic":     opSampleBicubic,
		"sample":             opSample,
		"color_invert":       opColorInvert,
	}
}

// Call dispatches to the named operator, or ErrUnknownOperator if no such
// operator is registered.
func (v *VM) Call(name, module string, line int) error {
	op, ok := v.Ops[name]
	if !ok {
		return v.fail(fmt.Errorf("%w: %q", ErrUnknownOperator, name))
	}
	return op(v, module, line)
}
