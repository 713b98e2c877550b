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

// Package vm implements the Sparkle virtual machine: the buffer and
// matrix register arenas, the operator registry and stack (the script ABI
// surface, spec.md §4.H), and the operators that drive the lower-level
// lib/* packages.
//
// Following spec.md's design notes (§9), VM state is an explicit value
// rather than file-scope globals: the script driver owns one VM and passes
// it as the first argument to every call.
package vm

import (
	"errors"

	"github.com/sparkle-vm/sparkle/lib/affine"
	"github.com/sparkle-vm/sparkle/lib/buffer"
)

// ErrNotInitialized names use of a VM that was not built by New. No VM
// method returns it: a VM is ready as soon as New returns.
var ErrNotInitialized = errors.New("vm: not initialized")

// VM is a Sparkle virtual machine instance: the buffer and matrix register
// arenas, the operator registry, the interpreter stack, and the
// single "last reason" string every fallible entry point updates.
type VM struct {
	Buffers  *buffer.Arena
	Matrices *affine.Arena
	Stack    *Stack
	Ops      OpTable

	sample sampleConfig

	lastReason string
	ready      bool
}

// New constructs a VM with buffer and matrix arenas sized per the script
// header (%bufcount, %matcount; each 0..4096) and the default operator
// registry. There is no separate initialization step; the script driver
// calls New once and uses the result for every later call.
func New(bufCount, matCount int) *VM {
	v := &VM{
		Buffers:  buffer.NewArena(bufCount),
		Matrices: affine.NewArena(matCount),
		Stack:    NewStack(DefaultStackDepth),
		sample:   newSampleConfig(),
		ready:    true,
	}
	v.Ops = defaultOpTable()
	return v
}

// LastReason returns the diagnostic string set by the most recent fallible
// VM entry point.
func (v *VM) LastReason() string { return v.lastReason }

// setReason records a diagnostic for the script layer to report verbatim.
func (v *VM) setReason(s string) { v.lastReason = s }

// fail records err's message as the last reason and returns err, for
// operators to call on their single return path.
func (v *VM) fail(err error) error {
	v.setReason(err.Error())
	return err
}
