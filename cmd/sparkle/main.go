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

// Command sparkle reads a Sparkle script from standard input and executes
// it against a fresh virtual machine, per spec.md §6.1: standard input is
// the script, standard error carries diagnostics, standard output is
// otherwise unused (beyond an explicit `print` operator), and the program
// takes no arguments beyond its own name.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sparkle-vm/sparkle/internal/driver"
)

var errExtraArgs = errors.New("sparkle: takes no arguments")

func main() {
	if err := main1(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main1() error {
	if len(os.Args) != 1 {
		return errExtraArgs
	}
	src, err := io.ReadAll(os.Stdin)
	if err != nil {
		return err
	}
	return driver.Run("stdin", src)
}
