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

package pixel

import "testing"

func TestPackUnpackRoundTrip(t *testing.T) {
	packed := Pack(128, 10, 20, 30)
	a, r, g, b := Unpack(packed)
	if a != 128 || r != 10 || g != 20 || b != 30 {
		t.Fatalf("got %d %d %d %d", a, r, g, b)
	}
}

func TestPremultiplyUnpremultiplyRoundTrip(t *testing.T) {
	cases := []struct{ a, r, g, b byte }{
		{255, 10, 20, 30},
		{128, 255, 0, 0},
		{0, 255, 255, 255},
		{64, 1, 2, 3},
	}
	for _, c := range cases {
		col := Premultiply(c.a, c.r, c.g, c.b)
		a, r, g, b := Unpremultiply(col)
		if a != c.a {
			t.Fatalf("alpha: got %d want %d", a, c.a)
		}
		if c.a == 0 {
			if r != 0 || g != 0 || b != 0 {
				t.Fatalf("zero alpha should force rgb to 0: got %d %d %d", r, g, b)
			}
			continue
		}
		if r != c.r || g != c.g || b != c.b {
			t.Fatalf("got %d %d %d want %d %d %d", r, g, b, c.r, c.g, c.b)
		}
	}
}

func TestDownGrayOpaque(t *testing.T) {
	// Pure white at full opacity should flatten to a grey byte of 255.
	g := DownGray(4, []byte{255, 255, 255, 255})
	if g != 255 {
		t.Fatalf("got %d want 255", g)
	}
	// Pure black.
	g = DownGray(4, []byte{255, 0, 0, 0})
	if g != 0 {
		t.Fatalf("got %d want 0", g)
	}
}

func TestConvertIdentityChannelCount(t *testing.T) {
	src := []byte{10, 20, 30}
	dst := make([]byte, 3)
	Convert(3, src, 3, dst)
	for i := range src {
		if dst[i] != src[i] {
			t.Fatalf("byte %d: got %d want %d", i, dst[i], src[i])
		}
	}
}

func TestUpsampleGrayToRGBReplicates(t *testing.T) {
	r, g, b := UpsampleGrayToRGB(42)
	if r != 42 || g != 42 || b != 42 {
		t.Fatalf("got %d %d %d", r, g, b)
	}
}

func TestWriteFromARGB3ChannelClampsOpaque(t *testing.T) {
	dst := make([]byte, 3)
	WriteFromARGB(3, dst, ARGB{A: 1, R: 1, G: 0.5, B: 0})
	if dst[0] != 255 || dst[2] != 0 {
		t.Fatalf("got %v", dst)
	}
}

func TestWriteFromARGB4ChannelZeroAlpha(t *testing.T) {
	dst := make([]byte, 4)
	WriteFromARGB(4, dst, ARGB{A: 0, R: 0.9, G: 0.1, B: 0.1})
	for i, v := range dst {
		if v != 0 {
			t.Fatalf("byte %d: got %d, want 0 on zero alpha", i, v)
		}
	}
}
