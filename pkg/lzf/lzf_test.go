package lzf

import (
	"bytes"
	"math/rand"
	"testing"
)

func roundTrip(t *testing.T, in []byte) {
	t.Helper()

	// Incompressible input costs one extra control byte per maxLit-byte
	// literal run, so size the buffer for that worst case.
	out := make([]byte, len(in)+len(in)/maxLit+16)
	n, err := Compress(in, out)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	compressed := out[:n]

	decoded := make([]byte, len(in))
	dn, err := Decompress(compressed, decoded)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if dn != len(in) {
		t.Fatalf("Decompress: got %d bytes, want %d", dn, len(in))
	}
	if !bytes.Equal(decoded, in) {
		t.Fatalf("round-trip mismatch: got %v, want %v", decoded, in)
	}
}

func TestRoundTripRepeatedBytes(t *testing.T) {
	in := bytes.Repeat([]byte{0x00}, 5000)
	roundTrip(t, in)
}

func TestRoundTripRepeatedPattern(t *testing.T) {
	in := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog. "), 200)
	roundTrip(t, in)
}

func TestRoundTripRandom(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	in := make([]byte, 8192)
	r.Read(in)
	roundTrip(t, in)
}

func TestRoundTripShortInputs(t *testing.T) {
	for n := 0; n < 16; n++ {
		in := bytes.Repeat([]byte{'a'}, n)
		out := make([]byte, n+16)
		written, err := Compress(in, out)
		if n < minInputLen {
			if err != ErrOutputOverflow {
				t.Fatalf("n=%d: expected ErrOutputOverflow for tiny input, got %v", n, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("n=%d: Compress: %v", n, err)
		}
		decoded := make([]byte, n)
		dn, err := Decompress(out[:written], decoded)
		if err != nil {
			t.Fatalf("n=%d: Decompress: %v", n, err)
		}
		if dn != n || !bytes.Equal(decoded, in) {
			t.Fatalf("n=%d: round-trip mismatch", n)
		}
	}
}

func TestCompressReportsOverflow(t *testing.T) {
	in := bytes.Repeat([]byte{0xAB}, 100)
	out := make([]byte, 4)
	if _, err := Compress(in, out); err != ErrOutputOverflow {
		t.Fatalf("expected ErrOutputOverflow, got %v", err)
	}
}

func TestDecompressRejectsBackrefBeforeStart(t *testing.T) {
	// A complete back-reference (length 3, offset 0) as the first token:
	// it points before the start of the output, where nothing is decoded.
	bogus := []byte{0x20, 0x00}
	out := make([]byte, 16)
	if _, err := Decompress(bogus, out); err != ErrCorruptInput {
		t.Fatalf("expected ErrCorruptInput, got %v", err)
	}
}

func TestCompressIncompressibleFallsBackToOverflow(t *testing.T) {
	// 64 strictly ascending byte values contain no repeated 3-byte
	// sequence, so no back-reference can ever be found: the encoding is
	// guaranteed to be pure literal runs, which always cost more than
	// the raw bytes (one control byte per 32-byte chunk).
	in := make([]byte, 64)
	for i := range in {
		in[i] = byte(i)
	}
	out := make([]byte, len(in))
	if _, err := Compress(in, out); err != ErrOutputOverflow {
		t.Fatalf("expected ErrOutputOverflow for incompressible input, got %v", err)
	}
}
