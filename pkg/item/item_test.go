package item

import "testing"

func TestExpired(t *testing.T) {
	it := &Item{CreatedAt: 1000, TTL: 60}
	if it.Expired(1059) {
		t.Fatal("should not be expired one second early")
	}
	if !it.Expired(1060) {
		t.Fatal("should be expired exactly at TTL boundary")
	}
	if !it.Expired(2000) {
		t.Fatal("should be expired well past TTL")
	}
}

func TestExpiredNeverWithZeroTTL(t *testing.T) {
	it := &Item{CreatedAt: 1000, TTL: 0}
	if it.Expired(1 << 40) {
		t.Fatal("TTL=0 must never expire")
	}
}

func TestLockedAndRemaining(t *testing.T) {
	it := &Item{LockedUntil: 1100}
	if !it.Locked(1099) {
		t.Fatal("expected locked before LockedUntil")
	}
	if it.Locked(1100) {
		t.Fatal("expected unlocked at LockedUntil boundary")
	}
	if rem := it.LockRemaining(1090); rem != 10 {
		t.Fatalf("LockRemaining: got %d, want 10", rem)
	}
	if rem := it.LockRemaining(1200); rem != 0 {
		t.Fatalf("LockRemaining after expiry: got %d, want 0", rem)
	}
}

func TestTTLRemaining(t *testing.T) {
	it := &Item{CreatedAt: 1000, TTL: 60}
	if rem := it.TTLRemaining(1010); rem != 50 {
		t.Fatalf("TTLRemaining: got %d, want 50", rem)
	}
	if rem := it.TTLRemaining(1070); rem != 0 {
		t.Fatalf("TTLRemaining past expiry: got %d, want 0", rem)
	}
	it2 := &Item{CreatedAt: 1000, TTL: 0}
	if rem := it2.TTLRemaining(1 << 30); rem != 0 {
		t.Fatalf("TTLRemaining with no TTL: got %d, want 0", rem)
	}
}

func TestSizePlain(t *testing.T) {
	it := &Item{Encoding: Plain, Data: []byte("hello")}
	if it.Size() != 5 {
		t.Fatalf("Size: got %d, want 5", it.Size())
	}
	if it.StoredSize() != 5 {
		t.Fatalf("StoredSize: got %d, want 5", it.StoredSize())
	}
}

func TestSizeNumber(t *testing.T) {
	it := &Item{Encoding: Number, Number: -123}
	if it.Size() != 4 { // "-123"
		t.Fatalf("Size: got %d, want 4", it.Size())
	}
}

func TestSizeCompressed(t *testing.T) {
	it := &Item{Encoding: Compressed, Data: []byte{1, 2, 3}, OriginalSize: 100}
	if it.Size() != 100 {
		t.Fatalf("Size: got %d, want 100 (logical/decompressed size)", it.Size())
	}
	if it.StoredSize() != 3 {
		t.Fatalf("StoredSize: got %d, want 3 (physical/compressed size)", it.StoredSize())
	}
}

func TestAsBytesPlain(t *testing.T) {
	it := &Item{Encoding: Plain, Data: []byte("value")}
	b, err := it.AsBytes(nil, nil)
	if err != nil {
		t.Fatalf("AsBytes: %v", err)
	}
	if string(b) != "value" {
		t.Fatalf("AsBytes: got %q, want %q", b, "value")
	}
}

func TestAsBytesNumber(t *testing.T) {
	it := &Item{Encoding: Number, Number: 42}
	b, err := it.AsBytes(nil, nil)
	if err != nil {
		t.Fatalf("AsBytes: %v", err)
	}
	if string(b) != "42" {
		t.Fatalf("AsBytes: got %q, want %q", b, "42")
	}
}

func TestAsBytesCompressed(t *testing.T) {
	it := &Item{Encoding: Compressed, Data: []byte("stand-in-compressed"), OriginalSize: 11}
	decompress := func(in, out []byte) (int, error) {
		copy(out, "hello world")
		return 11, nil
	}
	b, err := it.AsBytes(nil, decompress)
	if err != nil {
		t.Fatalf("AsBytes: %v", err)
	}
	if string(b) != "hello world" {
		t.Fatalf("AsBytes: got %q, want %q", b, "hello world")
	}
}

func TestParseInt64(t *testing.T) {
	cases := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"0", 0, true},
		{"42", 42, true},
		{"-42", -42, true},
		{"9223372036854775807", 9223372036854775807, true},
		{"", 0, false},
		{"+5", 0, false},
		{"007", 0, false},
		{" 5", 0, false},
		{"5 ", 0, false},
		{"abc", 0, false},
		{"3.14", 0, false},
	}
	for _, c := range cases {
		got, ok := ParseInt64([]byte(c.in))
		if ok != c.ok {
			t.Fatalf("ParseInt64(%q): ok=%v, want %v", c.in, ok, c.ok)
		}
		if ok && got != c.want {
			t.Fatalf("ParseInt64(%q): got %d, want %d", c.in, got, c.want)
		}
	}
}

func TestEncodingString(t *testing.T) {
	cases := map[Encoding]string{
		Plain:      "PLAIN",
		Number:     "NUMBER",
		Compressed: "COMPRESSED",
		Encoding(99): "UNKNOWN",
	}
	for enc, want := range cases {
		if got := enc.String(); got != want {
			t.Fatalf("Encoding(%d).String(): got %q, want %q", enc, got, want)
		}
	}
}
