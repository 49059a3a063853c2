package store

import (
	"testing"

	"github.com/gibson/gibson/pkg/item"
)

func TestSetGetPlain(t *testing.T) {
	s := New(0, 64)
	if err := s.Set([]byte("k"), []byte("hello"), 0, 1000); err != nil {
		t.Fatalf("Set: %v", err)
	}
	it, err := s.Get([]byte("k"), 1000)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if it.Encoding != item.Plain || string(it.Data) != "hello" {
		t.Fatalf("Get: got encoding=%v data=%q", it.Encoding, it.Data)
	}
}

func TestSetGetNumberEncoding(t *testing.T) {
	s := New(0, 64)
	if err := s.Set([]byte("n"), []byte("42"), 0, 1000); err != nil {
		t.Fatalf("Set: %v", err)
	}
	it, err := s.Get([]byte("n"), 1000)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if it.Encoding != item.Number || it.Number != 42 {
		t.Fatalf("Get: got encoding=%v number=%d, want Number/42", it.Encoding, it.Number)
	}
}

func TestSetGetCompressedEncoding(t *testing.T) {
	s := New(0, 16)
	big := make([]byte, 500)
	for i := range big {
		big[i] = 'a'
	}
	if err := s.Set([]byte("c"), big, 0, 1000); err != nil {
		t.Fatalf("Set: %v", err)
	}
	it, err := s.Get([]byte("c"), 1000)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if it.Encoding != item.Compressed {
		t.Fatalf("Get: got encoding=%v, want Compressed", it.Encoding)
	}
	if it.Size() != 500 {
		t.Fatalf("Size: got %d, want 500 (logical size)", it.Size())
	}
}

func TestGetNotFound(t *testing.T) {
	s := New(0, 64)
	if _, err := s.Get([]byte("missing"), 1000); err != ErrNotFound {
		t.Fatalf("Get: got %v, want ErrNotFound", err)
	}
}

func TestGetExpired(t *testing.T) {
	s := New(0, 64)
	s.Set([]byte("k"), []byte("v"), 10, 1000)
	if _, err := s.Get([]byte("k"), 1011); err != ErrNotFound {
		t.Fatalf("Get expired: got %v, want ErrNotFound", err)
	}
	if n := s.Stats().NItems; n != 0 {
		t.Fatalf("expired item should be reaped on access: NItems=%d", n)
	}
}

func TestDel(t *testing.T) {
	s := New(0, 64)
	s.Set([]byte("k"), []byte("v"), 0, 1000)
	if err := s.Del([]byte("k"), 1000); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if err := s.Del([]byte("k"), 1000); err != ErrNotFound {
		t.Fatalf("Del again: got %v, want ErrNotFound", err)
	}
}

func TestCount(t *testing.T) {
	s := New(0, 64)
	if s.Count([]byte("k"), 1000) != 0 {
		t.Fatal("Count before set should be 0")
	}
	s.Set([]byte("k"), []byte("v"), 0, 1000)
	if s.Count([]byte("k"), 1000) != 1 {
		t.Fatal("Count after set should be 1")
	}
}

func TestLockBlocksSetAndDec(t *testing.T) {
	s := New(0, 64)
	s.Set([]byte("k"), []byte("v"), 0, 1000)
	if err := s.Lock([]byte("k"), 10, 1000); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if err := s.Set([]byte("k"), []byte("v2"), 0, 1005); err != ErrLocked {
		t.Fatalf("Set on locked key: got %v, want ErrLocked", err)
	}
	if _, err := s.Incr([]byte("k"), -1, 1005); err != ErrLocked {
		t.Fatalf("Dec on locked key: got %v, want ErrLocked", err)
	}
	if err := s.Unlock([]byte("k"), 1005); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if err := s.Set([]byte("k"), []byte("v2"), 0, 1006); err != nil {
		t.Fatalf("Set after unlock: %v", err)
	}
}

func TestLockAllowsReads(t *testing.T) {
	s := New(0, 64)
	s.Set([]byte("k"), []byte("v"), 0, 1000)
	s.Lock([]byte("k"), 10, 1000)
	if _, err := s.Get([]byte("k"), 1001); err != nil {
		t.Fatalf("Get on locked key should succeed: %v", err)
	}
}

func TestIncrFromScratch(t *testing.T) {
	s := New(0, 64)
	s.Set([]byte("k"), []byte("10"), 0, 1000)
	n, err := s.Incr([]byte("k"), 1, 1000)
	if err != nil {
		t.Fatalf("Incr: %v", err)
	}
	if n != 11 {
		t.Fatalf("Incr: got %d, want 11", n)
	}
}

func TestSetEncodesNumericAsNumber(t *testing.T) {
	s := New(0, 4096) // "5" parses as an integer, so SET stores it as NUMBER
	s.Set([]byte("k"), []byte("5"), 0, 1000)
	it, _ := s.Get([]byte("k"), 1000)
	if it.Encoding != item.Number {
		t.Fatalf("numeric-looking SET should already encode as NUMBER, got %v", it.Encoding)
	}
}

func TestIncrNaN(t *testing.T) {
	s := New(0, 64)
	s.Set([]byte("k"), []byte("not-a-number"), 0, 1000)
	if _, err := s.Incr([]byte("k"), 1, 1000); err != ErrNaN {
		t.Fatalf("Incr on non-numeric: got %v, want ErrNaN", err)
	}
}

func TestIncrOverflowWraps(t *testing.T) {
	s := New(0, 64)
	s.trie.Insert([]byte("k"), &item.Item{Encoding: item.Number, Number: 9223372036854775807, CreatedAt: 1000, LastAccessTime: 1000})
	n, err := s.Incr([]byte("k"), 1, 1000)
	if err != nil {
		t.Fatalf("Incr: %v", err)
	}
	if n != -9223372036854775808 {
		t.Fatalf("Incr overflow: got %d, want two's-complement wraparound", n)
	}
}

func TestSetTTLAndRemaining(t *testing.T) {
	s := New(0, 64)
	s.Set([]byte("k"), []byte("v"), 0, 1000)
	if err := s.SetTTL([]byte("k"), 30, 1000); err != nil {
		t.Fatalf("SetTTL: %v", err)
	}
	rem, err := s.TTLRemaining([]byte("k"), 1010)
	if err != nil {
		t.Fatalf("TTLRemaining: %v", err)
	}
	if rem != 20 {
		t.Fatalf("TTLRemaining: got %d, want 20", rem)
	}
}

func TestMaxItemTTLClampsSet(t *testing.T) {
	s := New(0, 64)
	s.MaxItemTTL = 100
	s.Set([]byte("k"), []byte("v"), 500, 1000)
	rem, err := s.TTLRemaining([]byte("k"), 1000)
	if err != nil {
		t.Fatalf("TTLRemaining: %v", err)
	}
	if rem != 100 {
		t.Fatalf("TTLRemaining: got %d, want clamped 100", rem)
	}
}

func TestMaxItemTTLClampsNeverExpires(t *testing.T) {
	s := New(0, 64)
	s.MaxItemTTL = 100
	s.Set([]byte("k"), []byte("v"), 0, 1000)
	rem, err := s.TTLRemaining([]byte("k"), 1000)
	if err != nil {
		t.Fatalf("TTLRemaining: %v", err)
	}
	if rem != 100 {
		t.Fatalf("TTLRemaining: got %d, want a 0 (never-expires) ttl clamped to 100", rem)
	}
}

func TestMaxItemTTLClampsSetTTLAndMTTL(t *testing.T) {
	s := New(0, 64)
	s.MaxItemTTL = 100
	s.Set([]byte("k"), []byte("v"), 0, 1000)
	if err := s.SetTTL([]byte("k"), 500, 1000); err != nil {
		t.Fatalf("SetTTL: %v", err)
	}
	if rem, _ := s.TTLRemaining([]byte("k"), 1000); rem != 100 {
		t.Fatalf("SetTTL clamp: got %d, want 100", rem)
	}

	s.Set([]byte("p:1"), []byte("v"), 0, 1000)
	s.MTTL([]byte("p:"), 500, 1000)
	if rem, _ := s.TTLRemaining([]byte("p:1"), 1000); rem != 100 {
		t.Fatalf("MTTL clamp: got %d, want 100", rem)
	}
}

func TestMSetMGetMDel(t *testing.T) {
	s := New(0, 4096)
	s.Set([]byte("user:1"), []byte("a"), 0, 1000)
	s.Set([]byte("user:2"), []byte("b"), 0, 1000)
	s.Set([]byte("other"), []byte("c"), 0, 1000)

	results := s.MGet([]byte("user:"), 1000)
	if len(results) != 2 {
		t.Fatalf("MGet: got %d results, want 2", len(results))
	}

	setResults := s.MSet([]byte("user:"), []byte("z"), 0, 1001)
	if len(setResults) != 2 {
		t.Fatalf("MSet: got %d results, want 2", len(setResults))
	}
	it, _ := s.Get([]byte("user:1"), 1001)
	if string(it.Data) != "z" {
		t.Fatalf("MSet did not update user:1: got %q", it.Data)
	}
	if _, err := s.Get([]byte("other"), 1001); err != nil {
		t.Fatalf("MSet should not touch keys outside the prefix: %v", err)
	}

	delResults := s.MDel([]byte("user:"), 1002)
	if len(delResults) != 2 {
		t.Fatalf("MDel: got %d results, want 2", len(delResults))
	}
	if s.Count([]byte("user:1"), 1002) != 0 {
		t.Fatal("MDel should have removed user:1")
	}
	if s.Count([]byte("other"), 1002) != 1 {
		t.Fatal("MDel should not have removed other")
	}
}

func TestMIncMDec(t *testing.T) {
	s := New(0, 64)
	s.Set([]byte("a:1"), []byte("1"), 0, 1000)
	s.Set([]byte("a:2"), []byte("2"), 0, 1000)

	s.MInc([]byte("a:"), 1000)
	v1, _ := s.Get([]byte("a:1"), 1000)
	v2, _ := s.Get([]byte("a:2"), 1000)
	if v1.Number != 2 || v2.Number != 3 {
		t.Fatalf("MInc: got a:1=%d a:2=%d, want 2,3", v1.Number, v2.Number)
	}

	s.MDec([]byte("a:"), 1000)
	v1, _ = s.Get([]byte("a:1"), 1000)
	if v1.Number != 1 {
		t.Fatalf("MDec: got a:1=%d, want 1", v1.Number)
	}
}

func TestMCount(t *testing.T) {
	s := New(0, 64)
	s.Set([]byte("p:1"), []byte("a"), 0, 1000)
	s.Set([]byte("p:2"), []byte("b"), 0, 1000)
	if n := s.MCount([]byte("p:"), 1000); n != 2 {
		t.Fatalf("MCount: got %d, want 2", n)
	}
}

func TestKeysUnderPrefix(t *testing.T) {
	s := New(0, 64)
	s.Set([]byte("x:1"), []byte("a"), 0, 1000)
	s.Set([]byte("x:2"), []byte("b"), 0, 1000)
	s.Set([]byte("y:1"), []byte("c"), 0, 1000)

	keys := s.Keys([]byte("x:"), 1000)
	if len(keys) != 2 {
		t.Fatalf("Keys: got %d, want 2", len(keys))
	}
}

func TestSweepExpired(t *testing.T) {
	s := New(0, 64)
	s.Set([]byte("a"), []byte("v"), 5, 1000)
	s.Set([]byte("b"), []byte("v"), 0, 1000)

	n := s.SweepExpired(1010)
	if n != 1 {
		t.Fatalf("SweepExpired: got %d removed, want 1", n)
	}
	if s.Stats().NItems != 1 {
		t.Fatalf("NItems after sweep: got %d, want 1", s.Stats().NItems)
	}
}

func TestEvictIdle(t *testing.T) {
	s := New(0, 64)
	s.Set([]byte("a"), []byte("v"), 0, 1000)
	s.Get([]byte("a"), 1000) // touch at 1000
	s.Set([]byte("b"), []byte("v"), 0, 1000)
	s.Get([]byte("b"), 1050) // touch at 1050, stays fresh

	n := s.EvictIdle(1060, 30)
	if n != 1 {
		t.Fatalf("EvictIdle: got %d removed, want 1", n)
	}
	if s.Count([]byte("b"), 1060) != 1 {
		t.Fatal("EvictIdle should not have touched the recently-accessed key")
	}
}

func TestMemoryAccountingBalancesOnDelete(t *testing.T) {
	s := New(0, 4096)
	s.Set([]byte("k"), []byte("value"), 0, 1000)
	if s.Stats().MemUsed == 0 {
		t.Fatal("expected nonzero mem used after Set")
	}
	s.Del([]byte("k"), 1000)
	if s.Stats().MemUsed != 0 {
		t.Fatalf("expected mem used to return to 0 after Del, got %d", s.Stats().MemUsed)
	}
}
