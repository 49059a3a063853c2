// Package store is Gibson's item store: the trie, the allocator shim,
// and the item-lifecycle logic (encoding choice, TTL/lock predicates,
// disposal bookkeeping) wired together behind the operations the query
// processor calls (§4.4).
//
// Store is deliberately not safe for concurrent use. Per the reactor
// model (internal/server), every mutation — client requests and cron
// sweeps alike — is funneled through one dispatcher goroutine, so the
// trie and the allocator shim never see concurrent access. Adding a
// mutex here would only hide a design bug if that invariant is ever
// broken.
//
// Grounded on cachemir/pkg/cache.Cache's method shape
// (Get/Set/Del/Exists/IncrBy/Expire/TTL/Persist), generalized from a
// flat map to pkg/trie, plus utsuro/internal/cache's usedBytes/
// maxEvictPerOp bookkeeping for the memory-pressure eviction path.
package store

import (
	"errors"

	"github.com/gibson/gibson/pkg/alloc"
	"github.com/gibson/gibson/pkg/item"
	"github.com/gibson/gibson/pkg/lzf"
	"github.com/gibson/gibson/pkg/trie"
)

// ErrNotFound is returned when an operation targets a key that is
// absent or has expired.
var ErrNotFound = errors.New("store: key not found")

// ErrLocked is returned when a mutating operation targets a key whose
// write lock (set by LOCK) has not yet expired.
var ErrLocked = errors.New("store: key is locked")

// ErrNaN is returned by Incr/Decr when the stored value is neither a
// NUMBER item nor a PLAIN item whose payload parses as an integer.
var ErrNaN = errors.New("store: value is not a number")

// Stats is a point-in-time snapshot of store-wide counters, used by the
// stats log line and the METRICS-facing gauges in pkg/metrics.
type Stats struct {
	NItems      int
	NCompressed int
	MemUsed     int64
	MemPeak     int64
}

// Store owns the trie and the memory accounting for every live item.
type Store struct {
	trie *trie.Trie[*item.Item]
	mem  *alloc.Shim

	// CompressionThreshold is the minimum payload size, in bytes, a
	// PLAIN candidate must reach before Set attempts LZF compression
	// (§3's encoding policy). Below it, compression is skipped even if
	// it would shrink the value, since the fixed per-item overhead
	// would eat the savings.
	CompressionThreshold int

	// MaxItemTTL is the upper bound, in seconds, any item's TTL may
	// carry (§6's max_item_ttl). 0 means unbounded. A TTL of 0 ("never
	// expires") is itself unbounded, so it is clamped down to
	// MaxItemTTL along with any ttl argument that exceeds it.
	MaxItemTTL int64

	nCompressed int
}

// New returns an empty store whose allocator shim is bounded by budget
// bytes (0 means unbounded).
func New(budget int64, compressionThreshold int) *Store {
	return &Store{
		trie:                 trie.New[*item.Item](),
		mem:                  alloc.New(budget),
		CompressionThreshold: compressionThreshold,
	}
}

// Mem exposes the underlying allocator shim, e.g. so the server can wire
// an OOM handler or the cron can read AvailableMemory-derived budgets.
func (s *Store) Mem() *alloc.Shim { return s.mem }

// clampTTL bounds ttl to MaxItemTTL when one is configured. A non-positive
// ttl ("never expires") is itself unbounded, so it is clamped down to
// MaxItemTTL exactly like any ttl argument that exceeds it.
func (s *Store) clampTTL(ttl int64) int64 {
	if s.MaxItemTTL <= 0 {
		return ttl
	}
	if ttl <= 0 || ttl > s.MaxItemTTL {
		return s.MaxItemTTL
	}
	return ttl
}

// Stats returns a snapshot of the store's size and memory counters.
func (s *Store) Stats() Stats {
	return Stats{
		NItems:      s.trie.Len(),
		NCompressed: s.nCompressed,
		MemUsed:     s.mem.Used(),
		MemPeak:     s.mem.Peak(),
	}
}

func itemOverhead(it *item.Item) int64 {
	return alloc.DefaultOverhead
}

func (s *Store) charge(it *item.Item) {
	s.mem.Alloc(int64(it.StoredSize()) + itemOverhead(it))
	if it.Encoding == item.Compressed {
		s.nCompressed++
	}
}

func (s *Store) credit(it *item.Item) {
	s.mem.Free(int64(it.StoredSize()) + itemOverhead(it))
	if it.Encoding == item.Compressed {
		s.nCompressed--
	}
}

// encode applies §3's encoding policy to a freshly-set value: NUMBER if
// it parses as a signed 64-bit integer, else COMPRESSED if it is at
// least CompressionThreshold bytes and LZF strictly shrinks it, else
// PLAIN.
func (s *Store) encode(value []byte, now int64, ttl int64) *item.Item {
	it := &item.Item{CreatedAt: now, LastAccessTime: now, TTL: ttl}

	if n, ok := item.ParseInt64(value); ok {
		it.Encoding = item.Number
		it.Number = n
		return it
	}

	if s.CompressionThreshold > 0 && len(value) >= s.CompressionThreshold {
		buf := make([]byte, len(value))
		n, err := lzf.Compress(value, buf)
		if err == nil && n < len(value) {
			it.Encoding = item.Compressed
			it.Data = buf[:n]
			it.OriginalSize = len(value)
			return it
		}
	}

	it.Encoding = item.Plain
	it.Data = append([]byte(nil), value...)
	return it
}

// liveOrEvict returns it unless it has expired, in which case it deletes
// it from the trie, credits its memory back, and reports absence — the
// "expired items behave as if the key were absent" rule from §4.4.
func (s *Store) liveOrEvict(key []byte, it *item.Item, now int64) (*item.Item, bool) {
	if it.Expired(now) {
		s.trie.Remove(key)
		s.credit(it)
		return nil, false
	}
	return it, true
}

// Set stores value at key with the given ttl, bounded by clampTTL (0 for
// no expiration when MaxItemTTL is 0), replacing and disposing of any previous item. It fails with ErrLocked
// if a live, non-expired item at key is still under its write lock.
func (s *Store) Set(key, value []byte, ttl int64, now int64) error {
	if old, ok := s.trie.Find(key); ok {
		if live, stillHere := s.liveOrEvict(key, old, now); stillHere {
			if live.Locked(now) {
				return ErrLocked
			}
		}
	}

	it := s.encode(value, now, s.clampTTL(ttl))
	old, replaced := s.trie.Insert(key, it)
	if replaced && old != nil {
		s.credit(old)
	}
	s.charge(it)
	return nil
}

// Get returns the live item at key, decoding is left to the caller via
// item.Item.AsBytes. Last-access time is updated on every successful
// read (§4.4).
func (s *Store) Get(key []byte, now int64) (*item.Item, error) {
	it, ok := s.trie.Find(key)
	if !ok {
		return nil, ErrNotFound
	}
	it, ok = s.liveOrEvict(key, it, now)
	if !ok {
		return nil, ErrNotFound
	}
	it.Touch(now)
	return it, nil
}

// Del removes key, returning ErrNotFound if it was already absent or
// expired.
func (s *Store) Del(key []byte, now int64) error {
	old, ok := s.trie.Remove(key)
	if !ok {
		return ErrNotFound
	}
	s.credit(old)
	if old.Expired(now) {
		return ErrNotFound
	}
	return nil
}

// Count reports 1 if key names a live item, 0 otherwise — the COUNT
// operation's semantics (§4.5).
func (s *Store) Count(key []byte, now int64) int {
	it, ok := s.trie.Find(key)
	if !ok {
		return 0
	}
	if _, live := s.liveOrEvict(key, it, now); !live {
		return 0
	}
	return 1
}

// SetTTL resets key's expiration clock: created_at becomes now and ttl
// becomes seconds bounded by clampTTL (0 clears expiration when
// MaxItemTTL is 0). Fails with ErrNotFound if key
// is absent, ErrLocked if it is locked.
func (s *Store) SetTTL(key []byte, seconds int64, now int64) error {
	it, ok := s.trie.Find(key)
	if !ok {
		return ErrNotFound
	}
	it, live := s.liveOrEvict(key, it, now)
	if !live {
		return ErrNotFound
	}
	if it.Locked(now) {
		return ErrLocked
	}
	it.CreatedAt = now
	it.TTL = s.clampTTL(seconds)
	it.Touch(now)
	return nil
}

// TTLRemaining returns the seconds left before key expires (0 if it
// never expires), or ErrNotFound.
func (s *Store) TTLRemaining(key []byte, now int64) (int64, error) {
	it, ok := s.trie.Find(key)
	if !ok {
		return 0, ErrNotFound
	}
	it, live := s.liveOrEvict(key, it, now)
	if !live {
		return 0, ErrNotFound
	}
	return it.TTLRemaining(now), nil
}

// Lock sets a write lock on key that expires in seconds.
func (s *Store) Lock(key []byte, seconds int64, now int64) error {
	it, ok := s.trie.Find(key)
	if !ok {
		return ErrNotFound
	}
	it, live := s.liveOrEvict(key, it, now)
	if !live {
		return ErrNotFound
	}
	it.LockedUntil = now + seconds
	it.Touch(now)
	return nil
}

// Unlock clears any write lock on key.
func (s *Store) Unlock(key []byte, now int64) error {
	it, ok := s.trie.Find(key)
	if !ok {
		return ErrNotFound
	}
	it, live := s.liveOrEvict(key, it, now)
	if !live {
		return ErrNotFound
	}
	it.LockedUntil = 0
	it.Touch(now)
	return nil
}

// incr adjusts an item's numeric value by delta in place, re-encoding a
// PLAIN item that parses as an integer into NUMBER first. Returns
// ErrNaN if neither applies. Overflow wraps using two's-complement
// 64-bit arithmetic, matching Go's native int64 overflow behavior.
func incr(it *item.Item, delta int64) (int64, error) {
	switch it.Encoding {
	case item.Number:
		it.Number += delta
		return it.Number, nil
	case item.Plain:
		n, ok := item.ParseInt64(it.Data)
		if !ok {
			return 0, ErrNaN
		}
		it.Encoding = item.Number
		it.Data = nil
		it.Number = n + delta
		return it.Number, nil
	default:
		return 0, ErrNaN
	}
}

// Incr adjusts key's numeric value by delta (§4.5's INC/DEC family).
// Fails with ErrNotFound, ErrLocked, or ErrNaN.
func (s *Store) Incr(key []byte, delta int64, now int64) (int64, error) {
	it, ok := s.trie.Find(key)
	if !ok {
		return 0, ErrNotFound
	}
	it, live := s.liveOrEvict(key, it, now)
	if !live {
		return 0, ErrNotFound
	}
	if it.Locked(now) {
		return 0, ErrLocked
	}
	before := it.StoredSize()
	result, err := incr(it, delta)
	if err != nil {
		return 0, err
	}
	after := it.StoredSize()
	if after != before {
		s.mem.Free(int64(before))
		s.mem.Alloc(int64(after))
	}
	it.Touch(now)
	return result, nil
}

// Meta is the per-item introspection payload returned by the META
// operation (§4.5): size, encoding tag, ttl, lock-remaining, and
// last-access age, all relative to now.
type Meta struct {
	Size           int
	Encoding       item.Encoding
	TTLRemaining   int64
	LockRemaining  int64
	LastAccessedAt int64
}

// Meta returns introspection data for key.
func (s *Store) Meta(key []byte, now int64) (Meta, error) {
	it, ok := s.trie.Find(key)
	if !ok {
		return Meta{}, ErrNotFound
	}
	it, live := s.liveOrEvict(key, it, now)
	if !live {
		return Meta{}, ErrNotFound
	}
	return Meta{
		Size:           it.Size(),
		Encoding:       it.Encoding,
		TTLRemaining:   it.TTLRemaining(now),
		LockRemaining:  it.LockRemaining(now),
		LastAccessedAt: now - it.LastAccessTime,
	}, nil
}

// Keys returns every live key under prefix, in lexicographic order,
// reconstructed by concatenating trie edge labels (§4.5's KEYS
// operation). Expired items are skipped but not deleted — KEYS is a
// read-only scan, and eviction is cron's job.
func (s *Store) Keys(prefix []byte, now int64) [][]byte {
	var keys [][]byte
	s.trie.WalkPrefix(prefix, func(e trie.Entry[*item.Item]) (*item.Item, trie.Action) {
		if !e.Value.Expired(now) {
			keys = append(keys, e.Key)
		}
		return nil, trie.Keep
	})
	return keys
}

// MultiResult is one key's outcome within a multi-key operation.
type MultiResult struct {
	Key   []byte
	Value *item.Item
	N     int64 // the post-operation numeric value, for MINC/MDEC
	Err   error
}

// multiWalk is the shared traversal used by every M-prefixed operation:
// it resolves prefix once with find_prefix and then applies apply to
// every descendant item, collecting one MultiResult per key. apply
// returns the trie.Action to take and the new item to store on Update.
func (s *Store) multiWalk(prefix []byte, now int64, apply func(key []byte, it *item.Item) (MultiResult, *item.Item, trie.Action)) []MultiResult {
	var results []MultiResult
	s.trie.WalkPrefix(prefix, func(e trie.Entry[*item.Item]) (*item.Item, trie.Action) {
		if e.Value.Expired(now) {
			s.credit(e.Value)
			results = append(results, MultiResult{Key: e.Key, Err: ErrNotFound})
			return nil, trie.Delete
		}
		res, newItem, action := apply(e.Key, e.Value)
		results = append(results, res)
		if action == trie.Update {
			s.credit(e.Value)
			s.charge(newItem)
		} else if action == trie.Delete {
			s.credit(e.Value)
		}
		return newItem, action
	})
	return results
}

// MSet applies Set's body to every live item under prefix.
func (s *Store) MSet(prefix, value []byte, ttl int64, now int64) []MultiResult {
	return s.multiWalk(prefix, now, func(key []byte, it *item.Item) (MultiResult, *item.Item, trie.Action) {
		if it.Locked(now) {
			return MultiResult{Key: key, Err: ErrLocked}, it, trie.Keep
		}
		newItem := s.encode(value, now, s.clampTTL(ttl))
		return MultiResult{Key: key, Value: newItem}, newItem, trie.Update
	})
}

// MGet reads every live item under prefix, touching last-access time.
func (s *Store) MGet(prefix []byte, now int64) []MultiResult {
	return s.multiWalk(prefix, now, func(key []byte, it *item.Item) (MultiResult, *item.Item, trie.Action) {
		it.Touch(now)
		return MultiResult{Key: key, Value: it}, it, trie.Keep
	})
}

// MDel deletes every live item under prefix.
func (s *Store) MDel(prefix []byte, now int64) []MultiResult {
	return s.multiWalk(prefix, now, func(key []byte, it *item.Item) (MultiResult, *item.Item, trie.Action) {
		return MultiResult{Key: key}, nil, trie.Delete
	})
}

// MCount reports the number of live items under prefix.
func (s *Store) MCount(prefix []byte, now int64) int {
	results := s.multiWalk(prefix, now, func(key []byte, it *item.Item) (MultiResult, *item.Item, trie.Action) {
		return MultiResult{Key: key}, it, trie.Keep
	})
	n := 0
	for _, r := range results {
		if r.Err == nil {
			n++
		}
	}
	return n
}

// MLock locks every live item under prefix for seconds.
func (s *Store) MLock(prefix []byte, seconds int64, now int64) []MultiResult {
	return s.multiWalk(prefix, now, func(key []byte, it *item.Item) (MultiResult, *item.Item, trie.Action) {
		it.LockedUntil = now + seconds
		it.Touch(now)
		return MultiResult{Key: key}, it, trie.Keep
	})
}

// MUnlock clears the write lock on every live item under prefix.
func (s *Store) MUnlock(prefix []byte, now int64) []MultiResult {
	return s.multiWalk(prefix, now, func(key []byte, it *item.Item) (MultiResult, *item.Item, trie.Action) {
		it.LockedUntil = 0
		it.Touch(now)
		return MultiResult{Key: key}, it, trie.Keep
	})
}

// MTTL resets the TTL clock on every live item under prefix.
func (s *Store) MTTL(prefix []byte, seconds int64, now int64) []MultiResult {
	return s.multiWalk(prefix, now, func(key []byte, it *item.Item) (MultiResult, *item.Item, trie.Action) {
		if it.Locked(now) {
			return MultiResult{Key: key, Err: ErrLocked}, it, trie.Keep
		}
		it.CreatedAt = now
		it.TTL = s.clampTTL(seconds)
		it.Touch(now)
		return MultiResult{Key: key}, it, trie.Keep
	})
}

// mincr adjusts delta onto every live, unlocked item under prefix,
// re-encoding PLAIN-but-numeric payloads as INC/DEC's single-key body
// does.
func (s *Store) mincr(prefix []byte, delta int64, now int64) []MultiResult {
	return s.multiWalk(prefix, now, func(key []byte, it *item.Item) (MultiResult, *item.Item, trie.Action) {
		if it.Locked(now) {
			return MultiResult{Key: key, Err: ErrLocked}, it, trie.Keep
		}
		before := it.StoredSize()
		n, err := incr(it, delta)
		if err != nil {
			return MultiResult{Key: key, Err: err}, it, trie.Keep
		}
		after := it.StoredSize()
		if after != before {
			s.mem.Free(int64(before))
			s.mem.Alloc(int64(after))
		}
		it.Touch(now)
		return MultiResult{Key: key, N: n}, it, trie.Keep
	})
}

// MInc increments every live item under prefix by 1.
func (s *Store) MInc(prefix []byte, now int64) []MultiResult { return s.mincr(prefix, 1, now) }

// MDec decrements every live item under prefix by 1.
func (s *Store) MDec(prefix []byte, now int64) []MultiResult { return s.mincr(prefix, -1, now) }

// SweepExpired deletes every expired item in the whole store, for the
// cron's 15-second TTL sweep (§4.7). It returns the number of items
// removed.
func (s *Store) SweepExpired(now int64) int {
	n := 0
	s.trie.Walk(func(e trie.Entry[*item.Item]) (*item.Item, trie.Action) {
		if e.Value.Expired(now) {
			s.credit(e.Value)
			n++
			return nil, trie.Delete
		}
		return nil, trie.Keep
	})
	return n
}

// EvictIdle deletes items untouched for at least idleSeconds, for the
// cron's memory-pressure eviction pass (§4.7). It is an approximate LRU:
// a single full-trie scan rather than a maintained recency list.
func (s *Store) EvictIdle(now, idleSeconds int64) int {
	n := 0
	s.trie.Walk(func(e trie.Entry[*item.Item]) (*item.Item, trie.Action) {
		if now-e.Value.LastAccessTime >= idleSeconds {
			s.credit(e.Value)
			n++
			return nil, trie.Delete
		}
		return nil, trie.Keep
	})
	return n
}
