// Package item defines Gibson's stored value and its metadata (§3).
//
// An Item is the unit the trie's markers point to: the value itself
// (plain bytes, a compressed buffer, or an inline integer) plus the
// bookkeeping needed for TTL expiry, write locks, and LRU-style
// eviction.
//
// Grounded on cachemir/pkg/cache.Value's ValueType-tagged shape, merged
// with utsuro/internal/model.Item's expiration/access-time fields.
package item

import "strconv"

// Encoding identifies how an Item's payload is physically stored.
type Encoding uint8

const (
	// Plain stores Data as the literal byte value set by the client.
	Plain Encoding = iota
	// Number stores the value as an inline 64-bit signed integer; Data
	// is unused and Number holds the value. GET reconstructs the
	// decimal ASCII form on the fly.
	Number
	// Compressed stores Data as an LZF-compressed buffer; OriginalSize
	// holds the pre-compression length needed to size the decode
	// buffer.
	Compressed
)

// String returns a short diagnostic name for the encoding, used in log
// lines and the META reply.
func (e Encoding) String() string {
	switch e {
	case Plain:
		return "PLAIN"
	case Number:
		return "NUMBER"
	case Compressed:
		return "COMPRESSED"
	default:
		return "UNKNOWN"
	}
}

// Item is a stored value plus its metadata (§3).
type Item struct {
	Data []byte // owned buffer for Plain and Compressed encodings

	Number int64 // inline value for Number encoding

	Encoding Encoding

	// OriginalSize is the decompressed length, valid only when
	// Encoding == Compressed.
	OriginalSize int

	// CreatedAt is the monotonic-ish wall time (unix seconds) this item
	// was last written by SET. TTL expiry is computed relative to it.
	CreatedAt int64

	// LastAccessTime is the wall time of the most recent read or write.
	// Pressure eviction (§4.7) reclaims items idle longer than gc_ratio.
	LastAccessTime int64

	// TTL is the item's time-to-live in seconds; 0 means "never
	// expires".
	TTL int64

	// LockedUntil is the wall time at which a write lock expires; 0
	// means unlocked.
	LockedUntil int64
}

// Size returns the item's logical size in bytes per §3: the length of
// Data for Plain/Compressed (OriginalSize for Compressed, so callers see
// the decompressed size), or the byte-width of Number's decimal textual
// form for Number.
func (it *Item) Size() int {
	switch it.Encoding {
	case Number:
		return len(strconv.FormatInt(it.Number, 10))
	case Compressed:
		return it.OriginalSize
	default:
		return len(it.Data)
	}
}

// StoredSize returns the number of bytes actually resident for this
// item's payload — the compressed length for Compressed items, Size()
// otherwise. This is what the allocator shim (pkg/alloc) is charged and
// credited for, since that is the real memory footprint.
func (it *Item) StoredSize() int {
	if it.Encoding == Compressed {
		return len(it.Data)
	}
	return it.Size()
}

// Expired reports whether the item has outlived its TTL as of now (unix
// seconds). An item with TTL == 0 never expires.
func (it *Item) Expired(now int64) bool {
	return it.TTL > 0 && now-it.CreatedAt >= it.TTL
}

// Locked reports whether a write lock set by LOCK is still in force as
// of now (unix seconds). Reads are always permitted regardless of lock
// state (§4.4).
func (it *Item) Locked(now int64) bool {
	return it.LockedUntil > now
}

// LockRemaining returns the number of seconds left on an active lock, or
// 0 if unlocked. Used by the META handler's lock-remaining field.
func (it *Item) LockRemaining(now int64) int64 {
	if !it.Locked(now) {
		return 0
	}
	return it.LockedUntil - now
}

// Touch updates LastAccessTime to now. Called on every read and write
// that reaches a live item, per §4.4.
func (it *Item) Touch(now int64) {
	it.LastAccessTime = now
}

// TTLRemaining returns the seconds left before expiry, or 0 if the item
// never expires. Used for the META handler's ttl field.
func (it *Item) TTLRemaining(now int64) int64 {
	if it.TTL <= 0 {
		return 0
	}
	remaining := it.TTL - (now - it.CreatedAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// AsBytes returns the item's value as a byte slice suitable for framing
// into a GET/MGET reply, decompressing transparently if needed (§4.4:
// "the stored form is never returned directly"). The returned slice must
// not be retained by the caller past the current handler invocation when
// it aliases a shared scratch buffer supplied via scratch.
func (it *Item) AsBytes(scratch []byte, decompress func(in, out []byte) (int, error)) ([]byte, error) {
	switch it.Encoding {
	case Number:
		return []byte(strconv.FormatInt(it.Number, 10)), nil
	case Compressed:
		if cap(scratch) < it.OriginalSize {
			scratch = make([]byte, it.OriginalSize)
		}
		scratch = scratch[:it.OriginalSize]
		n, err := decompress(it.Data, scratch)
		if err != nil {
			return nil, err
		}
		return scratch[:n], nil
	default:
		return it.Data, nil
	}
}

// ParseInt64 reports whether value parses cleanly as a signed 64-bit
// decimal integer with no surrounding whitespace, matching §3's
// encoding-policy check ("if the incoming value parses as a signed
// 64-bit integer, store as NUMBER").
func ParseInt64(value []byte) (int64, bool) {
	if len(value) == 0 {
		return 0, false
	}
	n, err := strconv.ParseInt(string(value), 10, 64)
	if err != nil {
		return 0, false
	}
	// Reject non-canonical forms like "+5", "007", " 5" that ParseInt
	// would otherwise accept for some inputs but that would change the
	// textual round trip GET relies on for NUMBER items.
	if strconv.FormatInt(n, 10) != string(value) {
		return 0, false
	}
	return n, true
}
