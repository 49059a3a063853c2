// Package protocol implements Gibson's length-prefixed binary wire
// format (§6): a 4-byte little-endian size header, a 2-byte opcode, and
// a small set of fixed-field argument shapes — one per opcode family,
// never varint-encoded. Replies mirror the same framing with a
// reply-code in place of the opcode.
//
// Example usage:
//
//	req, err := protocol.ReadRequest(conn, limits)
//	if err != nil {
//		// drop the connection; a malformed frame is not recoverable
//	}
//	switch req.Op {
//	case protocol.OpGet:
//		...
//	}
//
// Grounded on cachemir/pkg/protocol's ReadCommand/WriteResponse framing
// shape (length header via io.ReadFull, Serialize/Deserialize split),
// adapted from that package's varint command encoding to the fixed-field
// layout and little-endian byte order §6 specifies.
package protocol

import (
	"encoding/binary"
	"errors"
	"io"
)

// ErrMalformed is returned by ReadRequest when a frame has an unknown
// opcode, a truncated argument list, or a field that overruns the
// frame's declared size. Per §4.5, the processor treats this as fatal
// for the connection: the caller is expected to close it.
var ErrMalformed = errors.New("protocol: malformed request")

// ErrFieldTooLarge is returned by ReadRequest when a key or value field
// exceeds the configured limit.
var ErrFieldTooLarge = errors.New("protocol: field exceeds configured limit")

// ErrFrameTooLarge is returned by ReadRequest when the frame's declared
// size exceeds max_request_size.
var ErrFrameTooLarge = errors.New("protocol: frame exceeds max_request_size")

// Op identifies a request's operation.
type Op uint16

// Single-key operations, per §4.5.
const (
	OpSet Op = iota + 1
	OpTTL
	OpGet
	OpDel
	OpInc
	OpDec
	OpLock
	OpUnlock
	OpCount
	OpMeta
	OpKeys
)

// Multi-key (prefix) operations, per §4.5. Each mirrors its single-key
// counterpart's argument shape with a prefix in place of a key.
const (
	OpMSet Op = iota + 100
	OpMTTL
	OpMGet
	OpMDel
	OpMInc
	OpMDec
	OpMLock
	OpMUnlock
	OpMCount
)

// String returns the opcode's name, used as the "op" label on
// metrics.RequestsTotal.
func (op Op) String() string {
	switch op {
	case OpSet:
		return "SET"
	case OpTTL:
		return "TTL"
	case OpGet:
		return "GET"
	case OpDel:
		return "DEL"
	case OpInc:
		return "INC"
	case OpDec:
		return "DEC"
	case OpLock:
		return "LOCK"
	case OpUnlock:
		return "UNLOCK"
	case OpCount:
		return "COUNT"
	case OpMeta:
		return "META"
	case OpKeys:
		return "KEYS"
	case OpMSet:
		return "MSET"
	case OpMTTL:
		return "MTTL"
	case OpMGet:
		return "MGET"
	case OpMDel:
		return "MDEL"
	case OpMInc:
		return "MINC"
	case OpMDec:
		return "MDEC"
	case OpMLock:
		return "MLOCK"
	case OpMUnlock:
		return "MUNLOCK"
	case OpMCount:
		return "MCOUNT"
	default:
		return "UNKNOWN"
	}
}

// MetaField selects which per-item introspection value a META request
// asks for.
type MetaField uint8

const (
	FieldSize MetaField = iota
	FieldEncoding
	FieldTTL
	FieldLockRemaining
	FieldLastAccessAge
)

// Limits bounds the fields ReadRequest will accept, drawn from the
// server's configuration (§6): max_request_size, max_key_size, and
// max_value_size.
type Limits struct {
	MaxRequestSize uint32
	MaxKeySize     uint32
	MaxValueSize   uint32
}

// Request is a decoded client frame. Key holds the key for single-key
// ops or the prefix for multi-key ops; TTL and Value are populated only
// for the opcodes that carry them.
type Request struct {
	Op    Op
	Key   []byte
	TTL   int64
	Value []byte
	Field MetaField
}

const headerSize = 4 // the u32 size prefix itself; not counted in size

// ReadRequest reads one frame from r: a u32 little-endian size followed
// by exactly that many bytes (a u16 opcode plus its fixed-field
// arguments), and decodes it according to Op's argument shape. Any
// structural problem — oversize frame, unknown opcode, truncated or
// oversize field — is reported as an error and the connection should be
// dropped, per §4.5.
func ReadRequest(r io.Reader, limits Limits) (*Request, error) {
	var sizeBuf [headerSize]byte
	if _, err := io.ReadFull(r, sizeBuf[:]); err != nil {
		return nil, err
	}
	size := binary.LittleEndian.Uint32(sizeBuf[:])
	if size < 2 {
		return nil, ErrMalformed
	}
	if limits.MaxRequestSize > 0 && size > limits.MaxRequestSize {
		return nil, ErrFrameTooLarge
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}

	op := Op(binary.LittleEndian.Uint16(body[0:2]))
	args := body[2:]

	req := &Request{Op: op}
	var err error
	switch op {
	case OpSet, OpMSet:
		req.Key, req.TTL, req.Value, err = parseKeyTTLValue(args, limits)
	case OpTTL, OpLock, OpMTTL, OpMLock:
		req.Key, req.TTL, err = parseKeyTTL(args, limits)
	case OpGet, OpDel, OpInc, OpDec, OpUnlock, OpCount, OpKeys,
		OpMGet, OpMDel, OpMInc, OpMDec, OpMUnlock, OpMCount:
		req.Key, err = parseKeyOnly(args, limits)
	case OpMeta:
		req.Key, req.Field, err = parseKeyField(args, limits)
	default:
		return nil, ErrMalformed
	}
	if err != nil {
		return nil, err
	}
	return req, nil
}

func readU32(b []byte, off int) (uint32, int, error) {
	if off+4 > len(b) {
		return 0, 0, ErrMalformed
	}
	return binary.LittleEndian.Uint32(b[off:]), off + 4, nil
}

func readI32(b []byte, off int) (int32, int, error) {
	v, next, err := readU32(b, off)
	return int32(v), next, err
}

func readField(b []byte, off int, n uint32, limit uint32) ([]byte, int, error) {
	if limit > 0 && n > limit {
		return nil, 0, ErrFieldTooLarge
	}
	end := off + int(n)
	if end < off || end > len(b) {
		return nil, 0, ErrMalformed
	}
	return b[off:end], end, nil
}

// readKey reads the key field via readField and additionally rejects a
// zero-length key: §3 defines Key as a non-empty byte string, and §4.5
// requires klen=0 to be treated as a malformed request. Value fields have
// no such restriction and must keep using readField directly.
func readKey(b []byte, off int, n uint32, limit uint32) ([]byte, int, error) {
	if n == 0 {
		return nil, 0, ErrMalformed
	}
	return readField(b, off, n, limit)
}

func parseKeyOnly(b []byte, limits Limits) ([]byte, error) {
	klen, off, err := readU32(b, 0)
	if err != nil {
		return nil, err
	}
	key, off, err := readKey(b, off, klen, limits.MaxKeySize)
	if err != nil {
		return nil, err
	}
	if off != len(b) {
		return nil, ErrMalformed
	}
	return key, nil
}

func parseKeyTTL(b []byte, limits Limits) ([]byte, int64, error) {
	klen, off, err := readU32(b, 0)
	if err != nil {
		return nil, 0, err
	}
	key, off, err := readKey(b, off, klen, limits.MaxKeySize)
	if err != nil {
		return nil, 0, err
	}
	ttl, off, err := readI32(b, off)
	if err != nil {
		return nil, 0, err
	}
	if off != len(b) {
		return nil, 0, ErrMalformed
	}
	return key, int64(ttl), nil
}

func parseKeyTTLValue(b []byte, limits Limits) ([]byte, int64, []byte, error) {
	klen, off, err := readU32(b, 0)
	if err != nil {
		return nil, 0, nil, err
	}
	key, off, err := readKey(b, off, klen, limits.MaxKeySize)
	if err != nil {
		return nil, 0, nil, err
	}
	ttl, off, err := readI32(b, off)
	if err != nil {
		return nil, 0, nil, err
	}
	vlen, off, err := readU32(b, off)
	if err != nil {
		return nil, 0, nil, err
	}
	value, off, err := readField(b, off, vlen, limits.MaxValueSize)
	if err != nil {
		return nil, 0, nil, err
	}
	if off != len(b) {
		return nil, 0, nil, ErrMalformed
	}
	return key, int64(ttl), value, nil
}

func parseKeyField(b []byte, limits Limits) ([]byte, MetaField, error) {
	klen, off, err := readU32(b, 0)
	if err != nil {
		return nil, 0, err
	}
	key, off, err := readKey(b, off, klen, limits.MaxKeySize)
	if err != nil {
		return nil, 0, err
	}
	if off+1 != len(b) {
		return nil, 0, ErrMalformed
	}
	return key, MetaField(b[off]), nil
}

// ReplyCode identifies a reply's kind.
type ReplyCode uint16

const (
	ReplyOK ReplyCode = iota
	ReplyVal
	ReplyKVal
	ReplyNotFound
	ReplyLocked
	ReplyNaN
	ReplyErr
)

// String returns the reply code's name, used as the "reply" label on
// metrics.RequestsTotal.
func (c ReplyCode) String() string {
	switch c {
	case ReplyOK:
		return "OK"
	case ReplyVal:
		return "VAL"
	case ReplyKVal:
		return "KVAL"
	case ReplyNotFound:
		return "NOT_FOUND"
	case ReplyLocked:
		return "LOCKED"
	case ReplyNaN:
		return "NAN"
	case ReplyErr:
		return "ERR"
	default:
		return "UNKNOWN"
	}
}

// KValEntry is one (key, encoded value) pair inside a KVAL reply.
type KValEntry struct {
	Key      []byte
	Encoding uint8
	Value    []byte
}

func writeFrame(w io.Writer, code ReplyCode, payload []byte) error {
	var header [headerSize + 2]byte
	binary.LittleEndian.PutUint32(header[0:4], uint32(len(payload)+2))
	binary.LittleEndian.PutUint16(header[4:6], uint16(code))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	_, err := w.Write(payload)
	return err
}

// WriteOK writes a bare OK reply, used by SET/DEL/LOCK/UNLOCK/TTL and
// their multi-key counterparts on success.
func WriteOK(w io.Writer) error {
	return writeFrame(w, ReplyOK, nil)
}

// WriteVal writes a single-value reply: GET's payload, INC/DEC's
// resulting number, COUNT's 0-or-1, and META's requested field.
func WriteVal(w io.Writer, encoding uint8, value []byte) error {
	payload := make([]byte, 1+4+len(value))
	payload[0] = encoding
	binary.LittleEndian.PutUint32(payload[1:5], uint32(len(value)))
	copy(payload[5:], value)
	return writeFrame(w, ReplyVal, payload)
}

// KValSize returns the encoded size in bytes of a KVAL reply's payload
// (not counting the 6-byte frame header), so a caller can check it
// against max_response_size before committing to WriteKVal.
func KValSize(entries []KValEntry) int {
	size := 4
	for _, e := range entries {
		size += 4 + len(e.Key) + 1 + 4 + len(e.Value)
	}
	return size
}

// WriteKVal writes a multi-value reply: MGET's per-key results and
// KEYS's key listing (with empty values).
func WriteKVal(w io.Writer, entries []KValEntry) error {
	size := KValSize(entries)
	payload := make([]byte, size)
	binary.LittleEndian.PutUint32(payload[0:4], uint32(len(entries)))
	off := 4
	for _, e := range entries {
		binary.LittleEndian.PutUint32(payload[off:off+4], uint32(len(e.Key)))
		off += 4
		off += copy(payload[off:], e.Key)
		payload[off] = e.Encoding
		off++
		binary.LittleEndian.PutUint32(payload[off:off+4], uint32(len(e.Value)))
		off += 4
		off += copy(payload[off:], e.Value)
	}
	return writeFrame(w, ReplyKVal, payload)
}

// WriteNotFound writes the NOT_FOUND reply for an absent or expired key.
func WriteNotFound(w io.Writer) error {
	return writeFrame(w, ReplyNotFound, nil)
}

// WriteLocked writes the LOCKED reply for a mutation blocked by an
// active write lock.
func WriteLocked(w io.Writer) error {
	return writeFrame(w, ReplyLocked, nil)
}

// WriteNaN writes the NAN reply for an INC/DEC on a non-numeric value.
func WriteNaN(w io.Writer) error {
	return writeFrame(w, ReplyNaN, nil)
}

// WriteErr writes an ERR reply carrying an optional diagnostic message.
func WriteErr(w io.Writer, msg string) error {
	payload := make([]byte, 4+len(msg))
	binary.LittleEndian.PutUint32(payload[0:4], uint32(len(msg)))
	copy(payload[4:], msg)
	return writeFrame(w, ReplyErr, payload)
}
