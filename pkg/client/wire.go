package client

import (
	"encoding/binary"
	"errors"
	"io"
	"strconv"

	"github.com/gibson/gibson/pkg/protocol"
)

// errShortReply is returned when a reply frame's payload is shorter than
// its reply code requires to decode.
var errShortReply = errors.New("client: truncated reply payload")

func encodeKeyOnly(op protocol.Op, key []byte) []byte {
	body := make([]byte, 2+4+len(key))
	binary.LittleEndian.PutUint16(body[0:2], uint16(op))
	binary.LittleEndian.PutUint32(body[2:6], uint32(len(key)))
	copy(body[6:], key)
	return frame(body)
}

func encodeKeyTTL(op protocol.Op, key []byte, ttl int64) []byte {
	body := make([]byte, 2+4+len(key)+4)
	binary.LittleEndian.PutUint16(body[0:2], uint16(op))
	binary.LittleEndian.PutUint32(body[2:6], uint32(len(key)))
	off := 6 + copy(body[6:], key)
	binary.LittleEndian.PutUint32(body[off:off+4], uint32(int32(ttl)))
	return frame(body)
}

func encodeKeyTTLValue(op protocol.Op, key []byte, ttl int64, value []byte) []byte {
	body := make([]byte, 2+4+len(key)+4+4+len(value))
	binary.LittleEndian.PutUint16(body[0:2], uint16(op))
	binary.LittleEndian.PutUint32(body[2:6], uint32(len(key)))
	off := 6 + copy(body[6:], key)
	binary.LittleEndian.PutUint32(body[off:off+4], uint32(int32(ttl)))
	off += 4
	binary.LittleEndian.PutUint32(body[off:off+4], uint32(len(value)))
	off += 4
	copy(body[off:], value)
	return frame(body)
}

func encodeKeyField(op protocol.Op, key []byte, field protocol.MetaField) []byte {
	body := make([]byte, 2+4+len(key)+1)
	binary.LittleEndian.PutUint16(body[0:2], uint16(op))
	binary.LittleEndian.PutUint32(body[2:6], uint32(len(key)))
	off := 6 + copy(body[6:], key)
	body[off] = uint8(field)
	return frame(body)
}

// frame wraps a body (opcode + arguments) with the u32 little-endian
// size header §6 specifies for requests.
func frame(body []byte) []byte {
	out := make([]byte, 4+len(body))
	binary.LittleEndian.PutUint32(out[0:4], uint32(len(body)))
	copy(out[4:], body)
	return out
}

// readReply reads one reply frame: a u32 size, a u16 reply code, and the
// code-specific payload (§6).
func readReply(r io.Reader) (protocol.ReplyCode, []byte, error) {
	var sizeBuf [4]byte
	if _, err := io.ReadFull(r, sizeBuf[:]); err != nil {
		return 0, nil, err
	}
	size := binary.LittleEndian.Uint32(sizeBuf[:])
	if size < 2 {
		return 0, nil, errShortReply
	}
	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return 0, nil, err
	}
	code := protocol.ReplyCode(binary.LittleEndian.Uint16(body[0:2]))
	return code, body[2:], nil
}

// decodeVal decodes a VAL reply payload: u8 encoding, u32 length, bytes.
func decodeVal(payload []byte) (uint8, []byte, error) {
	if len(payload) < 5 {
		return 0, nil, errShortReply
	}
	encoding := payload[0]
	n := binary.LittleEndian.Uint32(payload[1:5])
	if uint32(len(payload)-5) < n {
		return 0, nil, errShortReply
	}
	return encoding, payload[5 : 5+n], nil
}

// decodeKVal decodes a KVAL reply payload: u32 count, repeated entries.
func decodeKVal(payload []byte) ([]protocol.KValEntry, error) {
	if len(payload) < 4 {
		return nil, errShortReply
	}
	count := binary.LittleEndian.Uint32(payload[0:4])
	off := 4
	entries := make([]protocol.KValEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		if off+4 > len(payload) {
			return nil, errShortReply
		}
		klen := binary.LittleEndian.Uint32(payload[off : off+4])
		off += 4
		if off+int(klen) > len(payload) {
			return nil, errShortReply
		}
		key := payload[off : off+int(klen)]
		off += int(klen)
		if off+1+4 > len(payload) {
			return nil, errShortReply
		}
		encoding := payload[off]
		off++
		vlen := binary.LittleEndian.Uint32(payload[off : off+4])
		off += 4
		if off+int(vlen) > len(payload) {
			return nil, errShortReply
		}
		value := payload[off : off+int(vlen)]
		off += int(vlen)
		entries = append(entries, protocol.KValEntry{Key: key, Encoding: encoding, Value: value})
	}
	return entries, nil
}

func parseInt64(b []byte) (int64, error) {
	return strconv.ParseInt(string(b), 10, 64)
}
