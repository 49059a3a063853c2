// Package client provides a minimal SDK for talking to a single Gibson
// server over its binary protocol (§6). Unlike the teacher's multi-node
// client, Gibson is an explicitly single-process server (§1 non-goals:
// no clustering), so this client targets one address and carries no
// consistent-hash node selection.
//
// Example usage:
//
//	c, err := client.Dial("localhost:6464")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer c.Close()
//
//	c.Set([]byte("user:1"), []byte("john_doe"), 0)
//	value, _, err := c.Get([]byte("user:1"))
//
// Grounded on cachemir/pkg/client.Client's connection and
// request/response shape, trimmed of its ConnectionPool and
// consistent-hash ring since Gibson has exactly one node to talk to.
package client

import (
	"errors"
	"net"
	"time"

	"github.com/gibson/gibson/pkg/protocol"
)

// ErrNotFound mirrors protocol.ReplyNotFound: the key is absent or has
// expired.
var ErrNotFound = errors.New("client: key not found")

// ErrLocked mirrors protocol.ReplyLocked.
var ErrLocked = errors.New("client: key is locked")

// ErrNaN mirrors protocol.ReplyNaN.
var ErrNaN = errors.New("client: value is not a number")

// KV is one key/value pair returned by a multi-key reply (MGET, MINC,
// MDEC). Keys returns bare keys instead.
type KV struct {
	Key      []byte
	Encoding uint8
	Value    []byte
}

// Client is a connection to one Gibson server. It is not safe for
// concurrent use by multiple goroutines — per §5, a connection's
// requests are processed strictly in receipt order, so pipelining from
// several goroutines would only race on which request's frame lands
// first on the wire.
type Client struct {
	conn    net.Conn
	timeout time.Duration
}

// Dial connects to a Gibson server listening at addr, a "host:port" TCP
// address. Use DialUnix for a Unix domain socket path.
func Dial(addr string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, timeout: 10 * time.Second}, nil
}

// DialUnix connects to a Gibson server listening on the Unix domain
// socket at path.
func DialUnix(path string) (*Client, error) {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, timeout: 10 * time.Second}, nil
}

// SetTimeout overrides the per-request read/write deadline (default
// 10s).
func (c *Client) SetTimeout(d time.Duration) { c.timeout = d }

// Close closes the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }

func (c *Client) deadline() time.Time { return time.Now().Add(c.timeout) }

// roundTrip writes a pre-encoded request frame and decodes the reply.
func (c *Client) roundTrip(frame []byte) (protocol.ReplyCode, []byte, error) {
	if err := c.conn.SetWriteDeadline(c.deadline()); err != nil {
		return 0, nil, err
	}
	if _, err := c.conn.Write(frame); err != nil {
		return 0, nil, err
	}
	if err := c.conn.SetReadDeadline(c.deadline()); err != nil {
		return 0, nil, err
	}
	return readReply(c.conn)
}

func asErr(code protocol.ReplyCode, payload []byte) error {
	switch code {
	case protocol.ReplyNotFound:
		return ErrNotFound
	case protocol.ReplyLocked:
		return ErrLocked
	case protocol.ReplyNaN:
		return ErrNaN
	case protocol.ReplyErr:
		return errors.New("client: server error: " + string(payload))
	default:
		return nil
	}
}

// Set stores value at key with the given ttl in seconds (0 for no
// expiration, unless the server has a max-item-ttl set, which then
// becomes the item's ttl).
func (c *Client) Set(key, value []byte, ttl int64) error {
	code, payload, err := c.roundTrip(encodeKeyTTLValue(protocol.OpSet, key, ttl, value))
	if err != nil {
		return err
	}
	return asErr(code, payload)
}

// Get retrieves the value and encoding stored at key.
func (c *Client) Get(key []byte) ([]byte, uint8, error) {
	code, payload, err := c.roundTrip(encodeKeyOnly(protocol.OpGet, key))
	if err != nil {
		return nil, 0, err
	}
	if code != protocol.ReplyVal {
		return nil, 0, asErr(code, payload)
	}
	encoding, value, err := decodeVal(payload)
	return value, encoding, err
}

// Del removes key.
func (c *Client) Del(key []byte) error {
	code, payload, err := c.roundTrip(encodeKeyOnly(protocol.OpDel, key))
	if err != nil {
		return err
	}
	return asErr(code, payload)
}

// TTL sets key's expiration to seconds from now (0 clears it, unless the
// server has a max-item-ttl set, which then becomes the item's ttl).
func (c *Client) TTL(key []byte, seconds int64) error {
	code, payload, err := c.roundTrip(encodeKeyTTL(protocol.OpTTL, key, seconds))
	if err != nil {
		return err
	}
	return asErr(code, payload)
}

// Inc increments key's numeric value by 1, returning the new value.
func (c *Client) Inc(key []byte) (int64, error) {
	return c.incrDecr(protocol.OpInc, key)
}

// Dec decrements key's numeric value by 1, returning the new value.
func (c *Client) Dec(key []byte) (int64, error) {
	return c.incrDecr(protocol.OpDec, key)
}

func (c *Client) incrDecr(op protocol.Op, key []byte) (int64, error) {
	code, payload, err := c.roundTrip(encodeKeyOnly(op, key))
	if err != nil {
		return 0, err
	}
	if code != protocol.ReplyVal {
		return 0, asErr(code, payload)
	}
	_, value, err := decodeVal(payload)
	if err != nil {
		return 0, err
	}
	return parseInt64(value)
}

// Lock sets a write lock on key for seconds.
func (c *Client) Lock(key []byte, seconds int64) error {
	code, payload, err := c.roundTrip(encodeKeyTTL(protocol.OpLock, key, seconds))
	if err != nil {
		return err
	}
	return asErr(code, payload)
}

// Unlock clears key's write lock.
func (c *Client) Unlock(key []byte) error {
	code, payload, err := c.roundTrip(encodeKeyOnly(protocol.OpUnlock, key))
	if err != nil {
		return err
	}
	return asErr(code, payload)
}

// Count reports 1 if key names a live item, 0 otherwise.
func (c *Client) Count(key []byte) (int64, error) {
	code, payload, err := c.roundTrip(encodeKeyOnly(protocol.OpCount, key))
	if err != nil {
		return 0, err
	}
	if code != protocol.ReplyVal {
		return 0, asErr(code, payload)
	}
	_, value, err := decodeVal(payload)
	if err != nil {
		return 0, err
	}
	return parseInt64(value)
}

// MetaField selects which introspection value Meta returns.
type MetaField = protocol.MetaField

// Meta field selectors, re-exported for callers that don't want to
// import pkg/protocol directly.
const (
	FieldSize          = protocol.FieldSize
	FieldEncoding      = protocol.FieldEncoding
	FieldTTL           = protocol.FieldTTL
	FieldLockRemaining = protocol.FieldLockRemaining
	FieldLastAccessAge = protocol.FieldLastAccessAge
)

// Meta returns the raw value of the requested introspection field for
// key: a decimal number for Size/TTL/LockRemaining/LastAccessAge, or the
// encoding name ("PLAIN"/"NUMBER"/"COMPRESSED") for FieldEncoding.
func (c *Client) Meta(key []byte, field MetaField) ([]byte, error) {
	code, payload, err := c.roundTrip(encodeKeyField(protocol.OpMeta, key, field))
	if err != nil {
		return nil, err
	}
	if code != protocol.ReplyVal {
		return nil, asErr(code, payload)
	}
	_, value, err := decodeVal(payload)
	return value, err
}

// MTTL resets the TTL clock on every key under prefix.
func (c *Client) MTTL(prefix []byte, seconds int64) error {
	code, payload, err := c.roundTrip(encodeKeyTTL(protocol.OpMTTL, prefix, seconds))
	if err != nil {
		return err
	}
	return asErr(code, payload)
}

// MInc increments every numeric value under prefix by 1, returning the
// per-key results.
func (c *Client) MInc(prefix []byte) ([]KV, error) {
	return c.mIncDec(protocol.OpMInc, prefix)
}

// MDec decrements every numeric value under prefix by 1, returning the
// per-key results.
func (c *Client) MDec(prefix []byte) ([]KV, error) {
	return c.mIncDec(protocol.OpMDec, prefix)
}

func (c *Client) mIncDec(op protocol.Op, prefix []byte) ([]KV, error) {
	code, payload, err := c.roundTrip(encodeKeyOnly(op, prefix))
	if err != nil {
		return nil, err
	}
	if code != protocol.ReplyKVal {
		return nil, asErr(code, payload)
	}
	entries, err := decodeKVal(payload)
	if err != nil {
		return nil, err
	}
	kvs := make([]KV, len(entries))
	for i, e := range entries {
		kvs[i] = KV{Key: e.Key, Encoding: e.Encoding, Value: e.Value}
	}
	return kvs, nil
}

// Keys returns every live key under prefix, in lexicographic order.
func (c *Client) Keys(prefix []byte) ([][]byte, error) {
	code, payload, err := c.roundTrip(encodeKeyOnly(protocol.OpKeys, prefix))
	if err != nil {
		return nil, err
	}
	if code != protocol.ReplyKVal {
		return nil, asErr(code, payload)
	}
	entries, err := decodeKVal(payload)
	if err != nil {
		return nil, err
	}
	keys := make([][]byte, len(entries))
	for i, e := range entries {
		keys[i] = e.Key
	}
	return keys, nil
}

// MSet applies Set to every key under prefix.
func (c *Client) MSet(prefix, value []byte, ttl int64) error {
	code, payload, err := c.roundTrip(encodeKeyTTLValue(protocol.OpMSet, prefix, ttl, value))
	if err != nil {
		return err
	}
	return asErr(code, payload)
}

// MGet reads every key under prefix.
func (c *Client) MGet(prefix []byte) ([]KV, error) {
	code, payload, err := c.roundTrip(encodeKeyOnly(protocol.OpMGet, prefix))
	if err != nil {
		return nil, err
	}
	if code != protocol.ReplyKVal {
		return nil, asErr(code, payload)
	}
	entries, err := decodeKVal(payload)
	if err != nil {
		return nil, err
	}
	kvs := make([]KV, len(entries))
	for i, e := range entries {
		kvs[i] = KV{Key: e.Key, Encoding: e.Encoding, Value: e.Value}
	}
	return kvs, nil
}

// MDel deletes every key under prefix.
func (c *Client) MDel(prefix []byte) error {
	code, payload, err := c.roundTrip(encodeKeyOnly(protocol.OpMDel, prefix))
	if err != nil {
		return err
	}
	return asErr(code, payload)
}

// MLock locks every key under prefix for seconds.
func (c *Client) MLock(prefix []byte, seconds int64) error {
	code, payload, err := c.roundTrip(encodeKeyTTL(protocol.OpMLock, prefix, seconds))
	if err != nil {
		return err
	}
	return asErr(code, payload)
}

// MUnlock clears the write lock on every key under prefix.
func (c *Client) MUnlock(prefix []byte) error {
	code, payload, err := c.roundTrip(encodeKeyOnly(protocol.OpMUnlock, prefix))
	if err != nil {
		return err
	}
	return asErr(code, payload)
}

// MCount reports the number of live keys under prefix.
func (c *Client) MCount(prefix []byte) (int64, error) {
	code, payload, err := c.roundTrip(encodeKeyOnly(protocol.OpMCount, prefix))
	if err != nil {
		return 0, err
	}
	if code != protocol.ReplyVal {
		return 0, asErr(code, payload)
	}
	_, value, err := decodeVal(payload)
	if err != nil {
		return 0, err
	}
	return parseInt64(value)
}
