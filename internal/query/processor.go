// Package query is Gibson's query processor: it decodes an already-read
// binary request into a store operation, dispatches it by opcode, and
// writes exactly one reply frame (§4.5).
//
// Grounded on cachemir/internal/server.go's executeCommand/
// getCommandHandler dispatch-table pattern, generalized to Gibson's
// opcode set and its single-key/multi-key split — cachemir itself has
// no prefix operations, so the M-prefixed family is built directly from
// §4.5's semantics using pkg/store's multi-key operations, which walk
// pkg/trie's scratch-list WalkPrefix.
package query

import (
	"io"
	"strconv"

	"github.com/gibson/gibson/pkg/item"
	"github.com/gibson/gibson/pkg/lzf"
	"github.com/gibson/gibson/pkg/metrics"
	"github.com/gibson/gibson/pkg/protocol"
	"github.com/gibson/gibson/pkg/store"
)

// Processor dispatches decoded requests against a Store and writes
// their reply frame.
type Processor struct {
	store *store.Store

	// MaxResponseSize bounds the encoded payload size of a KVAL reply
	// (§6's max_response_size). 0 means unbounded. Request-side limits
	// are enforced by protocol.ReadRequest as the frame is parsed; this
	// is the corresponding reply-side guard for KEYS/MGET/MINC/MDEC,
	// whose reply size is driven by how many keys share a prefix rather
	// than by anything bounded at request-decode time.
	MaxResponseSize int
}

// New returns a processor backed by s.
func New(s *store.Store) *Processor {
	return &Processor{store: s}
}

type handlerFunc func(p *Processor, req *protocol.Request, w io.Writer, now int64) error

var handlers = map[protocol.Op]handlerFunc{
	protocol.OpSet:     (*Processor).handleSet,
	protocol.OpTTL:     (*Processor).handleTTL,
	protocol.OpGet:     (*Processor).handleGet,
	protocol.OpDel:     (*Processor).handleDel,
	protocol.OpInc:     (*Processor).handleInc,
	protocol.OpDec:     (*Processor).handleDec,
	protocol.OpLock:    (*Processor).handleLock,
	protocol.OpUnlock:  (*Processor).handleUnlock,
	protocol.OpCount:   (*Processor).handleCount,
	protocol.OpMeta:    (*Processor).handleMeta,
	protocol.OpKeys:    (*Processor).handleKeys,
	protocol.OpMSet:    (*Processor).handleMSet,
	protocol.OpMTTL:    (*Processor).handleMTTL,
	protocol.OpMGet:    (*Processor).handleMGet,
	protocol.OpMDel:    (*Processor).handleMDel,
	protocol.OpMInc:    (*Processor).handleMInc,
	protocol.OpMDec:    (*Processor).handleMDec,
	protocol.OpMLock:   (*Processor).handleMLock,
	protocol.OpMUnlock: (*Processor).handleMUnlock,
	protocol.OpMCount:  (*Processor).handleMCount,
}

// Handle routes req to its opcode's handler and writes the single reply
// frame the handler produces. An unrecognized opcode writes an ERR
// reply; ReadRequest itself already rejects this case, so this path
// exists only as a defensive default. Every dispatch, regardless of
// outcome, is counted on metrics.RequestsTotal by opcode and reply code.
func (p *Processor) Handle(req *protocol.Request, w io.Writer, now int64) error {
	rec := &replyRecorder{Writer: w}
	h, ok := handlers[req.Op]
	var err error
	if !ok {
		err = protocol.WriteErr(rec, "unknown opcode")
	} else {
		err = h(p, req, rec, now)
	}
	metrics.RequestsTotal.WithLabelValues(req.Op.String(), rec.code.String()).Inc()
	return err
}

// replyRecorder wraps the client connection to note which ReplyCode a
// handler wrote, without handlers themselves needing to report it. Every
// reply frame starts with a 6-byte header (u32 size, u16 code) written in
// a single Write call by protocol.writeFrame, so the code is always
// present in the first Write this recorder sees.
type replyRecorder struct {
	io.Writer
	code protocol.ReplyCode
	seen bool
}

func (r *replyRecorder) Write(p []byte) (int, error) {
	if !r.seen && len(p) >= 6 {
		r.code = protocol.ReplyCode(uint16(p[4]) | uint16(p[5])<<8)
		r.seen = true
	}
	return r.Writer.Write(p)
}

func writeNumber(w io.Writer, n int64) error {
	return protocol.WriteVal(w, uint8(item.Number), []byte(strconv.FormatInt(n, 10)))
}

// writeKVal enforces MaxResponseSize before committing to a KVAL reply:
// a KEYS or MGET over a wide prefix can otherwise grow the reply frame
// without bound, unlike every request-side field, which protocol.
// ReadRequest already caps as it parses.
func (p *Processor) writeKVal(w io.Writer, entries []protocol.KValEntry) error {
	if p.MaxResponseSize > 0 && protocol.KValSize(entries)+2 > p.MaxResponseSize {
		return protocol.WriteErr(w, "response exceeds max_response_size")
	}
	return protocol.WriteKVal(w, entries)
}

func (p *Processor) handleSet(req *protocol.Request, w io.Writer, now int64) error {
	err := p.store.Set(req.Key, req.Value, req.TTL, now)
	return writeErrOr(w, err, protocol.WriteOK)
}

func (p *Processor) handleTTL(req *protocol.Request, w io.Writer, now int64) error {
	err := p.store.SetTTL(req.Key, req.TTL, now)
	return writeErrOr(w, err, protocol.WriteOK)
}

func (p *Processor) handleGet(req *protocol.Request, w io.Writer, now int64) error {
	it, err := p.store.Get(req.Key, now)
	if err != nil {
		return writeErrOr(w, err, nil)
	}
	value, derr := it.AsBytes(nil, lzf.Decompress)
	if derr != nil {
		return protocol.WriteErr(w, derr.Error())
	}
	return protocol.WriteVal(w, uint8(it.Encoding), value)
}

func (p *Processor) handleDel(req *protocol.Request, w io.Writer, now int64) error {
	err := p.store.Del(req.Key, now)
	return writeErrOr(w, err, protocol.WriteOK)
}

func (p *Processor) incrDecr(key []byte, delta int64, w io.Writer, now int64) error {
	n, err := p.store.Incr(key, delta, now)
	if err != nil {
		return writeErrOr(w, err, nil)
	}
	return writeNumber(w, n)
}

func (p *Processor) handleInc(req *protocol.Request, w io.Writer, now int64) error {
	return p.incrDecr(req.Key, 1, w, now)
}

func (p *Processor) handleDec(req *protocol.Request, w io.Writer, now int64) error {
	return p.incrDecr(req.Key, -1, w, now)
}

func (p *Processor) handleLock(req *protocol.Request, w io.Writer, now int64) error {
	err := p.store.Lock(req.Key, req.TTL, now)
	return writeErrOr(w, err, protocol.WriteOK)
}

func (p *Processor) handleUnlock(req *protocol.Request, w io.Writer, now int64) error {
	err := p.store.Unlock(req.Key, now)
	return writeErrOr(w, err, protocol.WriteOK)
}

func (p *Processor) handleCount(req *protocol.Request, w io.Writer, now int64) error {
	return writeNumber(w, int64(p.store.Count(req.Key, now)))
}

func (p *Processor) handleMeta(req *protocol.Request, w io.Writer, now int64) error {
	meta, err := p.store.Meta(req.Key, now)
	if err != nil {
		return writeErrOr(w, err, nil)
	}
	switch req.Field {
	case protocol.FieldSize:
		return writeNumber(w, int64(meta.Size))
	case protocol.FieldEncoding:
		return protocol.WriteVal(w, uint8(item.Plain), []byte(meta.Encoding.String()))
	case protocol.FieldTTL:
		return writeNumber(w, meta.TTLRemaining)
	case protocol.FieldLockRemaining:
		return writeNumber(w, meta.LockRemaining)
	case protocol.FieldLastAccessAge:
		return writeNumber(w, meta.LastAccessedAt)
	default:
		return protocol.WriteErr(w, "unknown META field")
	}
}

func (p *Processor) handleKeys(req *protocol.Request, w io.Writer, now int64) error {
	keys := p.store.Keys(req.Key, now)
	entries := make([]protocol.KValEntry, len(keys))
	for i, k := range keys {
		entries[i] = protocol.KValEntry{Key: k}
	}
	return p.writeKVal(w, entries)
}

func (p *Processor) handleMSet(req *protocol.Request, w io.Writer, now int64) error {
	p.store.MSet(req.Key, req.Value, req.TTL, now)
	return protocol.WriteOK(w)
}

func (p *Processor) handleMTTL(req *protocol.Request, w io.Writer, now int64) error {
	p.store.MTTL(req.Key, req.TTL, now)
	return protocol.WriteOK(w)
}

func (p *Processor) handleMGet(req *protocol.Request, w io.Writer, now int64) error {
	results := p.store.MGet(req.Key, now)
	entries := make([]protocol.KValEntry, 0, len(results))
	for _, r := range results {
		if r.Err != nil || r.Value == nil {
			continue
		}
		value, err := r.Value.AsBytes(nil, lzf.Decompress)
		if err != nil {
			continue
		}
		entries = append(entries, protocol.KValEntry{Key: r.Key, Encoding: uint8(r.Value.Encoding), Value: value})
	}
	return p.writeKVal(w, entries)
}

func (p *Processor) handleMDel(req *protocol.Request, w io.Writer, now int64) error {
	p.store.MDel(req.Key, now)
	return protocol.WriteOK(w)
}

func (p *Processor) mincrDecr(prefix []byte, inc bool, w io.Writer, now int64) error {
	var results []store.MultiResult
	if inc {
		results = p.store.MInc(prefix, now)
	} else {
		results = p.store.MDec(prefix, now)
	}
	entries := make([]protocol.KValEntry, 0, len(results))
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		entries = append(entries, protocol.KValEntry{
			Key:      r.Key,
			Encoding: uint8(item.Number),
			Value:    []byte(strconv.FormatInt(r.N, 10)),
		})
	}
	return p.writeKVal(w, entries)
}

func (p *Processor) handleMInc(req *protocol.Request, w io.Writer, now int64) error {
	return p.mincrDecr(req.Key, true, w, now)
}

func (p *Processor) handleMDec(req *protocol.Request, w io.Writer, now int64) error {
	return p.mincrDecr(req.Key, false, w, now)
}

func (p *Processor) handleMLock(req *protocol.Request, w io.Writer, now int64) error {
	p.store.MLock(req.Key, req.TTL, now)
	return protocol.WriteOK(w)
}

func (p *Processor) handleMUnlock(req *protocol.Request, w io.Writer, now int64) error {
	p.store.MUnlock(req.Key, now)
	return protocol.WriteOK(w)
}

func (p *Processor) handleMCount(req *protocol.Request, w io.Writer, now int64) error {
	return writeNumber(w, int64(p.store.MCount(req.Key, now)))
}

// writeErrOr writes the reply matching err (NotFound/Locked/NaN/ERR), or
// invokes ok (if non-nil) when err is nil.
func writeErrOr(w io.Writer, err error, ok func(io.Writer) error) error {
	switch err {
	case nil:
		if ok != nil {
			return ok(w)
		}
		return nil
	case store.ErrNotFound:
		return protocol.WriteNotFound(w)
	case store.ErrLocked:
		return protocol.WriteLocked(w)
	case store.ErrNaN:
		return protocol.WriteNaN(w)
	default:
		return protocol.WriteErr(w, err.Error())
	}
}
