package client

import (
	"bytes"
	"testing"

	"github.com/gibson/gibson/pkg/protocol"
)

func TestEncodeKeyOnlyDecodesViaProtocol(t *testing.T) {
	frame := encodeKeyOnly(protocol.OpGet, []byte("foo"))
	req, err := protocol.ReadRequest(bytes.NewReader(frame), protocol.Limits{})
	if err != nil {
		t.Fatalf("ReadRequest: %v", err)
	}
	if req.Op != protocol.OpGet || string(req.Key) != "foo" {
		t.Fatalf("got op=%v key=%q", req.Op, req.Key)
	}
}

func TestEncodeKeyTTLValueDecodesViaProtocol(t *testing.T) {
	frame := encodeKeyTTLValue(protocol.OpSet, []byte("k"), 60, []byte("v"))
	req, err := protocol.ReadRequest(bytes.NewReader(frame), protocol.Limits{})
	if err != nil {
		t.Fatalf("ReadRequest: %v", err)
	}
	if req.Op != protocol.OpSet || string(req.Key) != "k" || req.TTL != 60 || string(req.Value) != "v" {
		t.Fatalf("got %+v", req)
	}
}

func TestReadReplyRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := protocol.WriteVal(&buf, 0, []byte("hello")); err != nil {
		t.Fatalf("WriteVal: %v", err)
	}
	code, payload, err := readReply(&buf)
	if err != nil {
		t.Fatalf("readReply: %v", err)
	}
	if code != protocol.ReplyVal {
		t.Fatalf("code: got %v, want ReplyVal", code)
	}
	encoding, value, err := decodeVal(payload)
	if err != nil {
		t.Fatalf("decodeVal: %v", err)
	}
	if encoding != 0 || string(value) != "hello" {
		t.Fatalf("got encoding=%d value=%q", encoding, value)
	}
}

func TestDecodeKValRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	entries := []protocol.KValEntry{
		{Key: []byte("a"), Encoding: 0, Value: []byte("1")},
		{Key: []byte("b"), Encoding: 1, Value: []byte("2")},
	}
	if err := protocol.WriteKVal(&buf, entries); err != nil {
		t.Fatalf("WriteKVal: %v", err)
	}
	code, payload, err := readReply(&buf)
	if err != nil {
		t.Fatalf("readReply: %v", err)
	}
	if code != protocol.ReplyKVal {
		t.Fatalf("code: got %v, want ReplyKVal", code)
	}
	got, err := decodeKVal(payload)
	if err != nil {
		t.Fatalf("decodeKVal: %v", err)
	}
	if len(got) != 2 || string(got[0].Key) != "a" || string(got[1].Value) != "2" {
		t.Fatalf("got %+v", got)
	}
}
