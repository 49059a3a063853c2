// Gibson is a single-process, in-memory key/value cache server.
//
// Clients speak a length-prefixed binary protocol over TCP or a Unix
// domain socket and issue per-key or per-prefix operations (set, get,
// delete, increment, lock, expire, scan, statistics). Keys live in a
// compacted prefix trie, so a single request can affect every key
// sharing a given prefix ("multi" operations).
//
// # Architecture Overview
//
// Gibson consists of several tightly coupled subsystems:
//
//   - Allocator shim: tracks live bytes against a memory budget
//   - LZF codec: block compression for large plain values
//   - Prefix trie: ordered map from byte-string keys to items
//   - Item store: item creation, encoding selection, TTL and locks
//   - Protocol: fixed-field binary request/reply framing
//   - Query processor: opcode dispatch for single- and multi-key ops
//   - Reactor: single dispatcher goroutine serializing all state mutation
//   - Cron: periodic TTL expiry and memory-pressure eviction
//
// # Quick Start
//
// Server:
//
//	import "github.com/gibson/gibson/internal/server"
//	import "github.com/gibson/gibson/pkg/config"
//
//	cfg := config.Load()
//	srv := server.New(cfg)
//	log.Fatal(srv.Start())
//
// Client:
//
//	import "github.com/gibson/gibson/pkg/client"
//
//	c, _ := client.Dial("localhost:6464")
//	defer c.Close()
//
//	c.Set([]byte("user:123"), []byte("john_doe"), 0)
//	value, _, _ := c.Get([]byte("user:123"))
//	c.Keys([]byte("user:"))
//
// # Supported Operations
//
// Single-key: SET, GET, DEL, TTL, INC, DEC, LOCK, UNLOCK, COUNT, META, KEYS.
// Multi-key (prefix-scoped): MSET, MTTL, MGET, MDEL, MINC, MDEC, MLOCK,
// MUNLOCK, MCOUNT.
//
// # Configuration
//
// Server configuration via flags or environment variables:
//
//	./gibson-server -port 8080 -max-memory 268435456
//	# or
//	GIBSON_PORT=8080 GIBSON_MAX_MEMORY=268435456 ./gibson-server
//
// # Package Structure
//
//   - pkg/alloc: counted allocator shim and memory budget
//   - pkg/lzf: LZF block compression codec
//   - pkg/trie: compacted radix trie over byte-string keys
//   - pkg/item: stored value plus metadata
//   - pkg/store: item store (encoding policy, TTL, locks, eviction)
//   - pkg/protocol: binary request/reply framing
//   - pkg/config: flag/env configuration
//   - pkg/metrics: Prometheus counters for server stats
//   - pkg/client: minimal client SDK
//   - internal/query: opcode dispatch
//   - internal/server: reactor, client state machine, lifecycle
//   - internal/cron: periodic maintenance
//   - cmd/gibson-server: server executable
//   - cmd/gibson-cli: example client usage
//
// For detailed documentation of individual packages, see their
// respective godoc pages.
package gibson
