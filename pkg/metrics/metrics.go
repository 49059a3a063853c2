// Package metrics exposes Gibson's runtime counters as Prometheus
// metrics: memory usage, item counts, connected clients, and the
// cron's eviction/expiration activity (§4.7, §8).
//
// Grounded on sanonone-kektordb/pkg/metrics.metrics.go's package-level
// promauto.NewGaugeVec/NewCounterVec pattern, which registers metrics at
// package init with no explicit registry wiring required by callers.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MemUsed tracks the allocator shim's live byte count.
	MemUsed = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gibson_mem_used_bytes",
		Help: "Bytes currently charged against the memory budget",
	})

	// MemPeak tracks the allocator shim's high-water mark.
	MemPeak = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gibson_mem_peak_bytes",
		Help: "Peak bytes ever charged against the memory budget",
	})

	// Items tracks the number of live keys in the trie.
	Items = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gibson_items",
		Help: "Number of live items in the store",
	})

	// CompressedItems tracks how many live items are COMPRESSED-encoded.
	CompressedItems = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gibson_compressed_items",
		Help: "Number of live items stored with LZF compression",
	})

	// ConnectedClients tracks the number of open client connections.
	ConnectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gibson_connected_clients",
		Help: "Number of currently connected clients",
	})

	// Expirations counts items removed by the TTL sweep.
	Expirations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gibson_expirations_total",
		Help: "Total items removed by TTL expiry",
	})

	// Evictions counts items removed by pressure eviction.
	Evictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gibson_evictions_total",
		Help: "Total items removed by memory-pressure eviction",
	})

	// ClientsReaped counts clients disconnected for exceeding
	// max_idletime.
	ClientsReaped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gibson_clients_reaped_total",
		Help: "Total client connections closed for idling past max_idletime",
	})

	// RequestsTotal counts processed requests, labeled by opcode name
	// and reply code.
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gibson_requests_total",
		Help: "Total requests processed, by opcode and reply code",
	}, []string{"op", "reply"})
)
