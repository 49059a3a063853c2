// Package cron runs Gibson's periodic maintenance: TTL sweep, memory-
// pressure eviction, a stats log line, and idle-client reaping (§4.7).
//
// Ticks fire on a fixed period (cron_period, typically 100ms); each
// slower sub-task records the time it last ran and runs again only once
// its interval has elapsed, so every tick doesn't pay for a full trie
// walk. Ticks themselves are not counted.
//
// Grounded on cachemir/pkg/cache.Cache.cleanupExpired's time.Ticker
// idiom; cachemir runs exactly one such task, so the tick-gating and
// multi-task shape here is built directly from §4.7's cadence table.
package cron

import (
	"context"
	"log"
	"time"

	"github.com/gibson/gibson/pkg/alloc"
	"github.com/gibson/gibson/pkg/metrics"
	"github.com/gibson/gibson/pkg/store"
)

const (
	ttlSweepEvery = 15 * time.Second
	pressureEvery = 5 * time.Second
	statsLogEvery = 15 * time.Second
)

// IdleReaper is implemented by the server's client registry so cron can
// disconnect clients that have exceeded max_idletime without importing
// internal/server (which itself imports this package's Runner).
type IdleReaper interface {
	ReapIdle(now int64, maxIdletime int64) int
	ClientCount() int
}

// Runner owns the ticking goroutine and the last-run time of each gated
// sub-task.
type Runner struct {
	store       *store.Store
	reaper      IdleReaper
	maxMemory   int64
	gcRatio     int64
	maxIdletime int64
	period      time.Duration
	startedAt   int64

	lastTTLSweep time.Time
	lastPressure time.Time
	lastStatsLog time.Time
}

// NewRunner builds a cron runner. startedAt is the server's boot time
// (unix seconds), used for the stats log's uptime field.
func NewRunner(s *store.Store, reaper IdleReaper, maxMemory, gcRatio, maxIdletime int64, period time.Duration, startedAt int64) *Runner {
	return &Runner{
		store:       s,
		reaper:      reaper,
		maxMemory:   maxMemory,
		gcRatio:     gcRatio,
		maxIdletime: maxIdletime,
		period:      period,
		startedAt:   startedAt,
	}
}

// Run blocks, ticking every period until ctx is canceled. now is called
// once per tick to obtain the current unix-second clock, so tests can
// supply a fake one instead of time.Now.
func (r *Runner) Run(ctx context.Context, now func() int64) {
	ticker := time.NewTicker(r.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(now())
		}
	}
}

// tick runs every sub-task whose gating interval has elapsed. It is
// exported indirectly via Run but kept callable directly so tests can
// drive deterministic ticks without a real timer.
func (r *Runner) Tick(now int64) {
	r.tick(now)
}

func (r *Runner) tick(now int64) {
	nowT := time.Unix(now, 0)

	if r.lastTTLSweep.IsZero() || nowT.Sub(r.lastTTLSweep) >= ttlSweepEvery {
		r.lastTTLSweep = nowT
		n := r.store.SweepExpired(now)
		if n > 0 {
			metrics.Expirations.Add(float64(n))
		}
	}

	if r.maxMemory > 0 && (r.lastPressure.IsZero() || nowT.Sub(r.lastPressure) >= pressureEvery) {
		r.lastPressure = nowT
		if r.store.Stats().MemUsed > r.maxMemory {
			n := r.store.EvictIdle(now, r.gcRatio)
			if n > 0 {
				metrics.Evictions.Add(float64(n))
			}
		}
	}

	if r.lastStatsLog.IsZero() || nowT.Sub(r.lastStatsLog) >= statsLogEvery {
		r.lastStatsLog = nowT
		if r.reaper != nil {
			n := r.reaper.ReapIdle(now, r.maxIdletime)
			if n > 0 {
				metrics.ClientsReaped.Add(float64(n))
			}
		}
		r.logStats(now)
	}
}

func (r *Runner) logStats(now int64) {
	stats := r.store.Stats()
	metrics.MemUsed.Set(float64(stats.MemUsed))
	metrics.MemPeak.Set(float64(stats.MemPeak))
	metrics.Items.Set(float64(stats.NItems))
	metrics.CompressedItems.Set(float64(stats.NCompressed))

	clients := 0
	if r.reaper != nil {
		clients = r.reaper.ClientCount()
		metrics.ConnectedClients.Set(float64(clients))
	}

	avgSize := int64(0)
	if stats.NItems > 0 {
		avgSize = stats.MemUsed / int64(stats.NItems)
	}

	log.Printf("stats: mem_used=%s mem_peak=%s items=%d compressed=%d clients=%d avg_item_size=%s uptime=%ds",
		alloc.FormatBytes(stats.MemUsed), alloc.FormatBytes(stats.MemPeak), stats.NItems, stats.NCompressed,
		clients, alloc.FormatBytes(avgSize), now-r.startedAt)
}
