// Package alloc provides a counted allocator shim for Gibson's item store.
//
// Gibson runs as a single process with a fixed memory budget. Rather than
// trust the Go runtime's general-purpose heap to stay under that budget,
// every byte allocated on behalf of a cached item's payload flows through
// this package's counted entry points, so the server always knows exactly
// how much live cache data it is holding.
//
// Example usage:
//
//	a := alloc.New(256 * 1024 * 1024)
//	a.OnOOM(func(reason string) {
//		log.Printf("gibson: out of memory: %s", reason)
//		os.Exit(1)
//	})
//
//	a.Alloc(int64(len(value)))
//	// ... store value ...
//	a.Free(int64(len(value)))
package alloc

import (
	"fmt"
	"sync"
)

// Default entry overhead charged per tracked allocation, approximating
// the fixed bookkeeping cost of an item record and its trie node.
const DefaultOverhead = 48

var byteSuffixes = [...]string{"B", "KB", "MB", "GB", "TB"}

// FormatBytes renders n as a human-readable size ("512.0MB", "1.3GB"),
// dividing by 1024 until it fits under that unit or the largest suffix is
// reached. Used for the startup banner and periodic stats log line.
func FormatBytes(n int64) string {
	d := float64(n)
	i := 0
	for i < len(byteSuffixes)-1 && d >= 1024 {
		d /= 1024
		i++
	}
	return fmt.Sprintf("%.1f%s", d, byteSuffixes[i])
}

// Shim tracks live bytes allocated for cached item payloads against a
// budget and invokes a registered OOM handler when its accounting breaks
// (see Free); it never refuses an allocation. It does not itself allocate or free memory — Go's garbage
// collector does that — it only counts.
//
// A Shim is safe for concurrent use, though Gibson's single dispatcher
// goroutine (see internal/server) is its only caller in practice.
type Shim struct {
	mu sync.Mutex

	budget int64
	used   int64
	peak   int64

	oom func(reason string)
}

// New creates a Shim with the given memory budget in bytes. A budget of 0
// or less means unbounded: OverBudget never reports true. The live-byte
// counter is kept either way.
func New(budget int64) *Shim {
	return &Shim{budget: budget}
}

// OnOOM registers the handler invoked when the shim detects a memory
// accounting invariant has broken (see Free). Gibson's item store never
// refuses a SET for being over budget — it proceeds and relies on the
// cron's pressure eviction (§4.7) to bring usage back down — so this
// handler exists for the allocator's own bookkeeping invariants rather
// than ordinary cache growth.
func (s *Shim) OnOOM(handler func(reason string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.oom = handler
}

// Alloc records n additional live bytes and returns the new total. It
// never fails: Gibson's SET path is expected to proceed even over budget,
// relying on the cron's pressure eviction (§4.7) to bring usage back down.
// Exceeding the budget is not itself an OOM condition — only a counter
// invariant violation is.
func (s *Shim) Alloc(n int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.used += n
	if s.used > s.peak {
		s.peak = s.used
	}
	return s.used
}

// Free records n bytes returned to the pool. Freeing more than was ever
// allocated is a bookkeeping bug in the caller and invokes the OOM
// handler, since it means mem_used can no longer be trusted.
func (s *Shim) Free(n int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.used -= n
	if s.used < 0 {
		handler := s.oom
		s.mu.Unlock()
		if handler != nil {
			handler("memory accounting underflow: freed more than was allocated")
		}
		s.mu.Lock()
		s.used = 0
	}
	return s.used
}

// Used returns the current live byte count (stats.memused).
func (s *Shim) Used() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.used
}

// Peak returns the highest live byte count observed (stats.mempeak).
func (s *Shim) Peak() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peak
}

// Budget returns the configured memory budget in bytes.
func (s *Shim) Budget() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.budget
}

// SetBudget updates the memory budget. Used when max_memory is reloaded
// or clamped at startup against AvailableMemory.
func (s *Shim) SetBudget(budget int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.budget = budget
}

// OverBudget reports whether live usage currently exceeds the configured
// budget. The cron's pressure-eviction task (§4.7) does not call this; it
// compares the store's MemUsed against its own max_memory value.
func (s *Shim) OverBudget() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.budget > 0 && s.used > s.budget
}
