//go:build !linux

package alloc

import "runtime"

// AvailableMemory is gibson's zmem_available() on non-Linux platforms,
// where unix.Sysinfo has no equivalent. It falls back to a heuristic
// derived from the Go runtime's own memory statistics: this cannot
// report true system-wide free memory, but is enough to avoid clamping
// max_memory to an obviously-wrong value on a developer's laptop.
func AvailableMemory() int64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	if m.Sys > m.HeapInuse {
		return int64(m.Sys - m.HeapInuse)
	}
	return 0
}
