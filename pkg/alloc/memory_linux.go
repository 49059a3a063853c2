//go:build linux

package alloc

import "golang.org/x/sys/unix"

// AvailableMemory is gibson's zmem_available(): a best-effort query of
// free physical memory, used once at startup to clamp max_memory. On
// Linux it reads unix.Sysinfo, grounded on the same golang.org/x/sys/unix
// dependency the retrieval pack's kektordb uses for platform memory
// primitives (pkg/storage/mmap/mmap_unix.go).
//
// Returns 0 if the syscall fails; callers should treat 0 as "unknown"
// and leave the configured max_memory untouched rather than clamping to
// zero.
func AvailableMemory() int64 {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return 0
	}
	// Freeram and Unit are both defined by the kernel's sysinfo(2); Unit
	// is the multiplier that makes the other fields unit-independent of
	// word size.
	unit := uint64(info.Unit)
	if unit == 0 {
		unit = 1
	}
	return int64(uint64(info.Freeram) * unit)
}
