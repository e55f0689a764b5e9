// Package vheap implements a user-space heap allocator over caller-supplied
// byte regions.
//
// # Overview
//
// vheap is a drop-in replacement for the platform allocator in contexts
// where the caller must control the backing memory — embedded systems,
// arenas built on top of mmap, sandboxed subsystems — and wants optional
// metadata corruption detection. Unlike a pure bump allocator, vheap
// supports individual Free and Realloc: it combines
//
//   - a General-Purpose Allocator (GPA): a size-indexed best-fit free
//     list over a doubly-linked slot ring, with splitting, coalescing
//     and optional checksums on every metadata record;
//   - a Small Round-Robin Allocator (SRA): fixed-size tiny allocations
//     served from linked chunks;
//   - a dispatcher that routes requests between SRA, GPA, and an
//     early-release bypass for very large allocations; and
//   - a growth protocol that requests additional backing regions from a
//     caller-supplied callback on demand.
//
// # Basic Usage
//
//	h, _ := vheap.Create(vheap.CreateOptions{
//		Request: func(minSize uintptr) []byte { return make([]byte, minSize) },
//	})
//	defer h.Destroy()
//
//	p := h.Malloc(128)
//	p = h.Realloc(p, 256)
//	h.Free(p)
//
// # Caller-Supplied Regions
//
//	region := make([]byte, 1<<16)
//	h, _ := vheap.CreateIn(region, vheap.CreateOptions{})
//	defer h.Destroy()
//
// # Growth
//
// Install a growth callback to let the heap request additional regions
// once its initial region is exhausted:
//
//	h.SetRequestMechanism(func(minSize uintptr) []byte { return make([]byte, minSize) })
//	h.SetReleaseMechanism(func(region []byte) {})
//
// # Thread Safety
//
// Every public operation on *Heap acquires an internal reentrant lock on
// entry and releases it on every exit path. Pass
// AssumeThreadSafeUsage at Create time to disable locking entirely when
// the embedder guarantees external serialisation.
//
// # Corruption Detection
//
// With the HasChecksum flag, every GPA metadata record carries a checksum
// that is validated when the record is freed or reallocated; other
// accesses do not check it. A checksum mismatch or a double-free is fatal: vheap dumps
// allocator state and aborts, because continuing would operate on
// already-corrupted metadata.
//
// # Performance Characteristics
//
//   - GPA allocate/free: bounded-exploration best-fit, O(max slot
//     checks) amortised with bucket arenas or a bucket tree enabled.
//   - SRA allocate/free: O(1) amortised round robin.
//   - Growth: O(1) per donated chunk.
//
// # Limitations
//
// vheap targets a single allocator instance shared across goroutines
// behind one mutex: there is no per-thread cache, no NUMA awareness, and
// no compaction beyond what splitting and coalescing already provide.
// Checksums catch accidental corruption only, never adversarial
// tampering.
package vheap
