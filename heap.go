package vheap

import (
	"sync/atomic"
	"unsafe"
)

// Heap is a vheap instance: the public entry point mirroring
// original_source/src/virtalloc.h's opaque VirtAllocHeap. A Heap
// multiplexes allocations across a GPA and (optionally) an SRA behind a
// single reentrant lock, per spec.md §4.1/§4.2.
type Heap struct {
	cfg    config
	lock   *reentrantLock
	growth *growthProtocol
	gpa    *gpa
	sra    *sra
	disp   *dispatcher

	earlyReleased []*gpaEarlyReleaseHeader
	destroyed     bool

	allocCount atomic.Int64
	freeCount  atomic.Int64
}

// CreateOptions configures Create/CreateIn (spec.md §4.1 Create).
type CreateOptions struct {
	// Flags selects the ambient behaviour bitset (checksums, bucket
	// strategy, size-class policy, ...). Zero means DefaultFlags.
	Flags CreateFlags
	// NumBuckets overrides the number of size-class buckets for the
	// arena/tree strategies. Zero means DefaultNumBuckets.
	NumBuckets int
	// Request/Release wire up the GrowthProtocol (spec.md §4.8). A Heap
	// created without Request can still serve allocations out of an
	// initial region passed to CreateIn, but returns AllocationFailure
	// once that region is exhausted.
	Request RequestFunc
	Release ReleaseFunc
}

// Create allocates a Heap with no initial backing region: the first
// Malloc call triggers a growth request.
func Create(opts CreateOptions) (*Heap, error) {
	return newHeap(nil, opts)
}

// CreateIn initialises a Heap directly inside a caller-supplied region,
// exactly as original_source's virtalloc_create_in does: the region is
// donated to the GPA up front and is never released by Destroy, even when
// Release is supplied (vheap never assumes ownership of memory it did
// not allocate itself).
func CreateIn(region []byte, opts CreateOptions) (*Heap, error) {
	if len(region) == 0 {
		return nil, errInvalidConfiguration("CreateIn requires a non-empty region")
	}
	return newHeap(region, opts)
}

func newHeap(initial []byte, opts CreateOptions) (*Heap, error) {
	flags := opts.Flags
	if flags == 0 {
		flags = DefaultFlags
	}
	cfg, err := decodeFlags(flags, opts.NumBuckets)
	if err != nil {
		return nil, err
	}

	h := &Heap{
		cfg:    cfg,
		lock:   newReentrantLock(cfg.assumeThreadSafe),
		growth: newGrowthProtocol(),
	}
	h.growth.setRequest(opts.Request)
	h.growth.setRelease(opts.Release)

	h.gpa = newGPA(h, &h.cfg, h.growth)
	if cfg.rrAllocatorEnabled {
		h.sra = newSRA(h, &h.cfg)
	}
	h.disp = newDispatcher(h, &h.cfg, h.sra, h.gpa)

	if initial != nil {
		if h.gpa.donate(initial, false) == nil {
			return nil, errInvalidConfiguration("initial region too small to hold a single GPA slot")
		}
	}
	return h, nil
}

// SetRequestMechanism installs or replaces the growth-request callback
// after Create (spec.md §4.8).
func (h *Heap) SetRequestMechanism(f RequestFunc) {
	h.lock.acquire()
	defer h.lock.release()
	h.growth.setRequest(f)
}

// SetReleaseMechanism installs or replaces the growth-release callback.
func (h *Heap) SetReleaseMechanism(f ReleaseFunc) {
	h.lock.acquire()
	defer h.lock.release()
	h.growth.setRelease(f)
}

// SetMaxGPASlotChecks bounds how many ring hops the GPA's forward/backward
// best-fit exploration performs before giving up (spec.md §9).
func (h *Heap) SetMaxGPASlotChecks(n int) {
	h.lock.acquire()
	defer h.lock.release()
	h.cfg.maxGPASlotChecks = uintptr(n)
}

// SetMaxSRASlotChecks exists for API symmetry with the original's tuning
// knobs; the SRA's round-robin scan is already bounded to one full
// revolution by construction (spec.md §4.6). The stored value is read
// neither by that scan nor by Stats.
func (h *Heap) SetMaxSRASlotChecks(n int) {
	h.lock.acquire()
	defer h.lock.release()
	h.cfg.maxSRASlotChecks = uintptr(n)
}

// EnableHeavyDebugChecks sets the HEAVY_DEBUG_CORRUPTION_CHECKS flag
// after Create. No allocation, free or realloc path reads the flag, so
// setting it does not add any checksum validation.
func (h *Heap) EnableHeavyDebugChecks() {
	h.lock.acquire()
	defer h.lock.release()
	h.cfg.heavyDebug = true
}

func (h *Heap) DisableHeavyDebugChecks() {
	h.lock.acquire()
	defer h.lock.release()
	h.cfg.heavyDebug = false
}

// Malloc implements spec.md §4.3. Returns nil on AllocationFailure.
func (h *Heap) Malloc(size uintptr) unsafe.Pointer {
	h.lock.acquire()
	defer h.lock.release()
	h.checkNotDestroyed()
	p := h.disp.malloc(size)
	if p != nil {
		h.allocCount.Add(1)
	}
	return p
}

// Free implements spec.md §4.3.
func (h *Heap) Free(p unsafe.Pointer) {
	if p == nil {
		return
	}
	h.lock.acquire()
	defer h.lock.release()
	h.checkNotDestroyed()
	h.disp.free(p)
	h.freeCount.Add(1)
}

// Realloc implements spec.md §4.7.
func (h *Heap) Realloc(p unsafe.Pointer, size uintptr) unsafe.Pointer {
	h.lock.acquire()
	defer h.lock.release()
	h.checkNotDestroyed()
	return h.disp.realloc(p, size)
}

func (h *Heap) checkNotDestroyed() {
	if h.destroyed {
		abort(h, PreconditionViolation, "operation on a Heap after Destroy")
	}
}

func (h *Heap) trackEarlyRelease(er *gpaEarlyReleaseHeader) {
	h.earlyReleased = append(h.earlyReleased, er)
}

func (h *Heap) untrackEarlyRelease(er *gpaEarlyReleaseHeader) {
	for i, x := range h.earlyReleased {
		if x == er {
			h.earlyReleased = append(h.earlyReleased[:i], h.earlyReleased[i+1:]...)
			return
		}
	}
}

// Destroy implements spec.md §4.9. The Heap must not be used afterwards.
func (h *Heap) Destroy() {
	h.destroy()
}

// Stats summarises a Heap's current state, generalising the teacher's
// Metrics() with a field per GPA/SRA concern Stats() exposes in
// spec.md §4.10/§6.
type Stats struct {
	TotalAllocations int64
	TotalFrees       int64
	GPAChunkCount    int
	SRAChunkCount    int
	BucketStrategy   string
	NumBuckets       int
	LargestFreeGPA   uintptr
}

func (h *Heap) Stats() Stats {
	h.lock.acquire()
	defer h.lock.release()
	s := Stats{
		TotalAllocations: h.allocCount.Load(),
		TotalFrees:       h.freeCount.Load(),
		NumBuckets:       h.cfg.numBuckets,
	}
	if h.gpa != nil {
		s.GPAChunkCount = len(h.gpa.chunks)
		if b := h.gpa.biggestFree(); b != nil {
			s.LargestFreeGPA = b.size
		}
	}
	if h.sra != nil {
		s.SRAChunkCount = len(h.sra.chunks)
	}
	switch h.cfg.strategy {
	case strategyNoBuckets:
		s.BucketStrategy = "no-buckets"
	case strategyBucketArenas:
		s.BucketStrategy = "bucket-arenas"
	case strategyBucketTree:
		s.BucketStrategy = "bucket-tree"
	}
	return s
}
