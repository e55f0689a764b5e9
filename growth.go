package vheap

import "unsafe"

// RequestFunc is the caller-supplied "request more memory" callback of
// spec.md §4.8 (GrowthProtocol): given a minimum size, it returns a
// fresh byte region of at least that length, or nil if no more memory
// can be provided.
type RequestFunc func(minSize uintptr) []byte

// ReleaseFunc returns a previously requested region to the caller. It is
// optional: a Heap with no release callback simply never shrinks and
// Destroy leaves caller-owned regions alone (heap-owned regions from a
// request-only growth protocol are never released either, matching the
// original's "no release mechanism configured" behaviour).
type ReleaseFunc func(buf []byte)

// growthProtocol wraps the two callbacks plus the sizing policy of
// spec.md §4.8: new requests are padded up to a minimum working-set
// increment (DefaultMinNewMemRequest) so that a heap growing under
// pressure doesn't thrash the underlying allocator with tiny requests.
type growthProtocol struct {
	request RequestFunc
	release ReleaseFunc
	minReq  uintptr
}

func newGrowthProtocol() *growthProtocol {
	return &growthProtocol{minReq: DefaultMinNewMemRequest}
}

func (g *growthProtocol) hasRequest() bool { return g.request != nil }
func (g *growthProtocol) hasRelease() bool { return g.release != nil }

func (g *growthProtocol) setRequest(f RequestFunc) { g.request = f }
func (g *growthProtocol) setRelease(f ReleaseFunc) { g.release = f }

// sizeForRequest applies the minimum-increment padding policy: at least
// needed bytes, but never less than minReq so repeated small growth
// requests get coalesced into fewer, larger underlying allocations.
func (g *growthProtocol) sizeForRequest(needed uintptr) uintptr {
	if needed < g.minReq {
		return g.minReq
	}
	return needed
}

// requestGrowth asks the installed callback for at least needed bytes,
// already padded per sizeForRequest. Returns nil if no callback is
// installed or the callback itself returns nil (caller-reported OOM).
func (g *growthProtocol) requestGrowth(needed uintptr) []byte {
	if g.request == nil {
		return nil
	}
	return g.request(g.sizeForRequest(needed))
}

func (g *growthProtocol) releaseChunk(buf []byte) {
	if g.release != nil {
		g.release(buf)
	}
}

// bytesFrom rebuilds a []byte from a recorded base pointer and length.
// destroy.go uses it to hand each released chunk back to the ReleaseFunc
// in the same []byte form RequestFunc produced it.
func bytesFrom(p unsafe.Pointer, n uintptr) []byte {
	return unsafe.Slice((*byte)(p), int(n))
}
