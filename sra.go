package vheap

import "unsafe"

// sraChunkRecord is the Destructor's bookkeeping for one donated SRA
// chunk (spec.md §3 "SRA chunk" / §4.9): mirrors gpaChunkRecord so both
// allocators tear down through the same kind of authoritative list
// rather than by walking possibly-corrupted slot metadata.
type sraChunkRecord struct {
	start *sraChunkStart
}

// sra is the Small Round-Robin Allocator of spec.md §4.6: fixed-size
// tiny allocations served from a cyclic chain of chunks, each chunk a
// flat array of MAX_TINY-sized slots with the last slot in every chunk
// rewired into a SRA_LINK that points at the next chunk's first slot,
// the final chunk linking back to the very first chunk to close the
// cycle. Allocation scans forward from a persistent cursor (true round
// robin, not best-fit) so that free slots get reused roughly in the
// order they were freed.
type sra struct {
	h       *Heap
	cfg     *config
	cursor  *sraSlotHeader
	chunks  []*sraChunkRecord
	count   int // number of real (non-link) slots installed, for diagnostics/Stats
}

func newSRA(h *Heap, cfg *config) *sra {
	return &sra{h: h, cfg: cfg}
}

// slotsPerChunk returns how many MAX_TINY slots (including the trailing
// link slot) fit in a buffer of the given raw length, after accounting
// for the chunk-start header.
func (s *sra) slotsPerChunk(rawLen uintptr) int {
	if rawLen < sraChunkStartSize+s.cfg.maxTiny {
		return 0
	}
	return int((rawLen - sraChunkStartSize) / s.cfg.maxTiny)
}

// donate installs buf as a new SRA chunk: a chunk-start header, N-1
// usable slots, and a trailing SRA_LINK slot. The new chunk is spliced
// into the round-robin cycle immediately after the current cursor (or
// becomes the sole chunk, linking to itself) so the allocator starts
// handing out the fresh slots right away rather than waiting a full
// revolution.
func (s *sra) donate(buf []byte, owned bool) bool {
	if len(buf) == 0 {
		return false
	}
	n := s.slotsPerChunk(uintptr(len(buf)))
	if n < 2 { // need at least one usable slot plus the link slot
		return false
	}
	rawBase := unsafe.Pointer(&buf[0])
	start := newSRAChunkStart(rawBase, rawBase, uintptr(len(buf)), owned)
	s.chunks = append(s.chunks, &sraChunkRecord{start: start})

	first := firstSlotOfChunk(rawBase)
	cur := first
	for i := 0; i < n-1; i++ {
		cur.flags = 0
		cur.setFree(true)
		cur.setTag(tagSRASlot)
		s.count++
		cur = cur.physicalNext(s.cfg.maxTiny)
	}
	link := cur
	link.flags = 0
	link.setTag(tagSRALink)

	if s.cursor == nil {
		link.setLinkTarget(first)
		s.cursor = first
		return true
	}
	// splice: the new chunk's link points wherever the cursor's own
	// chunk used to point; find the link slot that currently feeds the
	// cursor's chunk by walking forward from the cursor until we hit a
	// link, then redirect it through the new chunk.
	walker := s.cursor
	for walker.tag() != tagSRALink {
		walker = walker.physicalNext(s.cfg.maxTiny)
	}
	oldTarget := walker.linkTarget()
	walker.setLinkTarget(first)
	link.setLinkTarget(oldTarget)
	return true
}

// allocate implements SRA's round-robin scan (spec.md §4.6): starting
// from the cursor, walk at most one full revolution looking for a free
// slot (skipping link slots transparently), mark it allocated, advance
// the cursor past it, and return its user pointer. Returns nil when
// every slot is occupied.
func (s *sra) allocate() unsafe.Pointer {
	if s.cursor == nil {
		return nil
	}
	start := s.cursor
	cur := start
	for {
		if cur.tag() == tagSRASlot && cur.isFree() {
			cur.setFree(false)
			s.cursor = getNextSRASlot(cur, s.cfg.maxTiny)
			return cur.userPtr()
		}
		cur = getNextSRASlot(cur, s.cfg.maxTiny)
		if cur == start {
			return nil
		}
	}
}

// free marks an SRA slot free. When cfg.hasSafetyChecks is set (Open
// Question #1, resolved in DESIGN.md), it first verifies p actually
// falls within one of this allocator's donated chunks and is currently
// tagged SRA_SLOT and allocated, aborting with PreconditionViolation
// otherwise rather than silently corrupting an unrelated byte region.
func (s *sra) free(p unsafe.Pointer) {
	h := sraHeaderOf(p)
	if s.cfg.hasSafetyChecks {
		if h.tag() != tagSRASlot {
			abort(s.h, PreconditionViolation, "free of non-SRA_SLOT pointer %p via SRA allocator", p)
		}
		if !s.owns(p) {
			abort(s.h, PreconditionViolation, "pointer %p does not belong to any donated SRA chunk", p)
		}
	}
	if h.isFree() {
		abort(s.h, PreconditionViolation, "double free of SRA pointer %p", p)
	}
	h.setFree(true)
}

// owns reports whether p falls within the address range of some chunk
// this allocator currently tracks.
func (s *sra) owns(p unsafe.Pointer) bool {
	addr := uintptr(p)
	for _, c := range s.chunks {
		base := uintptr(c.start.rawBase)
		if addr >= base && addr < base+c.start.rawLen {
			return true
		}
	}
	return false
}

// maxTinyFor is the public ceiling below which the dispatcher routes
// allocations to the SRA instead of the GPA.
func (s *sra) maxTinyFor() uintptr { return s.cfg.maxTiny }
