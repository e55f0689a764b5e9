package vheap

import "unsafe"

// gpaChunkRecord is the authoritative per-chunk bookkeeping the
// Destructor (§4.9) walks at teardown: the raw (pre-alignment) base and
// length returned by the growth callback (or supplied by the caller),
// and whether vheap owns it. It is deliberately kept separate from the
// slot headers' own memory_is_owned/right_adjustment fields (which still
// exist per spec.md §3 and are kept correct across coalescing) so that
// releasing a chunk never depends on which header currently happens to
// survive a merge.
type gpaChunkRecord struct {
	rawBase unsafe.Pointer
	rawLen  uintptr
	owned   bool
}

// gpa is the General-Purpose Allocator of spec.md §4.5.
type gpa struct {
	h       *Heap
	cfg     *config
	index   freeListIndex
	ring    *gpaHeader // any slot in the address ring; nil only when the heap has no GPA chunks at all
	chunks  []*gpaChunkRecord
	nextID  uint32
	growth  *growthProtocol
}

func newGPA(h *Heap, cfg *config, growth *growthProtocol) *gpa {
	var idx freeListIndex
	switch cfg.strategy {
	case strategyNoBuckets:
		idx = newNoBucketsIndex()
	case strategyBucketTree:
		idx = newTreeIndex(cfg)
	default:
		idx = newArenaIndex(cfg)
	}
	return &gpa{h: h, cfg: cfg, index: idx, growth: growth}
}

func alignUp(p unsafe.Pointer, align uintptr) unsafe.Pointer {
	a := uintptr(p)
	mask := align - 1
	return unsafe.Pointer((a + mask) &^ mask)
}

// padSize applies the sizing policy of spec.md §4.5: pad to
// max(MIN_LARGE, size+padding_lines*LARGE_ALIGN), rounded up to
// LARGE_ALIGN.
func (g *gpa) padSize(rawSize uintptr) uintptr {
	padded := rawSize + g.cfg.paddingLines(rawSize)*g.cfg.largeAlign
	if padded < g.cfg.minLarge {
		padded = g.cfg.minLarge
	}
	align := g.cfg.largeAlign
	return (padded + align - 1) &^ (align - 1)
}

// donate installs a fresh GPA slot covering buf (aligned up to
// LARGE_ALIGN), splices it into the address ring just before the current
// first slot, and runs the coalescing step against its ring neighbours.
// contiguous compares chunk IDs and every donation gets a fresh ID, so
// that step never merges the new slot with a slot of another chunk, even
// one that is physically adjacent to it.
func (g *gpa) donate(buf []byte, owned bool) *gpaHeader {
	if len(buf) == 0 {
		return nil
	}
	rawBase := unsafe.Pointer(&buf[0])
	base := alignUp(rawBase, g.cfg.largeAlign)
	rightAdjust := uint8(uintptr(base) - uintptr(rawBase))
	usable := uintptr(len(buf)) - uintptr(rightAdjust)
	if usable < gpaDataOffset+g.cfg.minLarge {
		return nil // under-size donation; caller surfaces InvalidConfiguration/AllocationFailure
	}

	g.nextID++
	id := g.nextID
	g.chunks = append(g.chunks, &gpaChunkRecord{rawBase: rawBase, rawLen: uintptr(len(buf)), owned: owned})

	slot := newGPASlot(base, usable-gpaDataOffset, rightAdjust, owned, id)
	slot.setFree(true)

	if g.ring == nil {
		slot.next, slot.prev = slot, slot
		g.ring = slot
	} else {
		first := g.ring
		last := first.prev
		last.next = slot
		slot.prev = last
		slot.next = first
		first.prev = slot
		g.ring = slot
	}
	refresh(slot, g.cfg)
	g.index.add(slot)

	if n := slot.next; n != slot && n.isFree() && g.contiguous(slot, n) {
		g.index.remove(n)
		g.index.remove(slot)
		g.mergeInto(slot, n)
		refresh(slot, g.cfg)
		g.index.add(slot)
	}
	if pr := slot.prev; pr != slot && pr.isFree() && g.contiguous(pr, slot) {
		g.index.remove(pr)
		g.index.remove(slot)
		g.mergeInto(pr, slot)
		refresh(pr, g.cfg)
		g.index.add(pr)
		if g.ring == slot {
			g.ring = pr
		}
	}
	return slot
}

func (g *gpa) contiguous(a, b *gpaHeader) bool {
	return a.chunkID == b.chunkID && uintptr(b.data) == uintptr(a.data)+a.size+gpaDataOffset
}

// mergeInto merges src (dst's address-ring successor) into dst. dst
// survives; src's header memory becomes dead bytes inside the same
// backing chunk.
func (g *gpa) mergeInto(dst, src *gpaHeader) {
	dst.size += gpaDataOffset + src.size
	dst.next = src.next
	src.next.prev = dst
	dst.ownsMemoryFlag = dst.ownsMemoryFlag || src.ownsMemoryFlag
}

// biggestFree exposes the index's backward-exploration anchor.
func (g *gpa) biggestFree() *gpaHeader { return g.index.biggest() }

// allocate is GPA's best-fit entry point (spec.md §4.5), excluding the
// OOM→grow→retry loop, which the dispatcher owns. Returns nil on OOM or
// when size padding overflows, matching AllocationFailure semantics.
func (g *gpa) allocate(size uintptr) unsafe.Pointer {
	padded := g.padSize(size)
	if padded < size {
		return nil // padding wrapped around
	}
	if padded >= g.cfg.minSizeForEarlyRelease && g.growth.hasRequest() {
		return g.allocateEarlyRelease(padded)
	}
	return g.bestFitAllocate(padded)
}

func nextPow2Uintptr(n uintptr) uintptr {
	p := uintptr(1)
	for p < n {
		p <<= 1
	}
	return p
}

func (g *gpa) allocateEarlyRelease(padded uintptr) unsafe.Pointer {
	capacity := nextPow2Uintptr(padded)
	// Generous margin: up to largeAlign-1 bytes to pointer-align the
	// header base itself, earlyDataOffset for the header's fixed
	// fields, 2 reserved bytes for the tag/adjust pair, and up to
	// largeAlign-1 more to push the user pointer to its own boundary.
	total := capacity + earlyDataOffset + 2*g.cfg.largeAlign
	buf := g.growth.request(total)
	if buf == nil {
		return nil
	}
	raw := unsafe.Pointer(&buf[0])
	base := alignUp(raw, unsafe.Alignof(uintptr(0)))
	h := newGPAEarlyRelease(base, capacity, raw, uintptr(len(buf)), g.cfg.largeAlign)
	refresh(h, g.cfg)
	g.h.trackEarlyRelease(h)
	return h.userPtr()
}

func (g *gpa) freeEarlyRelease(p unsafe.Pointer) {
	h := gpaEarlyReleaseHeaderOf(p)
	validate(g.h, h, g.cfg, true)
	if !g.growth.hasRelease() {
		abort(g.h, PreconditionViolation, "freeing GPA_EARLY_RELEASE slot %p with no release callback installed", p)
	}
	g.h.untrackEarlyRelease(h)
	g.growth.release(unsafe.Slice((*byte)(h.chunkBase), int(h.chunkLen)))
}

// earlyReleaseCapacityUnchanged reports whether newSize, once padded,
// maps to the same rounded capacity as the early-release slot at p. The
// dispatcher's reallocEarlyRelease returns p unchanged when it does and
// copies and frees otherwise.
func (g *gpa) earlyReleaseCapacityUnchanged(p unsafe.Pointer, newSize uintptr) bool {
	h := gpaEarlyReleaseHeaderOf(p)
	padded := g.padSize(newSize)
	return nextPow2Uintptr(padded) == h.size
}

func (g *gpa) bestFitAllocate(size uintptr) unsafe.Pointer {
	anchor := g.index.lookup(size)
	if anchor == nil {
		return nil
	}
	chosen := g.forwardExplore(anchor, size)
	if chosen == nil {
		chosen = g.backwardExplore(size)
	}
	if chosen == nil {
		return nil
	}
	return g.consume(chosen, size)
}

func (g *gpa) forwardExplore(anchor *gpaHeader, size uintptr) *gpaHeader {
	cur := anchor
	for i := uintptr(0); i < g.cfg.maxGPASlotChecks; i++ {
		if cur.size >= size {
			return cur
		}
		cur = cur.nextBiggerFree
		if cur == anchor {
			break
		}
	}
	return nil
}

func (g *gpa) backwardExplore(size uintptr) *gpaHeader {
	start := g.biggestFree()
	if start == nil || start.size < size {
		return nil
	}
	best := start
	cur := start
	for i := uintptr(0); i < g.cfg.maxGPASlotChecks; i++ {
		nxt := cur.nextSmallerFree
		if nxt == cur || nxt.size < size {
			break
		}
		cur = nxt
		best = cur
		if cur == start {
			break
		}
	}
	return best
}

// consume implements split-vs-convert (spec.md §4.5): converts the whole
// slot to allocated if the remainder would be under-size, otherwise
// splits off a fresh free slot covering the remainder.
func (g *gpa) consume(chosen *gpaHeader, size uintptr) unsafe.Pointer {
	g.index.remove(chosen)
	remainder := chosen.size - size
	minSplit := gpaDataOffset + g.cfg.minLarge
	if remainder < minSplit {
		chosen.setFree(false)
		refresh(chosen, g.cfg)
		return chosen.userPtr()
	}

	newHeaderAddr := unsafe.Pointer(uintptr(chosen.data) + size)
	newSlot := newGPASlot(newHeaderAddr, remainder-gpaDataOffset, 0, false, chosen.chunkID)
	newSlot.setFree(true)
	chosen.size = size

	oldNext := chosen.next
	chosen.next = newSlot
	newSlot.prev = chosen
	newSlot.next = oldNext
	oldNext.prev = newSlot

	chosen.setFree(false)
	refresh(chosen, g.cfg)
	refresh(newSlot, g.cfg)
	g.index.add(newSlot)
	return chosen.userPtr()
}

// free implements spec.md §4.5 free: force-validate, mark free, coalesce
// with address-ring neighbours (next then prev) when they are free and
// address-contiguous within the same chunk.
func (g *gpa) free(p unsafe.Pointer) {
	h := gpaHeaderOf(p)
	validate(g.h, h, g.cfg, true)
	if h.isFree() {
		abort(g.h, PreconditionViolation, "double free of GPA pointer %p", p)
	}
	h.setFree(true)
	refresh(h, g.cfg)

	if n := h.next; n != h && n.isFree() && g.contiguous(h, n) {
		g.index.remove(n)
		g.mergeInto(h, n)
	}
	if pr := h.prev; pr != h && pr.isFree() && g.contiguous(pr, h) {
		g.index.remove(pr)
		g.mergeInto(pr, h)
		h = pr
	}
	refresh(h, g.cfg)
	g.index.add(h)
}

// grow implements in-place realloc-up (consume-next) from spec.md §4.5.
// Returns the (possibly unchanged) pointer and true on success, or false
// if growth-in-place was not possible (caller falls back to
// allocate+copy+free).
func (g *gpa) grow(h *gpaHeader, newSize uintptr) (unsafe.Pointer, bool) {
	growthBytes := newSize - h.size
	n := h.next
	if n == h || !n.isFree() || !g.contiguous(h, n) {
		return nil, false
	}
	needed := growthBytes
	if n.size < needed {
		return nil, false
	}
	g.index.remove(n)
	remainderAfter := n.size - needed
	minSplit := gpaDataOffset + g.cfg.minLarge
	if remainderAfter < minSplit {
		// consume n entirely
		h.size += gpaDataOffset + n.size
		h.next = n.next
		n.next.prev = h
	} else {
		// shrink n: its new header sits right after h's (now bigger)
		// user region, i.e. at h.data+newSize, exactly gpaDataOffset
		// below where its user data used to start plus needed bytes.
		newNHeaderAddr := unsafe.Pointer(uintptr(h.data) + newSize)
		shrunk := newGPASlot(newNHeaderAddr, remainderAfter, n.rightAdjustment, n.ownsMemoryFlag, n.chunkID)
		shrunk.setFree(true)
		shrunk.next = n.next
		n.next.prev = shrunk
		shrunk.prev = h
		h.next = shrunk
		h.size = newSize
		refresh(shrunk, g.cfg)
		g.index.add(shrunk)
	}
	refresh(h, g.cfg)
	return h.userPtr(), true
}

// shrink implements in-place realloc-down (consume-prev, i.e. split off a
// free slot to the right) from spec.md §4.5. Refuses the split if the
// remainder would be under-size and returns the pointer unchanged.
func (g *gpa) shrink(h *gpaHeader, newSize uintptr) unsafe.Pointer {
	remainder := h.size - newSize
	minSplit := gpaDataOffset + g.cfg.minLarge
	if remainder < minSplit {
		return h.userPtr()
	}
	return g.splitFreeTail(h, newSize, remainder)
}

func (g *gpa) splitFreeTail(h *gpaHeader, newSize, remainder uintptr) unsafe.Pointer {
	newHeaderAddr := unsafe.Pointer(uintptr(h.data) + newSize)
	newSlot := newGPASlot(newHeaderAddr, remainder-gpaDataOffset, 0, false, h.chunkID)
	newSlot.setFree(true)

	oldNext := h.next
	h.next = newSlot
	newSlot.prev = h
	newSlot.next = oldNext
	oldNext.prev = newSlot
	h.size = newSize

	if next2 := newSlot.next; next2 != newSlot && next2.isFree() && g.contiguous(newSlot, next2) {
		g.index.remove(next2)
		g.mergeInto(newSlot, next2)
	}
	refresh(h, g.cfg)
	refresh(newSlot, g.cfg)
	g.index.add(newSlot)
	return h.userPtr()
}
