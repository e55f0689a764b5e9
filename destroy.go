package vheap

// destroy implements spec.md §4.9 (Destructor): walk every chunk this
// Heap owns and hand owned ones back to the release callback, skipping
// caller-supplied regions the Heap never allocated itself. It never
// inspects individual slot headers — ownership is decided purely from
// the authoritative chunk records gpa/sra accumulate in donate, so a
// corrupted slot can never cause Destroy to leak or double-release a
// chunk.
func (h *Heap) destroy() {
	h.lock.acquire()
	defer h.lock.release()

	if h.gpa != nil {
		for _, c := range h.gpa.chunks {
			if c.owned {
				h.growth.releaseChunk(bytesFrom(c.rawBase, c.rawLen))
			}
		}
		h.gpa.chunks = nil
	}
	if h.sra != nil {
		for _, c := range h.sra.chunks {
			if c.start.releaseOnDestroy {
				h.growth.releaseChunk(bytesFrom(c.start.rawBase, c.start.rawLen))
			}
		}
		h.sra.chunks = nil
	}
	for _, er := range h.earlyReleased {
		h.growth.releaseChunk(bytesFrom(er.chunkBase, er.chunkLen))
	}
	h.earlyReleased = nil
	h.destroyed = true
}
