package vheap

import "unsafe"

// sraSlotHeader is the 1-byte SRA slot header of spec.md §3: a free flag
// plus the type tag packed into the same byte, since the slot has no
// room for anything else. The same layout doubles as the SRA chain-link
// header (tag == tagSRALink); a link slot stores its "first word" payload
// — the pointer to the next chunk's first slot — inside its own user-data
// region rather than in the 1-byte header itself, exactly as the C
// SmallRRNextSlotLink does (the link *is* a slot, just one whose payload
// the allocator interprets instead of handing to a caller).
type sraSlotHeader struct {
	flags uint8
}

const sraDataOffset = unsafe.Sizeof(sraSlotHeader{})

func sraHeaderOf(userPtr unsafe.Pointer) *sraSlotHeader {
	return (*sraSlotHeader)(unsafe.Pointer(uintptr(userPtr) - sraDataOffset))
}

func (h *sraSlotHeader) tag() slotTag   { return slotTag(h.flags & tagMask) }
func (h *sraSlotHeader) isFree() bool   { return h.flags&sraFreeBit != 0 }
func (h *sraSlotHeader) setFree(v bool) {
	if v {
		h.flags |= sraFreeBit
	} else {
		h.flags &^= sraFreeBit
	}
}

func (h *sraSlotHeader) setTag(t slotTag) {
	h.flags = (h.flags &^ tagMask) | uint8(t)
}

func (h *sraSlotHeader) userPtr() unsafe.Pointer {
	return unsafe.Pointer(uintptr(unsafe.Pointer(h)) + sraDataOffset)
}

// userBytes returns the usable payload of a slot given the allocator's
// configured MAX_TINY.
func (h *sraSlotHeader) userBytes(maxTiny uintptr) []byte {
	return unsafe.Slice((*byte)(h.userPtr()), int(maxTiny-sraDataOffset))
}

// linkTarget/setLinkTarget read/write the next-chunk pointer a chain-link
// slot stores in its own payload region.
func (h *sraSlotHeader) linkTarget() *sraSlotHeader {
	pp := (*unsafe.Pointer)(h.userPtr())
	return (*sraSlotHeader)(*pp)
}

func (h *sraSlotHeader) setLinkTarget(target *sraSlotHeader) {
	pp := (*unsafe.Pointer)(h.userPtr())
	*pp = unsafe.Pointer(target)
}

// physicalNext returns the next physically adjacent slot within the same
// chunk, without following chain links — callers that need the logical
// "next slot, transparently following links" use getNextSRASlot instead.
func (h *sraSlotHeader) physicalNext(maxTiny uintptr) *sraSlotHeader {
	addr := uintptr(unsafe.Pointer(h)) + maxTiny
	return (*sraSlotHeader)(unsafe.Pointer(addr))
}

// getNextSRASlot implements SRA's get_next(slot): the next physical slot,
// transparently following a chain link to the next chunk's first slot.
func getNextSRASlot(h *sraSlotHeader, maxTiny uintptr) *sraSlotHeader {
	n := h.physicalNext(maxTiny)
	if n.tag() == tagSRALink {
		return n.linkTarget()
	}
	return n
}

// sraChunkStart is the metadata at the very start of a donated SRA chunk
// (spec.md §3 "SRA chunk"): the raw base pointer (pre-alignment) and
// whether this chunk must be released on destroy. It carries no type tag
// since it is never addressed via a user pointer.
type sraChunkStart struct {
	rawBase          unsafe.Pointer
	rawLen           uintptr
	releaseOnDestroy bool
}

const sraChunkStartSize = unsafe.Sizeof(sraChunkStart{})

func newSRAChunkStart(base unsafe.Pointer, rawBase unsafe.Pointer, rawLen uintptr, release bool) *sraChunkStart {
	c := (*sraChunkStart)(base)
	*c = sraChunkStart{rawBase: rawBase, rawLen: rawLen, releaseOnDestroy: release}
	return c
}

func sraChunkStartAt(base unsafe.Pointer) *sraChunkStart {
	return (*sraChunkStart)(base)
}

// firstSlotOfChunk returns the address of the first regular slot in a
// chunk whose chunk-start metadata begins at base.
func firstSlotOfChunk(base unsafe.Pointer) *sraSlotHeader {
	return (*sraSlotHeader)(unsafe.Pointer(uintptr(base) + sraChunkStartSize))
}
