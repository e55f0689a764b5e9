package vheap

import "unsafe"

// gpaHeader is the metadata record immediately preceding a GPA slot's
// user-data region (spec.md §3 "GPA slot"). Field order matters: the
// first two fields (time-to-checksum-check, checksum) are excluded from
// the hashed range, mirroring original_source/src/checksum.c's "first 8
// bytes hold the checksum itself and a countdown, excluded" contract, and
// tag is kept as the last field so unsafe.Offsetof(h.tag)+1 gives the
// exact byte immediately below the user pointer regardless of whatever
// trailing struct padding Go's layout rules add after it.
type gpaHeader struct {
	timeToChecksumCheck int32
	checksum            uint32
	size                uintptr
	data                unsafe.Pointer
	next                *gpaHeader
	prev                *gpaHeader
	nextBiggerFree      *gpaHeader
	nextSmallerFree     *gpaHeader
	chunkID             uint32
	rightAdjustment     uint8
	isFreeFlag          bool
	ownsMemoryFlag      bool
	tag                 uint8
}

const (
	gpaDataOffset   = unsafe.Offsetof(gpaHeader{}.tag) + 1
	gpaHashPrefix   = unsafe.Offsetof(gpaHeader{}.size)
	gpaHashLen      = gpaDataOffset - gpaHashPrefix
)

// newGPASlot installs a GPA_SLOT header at base, covering a user region
// of the given size starting right after the header, with the given
// right-adjustment recorded for later reconstruction of the raw chunk
// base at teardown.
func newGPASlot(base unsafe.Pointer, size uintptr, rightAdjustment uint8, owned bool, chunkID uint32) *gpaHeader {
	h := (*gpaHeader)(base)
	*h = gpaHeader{}
	h.size = size
	h.data = unsafe.Pointer(uintptr(base) + gpaDataOffset)
	h.next = h
	h.prev = h
	h.rightAdjustment = rightAdjustment
	h.ownsMemoryFlag = owned
	h.chunkID = chunkID
	h.tag = uint8(tagGPASlot)
	return h
}

func gpaHeaderOf(userPtr unsafe.Pointer) *gpaHeader {
	return (*gpaHeader)(unsafe.Pointer(uintptr(userPtr) - gpaDataOffset))
}

func (h *gpaHeader) userPtr() unsafe.Pointer { return h.data }

func (h *gpaHeader) userBytes() []byte {
	return unsafe.Slice((*byte)(h.data), int(h.size))
}

func (h *gpaHeader) isFree() bool    { return h.isFreeFlag }
func (h *gpaHeader) ownsMemory() bool { return h.ownsMemoryFlag }

func (h *gpaHeader) setFree(free bool) { h.isFreeFlag = free }

// checksummable implementation.

func (h *gpaHeader) hashBytes() []byte {
	return byteView(unsafe.Pointer(uintptr(unsafe.Pointer(h))+gpaHashPrefix), gpaHashLen)
}
func (h *gpaHeader) getChecksum() uint32  { return h.checksum }
func (h *gpaHeader) setChecksum(v uint32) { h.checksum = v }
func (h *gpaHeader) countdown() *int32    { return &h.timeToChecksumCheck }

// gpaEarlyReleaseHeader is the tiny header installed on the early-release
// bypass path (spec.md §3 "Early-release slot"): just enough to free the
// slot's dedicated chunk later and to validate its checksum.
//
// Unlike gpaHeader (where LARGE_ALIGN happens to equal the header's own
// size, so the user pointer lands aligned for free), this header is
// smaller than LARGE_ALIGN, so the user pointer has to be pushed forward
// to the next LARGE_ALIGN boundary past the fixed fields. The two bytes
// immediately below the (now variable) user pointer hold the generic
// type tag (spec.md §4.3, read by tagAt at a fixed offset below any user
// pointer) and, right below that, how many bytes the pointer was pushed
// forward by — gpaEarlyReleaseHeaderOf reads that byte to find its way
// back to the struct's fixed base address.
type gpaEarlyReleaseHeader struct {
	timeToChecksumCheck int32
	checksum            uint32
	size                uintptr
	data                unsafe.Pointer
	chunkBase           unsafe.Pointer
	chunkLen            uintptr
	tag                 uint8
}

const (
	// earlyDataOffset is the minimum distance from base to a data
	// pointer before alignment padding; it no longer is the data
	// pointer's actual offset whenever align forces the pointer forward.
	earlyDataOffset = unsafe.Offsetof(gpaEarlyReleaseHeader{}.tag) + 1
	earlyHashPrefix = unsafe.Offsetof(gpaEarlyReleaseHeader{}.size)
	earlyHashLen    = earlyDataOffset - earlyHashPrefix
)

// newGPAEarlyRelease installs the header at base and returns a user
// pointer aligned to align (LARGE_ALIGN), reserving two bytes
// immediately below it for the generic tag byte and the alignment
// adjustment byte.
func newGPAEarlyRelease(base unsafe.Pointer, size uintptr, chunkBase unsafe.Pointer, chunkLen uintptr, align uintptr) *gpaEarlyReleaseHeader {
	h := (*gpaEarlyReleaseHeader)(base)
	*h = gpaEarlyReleaseHeader{}

	minData := unsafe.Pointer(uintptr(base) + earlyDataOffset)
	data := alignUp(unsafe.Pointer(uintptr(minData)+2), align)
	adjust := uintptr(data) - uintptr(minData)

	h.size = size
	h.data = data
	h.chunkBase = chunkBase
	h.chunkLen = chunkLen
	h.tag = uint8(tagGPAEarlyRelease)

	*(*uint8)(unsafe.Pointer(uintptr(data) - 2)) = uint8(adjust)
	*(*uint8)(unsafe.Pointer(uintptr(data) - 1)) = uint8(tagGPAEarlyRelease)
	return h
}

func gpaEarlyReleaseHeaderOf(userPtr unsafe.Pointer) *gpaEarlyReleaseHeader {
	adjust := uintptr(*(*uint8)(unsafe.Pointer(uintptr(userPtr) - 2)))
	base := uintptr(userPtr) - adjust - earlyDataOffset
	return (*gpaEarlyReleaseHeader)(unsafe.Pointer(base))
}

func (h *gpaEarlyReleaseHeader) userPtr() unsafe.Pointer { return h.data }
func (h *gpaEarlyReleaseHeader) userBytes() []byte {
	return unsafe.Slice((*byte)(h.data), int(h.size))
}

func (h *gpaEarlyReleaseHeader) hashBytes() []byte {
	return byteView(unsafe.Pointer(uintptr(unsafe.Pointer(h))+earlyHashPrefix), earlyHashLen)
}
func (h *gpaEarlyReleaseHeader) getChecksum() uint32  { return h.checksum }
func (h *gpaEarlyReleaseHeader) setChecksum(v uint32) { h.checksum = v }
func (h *gpaEarlyReleaseHeader) countdown() *int32    { return &h.timeToChecksumCheck }
