package vheap

import (
	"testing"
	"unsafe"
)

func newTestGPA(t *testing.T, flags CreateFlags) (*gpa, *Heap) {
	t.Helper()
	cfg, err := decodeFlags(flags, 0)
	if err != nil {
		t.Fatalf("decodeFlags: %v", err)
	}
	h := &Heap{cfg: cfg, lock: newReentrantLock(true), growth: newGrowthProtocol()}
	g := newGPA(h, &h.cfg, h.growth)
	h.gpa = g
	return g, h
}

func TestGPADonateAndAllocate(t *testing.T) {
	g, _ := newTestGPA(t, HasSafetyChecks|BucketArenas)
	buf := make([]byte, 8*1024)
	if g.donate(buf, false) == nil {
		t.Fatal("donate of an 8KiB region should succeed")
	}

	p := g.allocate(128)
	if p == nil {
		t.Fatal("allocate(128) returned nil right after donating 8KiB")
	}
}

func TestGPAAllocateFreeRoundTrip(t *testing.T) {
	g, _ := newTestGPA(t, HasSafetyChecks|BucketArenas)
	buf := make([]byte, 8*1024)
	g.donate(buf, false)

	p := g.allocate(256)
	if p == nil {
		t.Fatal("allocate(256) failed")
	}
	h := gpaHeaderOf(p)
	if h.isFree() {
		t.Error("freshly allocated slot reports free")
	}
	g.free(p)
	if !h.isFree() {
		t.Error("slot should report free immediately after Free")
	}
}

func TestGPACoalescesAdjacentFreeSlots(t *testing.T) {
	g, _ := newTestGPA(t, HasSafetyChecks|BucketArenas)
	buf := make([]byte, 8*1024)
	g.donate(buf, false)

	before := g.biggestFree().size

	a := g.allocate(256)
	b := g.allocate(256)
	if a == nil || b == nil {
		t.Fatal("setup allocations failed")
	}
	g.free(a)
	g.free(b)

	after := g.biggestFree()
	if after == nil {
		t.Fatal("expected a free slot after freeing both allocations")
	}
	if after.size < before-4 { // allow a couple bytes for alignment/rounding, should recombine fully
		t.Errorf("coalesced free size = %d, want close to original %d", after.size, before)
	}
}

func TestGPADoubleFreeAborts(t *testing.T) {
	g, _ := newTestGPA(t, HasSafetyChecks|BucketArenas)
	buf := make([]byte, 8*1024)
	g.donate(buf, false)
	p := g.allocate(64)

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected panic on double free")
		}
		err, ok := r.(*Error)
		if !ok || err.Kind != PreconditionViolation {
			t.Errorf("panic value = %v, want PreconditionViolation", r)
		}
	}()
	g.free(p)
	g.free(p)
}

func TestGPASplitLeavesUsableRemainder(t *testing.T) {
	g, _ := newTestGPA(t, HasSafetyChecks|BucketArenas)
	buf := make([]byte, 16*1024)
	g.donate(buf, false)

	p1 := g.allocate(64)
	if p1 == nil {
		t.Fatal("first allocate failed")
	}
	// a second allocation should still succeed out of the remainder,
	// proving the first allocate split rather than consuming everything.
	p2 := g.allocate(64)
	if p2 == nil {
		t.Fatal("second allocate failed: first allocate likely consumed the whole chunk")
	}
	if p1 == p2 {
		t.Fatal("two live allocations returned the same pointer")
	}
}

func TestGPAGrowInPlace(t *testing.T) {
	g, _ := newTestGPA(t, HasSafetyChecks|BucketArenas)
	buf := make([]byte, 16*1024)
	g.donate(buf, false)

	p := g.allocate(64)
	h := gpaHeaderOf(p)
	oldSize := h.size

	grown, ok := g.grow(h, oldSize+256)
	if !ok {
		t.Fatal("grow should succeed into the large trailing free slot")
	}
	if grown != p {
		t.Error("grow in place should not move the pointer")
	}
	if h.size != oldSize+256 {
		t.Errorf("size after grow = %d, want %d", h.size, oldSize+256)
	}
}

func TestPadSizeRespectsMinLargeAndAlignment(t *testing.T) {
	g, _ := newTestGPA(t, HasSafetyChecks|BucketArenas)
	got := g.padSize(1)
	if got < g.cfg.minLarge {
		t.Errorf("padSize(1) = %d, want at least minLarge %d", got, g.cfg.minLarge)
	}
	if got%g.cfg.largeAlign != 0 {
		t.Errorf("padSize(1) = %d, want multiple of largeAlign %d", got, g.cfg.largeAlign)
	}
}

func TestContiguousRequiresSameChunk(t *testing.T) {
	g, _ := newTestGPA(t, HasSafetyChecks|BucketArenas)
	buf1 := make([]byte, 4*1024)
	buf2 := make([]byte, 4*1024)
	s1 := g.donate(buf1, false)
	s2 := g.donate(buf2, false)

	if g.contiguous(s1, s2) {
		t.Error("slots from two independently allocated Go buffers should never be reported contiguous")
	}
	_ = unsafe.Pointer(nil)
}
