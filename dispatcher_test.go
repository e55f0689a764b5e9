package vheap

import (
	"testing"
	"unsafe"
)

func newTestDispatcher(t *testing.T, flags CreateFlags) (*dispatcher, *Heap) {
	t.Helper()
	cfg, err := decodeFlags(flags, 0)
	if err != nil {
		t.Fatalf("decodeFlags: %v", err)
	}
	h := &Heap{cfg: cfg, lock: newReentrantLock(true), growth: newGrowthProtocol()}
	h.growth.setRequest(func(minSize uintptr) []byte { return make([]byte, minSize) })
	h.gpa = newGPA(h, &h.cfg, h.growth)
	if cfg.rrAllocatorEnabled {
		h.sra = newSRA(h, &h.cfg)
	}
	h.disp = newDispatcher(h, &h.cfg, h.sra, h.gpa)
	return h.disp, h
}

func TestDispatcherRoutesTinyToSRA(t *testing.T) {
	d, _ := newTestDispatcher(t, DefaultFlags)
	p := d.malloc(8)
	if p == nil {
		t.Fatal("malloc(8) failed")
	}
	if tagAt(p) != tagSRASlot {
		t.Errorf("tiny allocation tagged %v, want SRA_SLOT", tagAt(p))
	}
}

func TestDispatcherRoutesLargeToGPA(t *testing.T) {
	d, _ := newTestDispatcher(t, DefaultFlags)
	p := d.malloc(4096)
	if p == nil {
		t.Fatal("malloc(4096) failed")
	}
	if tagAt(p) != tagGPASlot {
		t.Errorf("large allocation tagged %v, want GPA_SLOT", tagAt(p))
	}
}

func TestDispatcherNoRRAllocatorRoutesEverythingToGPA(t *testing.T) {
	d, _ := newTestDispatcher(t, HasSafetyChecks|BucketArenas|NoRRAllocator)
	p := d.malloc(8)
	if p == nil {
		t.Fatal("malloc(8) failed with NoRRAllocator")
	}
	if tagAt(p) != tagGPASlot {
		t.Errorf("tiny allocation with NoRRAllocator tagged %v, want GPA_SLOT", tagAt(p))
	}
}

func TestDispatcherFreeThenMallocReuses(t *testing.T) {
	d, _ := newTestDispatcher(t, DefaultFlags)
	p := d.malloc(4096)
	d.free(p)
	q := d.malloc(4096)
	if q == nil {
		t.Fatal("malloc after free should succeed")
	}
	if q != p {
		t.Errorf("malloc after free = %p, want the freed slot %p reused", q, p)
	}
}

func TestDispatcherReallocGrowsGPAInPlaceWhenPossible(t *testing.T) {
	d, _ := newTestDispatcher(t, DefaultFlags)
	p := d.malloc(64)
	q := d.realloc(p, 128)
	if q == nil {
		t.Fatal("realloc(64 -> 128) failed")
	}
	if q != p {
		t.Errorf("realloc(64 -> 128) moved the pointer from %p to %p, want in-place growth", p, q)
	}
}

func TestDispatcherReallocToZeroFrees(t *testing.T) {
	d, _ := newTestDispatcher(t, DefaultFlags)
	p := d.malloc(64)
	q := d.realloc(p, 0)
	if q != nil {
		t.Error("realloc to size 0 should return nil")
	}
}

func TestDispatcherReallocNilActsAsMalloc(t *testing.T) {
	d, _ := newTestDispatcher(t, DefaultFlags)
	q := d.realloc(nil, 64)
	if q == nil {
		t.Fatal("realloc(nil, 64) should behave like malloc")
	}
}

func TestDispatcherUnrecognisedTagAborts(t *testing.T) {
	d, _ := newTestDispatcher(t, DefaultFlags)
	buf := make([]byte, 16)
	buf[7] = 0x7f // no allocator ever issues this tag value
	p := unsafe.Pointer(&buf[8])

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected panic on free of an unrecognised pointer")
		}
		err, ok := r.(*Error)
		if !ok || err.Kind != MetadataCorruption {
			t.Errorf("panic value = %v, want MetadataCorruption", r)
		}
	}()
	d.free(p)
}
