package vheap

import (
	"bytes"
	"testing"
)

func newTestHeap(t *testing.T) *Heap {
	t.Helper()
	h, err := Create(CreateOptions{
		Request: func(minSize uintptr) []byte { return make([]byte, minSize) },
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	t.Cleanup(h.Destroy)
	return h
}

func TestCreateRejectsAmbiguousBucketStrategy(t *testing.T) {
	_, err := Create(CreateOptions{Flags: HasSafetyChecks})
	if err == nil {
		t.Fatal("Create should fail when no bucket strategy flag is set")
	}
	verr, ok := err.(*Error)
	if !ok || verr.Kind != InvalidConfiguration {
		t.Errorf("err = %v, want *Error{Kind: InvalidConfiguration}", err)
	}
}

func TestCreateInRejectsEmptyRegion(t *testing.T) {
	_, err := CreateIn(nil, CreateOptions{})
	if err == nil {
		t.Fatal("CreateIn should fail on an empty region")
	}
}

func TestHeapMallocFreeRealloc(t *testing.T) {
	h := newTestHeap(t)

	p := h.Malloc(128)
	if p == nil {
		t.Fatal("Malloc(128) failed")
	}
	q := h.Realloc(p, 512)
	if q == nil {
		t.Fatal("Realloc(128 -> 512) failed")
	}
	h.Free(q)
}

func TestHeapMallocZeroReturnsNil(t *testing.T) {
	h := newTestHeap(t)
	if p := h.Malloc(0); p != nil {
		t.Error("Malloc(0) should return nil")
	}
}

func TestHeapFreeNilIsNoop(t *testing.T) {
	h := newTestHeap(t)
	h.Free(nil) // must not panic
}

func TestHeapCreateInServesWithoutGrowthCallback(t *testing.T) {
	region := make([]byte, 64*1024)
	h, err := CreateIn(region, CreateOptions{})
	if err != nil {
		t.Fatalf("CreateIn: %v", err)
	}
	defer h.Destroy()

	p := h.Malloc(256)
	if p == nil {
		t.Fatal("Malloc out of a caller-supplied region failed")
	}
	h.Free(p)
}

func TestHeapGrowsWhenInitialRegionExhausted(t *testing.T) {
	region := make([]byte, 4*1024)
	requested := false
	h, err := CreateIn(region, CreateOptions{
		Request: func(minSize uintptr) []byte {
			requested = true
			return make([]byte, minSize)
		},
	})
	if err != nil {
		t.Fatalf("CreateIn: %v", err)
	}
	defer h.Destroy()

	// Exhaust the tiny initial region with large allocations so a growth
	// request becomes necessary.
	for i := 0; i < 16; i++ {
		if h.Malloc(2048) == nil {
			break
		}
	}
	if !requested {
		t.Error("expected at least one growth request once the initial region ran out")
	}
}

func TestHeapStatsReflectsAllocations(t *testing.T) {
	h := newTestHeap(t)
	p := h.Malloc(128)
	h.Free(p)

	st := h.Stats()
	if st.TotalAllocations == 0 {
		t.Error("Stats().TotalAllocations should be nonzero after a Malloc")
	}
	if st.TotalFrees == 0 {
		t.Error("Stats().TotalFrees should be nonzero after a Free")
	}
	if st.BucketStrategy == "" {
		t.Error("Stats().BucketStrategy should be populated")
	}
}

func TestHeapDumpProducesNonEmptyOutput(t *testing.T) {
	h := newTestHeap(t)
	h.Malloc(128)

	var buf bytes.Buffer
	h.Dump(&buf)
	if buf.Len() == 0 {
		t.Error("Dump produced no output")
	}
}

func TestHeapOperationsAfterDestroyAbort(t *testing.T) {
	h, err := Create(CreateOptions{
		Request: func(minSize uintptr) []byte { return make([]byte, minSize) },
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	h.Destroy()

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected panic on Malloc after Destroy")
		}
	}()
	h.Malloc(64)
}

func TestHeapAssumeThreadSafeUsageSkipsLocking(t *testing.T) {
	h, err := Create(CreateOptions{
		Flags:   DefaultFlags | AssumeThreadSafeUsage,
		Request: func(minSize uintptr) []byte { return make([]byte, minSize) },
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer h.Destroy()

	p := h.Malloc(64)
	if p == nil {
		t.Fatal("Malloc failed under AssumeThreadSafeUsage")
	}
}

func TestHeapBucketTreeStrategyServesAllocations(t *testing.T) {
	h, err := Create(CreateOptions{
		Flags:   HasSafetyChecks | SMARequestMemFromGPA | BucketTree,
		Request: func(minSize uintptr) []byte { return make([]byte, minSize) },
	})
	if err != nil {
		t.Fatalf("Create with BucketTree: %v", err)
	}
	defer h.Destroy()

	p := h.Malloc(1024)
	if p == nil {
		t.Fatal("Malloc under the bucket-tree strategy failed")
	}
	h.Free(p)
}

func TestHeapNoBucketsStrategyServesAllocations(t *testing.T) {
	h, err := Create(CreateOptions{
		Flags:   HasSafetyChecks | SMARequestMemFromGPA | DisableBuckets,
		Request: func(minSize uintptr) []byte { return make([]byte, minSize) },
	})
	if err != nil {
		t.Fatalf("Create with DisableBuckets: %v", err)
	}
	defer h.Destroy()

	p := h.Malloc(1024)
	if p == nil {
		t.Fatal("Malloc under the no-buckets strategy failed")
	}
	h.Free(p)
}
