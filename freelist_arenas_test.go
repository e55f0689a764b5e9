package vheap

import "testing"

func testConfig() *config {
	return &config{
		minLarge:   DefaultMinLarge,
		largeAlign: DefaultLargeAlign,
		numBuckets: 8,
	}
}

func TestArenaIndexBucketOf(t *testing.T) {
	cfg := testConfig()
	idx := newArenaIndex(cfg)

	if got := idx.bucketOf(cfg.minLarge); got != 0 {
		t.Errorf("bucketOf(minLarge) = %d, want 0", got)
	}
	if got := idx.bucketOf(cfg.minLarge + cfg.largeAlign); got != 1 {
		t.Errorf("bucketOf(minLarge+largeAlign) = %d, want 1", got)
	}
	// sizes beyond the last bucket's lower bound clamp to the top arena.
	huge := cfg.minLarge + uintptr(100)*cfg.largeAlign
	if got := idx.bucketOf(huge); got != cfg.numBuckets-1 {
		t.Errorf("bucketOf(huge) = %d, want top arena %d", got, cfg.numBuckets-1)
	}
}

func TestArenaIndexLookupFallsThroughToHigherArena(t *testing.T) {
	cfg := testConfig()
	idx := newArenaIndex(cfg)

	top := newTestGPASlot(cfg.minLarge + uintptr(7)*cfg.largeAlign)
	idx.add(top)

	// looking up a small size with no slots in its own arena should fall
	// through to the first non-empty arena above it.
	if got := idx.lookup(cfg.minLarge); got != top {
		t.Errorf("lookup fell through to %v, want %p", got, top)
	}
}

func TestArenaIndexBiggestScansFromTop(t *testing.T) {
	cfg := testConfig()
	idx := newArenaIndex(cfg)

	low := newTestGPASlot(cfg.minLarge)
	high := newTestGPASlot(cfg.minLarge + uintptr(3)*cfg.largeAlign)
	idx.add(low)
	idx.add(high)

	if got := idx.biggest(); got != high {
		t.Errorf("biggest() = %p, want %p", got, high)
	}
}

func TestArenaIndexRemoveEmptiesArena(t *testing.T) {
	cfg := testConfig()
	idx := newArenaIndex(cfg)
	s := newTestGPASlot(cfg.minLarge)
	idx.add(s)
	idx.remove(s)
	if idx.lookup(cfg.minLarge) != nil {
		t.Error("lookup after removing the sole slot should return nil")
	}
}
