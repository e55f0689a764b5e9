package vheap

import "testing"

func TestNextPow2(t *testing.T) {
	cases := map[int]int{0: 1, 1: 1, 2: 2, 3: 4, 4: 4, 5: 8, 16: 16, 17: 32}
	for in, want := range cases {
		if got := nextPow2(in); got != want {
			t.Errorf("nextPow2(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestTreeIndexAddLookupRemoveSingle(t *testing.T) {
	cfg := testConfig()
	idx := newTreeIndex(cfg)

	s := newTestGPASlot(cfg.minLarge)
	idx.add(s)
	if got := idx.lookup(cfg.minLarge); got != s {
		t.Errorf("lookup after single add = %p, want %p", got, s)
	}
	idx.remove(s)
	if got := idx.lookup(cfg.minLarge); got != nil {
		t.Errorf("lookup after removing sole slot = %v, want nil", got)
	}
}

func TestTreeIndexSplitsOnSecondInsert(t *testing.T) {
	cfg := testConfig()
	idx := newTreeIndex(cfg)

	small := newTestGPASlot(cfg.minLarge)
	large := newTestGPASlot(cfg.minLarge + uintptr(cfg.numBuckets-1)*cfg.largeAlign)
	idx.add(small)
	idx.add(large)

	if got := idx.lookup(cfg.minLarge); got != small {
		t.Errorf("lookup(minLarge) = %p, want %p", got, small)
	}
	if got := idx.biggest(); got != large {
		t.Errorf("biggest() = %p, want %p", got, large)
	}
}

func TestTreeIndexCoalescesAfterRemoveBoth(t *testing.T) {
	cfg := testConfig()
	idx := newTreeIndex(cfg)

	small := newTestGPASlot(cfg.minLarge)
	large := newTestGPASlot(cfg.minLarge + uintptr(cfg.numBuckets-1)*cfg.largeAlign)
	idx.add(small)
	idx.add(large)
	idx.remove(small)
	idx.remove(large)

	if idx.nodes[1].active != true {
		t.Error("root should re-coalesce to active once both children are empty")
	}
	if idx.ring != nil {
		t.Error("ring should be empty after removing every tracked slot")
	}
}

func TestTreeIndexReplace(t *testing.T) {
	cfg := testConfig()
	idx := newTreeIndex(cfg)

	s := newTestGPASlot(cfg.minLarge)
	idx.add(s)

	r := newTestGPASlot(cfg.minLarge + cfg.largeAlign)
	idx.replace(s, r)

	if got := idx.lookup(cfg.minLarge); got != r {
		t.Errorf("lookup after replace = %p, want %p", got, r)
	}
}
