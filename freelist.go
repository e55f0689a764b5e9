package vheap

// freeListIndex is the capability set of spec.md §4.4/§9: lookup/add/
// remove/replace over the free GPA slots, with three interchangeable
// implementations selected at Create time. The GPA never needs to know
// which one is active — it always goes through this interface.
type freeListIndex interface {
	// lookup returns an entry point into the sorted ring of free slots
	// whose size is close to (but not necessarily >=) size: the caller
	// (GPA) walks next_bigger_free/next_smaller_free from there to do
	// the actual bounded best-fit exploration. Returns nil if the index
	// has no free slots at all.
	lookup(size uintptr) *gpaHeader
	// add links a newly-freed or newly-split slot into whichever sorted
	// ring it belongs to and updates the index's entry points.
	add(s *gpaHeader)
	// remove unlinks a slot that is being converted to allocated (or
	// consumed by grow/shrink) from its ring and updates entry points.
	remove(s *gpaHeader)
	// replace is remove(old) followed by add(replacement) when
	// replacement is non-nil; it exists as one call so bucket-tree can
	// special-case an in-place size-class change without a full
	// deactivate/reactivate cycle.
	replace(old, replacement *gpaHeader)
	// biggest returns the largest known free slot, or nil if none. GPA
	// uses this as the backward-exploration anchor of spec.md §4.5.
	biggest() *gpaHeader
}

// bucketSize returns the lower bound of bucket i: MIN_LARGE + i*LARGE_ALIGN
// (spec.md §3). The progression is linear by construction, which is why
// the Open Question in spec.md §9 about a binary-search alternative does
// not apply here — the closed-form division below is exact.
func bucketSize(cfg *config, i int) uintptr {
	return cfg.minLarge + uintptr(i)*cfg.largeAlign
}

// bucketIndexFor returns the bucket index a free (or requested) size
// falls into, clamped to the last bucket (the "all-you-can-eat" arena
// that absorbs everything at or above its lower bound).
func bucketIndexFor(cfg *config, size uintptr, numBuckets int) int {
	if size <= cfg.minLarge {
		return 0
	}
	idx := int((size - cfg.minLarge) / cfg.largeAlign)
	if idx >= numBuckets {
		idx = numBuckets - 1
	}
	return idx
}

// --- generic sorted-ring helpers shared by all three strategies ---
//
// Each strategy owns one or more independent rings built from the same
// two header fields (nextBiggerFree/nextSmallerFree), navigated in both
// directions: ring invariants (§8) hold per-ring regardless of how many
// rings a strategy partitions the free slots into.

// ringInsert splices s into the sorted ring that head currently points
// into (or starts a fresh single-element ring if head is nil), returning
// the new head (the smallest element). Ties keep stable order: s is
// inserted after all existing slots of equal size.
func ringInsert(head *gpaHeader, s *gpaHeader) *gpaHeader {
	if head == nil {
		s.nextBiggerFree, s.nextSmallerFree = s, s
		return s
	}
	// walk forward (bigger direction) from head to find the first node
	// strictly bigger than s; insert s right before it.
	cur := head
	for {
		if s.size < cur.size {
			break
		}
		cur = cur.nextBiggerFree
		if cur == head {
			break // wrapped: s is >= everything, insert right before head
		}
	}
	prev := cur.nextSmallerFree
	prev.nextBiggerFree = s
	s.nextSmallerFree = prev
	s.nextBiggerFree = cur
	cur.nextSmallerFree = s
	if s.size < head.size {
		return s
	}
	return head
}

// ringRemove unlinks s from its ring, returning the new head given the
// ring's previous head (head may be s itself, or nil if s was the sole
// element).
func ringRemove(head *gpaHeader, s *gpaHeader) *gpaHeader {
	if s.nextBiggerFree == s {
		s.nextBiggerFree, s.nextSmallerFree = nil, nil
		return nil
	}
	bigger := s.nextBiggerFree
	smaller := s.nextSmallerFree
	smaller.nextBiggerFree = bigger
	bigger.nextSmallerFree = smaller
	s.nextBiggerFree, s.nextSmallerFree = nil, nil
	if head == s {
		return bigger
	}
	return head
}
