package vheap

// noBucketsIndex is the "no buckets" strategy of spec.md §4.4: a single
// sorted ring over every free GPA slot, with one entry reference (the
// smallest slot). lookup is O(free slot count) since the caller has to
// walk from the single entry point to find a fit.
type noBucketsIndex struct {
	head *gpaHeader
}

func newNoBucketsIndex() *noBucketsIndex {
	return &noBucketsIndex{}
}

func (x *noBucketsIndex) lookup(size uintptr) *gpaHeader {
	return x.head
}

func (x *noBucketsIndex) add(s *gpaHeader) {
	x.head = ringInsert(x.head, s)
}

func (x *noBucketsIndex) remove(s *gpaHeader) {
	x.head = ringRemove(x.head, s)
}

func (x *noBucketsIndex) replace(old, replacement *gpaHeader) {
	x.remove(old)
	if replacement != nil {
		x.add(replacement)
	}
}

func (x *noBucketsIndex) biggest() *gpaHeader {
	if x.head == nil {
		return nil
	}
	return x.head.nextSmallerFree
}
