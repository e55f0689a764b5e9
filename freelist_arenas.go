package vheap

// arenaIndex is the "bucket arenas" strategy of spec.md §4.4: N
// independent sorted rings, one per size class [MIN_LARGE+i*LARGE_ALIGN,
// MIN_LARGE+(i+1)*LARGE_ALIGN). The top arena is "all-you-can-eat": it
// absorbs everything at or above its lower bound. add/remove/replace are
// O(1) amortised; lookup degrades to O(num_buckets) only when scanning
// past empty arenas.
type arenaIndex struct {
	cfg   *config
	heads []*gpaHeader
}

func newArenaIndex(cfg *config) *arenaIndex {
	return &arenaIndex{cfg: cfg, heads: make([]*gpaHeader, cfg.numBuckets)}
}

func (x *arenaIndex) bucketOf(size uintptr) int {
	return bucketIndexFor(x.cfg, size, len(x.heads))
}

// lookup returns the head of the smallest arena at or above size's
// bucket that is non-empty; if none is populated up to and including the
// top arena, it returns nil.
func (x *arenaIndex) lookup(size uintptr) *gpaHeader {
	idx := x.bucketOf(size)
	for i := idx; i < len(x.heads); i++ {
		if x.heads[i] != nil {
			return x.heads[i]
		}
	}
	return nil
}

func (x *arenaIndex) add(s *gpaHeader) {
	idx := x.bucketOf(s.size)
	x.heads[idx] = ringInsert(x.heads[idx], s)
}

func (x *arenaIndex) remove(s *gpaHeader) {
	idx := x.bucketOf(s.size)
	x.heads[idx] = ringRemove(x.heads[idx], s)
}

func (x *arenaIndex) replace(old, replacement *gpaHeader) {
	x.remove(old)
	if replacement != nil {
		x.add(replacement)
	}
}

// biggest returns the largest free slot in the highest non-empty arena:
// by size-class construction, the global maximum always lives there.
func (x *arenaIndex) biggest() *gpaHeader {
	for i := len(x.heads) - 1; i >= 0; i-- {
		if x.heads[i] != nil {
			return x.heads[i].nextSmallerFree
		}
	}
	return nil
}
