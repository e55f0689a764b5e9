package vheap

// treeIndex is the "bucket tree" strategy of spec.md §4.4: one global
// sorted ring of free slots plus a complete binary tree over a
// power-of-two number of leaves, each leaf corresponding to the same
// linear size class an arena would use. At any moment exactly one node
// on every root-to-leaf path is active (§3/§8 antichain invariant); an
// active node's entry indexes the smallest free slot in its covered
// range, or nil if that range currently has no tracked minimum (in which
// case lookup falls back to the global ring's smallest slot, which
// degrades precision to the no-buckets strategy for that one lookup
// rather than losing correctness — a simplification of the original's
// full resplit-on-remove behaviour).
type treeIndex struct {
	cfg       *config
	numLeaves int
	nodes     []treeNode // 1-indexed: node i's children are 2i, 2i+1
	ring      *gpaHeader // global sorted ring, also used for tie-break order
}

type treeNode struct {
	active bool
	entry  *gpaHeader
}

func newTreeIndex(cfg *config) *treeIndex {
	n := nextPow2(cfg.numBuckets)
	x := &treeIndex{cfg: cfg, numLeaves: n, nodes: make([]treeNode, 2*n)}
	x.nodes[1].active = true // root covers the whole range initially
	return x
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p *= 2
	}
	if p == 0 {
		p = 1
	}
	return p
}

func (x *treeIndex) leafFor(size uintptr) int {
	return bucketIndexFor(x.cfg, size, x.numLeaves)
}

// findActive descends from node idx (covering leaf range [lo,hi]) to the
// active ancestor on the root-to-leaf path for leaf.
func (x *treeIndex) findActive(idx, lo, hi, leaf int) (int, int, int) {
	if x.nodes[idx].active {
		return idx, lo, hi
	}
	mid := (lo + hi) / 2
	if leaf <= mid {
		return x.findActive(2*idx, lo, mid, leaf)
	}
	return x.findActive(2*idx+1, mid+1, hi, leaf)
}

func (x *treeIndex) lookup(size uintptr) *gpaHeader {
	leaf := x.leafFor(size)
	idx, _, _ := x.findActive(1, 0, x.numLeaves-1, leaf)
	if e := x.nodes[idx].entry; e != nil {
		return e
	}
	return x.ring
}

func (x *treeIndex) add(s *gpaHeader) {
	x.ring = ringInsert(x.ring, s)
	x.place(1, 0, x.numLeaves-1, s)
}

// place walks down from an active ancestor, splitting it (deactivating
// the parent, activating both children) when s and the node's current
// entry fall into different children, or when s is a new minimum for
// the node's range.
func (x *treeIndex) place(idx, lo, hi int, s *gpaHeader) {
	if !x.nodes[idx].active {
		mid := (lo + hi) / 2
		leaf := x.leafFor(s.size)
		if leaf <= mid {
			x.place(2*idx, lo, mid, s)
		} else {
			x.place(2*idx+1, mid+1, hi, s)
		}
		return
	}
	node := &x.nodes[idx]
	if node.entry == nil {
		node.entry = s
		return
	}
	if lo == hi {
		if s.size < node.entry.size {
			node.entry = s // same leaf/bucket: smaller wins, can't split further
		}
		return
	}
	mid := (lo + hi) / 2
	if s.size >= node.entry.size && (x.leafFor(s.size) <= mid) == (x.leafFor(node.entry.size) <= mid) {
		return // same child as the tracked minimum and not smaller: nothing to separate
	}
	old := node.entry
	node.active = false
	node.entry = nil
	left, right := 2*idx, 2*idx+1
	x.nodes[left].active = true
	x.nodes[right].active = true

	leafOld := x.leafFor(old.size)
	if leafOld > mid {
		leafOld = mid + 1 // clamp: sizes beyond this node's top bucket still route right
	}
	if leafOld <= mid {
		x.place(left, lo, mid, old)
	} else {
		x.place(right, mid+1, hi, old)
	}
	x.place(idx, lo, hi, s) // re-enter: idx is now inactive, routes s into the child covering its leaf
}

func (x *treeIndex) remove(s *gpaHeader) {
	x.ring = ringRemove(x.ring, s)
	leaf := x.leafFor(s.size)
	idx, _, _ := x.findActive(1, 0, x.numLeaves-1, leaf)
	if x.nodes[idx].entry == s {
		x.nodes[idx].entry = nil
		x.tryCoalesce(idx)
	}
}

// tryCoalesce merges two sibling leaves/nodes back into their parent once
// they share the same (empty) entry, per spec.md §4.4.
func (x *treeIndex) tryCoalesce(idx int) {
	if idx <= 1 {
		return
	}
	sibling := idx ^ 1
	parent := idx / 2
	if x.nodes[idx].active && x.nodes[sibling].active &&
		x.nodes[idx].entry == nil && x.nodes[sibling].entry == nil {
		x.nodes[idx].active = false
		x.nodes[sibling].active = false
		x.nodes[parent].active = true
		x.nodes[parent].entry = nil
		x.tryCoalesce(parent)
	}
}

func (x *treeIndex) replace(old, replacement *gpaHeader) {
	x.remove(old)
	if replacement != nil {
		x.add(replacement)
	}
}

func (x *treeIndex) biggest() *gpaHeader {
	if x.ring == nil {
		return nil
	}
	return x.ring.nextSmallerFree
}
