package vheap

import (
	"fmt"
	"io"
)

// Dump writes a human-readable snapshot of the Heap's current state to w:
// a header line (allocation and free counts, bucket strategy name and
// bucket count), the address-ordered GPA ring, and the SRA chain. It does
// not print the bucket table or the sorted free list. It is safe to call at any time and takes the same lock as
// every other public operation.
func (h *Heap) Dump(w io.Writer) {
	h.lock.acquire()
	defer h.lock.release()
	h.dumpTo(w)
}

// dumpTo is the lock-free core Dump and abort's diagnostic path share;
// abort already holds no lock of its own (it may be called from deep
// inside an operation that already holds it), so it calls this directly.
func (h *Heap) dumpTo(w io.Writer) {
	st := h.cfg.strategy
	fmt.Fprintf(w, "vheap dump: alloc=%d free=%d strategy=%s buckets=%d\n",
		h.allocCount.Load(), h.freeCount.Load(), strategyName(st), h.cfg.numBuckets)

	if h.gpa != nil {
		fmt.Fprintf(w, "GPA chunks=%d\n", len(h.gpa.chunks))
		h.dumpGPARing(w)
	}
	if h.sra != nil {
		fmt.Fprintf(w, "SRA chunks=%d slots=%d\n", len(h.sra.chunks), h.sra.count)
		h.dumpSRAChain(w)
	}
}

func strategyName(s bucketStrategyKind) string {
	switch s {
	case strategyNoBuckets:
		return "no-buckets"
	case strategyBucketArenas:
		return "bucket-arenas"
	case strategyBucketTree:
		return "bucket-tree"
	default:
		return "unknown"
	}
}

func (h *Heap) dumpGPARing(w io.Writer) {
	start := h.gpa.ring
	if start == nil {
		fmt.Fprintln(w, "  (empty)")
		return
	}
	cur := start
	for {
		state := "alloc"
		if cur.isFree() {
			state = "free"
		}
		fmt.Fprintf(w, "  slot=%p size=%d state=%s chunk=%d\n", cur.data, cur.size, state, cur.chunkID)
		cur = cur.next
		if cur == start {
			break
		}
	}
}

func (h *Heap) dumpSRAChain(w io.Writer) {
	start := h.sra.cursor
	if start == nil {
		fmt.Fprintln(w, "  (empty)")
		return
	}
	cur := start
	for i := 0; i < h.sra.count+len(h.sra.chunks); i++ {
		if cur.tag() == tagSRALink {
			cur = cur.linkTarget()
			continue
		}
		state := "alloc"
		if cur.isFree() {
			state = "free"
		}
		fmt.Fprintf(w, "  slot=%p state=%s\n", cur.userPtr(), state)
		cur = getNextSRASlot(cur, h.cfg.maxTiny)
		if cur == start {
			break
		}
	}
}
