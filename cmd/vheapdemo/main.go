// Command vheapdemo exercises a vheap.Heap from the command line: it
// decodes the embedder-facing flag surface via pflag, runs a small
// allocate/free/realloc workload, and dumps the final allocator state.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/vheap/vheap"
)

func main() {
	var (
		numBuckets   = pflag.Int("num-buckets", 0, "override the number of size-class buckets (0 = strategy default)")
		noChecksum   = pflag.Bool("no-checksum", false, "disable metadata checksums")
		noSafety     = pflag.Bool("no-safety-checks", false, "disable non-checksum safety checks")
		noRR         = pflag.Bool("no-round-robin", false, "disable the small round-robin allocator")
		bucketTree   = pflag.Bool("bucket-tree", false, "use the bucket-tree free-list strategy instead of bucket arenas")
		disableBkt   = pflag.Bool("disable-buckets", false, "use the single-ring no-buckets free-list strategy")
		assumeSafe   = pflag.Bool("assume-thread-safe", false, "skip internal locking")
		heavyDebug   = pflag.Bool("heavy-debug", false, "set the HeavyDebugCorruptionChecks flag (it adds no validation)")
		allocations  = pflag.Int("allocations", 64, "number of Malloc calls to issue in the demo workload")
		verbose      = pflag.Bool("verbose", false, "enable structured logging of diagnostics")
	)
	pflag.Parse()

	var logger *zap.Logger
	if *verbose {
		logger, _ = zap.NewDevelopment()
	} else {
		logger = zap.NewNop()
	}
	vheap.SetLogger(logger)

	flags := vheap.HasSafetyChecks | vheap.SMARequestMemFromGPA | vheap.HasSafetyPaddingLine | vheap.BucketArenas
	if *noChecksum {
		flags &^= vheap.HasChecksum
	}
	if *noSafety {
		flags &^= vheap.HasNonChecksumSafetyChecks
	}
	if *noRR {
		flags |= vheap.NoRRAllocator
	}
	if *bucketTree {
		flags &^= vheap.BucketArenas
		flags |= vheap.BucketTree
	}
	if *disableBkt {
		flags &^= (vheap.BucketArenas | vheap.BucketTree)
		flags |= vheap.DisableBuckets
	}
	if *assumeSafe {
		flags |= vheap.AssumeThreadSafeUsage
	}
	if *heavyDebug {
		flags |= vheap.HeavyDebugCorruptionChecks
	}

	h, err := vheap.Create(vheap.CreateOptions{
		Flags:      flags,
		NumBuckets: *numBuckets,
		Request:    func(minSize uintptr) []byte { return make([]byte, minSize) },
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "vheapdemo: create:", err)
		os.Exit(1)
	}
	defer h.Destroy()

	for i := 0; i < *allocations; i++ {
		size := uintptr(16 + (i%13)*48)
		p := h.Malloc(size)
		if p == nil {
			fmt.Fprintf(os.Stderr, "vheapdemo: allocation %d of size %d failed\n", i, size)
			continue
		}
		if i%4 == 0 {
			h.Free(p)
		}
	}

	stats := h.Stats()
	fmt.Printf("allocations=%d frees=%d strategy=%s buckets=%d gpa_chunks=%d sra_chunks=%d largest_free=%d\n",
		stats.TotalAllocations, stats.TotalFrees, stats.BucketStrategy, stats.NumBuckets,
		stats.GPAChunkCount, stats.SRAChunkCount, stats.LargestFreeGPA)

	h.Dump(os.Stdout)
}
