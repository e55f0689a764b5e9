package vheap

// Tunable defaults from internal/virtalloc/allocator_settings.h /
// alloc_settings.h. These may be overridden per instance where the public
// API exposes a setter (§6); the rest are implementation-private.
const (
	// DefaultMinLarge is MIN_LARGE: the minimum GPA user-region size.
	DefaultMinLarge uintptr = 64
	// DefaultLargeAlign is LARGE_ALIGN: alignment of GPA user pointers.
	DefaultLargeAlign uintptr = 64
	// DefaultMaxTiny is MAX_TINY: SRA slot size including its header.
	DefaultMaxTiny uintptr = 64
	// DefaultMinNewMemRequest is MIN_NEW_MEM_REQUEST_SIZE.
	DefaultMinNewMemRequest uintptr = 64 * 1024
	// MinSizeForSafetyPadding gates the default padding-lines policy.
	MinSizeForSafetyPadding uintptr = 512
	// StepsPerChecksumCheck is the default checksum-check amortisation.
	StepsPerChecksumCheck int32 = 16
	// DefaultMaxSlotChecksBeforeOOM bounds the GPA's best-fit search. The
	// SRA's round-robin scan does not read it; that scan stops after one
	// full revolution of the chain.
	DefaultMaxSlotChecksBeforeOOM uintptr = 64
)
