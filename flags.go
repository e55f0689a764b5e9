package vheap

// CreateFlags is the bitmask decoded at Create/CreateIn time. Bits may be
// OR-combined. Exactly one of DisableBuckets, BucketTree or BucketArenas
// must be present; Create/CreateIn fail otherwise.
type CreateFlags uint32

const (
	HasChecksum                  CreateFlags = 0x1
	HasNonChecksumSafetyChecks   CreateFlags = 0x2
	HasSafetyChecks                          = HasChecksum | HasNonChecksumSafetyChecks
	KeepSizeTiny                  CreateFlags = 0x4
	KeepSizeSmall                 CreateFlags = 0x8
	KeepSizeNormal                CreateFlags = 0x0 // default, not a real bit
	KeepSizeLarge                  CreateFlags = 0x10
	NoRRAllocator                 CreateFlags = 0x20
	SMARequestMemFromGPA          CreateFlags = 0x40
	HasSafetyPaddingLine          CreateFlags = 0x80
	DenseChecksumChecks           CreateFlags = 0x100
	DisableBuckets                CreateFlags = 0x200
	BucketTree                    CreateFlags = 0x400
	BucketArenas                  CreateFlags = 0x800
	AssumeThreadSafeUsage         CreateFlags = 0x1000
	HeavyDebugCorruptionChecks    CreateFlags = 0x2000
)

// DefaultFlags reproduces VIRTALLOC_FLAG_VA_DEFAULT_SETTINGS from the
// original virtalloc.h: safety checks on, SRA growth routed through GPA,
// one safety padding line, bucket arenas.
const DefaultFlags = HasSafetyChecks | SMARequestMemFromGPA | HasSafetyPaddingLine | BucketArenas

// early-release size thresholds selected by the KeepSize* flags, carried
// verbatim from internal/virtalloc/allocator_settings.h.
const (
	earlyReleaseSizeTiny   = 4 * 1024
	earlyReleaseSizeSmall  = 32 * 1024
	earlyReleaseSizeNormal = 128 * 1024
	earlyReleaseSizeLarge  = 1024 * 1024
)

// bucket strategy selection, mirroring internal/virtalloc/alloc_settings.h.
const (
	DefaultNumBuckets      = 256
	FewBucketModeNumBuckets = 16
)

type bucketStrategyKind int

const (
	strategyNoBuckets bucketStrategyKind = iota
	strategyBucketArenas
	strategyBucketTree
)

// config is the decoded, validated form of CreateFlags plus the tunables
// exposed by the setter operations (§6).
type config struct {
	hasChecksum           bool
	hasSafetyChecks       bool
	minSizeForEarlyRelease uintptr
	rrAllocatorEnabled    bool
	smaFromGPA            bool
	paddingLine           bool
	denseChecksums        bool
	strategy              bucketStrategyKind
	numBuckets            int
	assumeThreadSafe      bool
	heavyDebug            bool

	maxGPASlotChecks uintptr
	maxSRASlotChecks uintptr

	minLarge   uintptr
	largeAlign uintptr
	maxTiny    uintptr

	stepsPerChecksumCheck int32
}

// decodeFlags validates and expands CreateFlags into a config. numBuckets
// may be overridden by the caller (0 means "strategy default").
func decodeFlags(flags CreateFlags, numBucketsOverride int) (config, error) {
	n := 0
	var strategy bucketStrategyKind
	if flags&DisableBuckets != 0 {
		n++
		strategy = strategyNoBuckets
	}
	if flags&BucketArenas != 0 {
		n++
		strategy = strategyBucketArenas
	}
	if flags&BucketTree != 0 {
		n++
		strategy = strategyBucketTree
	}
	if n != 1 {
		return config{}, errInvalidConfiguration("exactly one of DisableBuckets/BucketTree/BucketArenas must be set")
	}

	var keep uintptr
	switch {
	case flags&KeepSizeTiny != 0:
		keep = earlyReleaseSizeTiny
	case flags&KeepSizeSmall != 0:
		keep = earlyReleaseSizeSmall
	case flags&KeepSizeLarge != 0:
		keep = earlyReleaseSizeLarge
	default:
		keep = earlyReleaseSizeNormal
	}

	numBuckets := numBucketsOverride
	if numBuckets <= 0 {
		if strategy == strategyNoBuckets {
			numBuckets = 1
		} else {
			numBuckets = DefaultNumBuckets
		}
	}

	cfg := config{
		hasChecksum:            flags&HasChecksum != 0,
		hasSafetyChecks:        flags&HasNonChecksumSafetyChecks != 0,
		minSizeForEarlyRelease: keep,
		rrAllocatorEnabled:     flags&NoRRAllocator == 0,
		smaFromGPA:             flags&SMARequestMemFromGPA != 0,
		paddingLine:            flags&HasSafetyPaddingLine != 0,
		denseChecksums:         flags&DenseChecksumChecks != 0,
		strategy:               strategy,
		numBuckets:              numBuckets,
		assumeThreadSafe:       flags&AssumeThreadSafeUsage != 0,
		heavyDebug:             flags&HeavyDebugCorruptionChecks != 0,

		maxGPASlotChecks: DefaultMaxSlotChecksBeforeOOM,
		maxSRASlotChecks: DefaultMaxSlotChecksBeforeOOM,

		minLarge:   DefaultMinLarge,
		largeAlign: DefaultLargeAlign,
		maxTiny:    DefaultMaxTiny,

		stepsPerChecksumCheck: StepsPerChecksumCheck,
	}
	if cfg.denseChecksums {
		cfg.stepsPerChecksumCheck = 1
	}
	return cfg, nil
}

// paddingLines returns the configured padding-lines policy applied to a
// raw allocation request: one alignment line for requests at or above
// MinSizeForSafetyPadding when HasSafetyPaddingLine is set, to absorb
// single-byte user overruns, per spec.md §4.5.
func (c *config) paddingLines(rawSize uintptr) uintptr {
	if c.paddingLine && rawSize >= MinSizeForSafetyPadding {
		return 1
	}
	return 0
}
