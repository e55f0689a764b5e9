package vheap

import "fmt"

// Kind classifies the error conditions named in spec.md §7. Only
// InvalidConfiguration ever reaches a caller as a value; the others are
// fatal and surface as a panic after a diagnostic dump/log (see
// logging.go).
type Kind int

const (
	// AllocationFailure: OOM after a failed growth retry. Surfaced as a
	// nil return from Malloc/Realloc, never as this type.
	AllocationFailure Kind = iota
	// PreconditionViolation: double free, invalid pointer, negative
	// reentrancy depth, missing bucket-strategy flag, under-size
	// donation. Fatal.
	PreconditionViolation
	// MetadataCorruption: checksum mismatch or free-bit disagreement on
	// a metadata record. Fatal.
	MetadataCorruption
	// InvalidConfiguration: Create/CreateIn called with an unusable
	// configuration or region. Returns a nil handle, never fatal.
	InvalidConfiguration
)

func (k Kind) String() string {
	switch k {
	case AllocationFailure:
		return "AllocationFailure"
	case PreconditionViolation:
		return "PreconditionViolation"
	case MetadataCorruption:
		return "MetadataCorruption"
	case InvalidConfiguration:
		return "InvalidConfiguration"
	default:
		return "UnknownKind"
	}
}

// Error wraps a Kind with a message. Only ever returned (not panicked)
// for Kind == InvalidConfiguration; the fatal kinds travel as the same
// type inside a panic, so a recover() in a supervisory goroutine can
// still inspect Kind.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("vheap: %s: %s", e.Kind, e.Msg)
}

func errInvalidConfiguration(msg string) *Error {
	logger().Warn("vheap: invalid configuration", zapMsg(msg))
	return &Error{Kind: InvalidConfiguration, Msg: msg}
}

// abort logs a fatal diagnostic (dumping allocator state first when h is
// non-nil) and panics with an *Error of the given kind. There is no
// recoverable path for PreconditionViolation/MetadataCorruption: any
// continuation would operate on metadata already known to be wrong.
func abort(h *Heap, kind Kind, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if h != nil {
		logger().Error("vheap: fatal allocator error, dumping state",
			zapKind(kind), zapMsg(msg))
		h.dumpTo(logWriter{})
	} else {
		logger().Error("vheap: fatal allocator error", zapKind(kind), zapMsg(msg))
	}
	panic(&Error{Kind: kind, Msg: msg})
}
