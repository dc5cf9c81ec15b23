// Package vaulterrors implements the error taxonomy used across the
// backup core: a small set of well-known kinds, each carrying a
// human-readable description, so callers can branch on failure mode
// without parsing strings.
package vaulterrors

import (
	"errors"
	"fmt"
)

// Kind identifies the class of failure a core operation returned.
type Kind int

const (
	// Unknown is the zero value and should not be constructed directly.
	Unknown Kind = iota
	// NoSuchFile means the referenced volume or path does not exist.
	NoSuchFile
	// ShortRead means a read terminated before the requested length was
	// available, with no prior length expectation (used as the natural
	// end-of-file signal while consuming file bodies during backup).
	ShortRead
	// CorruptBackup means a structural invariant of the on-disk format
	// was violated: bad magic, header type mismatch, a payload whose
	// digest or decoded size doesn't match, or a dangling descriptor
	// offset.
	CorruptBackup
	// NotLastVolume means a volume was opened expecting descriptor 2 but
	// none was present.
	NotLastVolume
	// GenericError covers I/O failures, permission errors, and anything
	// else not covered by a more specific kind.
	GenericError
)

func (k Kind) String() string {
	switch k {
	case NoSuchFile:
		return "no such file"
	case ShortRead:
		return "short read"
	case CorruptBackup:
		return "corrupt backup"
	case NotLastVolume:
		return "not last volume"
	case GenericError:
		return "generic error"
	default:
		return "unknown"
	}
}

// Error is the concrete error type returned by every core operation that
// can fail. It satisfies errors.Is against its own Kind and unwraps to any
// wrapped cause.
type Error struct {
	Kind        Kind
	Description string
	Cause       error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Description, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Description)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is allows errors.Is(err, vaulterrors.New(SomeKind, "")) to match any
// *Error of the same Kind, regardless of description.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// New constructs an *Error with no wrapped cause.
func New(kind Kind, description string) *Error {
	return &Error{Kind: kind, Description: description}
}

// Newf constructs an *Error with a formatted description.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Description: fmt.Sprintf(format, args...)}
}

// Wrap constructs an *Error carrying an underlying cause.
func Wrap(kind Kind, cause error, description string) *Error {
	return &Error{Kind: kind, Description: description, Cause: cause}
}

// KindOf reports the Kind of err if it is (or wraps) a *Error, or Unknown
// otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// Is reports whether err is (or wraps) a *Error of the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
