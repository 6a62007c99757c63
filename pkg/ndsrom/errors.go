package ndsrom

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// Kind identifies one of the failure modes the codec can report. Every
// operation either succeeds with a value or fails with exactly one Kind
// (possibly wrapped inside a *multierror.Error when several independent
// problems were found in a single pass).
type Kind int

// Error kinds, see spec section 7.
const (
	// SizeMismatch: a buffer's length does not match a fixed-size region.
	SizeMismatch Kind = iota
	// Overflow: an integer exceeds the capacity of its little-endian field.
	Overflow
	// OutOfBounds: a computed slice exceeds the containing buffer.
	OutOfBounds
	// TruncatedImage: the header references data past the end of the image.
	TruncatedImage
	// MalformedFNT: FNT bytes violate the directory-table grammar.
	MalformedFNT
	// MalformedOVT: an OVT entry references a nonexistent or duplicate file ID.
	MalformedOVT
	// InvalidPath: a path fails the absolute, non-empty-component syntax.
	InvalidPath
	// NameTooLong: a path component exceeds 127 bytes.
	NameTooLong
	// DuplicatePath: two entries collide on the same path.
	DuplicatePath
	// BadBanner: the banner block is not the fixed 0xA00-byte size.
	BadBanner
	// CapacityExceeded: the composed ROM is larger than any supported
	// cartridge capacity.
	CapacityExceeded
)

var kindNames = map[Kind]string{
	SizeMismatch:     "SizeMismatch",
	Overflow:         "Overflow",
	OutOfBounds:      "OutOfBounds",
	TruncatedImage:   "TruncatedImage",
	MalformedFNT:     "MalformedFNT",
	MalformedOVT:     "MalformedOVT",
	InvalidPath:      "InvalidPath",
	NameTooLong:      "NameTooLong",
	DuplicatePath:    "DuplicatePath",
	BadBanner:        "BadBanner",
	CapacityExceeded: "CapacityExceeded",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "Unknown"
}

// Error is the concrete error type returned by every ndsrom operation.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Is lets errors.Is(err, SizeMismatch) style matching work against the Kind,
// via a *Error{Kind: k} sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func newErr(k Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: k, Msg: fmt.Sprintf(format, args...)}
}

// foldMultierror collapses a validation pass's accumulated errors: nil if
// none were found, the bare *Error if exactly one was found (so callers and
// tests can keep using the single-Kind err.(*Error) idiom), and the
// *multierror.Error itself when several independent problems were found in
// the same pass.
func foldMultierror(merr *multierror.Error) error {
	err := merr.ErrorOrNil()
	if err == nil {
		return nil
	}
	if len(merr.Errors) == 1 {
		return merr.Errors[0]
	}
	return err
}
