package cbor

import (
	"errors"
	"fmt"
)

// Common CBOR errors. Of these, the Decoder returns ErrUnexpectedBreak and
// ErrNestingDepthExceeded directly and ErrUnexpectedEndOfData wrapped in an
// EOFError; the rest are not returned by this package.
var (
	// ErrUnexpectedEndOfData is returned when the data ends unexpectedly.
	ErrUnexpectedEndOfData = errors.New("cbor: unexpected end of data")

	// ErrInvalidCbor is returned when the CBOR data is malformed.
	ErrInvalidCbor = errors.New("cbor: invalid CBOR data")

	// ErrInvalidMajorType is returned when an unexpected major type is encountered.
	ErrInvalidMajorType = errors.New("cbor: invalid major type")

	// ErrInvalidSimpleValue describes an invalid simple value. The Decoder
	// reports one as a DecodeValueError instead.
	ErrInvalidSimpleValue = errors.New("cbor: invalid simple value")

	// ErrInvalidUtf8 describes a text string containing invalid UTF-8. The
	// Decoder reports one as a DecodeValueError instead.
	ErrInvalidUtf8 = errors.New("cbor: invalid UTF-8 in text string")

	// ErrOverflow is returned when a value overflows the target type.
	ErrOverflow = errors.New("cbor: integer overflow")

	// ErrUnexpectedBreak is returned when a break byte is encountered unexpectedly.
	ErrUnexpectedBreak = errors.New("cbor: unexpected break")

	// ErrNonCanonical is returned in strict/canonical mode when encoding is non-canonical.
	ErrNonCanonical = errors.New("cbor: non-canonical encoding")

	// ErrNotAtEnd is returned when there is remaining data after the root value.
	ErrNotAtEnd = errors.New("cbor: unexpected data after root value")

	// ErrInvalidState is returned when an operation is attempted in an invalid state.
	ErrInvalidState = errors.New("cbor: invalid reader state for this operation")

	// ErrDuplicateKey is returned when a duplicate key is found in a map (in strict mode).
	ErrDuplicateKey = errors.New("cbor: duplicate key in map")

	// ErrUnsortedKeys is returned when map keys are not sorted (in canonical mode).
	ErrUnsortedKeys = errors.New("cbor: map keys are not sorted")

	// ErrIndefiniteLengthNotAllowed is returned when indefinite length is used in canonical mode.
	ErrIndefiniteLengthNotAllowed = errors.New("cbor: indefinite length not allowed in canonical mode")

	// ErrBufferTooSmall is returned when the buffer is too small for the operation.
	ErrBufferTooSmall = errors.New("cbor: buffer too small")

	// ErrNestingDepthExceeded is returned when the maximum nesting depth is exceeded.
	ErrNestingDepthExceeded = errors.New("cbor: maximum nesting depth exceeded")

	// ErrMissingBreak describes an unterminated indefinite-length item. The
	// Decoder reports one as an EOFError instead.
	ErrMissingBreak = errors.New("cbor: missing break for indefinite-length item")

	// ErrIncompleteContainer is returned when a container has fewer items than expected.
	ErrIncompleteContainer = errors.New("cbor: incomplete container")

	// ErrExtraItems is returned when a container has more items than expected.
	ErrExtraItems = errors.New("cbor: extra items in container")
)

// ErrValue is the sentinel that every DecodeValueError wraps, so callers can
// test malformed-semantic-content failures with errors.Is(err, cbor.ErrValue)
// without depending on the exact message.
var ErrValue = errors.New("cbor: invalid value")

// ErrArgument is the sentinel wrapped by DecodeArgumentError, covering
// construction-time misuse: an unknown str_errors policy.
var ErrArgument = errors.New("cbor: invalid argument")

// EOFError is raised when the byte source ends before a value's declared
// length has been fully consumed. It carries the exact byte counts involved
// so callers can distinguish a truncated stream from other decode failures.
type EOFError struct {
	Expected int
	Actual   int
}

// Error implements the error interface.
func (e *EOFError) Error() string {
	return fmt.Sprintf("cbor: premature end of stream (expected to read %d bytes, got %d instead)", e.Expected, e.Actual)
}

// Unwrap exposes ErrUnexpectedEndOfData for errors.Is matching.
func (e *EOFError) Unwrap() error {
	return ErrUnexpectedEndOfData
}

// DecodeValueError reports malformed semantic content: an unknown subtype,
// an oversized length, a malformed tag payload, an out-of-range shareable or
// stringref index, and similar. The message text matches wording a caller
// may reasonably match against, so format it exactly at each call site.
type DecodeValueError struct {
	Message string
}

// Error implements the error interface.
func (e *DecodeValueError) Error() string {
	return "cbor: " + e.Message
}

// Unwrap exposes ErrValue for errors.Is matching.
func (e *DecodeValueError) Unwrap() error {
	return ErrValue
}

// newValueError formats a DecodeValueError.
func newValueError(format string, args ...any) error {
	return &DecodeValueError{Message: fmt.Sprintf(format, args...)}
}

// DecodeArgumentError reports invalid decoder construction arguments: an
// unrecognized str_errors policy.
type DecodeArgumentError struct {
	Message string
}

// Error implements the error interface.
func (e *DecodeArgumentError) Error() string {
	return "cbor: " + e.Message
}

// Unwrap exposes ErrArgument for errors.Is matching.
func (e *DecodeArgumentError) Unwrap() error {
	return ErrArgument
}

// newArgumentError formats a DecodeArgumentError.
func newArgumentError(format string, args ...any) error {
	return &DecodeArgumentError{Message: fmt.Sprintf(format, args...)}
}
