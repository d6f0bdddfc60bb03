package player

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorCode is the error taxonomy from spec.md §7.
type ErrorCode int

const (
	// InvalidArgument covers a bad path, a negative seek, or a null
	// required input.
	InvalidArgument ErrorCode = iota
	// OpenFailed covers a demuxer/decoder/device open error.
	OpenFailed
	// DeviceMismatch means the audio device could not honour the
	// requested rate/channels/format exactly.
	DeviceMismatch
	// DecodeFailed means the codec reported an unrecoverable error for a
	// packet or frame.
	DecodeFailed
	// SeekFailed means the demuxer seek returned an error, or no frames
	// were decodable at the target.
	SeekFailed
	// ResourceExhausted covers an allocation failure (frame clone, buffer
	// resize).
	ResourceExhausted
	// Internal means an invariant was violated.
	Internal
)

func (c ErrorCode) String() string {
	switch c {
	case InvalidArgument:
		return "invalid_argument"
	case OpenFailed:
		return "open_failed"
	case DeviceMismatch:
		return "device_mismatch"
	case DecodeFailed:
		return "decode_failed"
	case SeekFailed:
		return "seek_failed"
	case ResourceExhausted:
		return "resource_exhausted"
	case Internal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is the error type every fallible core operation returns. It
// carries the taxonomy code so callers can branch on failure kind without
// string matching.
type Error struct {
	Code ErrorCode
	Op   string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Code)
}

func (e *Error) Unwrap() error { return e.err }

// newError builds a tagged Error. Internal and ResourceExhausted are the
// two categories that represent a broken invariant rather than an
// expected failure mode, so they carry a stack trace via pkg/errors to
// make them diagnosable in production logs.
func newError(code ErrorCode, op string, cause error) *Error {
	if cause != nil && (code == Internal || code == ResourceExhausted) {
		cause = errors.WithStack(cause)
	}
	return &Error{Code: code, Op: op, err: cause}
}

func invalidArgument(op string, cause error) *Error {
	return newError(InvalidArgument, op, cause)
}

func openFailed(op string, cause error) *Error {
	return newError(OpenFailed, op, cause)
}

func deviceMismatch(op string, cause error) *Error {
	return newError(DeviceMismatch, op, cause)
}

func decodeFailed(op string, cause error) *Error {
	return newError(DecodeFailed, op, cause)
}

func seekFailed(op string, cause error) *Error {
	return newError(SeekFailed, op, cause)
}

func resourceExhausted(op string, cause error) *Error {
	return newError(ResourceExhausted, op, cause)
}

func internalError(op string, cause error) *Error {
	return newError(Internal, op, cause)
}

// CodeOf extracts the ErrorCode from err if it (or something it wraps) is
// an *Error, and reports whether one was found.
func CodeOf(err error) (ErrorCode, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return 0, false
}
