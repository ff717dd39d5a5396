package candid

import (
	"errors"
	"fmt"
)

// ErrorKind classifies codec failures. Every failure carries a
// human-readable reason; none of them are panics.
type ErrorKind string

const (
	// ErrorKindParse indicates malformed textual input (value grammar or
	// interface description).
	ErrorKindParse ErrorKind = "parse"

	// ErrorKindEncode indicates a value that cannot be serialized to the
	// binary form (type mismatch, out-of-range literal).
	ErrorKindEncode ErrorKind = "encode"

	// ErrorKindDecode indicates binary input that does not match the
	// expected types or is structurally invalid.
	ErrorKindDecode ErrorKind = "decode"

	// ErrorKindResolution indicates a missing service block or method in an
	// interface description.
	ErrorKindResolution ErrorKind = "resolution"
)

// CodecError is the error type returned by all codec entry points.
type CodecError struct {
	Kind   ErrorKind
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *CodecError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("candid %s error: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("candid %s error: %s", e.Kind, e.Reason)
}

// Unwrap returns the underlying cause, if any.
func (e *CodecError) Unwrap() error {
	return e.Err
}

// Is matches codec errors by kind.
func (e *CodecError) Is(target error) bool {
	t, ok := target.(*CodecError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func newParseError(format string, args ...interface{}) *CodecError {
	return &CodecError{Kind: ErrorKindParse, Reason: fmt.Sprintf(format, args...)}
}

func newEncodeError(format string, args ...interface{}) *CodecError {
	return &CodecError{Kind: ErrorKindEncode, Reason: fmt.Sprintf(format, args...)}
}

func newDecodeError(format string, args ...interface{}) *CodecError {
	return &CodecError{Kind: ErrorKindDecode, Reason: fmt.Sprintf(format, args...)}
}

func newResolutionError(format string, args ...interface{}) *CodecError {
	return &CodecError{Kind: ErrorKindResolution, Reason: fmt.Sprintf(format, args...)}
}

// IsParseError reports whether err is a codec parse failure.
func IsParseError(err error) bool { return isKind(err, ErrorKindParse) }

// IsEncodeError reports whether err is a codec encode failure.
func IsEncodeError(err error) bool { return isKind(err, ErrorKindEncode) }

// IsDecodeError reports whether err is a codec decode failure.
func IsDecodeError(err error) bool { return isKind(err, ErrorKindDecode) }

// IsResolutionError reports whether err is a method resolution failure.
func IsResolutionError(err error) bool { return isKind(err, ErrorKindResolution) }

func isKind(err error, kind ErrorKind) bool {
	var ce *CodecError
	if errors.As(err, &ce) {
		return ce.Kind == kind
	}
	return false
}
