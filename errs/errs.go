// Package errs defines the decode-error taxonomy shared across the
// AVS2 decoding pipeline.
package errs

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// Kind classifies a decode error by the severity bands of the AVS2
// decoding pipeline's error model: stream structure problems are
// recoverable per-picture, resource exhaustion and sequence mismatch
// fail the current call, and fatal configuration fails Open outright.
type Kind int

const (
	// KindUnknown is the zero value; never returned by this package's
	// constructors.
	KindUnknown Kind = iota
	// KindStreamStructure covers missing start codes, truncated
	// headers, out-of-range header fields, disallowed tools, and
	// unresolved reference-picture-set entries. The current picture
	// is discarded and decoding continues.
	KindStreamStructure
	// KindResource covers DPB exhaustion that cannot be resolved by
	// waiting or forced reclamation, and allocation failure.
	KindResource
	// KindSequenceMismatch covers a first picture (after open/flush)
	// that is not intra.
	KindSequenceMismatch
	// KindFatalConfig covers invalid thread configuration or an
	// unsupported bit depth at Open time.
	KindFatalConfig
)

func (k Kind) String() string {
	switch k {
	case KindStreamStructure:
		return "stream_structure"
	case KindResource:
		return "resource"
	case KindSequenceMismatch:
		return "sequence_mismatch"
	case KindFatalConfig:
		return "fatal_config"
	default:
		return "unknown"
	}
}

// Error is the concrete error type produced by every package in this
// module. It carries a Kind so callers (and the top-level decoder's
// status mapping) can decide whether to discard a picture, fail a
// call, or fail Open.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a Kind-tagged error with no wrapped cause.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf is New with fmt.Sprintf-style formatting.
func Newf(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a Kind and message to an existing error, preserving a
// stack trace via github.com/pkg/errors the way the teacher's
// common/errs package wraps lower-level failures.
func Wrap(err error, kind Kind, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Err: pkgerrors.WithStack(err)}
}

// Wrapf is Wrap with fmt.Sprintf-style formatting.
func Wrapf(err error, kind Kind, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: pkgerrors.WithStack(err)}
}

// KindOf reports the Kind of err, or KindUnknown if err was not
// produced by this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsFatal reports whether err should fail Open outright.
func IsFatal(err error) bool {
	return KindOf(err) == KindFatalConfig
}
