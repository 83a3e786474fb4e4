package common

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error kinds. Every failure surfaced by the cleaner matches exactly one of
// these with errors.Is.
var (
	ErrIO                    = errors.New("i/o error")
	ErrNotAPEFile            = errors.New("not a PE file")
	ErrMalformedHeader       = errors.New("malformed PE header")
	ErrMissingOptionalHeader = errors.New("missing optional header")
	ErrVerifyMismatch        = errors.New("output does not match input prefix")
	ErrInvalidConfig         = errors.New("invalid configuration")
)

// Error tags an underlying error with one of the kinds above.
type Error struct {
	Kind error
	Op   string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Wrap classifies err as kind and records a stack trace. err may be nil.
func Wrap(kind error, err error, op string) error {
	return errors.WithStack(&Error{Kind: kind, Op: op, Err: err})
}

// Wrapf is Wrap with a formatted op.
func Wrapf(kind error, err error, format string, args ...interface{}) error {
	return Wrap(kind, err, fmt.Sprintf(format, args...))
}
