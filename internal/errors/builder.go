package errors

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// InternalError carries a developer-facing message plus an optional
// user-facing hint and reportable details. It wraps cockroachdb/errors so the
// full cause chain (and stack) is preserved.
type InternalError struct {
	err               error
	hint              string
	reportableDetails map[string]interface{}
}

func (e *InternalError) Error() string {
	return e.err.Error()
}

func (e *InternalError) Unwrap() error {
	return e.err
}

// Hint returns the user-facing hint, if any.
func (e *InternalError) Hint() string {
	return e.hint
}

// ReportableDetails returns structured details safe to surface to callers.
func (e *InternalError) ReportableDetails() map[string]interface{} {
	return e.reportableDetails
}

// ErrorBuilder provides a fluent API for constructing errors. The terminal
// Mark call attaches the classification sentinel and returns the error.
type ErrorBuilder struct {
	ie *InternalError
}

// NewError starts building an error with the given message.
func NewError(message string) *ErrorBuilder {
	return &ErrorBuilder{
		ie: &InternalError{err: errors.New(message)},
	}
}

// NewErrorf starts building an error with a formatted message.
func NewErrorf(format string, args ...interface{}) *ErrorBuilder {
	return &ErrorBuilder{
		ie: &InternalError{err: errors.Newf(format, args...)},
	}
}

// WithError starts building an error wrapping an existing cause.
func WithError(err error) *ErrorBuilder {
	if err == nil {
		err = errors.New("unknown error")
	}
	return &ErrorBuilder{
		ie: &InternalError{err: err},
	}
}

// WithMessage annotates the wrapped cause with an additional message.
func (b *ErrorBuilder) WithMessage(message string) *ErrorBuilder {
	b.ie.err = errors.WithMessage(b.ie.err, message)
	return b
}

// WithMessagef annotates the wrapped cause with a formatted message.
func (b *ErrorBuilder) WithMessagef(format string, args ...interface{}) *ErrorBuilder {
	b.ie.err = errors.WithMessagef(b.ie.err, format, args...)
	return b
}

// WithHint attaches a user-facing hint.
func (b *ErrorBuilder) WithHint(hint string) *ErrorBuilder {
	b.ie.hint = hint
	return b
}

// WithHintf attaches a formatted user-facing hint.
func (b *ErrorBuilder) WithHintf(format string, args ...interface{}) *ErrorBuilder {
	b.ie.hint = fmt.Sprintf(format, args...)
	return b
}

// WithReportableDetails attaches structured details that are safe to expose.
func (b *ErrorBuilder) WithReportableDetails(details map[string]interface{}) *ErrorBuilder {
	b.ie.reportableDetails = details
	return b
}

// Mark classifies the error with a sentinel and finalizes the builder.
func (b *ErrorBuilder) Mark(sentinel error) error {
	b.ie.err = errors.Mark(b.ie.err, sentinel)
	return b.ie
}
