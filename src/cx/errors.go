package cx

import (
	"fmt"

	"github.com/pkg/errors"
)

// Code classifies an error so callers can branch on the kind of failure
// without string matching. Server-side errors carried in RPC responses keep
// whatever code the server assigned.
type Code string

const (
	CodeInvalidArgument Code = "InvalidArgument"
	CodeIllegalState    Code = "IllegalState"
	CodeNotFound        Code = "NotFound"
	CodeTimedOut        Code = "TimedOut"
	CodeAlreadyPresent  Code = "AlreadyPresent"
	CodeIOError         Code = "IOError"
	CodeAborted         Code = "Aborted"
)

type codedError struct {
	Code    Code
	Message string
}

func (ce codedError) Error() string {
	return string(ce.Code) + ": " + ce.Message
}

func (ce codedError) Is(err error) bool {
	if e, ok := err.(codedError); ok && ce.Code == e.Code {
		return true
	}
	return false
}

// NewError creates a coded error with a stack attached.
func NewError(code Code, message string) error {
	return errors.WithStack(codedError{
		Code:    code,
		Message: message,
	})
}

// NewErrorf is NewError with formatting.
func NewErrorf(code Code, format string, args ...interface{}) error {
	return errors.WithStack(codedError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	})
}

func NewInvalidArgument(message string) error {
	return NewError(CodeInvalidArgument, message)
}

func NewIllegalState(message string) error {
	return NewError(CodeIllegalState, message)
}

func NewNotFound(message string) error {
	return NewError(CodeNotFound, message)
}

func NewTimedOut(message string) error {
	return NewError(CodeTimedOut, message)
}

// IsError reports whether err carries the given code anywhere in its chain.
func IsError(err error, code Code) bool {
	return errors.Is(err, codedError{Code: code})
}

// ErrorCode extracts the code from err, or CodeIOError when err is not coded.
func ErrorCode(err error) Code {
	var ce codedError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return CodeIOError
}

// ErrorMessage extracts the bare message from a coded err, falling back to
// err.Error() for foreign errors.
func ErrorMessage(err error) string {
	var ce codedError
	if errors.As(err, &ce) {
		return ce.Message
	}
	return err.Error()
}

func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}
