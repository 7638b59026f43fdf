package sdk

import (
	"fmt"
	"net/http"
	"os"

	"github.com/pkg/errors"
)

// Error is the typed error returned to callers of the engine. The Code is
// part of the public contract and is surfaced verbatim to the web layer.
type Error struct {
	ID      int    `json:"id"`
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

var (
	ErrUnknownError       = Error{ID: 1, Status: http.StatusInternalServerError, Code: "UnknownError", Message: "internal server error"}
	ErrValidation         = Error{ID: 2, Status: http.StatusBadRequest, Code: "ValidationError", Message: "invalid given data"}
	ErrForbidden          = Error{ID: 3, Status: http.StatusForbidden, Code: "Forbidden", Message: "forbidden"}
	ErrNotFound           = Error{ID: 4, Status: http.StatusNotFound, Code: "NotFound", Message: "resource not found"}
	ErrAlreadyExists      = Error{ID: 5, Status: http.StatusConflict, Code: "AlreadyExists", Message: "resource already exists"}
	ErrAclNotAllowed      = Error{ID: 6, Status: http.StatusForbidden, Code: "AclNotAllowedError", Message: "acl is not allowed for this user"}
	ErrInvalidBranch      = Error{ID: 7, Status: http.StatusBadRequest, Code: "InvalidBranch", Message: "branch does not exist"}
	ErrCannotClone        = Error{ID: 8, Status: http.StatusBadRequest, Code: "CannotClone", Message: "branch cannot be cloned"}
	ErrNoPackageListings  = Error{ID: 9, Status: http.StatusNotFound, Code: "NoPackageListingsFound", Message: "no package listings found"}
	ErrServiceUnavailable = Error{ID: 10, Status: http.StatusServiceUnavailable, Code: "ServiceError", Message: "external service unavailable"}
	ErrDatabase           = Error{ID: 11, Status: http.StatusInternalServerError, Code: "DatabaseError", Message: "database error"}
	ErrStatusNotFound     = Error{ID: 12, Status: http.StatusInternalServerError, Code: "StatusNotFound", Message: "unknown status"}
	ErrNoSuchTrackerUser  = Error{ID: 13, Status: http.StatusBadRequest, Code: "NoSuchTrackerUser", Message: "user does not exist in the bug tracker"}
)

type errorWithStack struct {
	root      error // root error with stack trace
	httpError Error
}

func (e errorWithStack) Error() string { return e.httpError.Error() }

func (e errorWithStack) Unwrap() error { return e.root }

func (e errorWithStack) Format(s fmt.State, verb rune) {
	if verb == 'v' && s.Flag('+') {
		fmt.Fprintf(s, "%+v", e.root)
		return
	}
	fmt.Fprint(s, e.Error())
}

// NewError returns a typed error that takes its message from the given cause.
func NewError(httpError Error, cause error) error {
	if cause != nil {
		httpError.Message = cause.Error()
	}
	return errorWithStack{
		root:      errors.WithStack(cause),
		httpError: httpError,
	}
}

// NewErrorFrom returns a typed error with a formatted message.
func NewErrorFrom(httpError Error, format string, args ...interface{}) error {
	return NewError(httpError, fmt.Errorf(format, args...))
}

// WrapError adds a message to given error and keeps its typed error if any.
func WrapError(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	m := fmt.Sprintf(format, args...)
	if e, ok := err.(errorWithStack); ok {
		e.root = errors.Wrap(e.root, m)
		return e
	}
	return errorWithStack{
		root:      errors.Wrap(err, m),
		httpError: extract(err),
	}
}

// WithStack returns given error with a stack trace if it doesn't already hold one.
func WithStack(err error) error {
	if err == nil {
		return nil
	}
	if e, ok := err.(errorWithStack); ok {
		return e
	}
	return errorWithStack{
		root:      errors.WithStack(err),
		httpError: extract(err),
	}
}

func extract(err error) Error {
	switch e := err.(type) {
	case errorWithStack:
		return e.httpError
	case Error:
		return e
	}
	if cause := errors.Cause(err); cause != err {
		if e, ok := cause.(Error); ok {
			return e
		}
	}
	return ErrUnknownError
}

// ExtractHTTPError returns the typed error from given error, defaulting to
// ErrUnknownError with its generic message so that internal error details are
// never exposed to the caller.
func ExtractHTTPError(err error) Error {
	return extract(err)
}

// ErrorIs returns true if given error is of given typed error.
func ErrorIs(err error, target Error) bool {
	if err == nil {
		return false
	}
	return extract(err).ID == target.ID
}

// Cause returns the root cause of given error.
func Cause(err error) error {
	if e, ok := err.(errorWithStack); ok {
		return errors.Cause(e.root)
	}
	return errors.Cause(err)
}

// Exit prints message on stderr then exits.
func Exit(format string, args ...interface{}) {
	if len(format) > 0 && format[len(format)-1] != '\n' {
		format += "\n"
	}
	fmt.Fprintf(os.Stderr, format, args...)
	os.Exit(1)
}
