package domain

import (
	"errors"
	"fmt"
)

// Code classifies an Error.
type Code string

const (
	CodeCrypto           Code = "CRYPTO"
	CodeKeyUnavailable   Code = "KEY_UNAVAILABLE"
	CodeDirectory        Code = "DIRECTORY"
	CodeTransport        Code = "TRANSPORT"
	CodeInvalidArgument  Code = "INVALID_ARGUMENT"
	CodeNotFound         Code = "NOT_FOUND"
	CodeAlreadyExists    Code = "ALREADY_EXISTS"
	CodeUnauthenticated  Code = "UNAUTHENTICATED"
	CodePermissionDenied Code = "PERMISSION_DENIED"
	CodeInternal         Code = "INTERNAL"
)

// Error is the application error carried across package boundaries.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches any *Error with the same code, so the sentinels below work with
// errors.Is regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Sentinels for errors.Is.
var (
	ErrCrypto           = &Error{Code: CodeCrypto, Message: "crypto failure"}
	ErrKeyUnavailable   = &Error{Code: CodeKeyUnavailable, Message: "session key unavailable"}
	ErrDirectory        = &Error{Code: CodeDirectory, Message: "key directory failure"}
	ErrTransport        = &Error{Code: CodeTransport, Message: "transport unavailable"}
	ErrInvalidArgument  = &Error{Code: CodeInvalidArgument, Message: "invalid argument"}
	ErrNotFound         = &Error{Code: CodeNotFound, Message: "not found"}
	ErrAlreadyExists    = &Error{Code: CodeAlreadyExists, Message: "already exists"}
	ErrUnauthenticated  = &Error{Code: CodeUnauthenticated, Message: "unauthenticated"}
	ErrPermissionDenied = &Error{Code: CodePermissionDenied, Message: "permission denied"}
)

// New returns an Error with no cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap returns an Error carrying cause.
func Wrap(code Code, message string, cause error) error {
	return &Error{Code: code, Message: message, Cause: cause}
}

func CryptoError(msg string, cause error) error    { return Wrap(CodeCrypto, msg, cause) }
func DirectoryError(msg string, cause error) error { return Wrap(CodeDirectory, msg, cause) }
func TransportError(msg string, cause error) error { return Wrap(CodeTransport, msg, cause) }
func KeyUnavailable(msg string) error              { return New(CodeKeyUnavailable, msg) }
func InvalidArg(msg string) error                  { return New(CodeInvalidArgument, msg) }
func NotFound(msg string) error                    { return New(CodeNotFound, msg) }
func AlreadyExists(msg string) error               { return New(CodeAlreadyExists, msg) }
func Unauthorized(msg string) error                { return New(CodeUnauthenticated, msg) }
func Forbidden(msg string) error                   { return New(CodePermissionDenied, msg) }
func Internal(msg string, cause error) error       { return Wrap(CodeInternal, msg, cause) }

// CodeOf returns the code of the first *Error in err's chain, or CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}
