package types

import (
	"errors"
	"fmt"
)

// Code classifies query errors.
type Code string

const (
	CodeEmptySelect            Code = "EMPTY_SELECT"
	CodeSubqueryArity          Code = "SUBQUERY_ARITY"
	CodeUnsupportedOrderBy     Code = "UNSUPPORTED_ORDER_BY"
	CodeDuplicateAlias         Code = "DUPLICATE_ALIAS"
	CodeInvalidAlias           Code = "INVALID_ALIAS"
	CodeInvalidRestriction     Code = "INVALID_RESTRICTION"
	CodeUnknownProperty        Code = "UNKNOWN_PROPERTY"
	CodeInvalidValue           Code = "INVALID_VALUE"
	CodeResultShape            Code = "RESULT_SHAPE"
	CodeInsufficientPrivileges Code = "INSUFFICIENT_PRIVILEGES"
	CodeIncompleteMetadata     Code = "INCOMPLETE_METADATA"
	CodeSubqueryDepth          Code = "SUBQUERY_DEPTH"
)

// Error is a query-shape or read-permission error raised before or after execution.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf creates an Error with a formatted message.
func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code to an underlying error.
func Wrap(code Code, err error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// IsCode reports whether err is an Error with the given code.
func IsCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
