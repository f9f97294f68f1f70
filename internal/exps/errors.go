package exps

import (
	"errors"
	"fmt"
)

// QueryError is an error raised while compiling, planning or evaluating a
// query expression.
type QueryError struct {
	// Code identifies the error category.
	Code QueryErrorCode

	// Message is a human-readable description.
	Message string

	// Expr names the offending expression, when known.
	Expr string
}

// QueryErrorCode categorizes query errors.
type QueryErrorCode string

const (
	// ErrCodeUnsupported marks a feature gap, such as evaluating INDEX in
	// memory. It is not a data problem.
	ErrCodeUnsupported QueryErrorCode = "UNSUPPORTED"

	// ErrCodeInvalidQuery indicates a malformed query.
	ErrCodeInvalidQuery QueryErrorCode = "INVALID_QUERY"

	// ErrCodeUnknownField indicates a path through a field the mapping does
	// not declare.
	ErrCodeUnknownField QueryErrorCode = "UNKNOWN_FIELD"
)

// Error implements the error interface.
func (e *QueryError) Error() string {
	if e.Expr != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Expr)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func unsupported(expr, format string, args ...any) *QueryError {
	return &QueryError{Code: ErrCodeUnsupported, Message: fmt.Sprintf(format, args...), Expr: expr}
}

func invalid(format string, args ...any) *QueryError {
	return &QueryError{Code: ErrCodeInvalidQuery, Message: fmt.Sprintf(format, args...)}
}

func hasCode(err error, code QueryErrorCode) bool {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Code == code
	}
	return false
}

// IsUnsupported returns true if err reports a feature gap.
// Uses errors.As to handle wrapped errors.
func IsUnsupported(err error) bool { return hasCode(err, ErrCodeUnsupported) }

// IsInvalidQuery returns true if err reports a malformed query.
func IsInvalidQuery(err error) bool { return hasCode(err, ErrCodeInvalidQuery) }

// IsUnknownField returns true if err reports an undeclared field.
func IsUnknownField(err error) bool { return hasCode(err, ErrCodeUnknownField) }
