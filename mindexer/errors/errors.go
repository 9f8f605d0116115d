package errors

import (
	stderrors "errors"
	"fmt"
)

type Kind string

const (
	ErrUnsupportedQuery     Kind = "unsupported_query"
	ErrPredicateConflict    Kind = "predicate_conflict"
	ErrInvalidConfiguration Kind = "invalid_configuration"
	ErrEmptyQueryRegion     Kind = "empty_query_region"
	ErrInvalidArgument      Kind = "invalid_argument"
	ErrIO                   Kind = "io"
	ErrSQL                  Kind = "sql"
	ErrNotFound             Kind = "not_found"
	ErrBackend              Kind = "backend"
)

type Error struct {
	Kind    Kind
	Message string
	Field   string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	base := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Field != "" {
		base = fmt.Sprintf("%s (field=%s)", base, e.Field)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", base, e.Cause)
	}
	return base
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func UnsupportedQuery(msg string) *Error {
	return &Error{Kind: ErrUnsupportedQuery, Message: msg}
}

// PredicateConflict reports an attempt to refine a bare equality on field.
func PredicateConflict(field string) *Error {
	return &Error{Kind: ErrPredicateConflict, Message: fmt.Sprintf("can't update %s", field), Field: field}
}

func InvalidConfiguration(msg string) *Error {
	return &Error{Kind: ErrInvalidConfiguration, Message: msg}
}

func EmptyQueryRegion() *Error {
	return &Error{Kind: ErrEmptyQueryRegion, Message: "query region is empty"}
}

func InvalidArgument(field, msg string) *Error {
	return &Error{Kind: ErrInvalidArgument, Field: field, Message: msg}
}

func NotFound(msg string) *Error {
	return &Error{Kind: ErrNotFound, Message: msg}
}

// IsKind reports whether any error in err's chain is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
