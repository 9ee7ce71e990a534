package apperrors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

type Kind string

const (
	KindValidation      Kind = "validation"
	KindSerialization   Kind = "serialization"
	KindConstraint      Kind = "constraint"
	KindNotFound        Kind = "not_found"
	KindAlreadyResolved Kind = "already_resolved"
	KindConnectivity    Kind = "connectivity"
	KindNoAdmin         Kind = "no_admin"
	KindTimeout         Kind = "timeout"
	KindInternal        Kind = "internal"
)

// Sentinels match any *Error of the same kind under errors.Is.
var (
	ErrValidation      = &Error{Kind: KindValidation}
	ErrSerialization   = &Error{Kind: KindSerialization}
	ErrConstraint      = &Error{Kind: KindConstraint}
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrAlreadyResolved = &Error{Kind: KindAlreadyResolved}
	ErrConnectivity    = &Error{Kind: KindConnectivity}
	ErrNoAdmin         = &Error{Kind: KindNoAdmin}
	ErrTimeout         = &Error{Kind: KindTimeout}
)

type Error struct {
	Kind    Kind
	Op      string
	Message string
	// Fields maps an input field to the rule it failed. Only set for
	// validation errors.
	Fields map[string]string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Message != "" {
		b.WriteString(e.Message)
	} else {
		b.WriteString(string(e.Kind))
	}
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+"="+e.Fields[k])
		}
		b.WriteString(" [")
		b.WriteString(strings.Join(parts, ", "))
		b.WriteString("]")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Message == ""
}

func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

func Newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Validation builds a validation error carrying per-field failures.
func Validation(op string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: "invalid input", Fields: fields}
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// As returns the first *Error in the chain.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// IsRetryable reports whether the whole unit of work may be re-run.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindSerialization, KindConnectivity:
		return true
	default:
		return false
	}
}
