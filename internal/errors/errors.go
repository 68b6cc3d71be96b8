// Package errors classifies failures of the query compiler and the layers
// around it. A request can fail in three distinct ways: the input does not
// compile, a bulk plan is misconfigured, or the graph engine rejects a
// compiled query at run time. Callers branch on the Kind to decide whether
// anything may have been written.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the classification of an error for handling purposes.
type Kind int

const (
	// KindCompile is a malformed operator, unknown function, bad identifier or
	// unresolved alias. Raised before any query text is produced.
	KindCompile Kind = iota + 1
	// KindConfiguration is an unmet bulk-mutation precondition. Raised before
	// any batch runs.
	KindConfiguration
	// KindExecution is a failure reported by the graph engine.
	KindExecution
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case KindCompile:
		return "compile"
	case KindConfiguration:
		return "configuration"
	case KindExecution:
		return "execution"
	default:
		return "unknown"
	}
}

// Compile errors
var (
	ErrUnknownOperator    = errors.New("unknown operator")
	ErrUnknownFunction    = errors.New("unknown aggregate function")
	ErrMalformedVector    = errors.New("malformed vector clause")
	ErrMalformedRelation  = errors.New("malformed relation clause")
	ErrInvalidValue       = errors.New("invalid value")
	ErrInvalidIdentifier  = errors.New("identifier is empty after sanitization")
	ErrUnknownAlias       = errors.New("unknown alias")
	ErrDuplicateAlias     = errors.New("alias declared twice")
	ErrDuplicateKey       = errors.New("output key declared twice")
	ErrInvalidDirection   = errors.New("invalid sort direction")
	ErrInvalidGranularity = errors.New("invalid time bucket granularity")
	ErrInvalidJSON        = errors.New("invalid JSON")
)

// Configuration errors
var (
	ErrJoinKeysRequired   = errors.New("join keys required")
	ErrManyToManyFilters  = errors.New("manyToMany requires explicit filters on both sides")
	ErrLabelRequired      = errors.New("label required")
	ErrInvalidBatchConfig = errors.New("invalid batch configuration")
)

// Error wraps an underlying error with its classification and the location in
// the request where it was detected.
type Error struct {
	Kind Kind
	// Op is the compiler stage or operation that raised the error.
	Op string
	// Path locates the offending input, e.g. "where.age.$gt".
	Path string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Kind.String())
	sb.WriteString(" error")
	if e.Op != "" {
		sb.WriteString(" in ")
		sb.WriteString(e.Op)
	}
	if e.Path != "" {
		sb.WriteString(" at ")
		sb.WriteString(e.Path)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Compile returns a compile-time error.
func Compile(op, path string, err error) error {
	return &Error{Kind: KindCompile, Op: op, Path: path, Err: err}
}

// Compilef returns a compile-time error wrapping sentinel with a formatted detail.
func Compilef(op, path string, sentinel error, format string, args ...any) error {
	return Compile(op, path, fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...)))
}

// Configuration returns a precondition error.
func Configuration(op string, err error) error {
	return &Error{Kind: KindConfiguration, Op: op, Err: err}
}

// Execution returns an engine-side error.
func Execution(op string, err error) error {
	return &Error{Kind: KindExecution, Op: op, Err: err}
}

// KindOf returns the Kind of err, or 0 when err is not classified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsCompile reports whether err is a compile error.
func IsCompile(err error) bool {
	return KindOf(err) == KindCompile
}

// IsConfiguration reports whether err is a configuration error.
func IsConfiguration(err error) bool {
	return KindOf(err) == KindConfiguration
}

// IsExecution reports whether err is an execution error.
func IsExecution(err error) bool {
	return KindOf(err) == KindExecution
}

// IsRejection reports whether err rejected a request before anything ran.
func IsRejection(err error) bool {
	k := KindOf(err)
	return k == KindCompile || k == KindConfiguration
}
