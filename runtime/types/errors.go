package types

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Error kinds returned by the data layer. Every error surfaced to callers
// wraps exactly one of these, so errors.Is can be used to branch on the kind.
var (
	// ErrNotFound is returned when a single-row operation matched nothing.
	ErrNotFound = errors.New("record not found")

	// ErrUniqueConstraint is returned when a write would duplicate a unique value.
	ErrUniqueConstraint = errors.New("unique constraint violation")

	// ErrForeignKeyConstraint is returned when a write would leave a dangling
	// reference or a delete is blocked by dependent rows.
	ErrForeignKeyConstraint = errors.New("foreign key constraint violation")

	ErrInvalidFilterField     = errors.New("invalid filter field")
	ErrInvalidAggregateField  = errors.New("invalid aggregate field")
	ErrInvalidGroupBy         = errors.New("invalid groupBy")
	ErrInvalidUniqueWhere     = errors.New("where does not reference a unique field")
	ErrExclusiveSelectInclude = errors.New("select and include are mutually exclusive")
	ErrUnknownModel           = errors.New("unknown model")
	ErrInvalidArgument        = errors.New("invalid argument")

	// ErrTransactionTimeout is returned when an interactive transaction ran
	// longer than its timeout and was rolled back.
	ErrTransactionTimeout = errors.New("transaction timeout")

	// ErrTransactionMaxWait is returned when a transaction could not be
	// started within maxWait.
	ErrTransactionMaxWait = errors.New("transaction max wait exceeded")

	// ErrTransactionConflict is returned for serialization failures and
	// deadlocks. These are the only errors Retry will retry.
	ErrTransactionConflict = errors.New("transaction conflict")

	// ErrEngine is the catch-all for storage failures that were not classified.
	ErrEngine = errors.New("engine failure")
)

var codes = map[error]string{
	ErrNotFound:               "P2025",
	ErrUniqueConstraint:       "P2002",
	ErrForeignKeyConstraint:   "P2003",
	ErrInvalidFilterField:     "P2009",
	ErrInvalidAggregateField:  "P2009",
	ErrInvalidGroupBy:         "P2009",
	ErrInvalidUniqueWhere:     "P2009",
	ErrExclusiveSelectInclude: "P2009",
	ErrInvalidArgument:        "P2009",
	ErrUnknownModel:           "P2021",
	ErrTransactionTimeout:     "P2028",
	ErrTransactionMaxWait:     "P2024",
	ErrTransactionConflict:    "P2034",
	ErrEngine:                 "P2010",
}

// Error is the structured error returned by every operation.
type Error struct {
	Code    string
	Kind    error
	Message string
	Model   string
	Field   string
	Meta    map[string]any
	Cause   error
}

// NewError creates an error of the given kind. The code is derived from the kind.
func NewError(kind error, format string, args ...any) *Error {
	return &Error{
		Code:    codes[kind],
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

// Errorf is shorthand for NewError(...).WithModel(model).
func Errorf(kind error, model, format string, args ...any) *Error {
	return NewError(kind, format, args...).WithModel(model)
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Code, e.Kind)
	if e.Model != "" {
		fmt.Fprintf(&b, " on %s", e.Model)
		if e.Field != "" {
			fmt.Fprintf(&b, ".%s", e.Field)
		}
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	if len(e.Meta) > 0 {
		keys := make([]string, 0, len(e.Meta))
		for k := range e.Meta {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, e.Meta[k])
		}
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

// Unwrap exposes both the kind and the underlying cause.
func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

// WithCause sets the underlying error.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// WithModel sets the model name.
func (e *Error) WithModel(model string) *Error {
	e.Model = model
	return e
}

// WithField sets the field name.
func (e *Error) WithField(field string) *Error {
	e.Field = field
	return e
}

// WithMeta adds a metadata entry.
func (e *Error) WithMeta(key string, value any) *Error {
	if e.Meta == nil {
		e.Meta = make(map[string]any)
	}
	e.Meta[key] = value
	return e
}

// KindOf returns the kind of err, or ErrEngine when err carries none.
func KindOf(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	for kind := range codes {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return ErrEngine
}

// Wrap turns any error into an *Error. Context cancellation and deadline
// errors map to ErrTransactionTimeout; anything else unclassified is ErrEngine.
func Wrap(err error, model string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Model == "" {
			e.Model = model
		}
		return err
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return NewError(ErrTransactionTimeout, "operation interrupted").WithModel(model).WithCause(err)
	default:
		return NewError(KindOf(err), "").WithModel(model).WithCause(err)
	}
}

// IsNotFound checks if an error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsUniqueConstraint checks if an error is a unique constraint violation.
func IsUniqueConstraint(err error) bool {
	return errors.Is(err, ErrUniqueConstraint)
}

// IsForeignKeyConstraint checks if an error is a foreign key constraint violation.
func IsForeignKeyConstraint(err error) bool {
	return errors.Is(err, ErrForeignKeyConstraint)
}

// IsInvalidArgument reports whether err is any of the argument validation kinds.
func IsInvalidArgument(err error) bool {
	for _, kind := range []error{
		ErrInvalidArgument, ErrInvalidFilterField, ErrInvalidAggregateField,
		ErrInvalidGroupBy, ErrInvalidUniqueWhere, ErrExclusiveSelectInclude, ErrUnknownModel,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

// IsTimeout checks if an error is a transaction timeout or max wait error.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTransactionTimeout) || errors.Is(err, ErrTransactionMaxWait)
}
