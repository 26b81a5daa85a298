// Package errors provides enhanced errors carrying a component, a category and
// structured context. Errors are built with a fluent builder:
//
//	errors.Newf("alert %d not found", id).
//		Component("alerting").
//		Category(errors.CategoryNotFound).
//		Context("alert_id", id).
//		Build()
//
// The standard library helpers (Is, As, Unwrap, Join) are re-exported so callers
// only need a single errors import.
package errors

import (
	stderrors "errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

// ErrorCategory classifies an error for API status mapping and telemetry.
type ErrorCategory string

const (
	CategoryGeneric       ErrorCategory = "generic"
	CategoryValidation    ErrorCategory = "validation"
	CategoryNotFound      ErrorCategory = "not-found"
	CategoryForbidden     ErrorCategory = "forbidden"
	CategoryRateLimit     ErrorCategory = "rate-limit"
	CategoryConflict      ErrorCategory = "conflict"
	CategoryDatabase      ErrorCategory = "database"
	CategoryScheduling    ErrorCategory = "scheduling"
	CategoryNetwork       ErrorCategory = "network"
	CategoryConfiguration ErrorCategory = "configuration"
)

// EnhancedError wraps an underlying error with component, category and context.
type EnhancedError struct {
	Err       error
	component string
	category  ErrorCategory
	context   map[string]any
	Timestamp time.Time
}

// Error implements the error interface.
func (e *EnhancedError) Error() string {
	if e.Err == nil {
		return string(e.category)
	}
	return e.Err.Error()
}

// Unwrap returns the wrapped error.
func (e *EnhancedError) Unwrap() error {
	return e.Err
}

// GetComponent returns the component that produced the error.
func (e *EnhancedError) GetComponent() string {
	return e.component
}

// GetCategory returns the error category.
func (e *EnhancedError) GetCategory() ErrorCategory {
	return e.category
}

// GetContext returns a copy of the structured context.
func (e *EnhancedError) GetContext() map[string]any {
	return maps.Clone(e.context)
}

// Details renders the context as a stable "k=v" list, mainly for logs.
func (e *EnhancedError) Details() string {
	keys := slices.Sorted(maps.Keys(e.context))
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, e.context[k]))
	}
	return strings.Join(parts, " ")
}

// ErrorBuilder assembles an EnhancedError.
type ErrorBuilder struct {
	err *EnhancedError
}

// New starts a builder wrapping an existing error.
func New(err error) *ErrorBuilder {
	return &ErrorBuilder{err: &EnhancedError{
		Err:       err,
		category:  CategoryGeneric,
		context:   make(map[string]any),
		Timestamp: time.Now(),
	}}
}

// Newf starts a builder for a new formatted error. %w verbs are honoured.
func Newf(format string, args ...any) *ErrorBuilder {
	return New(fmt.Errorf(format, args...))
}

// NewStd creates a plain error, equivalent to the standard library errors.New.
// Use it for package-level sentinel errors.
func NewStd(text string) error {
	return stderrors.New(text)
}

// Component sets the originating component.
func (b *ErrorBuilder) Component(component string) *ErrorBuilder {
	b.err.component = component
	return b
}

// Category sets the error category.
func (b *ErrorBuilder) Category(category ErrorCategory) *ErrorBuilder {
	b.err.category = category
	return b
}

// Context attaches a key/value pair.
func (b *ErrorBuilder) Context(key string, value any) *ErrorBuilder {
	b.err.context[key] = value
	return b
}

// Build returns the finished error.
func (b *ErrorBuilder) Build() *EnhancedError {
	return b.err
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Unwrap returns the result of calling the Unwrap method on err.
func Unwrap(err error) error {
	return stderrors.Unwrap(err)
}

// Join returns an error that wraps the given errors.
func Join(errs ...error) error {
	return stderrors.Join(errs...)
}
