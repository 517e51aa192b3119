package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrTypeMissingInput ErrorType = "MISSING_INPUT"
	ErrTypeParsing      ErrorType = "PARSING"
	ErrTypeTransform    ErrorType = "TRANSFORM"
	ErrTypeAggregation  ErrorType = "AGGREGATION"
	ErrTypeStorage      ErrorType = "STORAGE"
	ErrTypeValidation   ErrorType = "VALIDATION"
	ErrTypeNotFound     ErrorType = "NOT_FOUND"
	ErrTypeConfig       ErrorType = "CONFIG"
)

// Context keys attached by the pipeline
const (
	ContextTable  = "table"
	ContextColumn = "column"
	ContextCount  = "count"
)

// AppError represents an application-specific error
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with AppError
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// Fatal reports whether the error aborts a pipeline run.
// Missing inputs, parse failures and zero denominators are absorbed locally.
func (e *AppError) Fatal() bool {
	switch e.Type {
	case ErrTypeMissingInput, ErrTypeParsing, ErrTypeAggregation:
		return false
	}
	return true
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// IsType reports whether err wraps an AppError of the given type
func IsType(err error, errType ErrorType) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type == errType
	}
	return false
}

// Helper functions for common error types

// NewMissingInputError records that a dataset needed by a feature is absent
func NewMissingInputError(dataset, feature string) *AppError {
	return NewAppError(ErrTypeMissingInput, fmt.Sprintf("%s skipped: %s not available", feature, dataset), nil).
		WithContext(ContextTable, dataset)
}

// NewParsingError creates a parsing-related error
func NewParsingError(message string, cause error) *AppError {
	return NewAppError(ErrTypeParsing, message, cause)
}

// NewTransformError creates a fatal error for a structural precondition on table.column
func NewTransformError(table, column, message string) *AppError {
	return NewAppError(ErrTypeTransform, fmt.Sprintf("%s.%s: %s", table, column, message), nil).
		WithContext(ContextTable, table).
		WithContext(ContextColumn, column)
}

// NewAggregationError records an undefined ratio in an aggregate
func NewAggregationError(aggregate, column string, count int) *AppError {
	return NewAppError(ErrTypeAggregation, fmt.Sprintf("%s.%s undefined for %d rows (zero denominator)", aggregate, column, count), nil).
		WithContext(ContextTable, aggregate).
		WithContext(ContextColumn, column).
		WithContext(ContextCount, count)
}

// NewStorageError creates a storage-related error
func NewStorageError(message string, cause error) *AppError {
	return NewAppError(ErrTypeStorage, message, cause)
}

// NewAppValidationError creates a validation error for AppError type
func NewAppValidationError(message string) *AppError {
	return NewAppError(ErrTypeValidation, message, nil)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrTypeNotFound, fmt.Sprintf("%s not found", resource), nil)
}

// NewConfigError creates a configuration error
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}
