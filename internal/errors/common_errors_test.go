package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorType_Constants(t *testing.T) {
	tests := []struct {
		name     string
		errType  ErrorType
		expected string
	}{
		{name: "missing input", errType: ErrTypeMissingInput, expected: "MISSING_INPUT"},
		{name: "parsing", errType: ErrTypeParsing, expected: "PARSING"},
		{name: "transform", errType: ErrTypeTransform, expected: "TRANSFORM"},
		{name: "aggregation", errType: ErrTypeAggregation, expected: "AGGREGATION"},
		{name: "storage", errType: ErrTypeStorage, expected: "STORAGE"},
		{name: "validation", errType: ErrTypeValidation, expected: "VALIDATION"},
		{name: "not found", errType: ErrTypeNotFound, expected: "NOT_FOUND"},
		{name: "config", errType: ErrTypeConfig, expected: "CONFIG"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(tt.errType))
		})
	}
}

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name        string
		appError    *AppError
		wantMessage string
	}{
		{
			name: "error without cause",
			appError: &AppError{
				Type:    ErrTypeTransform,
				Message: "orders.order_purchase_timestamp: not temporal",
			},
			wantMessage: "[TRANSFORM] orders.order_purchase_timestamp: not temporal",
		},
		{
			name: "error with cause",
			appError: &AppError{
				Type:    ErrTypeStorage,
				Message: "failed to write dim_date.csv",
				Cause:   fmt.Errorf("disk full"),
			},
			wantMessage: "[STORAGE] failed to write dim_date.csv: disk full",
		},
		{
			name:        "error with empty message",
			appError:    &AppError{Type: ErrTypeValidation},
			wantMessage: "[VALIDATION] ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMessage, tt.appError.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("permission denied")
	err := NewStorageError("failed to create output directory", cause)

	assert.Equal(t, cause, err.Unwrap())
	assert.True(t, errors.Is(err, cause))

	wrapped := fmt.Errorf("export: %w", err)
	var appErr *AppError
	require.True(t, errors.As(wrapped, &appErr))
	assert.Equal(t, ErrTypeStorage, appErr.Type)
}

func TestNewTransformError(t *testing.T) {
	err := NewTransformError("orders", "order_purchase_timestamp", "declared float, expected text or time")

	assert.Equal(t, ErrTypeTransform, err.Type)
	assert.Equal(t, "orders", err.Context[ContextTable])
	assert.Equal(t, "order_purchase_timestamp", err.Context[ContextColumn])
	assert.Contains(t, err.Error(), "orders.order_purchase_timestamp")
	assert.True(t, err.Fatal())
}

func TestNewMissingInputError(t *testing.T) {
	err := NewMissingInputError("order_items", "fact_sales")

	assert.Equal(t, ErrTypeMissingInput, err.Type)
	assert.Equal(t, "order_items", err.Context[ContextTable])
	assert.Equal(t, "[MISSING_INPUT] fact_sales skipped: order_items not available", err.Error())
	assert.False(t, err.Fatal())
}

func TestNewAggregationError(t *testing.T) {
	err := NewAggregationError("sales_by_date", "avg_order_value", 2)

	assert.Equal(t, 2, err.Context[ContextCount])
	assert.False(t, err.Fatal())
}

func TestIsType(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		errType ErrorType
		want    bool
	}{
		{name: "direct match", err: NewConfigError("bad level", nil), errType: ErrTypeConfig, want: true},
		{name: "wrapped match", err: fmt.Errorf("run: %w", NewTransformError("t", "c", "m")), errType: ErrTypeTransform, want: true},
		{name: "other type", err: NewNotFoundError("orders"), errType: ErrTypeStorage, want: false},
		{name: "plain error", err: errors.New("boom"), errType: ErrTypeStorage, want: false},
		{name: "nil error", err: nil, errType: ErrTypeStorage, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsType(tt.err, tt.errType))
		})
	}
}

func TestAppError_WithContext(t *testing.T) {
	err := &AppError{Type: ErrTypeParsing, Message: "unparsable timestamps"}
	err.WithContext(ContextTable, "reviews").WithContext(ContextCount, 3)

	assert.Equal(t, "reviews", err.Context[ContextTable])
	assert.Equal(t, 3, err.Context[ContextCount])
}
