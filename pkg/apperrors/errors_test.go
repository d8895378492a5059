package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationError_OrNil(t *testing.T) {
	v := NewValidationError()
	assert.NoError(t, v.OrNil())

	v.Add("name", "can't be blank")
	v.Add("name", "is too long")
	err := v.OrNil()
	require.Error(t, err)
	assert.Equal(t, "validation failed: name can't be blank", err.Error())
}

func TestValidationError_UnwrapsCause(t *testing.T) {
	v := NewValidationError().WithCause(ErrConflict)
	v.Add("name", "has already been taken")

	wrapped := fmt.Errorf("create dataset: %w", v)

	assert.True(t, errors.Is(wrapped, ErrConflict))
	got, ok := IsValidation(wrapped)
	require.True(t, ok)
	assert.Equal(t, "has already been taken", got.FieldErrors["name"])
}

func TestIsValidation_OtherError(t *testing.T) {
	_, ok := IsValidation(ErrNotFound)
	assert.False(t, ok)
}
