package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompileErrorMessageIncludesLabelAndField(t *testing.T) {
	err := NewValidationError("vpc", "StackName", "is required")
	assert.Equal(t, "[PARAMETER_VALIDATION_ERROR] action vpc: is required (field StackName)", err.Error())
}

func TestCompileErrorWithoutLabel(t *testing.T) {
	err := NewPackagingError("package key is required", nil)
	assert.Equal(t, "[PACKAGING_ERROR] package key is required", err.Error())
}

func TestTypeOfSeesThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("task deploy: %w", NewCardinalityError("user", "multiple accounts"))
	assert.Equal(t, CardinalityError, TypeOf(wrapped))
	assert.True(t, IsCardinality(wrapped))
	assert.False(t, IsPackaging(wrapped))
	assert.Equal(t, "", TypeOf(errors.New("plain")))
}

func TestUnwrapExposesCause(t *testing.T) {
	cause := errors.New("no such key")
	err := NewStorageError("reading package", cause)
	assert.ErrorIs(t, err, cause)
}

func TestFromKeepsCompileErrors(t *testing.T) {
	ce := NewFactsError("facts unavailable", nil)
	assert.Same(t, ce, From(fmt.Errorf("loading: %w", ce)))

	plain := From(errors.New("boom"))
	assert.Equal(t, InternalError, plain.Type)
	assert.Equal(t, "boom", plain.Message)
	assert.True(t, IsFacts(ce))
	assert.False(t, IsStorage(ce))
}
