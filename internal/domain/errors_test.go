package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	err := NewError(CodeEmptyContent, "nothing extracted", map[string]any{"path": "/tmp/a.txt"})
	assert.Equal(t, "EMPTY_CONTENT: nothing extracted", err.Error())

	wrapped := WrapError(CodeStoreFailed, "write failed", errors.New("disk full"))
	assert.Equal(t, "STORE_FAILED: write failed: disk full", wrapped.Error())
}

func TestUnwrapChain(t *testing.T) {
	cause := errors.New("root cause")
	err := WrapError(CodeCorruptFile, "cannot parse", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestCodeOfThroughWrapping(t *testing.T) {
	inner := NewError(CodeDocumentNotFound, "missing", nil)
	outer := fmt.Errorf("during delete: %w", inner)

	assert.Equal(t, CodeDocumentNotFound, CodeOf(outer))
	assert.Equal(t, Code(""), CodeOf(errors.New("untyped")))
	assert.Equal(t, Code(""), CodeOf(nil))
}

func TestIsMatchesOnCode(t *testing.T) {
	err := NewError(CodeCancelled, "op cancelled", nil)
	require.True(t, errors.Is(err, &Error{Code: CodeCancelled}))
	assert.False(t, errors.Is(err, &Error{Code: CodeStoreFailed}))
}

func TestIsCancelled(t *testing.T) {
	assert.True(t, IsCancelled(NewError(CodeCancelled, "stop", nil)))
	assert.True(t, IsCancelled(fmt.Errorf("wrapped: %w", NewError(CodeCancelled, "stop", nil))))
	assert.False(t, IsCancelled(NewError(CodeLLMTimeout, "slow", nil)))
	assert.False(t, IsCancelled(nil))
}
