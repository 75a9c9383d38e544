package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Format(t *testing.T) {
	err := New(CodeParseError, "unexpected token").
		WithContext("line", 3).
		WithContext("file", "calc.go")

	assert.Equal(t, "[PARSE_ERROR] unexpected token; Context: file=calc.go, line=3", err.Error())
}

func TestError_CauseAndSuggestion(t *testing.T) {
	cause := errors.New("connection refused")
	err := New(CodeProcessStartTimeout, "not ready").
		WithCause(cause).
		WithSuggestion("check logs")

	assert.Contains(t, err.Error(), "Cause: connection refused")
	assert.Contains(t, err.Error(), "Suggestion: check logs")
	assert.True(t, errors.Is(err, cause))
}

func TestCodeOf(t *testing.T) {
	wrapped := fmt.Errorf("upload: %w", New(CodeSynthesisError, "boom"))

	assert.Equal(t, CodeSynthesisError, CodeOf(wrapped))
	assert.True(t, Is(wrapped, CodeSynthesisError))
	assert.False(t, Is(wrapped, CodeParseError))
	assert.Equal(t, Code(""), CodeOf(errors.New("plain")))
	assert.False(t, Is(nil, CodeInternal))
}

func TestErrPortUnavailable(t *testing.T) {
	err := ErrPortUnavailable("127.0.0.1", 8001)

	require.Equal(t, CodePortUnavailable, err.Code)
	assert.Equal(t, 8001, err.Context["port"])
	assert.Contains(t, err.Suggestion, "lsof -i :8001")
}
