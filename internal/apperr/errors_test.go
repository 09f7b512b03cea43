package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Message(t *testing.T) {
	err := New(CodeWriteConflict, "begin write", "write transaction already open")
	assert.Equal(t, "begin write: WRITE_CONFLICT: write transaction already open", err.Error())

	bare := &Error{Code: CodeBusy}
	assert.Equal(t, "BUSY: BUSY", bare.Error())

	wrapped := Wrap(CodeCorruptStore, "open", errors.New("invalid database"))
	assert.Equal(t, "open: CORRUPT_STORE: invalid database", wrapped.Error())
}

func TestIs_ThroughWrapping(t *testing.T) {
	base := New(CodeEmptyHistory, "undo", "nothing to undo")
	err := fmt.Errorf("service: %w", base)

	assert.True(t, Is(err, CodeEmptyHistory))
	assert.False(t, Is(err, CodeBusy))
	assert.True(t, errors.Is(err, ErrEmptyHistory))
	assert.False(t, errors.Is(err, ErrWriteConflict))
	assert.Equal(t, CodeEmptyHistory, CodeOf(err))
}

func TestIs_NilAndForeign(t *testing.T) {
	assert.False(t, Is(nil, CodeBusy))
	assert.Equal(t, Code(""), CodeOf(errors.New("plain")))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(New(CodeStoreNotFound, "open", "missing")))
	assert.True(t, IsNotFound(New(CodeNotFound, "get", "missing")))
	assert.False(t, IsNotFound(New(CodeBusy, "close", "busy")))
}

func TestJobFailed_UnwrapsCause(t *testing.T) {
	cause := New(CodeNotFound, "scan", `database "x" not found`)
	err := JobFailed("job-1", cause)

	require.Equal(t, CodeJobFailed, err.Code)
	assert.True(t, errors.Is(err, ErrJobFailed))
	// errors.As finds the outer error first, so the cause is reachable via Unwrap.
	var inner *Error
	require.True(t, errors.As(err.Unwrap(), &inner))
	assert.Equal(t, CodeNotFound, inner.Code)
}
