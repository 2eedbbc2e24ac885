package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppErrorStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    *AppError
		status int
	}{
		{"not found", NotFound("service"), http.StatusNotFound},
		{"bad request", BadRequest("bad"), http.StatusBadRequest},
		{"validation", Validation("invalid"), http.StatusUnprocessableEntity},
		{"unauthorized", Unauthorized("nope"), http.StatusUnauthorized},
		{"forbidden", Forbidden("nope"), http.StatusForbidden},
		{"conflict", Conflict("dup"), http.StatusConflict},
		{"internal", Internal(stderrors.New("boom")), http.StatusInternalServerError},
		{"zero status", &AppError{Message: "x"}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, tt.err.StatusCode())
		})
	}
}

func TestAsFindsWrappedError(t *testing.T) {
	base := NotFound("client")
	wrapped := fmt.Errorf("failed to load: %w", base)

	appErr, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, "client not found", appErr.Message)
	assert.True(t, IsNotFound(wrapped))
	assert.False(t, IsConflict(wrapped))
}

func TestWrapKeepsOriginalUntouched(t *testing.T) {
	cause := stderrors.New("duplicate key")
	base := Conflict("email already in use")

	wrapped := base.Wrap(cause)

	assert.Nil(t, base.Err)
	assert.Equal(t, cause, stderrors.Unwrap(wrapped))
	assert.Equal(t, "email already in use: duplicate key", wrapped.Error())
}
