package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstructorsCarryStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", NotFound("user not found"), http.StatusNotFound},
		{"unauthorized", Unauthorized("missing token"), http.StatusUnauthorized},
		{"forbidden", Forbidden("not a participant"), http.StatusForbidden},
		{"invalid", Invalid("empty content"), http.StatusBadRequest},
		{"conflict", Conflict("handle already taken"), http.StatusConflict},
		{"internal", Internal("query failed", stderrors.New("boom")), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, HTTPStatus(tt.err))
		})
	}
}

func TestHTTPStatusDefaults(t *testing.T) {
	assert.Equal(t, http.StatusOK, HTTPStatus(nil))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(stderrors.New("opaque")))
}

func TestHTTPStatusUnwrapsSentinels(t *testing.T) {
	wrapped := fmt.Errorf("loading profile: %w", ErrNotFound)
	assert.Equal(t, http.StatusNotFound, HTTPStatus(wrapped))

	wrapped = fmt.Errorf("creating team: %w", ErrConflict)
	assert.Equal(t, http.StatusConflict, HTTPStatus(wrapped))
}

func TestAppErrorMessage(t *testing.T) {
	err := Internal("query failed", stderrors.New("connection reset"))
	assert.Equal(t, "query failed: connection reset", err.Error())

	bare := Invalid("empty content")
	assert.Equal(t, "empty content: invalid input", bare.Error())
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(NotFound("gone")))
	assert.True(t, IsNotFound(fmt.Errorf("wrapped: %w", ErrNotFound)))
	assert.False(t, IsNotFound(Conflict("taken")))
	assert.False(t, IsNotFound(nil))
}

func TestIsConflict(t *testing.T) {
	assert.True(t, IsConflict(Conflict("taken")))
	assert.True(t, IsConflict(fmt.Errorf("wrapped: %w", ErrConflict)))
	assert.False(t, IsConflict(NotFound("gone")))
	assert.False(t, IsConflict(nil))
}

func TestUnwrapExposesCause(t *testing.T) {
	cause := stderrors.New("pg timeout")
	err := Internal("query failed", cause)
	assert.True(t, stderrors.Is(err, cause))
}
