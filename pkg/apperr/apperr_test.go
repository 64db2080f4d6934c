package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("start trip: %w", Conflict("Queue changed while starting trip. Please retry."))

	assert.Equal(t, KindConflict, KindOf(err))
	assert.True(t, errors.Is(err, ErrConflict))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.True(t, Retryable(err))
	assert.Equal(t, "Queue changed while starting trip. Please retry.", Message(err))
}

func TestHTTPStatus(t *testing.T) {
	cases := map[error]int{
		AlreadyBooked("dup"):      http.StatusConflict,
		NotFound("missing"):       http.StatusNotFound,
		Locked("locked"):          http.StatusConflict,
		InvalidState("bad"):       http.StatusBadRequest,
		Forbidden("no"):           http.StatusForbidden,
		Conflict("race"):          http.StatusConflict,
		EmptyQueue("empty"):       http.StatusBadRequest,
		Validation("invalid"):     http.StatusBadRequest,
		Unauthorized("who"):       http.StatusUnauthorized,
		Duplicate("taken"):        http.StatusConflict,
		errors.New("db exploded"): http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, HTTPStatus(err), err.Error())
	}
}

func TestInternalMessageHidden(t *testing.T) {
	err := errors.New("pq: connection refused")
	assert.Equal(t, "Internal server error", Message(err))
	assert.False(t, Retryable(err))
	assert.Equal(t, "internal", KindOf(err).String())
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(KindConflict, "retry", cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "retry: boom", err.Error())
}
