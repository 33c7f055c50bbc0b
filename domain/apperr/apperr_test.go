package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	base := InvalidRequest("bad %s", "input")
	wrapped := fmt.Errorf("AddAssignee failed: %w", base)

	assert.Equal(t, KindInvalidRequest, KindOf(wrapped))
	assert.Equal(t, KindUnknown, KindOf(errors.New("boom")))
	assert.Equal(t, "bad input", PublicMessage(wrapped))
	assert.Equal(t, "internal server error", PublicMessage(errors.New("boom")))
}

func TestSentinelIs(t *testing.T) {
	sentinel := New(KindInvalidRequest, "inquiry is resolved")
	err := fmt.Errorf("AddComment failed: %w", Wrap(KindInvalidRequest, "inquiry is resolved", errors.New("cause")))

	assert.True(t, errors.Is(err, sentinel))
	assert.False(t, errors.Is(err, New(KindForbidden, "inquiry is resolved")))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{NotFound("x"), http.StatusNotFound},
		{Forbidden("x"), http.StatusForbidden},
		{InvalidRequest("x"), http.StatusBadRequest},
		{AlreadyExists("x"), http.StatusConflict},
		{errors.New("x"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.err), tt.err.Error())
	}
}
