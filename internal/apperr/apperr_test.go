package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "validation", err: Validation("bad"), want: KindValidation},
		{name: "wrapped not found", err: fmt.Errorf("get product: %w", NotFound("Product not found")), want: KindNotFound},
		{name: "credentials", err: ErrInvalidCredentials, want: KindAuthentication},
		{name: "plain error", err: errors.New("connection refused"), want: KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestErrorIs(t *testing.T) {
	wrapped := fmt.Errorf("authenticate: %w", ErrInvalidCredentials)
	assert.True(t, errors.Is(wrapped, ErrInvalidCredentials))
	assert.False(t, errors.Is(wrapped, ErrUnauthenticated))
}

func TestStatusCode(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, StatusCode(KindValidation))
	assert.Equal(t, http.StatusUnauthorized, StatusCode(KindAuthentication))
	assert.Equal(t, http.StatusNotFound, StatusCode(KindNotFound))
	assert.Equal(t, http.StatusInternalServerError, StatusCode(KindInternal))
}

func TestInternalUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := Internal("Failed to create user", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "disk full")
}
