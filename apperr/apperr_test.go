package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("controller: %w", NotFoundf("Product %s not found", "p1"))

	assert.Equal(t, NotFound, KindOf(wrapped))
	assert.True(t, Is(wrapped, NotFound))
	assert.False(t, Is(wrapped, Validation))
	assert.Equal(t, Unknown, KindOf(errors.New("boom")))
	assert.False(t, Is(nil, Unknown))
}

func TestMessageOf(t *testing.T) {
	cause := errors.New("connection refused")

	assert.Equal(t, "Product p1 not found", MessageOf(NotFoundf("Product %s not found", "p1")))
	assert.Equal(t, "Storage is unavailable, please try again", MessageOf(Unavailable(cause)))
	assert.Equal(t, "Unknown error occurred", MessageOf(cause))
	assert.Equal(t, "User not logged in", MessageOf(Unauthorized("")))
}

func TestUnwrapKeepsCause(t *testing.T) {
	cause := errors.New("timeout")
	err := Unavailable(cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "timeout")
}
