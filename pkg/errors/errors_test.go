package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromErrorWrapsUnknownErrors(t *testing.T) {
	appErr := FromError(fmt.Errorf("boom"))
	require.NotNil(t, appErr)
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)
	assert.EqualError(t, appErr, "internal server error: boom")
}

func TestCloneKeepsCodeForErrorsIs(t *testing.T) {
	cloned := Clone(ErrLocked, "run already in flight for user-1")
	wrapped := fmt.Errorf("run: %w", cloned)

	assert.True(t, errors.Is(wrapped, ErrLocked))
	assert.False(t, errors.Is(wrapped, ErrNotFound))
	assert.Equal(t, "run already in flight for user-1", cloned.Message)
	assert.Equal(t, "automation run already in progress", ErrLocked.Message)
}

func TestFromErrorNil(t *testing.T) {
	assert.Nil(t, FromError(nil))
}
