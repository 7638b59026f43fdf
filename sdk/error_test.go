package sdk

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewErrorFrom(t *testing.T) {
	err := NewErrorFrom(ErrValidation, "field %s is required", "owner")
	require.Error(t, err)
	assert.Equal(t, "field owner is required", err.Error())
	assert.True(t, ErrorIs(err, ErrValidation))
	assert.False(t, ErrorIs(err, ErrForbidden))

	httpErr := ExtractHTTPError(err)
	assert.Equal(t, http.StatusBadRequest, httpErr.Status)
	assert.Equal(t, "ValidationError", httpErr.Code)
	assert.Equal(t, "field owner is required", httpErr.Message)
}

func TestWrapErrorKeepsType(t *testing.T) {
	err := NewErrorFrom(ErrInvalidBranch, "no branch f41")
	wrapped := WrapError(err, "cloning foo")
	require.Error(t, wrapped)
	assert.True(t, ErrorIs(wrapped, ErrInvalidBranch))
	assert.Equal(t, http.StatusBadRequest, ExtractHTTPError(wrapped).Status)
}

func TestExtractHTTPErrorDefaultsToUnknown(t *testing.T) {
	httpErr := ExtractHTTPError(fmt.Errorf("pq: connection reset"))
	assert.Equal(t, ErrUnknownError.ID, httpErr.ID)
	assert.Equal(t, http.StatusInternalServerError, httpErr.Status)
	// internal details must not leak to the caller
	assert.Equal(t, ErrUnknownError.Message, httpErr.Message)
}

func TestWithStack(t *testing.T) {
	err := WithStack(ErrForbidden)
	require.Error(t, err)
	assert.True(t, ErrorIs(err, ErrForbidden))
	assert.Equal(t, ErrForbidden.Message, err.Error())

	assert.NoError(t, WithStack(nil))
	assert.NoError(t, WrapError(nil, "nothing"))
}

func TestCause(t *testing.T) {
	root := fmt.Errorf("boom")
	err := WrapError(NewError(ErrDatabase, root), "inserting listing")
	assert.Equal(t, root, Cause(err))
}

func TestErrorIsNil(t *testing.T) {
	assert.False(t, ErrorIs(nil, ErrNotFound))
}
