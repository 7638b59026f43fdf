package service

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fedora-infra/packagedb-sub000/sdk"
)

func TestWriteJSONEnvelope(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, WriteJSON(w, map[string]string{"name": "foo"}, http.StatusCreated))

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var res Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.True(t, res.OK)
	assert.Nil(t, res.Error)
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/listings/1/acls", nil)

	WriteError(context.TODO(), w, r, sdk.NewErrorFrom(sdk.ErrAclNotAllowed, "eve may not hold commit"))

	assert.Equal(t, http.StatusForbidden, w.Code)

	var res Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.False(t, res.OK)
	require.NotNil(t, res.Error)
	assert.Equal(t, "AclNotAllowedError", res.Error.Code)
	assert.Equal(t, "eve may not hold commit", res.Error.Message)
}

func TestWriteErrorHidesInternalDetails(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/packages/foo", nil)

	WriteError(context.TODO(), w, r, assert.AnError)

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var res Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.NotNil(t, res.Error)
	assert.Equal(t, sdk.ErrUnknownError.Message, res.Error.Message)
}

func TestUnmarshalBody(t *testing.T) {
	var payload struct {
		User string `json:"user"`
	}

	r := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"user":"carol"}`))
	require.NoError(t, UnmarshalBody(r, &payload))
	assert.Equal(t, "carol", payload.User)

	r = httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{invalid`))
	err := UnmarshalBody(r, &payload)
	require.Error(t, err)
	assert.True(t, sdk.ErrorIs(err, sdk.ErrValidation))
}
