package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rockbears/log"

	"github.com/fedora-infra/packagedb-sub000/sdk"
)

// Handler is the signature of every HTTP handler of the engine.
type Handler func(ctx context.Context, w http.ResponseWriter, r *http.Request) error

// Response is the envelope of every JSON response.
type Response struct {
	OK    bool        `json:"ok"`
	Data  interface{} `json:"data,omitempty"`
	Error *sdk.Error  `json:"error,omitempty"`
}

// Write is a helper function
func Write(w http.ResponseWriter, btes []byte, status int, contentType string) error {
	w.Header().Add("Content-Type", contentType)
	w.Header().Add("Content-Length", fmt.Sprintf("%d", len(btes)))
	w.WriteHeader(status)
	_, err := w.Write(btes)
	return err
}

// WriteJSON is a helper function to marshal json, handle errors and set Content-Type for the best
func WriteJSON(w http.ResponseWriter, data interface{}, status int) error {
	b, err := json.Marshal(Response{OK: true, Data: data})
	if err != nil {
		return sdk.WrapError(err, "unable to marshal response")
	}
	return Write(w, b, status, "application/json")
}

// WriteError returns the error in the response envelope with the http status
// of the sdk error it wraps.
func WriteError(ctx context.Context, w http.ResponseWriter, r *http.Request, err error) {
	httpErr := sdk.ExtractHTTPError(err)

	if httpErr.Status >= 500 {
		log.Error(ctx, "%-7s | %-4d | %s \t %v", r.Method, httpErr.Status, r.RequestURI, err)
	} else {
		log.Warn(ctx, "%-7s | %-4d | %s \t %v", r.Method, httpErr.Status, r.RequestURI, err)
	}

	b, _ := json.Marshal(Response{OK: false, Error: &httpErr})
	_ = Write(w, b, httpErr.Status, "application/json")
}

// UnmarshalBody reads the request body and tries to json.Unmarshal it. It
// returns an sdk validation error on failure.
func UnmarshalBody(r *http.Request, i interface{}) error {
	if r.Body == nil {
		return sdk.NewErrorFrom(sdk.ErrValidation, "empty body")
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return sdk.NewError(sdk.ErrValidation, err)
	}
	defer r.Body.Close() // nolint
	if err := json.Unmarshal(data, i); err != nil {
		return sdk.NewErrorFrom(sdk.ErrValidation, "unable to unmarshal body: %v", err)
	}
	return nil
}
