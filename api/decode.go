package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

const (
	maxAuthBodySize    = 4 << 10
	maxSmallBodySize   = 16 << 10
	maxMessageBodySize = 128 << 10
)

// decodeJSON reads a single JSON value of type T from the request body,
// rejecting unknown fields, trailing data and bodies over limit bytes. On
// failure it writes the error response and returns false.
func decodeJSON[T any](w http.ResponseWriter, r *http.Request, limit int64) (T, bool) {
	var v T
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return v, false
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return v, false
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "request body must contain a single JSON object")
		return v, false
	}
	return v, true
}
