// Package api holds request helpers shared by the HTTP handlers.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/kazz187/taskpulse/pkg/cerr"
)

// UserIDHeader carries the caller identity. Authentication happens in front
// of this service.
const UserIDHeader = "X-User-ID"

func UserID(r *http.Request) (string, error) {
	userID := r.Header.Get(UserIDHeader)
	if userID == "" {
		return "", cerr.NewError(cerr.InvalidArgument, UserIDHeader+" header is required", nil)
	}
	return userID, nil
}

// DecodeJSON decodes the request body into v. An empty body leaves v as is.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return cerr.NewError(cerr.InvalidArgument, "invalid request body", err)
	}
	return nil
}

// QueryTime parses an optional RFC 3339 query parameter.
func QueryTime(r *http.Request, key string) (*time.Time, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, cerr.NewError(cerr.InvalidArgument, "invalid "+key, err)
	}
	return &t, nil
}
