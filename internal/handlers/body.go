package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
)

const maxBodySize = 64 * 1024

var (
	errEmptyBody    = errors.New("request body is required")
	errBodyTooLarge = errors.New("request body too large")
)

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	if limit <= 0 {
		limit = maxBodySize
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

// decodeBody decodes a JSON request body into dst. When optional is set an
// empty body leaves dst untouched.
func decodeBody(r *http.Request, dst any, optional bool) error {
	data, err := readLimitedBody(r, maxBodySize)
	if errors.Is(err, errEmptyBody) && optional {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}
