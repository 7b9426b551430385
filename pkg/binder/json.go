package binder

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
)

// DefaultMaxJSONSize is the largest body JSON accepts.
const DefaultMaxJSONSize = 1 << 20

// JSON decodes the request body into v.
func JSON(r *http.Request, v any) error {
	return JSONWithLimit(r, v, DefaultMaxJSONSize)
}

// JSONWithLimit is JSON with a custom size limit in bytes.
func JSONWithLimit(r *http.Request, v any, limit int64) error {
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		return fmt.Errorf("%w: expected application/json", ErrMissingContentType)
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType != "application/json" {
		return fmt.Errorf("%w: got %s, expected application/json", ErrUnsupportedMediaType, contentType)
	}
	if r.Body == nil {
		return fmt.Errorf("%w: empty body", ErrFailedToParseJSON)
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFailedToParseJSON, err)
	}
	if int64(len(body)) > limit {
		return fmt.Errorf("%w: max %d bytes", ErrBodyTooLarge, limit)
	}
	if len(body) == 0 {
		return fmt.Errorf("%w: empty body", ErrFailedToParseJSON)
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrFailedToParseJSON, err)
	}
	var extra json.RawMessage
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: unexpected data after JSON object", ErrFailedToParseJSON)
	}
	return nil
}
