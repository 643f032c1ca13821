// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating request data:
// JSON bodies, month and date query parameters and path identifiers.

package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"expensa/internal/core"
)

// maxBodyBytes bounds JSON bodies other than receipt uploads.
const maxBodyBytes = 1 << 20

var (
	ErrInvalidJSON = errors.New("Invalid JSON body")
	ErrEmptyBody   = errors.New("request body is required")
)

// decodeJSON reads at most limit bytes of JSON into v. Unknown fields are
// rejected so typos surface as 400s.
func decodeJSON(r *http.Request, limit int64, v any) error {
	if limit <= 0 {
		limit = maxBodyBytes
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if int64(len(body)) > limit {
		return fmt.Errorf("%w: body exceeds %d bytes", ErrInvalidJSON, limit)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return ErrEmptyBody
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	return nil
}

// decodeJSONMap decodes an object keeping numbers as json.Number, for
// payloads forwarded upstream as-is.
func decodeJSONMap(r *http.Request, limit int64) (map[string]any, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, limit))
	if err != nil {
		return nil, ErrInvalidJSON
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil || m == nil {
		return nil, ErrInvalidJSON
	}
	return m, nil
}

// ParseMonthParam reads a "YYYY-MM" query parameter. Missing means the
// month containing now.
func ParseMonthParam(query url.Values, key string, now time.Time) (core.Month, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return core.CurrentMonth(now), nil
	}
	return core.ParseMonth(v)
}

// ParseOptionalMonth is ParseMonthParam without a default; zero when absent.
func ParseOptionalMonth(query url.Values, key string) (core.Month, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return core.Month{}, nil
	}
	return core.ParseMonth(v)
}

// ParseDateParam reads a required "YYYY-MM-DD" query parameter.
func ParseDateParam(query url.Values, key string) (core.Date, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return core.Date{}, fmt.Errorf("%w: %s is required", core.ErrInvalidDate, key)
	}
	return core.ParseDate(v)
}

// ParseOptionalDate returns the zero Date when key is absent.
func ParseOptionalDate(query url.Values, key string) (core.Date, error) {
	if strings.TrimSpace(query.Get(key)) == "" {
		return core.Date{}, nil
	}
	return ParseDateParam(query, key)
}

// ParseIntParam reads an integer query parameter with a default.
func ParseIntParam(query url.Values, key string, def int) (int, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", key, v)
	}
	return n, nil
}

// pathID returns a trimmed path wildcard.
func pathID(r *http.Request, name string) string {
	return strings.TrimSpace(r.PathValue(name))
}

// sanitizeInput removes control characters (except tab and newlines) and
// trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
