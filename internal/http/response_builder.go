// Package http exposes the expensa JSON API.
//
// This file holds the response side: a small builder for JSON responses and
// the mapping from service errors to HTTP status codes.

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"expensa/internal/log"
	"expensa/internal/receipt"
	"expensa/internal/services"
	"expensa/internal/splitwise"
	"expensa/internal/storage"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response. A 204 carries no body.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.statusCode == http.StatusNoContent {
		w.WriteHeader(b.statusCode)
		return
	}

	data, err := json.Marshal(b.body)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"failed to encode response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(data)
}

type errorBody struct {
	Error string `json:"error"`
}

// ErrorResponse creates a {"error": message} response.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Body(errorBody{Error: message})
}

func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

func InternalServerError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	NewJSONResponse().Status(status).Body(v).Write(w)
}

// errorStatus maps a service error to a status and the message shown to
// the client. Internal failures get a generic message.
func errorStatus(err error) (int, string) {
	var sw *splitwise.APIError
	var up *receipt.UpstreamError
	switch {
	case services.IsValidation(err),
		errors.Is(err, splitwise.ErrMissingField),
		errors.Is(err, splitwise.ErrInvalidCost),
		errors.Is(err, splitwise.ErrInvalidShare),
		errors.Is(err, splitwise.ErrNoUsers),
		errors.Is(err, receipt.ErrMissingImage),
		errors.Is(err, receipt.ErrInvalidImage),
		errors.Is(err, storage.ErrContributionExceedsBalance):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, receipt.ErrImageTooLarge):
		return http.StatusRequestEntityTooLarge, err.Error()
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, storage.ErrConflict):
		return http.StatusConflict, "already exists"
	case errors.Is(err, splitwise.ErrMissingKey):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, services.ErrSplitwiseNotReady):
		return http.StatusConflict, err.Error()
	case errors.As(err, &sw):
		return http.StatusBadGateway, sw.Error()
	case errors.Is(err, receipt.ErrNotConfigured):
		return http.StatusInternalServerError, err.Error()
	case errors.As(err, &up):
		return http.StatusInternalServerError, up.Error()
	}
	return http.StatusInternalServerError, "internal server error"
}

// writeError logs the failure with the request-scoped logger and renders it.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := errorStatus(err)
	logger := log.FromContext(r.Context())
	if status >= 500 {
		logger.ErrorContext(r.Context(), "Request failed",
			log.FieldPath, r.URL.Path, log.FieldStatusCode, status, log.FieldError, err)
	} else {
		logger.DebugContext(r.Context(), "Request rejected",
			log.FieldPath, r.URL.Path, log.FieldStatusCode, status, log.FieldError, err)
	}
	ErrorResponse(status, msg).Write(w)
}
