// Package http provides HTTP server and handler implementations.
//
// This file implements a small builder for JSON responses and the mapping
// from ledger errors to status codes.

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"ledger/internal/core"
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

// StatusCode returns the status that Write will send.
func (b *JSONResponseBuilder) StatusCode() int {
	return b.statusCode
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	if b.body != nil {
		_ = json.NewEncoder(w).Encode(b.body)
	}
}

// errorBody is the shape of every error response.
type errorBody struct {
	Detail string   `json:"detail"`
	Errors []string `json:"errors,omitempty"`
}

// ErrorResponse creates a standard error response.
func ErrorResponse(statusCode int, detail string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Body(errorBody{Detail: detail})
}

func BadRequestError(detail string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, detail)
}

func UnprocessableEntityError(detail string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, detail)
}

func NotFoundError(detail string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, detail)
}

func InternalServerError(detail string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, detail)
}

func ServiceUnavailableError(detail string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusServiceUnavailable, detail)
}

// ValidationError lists each failed field constraint.
func ValidationError(verrs validator.ValidationErrors) *JSONResponseBuilder {
	body := errorBody{Detail: "validation failed"}
	for _, fe := range verrs {
		msg := fe.Namespace() + " failed on " + fe.Tag()
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		body.Errors = append(body.Errors, msg)
	}
	return NewJSONResponse().Status(http.StatusUnprocessableEntity).Body(body)
}

// ErrorFor maps a ledger error to its response: NotFound is 404,
// InvalidArgument and validation failures are 422, anything else is 500.
// Internal details are not exposed.
func ErrorFor(err error) *JSONResponseBuilder {
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		return ValidationError(verrs)
	case errors.Is(err, core.ErrNotFound):
		return NotFoundError(err.Error())
	case errors.Is(err, core.ErrInvalidArgument):
		return UnprocessableEntityError(err.Error())
	default:
		return InternalServerError("internal error")
	}
}
