package httputil

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/wareflow/wareflow-backend/pkg/database"
	"github.com/wareflow/wareflow-backend/pkg/errors"
)

// Response is a standard API response
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
	Meta    *Meta      `json:"meta,omitempty"`
}

// ErrorBody represents an error in the response
type ErrorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// Meta contains pagination metadata
type Meta struct {
	Offset int   `json:"offset"`
	Limit  int   `json:"limit,omitempty"`
	Total  int64 `json:"total"`
}

var exposeDetails atomic.Bool

func init() { exposeDetails.Store(true) }

// ExposeErrorDetails toggles rendering of error details. Production
// deployments switch it off.
func ExposeErrorDetails(enabled bool) {
	exposeDetails.Store(enabled)
}

// JSON sends a JSON response
func JSON(w http.ResponseWriter, statusCode int, data any) {
	write(w, statusCode, Response{
		Success: statusCode >= 200 && statusCode < 300,
		Data:    data,
	})
}

// JSONWithMeta sends a JSON response with metadata
func JSONWithMeta(w http.ResponseWriter, statusCode int, data any, meta *Meta) {
	write(w, statusCode, Response{
		Success: statusCode >= 200 && statusCode < 300,
		Data:    data,
		Meta:    meta,
	})
}

// Error sends an error response. pq errors are mapped first; anything that
// is not an AppError is rendered as 500.
func Error(w http.ResponseWriter, err error) {
	err = database.Translate(err)

	var appErr *errors.AppError
	if errors.As(err, &appErr) {
		body := &ErrorBody{Code: appErr.Code, Message: appErr.Message}
		if exposeDetails.Load() {
			body.Details = appErr.Details
		}
		write(w, appErr.StatusCode, Response{Error: body})
		return
	}

	body := &ErrorBody{Code: "INTERNAL_ERROR", Message: "an unexpected error occurred"}
	if exposeDetails.Load() && err != nil {
		body.Details = map[string]string{"error": err.Error()}
	}
	write(w, http.StatusInternalServerError, Response{Error: body})
}

func write(w http.ResponseWriter, statusCode int, response Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}

// NoContent sends a 204 No Content response
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Created sends a 201 Created response
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, data)
}

// DecodeJSON decodes the request body into the provided struct
func DecodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.BadRequest("invalid JSON body")
	}
	return nil
}

// DecodeAndValidate decodes the body and runs struct validation on it.
func DecodeAndValidate(r *http.Request, v any) error {
	if err := DecodeJSON(r, v); err != nil {
		return err
	}
	return Validate(v)
}

// URLParamInt64 parses a positive integer route parameter.
func URLParamInt64(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, errors.BadRequest("invalid " + name)
	}
	return id, nil
}
