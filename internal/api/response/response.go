// Package response writes JSON bodies and problem+json errors for handlers.
package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/morningdash/morningdash/internal/api/middleware"
	"github.com/morningdash/morningdash/internal/api/models"
)

// MaxBodyBytes bounds request bodies read by DecodeJSON.
const MaxBodyBytes = 1 << 16

// Errors returned by DecodeJSON besides wrapped syntax errors.
var (
	ErrEmptyBody    = errors.New("request body is empty")
	ErrTrailingData = errors.New("request body must contain a single JSON object")
)

// JSON encodes data with status. The request ID, when known, is echoed.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	h := w.Header()
	if id := middleware.GetRequestID(r.Context()); id != "" {
		h.Set("X-Request-Id", id)
	}
	h.Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// DecodeJSON reads exactly one JSON object into v, rejecting unknown fields
// and bodies over MaxBodyBytes.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()

	switch err := dec.Decode(v); {
	case errors.Is(err, io.EOF):
		return ErrEmptyBody
	case err != nil:
		return fmt.Errorf("invalid JSON body: %w", err)
	case dec.More():
		return ErrTrailingData
	}
	return nil
}

// Problem writes a problem of kind for r.
func Problem(w http.ResponseWriter, r *http.Request, kind models.ProblemKind, detail string) {
	kind.New(middleware.GetRequestID(r.Context()), detail).At(r.URL.Path).Write(w)
}

// BadRequest writes a 400 listing the invalid fields.
func BadRequest(w http.ResponseWriter, r *http.Request, detail string, fields []models.FieldError) {
	models.NewBadRequest(middleware.GetRequestID(r.Context()), detail, fields).At(r.URL.Path).Write(w)
}

// NotFound writes a 404.
func NotFound(w http.ResponseWriter, r *http.Request, detail string) {
	Problem(w, r, models.KindNotFound, detail)
}

// MethodNotAllowed writes a 405. It has the shape chi expects for its
// MethodNotAllowed hook.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	Problem(w, r, models.KindMethodNotAllowed, r.Method+" is not allowed on "+r.URL.Path)
}

// InternalError writes a 500. detail must not leak internals.
func InternalError(w http.ResponseWriter, r *http.Request, detail string) {
	Problem(w, r, models.KindInternal, detail)
}
