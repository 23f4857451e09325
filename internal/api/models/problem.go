package models

import (
	"encoding/json"
	"net/http"
)

// Problem is an RFC 7807 error body, served as application/problem+json.
type Problem struct {
	Type     string       `json:"type"`
	Title    string       `json:"title"`
	Status   int          `json:"status"`
	Detail   string       `json:"detail,omitempty"`
	Instance string       `json:"instance,omitempty"`
	TraceID  string       `json:"traceId"`
	Errors   []FieldError `json:"errors,omitempty"`
}

// FieldError points at one invalid request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ProblemKind is the fixed part of a problem: its type URI, title and status.
type ProblemKind struct {
	Type   string
	Title  string
	Status int
}

// Problem kinds served by the API.
var (
	KindValidation       = ProblemKind{"/problems/validation-error", "Validation error", http.StatusBadRequest}
	KindUnauthorized     = ProblemKind{"/problems/unauthorized", "Unauthorized", http.StatusUnauthorized}
	KindForbidden        = ProblemKind{"/problems/forbidden", "Forbidden", http.StatusForbidden}
	KindTLSRequired      = ProblemKind{"/problems/tls-required", "TLS required", http.StatusForbidden}
	KindNotFound         = ProblemKind{"/problems/not-found", "Not found", http.StatusNotFound}
	KindMethodNotAllowed = ProblemKind{"/problems/method-not-allowed", "Method not allowed", http.StatusMethodNotAllowed}
	KindUnsupportedMedia = ProblemKind{"/problems/unsupported-media-type", "Unsupported media type", http.StatusUnsupportedMediaType}
	KindTooManyRequests  = ProblemKind{"/problems/too-many-requests", "Too many requests", http.StatusTooManyRequests}
	KindInternal         = ProblemKind{"/problems/internal-error", "Internal server error", http.StatusInternalServerError}
)

// New returns a problem of this kind for the request traced by traceID.
func (k ProblemKind) New(traceID, detail string) *Problem {
	return &Problem{
		Type:    k.Type,
		Title:   k.Title,
		Status:  k.Status,
		Detail:  detail,
		TraceID: traceID,
	}
}

// At sets the instance to the request path and returns p.
func (p *Problem) At(path string) *Problem {
	p.Instance = path
	return p
}

// Write sends p with its status code. The trace ID is echoed as
// X-Request-Id so clients can quote it.
func (p *Problem) Write(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", "application/problem+json")
	if p.TraceID != "" {
		h.Set("X-Request-Id", p.TraceID)
	}
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// NewBadRequest returns a validation problem carrying the offending fields.
func NewBadRequest(traceID, detail string, fields []FieldError) *Problem {
	p := KindValidation.New(traceID, detail)
	p.Errors = fields
	return p
}
