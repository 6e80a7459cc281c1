package errors

import (
	"net/http"

	"github.com/go-chi/render"
)

// APIError is an error a handler returns when it already knows the HTTP
// status and the machine-readable code the client should see.
type APIError struct {
	StatusCode int         `json:"status_code"`
	ErrorCode  string      `json:"error_code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

// ValidationError names the input that failed validation.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// New creates an APIError without details.
func New(statusCode int, errorCode, message string) *APIError {
	return &APIError{StatusCode: statusCode, ErrorCode: errorCode, Message: message}
}

var (
	ErrForbidden         = New(http.StatusForbidden, "FORBIDDEN", "Access denied")
	ErrConflict          = New(http.StatusConflict, "CONFLICT", "Resource conflict")
	ErrRateLimitExceeded = New(http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Rate limit exceeded")
)

// ErrValidation reports a single invalid field.
func ErrValidation(field, message string) *APIError {
	err := New(http.StatusBadRequest, "VALIDATION_FAILED", "Request validation failed")
	err.Details = ValidationError{Field: field, Message: message}
	return err
}

// problemTypes maps error codes onto problem type URIs.
var problemTypes = map[string]string{
	"VALIDATION_FAILED":   TypeValidation,
	"NOT_FOUND":           TypeNotFound,
	"FORBIDDEN":           TypeForbidden,
	"CONFLICT":            TypeConflict,
	"RATE_LIMIT_EXCEEDED": TypeRateLimit,
}

// Problem converts the error to an RFC 7807 document for instance.
func (e *APIError) Problem(instance string) *ProblemDetails {
	problemType, ok := problemTypes[e.ErrorCode]
	if !ok {
		problemType = TypeInternal
	}

	problem := NewProblemDetails(e.StatusCode, problemType, http.StatusText(e.StatusCode), e.Message, instance).
		WithExtension("error_code", e.ErrorCode)
	if e.Details != nil {
		problem.WithExtension("details", e.Details)
	}
	return problem
}

// WriteError renders err as a problem document outside the ErrorHandler,
// for middleware that rejects a request before routing.
func WriteError(w http.ResponseWriter, r *http.Request, err *APIError) {
	render.Render(w, r, err.Problem(r.URL.Path))
}
