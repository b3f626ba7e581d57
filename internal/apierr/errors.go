package apierr

import (
	"context"
	"encoding/json"
	"maps"
	"net/http"

	"github.com/onnwee/nodelayout/internal/logger"
)

// ErrorCode represents a structured error code
type ErrorCode string

// Error code constants organized by category
const (
	// CANVAS_ - Canvas session errors
	ErrCanvasNotFound ErrorCode = "CANVAS_NOT_FOUND"
	ErrCanvasClosed   ErrorCode = "CANVAS_CLOSED"
	ErrCanvasLimit    ErrorCode = "CANVAS_LIMIT"

	// NODE_ / HIERARCHY_ - Layout core refusals
	ErrNodeNotFound      ErrorCode = "NODE_NOT_FOUND"
	ErrHierarchyCycle    ErrorCode = "HIERARCHY_CYCLE"
	ErrHierarchyInvalid  ErrorCode = "HIERARCHY_INVALID"
	ErrSimulationRunning ErrorCode = "LAYOUT_SIMULATION_RUNNING"

	// STORE_ - Snapshot persistence errors
	ErrStoreFailed ErrorCode = "STORE_FAILED"

	// SYSTEM_ - System and server errors
	ErrSystemInternal    ErrorCode = "SYSTEM_INTERNAL"
	ErrSystemUnavailable ErrorCode = "SYSTEM_UNAVAILABLE"
	ErrSystemTimeout     ErrorCode = "SYSTEM_TIMEOUT"

	// VALIDATION_ - Request validation errors
	ErrValidationInvalidJSON  ErrorCode = "VALIDATION_INVALID_JSON"
	ErrValidationMissingField ErrorCode = "VALIDATION_MISSING_FIELD"
	ErrValidationInvalidValue ErrorCode = "VALIDATION_INVALID_VALUE"

	// RATE_LIMIT_ - Rate limiting errors
	ErrRateLimitGlobal ErrorCode = "RATE_LIMIT_GLOBAL"
	ErrRateLimitIP     ErrorCode = "RATE_LIMIT_IP"
)

// Error represents a structured API error
type Error struct {
	Code      ErrorCode      `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	status    int            // HTTP status code (not serialized)
}

// ErrorResponse is the top-level error response wrapper
type ErrorResponse struct {
	Error *Error `json:"error"`
}

// New creates a new API error
func New(code ErrorCode, message string, status int) *Error {
	return &Error{
		Code:    code,
		Message: message,
		status:  status,
	}
}

// WithDetails merges details into the error; later keys win.
func (e *Error) WithDetails(details map[string]any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any, len(details))
	}
	maps.Copy(e.Details, details)
	return e
}

// WithRequestID adds a request ID to the error
func (e *Error) WithRequestID(requestID string) *Error {
	e.RequestID = requestID
	return e
}

// Error implements the error interface
func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

// Status returns the HTTP status code
func (e *Error) Status() int {
	return e.status
}

// WriteError writes a structured error response to the HTTP response writer
func WriteError(w http.ResponseWriter, err *Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Status())
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: err})
}

func orDefault(message, def string) string {
	if message == "" {
		return def
	}
	return message
}

// CanvasNotFound reports a canvas with no stored snapshot.
func CanvasNotFound(canvasID string) *Error {
	return New(ErrCanvasNotFound, "Canvas not found", http.StatusNotFound).
		WithDetails(map[string]any{"canvas": canvasID})
}

// CanvasClosed reports a session that shut down while handling the request.
func CanvasClosed() *Error {
	return New(ErrCanvasClosed, "Canvas session is closed", http.StatusServiceUnavailable)
}

// CanvasLimit reports that no further canvas can be opened.
func CanvasLimit() *Error {
	return New(ErrCanvasLimit, "Too many open canvases", http.StatusServiceUnavailable)
}

// NodeNotFound creates a node not found error
func NodeNotFound(nodeID string) *Error {
	return New(ErrNodeNotFound, "Node not found", http.StatusNotFound).
		WithDetails(map[string]any{"node": nodeID})
}

// HierarchyCycle reports a refused reparent.
func HierarchyCycle(child, parent string) *Error {
	return New(ErrHierarchyCycle, "Connection would create a cycle", http.StatusConflict).
		WithDetails(map[string]any{"child": child, "parent": parent})
}

// HierarchyInvalid reports a snapshot or order that breaks the hierarchy rules.
func HierarchyInvalid(message string) *Error {
	return New(ErrHierarchyInvalid, orDefault(message, "Invalid hierarchy"), http.StatusUnprocessableEntity)
}

// SimulationRunning refuses edits while the force layout runs.
func SimulationRunning() *Error {
	return New(ErrSimulationRunning, "Force layout is running", http.StatusConflict)
}

// StoreFailed creates a snapshot persistence error
func StoreFailed(message string) *Error {
	return New(ErrStoreFailed, orDefault(message, "Snapshot store error"), http.StatusInternalServerError)
}

// SystemInternal creates an internal server error
func SystemInternal(message string) *Error {
	return New(ErrSystemInternal, orDefault(message, "Internal server error"), http.StatusInternalServerError)
}

// SystemUnavailable creates a service unavailable error
func SystemUnavailable(message string) *Error {
	return New(ErrSystemUnavailable, orDefault(message, "Service unavailable"), http.StatusServiceUnavailable)
}

// SystemTimeout creates a system timeout error
func SystemTimeout(message string) *Error {
	return New(ErrSystemTimeout, orDefault(message, "Request timeout"), http.StatusRequestTimeout)
}

// ValidationInvalidJSON creates an invalid JSON error
func ValidationInvalidJSON() *Error {
	return New(ErrValidationInvalidJSON, "Invalid JSON request body", http.StatusBadRequest)
}

// ValidationMissingField creates a missing field error
func ValidationMissingField(field string) *Error {
	return New(ErrValidationMissingField, "Missing required field: "+field, http.StatusBadRequest).
		WithDetails(map[string]any{"field": field})
}

// ValidationInvalidValue creates an invalid value error
func ValidationInvalidValue(field string, message string) *Error {
	return New(ErrValidationInvalidValue, orDefault(message, "Invalid value for field: "+field), http.StatusBadRequest).
		WithDetails(map[string]any{"field": field})
}

// RateLimitGlobal creates a global rate limit error
func RateLimitGlobal() *Error {
	return New(ErrRateLimitGlobal, "Rate limit exceeded - too many requests globally", http.StatusTooManyRequests)
}

// RateLimitIP creates an IP rate limit error
func RateLimitIP() *Error {
	return New(ErrRateLimitIP, "Rate limit exceeded - too many requests from your IP", http.StatusTooManyRequests)
}

// GetRequestID extracts the request ID from the context
func GetRequestID(ctx context.Context) string {
	return logger.RequestIDFromContext(ctx)
}

// WriteErrorWithContext writes a structured error response with request ID from context
func WriteErrorWithContext(w http.ResponseWriter, r *http.Request, err *Error) {
	if reqID := GetRequestID(r.Context()); reqID != "" {
		err = err.WithRequestID(reqID)
	}
	WriteError(w, err)
}
