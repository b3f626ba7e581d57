package apierr

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrHierarchyCycle, "cycle", http.StatusConflict)
	if err.Code != ErrHierarchyCycle || err.Message != "cycle" || err.Status() != http.StatusConflict {
		t.Errorf("unexpected error %+v (status %d)", err, err.Status())
	}
	if got, want := err.Error(), "HIERARCHY_CYCLE: cycle"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, NodeNotFound("n1").WithRequestID("req-123"))

	if w.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ct)
	}

	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != ErrNodeNotFound {
		t.Fatalf("unexpected body %+v", resp.Error)
	}
	if resp.Error.RequestID != "req-123" {
		t.Errorf("expected request ID 'req-123', got '%s'", resp.Error.RequestID)
	}
	if resp.Error.Details["node"] != "n1" {
		t.Errorf("details = %v", resp.Error.Details)
	}
}

func TestHelperFunctions(t *testing.T) {
	tests := []struct {
		name       string
		createErr  func() *Error
		wantCode   ErrorCode
		wantStatus int
	}{
		{"CanvasNotFound", func() *Error { return CanvasNotFound("c") }, ErrCanvasNotFound, http.StatusNotFound},
		{"CanvasClosed", CanvasClosed, ErrCanvasClosed, http.StatusServiceUnavailable},
		{"CanvasLimit", CanvasLimit, ErrCanvasLimit, http.StatusServiceUnavailable},
		{"NodeNotFound", func() *Error { return NodeNotFound("n") }, ErrNodeNotFound, http.StatusNotFound},
		{"HierarchyCycle", func() *Error { return HierarchyCycle("a", "b") }, ErrHierarchyCycle, http.StatusConflict},
		{"HierarchyInvalid", func() *Error { return HierarchyInvalid("") }, ErrHierarchyInvalid, http.StatusUnprocessableEntity},
		{"SimulationRunning", SimulationRunning, ErrSimulationRunning, http.StatusConflict},
		{"StoreFailed", func() *Error { return StoreFailed("") }, ErrStoreFailed, http.StatusInternalServerError},
		{"SystemInternal", func() *Error { return SystemInternal("") }, ErrSystemInternal, http.StatusInternalServerError},
		{"SystemUnavailable", func() *Error { return SystemUnavailable("") }, ErrSystemUnavailable, http.StatusServiceUnavailable},
		{"SystemTimeout", func() *Error { return SystemTimeout("") }, ErrSystemTimeout, http.StatusRequestTimeout},
		{"ValidationInvalidJSON", ValidationInvalidJSON, ErrValidationInvalidJSON, http.StatusBadRequest},
		{"ValidationMissingField", func() *Error { return ValidationMissingField("x") }, ErrValidationMissingField, http.StatusBadRequest},
		{"ValidationInvalidValue", func() *Error { return ValidationInvalidValue("mode", "") }, ErrValidationInvalidValue, http.StatusBadRequest},
		{"RateLimitGlobal", RateLimitGlobal, ErrRateLimitGlobal, http.StatusTooManyRequests},
		{"RateLimitIP", RateLimitIP, ErrRateLimitIP, http.StatusTooManyRequests},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.createErr()
			if err.Code != tt.wantCode {
				t.Errorf("expected code %s, got %s", tt.wantCode, err.Code)
			}
			if err.Status() != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, err.Status())
			}
			if err.Message == "" {
				t.Error("expected non-empty message")
			}
		})
	}
}

func TestHierarchyCycleDetails(t *testing.T) {
	err := HierarchyCycle("child", "parent")
	if err.Details["child"] != "child" || err.Details["parent"] != "parent" {
		t.Errorf("details = %v", err.Details)
	}
}
