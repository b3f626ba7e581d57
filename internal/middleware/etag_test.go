package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestETag(t *testing.T) {
	body := `{"version":4,"nodes":[]}`
	handler := ETag(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/api/canvases/a", nil))
	etag := first.Header().Get("ETag")
	if first.Code != http.StatusOK || etag == "" {
		t.Fatalf("first request: status %d etag %q", first.Code, etag)
	}
	if first.Body.String() != body {
		t.Errorf("body = %q", first.Body.String())
	}
	if cc := first.Header().Get("Cache-Control"); cc != "private, no-cache" {
		t.Errorf("Cache-Control = %q", cc)
	}

	tests := []struct {
		name        string
		ifNoneMatch string
		wantStatus  int
	}{
		{"different tag", `"different-etag"`, http.StatusOK},
		{"same tag", etag, http.StatusNotModified},
		{"weak and listed", `"x", W/` + etag, http.StatusNotModified},
		{"star", "*", http.StatusNotModified},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/canvases/a", nil)
			req.Header.Set("If-None-Match", tt.ifNoneMatch)
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusNotModified && rr.Body.Len() > 0 {
				t.Error("expected empty body for 304 response")
			}
		})
	}
}

func TestETagSkipsErrorsAndWrites(t *testing.T) {
	tests := []struct {
		name   string
		method string
		status int
	}{
		{"not found", http.MethodGet, http.StatusNotFound},
		{"put", http.MethodPut, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := ETag(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte("x"))
			}))
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, httptest.NewRequest(tt.method, "/x", nil))

			if rr.Code != tt.status || rr.Body.String() != "x" {
				t.Errorf("status %d body %q", rr.Code, rr.Body.String())
			}
			if rr.Header().Get("ETag") != "" {
				t.Error("unexpected ETag")
			}
		})
	}
}
