package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/onnwee/nodelayout/internal/apierr"
)

func TestValidateRequestBody(t *testing.T) {
	var readErr error
	handler := ValidateRequestBody(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var v struct{}
		if e := DecodeJSON(r, &v); e != nil {
			readErr = e
			apierr.WriteError(w, e)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("POST", "/test", bytes.NewBufferString(`{}`)))
	if rr.Code != http.StatusOK {
		t.Errorf("POST with small body should pass: got %d (%v)", rr.Code, readErr)
	}

	big := `{"x":"` + strings.Repeat("a", MaxRequestBodySize) + `"}`
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("POST", "/test", strings.NewReader(big)))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("oversized body: got %d, want 400", rr.Code)
	}
}

func TestValidateCanvasID(t *testing.T) {
	tests := []struct {
		id      string
		wantErr bool
	}{
		{"board", false},
		{"team-roadmap_2026", false},
		{"", true},
		{"has space", true},
		{"../etc", true},
		{"a.b", true},
		{strings.Repeat("a", maxCanvasIDLen), false},
		{strings.Repeat("a", maxCanvasIDLen+1), true},
	}
	for _, tt := range tests {
		if err := ValidateCanvasID(tt.id); (err != nil) != tt.wantErr {
			t.Errorf("ValidateCanvasID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
		}
	}
}

func TestValidateNodeID(t *testing.T) {
	tests := []struct {
		id      string
		wantErr bool
	}{
		{"2b1c4a9e-0d2f-4c5e-9a51-3f0c7d8e1b22", false},
		{"ノード", false},
		{"  ", true},
		{"a\nb", true},
		{"bad\xff", true},
		{strings.Repeat("n", maxNodeIDLen+1), true},
	}
	for _, tt := range tests {
		if err := ValidateNodeID(tt.id); (err != nil) != tt.wantErr {
			t.Errorf("ValidateNodeID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
		}
	}
}

func TestDecodeJSON(t *testing.T) {
	type body struct {
		Order int `json:"order"`
	}
	tests := []struct {
		name        string
		contentType string
		body        string
		wantCode    apierr.ErrorCode
	}{
		{"valid", "application/json", `{"order":2}`, ""},
		{"charset", "application/json; charset=utf-8", `{"order":2}`, ""},
		{"no content type", "", `{"order":2}`, ""},
		{"bad json", "application/json", `{order:2}`, apierr.ErrValidationInvalidJSON},
		{"unknown field", "application/json", `{"order":2,"x":1}`, apierr.ErrValidationInvalidJSON},
		{"trailing", "application/json", `{"order":2}{"order":3}`, apierr.ErrValidationInvalidJSON},
		{"empty", "application/json", ``, apierr.ErrValidationMissingField},
		{"wrong type", "text/plain", `{"order":2}`, apierr.ErrValidationInvalidValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("PUT", "/x", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			var b body
			err := DecodeJSON(req, &b)
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("unexpected error %v", err)
				}
				if b.Order != 2 {
					t.Errorf("order = %d", b.Order)
				}
				return
			}
			if err == nil || err.Code != tt.wantCode {
				t.Errorf("error = %v, want code %s", err, tt.wantCode)
			}
		})
	}
}
