package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/onnwee/nodelayout/internal/apierr"
)

// MaxRequestBodySize caps request bodies (10MB); a restored snapshot is
// the largest thing a client sends.
const MaxRequestBodySize = 10 * 1024 * 1024

const (
	maxCanvasIDLen = 64
	maxNodeIDLen   = 128
)

// ValidateRequestBody returns a middleware that limits request body size.
func ValidateRequestBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
		}
		next.ServeHTTP(w, r)
	})
}

// ValidateCanvasID accepts 1-64 characters of letters, digits, '-' and '_'.
func ValidateCanvasID(id string) error {
	if id == "" {
		return errors.New("canvas id cannot be empty")
	}
	if len(id) > maxCanvasIDLen {
		return fmt.Errorf("canvas id too long (max %d characters)", maxCanvasIDLen)
	}
	for _, c := range id {
		if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' || c == '-') {
			return errors.New("canvas id contains invalid characters")
		}
	}
	return nil
}

// ValidateNodeID accepts any printable UTF-8 id up to 128 bytes.
func ValidateNodeID(id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("node id cannot be empty")
	}
	if len(id) > maxNodeIDLen {
		return fmt.Errorf("node id too long (max %d bytes)", maxNodeIDLen)
	}
	if !utf8.ValidString(id) {
		return errors.New("node id is not valid UTF-8")
	}
	for _, c := range id {
		if unicode.IsControl(c) {
			return errors.New("node id contains control characters")
		}
	}
	return nil
}

// DecodeJSON decodes a single JSON object from the request body into dst.
// Unknown fields and trailing data are rejected.
func DecodeJSON(r *http.Request, dst any) *apierr.Error {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil || mt != "application/json" {
			return apierr.ValidationInvalidValue("Content-Type", "Content-Type must be application/json")
		}
	}

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apierr.ValidationInvalidValue("body", fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
		}
		if errors.Is(err, io.EOF) {
			return apierr.ValidationMissingField("body")
		}
		return apierr.ValidationInvalidJSON().WithDetails(map[string]any{"reason": err.Error()})
	}
	if dec.More() {
		return apierr.ValidationInvalidJSON().WithDetails(map[string]any{"reason": "trailing data after JSON object"})
	}
	return nil
}
