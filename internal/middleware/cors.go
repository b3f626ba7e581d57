package middleware

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// CORSConfig controls which browser origins may call the API and open
// canvas sockets.
type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

// DefaultCORSConfig allows the local editor dev servers.
func DefaultCORSConfig() *CORSConfig {
	return &CORSConfig{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "If-None-Match", RequestIDHeader},
		ExposedHeaders:   []string{"ETag", RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}
}

// CORS answers preflights itself and decorates every other response with
// the allow headers for permitted origins.
func CORS(config *CORSConfig) func(http.Handler) http.Handler {
	if config == nil {
		config = DefaultCORSConfig()
	}
	methods := strings.Join(config.AllowedMethods, ", ")
	headers := strings.Join(config.AllowedHeaders, ", ")
	exposed := strings.Join(config.ExposedHeaders, ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Add("Vary", "Origin")
			if origin := r.Header.Get("Origin"); origin != "" && config.Allows(origin) {
				h.Set("Access-Control-Allow-Origin", origin)
				if config.AllowCredentials {
					h.Set("Access-Control-Allow-Credentials", "true")
				}
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				setIf(h, "Access-Control-Allow-Methods", methods)
				setIf(h, "Access-Control-Allow-Headers", headers)
				if config.MaxAge > 0 {
					h.Set("Access-Control-Max-Age", strconv.Itoa(config.MaxAge))
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}
			setIf(h, "Access-Control-Expose-Headers", exposed)
			next.ServeHTTP(w, r)
		})
	}
}

func setIf(h http.Header, key, value string) {
	if value != "" {
		h.Set(key, value)
	}
}

// Allows reports whether origin may open a cross-origin request or socket.
// Patterns are exact origins, "*", or a host wildcard such as
// "*.example.com" or "https://*.example.com". A wildcard matches
// subdomains only, never the bare domain.
func (c *CORSConfig) Allows(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		u = nil
	}
	for _, pattern := range c.AllowedOrigins {
		switch {
		case pattern == "*" || pattern == origin:
			return true
		case u != nil && strings.Contains(pattern, "*.") && matchWildcard(pattern, u):
			return true
		}
	}
	return false
}

func matchWildcard(pattern string, origin *url.URL) bool {
	scheme, hostPattern, ok := strings.Cut(pattern, "://")
	if !ok {
		scheme, hostPattern = "", pattern
	}
	if scheme != "" && scheme != origin.Scheme {
		return false
	}
	suffix, ok := strings.CutPrefix(hostPattern, "*")
	if !ok {
		return false
	}
	host := origin.Host
	if !strings.Contains(suffix, ":") {
		host = origin.Hostname()
	}
	return len(host) > len(suffix) && strings.HasSuffix(host, suffix)
}
