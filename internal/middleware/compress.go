package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
)

const (
	encodingBrotli = "br"
	encodingGzip   = "gzip"

	brotliLevel = 5
)

var (
	gzipPool = sync.Pool{New: func() any {
		return gzip.NewWriter(io.Discard)
	}}
	brotliPool = sync.Pool{New: func() any {
		return brotli.NewWriterLevel(io.Discard, brotliLevel)
	}}
)

// compressWriter starts the encoder on the first body write so that
// bodiless responses (204, 304, HEAD) go out untouched.
type compressWriter struct {
	http.ResponseWriter
	encoding    string
	gz          *gzip.Writer
	br          *brotli.Writer
	head        bool
	active      bool
	wroteHeader bool
}

func (w *compressWriter) WriteHeader(status int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	if !w.head && status != http.StatusNoContent && status != http.StatusNotModified &&
		w.Header().Get("Content-Encoding") == "" {
		w.active = true
		w.Header().Set("Content-Encoding", w.encoding)
		w.Header().Del("Content-Length")
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *compressWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	if !w.active {
		return w.ResponseWriter.Write(b)
	}
	switch w.encoding {
	case encodingBrotli:
		if w.br == nil {
			w.br = brotliPool.Get().(*brotli.Writer)
			w.br.Reset(w.ResponseWriter)
		}
		return w.br.Write(b)
	default:
		if w.gz == nil {
			w.gz = gzipPool.Get().(*gzip.Writer)
			w.gz.Reset(w.ResponseWriter)
		}
		return w.gz.Write(b)
	}
}

// Flush pushes buffered compressed bytes to the client.
func (w *compressWriter) Flush() {
	if w.gz != nil {
		_ = w.gz.Flush()
	}
	if w.br != nil {
		_ = w.br.Flush()
	}
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *compressWriter) close() {
	if w.gz != nil {
		_ = w.gz.Close()
		gzipPool.Put(w.gz)
		w.gz = nil
	}
	if w.br != nil {
		_ = w.br.Close()
		brotliPool.Put(w.br)
		w.br = nil
	}
}

// Compress encodes responses with brotli or gzip, whichever the client
// prefers, brotli winning ties. WebSocket upgrades pass through untouched.
func Compress(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Vary", "Accept-Encoding")

		if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
			next.ServeHTTP(w, r)
			return
		}
		enc := negotiateEncoding(r.Header.Get("Accept-Encoding"))
		if enc == "" {
			next.ServeHTTP(w, r)
			return
		}

		cw := &compressWriter{ResponseWriter: w, encoding: enc, head: r.Method == http.MethodHead}
		defer cw.close()
		next.ServeHTTP(cw, r)
	})
}

// negotiateEncoding picks br or gzip from an Accept-Encoding header,
// honouring q-values. An empty result means identity.
func negotiateEncoding(header string) string {
	best, bestQ := "", 0.0
	for part := range strings.SplitSeq(header, ",") {
		name, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		name = strings.ToLower(strings.TrimSpace(name))
		q := 1.0
		if v, ok := strings.CutPrefix(strings.TrimSpace(params), "q="); ok {
			parsed, err := strconv.ParseFloat(v, 64)
			if err != nil {
				continue
			}
			q = parsed
		}
		if q <= 0 {
			continue
		}
		switch name {
		case encodingBrotli:
			if q >= bestQ {
				best, bestQ = encodingBrotli, q
			}
		case encodingGzip, "x-gzip":
			if q > bestQ {
				best, bestQ = encodingGzip, q
			}
		}
	}
	return best
}
