package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/onnwee/nodelayout/internal/api/handlers"
	"github.com/onnwee/nodelayout/internal/metrics"
	"github.com/onnwee/nodelayout/internal/middleware"
)

const canvasPath = "/api/canvases/{canvas}"

// Deps are the collaborators of the HTTP API.
type Deps struct {
	Canvases handlers.Canvases
	Stats    metrics.StatsSource
	CORS     *middleware.CORSConfig
	// RateLimiter of nil disables rate limiting.
	RateLimiter *middleware.RateLimiter
	Profiling   bool
}

// NewRouter builds the API handler. Outermost first, requests pass request
// id, panic recovery, CORS, rate limiting, compression, security headers and
// the body size limit before reaching the router.
func NewRouter(d Deps) http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.Instrument)

	r.HandleFunc("/health", handlers.Health(d.Stats)).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	// Canvases
	r.Handle(canvasPath, middleware.ETag(handlers.GetCanvas(d.Canvases))).Methods(http.MethodGet)
	r.HandleFunc(canvasPath, handlers.PutCanvas(d.Canvases)).Methods(http.MethodPut)
	r.HandleFunc(canvasPath, handlers.DeleteCanvas(d.Canvases)).Methods(http.MethodDelete)
	r.HandleFunc(canvasPath+"/overlaps", handlers.GetOverlaps(d.Canvases)).Methods(http.MethodGet)

	// Nodes and links
	r.HandleFunc(canvasPath+"/nodes", handlers.CreateNode(d.Canvases)).Methods(http.MethodPost)
	r.HandleFunc(canvasPath+"/nodes/{node}", handlers.DeleteNode(d.Canvases)).Methods(http.MethodDelete)
	r.HandleFunc(canvasPath+"/nodes/{node}/order", handlers.ReorderNode(d.Canvases)).Methods(http.MethodPut)
	r.HandleFunc(canvasPath+"/connect", handlers.Connect(d.Canvases)).Methods(http.MethodPost)
	r.HandleFunc(canvasPath+"/disconnect", handlers.Disconnect(d.Canvases)).Methods(http.MethodPost)

	// Force layout
	r.HandleFunc(canvasPath+"/layout", handlers.PutLayout(d.Canvases)).Methods(http.MethodPut)
	r.HandleFunc(canvasPath+"/layout/run", handlers.RunLayout(d.Canvases)).Methods(http.MethodPost)
	r.HandleFunc(canvasPath+"/layout/stop", handlers.StopLayout(d.Canvases)).Methods(http.MethodPost)

	// Live renderer channel
	ws := handlers.NewWebSocketHandler(d.Canvases, d.CORS)
	r.HandleFunc(canvasPath+"/ws", ws.HandleWebSocket).Methods(http.MethodGet)

	if d.Profiling {
		r.PathPrefix("/debug/pprof/").Handler(handlers.Profiling())
	}

	var h http.Handler = r
	h = middleware.ValidateRequestBody(h)
	h = middleware.SecurityHeaders(h)
	h = middleware.Compress(h)
	if d.RateLimiter != nil {
		h = d.RateLimiter.Limit(h)
	}
	h = middleware.CORS(d.CORS)(h)
	h = middleware.RecoverWithSentry(h)
	h = middleware.RequestID(h)
	return h
}
