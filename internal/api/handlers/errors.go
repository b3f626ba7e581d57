package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/onnwee/nodelayout/internal/apierr"
	"github.com/onnwee/nodelayout/internal/canvas"
	"github.com/onnwee/nodelayout/internal/errorreporting"
	"github.com/onnwee/nodelayout/internal/hierarchy"
	"github.com/onnwee/nodelayout/internal/layout"
	"github.com/onnwee/nodelayout/internal/logger"
	"github.com/onnwee/nodelayout/internal/store"
)

// toAPIError maps layout, session and store errors onto the API envelope.
// node names the node the request was about, if any.
func toAPIError(err error, node string) *apierr.Error {
	var cycle *hierarchy.CircularReferenceError
	switch {
	case errors.As(err, &cycle):
		return apierr.HierarchyCycle(string(cycle.Child), string(cycle.Parent))
	case errors.Is(err, hierarchy.ErrCircularReference):
		return apierr.HierarchyCycle("", "")
	case errors.Is(err, hierarchy.ErrNodeNotFound):
		return apierr.NodeNotFound(node)
	case errors.Is(err, hierarchy.ErrInvalidOrder), errors.Is(err, hierarchy.ErrDuplicateNode):
		return apierr.HierarchyInvalid(err.Error())
	case errors.Is(err, layout.ErrSimulationRunning):
		return apierr.SimulationRunning()
	case errors.Is(err, canvas.ErrLimit):
		return apierr.CanvasLimit()
	case errors.Is(err, canvas.ErrClosed):
		return apierr.CanvasClosed()
	case errors.Is(err, context.DeadlineExceeded):
		return apierr.SystemTimeout("")
	default:
		return nil
	}
}

// writeError writes err as an API error. Errors with no mapping are logged
// and reported.
func writeError(w http.ResponseWriter, r *http.Request, err error, node string) {
	if e := toAPIError(err, node); e != nil {
		apierr.WriteErrorWithContext(w, r, e)
		return
	}
	if errors.Is(err, store.ErrNotFound) {
		apierr.WriteErrorWithContext(w, r, apierr.CanvasNotFound(canvasID(r)))
		return
	}
	logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	errorreporting.CaptureErrorWithContext(err,
		map[string]string{"canvas_id": canvasID(r)},
		map[string]any{"request_id": apierr.GetRequestID(r.Context())})
	apierr.WriteErrorWithContext(w, r, apierr.SystemInternal(""))
}

// writeOpenError maps a failure to open a session. Anything unexpected came
// from the snapshot store.
func writeOpenError(w http.ResponseWriter, r *http.Request, err error) {
	if e := toAPIError(err, ""); e != nil {
		apierr.WriteErrorWithContext(w, r, e)
		return
	}
	logger.ErrorContext(r.Context(), "opening canvas", "canvas_id", canvasID(r), "error", err)
	errorreporting.CaptureErrorWithContext(err, map[string]string{"canvas_id": canvasID(r)}, nil)
	apierr.WriteErrorWithContext(w, r, apierr.StoreFailed(""))
}
