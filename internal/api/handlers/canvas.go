package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/onnwee/nodelayout/internal/apierr"
	"github.com/onnwee/nodelayout/internal/canvas"
	"github.com/onnwee/nodelayout/internal/force"
	"github.com/onnwee/nodelayout/internal/geometry"
	"github.com/onnwee/nodelayout/internal/hierarchy"
	"github.com/onnwee/nodelayout/internal/layout"
	"github.com/onnwee/nodelayout/internal/middleware"
)

// Canvases opens canvas sessions. *canvas.Manager implements it.
type Canvases interface {
	Open(ctx context.Context, id string) (*canvas.Session, error)
	Delete(ctx context.Context, id string) error
}

// LayoutState is the force layout configuration of a canvas.
type LayoutState struct {
	Mode    force.Mode   `json:"mode"`
	Params  force.Params `json:"params"`
	Running bool         `json:"running"`
}

// CanvasResponse is the body of GET and PUT /api/canvases/{canvas}.
type CanvasResponse struct {
	Canvas   string             `json:"canvas"`
	Snapshot hierarchy.Snapshot `json:"snapshot"`
	Layout   LayoutState        `json:"layout"`
}

// CreateNodeRequest is the body of POST /api/canvases/{canvas}/nodes.
type CreateNodeRequest struct {
	X      float64          `json:"x"`
	Y      float64          `json:"y"`
	Parent hierarchy.NodeID `json:"parent,omitempty"`
}

// ConnectRequest is the body of POST /api/canvases/{canvas}/connect.
type ConnectRequest struct {
	Parent    hierarchy.NodeID `json:"parent"`
	Child     hierarchy.NodeID `json:"child"`
	Hierarchy *bool            `json:"hierarchy"`
}

// DisconnectRequest is the body of POST /api/canvases/{canvas}/disconnect.
type DisconnectRequest struct {
	A hierarchy.NodeID `json:"a"`
	B hierarchy.NodeID `json:"b"`
}

// OrderRequest is the body of PUT /api/canvases/{canvas}/nodes/{node}/order.
type OrderRequest struct {
	Order *int `json:"order"`
}

// LayoutRequest is the body of PUT /api/canvases/{canvas}/layout.
type LayoutRequest struct {
	Mode   *force.Mode   `json:"mode"`
	Params *force.Params `json:"params,omitempty"`
}

// RunResponse is the body of POST /api/canvases/{canvas}/layout/run.
type RunResponse struct {
	Started bool        `json:"started"`
	Layout  LayoutState `json:"layout"`
}

// Overlap is one pair of colliding nodes.
type Overlap struct {
	A hierarchy.NodeID `json:"a"`
	B hierarchy.NodeID `json:"b"`
}

func canvasID(r *http.Request) string { return mux.Vars(r)["canvas"] }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func layoutState(e *layout.Engine) LayoutState {
	return LayoutState{Mode: e.Mode(), Params: e.ForceParams(), Running: e.Running()}
}

// run opens the canvas of the request and runs fn on it. A session closed
// by the idle sweep between Open and Do is reopened once. It reports false
// after writing an error response.
func run(w http.ResponseWriter, r *http.Request, c Canvases, name, node string, fn canvas.Command) bool {
	id := canvasID(r)
	if err := middleware.ValidateCanvasID(id); err != nil {
		apierr.WriteErrorWithContext(w, r, apierr.ValidationInvalidValue("canvas", err.Error()))
		return false
	}
	trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("canvas.id", id))

	for attempt := 0; ; attempt++ {
		s, err := c.Open(r.Context(), id)
		if err != nil {
			writeOpenError(w, r, err)
			return false
		}
		err = s.Do(r.Context(), name, fn)
		// exact match: a wrapped ErrClosed means the command itself failed
		if err == canvas.ErrClosed && attempt == 0 {
			continue
		}
		if err != nil {
			writeError(w, r, err, node)
			return false
		}
		return true
	}
}

func nodeVar(w http.ResponseWriter, r *http.Request) (hierarchy.NodeID, bool) {
	node := mux.Vars(r)["node"]
	if err := middleware.ValidateNodeID(node); err != nil {
		apierr.WriteErrorWithContext(w, r, apierr.ValidationInvalidValue("node", err.Error()))
		return "", false
	}
	return hierarchy.NodeID(node), true
}

// GetCanvas handles GET /api/canvases/{canvas}. A canvas that was never
// stored is returned empty.
func GetCanvas(c Canvases) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := CanvasResponse{Canvas: canvasID(r)}
		ok := run(w, r, c, "snapshot", "", func(e *layout.Engine) error {
			resp.Snapshot = e.Snapshot()
			resp.Layout = layoutState(e)
			return nil
		})
		if ok {
			writeJSON(w, http.StatusOK, resp)
		}
	}
}

// PutCanvas handles PUT /api/canvases/{canvas}: the body replaces the canvas.
// With ?measured=true the stored sizes are treated as rendered sizes.
func PutCanvas(c Canvases) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var snap hierarchy.Snapshot
		if e := middleware.DecodeJSON(r, &snap); e != nil {
			apierr.WriteErrorWithContext(w, r, e)
			return
		}
		measured := false
		if v := r.URL.Query().Get("measured"); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				apierr.WriteErrorWithContext(w, r, apierr.ValidationInvalidValue("measured", "measured must be a boolean"))
				return
			}
			measured = b
		}

		resp := CanvasResponse{Canvas: canvasID(r)}
		var invalid error
		ok := run(w, r, c, "restore", "", func(e *layout.Engine) error {
			if err := e.Restore(snap); err != nil {
				invalid = err
				return nil
			}
			if measured {
				if err := e.AssumeMeasured(); err != nil {
					return err
				}
			}
			resp.Snapshot = e.Snapshot()
			resp.Layout = layoutState(e)
			return nil
		})
		switch {
		case !ok:
		case invalid != nil:
			apierr.WriteErrorWithContext(w, r, apierr.HierarchyInvalid(invalid.Error()))
		default:
			writeJSON(w, http.StatusOK, resp)
		}
	}
}

// DeleteCanvas handles DELETE /api/canvases/{canvas}.
func DeleteCanvas(c Canvases) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := canvasID(r)
		if err := middleware.ValidateCanvasID(id); err != nil {
			apierr.WriteErrorWithContext(w, r, apierr.ValidationInvalidValue("canvas", err.Error()))
			return
		}
		if err := c.Delete(r.Context(), id); err != nil {
			writeError(w, r, err, "")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// CreateNode handles POST /api/canvases/{canvas}/nodes.
func CreateNode(c Canvases) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateNodeRequest
		if e := middleware.DecodeJSON(r, &req); e != nil {
			apierr.WriteErrorWithContext(w, r, e)
			return
		}
		if req.Parent != "" {
			if err := middleware.ValidateNodeID(string(req.Parent)); err != nil {
				apierr.WriteErrorWithContext(w, r, apierr.ValidationInvalidValue("parent", err.Error()))
				return
			}
		}

		var id hierarchy.NodeID
		ok := run(w, r, c, "create", string(req.Parent), func(e *layout.Engine) error {
			var err error
			id, err = e.ReportCreate(geometry.Point{X: req.X, Y: req.Y}, req.Parent)
			return err
		})
		if ok {
			writeJSON(w, http.StatusCreated, map[string]hierarchy.NodeID{"id": id})
		}
	}
}

// DeleteNode handles DELETE /api/canvases/{canvas}/nodes/{node}. Children of
// the node become roots.
func DeleteNode(c Canvases) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		node, valid := nodeVar(w, r)
		if !valid {
			return
		}
		if run(w, r, c, "delete", string(node), func(e *layout.Engine) error { return e.ReportDelete(node) }) {
			w.WriteHeader(http.StatusNoContent)
		}
	}
}

// Connect handles POST /api/canvases/{canvas}/connect.
func Connect(c Canvases) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ConnectRequest
		if e := middleware.DecodeJSON(r, &req); e != nil {
			apierr.WriteErrorWithContext(w, r, e)
			return
		}
		switch {
		case req.Parent == "":
			apierr.WriteErrorWithContext(w, r, apierr.ValidationMissingField("parent"))
			return
		case req.Child == "":
			apierr.WriteErrorWithContext(w, r, apierr.ValidationMissingField("child"))
			return
		case req.Hierarchy == nil:
			apierr.WriteErrorWithContext(w, r, apierr.ValidationMissingField("hierarchy"))
			return
		}

		var missing hierarchy.NodeID
		ok := run(w, r, c, "connect", "", func(e *layout.Engine) error {
			for _, id := range []hierarchy.NodeID{req.Parent, req.Child} {
				if _, found := e.Node(id); !found {
					missing = id
					return nil
				}
			}
			return e.ReportConnect(req.Parent, req.Child, *req.Hierarchy)
		})
		switch {
		case !ok:
		case missing != "":
			apierr.WriteErrorWithContext(w, r, apierr.NodeNotFound(string(missing)))
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}
}

// Disconnect handles POST /api/canvases/{canvas}/disconnect, removing a
// reference link.
func Disconnect(c Canvases) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req DisconnectRequest
		if e := middleware.DecodeJSON(r, &req); e != nil {
			apierr.WriteErrorWithContext(w, r, e)
			return
		}
		if req.A == "" || req.B == "" {
			apierr.WriteErrorWithContext(w, r, apierr.ValidationMissingField("a, b"))
			return
		}
		var removed bool
		ok := run(w, r, c, "disconnect", "", func(e *layout.Engine) error {
			var err error
			removed, err = e.Disconnect(req.A, req.B)
			return err
		})
		if ok {
			writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
		}
	}
}

// ReorderNode handles PUT /api/canvases/{canvas}/nodes/{node}/order.
func ReorderNode(c Canvases) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		node, valid := nodeVar(w, r)
		if !valid {
			return
		}
		var req OrderRequest
		if e := middleware.DecodeJSON(r, &req); e != nil {
			apierr.WriteErrorWithContext(w, r, e)
			return
		}
		if req.Order == nil {
			apierr.WriteErrorWithContext(w, r, apierr.ValidationMissingField("order"))
			return
		}
		if run(w, r, c, "reorder", string(node), func(e *layout.Engine) error { return e.ReorderChild(node, *req.Order) }) {
			w.WriteHeader(http.StatusNoContent)
		}
	}
}

// PutLayout handles PUT /api/canvases/{canvas}/layout. Parameters are
// replaced before the mode is switched.
func PutLayout(c Canvases) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LayoutRequest
		if e := middleware.DecodeJSON(r, &req); e != nil {
			apierr.WriteErrorWithContext(w, r, e)
			return
		}
		if req.Mode == nil {
			apierr.WriteErrorWithContext(w, r, apierr.ValidationMissingField("mode"))
			return
		}
		var state LayoutState
		ok := run(w, r, c, "layout", "", func(e *layout.Engine) error {
			if req.Params != nil {
				if err := e.SetForceParams(*req.Params); err != nil {
					return err
				}
			}
			if err := e.SetMode(*req.Mode); err != nil {
				return err
			}
			state = layoutState(e)
			return nil
		})
		if ok {
			writeJSON(w, http.StatusOK, state)
		}
	}
}

// RunLayout handles POST /api/canvases/{canvas}/layout/run. The run advances
// with the frame loop; with ?wait=true it completes and settles before the
// response.
func RunLayout(c Canvases) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))
		var resp RunResponse
		ok := run(w, r, c, "run", "", func(e *layout.Engine) error {
			var err error
			if wait {
				if resp.Started, err = e.RunLayout(); err != nil {
					return err
				}
				if resp.Started {
					if _, err = e.Settle(); err != nil {
						return err
					}
				}
			} else if resp.Started, err = e.TriggerLayout(); err != nil {
				return err
			}
			resp.Layout = layoutState(e)
			return nil
		})
		if ok {
			writeJSON(w, http.StatusOK, resp)
		}
	}
}

// StopLayout handles POST /api/canvases/{canvas}/layout/stop.
func StopLayout(c Canvases) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if run(w, r, c, "stop", "", func(e *layout.Engine) error { return e.StopLayout() }) {
			w.WriteHeader(http.StatusNoContent)
		}
	}
}

// GetOverlaps handles GET /api/canvases/{canvas}/overlaps.
func GetOverlaps(c Canvases) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		overlaps := []Overlap{}
		ok := run(w, r, c, "overlaps", "", func(e *layout.Engine) error {
			for _, p := range e.Overlaps() {
				overlaps = append(overlaps, Overlap{A: p.A, B: p.B})
			}
			return nil
		})
		if ok {
			writeJSON(w, http.StatusOK, map[string][]Overlap{"overlaps": overlaps})
		}
	}
}
