package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/onnwee/nodelayout/internal/apierr"
	"github.com/onnwee/nodelayout/internal/canvas"
	"github.com/onnwee/nodelayout/internal/geometry"
	"github.com/onnwee/nodelayout/internal/hierarchy"
	"github.com/onnwee/nodelayout/internal/layout"
	"github.com/onnwee/nodelayout/internal/logger"
	"github.com/onnwee/nodelayout/internal/metrics"
	"github.com/onnwee/nodelayout/internal/middleware"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = 30 * time.Second

	// Maximum message size allowed from peer
	maxMessageSize = 1024
)

// Client message types.
const (
	MessageSize    = "size"
	MessageDrag    = "drag"
	MessageDragEnd = "drag_end"
)

// Server message types. Engine events keep their canvas.EventType names.
const (
	MessageSnapshot = "snapshot"
	MessageError    = "error"
)

// ClientMessage is one renderer report. Size reports carry Width and
// Height; drags carry the new top-left corner in X and Y.
type ClientMessage struct {
	Type   string           `json:"type"`
	Node   hierarchy.NodeID `json:"node"`
	X      float64          `json:"x,omitempty"`
	Y      float64          `json:"y,omitempty"`
	Width  float64          `json:"width,omitempty"`
	Height float64          `json:"height,omitempty"`
}

// WebSocketMessage represents a message sent to clients
type WebSocketMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// WebSocketHandler streams layout events of one canvas and accepts size and
// drag reports from its renderer.
type WebSocketHandler struct {
	canvases Canvases
	upgrader websocket.Upgrader
}

// NewWebSocketHandler creates a new WebSocket handler. Cross-origin sockets
// are accepted from the origins cors allows.
func NewWebSocketHandler(c Canvases, cors *middleware.CORSConfig) *WebSocketHandler {
	if cors == nil {
		cors = middleware.DefaultCORSConfig()
	}
	return &WebSocketHandler{
		canvases: c,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				if u, err := url.Parse(origin); err == nil && u.Host == r.Host {
					return true
				}
				return cors.Allows(origin)
			},
		},
	}
}

// client is one connected renderer
type client struct {
	conn    *websocket.Conn
	session *canvas.Session
	events  <-chan canvas.Event
	send    chan []byte
	done    chan struct{}
	once    sync.Once
}

// HandleWebSocket handles GET /api/canvases/{canvas}/ws. The first message
// is the current snapshot; events with a version at or below the snapshot
// version are already reflected in it.
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	id := canvasID(r)
	if err := middleware.ValidateCanvasID(id); err != nil {
		apierr.WriteErrorWithContext(w, r, apierr.ValidationInvalidValue("canvas", err.Error()))
		return
	}
	s, err := h.canvases.Open(r.Context(), id)
	if err != nil {
		writeOpenError(w, r, err)
		return
	}

	events, cancel := s.Subscribe()
	snapshot := CanvasResponse{Canvas: id}
	err = s.Do(r.Context(), "snapshot", func(e *layout.Engine) error {
		snapshot.Snapshot = e.Snapshot()
		snapshot.Layout = layoutState(e)
		return nil
	})
	if err != nil {
		cancel()
		writeError(w, r, err, "")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied
		cancel()
		logger.WarnContext(r.Context(), "websocket upgrade failed", "canvas_id", id, "error", err)
		return
	}

	c := &client{
		conn:    conn,
		session: s,
		events:  events,
		send:    make(chan []byte, 16),
		done:    make(chan struct{}),
	}
	c.queue(MessageSnapshot, snapshot)

	metrics.WebSocketConnections.Inc()
	logger.Info("WebSocket client connected", "canvas_id", id)

	go c.writePump()
	go func() {
		c.readPump()
		cancel()
		metrics.WebSocketConnections.Dec()
		logger.Info("WebSocket client disconnected", "canvas_id", id)
	}()
}

func encode(msgType string, payload any) ([]byte, error) {
	return json.Marshal(WebSocketMessage{Type: msgType, Payload: payload})
}

// queue sends a direct reply. Replies are dropped when the buffer is full.
func (c *client) queue(msgType string, payload any) {
	data, err := encode(msgType, payload)
	if err != nil {
		logger.Error("Failed to marshal WebSocket message", "type", msgType, "error", err)
		return
	}
	select {
	case c.send <- data:
	default:
		logger.Warn("WebSocket send buffer full, dropping reply", "type", msgType)
	}
}

func (c *client) stop() { c.once.Do(func() { close(c.done) }) }

// readPump applies renderer reports to the session until the connection
// fails.
func (c *client) readPump() {
	defer func() {
		c.stop()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("WebSocket unexpected close", "error", err)
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.queue(MessageError, apierr.ValidationInvalidJSON())
			continue
		}
		metrics.WebSocketMessagesReceived.WithLabelValues(messageLabel(msg.Type)).Inc()
		if e := c.apply(msg); e != nil {
			c.queue(MessageError, e)
		}
	}
}

func messageLabel(t string) string {
	switch t {
	case MessageSize, MessageDrag, MessageDragEnd:
		return t
	}
	return "unknown"
}

func (c *client) apply(msg ClientMessage) *apierr.Error {
	var cmd canvas.Command
	switch msg.Type {
	case MessageSize:
		now := time.Now()
		cmd = func(e *layout.Engine) error { return e.ReportObservedSize(msg.Node, msg.Width, msg.Height, now) }
	case MessageDrag:
		cmd = func(e *layout.Engine) error {
			return e.ReportDragDelta(msg.Node, geometry.Point{X: msg.X, Y: msg.Y})
		}
	case MessageDragEnd:
		cmd = func(e *layout.Engine) error { return e.ReportDragEnd(msg.Node) }
	default:
		return apierr.ValidationInvalidValue("type", "unknown message type: "+msg.Type)
	}
	if msg.Node == "" {
		return apierr.ValidationMissingField("node")
	}

	err := c.session.Do(context.Background(), msg.Type, cmd)
	if err == nil {
		return nil
	}
	if e := toAPIError(err, string(msg.Node)); e != nil {
		return e
	}
	logger.Error("WebSocket report failed", "canvas_id", c.session.ID(), "type", msg.Type, "error", err)
	return apierr.SystemInternal("")
}

// writePump forwards session events and replies to the connection
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.events:
			if !ok {
				// Session stopped or this client fell behind
				_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "canvas stream ended"))
				return
			}
			data, err := encode(string(ev.Type), ev)
			if err != nil {
				logger.Error("Failed to marshal WebSocket event", "type", ev.Type, "error", err)
				continue
			}
			if !c.write(data) {
				return
			}

		case data := <-c.send:
			if !c.write(data) {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			return
		}
	}
}

func (c *client) write(data []byte) bool {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return false
	}
	metrics.WebSocketMessagesSent.Inc()
	return true
}
