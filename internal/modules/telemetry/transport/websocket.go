package transport

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Waelalhamad/HydroQuest-Project/internal/metrics"
	"github.com/Waelalhamad/HydroQuest-Project/internal/modules/telemetry/hub"
	"github.com/Waelalhamad/HydroQuest-Project/internal/modules/telemetry/ingest"
)

var errConnClosed = errors.New("connection closed")

// MessageHandler processes one inbound frame on behalf of a connection.
type MessageHandler interface {
	Handle(ctx context.Context, originator string, raw []byte) ingest.Result
}

type Config struct {
	// MaxMessageBytes caps a single inbound frame. Zero means no limit.
	MaxMessageBytes int64
	// WriteTimeout bounds each outbound frame. Zero means no deadline.
	WriteTimeout time.Duration
}

// Handler upgrades HTTP requests to WebSocket connections, keeps them in the
// registry while open and feeds every text frame to the message handler.
type Handler struct {
	upgrader websocket.Upgrader
	registry *hub.Registry
	messages MessageHandler
	cfg      Config
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func NewHandler(registry *hub.Registry, messages MessageHandler, cfg Config, logger *slog.Logger, m *metrics.Metrics) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Devices and dashboards connect from anywhere; there is no auth layer.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		registry: registry,
		messages: messages,
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := newConn(ws, h.cfg.WriteTimeout)
	log := h.logger.With("conn_id", c.id, "remote", r.RemoteAddr)

	h.registry.Add(c)
	h.metrics.ConnectionOpened()
	log.Info("client connected", "clients", h.registry.Len())

	defer func() {
		h.registry.Remove(c.id)
		h.metrics.ConnectionClosed()
		if err := c.Close(); err != nil {
			log.Debug("close websocket", "error", err)
		}
		log.Info("client disconnected", "clients", h.registry.Len())
	}()

	if h.cfg.MaxMessageBytes > 0 {
		ws.SetReadLimit(h.cfg.MaxMessageBytes)
	}
	h.readLoop(r.Context(), c, log)
}

// readLoop handles one frame at a time, so a connection's messages are
// processed in arrival order.
func (h *Handler) readLoop(ctx context.Context, c *conn, log *slog.Logger) {
	for {
		kind, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				log.Warn("websocket read failed", "error", err)
			}
			return
		}
		if kind != websocket.TextMessage {
			log.Debug("ignoring non-text frame", "type", kind, "size", len(data))
			continue
		}
		h.messages.Handle(ctx, c.id, data)
	}
}

// CloseAll sends a going-away close frame to every registered connection.
// http.Server.Shutdown does not track hijacked connections, so the server
// calls this during shutdown.
func (h *Handler) CloseAll() {
	for _, m := range h.registry.Members() {
		c, ok := m.(*conn)
		if !ok {
			continue
		}
		c.goingAway()
	}
}

type conn struct {
	id           string
	ws           *websocket.Conn
	writeTimeout time.Duration

	writeMu sync.Mutex
	open    atomic.Bool
}

func newConn(ws *websocket.Conn, writeTimeout time.Duration) *conn {
	c := &conn{id: uuid.NewString(), ws: ws, writeTimeout: writeTimeout}
	c.open.Store(true)
	return c
}

func (c *conn) ID() string { return c.id }

func (c *conn) IsOpen() bool { return c.open.Load() }

// SendText writes one text frame. Writes from different goroutines are
// serialised.
func (c *conn) SendText(payload []byte) error {
	if !c.open.Load() {
		return errConnClosed
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.writeTimeout > 0 {
		if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

func (c *conn) goingAway() {
	if !c.open.Load() {
		return
	}
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	// Unblocks the read loop, which then unregisters and closes.
	_ = c.ws.SetReadDeadline(time.Now())
}

func (c *conn) Close() error {
	if !c.open.CompareAndSwap(true, false) {
		return nil
	}
	return c.ws.Close()
}

var _ hub.Conn = (*conn)(nil)
