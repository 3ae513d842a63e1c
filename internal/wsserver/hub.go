package wsserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// writeDeadline bounds a single WebSocket write.
const writeDeadline = 5 * time.Second

// readDeadline allows about three missed pings before the client is dropped.
const readDeadline = 90 * time.Second

const pingInterval = 30 * time.Second

// maxReadMessageSize caps incoming frames; key events are well under 1 KiB.
const maxReadMessageSize = 4 * 1024

var wsUpgrader = websocket.Upgrader{
	// Any origin: the input layer is a local process, not a browser page.
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 4 * 1024,
}

// Handler answers key events. HandleKey runs on the connection's read
// goroutine, so it should return quickly.
type Handler interface {
	HandleKey(ctx context.Context, ev KeyEvent) MatchResult
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, ev KeyEvent) MatchResult

// HandleKey calls f.
func (f HandlerFunc) HandleKey(ctx context.Context, ev KeyEvent) MatchResult { return f(ctx, ev) }

// HubOptions configures the WebSocket server.
type HubOptions struct {
	// Addr is the listen address. Use "127.0.0.1:0" for an OS-assigned port.
	Addr    string
	Handler Handler
}

// Hub serves one WebSocket client at a time. A new connection replaces the
// existing one.
//
// Lock ordering (never acquire in reverse):
//
//	writeMu -> mu
//
// mu protects conn and clientID. writeMu serializes writes, which
// gorilla/websocket does not allow concurrently. Any write failure drops the
// client; it must reconnect.
type Hub struct {
	opts HubOptions

	mu       sync.RWMutex
	conn     *websocket.Conn
	clientID string

	writeMu sync.Mutex

	listener net.Listener
	server   *http.Server
	url      string

	// closeOnce makes Stop idempotent. A stopped Hub cannot be restarted.
	closeOnce sync.Once
}

// NewHub creates a Hub. It does not listen until Start is called.
func NewHub(opts HubOptions) *Hub {
	if opts.Addr == "" {
		opts.Addr = "127.0.0.1:0"
	}
	return &Hub{opts: opts}
}

// Start listens on the configured address and serves connections. ctx
// becomes the base context of every request; the server itself is stopped
// with Stop. Start must be called once.
func (h *Hub) Start(ctx context.Context) error {
	if h.server != nil {
		return errors.New("wsserver: already started")
	}
	if h.opts.Handler == nil {
		return errors.New("wsserver: handler is required")
	}

	ln, err := net.Listen("tcp", h.opts.Addr)
	if err != nil {
		return fmt.Errorf("wsserver: listen: %w", err)
	}
	h.listener = ln
	h.url = "ws://" + ln.Addr().String() + "/ws"

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.handleWS)

	h.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if serveErr := h.server.Serve(ln); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Error("[DEBUG-WS] server error", "error", serveErr)
		}
	}()

	slog.Info("[DEBUG-WS] server started", "url", h.url)
	return nil
}

// Stop shuts down the server and closes the active connection.
func (h *Hub) Stop() error {
	var stopErr error
	h.closeOnce.Do(func() {
		h.mu.Lock()
		conn := h.conn
		h.conn = nil
		h.clientID = ""
		h.mu.Unlock()

		if conn != nil {
			h.closeConn(conn, "hub stop")
		}

		if h.server != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := h.server.Shutdown(shutdownCtx); err != nil {
				stopErr = fmt.Errorf("wsserver: shutdown: %w", err)
			}
		}
		slog.Info("[DEBUG-WS] server stopped")
	})
	return stopErr
}

// URL returns the endpoint URL, e.g. "ws://127.0.0.1:7531/ws", or "" before Start.
func (h *Hub) URL() string {
	return h.url
}

// HasActiveConnection reports whether a client is connected.
func (h *Hub) HasActiveConnection() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.conn != nil
}

// ClientID returns the id sent in the current client's hello, or "".
func (h *Hub) ClientID() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clientID
}

// BroadcastLog sends msg to the connected client, if any. Type is filled in.
func (h *Hub) BroadcastLog(msg LogMessage) {
	h.mu.RLock()
	conn := h.conn
	h.mu.RUnlock()
	if conn == nil {
		return
	}
	msg.Type = TypeLog
	// Not logged on failure: this runs inside the log tee.
	h.writeJSON(conn, msg, false)
}

// clearIfCurrent drops conn if it is still the active connection.
// Caller must NOT hold h.mu.
func (h *Hub) clearIfCurrent(conn *websocket.Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conn != conn {
		return false
	}
	h.conn = nil
	h.clientID = ""
	return true
}

// closeConn closes conn. A second close on the same connection just errors.
func (h *Hub) closeConn(conn *websocket.Conn, reason string) {
	if closeErr := conn.Close(); closeErr != nil {
		slog.Debug("[DEBUG-WS] connection close", "reason", reason, "error", closeErr)
	}
}

// writeMessage performs one deadline-bounded write. On failure the client is
// dropped. logErrors is false for writes issued from the log tee.
func (h *Hub) writeMessage(conn *websocket.Conn, msgType int, payload []byte, logErrors bool) bool {
	h.writeMu.Lock()
	err := conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	if err == nil {
		err = conn.WriteMessage(msgType, payload)
		if clearErr := conn.SetWriteDeadline(time.Time{}); clearErr != nil && logErrors {
			slog.Debug("[DEBUG-WS] clear write deadline failed (non-fatal)", "error", clearErr)
		}
	}
	h.writeMu.Unlock()

	if err != nil {
		if logErrors {
			slog.Warn("[DEBUG-WS] write failed, closing connection", "error", err)
		}
		h.clearIfCurrent(conn)
		h.closeConn(conn, "write error")
		return false
	}
	return true
}

func (h *Hub) writeJSON(conn *websocket.Conn, v any, logErrors bool) bool {
	payload, err := json.Marshal(v)
	if err != nil {
		if logErrors {
			slog.Debug("[DEBUG-WS] failed to marshal message", "error", err)
		}
		return false
	}
	return h.writeMessage(conn, websocket.TextMessage, payload, logErrors)
}

// handleWS upgrades the request and runs the read pump.
func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("[DEBUG-WS] upgrade failed", "error", err)
		return
	}

	conn.SetReadLimit(maxReadMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(readDeadline)); err != nil {
		slog.Warn("[DEBUG-WS] SetReadDeadline failed on new connection", "error", err)
		h.closeConn(conn, "initial SetReadDeadline failure")
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readDeadline))
	})

	clientID := uuid.NewString()
	h.mu.Lock()
	oldConn := h.conn
	h.conn = conn
	h.clientID = clientID
	h.mu.Unlock()

	if oldConn != nil {
		h.closeConn(oldConn, "replaced by new connection")
	}
	slog.Info("[DEBUG-WS] client connected", "remoteAddr", conn.RemoteAddr(), "clientId", clientID)

	pingDone := make(chan struct{})
	go h.pingLoop(conn, pingDone)

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("[DEBUG-PANIC] wsserver handleWS recovered",
				"panic", rec,
				"stack", string(debug.Stack()),
			)
		}
		close(pingDone)
		h.clearIfCurrent(conn)
		h.closeConn(conn, "read pump exit")
		slog.Info("[DEBUG-WS] client disconnected", "clientId", clientID)
	}()

	if !h.writeJSON(conn, HelloMessage{Type: TypeHello, ClientID: clientID}, true) {
		return
	}

	for {
		msgType, msg, readErr := conn.ReadMessage()
		if readErr != nil {
			if websocket.IsUnexpectedCloseError(readErr, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("[DEBUG-WS] read error", "error", readErr)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		ev, decodeErr := DecodeKeyEvent(msg)
		if decodeErr != nil {
			slog.Debug("[DEBUG-WS] rejected client message", "error", decodeErr)
			if !h.writeJSON(conn, ErrorMessage{Type: TypeError, ID: ev.ID, Message: decodeErr.Error()}, true) {
				return
			}
			continue
		}
		if ev.ID == "" {
			ev.ID = uuid.NewString()
		}

		result := h.opts.Handler.HandleKey(r.Context(), ev)
		result.Type = TypeMatch
		result.ID = ev.ID
		result.Modifiers = ev.Modifiers
		result.Keysym = ev.Keysym
		if !h.writeJSON(conn, result, true) {
			return
		}
	}
}

// pingLoop sends keepalive pings until done is closed or a ping fails.
func (h *Hub) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("[DEBUG-PANIC] wsserver pingLoop recovered",
				"panic", rec,
				"stack", string(debug.Stack()),
			)
			h.clearIfCurrent(conn)
			h.closeConn(conn, "pingLoop panic recovery")
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if !h.writeMessage(conn, websocket.PingMessage, nil, true) {
				return
			}
		}
	}
}
