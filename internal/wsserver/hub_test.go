package wsserver

import (
	"context"
	"encoding/json"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// testListenAddr lets the OS pick a port so tests never collide.
const testListenAddr = "127.0.0.1:0"

// waitForCondition polls fn every 10ms until it returns true or timeout expires.
func waitForCondition(t *testing.T, timeout time.Duration, fn func() bool) bool {
	t.Helper()
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		select {
		case <-ticker.C:
			if fn() {
				return true
			}
		case <-deadline.C:
			return false
		}
	}
}

func waitForConnection(t *testing.T, hub *Hub) {
	t.Helper()
	if !waitForCondition(t, 2*time.Second, hub.HasActiveConnection) {
		t.Fatal("timed out waiting for hub to register connection")
	}
}

func waitForNoConnection(t *testing.T, hub *Hub) {
	t.Helper()
	if !waitForCondition(t, 2*time.Second, func() bool { return !hub.HasActiveConnection() }) {
		t.Fatal("timed out waiting for hub to clear connection")
	}
}

// recordingHandler matches keysym 100 with modifiers 64 and records events.
type recordingHandler struct {
	mu     sync.Mutex
	events []KeyEvent
}

func (h *recordingHandler) HandleKey(_ context.Context, ev KeyEvent) MatchResult {
	h.mu.Lock()
	h.events = append(h.events, ev)
	h.mu.Unlock()
	if ev.Modifiers == 64 && ev.Keysym == 100 {
		return MatchResult{Matched: true, Origin: "super + d"}
	}
	return MatchResult{}
}

func (h *recordingHandler) recorded() []KeyEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]KeyEvent(nil), h.events...)
}

func startHub(t *testing.T, handler Handler) *Hub {
	t.Helper()
	hub := NewHub(HubOptions{Addr: testListenAddr, Handler: handler})
	if err := hub.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() {
		if err := hub.Stop(); err != nil {
			t.Errorf("Stop() error = %v", err)
		}
	})
	return hub
}

// dialHub connects and consumes the hello frame, returning its client id.
func dialHub(t *testing.T, hub *Hub) (*websocket.Conn, string) {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(hub.URL(), nil)
	if err != nil {
		t.Fatalf("failed to dial hub: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	var hello HelloMessage
	readJSON(t, conn, &hello)
	if hello.Type != TypeHello {
		t.Fatalf("first frame type = %q, want hello", hello.Type)
	}
	return conn, hello.ClientID
}

func readJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("SetReadDeadline: %v", err)
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("unmarshal %q: %v", data, err)
	}
}

func sendRawText(t *testing.T, conn *websocket.Conn, text string) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestStartAndStop(t *testing.T) {
	hub := NewHub(HubOptions{Addr: testListenAddr, Handler: &recordingHandler{}})
	if hub.URL() != "" {
		t.Fatalf("URL() before Start = %q, want empty", hub.URL())
	}
	if err := hub.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !strings.HasPrefix(hub.URL(), "ws://127.0.0.1:") || !strings.HasSuffix(hub.URL(), "/ws") {
		t.Fatalf("URL() = %q", hub.URL())
	}
	if err := hub.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := hub.Stop(); err != nil {
		t.Fatalf("second Stop() error = %v", err)
	}
}

func TestStartErrors(t *testing.T) {
	if err := NewHub(HubOptions{Addr: testListenAddr}).Start(context.Background()); err == nil {
		t.Fatal("Start() without handler error = nil")
	}

	hub := startHub(t, &recordingHandler{})
	if err := hub.Start(context.Background()); err == nil {
		t.Fatal("second Start() error = nil")
	}
}

func TestStartPortConflict(t *testing.T) {
	ln, err := net.Listen("tcp", testListenAddr)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	hub := NewHub(HubOptions{Addr: ln.Addr().String(), Handler: &recordingHandler{}})
	if err := hub.Start(context.Background()); err == nil {
		_ = hub.Stop()
		t.Fatal("Start() on busy port error = nil")
	}
}

func TestNewHubDefaultAddr(t *testing.T) {
	hub := NewHub(HubOptions{})
	if hub.opts.Addr != "127.0.0.1:0" {
		t.Fatalf("default Addr = %q", hub.opts.Addr)
	}
}

func TestHelloCarriesClientID(t *testing.T) {
	hub := startHub(t, &recordingHandler{})
	_, clientID := dialHub(t, hub)

	if _, err := uuid.Parse(clientID); err != nil {
		t.Fatalf("client id %q is not a uuid: %v", clientID, err)
	}
	waitForConnection(t, hub)
	if hub.ClientID() != clientID {
		t.Fatalf("ClientID() = %q, want %q", hub.ClientID(), clientID)
	}
}

func TestKeyEventRoundTrip(t *testing.T) {
	handler := &recordingHandler{}
	hub := startHub(t, handler)
	conn, _ := dialHub(t, hub)

	tests := []struct {
		name        string
		frame       string
		wantMatched bool
		wantOrigin  string
		wantID      string
	}{
		{"match", `{"type":"key","id":"1","modifiers":64,"keysym":100}`, true, "super + d", "1"},
		{"no match", `{"type":"key","id":"2","modifiers":0,"keysym":100}`, false, "", "2"},
		{"dry run", `{"type":"key","id":"3","modifiers":64,"keysym":100,"dry_run":true}`, true, "super + d", "3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sendRawText(t, conn, tt.frame)
			var res MatchResult
			readJSON(t, conn, &res)
			if res.Type != TypeMatch || res.ID != tt.wantID {
				t.Fatalf("result = %+v", res)
			}
			if res.Matched != tt.wantMatched || res.Origin != tt.wantOrigin {
				t.Fatalf("result = %+v, want matched=%v origin=%q", res, tt.wantMatched, tt.wantOrigin)
			}
			if res.Keysym != 100 {
				t.Fatalf("Keysym = %d, want echo of request", res.Keysym)
			}
		})
	}

	events := handler.recorded()
	if len(events) != 3 || !events[2].DryRun {
		t.Fatalf("handler events = %+v", events)
	}
}

func TestKeyEventWithoutIDGetsOne(t *testing.T) {
	hub := startHub(t, &recordingHandler{})
	conn, _ := dialHub(t, hub)

	sendRawText(t, conn, `{"type":"key","modifiers":64,"keysym":100}`)
	var res MatchResult
	readJSON(t, conn, &res)
	if _, err := uuid.Parse(res.ID); err != nil {
		t.Fatalf("generated id %q is not a uuid", res.ID)
	}
}

func TestInvalidMessages(t *testing.T) {
	handler := &recordingHandler{}
	hub := startHub(t, handler)
	conn, _ := dialHub(t, hub)

	tests := []struct {
		name    string
		frame   string
		wantMsg string
	}{
		{"not json", `{nope`, "invalid JSON"},
		{"wrong type", `{"type":"subscribe"}`, "unsupported message type"},
		{"missing keysym", `{"type":"key","id":"9"}`, "keysym is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sendRawText(t, conn, tt.frame)
			var msg ErrorMessage
			readJSON(t, conn, &msg)
			if msg.Type != TypeError || !strings.Contains(msg.Message, tt.wantMsg) {
				t.Fatalf("error message = %+v, want %q", msg, tt.wantMsg)
			}
		})
	}
	if got := len(handler.recorded()); got != 0 {
		t.Fatalf("handler called %d times for invalid frames", got)
	}
	if !hub.HasActiveConnection() {
		t.Fatal("invalid frames must not drop the client")
	}
}

func TestConnectionReplacement(t *testing.T) {
	hub := startHub(t, &recordingHandler{})
	first, firstID := dialHub(t, hub)
	_, secondID := dialHub(t, hub)

	if firstID == secondID {
		t.Fatal("client ids must differ per connection")
	}
	if !waitForCondition(t, 2*time.Second, func() bool { return hub.ClientID() == secondID }) {
		t.Fatal("hub did not switch to the new client")
	}

	if err := first.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("SetReadDeadline: %v", err)
	}
	if _, _, err := first.ReadMessage(); err == nil {
		t.Fatal("replaced connection still readable")
	}
}

func TestAbruptDisconnection(t *testing.T) {
	hub := startHub(t, &recordingHandler{})
	conn, _ := dialHub(t, hub)
	waitForConnection(t, hub)

	_ = conn.Close()
	waitForNoConnection(t, hub)
	if hub.ClientID() != "" {
		t.Fatalf("ClientID() = %q after disconnect", hub.ClientID())
	}
}

func TestBroadcastLog(t *testing.T) {
	hub := startHub(t, &recordingHandler{})

	// No client: must be a silent no-op.
	hub.BroadcastLog(LogMessage{Level: "WARN", Message: "nobody listening"})

	conn, _ := dialHub(t, hub)
	waitForConnection(t, hub)

	hub.BroadcastLog(LogMessage{Level: "ERROR", Message: "action failed", Source: "dispatch", Attrs: map[string]string{"origin": "super + d"}})

	var msg LogMessage
	readJSON(t, conn, &msg)
	if msg.Type != TypeLog || msg.Level != "ERROR" || msg.Message != "action failed" {
		t.Fatalf("log message = %+v", msg)
	}
	if msg.Attrs["origin"] != "super + d" {
		t.Fatalf("Attrs = %v", msg.Attrs)
	}
}

func TestGracefulShutdownClosesClient(t *testing.T) {
	hub := NewHub(HubOptions{Addr: testListenAddr, Handler: &recordingHandler{}})
	if err := hub.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	conn, _ := dialHub(t, hub)
	waitForConnection(t, hub)

	if err := hub.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if hub.HasActiveConnection() {
		t.Fatal("connection still registered after Stop")
	}
	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("SetReadDeadline: %v", err)
	}
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("client still readable after Stop")
	}
}

func TestHandlerFunc(t *testing.T) {
	var h Handler = HandlerFunc(func(_ context.Context, ev KeyEvent) MatchResult {
		return MatchResult{Matched: ev.Keysym == 1}
	})
	if !h.HandleKey(context.Background(), KeyEvent{Keysym: 1}).Matched {
		t.Fatal("HandlerFunc did not forward the call")
	}
}
