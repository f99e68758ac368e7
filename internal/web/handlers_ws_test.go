package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"

	"zigbee-color-light/internal/device"
)

func newTestHub(t *testing.T) *WSHub {
	t.Helper()
	hub := NewWSHub(testLogger())
	go hub.Run()
	t.Cleanup(hub.Stop)
	return hub
}

// waitClients polls until the hub holds n clients.
func waitClients(t *testing.T, hub *WSHub, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for {
		hub.mu.RLock()
		got := len(hub.clients)
		hub.mu.RUnlock()
		if got == n {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("hub clients = %d, want %d", got, n)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestWSHubRegisterUnregister(t *testing.T) {
	hub := newTestHub(t)

	c := &wsClient{send: make(chan []byte, 16)}
	hub.register <- c
	waitClients(t, hub, 1)

	hub.unregister <- c
	waitClients(t, hub, 0)
	if _, ok := <-c.send; ok {
		t.Error("queue still open after unregister")
	}

	// Unknown clients are ignored and keep their queue.
	stray := &wsClient{send: make(chan []byte, 1)}
	hub.unregister <- stray
	waitClients(t, hub, 0)
	select {
	case stray.send <- nil:
	default:
		t.Error("stray client queue closed")
	}
}

func TestWSHubSlowClientEviction(t *testing.T) {
	hub := newTestHub(t)

	slow := &wsClient{send: make(chan []byte, 1)}
	fast := &wsClient{send: make(chan []byte, 64)}
	hub.register <- slow
	hub.register <- fast
	waitClients(t, hub, 2)

	hub.Broadcast("first")
	hub.Broadcast("second")
	waitClients(t, hub, 1)

	hub.mu.RLock()
	_, fastPresent := hub.clients[fast]
	hub.mu.RUnlock()
	if !fastPresent {
		t.Error("fast client evicted")
	}
}

func TestWSHubBroadcastNeverBlocks(t *testing.T) {
	hub := NewWSHub(testLogger()) // not running, so the queue fills up

	done := make(chan struct{})
	go func() {
		for i := 0; i < 300; i++ {
			hub.Broadcast(i)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("Broadcast blocked on a full queue")
	}
}

func TestWSHubStop(t *testing.T) {
	hub := NewWSHub(testLogger())
	go hub.Run()

	c := &wsClient{send: make(chan []byte, 16)}
	hub.register <- c
	waitClients(t, hub, 1)

	hub.Stop()
	hub.Stop()
	select {
	case _, ok := <-c.send:
		if ok {
			t.Error("queue delivered a message instead of closing")
		}
	case <-time.After(time.Second):
		t.Error("queue not closed on stop")
	}
}

func TestWSHubEndpointFilter(t *testing.T) {
	hub := newTestHub(t)

	all := &wsClient{send: make(chan []byte, 16)}
	ep1 := &wsClient{send: make(chan []byte, 16), endpoint: 1}
	ep2 := &wsClient{send: make(chan []byte, 16), endpoint: 2}
	for _, c := range []*wsClient{all, ep1, ep2} {
		hub.register <- c
	}
	waitClients(t, hub, 3)

	hub.Broadcast(device.Event{
		Type: device.EventAttributeChanged,
		Data: map[string]interface{}{"endpoint": uint8(1), "property": "hue", "value": uint8(5)},
	})
	hub.Broadcast(device.Event{Type: device.EventDeviceState, Data: "started"})

	// ep2 only gets the second broadcast; once all three queues are full
	// the hub has fanned out both.
	deadline := time.Now().Add(time.Second)
	for len(all.send) < 2 || len(ep1.send) < 2 || len(ep2.send) < 1 {
		if time.Now().After(deadline) {
			t.Fatalf("queued: all=%d ep1=%d ep2=%d", len(all.send), len(ep1.send), len(ep2.send))
		}
		time.Sleep(time.Millisecond)
	}

	tests := []struct {
		name   string
		client *wsClient
		want   int
	}{
		{"unfiltered", all, 2},
		{"matching endpoint", ep1, 2},
		{"other endpoint", ep2, 1},
	}
	for _, tt := range tests {
		if got := len(tt.client.send); got != tt.want {
			t.Errorf("%s: queued %d messages, want %d", tt.name, got, tt.want)
		}
	}

	var ev struct {
		Type string                 `json:"type"`
		Data map[string]interface{} `json:"data"`
	}
	if err := json.Unmarshal(<-ep1.send, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Type != device.EventAttributeChanged || ev.Data["property"] != "hue" {
		t.Errorf("event = %+v", ev)
	}
}

func TestWSQueryValidation(t *testing.T) {
	srv, _ := setupTestServer(t)

	tests := []struct {
		query string
		want  int
	}{
		{"?endpoint=300", http.StatusBadRequest},
		{"?endpoint=0", http.StatusBadRequest},
		{"?endpoint=abc", http.StatusBadRequest},
		{"?endpoint=9", http.StatusNotFound},
	}
	for _, tt := range tests {
		w := do(srv, "GET", "/ws"+tt.query, "")
		if w.Code != tt.want {
			t.Errorf("%s: status = %d, want %d", tt.query, w.Code, tt.want)
		}
	}
}

type wsFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func dialWS(t *testing.T, srv *Server, query string) (*websocket.Conn, context.Context) {
	t.Helper()
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws" + query
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn, ctx
}

func readFrame(t *testing.T, ctx context.Context, conn *websocket.Conn) wsFrame {
	t.Helper()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var f wsFrame
	if err := json.Unmarshal(data, &f); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return f
}

// readUntil skips device events until a frame of the given type arrives.
func readUntil(t *testing.T, ctx context.Context, conn *websocket.Conn, typ string) wsFrame {
	t.Helper()
	for i := 0; i < 50; i++ {
		if f := readFrame(t, ctx, conn); f.Type == typ {
			return f
		}
	}
	t.Fatalf("no %s frame", typ)
	return wsFrame{}
}

func sendFrame(t *testing.T, ctx context.Context, conn *websocket.Conn, frame string) {
	t.Helper()
	if err := conn.Write(ctx, websocket.MessageText, []byte(frame)); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestWSSnapshot(t *testing.T) {
	tests := []struct {
		query string
		want  []uint8
	}{
		{"", []uint8{1, 2}},
		{"?endpoint=2", []uint8{2}},
	}
	for _, tt := range tests {
		srv, _ := setupTestServer(t)
		conn, ctx := dialWS(t, srv, tt.query)

		for _, want := range tt.want {
			f := readFrame(t, ctx, conn)
			if f.Type != wsTypeSnapshot {
				t.Fatalf("%q: frame type = %q, want %q", tt.query, f.Type, wsTypeSnapshot)
			}
			var st struct {
				ID         uint8                  `json:"id"`
				Properties map[string]interface{} `json:"properties"`
			}
			if err := json.Unmarshal(f.Data, &st); err != nil {
				t.Fatal(err)
			}
			if st.ID != want {
				t.Errorf("%q: snapshot endpoint = %d, want %d", tt.query, st.ID, want)
			}
			if want == 1 && st.Properties["hue"] != float64(100) {
				t.Errorf("snapshot hue = %v, want 100", st.Properties["hue"])
			}
		}
	}
}

func TestWSCommand(t *testing.T) {
	srv, d := setupTestServer(t)
	conn, ctx := dialWS(t, srv, "?endpoint=1")
	readFrame(t, ctx, conn) // snapshot

	sendFrame(t, ctx, conn, `{"command":{"command":"move_to_hue","hue":120}}`)
	f := readUntil(t, ctx, conn, wsTypeCommandResult)

	var resp commandResponse
	if err := json.Unmarshal(f.Data, &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Endpoint != 1 || resp.Command != device.CommandMoveToHue || resp.Status != "SUCCESS" {
		t.Errorf("result = %+v", resp)
	}

	deadline := time.Now().Add(time.Second)
	for {
		st, err := d.Endpoint(ctx, 1)
		if err != nil {
			t.Fatal(err)
		}
		if st.Properties["hue"] == uint8(120) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("hue = %v, want 120", st.Properties["hue"])
		}
		time.Sleep(time.Millisecond)
	}
}

func TestWSCommandErrors(t *testing.T) {
	tests := []struct {
		name  string
		query string
		frame string
		want  string
	}{
		{"bad json", "", `not json`, "invalid command frame"},
		{"no endpoint", "", `{"command":{"command":"stop"}}`, "endpoint is required"},
		{"unknown endpoint", "", `{"endpoint":9,"command":{"command":"stop"}}`, "unknown endpoint"},
		{"unknown command", "?endpoint=1", `{"command":{"command":"blink"}}`, "blink"},
	}
	for _, tt := range tests {
		srv, _ := setupTestServer(t)
		conn, ctx := dialWS(t, srv, tt.query)

		sendFrame(t, ctx, conn, tt.frame)
		f := readUntil(t, ctx, conn, wsTypeError)
		var body map[string]string
		if err := json.Unmarshal(f.Data, &body); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(body["error"], tt.want) {
			t.Errorf("%s: error = %q, want it to contain %q", tt.name, body["error"], tt.want)
		}
	}
}

func TestWSCommandNeedsKey(t *testing.T) {
	srv, _ := setupTestServer(t, WithAPIKey("secret"))

	conn, ctx := dialWS(t, srv, "?endpoint=1")
	sendFrame(t, ctx, conn, `{"command":{"command":"stop"}}`)
	if f := readUntil(t, ctx, conn, wsTypeError); !strings.Contains(string(f.Data), "unauthorized") {
		t.Errorf("error frame = %s", f.Data)
	}

	conn, ctx = dialWS(t, srv, "?endpoint=1&key=secret")
	sendFrame(t, ctx, conn, `{"command":{"command":"stop"}}`)
	readUntil(t, ctx, conn, wsTypeCommandResult)
}
