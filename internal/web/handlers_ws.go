package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"zigbee-color-light/internal/device"
)

// Message types the stream sends besides device events.
const (
	wsTypeSnapshot      = "snapshot"
	wsTypeCommandResult = "command_result"
	wsTypeError         = "error"
)

const wsWriteTimeout = 10 * time.Second

// WSHub fans device events out to WebSocket clients.
type WSHub struct {
	clients map[*wsClient]struct{}
	mu      sync.RWMutex
	logger  *slog.Logger

	register   chan *wsClient
	unregister chan *wsClient
	broadcast  chan wsMessage

	done     chan struct{}
	stopOnce sync.Once
}

type wsClient struct {
	conn       *websocket.Conn
	send       chan []byte
	endpoint   uint8 // 0 receives every endpoint
	canCommand bool
}

// wsMessage is a queued broadcast. endpoint is 0 for events that are not
// tied to an endpoint.
type wsMessage struct {
	endpoint uint8
	data     interface{}
}

func (c *wsClient) wants(m wsMessage) bool {
	return c.endpoint == 0 || m.endpoint == 0 || c.endpoint == m.endpoint
}

// wsCommand is a client frame asking to run a command on an endpoint.
type wsCommand struct {
	Endpoint uint8          `json:"endpoint"`
	Command  device.Command `json:"command"`
}

// NewWSHub creates a new WebSocket hub.
func NewWSHub(logger *slog.Logger) *WSHub {
	return &WSHub{
		clients:    make(map[*wsClient]struct{}),
		logger:     logger,
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		broadcast:  make(chan wsMessage, 256),
		done:       make(chan struct{}),
	}
}

// Run owns the client set until Stop.
func (h *WSHub) Run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for c := range h.clients {
				h.drop(c)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("ws client connected", "endpoint", c.endpoint, "total", total)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				h.drop(c)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("ws client disconnected", "total", total)

		case msg := <-h.broadcast:
			h.fanOut(msg)
		}
	}
}

// drop removes a client and closes its queue. h.mu must be held.
func (h *WSHub) drop(c *wsClient) {
	delete(h.clients, c)
	close(c.send)
}

func (h *WSHub) fanOut(msg wsMessage) {
	data, err := json.Marshal(msg.data)
	if err != nil {
		h.logger.Error("ws marshal", "err", err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if !c.wants(msg) {
			continue
		}
		select {
		case c.send <- data:
		default:
			h.drop(c)
			h.logger.Warn("ws client evicted (too slow)", "endpoint", c.endpoint)
		}
	}
}

// Stop signals the hub to shut down. Safe to call multiple times.
func (h *WSHub) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
	})
}

// Broadcast queues a message for every interested client. Device events are
// delivered only to clients watching their endpoint. It never blocks.
func (h *WSHub) Broadcast(msg interface{}) {
	m := wsMessage{data: msg}
	if ev, ok := msg.(device.Event); ok {
		m.endpoint, _ = ev.Endpoint()
	}
	select {
	case h.broadcast <- m:
	default:
		h.logger.Warn("ws broadcast channel full, dropping message")
	}
}

// handleWS streams device events. ?endpoint=N limits the stream to one
// endpoint. The stream opens with a snapshot of every watched endpoint, and
// clients may send wsCommand frames, each answered with a command_result.
// When an API key is configured, commands need it in ?key=.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	var endpoint uint8
	if q := r.URL.Query().Get("endpoint"); q != "" {
		n, err := strconv.ParseUint(q, 10, 8)
		if err != nil || n == 0 || n > 240 {
			http.Error(w, "endpoint must be 1-240", http.StatusBadRequest)
			return
		}
		endpoint = uint8(n)
	}

	watched := s.light.Endpoints()
	if endpoint != 0 {
		watched = []uint8{endpoint}
	}
	snapshots := make([]*device.EndpointState, 0, len(watched))
	for _, ep := range watched {
		st, err := s.light.Endpoint(r.Context(), ep)
		if err != nil {
			s.writeDeviceError(w, "ws snapshot", err)
			return
		}
		snapshots = append(snapshots, st)
	}

	opts := &websocket.AcceptOptions{}
	if len(s.allowedOrigins) > 0 {
		opts.OriginPatterns = s.allowedOrigins
	}
	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		s.logger.Error("ws accept", "err", err)
		return
	}
	conn.SetReadLimit(4096)

	client := &wsClient{
		conn:       conn,
		send:       make(chan []byte, 64),
		endpoint:   endpoint,
		canCommand: s.keyMatches(r.URL.Query().Get("key")),
	}
	for _, st := range snapshots {
		if err := s.wsWrite(client, wsTypeSnapshot, st); err != nil {
			conn.Close(websocket.StatusInternalError, "snapshot failed")
			return
		}
	}

	select {
	case s.wsHub.register <- client:
	case <-s.wsHub.done:
		conn.Close(websocket.StatusGoingAway, "server shutdown")
		return
	}

	go s.wsWritePump(client)
	s.wsReadPump(client)
}

// wsWrite sends one typed message directly on the connection.
func (s *Server) wsWrite(client *wsClient, msgType string, data interface{}) error {
	b, err := json.Marshal(device.Event{Type: msgType, Data: data})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), wsWriteTimeout)
	defer cancel()
	return client.conn.Write(ctx, websocket.MessageText, b)
}

func (s *Server) wsWritePump(client *wsClient) {
	for msg := range client.send {
		ctx, cancel := context.WithTimeout(context.Background(), wsWriteTimeout)
		err := client.conn.Write(ctx, websocket.MessageText, msg)
		cancel()
		if err != nil {
			return
		}
	}
	// The hub closed the queue.
	client.conn.Close(websocket.StatusNormalClosure, "")
}

func (s *Server) wsReadPump(client *wsClient) {
	defer func() {
		select {
		case s.wsHub.unregister <- client:
		case <-s.wsHub.done:
			client.conn.Close(websocket.StatusGoingAway, "server shutdown")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-s.wsHub.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		_, data, err := client.conn.Read(ctx)
		if err != nil {
			return
		}
		s.wsHandleCommand(ctx, client, data)
	}
}

func (s *Server) wsHandleCommand(ctx context.Context, client *wsClient, data []byte) {
	if !client.canCommand {
		s.wsReplyError(client, "unauthorized")
		return
	}
	var req wsCommand
	if err := json.Unmarshal(data, &req); err != nil {
		s.wsReplyError(client, "invalid command frame")
		return
	}
	if req.Endpoint == 0 {
		req.Endpoint = client.endpoint
	}
	if req.Endpoint == 0 {
		s.wsReplyError(client, "endpoint is required")
		return
	}

	status, err := s.light.Execute(ctx, req.Endpoint, req.Command, "ws")
	if err != nil {
		s.wsReplyError(client, err.Error())
		return
	}
	resp := commandResponse{Endpoint: req.Endpoint, Command: req.Command.Command, Status: status.String(), Code: uint8(status)}
	if err := s.wsWrite(client, wsTypeCommandResult, resp); err != nil {
		s.logger.Debug("ws reply", "err", err)
	}
}

func (s *Server) wsReplyError(client *wsClient, msg string) {
	if err := s.wsWrite(client, wsTypeError, map[string]string{"error": msg}); err != nil {
		s.logger.Debug("ws reply", "err", err)
	}
}
