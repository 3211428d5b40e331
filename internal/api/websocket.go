package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-avr/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-avr/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-avr/internal/state"
)

// WebSocket message types.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypeSet         = "set"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeSnapshot    = "snapshot"
	WSTypeResponse    = "response"
	WSTypeError       = "error"
)

// ChannelStateChanged carries every state write as a state.Update.
const ChannelStateChanged = "state.changed"

const (
	// wsSendBufferSize is the per-client outbound message buffer size.
	wsSendBufferSize = 256

	// wsRequestTimeout bounds store access for one client request.
	wsRequestTimeout = 5 * time.Second

	defaultWSMaxMessageSize = 8192
	defaultWSPingInterval   = 30
	defaultWSPongTimeout    = 10
)

// WSMessage is the envelope for every message in both directions.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload selects channels and, for state.changed, the state
// paths of interest. An empty Prefixes list matches every path. With
// Snapshot set the client first receives the current matching states.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
	Prefixes []string `json:"prefixes,omitempty"`
	Snapshot bool     `json:"snapshot,omitempty"`
}

// WSSetPayload is a host write sent over the socket.
type WSSetPayload struct {
	ID  string          `json:"id"`
	Val json.RawMessage `json:"val"`
}

// stateService is the part of the server a client reaches through its
// socket.
type stateService interface {
	snapshot(ctx context.Context, prefixes []string) ([]state.Entry, error)
	hostWrite(ctx context.Context, id string, val any) (state.StateChange, error)
}

// pathFilter matches state ids by prefix. A nil filter matches every id.
type pathFilter []string

func (f pathFilter) matches(id string) bool {
	if len(f) == 0 || id == "" {
		return true
	}
	for _, p := range f {
		if strings.HasPrefix(id, p) {
			return true
		}
	}
	return false
}

// Hub tracks connected clients and fans events out to their subscriptions.
type Hub struct {
	cfg     config.WebSocketConfig
	logger  *logging.Logger
	clients map[*WSClient]struct{}
	mu      sync.RWMutex
}

// WSClient is one connected socket with its channel filters.
type WSClient struct {
	hub           *Hub
	conn          *websocket.Conn
	states        stateService
	send          chan []byte
	subscriptions map[string]pathFilter
	mu            sync.RWMutex
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// The API binds to the local network only.
		return true
	},
}

// NewHub creates a hub. Zero config fields take defaults.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaultWSMaxMessageSize
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaultWSPingInterval
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = defaultWSPongTimeout
	}
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
	}
}

// Run blocks until ctx ends, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Register adds a client to the hub.
func (h *Hub) Register(client *WSClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", n)
}

// Unregister removes a client. Only the call that removes it from the map
// closes its send channel.
func (h *Hub) Unregister(client *WSClient) {
	h.mu.Lock()
	_, existed := h.clients[client]
	delete(h.clients, client)
	n := len(h.clients)
	h.mu.Unlock()

	if existed {
		close(client.send)
	}
	h.logger.Debug("websocket client disconnected", "clients", n)
}

// BroadcastState sends a state write to every client subscribed to
// ChannelStateChanged whose prefixes match the state id.
func (h *Hub) BroadcastState(u state.Update) {
	h.broadcast(ChannelStateChanged, u.ID, u)
}

// Broadcast sends an event that is not tied to a state path to every
// client subscribed to channel.
func (h *Hub) Broadcast(channel string, payload any) {
	h.broadcast(channel, "", payload)
}

func (h *Hub) broadcast(channel, id string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		h.logger.Error("failed to marshal broadcast message", "error", err)
		return
	}

	// Snapshot under the hub lock; client locks are taken after release.
	h.mu.RLock()
	clients := make([]*WSClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	sent := 0
	for _, client := range clients {
		if client.wants(channel, id) {
			client.trySend(data)
			sent++
		}
	}
	if sent > 0 {
		h.logger.Debug("broadcast sent", "channel", channel, "id", id, "recipients", sent)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		if client.conn != nil {
			client.conn.Close()
		}
		delete(h.clients, client)
	}
}

// handleWebSocket upgrades the request and starts the client pumps.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &WSClient{
		hub:           s.hub,
		conn:          conn,
		states:        s,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]pathFilter),
	}

	s.hub.Register(client)

	go client.writePump(s.hub.cfg)
	go client.readPump(s.hub.cfg)
}

func (c *WSClient) readPump(cfg config.WebSocketConfig) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	deadline := time.Duration(cfg.PingInterval+cfg.PongTimeout) * time.Second
	//nolint:errcheck // best-effort deadline on connection setup
	c.conn.SetReadDeadline(time.Now().Add(deadline))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(deadline))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err)
			} else {
				c.hub.logger.Debug("websocket closed", "error", err)
			}
			return
		}
		// Browsers may not answer protocol pings; any message keeps the
		// connection alive.
		//nolint:errcheck // best-effort deadline reset
		c.conn.SetReadDeadline(time.Now().Add(deadline))
		c.handleMessage(message)
	}
}

func (c *WSClient) writePump(cfg config.WebSocketConfig) {
	ticker := time.NewTicker(time.Duration(cfg.PingInterval) * time.Second)
	writeWait := time.Duration(cfg.PongTimeout) * time.Second
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				//nolint:errcheck // best-effort close frame
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			//nolint:errcheck // write error caught below
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // ping error caught below
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WSClient) handleMessage(data []byte) {
	var msg struct {
		Type    string          `json:"type"`
		ID      string          `json:"id"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("", "invalid JSON message")
		return
	}

	switch msg.Type {
	case WSTypeSubscribe:
		c.handleSubscribe(msg.ID, msg.Payload)
	case WSTypeUnsubscribe:
		c.handleUnsubscribe(msg.ID, msg.Payload)
	case WSTypeSet:
		c.handleSet(msg.ID, msg.Payload)
	case WSTypePing:
		c.sendResponse(msg.ID, WSTypePong, nil)
	default:
		c.sendError(msg.ID, "unknown message type: "+msg.Type)
	}
}

// handleSubscribe replaces the path filter of each named channel.
func (c *WSClient) handleSubscribe(id string, raw json.RawMessage) {
	var sub WSSubscribePayload
	if err := json.Unmarshal(raw, &sub); err != nil || len(sub.Channels) == 0 {
		c.sendError(id, "invalid subscribe payload")
		return
	}
	for _, p := range sub.Prefixes {
		if p == "" {
			c.sendError(id, "empty prefix")
			return
		}
	}

	filter := pathFilter(sub.Prefixes)
	c.mu.Lock()
	for _, ch := range sub.Channels {
		c.subscriptions[ch] = filter
	}
	c.mu.Unlock()

	c.hub.logger.Debug("websocket client subscribed", "channels", sub.Channels, "prefixes", sub.Prefixes)
	c.sendResponse(id, WSTypeResponse, map[string]any{
		"subscribed": sub.Channels,
		"prefixes":   sub.Prefixes,
	})

	if sub.Snapshot && c.states != nil {
		c.sendSnapshot(id, sub.Prefixes)
	}
}

func (c *WSClient) handleUnsubscribe(id string, raw json.RawMessage) {
	var sub WSSubscribePayload
	if err := json.Unmarshal(raw, &sub); err != nil {
		c.sendError(id, "invalid unsubscribe payload")
		return
	}

	c.mu.Lock()
	for _, ch := range sub.Channels {
		delete(c.subscriptions, ch)
	}
	c.mu.Unlock()

	c.sendResponse(id, WSTypeResponse, map[string]any{
		"unsubscribed": sub.Channels,
	})
}

// handleSet performs a host write, with the same checks as
// PUT /api/v1/states/{id}.
func (c *WSClient) handleSet(id string, raw json.RawMessage) {
	if c.states == nil {
		c.sendError(id, "state writes unavailable")
		return
	}
	var set WSSetPayload
	if err := json.Unmarshal(raw, &set); err != nil || set.ID == "" {
		c.sendError(id, "invalid set payload")
		return
	}
	if len(set.Val) == 0 {
		c.sendError(id, "val is required")
		return
	}
	var val any
	if err := json.Unmarshal(set.Val, &val); err != nil {
		c.sendError(id, "invalid val")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), wsRequestTimeout)
	defer cancel()
	change, err := c.states.hostWrite(ctx, set.ID, val)
	if err != nil {
		_, _, message := hostWriteError(err)
		c.sendError(id, message)
		return
	}
	c.sendResponse(id, WSTypeResponse, change)
}

func (c *WSClient) sendSnapshot(id string, prefixes []string) {
	ctx, cancel := context.WithTimeout(context.Background(), wsRequestTimeout)
	defer cancel()
	entries, err := c.states.snapshot(ctx, prefixes)
	if err != nil {
		c.hub.logger.Error("websocket snapshot failed", "error", err)
		c.sendError(id, "failed to load states")
		return
	}
	c.sendResponse(id, WSTypeSnapshot, map[string]any{
		"states": entries,
		"count":  len(entries),
	})
}

// trySend queues data without blocking. A full buffer drops the message;
// a send racing Unregister is absorbed.
func (c *WSClient) trySend(data []byte) {
	defer func() {
		recover() //nolint:errcheck // send on closed channel
	}()

	select {
	case c.send <- data:
	default:
	}
}

// wants reports whether the client is subscribed to channel with a filter
// matching id.
func (c *WSClient) wants(channel, id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	filter, ok := c.subscriptions[channel]
	return ok && filter.matches(id)
}

func (c *WSClient) sendResponse(id, msgType string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		return
	}
	c.trySend(data)
}

func (c *WSClient) sendError(id, message string) {
	c.sendResponse(id, WSTypeError, map[string]string{"message": message})
}
