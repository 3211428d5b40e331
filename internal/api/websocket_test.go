package api

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-avr/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-avr/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-avr/internal/state"
)

func testHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}, logging.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func TestNewHub_Defaults(t *testing.T) {
	hub := NewHub(config.WebSocketConfig{}, logging.Discard())
	if hub.cfg.MaxMessageSize != defaultWSMaxMessageSize ||
		hub.cfg.PingInterval != defaultWSPingInterval ||
		hub.cfg.PongTimeout != defaultWSPongTimeout {
		t.Errorf("cfg = %+v, want defaults", hub.cfg)
	}
}

func TestHub_BroadcastToSubscribed(t *testing.T) {
	hub := testHub(t)

	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: map[string]pathFilter{ChannelStateChanged: nil},
	}
	hub.Register(client)

	hub.BroadcastState(state.Update{ID: "zone.mainZone.powerZone"})

	select {
	case msg := <-client.send:
		var wsMsg WSMessage
		if err := json.Unmarshal(msg, &wsMsg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if wsMsg.EventType != ChannelStateChanged {
			t.Errorf("event_type = %q, want %q", wsMsg.EventType, ChannelStateChanged)
		}
	case <-time.After(time.Second):
		t.Error("timed out waiting for broadcast message")
	}
}

func TestHub_NoMessageForUnsubscribed(t *testing.T) {
	hub := testHub(t)

	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: map[string]pathFilter{"other.channel": nil},
	}
	hub.Register(client)

	hub.BroadcastState(state.Update{ID: "info.connection"})

	select {
	case <-client.send:
		t.Error("unsubscribed client should not receive message")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHub_ClientCount(t *testing.T) {
	hub := testHub(t)

	if hub.ClientCount() != 0 {
		t.Errorf("initial client count = %d, want 0", hub.ClientCount())
	}

	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]pathFilter),
	}
	hub.Register(client)
	if hub.ClientCount() != 1 {
		t.Errorf("after register count = %d, want 1", hub.ClientCount())
	}

	hub.Unregister(client)
	if hub.ClientCount() != 0 {
		t.Errorf("after unregister count = %d, want 0", hub.ClientCount())
	}
	// A second unregister must not close the channel twice.
	hub.Unregister(client)
}

// connectWebSocket serves srv's router and dials its WebSocket endpoint.
func connectWebSocket(t *testing.T, srv *Server) *websocket.Conn {
	t.Helper()

	ts := httptest.NewServer(srv.buildRouter())
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket connect failed: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func readMessage(t *testing.T, ws *websocket.Conn) WSMessage {
	t.Helper()
	//nolint:errcheck // test deadline
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg WSMessage
	if err := ws.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func subscribe(t *testing.T, ws *websocket.Conn, channels ...string) {
	t.Helper()
	subscribeWith(t, ws, WSSubscribePayload{Channels: channels})
}

func subscribeWith(t *testing.T, ws *websocket.Conn, sub WSSubscribePayload) {
	t.Helper()
	if err := ws.WriteJSON(WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "sub-1",
		Payload: sub,
	}); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}
	if resp := readMessage(t, ws); resp.Type != WSTypeResponse {
		t.Fatalf("subscribe response type = %s, want response", resp.Type)
	}
}

func TestWebSocket_SubscribeUnsubscribe(t *testing.T) {
	srv, _, _ := testServer(t)
	ws := connectWebSocket(t, srv)

	subscribe(t, ws, ChannelStateChanged, "other.channel")

	if err := ws.WriteJSON(WSMessage{
		Type:    WSTypeUnsubscribe,
		ID:      "unsub-1",
		Payload: WSSubscribePayload{Channels: []string{"other.channel"}},
	}); err != nil {
		t.Fatalf("write unsubscribe: %v", err)
	}
	if resp := readMessage(t, ws); resp.Type != WSTypeResponse || resp.ID != "unsub-1" {
		t.Errorf("unsubscribe response = %+v", resp)
	}
}

func TestWebSocket_PingAndErrors(t *testing.T) {
	srv, _, _ := testServer(t)
	ws := connectWebSocket(t, srv)

	if err := ws.WriteJSON(WSMessage{Type: WSTypePing, ID: "ping-1"}); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	if resp := readMessage(t, ws); resp.Type != WSTypePong || resp.ID != "ping-1" {
		t.Errorf("ping response = %+v, want pong", resp)
	}

	if err := ws.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if resp := readMessage(t, ws); resp.Type != WSTypeError {
		t.Errorf("invalid message response type = %s, want error", resp.Type)
	}

	if err := ws.WriteJSON(WSMessage{Type: "bogus", ID: "x-1"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if resp := readMessage(t, ws); resp.Type != WSTypeError {
		t.Errorf("unknown type response type = %s, want error", resp.Type)
	}
}

func TestWebSocket_StateRelay(t *testing.T) {
	srv, store, _ := testServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	updates, stop := store.Watch(stateRelayBuffer)
	go srv.relayStates(ctx, updates, stop)

	ws := connectWebSocket(t, srv)
	subscribe(t, ws, ChannelStateChanged)

	if err := store.SetState(context.Background(), "zone.mainZone.powerZone", true, true); err != nil {
		t.Fatalf("SetState: %v", err)
	}

	msg := readMessage(t, ws)
	if msg.Type != WSTypeEvent || msg.EventType != ChannelStateChanged {
		t.Fatalf("message = %+v, want state.changed event", msg)
	}
	payload, _ := msg.Payload.(map[string]any)
	if payload["id"] != "zone.mainZone.powerZone" {
		t.Errorf("payload id = %v", payload["id"])
	}
	st, _ := payload["state"].(map[string]any)
	if st["val"] != true || st["ack"] != true {
		t.Errorf("payload state = %v", st)
	}
}

func TestPathFilter(t *testing.T) {
	tests := []struct {
		name   string
		filter pathFilter
		id     string
		want   bool
	}{
		{"nil matches all", nil, "zone2.volume", true},
		{"prefix match", pathFilter{"zone2."}, "zone2.volume", true},
		{"prefix miss", pathFilter{"zone2."}, "zone3.volume", false},
		{"any of several", pathFilter{"info.", "zone2."}, "info.connection", true},
		{"unaddressed event", pathFilter{"zone2."}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.matches(tt.id); got != tt.want {
				t.Errorf("matches(%q) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}

func TestHub_BroadcastStateFiltersByPrefix(t *testing.T) {
	hub := testHub(t)

	zone2 := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: map[string]pathFilter{ChannelStateChanged: {"zone2."}},
	}
	hub.Register(zone2)

	hub.BroadcastState(state.Update{ID: "zone.mainZone.volume"})
	hub.BroadcastState(state.Update{ID: "zone2.volume"})

	select {
	case msg := <-zone2.send:
		var wsMsg struct {
			Payload state.Update `json:"payload"`
		}
		if err := json.Unmarshal(msg, &wsMsg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if wsMsg.Payload.ID != "zone2.volume" {
			t.Errorf("first delivered id = %q, want zone2.volume", wsMsg.Payload.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for zone2 update")
	}

	select {
	case msg := <-zone2.send:
		t.Errorf("unexpected extra message %s", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWebSocket_SubscribeWithSnapshot(t *testing.T) {
	srv, _, _ := testServer(t)
	ws := connectWebSocket(t, srv)

	subscribeWith(t, ws, WSSubscribePayload{
		Channels: []string{ChannelStateChanged},
		Prefixes: []string{"info."},
		Snapshot: true,
	})

	msg := readMessage(t, ws)
	if msg.Type != WSTypeSnapshot {
		t.Fatalf("message type = %s, want snapshot", msg.Type)
	}
	payload, _ := msg.Payload.(map[string]any)
	if payload["count"] != float64(1) {
		t.Fatalf("snapshot count = %v, want 1", payload["count"])
	}
	entries, _ := payload["states"].([]any)
	entry, _ := entries[0].(map[string]any)
	obj, _ := entry["object"].(map[string]any)
	if obj["id"] != "info.connection" {
		t.Errorf("snapshot entry = %v", entry)
	}
}

func TestWebSocket_SubscribeRejectsEmptyPrefix(t *testing.T) {
	srv, _, _ := testServer(t)
	ws := connectWebSocket(t, srv)

	if err := ws.WriteJSON(WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "sub-1",
		Payload: WSSubscribePayload{Channels: []string{ChannelStateChanged}, Prefixes: []string{""}},
	}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if resp := readMessage(t, ws); resp.Type != WSTypeError {
		t.Errorf("response type = %s, want error", resp.Type)
	}
}

func TestWebSocket_Set(t *testing.T) {
	srv, store, bridge := testServer(t)
	ws := connectWebSocket(t, srv)

	if err := ws.WriteJSON(WSMessage{
		Type:    WSTypeSet,
		ID:      "set-1",
		Payload: WSSetPayload{ID: "zone.mainZone.powerZone", Val: json.RawMessage("true")},
	}); err != nil {
		t.Fatalf("write set: %v", err)
	}
	resp := readMessage(t, ws)
	if resp.Type != WSTypeResponse || resp.ID != "set-1" {
		t.Fatalf("set response = %+v", resp)
	}

	changes := bridge.submitted()
	if len(changes) != 1 || changes[0].ID != "zone.mainZone.powerZone" || changes[0].Value != true {
		t.Errorf("submitted = %+v", changes)
	}
	st, _, _ := store.GetState(context.Background(), "zone.mainZone.powerZone")
	if st.Val != true || st.Ack {
		t.Errorf("stored state = %+v, want unacknowledged true", st)
	}
}

func TestWebSocket_SetErrors(t *testing.T) {
	tests := []struct {
		name    string
		payload any
		want    string
	}{
		{"read-only", WSSetPayload{ID: "info.connection", Val: json.RawMessage("true")}, "state is read-only"},
		{"unknown", WSSetPayload{ID: "zone9.volume", Val: json.RawMessage("1")}, "state not found"},
		{"missing val", WSSetPayload{ID: "zone.mainZone.powerZone"}, "val is required"},
		{"missing id", map[string]any{"val": 1}, "invalid set payload"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _, bridge := testServer(t)
			ws := connectWebSocket(t, srv)

			if err := ws.WriteJSON(WSMessage{Type: WSTypeSet, ID: "set-1", Payload: tt.payload}); err != nil {
				t.Fatalf("write: %v", err)
			}
			resp := readMessage(t, ws)
			payload, _ := resp.Payload.(map[string]any)
			if resp.Type != WSTypeError || payload["message"] != tt.want {
				t.Errorf("response = %+v, want error %q", resp, tt.want)
			}
			if len(bridge.submitted()) != 0 {
				t.Error("rejected write reached the bridge")
			}
		})
	}
}
