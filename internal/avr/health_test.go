package avr

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"
)

// mockPublisher implements HealthPublisher for testing.
type mockPublisher struct {
	mu        sync.Mutex
	connected bool
	messages  []publishedMessage
}

type publishedMessage struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

func (m *mockPublisher) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, publishedMessage{topic, payload, qos, retained})
	return nil
}

func (m *mockPublisher) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *mockPublisher) getMessages() []publishedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]publishedMessage(nil), m.messages...)
}

type staticStatus Status

func (s staticStatus) Status() Status { return Status(s) }

func decodeHealth(t *testing.T, msg publishedMessage) HealthMessage {
	t.Helper()
	var h HealthMessage
	if err := json.Unmarshal(msg.payload, &h); err != nil {
		t.Fatalf("unmarshal health: %v", err)
	}
	return h
}

func TestHealthReporter_DetermineStatus(t *testing.T) {
	tests := []struct {
		name      string
		connected bool
		state     ConnState
		want      HealthStatus
	}{
		{"mqtt down", false, StateOperational, HealthDegraded},
		{"operational", true, StateOperational, HealthHealthy},
		{"detecting", true, StateDetecting, HealthDegraded},
		{"failed", true, StateFailed, HealthDegraded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthReporter(HealthReporterConfig{
				BridgeID:  "avr-lounge",
				Publisher: &mockPublisher{connected: tt.connected},
				Source:    staticStatus{State: tt.state},
			})
			if got, _ := h.determineStatus(); got != tt.want {
				t.Errorf("determineStatus() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestHealthReporter_PublishNow(t *testing.T) {
	pub := &mockPublisher{connected: true}
	h := NewHealthReporter(HealthReporterConfig{
		BridgeID:  "avr-lounge",
		Version:   "1.2.0",
		Publisher: pub,
		Source:    staticStatus{State: StateOperational, Dialect: "receiver", Zones: []int{2}},
	})

	if err := h.PublishNow(); err != nil {
		t.Fatalf("PublishNow() error = %v", err)
	}
	msgs := pub.getMessages()
	if len(msgs) != 1 {
		t.Fatalf("published %d messages", len(msgs))
	}
	if msgs[0].topic != HealthTopic || msgs[0].qos != 1 || !msgs[0].retained {
		t.Errorf("message = %+v", msgs[0])
	}
	got := decodeHealth(t, msgs[0])
	if got.Bridge != "avr-lounge" || got.Status != HealthHealthy || got.Version != "1.2.0" {
		t.Errorf("health = %+v", got)
	}
	if got.Receiver.Dialect != "receiver" || len(got.Receiver.Zones) != 1 {
		t.Errorf("receiver = %+v", got.Receiver)
	}
}

func TestHealthReporter_StartStop(t *testing.T) {
	pub := &mockPublisher{connected: true}
	h := NewHealthReporter(HealthReporterConfig{
		BridgeID:  "avr-lounge",
		Interval:  10 * time.Millisecond,
		Publisher: pub,
	})
	h.Start(context.Background())
	time.Sleep(35 * time.Millisecond)
	h.Stop()
	h.Stop()

	msgs := pub.getMessages()
	if len(msgs) < 2 {
		t.Fatalf("published %d messages, want at least 2", len(msgs))
	}
	if first := decodeHealth(t, msgs[0]); first.Status != HealthStarting {
		t.Errorf("first status = %s, want starting", first.Status)
	}
	if last := decodeHealth(t, msgs[len(msgs)-1]); last.Status != HealthStopping {
		t.Errorf("last status = %s, want stopping", last.Status)
	}
}

func TestHealthReporter_NoPublisher(t *testing.T) {
	h := NewHealthReporter(HealthReporterConfig{})
	if err := h.PublishNow(); err != nil {
		t.Errorf("PublishNow() without publisher = %v", err)
	}
}
