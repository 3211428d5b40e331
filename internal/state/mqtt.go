package state

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-avr/internal/infrastructure/mqtt"
)

// Publisher publishes retained MQTT messages.
type Publisher interface {
	PublishRetained(topic string, payload []byte) error
}

// Subscriber registers handlers for MQTT topics.
type Subscriber interface {
	Subscribe(topic string, handler func(topic string, payload []byte) error) error
}

// HistoryRecorder receives acknowledged values for time-series storage.
type HistoryRecorder interface {
	WriteStateChange(instance, path string, value any)
}

// Logger is the optional logger used by MQTTStore.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// MQTTStore decorates a Store, mirroring states and objects onto retained
// MQTT topics under graylogic/avr/<instance>/ and recording acknowledged
// values in an optional HistoryRecorder.
//
// Publish failures are logged; the underlying write has already succeeded.
type MQTTStore struct {
	Store

	pub      Publisher
	instance string
	history  HistoryRecorder

	logger   Logger
	loggerMu sync.RWMutex
}

type stateDoc struct {
	Val any    `json:"val"`
	Ack bool   `json:"ack"`
	TS  string `json:"ts"`
}

// NewMQTTStore wraps inner. history may be nil.
func NewMQTTStore(inner Store, pub Publisher, instance string, history HistoryRecorder) *MQTTStore {
	return &MQTTStore{Store: inner, pub: pub, instance: instance, history: history}
}

// SetLogger sets the logger for publish and decode failures.
func (m *MQTTStore) SetLogger(logger Logger) {
	m.loggerMu.Lock()
	m.logger = logger
	m.loggerMu.Unlock()
}

// SetState writes through, then publishes the retained state document.
func (m *MQTTStore) SetState(ctx context.Context, id string, val any, ack bool) error {
	if err := m.Store.SetState(ctx, id, val, ack); err != nil {
		return err
	}

	doc := stateDoc{Val: val, Ack: ack, TS: time.Now().UTC().Format(time.RFC3339Nano)}
	if st, ok, err := m.Store.GetState(ctx, id); err == nil && ok {
		doc.TS = st.TS.UTC().Format(time.RFC3339Nano)
	}
	m.publish(mqtt.Topics{}.State(m.instance, id), doc)

	if ack && m.history != nil {
		m.history.WriteStateChange(m.instance, id, val)
	}
	return nil
}

// ExtendObject writes through, then publishes the merged object.
func (m *MQTTStore) ExtendObject(ctx context.Context, obj Object) error {
	if err := m.Store.ExtendObject(ctx, obj); err != nil {
		return err
	}
	merged, ok, err := m.Store.GetObject(ctx, obj.ID)
	if err != nil || !ok {
		merged = obj
	}
	m.publish(mqtt.Topics{}.Object(m.instance, obj.ID), merged)
	return nil
}

// Listen subscribes to the instance's set topics. Each valid write is stored
// unacknowledged and handed to handle.
func (m *MQTTStore) Listen(sub Subscriber, handle func(StateChange)) error {
	topic := mqtt.Topics{}.AllSets(m.instance)
	err := sub.Subscribe(topic, func(topic string, payload []byte) error {
		id, ok := mqtt.Topics{}.PathFromSetTopic(m.instance, topic)
		if !ok {
			return fmt.Errorf("%w: topic %s", ErrInvalidID, topic)
		}
		change, err := ApplyHostWrite(context.Background(), m, id, decodePayload(payload))
		if err != nil {
			m.logDebug("host write rejected", "id", id, "error", err)
			return err
		}
		handle(change)
		return nil
	})
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	return nil
}

// decodePayload accepts a JSON value or, failing that, the raw text.
func decodePayload(payload []byte) any {
	var v any
	if err := json.Unmarshal(payload, &v); err != nil {
		return string(payload)
	}
	// {"val": x} is accepted as well as a bare value.
	if obj, ok := v.(map[string]any); ok {
		if inner, ok := obj["val"]; ok {
			return inner
		}
	}
	return v
}

func (m *MQTTStore) publish(topic string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		m.logWarn("encoding MQTT payload failed", "topic", topic, "error", err)
		return
	}
	if err := m.pub.PublishRetained(topic, payload); err != nil {
		m.logWarn("MQTT publish failed", "topic", topic, "error", err)
	}
}

func (m *MQTTStore) logWarn(msg string, args ...any) {
	m.loggerMu.RLock()
	defer m.loggerMu.RUnlock()
	if m.logger != nil {
		m.logger.Warn(msg, args...)
	}
}

func (m *MQTTStore) logDebug(msg string, args ...any) {
	m.loggerMu.RLock()
	defer m.loggerMu.RUnlock()
	if m.logger != nil {
		m.logger.Debug(msg, args...)
	}
}
