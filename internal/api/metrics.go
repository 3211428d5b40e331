package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/gray-logic-avr/internal/avr"
	"github.com/nerrad567/gray-logic-avr/internal/infrastructure/mqtt"
)

// SystemMetrics represents the system status response.
type SystemMetrics struct {
	Timestamp     string         `json:"timestamp"`
	Version       string         `json:"version"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Runtime       RuntimeMetrics `json:"runtime"`
	WebSocket     WSMetrics      `json:"websocket"`
	MQTT          *MQTTMetrics   `json:"mqtt,omitempty"`
	Receiver      avr.Status     `json:"receiver"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// MQTTMetrics contains MQTT client statistics. Only Connected is set when
// the checker does not report mqtt.Stats.
type MQTTMetrics struct {
	Connected      bool   `json:"connected"`
	Reconnects     uint64 `json:"reconnects"`
	Subscriptions  int    `json:"subscriptions"`
	RetainedTopics int    `json:"retained_topics"`
	LastError      string `json:"last_error,omitempty"`
}

// mqttStatsReporter is implemented by *mqtt.Client.
type mqttStatsReporter interface {
	Stats() mqtt.Stats
}

// handleSystem returns runtime statistics and the receiver snapshot.
// Counters for scraping live on /metrics.
func (s *Server) handleSystem(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		WebSocket: WSMetrics{
			ConnectedClients: s.hub.ClientCount(),
		},
		Receiver: s.bridge.Status(),
	}

	if s.mqtt != nil {
		metrics.MQTT = &MQTTMetrics{Connected: s.mqtt.IsConnected()}
		if r, ok := s.mqtt.(mqttStatsReporter); ok {
			st := r.Stats()
			metrics.MQTT.Reconnects = st.Reconnects
			metrics.MQTT.Subscriptions = st.Subscriptions
			metrics.MQTT.RetainedTopics = st.RetainedTopics
			metrics.MQTT.LastError = st.LastError
		}
	}

	writeJSON(w, http.StatusOK, metrics)
}
