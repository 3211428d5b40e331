package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	measurementState      = "avr_state"
	measurementConnection = "avr_connection"
)

// WriteStateChange records one acknowledged state value.
//
// Numbers and booleans become the "value" field; other types are skipped
// because they cannot be aggregated.
//
// Example:
//
//	client.WriteStateChange("lounge", "zoneMain.volume", -32.5)
func (c *Client) WriteStateChange(instance, path string, value any) {
	field, ok := numericField(value)
	if !ok {
		return
	}
	c.writePoint(write.NewPoint(measurementState,
		map[string]string{"instance": instance, "path": path},
		map[string]any{"value": field},
		time.Now()))
}

// WriteConnection records a receiver link transition (1 connected, 0 lost).
func (c *Client) WriteConnection(instance string, connected bool) {
	v := 0
	if connected {
		v = 1
	}
	c.writePoint(write.NewPoint(measurementConnection,
		map[string]string{"instance": instance},
		map[string]any{"connected": v},
		time.Now()))
}

func (c *Client) writePoint(p *write.Point) {
	if !c.IsConnected() || c.writer == nil {
		return
	}
	c.writer.WritePoint(p)
}

// numericField converts value to a float64 field.
func numericField(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}
