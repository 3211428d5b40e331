package influxdb

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-avr/internal/infrastructure/config"
)

type fakeWriter struct {
	mu      sync.Mutex
	points  []*write.Point
	flushes int
}

func (f *fakeWriter) WritePoint(p *write.Point) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.points = append(f.points, p)
}

func (f *fakeWriter) Flush() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushes++
}

func newTestClient() (*Client, *fakeWriter) {
	w := &fakeWriter{}
	return &Client{writer: w, connected: true}, w
}

func TestConnect_Disabled(t *testing.T) {
	_, err := Connect(config.InfluxDBConfig{Enabled: false})
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	_, err := Connect(config.InfluxDBConfig{Enabled: true, URL: "http://127.0.0.1:1"})
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestWriteStateChange(t *testing.T) {
	tests := []struct {
		name      string
		value     any
		wantPoint bool
		wantValue float64
	}{
		{"float", -32.5, true, -32.5},
		{"int", 3, true, 3},
		{"bool true", true, true, 1},
		{"bool false", false, true, 0},
		{"string skipped", "TUNER", false, 0},
		{"nil skipped", nil, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := newTestClient()
			c.WriteStateChange("lounge", "zoneMain.volume", tt.value)

			if !tt.wantPoint {
				if len(w.points) != 0 {
					t.Fatalf("points written = %d, want 0", len(w.points))
				}
				return
			}
			if len(w.points) != 1 {
				t.Fatalf("points written = %d, want 1", len(w.points))
			}
			line := write.PointToLineProtocol(w.points[0], 1)
			if !strings.HasPrefix(line, "avr_state,instance=lounge,path=zoneMain.volume value=") {
				t.Errorf("line protocol = %q", line)
			}
			if v := w.points[0].FieldList()[0].Value; v != tt.wantValue {
				t.Errorf("value = %v, want %v", v, tt.wantValue)
			}
		})
	}
}

func TestWriteConnection(t *testing.T) {
	c, w := newTestClient()
	c.WriteConnection("lounge", true)
	c.WriteConnection("lounge", false)

	if len(w.points) != 2 {
		t.Fatalf("points = %d, want 2", len(w.points))
	}
	if w.points[0].Name() != measurementConnection {
		t.Errorf("measurement = %q", w.points[0].Name())
	}
}

func TestWritesDroppedAfterClose(t *testing.T) {
	c, w := newTestClient()
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if w.flushes != 1 {
		t.Errorf("flushes on close = %d, want 1", w.flushes)
	}

	c.WriteStateChange("lounge", "zoneMain.volume", 1.0)
	c.Flush()
	if len(w.points) != 0 || w.flushes != 1 {
		t.Errorf("closed client wrote points=%d flushes=%d", len(w.points), w.flushes)
	}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() = %v, want ErrNotConnected", err)
	}
}

func TestSetOnError(t *testing.T) {
	c, _ := newTestClient()
	got := make(chan error, 1)
	c.SetOnError(func(err error) { got <- err })

	errs := make(chan error, 1)
	errs <- errors.New("write failed")
	close(errs)
	c.forwardErrors(errs)

	select {
	case err := <-got:
		if err.Error() != "write failed" {
			t.Errorf("callback error = %v", err)
		}
	default:
		t.Error("callback not invoked")
	}
}
