package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-avr/internal/avr"
	"github.com/nerrad567/gray-logic-avr/internal/discovery"
	"github.com/nerrad567/gray-logic-avr/internal/infrastructure/config"
)

// closedPort returns a localhost port with nothing listening on it.
func closedPort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()
	return port
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx, "/nonexistent/path/config.yaml"); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_MissingReceiverHost verifies validation errors stop startup.
func TestRun_MissingReceiverHost(t *testing.T) {
	t.Setenv("AVRBRIDGE_RECEIVER_HOST", "")
	path := writeConfig(t, `
state:
  backend: memory
logging:
  level: error
  format: text
`)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx, path)
	if err == nil || !strings.Contains(err.Error(), "receiver.host") {
		t.Fatalf("run() error = %v, want receiver.host validation error", err)
	}
}

// TestRun_MemoryBackend starts against an unreachable receiver and shuts
// down cleanly when the context ends.
func TestRun_MemoryBackend(t *testing.T) {
	path := writeConfig(t, fmt.Sprintf(`
receiver:
  host: 127.0.0.1
  port: %d
  connect_timeout: 1
state:
  backend: memory
logging:
  level: error
  format: text
`, closedPort(t)))

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	if err := run(ctx, path); err != nil {
		t.Fatalf("run() error: %v", err)
	}
}

// TestRun_SQLiteWithAPI serves the state store over HTTP while the receiver
// is unreachable.
func TestRun_SQLiteWithAPI(t *testing.T) {
	dir := t.TempDir()
	apiPort := closedPort(t)
	path := writeConfig(t, fmt.Sprintf(`
receiver:
  host: 127.0.0.1
  port: %d
  connect_timeout: 1
state:
  backend: sqlite
  instance: test
database:
  path: %s
  wal_mode: true
  busy_timeout: 5
api:
  enabled: true
  host: 127.0.0.1
  port: %d
logging:
  level: error
  format: text
`, closedPort(t), filepath.Join(dir, "avr.db"), apiPort))

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- run(ctx, path) }()

	url := fmt.Sprintf("http://127.0.0.1:%d/api/v1/states/info.connection", apiPort)
	var body string
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			b, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				body = string(b)
				break
			}
		}
		time.Sleep(50 * time.Millisecond)
	}
	if body == "" {
		cancel()
		t.Fatalf("API never served info.connection")
	}
	if !strings.Contains(body, `"val":false`) {
		t.Errorf("info.connection = %s, want val false", body)
	}

	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("run() error: %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("run() did not return after cancel")
	}

	if _, err := os.Stat(filepath.Join(dir, "avr.db")); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

// fakeReceiver answers each CR-terminated command from replies.
func fakeReceiver(t *testing.T, replies map[string]string) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { l.Close() })

	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		for {
			cmd, err := r.ReadString('\r')
			if err != nil {
				return
			}
			if reply, ok := replies[strings.TrimSuffix(cmd, "\r")]; ok {
				if _, err := conn.Write([]byte(reply + "\r")); err != nil {
					return
				}
			}
		}
	}()
	return l.Addr().String()
}

func receiverConfig(t *testing.T, addr string) config.ReceiverConfig {
	t.Helper()
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("split %q: %v", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("port %q: %v", portStr, err)
	}
	return config.ReceiverConfig{Host: host, Port: port, ConnectTimeout: 1, CommandDelay: 1}
}

func TestSendCommands(t *testing.T) {
	addr := fakeReceiver(t, map[string]string{
		"PW?": "PWON",
		"MV?": "MV455",
	})

	var out bytes.Buffer
	err := sendCommands(context.Background(), receiverConfig(t, addr), nil, nil,
		[]string{"PW?", "MV?"}, 300*time.Millisecond, &out)
	if err != nil {
		t.Fatalf("sendCommands() error: %v", err)
	}

	got := out.String()
	if !strings.Contains(got, "PWON\n") || !strings.Contains(got, "MV455\n") {
		t.Errorf("output = %q, want PWON and MV455 lines", got)
	}
}

func TestSendCommands_Unreachable(t *testing.T) {
	rc := config.ReceiverConfig{Host: "127.0.0.1", Port: closedPort(t), ConnectTimeout: 1}

	err := sendCommands(context.Background(), rc, nil, nil, []string{"PW?"}, time.Second, io.Discard)
	if !errors.Is(err, avr.ErrNotConnected) {
		t.Fatalf("sendCommands() error = %v, want ErrNotConnected", err)
	}
}

func TestPrintDevices(t *testing.T) {
	var out bytes.Buffer
	if err := printDevices(&out, nil); err != nil {
		t.Fatalf("printDevices: %v", err)
	}
	if !strings.Contains(out.String(), "no receivers found") {
		t.Errorf("empty output = %q", out.String())
	}

	out.Reset()
	err := printDevices(&out, []discovery.Device{
		{Address: "192.0.2.10", Name: "Lounge", Manufacturer: "Denon", Model: "AVR-X3700H"},
	})
	if err != nil {
		t.Fatalf("printDevices: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "ADDRESS") || !strings.Contains(lines[1], "AVR-X3700H") {
		t.Errorf("table = %q", out.String())
	}
}

func TestVersionCommand(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if !strings.HasPrefix(out.String(), "avrbridge "+version) {
		t.Errorf("output = %q", out.String())
	}
}

func TestSendCommand_RequiresHost(t *testing.T) {
	t.Setenv("AVRBRIDGE_RECEIVER_HOST", "")

	cmd := newRootCmd()
	cmd.SetOut(io.Discard)
	cmd.SetArgs([]string{"send", "PW?"})

	if err := cmd.Execute(); err == nil || !strings.Contains(err.Error(), "host is required") {
		t.Errorf("Execute() error = %v, want host required", err)
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("AVRBRIDGE_CONFIG", "")
	if got := getConfigPath(); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}

	t.Setenv("AVRBRIDGE_CONFIG", "/etc/avrbridge.yaml")
	if got := getConfigPath(); got != "/etc/avrbridge.yaml" {
		t.Errorf("getConfigPath() = %q", got)
	}
}
