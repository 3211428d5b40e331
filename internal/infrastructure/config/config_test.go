package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
site:
  id: "test-site"
receiver:
  host: "192.168.1.40"
  poll_interval: 9
  command_delay: 150
state:
  backend: memory
  instance: "lounge"
mqtt:
  broker:
    host: "broker.local"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Receiver.Address() != "192.168.1.40:23" {
		t.Errorf("Receiver.Address() = %q, want %q", cfg.Receiver.Address(), "192.168.1.40:23")
	}
	if cfg.Receiver.GetPollInterval() != 9*time.Second {
		t.Errorf("GetPollInterval() = %v, want 9s", cfg.Receiver.GetPollInterval())
	}
	if cfg.Receiver.GetCommandDelay() != 150*time.Millisecond {
		t.Errorf("GetCommandDelay() = %v, want 150ms", cfg.Receiver.GetCommandDelay())
	}
	if cfg.Receiver.GetIdleTimeout() != 35*time.Second {
		t.Errorf("GetIdleTimeout() = %v, want default 35s", cfg.Receiver.GetIdleTimeout())
	}
	if cfg.State.Instance != "lounge" {
		t.Errorf("State.Instance = %q, want %q", cfg.State.Instance, "lounge")
	}
	if cfg.MQTT.Broker.Host != "broker.local" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "broker.local")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/config.yaml"); err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "invalid: [yaml: content")
	if _, err := Load(path); err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_MissingReceiverHost(t *testing.T) {
	path := writeConfig(t, "site:\n  id: x\n")
	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() expected validation error for missing receiver.host")
	}
	if !strings.Contains(err.Error(), "receiver.host") {
		t.Errorf("error = %v, want mention of receiver.host", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("AVRBRIDGE_RECEIVER_HOST", "10.0.0.9")
	t.Setenv("AVRBRIDGE_RECEIVER_PORT", "2323")
	t.Setenv("AVRBRIDGE_RECEIVER_DIALECT", "amplifier")
	t.Setenv("AVRBRIDGE_MQTT_PASSWORD", "secret")

	path := writeConfig(t, "receiver:\n  host: \"1.2.3.4\"\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Receiver.Address() != "10.0.0.9:2323" {
		t.Errorf("Address() = %q, want env override", cfg.Receiver.Address())
	}
	if cfg.Receiver.Dialect != "amplifier" {
		t.Errorf("Dialect = %q, want amplifier", cfg.Receiver.Dialect)
	}
	if cfg.MQTT.Auth.Password != "secret" {
		t.Errorf("MQTT password not overridden")
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := defaultConfig()
		cfg.Receiver.Host = "avr.local"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid config", mutate: func(*Config) {}},
		{name: "empty site id", mutate: func(c *Config) { c.Site.ID = "" }, wantErr: "site.id"},
		{name: "bad port", mutate: func(c *Config) { c.Receiver.Port = 0 }, wantErr: "receiver.port"},
		{name: "unknown dialect", mutate: func(c *Config) { c.Receiver.Dialect = "cassette" }, wantErr: "receiver.dialect"},
		{name: "zero poll interval", mutate: func(c *Config) { c.Receiver.PollInterval = 0 }, wantErr: "poll_interval"},
		{name: "negative command delay", mutate: func(c *Config) { c.Receiver.CommandDelay = -1 }, wantErr: "command_delay"},
		{name: "unknown backend", mutate: func(c *Config) { c.State.Backend = "redis" }, wantErr: "state.backend"},
		{name: "sqlite without path", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: "database.path"},
		{name: "memory without path", mutate: func(c *Config) { c.State.Backend = "memory"; c.Database.Path = "" }},
		{name: "publish without mqtt", mutate: func(c *Config) { c.State.PublishMQTT = true }, wantErr: "publish_mqtt"},
		{name: "invalid qos", mutate: func(c *Config) { c.MQTT.QoS = 3 }, wantErr: "mqtt.qos"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestDefault_AppliesEnv(t *testing.T) {
	t.Setenv("AVRBRIDGE_RECEIVER_HOST", "avr.example")
	cfg := Default()
	if cfg.Receiver.Host != "avr.example" {
		t.Errorf("Default().Receiver.Host = %q, want avr.example", cfg.Receiver.Host)
	}
	if cfg.Discovery.SearchTarget != "upnp:rootdevice" {
		t.Errorf("Discovery.SearchTarget = %q", cfg.Discovery.SearchTarget)
	}
}
