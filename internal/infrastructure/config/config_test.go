package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const validJWTSecret = "test-secret-key-at-least-32-chars!"

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
hub:
  id: "test-hub"
database:
  path: "/tmp/test.db"
mqtt:
  enabled: true
  broker:
    host: "broker.local"
    port: 1883
  qos: 1
discovery:
  scan_interval: 60
  ignore: ["kodi"]
  enable: ["dlna_dmr"]
  mdns:
    service_types:
      "_hue._tcp": philips_hue
  mqtt:
    enabled: true
services:
  shelly:
    kind: platform
    component: switch
    platform: shelly
components:
  sensor:
    scan_interval: 30
security:
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Hub.ID != "test-hub" {
		t.Errorf("Hub.ID = %q, want test-hub", cfg.Hub.ID)
	}
	if cfg.MQTT.Broker.Host != "broker.local" {
		t.Errorf("MQTT.Broker.Host = %q", cfg.MQTT.Broker.Host)
	}
	if cfg.GetScanInterval() != time.Minute {
		t.Errorf("GetScanInterval() = %v, want 1m", cfg.GetScanInterval())
	}
	if len(cfg.Discovery.Ignore) != 1 || cfg.Discovery.Ignore[0] != "kodi" {
		t.Errorf("Discovery.Ignore = %v", cfg.Discovery.Ignore)
	}
	if cfg.Discovery.MDNS.ServiceTypes["_hue._tcp"] != "philips_hue" {
		t.Errorf("MDNS.ServiceTypes = %v", cfg.Discovery.MDNS.ServiceTypes)
	}
	if cfg.Services["shelly"].Platform != "shelly" {
		t.Errorf("Services[shelly] = %+v", cfg.Services["shelly"])
	}
	if cfg.Components["sensor"]["scan_interval"] != 30 {
		t.Errorf("Components[sensor] = %v", cfg.Components["sensor"])
	}

	// Defaults survive for keys the file does not set.
	if !cfg.Discovery.Journal {
		t.Error("Discovery.Journal default lost")
	}
	if cfg.Discovery.MDNS.Timeout != 5 {
		t.Errorf("MDNS.Timeout = %d, want default 5", cfg.Discovery.MDNS.Timeout)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	_, err := Load(writeConfig(t, `
hub:
  id: ""
security:
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
`))
	if err == nil {
		t.Error("Load() expected validation error for empty hub.id, got nil")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("GRAYLOGIC_JWT_SECRET", validJWTSecret)
	t.Setenv("GRAYLOGIC_API_PORT", "9100")
	t.Setenv("GRAYLOGIC_DISCOVERY_SCAN_INTERVAL", "120")
	t.Setenv("GRAYLOGIC_DATABASE_PATH", "/var/lib/hub.db")

	cfg, err := Load(writeConfig(t, "hub:\n  id: env-hub\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.API.Port != 9100 {
		t.Errorf("API.Port = %d, want 9100", cfg.API.Port)
	}
	if cfg.Discovery.ScanInterval != 120 {
		t.Errorf("Discovery.ScanInterval = %d, want 120", cfg.Discovery.ScanInterval)
	}
	if cfg.Database.Path != "/var/lib/hub.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults with secret", func(*Config) {}, ""},
		{"empty hub id", func(c *Config) { c.Hub.ID = "" }, "hub.id"},
		{"empty database path", func(c *Config) { c.Database.Path = "" }, "database.path"},
		{"bad qos", func(c *Config) { c.MQTT.QoS = 3 }, "mqtt.qos"},
		{"bad port", func(c *Config) { c.API.Port = 0 }, "api.port"},
		{"zero scan interval", func(c *Config) { c.Discovery.ScanInterval = 0 }, "scan_interval"},
		{"negative initial delay", func(c *Config) { c.Discovery.InitialDelay = -1 }, "initial_delay"},
		{"zero mdns timeout", func(c *Config) { c.Discovery.MDNS.Timeout = 0 }, "mdns.timeout"},
		{"mqtt discovery without mqtt", func(c *Config) { c.Discovery.MQTT.Enabled = true }, "requires mqtt.enabled"},
		{"service without kind", func(c *Config) {
			c.Services = map[string]ServiceConfig{"shelly": {Component: "switch"}}
		}, "services.shelly.kind"},
		{"missing secret", func(c *Config) { c.Security.JWT.Secret = "" }, "security.jwt.secret is required"},
		{"short secret", func(c *Config) { c.Security.JWT.Secret = "short" }, "at least 32"},
		{"no secret needed without api", func(c *Config) {
			c.API.Enabled = false
			c.Security.JWT.Secret = ""
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.Security.JWT.Secret = validJWTSecret
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

func TestConfig_Validate_ReportsAllErrors(t *testing.T) {
	cfg := defaultConfig()
	cfg.Hub.ID = ""
	cfg.API.Port = 70000

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() error = nil")
	}
	for _, want := range []string{"hub.id", "api.port", "security.jwt.secret"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestDurations(t *testing.T) {
	cfg := defaultConfig()

	if cfg.GetReadTimeout() != 30*time.Second {
		t.Errorf("GetReadTimeout() = %v", cfg.GetReadTimeout())
	}
	if cfg.GetIdleTimeout() != time.Minute {
		t.Errorf("GetIdleTimeout() = %v", cfg.GetIdleTimeout())
	}
	if cfg.GetScanInterval() != 300*time.Second {
		t.Errorf("GetScanInterval() = %v", cfg.GetScanInterval())
	}
	if cfg.GetMDNSTimeout() != 5*time.Second {
		t.Errorf("GetMDNSTimeout() = %v", cfg.GetMDNSTimeout())
	}
	if cfg.GetTokenTTL() != time.Hour {
		t.Errorf("GetTokenTTL() = %v", cfg.GetTokenTTL())
	}
}
