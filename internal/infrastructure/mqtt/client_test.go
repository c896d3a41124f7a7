package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/config"
)

func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Enabled: true,
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "graylogic-hub-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

type recordingLogger struct {
	mu     sync.Mutex
	errors []string
	warns  []string
}

func (l *recordingLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}

func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"HubEvent", topics.HubEvent("platform_discovered"), "graylogic/hub/event/platform_discovered"},
		{"Announcement", topics.Announcement("zigbee2mqtt"), "graylogic/discovery/zigbee2mqtt"},
		{"SystemStatus", topics.SystemStatus(), "graylogic/system/status"},
		{"AllHubEvents", topics.AllHubEvents(), "graylogic/hub/event/+"},
		{"AllAnnouncements", topics.AllAnnouncements(), "graylogic/discovery/+"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
			}
		})
	}
}

func TestSourceFromTopic(t *testing.T) {
	tests := []struct {
		topic  string
		want   string
		wantOk bool
	}{
		{"graylogic/discovery/zigbee2mqtt", "zigbee2mqtt", true},
		{"graylogic/discovery/", "", false},
		{"graylogic/discovery", "", false},
		{"graylogic/hub/event/component_loaded", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			got, ok := Topics{}.SourceFromTopic(tt.topic)
			if got != tt.want || ok != tt.wantOk {
				t.Errorf("SourceFromTopic(%q) = %q, %v; want %q, %v", tt.topic, got, ok, tt.want, tt.wantOk)
			}
		})
	}
}

func TestBuildStatusPayload(t *testing.T) {
	var online statusPayload
	if err := json.Unmarshal(buildStatusPayload("online", "hub-1", ""), &online); err != nil {
		t.Fatal(err)
	}
	if online.Status != "online" || online.ClientID != "hub-1" || online.Reason != "" || online.Timestamp == "" {
		t.Errorf("online payload = %+v", online)
	}

	raw := string(buildStatusPayload("offline", "hub-1", "graceful_shutdown"))
	if !strings.Contains(raw, `"reason":"graceful_shutdown"`) {
		t.Errorf("offline payload = %s", raw)
	}
}

func TestBrokerURL(t *testing.T) {
	cfg := testConfig()
	if got := brokerURL(cfg); got != "tcp://127.0.0.1:1883" {
		t.Errorf("brokerURL() = %q", got)
	}

	cfg.Broker.TLS = true
	cfg.Broker.Port = 8883
	if got := brokerURL(cfg); got != "ssl://127.0.0.1:8883" {
		t.Errorf("brokerURL() with TLS = %q", got)
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Username = "hub"
	cfg.Auth.Password = "secret"
	cfg.Broker.TLS = true

	opts := buildClientOptions(cfg)
	if opts.ClientID != "graylogic-hub-test" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if opts.Username != "hub" || opts.Password != "secret" {
		t.Errorf("credentials = %q/%q", opts.Username, opts.Password)
	}
	if !opts.AutoReconnect || !opts.CleanSession {
		t.Error("expected auto-reconnect with clean session")
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Errorf("TLSConfig = %+v", opts.TLSConfig)
	}
}

func TestPublish_Validation(t *testing.T) {
	c := newClient(testConfig())

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{"empty topic", "", []byte("{}"), 1, ErrInvalidTopic},
		{"invalid qos", "graylogic/test", []byte("{}"), 3, ErrInvalidQoS},
		{"oversized payload", "graylogic/test", make([]byte, maxPayloadSize+1), 1, ErrPublishFailed},
		{"not connected", "graylogic/test", []byte("{}"), 1, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPublishJSON_EncodeError(t *testing.T) {
	c := newClient(testConfig())

	err := c.PublishJSON("graylogic/test", map[string]any{"bad": make(chan int)})
	if !errors.Is(err, ErrPublishFailed) {
		t.Errorf("PublishJSON() error = %v, want ErrPublishFailed", err)
	}
}

func TestSubscribe_Validation(t *testing.T) {
	c := newClient(testConfig())
	handler := func(string, []byte) error { return nil }

	tests := []struct {
		name    string
		topic   string
		qos     byte
		handler MessageHandler
		wantErr error
	}{
		{"empty topic", "", 1, handler, ErrInvalidTopic},
		{"invalid qos", "graylogic/#", 5, handler, ErrInvalidQoS},
		{"nil handler", "graylogic/#", 1, nil, ErrSubscribeFailed},
		{"not connected", "graylogic/#", 1, handler, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Subscribe(tt.topic, tt.qos, tt.handler)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Subscribe() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if c.SubscriptionCount() != 0 || c.HasSubscription("graylogic/#") {
		t.Error("failed subscriptions must not be tracked")
	}
}

func TestUnsubscribe_Validation(t *testing.T) {
	c := newClient(testConfig())

	if err := c.Unsubscribe(""); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Unsubscribe(\"\") error = %v", err)
	}
	if err := c.Unsubscribe("graylogic/#"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Unsubscribe() error = %v, want ErrNotConnected", err)
	}
}

func TestHealthCheck_NotConnected(t *testing.T) {
	c := newClient(testConfig())

	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck() cancelled error = %v", err)
	}
}

func TestCloseNil(t *testing.T) {
	c := &Client{}
	if err := c.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v", err)
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true for nil client")
	}
}

func TestDeliver(t *testing.T) {
	c := newClient(testConfig())
	logger := &recordingLogger{}
	c.SetLogger(logger)

	var got string
	c.deliver(func(topic string, payload []byte) error {
		got = topic + "=" + string(payload)
		return nil
	}, "graylogic/discovery/x", []byte("{}"))
	if got != "graylogic/discovery/x={}" {
		t.Errorf("handler got %q", got)
	}

	c.deliver(func(string, []byte) error { return errors.New("bad payload") }, "t", nil)
	c.deliver(func(string, []byte) error { panic("boom") }, "t", nil)

	if len(logger.warns) != 1 || len(logger.errors) != 1 {
		t.Errorf("warns = %v, errors = %v; want one of each", logger.warns, logger.errors)
	}
}

func TestHandleDisconnect_Callback(t *testing.T) {
	c := newClient(testConfig())
	c.connected = true

	var gotErr error
	c.SetOnDisconnect(func(err error) { gotErr = err })

	lost := errors.New("connection reset")
	c.handleDisconnect(lost)

	if !errors.Is(gotErr, lost) {
		t.Errorf("callback error = %v", gotErr)
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true after disconnect")
	}
}
