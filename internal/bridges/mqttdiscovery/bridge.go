package mqttdiscovery

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nerrad567/gray-logic-hub/internal/core/bus"
	"github.com/nerrad567/gray-logic-hub/internal/discovery"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-hub/internal/setup"
)

// ComponentName is the loader name of the bridge.
const ComponentName = "mqtt_discovery"

// MirroredEvents are the bus events published to MQTT.
var MirroredEvents = []bus.EventType{
	discovery.EventPlatformDiscovered,
	discovery.EventConfigEntryDiscovered,
	discovery.EventComponentLoaded,
}

// MQTTClient is the subset of the MQTT client the bridge uses.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// EventSource is the subset of the bus the bridge listens on.
type EventSource interface {
	Listen(t bus.EventType, handler bus.Handler) (remove func())
}

// Runner runs publishes off the loop.
type Runner interface {
	Go(ctx context.Context, task func(ctx context.Context))
}

// Sink receives decoded announcements. The scan component implements it.
type Sink interface {
	Found(service discovery.Service, info discovery.Info)
}

// Logger defines the logging interface used by the bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Bridge connects the hub's discovery to an MQTT broker.
//
// Inbound, devices or external scanners publish an Announcement to
// graylogic/discovery/{source}; each one is handed to the Sink and goes
// through the same dedup and dispatch as locally scanned services.
// Outbound, every mirrored bus event is published as JSON to
// graylogic/hub/event/{event_type}.
//
// Thread Safety:
//   - Start and Stop are safe for concurrent use.
//   - Bus handlers run on the loop and only encode; publishing runs off it.
type Bridge struct {
	client MQTTClient
	events EventSource
	runner Runner
	sink   Sink
	qos    byte
	logger Logger

	mu      sync.Mutex
	started bool
	removes []func()
}

// New creates a bridge. Nothing is subscribed until Start.
func New(client MQTTClient, events EventSource, runner Runner, sink Sink, qos byte) *Bridge {
	return &Bridge{
		client: client,
		events: events,
		runner: runner,
		sink:   sink,
		qos:    qos,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the bridge.
func (b *Bridge) SetLogger(logger Logger) {
	b.logger = logger
}

// Component returns the loader registration for the bridge.
func (b *Bridge) Component() setup.Component {
	return setup.Component{
		Name: ComponentName,
		Setup: func(ctx context.Context, _ setup.Section) error {
			return b.Start(ctx)
		},
	}
}

// Start subscribes to announcements and begins mirroring events.
// Calling Start on a started bridge is a no-op.
func (b *Bridge) Start(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.started {
		return nil
	}

	if err := b.client.Subscribe(mqtt.Topics{}.AllAnnouncements(), b.qos, b.handleAnnouncement); err != nil {
		return fmt.Errorf("subscribing to announcements: %w", err)
	}

	for _, t := range MirroredEvents {
		b.removes = append(b.removes, b.events.Listen(t, b.mirror))
	}
	b.started = true
	return nil
}

// Stop removes the bus listeners and the announcement subscription.
func (b *Bridge) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.started {
		return nil
	}

	for _, remove := range b.removes {
		remove()
	}
	b.removes = nil
	b.started = false

	if err := b.client.Unsubscribe(mqtt.Topics{}.AllAnnouncements()); err != nil {
		return fmt.Errorf("unsubscribing from announcements: %w", err)
	}
	return nil
}

// handleAnnouncement runs on a paho goroutine.
func (b *Bridge) handleAnnouncement(topic string, payload []byte) error {
	source, ok := mqtt.Topics{}.SourceFromTopic(topic)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnexpectedTopic, topic)
	}

	a, err := ParseAnnouncement(payload)
	if err != nil {
		return fmt.Errorf("announcement from %s: %w", source, err)
	}

	b.logger.Debug("announcement received", "source", source, "service", a.Service)
	b.sink.Found(a.Service, a.Info)
	return nil
}

// mirror runs on the loop.
func (b *Bridge) mirror(ctx context.Context, e bus.Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		b.logger.Warn("encoding event for mqtt failed", "event_type", e.Type, "error", err)
		return
	}

	topic := mqtt.Topics{}.HubEvent(string(e.Type))
	b.runner.Go(ctx, func(context.Context) {
		if err := b.client.Publish(topic, payload, b.qos, false); err != nil {
			b.logger.Warn("publishing event failed", "topic", topic, "error", err)
		}
	})
}
