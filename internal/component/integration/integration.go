package integration

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/nerrad567/gray-logic-hub/internal/core/bus"
	"github.com/nerrad567/gray-logic-hub/internal/discovery"
	"github.com/nerrad567/gray-logic-hub/internal/setup"
)

// Source says how a device reached the integration.
type Source string

const (
	SourceDiscovery   Source = "discovery"
	SourceConfigEntry Source = "config_entry"
)

// Device is a device an integration has been told about.
type Device struct {
	Key          string            `json:"key"`
	Service      discovery.Service `json:"service,omitempty"`
	Source       Source            `json:"source"`
	Info         discovery.Info    `json:"info,omitempty"`
	Sightings    int               `json:"sightings"`
	DiscoveredAt time.Time         `json:"discovered_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// Runner is the subset of the loop an integration uses.
type Runner interface {
	Call(ctx context.Context, fn func(ctx context.Context)) error
}

// ServiceListener registers discovery callbacks.
type ServiceListener interface {
	Listen(cb discovery.Callback, services ...discovery.Service) error
}

// EventSource is the subset of the bus an integration listens on.
type EventSource interface {
	Listen(t bus.EventType, handler bus.Handler) (remove func())
}

// Logger defines the logging interface used by integrations.
type Logger interface {
	Info(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}

// Integration is a vendor integration that is set up on demand when one of
// its services is discovered, or that accepts config entries for its domain.
//
// Thread Safety:
//   - Devices is safe for concurrent use.
//   - The device table is confined to the loop.
type Integration struct {
	name     string
	services []discovery.Service
	loop     Runner
	listener ServiceListener
	events   EventSource
	logger   Logger

	// devices is only touched from loop callbacks.
	devices map[string]*Device
}

// New creates an integration named name listening for services.
// services may be empty for integrations fed only by config entries.
func New(name string, services []discovery.Service, runner Runner, listener ServiceListener, events EventSource) *Integration {
	return &Integration{
		name:     name,
		services: services,
		loop:     runner,
		listener: listener,
		events:   events,
		logger:   noopLogger{},
		devices:  make(map[string]*Device),
	}
}

// SetLogger sets the logger for the integration.
func (i *Integration) SetLogger(logger Logger) {
	i.logger = logger
}

// Name returns the integration name.
func (i *Integration) Name() string {
	return i.name
}

// Component returns the loader registration for this integration.
func (i *Integration) Component() setup.Component {
	return setup.Component{Name: i.name, Setup: i.Setup}
}

// Setup subscribes the integration to its discovery services and to config
// entries addressed to its domain.
func (i *Integration) Setup(_ context.Context, _ setup.Section) error {
	if len(i.services) > 0 {
		if err := i.listener.Listen(i.onDiscovered, i.services...); err != nil {
			return fmt.Errorf("listening for %s services: %w", i.name, err)
		}
	}
	i.events.Listen(discovery.EventConfigEntryDiscovered, i.onConfigEntry)
	return nil
}

// onDiscovered runs on the loop.
func (i *Integration) onDiscovered(_ context.Context, service discovery.Service, info discovery.Info) {
	i.track(service, SourceDiscovery, info)
}

// onConfigEntry runs on the loop.
func (i *Integration) onConfigEntry(_ context.Context, e bus.Event) {
	if d, _ := e.Data[discovery.AttrDomain].(string); d != i.name {
		return
	}
	var info discovery.Info
	switch v := e.Data[discovery.AttrDiscovered].(type) {
	case discovery.Info:
		info = v
	case map[string]any:
		info = v
	}
	i.track("", SourceConfigEntry, info)
}

func (i *Integration) track(service discovery.Service, source Source, info discovery.Info) {
	key := DeviceKey(service, info)
	now := time.Now().UTC()

	dev, ok := i.devices[key]
	if !ok {
		dev = &Device{Key: key, Service: service, Source: source, DiscoveredAt: now}
		i.devices[key] = dev
		i.logger.Info("device added", "integration", i.name, "device", key, "source", source)
	}
	dev.Info = info
	dev.Sightings++
	dev.UpdatedAt = now
}

// DeviceKey identifies a device by its host when the info has one, and by
// service otherwise.
func DeviceKey(service discovery.Service, info discovery.Info) string {
	if host, ok := info["host"].(string); ok && host != "" {
		return host
	}
	if service != "" {
		return string(service)
	}
	return "unknown"
}

// Devices returns a snapshot of known devices, sorted by key.
func (i *Integration) Devices(ctx context.Context) ([]Device, error) {
	var out []Device
	err := i.loop.Call(ctx, func(context.Context) {
		out = make([]Device, 0, len(i.devices))
		for _, d := range i.devices {
			out = append(out, *d)
		}
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Key < out[b].Key })
	return out, nil
}
