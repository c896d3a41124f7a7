package hub

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-hub/internal/bridges/mqttdiscovery"
	"github.com/nerrad567/gray-logic-hub/internal/component/domain"
	"github.com/nerrad567/gray-logic-hub/internal/component/integration"
	"github.com/nerrad567/gray-logic-hub/internal/core/bus"
	"github.com/nerrad567/gray-logic-hub/internal/core/loop"
	"github.com/nerrad567/gray-logic-hub/internal/discovery"
	"github.com/nerrad567/gray-logic-hub/internal/discovery/mdns"
	"github.com/nerrad567/gray-logic-hub/internal/discovery/scan"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-hub/internal/setup"
)

// ErrUnknownComponent is returned for lookups of components the hub does not host.
var ErrUnknownComponent = errors.New("hub: unknown component")

// Metrics records hub activity. *influxdb.Client implements it.
type Metrics interface {
	WriteDiscovery(service, outcome string)
	WriteComponentSetup(component string)
}

// Options carries optional infrastructure. Nil fields disable the feature.
type Options struct {
	// Journal records every sighting.
	Journal scan.Journal

	// Metrics receives discovery and setup counters.
	Metrics Metrics

	// MQTT enables the discovery bridge when discovery.mqtt.enabled is set.
	MQTT mqttdiscovery.MQTTClient

	// Scanners are added to the scan component in addition to mDNS.
	Scanners []scan.Scanner
}

// Hub owns the loop, the event bus, the component loader and the
// discovery pipeline built on them.
//
// Thread Safety:
//   - Accessors are safe for concurrent use once New returns.
//   - Run must be called at most once.
type Hub struct {
	cfg    *config.Config
	logger *logging.Logger

	loop       *loop.Loop
	bus        *bus.Bus
	loader     *setup.Loader
	catalog    *discovery.Catalog
	dispatcher *discovery.Dispatcher
	scan       *scan.Component
	bridge     *mqttdiscovery.Bridge

	domains      map[string]*domain.Domain
	integrations map[string]*integration.Integration

	// eager components are set up by Start rather than on first discovery.
	eager []string
}

// New assembles a hub from configuration.
//
// The service catalog is the built-in table with the services: overlay
// applied. Every entity domain is registered with the loader, platform
// services are registered on their domain, and component and config-entry
// services get a generic integration.
//
// Parameters:
//   - cfg: Validated configuration
//   - logger: Root logger; each part gets a component logger
//   - opts: Optional infrastructure
//
// Returns:
//   - *Hub: Assembled hub, not yet running
//   - error: If the catalog overlay is invalid
func New(cfg *config.Config, logger *logging.Logger, opts Options) (*Hub, error) {
	catalog := discovery.DefaultCatalog()
	if err := catalog.Merge(ServiceOverlay(cfg.Services)); err != nil {
		return nil, fmt.Errorf("applying services overlay: %w", err)
	}

	lp := loop.New()
	h := &Hub{
		cfg:          cfg,
		logger:       logger,
		loop:         lp,
		loader:       setup.NewLoader(lp),
		catalog:      catalog,
		domains:      make(map[string]*domain.Domain),
		integrations: make(map[string]*integration.Integration),
	}
	h.loop.SetLogger(logger.Component("loop"))
	h.bus = bus.New(h.loop)
	h.loader.SetLogger(logger.Component("loader"))

	h.dispatcher = discovery.New(h.loop, h.bus, h.loader, catalog)
	h.dispatcher.SetLogger(logger.Component("discovery"))

	h.loader.OnLoaded(func(name string) {
		h.bus.Fire(discovery.EventComponentLoaded, map[string]any{discovery.AttrComponent: name})
		if opts.Metrics != nil {
			opts.Metrics.WriteComponentSetup(name)
		}
	})

	if err := h.registerComponents(); err != nil {
		return nil, err
	}

	h.scan = scan.New(h.loop, h.dispatcher, h.bus, scanConfig(cfg))
	h.scan.SetLogger(logger.Component("scan"))
	if opts.Journal != nil {
		h.scan.SetJournal(opts.Journal)
	}
	if opts.Metrics != nil {
		h.scan.SetMetrics(opts.Metrics)
	}
	if cfg.Discovery.MDNS.Enabled {
		h.scan.AddScanner(mdns.NewScanner(mdnsTypes(cfg.Discovery.MDNS.ServiceTypes), cfg.GetMDNSTimeout()))
	}
	for _, s := range opts.Scanners {
		h.scan.AddScanner(s)
	}

	if opts.MQTT != nil && cfg.Discovery.MQTT.Enabled {
		// #nosec G115 -- QoS validated to 0-2
		h.bridge = mqttdiscovery.New(opts.MQTT, h.bus, h.loop, h.scan, byte(cfg.MQTT.QoS))
		h.bridge.SetLogger(logger.Component("mqtt_discovery"))
		if err := h.loader.Register(h.bridge.Component()); err != nil {
			return nil, fmt.Errorf("registering mqtt discovery: %w", err)
		}
		h.eager = append(h.eager, mqttdiscovery.ComponentName)
	}

	return h, nil
}

// registerComponents registers domains and integrations for the catalog.
func (h *Hub) registerComponents() error {
	for _, name := range domain.Defaults {
		h.domain(name)
	}

	componentServices := make(map[string][]discovery.Service)
	configEntries := make(map[string]struct{})

	for _, e := range h.catalog.Entries() {
		switch e.Kind {
		case discovery.KindPlatform, discovery.KindOptional:
			h.domain(e.Component).RegisterPlatform(e.Platform, nil)
		case discovery.KindComponent:
			componentServices[e.Component] = append(componentServices[e.Component], e.Service)
		case discovery.KindConfigEntry:
			configEntries[e.Component] = struct{}{}
		}
	}

	for name, services := range componentServices {
		if _, isDomain := h.domains[name]; isDomain {
			continue
		}
		h.integrations[name] = integration.New(name, services, h.loop, h.dispatcher, h.bus)
	}
	for name := range configEntries {
		if _, ok := h.integrations[name]; !ok {
			h.integrations[name] = integration.New(name, nil, h.loop, h.dispatcher, h.bus)
		}
		h.eager = append(h.eager, name)
	}
	sort.Strings(h.eager)

	for _, d := range h.domains {
		if err := h.loader.Register(d.Component()); err != nil {
			return fmt.Errorf("registering domain %s: %w", d.Name(), err)
		}
	}
	for _, i := range h.integrations {
		i.SetLogger(h.logger.Component(i.Name()))
		if err := h.loader.Register(i.Component()); err != nil {
			return fmt.Errorf("registering integration %s: %w", i.Name(), err)
		}
	}
	return nil
}

// domain returns the named domain, creating it on first use.
func (h *Hub) domain(name string) *domain.Domain {
	if d, ok := h.domains[name]; ok {
		return d
	}
	d := domain.New(name, h.loop, h.dispatcher)
	d.SetLogger(h.logger.Component(name))
	h.domains[name] = d
	return d
}

// Start sets up the components that must exist before anything is
// discovered: config-entry integrations and the MQTT bridge.
//
// Setup waits on the loop, so Start must run while the loop is being
// served (Run does this), and never from a loop job.
func (h *Hub) Start(ctx context.Context) error {
	components := componentConfig(h.cfg.Components)
	for _, name := range h.eager {
		if err := h.loader.Setup(ctx, name, components); err != nil {
			return fmt.Errorf("setting up %s: %w", name, err)
		}
	}
	h.logger.Info("hub started",
		"services", len(h.catalog.Services()),
		"domains", len(h.domains),
		"integrations", len(h.integrations),
	)
	return nil
}

// Run starts the hub and blocks until ctx is cancelled.
// It serves the loop, then runs Start and the periodic scan.
func (h *Hub) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return h.loop.Run(gctx) })
	g.Go(func() error {
		if err := h.Start(gctx); err != nil {
			if gctx.Err() != nil {
				return nil // shutting down mid-start
			}
			return err
		}
		return h.scan.Run(gctx)
	})

	err := g.Wait()
	if h.bridge != nil {
		if stopErr := h.bridge.Stop(); stopErr != nil {
			h.logger.Warn("stopping mqtt discovery", "error", stopErr)
		}
	}
	return err
}

// Loop returns the hub's loop.
func (h *Hub) Loop() *loop.Loop { return h.loop }

// Bus returns the hub's event bus.
func (h *Hub) Bus() *bus.Bus { return h.bus }

// Loader returns the component loader.
func (h *Hub) Loader() *setup.Loader { return h.loader }

// Catalog returns the resolved service catalog.
func (h *Hub) Catalog() *discovery.Catalog { return h.catalog }

// Dispatcher returns the discovery dispatcher.
func (h *Hub) Dispatcher() *discovery.Dispatcher { return h.dispatcher }

// Scan returns the scan component.
func (h *Hub) Scan() *scan.Component { return h.scan }

// ComponentConfig returns the components: section as loader config.
func (h *Hub) ComponentConfig() setup.Config {
	return componentConfig(h.cfg.Components)
}

// Platforms returns the platforms announced to a domain.
func (h *Hub) Platforms(ctx context.Context, name string) ([]domain.Platform, error) {
	d, ok := h.domains[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownComponent, name)
	}
	return d.Platforms(ctx)
}

// Devices returns the devices known to an integration.
func (h *Hub) Devices(ctx context.Context, name string) ([]integration.Device, error) {
	i, ok := h.integrations[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownComponent, name)
	}
	return i.Devices(ctx)
}
