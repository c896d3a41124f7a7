package discovery

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/nerrad567/gray-logic-hub/internal/core/bus"
	"github.com/nerrad567/gray-logic-hub/internal/core/loop"
	"github.com/nerrad567/gray-logic-hub/internal/setup"
)

// Callback receives a discovered service and its info (nil if the event
// carried none). It runs on the loop and must not block.
type Callback func(ctx context.Context, service Service, info Info)

// PlatformCallback receives a platform announced for a component.
// It runs on the loop and must not block.
type PlatformCallback func(ctx context.Context, platform string, discovered Info)

// Runner is the subset of the loop the dispatcher schedules work on.
type Runner interface {
	Submit(job loop.Job)
	Go(ctx context.Context, task func(ctx context.Context))
}

// EventBus is the subset of the bus the dispatcher fires and listens on.
type EventBus interface {
	Listen(t bus.EventType, h bus.Handler) (remove func())
	Fire(t bus.EventType, data map[string]any) bus.Event
}

// ComponentLoader ensures a component has been set up.
type ComponentLoader interface {
	EnsureSetup(ctx context.Context, name string, cfg setup.Config) bool
}

// Logger defines the logging interface used by the Dispatcher.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type registration struct {
	services map[Service]struct{}
	callback Callback
}

// Dispatcher routes discovery events to the listeners registered for them
// and loads platforms on demand.
//
// Thread Safety:
//   - Listen, ListenPlatform, DiscoverAsync and LoadPlatform are safe to call
//     from any goroutine, including the loop.
//   - Discover blocks on component setup; never call it from the loop.
//   - The listener registry is confined to the loop: registrations are
//     applied by a loop job, ahead of any event fired after Listen returns.
type Dispatcher struct {
	loop    Runner
	bus     EventBus
	loader  ComponentLoader
	catalog *Catalog
	logger  Logger

	subscribe sync.Once

	// listeners is only touched from loop jobs.
	listeners []registration
}

// New creates a dispatcher.
//
// Parameters:
//   - runner: the hub loop
//   - events: the hub event bus
//   - loader: the component loader
//   - catalog: the closed set of services Listen and Discover accept
func New(runner Runner, events EventBus, loader ComponentLoader, catalog *Catalog) *Dispatcher {
	return &Dispatcher{
		loop:    runner,
		bus:     events,
		loader:  loader,
		catalog: catalog,
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the dispatcher.
func (d *Dispatcher) SetLogger(logger Logger) {
	d.logger = logger
}

// Catalog returns the catalog the dispatcher validates against.
func (d *Dispatcher) Catalog() *Catalog {
	return d.catalog
}

// Listen registers cb for discovery events of any of the given services.
//
// Registration fails fast: every service must be non-empty and present in
// the catalog. Listeners live for the life of the process.
func (d *Dispatcher) Listen(cb Callback, services ...Service) error {
	if len(services) == 0 {
		return ErrNoServices
	}
	for _, s := range services {
		if s == "" {
			return ErrInvalidService
		}
		if !d.catalog.Has(s) {
			return fmt.Errorf("%w: %s", ErrUnregisteredService, s)
		}
	}
	return d.listen(cb, services)
}

// ListenPlatform registers cb for platforms announced for component via
// LoadPlatform. cb receives the platform name and its discovery info.
func (d *Dispatcher) ListenPlatform(component string, cb PlatformCallback) error {
	if component == "" {
		return ErrInvalidComponent
	}
	if cb == nil {
		return ErrNilCallback
	}

	return d.listen(func(ctx context.Context, _ Service, info Info) {
		platform, _ := info[AttrPlatform].(string)
		cb(ctx, platform, asInfo(info[AttrDiscovered]))
	}, []Service{PlatformService(component)})
}

func (d *Dispatcher) listen(cb Callback, services []Service) error {
	if cb == nil {
		return ErrNilCallback
	}

	set := make(map[Service]struct{}, len(services))
	for _, s := range services {
		set[s] = struct{}{}
	}

	d.subscribe.Do(func() {
		d.bus.Listen(EventPlatformDiscovered, d.handleEvent)
	})

	d.loop.Submit(func(context.Context) {
		d.listeners = append(d.listeners, registration{services: set, callback: cb})
	})
	return nil
}

// handleEvent runs on the loop for every platform_discovered event.
func (d *Dispatcher) handleEvent(ctx context.Context, e bus.Event) {
	name, _ := e.Data[AttrService].(string)
	service := Service(name)

	// Platform-load listeners get the whole event data so they can unwrap
	// the platform field; plain listeners get the discovery info.
	info := asInfo(e.Data[AttrDiscovered])
	if IsPlatformService(service) {
		info = Info(e.Data)
	}

	for _, reg := range d.listeners {
		if _, ok := reg.services[service]; !ok {
			continue
		}
		d.invoke(ctx, reg.callback, service, info)
	}
}

func (d *Dispatcher) invoke(ctx context.Context, cb Callback, service Service, info Info) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("discovery listener panic recovered", "service", service, "panic", r)
		}
	}()
	cb(ctx, service, info)
}

// Discover announces a discovered service.
//
// If component is set, its setup is run first and waited for. A failed
// setup is logged and the event is fired anyway; listeners must cope with a
// component that is not ready. Discover does not deduplicate.
//
// Discover blocks and must not be called from the loop; use DiscoverAsync there.
//
// Returns:
//   - error: ErrUnregisteredService if the service is not in the catalog
func (d *Dispatcher) Discover(ctx context.Context, service Service, info Info, component string, cfg setup.Config) error {
	if err := d.checkService(service); err != nil {
		return err
	}

	if component != "" && !d.loader.EnsureSetup(ctx, component, cfg) {
		d.logger.Warn("announcing discovery for component that failed setup",
			"service", service, "component", component)
	}

	d.fireDiscovered(service, info)
	return nil
}

// DiscoverAsync is the non-blocking form of Discover. Component setup runs
// as a task off the loop and the event fires once it finishes.
func (d *Dispatcher) DiscoverAsync(service Service, info Info, component string, cfg setup.Config) error {
	if err := d.checkService(service); err != nil {
		return err
	}

	info = maps.Clone(info)
	if component == "" {
		d.fireDiscovered(service, info)
		return nil
	}

	d.loop.Submit(func(ctx context.Context) {
		d.loop.Go(ctx, func(ctx context.Context) {
			if !d.loader.EnsureSetup(ctx, component, cfg) {
				d.logger.Warn("announcing discovery for component that failed setup",
					"service", service, "component", component)
			}
			d.fireDiscovered(service, info)
		})
	})
	return nil
}

// LoadPlatform loads platform under component without blocking the caller.
//
// A job is scheduled that ensures component is set up and then announces
// the platform to ListenPlatform listeners. If setup fails, the job logs and
// stops: no event is fired and nothing is reported to the caller, which has
// already returned. Rediscovery of the device retries the load.
//
// Returns:
//   - error: ErrInvalidComponent for an empty component or platform name
func (d *Dispatcher) LoadPlatform(component, platform string, discovered Info, cfg setup.Config) error {
	if component == "" || platform == "" {
		return ErrInvalidComponent
	}

	discovered = maps.Clone(discovered)
	d.loop.Submit(func(ctx context.Context) {
		d.loop.Go(ctx, func(ctx context.Context) {
			if !d.loader.EnsureSetup(ctx, component, cfg) {
				d.logger.Warn("platform not loaded, component setup failed",
					"component", component, "platform", platform)
				return
			}

			d.bus.Fire(EventPlatformDiscovered, map[string]any{
				AttrService:    string(PlatformService(component)),
				AttrPlatform:   platform,
				AttrDiscovered: discovered,
			})
			d.logger.Debug("platform announced", "component", component, "platform", platform)
		})
	})
	return nil
}

func (d *Dispatcher) checkService(service Service) error {
	if service == "" {
		return ErrInvalidService
	}
	if !d.catalog.Has(service) {
		return fmt.Errorf("%w: %s", ErrUnregisteredService, service)
	}
	return nil
}

func (d *Dispatcher) fireDiscovered(service Service, info Info) {
	data := map[string]any{AttrService: string(service)}
	if info != nil {
		data[AttrDiscovered] = maps.Clone(info)
	}
	d.bus.Fire(EventPlatformDiscovered, data)
}
