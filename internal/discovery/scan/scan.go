package scan

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-hub/internal/core/bus"
	"github.com/nerrad567/gray-logic-hub/internal/core/loop"
	"github.com/nerrad567/gray-logic-hub/internal/discovery"
	"github.com/nerrad567/gray-logic-hub/internal/discovery/journal"
	"github.com/nerrad567/gray-logic-hub/internal/setup"
)

const (
	// DefaultInterval is the time between periodic scans.
	DefaultInterval = 300 * time.Second

	// maxParallelScanners bounds concurrent scanner goroutines per scan.
	maxParallelScanners = 4
)

// Outcome is what the scan component did with a sighting.
type Outcome string

const (
	OutcomeDispatched   Outcome = "dispatched"
	OutcomeDuplicate    Outcome = "duplicate"
	OutcomeIgnored      Outcome = "ignored"
	OutcomeMigrated     Outcome = "migrated"
	OutcomeUnregistered Outcome = "unregistered"
	OutcomeDisabled     Outcome = "disabled"
	OutcomeFailed       Outcome = "failed"
)

// Found is a service reported by a scanner.
type Found struct {
	Service discovery.Service
	Info    discovery.Info
}

// Scanner finds services on the network. Scan may block.
type Scanner interface {
	Name() string
	Scan(ctx context.Context) ([]Found, error)
}

// Runner is the subset of the loop the scan component uses.
type Runner interface {
	Submit(job loop.Job)
	Go(ctx context.Context, task func(ctx context.Context))
	Call(ctx context.Context, fn func(ctx context.Context)) error
}

// Dispatcher is the subset of the discovery dispatcher the scan component uses.
type Dispatcher interface {
	Catalog() *discovery.Catalog
	DiscoverAsync(service discovery.Service, info discovery.Info, component string, cfg setup.Config) error
	LoadPlatform(component, platform string, discovered discovery.Info, cfg setup.Config) error
}

// Firer fires bus events.
type Firer interface {
	Fire(t bus.EventType, data map[string]any) bus.Event
}

// Journal records sightings. See package journal.
type Journal interface {
	Record(ctx context.Context, s journal.Sighting) error
}

// Metrics counts sightings by outcome.
type Metrics interface {
	WriteDiscovery(service, outcome string)
}

// Logger defines the logging interface used by the scan component.
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

// Config holds scan component settings.
type Config struct {
	// Interval between scans. Zero uses DefaultInterval.
	Interval time.Duration

	// InitialDelay before the first scan.
	InitialDelay time.Duration

	// Ignore lists services that are never dispatched.
	Ignore []discovery.Service

	// Enable lists optional services to dispatch.
	Enable []discovery.Service

	// Components is passed to component setup on dispatch.
	Components setup.Config
}

// Component is the periodic discovery scan.
//
// It runs the registered scanners, suppresses sightings it has already
// dispatched, applies the ignore/enable policy, and hands new services to
// the dispatcher according to their catalog handler.
//
// Thread Safety:
//   - All exported methods are safe for concurrent use.
//   - The already-discovered set is confined to the loop.
type Component struct {
	loop       Runner
	dispatcher Dispatcher
	events     Firer
	cfg        Config
	ignore     map[discovery.Service]struct{}
	enable     map[discovery.Service]struct{}

	mu       sync.RWMutex
	scanners []Scanner

	journal Journal
	metrics Metrics
	logger  Logger

	// seen holds fingerprints of dispatched sightings. Loop-confined.
	seen map[string]struct{}
}

// New creates a scan component.
func New(runner Runner, dispatcher Dispatcher, events Firer, cfg Config) *Component {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}

	c := &Component{
		loop:       runner,
		dispatcher: dispatcher,
		events:     events,
		cfg:        cfg,
		ignore:     make(map[discovery.Service]struct{}, len(cfg.Ignore)),
		enable:     make(map[discovery.Service]struct{}, len(cfg.Enable)),
		logger:     noopLogger{},
		seen:       make(map[string]struct{}),
	}
	for _, s := range cfg.Ignore {
		c.ignore[s] = struct{}{}
	}
	for _, s := range cfg.Enable {
		c.enable[s] = struct{}{}
	}
	return c
}

// SetLogger sets the logger.
func (c *Component) SetLogger(logger Logger) {
	c.logger = logger
}

// SetJournal enables journaling of every sighting.
func (c *Component) SetJournal(j Journal) {
	c.journal = j
}

// SetMetrics enables outcome metrics.
func (c *Component) SetMetrics(m Metrics) {
	c.metrics = m
}

// AddScanner registers a scanner used by every subsequent scan.
func (c *Component) AddScanner(s Scanner) {
	c.mu.Lock()
	c.scanners = append(c.scanners, s)
	c.mu.Unlock()
}

// Run scans after the initial delay and then every interval until ctx is done.
func (c *Component) Run(ctx context.Context) error {
	if c.cfg.InitialDelay > 0 {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.cfg.InitialDelay):
		}
	}

	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	for {
		if n, err := c.ScanNow(ctx); err != nil {
			c.logger.Warn("discovery scan incomplete", "found", n, "error", err)
		} else {
			c.logger.Debug("discovery scan complete", "found", n)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// ScanNow runs every scanner once, in parallel, and queues the results.
//
// A failing scanner does not stop the others; its error is logged and
// included in the returned error.
//
// Returns:
//   - int: number of services reported by the scanners
//   - error: the joined scanner errors, if any
func (c *Component) ScanNow(ctx context.Context) (int, error) {
	c.mu.RLock()
	scanners := append([]Scanner(nil), c.scanners...)
	c.mu.RUnlock()

	var (
		resultsMu sync.Mutex
		results   []Found
		errs      []error
	)

	var g errgroup.Group
	g.SetLimit(maxParallelScanners)
	for _, s := range scanners {
		g.Go(func() error {
			found, err := s.Scan(ctx)

			resultsMu.Lock()
			defer resultsMu.Unlock()
			if err != nil {
				c.logger.Warn("scanner failed", "scanner", s.Name(), "error", err)
				errs = append(errs, fmt.Errorf("scanner %s: %w", s.Name(), err))
			}
			results = append(results, found...)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // scanner errors are collected in errs

	for _, f := range results {
		c.Found(f.Service, f.Info)
	}
	return len(results), errors.Join(errs...)
}

// Found queues a sighting for processing on the loop.
// Scanners that push results (MQTT announcements, the API) call it directly.
func (c *Component) Found(service discovery.Service, info discovery.Info) {
	c.loop.Submit(func(ctx context.Context) {
		c.process(ctx, Found{Service: service, Info: info})
	})
}

// SeenCount returns the number of distinct sightings dispatched so far.
func (c *Component) SeenCount(ctx context.Context) (int, error) {
	var n int
	err := c.loop.Call(ctx, func(context.Context) {
		n = len(c.seen)
	})
	return n, err
}

// process runs on the loop.
func (c *Component) process(ctx context.Context, f Found) {
	fp, err := Fingerprint(f.Service, f.Info)
	if err != nil {
		c.logger.Warn("cannot fingerprint discovery", "service", f.Service, "error", err)
		return
	}

	outcome := c.handle(f, fp)
	c.record(ctx, f, fp, outcome)
}

func (c *Component) handle(f Found, fp string) Outcome {
	handler, lookupErr := c.dispatcher.Catalog().Lookup(f.Service)

	if lookupErr == nil && handler.Kind == discovery.KindMigrated {
		return OutcomeMigrated
	}
	if _, ok := c.ignore[f.Service]; ok {
		c.logger.Info("ignoring service", "service", f.Service, "info", f.Info)
		return OutcomeIgnored
	}
	if _, ok := c.seen[fp]; ok {
		c.logger.Debug("already discovered service", "service", f.Service, "info", f.Info)
		return OutcomeDuplicate
	}

	outcome := c.dispatch(f, handler, lookupErr)
	c.seen[fp] = struct{}{}
	return outcome
}

func (c *Component) dispatch(f Found, h discovery.Handler, lookupErr error) Outcome {
	if lookupErr != nil {
		c.logger.Warn("unknown service discovered", "service", f.Service, "info", f.Info, "error", lookupErr)
		return OutcomeUnregistered
	}

	var err error
	switch h.Kind {
	case discovery.KindOptional:
		if _, ok := c.enable[f.Service]; !ok {
			c.logger.Debug("optional service not enabled", "service", f.Service)
			return OutcomeDisabled
		}
		err = c.dispatcher.LoadPlatform(h.Component, h.Platform, f.Info, c.cfg.Components)
	case discovery.KindPlatform:
		err = c.dispatcher.LoadPlatform(h.Component, h.Platform, f.Info, c.cfg.Components)
	case discovery.KindComponent:
		err = c.dispatcher.DiscoverAsync(f.Service, f.Info, h.Component, c.cfg.Components)
	case discovery.KindConfigEntry:
		c.events.Fire(discovery.EventConfigEntryDiscovered, map[string]any{
			discovery.AttrDomain:     h.Component,
			discovery.AttrDiscovered: f.Info,
		})
	}

	if err != nil {
		c.logger.Error("dispatching discovery", "service", f.Service, "error", err)
		return OutcomeFailed
	}
	c.logger.Info("found new service", "service", f.Service, "component", h.Component, "platform", h.Platform)
	return OutcomeDispatched
}

// record journals the sighting and counts it, off the loop.
func (c *Component) record(ctx context.Context, f Found, fp string, outcome Outcome) {
	if c.journal == nil && c.metrics == nil {
		return
	}

	s := journal.Sighting{
		Fingerprint: fp,
		Service:     string(f.Service),
		Info:        f.Info,
		Outcome:     string(outcome),
		SeenAt:      time.Now().UTC(),
	}
	c.loop.Go(ctx, func(ctx context.Context) {
		if c.metrics != nil {
			c.metrics.WriteDiscovery(s.Service, s.Outcome)
		}
		if c.journal != nil {
			if err := c.journal.Record(ctx, s); err != nil {
				c.logger.Warn("journaling sighting failed", "service", s.Service, "error", err)
			}
		}
	})
}

// Fingerprint returns a stable identifier for a (service, info) pair.
//
// The pair is serialised as a JSON array with object keys sorted, so two
// infos with equal contents fingerprint identically regardless of map order.
func Fingerprint(service discovery.Service, info discovery.Info) (string, error) {
	raw, err := json.Marshal([]any{service, info})
	if err != nil {
		return "", fmt.Errorf("encoding discovery: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
