package domain

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-hub/internal/core/loop"
	"github.com/nerrad567/gray-logic-hub/internal/discovery"
	"github.com/nerrad567/gray-logic-hub/internal/setup"
)

// ErrUnregisteredPlatform is reported for announced platforms the domain
// has no setup for.
var ErrUnregisteredPlatform = errors.New("domain: unregistered platform")

// Defaults lists the entity domains the hub hosts out of the box.
var Defaults = []string{
	"binary_sensor",
	"climate",
	"cover",
	"device_tracker",
	"light",
	"media_player",
	"remote",
	"sensor",
	"switch",
}

// PlatformSetup brings up one vendor platform for a discovered device.
// It runs off the loop and may block.
type PlatformSetup func(ctx context.Context, discovered discovery.Info) error

// Status of an announced platform.
type Status string

const (
	StatusLoading      Status = "loading"
	StatusLoaded       Status = "loaded"
	StatusFailed       Status = "failed"
	StatusUnregistered Status = "unregistered"
)

// Platform describes a platform announced to a domain.
type Platform struct {
	Name          string         `json:"name"`
	Status        Status         `json:"status"`
	Announcements int            `json:"announcements"`
	Discovered    discovery.Info `json:"discovered,omitempty"`
	Error         string         `json:"error,omitempty"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Runner is the subset of the loop a domain uses.
type Runner interface {
	Submit(job loop.Job)
	Go(ctx context.Context, task func(ctx context.Context))
	Call(ctx context.Context, fn func(ctx context.Context)) error
}

// PlatformListener subscribes to platform announcements.
type PlatformListener interface {
	ListenPlatform(component string, cb discovery.PlatformCallback) error
}

// Logger defines the logging interface used by domains.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// Domain is a generic entity domain ("sensor", "light", ...) that vendor
// platforms are loaded into as they are discovered.
//
// Thread Safety:
//   - RegisterPlatform and Platforms are safe for concurrent use.
//   - Announced platform records are confined to the loop.
type Domain struct {
	name     string
	loop     Runner
	listener PlatformListener
	logger   Logger

	mu     sync.RWMutex
	setups map[string]PlatformSetup

	// platforms is only touched from loop jobs.
	platforms map[string]*Platform
}

// New creates a domain. It does nothing until Setup is called by the loader.
func New(name string, runner Runner, listener PlatformListener) *Domain {
	return &Domain{
		name:      name,
		loop:      runner,
		listener:  listener,
		logger:    noopLogger{},
		setups:    make(map[string]PlatformSetup),
		platforms: make(map[string]*Platform),
	}
}

// SetLogger sets the logger for the domain.
func (d *Domain) SetLogger(logger Logger) {
	d.logger = logger
}

// Name returns the domain name.
func (d *Domain) Name() string {
	return d.name
}

// RegisterPlatform makes a platform loadable. A nil setup accepts the
// platform without further work.
func (d *Domain) RegisterPlatform(name string, fn PlatformSetup) {
	if fn == nil {
		fn = func(context.Context, discovery.Info) error { return nil }
	}
	d.mu.Lock()
	d.setups[name] = fn
	d.mu.Unlock()
}

// Component returns the loader registration for this domain.
func (d *Domain) Component() setup.Component {
	return setup.Component{Name: d.name, Setup: d.Setup}
}

// Setup subscribes the domain to platform announcements.
func (d *Domain) Setup(_ context.Context, _ setup.Section) error {
	if err := d.listener.ListenPlatform(d.name, d.onPlatform); err != nil {
		return fmt.Errorf("listening for %s platforms: %w", d.name, err)
	}
	return nil
}

// onPlatform runs on the loop.
func (d *Domain) onPlatform(ctx context.Context, platform string, discovered discovery.Info) {
	rec, ok := d.platforms[platform]
	if !ok {
		rec = &Platform{Name: platform}
		d.platforms[platform] = rec
	}
	rec.Announcements++
	rec.Discovered = discovered
	rec.UpdatedAt = time.Now().UTC()

	d.mu.RLock()
	fn, registered := d.setups[platform]
	d.mu.RUnlock()

	if !registered {
		rec.Status = StatusUnregistered
		rec.Error = ErrUnregisteredPlatform.Error()
		d.logger.Warn("platform not available", "domain", d.name, "platform", platform, "error", ErrUnregisteredPlatform)
		return
	}

	rec.Status = StatusLoading
	rec.Error = ""
	d.loop.Go(ctx, func(ctx context.Context) {
		err := fn(ctx, discovered)
		d.loop.Submit(func(context.Context) {
			d.finish(platform, err)
		})
	})
}

// finish runs on the loop.
func (d *Domain) finish(platform string, err error) {
	rec := d.platforms[platform]
	rec.UpdatedAt = time.Now().UTC()
	if err != nil {
		rec.Status = StatusFailed
		rec.Error = err.Error()
		d.logger.Warn("platform setup failed", "domain", d.name, "platform", platform, "error", err)
		return
	}
	rec.Status = StatusLoaded
	d.logger.Info("platform loaded", "domain", d.name, "platform", platform)
}

// Platforms returns a snapshot of the announced platforms, sorted by name.
func (d *Domain) Platforms(ctx context.Context) ([]Platform, error) {
	var out []Platform
	err := d.loop.Call(ctx, func(context.Context) {
		out = make([]Platform, 0, len(d.platforms))
		for _, p := range d.platforms {
			out = append(out, *p)
		}
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
