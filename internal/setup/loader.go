package setup

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/nerrad567/gray-logic-hub/internal/core/loop"
)

// Section is one component's configuration block.
type Section map[string]any

// Config is the hub configuration handed to component setup, keyed by
// component name (the `components:` block of config.yaml).
type Config map[string]Section

// Section returns the configuration for a component, or an empty section.
func (c Config) Section(name string) Section {
	if s, ok := c[name]; ok && s != nil {
		return s
	}
	return Section{}
}

// Func sets up one component. It may block on I/O.
type Func func(ctx context.Context, cfg Section) error

// Component describes a component that can be set up on demand.
type Component struct {
	// Name is the unique component name (e.g. "sensor", "mqtt").
	Name string

	// Dependencies are set up, in order, before this component.
	Dependencies []string

	// Setup performs the component's initialisation.
	Setup Func
}

// Logger defines the logging interface used by the Loader.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// Runner is the subset of the loop the loader keeps its loaded set on.
type Runner interface {
	Submit(job loop.Job)
	Call(ctx context.Context, fn func(ctx context.Context)) error
}

// Loader ensures each registered component is set up exactly once.
//
// Concurrent requests for the same component share one in-flight setup.
// Successful setups are remembered; failed ones are not, so a later
// discovery of the same device retries the setup.
//
// Thread Safety:
//   - Register, OnLoaded and Registered are safe for concurrent use.
//   - The loaded set lives on the loop. Setup marks a component loaded by
//     submitting a job, so the mark and the OnLoaded hooks run on the loop.
//   - Setup and EnsureSetup block on the loop and must not be called from a
//     loop job; run them in a task (loop.Go).
//   - IsLoaded and Loaded read the loop-confined set: call them from a loop
//     job or while the loop is idle. Other goroutines use LoadedSnapshot.
type Loader struct {
	runner Runner

	mu         sync.RWMutex
	components map[string]Component
	onLoaded   []func(name string)

	// loaded is confined to the loop.
	loaded map[string]struct{}

	inflight singleflight.Group
	logger   Logger
}

// NewLoader creates an empty loader whose loaded set lives on runner.
func NewLoader(runner Runner) *Loader {
	return &Loader{
		runner:     runner,
		components: make(map[string]Component),
		loaded:     make(map[string]struct{}),
		logger:     noopLogger{},
	}
}

// SetLogger sets the logger for the loader.
func (l *Loader) SetLogger(logger Logger) {
	l.logger = logger
}

// Register adds a component to the closed set of loadable components.
func (l *Loader) Register(c Component) error {
	if c.Name == "" || c.Setup == nil {
		return fmt.Errorf("%w: name and setup function are required", ErrInvalidComponent)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.components[c.Name]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, c.Name)
	}
	l.components[c.Name] = c
	return nil
}

// OnLoaded registers a callback invoked after each successful setup.
// Callbacks run on the loop, right after the component is marked loaded.
func (l *Loader) OnLoaded(fn func(name string)) {
	l.mu.Lock()
	l.onLoaded = append(l.onLoaded, fn)
	l.mu.Unlock()
}

// EnsureSetup sets up the component if needed and reports success.
//
// Failures are logged, never returned: callers on the discovery path have
// no one to report them to.
func (l *Loader) EnsureSetup(ctx context.Context, name string, cfg Config) bool {
	if err := l.Setup(ctx, name, cfg); err != nil {
		l.logger.Warn("component setup failed", "component", name, "error", err)
		return false
	}
	return true
}

// Setup sets up the component and its dependencies if needed.
//
// The setup routine is shared by every concurrent caller and is not
// cancelled when one of them gives up; a caller whose ctx ends stops
// waiting and gets ctx's error.
//
// Returns:
//   - error: ErrUnregisteredComponent, ErrDependencyCycle or ErrSetupFailed,
//     or the loop's error if the loaded set cannot be reached
func (l *Loader) Setup(ctx context.Context, name string, cfg Config) error {
	return l.setup(ctx, name, cfg, nil)
}

func (l *Loader) setup(ctx context.Context, name string, cfg Config, chain []string) error {
	loaded, err := l.checkLoaded(ctx, name)
	if err != nil || loaded {
		return err
	}

	l.mu.RLock()
	comp, ok := l.components[name]
	l.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnregisteredComponent, name)
	}

	if slices.Contains(chain, name) {
		return fmt.Errorf("%w: %v -> %s", ErrDependencyCycle, chain, name)
	}
	chain = append(chain, name)

	for _, dep := range comp.Dependencies {
		if err := l.setup(ctx, dep, cfg, chain); err != nil {
			return fmt.Errorf("%w: %s: dependency %s: %w", ErrSetupFailed, name, dep, err)
		}
	}

	shared := context.WithoutCancel(ctx)
	ch := l.inflight.DoChan(name, func() (any, error) {
		// A setup that finished just before this one started has already
		// queued its mark; checkLoaded runs after it.
		loaded, err := l.checkLoaded(shared, name)
		if err != nil || loaded {
			return nil, err
		}

		l.logger.Debug("setting up component", "component", name)
		if err := runSetup(shared, comp, cfg.Section(name)); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrSetupFailed, name, err)
		}

		l.runner.Submit(func(context.Context) { l.markLoaded(name) })
		return nil, nil
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return fmt.Errorf("waiting for %s setup: %w", name, ctx.Err())
	}
}

// checkLoaded reads the loaded set from off the loop.
func (l *Loader) checkLoaded(ctx context.Context, name string) (bool, error) {
	var loaded bool
	err := l.runner.Call(ctx, func(context.Context) {
		_, loaded = l.loaded[name]
	})
	return loaded, err
}

// markLoaded runs on the loop.
func (l *Loader) markLoaded(name string) {
	if _, ok := l.loaded[name]; ok {
		return
	}
	l.loaded[name] = struct{}{}
	l.logger.Info("component set up", "component", name)

	l.mu.RLock()
	hooks := slices.Clone(l.onLoaded)
	l.mu.RUnlock()
	for _, fn := range hooks {
		fn(name)
	}
}

// runSetup calls the setup function, converting a panic into an error.
func runSetup(ctx context.Context, comp Component, section Section) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return comp.Setup(ctx, section)
}

// IsLoaded reports whether the component has been set up.
// It must run on the loop or while the loop is idle.
func (l *Loader) IsLoaded(name string) bool {
	_, ok := l.loaded[name]
	return ok
}

// Loaded returns the set-up components, sorted by name.
// It must run on the loop or while the loop is idle.
func (l *Loader) Loaded() []string {
	return sortedKeys(l.loaded)
}

// LoadedSnapshot returns the set-up components, sorted by name, read on the loop.
func (l *Loader) LoadedSnapshot(ctx context.Context) ([]string, error) {
	var names []string
	err := l.runner.Call(ctx, func(context.Context) {
		names = sortedKeys(l.loaded)
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

// Registered returns the registered components, sorted by name.
func (l *Loader) Registered() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := make([]string, 0, len(l.components))
	for name := range l.components {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
