package setup

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-hub/internal/core/loop"
)

func countingComponent(name string, calls *atomic.Int32, err error, deps ...string) Component {
	return Component{
		Name:         name,
		Dependencies: deps,
		Setup: func(context.Context, Section) error {
			calls.Add(1)
			return err
		},
	}
}

func newTestLoader() (*Loader, *loop.Loop) {
	lp := loop.New()
	return NewLoader(lp), lp
}

// onTask runs fn as a loop task and drains the loop, the way discovery
// drives the loader.
func onTask(t *testing.T, lp *loop.Loop, fn func(ctx context.Context)) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	lp.Go(ctx, fn)
	if err := lp.Drain(ctx); err != nil {
		t.Fatalf("Drain() error = %v", err)
	}
}

func setupOnTask(t *testing.T, l *Loader, lp *loop.Loop, name string, cfg Config) error {
	t.Helper()
	var err error
	onTask(t, lp, func(ctx context.Context) { err = l.Setup(ctx, name, cfg) })
	return err
}

func TestRegister(t *testing.T) {
	l, _ := newTestLoader()
	var calls atomic.Int32

	tests := []struct {
		name    string
		comp    Component
		wantErr error
	}{
		{"valid", countingComponent("sensor", &calls, nil), nil},
		{"duplicate", countingComponent("sensor", &calls, nil), ErrAlreadyRegistered},
		{"missing name", Component{Setup: func(context.Context, Section) error { return nil }}, ErrInvalidComponent},
		{"missing setup", Component{Name: "light"}, ErrInvalidComponent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := l.Register(tt.comp)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Register() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if got := l.Registered(); len(got) != 1 || got[0] != "sensor" {
		t.Errorf("Registered() = %v, want [sensor]", got)
	}
}

func TestSetup_RunsOnce(t *testing.T) {
	l, lp := newTestLoader()
	var calls atomic.Int32
	if err := l.Register(countingComponent("sensor", &calls, nil)); err != nil {
		t.Fatal(err)
	}

	for range 3 {
		if err := setupOnTask(t, l, lp, "sensor", nil); err != nil {
			t.Fatalf("Setup() error = %v", err)
		}
	}

	if calls.Load() != 1 {
		t.Errorf("setup calls = %d, want 1", calls.Load())
	}
	if !l.IsLoaded("sensor") {
		t.Error("IsLoaded(sensor) = false")
	}
}

// queueRunner answers Calls inline and holds submitted jobs until flush,
// so a test can look at the loader between setup and the loop's next pass.
type queueRunner struct {
	mu   sync.Mutex
	jobs []loop.Job
}

func (r *queueRunner) Submit(job loop.Job) {
	r.mu.Lock()
	r.jobs = append(r.jobs, job)
	r.mu.Unlock()
}

func (r *queueRunner) Call(ctx context.Context, fn func(ctx context.Context)) error {
	fn(ctx)
	return nil
}

func (r *queueRunner) pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

func (r *queueRunner) flush() {
	r.mu.Lock()
	jobs := r.jobs
	r.jobs = nil
	r.mu.Unlock()
	for _, job := range jobs {
		job(context.Background())
	}
}

func TestSetup_MarksLoadedOnLoop(t *testing.T) {
	r := &queueRunner{}
	l := NewLoader(r)
	var calls atomic.Int32
	_ = l.Register(countingComponent("sensor", &calls, nil))

	var hooked []string
	l.OnLoaded(func(name string) { hooked = append(hooked, name) })

	if err := l.Setup(context.Background(), "sensor", nil); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("setup calls = %d, want 1", calls.Load())
	}
	if l.IsLoaded("sensor") {
		t.Fatal("sensor marked loaded before the loop ran")
	}
	if len(hooked) != 0 {
		t.Fatalf("OnLoaded ran before the loop: %v", hooked)
	}
	if r.pending() != 1 {
		t.Fatalf("pending loop jobs = %d, want 1", r.pending())
	}

	r.flush()

	if !l.IsLoaded("sensor") {
		t.Error("sensor not loaded after the loop ran")
	}
	if len(hooked) != 1 || hooked[0] != "sensor" {
		t.Errorf("OnLoaded calls = %v, want [sensor]", hooked)
	}
}

func TestSetup_ConcurrentCallersShareOneSetup(t *testing.T) {
	l, lp := newTestLoader()
	var calls atomic.Int32
	release := make(chan struct{})

	err := l.Register(Component{
		Name: "media_player",
		Setup: func(context.Context, Section) error {
			calls.Add(1)
			<-release
			return nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	results := make([]bool, 8)
	for i := range results {
		lp.Go(ctx, func(ctx context.Context) {
			results[i] = l.EnsureSetup(ctx, "media_player", nil)
		})
	}
	close(release)
	if err := lp.Drain(ctx); err != nil {
		t.Fatalf("Drain() error = %v", err)
	}

	if calls.Load() != 1 {
		t.Errorf("setup calls = %d, want 1", calls.Load())
	}
	for i, ok := range results {
		if !ok {
			t.Errorf("caller %d: EnsureSetup() = false", i)
		}
	}
}

func TestSetup_CallerCancelDoesNotFailSharedSetup(t *testing.T) {
	l, lp := newTestLoader()
	var calls atomic.Int32
	var once sync.Once
	entered := make(chan struct{})
	release := make(chan struct{})
	var setupCtxErr error

	err := l.Register(Component{
		Name: "climate",
		Setup: func(ctx context.Context, _ Section) error {
			calls.Add(1)
			once.Do(func() { close(entered) })
			<-release
			setupCtxErr = ctx.Err()
			return nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	firstCtx, cancelFirst := context.WithCancel(ctx)

	var firstErr error
	var secondOK bool
	firstDone := make(chan struct{})

	lp.Go(ctx, func(context.Context) {
		defer close(firstDone)
		firstErr = l.Setup(firstCtx, "climate", nil)
	})
	lp.Go(ctx, func(ctx context.Context) {
		<-entered
		secondOK = l.EnsureSetup(ctx, "climate", nil)
	})
	lp.Go(ctx, func(context.Context) {
		<-entered
		cancelFirst()
		<-firstDone
		close(release)
	})

	if err := lp.Drain(ctx); err != nil {
		t.Fatalf("Drain() error = %v", err)
	}

	if !errors.Is(firstErr, context.Canceled) {
		t.Errorf("cancelled caller error = %v, want context.Canceled", firstErr)
	}
	if !secondOK {
		t.Error("second caller EnsureSetup() = false")
	}
	if setupCtxErr != nil {
		t.Errorf("shared setup saw ctx error %v", setupCtxErr)
	}
	if calls.Load() != 1 {
		t.Errorf("setup calls = %d, want 1", calls.Load())
	}
	if !l.IsLoaded("climate") {
		t.Error("climate not loaded")
	}
}

func TestSetup_FailureIsNotRemembered(t *testing.T) {
	l, lp := newTestLoader()
	var calls atomic.Int32
	var fail atomic.Bool
	fail.Store(true)

	err := l.Register(Component{
		Name: "climate",
		Setup: func(context.Context, Section) error {
			calls.Add(1)
			if fail.Load() {
				return errors.New("cloud session refused")
			}
			return nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := setupOnTask(t, l, lp, "climate", nil); !errors.Is(err, ErrSetupFailed) {
		t.Fatalf("first Setup() error = %v, want ErrSetupFailed", err)
	}
	if l.IsLoaded("climate") {
		t.Fatal("failed component reported as loaded")
	}

	fail.Store(false)
	var ok bool
	onTask(t, lp, func(ctx context.Context) { ok = l.EnsureSetup(ctx, "climate", nil) })
	if !ok {
		t.Fatal("retry EnsureSetup() = false")
	}
	if calls.Load() != 2 {
		t.Errorf("setup calls = %d, want 2", calls.Load())
	}
}

func TestSetup_PanicBecomesError(t *testing.T) {
	l, lp := newTestLoader()
	err := l.Register(Component{
		Name:  "cover",
		Setup: func(context.Context, Section) error { panic("boom") },
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := setupOnTask(t, l, lp, "cover", nil); !errors.Is(err, ErrSetupFailed) {
		t.Errorf("Setup() error = %v, want ErrSetupFailed", err)
	}
}

func TestSetup_Unregistered(t *testing.T) {
	l, lp := newTestLoader()
	if err := setupOnTask(t, l, lp, "nope", nil); !errors.Is(err, ErrUnregisteredComponent) {
		t.Errorf("Setup() error = %v, want ErrUnregisteredComponent", err)
	}

	var ok bool
	onTask(t, lp, func(ctx context.Context) { ok = l.EnsureSetup(ctx, "nope", nil) })
	if ok {
		t.Error("EnsureSetup() = true for unregistered component")
	}
}

func TestSetup_LoopStopped(t *testing.T) {
	l, lp := newTestLoader()
	var calls atomic.Int32
	_ = l.Register(countingComponent("sensor", &calls, nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := lp.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if err := l.Setup(context.Background(), "sensor", nil); !errors.Is(err, loop.ErrLoopStopped) {
		t.Errorf("Setup() error = %v, want ErrLoopStopped", err)
	}
	if calls.Load() != 0 {
		t.Errorf("setup calls = %d, want 0", calls.Load())
	}
}

func TestSetup_Dependencies(t *testing.T) {
	l, lp := newTestLoader()
	var order []string
	record := func(name string, deps ...string) Component {
		return Component{
			Name:         name,
			Dependencies: deps,
			Setup: func(context.Context, Section) error {
				order = append(order, name)
				return nil
			},
		}
	}

	for _, c := range []Component{
		record("remote", "mqtt"),
		record("mqtt", "http"),
		record("http"),
	} {
		if err := l.Register(c); err != nil {
			t.Fatal(err)
		}
	}

	if err := setupOnTask(t, l, lp, "remote", nil); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	want := []string{"http", "mqtt", "remote"}
	if len(order) != len(want) {
		t.Fatalf("setup order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("setup order = %v, want %v", order, want)
			break
		}
	}
	if got := l.Loaded(); len(got) != 3 {
		t.Errorf("Loaded() = %v, want all three", got)
	}
}

func TestSetup_DependencyFailureSkipsComponent(t *testing.T) {
	l, lp := newTestLoader()
	var depCalls, calls atomic.Int32
	_ = l.Register(countingComponent("http", &depCalls, errors.New("port in use")))
	_ = l.Register(countingComponent("api", &calls, nil, "http"))

	err := setupOnTask(t, l, lp, "api", nil)
	if !errors.Is(err, ErrSetupFailed) {
		t.Fatalf("Setup() error = %v, want ErrSetupFailed", err)
	}
	if calls.Load() != 0 {
		t.Error("component set up despite failed dependency")
	}
}

func TestSetup_DependencyCycle(t *testing.T) {
	l, lp := newTestLoader()
	var calls atomic.Int32
	_ = l.Register(countingComponent("a", &calls, nil, "b"))
	_ = l.Register(countingComponent("b", &calls, nil, "a"))

	if err := setupOnTask(t, l, lp, "a", nil); !errors.Is(err, ErrDependencyCycle) {
		t.Errorf("Setup() error = %v, want ErrDependencyCycle", err)
	}
	if calls.Load() != 0 {
		t.Errorf("setup calls = %d, want 0", calls.Load())
	}
}

func TestSetup_PassesComponentSection(t *testing.T) {
	l, lp := newTestLoader()
	var got Section
	_ = l.Register(Component{
		Name: "sensor",
		Setup: func(_ context.Context, cfg Section) error {
			got = cfg
			return nil
		},
	})

	cfg := Config{"sensor": {"scan_interval": 30}, "light": {"x": 1}}
	if err := setupOnTask(t, l, lp, "sensor", cfg); err != nil {
		t.Fatal(err)
	}
	if got["scan_interval"] != 30 {
		t.Errorf("section = %v, want scan_interval 30", got)
	}
	if _, leaked := got["x"]; leaked {
		t.Error("section contains another component's keys")
	}
}

func TestOnLoaded(t *testing.T) {
	l, lp := newTestLoader()
	var calls atomic.Int32
	_ = l.Register(countingComponent("switch", &calls, nil))

	var loaded []string
	l.OnLoaded(func(name string) { loaded = append(loaded, name) })

	onTask(t, lp, func(ctx context.Context) {
		l.EnsureSetup(ctx, "switch", nil)
		l.EnsureSetup(ctx, "switch", nil)
	})

	if len(loaded) != 1 || loaded[0] != "switch" {
		t.Errorf("OnLoaded calls = %v, want [switch]", loaded)
	}
	if got := l.Loaded(); len(got) != 1 || got[0] != "switch" {
		t.Errorf("Loaded() = %v, want [switch]", got)
	}
}

func TestLoadedSnapshot(t *testing.T) {
	l, lp := newTestLoader()
	var calls atomic.Int32
	_ = l.Register(countingComponent("sensor", &calls, nil))
	_ = l.Register(countingComponent("light", &calls, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	runCtx, stop := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		lp.Run(runCtx) //nolint:errcheck // stopped below
	}()

	for _, name := range []string{"sensor", "light"} {
		if err := l.Setup(ctx, name, nil); err != nil {
			t.Fatalf("Setup(%s) error = %v", name, err)
		}
	}
	got, err := l.LoadedSnapshot(ctx)
	stop()
	<-done

	if err != nil {
		t.Fatalf("LoadedSnapshot() error = %v", err)
	}
	if len(got) != 2 || got[0] != "light" || got[1] != "sensor" {
		t.Errorf("LoadedSnapshot() = %v, want [light sensor]", got)
	}
}

func TestConfigSection_Missing(t *testing.T) {
	var cfg Config
	if s := cfg.Section("sensor"); s == nil {
		t.Error("Section() on nil config returned nil")
	}
}
