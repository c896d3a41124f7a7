package loop

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func drain(t *testing.T, l *Loop) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := l.Drain(ctx); err != nil {
		t.Fatalf("Drain() error = %v", err)
	}
}

func TestSubmit_NeverRunsInline(t *testing.T) {
	l := New()
	ran := false

	l.Submit(func(context.Context) { ran = true })

	if ran {
		t.Fatal("Submit() ran the job inline")
	}
	if l.Pending() != 1 {
		t.Errorf("Pending() = %d, want 1", l.Pending())
	}

	drain(t, l)

	if !ran {
		t.Error("job did not run after Drain()")
	}
}

func TestDrain_RunsJobsInSubmissionOrder(t *testing.T) {
	l := New()
	var got []int

	for i := 0; i < 5; i++ {
		l.Submit(func(context.Context) { got = append(got, i) })
	}
	drain(t, l)

	for i, v := range got {
		if v != i {
			t.Fatalf("job order = %v, want 0..4", got)
		}
	}
}

func TestDrain_FollowsNestedSubmissions(t *testing.T) {
	l := New()
	var got []string

	l.Submit(func(context.Context) {
		got = append(got, "outer")
		l.Submit(func(context.Context) {
			got = append(got, "inner")
		})
		// The nested job must not have run yet.
		if len(got) != 1 {
			t.Errorf("nested job ran inline")
		}
	})
	drain(t, l)

	if len(got) != 2 || got[1] != "inner" {
		t.Errorf("got = %v, want [outer inner]", got)
	}
}

func TestDrain_WaitsForTasks(t *testing.T) {
	l := New()
	release := make(chan struct{})
	var handedBack bool

	l.Submit(func(ctx context.Context) {
		l.Go(ctx, func(context.Context) {
			<-release
			l.Submit(func(context.Context) { handedBack = true })
		})
	})

	go func() {
		time.Sleep(10 * time.Millisecond)
		close(release)
	}()
	drain(t, l)

	if !handedBack {
		t.Error("Drain() returned before the task handed its result back")
	}
}

func TestJobPanicIsRecovered(t *testing.T) {
	l := New()
	rec := &recordingLogger{}
	l.SetLogger(rec)
	after := false

	l.Submit(func(context.Context) { panic("boom") })
	l.Submit(func(context.Context) { after = true })
	drain(t, l)

	if !after {
		t.Error("job after panicking job did not run")
	}
	if rec.count() != 1 {
		t.Errorf("logged errors = %d, want 1", rec.count())
	}
}

func TestTaskPanicIsRecovered(t *testing.T) {
	l := New()
	rec := &recordingLogger{}
	l.SetLogger(rec)

	l.Go(context.Background(), func(context.Context) { panic("boom") })
	drain(t, l)

	if rec.count() != 1 {
		t.Errorf("logged errors = %d, want 1", rec.count())
	}
}

func TestRun_ProcessesUntilCancelled(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	var value int
	callCtx, callCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer callCancel()
	if err := l.Call(callCtx, func(context.Context) { value = 42 }); err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if value != 42 {
		t.Errorf("value = %d, want 42", value)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run() error = %v", err)
	}

	if err := l.Call(context.Background(), func(context.Context) {}); !errors.Is(err, ErrLoopStopped) {
		t.Errorf("Call() after stop error = %v, want ErrLoopStopped", err)
	}
}

func TestRun_RejectsSecondConsumer(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	l.Submit(func(context.Context) { close(started) })
	go l.Run(ctx) //nolint:errcheck // Stopped by cancel
	<-started

	if err := l.Drain(context.Background()); !errors.Is(err, ErrLoopRunning) {
		t.Errorf("Drain() while running error = %v, want ErrLoopRunning", err)
	}
}

func TestCall_ContextCancelled(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Nobody consumes the loop, so only the context can end the call.
	if err := l.Call(ctx, func(context.Context) {}); !errors.Is(err, context.Canceled) {
		t.Errorf("Call() error = %v, want context.Canceled", err)
	}
}

func TestCall_QueuedWhenRunStops(t *testing.T) {
	l := New()
	runCtx, stopRun := context.WithCancel(context.Background())
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		l.Run(runCtx) //nolint:errcheck // stopped below
	}()

	started := make(chan struct{})
	release := make(chan struct{})
	l.Submit(func(context.Context) {
		close(started)
		<-release
	})
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var ran atomic.Bool
	errCh := make(chan error, 1)
	go func() {
		errCh <- l.Call(ctx, func(context.Context) { ran.Store(true) })
	}()

	deadline := time.Now().Add(2 * time.Second)
	for l.Pending() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Call() never queued its job")
		}
		time.Sleep(time.Millisecond)
	}

	stopRun()
	close(release)
	<-runDone

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrLoopStopped) {
			t.Errorf("Call() error = %v, want ErrLoopStopped", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Call() still waiting after Run returned")
	}
	if ran.Load() {
		t.Error("discarded job ran")
	}
}

type recordingLogger struct {
	mu     sync.Mutex
	errors int
}

func (r *recordingLogger) Error(string, ...any) {
	r.mu.Lock()
	r.errors++
	r.mu.Unlock()
}

func (r *recordingLogger) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errors
}
