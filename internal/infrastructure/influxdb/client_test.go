package influxdb

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/config"
)

type fakeWriter struct {
	mu      sync.Mutex
	points  []*write.Point
	flushes int
}

func (w *fakeWriter) WritePoint(p *write.Point) {
	w.mu.Lock()
	w.points = append(w.points, p)
	w.mu.Unlock()
}

func (w *fakeWriter) Flush() {
	w.mu.Lock()
	w.flushes++
	w.mu.Unlock()
}

func (w *fakeWriter) lines() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.points))
	for _, p := range w.points {
		out = append(out, write.PointToLineProtocol(p, time.Nanosecond))
	}
	return out
}

func connectedClient() (*Client, *fakeWriter) {
	w := &fakeWriter{}
	return &Client{writeAPI: w, connected: true}, w
}

func TestConnect_Disabled(t *testing.T) {
	_, err := Connect(context.Background(), config.InfluxDBConfig{Enabled: false})
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := Connect(ctx, config.InfluxDBConfig{
		Enabled: true,
		URL:     "http://127.0.0.1:1",
		Org:     "graylogic",
		Bucket:  "hub",
	})
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestWriteDiscovery(t *testing.T) {
	c, w := connectedClient()

	c.WriteDiscovery("roku", "dispatched")

	lines := w.lines()
	if len(lines) != 1 {
		t.Fatalf("points = %d, want 1", len(lines))
	}
	for _, want := range []string{"discovery,", "outcome=dispatched", "service=roku", "count=1i"} {
		if !strings.Contains(lines[0], want) {
			t.Errorf("line %q missing %q", lines[0], want)
		}
	}
}

func TestWriteComponentSetup(t *testing.T) {
	c, w := connectedClient()

	c.WriteComponentSetup("media_player")

	lines := w.lines()
	if len(lines) != 1 || !strings.HasPrefix(lines[0], "component_setup,component=media_player ") {
		t.Errorf("lines = %v", lines)
	}
}

func TestWritePointWithTime(t *testing.T) {
	c, w := connectedClient()
	ts := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	c.WritePointWithTime("custom", map[string]string{"k": "v"}, map[string]any{"x": 1.5}, ts)

	lines := w.lines()
	want := "custom,k=v x=1.5 " + "1790856000000000000"
	if len(lines) != 1 || strings.TrimSpace(lines[0]) != want {
		t.Errorf("lines = %q, want %q", lines, want)
	}
}

func TestWrite_DroppedWhenDisconnected(t *testing.T) {
	c, w := connectedClient()
	c.connected = false

	c.WriteDiscovery("roku", "dispatched")
	c.Flush()

	if len(w.lines()) != 0 || w.flushes != 0 {
		t.Errorf("points = %d, flushes = %d; want none", len(w.lines()), w.flushes)
	}
}

func TestClose(t *testing.T) {
	c, w := connectedClient()

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
	if w.flushes != 1 {
		t.Errorf("flushes = %d, want 1", w.flushes)
	}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestClose_Nil(t *testing.T) {
	c := &Client{}
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestHandleWriteErrors(t *testing.T) {
	c, _ := connectedClient()

	var mu sync.Mutex
	var got []error
	c.SetOnError(func(err error) {
		mu.Lock()
		got = append(got, err)
		mu.Unlock()
	})

	ch := make(chan error, 1)
	ch <- errors.New("bucket not found")
	close(ch)
	c.handleWriteErrors(ch)

	if len(got) != 1 || !errors.Is(got[0], ErrWriteFailed) {
		t.Errorf("errors = %v, want one wrapping ErrWriteFailed", got)
	}
}
