package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-hub/internal/component/domain"
	"github.com/nerrad567/gray-logic-hub/internal/component/integration"
	"github.com/nerrad567/gray-logic-hub/internal/core/bus"
	"github.com/nerrad567/gray-logic-hub/internal/discovery"
	"github.com/nerrad567/gray-logic-hub/internal/discovery/journal"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-hub/internal/setup"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Catalog lists the services the hub knows how to handle.
type Catalog interface {
	Entries() []discovery.Entry
}

// Scanner is the slice of the scan component exposed over HTTP.
type Scanner interface {
	ScanNow(ctx context.Context) (int, error)
	Found(service discovery.Service, info discovery.Info)
	SeenCount(ctx context.Context) (int, error)
}

// PlatformLoader announces a platform to a component.
type PlatformLoader interface {
	LoadPlatform(component, platform string, discovered discovery.Info, cfg setup.Config) error
}

// Components reports registered and loaded components.
type Components interface {
	Registered() []string
	LoadedSnapshot(ctx context.Context) ([]string, error)
}

// Inspector reads loop-confined component state.
type Inspector interface {
	Platforms(ctx context.Context, component string) ([]domain.Platform, error)
	Devices(ctx context.Context, component string) ([]integration.Device, error)
}

// EventSource streams every bus event.
type EventSource interface {
	ListenAll(handler bus.Handler) (remove func())
}

// JournalReader reads the discovery journal.
type JournalReader interface {
	List(ctx context.Context, limit int) ([]journal.Entry, error)
	Get(ctx context.Context, fingerprint string) (*journal.Entry, error)
}

// HealthChecker is implemented by infrastructure clients reported on /health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
//
// Journal and Health are optional. Everything else is required.
type Deps struct {
	Config          config.APIConfig
	WS              config.WebSocketConfig
	Security        config.SecurityConfig
	Logger          *logging.Logger
	Catalog         Catalog
	Scan            Scanner
	Platforms       PlatformLoader
	Components      Components
	Inspector       Inspector
	Events          EventSource
	Journal         JournalReader
	ComponentConfig setup.Config
	Health          map[string]HealthChecker
	Version         string
}

// Server is the HTTP API server for the hub.
//
// It manages the HTTP listener, routes, middleware, and the WebSocket
// event stream. The server is created with New() and started with Start().
type Server struct {
	cfg        config.APIConfig
	wsCfg      config.WebSocketConfig
	secCfg     config.SecurityConfig
	logger     *logging.Logger
	catalog    Catalog
	scan       Scanner
	platforms  PlatformLoader
	components Components
	inspector  Inspector
	events     EventSource
	journal    JournalReader
	compCfg    setup.Config
	health     map[string]HealthChecker
	version    string

	server   *http.Server
	stream   *EventStream
	unlisten func()
	cancel   context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Hub collaborators plus API, WebSocket and JWT settings
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	switch {
	case deps.Logger == nil:
		return nil, fmt.Errorf("logger is required")
	case deps.Catalog == nil:
		return nil, fmt.Errorf("catalog is required")
	case deps.Scan == nil:
		return nil, fmt.Errorf("scan component is required")
	case deps.Platforms == nil:
		return nil, fmt.Errorf("platform loader is required")
	case deps.Components == nil:
		return nil, fmt.Errorf("component loader is required")
	case deps.Inspector == nil:
		return nil, fmt.Errorf("inspector is required")
	case deps.Events == nil:
		return nil, fmt.Errorf("event source is required")
	}

	return &Server{
		cfg:        deps.Config,
		wsCfg:      deps.WS,
		secCfg:     deps.Security,
		logger:     deps.Logger,
		catalog:    deps.Catalog,
		scan:       deps.Scan,
		platforms:  deps.Platforms,
		components: deps.Components,
		inspector:  deps.Inspector,
		events:     deps.Events,
		journal:    deps.Journal,
		compCfg:    deps.ComponentConfig,
		health:     deps.Health,
		version:    deps.Version,
		stream:     NewEventStream(deps.WS, deps.Logger),
	}, nil
}

// Handler returns the router without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections.
//
// It subscribes the WebSocket stream to the bus and launches the HTTP
// listener in a background goroutine. The server can be stopped with Close().
//
// Parameters:
//   - ctx: Parent context for the event stream
//
// Returns:
//   - error: If the server was already started
func (s *Server) Start(ctx context.Context) error {
	if s.server != nil {
		return fmt.Errorf("api server already started")
	}

	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	go s.stream.Run(srvCtx)

	// Runs on the loop; Broadcast never blocks.
	s.unlisten = s.events.ListenAll(func(_ context.Context, e bus.Event) {
		s.stream.Broadcast(string(e.Type), e)
	})

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.unlisten != nil {
		s.unlisten()
	}
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
