package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/gray-logic-avr/internal/avr"
	"github.com/nerrad567/gray-logic-avr/internal/discovery"
	"github.com/nerrad567/gray-logic-avr/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-avr/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-avr/internal/state"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// stateRelayBuffer is the watcher buffer used for the WebSocket relay.
const stateRelayBuffer = 128

// Bridge is the part of the receiver bridge the API drives.
type Bridge interface {
	Submit(change state.StateChange) error
	Status() avr.Status
}

// Watcher delivers state writes as they happen.
type Watcher interface {
	Watch(buffer int) (<-chan state.Update, func())
}

// HistoryReader returns recent values of one state path, newest first.
type HistoryReader interface {
	History(ctx context.Context, id string, limit int) ([]state.State, error)
}

// Scanner finds receivers on the local network.
type Scanner interface {
	Scan(ctx context.Context) ([]discovery.Device, error)
}

// ConnectionChecker reports broker connectivity.
type ConnectionChecker interface {
	IsConnected() bool
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.APIConfig
	WS      config.WebSocketConfig
	Logger  *logging.Logger
	Store   state.Store
	Bridge  Bridge
	Watcher Watcher             // optional: enables the WebSocket state stream
	History HistoryReader       // optional: enables /states/{id}/history
	Scanner Scanner             // optional: enables /discovery
	Metrics prometheus.Gatherer // optional: enables /metrics
	MQTT    ConnectionChecker   // optional
	Version string
}

// Server is the HTTP API server for the AVR bridge.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	logger    *logging.Logger
	store     state.Store
	bridge    Bridge
	watcher   Watcher
	history   HistoryReader
	scanner   Scanner
	gatherer  prometheus.Gatherer
	mqtt      ConnectionChecker
	version   string
	startTime time.Time
	server    *http.Server
	hub       *Hub
	cancel    context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (logger, store, bridge) and optional extras
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("state store is required")
	}
	if deps.Bridge == nil {
		return nil, fmt.Errorf("bridge is required")
	}

	return &Server{
		cfg:       deps.Config,
		logger:    deps.Logger.Component("api"),
		store:     deps.Store,
		bridge:    deps.Bridge,
		watcher:   deps.Watcher,
		history:   deps.History,
		scanner:   deps.Scanner,
		gatherer:  deps.Metrics,
		mqtt:      deps.MQTT,
		version:   deps.Version,
		startTime: time.Now(),
		hub:       NewHub(deps.WS, deps.Logger.Component("websocket")),
	}, nil
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub, relays state writes to subscribed clients,
// and launches the HTTP listener in a background goroutine. The server can
// be stopped with Close().
//
// Parameters:
//   - ctx: Parent context for the background goroutines
//
// Returns:
//   - error: If the server fails to start
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)
	if s.watcher != nil {
		updates, stop := s.watcher.Watch(stateRelayBuffer)
		go s.relayStates(srvCtx, updates, stop)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.GetReadTimeout(),
		ReadHeaderTimeout: s.cfg.GetReadTimeout(),
		WriteTimeout:      s.cfg.GetWriteTimeout(),
		IdleTimeout:       s.cfg.GetIdleTimeout(),
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// relayStates forwards state writes to WebSocket clients until ctx ends.
func (s *Server) relayStates(ctx context.Context, updates <-chan state.Update, stop func()) {
	defer stop()
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			s.hub.BroadcastState(u)
		}
	}
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
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
