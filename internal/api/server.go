package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/hearthgrid/hearth-core/internal/activity"
	"github.com/hearthgrid/hearth-core/internal/house"
	"github.com/hearthgrid/hearth-core/internal/infrastructure/config"
	"github.com/hearthgrid/hearth-core/internal/infrastructure/logging"
	"github.com/hearthgrid/hearth-core/internal/inventory"
	"github.com/hearthgrid/hearth-core/internal/relay"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// MetricSink receives per-component telemetry samples. Satisfied by
// influxdb.Client.
type MetricSink interface {
	WriteComponentMetric(houseID, componentID, measurement string, value float64)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config     config.ServerConfig
	WS         config.WebSocketConfig
	Security   config.SecurityConfig
	Logger     *logging.Logger
	Houses     house.Repository
	Inventory  *inventory.Registry
	Activity   activity.Repository
	Relay      *relay.Registry
	Dispatcher *relay.Dispatcher
	Correlator *relay.Correlator
	Notifier   *relay.Notifier
	Metrics    MetricSink // optional
	Version    string
}

// Server is the HTTP and WebSocket server for Hearth Core.
type Server struct {
	cfg        config.ServerConfig
	wsCfg      config.WebSocketConfig
	secCfg     config.SecurityConfig
	logger     *logging.Logger
	houses     house.Repository
	inventory  *inventory.Registry
	activity   activity.Repository
	relay      *relay.Registry
	dispatcher *relay.Dispatcher
	correlator *relay.Correlator
	notifier   *relay.Notifier
	metrics    MetricSink
	version    string
	server     *http.Server
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Houses == nil {
		return nil, fmt.Errorf("house repository is required")
	}
	if deps.Inventory == nil {
		return nil, fmt.Errorf("inventory registry is required")
	}
	if deps.Relay == nil || deps.Dispatcher == nil || deps.Correlator == nil || deps.Notifier == nil {
		return nil, fmt.Errorf("relay components are required")
	}

	return &Server{
		cfg:        deps.Config,
		wsCfg:      deps.WS,
		secCfg:     deps.Security,
		logger:     deps.Logger,
		houses:     deps.Houses,
		inventory:  deps.Inventory,
		activity:   deps.Activity,
		relay:      deps.Relay,
		dispatcher: deps.Dispatcher,
		correlator: deps.Correlator,
		notifier:   deps.Notifier,
		metrics:    deps.Metrics,
		version:    deps.Version,
	}, nil
}

// Start begins listening for HTTP connections.
//
// The listener runs in a background goroutine; stop it with Close().
// ctx becomes the base context for incoming request contexts.
func (s *Server) Start(ctx context.Context) error {
	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		BaseContext:       func(net.Listener) context.Context { return ctx },
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
// It waits up to 10 seconds for in-flight requests to complete, then
// forcefully closes remaining connections.
func (s *Server) Close() error {
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
