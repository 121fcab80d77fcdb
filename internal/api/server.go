// Package api provides the HTTP REST API and live push endpoints for the
// kiosk fleet core.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/kiosk-fleet-core/internal/audit"
	"github.com/nerrad567/kiosk-fleet-core/internal/auth"
	"github.com/nerrad567/kiosk-fleet-core/internal/device"
	"github.com/nerrad567/kiosk-fleet-core/internal/document"
	"github.com/nerrad567/kiosk-fleet-core/internal/infrastructure/config"
	"github.com/nerrad567/kiosk-fleet-core/internal/infrastructure/logging"
	"github.com/nerrad567/kiosk-fleet-core/internal/live"
	"github.com/nerrad567/kiosk-fleet-core/internal/resolver"
	"github.com/nerrad567/kiosk-fleet-core/internal/telemetry"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// HealthChecker reports whether a backing store is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config        config.APIConfig
	Live          config.LiveConfig
	Logger        *logging.Logger
	Registry      *device.Registry
	Recorder      *telemetry.Recorder
	Resolver      *resolver.Resolver
	Documents     *document.Store
	Hub           *live.Hub
	Audit         audit.Repository
	Authenticator *auth.Authenticator
	Authorizer    Authorizer
	Database      HealthChecker // optional: reported by /health
	Version       string
}

// Server is the HTTP API server for the kiosk fleet.
//
// It manages the HTTP listener, routes and middleware. Live connections
// are served through the injected hub. The server is created with New()
// and started with Start().
type Server struct {
	cfg           config.APIConfig
	liveCfg       config.LiveConfig
	logger        *logging.Logger
	registry      *device.Registry
	recorder      *telemetry.Recorder
	resolver      *resolver.Resolver
	documents     *document.Store
	hub           *live.Hub
	auditRepo     audit.Repository
	authenticator *auth.Authenticator
	authorizer    Authorizer
	database      HealthChecker
	version       string
	upgrader      websocket.Upgrader
	now           func() time.Time
	server        *http.Server
	cancel        context.CancelFunc // ends live streams on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Returns an error if a required dependency is missing. Database is the
// only optional one.
func New(deps Deps) (*Server, error) {
	switch {
	case deps.Logger == nil:
		return nil, fmt.Errorf("logger is required")
	case deps.Registry == nil:
		return nil, fmt.Errorf("device registry is required")
	case deps.Recorder == nil:
		return nil, fmt.Errorf("telemetry recorder is required")
	case deps.Resolver == nil:
		return nil, fmt.Errorf("resolver is required")
	case deps.Documents == nil:
		return nil, fmt.Errorf("document store is required")
	case deps.Hub == nil:
		return nil, fmt.Errorf("live hub is required")
	case deps.Audit == nil:
		return nil, fmt.Errorf("audit repository is required")
	case deps.Authenticator == nil:
		return nil, fmt.Errorf("authenticator is required")
	case deps.Authorizer == nil:
		return nil, fmt.Errorf("authorizer is required")
	}

	s := &Server{
		cfg:           deps.Config,
		liveCfg:       deps.Live,
		logger:        deps.Logger,
		registry:      deps.Registry,
		recorder:      deps.Recorder,
		resolver:      deps.Resolver,
		documents:     deps.Documents,
		hub:           deps.Hub,
		auditRepo:     deps.Audit,
		authenticator: deps.Authenticator,
		authorizer:    deps.Authorizer,
		database:      deps.Database,
		version:       deps.Version,
		now:           time.Now,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || s.isAllowedOrigin(origin)
		},
	}
	return s, nil
}

// Handler returns the fully wired router.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections.
//
// It builds the router and launches the HTTP listener in a background
// goroutine. Request contexts derive from ctx, so cancelling it (or
// calling Close) ends every live stream. The server can be stopped with
// Close().
//
// Returns an error if the server is already running.
func (s *Server) Start(ctx context.Context) error {
	if s.server != nil {
		return fmt.Errorf("api server already started")
	}

	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	s.server = &http.Server{
		BaseContext:       func(net.Listener) context.Context { return srvCtx },
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
// It waits up to 10 seconds for in-flight requests to complete, then
// forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	// Live streams never go idle on their own.
	s.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		s.server.Close() //nolint:errcheck // already failing shutdown
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
