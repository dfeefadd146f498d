package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/citywalk-core/internal/arsession"
	"github.com/nerrad567/citywalk-core/internal/audit"
	"github.com/nerrad567/citywalk-core/internal/auth"
	"github.com/nerrad567/citywalk-core/internal/building"
	"github.com/nerrad567/citywalk-core/internal/conversation"
	"github.com/nerrad567/citywalk-core/internal/infrastructure/config"
	"github.com/nerrad567/citywalk-core/internal/infrastructure/database"
	"github.com/nerrad567/citywalk-core/internal/infrastructure/logging"
	"github.com/nerrad567/citywalk-core/internal/navigation"
	"github.com/nerrad567/citywalk-core/internal/poi"
	"github.com/nerrad567/citywalk-core/internal/preference"
	"github.com/nerrad567/citywalk-core/internal/recognition"
	"github.com/nerrad567/citywalk-core/internal/route"
	"github.com/nerrad567/citywalk-core/internal/telemetry"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// auditChanSize is the buffer of the async audit writer. Entries beyond it
// are dropped.
const auditChanSize = 256

// StatusReporter reports whether an optional sink is connected.
type StatusReporter interface {
	IsConnected() bool
}

// BreakerReporter reports a collaborator's circuit breaker state.
type BreakerReporter interface {
	BreakerState() string
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger

	Conversations conversation.Repository
	RoutePlans    route.Repository
	Segments      *route.Service
	ARSessions    arsession.Repository
	POIs          *poi.Service
	Buildings     building.Repository
	Navigation    *navigation.Service
	Recognition   *recognition.Service
	Preferences   preference.Repository

	// Optional.
	DB        *database.DB
	Audit     audit.Repository
	Telemetry *telemetry.Recorder
	MQTT      StatusReporter
	InfluxDB  StatusReporter
	Breakers  map[string]BreakerReporter
	Version   string
}

// Server is the HTTP API server for CityWalk Core.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg    config.APIConfig
	wsCfg  config.WebSocketConfig
	secCfg config.SecurityConfig
	logger *logging.Logger

	conversations conversation.Repository
	routePlans    route.Repository
	segments      *route.Service
	arSessions    arsession.Repository
	pois          *poi.Service
	buildings     building.Repository
	navigation    *navigation.Service
	recognition   *recognition.Service
	preferences   preference.Repository

	db        *database.DB
	auditRepo audit.Repository
	auditCh   chan *audit.Entry
	telemetry *telemetry.Recorder
	mqtt      StatusReporter
	influx    StatusReporter
	breakers  map[string]BreakerReporter

	keys      *auth.KeyRing
	tickets   *auth.TicketStore
	hub       *Hub
	version   string
	startTime time.Time
	server    *http.Server
	cancel    context.CancelFunc
	done      chan struct{}
}

// New creates a new API server with the given dependencies.
//
// The hub is created here so telemetry can broadcast to it before Start.
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	required := []struct {
		name string
		ok   bool
	}{
		{"conversation repository", deps.Conversations != nil},
		{"route plan repository", deps.RoutePlans != nil},
		{"segment service", deps.Segments != nil},
		{"ar session repository", deps.ARSessions != nil},
		{"poi service", deps.POIs != nil},
		{"building repository", deps.Buildings != nil},
		{"navigation service", deps.Navigation != nil},
		{"recognition service", deps.Recognition != nil},
		{"preference repository", deps.Preferences != nil},
	}
	for _, r := range required {
		if !r.ok {
			return nil, fmt.Errorf("%s is required", r.name)
		}
	}

	s := &Server{
		cfg:           deps.Config,
		wsCfg:         deps.WS,
		secCfg:        deps.Security,
		logger:        deps.Logger.With("component", "api"),
		conversations: deps.Conversations,
		routePlans:    deps.RoutePlans,
		segments:      deps.Segments,
		arSessions:    deps.ARSessions,
		pois:          deps.POIs,
		buildings:     deps.Buildings,
		navigation:    deps.Navigation,
		recognition:   deps.Recognition,
		preferences:   deps.Preferences,
		db:            deps.DB,
		auditRepo:     deps.Audit,
		telemetry:     deps.Telemetry,
		mqtt:          deps.MQTT,
		influx:        deps.InfluxDB,
		breakers:      deps.Breakers,
		keys:          auth.NewKeyRing(deps.Security.Auth.APIKeys),
		tickets:       auth.NewTicketStore(),
		version:       deps.Version,
		startTime:     time.Now(),
	}
	if s.auditRepo != nil {
		s.auditCh = make(chan *audit.Entry, auditChanSize)
	}

	s.hub = NewHub(deps.WS, s.logger)
	s.hub.SetAuthorizer(s.authorizeChannel)
	if s.telemetry != nil {
		s.telemetry.SetBroadcaster(s.hub)
	}
	return s, nil
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *Hub { return s.hub }

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub, ticket cleanup and audit writer, then
// launches the HTTP listener in a background goroutine. The server can be
// stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	// Internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)
	go s.tickets.Run(srvCtx)
	if s.auditCh != nil {
		s.done = make(chan struct{})
		go func() {
			defer close(s.done)
			s.drainAuditLog(srvCtx)
		}()
	}

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
// It waits up to 10 seconds for in-flight requests to complete, then
// flushes queued audit entries.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	s.logger.Info("API server shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()
	err := s.server.Shutdown(ctx)

	// Stop background goroutines after requests have drained so their
	// audit entries are still written.
	if s.cancel != nil {
		s.cancel()
	}
	if s.done != nil {
		<-s.done
	}

	if err != nil {
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
