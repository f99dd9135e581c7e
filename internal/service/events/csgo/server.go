package csgo

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"GameStateServer/internal/config"
	"GameStateServer/internal/service/events"
	"GameStateServer/internal/service/events/queue"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	// ErrAlreadyRunning is returned when the server is modified or started after Run.
	ErrAlreadyRunning = errors.New("csgo: server already running")
	// ErrHandleStopped is returned by a second Handle.Stop.
	ErrHandleStopped = errors.New("csgo: server already stopped")
)

const defaultShutdownTimeout = 5 * time.Second

// Server receives game state from CS:GO and fans every snapshot out to the
// registered listeners in arrival order. Configure and register listeners,
// then call Run once.
type Server struct {
	cfg    config.GSIConfig
	port   int
	logger *zap.SugaredLogger

	maxBodyBytes    int64
	shutdownTimeout time.Duration
	registry        *prometheus.Registry

	mu             sync.Mutex
	installed      bool
	running        bool
	listeners      []events.Listener
	asyncListeners []events.AsyncListener
}

// Option configures a Server.
type Option func(*Server)

// WithMaxBodyBytes limits the size of a single state payload.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) { s.maxBodyBytes = n }
}

// WithShutdownTimeout bounds Handle.Stop. Non-positive values keep the default.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

// WithMetrics registers ingest and dispatch metrics in reg and serves them on GET /metrics.
func WithMetrics(reg *prometheus.Registry) Option {
	return func(s *Server) { s.registry = reg }
}

// New only stores its arguments; nothing is written or bound until Install or Run.
func New(cfg config.GSIConfig, port int, logger *zap.SugaredLogger, opts ...Option) *Server {
	s := &Server{
		cfg:             cfg,
		port:            port,
		logger:          logger,
		maxBodyBytes:    events.DefaultMaxBodyBytes,
		shutdownTimeout: defaultShutdownTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Install writes the integration config into the configured cfg folder, or the
// one found through Steam when none is configured. Only the first successful call writes.
func (s *Server) Install() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.installLocked()
}

// InstallInto is Install with an explicit cfg folder.
func (s *Server) InstallInto(cfgFolder string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.installIntoLocked(cfgFolder)
}

func (s *Server) installLocked() error {
	if s.installed {
		return nil
	}
	folder, err := ResolveCfgFolder(s.cfg)
	if err != nil {
		return err
	}
	return s.installIntoLocked(folder)
}

func (s *Server) installIntoLocked(cfgFolder string) error {
	if s.installed {
		return nil
	}
	path, err := WriteConfig(cfgFolder, s.cfg, s.port)
	if err != nil {
		return err
	}
	s.installed = true
	s.logger.Infow("GSI config installed", "path", path)
	return nil
}

// AddEventListener registers l to run synchronously for every event.
func (s *Server) AddEventListener(l events.Listener) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrAlreadyRunning
	}
	s.listeners = append(s.listeners, l)
	return nil
}

// AddAsyncEventListener registers l to be awaited for every event, after all sync listeners.
func (s *Server) AddAsyncEventListener(l events.AsyncListener) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrAlreadyRunning
	}
	s.asyncListeners = append(s.asyncListeners, l)
	return nil
}

// Run installs the config if needed, then starts the HTTP listener on
// 127.0.0.1:<port> and the dispatch loop in their own goroutines and returns
// immediately. Only installation errors are returned; a failure to bind is
// logged and reported through Handle.ListenErr.
func (s *Server) Run() (*Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil, ErrAlreadyRunning
	}
	if err := s.installLocked(); err != nil {
		return nil, err
	}
	s.running = true

	var metrics *events.Metrics
	if s.registry != nil {
		metrics = events.NewMetrics(s.registry)
	}

	tx, rx := queue.New[events.Envelope]()
	srv := &http.Server{
		Addr:              localAddr(s.port),
		Handler:           s.routes(tx, metrics),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := newHandle(srv, tx, cancel, s.shutdownTimeout, s.logger)

	s.logger.Infow("Starting GSI server", "addr", srv.Addr)
	go h.serve()

	dispatcher := events.NewDispatcher(s.listeners, s.asyncListeners, s.logger, metrics)
	s.listeners, s.asyncListeners = nil, nil
	go func() {
		defer close(h.done)
		dispatcher.Run(ctx, rx)
	}()

	return h, nil
}

func (s *Server) routes(tx *queue.Sender[events.Envelope], metrics *events.Metrics) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Method(http.MethodPost, "/", events.NewIngestHandler(tx, s.logger,
		events.WithIngestMetrics(metrics),
		events.WithMaxBodyBytes(s.maxBodyBytes),
	))
	if s.registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}
	return r
}
