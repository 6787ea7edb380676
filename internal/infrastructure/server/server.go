package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/gzhttp"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/securevm/internal/api/http"
	"github.com/GriffinCanCode/securevm/internal/api/middleware"
	"github.com/GriffinCanCode/securevm/internal/api/ws"
	"github.com/GriffinCanCode/securevm/internal/domain/session"
	"github.com/GriffinCanCode/securevm/internal/infrastructure/config"
	"github.com/GriffinCanCode/securevm/internal/infrastructure/logging"
	"github.com/GriffinCanCode/securevm/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/securevm/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/securevm/internal/realm"
	"github.com/GriffinCanCode/securevm/internal/sandbox"
	"github.com/GriffinCanCode/securevm/internal/shared/utils"
)

const shutdownTimeout = 10 * time.Second

// Server wraps the HTTP server and dependencies
type Server struct {
	handler  http.Handler
	pool     *sandbox.Pool
	sessions *session.Manager
	tracer   *tracing.Tracer
	logger   *logging.Logger
	metrics  *monitoring.Metrics

	httpServer *http.Server
	sweepCtx   context.Context
	stopSweep  context.CancelFunc
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config) (*Server, error) {
	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	logger.Info("Initializing securevm server",
		zap.String("port", cfg.Server.Port),
		zap.Int("pool_size", cfg.Sandbox.PoolSize),
		zap.Int("max_sessions", cfg.Sandbox.MaxSessions),
	)

	corsHandler, err := middleware.CORS(cfg.Server.AllowedOrigins)
	if err != nil {
		return nil, err
	}

	// Initialize metrics first (needed by other components)
	metrics := monitoring.NewMetrics()

	tracer := tracing.New("securevm", logger.Logger)

	opts, err := sandboxOptions(cfg.Sandbox, logger, metrics)
	if err != nil {
		tracer.Close()
		return nil, err
	}
	sandboxCfg := sandboxConfig(cfg.Sandbox)

	pool, err := sandbox.NewPool(sandboxCfg, cfg.Sandbox.PoolSize, opts...)
	if err != nil {
		tracer.Close()
		return nil, fmt.Errorf("failed to create sandbox pool: %w", err)
	}
	logger.Info("Sandbox pool ready", zap.Int("size", cfg.Sandbox.PoolSize))

	sessions := session.NewManager(
		func(bindings map[string]interface{}) (*sandbox.Context, error) {
			return sandbox.New(sandboxCfg, bindings, opts...)
		},
		session.Config{
			MaxSessions: cfg.Sandbox.MaxSessions,
			TTL:         cfg.Sandbox.SessionTTL,
		},
		session.WithRecorder(metrics),
		session.WithLogger(logger.Named("session").Logger),
	)

	// Create router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger.Named("http").Logger))
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics, "/metrics"))
	router.Use(corsHandler)
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		limits := middleware.DefaultRateLimitConfig()
		limits.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		limits.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(limits))
	}
	router.Use(middleware.BodyLimit(utils.MaxCodeSize + utils.MaxBindingsSize + 4*1024))

	// Register routes
	handlers := apihttp.NewHandlers(pool, sessions, metrics, tracer, logger.Named("api").Logger)
	handlers.Register(router)

	wsHandler := ws.NewHandler(sessions, metrics, logger.Named("repl").Logger)
	router.GET("/v1/sessions/:id/repl", wsHandler.HandleConnection)

	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	handler := compress(router)
	httpServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	sweepCtx, stopSweep := context.WithCancel(context.Background())

	logger.Info("Server initialized successfully")

	return &Server{
		handler:    handler,
		pool:       pool,
		sessions:   sessions,
		tracer:     tracer,
		logger:     logger,
		metrics:    metrics,
		httpServer: httpServer,
		sweepCtx:   sweepCtx,
		stopSweep:  stopSweep,
	}, nil
}

func newLogger(cfg config.LogConfig) (*logging.Logger, error) {
	if cfg.Development {
		return logging.NewDevelopment(), nil
	}
	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Level
	logger, err := logging.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}

func sandboxConfig(cfg config.SandboxConfig) sandbox.Config {
	sc := sandbox.DefaultConfig()
	sc.Timeout = cfg.Timeout
	sc.TimerBudget = cfg.TimerBudget
	sc.EnableConsole = cfg.Console
	if cfg.Location != "" {
		sc.Location = cfg.Location
	}
	return sc
}

func sandboxOptions(cfg config.SandboxConfig, logger *logging.Logger, metrics *monitoring.Metrics) ([]sandbox.Option, error) {
	opts := []sandbox.Option{
		sandbox.WithLogger(logger.Named("sandbox").Logger),
		sandbox.WithObserver(metrics),
		sandbox.WithMembraneObserver(metrics),
	}
	if cfg.WhitelistFile == "" {
		return opts, nil
	}

	wl, err := realm.LoadWhitelist(cfg.WhitelistFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load whitelist: %w", err)
	}
	logger.Info("Loaded whitelist",
		zap.String("file", cfg.WhitelistFile),
		zap.Int("names", wl.Len()),
	)
	return append(opts, sandbox.WithWhitelist(wl)), nil
}

// compress gzips responses. WebSocket upgrades bypass the gzip writer, which
// cannot be hijacked.
func compress(router http.Handler) http.Handler {
	gz := gzhttp.GzipHandler(router)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if websocket.IsWebSocketUpgrade(r) {
			router.ServeHTTP(w, r)
			return
		}
		gz.ServeHTTP(w, r)
	})
}

// Handler returns the server's root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Metrics returns the server's metrics collector.
func (s *Server) Metrics() *monitoring.Metrics {
	return s.metrics
}

// Run starts the HTTP server and the session sweeper. It returns after Close.
func (s *Server) Run() error {
	go s.sessions.Run(s.sweepCtx)

	s.logger.Info("Starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close gracefully shuts down the server
func (s *Server) Close() error {
	s.logger.Info("Shutting down server...")

	var errs []error
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("Failed to stop HTTP server", zap.Error(err))
		errs = append(errs, fmt.Errorf("failed to stop HTTP server: %w", err))
	}
	s.stopSweep()

	if err := s.sessions.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close sessions: %w", err))
	}
	if err := s.pool.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close sandbox pool: %w", err))
	}
	s.tracer.Close()

	// Sync logger before exit
	s.logger.Sync()

	return errors.Join(errs...)
}
