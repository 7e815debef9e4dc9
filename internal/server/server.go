// Package server wires the HTTP API together: storage selection, middleware,
// routes, background workers, and graceful shutdown.
package server

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/quillbill/quillbill/internal/account"
	"github.com/quillbill/quillbill/internal/auth"
	"github.com/quillbill/quillbill/internal/billing"
	"github.com/quillbill/quillbill/internal/client"
	"github.com/quillbill/quillbill/internal/config"
	"github.com/quillbill/quillbill/internal/entitlement"
	"github.com/quillbill/quillbill/internal/health"
	"github.com/quillbill/quillbill/internal/invoice"
	"github.com/quillbill/quillbill/internal/logging"
	"github.com/quillbill/quillbill/internal/metrics"
	"github.com/quillbill/quillbill/internal/pdfexport"
	"github.com/quillbill/quillbill/internal/plan"
	"github.com/quillbill/quillbill/internal/ratelimit"
	"github.com/quillbill/quillbill/internal/realtime"
	"github.com/quillbill/quillbill/internal/retry"
	"github.com/quillbill/quillbill/internal/security"
	"github.com/quillbill/quillbill/internal/traces"
	"github.com/quillbill/quillbill/internal/validation"
)

// recurringInterval is how often due recurring invoices are generated.
const recurringInterval = time.Hour

// Server wraps the HTTP server and its dependencies.
type Server struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *sql.DB // nil if using in-memory stores

	accounts account.Store
	authMgr  *auth.Manager
	checker  *entitlement.Service

	clientSvc  *client.Service
	invoiceSvc *invoice.Service
	pdfSvc     *pdfexport.Service
	billingSvc *billing.Service

	hub          *realtime.Hub
	checks       *health.Registry
	rateLimiter  *ratelimit.Limiter
	router       *gin.Engine
	httpSrv      *http.Server
	shutdownOTel func(context.Context) error
	cancelRunCtx context.CancelFunc // cancels background goroutines started in Run

	// Health state
	ready   atomic.Bool
	healthy atomic.Bool
}

// Option configures the server.
type Option func(*Server)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates a new server instance.
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logging.New(cfg.LogLevel, "json"),
	}
	for _, opt := range opts {
		opt(s)
	}

	// Storage (Postgres if DATABASE_URL set, otherwise in-memory)
	var (
		clientStore  client.Store
		invoiceStore invoice.Store
	)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
		if err := db.Ping(); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		s.db = db
		s.accounts = account.NewPostgresStore(db)
		s.authMgr = auth.NewManager(auth.NewPostgresStore(db))
		clientStore = client.NewPostgresStore(db)
		invoiceStore = invoice.NewPostgresStore(db)
		s.logger.Info("using PostgreSQL storage", "url", maskDSN(cfg.DatabaseURL))
	} else {
		s.accounts = account.NewMemoryStore()
		s.authMgr = auth.NewManager(auth.NewMemoryStore())
		clientStore = client.NewMemoryStore()
		invoiceStore = invoice.NewMemoryStore()
		s.logger.Info("using in-memory storage (data will not persist)")
	}

	// The entitlement engine: one catalog, constructed once, shared by every
	// call site.
	s.checker = entitlement.NewService(plan.DefaultCatalog())

	s.hub = realtime.NewHub(s.logger)

	s.clientSvc = client.NewService(clientStore, s.accounts, s.checker)
	s.invoiceSvc = invoice.NewService(invoiceStore, clientStore, s.accounts, s.checker, s.hub)
	s.pdfSvc = pdfexport.NewService(s.invoiceSvc, s.accounts, s.checker)
	s.billingSvc = billing.NewService(s.accounts, billing.Config{
		SecretKey:     cfg.StripeSecretKey,
		WebhookSecret: cfg.StripeWebhookSecret,
		PricePro:      cfg.StripePricePro,
		SuccessURL:    cfg.CheckoutSuccessURL,
		CancelURL:     cfg.CheckoutCancelURL,
	}, s.hub)

	// Tracing (no-op when no OTLP endpoint configured)
	if cfg.OTLPEndpoint != "" {
		shutdown, err := traces.Init(context.Background(), cfg.OTLPEndpoint, s.logger)
		if err != nil {
			s.logger.Warn("failed to initialize tracing", "error", err)
		} else {
			s.shutdownOTel = shutdown
		}
	}

	s.checks = health.NewRegistry()
	s.checks.Register("database", func(ctx context.Context) health.Status {
		if s.db == nil {
			return health.Status{Name: "database", Healthy: true, Detail: "in-memory"}
		}
		if err := s.db.PingContext(ctx); err != nil {
			return health.Status{Name: "database", Healthy: false, Detail: err.Error()}
		}
		return health.Status{Name: "database", Healthy: true}
	})
	s.checks.Register("realtime", func(_ context.Context) health.Status {
		stats := s.hub.Stats()
		n, _ := stats["connectedClients"].(int)
		return health.Status{Name: "realtime", Healthy: n < realtime.MaxClients}
	})

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	s.healthy.Store(true)

	return s, nil
}

// maskDSN hides the password in a connection string for logging.
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

func (s *Server) setupMiddleware() {
	// Recovery with logging
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}))

	// Security headers
	s.router.Use(security.HeadersMiddleware())

	// CORS (allow all origins for development - restrict in production)
	s.router.Use(security.CORSMiddleware([]string{"*"}))

	// Request size limit (1MB)
	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))

	// Rate limiting
	limitCfg := ratelimit.DefaultConfig()
	limitCfg.RequestsPerMinute = s.cfg.RateLimitRPM
	s.rateLimiter = ratelimit.New(limitCfg)
	s.router.Use(s.rateLimiter.Middleware())

	// Prometheus metrics
	s.router.Use(metrics.Middleware())

	// Request ID
	s.router.Use(s.requestIDMiddleware())

	// Logging
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check for existing request ID (from load balancer, etc.)
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}

		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		logger := logging.L(c.Request.Context())

		switch {
		case status >= 500:
			logger.Error("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
				"client_ip", c.ClientIP(),
			)
		case status >= 400:
			logger.Warn("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		default:
			logger.Info("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}
	}
}

// -----------------------------------------------------------------------------
// Routes
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes() {
	// Health & metrics endpoints
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/health/live", s.livenessHandler)
	s.router.GET("/health/ready", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	// Status page and API info
	s.router.GET("/", s.statusPageHandler)
	s.router.GET("/api", s.infoHandler)

	// WebSocket event feed. Browsers can't set the Authorization header on
	// WebSocket upgrades, so the token also rides in a query parameter.
	s.router.GET("/ws", s.websocketHandler)

	accountHandler := account.NewHandler(s.accounts, s.authMgr)
	clientHandler := client.NewHandler(s.clientSvc)
	invoiceHandler := invoice.NewHandler(s.invoiceSvc)
	pdfHandler := pdfexport.NewHandler(s.pdfSvc)
	billingHandler := billing.NewHandler(s.billingSvc, s.checker)

	v1 := s.router.Group("/v1")

	// PUBLIC ROUTES (no auth required)
	accountHandler.RegisterPublicRoutes(v1)
	billingHandler.RegisterWebhookRoutes(v1)

	// PROTECTED ROUTES (require API token)
	protected := v1.Group("")
	protected.Use(auth.Middleware(s.authMgr), auth.RequireAuth())
	{
		accountHandler.RegisterProtectedRoutes(protected)
		clientHandler.RegisterRoutes(protected)
		invoiceHandler.RegisterRoutes(protected)
		pdfHandler.RegisterRoutes(protected)
		billingHandler.RegisterRoutes(protected)
	}
}

// websocketHandler authenticates the upgrade request and hands the
// connection to the hub, bound to the token's owner.
func (s *Server) websocketHandler(c *gin.Context) {
	raw := c.GetHeader("Authorization")
	if raw == "" {
		raw = c.Query("token")
	}
	tok, err := s.authMgr.ValidateToken(c.Request.Context(), raw)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "valid API token required"})
		return
	}
	s.hub.HandleWebSocket(c.Writer, c.Request, tok.UserID)
}

// -----------------------------------------------------------------------------
// Health handlers
// -----------------------------------------------------------------------------

func (s *Server) healthHandler(c *gin.Context) {
	healthy, statuses := s.checks.CheckAll(c.Request.Context())
	s.healthy.Store(healthy)

	status := http.StatusOK
	label := "healthy"
	if !healthy {
		status = http.StatusServiceUnavailable
		label = "unhealthy"
	}
	c.JSON(status, gin.H{
		"status":   label,
		"checks":   statuses,
		"realtime": s.hub.Stats(),
	})
}

func (s *Server) livenessHandler(c *gin.Context) {
	if !s.healthy.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (s *Server) readinessHandler(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) infoHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":    "quillbill",
		"version": "v1",
		"endpoints": gin.H{
			"signup":    "POST /v1/signup",
			"me":        "GET /v1/me",
			"clients":   "GET|POST /v1/clients",
			"invoices":  "GET|POST /v1/invoices",
			"draft":     "POST /v1/invoices/draft",
			"pdf":       "GET /v1/invoices/:id/pdf",
			"templates": "GET /v1/templates",
			"billing":   "GET /v1/billing/subscription",
			"events":    "GET /ws",
		},
	})
}

// -----------------------------------------------------------------------------
// Run / shutdown
// -----------------------------------------------------------------------------

// Run starts the HTTP server and background workers, blocking until a
// shutdown signal arrives or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRunCtx = cancel

	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)

	go func() {
		s.logger.Info("starting server", "port", s.cfg.Port, "env", s.cfg.Env)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Realtime hub
	go s.hub.Run(runCtx)

	// Recurring invoice generator
	go s.runRecurringGenerator(runCtx)

	// DB pool gauges
	if s.db != nil {
		metrics.StartDBStatsCollector(runCtx, s.db, 15*time.Second)
	}

	// Mark as ready after brief delay for startup
	go func() {
		time.Sleep(100 * time.Millisecond)
		s.ready.Store(true)
		s.logger.Info("server ready")
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown()
}

// runRecurringGenerator periodically materializes due recurring invoices.
func (s *Server) runRecurringGenerator(ctx context.Context) {
	ticker := time.NewTicker(recurringInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var n int
			err := retry.Do(ctx, 3, 2*time.Second, func() error {
				var runErr error
				n, runErr = s.invoiceSvc.GenerateRecurring(ctx)
				return runErr
			})
			if err != nil {
				s.logger.Error("recurring invoice run failed", "error", err)
				continue
			}
			if n > 0 {
				s.logger.Info("recurring invoices generated", "count", n)
			}
		}
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	// Cancel the context for all background goroutines (hub, workers)
	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Error("shutdown error", "error", err)
		return err
	}

	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
		s.logger.Info("rate limiter stopped")
	}

	if s.shutdownOTel != nil {
		if err := s.shutdownOTel(ctx); err != nil {
			s.logger.Error("tracer shutdown error", "error", err)
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("database close error", "error", err)
		} else {
			s.logger.Info("database connection closed")
		}
	}

	s.logger.Info("server stopped")
	return nil
}

// Router returns the gin router for testing.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func generateRequestID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp-based ID
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}
