package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"sealtrack/internal/config"
	"sealtrack/internal/domain"
	"sealtrack/internal/infra/metrics"
	"sealtrack/internal/usecase"
)

// HealthChecker reports whether a backing store is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type Server struct {
	cfg     config.Config
	r       *gin.Engine
	logger  *zap.Logger
	metrics *metrics.Metrics

	documents *usecase.DocumentService
	signUC    *usecase.SignDocument
	verifyUC  *usecase.VerifyDocument
	anchors   usecase.Anchorer
	ledger    usecase.CommitmentStore
	feed      domain.EventSubscriber
	health    HealthChecker

	authenticator domain.Authenticator
	authInitErr   error

	rateLimiter          domain.RateLimiter
	rateLimitRequests    int
	rateLimitWindow      time.Duration
	rateLimitWithSubject bool
	rateLimitFailClosed  bool
}

type ServerDeps struct {
	Documents     *usecase.DocumentService
	Sign          *usecase.SignDocument
	Verify        *usecase.VerifyDocument
	Anchors       usecase.Anchorer
	Ledger        usecase.CommitmentStore
	Feed          domain.EventSubscriber
	Health        HealthChecker
	Authenticator domain.Authenticator
	RateLimiter   domain.RateLimiter
	Metrics       *metrics.Metrics
	Logger        *zap.Logger
}

func NewServer(cfg config.Config, deps ServerDeps) *Server {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		cfg:           cfg,
		r:             r,
		logger:        logger,
		metrics:       deps.Metrics,
		documents:     deps.Documents,
		signUC:        deps.Sign,
		verifyUC:      deps.Verify,
		anchors:       deps.Anchors,
		ledger:        deps.Ledger,
		feed:          deps.Feed,
		health:        deps.Health,
		authenticator: deps.Authenticator,
	}
	r.Use(s.observe)
	s.initRateLimit(deps.RateLimiter)
	s.initAuth()
	s.routes()
	return s
}

func (s *Server) initAuth() {
	switch s.cfg.AuthMode {
	case config.AuthModeNone:
	case config.AuthModeJWT:
		if s.authenticator == nil {
			s.authInitErr = errors.New("AUTH_MODE=jwt requires an authenticator")
		}
	case "":
		s.authInitErr = errors.New("AUTH_MODE is required")
	default:
		s.authInitErr = errors.New("unsupported auth mode")
	}
}

func (s *Server) initRateLimit(limiter domain.RateLimiter) {
	s.rateLimiter = limiter
	s.rateLimitRequests = s.cfg.RateLimitRequests
	s.rateLimitWindow = time.Minute
	if w := s.cfg.RateLimitWindow(); w > 0 {
		s.rateLimitWindow = w
	}
	s.rateLimitWithSubject = s.cfg.RateLimitIncludeSubject
	s.rateLimitFailClosed = s.cfg.RateLimitFailClosed
}

func (s *Server) routes() {
	s.r.GET("/healthz", s.handleHealth)
	if s.metrics != nil {
		s.r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	v1 := s.r.Group("/v1", s.requireAuth)
	{
		v1.GET("/templates", s.limit(routeTemplatesRead), s.handleListTemplates)

		v1.POST("/documents", s.limit(routeDocumentsWrite), s.handleCreateDocument)
		v1.GET("/documents", s.limit(routeDocumentsRead), s.handleListDocuments)
		v1.GET("/documents/:id", s.limit(routeDocumentsRead), s.handleGetDocument)
		v1.PATCH("/documents/:id", s.limit(routeDocumentsWrite), s.handleUpdateDocument)
		v1.POST("/documents/:id/signers", s.limit(routeDocumentsWrite), s.handleAddSigner)
		v1.POST("/documents/:id/reject", s.limit(routeDocumentsWrite), s.handleReject)
		v1.GET("/documents/:id/fingerprint", s.limit(routeDocumentsRead), s.handleFingerprint)
		v1.POST("/documents/:id/sign", s.limit(routeDocumentsSign), s.handleSign)
		v1.POST("/documents/:id/verify", s.limit(routeDocumentsVerify), s.handleVerify)
		v1.GET("/documents/:id/anchors", s.limit(routeDocumentsRead), s.handleListAnchors)
		v1.GET("/documents/:id/events", s.handleEvents)

		v1.GET("/ledger/status", s.limit(routeLedgerRead), s.handleLedgerStatus)
		v1.GET("/ledger/documents/:id", s.limit(routeLedgerRead), s.handleLedgerRecord)
	}

	s.r.NoRoute(func(c *gin.Context) {
		writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "route not found")
	})
}

// Handler returns the root handler wrapped with otel request spans.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.r, "sealtrack.http")
}

// Start validates auth wiring and builds the listener-ready http.Server.
func (s *Server) Start() (*http.Server, error) {
	if s.authInitErr != nil {
		return nil, s.authInitErr
	}
	return &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}, nil
}

func (s *Server) handleHealth(c *gin.Context) {
	mode := "memory"
	if s.health != nil {
		mode = "db"
		if err := s.health.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "mode": mode})
			return
		}
	}
	ledger := "disabled"
	if s.ledger != nil {
		ledger = "unavailable"
		if s.ledger.Exists(c.Request.Context()) {
			ledger = "ok"
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "mode": mode, "ledger": ledger})
}

// observe records request counts and latency per route template.
func (s *Server) observe(c *gin.Context) {
	start := time.Now()
	c.Next()
	if s.metrics == nil {
		return
	}
	route := c.FullPath()
	if route == "" {
		route = "unmatched"
	}
	s.metrics.ObserveHTTP(route, c.Request.Method, c.Writer.Status(), time.Since(start))
}
