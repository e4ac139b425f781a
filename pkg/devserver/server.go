package devserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vnfood/foodctl/pkg/audit"
	"github.com/vnfood/foodctl/pkg/metrics"
	"github.com/vnfood/foodctl/pkg/ratelimit"
	"github.com/vnfood/foodctl/pkg/telemetry"
)

// APIController is a group of routes mounted under /api.
type APIController interface {
	BasePath() string
	Register(rg *gin.RouterGroup) error
	Handlers() []gin.HandlerFunc
}

type Server struct {
	gin     *gin.Engine
	config  Config
	log     *zap.SugaredLogger
	issuer  *issuer
	users   *userStore
	history *historyStore
	catalog *catalog
	audit   *audit.Manager

	apiLimit        *ratelimit.Limiter
	credentialLimit *ratelimit.Limiter

	rejectRefresh atomic.Bool
	refreshDelay  atomic.Int64
	refreshes     atomic.Int64
}

func New(log *zap.Logger, cfg Config) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid dev server config: %w", err)
	}
	if cfg.Secret == "" {
		cfg.Secret = uuid.NewString()
		log.Warn("No token secret configured, using a random one")
	}

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(
		ginzap.Ginzap(log, time.RFC3339, true),
		ginzap.RecoveryWithZap(log, true),
		telemetry.Middleware(),
	)
	if len(cfg.CORSOrigins) > 0 {
		engine.Use(cors.New(cors.Config{
			AllowOrigins: cfg.CORSOrigins,
			AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowHeaders: []string{"Origin", "Authorization", "Content-Type", "X-Request-ID"},
			MaxAge:       12 * time.Hour,
		}))
	}

	s := &Server{
		gin:     engine,
		config:  cfg,
		log:     log.Sugar(),
		issuer:  newIssuer(cfg.Secret, cfg.AccessTTL, cfg.RefreshTTL),
		users:   newUserStore(cfg.BcryptCost),
		history: newHistoryStore(),
		catalog: newCatalog(builtinDishes),
	}
	auditSink, err := newAuditSink(log, cfg.Audit)
	if err != nil {
		return nil, err
	}
	s.audit = audit.NewManager(auditSink, audit.DefaultManagerConfig(), log)
	if !cfg.DisableRateLimit {
		s.apiLimit = ratelimit.New(cfg.APILimit)
		s.credentialLimit = ratelimit.New(cfg.CredentialLimit)
	}

	engine.GET("metrics", gin.WrapH(metrics.MetricsHandler()))
	if cfg.WebRoot != "" {
		engine.NoRoute(serveWebRoot(cfg.WebRoot))
	}

	if err := s.RegisterAll([]APIController{
		&accountController{s: s},
		&sessionController{s: s},
		&historyController{s: s},
		&foodController{s: s},
	}); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func newAuditSink(log *zap.Logger, cfg AuditConfig) (audit.Sink, error) {
	sinks := []audit.Sink{audit.NewLogSink(log)}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaSink, err := audit.NewKafkaSink(audit.KafkaSinkConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("failed to set up audit sink: %w", err)
		}
		sinks = append(sinks, kafkaSink)
	}
	sinks = append(sinks, cfg.Sinks...)
	return audit.NewMultiSink(sinks, log), nil
}

// actor describes the caller of c for audit events.
func actor(c *gin.Context, username string) audit.Actor {
	return audit.Actor{
		User:      username,
		SourceIP:  c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

func requestID(c *gin.Context) string {
	return c.GetHeader("X-Request-ID")
}

func (s *Server) RegisterAll(controllers []APIController) error {
	r := s.gin.Group("api")
	for _, c := range controllers {
		if err := c.Register(r.Group(c.BasePath(), c.Handlers()...)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) Handler() http.Handler {
	return s.gin
}

// Listen serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Listen(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.ListenAddress,
		Handler:           s.gin,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Infow("Dev server listening", "address", s.config.ListenAddress)
		if s.config.TLSCertFile != "" {
			errCh <- srv.ListenAndServeTLS(s.config.TLSCertFile, s.config.TLSKeyFile)
			return
		}
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Close()
	return err
}

// Close stops background goroutines and flushes the audit trail. Requests
// handled after Close are no longer audited.
func (s *Server) Close() {
	if err := s.audit.Close(); err != nil {
		s.log.Warnw("Failed to close audit sink", "error", err)
	}
	if s.apiLimit != nil {
		s.apiLimit.Stop()
	}
	if s.credentialLimit != nil {
		s.credentialLimit.Stop()
	}
}

// ExpireAccessTokens invalidates every access token issued so far. Refresh
// tokens stay valid.
func (s *Server) ExpireAccessTokens() {
	s.issuer.accessGen.Add(1)
}

// RevokeRefreshTokens invalidates every refresh token issued so far.
func (s *Server) RevokeRefreshTokens() {
	s.issuer.refreshGen.Add(1)
}

// RejectRefresh makes /refresh answer 401 while enabled.
func (s *Server) RejectRefresh(reject bool) {
	s.rejectRefresh.Store(reject)
}

// SetRefreshDelay holds every /refresh response for d.
func (s *Server) SetRefreshDelay(d time.Duration) {
	s.refreshDelay.Store(int64(d))
}

// RefreshCount is the number of /refresh requests received.
func (s *Server) RefreshCount() int64 {
	return s.refreshes.Load()
}

func (s *Server) limit(l *ratelimit.Limiter, keyFn ratelimit.KeyFunc) []gin.HandlerFunc {
	if l == nil {
		return nil
	}
	return []gin.HandlerFunc{l.Middleware(keyFn)}
}
