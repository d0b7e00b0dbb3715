// Package apiserver exposes the presence engine over HTTP: the tracking
// endpoints the storefront pages call and the admin dashboard API.
package apiserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/vitrinhq/vitrin/internal/apiserver/handler"
	"github.com/vitrinhq/vitrin/internal/apiserver/middleware"
	"github.com/vitrinhq/vitrin/internal/common/config"
	"github.com/vitrinhq/vitrin/internal/i18n"
	"github.com/vitrinhq/vitrin/pkg/metrics"
	"github.com/vitrinhq/vitrin/pkg/version"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

// Deps are the services behind the routes
type Deps struct {
	Presence handler.Presence
	Reporter handler.Reporter
	Admin    interface {
		handler.Authenticator
		middleware.TokenVerifier
	}
	// Metrics is optional; nil disables the collectors and the scrape route
	Metrics *metrics.Metrics
}

// Server is the HTTP server
type Server struct {
	logger     *zap.Logger
	cfg        *config.VitrinConfig
	router     *gin.Engine
	httpServer *http.Server
}

// NewServer builds the router and the HTTP server around it
func NewServer(logger *zap.Logger, cfg *config.VitrinConfig, deps Deps) (*Server, error) {
	logger = logger.Named("apiserver")
	s := &Server{logger: logger, cfg: cfg}

	router, err := s.newRouter(deps)
	if err != nil {
		return nil, err
	}
	s.router = router
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}
	return s, nil
}

func (s *Server) newRouter(deps Deps) (*gin.Engine, error) {
	r := gin.New()
	if err := r.SetTrustedProxies(s.cfg.Server.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}

	r.Use(middleware.Recovery(s.logger))
	r.Use(otelgin.Middleware(s.cfg.Tracing.ServiceName))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware())
		r.GET(s.cfg.Metrics.Path, gin.WrapH(deps.Metrics.Handler()))
	}
	r.Use(middleware.Logger(s.logger))
	r.Use(middleware.CORS(s.cfg.Server.CORS))
	r.Use(i18n.Middleware())

	r.GET("/health_check", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": version.Get()})
	})

	visitors := handler.NewVisitor(s.logger, deps.Presence)
	api := r.Group("/api")
	{
		v := api.Group("/visitors")
		v.POST("", visitors.HandleRegister)
		v.POST("/:id/heartbeat", visitors.HandleHeartbeat)
		v.DELETE("/:id", visitors.HandleEnd)
		v.POST("/:id/exit", visitors.HandleEnd)
	}

	admin := handler.NewAdmin(s.logger, deps.Admin, deps.Presence, deps.Reporter)
	live := handler.NewLive(s.logger, deps.Presence, s.cfg.Server.CORS.AllowOrigins)
	api.POST("/admin/login", admin.HandleLogin)
	protected := api.Group("/admin", middleware.JWTAuthMiddleware(deps.Admin))
	{
		protected.GET("/visitors/active", admin.HandleActive)
		protected.GET("/visitors/live", live.HandleLive)
		protected.GET("/visitors/history", admin.HandleHistory)
		protected.POST("/visitors/cleanup", admin.HandleCleanup)
		protected.GET("/analytics", admin.HandleAnalytics)
	}
	return r, nil
}

// Handler returns the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	s.logger.Info("starting http server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
