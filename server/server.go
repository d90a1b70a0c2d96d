package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"card-gateway/handlers"
	"card-gateway/logging"
	"card-gateway/middleware"
)

// Options wire the HTTP surface.
type Options struct {
	ServiceName    string
	Port           string
	Payments       handlers.Authorizer
	Store          handlers.Pinger
	Identity       middleware.IdentityVerifier
	MetricsHandler http.Handler
}

// Server owns the gin engine and the listening http.Server.
type Server struct {
	engine *gin.Engine
	http   *http.Server
}

// New builds the router with tracing, request ids, access logs and metrics.
func New(opts Options) *Server {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(opts.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())

	h := handlers.NewPaymentHandler(opts.Payments, opts.Store)
	r.GET("/health", h.HealthCheck)
	r.GET("/ready", h.Ready)
	if opts.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(opts.MetricsHandler))
	}

	api := r.Group("/api/payments", middleware.RequireIdentity(opts.Identity))
	api.POST("/authorize", h.Authorize)

	return &Server{
		engine: r,
		http: &http.Server{
			Addr:              ":" + opts.Port,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logging.Info("Card gateway service starting", zap.String("addr", s.http.Addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	logging.Info("Shutting down HTTP server")
	return s.http.Shutdown(shutdownCtx)
}
