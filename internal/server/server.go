// Package server exposes both recommendation paths over HTTP. Handlers only
// read the published artifact; rebuilds run on their own goroutine.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/spigell/job-recommender/internal/artifact"
	"github.com/spigell/job-recommender/internal/metrics"
	"github.com/spigell/job-recommender/internal/profile"
	"github.com/spigell/job-recommender/internal/recommend"
)

const shutdownTimeout = 10 * time.Second

type Deps struct {
	Service  *recommend.Service
	Profiles profile.Store
	// Builder is optional; without it /admin/rebuild answers 503.
	Builder *artifact.Builder
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

type Server struct {
	svc      *recommend.Service
	profiles profile.Store
	builder  *artifact.Builder
	metrics  *metrics.Metrics
	logger   *zap.Logger
	engine   *gin.Engine

	baseCtx    context.Context
	rebuilding atomic.Bool
}

func New(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	s := &Server{
		svc:      deps.Service,
		profiles: deps.Profiles,
		builder:  deps.Builder,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
		baseCtx:  context.Background(),
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), s.accessLog(), s.metrics.Middleware())
	s.engine = engine
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/healthz", s.health)
	s.engine.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	v1 := s.engine.Group("/v1")
	v1.GET("/relevance", s.relevance)
	v1.GET("/recommendations", s.recommendations)
	v1.POST("/recommendations", s.recommendInline)

	s.engine.POST("/admin/rebuild", s.rebuild)
}

func (s *Server) Handler() http.Handler { return s.engine }

// Run serves on addr until ctx ends, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	s.baseCtx = ctx
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)),
		)
	}
}

func (s *Server) health(c *gin.Context) {
	snap := s.svc.Registry().Current()
	if snap == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "no artifact", "rebuilding": s.rebuilding.Load()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"version":    snap.Version(),
		"built_at":   snap.Manifest.BuiltAt,
		"postings":   snap.Len(),
		"embedder":   snap.Manifest.Embedder,
		"rebuilding": s.rebuilding.Load(),
	})
}

// rebuild starts a rebuild in the background. Only one runs at a time.
func (s *Server) rebuild(c *gin.Context) {
	if s.builder == nil {
		abort(c, http.StatusServiceUnavailable, errors.New("rebuilds are not configured"))
		return
	}
	if !s.rebuilding.CompareAndSwap(false, true) {
		abort(c, http.StatusConflict, errors.New("a rebuild is already running"))
		return
	}

	go func() {
		defer s.rebuilding.Store(false)
		if _, err := s.builder.Rebuild(s.baseCtx); err != nil {
			s.logger.Error("requested rebuild failed", zap.Error(err))
		}
	}()
	c.JSON(http.StatusAccepted, gin.H{"status": "rebuild started"})
}

func abort(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
