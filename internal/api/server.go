// Package api exposes the interactive query surface over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"netlens/internal/aggregator"
	"netlens/internal/dispatch"

	"github.com/gin-gonic/gin"
)

// Asker answers one question from the events captured since the last one.
type Asker interface {
	Ask(ctx context.Context, question string) (dispatch.Answer, error)
}

// StatsSource reports aggregator counters.
type StatsSource interface {
	Stats() aggregator.Stats
}

type queryRequest struct {
	Question string `json:"question"`
}

type Server struct {
	addr            string
	engine          *gin.Engine
	logger          *slog.Logger
	shutdownTimeout time.Duration
}

// NewServer wires the routes. Call gin.SetMode before this to silence the
// debug banner.
func NewServer(addr string, asker Asker, stats StatsSource, shutdownTimeout time.Duration, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "api")

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))
	r.GET("/healthz", HandleHealth(stats))
	r.POST("/query", HandleQuery(asker, logger))

	return &Server{
		addr:            addr,
		engine:          r,
		logger:          logger,
		shutdownTimeout: shutdownTimeout,
	}
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx ends, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	srv := &http.Server{Handler: s.engine, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Info("query api listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve %s: %w", s.addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("query api shutdown incomplete", "error", err)
	}
	return nil
}

func HandleHealth(stats StatsSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":     "ok",
			"aggregator": stats.Stats(),
		})
	}
}

// HandleQuery performs one on-demand release per request.
func HandleQuery(asker Asker, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req queryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		question := strings.TrimSpace(req.Question)
		if question == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "question is required"})
			return
		}

		ans, err := asker.Ask(c.Request.Context(), question)
		if err != nil {
			status := http.StatusBadGateway
			switch {
			case errors.Is(err, aggregator.ErrStopped):
				status = http.StatusServiceUnavailable
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				status = http.StatusGatewayTimeout
			}
			logger.Warn("query failed", "status", status, "error", err)
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, ans)
	}
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
