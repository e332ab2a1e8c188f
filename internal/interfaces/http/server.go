// Package http is the thin HTTP adapter over the procurement engine:
// it translates requests into draft-manager and service calls and
// renders their results as JSON.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sitewise/procure/internal/draft"
	"github.com/sitewise/procure/internal/export"
	"github.com/sitewise/procure/internal/repository"
)

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	logger     *zap.Logger
}

// Deps are the engine components the handlers call into.
type Deps struct {
	Drafts    *draft.Manager
	PRs       *repository.PRRepository
	POs       *repository.PORepository
	SentBacks *repository.SentBackRepository
	Exporter  *export.Exporter
}

// NewServer creates the HTTP server with all routes wired.
func NewServer(config ServerConfig, deps Deps, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	s := &Server{
		config: config,
		router: router,
		logger: logger,
	}

	router.Use(gin.Recovery())
	router.Use(s.loggingMiddleware())

	handlers := NewHandlers(deps, logger)

	router.GET("/health", handlers.HealthCheck)

	api := router.Group("/api")
	{
		api.GET("/prs", handlers.ListPRs)
		api.GET("/prs/:id", handlers.GetPR)
		api.POST("/prs/:id/vendors", handlers.AddVendor)
		api.POST("/prs/:id/quotes", handlers.SetQuote)
		api.POST("/prs/:id/makes", handlers.AddCategoryMake)
		api.GET("/prs/:id/export", handlers.ExportQuoteComparison)

		api.POST("/prs/:id/draft", handlers.OpenDraft)
		api.POST("/prs/:id/draft/items", handlers.AddDraftItem)
		api.POST("/prs/:id/draft/items/:itemId", handlers.EditItem)
		api.DELETE("/prs/:id/draft/items/:itemId", handlers.RemoveDraftItem)
		api.POST("/prs/:id/draft/items/:itemId/vendor", handlers.SelectVendor)
		api.POST("/prs/:id/draft/comment", handlers.SetDraftComment)
		api.POST("/prs/:id/draft/undo", handlers.UndoDraft)
		api.POST("/prs/:id/draft/commit", handlers.CommitDraft)
		api.DELETE("/prs/:id/draft", handlers.DiscardDraft)

		api.GET("/prs/:id/orders", handlers.ListOrders)
		api.GET("/prs/:id/sentbacks", handlers.ListSentBacks)
		api.GET("/orders/:id/export", handlers.ExportOrderSheet)
	}

	return s
}

// loggingMiddleware logs each request with latency and status.
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.logger.Info("HTTP request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// Start starts the HTTP server and blocks until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", zap.String("address", addr))

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", zap.Error(err))
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", zap.Error(err))
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}
