// Package api exposes the surveillance review API: candidate and
// classification reads, review submission, health, and metrics.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/hai-surveillance-server/internal/domain"
	"github.com/hai-surveillance-server/internal/metrics"
	"github.com/hai-surveillance-server/internal/review"
)

// HealthChecker reports backing-store liveness. Satisfied by database.DB.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// ReviewService is the review workflow surface the API exposes.
// Satisfied by review.Service.
type ReviewService interface {
	SubmitReview(ctx context.Context, classificationID uuid.UUID, reviewer string, decision domain.ReviewDecision, notes, overrideReason string) (*domain.Review, error)
	GetByClassification(ctx context.Context, classificationID uuid.UUID) ([]*domain.Review, error)
	List(ctx context.Context, limit, offset int) ([]*domain.Review, error)
	Stats(ctx context.Context) (*review.OverrideStats, error)
}

// Server is the HTTP review server.
type Server struct {
	cfg             domain.ServerConfig
	candidates      domain.CandidateRepository
	classifications domain.ClassificationRepository
	reviews         ReviewService
	health          HealthChecker
	metrics         *metrics.Metrics
	log             *logrus.Logger
	router          *gin.Engine
	server          *http.Server
}

// Config bundles the server collaborators.
type Config struct {
	Server          domain.ServerConfig
	Candidates      domain.CandidateRepository
	Classifications domain.ClassificationRepository
	Reviews         ReviewService
	Health          HealthChecker
	Metrics         *metrics.Metrics
	LogLevel        string
}

// NewServer creates the review API server with routes registered.
func NewServer(cfg Config, logger *logrus.Logger) *Server {
	if cfg.LogLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestIDMiddleware())
	router.Use(corsMiddleware())
	router.Use(requestLogger(logger))

	s := &Server{
		cfg:             cfg.Server,
		candidates:      cfg.Candidates,
		classifications: cfg.Classifications,
		reviews:         cfg.Reviews,
		health:          cfg.Health,
		metrics:         cfg.Metrics,
		log:             logger,
		router:          router,
	}
	s.setupRoutes()
	return s
}

// Router exposes the configured handler, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("Review API listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/candidates", s.handleListCandidates)
		v1.GET("/candidates/:id", s.handleGetCandidate)
		v1.GET("/candidates/:id/classification", s.handleGetClassification)
		v1.GET("/classifications/:id/reviews", s.handleClassificationReviews)
		v1.POST("/reviews", s.handleSubmitReview)
		v1.GET("/reviews", s.handleListReviews)
		v1.GET("/reviews/stats", s.handleReviewStats)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header("X-Request-ID", requestID)
		c.Set("request_id", requestID)
		c.Next()
	}
}

func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		logger.WithFields(logrus.Fields{
			"request_id": c.GetString("request_id"),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"duration":   time.Since(started),
		}).Info("Request handled")
	}
}
