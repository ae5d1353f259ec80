package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/hai-surveillance-server/internal/domain"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

type submitReviewRequest struct {
	ClassificationID uuid.UUID             `json:"classification_id" binding:"required"`
	Reviewer         string                `json:"reviewer" binding:"required"`
	Decision         domain.ReviewDecision `json:"decision" binding:"required"`
	Notes            string                `json:"notes"`
	OverrideReason   string                `json:"override_reason"`
}

func (s *Server) handleHealth(c *gin.Context) {
	if s.health != nil {
		if err := s.health.Health(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleListCandidates(c *gin.Context) {
	haiType := domain.HAIType(c.Query("hai_type"))
	if !validHAIType(haiType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown or missing hai_type"})
		return
	}

	status := domain.CandidateStatus(c.DefaultQuery("status", string(domain.StatusClassified)))
	if !validStatus(status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status"})
		return
	}

	limit := parseBoundedInt(c.Query("limit"), defaultListLimit, maxListLimit)
	candidates, err := s.candidates.ListByStatus(c.Request.Context(), haiType, status, limit)
	if err != nil {
		s.renderError(c, err)
		return
	}
	if candidates == nil {
		candidates = []*domain.Candidate{}
	}
	c.JSON(http.StatusOK, gin.H{"candidates": candidates, "count": len(candidates)})
}

func (s *Server) handleGetCandidate(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	candidate, err := s.candidates.GetByID(c.Request.Context(), id)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, candidate)
}

func (s *Server) handleGetClassification(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	classification, err := s.classifications.GetLatestByCandidate(c.Request.Context(), id)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, classification)
}

func (s *Server) handleClassificationReviews(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	reviews, err := s.reviews.GetByClassification(c.Request.Context(), id)
	if err != nil {
		s.renderError(c, err)
		return
	}
	if reviews == nil {
		reviews = []*domain.Review{}
	}
	c.JSON(http.StatusOK, gin.H{"reviews": reviews, "count": len(reviews)})
}

func (s *Server) handleSubmitReview(c *gin.Context) {
	var req submitReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	review, err := s.reviews.SubmitReview(c.Request.Context(), req.ClassificationID, req.Reviewer, req.Decision, req.Notes, req.OverrideReason)
	if err != nil {
		s.renderError(c, err)
		return
	}

	if s.metrics != nil {
		s.metrics.ReviewsSubmitted.WithLabelValues(string(review.Decision), strconv.FormatBool(review.IsOverride)).Inc()
	}
	c.JSON(http.StatusCreated, review)
}

func (s *Server) handleListReviews(c *gin.Context) {
	limit := parseBoundedInt(c.Query("limit"), defaultListLimit, maxListLimit)
	offset := parseBoundedInt(c.Query("offset"), 0, 1<<30)

	reviews, err := s.reviews.List(c.Request.Context(), limit, offset)
	if err != nil {
		s.renderError(c, err)
		return
	}
	if reviews == nil {
		reviews = []*domain.Review{}
	}
	c.JSON(http.StatusOK, gin.H{"reviews": reviews, "count": len(reviews), "offset": offset})
}

func (s *Server) handleReviewStats(c *gin.Context) {
	stats, err := s.reviews.Stats(c.Request.Context())
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// renderError maps domain errors onto HTTP statuses.
func (s *Server) renderError(c *gin.Context, err error) {
	var validation *domain.ValidationError
	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": validation.Message, "field": validation.Field})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, domain.ErrStatusRegression):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		s.log.WithFields(logrus.Fields{
			"request_id": c.GetString("request_id"),
			"error":      err,
		}).Error("Request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return uuid.Nil, false
	}
	return id, true
}

func parseBoundedInt(raw string, fallback, max int) int {
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 || v > max {
		return fallback
	}
	return v
}

func validHAIType(t domain.HAIType) bool {
	for _, known := range domain.AllHAITypes {
		if t == known {
			return true
		}
	}
	return false
}

func validStatus(s domain.CandidateStatus) bool {
	switch s {
	case domain.StatusPending, domain.StatusExtracted, domain.StatusClassified, domain.StatusReviewed:
		return true
	}
	return false
}
