package review

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/hai-surveillance-server/internal/domain"
)

// Service coordinates review submission: it derives the override flag,
// appends to the review log, and advances the candidate lifecycle.
type Service struct {
	store           Store
	classifications domain.ClassificationRepository
	candidates      domain.CandidateRepository
	log             *logrus.Logger
}

// NewService creates the review service.
func NewService(store Store, classifications domain.ClassificationRepository, candidates domain.CandidateRepository, logger *logrus.Logger) *Service {
	return &Service{
		store:           store,
		classifications: classifications,
		candidates:      candidates,
		log:             logger,
	}
}

// SubmitReview records a reviewer's decision against a classification.
//
// A completed decision (confirmed or rejected) is an override when it
// disagrees with the classification's polarity: confirming a negative
// category or rejecting a positive one. needs_more_info never overrides
// and leaves the candidate's status untouched.
func (s *Service) SubmitReview(ctx context.Context, classificationID uuid.UUID, reviewer string, decision domain.ReviewDecision, notes, overrideReason string) (*domain.Review, error) {
	if reviewer == "" {
		return nil, domain.NewValidationError("reviewer", "reviewer is required")
	}
	if !decision.Valid() {
		return nil, domain.NewValidationError("decision", fmt.Sprintf("unknown decision %q", decision))
	}

	classification, err := s.classifications.GetByID(ctx, classificationID)
	if err != nil {
		return nil, fmt.Errorf("loading classification for review: %w", err)
	}

	review := &domain.Review{
		ID:               uuid.New(),
		ClassificationID: classificationID,
		Reviewer:         reviewer,
		Decision:         decision,
		Notes:            notes,
		PriorCategory:    classification.Category,
		CreatedAt:        time.Now().UTC(),
	}

	if decision != domain.DecisionNeedsMoreInfo {
		review.IsOverride = (decision == domain.DecisionConfirmed) != classification.Category.Positive()
		if review.IsOverride {
			review.OverrideReason = overrideReason
		}
	}

	if err := s.store.Save(ctx, review); err != nil {
		return nil, fmt.Errorf("saving review: %w", err)
	}

	if decision != domain.DecisionNeedsMoreInfo {
		outcome := domain.OutcomeRejected
		if decision == domain.DecisionConfirmed {
			outcome = domain.OutcomeConfirmed
		}
		if err := s.candidates.UpdateStatus(ctx, classification.CandidateID, domain.StatusReviewed, outcome); err != nil {
			return nil, fmt.Errorf("advancing candidate after review: %w", err)
		}
	}

	s.log.WithFields(logrus.Fields{
		"review_id":         review.ID,
		"classification_id": classificationID,
		"reviewer":          reviewer,
		"decision":          decision,
		"is_override":       review.IsOverride,
	}).Info("Review submitted")

	return review, nil
}

// GetByClassification returns the review history for one classification.
func (s *Service) GetByClassification(ctx context.Context, classificationID uuid.UUID) ([]*domain.Review, error) {
	return s.store.GetByClassification(ctx, classificationID)
}

// List returns reviews with pagination, newest first.
func (s *Service) List(ctx context.Context, limit, offset int) ([]*domain.Review, error) {
	return s.store.List(ctx, limit, offset)
}

// Stats recomputes the aggregate acceptance/override view.
func (s *Service) Stats(ctx context.Context) (*OverrideStats, error) {
	return s.store.Stats(ctx)
}
