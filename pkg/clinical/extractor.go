package clinical

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/hai-surveillance-server/internal/domain"
)

// ExtractionClient is the language-model fact extraction client. Requests
// are rate limited, routed through a circuit breaker, and responses are
// cached by note-text hash so re-classifying a candidate does not re-pay
// the model call.
type ExtractionClient struct {
	baseURL    string
	apiKey     string
	model      string
	maxTokens  int
	cacheTTL   time.Duration
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	cache      *CacheClient
	log        *logrus.Logger
}

// NewExtractionClient creates a fact extraction client. cache may be nil
// when caching is disabled.
func NewExtractionClient(config domain.ExtractionConfig, cache *CacheClient, logger *logrus.Logger) *ExtractionClient {
	rps := config.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "FactExtraction",
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	return &ExtractionClient{
		baseURL:   config.BaseURL,
		apiKey:    config.APIKey,
		model:     config.Model,
		maxTokens: config.MaxTokens,
		cacheTTL:  config.CacheTTL,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		breaker: breaker,
		cache:   cache,
		log:     logger,
	}
}

// extractionRequest is the extraction service's request shape.
type extractionRequest struct {
	Model        string                         `json:"model"`
	MaxTokens    int                            `json:"max_tokens,omitempty"`
	HAIType      domain.HAIType                 `json:"hai_type"`
	EventTime    time.Time                      `json:"event_time"`
	Measurements domain.EligibilityMeasurements `json:"measurements"`
	Text         string                         `json:"text"`
}

// Extract asks the model for the candidate's typed clinical facts.
func (c *ExtractionClient) Extract(ctx context.Context, candidate *domain.Candidate, text string) (*domain.Extraction, error) {
	textHash := hashText(text)

	if c.cache != nil {
		if payload, ok := c.cache.GetExtraction(ctx, candidate.HAIType, textHash); ok {
			return buildExtraction(candidate, payload)
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.callService(ctx, candidate, text)
	})
	if err != nil {
		return nil, err
	}
	payload := result.(*extractionPayload)

	if c.cache != nil {
		c.cache.SetExtraction(ctx, candidate.HAIType, textHash, payload, c.cacheTTL)
	}
	return buildExtraction(candidate, payload)
}

func (c *ExtractionClient) callService(ctx context.Context, candidate *domain.Candidate, text string) (*extractionPayload, error) {
	body, err := json.Marshal(extractionRequest{
		Model:        c.model,
		MaxTokens:    c.maxTokens,
		HAIType:      candidate.HAIType,
		EventTime:    candidate.EventTime,
		Measurements: candidate.Measurements,
		Text:         text,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode extraction request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/extract", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create extraction request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("extraction request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("extraction service returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read extraction response: %w", err)
	}
	return parseExtractionResponse(string(raw))
}

// buildExtraction converts a wire payload into a typed Extraction for the
// candidate's HAI type.
func buildExtraction(candidate *domain.Candidate, payload *extractionPayload) (*domain.Extraction, error) {
	extraction := &domain.Extraction{
		ID:          uuid.New(),
		CandidateID: candidate.ID,
		HAIType:     candidate.HAIType,
		Quality:     domain.DocQuality(payload.Quality),
		Citations:   payload.Citations,
		CreatedAt:   time.Now().UTC(),
	}

	var err error
	switch candidate.HAIType {
	case domain.HAITypeCLABSI:
		extraction.CLABSI = &domain.CLABSIFacts{}
		err = json.Unmarshal(payload.Facts, extraction.CLABSI)
	case domain.HAITypeCAUTI:
		extraction.CAUTI = &domain.CAUTIFacts{}
		err = json.Unmarshal(payload.Facts, extraction.CAUTI)
	case domain.HAITypeVAE:
		extraction.VAE = &domain.VAEFacts{}
		err = json.Unmarshal(payload.Facts, extraction.VAE)
	case domain.HAITypeSSI:
		extraction.SSI = &domain.SSIFacts{}
		err = json.Unmarshal(payload.Facts, extraction.SSI)
	default:
		return nil, fmt.Errorf("unsupported HAI type %q", candidate.HAIType)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: invalid %s facts: %v", domain.ErrExtractionFailed, candidate.HAIType, err)
	}
	return extraction, nil
}
