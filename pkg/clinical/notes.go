package clinical

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/hai-surveillance-server/internal/domain"
)

// NotesClient retrieves clinical note text from the documentation service.
// Calls go through a circuit breaker so a degraded notes service fails
// fast instead of stalling every classification.
type NotesClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

// NewNotesClient creates a note retrieval client.
func NewNotesClient(config domain.NotesConfig) *NotesClient {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "NotesService",
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
	})

	return &NotesClient{
		baseURL: config.BaseURL,
		apiKey:  config.APIKey,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		breaker: breaker,
	}
}

// notesResponse is the documentation service's wire shape.
type notesResponse struct {
	Notes []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"notes"`
}

// GetNotes fetches note text for a patient within ±windowDays of center,
// filtered to the given note types. An empty result is not an error; the
// caller treats missing text as insufficient documentation.
func (c *NotesClient) GetNotes(ctx context.Context, patientID string, center time.Time, windowDays int, noteTypes []string) (string, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetchNotes(ctx, patientID, center, windowDays, noteTypes)
	})
	if err != nil {
		return "", fmt.Errorf("failed to retrieve notes for patient %s: %w", patientID, err)
	}
	return result.(string), nil
}

func (c *NotesClient) fetchNotes(ctx context.Context, patientID string, center time.Time, windowDays int, noteTypes []string) (string, error) {
	params := url.Values{}
	params.Set("patient_id", patientID)
	params.Set("from", center.AddDate(0, 0, -windowDays).Format(time.RFC3339))
	params.Set("to", center.AddDate(0, 0, windowDays).Format(time.RFC3339))
	params.Set("window_days", strconv.Itoa(windowDays))
	for _, t := range noteTypes {
		params.Add("type", t)
	}

	requestURL := fmt.Sprintf("%s/notes?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create notes request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("notes request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("notes service returned status %d", resp.StatusCode)
	}

	var body notesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode notes response: %w", err)
	}

	var sections []string
	for _, note := range body.Notes {
		text := strings.TrimSpace(note.Text)
		if text == "" {
			continue
		}
		sections = append(sections, fmt.Sprintf("[%s]\n%s", note.Type, text))
	}
	return strings.Join(sections, "\n\n"), nil
}
