package clinical

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/hai-surveillance-server/internal/domain"
)

// SourceClient is the HTTP adapter for the clinical data source the
// detectors read from. The gateway fronts the site's FHIR/HL7 feeds; this
// client only understands the gateway's flattened JSON shapes.
type SourceClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewSourceClient creates a data source client.
func NewSourceClient(config domain.SourceConfig) *SourceClient {
	return &SourceClient{
		baseURL: config.BaseURL,
		apiKey:  config.APIKey,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// GetEvents returns raw events of one kind in [start, end).
func (c *SourceClient) GetEvents(ctx context.Context, kind domain.EventKind, start, end time.Time) ([]domain.RawEvent, error) {
	params := url.Values{}
	params.Set("kind", string(kind))
	params.Set("start", start.Format(time.RFC3339))
	params.Set("end", end.Format(time.RFC3339))

	var events []domain.RawEvent
	if err := c.getJSON(ctx, "/events?"+params.Encode(), &events); err != nil {
		return nil, fmt.Errorf("failed to fetch %s events: %w", kind, err)
	}
	return events, nil
}

// GetCentralLine returns the central line episode covering asOf.
func (c *SourceClient) GetCentralLine(ctx context.Context, patientID string, asOf time.Time) (*domain.DeviceEpisode, error) {
	return c.getDevice(ctx, "central-line", patientID, asOf)
}

// GetUrinaryCatheter returns the most recent indwelling catheter episode
// at or before asOf.
func (c *SourceClient) GetUrinaryCatheter(ctx context.Context, patientID string, asOf time.Time) (*domain.DeviceEpisode, error) {
	return c.getDevice(ctx, "urinary-catheter", patientID, asOf)
}

func (c *SourceClient) getDevice(ctx context.Context, device, patientID string, asOf time.Time) (*domain.DeviceEpisode, error) {
	params := url.Values{}
	params.Set("patient_id", patientID)
	params.Set("as_of", asOf.Format(time.RFC3339))

	var episode domain.DeviceEpisode
	if err := c.getJSON(ctx, fmt.Sprintf("/devices/%s?%s", device, params.Encode()), &episode); err != nil {
		return nil, err
	}
	return &episode, nil
}

// GetVentilatorDailyValues returns per-day minimum FiO2/PEEP values,
// ordered by date.
func (c *SourceClient) GetVentilatorDailyValues(ctx context.Context, patientID string, start, end time.Time) ([]domain.VentilatorDay, error) {
	params := url.Values{}
	params.Set("patient_id", patientID)
	params.Set("start", start.Format(time.RFC3339))
	params.Set("end", end.Format(time.RFC3339))

	var days []domain.VentilatorDay
	if err := c.getJSON(ctx, "/ventilator-days?"+params.Encode(), &days); err != nil {
		return nil, fmt.Errorf("failed to fetch ventilator days for patient %s: %w", patientID, err)
	}
	return days, nil
}

// GetProcedure resolves an operative procedure reference.
func (c *SourceClient) GetProcedure(ctx context.Context, procedureID string) (*domain.Procedure, error) {
	var procedure domain.Procedure
	if err := c.getJSON(ctx, "/procedures/"+url.PathEscape(procedureID), &procedure); err != nil {
		return nil, err
	}
	return &procedure, nil
}

func (c *SourceClient) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("data source returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
