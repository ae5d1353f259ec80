// Package clinical contains the clients for the external clinical
// collaborators: the note retrieval service, the language-model fact
// extraction service, and the HTTP clinical data source the detectors
// read from.
package clinical

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hai-surveillance-server/internal/domain"
)

// extractionPayload is the wire shape of one fact-extraction response.
// Facts stays raw until the HAI type selects the concrete fact struct.
type extractionPayload struct {
	Quality   string                `json:"quality"`
	Citations []domain.FactCitation `json:"citations"`
	Facts     json.RawMessage       `json:"facts"`
}

// parseExtractionResponse parses a model response into an extraction
// payload. Models frequently wrap JSON in markdown code fences or lead
// with prose, so the parser strips fences and trims to the outermost JSON
// object before unmarshalling.
func parseExtractionResponse(raw string) (*extractionPayload, error) {
	cleaned := stripJSONFences(raw)
	if cleaned == "" {
		return nil, fmt.Errorf("%w: empty response", domain.ErrExtractionFailed)
	}

	var payload extractionPayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrExtractionFailed, err)
	}
	if !domain.DocQuality(payload.Quality).Valid() {
		return nil, fmt.Errorf("%w: unknown documentation quality %q", domain.ErrExtractionFailed, payload.Quality)
	}
	if len(payload.Facts) == 0 {
		return nil, fmt.Errorf("%w: response carries no facts", domain.ErrExtractionFailed)
	}
	return &payload, nil
}

// stripJSONFences removes markdown code fences and surrounding prose,
// returning the outermost JSON object in the text.
func stripJSONFences(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return ""
	}
	return s[start : end+1]
}
