package extract

import (
	"encoding/json"
	"strings"

	"go.uber.org/zap"
)

// fieldExtraction mirrors one item of the model's JSON array response.
type fieldExtraction struct {
	FieldID    string         `json:"fieldId"`
	Value      string         `json:"value"`
	Unit       string         `json:"unit,omitempty"`
	Confidence float64        `json:"confidence"`
	Provenance itemProvenance `json:"provenance"`
}

type itemProvenance struct {
	Page   int       `json:"page"`
	BBox   []float64 `json:"bbox,omitempty"`
	Method string    `json:"method"`
}

// parseExtractions parses the model response into field extractions. A
// response that does not parse as a JSON array yields an empty list; a bad
// response must degrade one document, never abort the run. Items missing a
// field ID or value, or with confidence outside [0.1, 1.0], are dropped.
func parseExtractions(text string) []fieldExtraction {
	cleaned := cleanJSONArray(text)

	var items []fieldExtraction
	if err := json.Unmarshal([]byte(cleaned), &items); err != nil {
		zap.L().Warn("extract: unparseable model response",
			zap.Int("response_len", len(text)),
			zap.Error(err),
		)
		return nil
	}

	kept := items[:0]
	for _, item := range items {
		if item.FieldID == "" || item.Value == "" {
			continue
		}
		if item.Confidence < 0.1 || item.Confidence > 1.0 {
			continue
		}
		kept = append(kept, item)
	}
	return kept
}

// cleanJSONArray strips markdown fences and extracts the JSON array body.
func cleanJSONArray(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}
