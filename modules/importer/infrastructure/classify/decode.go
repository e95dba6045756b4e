package classify

import (
	"encoding/json"
	"strings"

	"github.com/go-faster/errors"
)

// DecodeResults validates the service response at the boundary. A shape
// mismatch anywhere fails the whole batch; partially-typed data never
// travels inward.
func DecodeResults(payload []byte, batchSize int) ([]Result, error) {
	var results []Result
	if err := json.Unmarshal(payload, &results); err != nil {
		return nil, errors.Wrap(err, "malformed classification response")
	}
	seen := make(map[int]struct{}, len(results))
	for i, result := range results {
		if result.Index < 0 || result.Index >= batchSize {
			return nil, errors.Errorf("classification entry %d has out-of-range index %d", i, result.Index)
		}
		if _, dup := seen[result.Index]; dup {
			return nil, errors.Errorf("classification response has duplicate index %d", result.Index)
		}
		seen[result.Index] = struct{}{}
		if strings.TrimSpace(result.PlantType) == "" {
			return nil, errors.Errorf("classification entry %d is missing plant_type", result.Index)
		}
		if strings.TrimSpace(result.Category) == "" {
			return nil, errors.Errorf("classification entry %d is missing category", result.Index)
		}
		if result.Confidence < 0 || result.Confidence > 1 {
			return nil, errors.Errorf("classification entry %d has confidence %v outside [0,1]", result.Index, result.Confidence)
		}
	}
	return results, nil
}

// extractJSONArray tolerates markdown fencing and prose around the
// response array; anything beyond that is a decode failure.
func extractJSONArray(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		if idx := strings.LastIndex(content, "```"); idx >= 0 {
			content = content[:idx]
		}
		content = strings.TrimSpace(content)
	}
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start >= 0 && end > start {
		return content[start : end+1]
	}
	return content
}
