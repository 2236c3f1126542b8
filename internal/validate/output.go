package validate

import (
	"encoding/json"
	"errors"
	"fmt"

	"plugin-exec-engine/internal/policy"
)

// ErrOutputTooLarge marks results that exceed the output budget and cannot
// be reduced safely.
var ErrOutputTooLarge = errors.New("output too large")

const truncationMarker = "... [output truncated]"

// SanitizeOutput enforces the output-size budget from the resource limits.
// String results over budget are hard-truncated with a marker; any other
// over-budget result fails with ErrOutputTooLarge. Results that cannot be
// serialized at all fall back to their string representation, truncated to
// the budget; that path never returns an error.
func SanitizeOutput(result any, limits policy.ResourceLimits) (any, error) {
	budget := limits.MaxOutputSizeKB * 1024
	if budget <= 0 {
		budget = policy.DefaultLimits().MaxOutputSizeKB * 1024
	}

	data, err := json.Marshal(result)
	if err != nil {
		return truncate(fmt.Sprint(result), budget), nil
	}
	if len(data) <= budget {
		return result, nil
	}

	if s, ok := result.(string); ok {
		return truncate(s, budget), nil
	}

	return nil, fmt.Errorf("%w: result serializes to %d bytes, budget is %d KB",
		ErrOutputTooLarge, len(data), limits.MaxOutputSizeKB)
}

func truncate(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	cut := maxBytes - len(truncationMarker)
	if cut < 0 {
		cut = 0
	}
	return s[:cut] + truncationMarker
}
