package workflow

import (
	"strings"

	"helix-navigator/backend/internal/constants"
)

// SplitReasoning separates a chain-of-thought response into its reasoning
// section and final value, per the v1 delimiter contract: everything after
// the last occurrence of the final-answer marker is the value. Responses
// without the marker fall back to the last-line convention, treating the
// last non-empty line as the value.
func SplitReasoning(response string) (reasoning, final string) {
	response = strings.TrimSpace(response)
	if response == "" {
		return "", ""
	}

	if idx := strings.LastIndex(response, constants.CoTFinalMarker); idx >= 0 {
		reasoning = strings.TrimSpace(response[:idx])
		final = strings.TrimSpace(response[idx+len(constants.CoTFinalMarker):])
		return reasoning, final
	}

	lines := strings.Split(response, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		return strings.TrimSpace(strings.Join(lines[:i], "\n")), line
	}
	return "", response
}
