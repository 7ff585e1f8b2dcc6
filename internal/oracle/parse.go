package oracle

import (
	"encoding/json"
	"math"
	"strings"
)

// clamp01 forces a confidence into [0,1]; NaN collapses to 0.
func clamp01(f float64) float64 {
	if math.IsNaN(f) {
		return 0
	}
	return math.Max(0, math.Min(1, f))
}

// extractBalanced returns the first balanced open..close region of s,
// skipping brackets inside JSON string literals. ok is false when no
// balanced region exists.
func extractBalanced(s string, open, close byte) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			if start >= 0 {
				inString = true
			}
		case open:
			if start < 0 {
				start = i
			}
			depth++
		case close:
			if start >= 0 {
				depth--
				if depth == 0 {
					return s[start : i+1], true
				}
			}
		}
	}
	return "", false
}

// extractJSONObject pulls the first balanced JSON object out of possibly
// prose-wrapped oracle output and verifies it parses.
func extractJSONObject(s string) (string, bool) {
	candidate, ok := extractBalanced(s, '{', '}')
	if !ok {
		return "", false
	}
	if !json.Valid([]byte(candidate)) {
		return "", false
	}
	return candidate, true
}

// extractJSONArray is extractJSONObject for top-level arrays.
func extractJSONArray(s string) (string, bool) {
	candidate, ok := extractBalanced(s, '[', ']')
	if !ok {
		return "", false
	}
	if !json.Valid([]byte(candidate)) {
		return "", false
	}
	return candidate, true
}

// parseScoreVector parses a JSON array of want numbers out of raw output.
// Any failure, including a length mismatch, yields (nil, false).
func parseScoreVector(raw string, want int) ([]float64, bool) {
	arr, ok := extractJSONArray(raw)
	if !ok {
		return nil, false
	}
	var scores []float64
	if err := json.Unmarshal([]byte(arr), &scores); err != nil {
		return nil, false
	}
	if len(scores) != want {
		return nil, false
	}
	for i := range scores {
		scores[i] = clamp01(scores[i])
	}
	return scores, true
}

// nonEmptyLines splits line-oriented output, trimming whitespace and simple
// list markers the oracle tends to add.
func nonEmptyLines(raw string) []string {
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "- ")
		line = strings.TrimPrefix(line, "* ")
		line = strings.Trim(line, "\"")
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
