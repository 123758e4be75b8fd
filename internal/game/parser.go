package game

import (
	"encoding/json"
	"strings"
)

// ParseOracle extracts a JSON object from the oracle's raw text. Strategies
// are tried in order, loosest last:
//
//  1. the raw text verbatim
//  2. the text with markdown code fences stripped
//  3. the substring between the first '{' and the last '}'
//
// The name of the strategy that succeeded is returned for metrics. A nil
// map means no strategy produced a JSON object and the turn must fall back.
func ParseOracle(raw string) (map[string]any, string) {
	if obj := tryParse(raw); obj != nil {
		return obj, "verbatim"
	}
	if obj := tryParse(stripFences(raw)); obj != nil {
		return obj, "fences"
	}
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		if obj := tryParse(raw[start : end+1]); obj != nil {
			return obj, "braces"
		}
	}
	return nil, ""
}

// tryParse unmarshals s and returns the result only when it is a JSON
// object. Arrays, strings, and bare numbers all count as failure.
func tryParse(s string) map[string]any {
	var obj map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &obj); err != nil {
		return nil
	}
	return obj
}

// stripFences removes markdown code-fence lines, keeping everything between
// them. Handles both ``` and ```json openers.
func stripFences(raw string) string {
	var kept []string
	for _, line := range strings.Split(raw, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
