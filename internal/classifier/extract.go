package classifier

import (
	"encoding/json"
	"regexp"
)

var fencedJSONBlock = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")

// resolveCompletionJSON implements the upstream response parsing order:
// try the whole content as a JSON object first, then a
// fenced ```json``` block, then the largest balanced `{...}` substring.
func resolveCompletionJSON(content string) (map[string]any, bool) {
	var direct map[string]any
	if err := json.Unmarshal([]byte(content), &direct); err == nil {
		return direct, true
	}

	if m := fencedJSONBlock.FindStringSubmatch(content); m != nil {
		var fenced map[string]any
		if err := json.Unmarshal([]byte(m[1]), &fenced); err == nil {
			return fenced, true
		}
	}

	return extractJSONCandidate(content)
}

// extractJSONCandidate scans s for the largest balanced `{...}` span and
// attempts to parse it as a JSON object. This heuristic can
// coincidentally parse a non-JSON substring — callers must additionally
// validate the result against the structured-risk alias table
// (domain.ValidateStructuredRiskCandidate) before accepting it.
func extractJSONCandidate(s string) (map[string]any, bool) {
	bestStart, bestEnd := -1, -1
	depth := 0
	start := -1
	for i, r := range s {
		switch r {
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start >= 0 {
					if bestStart < 0 || i-start > bestEnd-bestStart {
						bestStart, bestEnd = start, i
					}
					start = -1
				}
			}
		}
	}
	if bestStart < 0 {
		return nil, false
	}

	var candidate map[string]any
	if err := json.Unmarshal([]byte(s[bestStart:bestEnd+1]), &candidate); err != nil {
		return nil, false
	}
	return candidate, true
}
