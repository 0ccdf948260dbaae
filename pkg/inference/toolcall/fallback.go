package toolcall

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Some providers describe a tool call in prose instead of structured deltas.
// Two conventions are recognized: explicit parameter tags in the text, and,
// for search-style tools, the first long enough line of text as the query.

var parameterTagRe = regexp.MustCompile(`(?s)<parameter\s+name="([^"]+)">(.*?)</parameter>`)

const minQueryLineLength = 3

// extractArgsFromText attempts to recover an argument object from plain text.
// Returns ok=false when neither convention matched; callers treat that as a
// best-effort miss, not a failure.
func extractArgsFromText(toolName string, text string) (json.RawMessage, bool) {
	if args, ok := extractParameterTags(text); ok {
		return args, true
	}
	if isSearchTool(toolName) {
		if query, ok := firstLongLine(text); ok {
			args, err := json.Marshal(map[string]string{"query": query})
			if err != nil {
				return nil, false
			}
			return args, true
		}
	}
	return nil, false
}

func extractParameterTags(text string) (json.RawMessage, bool) {
	matches := parameterTagRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil, false
	}
	params := make(map[string]string, len(matches))
	for _, m := range matches {
		params[m[1]] = strings.TrimSpace(m[2])
	}
	args, err := json.Marshal(params)
	if err != nil {
		return nil, false
	}
	return args, true
}

func isSearchTool(name string) bool {
	return strings.Contains(strings.ToLower(name), "search")
}

// firstLongLine returns the first line whose trimmed length exceeds the
// minimum query length.
func firstLongLine(text string) (string, bool) {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if len(line) > minQueryLineLength {
			return line, true
		}
	}
	return "", false
}
