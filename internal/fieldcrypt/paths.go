package fieldcrypt

import "strings"

// SensitivePaths is the central allowlist of field paths whose string values
// are encrypted at rest. Patterns are dotted segment lists; "*" matches any
// single segment (array indices count as segments). The list is explicit on
// purpose: sensitivity is never inferred from field names.
var SensitivePaths = []string{
	"agentApiProxy.apiKey",
	"oauth.accessToken",
	"oauth.refreshToken",
	"environmentVariables.*.value",
	"mcpServers.*.env.*.value",
}

// matcher is one compiled pattern.
type matcher struct {
	segments []string
}

// compilePatterns parses the patterns once; matching afterwards is a plain
// segment walk with no string parsing.
func compilePatterns(patterns []string) []matcher {
	matchers := make([]matcher, 0, len(patterns))
	for _, p := range patterns {
		matchers = append(matchers, matcher{segments: strings.Split(p, ".")})
	}
	return matchers
}

func (m matcher) matches(path []string) bool {
	if len(path) != len(m.segments) {
		return false
	}
	for i, seg := range m.segments {
		if seg != "*" && seg != path[i] {
			return false
		}
	}
	return true
}

func anyMatches(matchers []matcher, path []string) bool {
	for _, m := range matchers {
		if m.matches(path) {
			return true
		}
	}
	return false
}
