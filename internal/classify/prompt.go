package classify

import (
	"regexp"
	"strings"
)

// PromptPatterns detect a running command asking for interactive input.
var PromptPatterns = []string{
	`(?i)\[Y(?:es)?/[Nn](?:o)?\]\s*:?\s*$`,
	`(?i)\(y(?:es)?/n(?:o)?\)\s*:?\s*$`,
	`(?i)press (?:y|enter) to (?:confirm|continue|proceed|approve)`,
	`(?i)type ['"]?(?:yes|y)['"]? to (?:confirm|continue|proceed)`,
	`(?i)^(?:enter|provide|choose|select) [^:]{1,60}:\s*$`,
	`(?i)\b(?:continue|proceed|overwrite)\?\s*$`,
}

var promptRes = compilePatterns(PromptPatterns)

// compilePatterns compiles a list of regex pattern strings.
// Invalid patterns are silently skipped.
func compilePatterns(patterns []string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		if re, err := regexp.Compile(p); err == nil {
			compiled = append(compiled, re)
		}
	}
	return compiled
}

// IsPrompt reports whether a single output line is a request for input.
func IsPrompt(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	return matchesAny(line, promptRes)
}
