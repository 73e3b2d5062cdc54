package plan

import (
	"strings"

	"github.com/Iron-Ham/stagehand/internal/inventory"
)

// TargetName returns the agent named by a generation command: the words
// after the last "agent" token, up to the first flag. It is empty for
// commands that do not name an agent.
func TargetName(command string) string {
	fields := strings.Fields(command)
	at := -1
	for i, f := range fields {
		if strings.EqualFold(f, "agent") {
			at = i
		}
	}
	if at < 0 {
		return ""
	}

	var words []string
	for _, f := range fields[at+1:] {
		if strings.HasPrefix(f, "-") {
			break
		}
		words = append(words, f)
	}
	return strings.Trim(strings.Join(words, " "), `'"`)
}

// FilterExisting removes commands whose target agent is already known.
// Commands without a target are always kept.
func FilterExisting(commands []string, known *inventory.Set) (kept, skipped []string) {
	for _, cmd := range commands {
		if known != nil {
			if name := TargetName(cmd); name != "" && known.Matches(name) {
				skipped = append(skipped, cmd)
				continue
			}
		}
		kept = append(kept, cmd)
	}
	return kept, skipped
}
