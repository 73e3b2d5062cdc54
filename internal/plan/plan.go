// Package plan compiles stage graphs from advisory plans, from free text,
// or from the static default pipeline.
//
// Compilation never fails on content: unknown stage names become
// synthesized stages that wait for the user, and ordering mistakes are
// repaired. Only documents that cannot be decoded at all produce an error.
package plan

import (
	"bytes"
	"encoding/json"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/stagehand/internal/errors"
)

// Plan is a structured description of intended stages.
type Plan struct {
	Intent string  `json:"intent" yaml:"intent"`
	Stages []Entry `json:"workflow_stages" yaml:"workflow_stages"`
}

// Entry is one requested stage. At most one of Command and Commands is
// expected; when both are set they are merged, Command first.
type Entry struct {
	Stage       string   `json:"stage" yaml:"stage"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Command     string   `json:"command,omitempty" yaml:"command,omitempty"`
	Commands    []string `json:"commands,omitempty" yaml:"commands,omitempty"`
	NextStage   string   `json:"next_stage,omitempty" yaml:"next_stage,omitempty"`
	Prompt      string   `json:"prompt,omitempty" yaml:"prompt,omitempty"`
	AutoAdvance *bool    `json:"auto_advance,omitempty" yaml:"auto_advance,omitempty"`
}

// AllCommands returns the entry's commands in order, skipping blanks.
func (e Entry) AllCommands() []string {
	var out []string
	if c := strings.TrimSpace(e.Command); c != "" {
		out = append(out, c)
	}
	for _, c := range e.Commands {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

// Empty reports whether the plan requests no stages.
func (p Plan) Empty() bool {
	return len(p.Stages) == 0
}

// Load reads a plan file. YAML and JSON are both accepted.
func Load(path string) (Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Plan{}, errors.NewPlanError(path, err)
	}
	return ParseYAML(path, data)
}

// ParseYAML decodes a YAML (or JSON) plan document.
func ParseYAML(source string, data []byte) (Plan, error) {
	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Plan{}, errors.NewPlanError(source, err)
	}
	return p, nil
}

// ParseJSON decodes a JSON plan document.
func ParseJSON(source string, data []byte) (Plan, error) {
	var p Plan
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&p); err != nil {
		return Plan{}, errors.NewPlanError(source, err)
	}
	return p, nil
}

var fencedBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*\\n(.*?)\\n\\s*```")

// Extract finds a plan embedded in advisory free text: a fenced JSON block,
// a bare JSON object, or an object nested under a "plan" key. ok is false
// when the text holds no decodable plan with at least one stage.
func Extract(text string) (p Plan, ok bool) {
	for _, m := range fencedBlockRe.FindAllStringSubmatch(text, -1) {
		if p, ok := decodeCandidate(m[1]); ok {
			return p, true
		}
	}
	for _, candidate := range jsonObjects(text) {
		if p, ok := decodeCandidate(candidate); ok {
			return p, true
		}
	}
	return Plan{}, false
}

func decodeCandidate(s string) (Plan, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") {
		return Plan{}, false
	}
	var wrapper struct {
		Nested *Plan `json:"plan"`
		Plan
	}
	if err := json.Unmarshal([]byte(s), &wrapper); err != nil {
		return Plan{}, false
	}
	if wrapper.Nested != nil && !wrapper.Nested.Empty() {
		return *wrapper.Nested, true
	}
	if !wrapper.Plan.Empty() {
		return wrapper.Plan, true
	}
	return Plan{}, false
}

// jsonObjects returns the balanced top-level {...} spans of text, ignoring
// braces inside string literals.
func jsonObjects(text string) []string {
	var out []string
	depth, start := 0, -1
	inString, escaped := false, false
	for i := 0; i < len(text); i++ {
		c := text[i]
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
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				out = append(out, text[start:i+1])
			}
		}
	}
	return out
}
