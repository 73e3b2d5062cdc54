// Package inventory tracks which agent assets already exist on disk.
//
// The inventory probe is an ordinary directory listing; its output is parsed
// with a fixed filename pattern (<name>_agent.py). Names are compared in a
// normalized form so that "Data Fetcher", "data-fetcher" and "data_fetcher"
// all refer to the same agent.
package inventory

import (
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/gobwas/glob"
)

// FilePattern is the filename pattern of a generated agent.
const FilePattern = "*_agent.py"

const fileSuffix = "_agent.py"

var agentGlob = glob.MustCompile(FilePattern)

// MatchFile reports whether path names an agent file, and returns the
// agent name if so.
func MatchFile(path string) (string, bool) {
	base := filepath.Base(strings.TrimSpace(path))
	if !agentGlob.Match(base) {
		return "", false
	}
	name := strings.TrimSuffix(base, fileSuffix)
	if name == "" {
		return "", false
	}
	return name, true
}

// Parse extracts agent names from probe output. Lines may hold several
// whitespace-separated entries (plain ls output) or full paths (find).
// Names are returned in first-seen order without duplicates.
func Parse(output string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, field := range strings.Fields(output) {
		name, ok := MatchFile(field)
		if !ok {
			continue
		}
		key := Normalize(name)
		if seen[key] {
			continue
		}
		seen[key] = true
		names = append(names, name)
	}
	return names
}

// Normalize lowercases name, strips quotes and an agent file suffix, and
// folds spaces and hyphens to underscores.
func Normalize(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.Trim(s, `'"`)
	s = strings.TrimSuffix(s, ".py")
	s = strings.TrimSuffix(s, "_agent")
	s = strings.Join(strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_' || r == '\t'
	}), "_")
	return s
}

// Set is a concurrency-safe set of known agent names.
type Set struct {
	mu    sync.RWMutex
	names map[string]string // normalized -> name as first seen
}

// NewSet creates a Set holding names.
func NewSet(names ...string) *Set {
	s := &Set{names: make(map[string]string)}
	s.Add(names...)
	return s
}

// Add records names. Empty names are ignored.
func (s *Set) Add(names ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	addNames(s.names, names)
}

// Replace swaps the contents of the set for names. Readers see either the
// old or the new contents, never an empty set in between.
func (s *Set) Replace(names []string) {
	next := make(map[string]string, len(names))
	addNames(next, names)
	s.mu.Lock()
	s.names = next
	s.mu.Unlock()
}

func addNames(m map[string]string, names []string) {
	for _, n := range names {
		key := Normalize(n)
		if key == "" {
			continue
		}
		if _, ok := m[key]; !ok {
			m[key] = strings.TrimSpace(n)
		}
	}
}

// Has reports an exact match after normalization.
func (s *Set) Has(name string) bool {
	key := Normalize(name)
	if key == "" {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.names[key]
	return ok
}

// Matches reports whether name refers to a known agent, tolerating a
// prefix or suffix on either side ("fetcher" matches "data_fetcher").
// Empty names never match.
func (s *Set) Matches(name string) bool {
	key := Normalize(name)
	if key == "" {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for known := range s.names {
		if tolerantEqual(key, known) {
			return true
		}
	}
	return false
}

func tolerantEqual(a, b string) bool {
	if a == b {
		return true
	}
	return strings.HasPrefix(a, b) || strings.HasPrefix(b, a) ||
		strings.HasSuffix(a, b) || strings.HasSuffix(b, a)
}

// Names returns the known names sorted by normalized form.
func (s *Set) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.names))
	for k := range s.names {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = s.names[k]
	}
	return out
}

// Len returns the number of known agents.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.names)
}
