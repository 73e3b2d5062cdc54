// Package testutil provides testing utilities for stagehand tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// SetupAgentsDir creates a temporary agents directory holding one
// <name>_agent.py file per name. The directory is cleaned up when the test
// completes.
func SetupAgentsDir(t *testing.T, names ...string) string {
	t.Helper()

	dir := filepath.Join(t.TempDir(), "agents")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("failed to create agents dir: %v", err)
	}
	for _, name := range names {
		WriteAgent(t, dir, name)
	}
	return dir
}

// WriteAgent creates <dir>/<name>_agent.py.
func WriteAgent(t *testing.T, dir, name string) string {
	t.Helper()

	path := filepath.Join(dir, name+"_agent.py")
	if err := os.WriteFile(path, []byte("# agent "+name+"\n"), 0644); err != nil {
		t.Fatalf("failed to write agent %s: %v", name, err)
	}
	return path
}

// WriteFile writes content to a path relative to dir, creating parents.
func WriteFile(t *testing.T, dir, rel, content string) string {
	t.Helper()

	full := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", rel, err)
	}
	if err := os.WriteFile(full, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write file %s: %v", rel, err)
	}
	return full
}
