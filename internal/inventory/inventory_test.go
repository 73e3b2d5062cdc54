package inventory

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   []string
	}{
		{
			name:   "ls one per line",
			output: "foo_agent.py\nbar_agent.py\nREADME.md\n",
			want:   []string{"foo", "bar"},
		},
		{
			name:   "ls columns",
			output: "foo_agent.py   bar_agent.py\t__init__.py",
			want:   []string{"foo", "bar"},
		},
		{
			name:   "full paths",
			output: "./agents/data_fetcher_agent.py\n/abs/agents/Writer_agent.py",
			want:   []string{"data_fetcher", "Writer"},
		},
		{
			name:   "duplicates collapse",
			output: "foo_agent.py\nFOO_agent.py",
			want:   []string{"foo"},
		},
		{
			name:   "bare suffix is not an agent",
			output: "_agent.py agent.py foo_agent.pyc",
			want:   nil,
		},
		{
			name:   "empty",
			output: "",
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.output)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Parse() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Data Fetcher", "data_fetcher"},
		{"data-fetcher", "data_fetcher"},
		{"  'Data_Fetcher' ", "data_fetcher"},
		{"data_fetcher_agent.py", "data_fetcher"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSet_Matches(t *testing.T) {
	s := NewSet("Foo", "data_fetcher")

	tests := []struct {
		name string
		want bool
	}{
		{"foo", true},
		{"FOO", true},
		{"Data Fetcher", true},
		{"fetcher", true},
		{"data", true},
		{"foo_bar", true},
		{"Bar", false},
		{"", false},
		{"   ", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Matches(tt.name); got != tt.want {
				t.Errorf("Matches(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestSet_HasAndReplace(t *testing.T) {
	s := NewSet("Foo", "", "foo")
	if s.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", s.Len())
	}
	if !s.Has("FOO") || s.Has("fo") {
		t.Error("Has should be an exact normalized match")
	}

	s.Replace([]string{"Bar", "Baz"})
	if s.Has("foo") {
		t.Error("Replace should drop old names")
	}
	if got := s.Names(); !reflect.DeepEqual(got, []string{"Bar", "Baz"}) {
		t.Errorf("Names() = %v", got)
	}
}

func TestSet_ReplaceNeverLooksEmpty(t *testing.T) {
	s := NewSet("alice", "bob")
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range 2000 {
			s.Replace([]string{"alice", "bob"})
		}
	}()

	for {
		select {
		case <-done:
			return
		default:
		}
		if !s.Matches("alice") {
			t.Fatal("Matches saw the set between clear and refill")
		}
	}
}

func TestScanDir(t *testing.T) {
	dir := t.TempDir()
	for _, f := range []string{"foo_agent.py", "bar_agent.py", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, f), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "dir_agent.py"), 0o755); err != nil {
		t.Fatal(err)
	}

	names, err := ScanDir(dir)
	if err != nil {
		t.Fatalf("ScanDir() error = %v", err)
	}
	if !reflect.DeepEqual(names, []string{"bar", "foo"}) {
		t.Errorf("ScanDir() = %v", names)
	}

	if _, err := ScanDir(filepath.Join(dir, "missing")); err == nil {
		t.Error("ScanDir of a missing directory should fail")
	}
}

func TestWatcher_PicksUpNewAgents(t *testing.T) {
	dir := t.TempDir()
	set := NewSet()
	changes := make(chan []string, 8)

	w, err := NewWatcher(dir, set, func(names []string) { changes <- names }, nil)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	w.Start()
	defer w.Stop()

	<-changes // initial scan

	if err := os.WriteFile(filepath.Join(dir, "writer_agent.py"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case names := <-changes:
			if len(names) == 1 && names[0] == "writer" {
				if !set.Has("writer") {
					t.Error("set should contain writer")
				}
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for watcher to notice new agent")
		}
	}
}

func TestWatcher_RebindFollowsNewDir(t *testing.T) {
	oldDir, newDir := t.TempDir(), t.TempDir()
	for dir, file := range map[string]string{oldDir: "old_agent.py", newDir: "fresh_agent.py"} {
		if err := os.WriteFile(filepath.Join(dir, file), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	set := NewSet()
	changes := make(chan []string, 64)
	w, err := NewWatcher(oldDir, set, func(names []string) { changes <- names }, nil)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	w.Start()
	defer w.Stop()
	<-changes

	if err := w.Rebind(newDir); err != nil {
		t.Fatalf("Rebind() error = %v", err)
	}
	if got := <-changes; !reflect.DeepEqual(got, []string{"fresh"}) {
		t.Errorf("rescan after Rebind = %v, want [fresh]", got)
	}
	if set.Has("old") || !set.Has("fresh") {
		t.Errorf("set = %v after Rebind", set.Names())
	}
	if w.Dir() != newDir {
		t.Errorf("Dir() = %q, want %q", w.Dir(), newDir)
	}

	if err := os.WriteFile(filepath.Join(oldDir, "stale_agent.py"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(newDir, "later_agent.py"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case names := <-changes:
			if !reflect.DeepEqual(names, []string{"fresh", "later"}) {
				continue
			}
			if set.Has("stale") {
				t.Error("file in the old directory leaked into the set")
			}
			return
		case <-deadline:
			t.Fatal("timed out waiting for the rebound watcher")
		}
	}
}

func TestWatcher_RebindToMissingDirGoesIdle(t *testing.T) {
	w, err := NewWatcher(t.TempDir(), NewSet(), nil, nil)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	w.Start()
	defer w.Stop()

	if err := w.Rebind(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("Rebind to a missing directory should fail")
	}
	if w.Dir() != "" {
		t.Errorf("Dir() = %q, want idle", w.Dir())
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w, err := NewWatcher(t.TempDir(), NewSet(), nil, nil)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	w.Start()
	w.Stop()
	w.Stop()
}
