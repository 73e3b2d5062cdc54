package inventory

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Iron-Ham/stagehand/internal/logging"
)

// debounceInterval collapses the bursts of events a generator produces
// while writing a file.
const debounceInterval = 100 * time.Millisecond

// Watcher keeps a Set in sync with an agents directory.
type Watcher struct {
	watcher  *fsnotify.Watcher
	set      *Set
	onChange func([]string)
	logger   *logging.Logger

	mu     sync.Mutex
	dir    string
	scanMu sync.Mutex // orders rescans so the last bound dir wins

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewWatcher watches dir and refreshes set when agent files appear or
// disappear. onChange, if non-nil, receives the new name list; it is called
// from the watcher goroutine.
func NewWatcher(dir string, set *Set, onChange func([]string), logger *logging.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, err
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Watcher{
		watcher:  fw,
		dir:      dir,
		set:      set,
		onChange: onChange,
		logger:   logger.WithComponent("inventory"),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start performs an initial scan and begins watching.
func (w *Watcher) Start() {
	w.rescan()
	go w.watchLoop()
}

// Rebind moves the watch to dir and rescans it. Events from the old
// directory stop arriving. If dir cannot be watched the watcher is left
// idle and the error is returned.
func (w *Watcher) Rebind(dir string) error {
	w.mu.Lock()
	old := w.dir
	if old == dir {
		w.mu.Unlock()
		return nil
	}
	if old != "" {
		_ = w.watcher.Remove(old)
	}
	w.dir = ""
	if err := w.watcher.Add(dir); err != nil {
		w.mu.Unlock()
		return err
	}
	w.dir = dir
	w.mu.Unlock()

	w.logger.Info("agents directory rebound", "from", old, "to", dir)
	w.rescan()
	return nil
}

// Dir returns the directory currently watched, or "" when idle.
func (w *Watcher) Dir() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dir
}

// Stop stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		_ = w.watcher.Close()
	})
	<-w.doneCh
}

func (w *Watcher) watchLoop() {
	defer close(w.doneCh)

	debounce := time.NewTimer(0)
	<-debounce.C
	dirty := false

	for {
		select {
		case <-w.stopCh:
			debounce.Stop()
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if _, ok := MatchFile(ev.Name); !ok {
				continue
			}
			if filepath.Dir(ev.Name) != filepath.Clean(w.Dir()) {
				continue
			}
			dirty = true
			debounce.Reset(debounceInterval)

		case <-debounce.C:
			if dirty {
				dirty = false
				w.rescan()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("agents directory watch error", "dir", w.Dir(), "error", err)
		}
	}
}

func (w *Watcher) rescan() {
	w.scanMu.Lock()
	defer w.scanMu.Unlock()

	dir := w.Dir()
	if dir == "" {
		return
	}
	names, err := ScanDir(dir)
	if err != nil {
		w.logger.Warn("failed to scan agents directory", "dir", dir, "error", err)
		return
	}
	w.set.Replace(names)
	w.logger.Debug("agents directory rescanned", "count", len(names))
	if w.onChange != nil {
		w.onChange(names)
	}
}

// ScanDir lists the agent names present in dir.
func ScanDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if name, ok := MatchFile(e.Name()); ok {
			names = append(names, name)
		}
	}
	return names, nil
}
