// Package watch turns file system activity in a work tree into debounced
// refresh triggers.
package watch

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ErrClosed is returned when using a closed watcher.
var ErrClosed = errors.New("watcher closed")

// gitFiles are the files directly under the git directory whose changes
// alter what a refresh shows.
var gitFiles = map[string]bool{
	"index":       true,
	"HEAD":        true,
	"ORIG_HEAD":   true,
	"MERGE_HEAD":  true,
	"FETCH_HEAD":  true,
	"packed-refs": true,
}

// Options configures a Watcher.
type Options struct {
	Root string
	// GitDir is the repository's git directory; defaults to Root/.git.
	GitDir   string
	Debounce time.Duration
	Log      *slog.Logger
}

// Watcher watches a work tree and its refs.
type Watcher struct {
	fs       *fsnotify.Watcher
	root     string
	gitDir   string
	debounce time.Duration
	log      *slog.Logger
	changes  chan struct{}

	mu     sync.Mutex
	timer  *time.Timer
	closed bool

	closeCh chan struct{}
	wg      sync.WaitGroup
}

// New starts watching. The work tree is watched recursively except for
// the git directory, of which only the top level and refs are watched.
func New(opts Options) (*Watcher, error) {
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, err
	}
	gitDir := opts.GitDir
	if gitDir == "" {
		gitDir = filepath.Join(root, ".git")
	}
	if gitDir, err = filepath.Abs(gitDir); err != nil {
		return nil, err
	}
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fs:       fsw,
		root:     root,
		gitDir:   gitDir,
		debounce: opts.Debounce,
		log:      log,
		changes:  make(chan struct{}, 1),
		closeCh:  make(chan struct{}),
	}
	if err := w.addTree(root); err != nil {
		fsw.Close()
		return nil, err
	}
	if info, err := os.Stat(gitDir); err == nil && info.IsDir() {
		if err := fsw.Add(gitDir); err != nil {
			fsw.Close()
			return nil, err
		}
		_ = w.addTree(filepath.Join(gitDir, "refs"))
	}
	w.wg.Add(1)
	go w.processLoop()
	return w, nil
}

// Changes receives one value per burst of relevant activity.
func (w *Watcher) Changes() <-chan struct{} { return w.changes }

// addTree watches dir and its subdirectories, skipping the git directory.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != dir && (p == w.gitDir || d.Name() == ".git") {
			return filepath.SkipDir
		}
		if err := w.fs.Add(p); err != nil {
			w.log.Warn("watch directory", "path", p, "err", err)
		}
		return nil
	})
}

func (w *Watcher) processLoop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.closeCh:
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error", "err", err)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if ev.Op == fsnotify.Chmod || !w.relevant(ev.Name) {
		return
	}
	if ev.Has(fsnotify.Create) && !w.inGitDir(ev.Name) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			_ = w.addTree(ev.Name)
		}
	}
	w.trigger()
}

func (w *Watcher) inGitDir(path string) bool {
	return path == w.gitDir || strings.HasPrefix(path, w.gitDir+string(filepath.Separator))
}

// relevant filters git's own churn: objects, logs and lock files.
func (w *Watcher) relevant(path string) bool {
	if strings.HasSuffix(path, ".lock") {
		return false
	}
	if !w.inGitDir(path) {
		return true
	}
	rel, err := filepath.Rel(w.gitDir, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	return gitFiles[rel] || strings.HasPrefix(rel, "refs/")
}

// trigger restarts the debounce timer.
func (w *Watcher) trigger() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.fire)
}

func (w *Watcher) fire() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	select {
	case w.changes <- struct{}{}:
	default:
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
	}
	close(w.closeCh)
	w.mu.Unlock()

	w.wg.Wait()
	return w.fs.Close()
}
