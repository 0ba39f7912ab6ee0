package changes

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"

	"github.com/sjoeboo/dockyard/internal/logging"
)

// eventDebounce batches bursts of filesystem events into one refresh.
const eventDebounce = 100 * time.Millisecond

// maxWatchedDirs bounds the inotify watches one worktree may take. Deeper
// trees fall back to the poll interval for the rest.
const maxWatchedDirs = 4096

// StatusFunc lists the uncommitted changes of a worktree.
type StatusFunc func(dir string) ([]FileChange, error)

// WatcherOptions tunes a Watcher. Zero values use defaults.
type WatcherOptions struct {
	// Interval is the fixed poll interval (default: 2s)
	Interval time.Duration

	// MaxRefreshPerSec caps refreshes triggered by filesystem events (default: 4)
	MaxRefreshPerSec int

	Logger *slog.Logger
}

// Watcher is the live watch source: it polls a worktree's status on a fixed
// interval and refreshes early when the filesystem reports writes. Every
// directory of the worktree is watched except hidden ones and node_modules,
// up to maxWatchedDirs; directories created later are added as they appear.
type Watcher struct {
	dir      string
	status   StatusFunc
	interval time.Duration
	limiter  *rate.Limiter
	log      *slog.Logger

	fsw       *fsnotify.Watcher
	watched   int
	changesCh chan []FileChange
	refreshCh chan struct{}
	closeCh   chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	lastMu sync.Mutex
	last   []FileChange
	primed bool
}

// NewWatcher creates a watcher for the worktree at dir.
func NewWatcher(dir string, status StatusFunc, opts WatcherOptions) (*Watcher, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("worktree does not exist: %s: %w", dir, err)
	}
	if opts.Interval <= 0 {
		opts.Interval = 2 * time.Second
	}
	if opts.MaxRefreshPerSec <= 0 {
		opts.MaxRefreshPerSec = 4
	}
	if opts.Logger == nil {
		opts.Logger = logging.ForComponent(logging.CompChanges)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to watch directory %s: %w", dir, err)
	}
	// The index changes on stage/unstage; not every worktree has a .git dir.
	gitDir := filepath.Join(dir, ".git")
	if info, err := os.Stat(gitDir); err == nil && info.IsDir() {
		_ = w.Add(gitDir)
	}

	watcher := &Watcher{
		dir:       dir,
		status:    status,
		interval:  opts.Interval,
		limiter:   rate.NewLimiter(rate.Limit(opts.MaxRefreshPerSec), 1),
		log:       opts.Logger.With(slog.String("dir", dir)),
		fsw:       w,
		watched:   1,
		changesCh: make(chan []FileChange, 1),
		refreshCh: make(chan struct{}, 1),
		closeCh:   make(chan struct{}),
	}
	watcher.addSubdirs(dir)
	return watcher, nil
}

func skipDir(name string) bool {
	return strings.HasPrefix(name, ".") || name == "node_modules"
}

// addSubdirs watches every directory below root. Only the constructor and
// the loop goroutine call it.
func (w *Watcher) addSubdirs(root string) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() || path == root {
			return nil
		}
		if skipDir(d.Name()) {
			return filepath.SkipDir
		}
		if w.watched >= maxWatchedDirs {
			return filepath.SkipAll
		}
		if err := w.fsw.Add(path); err != nil {
			w.log.Debug("watch add failed", slog.String("path", path), slog.String("error", err.Error()))
			return filepath.SkipDir
		}
		w.watched++
		return nil
	})
}

// Dir returns the watched worktree.
func (w *Watcher) Dir() string {
	return w.dir
}

// Changes returns the channel that receives each new change list.
// Only the newest undelivered list is kept.
func (w *Watcher) Changes() <-chan []FileChange {
	return w.changesCh
}

// Done is closed once Close has been called.
func (w *Watcher) Done() <-chan struct{} {
	return w.closeCh
}

// Start performs an initial refresh and begins watching (non-blocking).
func (w *Watcher) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Refresh requests an immediate status refresh.
func (w *Watcher) Refresh() {
	select {
	case w.refreshCh <- struct{}{}:
	default:
	}
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	debounce := time.NewTimer(0)
	debounce.Stop()

	w.refresh()

	for {
		select {
		case <-w.closeCh:
			return

		case <-ticker.C:
			w.refresh()

		case <-w.refreshCh:
			w.refresh()

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			if event.Has(fsnotify.Create) {
				w.watchCreated(event.Name)
			}
			debounce.Reset(eventDebounce)

		case <-debounce.C:
			// Over the cap the next tick picks the change up.
			if w.limiter.Allow() {
				w.refresh()
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error", slog.String("error", err.Error()))
		}
	}
}

// watchCreated starts watching a directory that appeared in the worktree.
func (w *Watcher) watchCreated(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() || skipDir(info.Name()) || w.watched >= maxWatchedDirs {
		return
	}
	if err := w.fsw.Add(path); err != nil {
		return
	}
	w.watched++
	w.addSubdirs(path)
}

// relevant filters out git's own lock and object churn.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Dir(event.Name) != filepath.Join(w.dir, ".git") {
		return true
	}
	base := filepath.Base(event.Name)
	return base == "index" || base == "HEAD"
}

func (w *Watcher) refresh() {
	list, err := w.status(w.dir)
	if err != nil {
		w.log.Debug("status failed", slog.String("error", err.Error()))
		return
	}

	w.lastMu.Lock()
	if w.primed && Equal(list, w.last) {
		w.lastMu.Unlock()
		return
	}
	w.last = list
	w.primed = true
	w.lastMu.Unlock()

	w.publish(list)
}

// publish replaces any undelivered list with the newest one.
func (w *Watcher) publish(list []FileChange) {
	for {
		select {
		case w.changesCh <- list:
			return
		default:
		}
		select {
		case <-w.changesCh:
		default:
		}
	}
}

// Close stops the watcher and releases resources
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.closeCh)
		err = w.fsw.Close()
		w.wg.Wait()
	})
	return err
}
