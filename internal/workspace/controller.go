// Package workspace switches the active session and keeps its tabs, tree
// expansion, panel layout and change annotations consistent while
// persistence and file reads resolve in the background.
package workspace

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sjoeboo/dockyard/internal/changes"
	"github.com/sjoeboo/dockyard/internal/diffparse"
	"github.com/sjoeboo/dockyard/internal/layout"
	"github.com/sjoeboo/dockyard/internal/logging"
	"github.com/sjoeboo/dockyard/internal/viewstate"
)

// Options wire a Controller to its collaborators.
type Options struct {
	Gateway Gateway
	// Files hydrates tabs. Nil keeps restored tabs without content.
	Files FileReader
	// Changes feeds the base-branch list and active diff. Nil disables both.
	Changes ChangeSource
	// LayoutDebounce delays layout writes (default 500ms).
	LayoutDebounce time.Duration
	// IOTimeout bounds each background call (default 5s).
	IOTimeout time.Duration
	// HydrateLimit caps concurrent tab reads (default 8).
	HydrateLimit int
}

// Controller owns the active session context. Mutations apply immediately
// and return commands for the I/O they start; results come back through
// Update.
type Controller struct {
	store   *viewstate.Store
	engine  *layout.Engine
	files   FileReader
	source  ChangeSource
	timeout time.Duration
	limit   int
	log     *slog.Logger

	mu         sync.Mutex
	session    *Session
	generation uint64
	view       viewstate.ViewState
	contents   map[string]string
	// loading is true until the active session's view state resolves.
	loading bool
	// viewDirty marks a user edit since the switch. Edits made while loading
	// are merged into the restored state instead of being written over it.
	viewDirty   bool
	treeReady   bool
	rootPending bool
	base        []changes.FileChange
	watch       []changes.FileChange
	merged      []changes.FileChange
	diffPath    string
	ranges      diffparse.LineRanges
	diffFiles   []diffparse.FileTexts
	diffStat    diffparse.Stats

	// merges tracks background merges of edits made before a restore landed.
	merges sync.WaitGroup

	subMu  sync.Mutex
	nextID int
	subs   map[int]func(State)
}

// New creates a controller with no active session.
func New(opts Options) *Controller {
	if opts.IOTimeout <= 0 {
		opts.IOTimeout = 5 * time.Second
	}
	if opts.HydrateLimit <= 0 {
		opts.HydrateLimit = 8
	}
	var vsBackend viewstate.Backend
	var lBackend layout.Backend
	if opts.Gateway != nil {
		vsBackend, lBackend = opts.Gateway, opts.Gateway
	}
	return &Controller{
		store:    viewstate.NewStore(noopBackend{vsBackend}),
		engine:   layout.NewEngine(lBackend, layout.Options{Debounce: opts.LayoutDebounce, IOTimeout: opts.IOTimeout}),
		files:    opts.Files,
		source:   opts.Changes,
		timeout:  opts.IOTimeout,
		limit:    opts.HydrateLimit,
		log:      logging.ForComponent(logging.CompWorkspace),
		view:     viewstate.New(),
		contents: map[string]string{},
		ranges:   emptyRanges(),
		subs:     map[int]func(State){},
	}
}

// Layout exposes the panel engine for rendering.
func (c *Controller) Layout() *layout.Engine { return c.engine }

// Session returns a copy of the active session, or nil.
func (c *Controller) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	s := *c.session
	return &s
}

// SwitchSession makes s active, or clears the active session when s is nil.
// The outgoing view state is queued for persistence before the switch, and
// the switch itself never waits on I/O.
func (c *Controller) SwitchSession(s *Session) tea.Cmd {
	c.mu.Lock()

	if c.session != nil && s != nil && c.session.ID == s.ID {
		c.mu.Unlock()
		return nil
	}
	c.saveLocked()

	var next *Session
	if s != nil {
		cp := *s
		next = &cp
	}
	c.session = next
	c.generation++
	c.view = viewstate.New()
	c.contents = map[string]string{}
	c.loading = next != nil
	c.viewDirty = false
	c.treeReady = false
	c.rootPending = false
	c.base, c.watch, c.merged = nil, nil, nil
	c.clearDiffLocked()

	id := ""
	if next != nil {
		id = next.ID
	}
	c.log.Info("session switched", slog.String("session", id), slog.Uint64("generation", c.generation))

	cmds := []tea.Cmd{c.engine.SwitchSession(id)}
	if next != nil {
		cmds = append(cmds, c.restoreCmd(*next, c.generation), c.baseChangesCmdLocked())
	}
	c.mu.Unlock()

	c.notify()
	return tea.Batch(cmds...)
}

// saveLocked queues the active session's view state. While its restore is
// unresolved the stored state is unknown, so untouched sessions are skipped
// and edited ones are merged into the stored state in the background.
func (c *Controller) saveLocked() {
	switch {
	case c.session == nil:
	case !c.loading:
		c.store.Set(c.session.ID, c.view)
	case c.viewDirty:
		c.mergeStored(c.session.ID, c.view.Clone())
	}
}

// mergeStored folds interim into the state stored for sessionID.
func (c *Controller) mergeStored(sessionID string, interim viewstate.ViewState) {
	c.merges.Add(1)
	go func() {
		defer c.merges.Done()
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()

		if stored, found := c.store.Get(ctx, sessionID); found {
			stored.Merge(interim)
			interim = stored
		}
		c.store.Set(sessionID, interim)
	}()
}

// persistLocked queues the view state once the stored one is known.
func (c *Controller) persistLocked() {
	if !c.loading {
		c.store.Set(c.session.ID, c.view)
	}
}

// resolveLocked makes a root-relative path absolute.
func (c *Controller) resolveLocked(path string) string {
	if path == "" || filepath.IsAbs(path) || c.session.RootPath == "" {
		return path
	}
	return filepath.Join(c.session.RootPath, path)
}

func (c *Controller) restoreCmd(s Session, gen uint64) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()

		state, found := c.store.Get(ctx, s.ID)
		msg := restoredMsg{sessionID: s.ID, generation: gen, found: found}
		if found {
			msg.state, msg.contents = c.hydrate(ctx, s.ID, state)
		}
		return msg
	}
}

// Update applies async results. It reports whether msg belonged to the
// workspace.
func (c *Controller) Update(msg tea.Msg) (tea.Cmd, bool) {
	switch msg := msg.(type) {
	case layout.LoadedMsg:
		if c.engine.Update(msg) {
			c.notify()
		}
		return nil, true
	case restoredMsg:
		return c.applyRestored(msg), true
	case fileReadMsg:
		return c.applyFileRead(msg), true
	case baseChangesMsg:
		c.applyBaseChanges(msg)
		return nil, true
	case diffLoadedMsg:
		c.applyDiff(msg)
		return nil, true
	}
	return nil, false
}

// currentLocked reports whether a result for (sessionID, gen) still applies.
func (c *Controller) currentLocked(sessionID string, gen uint64) bool {
	return c.session != nil && c.session.ID == sessionID && c.generation == gen
}

func (c *Controller) applyRestored(msg restoredMsg) tea.Cmd {
	c.mu.Lock()
	if !c.currentLocked(msg.sessionID, msg.generation) {
		c.mu.Unlock()
		c.log.Debug("stale view state discarded", slog.String("session", msg.sessionID))
		return nil
	}
	c.loading = false

	if msg.found {
		restored, contents := msg.state, msg.contents
		if contents == nil {
			contents = map[string]string{}
		}
		if c.viewDirty {
			restored.Merge(c.view)
			for p, text := range c.contents {
				contents[p] = text
			}
			c.store.Set(c.session.ID, restored)
		}
		c.view, c.contents = restored, contents
	} else {
		if c.viewDirty {
			c.store.Set(c.session.ID, c.view)
		}
		c.rootPending = true
		if c.treeReady {
			c.expandRootLocked()
		}
	}
	cmd := c.activeDiffCmdLocked()
	c.mu.Unlock()

	c.notify()
	return cmd
}

// TreeReady tells the controller the shell's file tree for sessionID has
// loaded. A first visit expands the root once this arrives.
func (c *Controller) TreeReady(sessionID string) {
	c.mu.Lock()
	if c.session == nil || c.session.ID != sessionID {
		c.mu.Unlock()
		return
	}
	c.treeReady = true
	changed := false
	if c.rootPending {
		c.expandRootLocked()
		changed = true
	}
	c.mu.Unlock()

	if changed {
		c.notify()
	}
}

func (c *Controller) expandRootLocked() {
	c.rootPending = false
	if c.session.RootPath == "" {
		return
	}
	c.view.Expand(filepath.Clean(c.session.RootPath))
	c.store.Set(c.session.ID, c.view)
}

// editLocked records a user change to the view state and queues it.
func (c *Controller) editLocked() {
	c.viewDirty = true
	c.persistLocked()
}

// OpenFile adds a tab without activating it.
func (c *Controller) OpenFile(path string) tea.Cmd {
	c.mu.Lock()
	if c.session == nil || path == "" {
		c.mu.Unlock()
		return nil
	}
	path = c.resolveLocked(path)
	c.view.Open(path)
	c.editLocked()
	cmd := c.readCmdLocked(path)
	c.mu.Unlock()

	c.notify()
	return cmd
}

// SelectFile activates path, opening it and expanding its ancestors.
func (c *Controller) SelectFile(path string) tea.Cmd {
	c.mu.Lock()
	if c.session == nil || path == "" {
		c.mu.Unlock()
		return nil
	}
	path = c.resolveLocked(path)
	c.view.Select(path, c.session.RootPath)
	c.editLocked()
	cmds := []tea.Cmd{c.readCmdLocked(path), c.activeDiffCmdLocked()}
	c.mu.Unlock()

	c.notify()
	return tea.Batch(cmds...)
}

// CloseFile removes a tab; closing the active one activates a neighbor.
func (c *Controller) CloseFile(path string) tea.Cmd {
	c.mu.Lock()
	if c.session != nil {
		path = c.resolveLocked(path)
	}
	if c.session == nil || !c.view.IsOpen(path) {
		c.mu.Unlock()
		return nil
	}
	wasActive := c.view.ActiveFile
	c.view.Close(path)
	delete(c.contents, path)
	c.editLocked()

	var cmd tea.Cmd
	if c.view.ActiveFile != wasActive {
		cmd = c.activeDiffCmdLocked()
	}
	c.mu.Unlock()

	c.notify()
	return cmd
}

// ToggleDirectory flips a directory's expansion.
func (c *Controller) ToggleDirectory(path string) {
	c.mu.Lock()
	if c.session == nil || path == "" {
		c.mu.Unlock()
		return
	}
	c.view.ToggleExpanded(c.resolveLocked(path))
	c.editLocked()
	c.mu.Unlock()

	c.notify()
}

func (c *Controller) readCmdLocked(path string) tea.Cmd {
	if c.files == nil {
		return nil
	}
	if _, ok := c.contents[path]; ok {
		return nil
	}
	files, timeout := c.files, c.timeout
	sessionID, gen := c.session.ID, c.generation
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		content, err := files.ReadFile(ctx, sessionID, path)
		return fileReadMsg{sessionID: sessionID, generation: gen, path: path, content: content, err: err}
	}
}

// applyFileRead stores tab content. A tab whose content cannot be read is closed.
func (c *Controller) applyFileRead(msg fileReadMsg) tea.Cmd {
	c.mu.Lock()
	if !c.currentLocked(msg.sessionID, msg.generation) || !c.view.IsOpen(msg.path) {
		c.mu.Unlock()
		return nil
	}
	if msg.err == nil {
		c.contents[msg.path] = msg.content
		c.mu.Unlock()
		c.notify()
		return nil
	}

	c.log.Debug("tab dropped, read failed", slog.String("path", msg.path), slog.String("error", msg.err.Error()))
	wasActive := c.view.ActiveFile
	c.view.Close(msg.path)
	c.persistLocked()
	var cmd tea.Cmd
	if c.view.ActiveFile != wasActive {
		cmd = c.activeDiffCmdLocked()
	}
	c.mu.Unlock()

	c.notify()
	return cmd
}

// Content returns a loaded tab's text.
func (c *Controller) Content(path string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.contents[path]
	return s, ok
}

// TogglePanel shows or hides a panel and reports whether it is now visible.
func (c *Controller) TogglePanel(id layout.PanelID) (bool, error) {
	visible, err := c.engine.Toggle(id)
	if err != nil {
		return false, err
	}
	c.notify()
	return visible, nil
}

// ResetLayout rebuilds the default panel arrangement.
func (c *Controller) ResetLayout() {
	c.engine.Reset()
	c.notify()
}

// RemoveSession forgets a session's persisted state. Removing the active
// session leaves no session active.
func (c *Controller) RemoveSession(id string) tea.Cmd {
	c.mu.Lock()
	active := c.session != nil && c.session.ID == id
	if active {
		// Nothing of the removed session should be saved on the way out.
		c.loading, c.viewDirty = true, false
	}
	c.mu.Unlock()

	var cmd tea.Cmd
	if active {
		cmd = c.SwitchSession(nil)
	}
	c.merges.Wait()
	c.store.Delete(id)
	c.engine.Forget(id)
	return cmd
}

// Close persists the active session's state and flushes pending writes.
func (c *Controller) Close() {
	c.mu.Lock()
	c.saveLocked()
	c.mu.Unlock()

	c.merges.Wait()
	c.engine.Close()
	c.store.Wait()
}

// noopBackend lets a controller run without persistence.
type noopBackend struct {
	viewstate.Backend
}

func (b noopBackend) GetViewState(ctx context.Context, id string) ([]byte, error) {
	if b.Backend == nil {
		return nil, nil
	}
	return b.Backend.GetViewState(ctx, id)
}

func (b noopBackend) SetViewState(ctx context.Context, id string, data []byte) error {
	if b.Backend == nil {
		return nil
	}
	return b.Backend.SetViewState(ctx, id, data)
}

func (b noopBackend) DeleteViewState(ctx context.Context, id string) error {
	if b.Backend == nil {
		return nil
	}
	return b.Backend.DeleteViewState(ctx, id)
}
