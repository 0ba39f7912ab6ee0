// Package layout arranges the workspace's dockable panels in a split grid,
// remembers where a closed panel used to sit, and persists each session's
// arrangement.
package layout

import (
	"context"
	"log/slog"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sjoeboo/dockyard/internal/logging"
)

// Backend stores one serialized grid per session.
type Backend interface {
	GetLayout(ctx context.Context, sessionID string) ([]byte, error)
	SetLayout(ctx context.Context, sessionID string, data []byte) error
}

// LoadedMsg carries a persisted layout back to Update. Generation ties it
// to the switch that requested it.
type LoadedMsg struct {
	SessionID  string
	Generation uint64
	Data       []byte
	Err        error
}

// Options tune an Engine.
type Options struct {
	// Debounce delays persistence after a mutation (default 500ms).
	Debounce time.Duration
	// IOTimeout bounds each backend call (default 5s).
	IOTimeout time.Duration
}

// Engine owns the active session's grid.
type Engine struct {
	backend  Backend
	timeout  time.Duration
	debounce *Debouncer
	log      *slog.Logger

	mu         sync.Mutex
	grid       *Grid
	session    string
	generation uint64
	// dirty is set by the first user mutation after a switch; a late load
	// never overwrites it.
	dirty     bool
	restoring bool
	snapshots map[PanelID][]byte
	lastKnown map[string][]byte
	closed    bool
}

// NewEngine creates an engine showing the minimal layout.
func NewEngine(backend Backend, opts Options) *Engine {
	if opts.Debounce <= 0 {
		opts.Debounce = 500 * time.Millisecond
	}
	if opts.IOTimeout <= 0 {
		opts.IOTimeout = 5 * time.Second
	}
	return &Engine{
		backend:   backend,
		timeout:   opts.IOTimeout,
		debounce:  NewDebouncer(opts.Debounce),
		log:       logging.ForComponent(logging.CompLayout),
		grid:      MinimalGrid(),
		snapshots: make(map[PanelID][]byte),
		lastKnown: make(map[string][]byte),
	}
}

// Session returns the session the grid belongs to.
func (e *Engine) Session() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session
}

// Generation increments on every switch.
func (e *Engine) Generation() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.generation
}

// Grid returns a copy of the current grid.
func (e *Engine) Grid() *Grid {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.grid.Clone()
}

// IsVisible reports whether id is placed.
func (e *Engine) IsVisible(id PanelID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.grid.Has(id)
}

// Visible lists placed panels in grid order.
func (e *Engine) Visible() []PanelID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.grid.Panels()
}

// HasSnapshot reports whether a close-time snapshot is held for id.
func (e *Engine) HasSnapshot(id PanelID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.snapshots[id]
	return ok
}

// SwitchSession makes id the active session. The grid changes immediately:
// minimal for "", otherwise the arrangement this process last saw for id,
// or the default. The returned command, if any, loads the persisted layout.
// Pending writes for the outgoing session still land under its own id.
func (e *Engine) SwitchSession(id string) tea.Cmd {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.session = id
	e.generation++
	e.dirty = false
	clear(e.snapshots)

	if id == "" {
		e.grid = MinimalGrid()
		return nil
	}
	if data, ok := e.lastKnown[id]; ok {
		if g, err := RestoreGrid(data); err == nil && !g.Empty() {
			e.grid = g
			return nil
		}
	}
	e.grid = DefaultGrid()

	gen := e.generation
	backend, timeout := e.backend, e.timeout
	if backend == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		data, err := backend.GetLayout(ctx, id)
		return LoadedMsg{SessionID: id, Generation: gen, Data: data, Err: err}
	}
}

// Update applies a loaded layout. It reports whether the grid changed.
func (e *Engine) Update(msg LoadedMsg) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if msg.SessionID != e.session || msg.Generation != e.generation {
		return false
	}
	if msg.Err != nil {
		e.log.Debug("layout load failed, keeping default",
			slog.String("session", msg.SessionID), slog.String("error", msg.Err.Error()))
		return false
	}
	if e.dirty || len(msg.Data) == 0 {
		return false
	}
	g, err := RestoreGrid(msg.Data)
	if err != nil || g.Empty() {
		e.log.Warn("stored layout unusable, keeping default", slog.String("session", msg.SessionID))
		return false
	}
	e.grid = g
	e.lastKnown[msg.SessionID] = msg.Data
	return true
}

// Toggle hides a visible panel or shows a hidden one and reports whether
// it is visible afterwards.
func (e *Engine) Toggle(id PanelID) (bool, error) {
	if _, ok := ParsePanel(string(id)); !ok {
		return false, ErrUnknownPanel
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.grid.Has(id) {
		e.hideLocked(id)
		return false, nil
	}
	e.showLocked(id)
	return true, nil
}

// Show places id if it is hidden.
func (e *Engine) Show(id PanelID) error {
	if _, ok := ParsePanel(string(id)); !ok {
		return ErrUnknownPanel
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.grid.Has(id) {
		e.showLocked(id)
	}
	return nil
}

// Hide removes id if it is visible, remembering the grid it left.
func (e *Engine) Hide(id PanelID) error {
	if _, ok := ParsePanel(string(id)); !ok {
		return ErrUnknownPanel
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.grid.Has(id) {
		e.hideLocked(id)
	}
	return nil
}

func (e *Engine) hideLocked(id PanelID) {
	if !e.restoring {
		e.snapshots[id] = e.grid.Snapshot()
	}
	_ = e.grid.Remove(id)
	e.mutatedLocked()
}

// showLocked reopens id from its snapshot, then a placement hint, then the
// default edge.
func (e *Engine) showLocked(id PanelID) {
	if data, ok := e.snapshots[id]; ok {
		delete(e.snapshots, id)
		if e.restoreLocked(id, data) {
			e.mutatedLocked()
			return
		}
	}
	e.placeLocked(id)
	e.mutatedLocked()
}

// restoreLocked reapplies a whole-grid snapshot for target. Panels the
// snapshot holds that were hidden just before are taken out again; panels
// opened since the snapshot are put back by hint.
func (e *Engine) restoreLocked(target PanelID, data []byte) bool {
	g, err := RestoreGrid(data)
	if err != nil || !g.Has(target) {
		return false
	}

	visible := make(map[PanelID]bool)
	for _, p := range e.grid.Panels() {
		visible[p] = true
	}

	e.restoring = true
	defer func() { e.restoring = false }()

	e.grid = g
	for _, p := range g.Panels() {
		if p != target && !visible[p] {
			e.hideLocked(p)
		}
	}
	for _, p := range AllPanels {
		if visible[p] && !e.grid.Has(p) {
			e.placeLocked(p)
		}
	}
	return true
}

func (e *Engine) placeLocked(id PanelID) {
	for _, h := range placementHints[id] {
		if e.grid.Has(h.ref) {
			if err := e.grid.Add(id, h.ref, h.dir); err == nil {
				return
			}
		}
	}
	_ = e.grid.Add(id, "", Right)
}

// Reset discards snapshots and rebuilds the default arrangement.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	clear(e.snapshots)
	if e.session == "" {
		e.grid = MinimalGrid()
		return
	}
	e.grid = DefaultGrid()
	e.mutatedLocked()
}

// Resize sets the share of id's group within its split.
func (e *Engine) Resize(id PanelID, size float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.grid.Resize(id, size); err != nil {
		return err
	}
	e.mutatedLocked()
	return nil
}

// Activate brings id to the front of its tab group.
func (e *Engine) Activate(id PanelID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.grid.Activate(id); err != nil {
		return err
	}
	e.mutatedLocked()
	return nil
}

// Forget drops cached and pending layout state for a removed session.
func (e *Engine) Forget(sessionID string) {
	e.debounce.Cancel(sessionID)
	e.mu.Lock()
	delete(e.lastKnown, sessionID)
	e.mu.Unlock()
}

// mutatedLocked records a user change: caches the grid for the session
// and schedules its write.
func (e *Engine) mutatedLocked() {
	if e.restoring || e.session == "" || e.closed {
		return
	}
	e.dirty = true
	session := e.session
	e.lastKnown[session] = e.grid.Snapshot()
	e.debounce.Schedule(session, func() { e.persist(session) })
}

func (e *Engine) persist(sessionID string) {
	e.mu.Lock()
	data, ok := e.lastKnown[sessionID]
	e.mu.Unlock()
	if !ok || e.backend == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()
	if err := e.backend.SetLayout(ctx, sessionID, data); err != nil {
		e.log.Debug("layout write failed", slog.String("session", sessionID), slog.String("error", err.Error()))
	}
}

// Flush writes every pending layout now.
func (e *Engine) Flush() {
	e.debounce.Flush()
}

// PendingWrite reports whether a write for sessionID is scheduled.
func (e *Engine) PendingWrite(sessionID string) bool {
	return e.debounce.Pending(sessionID)
}

// Close flushes pending writes and stops accepting new ones.
func (e *Engine) Close() {
	e.Flush()
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
}
