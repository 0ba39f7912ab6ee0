// Package ui is the terminal shell over the workspace controller: a
// session list, panel toggles, open tabs and the merged change list.
package ui

import (
	"log/slog"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/sjoeboo/dockyard/internal/changes"
	"github.com/sjoeboo/dockyard/internal/layout"
	"github.com/sjoeboo/dockyard/internal/logging"
	"github.com/sjoeboo/dockyard/internal/workspace"
)

var uiLog = logging.ForComponent(logging.CompUI)

// WatcherFactory starts a live change watcher for a worktree.
type WatcherFactory func(dir string) (*changes.Watcher, error)

// Options configure a Model.
type Options struct {
	Sessions []workspace.Session
	// Watch is nil when live change watching is disabled.
	Watch WatcherFactory
}

// Model is the bubbletea model for the workspace shell.
type Model struct {
	ws       *workspace.Controller
	sessions []workspace.Session
	cursor   int
	width    int
	height   int

	newWatcher WatcherFactory
	watcher    *changes.Watcher
	watchFor   string

	// notify wakes the model when the controller changes from outside
	// the update loop (shell API, background writes).
	notify chan struct{}
	unsub  func()

	quick     textinput.Model
	quickOpen bool
	quickHits []string
	err       error
}

// stateChangedMsg wakes View after a controller change.
type stateChangedMsg struct{}

// watchChangesMsg is a list from the live watcher of sessionID.
type watchChangesMsg struct {
	sessionID string
	list      []changes.FileChange
	watcher   *changes.Watcher
}

// New creates the shell model.
func New(ws *workspace.Controller, opts Options) *Model {
	ti := textinput.New()
	ti.Placeholder = "open file..."
	ti.Prompt = "/ "
	ti.CharLimit = 256

	m := &Model{
		ws:         ws,
		sessions:   opts.Sessions,
		newWatcher: opts.Watch,
		notify:     make(chan struct{}, 1),
		quick:      ti,
	}
	m.unsub = ws.Subscribe(func(workspace.State) {
		select {
		case m.notify <- struct{}{}:
		default:
		}
	})
	return m
}

// Init activates the first session.
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.waitForState()}
	if len(m.sessions) > 0 {
		cmds = append(cmds, m.switchTo(0))
	}
	return tea.Batch(cmds...)
}

func (m *Model) waitForState() tea.Cmd {
	ch := m.notify
	return func() tea.Msg {
		<-ch
		return stateChangedMsg{}
	}
}

func waitForWatch(sessionID string, w *changes.Watcher) tea.Cmd {
	return func() tea.Msg {
		select {
		case list := <-w.Changes():
			return watchChangesMsg{sessionID: sessionID, list: list, watcher: w}
		case <-w.Done():
			return nil
		}
	}
}

// switchTo activates sessions[i] and moves the live watcher to its worktree.
func (m *Model) switchTo(i int) tea.Cmd {
	if i < 0 || i >= len(m.sessions) {
		return nil
	}
	s := m.sessions[i]
	m.cursor = i

	cmds := []tea.Cmd{m.ws.SwitchSession(&s)}
	// This shell has no lazy tree; it is ready as soon as the session is.
	m.ws.TreeReady(s.ID)

	m.stopWatcher()
	if m.newWatcher != nil && s.RootPath != "" {
		w, err := m.newWatcher(s.RootPath)
		if err != nil {
			uiLog.Debug("live watch unavailable", slog.String("session", s.ID), slog.String("error", err.Error()))
		} else {
			w.Start()
			m.watcher, m.watchFor = w, s.ID
			cmds = append(cmds, waitForWatch(s.ID, w))
		}
	}
	return tea.Batch(cmds...)
}

func (m *Model) stopWatcher() {
	if m.watcher != nil {
		_ = m.watcher.Close()
		m.watcher, m.watchFor = nil, ""
	}
}

// Close releases the watcher and subscription.
func (m *Model) Close() {
	m.stopWatcher()
	if m.unsub != nil {
		m.unsub()
	}
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if cmd, ok := m.ws.Update(msg); ok {
		return m, cmd
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.quick.Width = max(10, msg.Width-4)
		return m, nil

	case stateChangedMsg:
		if m.quickOpen {
			m.quickHits = m.ws.QuickOpen(m.quick.Value())
		}
		return m, m.waitForState()

	case watchChangesMsg:
		if msg.watcher == nil || msg.watcher != m.watcher {
			return m, nil
		}
		m.ws.SetWatchChanges(msg.sessionID, msg.list)
		return m, waitForWatch(msg.sessionID, msg.watcher)

	case tea.KeyMsg:
		if m.quickOpen {
			return m.handleQuickOpenKey(msg)
		}
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.Close()
		return m, tea.Quit
	case "j", "down":
		if m.cursor < len(m.sessions)-1 {
			m.cursor++
		}
	case "k", "up":
		if m.cursor > 0 {
			m.cursor--
		}
	case "enter":
		return m, m.switchTo(m.cursor)
	case "1", "2", "3", "4", "5", "6":
		id := layout.AllPanels[int(msg.String()[0]-'1')]
		if _, err := m.ws.TogglePanel(id); err != nil {
			m.err = err
		}
	case "R":
		m.ws.ResetLayout()
	case "r":
		if m.watcher != nil {
			m.watcher.Refresh()
		}
		return m, tea.Batch(m.ws.RefreshBaseChanges(), m.ws.RefreshActiveDiff())
	case "x":
		if st := m.ws.State(); st.ActiveFile != "" {
			return m, m.ws.CloseFile(st.ActiveFile)
		}
	case "/":
		if m.ws.Session() == nil {
			return m, nil
		}
		m.quickOpen = true
		m.quick.SetValue("")
		m.quickHits = m.ws.QuickOpen("")
		return m, m.quick.Focus()
	}
	return m, nil
}

func (m *Model) handleQuickOpenKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.closeQuickOpen()
		return m, nil
	case "enter":
		hits := m.quickHits
		m.closeQuickOpen()
		if len(hits) == 0 {
			return m, nil
		}
		return m, m.ws.SelectFile(hits[0])
	}

	var cmd tea.Cmd
	m.quick, cmd = m.quick.Update(msg)
	m.quickHits = m.ws.QuickOpen(m.quick.Value())
	return m, cmd
}

func (m *Model) closeQuickOpen() {
	m.quickOpen = false
	m.quickHits = nil
	m.quick.Blur()
}
