package workspace

import (
	"context"
	"log/slog"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sjoeboo/dockyard/internal/changes"
	"github.com/sjoeboo/dockyard/internal/diffparse"
)

func emptyRanges() diffparse.LineRanges {
	return diffparse.ParseLineRanges("")
}

// SetBaseChanges replaces the base-branch list for sessionID.
func (c *Controller) SetBaseChanges(sessionID string, list []changes.FileChange) {
	c.mu.Lock()
	if c.session == nil || c.session.ID != sessionID {
		c.mu.Unlock()
		return
	}
	c.base = append([]changes.FileChange(nil), list...)
	changed := c.remergeLocked()
	c.mu.Unlock()

	if changed {
		c.notify()
	}
}

// SetWatchChanges replaces the live worktree list for sessionID.
func (c *Controller) SetWatchChanges(sessionID string, list []changes.FileChange) {
	c.mu.Lock()
	if c.session == nil || c.session.ID != sessionID {
		c.mu.Unlock()
		return
	}
	c.watch = append([]changes.FileChange(nil), list...)
	changed := c.remergeLocked()
	c.mu.Unlock()

	if changed {
		c.notify()
	}
}

func (c *Controller) remergeLocked() bool {
	merged := changes.Merge(c.base, c.watch)
	if changes.Equal(merged, c.merged) {
		return false
	}
	c.merged = merged
	return true
}

// RefreshBaseChanges reloads the base-branch list for the active session.
func (c *Controller) RefreshBaseChanges() tea.Cmd {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.baseChangesCmdLocked()
}

func (c *Controller) baseChangesCmdLocked() tea.Cmd {
	if c.source == nil || c.session == nil || c.session.RootPath == "" {
		return nil
	}
	source, timeout := c.source, c.timeout
	s, gen := *c.session, c.generation
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		list, err := source.BaseChanges(ctx, s.RootPath, s.BaseBranch)
		return baseChangesMsg{sessionID: s.ID, generation: gen, list: list, err: err}
	}
}

func (c *Controller) applyBaseChanges(msg baseChangesMsg) {
	c.mu.Lock()
	current := c.currentLocked(msg.sessionID, msg.generation)
	c.mu.Unlock()
	if !current {
		return
	}
	if msg.err != nil {
		c.log.Debug("base changes unavailable", slog.String("session", msg.sessionID), slog.String("error", msg.err.Error()))
		return
	}
	c.SetBaseChanges(msg.sessionID, msg.list)
}

// RefreshActiveDiff reloads the diff of the active tab.
func (c *Controller) RefreshActiveDiff() tea.Cmd {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeDiffCmdLocked()
}

func (c *Controller) activeDiffCmdLocked() tea.Cmd {
	active := c.view.ActiveFile
	if active == "" {
		c.clearDiffLocked()
		return nil
	}
	if c.diffPath != active {
		c.clearDiffLocked()
	}
	if c.source == nil || c.session == nil || c.session.RootPath == "" {
		return nil
	}

	rel := active
	if filepath.IsAbs(active) {
		r, err := filepath.Rel(c.session.RootPath, active)
		if err != nil {
			return nil
		}
		rel = r
	}
	source, timeout := c.source, c.timeout
	s, gen := *c.session, c.generation
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		raw, err := source.FileDiff(ctx, s.RootPath, s.BaseBranch, rel)
		return diffLoadedMsg{sessionID: s.ID, generation: gen, path: active, raw: raw, err: err}
	}
}

func (c *Controller) applyDiff(msg diffLoadedMsg) {
	if msg.err != nil {
		c.log.Debug("diff unavailable", slog.String("path", msg.path), slog.String("error", msg.err.Error()))
		msg.raw = ""
	}
	c.mu.Lock()
	if !c.currentLocked(msg.sessionID, msg.generation) || c.view.ActiveFile != msg.path {
		c.mu.Unlock()
		return
	}
	c.setDiffLocked(msg.path, msg.raw)
	c.mu.Unlock()

	c.notify()
}

// SetActiveDiff annotates the active tab with raw unified diff text. It is
// ignored unless path is the active tab of sessionID.
func (c *Controller) SetActiveDiff(sessionID, path, raw string) {
	c.mu.Lock()
	if c.session == nil || c.session.ID != sessionID || c.view.ActiveFile != path {
		c.mu.Unlock()
		return
	}
	c.setDiffLocked(path, raw)
	c.mu.Unlock()

	c.notify()
}

func (c *Controller) setDiffLocked(path, raw string) {
	c.diffPath = path
	c.ranges = diffparse.ParseLineRanges(raw)
	c.diffFiles = diffparse.SplitFiles(raw)
	c.diffStat = diffparse.Stat(raw)
}

func (c *Controller) clearDiffLocked() {
	c.diffPath = ""
	c.ranges = emptyRanges()
	c.diffFiles = nil
	c.diffStat = diffparse.Stats{}
}
