package workspace

import (
	"slices"

	"github.com/sjoeboo/dockyard/internal/changes"
	"github.com/sjoeboo/dockyard/internal/diffparse"
	"github.com/sjoeboo/dockyard/internal/layout"
)

// State is what a shell renders.
type State struct {
	Session    *Session              `json:"session"`
	Generation uint64                `json:"generation"`
	Loading    bool                  `json:"loading"`
	OpenFiles  []string              `json:"openFiles"`
	ActiveFile string                `json:"activeFile"`
	Expanded   []string              `json:"expandedPaths"`
	Changes    []changes.FileChange  `json:"changes"`
	DiffPath   string                `json:"diffPath,omitempty"`
	Ranges     diffparse.LineRanges  `json:"activeRanges"`
	DiffFiles  []diffparse.FileTexts `json:"diffFiles"`
	DiffStat   diffparse.Stats       `json:"diffStat"`
	Panels     []PanelState          `json:"panels"`
}

// PanelState is one panel's visibility.
type PanelState struct {
	ID      layout.PanelID `json:"id"`
	Title   string         `json:"title"`
	Visible bool           `json:"visible"`
}

// State returns a snapshot of everything the shell shows.
func (c *Controller) State() State {
	visible := c.engine.Visible()

	c.mu.Lock()
	st := State{
		Generation: c.generation,
		Loading:    c.loading,
		OpenFiles:  slices.Clone(c.view.OpenFiles),
		ActiveFile: c.view.ActiveFile,
		Expanded:   c.view.ExpandedPaths(),
		Changes:    slices.Clone(c.merged),
		DiffPath:   c.diffPath,
		Ranges:     c.ranges,
		DiffFiles:  slices.Clone(c.diffFiles),
		DiffStat:   c.diffStat,
	}
	if c.session != nil {
		s := *c.session
		st.Session = &s
	}
	c.mu.Unlock()

	if st.OpenFiles == nil {
		st.OpenFiles = []string{}
	}
	if st.Changes == nil {
		st.Changes = []changes.FileChange{}
	}
	if st.DiffFiles == nil {
		st.DiffFiles = []diffparse.FileTexts{}
	}
	for _, id := range layout.AllPanels {
		st.Panels = append(st.Panels, PanelState{
			ID:      id,
			Title:   id.Title(),
			Visible: slices.Contains(visible, id),
		})
	}
	return st
}

// Subscribe registers fn to receive the state after every change. The
// returned func unregisters it. fn runs on the goroutine that made the
// change and must not block.
func (c *Controller) Subscribe(fn func(State)) func() {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	return func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		delete(c.subs, id)
	}
}

func (c *Controller) notify() {
	c.subMu.Lock()
	if len(c.subs) == 0 {
		c.subMu.Unlock()
		return
	}
	fns := make([]func(State), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subMu.Unlock()

	st := c.State()
	for _, fn := range fns {
		fn(st)
	}
}
