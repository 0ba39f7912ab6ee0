package workspace

import (
	"github.com/sjoeboo/dockyard/internal/changes"
	"github.com/sjoeboo/dockyard/internal/viewstate"
)

// Every async result carries the session and generation captured when it
// was requested. Update drops it when either no longer matches.

// restoredMsg is a session's persisted view state with hydrated tabs.
type restoredMsg struct {
	sessionID  string
	generation uint64
	found      bool
	state      viewstate.ViewState
	contents   map[string]string
}

// fileReadMsg is the content of a tab opened after restore.
type fileReadMsg struct {
	sessionID  string
	generation uint64
	path       string
	content    string
	err        error
}

// baseChangesMsg is a fresh base-branch change list.
type baseChangesMsg struct {
	sessionID  string
	generation uint64
	list       []changes.FileChange
	err        error
}

// diffLoadedMsg is the unified diff of the active tab.
type diffLoadedMsg struct {
	sessionID  string
	generation uint64
	path       string
	raw        string
	err        error
}
