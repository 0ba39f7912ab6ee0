// Package viewstate holds a session's editor view: open tabs in order, the
// active tab and the set of expanded directories in the file tree.
package viewstate

import (
	"encoding/json"
	"path/filepath"
	"slices"
	"sort"
	"strings"
)

// ViewState is one session's tab and tree state. An empty ActiveFile means
// no tab is active; a non-empty ActiveFile is always in OpenFiles.
type ViewState struct {
	OpenFiles  []string
	ActiveFile string
	Expanded   map[string]struct{}
}

// New returns the empty state a session starts with on first activation.
func New() ViewState {
	return ViewState{
		OpenFiles: []string{},
		Expanded:  map[string]struct{}{},
	}
}

// Clone returns a deep copy.
func (v ViewState) Clone() ViewState {
	out := ViewState{
		OpenFiles:  append([]string{}, v.OpenFiles...),
		ActiveFile: v.ActiveFile,
		Expanded:   make(map[string]struct{}, len(v.Expanded)),
	}
	for p := range v.Expanded {
		out.Expanded[p] = struct{}{}
	}
	return out
}

// Equal compares two states, treating nil and empty collections alike.
func (v ViewState) Equal(o ViewState) bool {
	if v.ActiveFile != o.ActiveFile || len(v.OpenFiles) != len(o.OpenFiles) || len(v.Expanded) != len(o.Expanded) {
		return false
	}
	if !slices.Equal(v.OpenFiles, o.OpenFiles) {
		return false
	}
	for p := range v.Expanded {
		if _, ok := o.Expanded[p]; !ok {
			return false
		}
	}
	return true
}

// IsOpen reports whether path has a tab.
func (v ViewState) IsOpen(path string) bool {
	return slices.Contains(v.OpenFiles, path)
}

// IsExpanded reports whether a directory is expanded.
func (v ViewState) IsExpanded(path string) bool {
	_, ok := v.Expanded[path]
	return ok
}

// ExpandedPaths returns the expanded set sorted.
func (v ViewState) ExpandedPaths() []string {
	out := make([]string, 0, len(v.Expanded))
	for p := range v.Expanded {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Open adds a tab for path at the end if it is not already open. It does
// not change the active tab.
func (v *ViewState) Open(path string) {
	if path == "" || v.IsOpen(path) {
		return
	}
	v.OpenFiles = append(v.OpenFiles, path)
}

// Select makes path the active tab, opening it if needed, and expands every
// ancestor directory from its parent up to root.
func (v *ViewState) Select(path, root string) {
	if path == "" {
		return
	}
	v.Open(path)
	v.ActiveFile = path
	v.ExpandAncestors(path, root)
}

// Close removes the tab for path. Closing the active tab activates the tab
// now at min(closedIndex, remaining-1), or none when no tabs remain.
func (v *ViewState) Close(path string) {
	idx := slices.Index(v.OpenFiles, path)
	if idx < 0 {
		return
	}
	v.OpenFiles = slices.Delete(v.OpenFiles, idx, idx+1)
	if v.ActiveFile != path {
		return
	}
	if len(v.OpenFiles) == 0 {
		v.ActiveFile = ""
		return
	}
	v.ActiveFile = v.OpenFiles[min(idx, len(v.OpenFiles)-1)]
}

// ToggleExpanded flips a directory's membership in the expanded set.
func (v *ViewState) ToggleExpanded(path string) {
	if v.Expanded == nil {
		v.Expanded = map[string]struct{}{}
	}
	if _, ok := v.Expanded[path]; ok {
		delete(v.Expanded, path)
		return
	}
	v.Expanded[path] = struct{}{}
}

// Expand adds a directory to the expanded set.
func (v *ViewState) Expand(path string) {
	if v.Expanded == nil {
		v.Expanded = map[string]struct{}{}
	}
	v.Expanded[path] = struct{}{}
}

// Merge folds newer into v: tabs only newer has are appended in its order,
// newer's active tab wins when it has one, and expansions are united.
func (v *ViewState) Merge(newer ViewState) {
	for _, p := range newer.OpenFiles {
		v.Open(p)
	}
	if newer.ActiveFile != "" {
		v.ActiveFile = newer.ActiveFile
	}
	for p := range newer.Expanded {
		v.Expand(p)
	}
}

// ExpandAncestors expands every directory from path's parent up to and
// including root. Paths outside root expand nothing.
func (v *ViewState) ExpandAncestors(path, root string) {
	for _, dir := range Ancestors(path, root) {
		v.Expand(dir)
	}
}

// Ancestors lists the directories from path's parent up to and including
// root, nearest first. A relative path is taken relative to an absolute
// root. It returns nil when path is not under root.
func Ancestors(path, root string) []string {
	if root == "" || path == "" {
		return nil
	}
	if filepath.IsAbs(root) && !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	path = filepath.Clean(path)
	root = filepath.Clean(root)
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil
	}

	var out []string
	for dir := filepath.Dir(path); ; dir = filepath.Dir(dir) {
		out = append(out, dir)
		if dir == root || dir == filepath.Dir(dir) {
			break
		}
	}
	return out
}

// wireState is the persisted JSON form.
type wireState struct {
	OpenFilePaths  []string `json:"openFilePaths"`
	ActiveFilePath *string  `json:"activeFilePath"`
	ExpandedPaths  []string `json:"expandedPaths"`
}

// MarshalJSON encodes the state with a null active path when none is active.
func (v ViewState) MarshalJSON() ([]byte, error) {
	w := wireState{
		OpenFilePaths: append([]string{}, v.OpenFiles...),
		ExpandedPaths: v.ExpandedPaths(),
	}
	if v.ActiveFile != "" {
		active := v.ActiveFile
		w.ActiveFilePath = &active
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes the persisted form, dropping duplicate tabs and an
// active path that is not open.
func (v *ViewState) UnmarshalJSON(data []byte) error {
	var w wireState
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	out := New()
	for _, p := range w.OpenFilePaths {
		out.Open(p)
	}
	if w.ActiveFilePath != nil && out.IsOpen(*w.ActiveFilePath) {
		out.ActiveFile = *w.ActiveFilePath
	}
	for _, p := range w.ExpandedPaths {
		out.Expand(p)
	}
	*v = out
	return nil
}
