// Package changes models the per-session change list and merges the two
// change sources a workspace listens to: the base-branch diff (refreshed on
// demand) and the live worktree watch (refreshed on an interval).
package changes

// ChangeType classifies how a path differs.
type ChangeType string

const (
	Added    ChangeType = "added"
	Modified ChangeType = "modified"
	Deleted  ChangeType = "deleted"
)

// FileChange is one changed path and how it changed.
type FileChange struct {
	Path string     `json:"path"`
	Type ChangeType `json:"type"`
}

// Merge combines the base-diff list with the watch list into one entry per
// distinct path. When both contain a path the watch type wins, since it
// reflects the freshest uncommitted state. Order is base order (first
// occurrence) followed by watch-only paths in watch order. Neither input is
// modified.
func Merge(base, watch []FileChange) []FileChange {
	latest := make(map[string]ChangeType, len(base)+len(watch))
	for _, c := range base {
		latest[c.Path] = c.Type
	}
	for _, c := range watch {
		latest[c.Path] = c.Type
	}

	out := make([]FileChange, 0, len(latest))
	seen := make(map[string]bool, len(latest))
	for _, list := range [][]FileChange{base, watch} {
		for _, c := range list {
			if seen[c.Path] {
				continue
			}
			seen[c.Path] = true
			out = append(out, FileChange{Path: c.Path, Type: latest[c.Path]})
		}
	}
	return out
}

// Equal reports whether two lists hold the same entries in the same order.
func Equal(a, b []FileChange) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Lookup returns the change type recorded for path, if any.
func Lookup(list []FileChange, path string) (ChangeType, bool) {
	for _, c := range list {
		if c.Path == path {
			return c.Type, true
		}
	}
	return "", false
}
