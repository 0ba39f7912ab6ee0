package diffparse

import (
	"fmt"
	"strings"
)

// Stats counts the files and changed lines of a unified diff.
type Stats struct {
	Files   int `json:"files"`
	Added   int `json:"added"`
	Removed int `json:"removed"`
}

// Stat counts a unified diff. Only lines inside a hunk are counted, so file
// headers never register as changes. Hunks without a "diff --git" header
// count as one file.
func Stat(raw string) Stats {
	var st Stats
	inHunk, hunkFile := false, false
	for _, line := range strings.Split(raw, "\n") {
		switch {
		case strings.HasPrefix(line, "diff --git "):
			st.Files++
			inHunk, hunkFile = false, true
		case strings.HasPrefix(line, "@@"):
			inHunk = true
			if !hunkFile {
				st.Files++
				hunkFile = true
			}
		case !inHunk:
		case strings.HasPrefix(line, "+"):
			st.Added++
		case strings.HasPrefix(line, "-"):
			st.Removed++
		case strings.HasPrefix(line, " "), strings.HasPrefix(line, `\`), line == "":
		default:
			// Anything else ends the hunk body.
			inHunk = false
		}
	}
	return st
}

// IsZero reports whether the diff changed nothing.
func (s Stats) IsZero() bool { return s == Stats{} }

// String renders "N file(s), +X -Y", or "no changes".
func (s Stats) String() string {
	if s.IsZero() {
		return "no changes"
	}
	noun := "files"
	if s.Files == 1 {
		noun = "file"
	}
	return fmt.Sprintf("%d %s, +%d -%d", s.Files, noun, s.Added, s.Removed)
}
