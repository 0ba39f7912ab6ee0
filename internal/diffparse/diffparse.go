// Package diffparse turns unified diff text into the two shapes the
// workspace consumes: per-file original/modified text pairs for side-by-side
// views, and added/modified/deleted line ranges for editor gutter
// decorations.
//
// Both entry points are pure and never fail. Malformed input yields partial,
// best-effort results.
package diffparse

import (
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

// FileTexts holds the reconstructed sides of one file in a diff.
type FileTexts struct {
	Path     string `json:"path"`
	Original string `json:"original"`
	Modified string `json:"modified"`
	// LineCount is max(original lines, modified lines), used to size views.
	LineCount int `json:"lineCount"`
}

// SplitFiles splits a multi-file unified diff into per-file text pairs.
// Context lines go into both texts, "-" lines only into the original and
// "+" lines only into the modified text. An empty diff yields an empty slice.
func SplitFiles(raw string) []FileTexts {
	if strings.TrimSpace(raw) == "" {
		return []FileTexts{}
	}

	files, err := diff.ParseMultiFileDiff([]byte(raw))
	if err != nil || len(files) == 0 {
		// go-diff is strict about headers; fall back to the tolerant walker.
		return splitLoose(raw)
	}

	out := make([]FileTexts, 0, len(files))
	for _, f := range files {
		b := newTextBuilder(filePath(f.OrigName, f.NewName))
		for _, h := range f.Hunks {
			for _, line := range bodyLines(h.Body) {
				b.add(line)
			}
		}
		out = append(out, b.build())
	}
	return out
}

// filePath picks the display path for a file diff: the new name unless the
// file was deleted.
func filePath(origName, newName string) string {
	path := strings.TrimPrefix(newName, "b/")
	if path == "" || path == "/dev/null" {
		path = strings.TrimPrefix(origName, "a/")
	}
	return path
}

// bodyLines splits a hunk body, dropping the empty element produced by the
// trailing newline.
func bodyLines(body []byte) []string {
	s := string(body)
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// splitLoose walks the diff line by line without requiring well-formed
// headers.
func splitLoose(raw string) []FileTexts {
	var out []FileTexts
	var cur *textBuilder
	inHunk := false

	flush := func() {
		if cur != nil {
			out = append(out, cur.build())
		}
		cur = nil
		inHunk = false
	}

	for _, line := range strings.Split(strings.TrimSuffix(raw, "\n"), "\n") {
		switch {
		case strings.HasPrefix(line, "diff --git "):
			flush()
			cur = newTextBuilder(pathFromGitHeader(line))
		case !inHunk && strings.HasPrefix(line, "--- "):
			if cur == nil {
				cur = newTextBuilder("")
			}
			if name := headerName(line, "--- ", "a/"); cur.path == "" && name != "" {
				cur.path = name
			}
		case !inHunk && strings.HasPrefix(line, "+++ "):
			if cur == nil {
				cur = newTextBuilder("")
			}
			if name := headerName(line, "+++ ", "b/"); name != "" {
				cur.path = name
			}
		case strings.HasPrefix(line, "@@"):
			if cur == nil {
				cur = newTextBuilder("")
			}
			inHunk = true
		case inHunk:
			cur.add(line)
		}
	}
	flush()

	if out == nil {
		return []FileTexts{}
	}
	return out
}

// pathFromGitHeader extracts the b/ path from "diff --git a/x b/y".
func pathFromGitHeader(line string) string {
	rest := strings.TrimPrefix(line, "diff --git ")
	if idx := strings.LastIndex(rest, " b/"); idx >= 0 {
		return rest[idx+3:]
	}
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return ""
	}
	return strings.TrimPrefix(fields[len(fields)-1], "b/")
}

func headerName(line, prefix, side string) string {
	name := strings.TrimPrefix(line, prefix)
	if idx := strings.IndexByte(name, '\t'); idx >= 0 {
		name = name[:idx]
	}
	name = strings.TrimSpace(name)
	if name == "/dev/null" {
		return ""
	}
	return strings.TrimPrefix(name, side)
}

type textBuilder struct {
	path     string
	original []string
	modified []string
}

func newTextBuilder(path string) *textBuilder {
	return &textBuilder{path: path}
}

func (b *textBuilder) add(line string) {
	if line == "" {
		// Some tools strip the leading space of blank context lines.
		b.original = append(b.original, "")
		b.modified = append(b.modified, "")
		return
	}
	switch line[0] {
	case '\\':
	case '-':
		b.original = append(b.original, line[1:])
	case '+':
		b.modified = append(b.modified, line[1:])
	case ' ':
		b.original = append(b.original, line[1:])
		b.modified = append(b.modified, line[1:])
	default:
		b.original = append(b.original, line)
		b.modified = append(b.modified, line)
	}
}

func (b *textBuilder) build() FileTexts {
	return FileTexts{
		Path:      b.path,
		Original:  strings.Join(b.original, "\n"),
		Modified:  strings.Join(b.modified, "\n"),
		LineCount: max(len(b.original), len(b.modified)),
	}
}
