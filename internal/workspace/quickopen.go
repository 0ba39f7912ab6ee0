package workspace

import (
	"path/filepath"

	"github.com/sahilm/fuzzy"
)

// candidates adapts a path list to fuzzy.Source.
type candidates []string

func (c candidates) String(i int) string { return c[i] }
func (c candidates) Len() int            { return len(c) }

// QuickOpen fuzzy-matches query against open tabs and changed files,
// best match first. An empty query lists every candidate.
func (c *Controller) QuickOpen(query string) []string {
	c.mu.Lock()
	var list candidates
	seen := map[string]bool{}
	add := func(p string) {
		if p != "" && !seen[p] {
			seen[p] = true
			list = append(list, p)
		}
	}
	for _, p := range c.view.OpenFiles {
		add(p)
	}
	if c.session != nil {
		for _, ch := range c.merged {
			p := ch.Path
			if !filepath.IsAbs(p) && c.session.RootPath != "" {
				p = filepath.Join(c.session.RootPath, p)
			}
			add(p)
		}
	}
	c.mu.Unlock()

	if query == "" {
		return []string(list)
	}
	matches := fuzzy.FindFrom(query, list)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, list[m.Index])
	}
	return out
}
