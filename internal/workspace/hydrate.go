package workspace

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/sjoeboo/dockyard/internal/viewstate"
)

// hydrate reads every restored tab concurrently. A tab whose read fails is
// dropped without affecting the others; if that was the active tab, the
// first surviving tab becomes active.
func (c *Controller) hydrate(ctx context.Context, sessionID string, state viewstate.ViewState) (viewstate.ViewState, map[string]string) {
	contents := make(map[string]string, len(state.OpenFiles))
	if c.files == nil || len(state.OpenFiles) == 0 {
		return state, contents
	}

	texts := make([]string, len(state.OpenFiles))
	ok := make([]bool, len(state.OpenFiles))

	g := new(errgroup.Group)
	g.SetLimit(c.limit)
	for i, path := range state.OpenFiles {
		g.Go(func() error {
			text, err := c.files.ReadFile(ctx, sessionID, path)
			if err != nil {
				c.log.Debug("restored tab dropped",
					slog.String("session", sessionID), slog.String("path", path), slog.String("error", err.Error()))
				return nil
			}
			texts[i], ok[i] = text, true
			return nil
		})
	}
	_ = g.Wait() // failures are per tab and logged above

	out := state.Clone()
	out.OpenFiles = out.OpenFiles[:0]
	for i, path := range state.OpenFiles {
		if ok[i] {
			out.OpenFiles = append(out.OpenFiles, path)
			contents[path] = texts[i]
		}
	}
	if out.ActiveFile != "" && !out.IsOpen(out.ActiveFile) {
		out.ActiveFile = ""
		if len(out.OpenFiles) > 0 {
			out.ActiveFile = out.OpenFiles[0]
		}
	}
	return out, contents
}
