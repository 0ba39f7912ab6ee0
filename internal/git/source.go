package git

import (
	"context"

	"github.com/sjoeboo/dockyard/internal/changes"
)

// Source answers workspace change queries with the git CLI.
type Source struct {
	// DefaultBase is preferred over the built-in base candidates.
	DefaultBase string
}

// resolveBase picks the session's own base, then the configured default,
// then the well-known candidates.
func (s Source) resolveBase(root, base string) string {
	if base != "" {
		if found := FindBase(root, base); found != "" {
			return found
		}
	}
	return FindBase(root, s.DefaultBase)
}

// BaseChanges lists the paths changed on the session branch.
func (s Source) BaseChanges(ctx context.Context, root, base string) ([]changes.FileChange, error) {
	return BaseChanges(ctx, root, s.resolveBase(root, base))
}

// FileDiff returns the unified diff of path against the session base.
func (s Source) FileDiff(ctx context.Context, root, base, path string) (string, error) {
	return FileDiff(ctx, root, s.resolveBase(root, base), path)
}
