package workspace

import (
	"context"
	"fmt"
	"os"

	"github.com/sjoeboo/dockyard/internal/changes"
	"github.com/sjoeboo/dockyard/internal/layout"
	"github.com/sjoeboo/dockyard/internal/viewstate"
)

// Session is one agent workspace bound to a worktree.
type Session struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	RootPath   string `json:"rootPath"`
	Branch     string `json:"branch,omitempty"`
	BaseBranch string `json:"baseBranch,omitempty"`
}

// Gateway persists per-session view state and layouts.
type Gateway interface {
	viewstate.Backend
	layout.Backend
}

// FileReader loads a tab's content. Each call may fail on its own.
type FileReader interface {
	ReadFile(ctx context.Context, sessionID, path string) (string, error)
}

// ChangeSource answers base-branch change queries for a worktree.
type ChangeSource interface {
	BaseChanges(ctx context.Context, root, base string) ([]changes.FileChange, error)
	FileDiff(ctx context.Context, root, base, path string) (string, error)
}

// DiskReader reads tab content straight from the filesystem.
type DiskReader struct {
	// MaxBytes rejects larger files; zero means 2 MiB.
	MaxBytes int64
}

// ReadFile implements FileReader.
func (r DiskReader) ReadFile(_ context.Context, _ string, path string) (string, error) {
	limit := r.MaxBytes
	if limit <= 0 {
		limit = 2 << 20
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > limit {
		return "", fmt.Errorf("%s is too large to open (%d bytes)", path, info.Size())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
