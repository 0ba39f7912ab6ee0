package git

import (
	"bufio"
	"context"
	"strings"

	"github.com/sjoeboo/dockyard/internal/changes"
)

// FileDiff returns the unified diff of one path in the worktree against the
// base ref, including uncommitted edits. An empty base diffs against HEAD.
func FileDiff(ctx context.Context, dir, base, path string) (string, error) {
	if !IsGitRepo(dir) {
		return "", ErrNotGitRepo
	}
	ref := "HEAD"
	if base != "" {
		// merge-base keeps unrelated commits on base out of the diff
		mb, err := run(ctx, dir, "merge-base", base, "HEAD")
		if err == nil && strings.TrimSpace(mb) != "" {
			ref = strings.TrimSpace(mb)
		}
	}
	return run(ctx, dir, "diff", ref, "--", path)
}

// BaseChanges lists the paths changed on the current branch relative to base.
func BaseChanges(ctx context.Context, dir, base string) ([]changes.FileChange, error) {
	if !IsGitRepo(dir) {
		return nil, ErrNotGitRepo
	}
	if base == "" {
		return []changes.FileChange{}, nil
	}
	out, err := run(ctx, dir, "diff", "--name-status", base+"...HEAD")
	if err != nil {
		return nil, err
	}
	return parseNameStatus(out), nil
}

// StatusChanges lists the uncommitted changes of the worktree at dir.
func StatusChanges(dir string) ([]changes.FileChange, error) {
	if !IsGitRepo(dir) {
		return nil, ErrNotGitRepo
	}
	out, err := run(context.Background(), dir, "status", "--porcelain", "--untracked-files=all")
	if err != nil {
		return nil, err
	}
	return parsePorcelain(out), nil
}

// parseNameStatus parses `git diff --name-status` output.
// Renames and copies report the new path as modified.
func parseNameStatus(output string) []changes.FileChange {
	list := []changes.FileChange{}
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		fields := strings.Split(scanner.Text(), "\t")
		if len(fields) < 2 || fields[0] == "" {
			continue
		}
		path := fields[len(fields)-1]
		switch fields[0][0] {
		case 'A':
			list = append(list, changes.FileChange{Path: path, Type: changes.Added})
		case 'D':
			list = append(list, changes.FileChange{Path: path, Type: changes.Deleted})
		default:
			list = append(list, changes.FileChange{Path: path, Type: changes.Modified})
		}
	}
	return list
}

// parsePorcelain parses `git status --porcelain` (v1) output.
func parsePorcelain(output string) []changes.FileChange {
	list := []changes.FileChange{}
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		if len(line) < 4 {
			continue
		}
		code := line[:2]
		path := line[3:]
		if idx := strings.Index(path, " -> "); idx >= 0 {
			path = path[idx+4:]
		}
		path = strings.Trim(path, `"`)

		typ := changes.Modified
		switch {
		case code == "??" || strings.Contains(code, "A"):
			typ = changes.Added
		case strings.Contains(code, "D"):
			typ = changes.Deleted
		}
		list = append(list, changes.FileChange{Path: path, Type: typ})
	}
	return list
}
