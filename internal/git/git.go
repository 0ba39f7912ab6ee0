// Package git runs the git queries that feed the workspace change sources:
// the branch diff against a base ref and the uncommitted worktree status.
package git

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrNotGitRepo is returned when the directory is not a git repository.
var ErrNotGitRepo = errors.New("not a git repository")

// knownBases are tried in order after any preferred base.
var knownBases = []string{"origin/main", "origin/master", "main", "master"}

// IsGitRepo checks if the given directory is inside a git repository
func IsGitRepo(dir string) bool {
	cmd := exec.Command("git", "-C", dir, "rev-parse", "--git-dir")
	err := cmd.Run()
	return err == nil
}

// GetRepoRoot returns the root directory of the git repository containing dir
func GetRepoRoot(dir string) (string, error) {
	cmd := exec.Command("git", "-C", dir, "rev-parse", "--show-toplevel")
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("not a git repository: %w", err)
	}
	return strings.TrimSpace(string(output)), nil
}

// GetCurrentBranch returns the current branch name for the repository at dir
func GetCurrentBranch(dir string) (string, error) {
	cmd := exec.Command("git", "-C", dir, "rev-parse", "--abbrev-ref", "HEAD")
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("failed to get current branch: %w", err)
	}
	return strings.TrimSpace(string(output)), nil
}

// FindBase returns the first base ref that exists in the repo, trying
// preferred first, or "" if none is found.
func FindBase(dir, preferred string) string {
	candidates := knownBases
	if preferred != "" {
		candidates = append([]string{preferred}, knownBases...)
	}
	for _, base := range candidates {
		cmd := exec.Command("git", "-C", dir, "rev-parse", "--verify", "--quiet", base)
		if err := cmd.Run(); err == nil {
			return base
		}
	}
	return ""
}

// run executes git in dir and returns stdout.
// An exit code of 1 from diff commands (differences found) is treated as success.
func run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", dir}, args...)...)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 && len(args) > 0 && args[0] == "diff" {
			return string(out), nil
		}
		return "", fmt.Errorf("git %v failed: %w", args, err)
	}
	return string(out), nil
}
