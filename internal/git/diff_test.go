package git_test

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjoeboo/dockyard/internal/changes"
	"github.com/sjoeboo/dockyard/internal/git"
)

// makeRepo creates a temporary git repo for testing and returns a runner.
func makeRepo(t *testing.T) (string, func(args ...string)) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := t.TempDir()
	run := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@test.com",
			"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@test.com",
		)
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out)
		}
	}
	run("init", "--initial-branch=main")
	run("config", "user.email", "test@test.com")
	run("config", "user.name", "test")
	write(t, dir, "hello.txt", "hello\n")
	run("add", ".")
	run("commit", "-m", "initial")
	return dir, run
}

func write(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestBaseChanges_WorktreeBranch(t *testing.T) {
	dir, run := makeRepo(t)
	run("checkout", "-b", "feature/test")
	write(t, dir, "new.txt", "new file\n")
	write(t, dir, "hello.txt", "hello\nagain\n")
	run("add", ".")
	run("commit", "-m", "add new.txt")

	list, err := git.BaseChanges(context.Background(), dir, "main")
	require.NoError(t, err)
	assert.ElementsMatch(t, []changes.FileChange{
		{Path: "hello.txt", Type: changes.Modified},
		{Path: "new.txt", Type: changes.Added},
	}, list)
}

func TestStatusChanges(t *testing.T) {
	dir, run := makeRepo(t)
	write(t, dir, "untracked.txt", "x\n")
	write(t, dir, "hello.txt", "changed\n")
	write(t, dir, "staged.txt", "s\n")
	run("add", "staged.txt")

	list, err := git.StatusChanges(dir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []changes.FileChange{
		{Path: "hello.txt", Type: changes.Modified},
		{Path: "staged.txt", Type: changes.Added},
		{Path: "untracked.txt", Type: changes.Added},
	}, list)
}

func TestSource_FileDiffFeedsRanges(t *testing.T) {
	dir, run := makeRepo(t)
	run("checkout", "-b", "feature/ranges")
	write(t, dir, "hello.txt", "hello\nworld\n")

	src := git.Source{DefaultBase: "main"}
	diff, err := src.FileDiff(context.Background(), dir, "", "hello.txt")
	require.NoError(t, err)
	assert.True(t, strings.Contains(diff, "+world"), diff)
}
