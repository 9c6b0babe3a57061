package git

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// initTestRepo creates a temporary git repo on branch main.
func initTestRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run(t, dir, "git", "init")
	run(t, dir, "git", "symbolic-ref", "HEAD", "refs/heads/main")
	run(t, dir, "git", "config", "user.name", "Test User")
	run(t, dir, "git", "config", "user.email", "test@example.com")
	run(t, dir, "git", "config", "commit.gpgsign", "false")
	return dir
}

// commitFile creates/overwrites a file and commits it.
func commitFile(t *testing.T, dir, name, content, message string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	run(t, dir, "git", "add", name)
	run(t, dir, "git", "commit", "-m", message)
}

func run(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command(args[0], args[1:]...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "%v: %s", args, out)
}

func TestIsRepo(t *testing.T) {
	ctx := context.Background()

	assert.True(t, NewRepo(initTestRepo(t)).IsRepo(ctx))
	assert.False(t, NewRepo(t.TempDir()).IsRepo(ctx))
}

func TestCurrentAndBaseBranch(t *testing.T) {
	ctx := context.Background()
	dir := initTestRepo(t)
	commitFile(t, dir, "a.txt", "one\n", "first")
	run(t, dir, "git", "checkout", "-b", "feature")

	repo := NewRepo(dir)
	current, err := repo.CurrentBranch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "feature", current)

	assert.Equal(t, "main", repo.BaseBranch(ctx, current))

	run(t, dir, "git", "branch", "develop", "main")
	assert.Equal(t, "develop", repo.BaseBranch(ctx, current), "develop is preferred over main")
}

func TestBaseBranchFallback(t *testing.T) {
	ctx := context.Background()
	dir := initTestRepo(t)
	run(t, dir, "git", "symbolic-ref", "HEAD", "refs/heads/trunk")
	commitFile(t, dir, "a.txt", "one\n", "first")

	assert.Equal(t, DefaultBase, NewRepo(dir).BaseBranch(ctx, "trunk"))
}

func TestDiffAndAheadBehind(t *testing.T) {
	ctx := context.Background()
	dir := initTestRepo(t)
	commitFile(t, dir, "a.txt", "one\n", "first")
	run(t, dir, "git", "checkout", "-b", "feature")
	commitFile(t, dir, "a.txt", "one\ntwo\n", "second")

	repo := NewRepo(dir)
	raw, err := repo.Diff(ctx, "main", "feature")
	require.NoError(t, err)
	assert.Contains(t, raw, "diff --git a/a.txt b/a.txt")
	assert.Contains(t, raw, "+two")

	ahead, behind := repo.AheadBehind(ctx, "main", "feature")
	assert.Equal(t, 1, ahead)
	assert.Equal(t, 0, behind)
}

func TestDiffUnknownRef(t *testing.T) {
	dir := initTestRepo(t)
	commitFile(t, dir, "a.txt", "one\n", "first")

	_, err := NewRepo(dir).Diff(context.Background(), "nope", "main")
	assert.Error(t, err)
}

func TestRepoName(t *testing.T) {
	ctx := context.Background()
	dir := initTestRepo(t)
	repo := NewRepo(dir)

	assert.Equal(t, "local/repo", repo.RepoName(ctx))

	run(t, dir, "git", "remote", "add", "origin", "git@github.com:aezell/visualgit.git")
	assert.Equal(t, "aezell/visualgit", repo.RepoName(ctx))

	run(t, dir, "git", "remote", "set-url", "origin", "https://github.com/aezell/visualgit")
	assert.Equal(t, "aezell/visualgit", repo.RepoName(ctx))
}
