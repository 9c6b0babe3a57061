// Package git reads branch information and diffs from a local repository.
package git

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

// DefaultBase is used when no upstream or candidate branch resolves.
const DefaultBase = "main"

// BaseCandidates are tried in order when the current branch has no upstream.
var BaseCandidates = []string{"develop", "main", "master"}

// Repo represents a git repository at a specific directory.
type Repo struct {
	Dir string
}

// NewRepo creates a Repo pointing at the given directory.
func NewRepo(dir string) *Repo {
	return &Repo{Dir: dir}
}

// git runs a git command in the repo directory and returns trimmed stdout.
func (r *Repo) git(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.Dir
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("git %s: %w\n%s", strings.Join(args, " "), err, exitErr.Stderr)
		}
		return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return strings.TrimSpace(string(out)), nil
}

// IsRepo reports whether Dir is inside a git work tree.
func (r *Repo) IsRepo(ctx context.Context) bool {
	out, err := r.git(ctx, "rev-parse", "--is-inside-work-tree")
	return err == nil && out == "true"
}

// Root returns the top-level directory of the work tree.
func (r *Repo) Root(ctx context.Context) (string, error) {
	return r.git(ctx, "rev-parse", "--show-toplevel")
}

// CurrentBranch returns the checked-out branch name.
func (r *Repo) CurrentBranch(ctx context.Context) (string, error) {
	return r.git(ctx, "rev-parse", "--abbrev-ref", "HEAD")
}

// BaseBranch picks the branch current should be compared against: the
// upstream's branch name if one is configured, else the first of
// BaseCandidates that exists, else DefaultBase.
func (r *Repo) BaseBranch(ctx context.Context, current string) string {
	if tracking, err := r.git(ctx, "rev-parse", "--abbrev-ref", current+"@{upstream}"); err == nil {
		if _, branch, ok := strings.Cut(tracking, "/"); ok && branch != "" {
			return branch
		}
	}
	for _, candidate := range BaseCandidates {
		if _, err := r.git(ctx, "rev-parse", "--verify", "--quiet", candidate); err == nil {
			return candidate
		}
	}
	return DefaultBase
}

// Diff returns the unified diff of current since it forked from base.
func (r *Repo) Diff(ctx context.Context, base, current string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "diff", "--no-ext-diff", "--no-color", base+"..."+current)
	cmd.Dir = r.Dir
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("git diff: %w\n%s", err, exitErr.Stderr)
		}
		return "", fmt.Errorf("git diff: %w", err)
	}
	// untrimmed: the parser relies on the final newline
	return string(out), nil
}

var remoteRe = regexp.MustCompile(`[:/]([^/]+/[^/]+?)(?:\.git)?$`)

// RepoName returns "owner/name" from the origin remote URL, or
// "local/repo" when there is no usable origin.
func (r *Repo) RepoName(ctx context.Context) string {
	url, err := r.git(ctx, "remote", "get-url", "origin")
	if err != nil || url == "" {
		return "local/repo"
	}
	if m := remoteRe.FindStringSubmatch(url); m != nil {
		return m[1]
	}
	return "unknown/repo"
}

// AheadBehind counts commits on current not in base (ahead) and on base
// not in current (behind). Errors count as zero.
func (r *Repo) AheadBehind(ctx context.Context, base, current string) (ahead, behind int) {
	out, err := r.git(ctx, "rev-list", "--left-right", "--count", base+"..."+current)
	if err != nil {
		return 0, 0
	}
	fields := strings.Fields(out)
	if len(fields) != 2 {
		return 0, 0
	}
	behind, _ = strconv.Atoi(fields[0])
	ahead, _ = strconv.Atoi(fields[1])
	return ahead, behind
}
