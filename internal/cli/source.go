package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/aezell/visualgit/internal/git"
)

// diffSource is where a command's diff came from.
type diffSource struct {
	Raw     string
	Dir     string // repository root, "" for stdin
	Current string
	Base    string
}

// readDiff reads a diff from stdin, or else compares the current branch
// against its base.
func readDiff(ctx context.Context, stdin io.Reader, fromStdin bool) (*diffSource, error) {
	if fromStdin {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return &diffSource{Raw: string(data)}, nil
	}

	repo, err := openRepo(ctx)
	if err != nil {
		return nil, err
	}
	return branchDiff(ctx, repo)
}

func branchDiff(ctx context.Context, repo *git.Repo) (*diffSource, error) {
	current, err := repo.CurrentBranch(ctx)
	if err != nil {
		return nil, err
	}
	base := repo.BaseBranch(ctx, current)
	raw, err := repo.Diff(ctx, base, current)
	if err != nil {
		return nil, err
	}
	return &diffSource{Raw: raw, Dir: repo.Dir, Current: current, Base: base}, nil
}
