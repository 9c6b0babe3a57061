package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aezell/visualgit/internal/diff"
	"github.com/aezell/visualgit/internal/model"
	"github.com/aezell/visualgit/internal/tui"
)

var reviewCmd = &cobra.Command{
	Use:   "review [-]",
	Short: "Browse the branch diff in the terminal",
	Long: `Open an interactive terminal browser for the current branch's changes.
Press e to explain the selected file and E to explain the whole diff.

Examples:
  visualgit review                  # branch vs its base
  git diff | visualgit review -     # pipe any diff
  visualgit review --stat           # summary only`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReview,
}

func init() {
	reviewCmd.Flags().Bool("stat", false, "print diff stats and exit (non-interactive)")
	reviewCmd.Flags().String("server", "", "explain through a running visualgit server")
	reviewCmd.Flags().String("style", diff.DefaultStyle, "syntax highlighting style")
}

func runReview(cmd *cobra.Command, args []string) error {
	if len(args) == 1 && args[0] != "-" {
		return fmt.Errorf("unexpected argument %q (use - to read stdin)", args[0])
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	src, err := readDiff(cmd.Context(), cmd.InOrStdin(), len(args) == 1)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if strings.TrimSpace(src.Raw) == "" {
		fmt.Fprintln(out, "No changes to review.")
		return nil
	}

	ds := diff.Parse(src.Raw)
	for _, issue := range ds.Issues {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", issue)
	}
	if len(ds.Files) == 0 {
		fmt.Fprintln(out, "No changes to review.")
		return nil
	}

	if stat, _ := cmd.Flags().GetBool("stat"); stat {
		printStat(out, ds)
		return nil
	}

	server, _ := cmd.Flags().GetString("server")
	style, _ := cmd.Flags().GetString("style")

	var explainer tui.Explainer
	if server != "" {
		explainer = newRemote(server)
	} else {
		dir := src.Dir
		if dir == "" {
			dir = repoDir
		}
		explainer = newSession(cfg, dir, engineLogger())
	}

	return tui.Run(ds, tui.Options{
		Explainer: explainer,
		Provider:  model.Provider(cfg.Analysis.Provider),
		Model:     cfg.Analysis.Model,
		Style:     style,
	})
}

func printStat(w io.Writer, ds *diff.DiffSet) {
	files, added, deleted := ds.Stats()
	fmt.Fprintf(w, "%d file(s) changed, %d insertions(+), %d deletions(-)\n\n", files, added, deleted)
	for _, f := range ds.Files {
		fmt.Fprintf(w, "  %s %-50s +%-4d -%d\n", statusLetter(f.Status), f.Path, f.Additions, f.Deletions)
	}
}

func statusLetter(s diff.FileStatus) string {
	switch s {
	case diff.StatusAdded:
		return "A"
	case diff.StatusDeleted:
		return "D"
	case diff.StatusRenamed:
		return "R"
	case diff.StatusCopied:
		return "C"
	case diff.StatusBinary:
		return "B"
	default:
		return "M"
	}
}
