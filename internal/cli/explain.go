package cli

import (
	"fmt"
	"iter"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aezell/visualgit/internal/diff"
	"github.com/aezell/visualgit/internal/model"
	"github.com/aezell/visualgit/internal/stream"
)

var explainCmd = &cobra.Command{
	Use:   "explain [file]",
	Short: "Explain the branch diff, or one file of it, in the terminal",
	Long: `Ask the analysis engine to explain the current branch's changes and
print the explanation as it arrives.

Examples:
  visualgit explain                          # the whole branch diff
  visualgit explain internal/api/api.go      # one changed file
  git diff HEAD~1 | visualgit explain --stdin
  visualgit explain --server http://127.0.0.1:4321`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExplain,
}

func init() {
	explainCmd.Flags().Bool("stdin", false, "read the diff from stdin")
	explainCmd.Flags().String("server", "", "send the request to a running visualgit server")
	explainCmd.Flags().String("conversation", "", "conversation id; repeated ids continue the engine session")
}

func runExplain(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	fromStdin, _ := cmd.Flags().GetBool("stdin")
	server, _ := cmd.Flags().GetString("server")
	conversation, _ := cmd.Flags().GetString("conversation")

	ctx := cmd.Context()
	src, err := readDiff(ctx, cmd.InOrStdin(), fromStdin)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if strings.TrimSpace(src.Raw) == "" {
		fmt.Fprintln(out, "No changes to explain.")
		return nil
	}

	req := model.Request{
		Provider:       model.Provider(cfg.Analysis.Provider),
		Mode:           model.ModeFull,
		Content:        src.Raw,
		Model:          cfg.Analysis.Model,
		ConversationID: conversation,
	}
	if len(args) == 1 {
		ds := diff.Parse(src.Raw)
		f := ds.File(args[0])
		if f == nil {
			return fmt.Errorf("%s has no changes in this diff", args[0])
		}
		req.Mode = model.ModeFile
		req.Content = f.Patch()
		req.FilePath = f.Path
	}

	emit := func(s string) { fmt.Fprint(out, s) }

	if server != "" {
		r := newRemote(server)
		r.onSkip = func(issue stream.Issue) {
			fmt.Fprintf(os.Stderr, "skipped frame %d: %s\n", issue.Frame, issue.Reason)
		}
		err = r.analyze(ctx, req, emit)
	} else {
		dir := src.Dir
		if dir == "" {
			dir = repoDir
		}
		var frags iter.Seq[string]
		frags, err = newSession(cfg, dir, engineLogger()).Run(ctx, req)
		if err == nil {
			for s := range frags {
				emit(s)
			}
		}
	}
	if err != nil {
		return fmt.Errorf("explaining changes: %w", err)
	}
	fmt.Fprintln(out)
	return nil
}
