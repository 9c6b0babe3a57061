// Package cli wires the visualgit commands together.
package cli

import (
	"io"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/aezell/visualgit/internal/analysis"
	"github.com/aezell/visualgit/internal/config"
	"github.com/aezell/visualgit/internal/model"
)

var (
	cfgFile string
	repoDir string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "visualgit",
	Short: "Browse a branch's changes and have them explained",
	Long: `visualgit shows what the current branch changed since it forked from
its base branch and asks a local AI engine (the claude or openai CLI) to
explain the change.

Run without a subcommand it starts the web server, same as "visualgit serve".`,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&cfgFile, "config", "c", "", "config file (default ~/.config/visualgit/config.yaml)")
	pf.StringVarP(&repoDir, "repo", "C", ".", "repository directory")
	pf.BoolVarP(&verbose, "verbose", "v", false, "log engine runs to stderr")
	pf.String("provider", "", "analysis engine: claude or openai")
	pf.String("model", "", "model passed to the claude engine")
	pf.Duration("timeout", 0, "limit on a single engine run (0 means none)")

	addServeFlags(rootCmd)
	rootCmd.AddCommand(serveCmd, explainCmd, reviewCmd, versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads the config file and applies any flags the user set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("provider") {
		cfg.Analysis.Provider, _ = flags.GetString("provider")
	}
	if flags.Changed("model") {
		cfg.Analysis.Model, _ = flags.GetString("model")
	}
	if flags.Changed("timeout") {
		d, _ := flags.GetDuration("timeout")
		cfg.Analysis.Timeout = config.Duration(d)
	}
	if flags.Lookup("host") != nil && flags.Changed("host") {
		cfg.Server.Host, _ = flags.GetString("host")
	}
	if flags.Lookup("port") != nil && flags.Changed("port") {
		cfg.Server.Port, _ = flags.GetInt("port")
	}
	if flags.Lookup("no-open") != nil && flags.Changed("no-open") {
		cfg.Server.NoOpen, _ = flags.GetBool("no-open")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(w io.Writer) *log.Logger {
	return log.New(w, "[visualgit] ", log.LstdFlags)
}

// engineLogger is stderr with --verbose and silent otherwise.
func engineLogger() *log.Logger {
	if verbose {
		return newLogger(os.Stderr)
	}
	return newLogger(io.Discard)
}

// newSession builds the analysis session for engines run in dir.
func newSession(cfg *config.Config, dir string, logger *log.Logger) *analysis.Session {
	provider, _ := model.ParseProvider(cfg.Analysis.Provider) // checked by Validate
	return analysis.NewSession(analysis.Options{
		Dir: dir,
		Engine: &analysis.Engine{
			ClaudeCommand: cfg.Engines.Claude,
			ClaudeModel:   cfg.Analysis.Model,
			OpenAICommand: cfg.Engines.OpenAI,
			OpenAIModel:   cfg.Engines.OpenAIModel,
		},
		Provider:   provider,
		Timeout:    time.Duration(cfg.Analysis.Timeout),
		ChunkWords: cfg.Analysis.ChunkWords,
		Logger:     logger,
	})
}
