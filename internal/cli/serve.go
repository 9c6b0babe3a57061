package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aezell/visualgit/internal/api"
	"github.com/aezell/visualgit/internal/browser"
	"github.com/aezell/visualgit/internal/git"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local web server",
	Long: `Start an HTTP server for the repository's branch diff and open it in
the browser.

Endpoints:
  GET    /health                      Health check
  GET    /api/git/status              Whether the directory is a repository
  GET    /api/git/info                Repository, branch and base branch
  GET    /api/git/diff                Branch diff, raw and parsed
  POST   /api/diff/parse              Parse a posted diff
  POST   /api/ai/analyze              Stream an explanation as SSE frames
  DELETE /api/ai/conversations/{id}   Forget a conversation
  GET    /api/ai/ws                   WebSocket analysis channel`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

// portAttempts bounds how far past the configured port serve looks for a
// free one.
const portAttempts = 20

const shutdownTimeout = 5 * time.Second

func init() {
	addServeFlags(serveCmd)
}

func addServeFlags(cmd *cobra.Command) {
	cmd.Flags().String("host", "127.0.0.1", "address to listen on")
	cmd.Flags().IntP("port", "p", 4321, "first port to try")
	cmd.Flags().Bool("no-open", false, "do not open the browser")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := openRepo(ctx)
	if err != nil {
		return err
	}

	ln, err := listen(cfg.Server.Host, cfg.Server.Port)
	if err != nil {
		return err
	}

	logger := newLogger(os.Stderr)
	srv := api.New(api.Options{
		Addr:    ln.Addr().String(),
		Repo:    repo,
		Session: newSession(cfg, repo.Dir, logger),
		Logger:  logger,
	})

	url := "http://" + ln.Addr().String()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "visualgit running at %s\n", url)
	if port := ln.Addr().(*net.TCPAddr).Port; cfg.Server.Port != 0 && port != cfg.Server.Port {
		fmt.Fprintf(out, "Port %d was busy, using %d\n", cfg.Server.Port, port)
	}
	fmt.Fprintln(out, "Press Ctrl+C to stop")

	if !cfg.Server.NoOpen {
		if err := browser.Open(url); err != nil {
			logger.Printf("opening browser: %v", err)
		}
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	fmt.Fprintln(out, "\nShutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// openRepo resolves --repo to the root of its work tree.
func openRepo(ctx context.Context) (*git.Repo, error) {
	repo := git.NewRepo(repoDir)
	if !repo.IsRepo(ctx) {
		return nil, fmt.Errorf("%s is not a git repository", repoDir)
	}
	root, err := repo.Root(ctx)
	if err != nil {
		return nil, err
	}
	return git.NewRepo(root), nil
}

// listen binds the first free port from port upward. Port 0 lets the
// kernel choose.
func listen(host string, port int) (net.Listener, error) {
	var lastErr error
	for i := 0; i < portAttempts && port+i <= 65535; i++ {
		ln, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port+i)))
		if err == nil {
			return ln, nil
		}
		lastErr = err
		if port == 0 {
			break
		}
	}
	return nil, fmt.Errorf("no free port in %d-%d: %w", port, port+portAttempts-1, lastErr)
}
